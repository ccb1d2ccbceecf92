//go:build integration

package integration

import (
	"context"
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/eliteGoblin/focusd/activity_mon/internal/domain"
	"github.com/eliteGoblin/focusd/activity_mon/internal/infra"
	"github.com/eliteGoblin/focusd/activity_mon/internal/usecase"
)

var _ = Describe("Day storage", func() {
	var (
		ctx    context.Context
		tmpDir string
	)

	BeforeEach(func() {
		var err error
		ctx = context.Background()
		tmpDir, err = os.MkdirTemp("", "actmon-integration-*")
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		os.RemoveAll(tmpDir)
	})

	Describe("JSON day files", func() {
		Context("when a file was written by an older build", func() {
			It("should backfill defaults and keep the recorded time", func() {
				legacy := `{"activities":[{"title":"main.go","owner":{"name":"Code","path":""},"timestamp":1700000000000,"duration":"4000"}]}`
				path := filepath.Join(tmpDir, infra.DayFileName("2026-03-10"))
				Expect(os.WriteFile(path, []byte(legacy), 0644)).To(Succeed())

				store := infra.NewJSONDocumentStore(tmpDir, nil)
				resolver := usecase.NewDayStoreResolver(store, nil)
				_, doc, err := resolver.Resolve(ctx, time.Date(2026, 3, 10, 12, 0, 0, 0, time.Local))
				Expect(err).NotTo(HaveOccurred())

				Expect(doc.SchemaVersion).To(Equal(domain.CurrentSchemaVersion))
				Expect(doc.Goals).NotTo(BeNil())
				Expect(doc.Activities[0].Duration).To(Equal(int64(4000)))

				stored, exists, err := store.Read(ctx, "2026-03-10")
				Expect(err).NotTo(HaveOccurred())
				Expect(exists).To(BeTrue())
				Expect(stored.SchemaVersion).To(Equal(domain.CurrentSchemaVersion))
			})
		})

		Context("when a file is corrupt", func() {
			It("should move it aside and start an empty day", func() {
				path := filepath.Join(tmpDir, infra.DayFileName("2026-03-10"))
				Expect(os.WriteFile(path, []byte("{not json"), 0644)).To(Succeed())

				store := infra.NewJSONDocumentStore(tmpDir, nil)
				doc, existed, _, err := store.Open(ctx, "2026-03-10")
				Expect(err).NotTo(HaveOccurred())
				Expect(existed).To(BeFalse())
				Expect(doc.Activities).To(BeEmpty())

				aside, err := filepath.Glob(path + ".corrupt-*")
				Expect(err).NotTo(HaveOccurred())
				Expect(aside).To(HaveLen(1))
			})
		})
	})

	Describe("Encrypted store", func() {
		It("should round-trip a day and reject a lost key", func() {
			provider := infra.NewFileKeyProvider(tmpDir)
			dbPath := filepath.Join(tmpDir, "activity.db")
			store, err := infra.OpenEncryptedDocumentStore(dbPath, provider)
			Expect(err).NotTo(HaveOccurred())

			doc := domain.NewDayDocument()
			doc.Goals = []string{"focus"}
			doc.Activities = append(doc.Activities, domain.Activity{
				Title: "main.go", Owner: domain.Owner{Name: "Code"}, Duration: 3000,
			})
			Expect(store.Write(ctx, "2026-03-10", doc)).To(Succeed())
			Expect(store.Close()).To(Succeed())

			reopened, err := infra.OpenEncryptedDocumentStore(dbPath, provider)
			Expect(err).NotTo(HaveOccurred())

			record, err := usecase.NewDayStoreResolver(reopened, nil).Lookup(ctx, "2026-03-10")
			Expect(err).NotTo(HaveOccurred())
			Expect(record.Exists).To(BeTrue())
			Expect(record.Goals).To(Equal([]string{"focus"}))
			Expect(record.Activities[0].Duration).To(Equal(int64(3000)))
			Expect(reopened.Close()).To(Succeed())

			keyFiles, err := filepath.Glob(filepath.Join(tmpDir, ".store.key"))
			Expect(err).NotTo(HaveOccurred())
			Expect(keyFiles).To(HaveLen(1))
			Expect(os.Remove(keyFiles[0])).To(Succeed())

			_, err = infra.OpenEncryptedDocumentStore(dbPath, provider)
			Expect(err).To(MatchError(domain.ErrStoreKey))
		})
	})

	Describe("Instance lock", func() {
		It("should allow only one holder per data directory", func() {
			lockPath := infra.NewPaths(tmpDir).LockPath
			cfg := infra.LockConfig{Timeout: 200 * time.Millisecond, Retry: 20 * time.Millisecond}

			first, err := infra.AcquireInstanceLock(ctx, lockPath, cfg, nil)
			Expect(err).NotTo(HaveOccurred())

			_, err = infra.AcquireInstanceLock(ctx, lockPath, cfg, nil)
			Expect(err).To(HaveOccurred())

			first.Unlock()
			second, err := infra.AcquireInstanceLock(ctx, lockPath, cfg, nil)
			Expect(err).NotTo(HaveOccurred())
			second.Unlock()
		})
	})
})
