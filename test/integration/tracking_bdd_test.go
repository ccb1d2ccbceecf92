//go:build integration

package integration

import (
	"context"
	"os"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/eliteGoblin/focusd/activity_mon/internal/domain"
	"github.com/eliteGoblin/focusd/activity_mon/internal/infra"
	"github.com/eliteGoblin/focusd/activity_mon/internal/notify"
	"github.com/eliteGoblin/focusd/activity_mon/internal/policy"
	"github.com/eliteGoblin/focusd/activity_mon/internal/usecase"
	"github.com/eliteGoblin/focusd/activity_mon/test/fixtures"
)

var _ = Describe("Focus tracking", func() {
	var (
		ctx     context.Context
		tmpDir  string
		desktop *fixtures.FakeDesktop
		clock   *fixtures.StepClock
		store   *infra.JSONDocumentStore
		hub     *notify.Hub
		agg     *usecase.Aggregator
	)

	tick := func(n int) {
		for i := 0; i < n; i++ {
			Expect(agg.Tick(ctx)).To(Succeed())
			clock.Advance(time.Second)
		}
	}

	BeforeEach(func() {
		var err error
		ctx = context.Background()
		tmpDir, err = os.MkdirTemp("", "actmon-integration-*")
		Expect(err).NotTo(HaveOccurred())

		desktop, err = fixtures.NewFakeDesktop(tmpDir)
		Expect(err).NotTo(HaveOccurred())

		probe, err := infra.NewCommandWindowProbe(infra.ProbeConfig{
			Command: desktop.ProbeCommand(),
			Timeout: 2 * time.Second,
		}, &infra.RealCommandRunner{}, infra.NewProcessManager(), nil)
		Expect(err).NotTo(HaveOccurred())

		// Two seconds past a flush boundary keeps update-path writes out of the way.
		clock = fixtures.NewStepClock(time.Date(2026, 3, 10, 9, 0, 2, 0, time.Local))
		store = infra.NewJSONDocumentStore(tmpDir, nil)
		hub = notify.NewHub(256, nil)
		agg = usecase.NewAggregator(
			usecase.AggregatorConfig{SelfName: "actmon"},
			probe, store, policy.NewRegistry(), hub, nil, clock, nil,
		)
	})

	AfterEach(func() {
		agg.Wait()
		hub.Close()
		os.RemoveAll(tmpDir)
	})

	Describe("accumulating focus time", func() {
		Context("when the user moves between two windows", func() {
			It("should record one activity per window with its total time", func() {
				Expect(desktop.Focus("Code", "main.go")).To(Succeed())
				tick(3)
				Expect(desktop.Focus("Google Chrome", "Two Sum - LeetCode")).To(Succeed())
				tick(2)
				Expect(agg.Flush(ctx)).To(Succeed())

				doc, exists, err := store.Read(ctx, "2026-03-10")
				Expect(err).NotTo(HaveOccurred())
				Expect(exists).To(BeTrue())
				Expect(doc.Activities).To(HaveLen(2))

				Expect(doc.Activities[0].Title).To(Equal("main.go"))
				Expect(doc.Activities[0].Duration).To(Equal(int64(3000)))
				Expect(doc.Activities[1].Title).To(Equal("LeetCode"))
				Expect(doc.Activities[1].Owner.Name).To(Equal("Google Chrome"))
				Expect(doc.Activities[1].Duration).To(Equal(int64(2000)))
			})
		})

		Context("when the tracker itself has focus", func() {
			It("should not record it", func() {
				Expect(desktop.Focus("actmon", "status")).To(Succeed())
				tick(2)
				Expect(agg.Flush(ctx)).To(Succeed())

				_, exists, err := store.Read(ctx, "2026-03-10")
				Expect(err).NotTo(HaveOccurred())
				Expect(exists).To(BeFalse())
			})
		})

		Context("when nothing has focus", func() {
			It("should skip the tick without error", func() {
				tick(1)
				Expect(agg.LastActivity()).To(BeNil())
			})
		})

		Context("when the clock crosses midnight", func() {
			It("should start a new day file", func() {
				clock = fixtures.NewStepClock(time.Date(2026, 3, 10, 23, 59, 58, 0, time.Local))
				probe, err := infra.NewCommandWindowProbe(infra.ProbeConfig{
					Command: desktop.ProbeCommand(),
				}, &infra.RealCommandRunner{}, infra.NewProcessManager(), nil)
				Expect(err).NotTo(HaveOccurred())
				agg = usecase.NewAggregator(usecase.AggregatorConfig{}, probe, store, nil, hub, nil, clock, nil)

				Expect(desktop.Focus("Terminal", "zsh")).To(Succeed())
				tick(2)
				Expect(agg.Flush(ctx)).To(Succeed())
				tick(2)
				agg.Wait()
				Expect(agg.Flush(ctx)).To(Succeed())

				yesterday, err := agg.ActivityByDate(ctx, "2026-03-10")
				Expect(err).NotTo(HaveOccurred())
				Expect(yesterday.Exists).To(BeTrue())
				Expect(yesterday.Activities[0].Duration).To(Equal(int64(2000)))

				today, err := agg.ActivityByDate(ctx, "2026-03-11")
				Expect(err).NotTo(HaveOccurred())
				Expect(today.Exists).To(BeTrue())
				Expect(today.Activities[0].Duration).To(Equal(int64(2000)))
			})
		})
	})

	Describe("system events", func() {
		It("should report a process switch and a focus change", func() {
			events, cancel := hub.Subscribe()
			defer cancel()

			Expect(desktop.Focus("Code", "main.go")).To(Succeed())
			tick(1)
			Expect(desktop.Focus("Terminal", "zsh")).To(Succeed())
			tick(1)

			var types []domain.SystemEventType
			Eventually(func() []domain.SystemEventType {
				select {
				case n := <-events:
					if n.Event != nil {
						types = append(types, n.Event.Type)
					}
				default:
				}
				return types
			}).Should(Equal([]domain.SystemEventType{domain.EventProcessSwitch, domain.EventWindowFocus}))

			recent := hub.Recent()
			Expect(recent).To(HaveLen(2))
			Expect(recent[0].Content).To(Equal("Switched from Code to Terminal"))
		})
	})

	Describe("goals", func() {
		It("should persist goals next to the activities", func() {
			Expect(desktop.Focus("Code", "main.go")).To(Succeed())
			tick(1)

			saved, err := agg.SaveGoals(ctx, []string{" ship it ", "", "review"})
			Expect(err).NotTo(HaveOccurred())
			Expect(saved).To(Equal([]string{"ship it", "review"}))

			record, err := agg.ActivityByDate(ctx, "2026-03-10")
			Expect(err).NotTo(HaveOccurred())
			Expect(record.Goals).To(Equal([]string{"ship it", "review"}))
			Expect(record.Activities).To(HaveLen(1))
		})
	})

	Describe("probe failure", func() {
		It("should surface a transient probe failure", func() {
			Expect(desktop.Break()).To(Succeed())

			err := agg.Tick(ctx)
			Expect(err).To(MatchError(domain.ErrProbeTransient))
		})
	})
})
