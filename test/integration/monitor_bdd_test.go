//go:build integration

package integration

import (
	"context"
	"os"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/eliteGoblin/focusd/activity_mon/internal/daemon"
	"github.com/eliteGoblin/focusd/activity_mon/internal/domain"
	"github.com/eliteGoblin/focusd/activity_mon/internal/infra"
	"github.com/eliteGoblin/focusd/activity_mon/internal/notify"
	"github.com/eliteGoblin/focusd/activity_mon/internal/policy"
	"github.com/eliteGoblin/focusd/activity_mon/internal/usecase"
	"github.com/eliteGoblin/focusd/activity_mon/test/fixtures"
)

var _ = Describe("Monitor", func() {
	var (
		ctx      context.Context
		tmpDir   string
		desktop  *fixtures.FakeDesktop
		store    *infra.JSONDocumentStore
		hub      *notify.Hub
		recorder *usecase.FlushRecorder
		monitor  *daemon.Monitor
	)

	BeforeEach(func() {
		var err error
		ctx = context.Background()
		tmpDir, err = os.MkdirTemp("", "actmon-integration-*")
		Expect(err).NotTo(HaveOccurred())

		desktop, err = fixtures.NewFakeDesktop(tmpDir)
		Expect(err).NotTo(HaveOccurred())

		runner := &infra.RealCommandRunner{}
		probe, err := infra.NewCommandWindowProbe(infra.ProbeConfig{
			Command: desktop.ProbeCommand(),
		}, runner, infra.NewProcessManager(), nil)
		Expect(err).NotTo(HaveOccurred())

		store = infra.NewJSONDocumentStore(tmpDir, nil)
		hub = notify.NewHub(256, nil)
		recorder = usecase.NewFlushRecorder(nil)
		agg := usecase.NewAggregator(
			usecase.AggregatorConfig{Interval: 20 * time.Millisecond},
			probe, store, policy.NewRegistry(), hub, recorder, nil, nil,
		)
		monitor = daemon.NewMonitor(
			agg, probe,
			// The linux checker needs no OS prompt, so the suite runs anywhere.
			infra.NewPermissionCheckerForOS("linux", runner, nil),
			infra.NewTimerScheduler(), hub, recorder, nil, nil,
		)
	})

	AfterEach(func() {
		monitor.Stop()
		hub.Close()
		os.RemoveAll(tmpDir)
	})

	Describe("Start", func() {
		Context("when a window has focus", func() {
			It("should run and write the focused window to today's file", func() {
				Expect(desktop.Focus("Code", "main.go")).To(Succeed())

				started, err := monitor.Start(ctx)
				Expect(err).NotTo(HaveOccurred())
				Expect(started).To(BeTrue())
				Expect(monitor.State()).To(Equal(domain.StateRunning))

				Eventually(monitor.LastActivity).ShouldNot(BeNil())
				Expect(monitor.LastActivity().Title).To(Equal("main.go"))

				Expect(monitor.Dispose(ctx)).To(Succeed())
				Expect(monitor.State()).To(Equal(domain.StateIdle))

				record, err := monitor.ActivityByDate(ctx, domain.DayKey(time.Now()))
				Expect(err).NotTo(HaveOccurred())
				Expect(record.Exists).To(BeTrue())
				Expect(record.Activities).NotTo(BeEmpty())
				Expect(record.Activities[0].Duration).To(BeNumerically(">=", 20))
				Expect(recorder.Stats().Failures).To(BeZero())
			})
		})

		Context("when the probe cannot run", func() {
			It("should refuse to start and stay idle", func() {
				Expect(desktop.Break()).To(Succeed())

				started, err := monitor.Start(ctx)
				Expect(started).To(BeFalse())
				Expect(err).To(MatchError(domain.ErrProbeUnavailable))
				Expect(monitor.State()).To(Equal(domain.StateIdle))
			})
		})
	})

	Describe("probe failing mid-run", func() {
		It("should stop on error and publish one failure", func() {
			failures, cancel := hub.Subscribe()
			defer cancel()

			Expect(desktop.Focus("Code", "main.go")).To(Succeed())
			_, err := monitor.Start(ctx)
			Expect(err).NotTo(HaveOccurred())

			Eventually(monitor.LastActivity).ShouldNot(BeNil())
			Expect(desktop.Break()).To(Succeed())

			Eventually(monitor.State).Should(Equal(domain.StateStoppedOnError))
			Expect(monitor.LastFailure()).NotTo(BeNil())

			count := 0
			Eventually(func() int {
				for {
					select {
					case n := <-failures:
						if n.Kind == notify.KindFailure {
							count++
						}
					default:
						return count
					}
				}
			}).Should(Equal(1))
			Consistently(func() int {
				select {
				case n := <-failures:
					if n.Kind == notify.KindFailure {
						count++
					}
				default:
				}
				return count
			}, 100*time.Millisecond).Should(Equal(1))

			By("restarting once the window system is back")
			Expect(desktop.Focus("Code", "main.go")).To(Succeed())
			started, err := monitor.Start(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(started).To(BeTrue())
			Expect(monitor.LastFailure()).To(BeNil())
		})
	})

	Describe("closing the hub", func() {
		It("should return the monitor to idle without a failure", func() {
			Expect(desktop.Focus("Code", "main.go")).To(Succeed())
			_, err := monitor.Start(ctx)
			Expect(err).NotTo(HaveOccurred())

			hub.Close()

			Eventually(monitor.State).Should(Equal(domain.StateIdle))
			Expect(monitor.LastFailure()).To(BeNil())
		})
	})
})
