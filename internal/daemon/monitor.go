// Package daemon implements the monitor controller that drives the tick loop.
package daemon

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/activity_mon/internal/domain"
	"github.com/eliteGoblin/focusd/activity_mon/internal/usecase"
)

// Aggregator is the per-tick work the monitor schedules.
// Implemented by usecase.Aggregator.
type Aggregator interface {
	Tick(ctx context.Context) error
	Interval() time.Duration
	Reset()
	LastActivity() *domain.Activity
	SaveGoals(ctx context.Context, goals []string) ([]string, error)
	ActivityByDate(ctx context.Context, date string) (*domain.DayRecord, error)
	Flush(ctx context.Context) error
	Wait()
}

// StatsSource reports persistence counters.
type StatsSource interface {
	Stats() domain.FlushStats
}

// Status is a point-in-time view of the monitor.
type Status struct {
	State        domain.MonitorState    `json:"state"`
	LastActivity *domain.Activity       `json:"last_activity,omitempty"`
	LastFailure  *domain.MonitorFailure `json:"last_failure,omitempty"`
	Flush        domain.FlushStats      `json:"flush"`
}

// Monitor is the start/stop state machine around the aggregator.
// Idle -> Starting -> Running, then Running -> Idle on Stop or
// Running -> StoppedOnError when a tick fails. StoppedOnError restarts like Idle.
type Monitor struct {
	agg         Aggregator
	probe       domain.WindowProbe
	permissions domain.PermissionChecker
	scheduler   domain.Scheduler
	publisher   domain.Publisher
	stats       StatsSource
	clock       domain.Clock
	logger      *zap.Logger

	// lifecycle serializes Start and Stop.
	lifecycle sync.Mutex

	mu          sync.Mutex
	state       domain.MonitorState
	cancel      context.CancelFunc
	done        chan struct{}
	run         uint64
	lastFailure *domain.MonitorFailure
}

// NewMonitor creates an idle monitor. stats and clock may be nil.
func NewMonitor(
	agg Aggregator,
	probe domain.WindowProbe,
	permissions domain.PermissionChecker,
	scheduler domain.Scheduler,
	publisher domain.Publisher,
	stats StatsSource,
	clock domain.Clock,
	logger *zap.Logger,
) *Monitor {
	if logger == nil {
		logger = zap.NewNop()
	}
	if clock == nil {
		clock = domain.SystemClock{}
	}
	return &Monitor{
		agg:         agg,
		probe:       probe,
		permissions: permissions,
		scheduler:   scheduler,
		publisher:   publisher,
		stats:       stats,
		clock:       clock,
		logger:      logger,
		state:       domain.StateIdle,
	}
}

// Start runs the permission preflight and a canary probe, then begins ticking.
// It returns true with a nil error when the monitor is running afterwards.
// Preflight and canary failures come back as *domain.ProbeFailure matching
// ErrPermissionDenied or ErrProbeUnavailable.
func (m *Monitor) Start(ctx context.Context) (bool, error) {
	m.lifecycle.Lock()
	defer m.lifecycle.Unlock()

	if m.State() == domain.StateRunning {
		return true, nil
	}
	m.setState(domain.StateStarting)

	if err := m.preflight(ctx); err != nil {
		m.setState(domain.StateIdle)
		return false, err
	}

	if _, err := m.probe.Probe(ctx); err != nil {
		failure := domain.NewProbeFailure(domain.ErrProbeUnavailable, err)
		m.logger.Warn("canary probe failed",
			zap.String("category", string(failure.Category)),
			zap.Error(err))
		m.setState(domain.StateIdle)
		return false, failure
	}

	m.agg.Reset()

	runCtx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	m.mu.Lock()
	m.run++
	run := m.run
	m.state = domain.StateRunning
	m.cancel = cancel
	m.done = done
	m.lastFailure = nil
	m.mu.Unlock()

	go m.loop(runCtx, run, cancel, done)

	m.logger.Info("monitor started", zap.Duration("interval", m.agg.Interval()))
	return true, nil
}

// preflight checks the platform grant. A denied check opens the remediation
// prompt once for this attempt.
func (m *Monitor) preflight(ctx context.Context) error {
	if m.permissions == nil {
		return nil
	}

	trusted, err := m.permissions.Check(ctx)
	if err != nil {
		return domain.NewProbeFailure(domain.ErrProbeUnavailable, err)
	}
	if trusted {
		return nil
	}

	m.logger.Warn("window inspection permission not granted")
	if err := m.permissions.RequestAccess(ctx); err != nil {
		m.logger.Warn("failed to open permission settings", zap.Error(err))
	}
	return domain.NewProbeFailure(domain.ErrPermissionDenied, domain.ErrPermissionDenied)
}

func (m *Monitor) loop(ctx context.Context, run uint64, cancel context.CancelFunc, done chan struct{}) {
	defer close(done)
	defer cancel()

	err := m.scheduler.Every(ctx, m.agg.Interval(), m.agg.Tick)
	if ctx.Err() != nil {
		return
	}

	m.mu.Lock()
	if m.run != run {
		m.mu.Unlock()
		return
	}
	m.cancel = nil

	if errors.Is(err, usecase.ErrPublisherGone) {
		m.state = domain.StateIdle
		m.mu.Unlock()
		m.logger.Info("monitor stopped, nothing left to report to")
		return
	}

	failure := m.failureFrom(err)
	m.state = domain.StateStoppedOnError
	m.lastFailure = &failure
	m.mu.Unlock()

	m.logger.Error("monitor stopped on error",
		zap.String("category", string(failure.Category)),
		zap.Error(err))
	m.publisher.PublishFailure(failure)
}

func (m *Monitor) failureFrom(err error) domain.MonitorFailure {
	var pf *domain.ProbeFailure
	if !errors.As(err, &pf) {
		pf = domain.NewProbeFailure(domain.ErrProbeTransient, err)
	}
	return domain.MonitorFailure{
		Category:    pf.Category,
		Message:     pf.Error(),
		Remediation: pf.Remediation,
		At:          m.clock.Now(),
	}
}

// Stop cancels the loop and waits for the current tick to return.
// Stopping an idle monitor is a no-op.
func (m *Monitor) Stop() {
	m.lifecycle.Lock()
	defer m.lifecycle.Unlock()

	m.mu.Lock()
	if m.state != domain.StateRunning {
		if m.state == domain.StateStoppedOnError {
			m.state = domain.StateIdle
		}
		m.mu.Unlock()
		return
	}
	cancel, done := m.cancel, m.done
	m.run++
	m.state = domain.StateIdle
	m.cancel = nil
	m.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
	m.logger.Info("monitor stopped")
}

// Dispose stops the monitor, waits for background flushes and writes the
// current day one last time.
func (m *Monitor) Dispose(ctx context.Context) error {
	m.Stop()

	m.mu.Lock()
	done := m.done
	m.mu.Unlock()
	if done != nil {
		<-done
	}

	m.agg.Wait()
	return m.agg.Flush(ctx)
}

// State returns the current lifecycle state.
func (m *Monitor) State() domain.MonitorState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *Monitor) setState(s domain.MonitorState) {
	m.mu.Lock()
	m.state = s
	m.mu.Unlock()
}

// LastActivity returns the last accepted sample of the current or previous session.
func (m *Monitor) LastActivity() *domain.Activity {
	return m.agg.LastActivity()
}

// LastFailure returns the failure that stopped the last run, if any.
func (m *Monitor) LastFailure() *domain.MonitorFailure {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.lastFailure == nil {
		return nil
	}
	f := *m.lastFailure
	return &f
}

// FlushStats returns persistence counters, or zero values without a stats source.
func (m *Monitor) FlushStats() domain.FlushStats {
	if m.stats == nil {
		return domain.FlushStats{}
	}
	return m.stats.Stats()
}

// Status bundles state, last sample, last failure and flush counters.
func (m *Monitor) Status() Status {
	return Status{
		State:        m.State(),
		LastActivity: m.LastActivity(),
		LastFailure:  m.LastFailure(),
		Flush:        m.FlushStats(),
	}
}

// ActivityByDate reads a stored day without touching the live cache.
func (m *Monitor) ActivityByDate(ctx context.Context, date string) (*domain.DayRecord, error) {
	return m.agg.ActivityByDate(ctx, date)
}

// SaveGoals replaces today's goals, whether or not the monitor is running.
func (m *Monitor) SaveGoals(ctx context.Context, goals []string) ([]string, error) {
	return m.agg.SaveGoals(ctx, goals)
}
