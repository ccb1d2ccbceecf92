package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/activity_mon/internal/domain"
)

// Defaults for AggregatorConfig.
const (
	DefaultPollInterval   = 1000 * time.Millisecond
	DefaultFlushWindow    = 10000 * time.Millisecond
	DefaultFlushTolerance = 1500 * time.Millisecond
)

// ErrPublisherGone stops the loop when nobody is left to report to.
var ErrPublisherGone = errors.New("publisher is no longer alive")

// AggregatorConfig tunes the aggregator.
type AggregatorConfig struct {
	// Interval is both the tick spacing and the duration credited per sighting.
	Interval time.Duration

	// Update-path writes happen only when now (ms) mod FlushWindow < FlushTolerance.
	FlushWindow    time.Duration
	FlushTolerance time.Duration

	// SelfName is matched case-insensitively against owner names to skip our own windows.
	SelfName string
}

func (c AggregatorConfig) withDefaults() AggregatorConfig {
	if c.Interval <= 0 {
		c.Interval = DefaultPollInterval
	}
	if c.FlushWindow <= 0 {
		c.FlushWindow = DefaultFlushWindow
	}
	if c.FlushTolerance <= 0 {
		c.FlushTolerance = DefaultFlushTolerance
	}
	return c
}

// Aggregator turns probe samples into per-day activity durations.
// Tick is driven by a single goroutine; the mutex only guards against
// readers and SaveGoals calls from other goroutines.
type Aggregator struct {
	cfg        AggregatorConfig
	probe      domain.WindowProbe
	resolver   *DayStoreResolver
	classifier domain.Classifier
	publisher  domain.Publisher
	clock      domain.Clock
	flusher    *flusher
	logger     *zap.Logger

	mu   sync.Mutex
	last *domain.Activity
}

// NewAggregator wires an aggregator. observer and clock may be nil.
func NewAggregator(
	cfg AggregatorConfig,
	probe domain.WindowProbe,
	store domain.DocumentStore,
	classifier domain.Classifier,
	publisher domain.Publisher,
	observer domain.FlushObserver,
	clock domain.Clock,
	logger *zap.Logger,
) *Aggregator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if clock == nil {
		clock = domain.SystemClock{}
	}
	if observer == nil {
		observer = NewFlushRecorder(logger)
	}
	return &Aggregator{
		cfg:        cfg.withDefaults(),
		probe:      probe,
		resolver:   NewDayStoreResolver(store, logger),
		classifier: classifier,
		publisher:  publisher,
		clock:      clock,
		flusher:    newFlusher(store, observer),
		logger:     logger,
	}
}

// Interval returns the configured tick spacing.
func (a *Aggregator) Interval() time.Duration {
	return a.cfg.Interval
}

// Tick samples the focused window once and accounts for it.
// It returns a *domain.ProbeFailure when the probe fails, ErrPublisherGone
// when nobody is listening, and nil otherwise. Persistence failures are
// reported to the flush observer, never returned.
func (a *Aggregator) Tick(ctx context.Context) error {
	if !a.publisher.Alive() {
		return ErrPublisherGone
	}

	info, err := a.probe.Probe(ctx)
	if ctx.Err() != nil {
		// Stopped while probing; the result is stale.
		return nil
	}
	if err != nil {
		return domain.NewProbeFailure(domain.ErrProbeTransient, err)
	}
	if info == nil || info.Owner.Name == "" {
		return nil
	}
	if a.isSelf(info.Owner.Name) {
		return nil
	}

	now := a.clock.Now()
	candidate := domain.Activity{
		Title:     a.classify(info.Owner.Name, info.Title),
		Owner:     domain.Owner{Name: info.Owner.Name, Path: info.Owner.Path},
		Timestamp: now.UnixMilli(),
	}

	a.mu.Lock()
	key, doc, err := a.resolver.Resolve(ctx, now)
	if err != nil {
		a.mu.Unlock()
		a.logger.Warn("skipping tick, day store unavailable", zap.Error(err))
		return nil
	}

	events := a.detectChanges(candidate, info.Owner)

	if idx := findActivity(doc.Activities, candidate.Title, candidate.Owner.Name); idx >= 0 {
		rec := &doc.Activities[idx]
		if rec.Duration < 0 {
			rec.Duration = 0
		}
		rec.Duration += a.cfg.Interval.Milliseconds()
		if rec.TimestampReadable == "" {
			rec.TimestampReadable = domain.FormatReadable(rec.Timestamp)
		}
		candidate.Timestamp = rec.Timestamp
		candidate.TimestampReadable = rec.TimestampReadable
		candidate.Duration = rec.Duration

		if a.inFlushWindow(now) {
			a.flusher.FlushAsync(key, doc)
		}
	} else {
		candidate.TimestampReadable = domain.FormatReadable(candidate.Timestamp)
		candidate.Duration = a.cfg.Interval.Milliseconds()
		doc.Activities = append(doc.Activities, candidate)

		// Failure is counted by the observer; the in-memory record stays authoritative.
		_ = a.flusher.Flush(ctx, key, doc)

		if ctx.Err() != nil {
			// Stopped while flushing. The record is kept, the run is over.
			a.mu.Unlock()
			return nil
		}
	}

	last := candidate
	a.last = &last
	a.mu.Unlock()

	for _, ev := range events {
		a.publisher.PublishSystemEvent(ev)
	}
	a.publisher.PublishActivity(candidate)
	return nil
}

func (a *Aggregator) isSelf(ownerName string) bool {
	if a.cfg.SelfName == "" {
		return false
	}
	return strings.Contains(strings.ToLower(ownerName), strings.ToLower(a.cfg.SelfName))
}

func (a *Aggregator) classify(ownerName, title string) string {
	if a.classifier == nil {
		return title
	}
	return a.classifier.Classify(ownerName, title)
}

func (a *Aggregator) inFlushWindow(now time.Time) bool {
	return now.UnixMilli()%a.cfg.FlushWindow.Milliseconds() < a.cfg.FlushTolerance.Milliseconds()
}

// detectChanges compares against the previous accepted sample. Must hold a.mu.
func (a *Aggregator) detectChanges(candidate domain.Activity, owner domain.WindowOwner) []domain.SystemEvent {
	if a.last == nil {
		return nil
	}

	var events []domain.SystemEvent
	details := &domain.EventDetails{PID: owner.ProcessID, Path: owner.Path}

	if a.last.Owner.Name != candidate.Owner.Name {
		events = append(events, domain.SystemEvent{
			ID:        ulid.Make().String(),
			Type:      domain.EventProcessSwitch,
			Content:   fmt.Sprintf("Switched from %s to %s", a.last.Owner.Name, candidate.Owner.Name),
			Timestamp: candidate.Timestamp,
			Details:   details,
		})
	}
	if a.last.Title != candidate.Title {
		events = append(events, domain.SystemEvent{
			ID:        ulid.Make().String(),
			Type:      domain.EventWindowFocus,
			Content:   fmt.Sprintf("Focused %q in %s", candidate.Title, candidate.Owner.Name),
			Timestamp: candidate.Timestamp,
			Details:   details,
		})
	}
	return events
}

func findActivity(activities []domain.Activity, title, ownerName string) int {
	for i := range activities {
		if activities[i].Matches(title, ownerName) {
			return i
		}
	}
	return -1
}

// LastActivity returns the previous accepted sample, or nil before the first one.
func (a *Aggregator) LastActivity() *domain.Activity {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.last == nil {
		return nil
	}
	last := *a.last
	return &last
}

// Reset forgets the previous sample so a restarted session does not report
// a switch against the last session's window.
func (a *Aggregator) Reset() {
	a.mu.Lock()
	a.last = nil
	a.mu.Unlock()
}

// SaveGoals replaces today's goals and writes them through. Blank entries are dropped.
func (a *Aggregator) SaveGoals(ctx context.Context, goals []string) ([]string, error) {
	cleaned := make([]string, 0, len(goals))
	for _, g := range goals {
		if g = strings.TrimSpace(g); g != "" {
			cleaned = append(cleaned, g)
		}
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	key, doc, err := a.resolver.Resolve(ctx, a.clock.Now())
	if err != nil {
		return nil, fmt.Errorf("failed to save goals: %w", err)
	}
	doc.Goals = cleaned
	if err := a.flusher.Flush(ctx, key, doc); err != nil {
		return nil, fmt.Errorf("failed to save goals: %w", err)
	}

	return append([]string(nil), cleaned...), nil
}

// ActivityByDate reads a stored day, bypassing the live cache.
func (a *Aggregator) ActivityByDate(ctx context.Context, date string) (*domain.DayRecord, error) {
	return a.resolver.Lookup(ctx, date)
}

// Flush writes today's document if one is open. Used on shutdown.
func (a *Aggregator) Flush(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	key, doc := a.resolver.Current()
	if doc == nil {
		return nil
	}
	return a.flusher.Flush(ctx, key, doc)
}

// Wait blocks until background flushes have finished.
func (a *Aggregator) Wait() {
	a.flusher.Wait()
}
