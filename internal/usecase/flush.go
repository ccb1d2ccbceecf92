package usecase

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/activity_mon/internal/domain"
)

// FlushRecorder logs persistence outcomes and keeps counters.
type FlushRecorder struct {
	logger *zap.Logger

	attempts atomic.Int64
	failures atomic.Int64

	mu      sync.Mutex
	lastErr string
}

// NewFlushRecorder creates a recorder that logs failures at warn level.
func NewFlushRecorder(logger *zap.Logger) *FlushRecorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FlushRecorder{logger: logger}
}

// FlushCompleted records one write attempt.
func (r *FlushRecorder) FlushCompleted(key string, err error) {
	r.attempts.Add(1)
	if err == nil {
		r.logger.Debug("flushed day document", zap.String("day", key))
		return
	}

	r.failures.Add(1)
	r.mu.Lock()
	r.lastErr = err.Error()
	r.mu.Unlock()
	r.logger.Warn("failed to flush day document",
		zap.String("day", key),
		zap.Error(err))
}

// Stats returns a snapshot of the counters.
func (r *FlushRecorder) Stats() domain.FlushStats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return domain.FlushStats{
		Attempts:  r.attempts.Load(),
		Failures:  r.failures.Load(),
		LastError: r.lastErr,
	}
}

var _ domain.FlushObserver = (*FlushRecorder)(nil)

// snapshot is a detached copy of a day document queued for writing.
type snapshot struct {
	key string
	doc *domain.DayDocument
	seq uint64
}

// flusher writes day documents either inline or on a background goroutine.
// Every request gets a sequence number; a write older than the last
// successful one for the same key is dropped, so a slow background write
// never overwrites newer state.
type flusher struct {
	store    domain.DocumentStore
	observer domain.FlushObserver

	seq atomic.Uint64

	writeMu sync.Mutex
	written map[string]uint64

	mu      sync.Mutex
	pending *snapshot
	running bool
	wg      sync.WaitGroup
}

func newFlusher(store domain.DocumentStore, observer domain.FlushObserver) *flusher {
	return &flusher{
		store:    store,
		observer: observer,
		written:  make(map[string]uint64),
	}
}

// Flush writes doc before returning. The caller must not mutate doc concurrently.
func (f *flusher) Flush(ctx context.Context, key string, doc *domain.DayDocument) error {
	return f.write(ctx, snapshot{key: key, doc: doc, seq: f.seq.Add(1)})
}

// FlushAsync queues a copy of doc for a background write. At most one write
// is in flight; a newer queued snapshot replaces an older one.
func (f *flusher) FlushAsync(key string, doc *domain.DayDocument) {
	s := &snapshot{key: key, doc: doc.Clone(), seq: f.seq.Add(1)}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.pending = s
	if f.running {
		return
	}
	f.running = true
	f.wg.Add(1)
	go f.drain()
}

func (f *flusher) drain() {
	defer f.wg.Done()
	for {
		f.mu.Lock()
		s := f.pending
		f.pending = nil
		if s == nil {
			f.running = false
			f.mu.Unlock()
			return
		}
		f.mu.Unlock()

		// Failures are already reported to the observer.
		_ = f.write(context.Background(), *s)
	}
}

func (f *flusher) write(ctx context.Context, s snapshot) error {
	f.writeMu.Lock()
	defer f.writeMu.Unlock()

	if s.seq <= f.written[s.key] {
		return nil
	}

	err := f.store.Write(ctx, s.key, s.doc)
	if err != nil {
		err = fmt.Errorf("%w: %w", domain.ErrPersistence, err)
	} else {
		f.written[s.key] = s.seq
	}
	if f.observer != nil {
		f.observer.FlushCompleted(s.key, err)
	}
	return err
}

// Wait blocks until no background write is running.
func (f *flusher) Wait() {
	f.wg.Wait()
}
