package usecase

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/eliteGoblin/focusd/activity_mon/internal/domain"
)

// probeStep is one scripted probe response.
type probeStep struct {
	info *domain.WindowInfo
	err  error
}

// mockProbe replays scripted responses, then repeats the last one.
type mockProbe struct {
	mu     sync.Mutex
	steps  []probeStep
	calls  int
	before func() // runs inside Probe, e.g. to cancel the context
}

func (m *mockProbe) Probe(ctx context.Context) (*domain.WindowInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.before != nil {
		m.before()
	}
	if len(m.steps) == 0 {
		return nil, nil
	}
	i := m.calls
	if i >= len(m.steps) {
		i = len(m.steps) - 1
	}
	m.calls++
	return m.steps[i].info, m.steps[i].err
}

func (m *mockProbe) push(info *domain.WindowInfo, err error) {
	m.mu.Lock()
	m.steps = append(m.steps, probeStep{info: info, err: err})
	m.mu.Unlock()
}

func window(title, owner string) *domain.WindowInfo {
	return &domain.WindowInfo{
		Title: title,
		Owner: domain.WindowOwner{Name: owner, Path: "/apps/" + owner, ProcessID: 100},
	}
}

// mockStore is an in-memory domain.DocumentStore.
type mockStore struct {
	mu       sync.Mutex
	docs     map[string]*domain.DayDocument
	writes   map[string]int
	writeErr error
	openErr  error
	delay    time.Duration
	onWrite  func() // runs at the start of every Write
}

func newMockStore() *mockStore {
	return &mockStore{
		docs:   make(map[string]*domain.DayDocument),
		writes: make(map[string]int),
	}
}

func (m *mockStore) Open(ctx context.Context, key string) (*domain.DayDocument, bool, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.openErr != nil {
		return nil, false, false, m.openErr
	}
	doc, ok := m.docs[key]
	if !ok {
		return domain.NewDayDocument(), false, false, nil
	}
	out := doc.Clone()
	migrated := out.Migrate()
	return out, true, migrated, nil
}

func (m *mockStore) Read(ctx context.Context, key string) (*domain.DayDocument, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.docs[key]
	if !ok {
		return domain.NewDayDocument(), false, nil
	}
	return doc.Clone(), true, nil
}

func (m *mockStore) Write(ctx context.Context, key string, doc *domain.DayDocument) error {
	if m.onWrite != nil {
		m.onWrite()
	}
	if m.delay > 0 {
		time.Sleep(m.delay)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.writeErr != nil {
		return m.writeErr
	}
	m.docs[key] = doc.Clone()
	m.writes[key]++
	return nil
}

func (m *mockStore) Location(key string) string {
	return "mem://" + key
}

func (m *mockStore) stored(key string) *domain.DayDocument {
	m.mu.Lock()
	defer m.mu.Unlock()
	if doc, ok := m.docs[key]; ok {
		return doc.Clone()
	}
	return nil
}

func (m *mockStore) setWriteErr(err error) {
	m.mu.Lock()
	m.writeErr = err
	m.mu.Unlock()
}

// mockPublisher records every notification.
type mockPublisher struct {
	mu         sync.Mutex
	activities []domain.Activity
	events     []domain.SystemEvent
	failures   []domain.MonitorFailure
	dead       bool
}

func (m *mockPublisher) PublishActivity(a domain.Activity) {
	m.mu.Lock()
	m.activities = append(m.activities, a)
	m.mu.Unlock()
}

func (m *mockPublisher) PublishSystemEvent(e domain.SystemEvent) {
	m.mu.Lock()
	m.events = append(m.events, e)
	m.mu.Unlock()
}

func (m *mockPublisher) PublishFailure(f domain.MonitorFailure) {
	m.mu.Lock()
	m.failures = append(m.failures, f)
	m.mu.Unlock()
}

func (m *mockPublisher) Alive() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return !m.dead
}

func (m *mockPublisher) eventTypes() []domain.SystemEventType {
	m.mu.Lock()
	defer m.mu.Unlock()
	types := make([]domain.SystemEventType, 0, len(m.events))
	for _, e := range m.events {
		types = append(types, e.Type)
	}
	return types
}

func (m *mockPublisher) lastActivity() domain.Activity {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.activities[len(m.activities)-1]
}

// mockClock is advanced by hand.
type mockClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *mockClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *mockClock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

func (c *mockClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// mockObserver counts flush outcomes per day key.
type mockObserver struct {
	mu       sync.Mutex
	flushes  map[string]int
	failures []error
}

func newMockObserver() *mockObserver {
	return &mockObserver{flushes: make(map[string]int)}
}

func (m *mockObserver) FlushCompleted(key string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.flushes[key]++
	if err != nil {
		m.failures = append(m.failures, err)
	}
}

func (m *mockObserver) count(key string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.flushes[key]
}

func (m *mockObserver) failureCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.failures)
}

var errDiskFull = errors.New("disk full")
