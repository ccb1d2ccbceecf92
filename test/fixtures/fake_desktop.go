// Package fixtures provides test helpers for integration tests.
package fixtures

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// FakeDesktop stands in for the window system. The focused window lives in a
// file that a probe command prints, so the real probe, command runner and
// output parser run unchanged.
type FakeDesktop struct {
	Dir  string
	path string
}

// NewFakeDesktop creates a desktop with nothing focused.
func NewFakeDesktop(dir string) (*FakeDesktop, error) {
	d := &FakeDesktop{Dir: dir, path: filepath.Join(dir, "focused-window")}
	if err := d.Blur(); err != nil {
		return nil, err
	}
	return d, nil
}

// Focus makes a window owned by this process, reported under owner, the focused one.
func (d *FakeDesktop) Focus(owner, title string) error {
	content := fmt.Sprintf("%d\n%s\n%s\n", os.Getpid(), title, owner)
	return os.WriteFile(d.path, []byte(content), 0644)
}

// Blur leaves no window focused.
func (d *FakeDesktop) Blur() error {
	return os.WriteFile(d.path, nil, 0644)
}

// Break makes the next probe fail as if the probe binary was gone.
func (d *FakeDesktop) Break() error {
	return os.Remove(d.path)
}

// ProbeCommand returns the probe override that reads the focused window.
func (d *FakeDesktop) ProbeCommand() string {
	return fmt.Sprintf("cat %q", d.path)
}

// StepClock is a manually advanced clock.
type StepClock struct {
	mu  sync.Mutex
	now time.Time
}

// NewStepClock starts the clock at t.
func NewStepClock(t time.Time) *StepClock {
	return &StepClock{now: t}
}

// Now returns the current fake time.
func (c *StepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d.
func (c *StepClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}
