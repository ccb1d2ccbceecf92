package domain

import (
	"context"
	"time"
)

// WindowProbe queries the OS for the focused window.
// Implementation: osascript on macOS, xdotool on Linux.
type WindowProbe interface {
	// Probe returns the focused window, or nil if nothing is focused.
	Probe(ctx context.Context) (*WindowInfo, error)
}

// PermissionChecker performs the platform permission preflight.
type PermissionChecker interface {
	// Check reports whether the window-inspection capability is granted.
	// It must not block on user interaction.
	Check(ctx context.Context) (trusted bool, err error)

	// RequestAccess shows the platform remediation prompt (settings pane, dialog).
	RequestAccess(ctx context.Context) error
}

// ProcessManager handles OS process lookups.
// Implementation: uses gopsutil for cross-platform support.
type ProcessManager interface {
	// Describe returns the executable name and path for a PID.
	Describe(pid int) (name, path string, err error)

	// CurrentName returns the name of this process.
	CurrentName() string

	// GetCurrentPID returns the current process PID.
	GetCurrentPID() int
}

// DocumentStore persists day documents by day key.
// Implementations: JSON file per day, or an encrypted SQLCipher table.
type DocumentStore interface {
	// Open reads the document for key, creating the backing location if needed.
	// existed is false when nothing was stored yet; migrated is true when
	// defaults had to be backfilled.
	Open(ctx context.Context, key string) (doc *DayDocument, existed, migrated bool, err error)

	// Read returns the stored document without creating anything.
	Read(ctx context.Context, key string) (doc *DayDocument, exists bool, err error)

	// Write replaces the stored document for key.
	Write(ctx context.Context, key string, doc *DayDocument) error

	// Location describes where key is stored (file path or table row).
	Location(key string) string
}

// Publisher delivers core notifications to observers. Fire-and-forget.
type Publisher interface {
	PublishActivity(activity Activity)
	PublishSystemEvent(event SystemEvent)
	PublishFailure(failure MonitorFailure)

	// Alive reports whether the surface being reported to still exists.
	Alive() bool
}

// FlushObserver receives the outcome of every persistence attempt.
type FlushObserver interface {
	FlushCompleted(key string, err error)
}

// Classifier rewrites window titles according to a fixed rule table.
type Classifier interface {
	Classify(ownerName, title string) string
}

// Clock supplies wall-clock time. Injected so tests can cross midnight.
type Clock interface {
	Now() time.Time
}

// Scheduler runs a repeating task until ctx is done or the task returns an error.
// Runs never overlap: the next run is scheduled after the previous one returns.
type Scheduler interface {
	Every(ctx context.Context, interval time.Duration, task func(ctx context.Context) error) error
}

// KeyProvider abstracts the source of encryption keys.
type KeyProvider interface {
	// GetKey returns the encryption key bytes.
	GetKey() ([]byte, error)

	// StoreKey persists a new encryption key.
	StoreKey(key []byte) error

	// KeyExists checks if a key has been generated.
	KeyExists() bool
}

// SystemClock is the real wall clock.
type SystemClock struct{}

// Now returns time.Now().
func (SystemClock) Now() time.Time {
	return time.Now()
}
