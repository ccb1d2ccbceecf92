// Package domain contains core business entities and interfaces.
// This is the innermost layer in Clean Architecture - no external dependencies.
package domain

import (
	"encoding/json"
	"strconv"
	"time"
)

// CurrentSchemaVersion is the day document layout written by this build.
const CurrentSchemaVersion = 1

// DayKeyLayout formats a local date as a day key (YYYY-MM-DD).
const DayKeyLayout = "2006-01-02"

// ReadableLayout renders activity timestamps for display.
const ReadableLayout = "1/2/2006, 3:04:05 PM"

// DayKey returns the day key for t in t's location.
func DayKey(t time.Time) string {
	return t.Format(DayKeyLayout)
}

// FormatReadable renders an epoch-ms timestamp in local time.
func FormatReadable(ms int64) string {
	return time.UnixMilli(ms).Local().Format(ReadableLayout)
}

// Owner identifies the application that owns a window.
type Owner struct {
	Name string `json:"name"`
	Path string `json:"path"`
}

// Activity is the accumulated time for one (title, owner name) pair within a day.
type Activity struct {
	Title             string `json:"title"`
	Owner             Owner  `json:"owner"`
	Timestamp         int64  `json:"timestamp"`                   // epoch ms of first sighting
	TimestampReadable string `json:"timestampReadable,omitempty"` // cached rendering of Timestamp
	Duration          int64  `json:"duration"`                    // ms
}

// Matches reports whether the activity is keyed by the given title and owner name.
func (a Activity) Matches(title, ownerName string) bool {
	return a.Title == title && a.Owner.Name == ownerName
}

// UnmarshalJSON tolerates a missing or non-numeric duration by reading it as 0.
// Files written by older builds sometimes carried null or string durations.
func (a *Activity) UnmarshalJSON(data []byte) error {
	type alias Activity
	var raw struct {
		alias
		Duration json.RawMessage `json:"duration"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*a = Activity(raw.alias)
	a.Duration = parseDuration(raw.Duration)
	return nil
}

func parseDuration(raw json.RawMessage) int64 {
	if len(raw) == 0 {
		return 0
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return 0
		}
		n = json.Number(s)
	}
	if v, err := n.Int64(); err == nil {
		return v
	}
	if f, err := strconv.ParseFloat(string(n), 64); err == nil {
		return int64(f)
	}
	return 0
}

// DayDocument is the persisted shape of one calendar day.
type DayDocument struct {
	SchemaVersion int        `json:"schemaVersion"`
	Activities    []Activity `json:"activities"`
	Goals         []string   `json:"goals"`
}

// NewDayDocument returns an empty document in the current schema.
func NewDayDocument() *DayDocument {
	return &DayDocument{
		SchemaVersion: CurrentSchemaVersion,
		Activities:    []Activity{},
		Goals:         []string{},
	}
}

// Clone returns a deep copy, safe to hand to another goroutine.
func (d *DayDocument) Clone() *DayDocument {
	out := &DayDocument{SchemaVersion: d.SchemaVersion}
	out.Activities = append(make([]Activity, 0, len(d.Activities)), d.Activities...)
	out.Goals = append(make([]string, 0, len(d.Goals)), d.Goals...)
	return out
}

// Migrate brings a freshly decoded document up to CurrentSchemaVersion,
// backfilling defaults. Returns true if anything changed.
func (d *DayDocument) Migrate() bool {
	changed := false
	if d.Activities == nil {
		d.Activities = []Activity{}
		changed = true
	}
	if d.Goals == nil {
		d.Goals = []string{}
		changed = true
	}
	for i := range d.Activities {
		if d.Activities[i].Duration < 0 {
			d.Activities[i].Duration = 0
			changed = true
		}
		if d.Activities[i].TimestampReadable == "" && d.Activities[i].Timestamp > 0 {
			d.Activities[i].TimestampReadable = FormatReadable(d.Activities[i].Timestamp)
			changed = true
		}
	}
	if d.SchemaVersion < CurrentSchemaVersion {
		d.SchemaVersion = CurrentSchemaVersion
		changed = true
	}
	return changed
}

// DayRecord is the result of a historical lookup.
type DayRecord struct {
	Date       string     `json:"date" yaml:"date"`
	Goals      []string   `json:"goals" yaml:"goals"`
	Activities []Activity `json:"activities" yaml:"activities"`
	Exists     bool       `json:"exists" yaml:"exists"`
}

// WindowOwner is the process owning the focused window.
type WindowOwner struct {
	Name      string
	Path      string
	ProcessID int
}

// WindowInfo is a single probe result.
type WindowInfo struct {
	Title string
	Owner WindowOwner
}

// SystemEventType classifies transitions between ticks.
type SystemEventType string

const (
	EventProcessSwitch SystemEventType = "PROCESS_SWITCH"
	EventWindowFocus   SystemEventType = "WINDOW_FOCUS"
)

// EventDetails carries the process behind a system event.
type EventDetails struct {
	PID  int    `json:"pid"`
	Path string `json:"path"`
}

// SystemEvent is an ephemeral transition notification. Never persisted.
type SystemEvent struct {
	ID        string          `json:"id"`
	Type      SystemEventType `json:"type"`
	Content   string          `json:"content"`
	Timestamp int64           `json:"timestamp"`
	Details   *EventDetails   `json:"details,omitempty"`
}

// MonitorState is the controller lifecycle state.
type MonitorState string

const (
	StateIdle           MonitorState = "idle"
	StateStarting       MonitorState = "starting"
	StateRunning        MonitorState = "running"
	StateStoppedOnError MonitorState = "stopped_on_error"
)

// MonitorFailure is published once when a running monitor stops on a probe error.
type MonitorFailure struct {
	Category    FailureCategory `json:"category"`
	Message     string          `json:"message"`
	Remediation string          `json:"remediation"`
	At          time.Time       `json:"at"`
}

// FlushStats counts persistence outcomes for observability.
type FlushStats struct {
	Attempts  int64  `json:"attempts"`
	Failures  int64  `json:"failures"`
	LastError string `json:"last_error,omitempty"`
}
