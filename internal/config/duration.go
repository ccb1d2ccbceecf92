package config

import (
	"fmt"
	"strings"
	"time"
)

// DurationOrDefault parses a duration string and falls back to defaultValue when empty.
func DurationOrDefault(value string, defaultValue string) (time.Duration, error) {
	candidate := strings.TrimSpace(value)
	if candidate == "" {
		candidate = strings.TrimSpace(defaultValue)
	}
	if candidate == "" {
		return 0, fmt.Errorf("duration value is empty")
	}

	d, err := time.ParseDuration(candidate)
	if err != nil {
		return 0, fmt.Errorf("parse duration %q: %w", candidate, err)
	}
	return d, nil
}

// Durations returns the poll interval, flush window and flush tolerance.
func (m MonitorConfig) Durations() (poll, window, tolerance time.Duration, err error) {
	if poll, err = DurationOrDefault(m.PollInterval, DefaultPollInterval); err != nil {
		return 0, 0, 0, fmt.Errorf("monitor.poll_interval: %w", err)
	}
	if window, err = DurationOrDefault(m.FlushWindow, DefaultFlushWindow); err != nil {
		return 0, 0, 0, fmt.Errorf("monitor.flush_window: %w", err)
	}
	if tolerance, err = DurationOrDefault(m.FlushTolerance, DefaultFlushTolerance); err != nil {
		return 0, 0, 0, fmt.Errorf("monitor.flush_tolerance: %w", err)
	}
	return poll, window, tolerance, nil
}

// TimeoutDuration parses probe.timeout.
func (p ProbeConfig) TimeoutDuration() (time.Duration, error) {
	d, err := DurationOrDefault(p.Timeout, DefaultProbeTimeout)
	if err != nil {
		return 0, fmt.Errorf("probe.timeout: %w", err)
	}
	return d, nil
}
