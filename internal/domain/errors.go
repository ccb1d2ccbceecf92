package domain

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
)

// Sentinel errors for the monitor failure taxonomy.
var (
	// ErrPermissionDenied - OS capability not granted; needs user remediation, never retried.
	ErrPermissionDenied = errors.New("permission denied")

	// ErrProbeUnavailable - the probe mechanism is missing or broken; start aborted.
	ErrProbeUnavailable = errors.New("window probe unavailable")

	// ErrProbeTransient - probe failed mid-run; the session stops, the app does not.
	ErrProbeTransient = errors.New("window probe failed")

	// ErrPersistence - a flush failed; recovered locally.
	ErrPersistence = errors.New("persistence failure")

	// ErrInvalidDate - a history lookup was given something other than YYYY-MM-DD.
	ErrInvalidDate = errors.New("invalid date key")

	// ErrStoreKey - the encrypted store's key is missing or does not open the database.
	ErrStoreKey = errors.New("store key does not open the encrypted database")
)

// ProbeError is returned by probe implementations that shell out to OS tools.
type ProbeError struct {
	Message string
	Stderr  string
	Stdout  string
	Code    int
	Err     error
}

func (e *ProbeError) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if s := strings.TrimSpace(e.Stderr); s != "" {
		return fmt.Sprintf("%s: %s", msg, s)
	}
	return msg
}

func (e *ProbeError) Unwrap() error {
	return e.Err
}

// FailureCategory drives which remediation text the user sees.
type FailureCategory string

const (
	FailurePermission        FailureCategory = "permission"
	FailureMissingDependency FailureCategory = "missing_dependency"
	FailureUnknown           FailureCategory = "unknown"
)

// Substrings seen in stderr when the OS refuses window inspection.
var permissionSignatures = []string{
	"not authorized",
	"not allowed assistive access",
	"not allowed to send apple events",
	"-1743",
	"-25211",
	"permission denied",
	"access denied",
}

// Signatures of a probe binary or display that is not there at all.
var missingDependencySignatures = []string{
	"command not found",
	"executable file not found",
	"no such file or directory",
	"cannot open display",
	"can't open display",
	"wayland",
}

// ProbeFailure is a classified probe error.
type ProbeFailure struct {
	Kind        error // ErrProbeUnavailable or ErrProbeTransient
	Category    FailureCategory
	Remediation string
	Cause       error
}

func (f *ProbeFailure) Error() string {
	return fmt.Sprintf("%v (%s): %v", f.Kind, f.Category, f.Cause)
}

// Is matches the failure kind so callers can use errors.Is with the sentinels.
func (f *ProbeFailure) Is(target error) bool {
	return target == f.Kind
}

func (f *ProbeFailure) Unwrap() error {
	return f.Cause
}

// ClassifyProbeError inspects a probe error for known failure signatures.
func ClassifyProbeError(err error) FailureCategory {
	if err == nil {
		return FailureUnknown
	}
	if errors.Is(err, ErrPermissionDenied) {
		return FailurePermission
	}

	var haystack string
	var pe *ProbeError
	if errors.As(err, &pe) {
		if pe.Code == 127 {
			return FailureMissingDependency
		}
		haystack = strings.ToLower(pe.Stderr + "\n" + pe.Message)
	} else {
		haystack = strings.ToLower(err.Error())
	}

	// Permission wins: "permission denied" also shows up next to a present binary.
	for _, sig := range permissionSignatures {
		if strings.Contains(haystack, sig) {
			return FailurePermission
		}
	}
	for _, sig := range missingDependencySignatures {
		if strings.Contains(haystack, sig) {
			return FailureMissingDependency
		}
	}
	return FailureUnknown
}

// NewProbeFailure classifies err and attaches remediation text for this platform.
func NewProbeFailure(kind error, err error) *ProbeFailure {
	category := ClassifyProbeError(err)
	return &ProbeFailure{
		Kind:        kind,
		Category:    category,
		Remediation: Remediation(runtime.GOOS, category),
		Cause:       err,
	}
}

// Remediation returns user-facing guidance for a failure category on goos.
func Remediation(goos string, category FailureCategory) string {
	switch category {
	case FailurePermission:
		switch goos {
		case "darwin":
			return "Grant Accessibility and Automation access to actmon in System Settings > Privacy & Security, then restart it."
		case "linux":
			return "The window system refused the query. Check that actmon runs inside your desktop session."
		default:
			return "Grant the tracker permission to inspect windows, then restart it."
		}
	case FailureMissingDependency:
		switch goos {
		case "darwin":
			return "osascript is required. Check that /usr/bin/osascript exists."
		case "linux":
			return "Install xdotool and run under an X11 session (Wayland is not supported)."
		default:
			return "Window tracking is not supported on this platform."
		}
	default:
		return "Window tracking failed for an unknown reason. Check the log for details."
	}
}
