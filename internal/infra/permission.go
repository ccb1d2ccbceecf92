package infra

import (
	"context"
	"errors"
	"runtime"
	"strings"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/activity_mon/internal/domain"
)

const (
	accessibilityQuery = `tell application "System Events" to get UI elements enabled`
	accessibilityPane  = "x-apple.systempreferences:com.apple.preference.security?Privacy_Accessibility"
)

// PermissionCheckerImpl implements domain.PermissionChecker.
// Only macOS gates window inspection behind a user grant; other platforms
// report trusted and leave failures to the canary probe.
type PermissionCheckerImpl struct {
	goos   string
	runner CommandRunner
	logger *zap.Logger
}

// NewPermissionChecker creates a checker for the running platform.
func NewPermissionChecker(runner CommandRunner, logger *zap.Logger) *PermissionCheckerImpl {
	return NewPermissionCheckerForOS(runtime.GOOS, runner, logger)
}

// NewPermissionCheckerForOS creates a checker for a specific platform (for testing).
func NewPermissionCheckerForOS(goos string, runner CommandRunner, logger *zap.Logger) *PermissionCheckerImpl {
	if runner == nil {
		runner = &RealCommandRunner{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PermissionCheckerImpl{goos: goos, runner: runner, logger: logger}
}

// Check queries the accessibility trust state without prompting.
func (c *PermissionCheckerImpl) Check(ctx context.Context) (bool, error) {
	if c.goos != "darwin" {
		return true, nil
	}

	out, err := c.runner.Output(ctx, "osascript", "-e", accessibilityQuery)
	if err != nil {
		if domain.ClassifyProbeError(err) == domain.FailurePermission {
			return false, nil
		}
		return false, err
	}
	return strings.TrimSpace(string(out)) == "true", nil
}

// RequestAccess opens the Accessibility settings pane.
func (c *PermissionCheckerImpl) RequestAccess(ctx context.Context) error {
	if c.goos != "darwin" {
		return nil
	}
	c.logger.Info("opening accessibility settings")
	if _, err := c.runner.Output(ctx, "open", accessibilityPane); err != nil {
		return errors.Join(domain.ErrPermissionDenied, err)
	}
	return nil
}

// Ensure PermissionCheckerImpl implements domain.PermissionChecker.
var _ domain.PermissionChecker = (*PermissionCheckerImpl)(nil)
