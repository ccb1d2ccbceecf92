package infra

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/google/shlex"
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/activity_mon/internal/domain"
)

// DefaultProbeTimeout bounds a single probe call.
const DefaultProbeTimeout = 3 * time.Second

// frontWindowScript prints "pid\ntitle\nappName" for the frontmost application.
const frontWindowScript = `tell application "System Events"
	set frontApp to first application process whose frontmost is true
	set appName to name of frontApp
	set appPid to unix id of frontApp
	set winTitle to ""
	try
		set winTitle to name of front window of frontApp
	end try
end tell
return (appPid as text) & linefeed & winTitle & linefeed & appName`

// ProbeConfig selects how the focused window is queried.
type ProbeConfig struct {
	// Command overrides the platform probe. It must print the owning PID on the
	// first line and the window title on the second; an optional third line
	// overrides the owner name.
	Command string
	Timeout time.Duration
	GOOS    string
}

// CommandWindowProbe implements domain.WindowProbe by shelling out to OS tools.
type CommandWindowProbe struct {
	argv    []string
	timeout time.Duration
	goos    string
	runner  CommandRunner
	pm      domain.ProcessManager
	logger  *zap.Logger
}

// NewCommandWindowProbe creates the probe for the configured platform.
func NewCommandWindowProbe(cfg ProbeConfig, runner CommandRunner, pm domain.ProcessManager, logger *zap.Logger) (*CommandWindowProbe, error) {
	if cfg.GOOS == "" {
		cfg.GOOS = runtime.GOOS
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultProbeTimeout
	}
	if runner == nil {
		runner = &RealCommandRunner{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	var argv []string
	if strings.TrimSpace(cfg.Command) != "" {
		parts, err := shlex.Split(cfg.Command)
		if err != nil {
			return nil, fmt.Errorf("failed to parse probe command: %w", err)
		}
		argv = parts
	} else {
		argv = platformProbeCommand(cfg.GOOS)
	}

	return &CommandWindowProbe{
		argv:    argv,
		timeout: cfg.Timeout,
		goos:    cfg.GOOS,
		runner:  runner,
		pm:      pm,
		logger:  logger,
	}, nil
}

func platformProbeCommand(goos string) []string {
	switch goos {
	case "darwin":
		return []string{"osascript", "-e", frontWindowScript}
	case "linux":
		return []string{"xdotool", "getactivewindow", "getwindowpid", "getwindowname"}
	default:
		return nil
	}
}

// Probe returns the focused window, or nil when no window has focus.
func (p *CommandWindowProbe) Probe(ctx context.Context) (*domain.WindowInfo, error) {
	if len(p.argv) == 0 {
		return nil, &domain.ProbeError{
			Message: fmt.Sprintf("window probe not supported on %s", p.goos),
			Code:    127,
		}
	}
	if p.goos == "linux" && os.Getenv("DISPLAY") == "" && os.Getenv("WAYLAND_DISPLAY") != "" {
		return nil, &domain.ProbeError{
			Message: "wayland session without X11 display",
			Code:    127,
		}
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	out, err := p.runner.Output(ctx, p.argv[0], p.argv[1:]...)
	if err != nil {
		return nil, err
	}

	return p.parse(string(out))
}

// parse reads "pid\ntitle[\nowner]" output.
func (p *CommandWindowProbe) parse(out string) (*domain.WindowInfo, error) {
	lines := strings.Split(strings.TrimRight(out, "\r\n"), "\n")
	if len(lines) == 0 || strings.TrimSpace(lines[0]) == "" {
		return nil, nil
	}

	pid, err := strconv.Atoi(strings.TrimSpace(lines[0]))
	if err != nil {
		return nil, &domain.ProbeError{
			Message: "unexpected probe output",
			Stdout:  out,
			Err:     err,
		}
	}

	info := &domain.WindowInfo{Owner: domain.WindowOwner{ProcessID: pid}}
	if len(lines) > 1 {
		info.Title = strings.TrimSpace(lines[1])
	}
	if len(lines) > 2 {
		info.Owner.Name = strings.TrimSpace(lines[2])
	}

	if p.pm != nil {
		name, path, err := p.pm.Describe(pid)
		if err != nil {
			// Process may have exited between the query and the lookup
			p.logger.Debug("failed to describe window owner", zap.Int("pid", pid), zap.Error(err))
		}
		if info.Owner.Name == "" {
			info.Owner.Name = name
		}
		info.Owner.Path = path
	}

	if info.Owner.Name == "" {
		return nil, nil
	}
	return info, nil
}

// Ensure CommandWindowProbe implements domain.WindowProbe.
var _ domain.WindowProbe = (*CommandWindowProbe)(nil)
