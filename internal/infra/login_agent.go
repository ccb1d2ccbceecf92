package infra

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"text/template"
)

// LoginAgentLabel names the launchd job and the systemd unit.
const LoginAgentLabel = "com.focusd.actmon"

// LaunchAgent plist template (runs as user at login)
const launchAgentTemplate = `<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE plist PUBLIC "-//Apple//DTD PLIST 1.0//EN" "http://www.apple.com/DTDs/PropertyList-1.0.dtd">
<plist version="1.0">
<dict>
    <key>Label</key>
    <string>{{.Label}}</string>

    <key>ProgramArguments</key>
    <array>
        <string>{{.ExecutablePath}}</string>
        <string>run</string>
    </array>

    <key>RunAtLoad</key>
    <true/>

    <key>KeepAlive</key>
    <dict>
        <key>Crashed</key>
        <true/>
    </dict>

    <key>StandardErrorPath</key>
    <string>{{.ErrorLogPath}}</string>

    <key>ProcessType</key>
    <string>Interactive</string>

    <key>ThrottleInterval</key>
    <integer>10</integer>
</dict>
</plist>
`

// systemd user unit; the graphical session provides DISPLAY.
const systemdUnitTemplate = `[Unit]
Description=actmon focused-window activity tracker
PartOf=graphical-session.target
After=graphical-session.target

[Service]
ExecStart="{{.ExecutablePath}}" run
Restart=on-failure
RestartSec=10

[Install]
WantedBy=graphical-session.target
`

type agentConfig struct {
	Label          string
	ExecutablePath string
	ErrorLogPath   string
}

// LoginAgent installs actmon as a per-user service started at login:
// a LaunchAgent on macOS, a systemd user unit on Linux.
type LoginAgent struct {
	goos    string
	path    string
	logDir  string
	runner  CommandRunner
	tmplStr string
}

// NewLoginAgent creates an agent for the running platform and user.
func NewLoginAgent(runner CommandRunner, logDir string) (*LoginAgent, error) {
	return NewLoginAgentForOS(runtime.GOOS, GetRealUserHome(), logDir, runner)
}

// NewLoginAgentForOS creates an agent rooted at home (for testing).
func NewLoginAgentForOS(goos, home, logDir string, runner CommandRunner) (*LoginAgent, error) {
	if runner == nil {
		runner = &RealCommandRunner{}
	}
	a := &LoginAgent{goos: goos, logDir: logDir, runner: runner}
	switch goos {
	case "darwin":
		a.path = filepath.Join(home, "Library", "LaunchAgents", LoginAgentLabel+".plist")
		a.tmplStr = launchAgentTemplate
	case "linux":
		a.path = filepath.Join(home, ".config", "systemd", "user", "actmon.service")
		a.tmplStr = systemdUnitTemplate
	default:
		return nil, fmt.Errorf("login agent not supported on %s", goos)
	}
	return a, nil
}

// Path returns the plist or unit file location.
func (a *LoginAgent) Path() string {
	return a.path
}

func (a *LoginAgent) render(execPath string) ([]byte, error) {
	tmpl, err := template.New("agent").Parse(a.tmplStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse agent template: %w", err)
	}

	var buf bytes.Buffer
	err = tmpl.Execute(&buf, agentConfig{
		Label:          LoginAgentLabel,
		ExecutablePath: execPath,
		ErrorLogPath:   filepath.Join(a.logDir, "actmon.stderr.log"),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to execute agent template: %w", err)
	}
	return buf.Bytes(), nil
}

// Install writes the agent file and registers it with the service manager.
// Reinstalling replaces an existing definition.
func (a *LoginAgent) Install(ctx context.Context, execPath string) error {
	content, err := a.render(execPath)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(a.path), 0755); err != nil {
		return fmt.Errorf("failed to create agent directory: %w", err)
	}

	if a.IsInstalled() {
		// Unload first (ignore errors if not loaded)
		_ = a.unload(ctx)
	}
	if err := os.WriteFile(a.path, content, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", a.path, err)
	}
	return a.load(ctx)
}

// Uninstall unregisters the agent and removes its file.
func (a *LoginAgent) Uninstall(ctx context.Context) error {
	if !a.IsInstalled() {
		return nil
	}
	_ = a.unload(ctx)
	if err := os.Remove(a.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to remove %s: %w", a.path, err)
	}
	if a.goos == "linux" {
		_, _ = a.runner.Output(ctx, "systemctl", "--user", "daemon-reload")
	}
	return nil
}

// IsInstalled checks if the agent file exists.
func (a *LoginAgent) IsInstalled() bool {
	_, err := os.Stat(a.path)
	return err == nil
}

// NeedsUpdate reports whether an installed agent points at a different binary.
func (a *LoginAgent) NeedsUpdate(execPath string) bool {
	if !a.IsInstalled() {
		return false
	}
	current, err := os.ReadFile(a.path)
	if err != nil {
		return true
	}
	expected, err := a.render(execPath)
	if err != nil {
		return true
	}
	return !bytes.Equal(current, expected)
}

func (a *LoginAgent) load(ctx context.Context) error {
	var err error
	switch a.goos {
	case "darwin":
		_, err = a.runner.Output(ctx, "launchctl", "load", a.path)
	case "linux":
		if _, err = a.runner.Output(ctx, "systemctl", "--user", "daemon-reload"); err == nil {
			_, err = a.runner.Output(ctx, "systemctl", "--user", "enable", "--now", "actmon.service")
		}
	}
	if err != nil {
		return fmt.Errorf("failed to load login agent: %w", err)
	}
	return nil
}

func (a *LoginAgent) unload(ctx context.Context) error {
	var err error
	switch a.goos {
	case "darwin":
		_, err = a.runner.Output(ctx, "launchctl", "unload", a.path)
	case "linux":
		_, err = a.runner.Output(ctx, "systemctl", "--user", "disable", "--now", "actmon.service")
	}
	return err
}
