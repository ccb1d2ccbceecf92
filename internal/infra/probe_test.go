package infra

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eliteGoblin/focusd/activity_mon/internal/domain"
)

// mockCommandRunner records invocations and returns canned output.
type mockCommandRunner struct {
	output []byte
	err    error
	calls  [][]string
}

func (m *mockCommandRunner) Output(ctx context.Context, name string, args ...string) ([]byte, error) {
	m.calls = append(m.calls, append([]string{name}, args...))
	return m.output, m.err
}

// mockProcessManager describes PIDs from a fixed table.
type mockProcessManager struct {
	names map[int][2]string
}

func (m *mockProcessManager) Describe(pid int) (string, string, error) {
	if v, ok := m.names[pid]; ok {
		return v[0], v[1], nil
	}
	return "", "", errors.New("no such process")
}

func (m *mockProcessManager) CurrentName() string { return "actmon" }
func (m *mockProcessManager) GetCurrentPID() int  { return 1 }

func newTestProbe(t *testing.T, goos, command string, runner CommandRunner) *CommandWindowProbe {
	t.Helper()
	pm := &mockProcessManager{names: map[int][2]string{
		42: {"Code", "/usr/share/code/code"},
	}}
	probe, err := NewCommandWindowProbe(ProbeConfig{GOOS: goos, Command: command}, runner, pm, nil)
	require.NoError(t, err)
	return probe
}

func TestCommandWindowProbe_Linux(t *testing.T) {
	t.Setenv("DISPLAY", ":0")
	runner := &mockCommandRunner{output: []byte("42\nmain.go - project - Code\n")}
	probe := newTestProbe(t, "linux", "", runner)

	info, err := probe.Probe(context.Background())
	require.NoError(t, err)
	require.NotNil(t, info)

	assert.Equal(t, "main.go - project - Code", info.Title)
	assert.Equal(t, "Code", info.Owner.Name)
	assert.Equal(t, "/usr/share/code/code", info.Owner.Path)
	assert.Equal(t, 42, info.Owner.ProcessID)
	assert.Equal(t, []string{"xdotool", "getactivewindow", "getwindowpid", "getwindowname"}, runner.calls[0])
}

func TestCommandWindowProbe_DarwinOwnerNameFromScript(t *testing.T) {
	runner := &mockCommandRunner{output: []byte("42\nInbox\nMail\n")}
	probe := newTestProbe(t, "darwin", "", runner)

	info, err := probe.Probe(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "Mail", info.Owner.Name, "script-reported name wins over process name")
	assert.Equal(t, "/usr/share/code/code", info.Owner.Path)
	assert.Equal(t, "osascript", runner.calls[0][0])
}

func TestCommandWindowProbe_EmptyOutputMeansNoWindow(t *testing.T) {
	t.Setenv("DISPLAY", ":0")
	probe := newTestProbe(t, "linux", "", &mockCommandRunner{output: []byte("\n")})

	info, err := probe.Probe(context.Background())
	require.NoError(t, err)
	assert.Nil(t, info)
}

func TestCommandWindowProbe_UnknownOwnerMeansNoWindow(t *testing.T) {
	t.Setenv("DISPLAY", ":0")
	probe := newTestProbe(t, "linux", "", &mockCommandRunner{output: []byte("999\nsomething\n")})

	info, err := probe.Probe(context.Background())
	require.NoError(t, err)
	assert.Nil(t, info)
}

func TestCommandWindowProbe_CustomCommand(t *testing.T) {
	runner := &mockCommandRunner{output: []byte("42\nfrom script\n")}
	probe := newTestProbe(t, "linux", `/opt/probe --format "pid title"`, runner)

	info, err := probe.Probe(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "from script", info.Title)
	assert.Equal(t, []string{"/opt/probe", "--format", "pid title"}, runner.calls[0])
}

func TestCommandWindowProbe_PropagatesProbeError(t *testing.T) {
	t.Setenv("DISPLAY", ":0")
	runner := &mockCommandRunner{err: &domain.ProbeError{Message: "xdotool failed", Code: 127}}
	probe := newTestProbe(t, "linux", "", runner)

	_, err := probe.Probe(context.Background())
	require.Error(t, err)
	assert.Equal(t, domain.FailureMissingDependency, domain.ClassifyProbeError(err))
}

func TestCommandWindowProbe_GarbageOutput(t *testing.T) {
	t.Setenv("DISPLAY", ":0")
	probe := newTestProbe(t, "linux", "", &mockCommandRunner{output: []byte("not-a-pid\n")})

	_, err := probe.Probe(context.Background())
	var pe *domain.ProbeError
	assert.ErrorAs(t, err, &pe)
}

func TestCommandWindowProbe_UnsupportedPlatform(t *testing.T) {
	probe := newTestProbe(t, "plan9", "", &mockCommandRunner{})

	_, err := probe.Probe(context.Background())
	require.Error(t, err)
	assert.Equal(t, domain.FailureMissingDependency, domain.ClassifyProbeError(err))
}

func TestCommandWindowProbe_WaylandOnly(t *testing.T) {
	t.Setenv("DISPLAY", "")
	t.Setenv("WAYLAND_DISPLAY", "wayland-0")
	runner := &mockCommandRunner{}
	probe := newTestProbe(t, "linux", "", runner)

	_, err := probe.Probe(context.Background())
	require.Error(t, err)
	assert.Empty(t, runner.calls)
	assert.Equal(t, domain.FailureMissingDependency, domain.ClassifyProbeError(err))
}

func TestNewCommandWindowProbe_BadCommand(t *testing.T) {
	_, err := NewCommandWindowProbe(ProbeConfig{Command: `unterminated "quote`}, nil, nil, nil)
	assert.Error(t, err)
}
