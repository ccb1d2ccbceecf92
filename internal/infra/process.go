// Package infra implements infrastructure concerns (process, probe, storage, locking).
package infra

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/shirou/gopsutil/v3/process"

	"github.com/eliteGoblin/focusd/activity_mon/internal/domain"
)

// ProcessManagerImpl implements domain.ProcessManager using gopsutil.
type ProcessManagerImpl struct {
	selfName string
}

// NewProcessManager creates a new process manager.
func NewProcessManager() domain.ProcessManager {
	return &ProcessManagerImpl{selfName: detectSelfName()}
}

// Describe returns the executable name and path for a PID.
// The path is best effort: some platforms hide other users' executables.
func (pm *ProcessManagerImpl) Describe(pid int) (string, string, error) {
	p, err := process.NewProcess(int32(pid))
	if err != nil {
		return "", "", err
	}

	name, err := p.Name()
	if err != nil {
		return "", "", err
	}

	exe, err := p.Exe()
	if err != nil {
		exe = ""
	}

	return name, exe, nil
}

// CurrentName returns the name of this process.
func (pm *ProcessManagerImpl) CurrentName() string {
	return pm.selfName
}

// GetCurrentPID returns the current process PID.
func (pm *ProcessManagerImpl) GetCurrentPID() int {
	return os.Getpid()
}

func detectSelfName() string {
	if p, err := process.NewProcess(int32(os.Getpid())); err == nil {
		if name, err := p.Name(); err == nil && name != "" {
			return name
		}
	}
	exe, err := os.Executable()
	if err != nil {
		return "actmon"
	}
	return strings.TrimSuffix(filepath.Base(exe), filepath.Ext(exe))
}

// Ensure ProcessManagerImpl implements domain.ProcessManager.
var _ domain.ProcessManager = (*ProcessManagerImpl)(nil)
