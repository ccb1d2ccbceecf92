package infra

import (
	"os"
	"os/user"
	"path/filepath"
	"runtime"
	"strings"
)

const (
	appDirName     = "actmon"
	dayFilePrefix  = "activity-"
	dayFileSuffix  = ".json"
	logFileName    = "actmon.log"
	lockFileName   = "actmon.lock"
	encryptedDB    = "activity.db"
	configFileName = "config.yaml"
)

// Paths holds the on-disk layout for one data directory.
type Paths struct {
	DataDir  string // Day files, encrypted DB and key live here
	LogPath  string
	LockPath string
	DBPath   string
}

// NewPaths derives the layout rooted at dataDir.
func NewPaths(dataDir string) Paths {
	return Paths{
		DataDir:  dataDir,
		LogPath:  filepath.Join(dataDir, logFileName),
		LockPath: filepath.Join(dataDir, lockFileName),
		DBPath:   filepath.Join(dataDir, encryptedDB),
	}
}

// DayFileName returns the file name for a day key.
func DayFileName(key string) string {
	return dayFilePrefix + key + dayFileSuffix
}

// DefaultDataDir returns the platform's per-user application data directory.
func DefaultDataDir() string {
	return defaultDataDirFor(runtime.GOOS, GetRealUserHome(), os.Getenv("XDG_DATA_HOME"))
}

func defaultDataDirFor(goos, home, xdgDataHome string) string {
	switch goos {
	case "darwin":
		return filepath.Join(home, "Library", "Application Support", appDirName)
	case "linux":
		if xdgDataHome != "" {
			return filepath.Join(xdgDataHome, appDirName)
		}
		return filepath.Join(home, ".local", "share", appDirName)
	default:
		return filepath.Join(home, "."+appDirName)
	}
}

// DefaultConfigPath returns ~/.actmon/config.yaml.
func DefaultConfigPath() string {
	return filepath.Join(GetRealUserHome(), "."+appDirName, configFileName)
}

// ExpandHome expands ~ to the user's home directory.
func ExpandHome(path string) string {
	home := GetRealUserHome()
	if strings.HasPrefix(path, "~/") {
		return filepath.Join(home, path[2:])
	}
	if path == "~" {
		return home
	}
	return path
}

// GetRealUserHome returns the real user's home directory, even when running under sudo.
// Under sudo, os.UserHomeDir() returns /var/root, so we use SUDO_USER to find the real user.
func GetRealUserHome() string {
	if sudoUser := os.Getenv("SUDO_USER"); sudoUser != "" {
		if u, err := user.Lookup(sudoUser); err == nil {
			return u.HomeDir
		}
	}
	home, _ := os.UserHomeDir()
	return home
}
