// Package config loads actmon settings from defaults, a YAML file,
// ACTMON_ environment variables and command-line flags, in that order.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/eliteGoblin/focusd/activity_mon/internal/infra"
)

const (
	DefaultPollInterval   = "1s"
	DefaultFlushWindow    = "10s"
	DefaultFlushTolerance = "1500ms"
	DefaultBackend        = BackendJSON
	DefaultProbeTimeout   = "3s"
	DefaultAPIListen      = "127.0.0.1:7319"
	DefaultLogLevel       = "info"

	EnvPrefix = "ACTMON_"
)

// Store backends.
const (
	BackendJSON      = "json"
	BackendEncrypted = "encrypted"
)

type Config struct {
	Monitor MonitorConfig `koanf:"monitor"`
	Store   StoreConfig   `koanf:"store"`
	Probe   ProbeConfig   `koanf:"probe"`
	API     APIConfig     `koanf:"api"`
	Log     LogConfig     `koanf:"log"`
}

type MonitorConfig struct {
	PollInterval   string `koanf:"poll_interval"`
	FlushWindow    string `koanf:"flush_window"`
	FlushTolerance string `koanf:"flush_tolerance"`
	// SelfName overrides the detected process name used for self-exclusion.
	SelfName string `koanf:"self_name"`
}

type StoreConfig struct {
	DataDir string `koanf:"data_dir"`
	Backend string `koanf:"backend"`
}

type ProbeConfig struct {
	// Command replaces the platform probe; see infra.ProbeConfig.
	Command string `koanf:"command"`
	Timeout string `koanf:"timeout"`
}

type APIConfig struct {
	// Listen is the HTTP address; empty disables the API.
	Listen string `koanf:"listen"`
}

type LogConfig struct {
	Level string `koanf:"level"`
}

// flagKeys maps command-line flag names to config keys.
var flagKeys = map[string]string{
	"interval":  "monitor.poll_interval",
	"self-name": "monitor.self_name",
	"data-dir":  "store.data_dir",
	"backend":   "store.backend",
	"probe":     "probe.command",
	"listen":    "api.listen",
	"log-level": "log.level",
}

// Load builds the configuration. cmd may be nil to skip flags.
func Load(cmd *cobra.Command) (*Config, error) {
	k := koanf.New(".")

	defaults := map[string]interface{}{
		"monitor.poll_interval":   DefaultPollInterval,
		"monitor.flush_window":    DefaultFlushWindow,
		"monitor.flush_tolerance": DefaultFlushTolerance,
		"monitor.self_name":       "",
		"store.data_dir":          infra.DefaultDataDir(),
		"store.backend":           DefaultBackend,
		"probe.command":           "",
		"probe.timeout":           DefaultProbeTimeout,
		"api.listen":              DefaultAPIListen,
		"log.level":               DefaultLogLevel,
	}
	for key, value := range defaults {
		if err := k.Set(key, value); err != nil {
			return nil, fmt.Errorf("failed to set default %s: %w", key, err)
		}
	}

	// Config file: an explicit path must exist, the default one may not.
	configPath := ""
	if cmd != nil {
		if flag := cmd.Flags().Lookup("config"); flag != nil {
			configPath = strings.TrimSpace(flag.Value.String())
		}
	}
	if configPath != "" {
		if err := k.Load(file.Provider(infra.ExpandHome(configPath)), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config %s: %w", configPath, err)
		}
	} else {
		globalPath := infra.DefaultConfigPath()
		if _, err := os.Stat(globalPath); err == nil {
			if err := k.Load(file.Provider(globalPath), yaml.Parser()); err != nil {
				return nil, fmt.Errorf("failed to load config %s: %w", globalPath, err)
			}
		} else if !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to stat config %s: %w", globalPath, err)
		}
	}

	// ACTMON_STORE_DATA_DIR -> store.data_dir
	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment: %w", err)
	}

	if cmd != nil {
		provider := posflag.ProviderWithFlag(cmd.Flags(), ".", k, func(f *pflag.Flag) (string, interface{}) {
			key, ok := flagKeys[f.Name]
			if !ok {
				return "", nil
			}
			// Durations stay in their "250ms" form; every mapped key is a string.
			return key, f.Value.String()
		})
		if err := k.Load(provider, nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.Store.DataDir = infra.ExpandHome(strings.TrimSpace(cfg.Store.DataDir))
	cfg.Store.Backend = strings.ToLower(strings.TrimSpace(cfg.Store.Backend))

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// envKey turns a prefixed variable name into a section.key path.
// Only the first underscore separates the section, so keys keep theirs.
func envKey(s string) string {
	return strings.Replace(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "_", ".", 1)
}

// Validate checks values that would otherwise fail later at runtime.
func (c *Config) Validate() error {
	if c.Store.DataDir == "" {
		return errors.New("store.data_dir must not be empty")
	}
	switch c.Store.Backend {
	case BackendJSON, BackendEncrypted:
	default:
		return fmt.Errorf("store.backend must be %q or %q, got %q", BackendJSON, BackendEncrypted, c.Store.Backend)
	}

	poll, window, tolerance, err := c.Monitor.Durations()
	if err != nil {
		return err
	}
	if poll <= 0 {
		return fmt.Errorf("monitor.poll_interval must be positive, got %s", poll)
	}
	if window <= 0 || tolerance <= 0 || tolerance > window {
		return fmt.Errorf("monitor.flush_tolerance (%s) must be positive and within monitor.flush_window (%s)", tolerance, window)
	}

	if _, err := c.Probe.TimeoutDuration(); err != nil {
		return err
	}
	return nil
}
