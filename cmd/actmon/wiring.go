package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/eliteGoblin/focusd/activity_mon/internal/config"
	"github.com/eliteGoblin/focusd/activity_mon/internal/daemon"
	"github.com/eliteGoblin/focusd/activity_mon/internal/domain"
	"github.com/eliteGoblin/focusd/activity_mon/internal/infra"
	"github.com/eliteGoblin/focusd/activity_mon/internal/notify"
	"github.com/eliteGoblin/focusd/activity_mon/internal/policy"
	"github.com/eliteGoblin/focusd/activity_mon/internal/usecase"
)

// app is the wired monitor and its notification hub.
type app struct {
	monitor *daemon.Monitor
	hub     *notify.Hub
}

func prepareDataDir(cfg *config.Config) (infra.Paths, error) {
	paths := infra.NewPaths(infra.ExpandHome(cfg.Store.DataDir))
	if err := os.MkdirAll(paths.DataDir, 0700); err != nil {
		return paths, fmt.Errorf("failed to create data directory: %w", err)
	}
	return paths, nil
}

// openStore returns the configured backend and a func releasing it.
func openStore(cfg *config.Config, paths infra.Paths, logger *zap.Logger) (domain.DocumentStore, func(), error) {
	switch cfg.Store.Backend {
	case config.BackendEncrypted:
		store, err := infra.OpenEncryptedDocumentStore(paths.DBPath, infra.NewFileKeyProvider(paths.DataDir))
		if errors.Is(err, domain.ErrStoreKey) {
			return nil, nil, fmt.Errorf("%w\n  Restore the key file in %s, or set store.backend to %q to start a new history",
				err, paths.DataDir, config.BackendJSON)
		}
		if err != nil {
			return nil, nil, err
		}
		return store, func() { _ = store.Close() }, nil
	default:
		return infra.NewJSONDocumentStore(paths.DataDir, logger), func() {}, nil
	}
}

func buildApp(cfg *config.Config, store domain.DocumentStore, logger *zap.Logger) (*app, error) {
	poll, window, tolerance, err := cfg.Monitor.Durations()
	if err != nil {
		return nil, err
	}
	timeout, err := cfg.Probe.TimeoutDuration()
	if err != nil {
		return nil, err
	}

	runner := &infra.RealCommandRunner{}
	pm := infra.NewProcessManager()

	selfName := cfg.Monitor.SelfName
	if selfName == "" {
		selfName = pm.CurrentName()
	}

	probe, err := infra.NewCommandWindowProbe(infra.ProbeConfig{
		Command: cfg.Probe.Command,
		Timeout: timeout,
	}, runner, pm, logger)
	if err != nil {
		return nil, err
	}

	hub := notify.NewHub(notify.DefaultBuffer, logger)
	recorder := usecase.NewFlushRecorder(logger)
	agg := usecase.NewAggregator(
		usecase.AggregatorConfig{
			Interval:       poll,
			FlushWindow:    window,
			FlushTolerance: tolerance,
			SelfName:       selfName,
		},
		probe,
		store,
		policy.NewRegistry(),
		hub,
		recorder,
		domain.SystemClock{},
		logger,
	)

	monitor := daemon.NewMonitor(
		agg,
		probe,
		infra.NewPermissionChecker(runner, logger),
		infra.NewTimerScheduler(),
		hub,
		recorder,
		domain.SystemClock{},
		logger,
	)
	return &app{monitor: monitor, hub: hub}, nil
}

// createLogger writes JSON logs to logPath, and to stderr when interactive is set.
func createLogger(logPath, level string, interactive bool) *zap.Logger {
	zcfg := zap.NewProductionConfig()
	zcfg.OutputPaths = []string{logPath}
	zcfg.ErrorOutputPaths = []string{logPath}
	if interactive {
		zcfg.OutputPaths = append(zcfg.OutputPaths, "stderr")
		zcfg.ErrorOutputPaths = append(zcfg.ErrorOutputPaths, "stderr")
	}
	zcfg.EncoderConfig.TimeKey = "time"
	zcfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	if lvl, err := zap.ParseAtomicLevel(level); err == nil {
		zcfg.Level = lvl
	}

	logger, err := zcfg.Build()
	if err != nil {
		// Fallback to stderr if file logging fails
		logger, _ = zap.NewProduction()
	}
	return logger
}

var errAPIUnreachable = errors.New("api unreachable")

// saveGoalsRemote sends goals to a running instance.
func saveGoalsRemote(ctx context.Context, listen string, goals []string) ([]string, error) {
	if goals == nil {
		goals = []string{}
	}
	body, err := json.Marshal(map[string][]string{"goals": goals})
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, "http://"+listen+"/goals", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errAPIUnreachable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var e struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&e)
		return nil, fmt.Errorf("failed to save goals: %s", e.Error)
	}

	var out struct {
		Goals []string `json:"goals"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return out.Goals, nil
}
