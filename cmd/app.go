package main

import (
	"fmt"
	"os"

	"suntheme/internal/cache"
	"suntheme/internal/clock"
	"suntheme/internal/config"
	"suntheme/internal/history"
	"suntheme/internal/sink"
	"suntheme/internal/suntimes"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

// app carries what every command needs once flags are parsed
type app struct {
	configPath string
	debug      bool

	logger *zap.Logger
	loader *config.Loader
	cfg    *config.Config
	clock  clock.Clock
}

// setup loads .env and builds the logger. quiet raises the level for
// one-shot commands whose output is meant for a terminal.
func (a *app) setup(quiet bool) error {
	envLoaded := godotenv.Load() == nil

	if os.Getenv("SUNTHEME_DEBUG") == "true" {
		a.debug = true
	}

	var (
		logger *zap.Logger
		err    error
	)
	if a.debug {
		logger, err = zap.NewDevelopment()
	} else {
		cfg := zap.NewProductionConfig()
		if quiet {
			cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
		}
		logger, err = cfg.Build()
	}
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	a.logger = logger

	if !envLoaded {
		a.logger.Debug("No .env file found, using environment variables")
	}

	a.loader = config.NewLoader(a.configPath, a.logger)
	a.clock = clock.NewRealClock()
	return nil
}

func (a *app) loadConfig() error {
	cfg, err := a.loader.Load()
	if err != nil {
		return err
	}
	a.cfg = cfg
	return nil
}

func (a *app) oracle() *suntimes.Client {
	return suntimes.NewClient(a.cfg.Services.OracleURL, a.cfg.Services.Timeout, a.clock, a.logger)
}

func (a *app) daily() *cache.Daily {
	return cache.NewDaily(cache.NewFileStore(a.cfg.CacheFile()), a.oracle(), a.clock, a.logger)
}

// openHistory opens the transition log. Failure is not fatal to any
// command, so it is logged and a nil store returned.
func (a *app) openHistory() *history.Store {
	if err := os.MkdirAll(a.cfg.Paths.StateDir, 0755); err != nil {
		a.logger.Warn("Failed to create state dir", zap.Error(err))
		return nil
	}
	store, err := history.Open(a.cfg.HistoryDB())
	if err != nil {
		a.logger.Warn("History unavailable", zap.Error(err))
		return nil
	}
	return store
}

// modeSink builds the fan-out to the state file and Ghostty, wrapped so
// that changes against the persisted mode are recorded under source. store
// and publisher may be nil. The state file sink is returned for the watcher.
func (a *app) modeSink(source history.Source, store *history.Store, publisher sink.Publisher) (sink.Sink, *sink.StateFile) {
	state := sink.NewStateFile(a.cfg.StateFile(), sink.ThemePair(a.cfg.Themes.Neovim))
	targets := []sink.Sink{state}

	ghosttyPath := a.cfg.Paths.GhosttyConfig
	if ghosttyPath == "" {
		p, err := sink.DefaultGhosttyConfigPath()
		if err != nil {
			a.logger.Warn("Ghostty sink disabled", zap.Error(err))
		}
		ghosttyPath = p
	}
	if ghosttyPath != "" {
		targets = append(targets, sink.NewGhostty(ghosttyPath, sink.ThemePair(a.cfg.Themes.Ghostty), a.logger))
	}

	var recorder sink.Recorder
	if store != nil {
		recorder = store
	}
	recording := sink.NewRecording(sink.NewMulti(a.logger, targets...), recorder, publisher, source, a.clock, a.logger).
		WithPersisted(state.Current)
	return recording, state
}
