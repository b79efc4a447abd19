package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"suntheme/internal/api"
	"suntheme/internal/history"
	"suntheme/internal/mode"
	"suntheme/internal/scheduler"
	"suntheme/internal/sink"
	"suntheme/internal/statewatch"
	"suntheme/internal/suntimes"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const timeFormat = "15:04 MST"

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:           "suntheme",
		Short:         "Switch terminal and editor themes at sunrise and sunset",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&a.configPath, "config", "", "config file (default $XDG_CONFIG_HOME/suntheme/config.yaml)")
	root.PersistentFlags().BoolVar(&a.debug, "debug", false, "enable debug logging")

	root.AddCommand(
		newRunCmd(a),
		newSunCmd(a),
		newSetCmd(a),
		newToggleCmd(a),
		newStatusCmd(a),
		newLocateCmd(a),
	)
	return root
}

func newRunCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the daemon in the foreground",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.setup(false); err != nil {
				return err
			}
			defer a.logger.Sync()
			if err := a.loadConfig(); err != nil {
				return err
			}
			return runDaemon(cmd.Context(), a)
		},
	}
}

func runDaemon(ctx context.Context, a *app) error {
	logger := a.logger
	cfg := a.cfg

	logger.Info("Starting suntheme",
		zap.String("location", cfg.Location.Name),
		zap.Float64("latitude", cfg.Location.Latitude),
		zap.Float64("longitude", cfg.Location.Longitude))

	store := a.openHistory()
	if store != nil {
		defer store.Close()
	}

	hub := api.NewHub(logger)
	target, state := a.modeSink(history.SourceScheduler, store, hub)

	sched := scheduler.New(scheduler.Config{
		Latitude:     cfg.Location.Latitude,
		Longitude:    cfg.Location.Longitude,
		RetryBackoff: cfg.Scheduler.RetryBackoff,
		WakeBuffer:   cfg.Scheduler.WakeBuffer,
		MaxSleep:     cfg.Scheduler.MaxSleep,
	}, a.daily(), target, a.clock, logger)

	if cfg.API.Enabled {
		var reader api.HistoryReader
		if store != nil {
			reader = store
		}
		server := api.NewServer(sched, reader, hub, cfg.StateFile(), a.clock, logger, cfg.API.Port)
		if err := server.Start(); err != nil {
			return fmt.Errorf("failed to start API server: %w", err)
		}
		defer server.Stop()
	}

	if err := os.MkdirAll(cfg.Paths.StateDir, 0755); err != nil {
		logger.Warn("Failed to create state dir", zap.Error(err))
	}
	watcher := statewatch.New(cfg.StateFile(), hub, a.clock, logger).IgnoreOwn(state)
	if err := watcher.Start(); err != nil {
		logger.Warn("State file watcher disabled", zap.Error(err))
	} else {
		defer watcher.Stop()
	}

	// The loop has no stop mechanism; it ends when the process exits.
	go sched.Run(ctx)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	logger.Info("suntheme is running. Press Ctrl+C to exit.")

	sig := <-sigChan
	logger.Info("Shutting down", zap.String("signal", sig.String()))
	return nil
}

func newSunCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "sun",
		Short: "Print today's sunrise, sunset and the next switch",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.setup(true); err != nil {
				return err
			}
			defer a.logger.Sync()
			if err := a.loadConfig(); err != nil {
				return err
			}

			st, err := a.daily().GetOrFetch(cmd.Context(), a.cfg.Location.Latitude, a.cfg.Location.Longitude)
			if err != nil {
				return fmt.Errorf("failed to get sun times: %w", err)
			}
			printSunTimes(cmd.OutOrStdout(), st, a.clock.Now())
			return nil
		},
	}
}

func printSunTimes(w io.Writer, st suntimes.SunTimes, now time.Time) {
	next := st.NextSwitch(now)
	fmt.Fprintf(w, "Date:    %s\n", st.Date)
	fmt.Fprintf(w, "Sunrise: %s\n", st.SunriseIn(time.Local).Format(timeFormat))
	fmt.Fprintf(w, "Sunset:  %s\n", st.SunsetIn(time.Local).Format(timeFormat))
	fmt.Fprintf(w, "Mode:    %s\n", st.Mode(now))
	fmt.Fprintf(w, "Next:    %s at %s (in %s)\n",
		next.Mode, next.At.In(time.Local).Format(timeFormat), next.At.Sub(now).Round(time.Minute))
}

// applyOnce applies m through the full sink chain and records it.
func applyOnce(ctx context.Context, a *app, m mode.Mode, source history.Source) error {
	store := a.openHistory()
	if store != nil {
		defer store.Close()
	}
	target, _ := a.modeSink(source, store, nil)
	return target.Apply(ctx, m)
}

func newSetCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:       "set <light|dark>",
		Short:     "Apply a mode now",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{string(mode.Light), string(mode.Dark)},
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := mode.Parse(args[0])
			if err != nil {
				return err
			}
			if err := a.setup(true); err != nil {
				return err
			}
			defer a.logger.Sync()
			if err := a.loadConfig(); err != nil {
				return err
			}

			if err := applyOnce(cmd.Context(), a, m, history.SourceSet); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Switched to %s mode\n", m)
			return nil
		},
	}
}

func newToggleCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "toggle",
		Short: "Switch to the opposite of the last applied mode",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.setup(true); err != nil {
				return err
			}
			defer a.logger.Sync()
			if err := a.loadConfig(); err != nil {
				return err
			}

			current, ok, err := sink.ReadMode(a.cfg.StateFile())
			if err != nil {
				return err
			}
			next := mode.Dark
			if ok {
				next = current.Opposite()
			}

			if err := applyOnce(cmd.Context(), a, next, history.SourceToggle); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Switched to %s mode\n", next)
			return nil
		},
	}
}

func newStatusCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the applied mode, cached sun times and recent changes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.setup(true); err != nil {
				return err
			}
			defer a.logger.Sync()
			if err := a.loadConfig(); err != nil {
				return err
			}
			w := cmd.OutOrStdout()

			applied, ok, err := sink.ReadMode(a.cfg.StateFile())
			if err != nil {
				return err
			}
			if ok {
				fmt.Fprintf(w, "Applied: %s\n", applied)
			} else {
				fmt.Fprintf(w, "Applied: unknown\n")
			}
			fmt.Fprintf(w, "Location: %s (%.4f, %.4f)\n",
				a.cfg.Location.Name, a.cfg.Location.Latitude, a.cfg.Location.Longitude)

			if st, ok := a.daily().Cached(); ok {
				printSunTimes(w, st, a.clock.Now())
			} else {
				fmt.Fprintf(w, "No sun times cached for today; run `suntheme sun`\n")
			}

			store := a.openHistory()
			if store == nil {
				return nil
			}
			defer store.Close()

			entries, err := store.Recent(cmd.Context(), 5)
			if err != nil {
				return err
			}
			if len(entries) > 0 {
				fmt.Fprintf(w, "\nRecent changes:\n")
			}
			for _, e := range entries {
				fmt.Fprintf(w, "  %s  %-5s  %s\n", e.AppliedAt.In(time.Local).Format("2006-01-02 15:04"), e.Mode, e.Source)
			}
			return nil
		},
	}
}

func newLocateCmd(a *app) *cobra.Command {
	var save int

	cmd := &cobra.Command{
		Use:   "locate <place>",
		Short: "Look up coordinates for a place name",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.setup(true); err != nil {
				return err
			}
			defer a.logger.Sync()

			cfg, err := a.loader.LoadOrDefault()
			if err != nil {
				return err
			}

			geocoder := suntimes.NewGeocoder(cfg.Services.GeocoderURL, suntimes.DefaultUserAgent, cfg.Services.Timeout, a.logger)
			locations, err := geocoder.Resolve(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("failed to look up %q: %w", args[0], err)
			}

			w := cmd.OutOrStdout()
			if len(locations) == 0 {
				fmt.Fprintf(w, "No matches for %q\n", args[0])
				return nil
			}
			for i, loc := range locations {
				fmt.Fprintf(w, "%d. %s (%.4f, %.4f)\n", i+1, loc.DisplayName, loc.Latitude, loc.Longitude)
			}

			if save == 0 {
				return nil
			}
			if save < 1 || save > len(locations) {
				return fmt.Errorf("--save must be between 1 and %d", len(locations))
			}
			chosen := locations[save-1]
			cfg.Location.Name = chosen.DisplayName
			cfg.Location.Latitude = chosen.Latitude
			cfg.Location.Longitude = chosen.Longitude
			if err := a.loader.Save(cfg); err != nil {
				return err
			}
			fmt.Fprintf(w, "Saved %s to %s\n", chosen.DisplayName, a.loader.Path())
			return nil
		},
	}
	cmd.Flags().IntVar(&save, "save", 0, "save the Nth match as the configured location")
	return cmd
}
