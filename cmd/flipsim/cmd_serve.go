package main

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/flip-racer/flipsim/internal/runner"
	"github.com/flip-racer/flipsim/internal/sim"
	"github.com/flip-racer/flipsim/internal/ws"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP and WebSocket simulation server",
		Long: `Serve the REST API under /api and the live event stream on /ws.

Settings come from the config file, then FLIPSIM_* environment variables
(optionally loaded from --env-file), then flags.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			envFile, _ := cmd.Flags().GetString("env-file")
			if err := loadEnvFile(envFile); err != nil {
				return err
			}

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("host") {
				cfg.Server.Host, _ = cmd.Flags().GetString("host")
			}
			if cmd.Flags().Changed("port") {
				cfg.Server.Port, _ = cmd.Flags().GetInt("port")
			}

			logger := newLogger(cfg)
			slog.SetDefault(logger)

			reg, err := cfg.Registry()
			if err != nil {
				return err
			}
			simulator := sim.New(reg, sim.WithSeed(cfg.Simulation.Seed),
				sim.WithLimits(cfg.Simulation.SessionLimit, cfg.Simulation.FlipLimit))

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			broadcaster := ws.NewBroadcaster(cfg.Server.MaxConnections, logger)
			defer broadcaster.Stop()

			r := runner.New(simulator, broadcaster, runner.Options{
				TickInterval:  cfg.Simulation.TickInterval,
				StatsInterval: cfg.Simulation.StatsInterval,
			}, logger)
			defer func() {
				r.Stop()
				r.Wait()
			}()

			server := ws.NewServer(ctx, r, broadcaster, ws.Options{
				AuthToken:       cfg.Server.AuthToken,
				AllowedOrigins:  cfg.Server.AllowedOrigins,
				DefaultPattern:  cfg.Simulation.DefaultPattern,
				DefaultSessions: cfg.Simulation.DefaultSessions,
				DefaultMaxFlips: cfg.Simulation.DefaultMaxFlips,
				Logger:          logger,
			})

			logger.Info("starting flipsim",
				"version", version,
				"patterns", reg.Len(),
				"tick_interval", cfg.Simulation.TickInterval,
				"auth", cfg.Server.AuthToken != "")
			if err := ws.ListenAndServe(ctx, cfg.Addr(), server.Handler(), logger); err != nil {
				return fmt.Errorf("server error: %w", err)
			}
			return nil
		},
	}

	cmd.Flags().String("host", "", "Override server host")
	cmd.Flags().Int("port", 0, "Override server port")
	cmd.Flags().String("env-file", ".env", "Environment file to load before reading config (ignored if missing)")

	return cmd
}

// loadEnvFile loads KEY=VALUE pairs from path into the environment without
// overriding variables that are already set. A missing file is ignored.
func loadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	err := godotenv.Load(path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to load env file %s: %w", path, err)
	}
	return nil
}
