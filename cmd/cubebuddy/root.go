package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/cubebuddy/cubebuddy/internal/config"
	"github.com/cubebuddy/cubebuddy/internal/extract"
	"github.com/cubebuddy/cubebuddy/internal/infrastructure/storage"
	"github.com/cubebuddy/cubebuddy/internal/ports"
	"github.com/cubebuddy/cubebuddy/internal/puzzle"
	"github.com/cubebuddy/cubebuddy/internal/solver"
	"github.com/cubebuddy/cubebuddy/internal/usecase"
	"github.com/cubebuddy/cubebuddy/internal/validator"
)

var (
	configPath string
	logLevel   string
	cfg        *config.Config

	rootCmd = &cobra.Command{
		Use:   "cubebuddy",
		Short: "Capture, solve and learn twisty puzzles",
		Long: `cubebuddy captures the sticker colours of a twisty puzzle from photos,
a webcam stream or manual entry, sends them to a solver and walks through
the solution one step at a time.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			cfg, err = config.Load(configPath)
			if err != nil {
				return err
			}
			if logLevel != "" {
				cfg.Log.Level = logLevel
			}
			return nil
		},
	}
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "YAML config file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "debug|info|warn|error (overrides config)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(extractCmd)
	rootCmd.AddCommand(explainCmd)
	rootCmd.AddCommand(puzzlesCmd)
}

func newLogger(w io.Writer, c config.Log) *slog.Logger {
	lvl := slog.LevelInfo
	switch strings.ToLower(c.Level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	}
	opts := &slog.HandlerOptions{Level: lvl}
	if c.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func newSolver(c config.Solver, logger *slog.Logger) ports.Solver {
	if c.Kind == "remote" {
		return solver.NewRemoteSolver(c.URL, c.Rate, c.Burst, logger)
	}
	return solver.NewMockSolver(c.Delay)
}

func openHandoff(ctx context.Context, c config.Handoff, logger *slog.Logger) (*storage.Handoff, error) {
	opts := storage.Options{MaxBytes: c.MaxBytes, TTL: c.TTL, Logger: logger}
	switch c.Backend {
	case "memory":
		return storage.NewMemory(opts), nil
	case "fs":
		return storage.NewFS(c.Path, opts), nil
	case "sqlite":
		return storage.OpenSQLite(c.Path, opts)
	case "redis":
		return storage.OpenRedis(ctx, c.RedisURL, opts)
	case "badger":
		return storage.OpenBadger(c.Path, opts)
	default:
		return nil, fmt.Errorf("unknown handoff backend %q", c.Backend)
	}
}

// newService wires providers into the use case layer. The returned
// hand-off store must be closed by the caller.
func newService(ctx context.Context, c *config.Config, logger *slog.Logger) (*usecase.Service, *storage.Handoff, error) {
	ho, err := openHandoff(ctx, c.Handoff, logger)
	if err != nil {
		return nil, nil, err
	}
	uc := usecase.NewService(
		puzzle.Default(),
		extract.NewEngine(c.Capture.ExtractWorkers, logger),
		newSolver(c.Solver, logger),
		ho,
		validator.New(),
		logger,
	)
	uc.SolverName = c.Solver.Kind
	uc.SolverTimeout = c.Solver.Timeout
	uc.ManualColor = c.Capture.ManualFill()
	return uc, ho, nil
}
