package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/steveyegge/elab/internal/config"
	"github.com/steveyegge/elab/internal/pipeline"
	"github.com/steveyegge/elab/internal/storage"
)

var (
	dbPath   string
	logLevel string
	jsonOut  bool

	cfg    config.Config
	store  storage.Storage
	runner *pipeline.Runner
)

// skipSetup marks commands that run before a project exists
const skipSetup = "skip-setup"

var rootCmd = &cobra.Command{
	Use:   "elab",
	Short: "Story elaboration and readiness pipeline",
	Long: `elab analyzes user stories before they are picked up for work.

It generates gaps from product, UX, QA and attack perspectives, ranks them,
scores readiness, and on each new version of a story reviews only what
changed, escalating to a wider review when risk signals appear.

Results are recorded in .elab/elab.db when the directory has been
initialized with 'elab init'; without a database every command still runs
but nothing is remembered between runs.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if cmd.Annotations[skipSetup] == "true" {
			return
		}
		if err := setup(cmd.Context(), cmd); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if store != nil {
			_ = store.Close()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "Database path (default: auto-discover .elab/*.db)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Diagnostic log level: debug, info, warn or error")
	rootCmd.PersistentFlags().BoolVar(&jsonOut, "json", false, "Print results as JSON")
}

// setup opens the database, loads the configuration of the project it
// belongs to, and builds the runner. A missing database is not an error;
// commands that need one fail later with pipeline.ErrNoStore.
func setup(ctx context.Context, cmd *cobra.Command) error {
	path := dbPath
	if path == "" {
		if discovered, err := storage.DiscoverDatabase(); err == nil {
			path = discovered
		}
	}

	projectRoot, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("failed to get current directory: %w", err)
	}
	if path != "" && path != ":memory:" {
		if root, err := storage.GetProjectRoot(path); err == nil {
			projectRoot = root
		}
	}

	if cfg, err = config.Load(projectRoot); err != nil {
		return err
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	if err := applyFlags(cmd); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	slog.SetDefault(logger)

	if path != "" {
		store, err = storage.NewStorage(ctx, &storage.Config{Path: path, Logger: logger})
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		logger.Debug("opened database", "path", path, "project_root", projectRoot)
	}

	runner, err = pipeline.NewRunner(store, &cfg, logger)
	return err
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		if !errors.Is(err, context.Canceled) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}
