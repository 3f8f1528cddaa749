package storage

import (
	"context"
	"log/slog"

	"github.com/steveyegge/elab/internal/elaboration"
	"github.com/steveyegge/elab/internal/events"
	"github.com/steveyegge/elab/internal/readiness"
	"github.com/steveyegge/elab/internal/storage/sqlite"
	"github.com/steveyegge/elab/internal/types"
)

// Storage is the persistence layer used by the CLI. The pipeline packages
// never require it; they see only the narrow interfaces they declare.
type Storage interface {
	// Pipeline events
	events.EventStore

	// Story snapshots, elaboration runs and workflow state
	elaboration.Store
	SaveSnapshot(ctx context.Context, story *types.Story, iteration int) error
	ListElaborations(ctx context.Context, storyID string, limit int) ([]*elaboration.Result, error)
	GetStoryState(ctx context.Context, storyID string) (*types.StoryState, error)

	// Ranked gap history, the cross-run input of gap hygiene
	SaveRankedGaps(ctx context.Context, storyID, runID string, gaps []types.RankedGap) error
	GetRankedGaps(ctx context.Context, storyID string) ([]types.RankedGap, error)

	// Readiness history
	SaveReadiness(ctx context.Context, res *readiness.Result) error
	GetLatestReadiness(ctx context.Context, storyID string) (*readiness.Result, error)

	// Event retention
	CleanupEventsByAge(ctx context.Context, retentionDays, criticalRetentionDays, batchSize int) (int, error)
	CleanupEventsByStoryLimit(ctx context.Context, perStoryLimit, batchSize int) (int, error)
	GetEventCounts(ctx context.Context) (*sqlite.EventCounts, error)
	VacuumDatabase(ctx context.Context) error

	// Lifecycle
	SchemaVersion(ctx context.Context) (int, error)
	Close() error
}

var _ Storage = (*sqlite.SQLiteStorage)(nil)

// Config holds database configuration
type Config struct {
	// Path is the SQLite database file path
	// Default: ".elab/elab.db"
	// Special value ":memory:" creates an in-memory database (useful for tests)
	Path string

	// Logger receives storage diagnostics. Nil means slog.Default().
	Logger *slog.Logger
}

// DefaultConfig returns a config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Path: DefaultDBPath,
	}
}

// NewStorage opens the SQLite storage backend described by cfg
func NewStorage(ctx context.Context, cfg *Config) (Storage, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	path := cfg.Path
	if path == "" {
		path = DefaultDBPath
	}
	return sqlite.New(ctx, path, cfg.Logger)
}
