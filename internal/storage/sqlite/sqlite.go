package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"github.com/steveyegge/elab/internal/storage/migrations"
	"github.com/steveyegge/elab/internal/types"
)

// DefaultGapCacheSize is the number of stories whose latest ranked gaps are
// kept in memory
const DefaultGapCacheSize = 256

// SQLiteStorage persists elaboration history in a single SQLite file
type SQLiteStorage struct {
	db       *sql.DB
	gapCache *lru.Cache[string, []types.RankedGap]
	logger   *slog.Logger
}

// New opens (creating if needed) the database at path and brings its
// schema up to date. The special path ":memory:" opens a private
// in-memory database.
func New(ctx context.Context, path string, logger *slog.Logger) (*SQLiteStorage, error) {
	if logger == nil {
		logger = slog.Default()
	}

	dsn := "file::memory:"
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
		dsn = "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(wal)&_pragma=foreign_keys(1)"
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if path == ":memory:" {
		// every connection to :memory: is a separate database
		db.SetMaxOpenConns(1)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if err := migrations.NewManager(schemaMigrations...).Apply(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	cache, err := lru.New[string, []types.RankedGap](DefaultGapCacheSize)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	logger.Debug("opened elaboration store", "path", path)
	return &SQLiteStorage{db: db, gapCache: cache, logger: logger}, nil
}

// Close closes the database connection
func (s *SQLiteStorage) Close() error {
	s.gapCache.Purge()
	return s.db.Close()
}

// SchemaVersion returns the applied migration version
func (s *SQLiteStorage) SchemaVersion(ctx context.Context) (int, error) {
	return migrations.Version(ctx, s.db)
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeFormat)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeFormat, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid timestamp %q: %w", s, err)
	}
	return t, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
