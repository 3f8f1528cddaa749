package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	// ProjectDirName is the per-project directory holding the database and
	// config file
	ProjectDirName = ".elab"

	// DefaultDBPath is where 'elab init' creates the database
	DefaultDBPath = ProjectDirName + "/elab.db"

	// DBPathEnv overrides database discovery
	DBPathEnv = "ELAB_DB_PATH"
)

// DiscoverDatabase returns the database to use. ELAB_DB_PATH wins when set
// (":memory:" is allowed); otherwise the first .elab/*.db in the current
// directory is used. Parent directories are not searched.
func DiscoverDatabase() (string, error) {
	if dbPath := os.Getenv(DBPathEnv); dbPath != "" {
		return dbPath, nil
	}

	dir, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("failed to get current directory: %w", err)
	}
	return discoverDatabaseInDir(dir)
}

// discoverDatabaseInDir checks for .elab/*.db in dir only
func discoverDatabaseInDir(dir string) (string, error) {
	projectDir := filepath.Join(dir, ProjectDirName)

	if info, err := os.Stat(projectDir); err == nil && info.IsDir() {
		entries, err := os.ReadDir(projectDir)
		if err == nil {
			for _, entry := range entries {
				if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".db") {
					absPath, err := filepath.Abs(filepath.Join(projectDir, entry.Name()))
					if err != nil {
						return "", fmt.Errorf("failed to get absolute path: %w", err)
					}
					return absPath, nil
				}
			}
		}
	}

	return "", fmt.Errorf(
		"no %s/*.db found in %s\n"+
			"  Run 'elab init' to initialize elaboration tracking in this directory\n"+
			"  Or use --db flag to specify database path explicitly",
		ProjectDirName, dir)
}

// GetProjectRoot returns the directory containing the .elab/ directory
// that holds dbPath
func GetProjectRoot(dbPath string) (string, error) {
	absPath, err := filepath.Abs(dbPath)
	if err != nil {
		return "", fmt.Errorf("failed to get absolute path: %w", err)
	}

	dbDir := filepath.Dir(absPath)
	if filepath.Base(dbDir) != ProjectDirName {
		return "", fmt.Errorf("database must be in a %s/ directory, got: %s", ProjectDirName, dbPath)
	}
	return filepath.Dir(dbDir), nil
}

// InitProject creates the .elab directory in projectDir and returns the
// path the database should be created at. The database itself is created
// on first open.
func InitProject(projectDir string) (string, error) {
	if _, err := os.Stat(projectDir); os.IsNotExist(err) {
		return "", fmt.Errorf("project directory does not exist: %s", projectDir)
	}

	dir := filepath.Join(projectDir, ProjectDirName)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create %s directory: %w", ProjectDirName, err)
	}

	dbPath := filepath.Join(dir, filepath.Base(DefaultDBPath))
	if _, err := os.Stat(dbPath); err == nil {
		return "", fmt.Errorf("database already exists: %s", dbPath)
	}
	return dbPath, nil
}
