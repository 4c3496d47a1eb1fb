// Package database wraps the sqlite store holding frontier run history.
package database

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"embed"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

//go:embed schemas/*.sql
var schemas embed.FS

// DatabaseProfile selects the pragmas and pool sizing of a connection.
type DatabaseProfile string

const (
	// ProfileStandard is durable enough for run history.
	ProfileStandard DatabaseProfile = "standard"
	// ProfileCache trades durability for speed (tests, scratch databases).
	ProfileCache DatabaseProfile = "cache"
)

type profileSettings struct {
	pragmas  []string
	maxOpen  int
	maxIdle  int
	lifetime time.Duration
}

var profiles = map[DatabaseProfile]profileSettings{
	ProfileStandard: {
		pragmas:  []string{"synchronous(NORMAL)", "auto_vacuum(INCREMENTAL)", "temp_store(MEMORY)"},
		maxOpen:  10,
		maxIdle:  2,
		lifetime: 24 * time.Hour,
	},
	ProfileCache: {
		pragmas:  []string{"synchronous(OFF)", "temp_store(MEMORY)"},
		maxOpen:  4,
		maxIdle:  2,
		lifetime: time.Hour,
	},
}

// Pragmas shared by every profile.
var commonPragmas = []string{"journal_mode(WAL)", "foreign_keys(1)", "busy_timeout(5000)", "wal_autocheckpoint(1000)"}

var checkpointModes = map[string]bool{"PASSIVE": true, "FULL": true, "RESTART": true, "TRUNCATE": true}

// DB is a named sqlite database.
type DB struct {
	conn    *sql.DB
	path    string
	profile DatabaseProfile
	name    string
}

// Config holds database configuration
type Config struct {
	Path    string
	Profile DatabaseProfile
	Name    string // also selects schemas/<name>_schema.sql on Migrate
}

// New opens the database, creating its directory when needed.
func New(cfg Config) (*DB, error) {
	if cfg.Profile == "" {
		cfg.Profile = ProfileStandard
	}
	settings, ok := profiles[cfg.Profile]
	if !ok {
		return nil, fmt.Errorf("unknown database profile %q", cfg.Profile)
	}

	// file: URIs (in-memory databases) are passed through untouched.
	if !strings.HasPrefix(cfg.Path, "file:") {
		absPath, err := filepath.Abs(cfg.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve database path: %w", err)
		}
		if err := os.MkdirAll(filepath.Dir(absPath), 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
		cfg.Path = absPath
	}

	conn, err := sql.Open("sqlite", dsn(cfg.Path, settings))
	if err != nil {
		return nil, fmt.Errorf("failed to open database %s: %w", cfg.Name, err)
	}
	conn.SetMaxOpenConns(settings.maxOpen)
	conn.SetMaxIdleConns(settings.maxIdle)
	conn.SetConnMaxLifetime(settings.lifetime)
	conn.SetConnMaxIdleTime(30 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := conn.PingContext(ctx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping database %s: %w", cfg.Name, err)
	}

	return &DB{conn: conn, path: cfg.Path, profile: cfg.Profile, name: cfg.Name}, nil
}

func dsn(path string, settings profileSettings) string {
	params := make([]string, 0, len(commonPragmas)+len(settings.pragmas))
	for _, p := range append(append([]string(nil), commonPragmas...), settings.pragmas...) {
		params = append(params, "_pragma="+p)
	}
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + strings.Join(params, "&")
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.conn.Close()
}

// Conn returns the underlying connection pool.
func (db *DB) Conn() *sql.DB {
	return db.conn
}

// Name returns the database name.
func (db *DB) Name() string {
	return db.name
}

// Path returns the database file path.
func (db *DB) Path() string {
	return db.path
}

// Profile returns the profile the database was opened with.
func (db *DB) Profile() DatabaseProfile {
	return db.profile
}

const migrationsTable = `CREATE TABLE IF NOT EXISTS schema_migrations (
    name TEXT PRIMARY KEY,
    checksum TEXT NOT NULL,
    applied_at INTEGER NOT NULL
) STRICT`

// Migrate applies schemas/<name>_schema.sql and records its checksum. A schema
// whose checksum is already recorded is skipped. Databases without a schema
// file are left untouched.
func (db *DB) Migrate() error {
	schemaFile := "schemas/" + db.name + "_schema.sql"
	content, err := schemas.ReadFile(schemaFile)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read schema %s: %w", schemaFile, err)
	}
	sum := sha256.Sum256(content)
	checksum := hex.EncodeToString(sum[:])

	ctx := context.Background()
	return WithTransaction(ctx, db.conn, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, migrationsTable); err != nil {
			return fmt.Errorf("failed to create schema_migrations: %w", err)
		}

		var applied string
		err := tx.QueryRowContext(ctx, "SELECT checksum FROM schema_migrations WHERE name = ?", db.name).Scan(&applied)
		switch {
		case err == nil && applied == checksum:
			return nil
		case err != nil && !errors.Is(err, sql.ErrNoRows):
			return fmt.Errorf("failed to read schema_migrations: %w", err)
		}

		if _, err := tx.ExecContext(ctx, string(content)); err != nil {
			return fmt.Errorf("failed to execute schema %s for %s: %w", schemaFile, db.name, err)
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO schema_migrations (name, checksum, applied_at) VALUES (?, ?, ?)
			 ON CONFLICT(name) DO UPDATE SET checksum = excluded.checksum, applied_at = excluded.applied_at`,
			db.name, checksum, time.Now().Unix())
		return err
	})
}

// SchemaChecksum returns the checksum of the last applied schema, or "" when
// nothing has been applied.
func (db *DB) SchemaChecksum(ctx context.Context) (string, error) {
	var checksum string
	err := db.conn.QueryRowContext(ctx, "SELECT checksum FROM schema_migrations WHERE name = ?", db.name).Scan(&checksum)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) || strings.Contains(err.Error(), "no such table") {
			return "", nil
		}
		return "", err
	}
	return checksum, nil
}

// WithTransaction runs fn inside a transaction. A returned error or a panic
// rolls back; otherwise the transaction is committed.
func WithTransaction(ctx context.Context, db *sql.DB, fn func(*sql.Tx) error) (err error) {
	if db == nil {
		return fmt.Errorf("database connection is nil")
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			err = fmt.Errorf("panic in transaction: %v", p)
			return
		}
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				err = fmt.Errorf("transaction failed: %w (rollback: %v)", err, rbErr)
				return
			}
			err = fmt.Errorf("transaction failed: %w", err)
			return
		}
		if cErr := tx.Commit(); cErr != nil {
			err = fmt.Errorf("failed to commit transaction: %w", cErr)
		}
	}()

	return fn(tx)
}

func (db *DB) ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	return db.conn.ExecContext(ctx, query, args...)
}

func (db *DB) QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error) {
	return db.conn.QueryContext(ctx, query, args...)
}

func (db *DB) QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row {
	return db.conn.QueryRowContext(ctx, query, args...)
}

// HealthCheck pings the database and runs an integrity check.
func (db *DB) HealthCheck(ctx context.Context) error {
	if err := db.conn.PingContext(ctx); err != nil {
		return fmt.Errorf("ping failed for %s: %w", db.name, err)
	}

	var result string
	if err := db.conn.QueryRowContext(ctx, "PRAGMA integrity_check").Scan(&result); err != nil {
		return fmt.Errorf("integrity check query failed for %s: %w", db.name, err)
	}
	if result != "ok" {
		return fmt.Errorf("integrity check failed for %s: %s", db.name, result)
	}
	return nil
}

// WALCheckpoint forces a checkpoint and returns the frames in the log and the
// frames checkpointed. An empty mode means TRUNCATE.
func (db *DB) WALCheckpoint(ctx context.Context, mode string) (walFrames, checkpointed int, err error) {
	mode = strings.ToUpper(mode)
	if mode == "" {
		mode = "TRUNCATE"
	}
	if !checkpointModes[mode] {
		return 0, 0, fmt.Errorf("invalid WAL checkpoint mode %q", mode)
	}

	var busy int
	query := "PRAGMA wal_checkpoint(" + mode + ")"
	if err := db.conn.QueryRowContext(ctx, query).Scan(&busy, &walFrames, &checkpointed); err != nil {
		return 0, 0, fmt.Errorf("WAL checkpoint failed for %s: %w", db.name, err)
	}
	return walFrames, checkpointed, nil
}

// Stats describes the on-disk footprint of a database.
type Stats struct {
	SizeBytes    int64 `json:"size_bytes"`
	WALSizeBytes int64 `json:"wal_size_bytes"`
	PageCount    int64 `json:"page_count"`
	PageSize     int64 `json:"page_size"`
	FreePages    int64 `json:"free_pages"`
}

// GetStats reads file sizes and page counters.
func (db *DB) GetStats(ctx context.Context) (*Stats, error) {
	stats := &Stats{}
	if info, err := os.Stat(db.path); err == nil {
		stats.SizeBytes = info.Size()
	}
	if info, err := os.Stat(db.path + "-wal"); err == nil {
		stats.WALSizeBytes = info.Size()
	}

	for pragma, dst := range map[string]*int64{
		"page_count":     &stats.PageCount,
		"page_size":      &stats.PageSize,
		"freelist_count": &stats.FreePages,
	} {
		if err := db.conn.QueryRowContext(ctx, "PRAGMA "+pragma).Scan(dst); err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", pragma, err)
		}
	}
	return stats, nil
}
