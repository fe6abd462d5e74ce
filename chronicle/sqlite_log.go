package chronicle

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sat8bit/janus/chronicle/migrations"
	"github.com/sat8bit/janus/world"
	_ "modernc.org/sqlite"
)

const migrationTable = "schema_migrations"

// SQLiteLog keeps the chronicle in a SQLite table. Appends are inserts, so
// the cost per entry does not grow with the history.
type SQLiteLog struct {
	sqlDB   *sql.DB
	mu      sync.Mutex
	pending []Entry
}

// OpenSQLite opens (and migrates) the chronicle database at path.
func OpenSQLite(path string) (*SQLiteLog, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("chronicle path is required")
	}

	cleanPath := filepath.Clean(path)
	dsn := "file:" + cleanPath + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(FULL)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := applyMigrations(sqlDB, migrations.FS); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &SQLiteLog{sqlDB: sqlDB}, nil
}

func (l *SQLiteLog) Append(ctx context.Context, e Entry) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.pending = append(l.pending, e)
	return l.flushLocked(ctx)
}

func (l *SQLiteLog) Flush(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.pending) == 0 {
		return nil
	}
	return l.flushLocked(ctx)
}

func (l *SQLiteLog) Pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.pending)
}

func (l *SQLiteLog) Entries(ctx context.Context) ([]Entry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	rows, err := l.sqlDB.QueryContext(ctx,
		"SELECT recorded_at, source, text, depth, metrics FROM chronicle_entries ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("query chronicle: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e          Entry
			recordedAt int64
			source     string
			metricsRaw sql.NullString
		)
		if err := rows.Scan(&recordedAt, &source, &e.Text, &e.Depth, &metricsRaw); err != nil {
			return nil, fmt.Errorf("scan chronicle entry: %w", err)
		}
		e.Source = Source(source)
		e.Timestamp = time.UnixMilli(recordedAt)
		if metricsRaw.Valid && metricsRaw.String != "" {
			var m world.Metrics
			if err := json.Unmarshal([]byte(metricsRaw.String), &m); err != nil {
				return nil, fmt.Errorf("decode metrics: %w", err)
			}
			e.Metrics = &m
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate chronicle: %w", err)
	}
	return entries, nil
}

func (l *SQLiteLog) Close() error {
	if l == nil || l.sqlDB == nil {
		return nil
	}
	return l.sqlDB.Close()
}

func (l *SQLiteLog) flushLocked(ctx context.Context) error {
	tx, err := l.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin: %w", ErrWrite, err)
	}
	for _, e := range l.pending {
		var metrics sql.NullString
		if e.Metrics != nil {
			raw, err := json.Marshal(e.Metrics)
			if err != nil {
				_ = tx.Rollback()
				return fmt.Errorf("%w: encode metrics: %w", ErrWrite, err)
			}
			metrics = sql.NullString{String: string(raw), Valid: true}
		}
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO chronicle_entries (recorded_at, source, text, depth, metrics) VALUES (?, ?, ?, ?, ?)",
			e.Timestamp.UnixMilli(), string(e.Source), e.Text, e.Depth, metrics,
		); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("%w: insert: %w", ErrWrite, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit: %w", ErrWrite, err)
	}
	l.pending = nil
	return nil
}

// applyMigrations executes every embedded migration at most once.
func applyMigrations(sqlDB *sql.DB, migrationFS fs.FS) error {
	entries, err := fs.ReadDir(migrationFS, ".")
	if err != nil {
		return fmt.Errorf("read migrations dir: %w", err)
	}
	var sqlFiles []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".sql") {
			sqlFiles = append(sqlFiles, entry.Name())
		}
	}
	sort.Strings(sqlFiles)

	if _, err := sqlDB.Exec(fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
    name TEXT PRIMARY KEY,
    applied_at INTEGER NOT NULL
);`, migrationTable)); err != nil {
		return fmt.Errorf("ensure migration table: %w", err)
	}

	for _, file := range sqlFiles {
		var found int
		err := sqlDB.QueryRow("SELECT 1 FROM "+migrationTable+" WHERE name = ?", file).Scan(&found)
		if err == nil {
			continue
		}
		if err != sql.ErrNoRows {
			return fmt.Errorf("check migration %s: %w", file, err)
		}

		content, err := fs.ReadFile(migrationFS, file)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", file, err)
		}
		tx, err := sqlDB.Begin()
		if err != nil {
			return fmt.Errorf("begin migration transaction %s: %w", file, err)
		}
		if _, err := tx.Exec(upSection(string(content))); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("exec migration %s: %w", file, err)
		}
		if _, err := tx.Exec(
			"INSERT INTO "+migrationTable+" (name, applied_at) VALUES (?, ?)",
			file, time.Now().UTC().UnixMilli(),
		); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("record migration %s: %w", file, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %s: %w", file, err)
		}
	}
	return nil
}

// upSection returns the SQL between the Up and Down markers.
func upSection(content string) string {
	const up, down = "-- +migrate Up", "-- +migrate Down"
	i := strings.Index(content, up)
	if i == -1 {
		return content
	}
	content = content[i+len(up):]
	if j := strings.Index(content, down); j != -1 {
		content = content[:j]
	}
	return content
}

var _ Log = (*SQLiteLog)(nil)
