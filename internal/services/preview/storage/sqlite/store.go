// Package sqlite provides a SQLite-backed snapshot store.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	sqlitemigrate "github.com/louisbranch/livepreview/internal/platform/storage/sqlitemigrate"
	"github.com/louisbranch/livepreview/internal/services/preview/storage"
	"github.com/louisbranch/livepreview/internal/services/preview/storage/sqlite/migrations"
	_ "modernc.org/sqlite"
)

// Store persists preview snapshots in SQLite.
type Store struct {
	sqlDB *sql.DB
	now   func() time.Time
}

var _ storage.SnapshotStore = (*Store)(nil)

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// Open opens a SQLite snapshot store and applies embedded migrations.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	cleanPath := filepath.Clean(path)
	dsn := cleanPath + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := sqlitemigrate.ApplyMigrations(context.Background(), sqlDB, migrations.FS, ""); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{sqlDB: sqlDB, now: time.Now}, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// PutSnapshot inserts or replaces the snapshot for its root id. Older
// sequences never overwrite newer ones.
func (s *Store) PutSnapshot(ctx context.Context, snapshot storage.Snapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	rootID := strings.TrimSpace(snapshot.RootID)
	if rootID == "" {
		return fmt.Errorf("root id is required")
	}
	if snapshot.Sequence < 0 {
		return fmt.Errorf("sequence must not be negative")
	}
	updatedAt := snapshot.UpdatedAt.UTC()
	if updatedAt.IsZero() {
		updatedAt = s.now().UTC()
	}

	_, err := s.sqlDB.ExecContext(
		ctx,
		`INSERT INTO preview_snapshots (root_id, markup, head_markup, title, base_uri, sequence, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(root_id) DO UPDATE SET
		   markup = excluded.markup,
		   head_markup = excluded.head_markup,
		   title = excluded.title,
		   base_uri = excluded.base_uri,
		   sequence = excluded.sequence,
		   updated_at = excluded.updated_at
		 WHERE excluded.sequence >= preview_snapshots.sequence`,
		rootID,
		snapshot.Markup,
		snapshot.Head,
		snapshot.Title,
		snapshot.BaseURI,
		snapshot.Sequence,
		toMillis(updatedAt),
	)
	if err != nil {
		return fmt.Errorf("put snapshot: %w", err)
	}
	return nil
}

// GetSnapshot returns the snapshot for rootID.
func (s *Store) GetSnapshot(ctx context.Context, rootID string) (storage.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return storage.Snapshot{}, err
	}
	if s == nil || s.sqlDB == nil {
		return storage.Snapshot{}, fmt.Errorf("storage is not configured")
	}
	rootID = strings.TrimSpace(rootID)
	if rootID == "" {
		return storage.Snapshot{}, fmt.Errorf("root id is required")
	}

	row := s.sqlDB.QueryRowContext(
		ctx,
		`SELECT root_id, markup, head_markup, title, base_uri, sequence, updated_at
		   FROM preview_snapshots
		  WHERE root_id = ?`,
		rootID,
	)

	var snapshot storage.Snapshot
	var updatedAt int64
	err := row.Scan(
		&snapshot.RootID,
		&snapshot.Markup,
		&snapshot.Head,
		&snapshot.Title,
		&snapshot.BaseURI,
		&snapshot.Sequence,
		&updatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.Snapshot{}, storage.ErrNotFound
		}
		return storage.Snapshot{}, fmt.Errorf("get snapshot: %w", err)
	}
	snapshot.UpdatedAt = fromMillis(updatedAt)
	return snapshot, nil
}
