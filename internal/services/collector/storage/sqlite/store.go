// Package sqlite provides the SQLite-backed snapshot store.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	apperrors "github.com/louisbranch/enginectl/internal/platform/errors"
	"github.com/louisbranch/enginectl/internal/platform/storage/sqlitemigrate"
	"github.com/louisbranch/enginectl/internal/services/collector/storage"
	"github.com/louisbranch/enginectl/internal/services/collector/storage/sqlite/migrations"
	_ "modernc.org/sqlite"
)

// listPrealloc bounds the up-front allocation for ListSnapshots; larger
// limits grow the slice as rows arrive.
const listPrealloc = 64

// Store provides SQLite-backed snapshot persistence.
type Store struct {
	sqlDB *sql.DB
}

// Open opens a collector SQLite store and applies migrations.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	dsn := filepath.Clean(path) + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := sqlitemigrate.Apply(context.Background(), sqlDB, migrations.FS, ""); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{sqlDB: sqlDB}, nil
}

// Close releases the SQLite connection.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// RecordSnapshot persists one snapshot and returns its id.
func (s *Store) RecordSnapshot(ctx context.Context, snapshot storage.Snapshot) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if s == nil || s.sqlDB == nil {
		return 0, fmt.Errorf("storage is not configured")
	}

	snapshot.Command = strings.TrimSpace(snapshot.Command)
	snapshot.Error = strings.TrimSpace(snapshot.Error)
	if snapshot.Command == "" {
		return 0, fmt.Errorf("command is required")
	}
	if len(snapshot.Payload) == 0 && snapshot.Error == "" {
		return 0, fmt.Errorf("payload or error is required")
	}
	if len(snapshot.Payload) > 0 && snapshot.Error != "" {
		return 0, fmt.Errorf("payload and error are mutually exclusive")
	}
	if len(snapshot.Payload) > 0 && !json.Valid(snapshot.Payload) {
		return 0, fmt.Errorf("payload must be valid json")
	}
	if snapshot.TakenAt.IsZero() {
		snapshot.TakenAt = time.Now().UTC()
	}

	result, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO metric_snapshots (
	command,
	payload,
	error,
	taken_at
) VALUES (?, ?, ?, ?)
`,
		snapshot.Command,
		string(snapshot.Payload),
		snapshot.Error,
		snapshot.TakenAt.UTC().UnixMilli(),
	)
	if err != nil {
		return 0, fmt.Errorf("record snapshot: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("record snapshot id: %w", err)
	}
	return id, nil
}

// GetSnapshot returns one snapshot by id.
func (s *Store) GetSnapshot(ctx context.Context, id int64) (storage.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return storage.Snapshot{}, err
	}
	if s == nil || s.sqlDB == nil {
		return storage.Snapshot{}, fmt.Errorf("storage is not configured")
	}

	row := s.sqlDB.QueryRowContext(ctx, `
SELECT id, command, payload, error, taken_at
FROM metric_snapshots
WHERE id = ?
`, id)
	snapshot, err := scanSnapshot(row)
	if errors.Is(err, sql.ErrNoRows) {
		return storage.Snapshot{}, apperrors.WithMetadata(
			apperrors.CodeNotFound,
			fmt.Sprintf("snapshot %d not found", id),
			map[string]string{"snapshot_id": fmt.Sprint(id)},
		)
	}
	if err != nil {
		return storage.Snapshot{}, fmt.Errorf("get snapshot: %w", err)
	}
	return snapshot, nil
}

// ListSnapshots lists newest-first snapshots.
func (s *Store) ListSnapshots(ctx context.Context, limit int) ([]storage.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be greater than zero")
	}

	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT id, command, payload, error, taken_at
FROM metric_snapshots
ORDER BY taken_at DESC, id DESC
LIMIT ?
`, limit)
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	defer rows.Close()

	snapshots := make([]storage.Snapshot, 0, min(limit, listPrealloc))
	for rows.Next() {
		snapshot, err := scanSnapshot(rows)
		if err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		snapshots = append(snapshots, snapshot)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate snapshots: %w", err)
	}
	return snapshots, nil
}

// PruneSnapshots deletes all but the newest keep snapshots and returns how
// many rows were removed.
func (s *Store) PruneSnapshots(ctx context.Context, keep int) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if s == nil || s.sqlDB == nil {
		return 0, fmt.Errorf("storage is not configured")
	}
	if keep <= 0 {
		return 0, fmt.Errorf("keep must be greater than zero")
	}

	result, err := s.sqlDB.ExecContext(ctx, `
DELETE FROM metric_snapshots
WHERE id NOT IN (
	SELECT id FROM metric_snapshots
	ORDER BY taken_at DESC, id DESC
	LIMIT ?
)
`, keep)
	if err != nil {
		return 0, fmt.Errorf("prune snapshots: %w", err)
	}
	removed, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("prune snapshots count: %w", err)
	}
	return removed, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSnapshot(row rowScanner) (storage.Snapshot, error) {
	var (
		snapshot storage.Snapshot
		payload  string
		takenAt  int64
	)
	if err := row.Scan(
		&snapshot.ID,
		&snapshot.Command,
		&payload,
		&snapshot.Error,
		&takenAt,
	); err != nil {
		return storage.Snapshot{}, err
	}
	if payload != "" {
		snapshot.Payload = json.RawMessage(payload)
	}
	snapshot.TakenAt = time.UnixMilli(takenAt).UTC()
	return snapshot, nil
}

var _ storage.SnapshotStore = (*Store)(nil)
