// Package storage defines persistence contracts for collected metric
// snapshots.
package storage

import (
	"context"
	"encoding/json"
	"time"
)

// Snapshot is one recorded outcome of a metrics command against the engine.
// Exactly one of Payload and Error is set.
type Snapshot struct {
	ID      int64
	Command string
	Payload json.RawMessage
	Error   string
	TakenAt time.Time
}

// Failed reports whether the snapshot records a failed call.
func (s Snapshot) Failed() bool {
	return s.Error != ""
}

// SnapshotStore persists metric snapshots.
type SnapshotStore interface {
	RecordSnapshot(ctx context.Context, snapshot Snapshot) (int64, error)
	GetSnapshot(ctx context.Context, id int64) (Snapshot, error)
	ListSnapshots(ctx context.Context, limit int) ([]Snapshot, error)
	PruneSnapshots(ctx context.Context, keep int) (int64, error)
}
