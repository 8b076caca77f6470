package enginectl

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/louisbranch/enginectl/internal/engine/command"
	"github.com/louisbranch/enginectl/internal/engine/metrics"
	apperrors "github.com/louisbranch/enginectl/internal/platform/errors"
	"github.com/louisbranch/enginectl/internal/services/collector/storage"
)

type engineCall struct {
	id     command.Identifier
	params any
}

// fakeEngine records calls and answers from a wire-keyed table.
type fakeEngine struct {
	responses map[string]json.RawMessage
	err       error
	calls     []engineCall
}

func (f *fakeEngine) Call(_ context.Context, id command.Identifier, params any) (json.RawMessage, error) {
	f.calls = append(f.calls, engineCall{id: id, params: params})
	if f.err != nil {
		return nil, f.err
	}
	return f.responses[id.WireValue()], nil
}

// fakeSnapshotStore implements storage.SnapshotStore over a slice.
type fakeSnapshotStore struct {
	snapshots []storage.Snapshot
	limits    []int
	closed    bool
}

func (f *fakeSnapshotStore) RecordSnapshot(context.Context, storage.Snapshot) (int64, error) {
	return 0, fmt.Errorf("not implemented")
}

func (f *fakeSnapshotStore) GetSnapshot(_ context.Context, id int64) (storage.Snapshot, error) {
	for _, snapshot := range f.snapshots {
		if snapshot.ID == id {
			return snapshot, nil
		}
	}
	return storage.Snapshot{}, apperrors.New(apperrors.CodeNotFound, "snapshot not found")
}

func (f *fakeSnapshotStore) ListSnapshots(_ context.Context, limit int) ([]storage.Snapshot, error) {
	f.limits = append(f.limits, limit)
	return f.snapshots[:min(limit, len(f.snapshots))], nil
}

func (f *fakeSnapshotStore) PruneSnapshots(context.Context, int) (int64, error) {
	return 0, fmt.Errorf("not implemented")
}

func (f *fakeSnapshotStore) Close() error {
	f.closed = true
	return nil
}

type healthCall struct {
	addr    string
	service string
	timeout time.Duration
}

func testDeps(engine *fakeEngine, store *fakeSnapshotStore, healthErr error, health *[]healthCall) runtimeDeps {
	return runtimeDeps{
		newEngine: func(Config) (metrics.Caller, error) {
			if engine == nil {
				return nil, fmt.Errorf("engine not configured")
			}
			return engine, nil
		},
		openSnapshots: func(string) (closableSnapshotStore, error) {
			if store == nil {
				return nil, fmt.Errorf("store not configured")
			}
			return store, nil
		},
		checkHealth: func(_ context.Context, addr, service string, timeout time.Duration) error {
			if health != nil {
				*health = append(*health, healthCall{addr: addr, service: service, timeout: timeout})
			}
			return healthErr
		},
	}
}
