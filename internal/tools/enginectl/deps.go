package enginectl

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/louisbranch/enginectl/internal/engine/client"
	"github.com/louisbranch/enginectl/internal/engine/metrics"
	"github.com/louisbranch/enginectl/internal/engine/protocol"
	platformgrpc "github.com/louisbranch/enginectl/internal/platform/grpc"
	"github.com/louisbranch/enginectl/internal/services/collector/storage"
	collectorsqlite "github.com/louisbranch/enginectl/internal/services/collector/storage/sqlite"
)

// closableSnapshotStore extends SnapshotStore with a Close method for resource cleanup.
type closableSnapshotStore interface {
	storage.SnapshotStore
	Close() error
}

// runtimeDeps holds the collaborators each subcommand reaches for.
type runtimeDeps struct {
	newEngine     func(cfg Config) (metrics.Caller, error)
	openSnapshots func(path string) (closableSnapshotStore, error)
	checkHealth   func(ctx context.Context, addr, service string, timeout time.Duration) error
}

func defaultDeps() runtimeDeps {
	return runtimeDeps{
		newEngine: func(cfg Config) (metrics.Caller, error) {
			return client.New(client.Config{
				SocketPath: cfg.SocketPath,
				Origin:     protocol.Origin{Name: cfg.OriginName},
			})
		},
		openSnapshots: func(path string) (closableSnapshotStore, error) {
			return collectorsqlite.Open(path)
		},
		checkHealth: func(ctx context.Context, addr, service string, timeout time.Duration) error {
			conn, err := platformgrpc.DialWithHealth(ctx, nil, addr, service, timeout, log.Printf)
			if err != nil {
				return fmt.Errorf("collector health at %s: %w", addr, err)
			}
			return conn.Close()
		},
	}
}
