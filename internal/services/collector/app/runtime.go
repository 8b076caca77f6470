// Package app wires the metrics collector: engine client, snapshot storage,
// the poll loop and a gRPC health endpoint.
package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/louisbranch/enginectl/internal/engine/client"
	"github.com/louisbranch/enginectl/internal/engine/metrics"
	"github.com/louisbranch/enginectl/internal/engine/protocol"
	platformgrpc "github.com/louisbranch/enginectl/internal/platform/grpc"
	"github.com/louisbranch/enginectl/internal/platform/timeouts"
	collectorsqlite "github.com/louisbranch/enginectl/internal/services/collector/storage/sqlite"
	grpc_health_v1 "google.golang.org/grpc/health/grpc_health_v1"
)

// RuntimeConfig controls collector startup, dependencies, and loop behavior.
type RuntimeConfig struct {
	Port           int
	SocketPath     string
	DBPath         string
	OriginName     string
	PollInterval   time.Duration
	Retention      int
	RequestTimeout time.Duration
	// Dialer overrides how the engine socket is reached.
	Dialer client.Dialer
	// Listener overrides the health endpoint listener; Port is ignored when set.
	Listener net.Listener
}

const (
	defaultCollectorPort = 8095
	defaultCollectorDB   = "data/collector.db"
	defaultOriginName    = "enginectl-collector"
)

// Run starts collector runtime dependencies and the background poll loop.
func Run(ctx context.Context, cfg RuntimeConfig) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if cfg.Port <= 0 {
		cfg.Port = defaultCollectorPort
	}
	if strings.TrimSpace(cfg.DBPath) == "" {
		cfg.DBPath = defaultCollectorDB
	}
	if strings.TrimSpace(cfg.OriginName) == "" {
		cfg.OriginName = defaultOriginName
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = timeouts.EngineRequest
	}

	if dir := filepath.Dir(cfg.DBPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create collector storage dir: %w", err)
		}
	}

	store, err := collectorsqlite.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open collector sqlite store: %w", err)
	}
	defer func() {
		if closeErr := store.Close(); closeErr != nil {
			log.Printf("close collector sqlite store: %v", closeErr)
		}
	}()

	engine, err := client.New(client.Config{
		SocketPath:     cfg.SocketPath,
		Origin:         protocol.Origin{Name: cfg.OriginName},
		RequestTimeout: cfg.RequestTimeout,
		Dialer:         cfg.Dialer,
	})
	if err != nil {
		return fmt.Errorf("configure engine client: %w", err)
	}
	manager, err := metrics.NewManager(engine)
	if err != nil {
		return fmt.Errorf("configure metrics manager: %w", err)
	}

	listener := cfg.Listener
	if listener == nil {
		listener, err = net.Listen("tcp", fmt.Sprintf(":%d", cfg.Port))
		if err != nil {
			return fmt.Errorf("listen on collector port %d: %w", cfg.Port, err)
		}
	}
	defer listener.Close()

	grpcServer, healthServer := platformgrpc.NewHealthServer()
	healthServer.SetServingStatus(EngineHealthService, grpc_health_v1.HealthCheckResponse_NOT_SERVING)

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- grpcServer.Serve(listener)
	}()
	serving := true
	defer func() {
		healthServer.Shutdown()
		grpcServer.GracefulStop()
		if serving {
			<-serveErr
		}
	}()

	log.Printf("collector server listening at %v, polling engine at %s", listener.Addr(), engine.SocketPath())
	poller := NewPoller(manager, store, healthServer, PollerConfig{
		Interval:  cfg.PollInterval,
		Retention: cfg.Retention,
	})

	pollCtx, cancelPoll := context.WithCancel(ctx)
	defer cancelPoll()
	pollDone := make(chan error, 1)
	go func() {
		pollDone <- poller.Run(pollCtx)
	}()

	select {
	case err := <-pollDone:
		return err
	case err := <-serveErr:
		serving = false
		cancelPoll()
		<-pollDone
		if err == nil {
			err = errors.New("server stopped")
		}
		return fmt.Errorf("serve collector health: %w", err)
	}
}
