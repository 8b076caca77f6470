package app

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/louisbranch/enginectl/internal/engine/command"
	"github.com/louisbranch/enginectl/internal/services/collector/storage"
	grpc_health_v1 "google.golang.org/grpc/health/grpc_health_v1"
)

// EngineHealthService is the gRPC health service name that tracks whether the
// last engine poll succeeded.
const EngineHealthService = "collector.engine"

const (
	defaultPollInterval = 30 * time.Second
	defaultRetention    = 1000
)

// Dumper fetches the engine's current metrics dump.
type Dumper interface {
	Dump(ctx context.Context) (json.RawMessage, error)
}

// SnapshotWriter is the subset of snapshot storage the poller needs.
type SnapshotWriter interface {
	RecordSnapshot(ctx context.Context, snapshot storage.Snapshot) (int64, error)
	PruneSnapshots(ctx context.Context, keep int) (int64, error)
}

// HealthReporter receives serving status updates.
type HealthReporter interface {
	SetServingStatus(service string, status grpc_health_v1.HealthCheckResponse_ServingStatus)
}

// PollerConfig controls poll cadence and snapshot retention.
type PollerConfig struct {
	Interval  time.Duration
	Retention int
}

func (c PollerConfig) normalized() PollerConfig {
	if c.Interval <= 0 {
		c.Interval = defaultPollInterval
	}
	if c.Retention <= 0 {
		c.Retention = defaultRetention
	}
	return c
}

// Poller records one metrics snapshot per interval.
type Poller struct {
	dumper Dumper
	store  SnapshotWriter
	health HealthReporter
	config PollerConfig
	clock  func() time.Time
	logf   func(string, ...any)
}

// NewPoller builds a poller. A nil health reporter disables status updates.
func NewPoller(dumper Dumper, store SnapshotWriter, health HealthReporter, cfg PollerConfig) *Poller {
	return &Poller{
		dumper: dumper,
		store:  store,
		health: health,
		config: cfg.normalized(),
		clock:  time.Now,
		logf:   log.Printf,
	}
}

// Run polls once immediately, then on every tick until ctx ends.
func (p *Poller) Run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := p.Poll(ctx); err != nil && ctx.Err() == nil {
		p.logf("metrics poll failed: %v", err)
	}

	ticker := time.NewTicker(p.config.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := p.Poll(ctx); err != nil && ctx.Err() == nil {
				p.logf("metrics poll failed: %v", err)
			}
		}
	}
}

// Poll fetches one dump and records its outcome. The returned error is the
// dump failure, if any; storage failures are returned only when the dump
// itself succeeded.
func (p *Poller) Poll(ctx context.Context) error {
	if p == nil || p.dumper == nil {
		return fmt.Errorf("poller dumper is not configured")
	}
	if p.store == nil {
		return fmt.Errorf("poller store is not configured")
	}

	payload, dumpErr := p.dumper.Dump(ctx)
	if dumpErr != nil && ctx.Err() != nil {
		return dumpErr
	}

	snapshot := storage.Snapshot{
		Command: command.MetricDump.WireValue(),
		TakenAt: p.clock().UTC(),
	}
	switch {
	case dumpErr != nil:
		snapshot.Error = dumpErr.Error()
		p.setStatus(grpc_health_v1.HealthCheckResponse_NOT_SERVING)
	case len(payload) == 0:
		snapshot.Payload = json.RawMessage("null")
		p.setStatus(grpc_health_v1.HealthCheckResponse_SERVING)
	default:
		snapshot.Payload = payload
		p.setStatus(grpc_health_v1.HealthCheckResponse_SERVING)
	}

	_, recordErr := p.store.RecordSnapshot(ctx, snapshot)
	if recordErr == nil {
		if _, err := p.store.PruneSnapshots(ctx, p.config.Retention); err != nil {
			p.logf("prune snapshots: %v", err)
		}
	}
	if dumpErr != nil {
		if recordErr != nil {
			p.logf("record failed snapshot: %v", recordErr)
		}
		return dumpErr
	}
	if recordErr != nil {
		return fmt.Errorf("record snapshot: %w", recordErr)
	}
	return nil
}

func (p *Poller) setStatus(status grpc_health_v1.HealthCheckResponse_ServingStatus) {
	if p.health == nil {
		return
	}
	p.health.SetServingStatus(EngineHealthService, status)
}
