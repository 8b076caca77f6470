package domain

import (
	"context"
	"fmt"
	"time"

	"github.com/louisbranch/enginectl/internal/services/collector/storage"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const (
	defaultSnapshotLimit = 10
	maxSnapshotLimit     = 100
)

// SnapshotLister reads collected metric snapshots.
type SnapshotLister interface {
	ListSnapshots(ctx context.Context, limit int) ([]storage.Snapshot, error)
}

// SnapshotsInput represents the MCP tool input for listing snapshots.
type SnapshotsInput struct {
	Limit int `json:"limit,omitempty" jsonschema:"maximum snapshots to return (default 10, max 100)"`
}

// SnapshotInfo describes one collected snapshot.
type SnapshotInfo struct {
	ID      int64  `json:"id" jsonschema:"snapshot id"`
	Command string `json:"command" jsonschema:"wire command that produced the snapshot"`
	TakenAt string `json:"taken_at" jsonschema:"RFC 3339 capture time"`
	Data    any    `json:"data,omitempty" jsonschema:"engine payload when the call succeeded"`
	Error   string `json:"error,omitempty" jsonschema:"failure text when the call failed"`
}

// SnapshotsResult represents the MCP tool output for listing snapshots.
type SnapshotsResult struct {
	Snapshots []SnapshotInfo `json:"snapshots" jsonschema:"snapshots newest first"`
}

// SnapshotsTool defines the MCP tool schema for listing snapshots.
func SnapshotsTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "metrics_snapshots",
		Description: "Lists metric dumps recorded by the collector, newest first",
	}
}

// SnapshotsHandler lists recorded snapshots.
func SnapshotsHandler(lister SnapshotLister) mcp.ToolHandlerFor[SnapshotsInput, SnapshotsResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input SnapshotsInput) (*mcp.CallToolResult, SnapshotsResult, error) {
		if lister == nil {
			return nil, SnapshotsResult{}, fmt.Errorf("snapshot store is not configured")
		}
		limit := input.Limit
		if limit <= 0 {
			limit = defaultSnapshotLimit
		}
		limit = min(limit, maxSnapshotLimit)

		snapshots, err := lister.ListSnapshots(ctx, limit)
		if err != nil {
			return nil, SnapshotsResult{}, fmt.Errorf("list snapshots failed: %w", err)
		}

		infos := make([]SnapshotInfo, 0, len(snapshots))
		for _, snapshot := range snapshots {
			data, err := DecodePayload(snapshot.Payload)
			if err != nil {
				return nil, SnapshotsResult{}, fmt.Errorf("decode snapshot %d: %w", snapshot.ID, err)
			}
			infos = append(infos, SnapshotInfo{
				ID:      snapshot.ID,
				Command: snapshot.Command,
				TakenAt: snapshot.TakenAt.UTC().Format(time.RFC3339),
				Data:    data,
				Error:   snapshot.Error,
			})
		}
		return nil, SnapshotsResult{Snapshots: infos}, nil
	}
}
