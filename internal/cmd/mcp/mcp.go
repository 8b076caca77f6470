// Package mcp parses MCP command flags and selects stdio or HTTP transport.
package mcp

import (
	"context"
	"flag"
	"time"

	"github.com/louisbranch/enginectl/internal/engine/client"
	entrypoint "github.com/louisbranch/enginectl/internal/platform/cmd"
	mcpservice "github.com/louisbranch/enginectl/internal/services/mcp/service"
)

// Config holds MCP command configuration.
type Config struct {
	SocketPath     string        `env:"ENGINECTL_ENGINE_SOCKET"`
	RequestTimeout time.Duration `env:"ENGINECTL_ENGINE_REQUEST_TIMEOUT" envDefault:"5s"`
	HTTPAddr       string        `env:"ENGINECTL_MCP_HTTP_ADDR"          envDefault:"localhost:8081"`
	Transport      string        `env:"ENGINECTL_MCP_TRANSPORT"          envDefault:"stdio"`
	OriginName     string        `env:"ENGINECTL_MCP_ORIGIN"             envDefault:"enginectl-mcp"`
	SnapshotDBPath string        `env:"ENGINECTL_MCP_SNAPSHOT_DB_PATH"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	if cfg.SocketPath == "" {
		cfg.SocketPath = client.DefaultSocketPath
	}

	fs.StringVar(&cfg.SocketPath, "socket", cfg.SocketPath, "engine API unix socket path")
	fs.DurationVar(&cfg.RequestTimeout, "request-timeout", cfg.RequestTimeout, "engine request timeout")
	fs.StringVar(&cfg.HTTPAddr, "http-addr", cfg.HTTPAddr, "HTTP server address (for HTTP transport)")
	fs.StringVar(&cfg.Transport, "transport", cfg.Transport, "Transport type: stdio or http")
	fs.StringVar(&cfg.OriginName, "origin", cfg.OriginName, "origin name reported to the engine")
	fs.StringVar(&cfg.SnapshotDBPath, "snapshot-db", cfg.SnapshotDBPath, "collector SQLite database to expose through metrics_snapshots")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run starts the MCP protocol adapter.
func Run(ctx context.Context, cfg Config) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceMCP, func(ctx context.Context) error {
		return mcpservice.Run(ctx, mcpservice.Config{
			Transport:      mcpservice.TransportKind(cfg.Transport),
			HTTPAddr:       cfg.HTTPAddr,
			SocketPath:     cfg.SocketPath,
			OriginName:     cfg.OriginName,
			RequestTimeout: cfg.RequestTimeout,
			SnapshotDBPath: cfg.SnapshotDBPath,
		})
	})
}
