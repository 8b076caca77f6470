// Package collector parses collector command flags and launches the collector runtime.
package collector

import (
	"context"
	"flag"
	"time"

	"github.com/louisbranch/enginectl/internal/engine/client"
	entrypoint "github.com/louisbranch/enginectl/internal/platform/cmd"
	collectorserver "github.com/louisbranch/enginectl/internal/services/collector/app"
)

// Config holds collector command configuration.
type Config struct {
	Port           int           `env:"ENGINECTL_COLLECTOR_PORT" envDefault:"8095"`
	SocketPath     string        `env:"ENGINECTL_ENGINE_SOCKET"`
	DBPath         string        `env:"ENGINECTL_COLLECTOR_DB_PATH" envDefault:"data/collector.db"`
	OriginName     string        `env:"ENGINECTL_COLLECTOR_ORIGIN" envDefault:"enginectl-collector"`
	PollInterval   time.Duration `env:"ENGINECTL_COLLECTOR_POLL_INTERVAL" envDefault:"30s"`
	Retention      int           `env:"ENGINECTL_COLLECTOR_RETENTION" envDefault:"1000"`
	RequestTimeout time.Duration `env:"ENGINECTL_ENGINE_REQUEST_TIMEOUT" envDefault:"5s"`
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
	fs.IntVar(&cfg.Port, "port", cfg.Port, "The collector health gRPC server port")
	fs.StringVar(&cfg.SocketPath, "socket", cfg.SocketPath, "The engine API unix socket path")
	fs.StringVar(&cfg.DBPath, "db-path", cfg.DBPath, "The collector SQLite database path")
	fs.StringVar(&cfg.OriginName, "origin", cfg.OriginName, "Origin name reported to the engine")
	fs.DurationVar(&cfg.PollInterval, "poll-interval", cfg.PollInterval, "Metrics dump poll interval")
	fs.IntVar(&cfg.Retention, "retention", cfg.Retention, "Number of snapshots to keep")
	fs.DurationVar(&cfg.RequestTimeout, "request-timeout", cfg.RequestTimeout, "Engine request timeout")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run starts the collector runtime.
func Run(ctx context.Context, cfg Config) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceCollector, func(ctx context.Context) error {
		return collectorserver.Run(ctx, collectorserver.RuntimeConfig{
			Port:           cfg.Port,
			SocketPath:     cfg.SocketPath,
			DBPath:         cfg.DBPath,
			OriginName:     cfg.OriginName,
			PollInterval:   cfg.PollInterval,
			Retention:      cfg.Retention,
			RequestTimeout: cfg.RequestTimeout,
		})
	})
}
