// Package enginectl implements the enginectl command line: vocabulary
// inspection, raw engine calls, metrics operations, collected snapshots and
// collector health checks.
package enginectl

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/louisbranch/enginectl/internal/engine/client"
	entrypoint "github.com/louisbranch/enginectl/internal/platform/cmd"
	apperrors "github.com/louisbranch/enginectl/internal/platform/errors"
)

// Config holds enginectl command configuration.
type Config struct {
	SocketPath    string        `env:"ENGINECTL_ENGINE_SOCKET"`
	DBPath        string        `env:"ENGINECTL_COLLECTOR_DB_PATH" envDefault:"data/collector.db"`
	CollectorAddr string        `env:"ENGINECTL_COLLECTOR_ADDR" envDefault:"localhost:8095"`
	OriginName    string        `env:"ENGINECTL_CLI_ORIGIN" envDefault:"enginectl"`
	Timeout       time.Duration `env:"ENGINECTL_CLI_TIMEOUT" envDefault:"30s"`
	JSONOutput    bool
	// Args holds the subcommand and its arguments.
	Args []string
}

// ParseConfig parses environment and global flags into a Config. Everything
// after the global flags is kept in Args.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if cfg.SocketPath == "" {
		cfg.SocketPath = client.DefaultSocketPath
	}

	fs.StringVar(&cfg.SocketPath, "socket", cfg.SocketPath, "engine API unix socket path")
	fs.StringVar(&cfg.DBPath, "db-path", cfg.DBPath, "collector SQLite database path (snapshots)")
	fs.StringVar(&cfg.CollectorAddr, "addr", cfg.CollectorAddr, "collector gRPC health address (healthcheck)")
	fs.StringVar(&cfg.OriginName, "origin", cfg.OriginName, "origin name reported to the engine")
	fs.DurationVar(&cfg.Timeout, "timeout", cfg.Timeout, "overall timeout")
	fs.BoolVar(&cfg.JSONOutput, "json", false, "output JSON")
	if err := fs.Parse(args); err != nil {
		return Config{}, apperrors.Wrap(apperrors.CodeInvalidParameters, "parse flags", err)
	}
	cfg.Args = fs.Args()
	return cfg, nil
}

// Usage describes the subcommands.
const Usage = `usage: enginectl [flags] <command> [args]

commands:
  commands [-family F]              list declared engine commands
  resolve FAMILY NAME               print the wire value of a command
  call FAMILY NAME [JSON]           send a command with raw JSON parameters
  metrics dump|list|test            run a metrics manager command
  metrics get -scope S -instrument I
  metrics enable -scope S -instrument I [-status=false]
  snapshots [-limit N] [-id ID]     show snapshots recorded by the collector
  healthcheck [-service S]          wait for the collector health endpoint
`

// Run executes the enginectl command.
func Run(ctx context.Context, cfg Config, out io.Writer, errOut io.Writer) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceEngineCtl, func(ctx context.Context) error {
		return run(ctx, cfg, out, errOut, defaultDeps())
	})
}

func run(ctx context.Context, cfg Config, out io.Writer, errOut io.Writer, deps runtimeDeps) error {
	if out == nil {
		out = io.Discard
	}
	if errOut == nil {
		errOut = io.Discard
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if len(cfg.Args) == 0 {
		fmt.Fprint(errOut, Usage)
		return usageError("command is required")
	}

	r := runner{cfg: cfg, out: out, errOut: errOut, deps: deps}
	err := r.dispatch(ctx, cfg.Args[0], cfg.Args[1:])
	if errors.Is(err, flag.ErrHelp) {
		return nil
	}
	return err
}

func (r runner) dispatch(ctx context.Context, name string, args []string) error {
	switch name {
	case "commands":
		return r.commands(args)
	case "resolve":
		return r.resolve(args)
	case "call":
		return r.call(ctx, args)
	case "metrics":
		return r.metrics(ctx, args)
	case "snapshots":
		return r.snapshots(ctx, args)
	case "healthcheck":
		return r.healthcheck(ctx, args)
	case "help", "-h", "-help":
		fmt.Fprint(r.out, Usage)
		return nil
	default:
		fmt.Fprint(r.errOut, Usage)
		return usageError(fmt.Sprintf("unknown command %q", name))
	}
}

type runner struct {
	cfg    Config
	out    io.Writer
	errOut io.Writer
	deps   runtimeDeps
}

// subFlags builds a flag set for one subcommand that reports errors instead
// of exiting.
func (r runner) subFlags(name string) *flag.FlagSet {
	fs := flag.NewFlagSet("enginectl "+name, flag.ContinueOnError)
	fs.SetOutput(r.errOut)
	return fs
}

func parseSubFlags(fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return err
		}
		return apperrors.Wrap(apperrors.CodeInvalidParameters, "parse "+fs.Name()+" flags", err)
	}
	return nil
}

func usageError(message string) error {
	return apperrors.New(apperrors.CodeInvalidParameters, message)
}

func expectArgs(name string, args []string, least, most int) error {
	if len(args) < least || len(args) > most {
		return usageError(fmt.Sprintf("%s: got %d arguments (%s)", name, len(args), strings.Join(args, " ")))
	}
	return nil
}
