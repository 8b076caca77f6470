package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/louisbranch/enginectl/internal/engine/client"
	"github.com/louisbranch/enginectl/internal/engine/metrics"
	"github.com/louisbranch/enginectl/internal/engine/protocol"
	"github.com/louisbranch/enginectl/internal/platform/timeouts"
	collectorsqlite "github.com/louisbranch/enginectl/internal/services/collector/storage/sqlite"
	"github.com/louisbranch/enginectl/internal/services/mcp/domain"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const (
	serverName    = "enginectl MCP"
	serverVersion = "0.1.0"

	defaultHTTPAddr   = "localhost:8081"
	defaultOriginName = "enginectl-mcp"
)

// TransportKind identifies the MCP transport implementation.
type TransportKind string

const (
	// TransportStdio uses standard input/output for MCP.
	TransportStdio TransportKind = "stdio"
	// TransportHTTP serves the streamable HTTP transport.
	TransportHTTP TransportKind = "http"
)

// Config configures the MCP server.
type Config struct {
	Transport      TransportKind
	HTTPAddr       string
	SocketPath     string
	OriginName     string
	RequestTimeout time.Duration
	// SnapshotDBPath enables the metrics_snapshots tool when set.
	SnapshotDBPath string
	// Dialer overrides how the engine socket is reached.
	Dialer client.Dialer
}

// Server hosts the MCP server.
type Server struct {
	mcpServer *mcp.Server
	store     *collectorsqlite.Store
}

// New creates an MCP server backed by the engine socket and, when configured,
// the collector snapshot store.
func New(cfg Config) (*Server, error) {
	origin := strings.TrimSpace(cfg.OriginName)
	if origin == "" {
		origin = defaultOriginName
	}
	requestTimeout := cfg.RequestTimeout
	if requestTimeout <= 0 {
		requestTimeout = timeouts.EngineRequest
	}
	engine, err := client.New(client.Config{
		SocketPath:     cfg.SocketPath,
		Origin:         protocol.Origin{Name: origin},
		RequestTimeout: requestTimeout,
		Dialer:         cfg.Dialer,
	})
	if err != nil {
		return nil, fmt.Errorf("configure engine client: %w", err)
	}
	manager, err := metrics.NewManager(engine)
	if err != nil {
		return nil, fmt.Errorf("configure metrics manager: %w", err)
	}

	var store *collectorsqlite.Store
	var snapshots domain.SnapshotLister
	if path := strings.TrimSpace(cfg.SnapshotDBPath); path != "" {
		store, err = collectorsqlite.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open snapshot store: %w", err)
		}
		snapshots = store
	}

	server, err := newServer(manager, snapshots)
	if err != nil {
		if store != nil {
			_ = store.Close()
		}
		return nil, err
	}
	server.store = store
	return server, nil
}

// newServer binds tool and resource handlers once.
func newServer(manager domain.MetricsManager, snapshots domain.SnapshotLister) (*Server, error) {
	mcpServer := mcp.NewServer(&mcp.Implementation{Name: serverName, Version: serverVersion}, nil)
	for _, module := range newMCPRegistrationModules(manager, snapshots) {
		if err := module.register(mcpServerRegistrationAdapter{server: mcpServer}); err != nil {
			return nil, fmt.Errorf("register MCP module %q: %w", module.name, err)
		}
	}
	return &Server{mcpServer: mcpServer}, nil
}

// Run is the service entrypoint for MCP and blocks until context cancellation.
func Run(ctx context.Context, cfg Config) error {
	if cfg.Transport == "" {
		cfg.Transport = TransportStdio
	}
	switch cfg.Transport {
	case TransportStdio, TransportHTTP:
	default:
		return fmt.Errorf("transport %q is not supported", cfg.Transport)
	}

	server, err := New(cfg)
	if err != nil {
		return err
	}
	if cfg.Transport == TransportHTTP {
		return server.serveHTTP(ctx, cfg.HTTPAddr)
	}
	return server.serveWithTransport(ctx, &mcp.StdioTransport{})
}

// Close releases the snapshot store held by the server.
func (s *Server) Close() error {
	if s == nil || s.store == nil {
		return nil
	}
	if err := s.store.Close(); err != nil {
		return err
	}
	s.store = nil
	return nil
}

// serveWithTransport runs the MCP session over transport. Cancellation is a
// clean exit; the server is closed on every path.
func (s *Server) serveWithTransport(ctx context.Context, transport mcp.Transport) error {
	if s == nil || s.mcpServer == nil {
		return fmt.Errorf("MCP server is not configured")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	err := s.mcpServer.Run(ctx, transport)
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		err = nil
	}
	return s.finish(err)
}

// serveHTTP exposes the server over the streamable HTTP transport until ctx
// ends.
func (s *Server) serveHTTP(ctx context.Context, addr string) error {
	if s == nil || s.mcpServer == nil {
		return fmt.Errorf("MCP server is not configured")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if strings.TrimSpace(addr) == "" {
		addr = defaultHTTPAddr
	}

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           s.HTTPHandler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	serveErr := make(chan error, 1)
	go func() {
		log.Printf("MCP HTTP transport listening at %s", addr)
		serveErr <- httpServer.ListenAndServe()
	}()

	var err error
	select {
	case err = <-serveErr:
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeouts.Shutdown)
		err = httpServer.Shutdown(shutdownCtx)
		cancel()
		<-serveErr
	}
	if errors.Is(err, http.ErrServerClosed) {
		err = nil
	}
	return s.finish(err)
}

// HTTPHandler returns the streamable HTTP handler for this server.
func (s *Server) HTTPHandler() http.Handler {
	return mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server {
		return s.mcpServer
	}, nil)
}

func (s *Server) finish(err error) error {
	closeErr := s.Close()
	if closeErr != nil {
		if err == nil {
			return fmt.Errorf("close snapshot store: %w", closeErr)
		}
		return fmt.Errorf("serve MCP: %v; close snapshot store: %w", err, closeErr)
	}
	if err != nil {
		return fmt.Errorf("serve MCP: %w", err)
	}
	return nil
}
