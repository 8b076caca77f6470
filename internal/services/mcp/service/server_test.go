package service

import (
	"context"
	"encoding/json"
	"net"
	"net/http/httptest"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/louisbranch/enginectl/internal/engine/client"
	"github.com/louisbranch/enginectl/internal/engine/metrics"
	"github.com/louisbranch/enginectl/internal/engine/protocol"
	"github.com/louisbranch/enginectl/internal/services/collector/storage"
	"github.com/louisbranch/enginectl/internal/services/mcp/domain"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

type fakeManager struct {
	data json.RawMessage
}

func (f *fakeManager) Dump(context.Context) (json.RawMessage, error) { return f.data, nil }
func (f *fakeManager) List(context.Context) (json.RawMessage, error) { return f.data, nil }
func (f *fakeManager) Test(context.Context) (json.RawMessage, error) { return f.data, nil }
func (f *fakeManager) Get(context.Context, metrics.Instrument) (json.RawMessage, error) {
	return f.data, nil
}
func (f *fakeManager) Enable(context.Context, metrics.EnableParams) error { return nil }

type fakeLister struct{}

func (fakeLister) ListSnapshots(context.Context, int) ([]storage.Snapshot, error) {
	return []storage.Snapshot{{ID: 1, Command: "metrics.manager/dump", Payload: json.RawMessage(`{}`), TakenAt: time.Now()}}, nil
}

// connectInMemory serves server over in-memory transports and returns a
// connected client session plus a stop function that waits for shutdown.
func connectInMemory(t *testing.T, server *Server) (*mcp.ClientSession, func() error) {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	serverTransport, clientTransport := mcp.NewInMemoryTransports()

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- server.serveWithTransport(ctx, serverTransport)
	}()

	mcpClient := mcp.NewClient(&mcp.Implementation{Name: "client", Version: "v0.0.1"}, nil)
	connectCtx, connectCancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer connectCancel()
	session, err := mcpClient.Connect(connectCtx, clientTransport, nil)
	if err != nil {
		cancel()
		t.Fatalf("connect client: %v", err)
	}

	stop := func() error {
		defer session.Close()
		cancel()
		select {
		case err := <-serveErr:
			return err
		case <-time.After(2 * time.Second):
			t.Fatal("server did not stop after cancel")
			return nil
		}
	}
	return session, stop
}

func decodeStructuredContent[T any](t *testing.T, value any) T {
	t.Helper()

	data, err := json.Marshal(value)
	if err != nil {
		t.Fatalf("marshal structured content: %v", err)
	}
	var output T
	if err := json.Unmarshal(data, &output); err != nil {
		t.Fatalf("unmarshal structured content: %v", err)
	}
	return output
}

func toolNames(t *testing.T, session *mcp.ClientSession) []string {
	t.Helper()
	result, err := session.ListTools(context.Background(), nil)
	if err != nil {
		t.Fatalf("list tools: %v", err)
	}
	names := make([]string, 0, len(result.Tools))
	for _, tool := range result.Tools {
		names = append(names, tool.Name)
	}
	slices.Sort(names)
	return names
}

func TestServerRegistersTools(t *testing.T) {
	server, err := newServer(&fakeManager{data: json.RawMessage(`{}`)}, nil)
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	session, stop := connectInMemory(t, server)

	want := []string{
		"engine_command_resolve",
		"engine_commands",
		"metrics_dump",
		"metrics_enable",
		"metrics_get",
		"metrics_list",
		"metrics_test",
	}
	if got := toolNames(t, session); !slices.Equal(got, want) {
		t.Fatalf("tools = %v, want %v", got, want)
	}
	if err := stop(); err != nil {
		t.Fatalf("serve: %v", err)
	}
}

func TestServerRegistersSnapshotToolWhenStoreConfigured(t *testing.T) {
	server, err := newServer(&fakeManager{}, fakeLister{})
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	session, stop := connectInMemory(t, server)
	defer func() { _ = stop() }()

	if !slices.Contains(toolNames(t, session), "metrics_snapshots") {
		t.Fatal("expected metrics_snapshots tool")
	}
}

func TestServerCallsMetricsDump(t *testing.T) {
	server, err := newServer(&fakeManager{data: json.RawMessage(`{"scopes":["router"]}`)}, nil)
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	session, stop := connectInMemory(t, server)
	defer func() { _ = stop() }()

	result, err := session.CallTool(context.Background(), &mcp.CallToolParams{Name: "metrics_dump", Arguments: map[string]any{}})
	if err != nil {
		t.Fatalf("call tool: %v", err)
	}
	if result == nil || result.IsError {
		t.Fatalf("metrics_dump result = %+v, want success", result)
	}
	output := decodeStructuredContent[domain.MetricsResult](t, result.StructuredContent)
	if output.Command != "metrics.manager/dump" {
		t.Fatalf("command = %q, want %q", output.Command, "metrics.manager/dump")
	}
}

func TestServerReportsUnknownCommandAsToolError(t *testing.T) {
	server, err := newServer(&fakeManager{}, nil)
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	session, stop := connectInMemory(t, server)
	defer func() { _ = stop() }()

	result, err := session.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      "engine_command_resolve",
		Arguments: map[string]any{"family": "metric", "name": "NONEXISTENT"},
	})
	if err != nil {
		t.Fatalf("call tool: %v", err)
	}
	if result == nil || !result.IsError {
		t.Fatalf("resolve result = %+v, want tool error", result)
	}
}

func TestServerReadsCommandsResource(t *testing.T) {
	server, err := newServer(&fakeManager{}, nil)
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	session, stop := connectInMemory(t, server)
	defer func() { _ = stop() }()

	result, err := session.ReadResource(context.Background(), &mcp.ReadResourceParams{URI: domain.CommandsResourceURI})
	if err != nil {
		t.Fatalf("read resource: %v", err)
	}
	if len(result.Contents) != 1 || !strings.Contains(result.Contents[0].Text, "metrics.manager/dump") {
		t.Fatalf("resource contents = %+v, want vocabulary", result.Contents)
	}
}

func TestNewWithEngineAndSnapshotStore(t *testing.T) {
	dialer := client.DialerFunc(func(context.Context, string, string) (net.Conn, error) {
		server, conn := net.Pipe()
		go func() {
			defer server.Close()
			if _, err := protocol.ReadRequest(server); err != nil {
				return
			}
			_ = protocol.WriteResponse(server, protocol.Response{Data: []byte(`{"ok":true}`)})
		}()
		return conn, nil
	})

	server, err := New(Config{
		SocketPath:     "/run/engine-test.sock",
		SnapshotDBPath: filepath.Join(t.TempDir(), "collector.db"),
		Dialer:         dialer,
	})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	session, stop := connectInMemory(t, server)

	result, err := session.CallTool(context.Background(), &mcp.CallToolParams{Name: "metrics_test", Arguments: map[string]any{}})
	if err != nil {
		t.Fatalf("call tool: %v", err)
	}
	if result.IsError {
		t.Fatalf("metrics_test result = %+v, want success", result)
	}
	if !slices.Contains(toolNames(t, session), "metrics_snapshots") {
		t.Fatal("expected metrics_snapshots tool")
	}
	if err := stop(); err != nil {
		t.Fatalf("serve: %v", err)
	}
	if server.store != nil {
		t.Fatal("expected snapshot store to be closed after serve")
	}
}

func TestHTTPHandlerServesTools(t *testing.T) {
	server, err := newServer(&fakeManager{}, nil)
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	httpServer := httptest.NewServer(server.HTTPHandler())
	defer httpServer.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	mcpClient := mcp.NewClient(&mcp.Implementation{Name: "client", Version: "v0.0.1"}, nil)
	session, err := mcpClient.Connect(ctx, &mcp.StreamableClientTransport{Endpoint: httpServer.URL}, nil)
	if err != nil {
		t.Fatalf("connect client: %v", err)
	}
	defer session.Close()

	if !slices.Contains(toolNames(t, session), "engine_commands") {
		t.Fatal("expected engine_commands tool over HTTP")
	}
}

func TestRunUnsupportedTransport(t *testing.T) {
	err := Run(context.Background(), Config{Transport: "websocket"})
	if err == nil {
		t.Fatal("expected error for unsupported transport")
	}
	if !strings.Contains(err.Error(), "not supported") {
		t.Fatalf("error = %v, want 'not supported'", err)
	}
}

func TestServeWithTransportRequiresServer(t *testing.T) {
	var nilServer *Server
	if err := nilServer.serveWithTransport(context.Background(), &mcp.StdioTransport{}); err == nil {
		t.Fatal("expected error for nil server")
	}
	if err := (&Server{}).serveWithTransport(context.Background(), &mcp.StdioTransport{}); err == nil {
		t.Fatal("expected error for missing mcp server")
	}
}

func TestAddMCPToolRejectsUnknownHandler(t *testing.T) {
	mcpServer := mcp.NewServer(&mcp.Implementation{Name: "test", Version: "1.0"}, nil)
	err := addMCPTool(mcpServer, &mcp.Tool{Name: "bogus"}, func() {})
	if err == nil || !strings.Contains(err.Error(), "bogus") {
		t.Fatalf("error = %v, want unsupported handler error naming the tool", err)
	}
}
