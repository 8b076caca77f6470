package app

import (
	"context"
	"fmt"
	"net"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/louisbranch/enginectl/internal/engine/client"
	"github.com/louisbranch/enginectl/internal/engine/protocol"
	platformgrpc "github.com/louisbranch/enginectl/internal/platform/grpc"
	collectorsqlite "github.com/louisbranch/enginectl/internal/services/collector/storage/sqlite"
)

func pipeEngine(t *testing.T) client.Dialer {
	t.Helper()
	return client.DialerFunc(func(context.Context, string, string) (net.Conn, error) {
		server, conn := net.Pipe()
		go func() {
			defer server.Close()
			req, err := protocol.ReadRequest(server)
			if err != nil {
				return
			}
			if req.Command.WireValue() != "metrics.manager/dump" {
				_ = protocol.WriteResponse(server, protocol.Response{Error: 1, Message: "unexpected command"})
				return
			}
			_ = protocol.WriteResponse(server, protocol.Response{Data: []byte(`{"scopes":[]}`)})
		}()
		return conn, nil
	})
}

func freePort(t *testing.T) int {
	t.Helper()
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer listener.Close()
	return listener.Addr().(*net.TCPAddr).Port
}

func TestRunServesHealthAndRecordsSnapshots(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "nested", "collector.db")
	port := freePort(t)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- Run(ctx, RuntimeConfig{
			Port:         port,
			DBPath:       dbPath,
			PollInterval: 20 * time.Millisecond,
			Dialer:       pipeEngine(t),
		})
	}()

	dialCtx, dialCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer dialCancel()
	conn, err := platformgrpc.DialWithHealth(
		dialCtx,
		nil,
		fmt.Sprintf("127.0.0.1:%d", port),
		EngineHealthService,
		5*time.Second,
		t.Logf,
		platformgrpc.DefaultClientDialOptions()...,
	)
	if err != nil {
		cancel()
		t.Fatalf("dial collector health: %v", err)
	}
	_ = conn.Close()

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("collector did not stop after cancel")
	}

	store, err := collectorsqlite.Open(dbPath)
	if err != nil {
		t.Fatalf("reopen store: %v", err)
	}
	defer store.Close()
	snapshots, err := store.ListSnapshots(context.Background(), 10)
	if err != nil {
		t.Fatalf("list snapshots: %v", err)
	}
	if len(snapshots) == 0 {
		t.Fatal("expected at least one recorded snapshot")
	}
	if snapshots[0].Failed() {
		t.Fatalf("snapshot error = %q, want success", snapshots[0].Error)
	}
}

func TestRunFailsOnUnusableStoragePath(t *testing.T) {
	dir := t.TempDir()
	err := Run(context.Background(), RuntimeConfig{
		Port:   freePort(t),
		DBPath: dir,
		Dialer: pipeEngine(t),
	})
	if err == nil {
		t.Fatal("expected error when db path is a directory")
	}
}

func TestRunStopsWhenHealthServerFails(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	_ = listener.Close()

	done := make(chan error, 1)
	go func() {
		done <- Run(context.Background(), RuntimeConfig{
			DBPath:       filepath.Join(t.TempDir(), "collector.db"),
			PollInterval: time.Hour,
			Dialer:       pipeEngine(t),
			Listener:     listener,
		})
	}()

	select {
	case err := <-done:
		if err == nil || !strings.Contains(err.Error(), "serve collector health") {
			t.Fatalf("run error = %v, want serve collector health failure", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("collector kept running after the health server failed")
	}
}
