package domain

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/louisbranch/enginectl/internal/engine/metrics"
	apperrors "github.com/louisbranch/enginectl/internal/platform/errors"
	"github.com/louisbranch/enginectl/internal/services/collector/storage"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

type fakeManager struct {
	data      json.RawMessage
	err       error
	gotRef    metrics.Instrument
	gotEnable metrics.EnableParams
}

func (f *fakeManager) Dump(context.Context) (json.RawMessage, error) { return f.data, f.err }
func (f *fakeManager) List(context.Context) (json.RawMessage, error) { return f.data, f.err }
func (f *fakeManager) Test(context.Context) (json.RawMessage, error) { return f.data, f.err }

func (f *fakeManager) Get(_ context.Context, ref metrics.Instrument) (json.RawMessage, error) {
	f.gotRef = ref
	return f.data, f.err
}

func (f *fakeManager) Enable(_ context.Context, params metrics.EnableParams) error {
	f.gotEnable = params
	return f.err
}

type fakeLister struct {
	snapshots []storage.Snapshot
	gotLimit  int
}

func (f *fakeLister) ListSnapshots(_ context.Context, limit int) ([]storage.Snapshot, error) {
	f.gotLimit = limit
	return f.snapshots, nil
}

func TestCommandsHandlerListsVocabulary(t *testing.T) {
	_, result, err := CommandsHandler()(context.Background(), nil, CommandsInput{})
	if err != nil {
		t.Fatalf("commands: %v", err)
	}
	want := []string{
		"metrics.manager/dump",
		"metrics.manager/enable",
		"metrics.manager/list",
		"metrics.manager/get",
		"metrics.manager/test",
	}
	if len(result.Commands) != len(want) {
		t.Fatalf("commands len = %d, want %d", len(result.Commands), len(want))
	}
	for i, info := range result.Commands {
		if info.Wire != want[i] {
			t.Fatalf("commands[%d].wire = %q, want %q", i, info.Wire, want[i])
		}
		if info.Family != "metric" {
			t.Fatalf("commands[%d].family = %q, want %q", i, info.Family, "metric")
		}
		if info.Description == "" {
			t.Fatalf("commands[%d] has no description", i)
		}
	}
}

func TestCommandsHandlerUnknownFamilyIsEmpty(t *testing.T) {
	_, result, err := CommandsHandler()(context.Background(), nil, CommandsInput{Family: "policy"})
	if err != nil {
		t.Fatalf("commands: %v", err)
	}
	if result.Commands == nil || len(result.Commands) != 0 {
		t.Fatalf("commands = %#v, want empty non-nil slice", result.Commands)
	}
}

func TestCommandResolveHandler(t *testing.T) {
	_, info, err := CommandResolveHandler()(context.Background(), nil, CommandResolveInput{Family: "metric", Name: " dump "})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if info.Wire != "metrics.manager/dump" {
		t.Fatalf("wire = %q, want %q", info.Wire, "metrics.manager/dump")
	}

	_, _, err = CommandResolveHandler()(context.Background(), nil, CommandResolveInput{Family: "metric", Name: "NONEXISTENT"})
	if apperrors.CodeOf(err) != apperrors.CodeUnknownCommand {
		t.Fatalf("code = %q, want %q", apperrors.CodeOf(err), apperrors.CodeUnknownCommand)
	}
}

func TestCommandsResourceHandler(t *testing.T) {
	result, err := CommandsResourceHandler()(context.Background(), &mcp.ReadResourceRequest{
		Params: &mcp.ReadResourceParams{URI: CommandsResourceURI},
	})
	if err != nil {
		t.Fatalf("read resource: %v", err)
	}
	if len(result.Contents) != 1 {
		t.Fatalf("contents len = %d, want 1", len(result.Contents))
	}
	var payload CommandsResult
	if err := json.Unmarshal([]byte(result.Contents[0].Text), &payload); err != nil {
		t.Fatalf("decode resource: %v", err)
	}
	if len(payload.Commands) != 5 {
		t.Fatalf("commands len = %d, want 5", len(payload.Commands))
	}

	if _, err := CommandsResourceHandler()(context.Background(), &mcp.ReadResourceRequest{
		Params: &mcp.ReadResourceParams{URI: "engine://other"},
	}); err == nil {
		t.Fatal("expected error for foreign URI")
	}
}

func TestMetricsDumpHandlerDecodesPayload(t *testing.T) {
	manager := &fakeManager{data: json.RawMessage(`{"scopes":{"router":{"count":3}}}`)}

	_, result, err := MetricsDumpHandler(manager)(context.Background(), nil, EmptyInput{})
	if err != nil {
		t.Fatalf("dump: %v", err)
	}
	if result.Command != "metrics.manager/dump" {
		t.Fatalf("command = %q, want %q", result.Command, "metrics.manager/dump")
	}
	data, ok := result.Data.(map[string]any)
	if !ok {
		t.Fatalf("data = %T, want map", result.Data)
	}
	if _, ok := data["scopes"]; !ok {
		t.Fatalf("data = %v, want scopes key", data)
	}
}

func TestMetricsHandlersWrapEngineErrors(t *testing.T) {
	engineErr := apperrors.New(apperrors.CodeEngineUnavailable, "dial engine")
	manager := &fakeManager{err: engineErr}

	cases := []struct {
		name string
		call func() error
		wire string
	}{
		{name: "dump", wire: "metrics.manager/dump", call: func() error {
			_, _, err := MetricsDumpHandler(manager)(context.Background(), nil, EmptyInput{})
			return err
		}},
		{name: "list", wire: "metrics.manager/list", call: func() error {
			_, _, err := MetricsListHandler(manager)(context.Background(), nil, EmptyInput{})
			return err
		}},
		{name: "get", wire: "metrics.manager/get", call: func() error {
			_, _, err := MetricsGetHandler(manager)(context.Background(), nil, MetricsGetInput{Scope: "s", Instrument: "i"})
			return err
		}},
		{name: "enable", wire: "metrics.manager/enable", call: func() error {
			_, _, err := MetricsEnableHandler(manager)(context.Background(), nil, MetricsEnableInput{Scope: "s", Instrument: "i"})
			return err
		}},
		{name: "test", wire: "metrics.manager/test", call: func() error {
			_, _, err := MetricsTestHandler(manager)(context.Background(), nil, EmptyInput{})
			return err
		}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.call()
			if !errors.Is(err, engineErr) {
				t.Fatalf("error = %v, want %v", err, engineErr)
			}
			if !strings.HasPrefix(err.Error(), tc.wire) {
				t.Fatalf("error = %q, want prefix %q", err.Error(), tc.wire)
			}
		})
	}
}

func TestMetricsGetAndEnablePassParameters(t *testing.T) {
	manager := &fakeManager{data: json.RawMessage(`{"value":1}`)}

	if _, _, err := MetricsGetHandler(manager)(context.Background(), nil, MetricsGetInput{Scope: "router", Instrument: "events"}); err != nil {
		t.Fatalf("get: %v", err)
	}
	if manager.gotRef != (metrics.Instrument{Scope: "router", Instrument: "events"}) {
		t.Fatalf("get ref = %+v", manager.gotRef)
	}

	_, result, err := MetricsEnableHandler(manager)(context.Background(), nil, MetricsEnableInput{Scope: "router", Instrument: "events", Enabled: true})
	if err != nil {
		t.Fatalf("enable: %v", err)
	}
	if manager.gotEnable != (metrics.EnableParams{Scope: "router", Instrument: "events", Status: true}) {
		t.Fatalf("enable params = %+v", manager.gotEnable)
	}
	if !result.Enabled || result.Command != "metrics.manager/enable" {
		t.Fatalf("enable result = %+v", result)
	}
}

func TestMetricsHandlersRequireManager(t *testing.T) {
	if _, _, err := MetricsDumpHandler(nil)(context.Background(), nil, EmptyInput{}); err == nil {
		t.Fatal("expected error for missing manager")
	}
	if _, _, err := MetricsEnableHandler(nil)(context.Background(), nil, MetricsEnableInput{}); err == nil {
		t.Fatal("expected error for missing manager")
	}
}

func TestMetricsHandlerRejectsInvalidPayload(t *testing.T) {
	manager := &fakeManager{data: json.RawMessage(`{`)}
	if _, _, err := MetricsListHandler(manager)(context.Background(), nil, EmptyInput{}); err == nil {
		t.Fatal("expected error for invalid payload")
	}
}

func TestSnapshotsHandler(t *testing.T) {
	takenAt := time.Date(2026, 3, 4, 12, 0, 0, 0, time.UTC)
	lister := &fakeLister{snapshots: []storage.Snapshot{
		{ID: 2, Command: "metrics.manager/dump", Error: "engine unavailable", TakenAt: takenAt},
		{ID: 1, Command: "metrics.manager/dump", Payload: json.RawMessage(`{"a":1}`), TakenAt: takenAt.Add(-time.Minute)},
	}}

	_, result, err := SnapshotsHandler(lister)(context.Background(), nil, SnapshotsInput{Limit: 500})
	if err != nil {
		t.Fatalf("snapshots: %v", err)
	}
	if lister.gotLimit != maxSnapshotLimit {
		t.Fatalf("limit = %d, want %d", lister.gotLimit, maxSnapshotLimit)
	}
	if len(result.Snapshots) != 2 {
		t.Fatalf("snapshots len = %d, want 2", len(result.Snapshots))
	}
	if result.Snapshots[0].Error != "engine unavailable" || result.Snapshots[0].Data != nil {
		t.Fatalf("snapshots[0] = %+v, want failed snapshot", result.Snapshots[0])
	}
	if result.Snapshots[0].TakenAt != "2026-03-04T12:00:00Z" {
		t.Fatalf("taken_at = %q, want %q", result.Snapshots[0].TakenAt, "2026-03-04T12:00:00Z")
	}
	if result.Snapshots[1].Data == nil {
		t.Fatal("expected decoded payload for successful snapshot")
	}

	if _, _, err := SnapshotsHandler(lister)(context.Background(), nil, SnapshotsInput{}); err != nil {
		t.Fatalf("snapshots default: %v", err)
	}
	if lister.gotLimit != defaultSnapshotLimit {
		t.Fatalf("limit = %d, want %d", lister.gotLimit, defaultSnapshotLimit)
	}

	if _, _, err := SnapshotsHandler(nil)(context.Background(), nil, SnapshotsInput{}); err == nil {
		t.Fatal("expected error for missing store")
	}
}
