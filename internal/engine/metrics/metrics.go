// Package metrics exposes the engine's metrics manager operations.
package metrics

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/louisbranch/enginectl/internal/engine/command"
	apperrors "github.com/louisbranch/enginectl/internal/platform/errors"
)

// Caller sends one command to the engine and returns the response data.
type Caller interface {
	Call(ctx context.Context, id command.Identifier, params any) (json.RawMessage, error)
}

// Instrument addresses one instrument inside a metrics scope.
type Instrument struct {
	Scope      string `json:"scopeName"`
	Instrument string `json:"instrumentName"`
}

// EnableParams toggles an instrument.
type EnableParams struct {
	Scope      string `json:"scopeName"`
	Instrument string `json:"instrumentName"`
	Status     bool   `json:"status"`
}

var descriptions = map[command.Identifier]string{
	command.MetricDump:   "Dump every metric scope and its current values",
	command.MetricEnable: "Enable or disable one instrument in a scope",
	command.MetricList:   "List scopes and instruments with their enabled state",
	command.MetricGet:    "Read the current value of one instrument",
	command.MetricTest:   "Emit a test measurement through the metrics pipeline",
}

// Describe returns a one-line summary of a metrics command.
func Describe(id command.Identifier) string {
	return descriptions[id]
}

// Manager issues metrics manager commands through a Caller.
type Manager struct {
	caller Caller
}

// NewManager returns a Manager backed by caller.
func NewManager(caller Caller) (*Manager, error) {
	if caller == nil {
		return nil, fmt.Errorf("engine caller is required")
	}
	return &Manager{caller: caller}, nil
}

// Dump returns every scope with its instruments and values.
func (m *Manager) Dump(ctx context.Context) (json.RawMessage, error) {
	return m.caller.Call(ctx, command.MetricDump, nil)
}

// List returns the scopes and instruments the engine knows about.
func (m *Manager) List(ctx context.Context) (json.RawMessage, error) {
	return m.caller.Call(ctx, command.MetricList, nil)
}

// Get returns the value of one instrument.
func (m *Manager) Get(ctx context.Context, ref Instrument) (json.RawMessage, error) {
	ref, err := normalizeInstrument(ref)
	if err != nil {
		return nil, err
	}
	return m.caller.Call(ctx, command.MetricGet, ref)
}

// Enable switches one instrument on or off.
func (m *Manager) Enable(ctx context.Context, params EnableParams) error {
	ref, err := normalizeInstrument(Instrument{Scope: params.Scope, Instrument: params.Instrument})
	if err != nil {
		return err
	}
	params.Scope, params.Instrument = ref.Scope, ref.Instrument
	_, err = m.caller.Call(ctx, command.MetricEnable, params)
	return err
}

// Test asks the engine to emit a test measurement.
func (m *Manager) Test(ctx context.Context) (json.RawMessage, error) {
	return m.caller.Call(ctx, command.MetricTest, nil)
}

// Call runs the metrics command named name (for example "GET") with raw JSON
// parameters, applying the same validation as the typed methods.
func (m *Manager) Call(ctx context.Context, name string, params json.RawMessage) (json.RawMessage, error) {
	id, err := command.Resolve(command.FamilyMetric, name)
	if err != nil {
		return nil, err
	}
	switch id {
	case command.MetricGet:
		var ref Instrument
		if err := decodeParams(id, params, &ref); err != nil {
			return nil, err
		}
		return m.Get(ctx, ref)
	case command.MetricEnable:
		var enable EnableParams
		if err := decodeParams(id, params, &enable); err != nil {
			return nil, err
		}
		if err := m.Enable(ctx, enable); err != nil {
			return nil, err
		}
		return json.RawMessage(`{}`), nil
	default:
		return m.caller.Call(ctx, id, params)
	}
}

func decodeParams(id command.Identifier, params json.RawMessage, target any) error {
	if len(params) == 0 {
		params = json.RawMessage(`{}`)
	}
	if err := json.Unmarshal(params, target); err != nil {
		return apperrors.WrapWithMetadata(
			apperrors.CodeInvalidParameters,
			fmt.Sprintf("decode %s parameters", id),
			map[string]string{"command": id.WireValue()},
			err,
		)
	}
	return nil
}

func normalizeInstrument(ref Instrument) (Instrument, error) {
	ref.Scope = strings.TrimSpace(ref.Scope)
	ref.Instrument = strings.TrimSpace(ref.Instrument)
	if ref.Scope == "" {
		return Instrument{}, apperrors.New(apperrors.CodeMetricsScopeRequired, "metrics scope name is required")
	}
	if ref.Instrument == "" {
		return Instrument{}, apperrors.New(apperrors.CodeMetricsInstrumentRequired, "metrics instrument name is required")
	}
	return ref, nil
}
