package domain

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/louisbranch/enginectl/internal/engine/command"
	"github.com/louisbranch/enginectl/internal/engine/metrics"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// MetricsManager is the engine metrics surface the tools call.
type MetricsManager interface {
	Dump(ctx context.Context) (json.RawMessage, error)
	List(ctx context.Context) (json.RawMessage, error)
	Get(ctx context.Context, ref metrics.Instrument) (json.RawMessage, error)
	Enable(ctx context.Context, params metrics.EnableParams) error
	Test(ctx context.Context) (json.RawMessage, error)
}

// EmptyInput is the input for tools that take no arguments.
type EmptyInput struct{}

// MetricsResult is the MCP tool output for metrics commands that return data.
type MetricsResult struct {
	Command string `json:"command" jsonschema:"wire command sent to the engine"`
	Data    any    `json:"data" jsonschema:"engine response payload"`
}

// MetricsGetInput represents the MCP tool input for reading one instrument.
type MetricsGetInput struct {
	Scope      string `json:"scope" jsonschema:"metrics scope name"`
	Instrument string `json:"instrument" jsonschema:"instrument name within the scope"`
}

// MetricsEnableInput represents the MCP tool input for toggling an instrument.
type MetricsEnableInput struct {
	Scope      string `json:"scope" jsonschema:"metrics scope name"`
	Instrument string `json:"instrument" jsonschema:"instrument name within the scope"`
	Enabled    bool   `json:"enabled" jsonschema:"true to enable, false to disable"`
}

// MetricsEnableResult represents the MCP tool output for toggling an instrument.
type MetricsEnableResult struct {
	Command    string `json:"command" jsonschema:"wire command sent to the engine"`
	Scope      string `json:"scope" jsonschema:"metrics scope name"`
	Instrument string `json:"instrument" jsonschema:"instrument name"`
	Enabled    bool   `json:"enabled" jsonschema:"status applied"`
}

// MetricsDumpTool defines the MCP tool schema for dumping metrics.
func MetricsDumpTool() *mcp.Tool {
	return &mcp.Tool{Name: "metrics_dump", Description: metrics.Describe(command.MetricDump)}
}

// MetricsListTool defines the MCP tool schema for listing instruments.
func MetricsListTool() *mcp.Tool {
	return &mcp.Tool{Name: "metrics_list", Description: metrics.Describe(command.MetricList)}
}

// MetricsGetTool defines the MCP tool schema for reading one instrument.
func MetricsGetTool() *mcp.Tool {
	return &mcp.Tool{Name: "metrics_get", Description: metrics.Describe(command.MetricGet)}
}

// MetricsEnableTool defines the MCP tool schema for toggling an instrument.
func MetricsEnableTool() *mcp.Tool {
	return &mcp.Tool{Name: "metrics_enable", Description: metrics.Describe(command.MetricEnable)}
}

// MetricsTestTool defines the MCP tool schema for the engine self test.
func MetricsTestTool() *mcp.Tool {
	return &mcp.Tool{Name: "metrics_test", Description: metrics.Describe(command.MetricTest)}
}

// MetricsDumpHandler dumps every metric.
func MetricsDumpHandler(manager MetricsManager) mcp.ToolHandlerFor[EmptyInput, MetricsResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, _ EmptyInput) (*mcp.CallToolResult, MetricsResult, error) {
		if manager == nil {
			return nil, MetricsResult{}, fmt.Errorf("metrics manager is not configured")
		}
		data, err := manager.Dump(ctx)
		return metricsResult(command.MetricDump, data, err)
	}
}

// MetricsListHandler lists instruments.
func MetricsListHandler(manager MetricsManager) mcp.ToolHandlerFor[EmptyInput, MetricsResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, _ EmptyInput) (*mcp.CallToolResult, MetricsResult, error) {
		if manager == nil {
			return nil, MetricsResult{}, fmt.Errorf("metrics manager is not configured")
		}
		data, err := manager.List(ctx)
		return metricsResult(command.MetricList, data, err)
	}
}

// MetricsGetHandler reads one instrument.
func MetricsGetHandler(manager MetricsManager) mcp.ToolHandlerFor[MetricsGetInput, MetricsResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input MetricsGetInput) (*mcp.CallToolResult, MetricsResult, error) {
		if manager == nil {
			return nil, MetricsResult{}, fmt.Errorf("metrics manager is not configured")
		}
		data, err := manager.Get(ctx, metrics.Instrument{Scope: input.Scope, Instrument: input.Instrument})
		return metricsResult(command.MetricGet, data, err)
	}
}

// MetricsTestHandler runs the engine metrics self test.
func MetricsTestHandler(manager MetricsManager) mcp.ToolHandlerFor[EmptyInput, MetricsResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, _ EmptyInput) (*mcp.CallToolResult, MetricsResult, error) {
		if manager == nil {
			return nil, MetricsResult{}, fmt.Errorf("metrics manager is not configured")
		}
		data, err := manager.Test(ctx)
		return metricsResult(command.MetricTest, data, err)
	}
}

// MetricsEnableHandler toggles one instrument.
func MetricsEnableHandler(manager MetricsManager) mcp.ToolHandlerFor[MetricsEnableInput, MetricsEnableResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input MetricsEnableInput) (*mcp.CallToolResult, MetricsEnableResult, error) {
		if manager == nil {
			return nil, MetricsEnableResult{}, fmt.Errorf("metrics manager is not configured")
		}
		if err := manager.Enable(ctx, metrics.EnableParams{
			Scope:      input.Scope,
			Instrument: input.Instrument,
			Status:     input.Enabled,
		}); err != nil {
			return nil, MetricsEnableResult{}, fmt.Errorf("%s failed: %w", command.MetricEnable.WireValue(), err)
		}
		return nil, MetricsEnableResult{
			Command:    command.MetricEnable.WireValue(),
			Scope:      input.Scope,
			Instrument: input.Instrument,
			Enabled:    input.Enabled,
		}, nil
	}
}

func metricsResult(id command.Identifier, data json.RawMessage, err error) (*mcp.CallToolResult, MetricsResult, error) {
	if err != nil {
		return nil, MetricsResult{}, fmt.Errorf("%s failed: %w", id.WireValue(), err)
	}
	decoded, err := DecodePayload(data)
	if err != nil {
		return nil, MetricsResult{}, fmt.Errorf("%s returned invalid json: %w", id.WireValue(), err)
	}
	return nil, MetricsResult{Command: id.WireValue(), Data: decoded}, nil
}

// DecodePayload turns a raw engine payload into a value MCP can embed in
// structured output. Empty payloads decode to nil.
func DecodePayload(data json.RawMessage) (any, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var decoded any
	if err := json.Unmarshal(data, &decoded); err != nil {
		return nil, err
	}
	return decoded, nil
}
