package domain

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/louisbranch/enginectl/internal/engine/command"
	"github.com/louisbranch/enginectl/internal/engine/metrics"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// CommandsResourceURI addresses the readable vocabulary resource.
const CommandsResourceURI = "engine://commands"

// CommandInfo describes one engine command identifier.
type CommandInfo struct {
	Family      string `json:"family" jsonschema:"command family"`
	Name        string `json:"name" jsonschema:"symbolic command name"`
	Wire        string `json:"wire" jsonschema:"wire-level command string sent to the engine"`
	Description string `json:"description,omitempty" jsonschema:"what the command does"`
}

// CommandsInput represents the MCP tool input for listing commands.
type CommandsInput struct {
	Family string `json:"family,omitempty" jsonschema:"optional family filter (e.g. metric)"`
}

// CommandsResult represents the MCP tool output for listing commands.
type CommandsResult struct {
	Commands []CommandInfo `json:"commands" jsonschema:"declared commands in declaration order"`
}

// CommandResolveInput represents the MCP tool input for resolving one command.
type CommandResolveInput struct {
	Family string `json:"family" jsonschema:"command family (e.g. metric)"`
	Name   string `json:"name" jsonschema:"symbolic command name (e.g. DUMP)"`
}

// CommandResolveResult represents the MCP tool output for resolving one command.
type CommandResolveResult = CommandInfo

// NewCommandInfo renders an identifier for MCP output.
func NewCommandInfo(id command.Identifier) CommandInfo {
	return CommandInfo{
		Family:      string(id.Family()),
		Name:        id.Name(),
		Wire:        id.WireValue(),
		Description: metrics.Describe(id),
	}
}

// ListCommands returns every declared command, optionally filtered by family.
func ListCommands(family string) []CommandInfo {
	family = strings.TrimSpace(family)
	var families []command.Family
	if family != "" {
		families = []command.Family{command.Family(family)}
	} else {
		families = command.Families()
	}

	infos := []CommandInfo{}
	for _, f := range families {
		for _, id := range command.All(f) {
			infos = append(infos, NewCommandInfo(id))
		}
	}
	return infos
}

// CommandsTool defines the MCP tool schema for listing commands.
func CommandsTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "engine_commands",
		Description: "Lists the engine commands this server can send, grouped by family",
	}
}

// CommandsHandler lists declared engine commands.
func CommandsHandler() mcp.ToolHandlerFor[CommandsInput, CommandsResult] {
	return func(_ context.Context, _ *mcp.CallToolRequest, input CommandsInput) (*mcp.CallToolResult, CommandsResult, error) {
		return nil, CommandsResult{Commands: ListCommands(input.Family)}, nil
	}
}

// CommandResolveTool defines the MCP tool schema for resolving one command.
func CommandResolveTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "engine_command_resolve",
		Description: "Resolves a family and symbolic name to the engine wire command",
	}
}

// CommandResolveHandler resolves a symbolic command.
func CommandResolveHandler() mcp.ToolHandlerFor[CommandResolveInput, CommandResolveResult] {
	return func(_ context.Context, _ *mcp.CallToolRequest, input CommandResolveInput) (*mcp.CallToolResult, CommandResolveResult, error) {
		id, err := command.Resolve(
			command.Family(strings.TrimSpace(input.Family)),
			strings.ToUpper(strings.TrimSpace(input.Name)),
		)
		if err != nil {
			return nil, CommandResolveResult{}, err
		}
		return nil, NewCommandInfo(id), nil
	}
}

// CommandsResource defines the readable vocabulary resource.
func CommandsResource() *mcp.Resource {
	return &mcp.Resource{
		Name:        "engine_commands",
		Title:       "Engine Commands",
		Description: "Readable engine command vocabulary (family, name, wire value)",
		MIMEType:    "application/json",
		URI:         CommandsResourceURI,
	}
}

// CommandsResourceHandler returns the vocabulary as JSON.
func CommandsResourceHandler() mcp.ResourceHandler {
	return func(_ context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
		uri := CommandsResourceURI
		if req != nil && req.Params != nil && req.Params.URI != "" {
			uri = req.Params.URI
		}
		if uri != CommandsResourceURI {
			return nil, fmt.Errorf("invalid URI: expected %s, got %q", CommandsResourceURI, uri)
		}

		data, err := json.MarshalIndent(CommandsResult{Commands: ListCommands("")}, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("marshal commands: %w", err)
		}
		return &mcp.ReadResourceResult{
			Contents: []*mcp.ResourceContents{
				{
					URI:      uri,
					MIMEType: "application/json",
					Text:     string(data),
				},
			},
		}, nil
	}
}
