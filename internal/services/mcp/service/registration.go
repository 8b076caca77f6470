package service

import (
	"fmt"

	"github.com/louisbranch/enginectl/internal/services/mcp/domain"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

type mcpRegistrationTarget interface {
	AddTool(*mcp.Tool, any) error
	AddResource(*mcp.Resource, mcp.ResourceHandler)
}

type mcpServerRegistrationAdapter struct {
	server *mcp.Server
}

func (r mcpServerRegistrationAdapter) AddTool(tool *mcp.Tool, handler any) error {
	return addMCPTool(r.server, tool, handler)
}

func (r mcpServerRegistrationAdapter) AddResource(resource *mcp.Resource, handler mcp.ResourceHandler) {
	r.server.AddResource(resource, handler)
}

type mcpToolRegistrar struct {
	matches func(any) bool
	add     func(*mcp.Server, *mcp.Tool, any)
}

func newMCPToolRegistrar[I any, O any]() mcpToolRegistrar {
	return mcpToolRegistrar{
		matches: func(handler any) bool {
			_, ok := handler.(mcp.ToolHandlerFor[I, O])
			return ok
		},
		add: func(server *mcp.Server, tool *mcp.Tool, handler any) {
			mcp.AddTool(server, tool, handler.(mcp.ToolHandlerFor[I, O]))
		},
	}
}

var mcpToolRegistrars = []mcpToolRegistrar{
	newMCPToolRegistrar[domain.CommandsInput, domain.CommandsResult](),
	newMCPToolRegistrar[domain.CommandResolveInput, domain.CommandResolveResult](),
	newMCPToolRegistrar[domain.EmptyInput, domain.MetricsResult](),
	newMCPToolRegistrar[domain.MetricsGetInput, domain.MetricsResult](),
	newMCPToolRegistrar[domain.MetricsEnableInput, domain.MetricsEnableResult](),
	newMCPToolRegistrar[domain.SnapshotsInput, domain.SnapshotsResult](),
}

func addMCPTool(server *mcp.Server, tool *mcp.Tool, handler any) error {
	for _, registrar := range mcpToolRegistrars {
		if registrar.matches(handler) {
			registrar.add(server, tool, handler)
			return nil
		}
	}
	toolName := "<nil>"
	if tool != nil {
		toolName = tool.Name
	}
	return fmt.Errorf("mcp registration adapter does not support handler type %T for tool %q", handler, toolName)
}

type mcpRegistrationModule struct {
	name     string
	register func(mcpRegistrationTarget) error
}

const (
	mcpCommandToolsModuleName    = "command-tools"
	mcpMetricsToolsModuleName    = "metrics-tools"
	mcpSnapshotToolsModuleName   = "snapshot-tools"
	mcpCommandResourceModuleName = "command-resources"
)

// newMCPRegistrationModules lists tool groups in registration order. The
// snapshot group is present only when a snapshot store is configured.
func newMCPRegistrationModules(manager domain.MetricsManager, snapshots domain.SnapshotLister) []mcpRegistrationModule {
	modules := []mcpRegistrationModule{
		{
			name: mcpCommandToolsModuleName,
			register: func(registrar mcpRegistrationTarget) error {
				return registerCommandTools(registrar)
			},
		},
		{
			name: mcpMetricsToolsModuleName,
			register: func(registrar mcpRegistrationTarget) error {
				return registerMetricsTools(registrar, manager)
			},
		},
		{
			name: mcpCommandResourceModuleName,
			register: func(registrar mcpRegistrationTarget) error {
				registrar.AddResource(domain.CommandsResource(), domain.CommandsResourceHandler())
				return nil
			},
		},
	}
	if snapshots != nil {
		modules = append(modules, mcpRegistrationModule{
			name: mcpSnapshotToolsModuleName,
			register: func(registrar mcpRegistrationTarget) error {
				return registerTool(registrar, domain.SnapshotsTool(), domain.SnapshotsHandler(snapshots))
			},
		})
	}
	return modules
}

func registerCommandTools(registrar mcpRegistrationTarget) error {
	if err := registerTool(registrar, domain.CommandsTool(), domain.CommandsHandler()); err != nil {
		return err
	}
	return registerTool(registrar, domain.CommandResolveTool(), domain.CommandResolveHandler())
}

func registerMetricsTools(registrar mcpRegistrationTarget, manager domain.MetricsManager) error {
	registrations := []struct {
		tool    *mcp.Tool
		handler any
	}{
		{tool: domain.MetricsDumpTool(), handler: domain.MetricsDumpHandler(manager)},
		{tool: domain.MetricsEnableTool(), handler: domain.MetricsEnableHandler(manager)},
		{tool: domain.MetricsListTool(), handler: domain.MetricsListHandler(manager)},
		{tool: domain.MetricsGetTool(), handler: domain.MetricsGetHandler(manager)},
		{tool: domain.MetricsTestTool(), handler: domain.MetricsTestHandler(manager)},
	}
	for _, registration := range registrations {
		if err := registerTool(registrar, registration.tool, registration.handler); err != nil {
			return err
		}
	}
	return nil
}

func registerTool(registrar mcpRegistrationTarget, tool *mcp.Tool, handler any) error {
	if tool == nil {
		return fmt.Errorf("tool is nil")
	}
	return registrar.AddTool(tool, handler)
}
