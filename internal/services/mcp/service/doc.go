// Package service wires MCP transports to the engine tool handlers.
//
// It owns process concerns (engine client, optional snapshot store, stdio or
// HTTP transport) and delegates tool meaning to the domain package.
package service
