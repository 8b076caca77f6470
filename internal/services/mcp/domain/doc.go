// Package domain translates MCP tool calls into engine commands.
//
// Every tool maps onto one identifier of the engine command vocabulary; the
// handlers validate input, call the metrics manager and shape its JSON reply
// into structured output MCP clients can render.
package domain
