// Package service wires the adventure engine into an MCP server.
//
// It is the transport adapter layer: the package knows how to run MCP over
// stdio and delegates business meaning to domain handlers. The engine lives
// in-process, so an MCP host gets the same sessions, history rules, and
// settings behavior as the HTTP bridge.
package service
