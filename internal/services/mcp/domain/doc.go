// Package domain translates MCP tool calls into adventure engine commands.
//
// The package is intentionally explicit about that mapping:
// - decode MCP tool inputs into session and settings operations,
// - run them against the in-process engine,
// - and surface structured outputs that MCP clients can render.
//
// Engine failures keep their stable codes in the error text so agents can
// branch on them the same way bridge clients branch on response codes.
package domain
