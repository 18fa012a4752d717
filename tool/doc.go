// Package tool exposes host-managed commands as MCP tools.
//
// The package is split by concern:
//   - controller: tools/list and tools/call over a command.Host
//   - mapper: parameter schemas to JSON Schema, arguments to parameters,
//     records to content blocks
//   - monitor: "catalog changed" tracking and list_changed forwarding
//   - properties: the exposure marker and behavioral hint properties
//   - observability: list, call and change observations
//
// The controller caches nothing. Every request re-reads the host and
// re-describes commands, so host changes are visible to the next request.
package tool
