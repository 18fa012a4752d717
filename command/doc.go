// Package command defines the command-hosting contracts consumed by the MCP
// tool adapter.
//
// The package is split by concern:
//   - metadata: point-in-time descriptions of a command and its properties
//   - schema: the v1 parameter type system and its validation
//   - record: tagged result records produced by command execution
//   - host: enumeration, lookup, change notification, and dispatch
//
// MemHost is the in-process host used by the CLI; Func and Exec are the two
// concrete command kinds.
package command
