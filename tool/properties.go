package tool

import (
	"strings"

	"github.com/petal-labs/commandry/command"
	"github.com/petal-labs/commandry/tool/mcp"
)

// ToolProperties is the typed view of the metadata properties the MCP surface
// understands. Keys outside this set are ignored.
type ToolProperties struct {
	// Exposed is true when Role contains "MCP tool".
	Exposed bool
	// Name overrides the advertised tool name when non-empty.
	Name string

	ReadOnly    *bool
	Destructive *bool
	Idempotent  *bool
	OpenWorld   *bool
}

// ReadToolProperties extracts the known keys from a property bag.
func ReadToolProperties(props command.Properties) ToolProperties {
	out := ToolProperties{
		Exposed:     props.Has(command.PropertyRole, command.RoleMCPTool),
		ReadOnly:    readHint(props, command.PropertyReadOnlyHint),
		Destructive: readHint(props, command.PropertyDestructiveHint),
		Idempotent:  readHint(props, command.PropertyIdempotentHint),
		OpenWorld:   readHint(props, command.PropertyOpenWorldHint),
	}
	if name, ok := props.Get(command.PropertyName); ok {
		out.Name = strings.TrimSpace(name)
	}
	return out
}

// readHint is unset when the key is absent, and true only for a literal true.
func readHint(props command.Properties, key string) *bool {
	if _, ok := props.Get(key); !ok {
		return nil
	}
	return mcp.BoolPtr(props.IsTrue(key))
}

// ToolName returns the advertised name for a command.
func (p ToolProperties) ToolName(metadata command.Metadata) string {
	if p.Name != "" {
		return p.Name
	}
	return metadata.Name
}

// Annotations builds MCP annotations for a command.
func (p ToolProperties) Annotations(metadata command.Metadata) *mcp.ToolAnnotations {
	title := strings.TrimSpace(metadata.Title)
	if title == "" {
		title = metadata.Name
	}
	return &mcp.ToolAnnotations{
		Title:           title,
		ReadOnlyHint:    p.ReadOnly,
		DestructiveHint: p.Destructive,
		IdempotentHint:  p.Idempotent,
		OpenWorldHint:   p.OpenWorld,
	}
}
