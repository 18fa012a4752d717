package command

import (
	"slices"
	"strings"
)

// Well-known property keys read by the MCP surface. Other keys are carried
// through untouched and ignored by consumers that do not know them.
const (
	PropertyRole            = "Role"
	PropertyName            = "Name"
	PropertyIdempotentHint  = "IdempotentHint"
	PropertyDestructiveHint = "DestructiveHint"
	PropertyOpenWorldHint   = "OpenWorldHint"
	PropertyReadOnlyHint    = "ReadOnlyHint"
)

// RoleMCPTool marks a command for exposure as a remote tool.
const RoleMCPTool = "MCP tool"

// Metadata is an immutable snapshot describing a command.
type Metadata struct {
	Name        string     `json:"name"`
	Title       string     `json:"title,omitempty"`
	Description string     `json:"description,omitempty"`
	Properties  Properties `json:"properties,omitempty"`
	Schema      Schema     `json:"schema"`
}

// Properties is an extensible, multi-valued property bag.
type Properties map[string][]string

// Set replaces all values stored under key.
func (p Properties) Set(key string, values ...string) {
	if p == nil {
		return
	}
	p[key] = slices.Clone(values)
}

// Add appends one value under key.
func (p Properties) Add(key, value string) {
	if p == nil {
		return
	}
	p[key] = append(p[key], value)
}

// Get returns the first value stored under key.
func (p Properties) Get(key string) (string, bool) {
	values := p[key]
	if len(values) == 0 {
		return "", false
	}
	return values[0], true
}

// Values returns a copy of all values stored under key.
func (p Properties) Values(key string) []string {
	return slices.Clone(p[key])
}

// Has reports whether any value under key equals value, ignoring case.
func (p Properties) Has(key, value string) bool {
	for _, candidate := range p[key] {
		if strings.EqualFold(strings.TrimSpace(candidate), value) {
			return true
		}
	}
	return false
}

// IsTrue reports whether key is present and set to the literal "true".
func (p Properties) IsTrue(key string) bool {
	return p.Has(key, "true")
}

// Clone returns a deep copy of the property bag.
func (p Properties) Clone() Properties {
	if p == nil {
		return nil
	}
	out := make(Properties, len(p))
	for key, values := range p {
		out[key] = slices.Clone(values)
	}
	return out
}
