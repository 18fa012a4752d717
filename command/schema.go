package command

import (
	"fmt"
	"slices"
	"strings"
)

// V1 type system literals used by parameter schemas.
const (
	TypeString  = "string"
	TypeInteger = "integer"
	TypeFloat   = "float"
	TypeBoolean = "boolean"
	TypeBytes   = "bytes"
	TypeArray   = "array"
	TypeObject  = "object"
	TypeAny     = "any"
)

var validV1Types = map[string]struct{}{
	TypeString:  {},
	TypeInteger: {},
	TypeFloat:   {},
	TypeBoolean: {},
	TypeBytes:   {},
	TypeArray:   {},
	TypeObject:  {},
	TypeAny:     {},
}

// Schema declares the named parameters a command accepts.
type Schema struct {
	Parameters map[string]FieldSpec `json:"parameters,omitempty" yaml:"parameters,omitempty" toml:"parameters,omitempty"`
}

// FieldSpec is the v1 field/type descriptor for one parameter.
type FieldSpec struct {
	Type        string               `json:"type" yaml:"type" toml:"type"`
	Required    bool                 `json:"required,omitempty" yaml:"required,omitempty" toml:"required,omitempty"`
	Description string               `json:"description,omitempty" yaml:"description,omitempty" toml:"description,omitempty"`
	Default     any                  `json:"default,omitempty" yaml:"default,omitempty" toml:"default,omitempty"`
	Enum        []any                `json:"enum,omitempty" yaml:"enum,omitempty" toml:"enum,omitempty"`
	Items       *FieldSpec           `json:"items,omitempty" yaml:"items,omitempty" toml:"items,omitempty"`
	Properties  map[string]FieldSpec `json:"properties,omitempty" yaml:"properties,omitempty" toml:"properties,omitempty"`
}

// IsEmpty reports whether the schema declares no parameters.
func (s Schema) IsEmpty() bool {
	return len(s.Parameters) == 0
}

// ParameterNames returns declared parameter names in deterministic order.
func (s Schema) ParameterNames() []string {
	return SortedFieldNames(s.Parameters)
}

// Severity defines diagnostic severity produced by schema validation.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Diagnostic is a structured validation finding.
type Diagnostic struct {
	Field    string   `json:"field,omitempty"`
	Code     string   `json:"code,omitempty"`
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
}

// ValidateSchema checks every parameter declaration in a schema.
func ValidateSchema(schema Schema) []Diagnostic {
	diags := make([]Diagnostic, 0)
	for _, name := range schema.ParameterNames() {
		if strings.TrimSpace(name) == "" {
			diags = append(diags, Diagnostic{
				Field:    "parameters",
				Code:     "EMPTY_NAME",
				Severity: SeverityError,
				Message:  "parameter names must not be empty",
			})
			continue
		}
		validateFieldSpec("parameters."+name, schema.Parameters[name], &diags)
	}
	return diags
}

// HasErrors returns true when at least one error-severity diagnostic exists.
func HasErrors(diags []Diagnostic) bool {
	for _, d := range diags {
		if d.Severity == SeverityError {
			return true
		}
	}
	return false
}

func validateFieldSpec(path string, spec FieldSpec, diags *[]Diagnostic) {
	if !IsValidType(spec.Type) {
		*diags = append(*diags, Diagnostic{
			Field:    path + ".type",
			Code:     "INVALID_TYPE",
			Severity: SeverityError,
			Message:  fmt.Sprintf("Unsupported type %q; allowed: string, integer, float, boolean, bytes, array, object, any", spec.Type),
		})
		return
	}

	if spec.Type == TypeArray {
		if spec.Items == nil {
			*diags = append(*diags, Diagnostic{
				Field:    path + ".items",
				Code:     "REQUIRED_ITEMS",
				Severity: SeverityError,
				Message:  "items is required when type is array",
			})
			return
		}
		validateFieldSpec(path+".items", *spec.Items, diags)
	}

	if spec.Type == TypeAny && len(spec.Enum) > 0 {
		*diags = append(*diags, Diagnostic{
			Field:    path + ".enum",
			Code:     "ENUM_ON_ANY",
			Severity: SeverityWarning,
			Message:  "enum on an any-typed parameter is compared without coercion",
		})
	}

	for _, name := range SortedFieldNames(spec.Properties) {
		validateFieldSpec(path+".properties."+name, spec.Properties[name], diags)
	}
}

// IsValidType reports whether typeName is a v1 type literal.
func IsValidType(typeName string) bool {
	_, ok := validV1Types[typeName]
	return ok
}

// SortedFieldNames returns the keys of a field map in sorted order.
func SortedFieldNames(fields map[string]FieldSpec) []string {
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
