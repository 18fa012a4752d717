package tool

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"maps"
	"math"
	"reflect"
	"slices"
	"strconv"
	"strings"

	"github.com/petal-labs/commandry/command"
	"github.com/petal-labs/commandry/tool/mcp"
)

// Mapper translates between command schemas/records and MCP shapes. The zero
// value is ready to use and all methods are free of side effects.
type Mapper struct{}

// ToJSONSchema converts a parameter schema into a tool input schema. An
// empty schema yields a permissive object schema.
func (Mapper) ToJSONSchema(schema command.Schema) mcp.JSONSchema {
	out := mcp.JSONSchema{Type: "object"}
	if schema.IsEmpty() {
		return out
	}
	out.Properties, out.Required = objectSchema(schema.Parameters)
	return out
}

func objectSchema(fields map[string]command.FieldSpec) (map[string]mcp.JSONSchema, []string) {
	if len(fields) == 0 {
		return nil, nil
	}
	properties := make(map[string]mcp.JSONSchema, len(fields))
	var required []string
	for _, name := range command.SortedFieldNames(fields) {
		spec := fields[name]
		properties[name] = fieldSchema(spec)
		if spec.Required {
			required = append(required, name)
		}
	}
	return properties, required
}

func fieldSchema(spec command.FieldSpec) mcp.JSONSchema {
	out := mcp.JSONSchema{
		Description: spec.Description,
		Default:     spec.Default,
		Enum:        slices.Clone(spec.Enum),
	}
	switch spec.Type {
	case command.TypeString:
		out.Type = "string"
	case command.TypeInteger:
		out.Type = "integer"
	case command.TypeFloat:
		out.Type = "number"
	case command.TypeBoolean:
		out.Type = "boolean"
	case command.TypeBytes:
		out.Type = "string"
		out.ContentEncoding = "base64"
	case command.TypeArray:
		out.Type = "array"
		if spec.Items != nil {
			items := fieldSchema(*spec.Items)
			out.Items = &items
		}
	case command.TypeObject:
		out.Type = "object"
		out.Properties, out.Required = objectSchema(spec.Properties)
	}
	return out
}

// ToParameters coerces raw tool arguments into the parameter set described by
// schema. Keys the schema does not declare are ignored. Missing optional
// parameters take their declared default when one exists.
func (Mapper) ToParameters(args map[string]any, schema command.Schema) (command.Parameters, error) {
	params := make(command.Parameters, len(schema.Parameters))
	for _, name := range schema.ParameterNames() {
		spec := schema.Parameters[name]
		value, err := resolveField(name, name, spec, args)
		if err != nil {
			return nil, err
		}
		if value != nil {
			params[name] = value
		}
	}
	return params, nil
}

// resolveField returns the coerced value for one declared field, or nil when
// the field is absent and optional without a default.
func resolveField(path, key string, spec command.FieldSpec, container map[string]any) (any, error) {
	raw, present := container[key]
	if !present || raw == nil {
		switch {
		case spec.Required:
			return nil, &MappingError{Path: path, Expected: spec.Type, Reason: "is required"}
		case spec.Default != nil:
			return coerceValue(path, spec, spec.Default)
		default:
			return nil, nil
		}
	}
	return coerceValue(path, spec, raw)
}

func coerceValue(path string, spec command.FieldSpec, value any) (any, error) {
	coerced, err := coerceType(path, spec, value)
	if err != nil {
		return nil, err
	}
	if len(spec.Enum) > 0 && !enumContains(path, spec, coerced) {
		return nil, &MappingError{
			Path:   path,
			Value:  value,
			Reason: fmt.Sprintf("value %s is not one of %v", describeValue(value), spec.Enum),
		}
	}
	return coerced, nil
}

func coerceType(path string, spec command.FieldSpec, value any) (any, error) {
	mismatch := &MappingError{Path: path, Expected: spec.Type, Value: value}

	switch spec.Type {
	case command.TypeAny:
		return value, nil
	case command.TypeString:
		if s, ok := value.(string); ok {
			return s, nil
		}
		return nil, mismatch
	case command.TypeInteger:
		n, ok := toInt64(value)
		if !ok {
			return nil, mismatch
		}
		return n, nil
	case command.TypeFloat:
		f, ok := toFloat64(value)
		if !ok {
			return nil, mismatch
		}
		return f, nil
	case command.TypeBoolean:
		switch typed := value.(type) {
		case bool:
			return typed, nil
		case string:
			b, err := strconv.ParseBool(strings.TrimSpace(typed))
			if err != nil {
				return nil, mismatch
			}
			return b, nil
		}
		return nil, mismatch
	case command.TypeBytes:
		switch typed := value.(type) {
		case []byte:
			return typed, nil
		case string:
			decoded, err := base64.StdEncoding.DecodeString(typed)
			if err != nil {
				return nil, &MappingError{Path: path, Reason: "expected base64-encoded bytes: " + err.Error()}
			}
			return decoded, nil
		}
		return nil, mismatch
	case command.TypeArray:
		return coerceArray(path, spec, value)
	case command.TypeObject:
		return coerceObject(path, spec, value)
	default:
		return nil, &MappingError{Path: path, Reason: fmt.Sprintf("declared type %q is not supported", spec.Type)}
	}
}

func coerceArray(path string, spec command.FieldSpec, value any) (any, error) {
	var items []any
	switch typed := value.(type) {
	case []any:
		items = typed
	case []string:
		items = make([]any, 0, len(typed))
		for _, item := range typed {
			items = append(items, item)
		}
	default:
		return nil, &MappingError{Path: path, Expected: spec.Type, Value: value}
	}

	itemSpec := command.FieldSpec{Type: command.TypeAny}
	if spec.Items != nil {
		itemSpec = *spec.Items
	}
	out := make([]any, 0, len(items))
	for i, item := range items {
		itemPath := fmt.Sprintf("%s[%d]", path, i)
		if item == nil {
			return nil, &MappingError{Path: itemPath, Expected: itemSpec.Type, Value: nil}
		}
		coerced, err := coerceValue(itemPath, itemSpec, item)
		if err != nil {
			return nil, err
		}
		out = append(out, coerced)
	}
	return out, nil
}

func coerceObject(path string, spec command.FieldSpec, value any) (any, error) {
	object, ok := value.(map[string]any)
	if !ok {
		return nil, &MappingError{Path: path, Expected: spec.Type, Value: value}
	}
	out := maps.Clone(object)
	if out == nil {
		out = map[string]any{}
	}
	for _, name := range command.SortedFieldNames(spec.Properties) {
		coerced, err := resolveField(path+"."+name, name, spec.Properties[name], object)
		if err != nil {
			return nil, err
		}
		if coerced == nil {
			delete(out, name)
			continue
		}
		out[name] = coerced
	}
	return out, nil
}

func enumContains(path string, spec command.FieldSpec, value any) bool {
	plain := spec
	plain.Enum = nil
	for _, candidate := range spec.Enum {
		normalized, err := coerceType(path, plain, candidate)
		if err != nil {
			normalized = candidate
		}
		if reflect.DeepEqual(normalized, value) {
			return true
		}
	}
	return false
}

func toInt64(value any) (int64, bool) {
	switch typed := value.(type) {
	case int:
		return int64(typed), true
	case int8:
		return int64(typed), true
	case int16:
		return int64(typed), true
	case int32:
		return int64(typed), true
	case int64:
		return typed, true
	case uint8:
		return int64(typed), true
	case uint16:
		return int64(typed), true
	case uint32:
		return int64(typed), true
	case uint:
		if uint64(typed) > math.MaxInt64 {
			return 0, false
		}
		return int64(typed), true
	case uint64:
		if typed > math.MaxInt64 {
			return 0, false
		}
		return int64(typed), true
	case float32:
		return floatToInt64(float64(typed))
	case float64:
		return floatToInt64(typed)
	case json.Number:
		n, err := typed.Int64()
		if err != nil {
			return 0, false
		}
		return n, true
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(typed), 10, 64)
		if err != nil {
			return 0, false
		}
		return n, true
	}
	return 0, false
}

func floatToInt64(f float64) (int64, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0, false
	}
	if f < math.MinInt64 || f >= math.MaxInt64 {
		return 0, false
	}
	return int64(f), true
}

func toFloat64(value any) (float64, bool) {
	switch typed := value.(type) {
	case float64:
		return typed, true
	case float32:
		return float64(typed), true
	case json.Number:
		f, err := typed.Float64()
		if err != nil {
			return 0, false
		}
		return f, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(typed), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	}
	if n, ok := toInt64(value); ok {
		return float64(n), true
	}
	return 0, false
}

// ToContent converts a key/value record into a structured content block. The
// Text field carries the JSON rendering for clients that ignore Structured.
func (Mapper) ToContent(fields map[string]any) mcp.ContentBlock {
	structured := maps.Clone(fields)
	if structured == nil {
		structured = map[string]any{}
	}
	text, err := json.Marshal(structured)
	if err != nil {
		text = []byte(fmt.Sprint(structured))
	}
	return mcp.ContentBlock{
		Type:       mcp.ContentTypeText,
		Text:       string(text),
		MimeType:   mcp.MimeTypeJSON,
		Structured: structured,
	}
}
