package command

import (
	"fmt"
	"maps"
)

// RecordKind identifies the shape of one output record.
type RecordKind int

const (
	// RecordNull is an absent record; consumers drop it.
	RecordNull RecordKind = iota
	// RecordScalar carries a single textual value.
	RecordScalar
	// RecordStructured carries a key/value mapping.
	RecordStructured
)

func (k RecordKind) String() string {
	switch k {
	case RecordScalar:
		return "scalar"
	case RecordStructured:
		return "structured"
	default:
		return "null"
	}
}

// Record is one output record. Its shape is fixed when the record is built.
type Record struct {
	kind   RecordKind
	text   string
	fields map[string]any
}

// Text builds a scalar record.
func Text(value string) Record {
	return Record{kind: RecordScalar, text: value}
}

// Structured builds a key/value record. A nil map yields a null record.
func Structured(fields map[string]any) Record {
	if fields == nil {
		return Record{}
	}
	return Record{kind: RecordStructured, fields: maps.Clone(fields)}
}

// Null returns the null record.
func Null() Record {
	return Record{}
}

// RecordOf classifies an arbitrary Go value into a record.
func RecordOf(value any) Record {
	switch typed := value.(type) {
	case nil:
		return Record{}
	case Record:
		return typed
	case map[string]any:
		return Structured(typed)
	case map[string]string:
		fields := make(map[string]any, len(typed))
		for key, v := range typed {
			fields[key] = v
		}
		return Record{kind: RecordStructured, fields: fields}
	case string:
		return Text(typed)
	case fmt.Stringer:
		return Text(typed.String())
	default:
		return Text(fmt.Sprint(value))
	}
}

// Kind returns the record shape.
func (r Record) Kind() RecordKind {
	return r.kind
}

// IsNull reports whether the record is the null record.
func (r Record) IsNull() bool {
	return r.kind == RecordNull
}

// Text returns the scalar value; empty for other shapes.
func (r Record) Text() string {
	return r.text
}

// Fields returns a copy of the structured mapping; nil for other shapes.
func (r Record) Fields() map[string]any {
	if r.kind != RecordStructured {
		return nil
	}
	return maps.Clone(r.fields)
}

// Result is the outcome of one command execution.
type Result struct {
	Records []Record
	// Err is the failure reported by the command itself.
	Err error
}

// NewResult builds a result from arbitrary values, classifying each one.
func NewResult(values ...any) Result {
	records := make([]Record, 0, len(values))
	for _, value := range values {
		records = append(records, RecordOf(value))
	}
	return Result{Records: records}
}

// Failed builds a result that carries only an error.
func Failed(err error) Result {
	return Result{Err: err}
}

// NonNull returns records excluding null entries, preserving order.
func (r Result) NonNull() []Record {
	out := make([]Record, 0, len(r.Records))
	for _, record := range r.Records {
		if record.IsNull() {
			continue
		}
		out = append(out, record)
	}
	return out
}
