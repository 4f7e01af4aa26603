// Package schema implements §4.B: loading JSON with position-preserving
// errors, and validating arbitrary in-memory values against the bundled
// JSON schemas that constrain every resource and card-metadata document in
// the repository.
package schema

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/CyberismoCom/cyberismo-core/internal/errkind"
)

//go:embed schemas/*.json
var bundled embed.FS

// Name identifies one of the bundled schemas.
type Name string

const (
	CardBase      Name = "cardBaseSchema"
	CardType      Name = "cardTypeSchema"
	Workflow      Name = "workflowSchema"
	FieldType     Name = "fieldTypeSchema"
	LinkType      Name = "linkTypeSchema"
	Template      Name = "templateSchema"
	Report        Name = "reportSchema"
	GraphModel    Name = "graphModelSchema"
	GraphView     Name = "graphViewSchema"
	Calculation   Name = "calculationSchema"
	CardsConfig   Name = "cardsConfigSchema"
)

// Validator validates documents against the bundled schema set. It is safe
// for concurrent use: schemas are compiled once at construction and never
// mutated afterward.
type Validator struct {
	schemas map[Name]*gojsonschema.Schema
}

// New compiles every bundled schema. It fails fast if any schema in the
// bundle does not itself parse, since that would otherwise surface as a
// confusing failure the first time a caller validates against it.
func New() (*Validator, error) {
	entries, err := bundled.ReadDir("schemas")
	if err != nil {
		return nil, errkind.Wrap(errkind.IO, errkind.CodeFileNotReadable, err, "cannot list bundled schemas")
	}

	v := &Validator{schemas: make(map[Name]*gojsonschema.Schema, len(entries))}
	for _, e := range entries {
		raw, err := bundled.ReadFile("schemas/" + e.Name())
		if err != nil {
			return nil, errkind.Wrap(errkind.IO, errkind.CodeFileNotReadable, err, "cannot read bundled schema "+e.Name())
		}
		schema, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(raw))
		if err != nil {
			return nil, errkind.Wrap(errkind.Schema, errkind.CodeSchemaViolation, err, "bundled schema "+e.Name()+" does not parse")
		}
		name := strings.TrimSuffix(e.Name(), ".json")
		v.schemas[Name(name)] = schema
	}
	return v, nil
}

// Validate checks doc (any JSON-marshalable value, or raw JSON bytes)
// against the named bundled schema. On failure it returns a *errkind.CoreError
// of Kind Schema whose message is every violation joined by a blank line,
// mirroring the existing log formatting the violations are meant to match.
func (v *Validator) Validate(name Name, doc any) error {
	s, ok := v.schemas[name]
	if !ok {
		return errkind.New(errkind.Engine, errkind.CodeSolverFailure, "unknown schema "+string(name))
	}

	loader, err := documentLoader(doc)
	if err != nil {
		return errkind.Wrap(errkind.InvalidInput, errkind.CodeInvalidInput, err, "document is not valid JSON")
	}

	result, err := s.Validate(loader)
	if err != nil {
		return errkind.Wrap(errkind.Schema, errkind.CodeSchemaViolation, err, "schema validation failed")
	}
	if result.Valid() {
		return nil
	}
	return errkind.New(errkind.Schema, errkind.CodeSchemaViolation, Violations(result))
}

// Violations flattens a gojsonschema result into one human-readable message
// per error, joined by blank lines.
func Violations(result *gojsonschema.Result) string {
	lines := make([]string, 0, len(result.Errors()))
	for _, e := range result.Errors() {
		lines = append(lines, e.String())
	}
	return strings.Join(lines, "\n\n")
}

func documentLoader(doc any) (gojsonschema.JSONLoader, error) {
	switch d := doc.(type) {
	case []byte:
		return gojsonschema.NewBytesLoader(d), nil
	case json.RawMessage:
		return gojsonschema.NewBytesLoader(d), nil
	default:
		b, err := json.Marshal(doc)
		if err != nil {
			return nil, err
		}
		return gojsonschema.NewBytesLoader(b), nil
	}
}

// PositionalError is a JSON parse failure that keeps the byte offset, and
// the 1-based line/column it maps to, instead of collapsing to a single
// opaque message.
type PositionalError struct {
	Offset int64
	Line   int
	Column int
	err    error
}

func (e *PositionalError) Error() string {
	return fmt.Sprintf("line %d, column %d: %s", e.Line, e.Column, e.err.Error())
}

func (e *PositionalError) Unwrap() error { return e.err }

// LoadJSON unmarshals data into v, translating any syntax or type error into
// a PositionalError with a line/column computed from the reported byte
// offset, instead of the bare offset encoding/json exposes by default.
func LoadJSON(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(v); err != nil {
		return wrapPositional(data, err)
	}
	return nil
}

func wrapPositional(data []byte, err error) error {
	var offset int64
	switch e := err.(type) {
	case *json.SyntaxError:
		offset = e.Offset
	case *json.UnmarshalTypeError:
		offset = e.Offset
	default:
		return errkind.Wrap(errkind.InvalidInput, errkind.CodeInvalidInput, err, "invalid JSON")
	}

	line, col := lineColumn(data, offset)
	return errkind.Wrap(errkind.InvalidInput, errkind.CodeInvalidInput,
		&PositionalError{Offset: offset, Line: line, Column: col, err: err},
		"invalid JSON")
}

func lineColumn(data []byte, offset int64) (line, column int) {
	line = 1
	column = 1
	for i := int64(0); i < offset && i < int64(len(data)); i++ {
		if data[i] == '\n' {
			line++
			column = 1
			continue
		}
		column++
	}
	return line, column
}
