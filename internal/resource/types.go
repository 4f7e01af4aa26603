// Package resource implements §4.D (the ResourceHandler cache) and §4.F
// (resource objects): cardType, fieldType, linkType, workflow, template,
// report, graphModel, graphView and calculation resources, each backed
// either by a single JSON document (a "file resource") or a JSON document
// plus a content folder (a "folder resource").
package resource

import (
	"encoding/json"

	"github.com/CyberismoCom/cyberismo-core/internal/errkind"
	"github.com/CyberismoCom/cyberismo-core/internal/schema"
)

// Kind is one of the nine resource types the cache indexes, keyed by their
// on-disk directory name under .cards/local or .cards/modules/<prefix>.
type Kind string

const (
	CardType    Kind = "cardTypes"
	FieldType   Kind = "fieldTypes"
	LinkType    Kind = "linkTypes"
	Workflow    Kind = "workflows"
	Template    Kind = "templates"
	Report      Kind = "reports"
	GraphModel  Kind = "graphModels"
	GraphView   Kind = "graphViews"
	Calculation Kind = "calculations"
)

// Kinds enumerates every resource type, in the dependency order renames
// process them (§4.G Rename.project).
var Kinds = []Kind{CardType, Workflow, FieldType, LinkType, Report, GraphModel, GraphView, Calculation, Template}

// IsFolder reports whether a resource kind is a folder resource (a JSON
// document plus a content folder) rather than a bare file resource.
func (k Kind) IsFolder() bool {
	switch k {
	case Template, Report, GraphModel, GraphView, Calculation:
		return true
	default:
		return false
	}
}

// schemaName maps a Kind to the bundled JSON schema that validates it.
func (k Kind) schemaName() schema.Name {
	switch k {
	case CardType:
		return schema.CardType
	case FieldType:
		return schema.FieldType
	case LinkType:
		return schema.LinkType
	case Workflow:
		return schema.Workflow
	case Template:
		return schema.Template
	case Report:
		return schema.Report
	case GraphModel:
		return schema.GraphModel
	case GraphView:
		return schema.GraphView
	case Calculation:
		return schema.Calculation
	default:
		return ""
	}
}

// Scope selects which partition of the cache ResourceTypes iterates.
type Scope int

const (
	All Scope = iota
	Local
	Modules
)

// Object is a single resource instance: its fully-qualified name, the
// partition it lives in (local vs. an imported, read-only module), its JSON
// document fields, and - for folder resources - its content files.
type Object struct {
	Prefix     string
	Kind       Kind
	Identifier string
	ReadOnly   bool

	// Doc holds the parsed JSON document (name/displayName/description/
	// category plus type-specific fields) as a generic map so a single
	// Object type serves every Kind, the way spec §4.F describes resource
	// objects uniformly across types.
	Doc map[string]any

	// Files holds a folder resource's content folder: path relative to the
	// resource's directory -> raw bytes. Empty for file resources.
	Files map[string][]byte
}

// Name returns the resource's fully-qualified "prefix/type/identifier" name.
func (o *Object) Name() string {
	return o.Prefix + "/" + string(o.Kind) + "/" + o.Identifier
}

// Clone deep-copies the object so callers can mutate a working copy without
// disturbing the cached instance until a write commits.
func (o *Object) Clone() *Object {
	doc := make(map[string]any, len(o.Doc))
	for k, v := range o.Doc {
		doc[k] = deepCopyJSON(v)
	}
	files := make(map[string][]byte, len(o.Files))
	for k, v := range o.Files {
		cp := make([]byte, len(v))
		copy(cp, v)
		files[k] = cp
	}
	return &Object{Prefix: o.Prefix, Kind: o.Kind, Identifier: o.Identifier, ReadOnly: o.ReadOnly, Doc: doc, Files: files}
}

func deepCopyJSON(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, vv := range t {
			out[k] = deepCopyJSON(vv)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, vv := range t {
			out[i] = deepCopyJSON(vv)
		}
		return out
	default:
		return v
	}
}

// OpKind is the tagged-variant discriminator for resource array/scalar
// updates (§4.F, §9 "Dynamic typing of op").
type OpKind string

const (
	OpSet    OpKind = "Set"
	OpAdd    OpKind = "Add"
	OpRemove OpKind = "Remove"
	OpChange OpKind = "Change"
	OpRank   OpKind = "Rank"
)

// Op is a single update operation against one field of a resource's
// document.
type Op struct {
	Kind     OpKind
	Field    string
	Value    any // Set, Add
	Target   any // Remove, Change: the existing element
	To       any // Change: the replacement element
	NewIndex int // Rank: the target index
}

// jsonEqual compares two values by their structural JSON form, as §4.F's
// ArrayHandler requires ("structural equality expressed as a structural JSON
// form").
func jsonEqual(a, b any) bool {
	ab, errA := json.Marshal(a)
	bb, errB := json.Marshal(b)
	if errA != nil || errB != nil {
		return false
	}
	return string(normalizeJSON(ab)) == string(normalizeJSON(bb))
}

// normalizeJSON re-marshals through a generic interface{} so that key
// ordering and numeric representation differences don't defeat comparison.
func normalizeJSON(b []byte) []byte {
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return b
	}
	out, err := json.Marshal(v)
	if err != nil {
		return b
	}
	return out
}

// ApplyArrayOp applies Add/Remove/Change/Rank to the array stored at
// doc[field], enforcing §4.F's ArrayHandler rules.
func ApplyArrayOp(doc map[string]any, op Op) error {
	raw, _ := doc[op.Field].([]any)

	switch op.Kind {
	case OpAdd:
		for _, e := range raw {
			if jsonEqual(e, op.Value) {
				return errkind.New(errkind.Conflict, errkind.CodeItemAlreadyExists, "item already exists in "+op.Field)
			}
		}
		doc[op.Field] = append(raw, op.Value)
		return nil

	case OpRemove:
		idx := indexOf(raw, op.Target)
		if idx < 0 {
			return errkind.New(errkind.NotFound, errkind.CodeItemNotFound, "item not found in "+op.Field)
		}
		doc[op.Field] = append(append([]any{}, raw[:idx]...), raw[idx+1:]...)
		return nil

	case OpChange:
		idx := indexOf(raw, op.Target)
		if idx < 0 {
			return errkind.New(errkind.NotFound, errkind.CodeItemNotFound, "item not found in "+op.Field)
		}
		out := append([]any{}, raw...)
		out[idx] = op.To
		doc[op.Field] = out
		return nil

	case OpRank:
		idx := indexOf(raw, op.Target)
		if idx < 0 {
			return errkind.New(errkind.NotFound, errkind.CodeItemNotFound, "item not found in "+op.Field)
		}
		if op.NewIndex < 0 || op.NewIndex >= len(raw) {
			return errkind.New(errkind.InvalidInput, errkind.CodeInvalidTargetIndex, "target index out of range")
		}
		out := append([]any{}, raw[:idx]...)
		out = append(out, raw[idx+1:]...)
		head := append([]any{}, out[:op.NewIndex]...)
		tail := append([]any{}, out[op.NewIndex:]...)
		out = append(append(head, op.Target), tail...)
		doc[op.Field] = out
		return nil

	default:
		return errkind.New(errkind.InvalidInput, errkind.CodeInvalidInput, "unsupported array op "+string(op.Kind))
	}
}

func indexOf(arr []any, target any) int {
	for i, e := range arr {
		if jsonEqual(e, target) {
			return i
		}
	}
	return -1
}
