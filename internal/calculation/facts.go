package calculation

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/CyberismoCom/cyberismo-core/internal/card"
	"github.com/CyberismoCom/cyberismo-core/internal/resource"
)

// factsPackage is the Rego package every generated fact program declares;
// each one is loaded as its own module so their rule heads (cards[...],
// cardTypes[...], ...) merge into one namespace instead of colliding
// (§4.H "a pure function produces a deterministic set of facts").
const factsPackage = "package cyberismo.facts\n\n"

// cardProgram renders one card's facts as a single Rego assignment rule,
// keyed by its card key, plus its parent/child relations so "tree" queries
// don't need a second pass over the filesystem.
func cardProgram(rec *card.Record) (string, error) {
	doc := map[string]any{
		"path":     rec.Path,
		"parent":   rec.ParentKey,
		"children": rec.ChildKeys,
		"metadata": rec.Metadata,
	}
	lit, err := jsonLiteral(doc)
	if err != nil {
		return "", err
	}
	return factsPackage + fmt.Sprintf("cards[%q] = %s\n", rec.Key, lit), nil
}

// resourceProgram renders one resource object's facts, keyed by its
// fully-qualified name and bucketed by kind (cardType, workflow, ...).
func resourceProgram(obj *resource.Object) (string, error) {
	doc := map[string]any{
		"readOnly": obj.ReadOnly,
		"fields":   obj.Doc,
	}
	lit, err := jsonLiteral(doc)
	if err != nil {
		return "", err
	}
	bucket := string(obj.Kind)
	return factsPackage + fmt.Sprintf("%s[%q] = %s\n", bucket, obj.Name(), lit), nil
}

// moduleProgram renders one imported module's registration as a fact.
func moduleProgram(prefix, location string) (string, error) {
	lit, err := jsonLiteral(map[string]any{"location": location})
	if err != nil {
		return "", err
	}
	return factsPackage + fmt.Sprintf("modules[%q] = %s\n", prefix, lit), nil
}

// projectProgram renders the active project's own identity fact.
func projectProgram(prefix, name string) (string, error) {
	lit, err := jsonLiteral(map[string]any{"name": name})
	if err != nil {
		return "", err
	}
	return factsPackage + fmt.Sprintf("project[%q] = %s\n", prefix, lit), nil
}

// contextProgram injects the query context tag described in the glossary
// ("localApp", "exportedDocument", ...), letting rules vary output by
// caller. It returns a bare rule body; the caller wraps it in the shared
// ad-hoc context package (see extraPackage in engine.go).
func contextProgram(context string) string {
	return fmt.Sprintf("context := %q\n", context)
}

// jsonLiteral renders v as a Rego object/array/scalar literal. Rego's
// literal syntax is a superset of JSON for the map/slice/scalar shapes this
// package generates, so marshalling to JSON is sufficient;
// map keys are sorted by encoding/json already.
func jsonLiteral(v any) (string, error) {
	b, err := json.Marshal(sortedCopy(v))
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// sortedCopy walks v so map iteration order in the rendered literal is
// deterministic across runs (§8 "Query determinism").
func sortedCopy(v any) any {
	switch t := v.(type) {
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		out := make(map[string]any, len(t))
		for _, k := range keys {
			out[k] = sortedCopy(t[k])
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = sortedCopy(e)
		}
		return out
	default:
		return v
	}
}
