package calculation

import (
	"context"
	"encoding/base64"
	"regexp"

	"github.com/CyberismoCom/cyberismo-core/internal/errkind"
)

// GraphRenderer renders a DOT-ish graph description into an SVG document.
// Actual rendering is out of scope (no graphviz/SVG engine is part of this
// module); RunGraph only handles the logic-program side of §4.H's
// "runGraph" operation -- producing the graph body from the model/view
// query and handing it to a renderer -- so callers can plug in whatever
// rendering backend they have available.
type GraphRenderer interface {
	Render(ctx context.Context, body string) ([]byte, error)
}

// StubGraphRenderer is a GraphRenderer that performs no actual drawing. It
// exists so RunGraph's base64 encoding and exportedDocument xlink:title
// stripping can be exercised and tested without a real graphviz dependency.
// RunGraph does no other sanitizing of the rendered output.
type StubGraphRenderer struct{}

// Render returns body unchanged, wrapped as if it were an SVG document's
// byte content -- real rendering backends replace this implementation.
func (StubGraphRenderer) Render(_ context.Context, body string) ([]byte, error) {
	return []byte(body), nil
}

const bodyKey = "body"

// RunGraph evaluates the named model/view query to obtain a graph body,
// renders it via renderer, and returns the result base64-encoded, matching
// §4.H's "runGraph" contract for embedding rendered graphs in exported
// documents. In the "exportedDocument" call context every xlink:title
// attribute is removed from the rendered output before encoding.
func (e *Engine) RunGraph(ctx context.Context, model, view string, callContext string, renderer GraphRenderer) (string, error) {
	extra := contextProgram(callContext) + "graph_model := " + quote(model) + "\ngraph_view := " + quote(view) + "\n"
	results, err := e.solveWithExtra(ctx, queryPath("graph"), extra, nil)
	if err != nil {
		return "", err
	}
	if len(results) == 0 {
		return "", errkind.New(errkind.Engine, errkind.CodeNoAnswer, "graph query for model "+model+"/"+view+" produced no body")
	}
	value, _ := results[0][resultBinding].(map[string]any)
	body, _ := value[bodyKey].(string)
	if body == "" {
		return "", errkind.New(errkind.Engine, errkind.CodeNoAnswer, "graph query for model "+model+"/"+view+" produced no body")
	}

	rendered, err := renderer.Render(ctx, body)
	if err != nil {
		return "", errkind.Wrap(errkind.Engine, errkind.CodeSolverFailure, err, "graph rendering failed")
	}
	if callContext == "exportedDocument" {
		rendered = regexp.MustCompile(`\s+xlink:title="[^"]*"`).ReplaceAll(rendered, nil)
	}
	return base64.StdEncoding.EncodeToString(rendered), nil
}
