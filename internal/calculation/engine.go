// Package calculation implements §4.H: the embedded logic-programming
// query engine. It is grounded on two sources: its lifecycle state machine
// follows the teacher's parse/invalidate/reparse cycle in
// internal/xpkg/workspace.go (Uninitialised -> Initialised -> Initialised'
// -> Closed mirrors that package's not-yet-parsed/parsed/stale/closed
// states), while the program store and solve() itself are built directly
// on open-policy-agent/opa's public rego package (rego.New/rego.Module/
// rego.Query/.Eval) -- the pack's one concrete caller of that package
// (jordigilh-kubernaut's pkg/aianalysis/rego wrapper) was only reachable
// through its tests, so this package talks to OPA's documented API
// directly rather than imitate an unseen wrapper.
package calculation

import (
	"context"
	"fmt"
	"sort"

	"github.com/open-policy-agent/opa/v1/rego"

	"github.com/CyberismoCom/cyberismo-core/internal/card"
	"github.com/CyberismoCom/cyberismo-core/internal/errkind"
	"github.com/CyberismoCom/cyberismo-core/internal/lock"
	"github.com/CyberismoCom/cyberismo-core/internal/resource"
)

// State is the engine's lifecycle state, named after §4.H's state machine.
type State string

const (
	Uninitialised      State = "Uninitialised"
	Initialised        State = "Initialised"
	InitialisedStale   State = "Initialised'"
	Closed             State = "Closed"
)

// namedProgram is one entry in the engine's program store: a piece of Rego
// source text registered under a name, scoped to the categories it applies
// to (empty categories means "always included").
type namedProgram struct {
	name       string
	text       string
	categories []string
}

// Engine is the embedded logic-programming query engine described in §4.H.
// All mutating operations are serialised by SolverMutex, since every solve
// builds OPA's rego.PreparedEvalQuery fresh from the current program set,
// which must not change while that build reads it.
type Engine struct {
	mu    *lock.SolverMutex
	state State

	programs map[string]*namedProgram
	order    []string // insertion order, for deterministic concatenation
}

// New constructs an Engine in the Uninitialised state.
func New() *Engine {
	return &Engine{
		mu:       lock.NewSolverMutex(),
		state:    Uninitialised,
		programs: map[string]*namedProgram{},
	}
}

// State reports the engine's current lifecycle state.
func (e *Engine) State() State { return e.state }

// setProgram registers or replaces a named program, scoped to categories.
// An empty categories slice means the program applies regardless of the
// categories requested by a later solve().
func (e *Engine) setProgram(name, text string, categories []string) {
	if _, exists := e.programs[name]; !exists {
		e.order = append(e.order, name)
	}
	e.programs[name] = &namedProgram{name: name, text: text, categories: categories}
	e.markStale()
}

// removeProgram drops a named program from the store, if present.
func (e *Engine) removeProgram(name string) {
	if _, ok := e.programs[name]; !ok {
		return
	}
	delete(e.programs, name)
	for i, n := range e.order {
		if n == name {
			e.order = append(e.order[:i], e.order[i+1:]...)
			break
		}
	}
	e.markStale()
}

// removeAllPrograms empties the program store entirely.
func (e *Engine) removeAllPrograms() {
	e.programs = map[string]*namedProgram{}
	e.order = nil
	e.markStale()
}

func (e *Engine) markStale() {
	if e.state == Initialised {
		e.state = InitialisedStale
	}
}

// buildModules selects every registered program whose categories intersect
// the requested categories (or that is unscoped), plus any extra ad-hoc
// source, as a list of independent Rego modules in registration order so
// evaluation is deterministic. Each program keeps its own package
// declaration; a single Rego file may declare only one package, so the
// store's entries must stay separate modules rather than be concatenated
// into one file.
func (e *Engine) buildModules(extra string, categories []string) []module {
	var mods []module
	for _, name := range e.order {
		p := e.programs[name]
		if len(p.categories) == 0 || intersects(p.categories, categories) {
			mods = append(mods, module{name: p.name + ".rego", text: p.text})
		}
	}
	if extra != "" {
		mods = append(mods, module{name: "context.rego", text: extraPackage + extra})
	}
	return mods
}

// module is one named Rego source file handed to rego.New as a
// rego.Module option.
type module struct {
	name string
	text string
}

// extraPackage is the package every ad-hoc context/params/card_key fact
// belongs to; kept separate from factsPackage and the queries package so
// it never collides with a rule name a resource or card fact defines.
const extraPackage = "package cyberismo.context\n\n"

func intersects(a, b []string) bool {
	if len(b) == 0 {
		return true
	}
	set := make(map[string]struct{}, len(a))
	for _, s := range a {
		set[s] = struct{}{}
	}
	for _, s := range b {
		if _, ok := set[s]; ok {
			return true
		}
	}
	return false
}

// Generate rebuilds the engine's fact base from the current resource
// and card caches: it purges every existing program and reloads the base
// query-language/utils bundle plus one program per module, resource and
// card. Generate is the only place the engine transitions out of
// Initialised'/Uninitialised into Initialised.
func (e *Engine) Generate(ctx context.Context, res *resource.Handler, cards *card.Cache, base []NamedSource) error {
	return e.mu.WithContext(ctx, func() error {
		e.removeAllPrograms()

		for _, b := range base {
			e.setProgram(b.Name, b.Text, nil)
		}

		localPrefix := res.LocalPrefix()
		projText, err := projectProgram(localPrefix, localPrefix)
		if err != nil {
			return errkind.Wrap(errkind.Engine, errkind.CodeSolverFailure, err, "cannot render project fact")
		}
		e.setProgram("project", projText, nil)

		for _, prefix := range res.ModulePrefixes() {
			modText, err := moduleProgram(prefix, prefix)
			if err != nil {
				return errkind.Wrap(errkind.Engine, errkind.CodeSolverFailure, err, "cannot render module fact for "+prefix)
			}
			e.setProgram("module:"+prefix, modText, nil)
		}

		for _, kind := range []resource.Kind{
			resource.CardType, resource.FieldType, resource.LinkType,
			resource.Workflow, resource.Template, resource.Report,
			resource.GraphModel, resource.GraphView, resource.Calculation,
		} {
			for _, obj := range res.ResourceTypes(kind, resource.All) {
				text, err := resourceProgram(obj)
				if err != nil {
					return errkind.Wrap(errkind.Engine, errkind.CodeSolverFailure, err, "cannot render resource fact for "+obj.Name())
				}
				e.setProgram("resource:"+obj.Name(), text, []string{obj.Prefix})
			}
		}

		records, err := cards.Cards("")
		if err != nil {
			return errkind.Wrap(errkind.Engine, errkind.CodeSolverFailure, err, "cannot enumerate cards")
		}
		for _, rec := range records {
			text, err := cardProgram(rec)
			if err != nil {
				return errkind.Wrap(errkind.Engine, errkind.CodeSolverFailure, err, "cannot render card fact for "+rec.Key)
			}
			e.setProgram("card:"+rec.Key, text, nil)
		}

		e.state = Initialised
		return nil
	})
}

// NamedSource is one bundled base program (query language primitives,
// helper utilities) loaded unconditionally on every Generate.
type NamedSource struct {
	Name string
	Text string
}

// newRego constructs a *rego.Rego for queryText against the given set of
// independent modules.
func newRego(queryText string, mods []module) *rego.Rego {
	opts := make([]func(*rego.Rego), 0, len(mods)+1)
	opts = append(opts, rego.Query(queryText))
	for _, m := range mods {
		opts = append(opts, rego.Module(m.name, m.text))
	}
	return rego.New(opts...)
}

// prepare builds a rego.PreparedEvalQuery for the given query text and
// categories. Must be called with the solver mutex held.
func (e *Engine) prepare(ctx context.Context, queryText string, categories []string) (rego.PreparedEvalQuery, error) {
	mods := e.buildModules("", categories)
	return newRego(queryText, mods).PrepareForEval(ctx)
}

// Solve runs an ad-hoc query against the current fact base, scoped to
// categories, and returns its decoded answer sets. It requires the engine
// to be Initialised or Initialised' (a stale fact base still answers
// queries; only Generate refreshes it).
func (e *Engine) Solve(ctx context.Context, queryText string, categories []string) ([]map[string]any, error) {
	if e.state == Uninitialised || e.state == Closed {
		return nil, errkind.New(errkind.Engine, errkind.CodeSolverFailure, "calculation engine is not initialised")
	}

	var results []map[string]any
	err := e.mu.WithContext(ctx, func() error {
		pq, err := e.prepare(ctx, queryText, categories)
		if err != nil {
			return errkind.Wrap(errkind.Engine, errkind.CodeSolverFailure, err, "cannot compile query")
		}
		rs, err := pq.Eval(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return errkind.Wrap(errkind.Concurrency, errkind.CodeCancelled, err, "query evaluation cancelled")
			}
			return errkind.Wrap(errkind.Engine, errkind.CodeSolverFailure, err, "query evaluation failed")
		}
		results = decodeResultSet(rs)
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, errkind.New(errkind.Engine, errkind.CodeNoAnswer, "query produced no answer sets for categories "+describeCategories(categories))
	}
	return results, nil
}

func decodeResultSet(rs rego.ResultSet) []map[string]any {
	out := make([]map[string]any, 0, len(rs))
	for _, r := range rs {
		row := map[string]any{}
		for k, v := range r.Bindings {
			row[k] = v
		}
		out = append(out, row)
	}
	return out
}

// Close transitions the engine to Closed and drops its program store. A
// Closed engine must be recreated with New before further use.
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.removeAllPrograms()
	e.state = Closed
}

// sortedCategories returns categories sorted for deterministic error
// messages and fact rendering.
func sortedCategories(categories []string) []string {
	out := append([]string(nil), categories...)
	sort.Strings(out)
	return out
}

func describeCategories(categories []string) string {
	if len(categories) == 0 {
		return "<all>"
	}
	return fmt.Sprintf("%v", sortedCategories(categories))
}
