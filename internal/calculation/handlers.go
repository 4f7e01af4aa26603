package calculation

import (
	"context"

	"github.com/CyberismoCom/cyberismo-core/internal/card"
	"github.com/CyberismoCom/cyberismo-core/internal/errkind"
	"github.com/CyberismoCom/cyberismo-core/internal/resource"
)

// onCreationQuery and onTransitionQuery are the well-known query names the
// command layer invokes after a card is created or transitioned, letting
// imported modules compute derived fields without the command layer
// knowing about them (§4.H "named queries act as extension points").
const (
	onCreationQuery   = "onCreation"
	onTransitionQuery = "onTransition"
)

// updateFieldsKey is the binding name a named query must use to return the
// metadata field updates the command layer should apply back to a card.
const updateFieldsKey = "updateFields"

// resultBinding is the variable name every query this package issues binds
// its named-query value to, so decodeResultSet's Bindings map always has
// something to extract regardless of the query's own rule name.
const resultBinding = "result"

// queryPath builds the fully-qualified, binding query text for a named
// query registered under "query:"+name (see RegisterQuery).
func queryPath(name string) string {
	return resultBinding + " := data.cyberismo.queries." + name
}

// RunQuery evaluates a named query (one registered via RegisterQuery)
// against context and optional params, returning its decoded answer sets
// scoped to categories.
func (e *Engine) RunQuery(ctx context.Context, name string, callContext string, params map[string]any, categories []string) ([]map[string]any, error) {
	extra := contextProgram(callContext)
	if len(params) > 0 {
		lit, err := jsonLiteral(params)
		if err != nil {
			return nil, errkind.Wrap(errkind.InvalidInput, errkind.CodeInvalidParameterSchema, err, "cannot render query parameters")
		}
		extra += "params := " + lit + "\n"
	}
	return e.solveWithExtra(ctx, queryPath(name), extra, categories)
}

// solveWithExtra is like Solve but injects extra ad-hoc source (context and
// params facts) into the compiled program before evaluating queryText.
func (e *Engine) solveWithExtra(ctx context.Context, queryText, extra string, categories []string) ([]map[string]any, error) {
	if e.state == Uninitialised || e.state == Closed {
		return nil, errkind.New(errkind.Engine, errkind.CodeSolverFailure, "calculation engine is not initialised")
	}
	var results []map[string]any
	err := e.mu.WithContext(ctx, func() error {
		mods := e.buildModules(extra, categories)
		r := newRego(queryText, mods)
		pq, err := r.PrepareForEval(ctx)
		if err != nil {
			return errkind.Wrap(errkind.Engine, errkind.CodeSolverFailure, err, "cannot compile query "+queryText)
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
	return results, err
}

// HandleCardChanged re-renders one card's facts after its content or
// metadata was edited, without a full Generate.
func (e *Engine) HandleCardChanged(ctx context.Context, rec *card.Record) error {
	return e.mu.WithContext(ctx, func() error {
		text, err := cardProgram(rec)
		if err != nil {
			return errkind.Wrap(errkind.Engine, errkind.CodeSolverFailure, err, "cannot render card fact for "+rec.Key)
		}
		e.setProgram("card:"+rec.Key, text, nil)
		return nil
	})
}

// HandleCardMoved re-renders the moved card's facts together with its new
// and former siblings, since parent/child relations are denormalised into
// every affected card's fact.
func (e *Engine) HandleCardMoved(ctx context.Context, moved *card.Record, affected []*card.Record) error {
	return e.mu.WithContext(ctx, func() error {
		for _, rec := range append([]*card.Record{moved}, affected...) {
			text, err := cardProgram(rec)
			if err != nil {
				return errkind.Wrap(errkind.Engine, errkind.CodeSolverFailure, err, "cannot render card fact for "+rec.Key)
			}
			e.setProgram("card:"+rec.Key, text, nil)
		}
		return nil
	})
}

// HandleDeleteCard removes a deleted card's fact, and those of every card
// in its subtree.
func (e *Engine) HandleDeleteCard(ctx context.Context, keys []string) error {
	return e.mu.WithContext(ctx, func() error {
		for _, key := range keys {
			e.removeProgram("card:" + key)
		}
		return nil
	})
}

// HandleResourceChanged re-renders one resource's fact after it was
// created, updated or renamed (§4.G "calls the minimal handle* on the
// engine" generalized from card-level changes to resource-level ones).
func (e *Engine) HandleResourceChanged(ctx context.Context, obj *resource.Object) error {
	return e.mu.WithContext(ctx, func() error {
		text, err := resourceProgram(obj)
		if err != nil {
			return errkind.Wrap(errkind.Engine, errkind.CodeSolverFailure, err, "cannot render resource fact for "+obj.Name())
		}
		e.setProgram("resource:"+obj.Name(), text, []string{obj.Prefix})
		return nil
	})
}

// HandleResourceRemoved drops a removed resource's fact program.
func (e *Engine) HandleResourceRemoved(ctx context.Context, name string) error {
	return e.mu.WithContext(ctx, func() error {
		e.removeProgram("resource:" + name)
		return nil
	})
}

// HandleNewCards renders the new cards' facts, then runs the onCreation
// named query for each and returns the field updates it reported, keyed by
// card key. Cards for which onCreation is not defined, or reports no
// updates, are simply absent from the result.
func (e *Engine) HandleNewCards(ctx context.Context, recs []*card.Record) (map[string]map[string]any, error) {
	if err := e.mu.WithContext(ctx, func() error {
		for _, rec := range recs {
			text, err := cardProgram(rec)
			if err != nil {
				return errkind.Wrap(errkind.Engine, errkind.CodeSolverFailure, err, "cannot render card fact for "+rec.Key)
			}
			e.setProgram("card:"+rec.Key, text, nil)
		}
		return nil
	}); err != nil {
		return nil, err
	}

	updates := map[string]map[string]any{}
	for _, rec := range recs {
		fields, err := e.runFieldUpdateQuery(ctx, onCreationQuery, rec)
		if err != nil {
			return nil, err
		}
		if len(fields) > 0 {
			updates[rec.Key] = fields
		}
	}
	return updates, nil
}

// RunOnTransition runs the onTransition named query for rec after a
// successful workflow transition, returning any field updates it reports.
func (e *Engine) RunOnTransition(ctx context.Context, rec *card.Record) (map[string]any, error) {
	return e.runFieldUpdateQuery(ctx, onTransitionQuery, rec)
}

// runFieldUpdateQuery runs a named query scoped to a single card and
// extracts its updateFields binding, if any. A query that isn't registered
// (no module defines it) is treated as "no updates" rather than an error,
// since onCreation/onTransition are optional extension points.
func (e *Engine) runFieldUpdateQuery(ctx context.Context, name string, rec *card.Record) (map[string]any, error) {
	extra := "card_key := " + quote(rec.Key) + "\n"
	results, err := e.solveWithExtra(ctx, queryPath(name), extra, nil)
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, nil
	}
	value, _ := results[0][resultBinding].(map[string]any)
	if value == nil {
		return nil, nil
	}
	fields, _ := value[updateFieldsKey].(map[string]any)
	return fields, nil
}

func quote(s string) string {
	lit, _ := jsonLiteral(s)
	return lit
}
