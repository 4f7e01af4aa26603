package manager

import (
	"context"

	"github.com/CyberismoCom/cyberismo-core/internal/calculation"
)

// RunQuery evaluates a registered query by name, scoped to the given
// resource categories.
func (m *Manager) RunQuery(ctx context.Context, name string, params map[string]any, categories []string) Envelope {
	var rows []map[string]any
	err := m.cmds.Read(func() error {
		var err error
		rows, err = m.engine.RunQuery(ctx, name, "", params, categories)
		return err
	})
	if err != nil {
		return fail(err)
	}
	return ok(rows)
}

// RunLogicProgram evaluates an ad-hoc Rego query text against the current
// card and resource facts, without registering it as a named query.
func (m *Manager) RunLogicProgram(ctx context.Context, queryText string, categories []string) Envelope {
	var rows []map[string]any
	err := m.cmds.Read(func() error {
		var err error
		rows, err = m.engine.Solve(ctx, queryText, categories)
		return err
	})
	if err != nil {
		return fail(err)
	}
	return ok(rows)
}

// RunGraph renders a graph view over the project's cards through renderer.
func (m *Manager) RunGraph(ctx context.Context, model, view string, renderer calculation.GraphRenderer) Envelope {
	var out string
	err := m.cmds.Read(func() error {
		var err error
		out, err = m.engine.RunGraph(ctx, model, view, "", renderer)
		return err
	})
	if err != nil {
		return fail(err)
	}
	return ok(out)
}

// ExportLogicProgram writes the generated logic program for the given query
// (or every registered query, when name is empty) to dest on the project
// filesystem, for offline inspection.
func (m *Manager) ExportLogicProgram(ctx context.Context, dest string, categories []string, name string) Envelope {
	var err error
	rerr := m.cmds.Read(func() error {
		err = m.engine.ExportLogicProgram(ctx, m.fs, dest, categories, name)
		return nil
	})
	if rerr != nil {
		return fail(rerr)
	}
	if err != nil {
		return fail(err)
	}
	return noContent()
}

// RegisterQuery adds (or replaces) a named query the engine will serve
// through RunQuery.
func (m *Manager) RegisterQuery(name, text string, categories []string) Envelope {
	m.engine.RegisterQuery(name, text, categories)
	return noContent()
}
