package calculation

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/afero"

	"github.com/CyberismoCom/cyberismo-core/internal/errkind"
)

// ExportLogicProgram writes the engine's currently compiled program,
// scoped to categories (and optionally narrowed to a single named query),
// to dest on fs. It is the §4.H "exportLogicProgram" operation, used to
// let an advanced user inspect or debug the generated fact base.
func (e *Engine) ExportLogicProgram(ctx context.Context, fs afero.Fs, dest string, categories []string, queryName string) error {
	return e.mu.WithContext(ctx, func() error {
		var mods []module
		if queryName != "" {
			p, ok := e.programs["query:"+queryName]
			if !ok {
				return errkind.New(errkind.NotFound, errkind.CodeResourceNotFound, "named query "+queryName+" not found")
			}
			mods = []module{{name: p.name + ".rego", text: p.text}}
		} else {
			mods = e.buildModules("", categories)
		}

		var b strings.Builder
		for _, m := range mods {
			fmt.Fprintf(&b, "# file: %s\n", m.name)
			b.WriteString(m.text)
			b.WriteString("\n")
		}
		if err := afero.WriteFile(fs, dest, []byte(b.String()), 0o644); err != nil {
			return errkind.Wrap(errkind.IO, errkind.CodeFileNotWritable, err, "cannot write exported logic program to "+dest)
		}
		return nil
	})
}

// RegisterQuery registers a named query program, scoped to categories, so
// it can be invoked later by RunQuery/RunOnTransition/HandleNewCards or
// exported by name via ExportLogicProgram.
func (e *Engine) RegisterQuery(name, text string, categories []string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.setProgram("query:"+name, text, categories)
}
