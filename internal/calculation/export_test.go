package calculation_test

import (
	"context"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CyberismoCom/cyberismo-core/internal/calculation"
)

func TestExportLogicProgramWritesCompiledModules(t *testing.T) {
	cards := newCardFixture(t)
	e := calculation.New()
	require.NoError(t, e.Generate(context.Background(), newEmptyResourceHandler(t), cards, nil))

	fs := afero.NewMemMapFs()
	require.NoError(t, e.ExportLogicProgram(context.Background(), fs, "/out/program.rego", nil, ""))

	out, err := afero.ReadFile(fs, "/out/program.rego")
	require.NoError(t, err)
	assert.Contains(t, string(out), "package cyberismo.facts")
	assert.Contains(t, string(out), "bat_1")
}

func TestExportLogicProgramRejectsUnknownQuery(t *testing.T) {
	cards := newCardFixture(t)
	e := calculation.New()
	require.NoError(t, e.Generate(context.Background(), newEmptyResourceHandler(t), cards, nil))

	fs := afero.NewMemMapFs()
	err := e.ExportLogicProgram(context.Background(), fs, "/out/program.rego", nil, "doesNotExist")
	require.Error(t, err)
}

func TestExportLogicProgramNarrowsToNamedQuery(t *testing.T) {
	cards := newCardFixture(t)
	e := calculation.New()
	require.NoError(t, e.Generate(context.Background(), newEmptyResourceHandler(t), cards, nil))

	e.RegisterQuery("onCreation", "package cyberismo.queries\n\nonCreation := {}\n", nil)

	fs := afero.NewMemMapFs()
	require.NoError(t, e.ExportLogicProgram(context.Background(), fs, "/out/query.rego", nil, "onCreation"))

	out, err := afero.ReadFile(fs, "/out/query.rego")
	require.NoError(t, err)
	assert.Contains(t, string(out), "package cyberismo.queries")
	assert.NotContains(t, string(out), "package cyberismo.facts")
}
