package calculation_test

import (
	"context"
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CyberismoCom/cyberismo-core/internal/calculation"
)

func TestRunGraphRendersAndEncodesBody(t *testing.T) {
	cards := newCardFixture(t)
	e := calculation.New()
	require.NoError(t, e.Generate(context.Background(), newEmptyResourceHandler(t), cards, nil))

	e.RegisterQuery("graph", `package cyberismo.queries

graph := {"body": "digraph { a -> b }"} if {
	data.cyberismo.context.graph_model == "module-graph"
}
`, nil)

	out, err := e.RunGraph(context.Background(), "module-graph", "default", "localApp", calculation.StubGraphRenderer{})
	require.NoError(t, err)

	decoded, err := base64.StdEncoding.DecodeString(out)
	require.NoError(t, err)
	assert.Contains(t, string(decoded), "digraph")
}
