package calculation_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CyberismoCom/cyberismo-core/internal/calculation"
	"github.com/CyberismoCom/cyberismo-core/internal/card"
)

func TestHandleNewCardsRunsOnCreation(t *testing.T) {
	cards := newCardFixture(t)
	e := calculation.New()
	require.NoError(t, e.Generate(context.Background(), newEmptyResourceHandler(t), cards, nil))

	e.RegisterQuery("onCreation", `package cyberismo.queries

onCreation := {"updateFields": {"priority": "high"}}
`, nil)

	rec, err := cards.Find("bat_1")
	require.NoError(t, err)

	updates, err := e.HandleNewCards(context.Background(), []*card.Record{rec})
	require.NoError(t, err)
	require.Contains(t, updates, "bat_1")
	assert.Equal(t, "high", updates["bat_1"]["priority"])
}

func TestRunOnTransitionNoOpWhenUnregistered(t *testing.T) {
	cards := newCardFixture(t)
	e := calculation.New()
	require.NoError(t, e.Generate(context.Background(), newEmptyResourceHandler(t), cards, nil))

	rec, err := cards.Find("bat_1")
	require.NoError(t, err)

	fields, err := e.RunOnTransition(context.Background(), rec)
	require.NoError(t, err)
	assert.Nil(t, fields)
}

func TestHandleDeleteCardRemovesFact(t *testing.T) {
	cards := newCardFixture(t)
	e := calculation.New()
	require.NoError(t, e.Generate(context.Background(), newEmptyResourceHandler(t), cards, nil))

	require.NoError(t, e.HandleDeleteCard(context.Background(), []string{"bat_1"}))

	_, err := e.Solve(context.Background(), `result := data.cyberismo.facts.cards["bat_1"]`, nil)
	require.Error(t, err)
}

func TestRunQueryInjectsParams(t *testing.T) {
	cards := newCardFixture(t)
	e := calculation.New()
	require.NoError(t, e.Generate(context.Background(), newEmptyResourceHandler(t), cards, nil))

	e.RegisterQuery("echo", `package cyberismo.queries

echo := input_value if {
	input_value := data.cyberismo.context.params.greeting
}
`, nil)

	results, err := e.RunQuery(context.Background(), "echo", "localApp", map[string]any{"greeting": "hi"}, nil)
	require.NoError(t, err)
	require.Len(t, results, 1)
}
