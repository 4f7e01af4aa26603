package manager_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CyberismoCom/cyberismo-core/pkg/manager"
)

func TestRunLogicProgramOverCardFacts(t *testing.T) {
	m, _ := fixture(t)
	created := m.CreateCard(context.Background(), "bat/templates/simple", "")
	require.Equal(t, manager.StatusOK, created.StatusCode)

	resp := m.RunLogicProgram(context.Background(), "data.cyberismo.facts.cards", nil)
	require.Equal(t, manager.StatusOK, resp.StatusCode)
}

func TestRunQueryUnregisteredNameFails(t *testing.T) {
	m, _ := fixture(t)
	resp := m.RunQuery(context.Background(), "noSuchQuery", nil, nil)
	assert.NotEqual(t, manager.StatusOK, resp.StatusCode)
}

func TestRegisterQueryThenRunQuery(t *testing.T) {
	m, _ := fixture(t)
	reg := m.RegisterQuery("allCards", "data.cyberismo.facts.cards", nil)
	require.Equal(t, manager.StatusNoContent, reg.StatusCode)

	resp := m.RunQuery(context.Background(), "allCards", nil, nil)
	require.Equal(t, manager.StatusOK, resp.StatusCode)
}
