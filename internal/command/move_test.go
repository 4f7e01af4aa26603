package command_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CyberismoCom/cyberismo-core/internal/card"
	"github.com/CyberismoCom/cyberismo-core/internal/command"
)

func createTwoRootCards(t *testing.T) (*command.Commands, *card.Cache, string, string) {
	t.Helper()
	cmds, _, _, _, cards, _ := fixture(t)
	ctx := context.Background()

	a, err := cmds.CreateCard(ctx, "bat/templates/simple", "")
	require.NoError(t, err)
	b, err := cmds.CreateCard(ctx, "bat/templates/simple", "")
	require.NoError(t, err)

	return cmds, cards, a[0], b[0]
}

func TestMoveCardReparents(t *testing.T) {
	cmds, cards, keyA, keyB := createTwoRootCards(t)
	ctx := context.Background()

	require.NoError(t, cmds.MoveCard(ctx, keyB, keyA))

	rec, err := cards.Find(keyB)
	require.NoError(t, err)
	assert.Equal(t, keyA, rec.ParentKey)

	parent, err := cards.Find(keyA)
	require.NoError(t, err)
	assert.Contains(t, parent.ChildKeys, keyB)
}

func TestMoveCardRejectsCycle(t *testing.T) {
	cmds, _, keyA, keyB := createTwoRootCards(t)
	ctx := context.Background()
	require.NoError(t, cmds.MoveCard(ctx, keyB, keyA))

	err := cmds.MoveCard(ctx, keyA, keyB)
	require.Error(t, err)
}

func TestMoveRankByIndex(t *testing.T) {
	cmds, cards, keyA, keyB := createTwoRootCards(t)
	ctx := context.Background()

	require.NoError(t, cmds.MoveRankByIndex(ctx, keyB, 0))

	siblings, err := cards.Children("")
	require.NoError(t, err)
	require.Len(t, siblings, 2)
	assert.Equal(t, keyB, siblings[0].Key)
	assert.Equal(t, keyA, siblings[1].Key)
}
