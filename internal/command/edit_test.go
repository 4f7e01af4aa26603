package command_test

import (
	"context"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CyberismoCom/cyberismo-core/internal/respath"
)

func TestEditCardContent(t *testing.T) {
	cmds, fs, _, _, cards, _ := fixture(t)
	ctx := context.Background()
	keys, err := cmds.CreateCard(ctx, "bat/templates/simple", "")
	require.NoError(t, err)

	require.NoError(t, cmds.EditCardContent(ctx, keys[0], "== Edited\n"))

	rec, err := cards.Find(keys[0])
	require.NoError(t, err)
	b, err := afero.ReadFile(fs, respath.CardContentFile(rec.Path))
	require.NoError(t, err)
	assert.Equal(t, "== Edited\n", string(b))
}

func TestEditCardMetadataSetAndClear(t *testing.T) {
	cmds, _, _, _, cards, _ := fixture(t)
	ctx := context.Background()
	keys, err := cmds.CreateCard(ctx, "bat/templates/simple", "")
	require.NoError(t, err)

	require.NoError(t, cmds.EditCardMetadata(ctx, keys[0], "bat/fieldTypes/priority", "high"))
	rec, err := cards.Find(keys[0])
	require.NoError(t, err)
	custom, _ := rec.Metadata["customFields"].(map[string]any)
	assert.Equal(t, "high", custom["bat/fieldTypes/priority"])

	require.NoError(t, cmds.EditCardMetadata(ctx, keys[0], "bat/fieldTypes/priority", nil))
	rec, err = cards.Find(keys[0])
	require.NoError(t, err)
	custom, _ = rec.Metadata["customFields"].(map[string]any)
	_, present := custom["bat/fieldTypes/priority"]
	assert.False(t, present)
}

func TestEditCardMetadataRejectsUndeclaredField(t *testing.T) {
	cmds, _, _, _, _, _ := fixture(t)
	ctx := context.Background()
	keys, err := cmds.CreateCard(ctx, "bat/templates/simple", "")
	require.NoError(t, err)

	err = cmds.EditCardMetadata(ctx, keys[0], "bat/fieldTypes/unknown", "x")
	require.Error(t, err)
}

func TestEditCardMetadataRejectsWrongDataType(t *testing.T) {
	cmds, _, _, _, _, _ := fixture(t)
	ctx := context.Background()
	keys, err := cmds.CreateCard(ctx, "bat/templates/simple", "")
	require.NoError(t, err)

	err = cmds.EditCardMetadata(ctx, keys[0], "bat/fieldTypes/priority", 42.0)
	require.Error(t, err)
}
