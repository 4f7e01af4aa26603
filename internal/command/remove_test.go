package command_test

import (
	"context"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CyberismoCom/cyberismo-core/internal/resource"
)

func TestRemoveResourceSucceedsWhenUnreferenced(t *testing.T) {
	cmds, _, _, resources, _, _ := fixture(t)
	ctx := context.Background()

	_, err := cmds.CreateResource(ctx, resource.FieldType, "due", map[string]any{
		"name":     "bat/fieldTypes/due",
		"dataType": "date",
	}, nil)
	require.NoError(t, err)

	require.NoError(t, cmds.Remove(ctx, resource.FieldType, "due", ""))
	assert.False(t, resources.Exists("bat/fieldTypes/due"))
}

func TestRemoveResourceRejectedWhenCardUsesIt(t *testing.T) {
	cmds, _, _, _, _, _ := fixture(t)
	ctx := context.Background()
	_, err := cmds.CreateCard(ctx, "bat/templates/simple", "")
	require.NoError(t, err)

	err = cmds.Remove(ctx, resource.CardType, "task", "")
	require.Error(t, err)
}

func TestRemoveResourceRejectedWhenResourceUsesIt(t *testing.T) {
	cmds, _, _, _, _, _ := fixture(t)
	ctx := context.Background()

	// "task" card type's customFields still names "priority"; removing the
	// field type out from under it must be refused.
	err := cmds.Remove(ctx, resource.FieldType, "priority", "")
	require.Error(t, err)
}

func TestRemoveResourceFileSucceeds(t *testing.T) {
	cmds, fs, layout, _, _, _ := fixture(t)
	ctx := context.Background()

	dir := layout.FolderResourcePath(layout.LocalResourceTypeFolder("templates"), "simple")
	path := dir + "/extra.txt"
	require.NoError(t, fs.MkdirAll(dir, 0o755))
	require.NoError(t, afero.WriteFile(fs, path, []byte("scratch"), 0o644))

	require.NoError(t, cmds.Remove(ctx, resource.Template, "simple", "extra.txt"))
	exists, err := afero.Exists(fs, path)
	require.NoError(t, err)
	assert.False(t, exists)
}
