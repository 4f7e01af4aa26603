package resource_test

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CyberismoCom/cyberismo-core/internal/errkind"
	"github.com/CyberismoCom/cyberismo-core/internal/resource"
	"github.com/CyberismoCom/cyberismo-core/internal/respath"
	"github.com/CyberismoCom/cyberismo-core/internal/schema"
)

func newFixture(t *testing.T) (*resource.Handler, afero.Fs, respath.Layout) {
	t.Helper()
	fs := afero.NewMemMapFs()
	layout := respath.NewLayout("/proj")
	v, err := schema.New()
	require.NoError(t, err)

	writeJSON(t, fs, layout.LocalResourceTypeFolder("workflows")+"/draft.json", `{
		"name": "bat/workflows/draft",
		"displayName": "Draft",
		"states": [{"name": "Draft"}, {"name": "Approved"}],
		"transitions": [{"name": "Approve", "fromState": ["Draft"], "toState": "Approved"}]
	}`)
	writeJSON(t, fs, layout.LocalResourceTypeFolder("cardTypes")+"/page.json", `{
		"name": "bat/cardTypes/page",
		"displayName": "Page",
		"workflow": "bat/workflows/draft",
		"customFields": []
	}`)
	writeJSON(t, fs, layout.ModuleResourceTypeFolder("mod", "cardTypes")+"/imported.json", `{
		"name": "mod/cardTypes/imported",
		"displayName": "Imported",
		"workflow": "mod/workflows/draft",
		"customFields": []
	}`)

	h := resource.New(fs, layout, v, "bat", nil)
	require.NoError(t, h.Populate())
	return h, fs, layout
}

func writeJSON(t *testing.T, fs afero.Fs, path, content string) {
	t.Helper()
	require.NoError(t, fs.MkdirAll(parentDir(path), 0o755))
	require.NoError(t, afero.WriteFile(fs, path, []byte(content), 0o644))
}

func parentDir(path string) string {
	i := len(path) - 1
	for i >= 0 && path[i] != '/' {
		i--
	}
	return path[:i]
}

func TestByNameLocalAndModule(t *testing.T) {
	h, _, _ := newFixture(t)

	obj, err := h.ByName("bat/cardTypes/page")
	require.NoError(t, err)
	assert.Equal(t, "Page", obj.Doc["displayName"])
	assert.False(t, obj.ReadOnly)

	obj, err = h.ByName("mod/cardTypes/imported")
	require.NoError(t, err)
	assert.True(t, obj.ReadOnly)

	_, err = h.ByName("bat/cardTypes/missing")
	require.Error(t, err)
	code, _ := errkind.CodeOf(err)
	assert.Equal(t, errkind.CodeResourceNotFound, code)
}

func TestByTypeMismatch(t *testing.T) {
	h, _, _ := newFixture(t)
	_, err := h.ByType("bat/cardTypes/page", resource.Workflow)
	require.Error(t, err)
}

func TestExists(t *testing.T) {
	h, _, _ := newFixture(t)
	assert.True(t, h.Exists("bat/cardTypes/page"))
	assert.False(t, h.Exists("bat/cardTypes/nope"))
}

func TestResourceTypesScope(t *testing.T) {
	h, _, _ := newFixture(t)

	local := h.ResourceTypes(resource.CardType, resource.Local)
	require.Len(t, local, 1)
	assert.Equal(t, "bat/cardTypes/page", local[0].Name())

	all := h.ResourceTypes(resource.CardType, resource.All)
	assert.Len(t, all, 2)
}

func TestAddRemove(t *testing.T) {
	h, _, _ := newFixture(t)

	obj := &resource.Object{Prefix: "bat", Kind: resource.CardType, Identifier: "task", Doc: map[string]any{"name": "bat/cardTypes/task"}}
	require.NoError(t, h.Add(obj))

	err := h.Add(obj)
	require.Error(t, err)
	code, _ := errkind.CodeOf(err)
	assert.Equal(t, errkind.CodeResourceExists, code)

	require.NoError(t, h.Remove("bat/cardTypes/task"))
	err = h.Remove("bat/cardTypes/task")
	require.Error(t, err)
}

func TestChangedReloadsLocal(t *testing.T) {
	h, fs, layout := newFixture(t)
	writeJSON(t, fs, layout.LocalResourceTypeFolder("cardTypes")+"/extra.json", `{"name": "bat/cardTypes/extra", "displayName": "Extra", "workflow": "bat/workflows/draft", "customFields": []}`)

	require.NoError(t, h.Changed())
	assert.True(t, h.Exists("bat/cardTypes/extra"))
}

func TestChangedModulesSinglePrefix(t *testing.T) {
	h, fs, layout := newFixture(t)
	writeJSON(t, fs, layout.ModuleResourceTypeFolder("mod", "cardTypes")+"/second.json", `{"name": "mod/cardTypes/second", "displayName": "Second", "workflow": "mod/workflows/draft", "customFields": []}`)

	require.NoError(t, h.ChangedModules("mod"))
	assert.True(t, h.Exists("mod/cardTypes/second"))
}

func TestHandleFileSystemChange(t *testing.T) {
	h, fs, layout := newFixture(t)
	writeJSON(t, fs, layout.LocalResourceTypeFolder("cardTypes")+"/extra.json", `{"name": "bat/cardTypes/extra", "displayName": "Extra", "workflow": "bat/workflows/draft", "customFields": []}`)

	require.NoError(t, h.HandleFileSystemChange(layout.LocalResourceTypeFolder("cardTypes")+"/extra.json"))
	assert.True(t, h.Exists("bat/cardTypes/extra"))
}
