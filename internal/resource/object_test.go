package resource_test

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CyberismoCom/cyberismo-core/internal/errkind"
	"github.com/CyberismoCom/cyberismo-core/internal/resource"
)

func TestCreateAndShow(t *testing.T) {
	h, _, _ := newFixture(t)

	obj, err := h.Create(resource.CardType, "task", map[string]any{
		"name":         "bat/cardTypes/task",
		"displayName":  "Task",
		"workflow":     "bat/workflows/draft",
		"customFields": []any{},
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, "bat/cardTypes/task", obj.Name())

	shown, err := h.Show("bat/cardTypes/task")
	require.NoError(t, err)
	assert.Equal(t, "Task", shown.Doc["displayName"])
}

func TestCreateRejectsBadIdentifier(t *testing.T) {
	h, _, _ := newFixture(t)
	_, err := h.Create(resource.CardType, "1task", map[string]any{"name": "bat/cardTypes/1task"}, nil)
	require.Error(t, err)

	_, err = h.Create(resource.CardType, "con", map[string]any{"name": "bat/cardTypes/con"}, nil)
	require.Error(t, err)
}

func TestCreateRejectsDuplicate(t *testing.T) {
	h, _, _ := newFixture(t)
	_, err := h.Create(resource.CardType, "page", map[string]any{"name": "bat/cardTypes/page"}, nil)
	require.Error(t, err)
	code, _ := errkind.CodeOf(err)
	assert.Equal(t, errkind.CodeResourceExists, code)
}

func TestDeleteRemovesFromDiskAndCache(t *testing.T) {
	h, fs, layout := newFixture(t)
	require.NoError(t, h.Delete("bat/cardTypes/page"))
	assert.False(t, h.Exists("bat/cardTypes/page"))

	exists, err := afero.Exists(fs, layout.LocalResourceTypeFolder("cardTypes")+"/page.json")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestDeleteRejectsModuleResource(t *testing.T) {
	h, _, _ := newFixture(t)
	err := h.Delete("mod/cardTypes/imported")
	require.Error(t, err)
	code, _ := errkind.CodeOf(err)
	assert.Equal(t, errkind.CodeReadOnlyModule, code)
}

func TestRenameMovesDocAndCache(t *testing.T) {
	h, fs, layout := newFixture(t)
	require.NoError(t, h.Rename("bat/cardTypes/page", "bat/cardTypes/article"))

	assert.False(t, h.Exists("bat/cardTypes/page"))
	obj, err := h.ByName("bat/cardTypes/article")
	require.NoError(t, err)
	assert.Equal(t, "bat/cardTypes/article", obj.Doc["name"])

	exists, err := afero.Exists(fs, layout.LocalResourceTypeFolder("cardTypes")+"/article.json")
	require.NoError(t, err)
	assert.True(t, exists)
	exists, err = afero.Exists(fs, layout.LocalResourceTypeFolder("cardTypes")+"/page.json")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestRenameRejectsModuleResource(t *testing.T) {
	h, _, _ := newFixture(t)
	err := h.Rename("mod/cardTypes/imported", "mod/cardTypes/renamed")
	require.Error(t, err)
}

func TestUpdateAppliesSetAndValidates(t *testing.T) {
	h, _, _ := newFixture(t)
	err := h.Update("bat/cardTypes/page", resource.Op{Kind: resource.OpSet, Field: "displayName", Value: "Renamed Page"})
	require.NoError(t, err)

	obj, err := h.ByName("bat/cardTypes/page")
	require.NoError(t, err)
	assert.Equal(t, "Renamed Page", obj.Doc["displayName"])
}

func TestUpdateRejectsReadOnlyModule(t *testing.T) {
	h, _, _ := newFixture(t)
	err := h.Update("mod/cardTypes/imported", resource.Op{Kind: resource.OpSet, Field: "displayName", Value: "x"})
	require.Error(t, err)
	code, _ := errkind.CodeOf(err)
	assert.Equal(t, errkind.CodeReadOnlyModule, code)
}

func TestValidateDetectsBrokenDoc(t *testing.T) {
	h, _, _ := newFixture(t)
	err := h.Validate("bat/cardTypes/page", map[string]any{"displayName": "No name or workflow"})
	require.Error(t, err)
	code, _ := errkind.CodeOf(err)
	assert.Equal(t, errkind.CodeSchemaViolation, code)
}

func TestUsageFindsReferencingResources(t *testing.T) {
	h, _, _ := newFixture(t)
	users := h.Usage("bat/workflows/draft")
	assert.Contains(t, users, "bat/cardTypes/page")
}

func TestShowFileRoundTrip(t *testing.T) {
	h, _, _ := newFixture(t)
	_, err := h.Create(resource.Template, "welcome", map[string]any{"name": "bat/templates/welcome", "displayName": "Welcome"},
		map[string][]byte{"card.adoc": []byte("hello")})
	require.NoError(t, err)

	names, err := h.ShowFileNames("bat/templates/welcome")
	require.NoError(t, err)
	assert.Equal(t, []string{"card.adoc"}, names)

	content, err := h.ShowFile("bat/templates/welcome", "card.adoc")
	require.NoError(t, err)
	assert.Equal(t, "hello", string(content))

	require.NoError(t, h.UpdateFile("bat/templates/welcome", "card.adoc", []byte("updated")))
	content, err = h.ShowFile("bat/templates/welcome", "card.adoc")
	require.NoError(t, err)
	assert.Equal(t, "updated", string(content))
}
