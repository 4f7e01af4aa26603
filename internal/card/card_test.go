package card_test

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CyberismoCom/cyberismo-core/internal/card"
	"github.com/CyberismoCom/cyberismo-core/internal/errkind"
	"github.com/CyberismoCom/cyberismo-core/internal/respath"
)

func newCardFixture(t *testing.T) (*card.Cache, afero.Fs, respath.Layout) {
	t.Helper()
	fs := afero.NewMemMapFs()
	layout := respath.NewLayout("/proj")

	writeCard(t, fs, layout.CardRoot()+"/bat_1", `{"cardType":"bat/cardTypes/page","workflowState":"Draft","rank":"m"}`)
	writeCard(t, fs, layout.CardRoot()+"/bat_2", `{"cardType":"bat/cardTypes/page","workflowState":"Draft","rank":"n"}`)
	writeCard(t, fs, layout.CardRoot()+"/bat_1/c/bat_3", `{"cardType":"bat/cardTypes/page","workflowState":"Draft","rank":"m"}`)

	c := card.New(fs, layout)
	require.NoError(t, c.Populate())
	return c, fs, layout
}

func writeCard(t *testing.T, fs afero.Fs, dir, metaJSON string) {
	t.Helper()
	require.NoError(t, fs.MkdirAll(dir, 0o755))
	require.NoError(t, afero.WriteFile(fs, respath.CardMetadataFile(dir), []byte(metaJSON), 0o644))
	require.NoError(t, afero.WriteFile(fs, respath.CardContentFile(dir), []byte(""), 0o644))
}

func TestPopulateAndFind(t *testing.T) {
	c, _, _ := newCardFixture(t)

	rec, err := c.Find("bat_1")
	require.NoError(t, err)
	assert.Equal(t, "Draft", rec.Metadata["workflowState"])
	assert.Equal(t, []string{"bat_3"}, rec.ChildKeys)

	_, err = c.Find("bat_missing")
	require.Error(t, err)
	code, _ := errkind.CodeOf(err)
	assert.Equal(t, errkind.CodeCardNotFound, code)
}

func TestCardsPreorderSortedByRank(t *testing.T) {
	c, _, _ := newCardFixture(t)
	cards, err := c.Cards("")
	require.NoError(t, err)

	var keys []string
	for _, r := range cards {
		keys = append(keys, r.Key)
	}
	assert.Equal(t, []string{"bat_1", "bat_3", "bat_2"}, keys)
}

func TestAddAndRemove(t *testing.T) {
	c, _, _ := newCardFixture(t)

	require.NoError(t, c.Add(&card.Record{Key: "bat_4", ParentKey: "bat_1", Metadata: map[string]any{"rank": "z"}}))
	rec, err := c.Find("bat_1")
	require.NoError(t, err)
	assert.Contains(t, rec.ChildKeys, "bat_4")

	require.NoError(t, c.Remove("bat_4"))
	assert.False(t, c.Exists("bat_4"))
}

func TestReparentRejectsCycle(t *testing.T) {
	c, _, _ := newCardFixture(t)

	err := c.Reparent("bat_1", "bat_3")
	require.Error(t, err)
	code, _ := errkind.CodeOf(err)
	assert.Equal(t, errkind.CodeCycleForbidden, code)

	err = c.Reparent("bat_1", "bat_1")
	require.Error(t, err)
}

func TestReparentMovesCard(t *testing.T) {
	c, _, _ := newCardFixture(t)
	require.NoError(t, c.Reparent("bat_2", "bat_1"))

	rec, err := c.Find("bat_2")
	require.NoError(t, err)
	assert.Equal(t, "bat_1", rec.ParentKey)

	parent, err := c.Find("bat_1")
	require.NoError(t, err)
	assert.Contains(t, parent.ChildKeys, "bat_2")
}

func TestSiblingsExcludesSelf(t *testing.T) {
	c, _, _ := newCardFixture(t)
	siblings, err := c.Siblings("bat_1")
	require.NoError(t, err)
	require.Len(t, siblings, 1)
	assert.Equal(t, "bat_2", siblings[0].Key)
}
