package migration_test

import (
	"context"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CyberismoCom/cyberismo-core/internal/card"
	"github.com/CyberismoCom/cyberismo-core/internal/migration"
	"github.com/CyberismoCom/cyberismo-core/internal/respath"
)

func writeLegacyCard(t *testing.T, fs afero.Fs, dir string, withRank bool) {
	t.Helper()
	require.NoError(t, fs.MkdirAll(dir, 0o755))
	meta := `{"cardType": "bat/cardTypes/task", "workflowState": "Draft"`
	if withRank {
		meta += `, "rank": "m"`
	}
	meta += "}"
	require.NoError(t, afero.WriteFile(fs, respath.CardMetadataFile(dir), []byte(meta), 0o644))
	require.NoError(t, afero.WriteFile(fs, respath.CardContentFile(dir), []byte("== Legacy\n"), 0o644))
}

func TestBackfillRankStepAssignsMissingRanks(t *testing.T) {
	fs := afero.NewMemMapFs()
	layout := respath.NewLayout("/proj")

	dirA := respath.CardDirectory(layout.CardRoot(), "bat_aaa")
	dirB := respath.CardDirectory(layout.CardRoot(), "bat_bbb")
	writeLegacyCard(t, fs, dirA, false)
	writeLegacyCard(t, fs, dirB, false)

	step := migration.BackfillRankStep{}
	require.NoError(t, step.Before(context.Background(), fs, layout))
	require.NoError(t, step.Migrate(context.Background(), fs, layout))

	cards := card.New(fs, layout)
	require.NoError(t, cards.Populate())
	recA, err := cards.Find("bat_aaa")
	require.NoError(t, err)
	recB, err := cards.Find("bat_bbb")
	require.NoError(t, err)

	assert.NotEmpty(t, recA.Metadata["rank"])
	assert.NotEmpty(t, recB.Metadata["rank"])
	assert.Less(t, recA.Metadata["rank"].(string), recB.Metadata["rank"].(string))
}

func TestBackfillRankStepLeavesExistingRanksUntouched(t *testing.T) {
	fs := afero.NewMemMapFs()
	layout := respath.NewLayout("/proj")

	dir := respath.CardDirectory(layout.CardRoot(), "bat_ccc")
	writeLegacyCard(t, fs, dir, true)

	step := migration.BackfillRankStep{}
	require.NoError(t, step.Migrate(context.Background(), fs, layout))

	cards := card.New(fs, layout)
	require.NoError(t, cards.Populate())
	rec, err := cards.Find("bat_ccc")
	require.NoError(t, err)
	assert.Equal(t, "m", rec.Metadata["rank"])
}
