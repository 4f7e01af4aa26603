package command_test

import (
	"context"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"

	"github.com/CyberismoCom/cyberismo-core/internal/calculation"
	"github.com/CyberismoCom/cyberismo-core/internal/card"
	"github.com/CyberismoCom/cyberismo-core/internal/command"
	"github.com/CyberismoCom/cyberismo-core/internal/project"
	"github.com/CyberismoCom/cyberismo-core/internal/resource"
	"github.com/CyberismoCom/cyberismo-core/internal/respath"
	"github.com/CyberismoCom/cyberismo-core/internal/schema"
)

// fixture wires a full Commands instance over an in-memory project with one
// workflow ("draft" -> "done" via "Approve"), one card type ("task",
// allowing the "priority" custom field), one field type ("priority",
// shortText) and one single-card template ("simple"), mirroring the minimal
// project every end-to-end scenario in the project's test-table style needs.
func fixture(t *testing.T) (*command.Commands, afero.Fs, respath.Layout, *resource.Handler, *card.Cache, *calculation.Engine) {
	t.Helper()
	fs := afero.NewMemMapFs()
	layout := respath.NewLayout("/proj")
	validator, err := schema.New()
	require.NoError(t, err)

	writeJSON(t, fs, layout.ConfigFile(), `{
		"schemaVersion": "1.0",
		"version": 1,
		"cardKeyPrefix": "bat",
		"name": "Batch project"
	}`)
	writeJSON(t, fs, layout.LocalResourceTypeFolder("workflows")+"/draft.json", `{
		"name": "bat/workflows/draft",
		"states": [{"name": "Draft"}, {"name": "Done"}],
		"transitions": [{"name": "Approve", "fromState": ["Draft"], "toState": "Done"}]
	}`)
	writeJSON(t, fs, layout.LocalResourceTypeFolder("cardTypes")+"/task.json", `{
		"name": "bat/cardTypes/task",
		"workflow": "bat/workflows/draft",
		"customFields": ["bat/fieldTypes/priority"]
	}`)
	writeJSON(t, fs, layout.LocalResourceTypeFolder("fieldTypes")+"/priority.json", `{
		"name": "bat/fieldTypes/priority",
		"dataType": "shortText"
	}`)
	writeJSON(t, fs, layout.FolderResourceJSON(layout.LocalResourceTypeFolder("templates"), "simple"), `{
		"name": "bat/templates/simple"
	}`)

	templateRoot := respath.CardChildrenFolder(layout.FolderResourcePath(layout.LocalResourceTypeFolder("templates"), "simple"))
	templateCardDir := respath.CardDirectory(templateRoot, "template_card")
	writeJSON(t, fs, respath.CardMetadataFile(templateCardDir), `{
		"cardType": "bat/cardTypes/task",
		"workflowState": "Draft",
		"rank": "m"
	}`)
	require.NoError(t, afero.WriteFile(fs, respath.CardContentFile(templateCardDir), []byte("== Template card\n"), 0o644))

	projStore, err := project.NewStore(fs, layout, validator)
	require.NoError(t, err)

	resources := resource.New(fs, layout, validator, "bat", nil)
	require.NoError(t, resources.Populate())

	cards := card.New(fs, layout)
	require.NoError(t, cards.Populate())
	require.NoError(t, cards.PopulateTemplate("bat/templates/simple", templateRoot))

	engine := calculation.New()
	require.NoError(t, engine.Generate(context.Background(), resources, cards, nil))

	cmds := command.New(fs, layout, validator, projStore, resources, cards, engine)
	return cmds, fs, layout, resources, cards, engine
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
