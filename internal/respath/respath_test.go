package respath_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CyberismoCom/cyberismo-core/internal/errkind"
	"github.com/CyberismoCom/cyberismo-core/internal/respath"
)

func TestParseValid(t *testing.T) {
	n, err := respath.Parse("bat/cardTypes/page")
	require.NoError(t, err)
	assert.Equal(t, "bat", n.Prefix)
	assert.Equal(t, "cardTypes", n.Type)
	assert.Equal(t, "page", n.Identifier)
	assert.Equal(t, "bat/cardTypes/page", n.String())
}

func TestParseRejectsWrongShape(t *testing.T) {
	cases := []string{"", "bat", "bat/cardTypes", "bat/cardTypes/page/extra", "BAT/cardTypes/page", "bat/cardTypes/1page"}
	for _, c := range cases {
		_, err := respath.Parse(c)
		require.Error(t, err)
		code, ok := errkind.CodeOf(err)
		assert.True(t, ok)
		assert.Equal(t, errkind.CodeInvalidResourceName, code)
	}
}

func TestFormatRoundTrip(t *testing.T) {
	assert.Equal(t, "bat/workflows/default", respath.Format("bat", "workflows", "default"))
}

func TestModuleNameFromCardKey(t *testing.T) {
	assert.Equal(t, "bat", respath.ModuleNameFromCardKey("bat_1a2b3c"))
	assert.Equal(t, "noUnderscore", respath.ModuleNameFromCardKey("noUnderscore"))
}

func TestLayoutPaths(t *testing.T) {
	l := respath.NewLayout("/proj")
	assert.Equal(t, "/proj/cardRoot", l.CardRoot())
	assert.Equal(t, "/proj/.cards/local/cardsConfig.json", l.ConfigFile())
	assert.Equal(t, "/proj/.cards/modules/test", l.ModuleFolder("test"))
	assert.Equal(t, "/proj/.cards/local/cardTypes/page.json", l.FileResourcePath(l.LocalResourceTypeFolder("cardTypes"), "page"))
	assert.Equal(t, "/proj/.cards/1.0/resources", l.VersionedResourcesFolder("1.0"))
}
