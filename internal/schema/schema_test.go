package schema_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CyberismoCom/cyberismo-core/internal/errkind"
	"github.com/CyberismoCom/cyberismo-core/internal/schema"
)

func TestValidateCardTypeValid(t *testing.T) {
	v, err := schema.New()
	require.NoError(t, err)

	doc := map[string]any{
		"name":          "page",
		"workflow":      "bat/workflows/default",
		"customFields":  []string{"bat/fieldTypes/title"},
	}
	assert.NoError(t, v.Validate(schema.CardType, doc))
}

func TestValidateCardTypeInvalid(t *testing.T) {
	v, err := schema.New()
	require.NoError(t, err)

	doc := map[string]any{
		"name": "page",
		// missing required workflow/customFields
	}
	err = v.Validate(schema.CardType, doc)
	require.Error(t, err)
	code, ok := errkind.CodeOf(err)
	require.True(t, ok)
	assert.Equal(t, errkind.CodeSchemaViolation, code)
}

func TestValidateCardsConfigPrefixPattern(t *testing.T) {
	v, err := schema.New()
	require.NoError(t, err)

	doc := map[string]any{
		"schemaVersion": "1",
		"version":       1,
		"cardKeyPrefix": "BAT1", // uppercase + digit: invalid
		"name":          "bat",
	}
	err = v.Validate(schema.CardsConfig, doc)
	require.Error(t, err)
}

func TestLoadJSONPositionalError(t *testing.T) {
	var out map[string]any
	err := schema.LoadJSON([]byte("{\n  \"a\": ,\n}"), &out)
	require.Error(t, err)

	var pe *schema.PositionalError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, 2, pe.Line)
}

func TestLoadJSONValid(t *testing.T) {
	var out map[string]string
	require.NoError(t, schema.LoadJSON([]byte(`{"a":"b"}`), &out))
	assert.Equal(t, "b", out["a"])
}
