package card_test

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/CyberismoCom/cyberismo-core/internal/card"
)

func TestMintKeyMatchesShape(t *testing.T) {
	key := card.MintKey("bat", func(string) bool { return false })
	assert.Regexp(t, regexp.MustCompile(`^bat_[a-z0-9]+$`), key)
}

func TestMintKeyRetriesOnCollision(t *testing.T) {
	seen := map[string]bool{}
	first := card.MintKey("bat", func(k string) bool { return false })
	seen[first] = true

	key := card.MintKey("bat", func(k string) bool { return seen[k] })
	assert.NotEqual(t, first, key)
}
