package card

import (
	"strings"

	"github.com/google/uuid"
)

// MintKey generates a fresh "<prefix>_<identifier>" card key, retrying
// against exists until it finds one not already in use. The identifier is a
// lowercase base36 slice of a fresh UUID, matching the card key shape
// "^[a-z]{1,10}_[a-z0-9]+$" the end-to-end scenarios in §8 check for.
func MintKey(prefix string, exists func(key string) bool) string {
	for {
		key := prefix + "_" + identifier()
		if !exists(key) {
			return key
		}
	}
}

func identifier() string {
	id := uuid.New()
	enc := base36(id[:])
	if len(enc) > 10 {
		enc = enc[:10]
	}
	return enc
}

const base36Alphabet = "0123456789abcdefghijklmnopqrstuvwxyz"

// base36 renders raw bytes as a lowercase base36 string, treating them as a
// big-endian unsigned integer.
func base36(b []byte) string {
	n := make([]byte, len(b))
	copy(n, b)

	var out []byte
	for !isZero(n) {
		var rem int
		n, rem = divmod36(n)
		out = append(out, base36Alphabet[rem])
	}
	if len(out) == 0 {
		out = append(out, '0')
	}
	reverse(out)
	return strings.ToLower(string(out))
}

func isZero(n []byte) bool {
	for _, b := range n {
		if b != 0 {
			return false
		}
	}
	return true
}

func divmod36(n []byte) ([]byte, int) {
	quotient := make([]byte, len(n))
	rem := 0
	for i, b := range n {
		cur := rem*256 + int(b)
		quotient[i] = byte(cur / 36)
		rem = cur % 36
	}
	return quotient, rem
}

func reverse(b []byte) {
	for i, j := 0, len(b)-1; i < j; i, j = i+1, j-1 {
		b[i], b[j] = b[j], b[i]
	}
}
