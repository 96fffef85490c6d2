package registry

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewRoomCode(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		code := newRoomCode()
		assert.Len(t, code, roomCodeLength)
		for _, r := range code {
			assert.True(t, strings.ContainsRune(roomCodeAlphabet, r), "unexpected rune %q in %q", r, code)
		}
		seen[code] = true
	}
	// Uniqueness is probabilistic, but 1000 draws from 36^6 should not
	// collapse to a handful of values.
	assert.Greater(t, len(seen), 990)
}

func TestNewToken(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		tok := newToken()
		assert.Len(t, tok, tokenLength)
		for _, r := range tok {
			assert.True(t, strings.ContainsRune(tokenAlphabet, r), "unexpected rune %q in %q", r, tok)
		}
		assert.False(t, seen[tok], "duplicate token %q", tok)
		seen[tok] = true
	}
}
