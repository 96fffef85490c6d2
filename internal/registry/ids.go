package registry

import (
	"crypto/rand"
	"math/big"
)

const (
	roomCodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	roomCodeLength   = 6

	tokenAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"
	tokenLength   = 13
)

// newRoomCode returns a short, human-typeable room code. Uniqueness
// against live rooms is the caller's responsibility.
func newRoomCode() string {
	return randomString(roomCodeAlphabet, roomCodeLength)
}

// newToken returns an identifier for users and messages. The token
// space is large enough that collisions are negligible, and tokens are
// not guessable from one another.
func newToken() string {
	return randomString(tokenAlphabet, tokenLength)
}

func randomString(alphabet string, length int) string {
	max := big.NewInt(int64(len(alphabet)))
	b := make([]byte, length)
	for i := range b {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			// crypto/rand only fails if the OS entropy source is
			// broken, at which point nothing else works either.
			panic(err)
		}
		b[i] = alphabet[n.Int64()]
	}
	return string(b)
}
