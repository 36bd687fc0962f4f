package authman

import (
	"crypto/sha512"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPaddedDigestUnaligned(t *testing.T) {
	rng := rand.New(rand.NewSource(41))
	input := make([]byte, 47)
	_, err := rng.Read(input)
	require.NoError(t, err)

	// A 47-byte input hashes as 48 bytes: the input plus one zero byte.
	want := sha512.Sum384(append(append([]byte(nil), input...), 0))
	assert.Equal(t, want, PaddedDigest(input))
}

func TestPaddedDigestAligned(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	input := make([]byte, 44)
	_, err := rng.Read(input)
	require.NoError(t, err)

	assert.Equal(t, sha512.Sum384(input), PaddedDigest(input))
}

func TestPaddedDigestEmpty(t *testing.T) {
	assert.Equal(t, sha512.Sum384(nil), PaddedDigest(nil))
}

func TestPaddedDigestDoesNotMutateInput(t *testing.T) {
	input := []byte{1, 2, 3}
	PaddedDigest(input)
	assert.Equal(t, []byte{1, 2, 3}, input)
}
