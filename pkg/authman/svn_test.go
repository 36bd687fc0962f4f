package authman

import (
	"math/rand"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbedSecurityVersion(t *testing.T) {
	man := newTestManifest(t, 31)

	rng := rand.New(rand.NewSource(31))
	output := make([]byte, ECCSignatureSize+LMSSignatureSize)
	_, err := rng.Read(output)
	require.NoError(t, err)

	require.NoError(t, man.EmbedSecurityVersion(5, output))

	assert.Equal(t, uint32(5), man.Preamble.SecurityVersion)

	// ECC half is embedded unchanged.
	assert.Equal(t, output[:ECCSignatureSize], man.Preamble.SVNECCSig[:])

	// LMS half gets its leaf-index field byte-reversed.
	lms := output[ECCSignatureSize:]
	assert.Equal(t, []byte{lms[3], lms[2], lms[1], lms[0]}, man.Preamble.SVNLMSSig[:4])
	assert.Equal(t, lms[4:], man.Preamble.SVNLMSSig[4:])
}

func TestEmbedSecurityVersionShortOutput(t *testing.T) {
	man := newTestManifest(t, 32)

	err := man.EmbedSecurityVersion(5, make([]byte, ECCSignatureSize+LMSSignatureSize-1))
	require.ErrorIs(t, err, ErrExternalSigner)

	// A failed embed leaves the preamble untouched.
	assert.NotEqual(t, uint32(5), man.Preamble.SecurityVersion)
}

func TestEmbedSecurityVersionFromSignerMissingTool(t *testing.T) {
	man := newTestManifest(t, 33)

	err := man.EmbedSecurityVersionFromSigner(SVNSignRequest{
		ToolPath:        filepath.Join(t.TempDir(), "no-such-tool"),
		SecurityVersion: 5,
		OutputPath:      filepath.Join(t.TempDir(), "svn-sig.bin"),
	})
	require.ErrorIs(t, err, ErrExternalSigner)
}
