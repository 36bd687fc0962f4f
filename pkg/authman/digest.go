package authman

import "crypto/sha512"

// PaddedDigest returns the SHA-384 digest of b after zero-padding it to
// the next multiple of 4 bytes. The same padding is applied whenever a
// firmware image digest is computed for a metadata entry or fed to the
// external signer.
func PaddedDigest(b []byte) [SHA384DigestSize]byte {
	if rem := len(b) % 4; rem != 0 {
		padded := make([]byte, len(b)+4-rem)
		copy(padded, b)
		b = padded
	}
	return sha512.Sum384(b)
}
