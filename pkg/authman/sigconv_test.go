package authman

import (
	"encoding/asn1"
	"math/big"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSwapWordBytesPerWord(t *testing.T) {
	b := []byte{1, 2, 3, 4, 5, 6, 7, 8}
	SwapWordBytes(b)
	assert.Equal(t, []byte{4, 3, 2, 1, 8, 7, 6, 5}, b)
}

func TestSwapWordBytesInvolution(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	b := make([]byte, ECCSignatureSize)
	_, err := rng.Read(b)
	require.NoError(t, err)

	orig := append([]byte(nil), b...)
	SwapWordBytes(b)
	assert.NotEqual(t, orig, b)
	SwapWordBytes(b)
	assert.Equal(t, orig, b)
}

func TestConvertECCSignatureDER(t *testing.T) {
	der, err := asn1.Marshal(ecdsaSigValue{R: big.NewInt(1), S: big.NewInt(2)})
	require.NoError(t, err)

	sig, err := ConvertECCSignatureDER(der)
	require.NoError(t, err)

	// r = 1 lands in the last byte of the first 48-byte half; the word
	// swap moves it to the front of its 4-byte word. Same for s = 2.
	var want [ECCSignatureSize]byte
	want[44] = 1
	want[92] = 2
	assert.Equal(t, want, sig)
}

func TestConvertECCSignatureDERFullWidth(t *testing.T) {
	// r with the top bit set forces a 49-byte DER integer; together with a
	// 48-byte s this yields the 103-byte encoding the prebuilt vendor
	// signatures use.
	r := new(big.Int).Lsh(big.NewInt(1), 383)
	s := new(big.Int).Lsh(big.NewInt(1), 380)
	der, err := asn1.Marshal(ecdsaSigValue{R: r, S: s})
	require.NoError(t, err)
	require.Len(t, der, 103)

	sig, err := ConvertECCSignatureDER(der)
	require.NoError(t, err)

	// Undo the word swap and the raw big-endian halves must match r and s.
	raw := sig
	SwapWordBytes(raw[:])
	var wantR, wantS [ECCSignatureSize / 2]byte
	r.FillBytes(wantR[:])
	s.FillBytes(wantS[:])
	assert.Equal(t, wantR[:], raw[:48])
	assert.Equal(t, wantS[:], raw[48:])
}

func TestConvertECCSignatureDERMalformed(t *testing.T) {
	_, err := ConvertECCSignatureDER([]byte{0x30, 0x03, 0x02, 0x01})
	require.ErrorIs(t, err, ErrSignatureDecode)

	// Valid DER followed by trailing garbage.
	der, err := asn1.Marshal(ecdsaSigValue{R: big.NewInt(1), S: big.NewInt(2)})
	require.NoError(t, err)
	_, err = ConvertECCSignatureDER(append(der, 0x00))
	require.ErrorIs(t, err, ErrSignatureDecode)

	// Negative r.
	der, err = asn1.Marshal(ecdsaSigValue{R: big.NewInt(-1), S: big.NewInt(2)})
	require.NoError(t, err)
	_, err = ConvertECCSignatureDER(der)
	require.ErrorIs(t, err, ErrSignatureDecode)
}

func TestConvertECCSignatureDEROversized(t *testing.T) {
	r := new(big.Int).Lsh(big.NewInt(1), 384)
	der, err := asn1.Marshal(ecdsaSigValue{R: r, S: big.NewInt(2)})
	require.NoError(t, err)

	_, err = ConvertECCSignatureDER(der)
	require.ErrorIs(t, err, ErrSignatureDecode)
}

func TestPassthroughLMSSignature(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	raw := make([]byte, LMSSignatureSize)
	_, err := rng.Read(raw)
	require.NoError(t, err)

	sig, err := PassthroughLMSSignature(raw)
	require.NoError(t, err)
	assert.Equal(t, raw, sig[:])

	_, err = PassthroughLMSSignature(raw[:100])
	require.ErrorIs(t, err, ErrSignatureSizeMismatch)
}

func TestConvertSVNLMSSignature(t *testing.T) {
	rng := rand.New(rand.NewSource(13))
	raw := make([]byte, LMSSignatureSize)
	_, err := rng.Read(raw)
	require.NoError(t, err)

	sig, err := ConvertSVNLMSSignature(raw)
	require.NoError(t, err)

	// Only the 4-byte leaf-index field is reversed.
	assert.Equal(t, []byte{raw[3], raw[2], raw[1], raw[0]}, sig[:4])
	assert.Equal(t, raw[4:], sig[4:])

	_, err = ConvertSVNLMSSignature(raw[:LMSSignatureSize-1])
	require.ErrorIs(t, err, ErrSignatureSizeMismatch)
}
