package authman

import (
	"encoding/asn1"
	"fmt"
	"math/big"
)

// ecdsaSigValue is the ASN.1 ECDSA-Sig-Value structure emitted by
// general-purpose signers (SEQUENCE of two INTEGERs, r then s).
type ecdsaSigValue struct {
	R, S *big.Int
}

// SwapWordBytes reverses the byte order of each 4-byte word in place,
// leaving the word order unchanged. Applying it twice restores the
// original buffer.
func SwapWordBytes(b []byte) {
	for i := 0; i+4 <= len(b); i += 4 {
		b[i], b[i+3] = b[i+3], b[i]
		b[i+1], b[i+2] = b[i+2], b[i+1]
	}
}

// ConvertECCSignatureDER converts a DER-encoded ECC-P384 signature into
// the fixed-width raw form the hardware verifier expects: r and s as
// 48-byte big-endian integers, then each 4-byte word byte-swapped.
func ConvertECCSignatureDER(der []byte) ([ECCSignatureSize]byte, error) {
	var out [ECCSignatureSize]byte

	var sig ecdsaSigValue
	rest, err := asn1.Unmarshal(der, &sig)
	if err != nil {
		return out, fmt.Errorf("failed to parse DER signature: %v: %w", err, ErrSignatureDecode)
	}
	if len(rest) != 0 {
		return out, fmt.Errorf("%d trailing bytes after DER signature: %w", len(rest), ErrSignatureDecode)
	}
	if sig.R.Sign() <= 0 || sig.S.Sign() <= 0 {
		return out, fmt.Errorf("non-positive r or s in DER signature: %w", ErrSignatureDecode)
	}
	if sig.R.BitLen() > 8*ECCSignatureSize/2 || sig.S.BitLen() > 8*ECCSignatureSize/2 {
		return out, fmt.Errorf("r or s does not fit %d bytes: %w", ECCSignatureSize/2, ErrSignatureDecode)
	}

	sig.R.FillBytes(out[:ECCSignatureSize/2])
	sig.S.FillBytes(out[ECCSignatureSize/2:])
	SwapWordBytes(out[:])
	return out, nil
}

// PassthroughLMSSignature validates and returns a raw LMS manifest
// signature unchanged. The manifest-signature path performs no byte-order
// conversion; only the SVN path does (see ConvertSVNLMSSignature). The
// asymmetry matches the verifier's two call sites and must not be unified.
func PassthroughLMSSignature(raw []byte) ([LMSSignatureSize]byte, error) {
	var out [LMSSignatureSize]byte
	if len(raw) != LMSSignatureSize {
		return out, fmt.Errorf("LMS signature is %d bytes, expected %d: %w",
			len(raw), LMSSignatureSize, ErrSignatureSizeMismatch)
	}
	copy(out[:], raw)
	return out, nil
}

// ConvertSVNLMSSignature prepares a raw LMS signature for the SVN slot:
// the first 4 bytes (the leaf-index field) are byte-reversed to match the
// endianness the ROM verification path expects.
func ConvertSVNLMSSignature(raw []byte) ([LMSSignatureSize]byte, error) {
	out, err := PassthroughLMSSignature(raw)
	if err != nil {
		return out, err
	}
	out[0], out[3] = out[3], out[0]
	out[1], out[2] = out[2], out[1]
	return out, nil
}
