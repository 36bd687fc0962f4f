package authman

import (
	"bufio"
	"bytes"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"encoding/hex"
	"encoding/pem"
	"fmt"
	"io"
	"os"
	"strings"

	gop12 "software.sslmate.com/src/go-pkcs12"
)

// LoadECCSigningKey loads an ECC-P384 private key from a PEM file or a
// PKCS#12 bundle. Key material is always parsed field by field; raw byte
// buffers are never reinterpreted as in-memory structures.
func LoadECCSigningKey(path, p12Password string) (*ecdsa.PrivateKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read key %s: %v: %w", path, err, ErrPathNotFound)
	}

	var key *ecdsa.PrivateKey
	if bytes.HasPrefix(data, []byte("-----BEGIN")) {
		key, err = parseECCPEM(data)
	} else {
		key, err = parseECCP12(data, p12Password)
	}
	if err != nil {
		return nil, fmt.Errorf("key %s: %w", path, err)
	}

	if key.Curve != elliptic.P384() {
		return nil, fmt.Errorf("key %s uses curve %s, expected P-384", path, key.Curve.Params().Name)
	}
	return key, nil
}

func parseECCPEM(data []byte) (*ecdsa.PrivateKey, error) {
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, fmt.Errorf("failed to decode PEM block")
	}

	switch block.Type {
	case "EC PRIVATE KEY":
		return x509.ParseECPrivateKey(block.Bytes)
	case "PRIVATE KEY":
		key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
		if err != nil {
			return nil, err
		}
		ecKey, ok := key.(*ecdsa.PrivateKey)
		if !ok {
			return nil, fmt.Errorf("PKCS#8 key is not an EC key")
		}
		return ecKey, nil
	default:
		return nil, fmt.Errorf("unsupported PEM type: %s", block.Type)
	}
}

func parseECCP12(data []byte, password string) (*ecdsa.PrivateKey, error) {
	key, _, err := gop12.Decode(data, password)
	if err != nil {
		return nil, fmt.Errorf("failed to decode P12: %w", err)
	}
	ecKey, ok := key.(*ecdsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("P12 key is not an EC key")
	}
	return ecKey, nil
}

// SignDigestECC signs a prehashed SHA-384 digest and returns the
// DER-encoded ECDSA signature.
func SignDigestECC(key *ecdsa.PrivateKey, digest []byte) ([]byte, error) {
	if len(digest) != SHA384DigestSize {
		return nil, fmt.Errorf("digest is %d bytes, expected %d", len(digest), SHA384DigestSize)
	}
	return ecdsa.SignASN1(rand.Reader, key, digest)
}

// SignStdin implements the stdin/stdout half of the signer protocol: one
// hex-encoded digest line in, one hex-encoded DER signature line out.
// Diagnostics go to errw.
func SignStdin(key *ecdsa.PrivateKey, in io.Reader, out, errw io.Writer) error {
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && line == "" {
		return fmt.Errorf("failed to read digest from stdin: %w", err)
	}
	digest, err := hex.DecodeString(strings.TrimSpace(line))
	if err != nil {
		return fmt.Errorf("failed to decode hex digest: %w", err)
	}
	preview := digest
	if len(preview) > previewLen {
		preview = preview[:previewLen]
	}
	fmt.Fprintf(errw, "signing digest %x\n", preview)

	sig, err := SignDigestECC(key, digest)
	if err != nil {
		return err
	}
	fmt.Fprintln(out, hex.EncodeToString(sig))
	return nil
}

// previewLen limits the digest echo on stderr.
const previewLen = 16

// SignFile implements the file half of the signer protocol: the file's raw
// digest bytes are replaced in place with the raw signature bytes.
func SignFile(key *ecdsa.PrivateKey, path string) error {
	digest, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read digest file %s: %v: %w", path, err, ErrPathNotFound)
	}
	sig, err := SignDigestECC(key, digest)
	if err != nil {
		return fmt.Errorf("digest file %s: %w", path, err)
	}
	if err := os.WriteFile(path, sig, 0644); err != nil {
		return fmt.Errorf("failed to write signature to %s: %w", path, err)
	}
	return nil
}
