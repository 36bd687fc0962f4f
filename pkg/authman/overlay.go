package authman

import (
	"fmt"
	"os"

	"k8s.io/klog"
)

// VendorSignatureSource points at the prebuilt detached vendor signatures
// to overlay. Either path may be empty when the corresponding algorithm is
// not configured.
type VendorSignatureSource struct {
	// ECCDERPath is a DER-encoded ECC-P384 signature file.
	ECCDERPath string
	// LMSRawPath is a raw 1620-byte LMS signature file.
	LMSRawPath string
	// AllowMissing downgrades a missing source for a populated slot from a
	// hard failure to a logged skip, leaving the builder-generated slot in
	// place.
	AllowMissing bool
}

func isZero(b []byte) bool {
	for _, v := range b {
		if v != 0 {
			return false
		}
	}
	return true
}

// readPrebuilt loads a prebuilt signature file. A nil, nil return means
// the overlay should be skipped under the AllowMissing policy.
func readPrebuilt(path, algo string, allowMissing bool) ([]byte, error) {
	if path == "" {
		if allowMissing {
			klog.Warningf("no prebuilt vendor %s signature configured, leaving builder-generated slot", algo)
			return nil, nil
		}
		return nil, fmt.Errorf("vendor %s signature slot is populated but no prebuilt source is configured: %w",
			algo, ErrMissingPrebuiltSignature)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		if allowMissing {
			klog.Warningf("prebuilt vendor %s signature %s unreadable, leaving builder-generated slot: %v", algo, path, err)
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read prebuilt vendor %s signature %s: %v: %w",
			algo, path, err, ErrMissingPrebuiltSignature)
	}
	return raw, nil
}

// OverlayVendorECC replaces the vendor manifest ECC signature with the
// prebuilt one, converted to the verifier's raw word-swapped form, and
// zeroes the paired public key so verification uses the trust-anchor key.
// A slot that is all-zero was not configured for a vendor signature and is
// left untouched.
func (m *Manifest) OverlayVendorECC(src VendorSignatureSource) error {
	if err := m.advance(stateVendorOverlaid); err != nil {
		return err
	}
	if isZero(m.Preamble.VendorECCSig[:]) {
		klog.Infof("vendor ECC signature slot not in use, skipping overlay")
		return nil
	}

	der, err := readPrebuilt(src.ECCDERPath, "ECC", src.AllowMissing)
	if err != nil || der == nil {
		return err
	}

	sig, err := ConvertECCSignatureDER(der)
	if err != nil {
		return fmt.Errorf("prebuilt vendor ECC signature %s: %w", src.ECCDERPath, err)
	}
	klog.V(2).Infof("prebuilt vendor ECC signature: %x", sig)

	m.Preamble.VendorECCSig = sig
	m.Preamble.VendorECCPubKey = [ECCPublicKeySize]byte{}
	return nil
}

// OverlayVendorLMS replaces the vendor manifest LMS signature with the
// prebuilt raw one and zeroes the paired public key. No byte-order
// conversion happens on this path.
func (m *Manifest) OverlayVendorLMS(src VendorSignatureSource) error {
	if err := m.advance(stateVendorOverlaid); err != nil {
		return err
	}
	if isZero(m.Preamble.VendorLMSSig[:]) {
		klog.Infof("vendor LMS signature slot not in use, skipping overlay")
		return nil
	}

	raw, err := readPrebuilt(src.LMSRawPath, "LMS", src.AllowMissing)
	if err != nil || raw == nil {
		return err
	}

	sig, err := PassthroughLMSSignature(raw)
	if err != nil {
		return fmt.Errorf("prebuilt vendor LMS signature %s: %w", src.LMSRawPath, err)
	}
	klog.V(2).Infof("prebuilt vendor LMS signature: %x", sig)

	m.Preamble.VendorLMSSig = sig
	m.Preamble.VendorLMSPubKey = [LMSPublicKeySize]byte{}
	return nil
}
