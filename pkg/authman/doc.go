// Package authman overlays vendor and anti-rollback signature material
// onto a SoC firmware authorization manifest produced by the upstream
// manifest builder.
//
// The manifest is a fixed-offset binary record: a preamble of 32-bit words
// and signature/public-key slots, followed by a fixed-capacity image
// metadata collection. This package decodes it from an untrusted byte
// buffer without alignment assumptions, mutates selected fields, and
// re-encodes it byte-for-byte for the hardware verifier.
//
// # Typical flow
//
//	man, err := authman.OpenManifest(path)
//	if err != nil {
//	    return err
//	}
//	if err := man.OverlayVendorECC(src); err != nil {
//	    return err
//	}
//	if err := man.OverlayVendorLMS(src); err != nil {
//	    return err
//	}
//	if err := man.EmbedSecurityVersionFromSigner(req); err != nil {
//	    return err
//	}
//	return man.Close()
//
// Overlay steps are strictly ordered and any failure aborts before Close,
// so a failed overlay never writes a manifest back.
package authman
