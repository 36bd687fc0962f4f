package authman

import "errors"

// Error kinds surfaced by the overlay pipeline. All of them abort the
// whole command; a failed overlay never writes the manifest back.
var (
	// ErrTruncatedInput indicates a manifest buffer shorter than the
	// combined fixed record size.
	ErrTruncatedInput = errors.New("truncated manifest image")

	// ErrSignatureDecode indicates a malformed DER signature.
	ErrSignatureDecode = errors.New("signature decode error")

	// ErrSignatureSizeMismatch indicates a converted signature that is not
	// of the expected fixed size.
	ErrSignatureSizeMismatch = errors.New("signature size mismatch")

	// ErrMissingPrebuiltSignature indicates a signature slot that requires
	// an overlay but has no prebuilt source available.
	ErrMissingPrebuiltSignature = errors.New("missing prebuilt signature")

	// ErrExternalSigner indicates a signer subprocess that exited non-zero
	// or produced a short output.
	ErrExternalSigner = errors.New("external signer failed")

	// ErrConfig indicates a malformed or unreadable configuration file.
	ErrConfig = errors.New("configuration error")

	// ErrPathNotFound indicates a referenced file that does not exist.
	ErrPathNotFound = errors.New("path not found")
)
