package authman

import (
	"fmt"
	"os"
	"os/exec"
	"strconv"

	"k8s.io/klog"
)

// SVNSignRequest describes an invocation of the external signer that
// produces the dual anti-rollback signature over the manifest's version,
// security version and flags.
type SVNSignRequest struct {
	ToolPath        string
	Version         uint32
	SecurityVersion uint32
	Flags           uint32
	KeyDir          string
	ConfigPath      string
	// OutputPath receives the signer's raw output: 96 bytes of ECC
	// signature followed by 1620 bytes of LMS signature.
	OutputPath string
}

// EmbedSecurityVersion writes the security version and the signer-produced
// signature pair into the preamble. The ECC signature is embedded
// unchanged; the LMS signature gets its leaf-index field byte-reversed for
// the ROM verification path.
func (m *Manifest) EmbedSecurityVersion(securityVersion uint32, signerOutput []byte) error {
	if err := m.advance(stateSvnEmbedded); err != nil {
		return err
	}
	if len(signerOutput) < ECCSignatureSize+LMSSignatureSize {
		return fmt.Errorf("signer output is %d bytes, need %d: %w",
			len(signerOutput), ECCSignatureSize+LMSSignatureSize, ErrExternalSigner)
	}

	var eccSig [ECCSignatureSize]byte
	copy(eccSig[:], signerOutput[:ECCSignatureSize])

	lmsSig, err := ConvertSVNLMSSignature(signerOutput[ECCSignatureSize : ECCSignatureSize+LMSSignatureSize])
	if err != nil {
		return err
	}

	klog.V(2).Infof("security version ECC signature: %x", eccSig)
	klog.V(2).Infof("security version LMS signature: %x", lmsSig)

	m.Preamble.SecurityVersion = securityVersion
	m.Preamble.SVNECCSig = eccSig
	m.Preamble.SVNLMSSig = lmsSig
	return nil
}

// EmbedSecurityVersionFromSigner runs the external signer and embeds its
// output. The signer is waited on synchronously; its exit code is the only
// success signal consulted.
func (m *Manifest) EmbedSecurityVersionFromSigner(req SVNSignRequest) error {
	cmd := exec.Command(req.ToolPath,
		"create-sig-svn",
		"--version", strconv.FormatUint(uint64(req.Version), 10),
		"--sec-version", strconv.FormatUint(uint64(req.SecurityVersion), 10),
		"--flags", strconv.FormatUint(uint64(req.Flags), 10),
		"--key-dir", req.KeyDir,
		"--config", req.ConfigPath,
		"--out", req.OutputPath,
	)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	klog.Infof("running SVN signer: %s", req.ToolPath)
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("SVN signer %s: %v: %w", req.ToolPath, err, ErrExternalSigner)
	}

	sig, err := os.ReadFile(req.OutputPath)
	if err != nil {
		return fmt.Errorf("failed to read SVN signature file %s: %v: %w",
			req.OutputPath, err, ErrExternalSigner)
	}
	return m.EmbedSecurityVersion(req.SecurityVersion, sig)
}
