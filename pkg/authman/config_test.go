package authman

import (
	"encoding/hex"
	"os"
	"path/filepath"
	"testing"

	"github.com/BurntSushi/toml"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testConfigTOML = `
[authtool]
auth_builder_dir = "tools/auth"
flash_builder_dir = "tools/mcu"

[manifest_config]
version = 2
security_version = 5
flags = 1
vnd_prebuilt_ecc_sig = "vnd_ecc_sig.der"
vnd_prebuilt_lms_sig = "vnd_lms_sig.bin"
allow_missing_prebuilt = false

[vendor_fw_key_config]
ecc_pub_key = "vnd-fw-ecc-pubk.pem"
lms_pub_key = "vnd-fw-lms-pubk.pem"

[vendor_man_key_config]
ecc_pub_key = "vnd-man-ecc-pubk.pem"
lms_pub_key = "vnd-man-lms-pubk.pem"

[image_runtime_list]
caliptra_file = "caliptra-fw.bin"
mcu_file = "mcu-runtime.bin"

[[image_metadata_list]]
file = "soc-image-a.bin"
source = 2
fw_id = 3
ignore_auth_check = false
load_stage = 1

[[image_metadata_list]]
file = "/abs/soc-image-b.bin"
source = 3
fw_id = 1
ignore_auth_check = true
load_stage = 2
`

func writeTestConfig(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "manifest.toml")
	require.NoError(t, os.WriteFile(path, []byte(testConfigTOML), 0644))
	return path
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeTestConfig(t, dir)

	cfg, err := LoadConfig(cfgPath, "prebuilt")
	require.NoError(t, err)

	assert.Equal(t, "tools/auth", cfg.AuthTool.AuthBuilderDir)
	assert.Equal(t, uint32(2), cfg.ManifestConfig.Version)
	assert.Equal(t, uint32(5), cfg.ManifestConfig.SecurityVersion)
	assert.Equal(t, uint32(1), cfg.ManifestConfig.Flags)
	assert.False(t, cfg.ManifestConfig.AllowMissingPrebuilt)
	assert.Equal(t, "vnd-man-ecc-pubk.pem", cfg.VendorManKey.ECCPubKey)
	assert.Nil(t, cfg.OwnerFwKey)

	// Relative paths resolve against the prebuilt directory, absolute ones
	// are left alone.
	assert.Equal(t, filepath.Join("prebuilt", "vnd_ecc_sig.der"), cfg.ManifestConfig.VendorPrebuiltECCSig)
	assert.Equal(t, filepath.Join("prebuilt", "caliptra-fw.bin"), cfg.ImageRuntimeList.CaliptraFile)
	require.Len(t, cfg.ImageMetadataList, 2)
	assert.Equal(t, filepath.Join("prebuilt", "soc-image-a.bin"), cfg.ImageMetadataList[0].File)
	assert.Equal(t, "/abs/soc-image-b.bin", cfg.ImageMetadataList[1].File)
	assert.Equal(t, uint32(1), cfg.ImageMetadataList[0].LoadStage)
	assert.True(t, cfg.ImageMetadataList[1].IgnoreAuthCheck)
}

func TestLoadConfigMalformed(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "broken.toml")
	require.NoError(t, os.WriteFile(path, []byte("[authtool\n"), 0644))

	_, err := LoadConfig(path, "prebuilt")
	require.ErrorIs(t, err, ErrConfig)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.toml"), "prebuilt")
	require.ErrorIs(t, err, ErrConfig)
}

func TestVendorSignatureSource(t *testing.T) {
	cfg := &Config{}
	cfg.ManifestConfig.VendorPrebuiltECCSig = "a.der"
	cfg.ManifestConfig.VendorPrebuiltLMSSig = "b.bin"
	cfg.ManifestConfig.AllowMissingPrebuilt = true

	src := cfg.VendorSignatureSource()
	assert.Equal(t, "a.der", src.ECCDERPath)
	assert.Equal(t, "b.bin", src.LMSRawPath)
	assert.True(t, src.AllowMissing)
}

func TestSaveBuilderConfig(t *testing.T) {
	dir := t.TempDir()

	imgA := []byte("firmware image a") // 16 bytes, aligned
	imgB := []byte("firmware image bb")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.bin"), imgA, 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.bin"), imgB, 0644))

	cfg := &Config{
		VendorFwKey:  KeyConfig{ECCPubKey: "fw-ecc.pem", LMSPubKey: "fw-lms.pem"},
		VendorManKey: KeyConfig{ECCPubKey: "man-ecc.pem", LMSPubKey: "man-lms.pem"},
		ImageMetadataList: []ImageMetadataConfig{
			{File: filepath.Join(dir, "a.bin"), Source: 2, FwID: 3},
			{File: filepath.Join(dir, "b.bin"), Source: 3, FwID: 1, IgnoreAuthCheck: true},
		},
	}

	out := filepath.Join(dir, "builder.toml")
	require.NoError(t, cfg.SaveBuilderConfig(out))

	var bc builderConfig
	_, err := toml.DecodeFile(out, &bc)
	require.NoError(t, err)

	assert.Equal(t, "fw-ecc.pem", bc.VendorFwKey.ECCPubKey)
	require.Len(t, bc.ImageMetadataList, 2)

	wantA := PaddedDigest(imgA)
	wantB := PaddedDigest(imgB)
	assert.Equal(t, hex.EncodeToString(wantA[:]), bc.ImageMetadataList[0].Digest)
	assert.Equal(t, hex.EncodeToString(wantB[:]), bc.ImageMetadataList[1].Digest)
	assert.Equal(t, uint32(3), bc.ImageMetadataList[0].FwID)
	assert.True(t, bc.ImageMetadataList[1].IgnoreAuthCheck)
}

func TestSaveBuilderConfigMissingImage(t *testing.T) {
	dir := t.TempDir()
	cfg := &Config{
		ImageMetadataList: []ImageMetadataConfig{
			{File: filepath.Join(dir, "missing.bin")},
		},
	}

	err := cfg.SaveBuilderConfig(filepath.Join(dir, "builder.toml"))
	require.ErrorIs(t, err, ErrPathNotFound)
}
