package authman

import (
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// KeyConfig names the key material for one signing role. Public keys are
// always required by the upstream builder; private keys are optional
// because production signing happens out of process.
type KeyConfig struct {
	ECCPubKey  string `toml:"ecc_pub_key"`
	ECCPrivKey string `toml:"ecc_priv_key,omitempty"`
	LMSPubKey  string `toml:"lms_pub_key"`
	LMSPrivKey string `toml:"lms_priv_key,omitempty"`
}

// ToolDependencies locates the external collaborator binaries.
type ToolDependencies struct {
	// AuthBuilderDir contains the upstream manifest builder, which also
	// serves as the SVN signer.
	AuthBuilderDir string `toml:"auth_builder_dir"`
	// FlashBuilderDir contains the flash image packaging tool.
	FlashBuilderDir string `toml:"flash_builder_dir"`
}

// ManifestConfig carries the manifest-wide knobs.
type ManifestConfig struct {
	Version         uint32 `toml:"version"`
	SecurityVersion uint32 `toml:"security_version"`
	Flags           uint32 `toml:"flags"`

	// Prebuilt vendor signature file names, resolved against the prebuilt
	// directory. Empty means the algorithm is not configured.
	VendorPrebuiltECCSig string `toml:"vnd_prebuilt_ecc_sig"`
	VendorPrebuiltLMSSig string `toml:"vnd_prebuilt_lms_sig"`

	// AllowMissingPrebuilt downgrades a populated slot with no prebuilt
	// source from a hard failure to a logged skip.
	AllowMissingPrebuilt bool `toml:"allow_missing_prebuilt"`
}

// RuntimeImages lists the runtime firmware files packaged into the flash
// image alongside the manifest.
type RuntimeImages struct {
	CaliptraFile string `toml:"caliptra_file"`
	MCUFile      string `toml:"mcu_file"`
}

// ImageMetadataConfig describes one firmware image to authorize.
type ImageMetadataConfig struct {
	File            string `toml:"file"`
	Source          uint32 `toml:"source"`
	FwID            uint32 `toml:"fw_id"`
	IgnoreAuthCheck bool   `toml:"ignore_auth_check"`
	LoadStage       uint32 `toml:"load_stage"`
}

// Config is the tool's own TOML configuration.
type Config struct {
	AuthTool          ToolDependencies      `toml:"authtool"`
	ManifestConfig    ManifestConfig        `toml:"manifest_config"`
	VendorFwKey       KeyConfig             `toml:"vendor_fw_key_config"`
	VendorManKey      KeyConfig             `toml:"vendor_man_key_config"`
	OwnerFwKey        *KeyConfig            `toml:"owner_fw_key_config"`
	OwnerManKey       *KeyConfig            `toml:"owner_man_key_config"`
	ImageRuntimeList  RuntimeImages         `toml:"image_runtime_list"`
	ImageMetadataList []ImageMetadataConfig `toml:"image_metadata_list"`
}

// Paths carries every file location a command needs, resolved once up
// front. There is no process-wide path state anywhere else.
type Paths struct {
	PrebuiltDir       string
	KeyDir            string
	ConfigPath        string
	BuilderConfigPath string
	ManifestPath      string
	FlashImagePath    string
	SVNSignaturePath  string
}

// resolvePrebuilt joins a configured file name with the prebuilt
// directory, leaving absolute paths and empty names alone.
func resolvePrebuilt(prebuiltDir, name string) string {
	if name == "" || filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(prebuiltDir, name)
}

// LoadConfig reads and parses the tool configuration, resolving every
// image and prebuilt signature path against the prebuilt directory.
func LoadConfig(path, prebuiltDir string) (*Config, error) {
	var cfg Config
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %v: %w", path, err, ErrConfig)
	}
	if len(cfg.ImageMetadataList) > ImageMetadataMaxCount {
		return nil, fmt.Errorf("config %s lists %d images, maximum is %d: %w",
			path, len(cfg.ImageMetadataList), ImageMetadataMaxCount, ErrConfig)
	}

	cfg.ManifestConfig.VendorPrebuiltECCSig = resolvePrebuilt(prebuiltDir, cfg.ManifestConfig.VendorPrebuiltECCSig)
	cfg.ManifestConfig.VendorPrebuiltLMSSig = resolvePrebuilt(prebuiltDir, cfg.ManifestConfig.VendorPrebuiltLMSSig)
	cfg.ImageRuntimeList.CaliptraFile = resolvePrebuilt(prebuiltDir, cfg.ImageRuntimeList.CaliptraFile)
	cfg.ImageRuntimeList.MCUFile = resolvePrebuilt(prebuiltDir, cfg.ImageRuntimeList.MCUFile)
	for i := range cfg.ImageMetadataList {
		cfg.ImageMetadataList[i].File = resolvePrebuilt(prebuiltDir, cfg.ImageMetadataList[i].File)
	}

	return &cfg, nil
}

// VendorSignatureSource builds the overlay source from the configuration.
func (c *Config) VendorSignatureSource() VendorSignatureSource {
	return VendorSignatureSource{
		ECCDERPath:   c.ManifestConfig.VendorPrebuiltECCSig,
		LMSRawPath:   c.ManifestConfig.VendorPrebuiltLMSSig,
		AllowMissing: c.ManifestConfig.AllowMissingPrebuilt,
	}
}

// builderImageMetadata is one image entry of the upstream builder's own
// config format: the file reference is replaced with its digest.
type builderImageMetadata struct {
	Digest          string `toml:"digest"`
	Source          uint32 `toml:"source"`
	FwID            uint32 `toml:"fw_id"`
	IgnoreAuthCheck bool   `toml:"ignore_auth_check"`
}

// builderConfig is the config file consumed by the upstream manifest
// builder.
type builderConfig struct {
	VendorFwKey       KeyConfig              `toml:"vendor_fw_key_config"`
	VendorManKey      KeyConfig              `toml:"vendor_man_key_config"`
	OwnerFwKey        *KeyConfig             `toml:"owner_fw_key_config,omitempty"`
	OwnerManKey       *KeyConfig             `toml:"owner_man_key_config,omitempty"`
	ImageMetadataList []builderImageMetadata `toml:"image_metadata_list"`
}

// SaveBuilderConfig digests every configured firmware image and writes the
// upstream builder's config file to path.
func (c *Config) SaveBuilderConfig(path string) error {
	bc := builderConfig{
		VendorFwKey:  c.VendorFwKey,
		VendorManKey: c.VendorManKey,
		OwnerFwKey:   c.OwnerFwKey,
		OwnerManKey:  c.OwnerManKey,
	}
	for _, img := range c.ImageMetadataList {
		data, err := os.ReadFile(img.File)
		if err != nil {
			return fmt.Errorf("failed to read image %s: %v: %w", img.File, err, ErrPathNotFound)
		}
		digest := PaddedDigest(data)
		bc.ImageMetadataList = append(bc.ImageMetadataList, builderImageMetadata{
			Digest:          hex.EncodeToString(digest[:]),
			Source:          img.Source,
			FwID:            img.FwID,
			IgnoreAuthCheck: img.IgnoreAuthCheck,
		})
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create builder config %s: %w", path, err)
	}
	defer f.Close()
	if err := toml.NewEncoder(f).Encode(bc); err != nil {
		return fmt.Errorf("failed to encode builder config %s: %v: %w", path, err, ErrConfig)
	}
	return nil
}
