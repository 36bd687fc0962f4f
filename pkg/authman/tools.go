package authman

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"

	"k8s.io/klog"
)

// Collaborator binary names inside the configured tool directories.
const (
	authBuilderBinary = "caliptra-auth-manifest-app"
	flashToolBinary   = "xtask"
)

// MCURuntimeFwID marks the runtime firmware that is listed in the
// manifest but excluded from the flash image's SoC image list.
const MCURuntimeFwID = 1

func checkToolPath(path string) error {
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("tool %s: %v: %w", path, err, ErrPathNotFound)
	}
	return nil
}

// runTool spawns a collaborator process and blocks on its completion. The
// exit code is the only success signal consulted.
func runTool(tool string, args []string) error {
	if err := checkToolPath(tool); err != nil {
		return err
	}
	cmd := exec.Command(tool, args...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	klog.Infof("running %s %v", tool, args)
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%s failed: %w", tool, err)
	}
	return nil
}

func manifestBuilderArgs(p Paths, cfg *Config) []string {
	return []string{
		"create-auth-man",
		"--version", strconv.FormatUint(uint64(cfg.ManifestConfig.Version), 10),
		"--flags", strconv.FormatUint(uint64(cfg.ManifestConfig.Flags), 10),
		"--key-dir", p.KeyDir,
		"--config", p.BuilderConfigPath,
		"--out", p.ManifestPath,
	}
}

// RunManifestBuilder invokes the upstream builder to create the base
// authorization manifest from the generated builder config.
func RunManifestBuilder(p Paths, cfg *Config) error {
	return runTool(filepath.Join(cfg.AuthTool.AuthBuilderDir, authBuilderBinary), manifestBuilderArgs(p, cfg))
}

// SVNSignRequestFromConfig assembles the SVN signer invocation for the
// loaded configuration.
func SVNSignRequestFromConfig(p Paths, cfg *Config) SVNSignRequest {
	return SVNSignRequest{
		ToolPath:        filepath.Join(cfg.AuthTool.AuthBuilderDir, authBuilderBinary),
		Version:         cfg.ManifestConfig.Version,
		SecurityVersion: cfg.ManifestConfig.SecurityVersion,
		Flags:           cfg.ManifestConfig.Flags,
		KeyDir:          p.KeyDir,
		ConfigPath:      p.BuilderConfigPath,
		OutputPath:      p.SVNSignaturePath,
	}
}

func flashImageArgs(p Paths, cfg *Config) []string {
	args := []string{
		"flash-image", "create",
		"--caliptra-fw", cfg.ImageRuntimeList.CaliptraFile,
		"--soc-manifest", p.ManifestPath,
		"--mcu-runtime", cfg.ImageRuntimeList.MCUFile,
		"--output", p.FlashImagePath,
	}
	socImages := []string{}
	for _, img := range cfg.ImageMetadataList {
		if img.FwID == MCURuntimeFwID {
			continue
		}
		socImages = append(socImages, img.File)
	}
	if len(socImages) > 0 {
		args = append(args, "--soc-images")
		args = append(args, socImages...)
	}
	return args
}

// RunFlashImageBuilder invokes the flash image tool, passing every
// configured SoC image except the MCU runtime (which the flash tool takes
// separately).
func RunFlashImageBuilder(p Paths, cfg *Config) error {
	return runTool(filepath.Join(cfg.AuthTool.FlashBuilderDir, flashToolBinary), flashImageArgs(p, cfg))
}
