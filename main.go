package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/aspeedtech/go-authman/pkg/authman"
	"github.com/docopt/docopt-go"
	"k8s.io/klog"
)

const version = "1.0.0"

const usage = `go-authman - SoC Authorization Manifest Overlay Tool

A command-line tool that overlays prebuilt vendor signatures and an
anti-rollback (security version) signature pair onto an authorization
manifest produced by the upstream manifest builder, and packages the
result into a flashable image.

Usage:
  go-authman create-manifest --cfg=<path> [--man=<path>] [--key-dir=<path>] [--prebuilt-dir=<path>]
  go-authman create-flash --cfg=<path> [--man=<path>] [--flash=<path>] [--key-dir=<path>] [--prebuilt-dir=<path>]
  go-authman info --man=<path>
  go-authman sign --algo=<algo> --key=<path> [--by-file --input=<path>]
  go-authman -h | --help
  go-authman --version

Commands:
  create-manifest  Build the manifest via the upstream builder, then overlay
                   vendor signatures and embed the security version
  create-flash     Create a flash image from the manifest and the configured
                   firmware images (builds the manifest first if needed)
  info             Decode a manifest and print its preamble and metadata
  sign             Run the ECC half of the external signer protocol

Options:
  --cfg=<path>           Path to the tool configuration (TOML)
  --man=<path>           Manifest file [default: out/auth-manifest.bin]
  --flash=<path>         Output flash image [default: out/flash-image.bin]
  --key-dir=<path>       Key directory (or AUTHMAN_KEY_DIR env var)
  --prebuilt-dir=<path>  Prebuilt artifact directory (or AUTHMAN_PREBUILT_DIR env var)
  --algo=<algo>          Signing algorithm: ecc | lms
  --key=<path>           Private key file (PEM or PKCS#12)
  --by-file              File mode: digest file is overwritten with the signature
  --input=<path>         Digest file for --by-file mode
  -h --help              Show this help message
  --version              Show version

Environment Variables:
  AUTHMAN_KEY_DIR        Key directory (overridden by --key-dir)
  AUTHMAN_PREBUILT_DIR   Prebuilt directory (overridden by --prebuilt-dir)
  AUTHMAN_P12_PASSWORD   Password for PKCS#12 key files (sign command)

Examples:
  # Build and overlay a manifest
  go-authman create-manifest --cfg=config/ast2700-manifest.toml

  # Build the full flash image
  go-authman create-flash --cfg=config/ast2700-manifest.toml --flash=out/flash.bin

  # Inspect a manifest
  go-authman info --man=out/auth-manifest.bin

  # Sign a digest read from stdin (hex in, hex out)
  echo "<hex digest>" | go-authman sign --algo=ecc --key=key/own-man-ecc-prvk.pem

  # Sign a digest file in place
  go-authman sign --algo=ecc --key=key/own-man-ecc-prvk.pem --by-file --input=digest.bin
`

func main() {
	klog.InitFlags(nil)
	_ = flag.Set("logtostderr", "true")

	opts, err := docopt.ParseArgs(usage, os.Args[1:], version)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error parsing arguments: %v\n", err)
		os.Exit(1)
	}

	if createManifest, _ := opts.Bool("create-manifest"); createManifest {
		if err := runCreateManifest(opts); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	} else if createFlash, _ := opts.Bool("create-flash"); createFlash {
		if err := runCreateFlash(opts); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	} else if info, _ := opts.Bool("info"); info {
		if err := runInfo(opts); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	} else if sign, _ := opts.Bool("sign"); sign {
		if err := runSign(opts); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	}
}

// resolvePaths collects every file location a command needs, applying
// env-var fallbacks and defaults. Scratch files (builder config, SVN
// signature) live next to the manifest.
func resolvePaths(opts docopt.Opts) (authman.Paths, error) {
	cfgPath, _ := opts.String("--cfg")
	manPath, _ := opts.String("--man")
	flashPath, _ := opts.String("--flash")
	keyDir, _ := opts.String("--key-dir")
	prebuiltDir, _ := opts.String("--prebuilt-dir")

	if keyDir == "" {
		keyDir = os.Getenv("AUTHMAN_KEY_DIR")
	}
	if keyDir == "" {
		keyDir = "key"
	}
	if prebuiltDir == "" {
		prebuiltDir = os.Getenv("AUTHMAN_PREBUILT_DIR")
	}
	if prebuiltDir == "" {
		prebuiltDir = "prebuilt"
	}

	outDir := filepath.Dir(manPath)
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return authman.Paths{}, fmt.Errorf("failed to create output directory %s: %w", outDir, err)
	}

	return authman.Paths{
		PrebuiltDir:       prebuiltDir,
		KeyDir:            keyDir,
		ConfigPath:        cfgPath,
		BuilderConfigPath: filepath.Join(outDir, "builder-manifest.toml"),
		ManifestPath:      manPath,
		FlashImagePath:    flashPath,
		SVNSignaturePath:  filepath.Join(outDir, "svn-sig.bin"),
	}, nil
}

func runCreateManifest(opts docopt.Opts) error {
	paths, err := resolvePaths(opts)
	if err != nil {
		return err
	}
	cfg, err := authman.LoadConfig(paths.ConfigPath, paths.PrebuiltDir)
	if err != nil {
		return err
	}

	fmt.Printf("Config:       %s\n", paths.ConfigPath)
	fmt.Printf("Key dir:      %s\n", paths.KeyDir)
	fmt.Printf("Prebuilt dir: %s\n", paths.PrebuiltDir)
	fmt.Printf("Manifest:     %s\n", paths.ManifestPath)
	fmt.Println()

	if err := cfg.SaveBuilderConfig(paths.BuilderConfigPath); err != nil {
		return err
	}
	if err := authman.RunManifestBuilder(paths, cfg); err != nil {
		return err
	}

	man, err := authman.OpenManifest(paths.ManifestPath)
	if err != nil {
		return err
	}
	src := cfg.VendorSignatureSource()
	if err := man.OverlayVendorECC(src); err != nil {
		return err
	}
	if err := man.OverlayVendorLMS(src); err != nil {
		return err
	}
	if err := man.EmbedSecurityVersionFromSigner(authman.SVNSignRequestFromConfig(paths, cfg)); err != nil {
		return err
	}
	if err := man.Close(); err != nil {
		return err
	}

	fmt.Printf("Successfully created manifest: %s\n", paths.ManifestPath)
	return nil
}

func runCreateFlash(opts docopt.Opts) error {
	paths, err := resolvePaths(opts)
	if err != nil {
		return err
	}

	// Build the manifest first unless a prebuilt one already exists at the
	// requested path.
	if _, err := os.Stat(paths.ManifestPath); err != nil {
		if err := runCreateManifest(opts); err != nil {
			return err
		}
	}

	cfg, err := authman.LoadConfig(paths.ConfigPath, paths.PrebuiltDir)
	if err != nil {
		return err
	}
	if err := authman.RunFlashImageBuilder(paths, cfg); err != nil {
		return err
	}

	fmt.Printf("Successfully created flash image: %s\n", paths.FlashImagePath)
	return nil
}

func slotState(b []byte) string {
	for _, v := range b {
		if v != 0 {
			return "populated"
		}
	}
	return "empty"
}

func runInfo(opts docopt.Opts) error {
	manPath, _ := opts.String("--man")
	img, err := os.ReadFile(manPath)
	if err != nil {
		return fmt.Errorf("failed to read manifest: %w", err)
	}
	p, col, err := authman.DecodeManifestImage(img)
	if err != nil {
		return err
	}

	fmt.Println("Authorization Manifest")
	fmt.Println("======================")
	fmt.Printf("File:             %s\n", manPath)
	fmt.Printf("Magic:            0x%08x\n", p.Magic)
	fmt.Printf("Size:             %d\n", p.Size)
	fmt.Printf("Version:          %d\n", p.Version)
	fmt.Printf("Security version: %d\n", p.SecurityVersion)
	fmt.Printf("Flags:            0x%08x\n", p.Flags)
	fmt.Println()
	fmt.Println("Signature Slots")
	fmt.Println("---------------")
	fmt.Printf("Vendor manifest ECC:   sig %s, pubkey %s\n", slotState(p.VendorECCSig[:]), slotState(p.VendorECCPubKey[:]))
	fmt.Printf("Vendor manifest LMS:   sig %s, pubkey %s\n", slotState(p.VendorLMSSig[:]), slotState(p.VendorLMSPubKey[:]))
	fmt.Printf("Owner manifest ECC:    sig %s, pubkey %s\n", slotState(p.OwnerECCSig[:]), slotState(p.OwnerECCPubKey[:]))
	fmt.Printf("Owner manifest LMS:    sig %s, pubkey %s\n", slotState(p.OwnerLMSSig[:]), slotState(p.OwnerLMSPubKey[:]))
	fmt.Printf("Owner SVN ECC:         sig %s\n", slotState(p.SVNECCSig[:]))
	fmt.Printf("Owner SVN LMS:         sig %s\n", slotState(p.SVNLMSSig[:]))
	fmt.Printf("Vendor metadata ECC:   sig %s\n", slotState(p.VendorMetadataECCSig[:]))
	fmt.Printf("Vendor metadata LMS:   sig %s\n", slotState(p.VendorMetadataLMSSig[:]))
	fmt.Printf("Owner metadata ECC:    sig %s\n", slotState(p.OwnerMetadataECCSig[:]))
	fmt.Printf("Owner metadata LMS:    sig %s\n", slotState(p.OwnerMetadataLMSSig[:]))
	fmt.Println()
	fmt.Printf("Image metadata entries: %d\n", col.Count)
	for i := uint32(0); i < col.Count && i < authman.ImageMetadataMaxCount; i++ {
		e := col.Entries[i]
		fmt.Printf("  [%d] id=%d flags=0x%08x digest=%x\n", i, e.ID, e.Flags, e.Digest)
	}
	return nil
}

func runSign(opts docopt.Opts) error {
	algo, _ := opts.String("--algo")
	keyPath, _ := opts.String("--key")
	byFile, _ := opts.Bool("--by-file")
	inputPath, _ := opts.String("--input")

	switch algo {
	case "ecc":
	case "lms":
		return fmt.Errorf("LMS signing is not built in; configure an external LMS signer")
	default:
		return fmt.Errorf("unsupported algorithm %q (expected ecc or lms)", algo)
	}

	key, err := authman.LoadECCSigningKey(keyPath, os.Getenv("AUTHMAN_P12_PASSWORD"))
	if err != nil {
		return err
	}

	if byFile {
		if inputPath == "" {
			return fmt.Errorf("--input is required with --by-file")
		}
		return authman.SignFile(key, inputPath)
	}
	return authman.SignStdin(key, os.Stdin, os.Stdout, os.Stderr)
}
