// Package main provides the go-authman CLI tool for SoC authorization
// manifest post-processing.
//
// For the library API, see the authman subpackage:
//
//	import "github.com/aspeedtech/go-authman/pkg/authman"
//
// # Installation
//
// Install the CLI:
//
//	go install github.com/aspeedtech/go-authman@latest
package main
