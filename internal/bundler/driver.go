// SPDX-License-Identifier: MPL-2.0

package bundler

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
)

// DriverName is the file name of the embedded rollup driver.
const DriverName = "bleep-rollup-driver.mjs"

//go:embed driver.mjs
var driverSource []byte

// WriteDriver writes the embedded rollup driver into dir and returns its
// path. The default bundler command runs it with node.
func WriteDriver(dir string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create driver directory: %w", err)
	}
	path := filepath.Join(dir, DriverName)
	if err := os.WriteFile(path, driverSource, 0o644); err != nil {
		return "", fmt.Errorf("failed to write bundler driver: %w", err)
	}
	return path, nil
}

// DefaultCommand returns the argv that runs the embedded driver, written to
// cacheDir, with node.
func DefaultCommand(cacheDir string) ([]string, error) {
	path, err := WriteDriver(cacheDir)
	if err != nil {
		return nil, err
	}
	return []string{"node", path}, nil
}
