// SPDX-License-Identifier: MPL-2.0

package runtime

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"slices"
	"strings"

	"github.com/joho/godotenv"
)

// LoadEnvFile reads a dotenv file and returns its entries as sorted KEY=VALUE
// pairs. Relative paths are resolved against baseDir. Paths suffixed with '?'
// are optional; a missing optional file yields no entries.
func LoadEnvFile(path, baseDir string) ([]string, error) {
	if path == "" {
		return nil, nil
	}
	optional := strings.HasSuffix(path, "?")
	path = strings.TrimSuffix(path, "?")

	fullPath := filepath.FromSlash(path)
	if !filepath.IsAbs(fullPath) {
		fullPath = filepath.Join(baseDir, fullPath)
	}

	values, err := godotenv.Read(fullPath)
	if err != nil {
		if optional && errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read env file '%s': %w", path, err)
	}

	env := make([]string, 0, len(values))
	for k, v := range values {
		env = append(env, k+"="+v)
	}
	slices.Sort(env)
	return env, nil
}
