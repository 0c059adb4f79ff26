// Package cmdutil provides shared helpers for the CLI commands.
package cmdutil

import (
	"path/filepath"

	"github.com/archlens/archlens/internal/config"
)

// ResolvePath normalizes a user-supplied path: "~" expands to the home
// directory and the result is absolute and cleaned. An empty input stays
// empty so callers can treat it as "not set".
func ResolvePath(path string) (string, error) {
	expanded := config.ExpandHome(path)
	if expanded == "" {
		return "", nil
	}

	abs, err := filepath.Abs(expanded)
	if err != nil {
		return "", err
	}
	return filepath.Clean(abs), nil
}
