package util

import (
	"fmt"
	"os"
	"path/filepath"
)

// DefaultDataPath is where fetched ticker data lands unless the caller
// overrides it: ~/.finq/data.
func DefaultDataPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to resolve home directory: %w", err)
	}
	return filepath.Join(home, ".finq", "data"), nil
}
