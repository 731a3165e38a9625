// Package common holds small helpers shared by the SDK and the CLI.
package common

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// File permission constants for consistent security across the SDK
const (
	// FilePermissionSecure is used for sensitive files (state, credentials)
	FilePermissionSecure = 0600

	// DirPermissionSecure is used for directories containing sensitive files
	DirPermissionSecure = 0700
)

// StateDir returns the directory holding the SDK's persisted state and
// configuration. BEACON_STATE_DIR overrides the default ~/.beacon.
func StateDir() (string, error) {
	if dir := os.Getenv("BEACON_STATE_DIR"); dir != "" {
		return CleanPath(dir)
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to resolve home directory: %w", err)
	}
	return filepath.Join(home, ".beacon"), nil
}

// EnsureStateDir resolves the state directory and creates it if missing.
func EnsureStateDir() (string, error) {
	dir, err := StateDir()
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, DirPermissionSecure); err != nil {
		return "", fmt.Errorf("failed to create state directory: %w", err)
	}
	return dir, nil
}

// CleanPath sanitizes a file path to prevent directory traversal
func CleanPath(path string) (string, error) {
	cleaned := filepath.Clean(path)

	if strings.Contains(cleaned, "..") {
		return "", fmt.Errorf("invalid path: contains directory traversal")
	}

	if !filepath.IsAbs(cleaned) {
		abs, err := filepath.Abs(cleaned)
		if err != nil {
			return "", fmt.Errorf("failed to resolve absolute path: %w", err)
		}
		cleaned = abs
	}

	return cleaned, nil
}
