// Package xdg resolves XDG Base Directory paths for bulkctl.
//
// Configuration lives under $XDG_CONFIG_HOME/bulkctl and job artifacts such as
// downloaded result files under $XDG_STATE_HOME/bulkctl. Both fall back to the
// traditional locations under the home directory when the variables are unset.
package xdg

import (
	"os"
	"path/filepath"
)

const appDir = "bulkctl"

// ConfigDir returns the XDG config directory for bulkctl.
// The directory is created with private permissions (0700) if missing.
// It falls back to ~/.config/bulkctl when XDG_CONFIG_HOME is unset.
func ConfigDir() (string, error) {
	return ensure("XDG_CONFIG_HOME", ".config")
}

// StateDir returns the XDG state directory for bulkctl.
// The directory is created with private permissions (0700) if missing.
// It falls back to ~/.local/state/bulkctl when XDG_STATE_HOME is unset.
func StateDir() (string, error) {
	return ensure("XDG_STATE_HOME", filepath.Join(".local", "state"))
}

func ensure(env, fallback string) (string, error) {
	base := os.Getenv(env)
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		base = filepath.Join(home, fallback)
	}
	dir := filepath.Join(base, appDir)
	if err := os.MkdirAll(dir, 0o700); err != nil { // private dir
		return "", err
	}
	return dir, nil
}
