// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tellerline Contributors

// Package xdg provides XDG Base Directory paths for tellerline.
package xdg

import (
	"os"
	"path/filepath"
)

const appName = "tellerline"

// configFileName is the name of the config file inside ConfigDir.
const configFileName = "config.yaml"

// ConfigDir returns the XDG config directory for tellerline.
// Checks XDG_CONFIG_HOME first, falls back to ~/.config.
func ConfigDir() string {
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		base = filepath.Join(os.Getenv("HOME"), ".config")
	}
	return filepath.Join(base, appName)
}

// ConfigFile returns the default config file path.
func ConfigFile() string {
	return filepath.Join(ConfigDir(), configFileName)
}

// DefaultConfigFile returns ConfigFile() if it exists, or "" otherwise.
func DefaultConfigFile() string {
	path := ConfigFile()
	if info, err := os.Stat(path); err == nil && !info.IsDir() {
		return path
	}
	return ""
}
