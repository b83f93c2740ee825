// Package paths resolves modelgate's on-disk locations (config file, SQLite
// store) under the XDG base directory spec, the way the teacher resolved its
// own daemon/config/socket layout.
package paths

import (
	"os"
	"path/filepath"
)

func homeDir() string {
	if h := os.Getenv("HOME"); h != "" {
		return h
	}
	h, _ := os.UserHomeDir()
	return h
}

func xdgDir(envVar, fallbackSuffix string) string {
	if v := os.Getenv(envVar); v != "" {
		return filepath.Join(v, "modelgate")
	}
	return filepath.Join(homeDir(), fallbackSuffix, "modelgate")
}

// ConfigDir returns the modelgate config directory ($XDG_CONFIG_HOME/modelgate).
func ConfigDir() string {
	return xdgDir("XDG_CONFIG_HOME", ".config")
}

// DataDir returns the modelgate data directory ($XDG_DATA_HOME/modelgate),
// home of the SQLite conversation/request store.
func DataDir() string {
	return xdgDir("XDG_DATA_HOME", filepath.Join(".local", "share"))
}

// ConfigFile returns the path to config.toml.
func ConfigFile() string {
	return filepath.Join(ConfigDir(), "config.toml")
}

// StorePath returns the default path to the SQLite conversation/request store.
func StorePath() string {
	return filepath.Join(DataDir(), "modelgate.db")
}

// EnsureDir creates a directory and parents if needed.
func EnsureDir(dir string) error {
	return os.MkdirAll(dir, 0700)
}
