// Package paths provides a single source of truth for rirc file paths.
// All path helpers honor environment variable overrides for isolated testing.
//
// Path resolution precedence:
//  1. Specific env vars (RIRC_CONFIG, RIRC_LOG) take highest priority
//  2. RIRC_DIR env var sets the base directory (derives config and log paths)
//  3. Default behavior (~/.rirc, ~/.config/rirc) when no env vars are set
package paths

import (
	"os"
	"path/filepath"
)

// Environment variable names for path overrides.
const (
	// EnvDir is the base directory override (e.g., /tmp/rirc-test).
	EnvDir = "RIRC_DIR"

	// EnvConfigPath overrides the config file path directly.
	EnvConfigPath = "RIRC_CONFIG"

	// EnvLogPath overrides the log file path directly.
	EnvLogPath = "RIRC_LOG"
)

// BaseDir returns the rirc base directory (~/.rirc by default).
// Honors RIRC_DIR environment variable.
func BaseDir() (string, error) {
	if dir := os.Getenv(EnvDir); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".rirc"), nil
}

// ConfigDir returns the rirc config directory (~/.config/rirc by default).
// When RIRC_DIR is set, returns RIRC_DIR/config instead.
func ConfigDir() (string, error) {
	if dir := os.Getenv(EnvDir); dir != "" {
		return filepath.Join(dir, "config"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "rirc"), nil
}

// ConfigPath returns the path to the config file.
// Precedence: RIRC_CONFIG > RIRC_DIR/config/config.toml > ~/.config/rirc/config.toml
func ConfigPath() (string, error) {
	if path := os.Getenv(EnvConfigPath); path != "" {
		return path, nil
	}
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// LogPath returns the log file path.
// Precedence: RIRC_LOG > RIRC_DIR/rirc.log > ~/.rirc/rirc.log
func LogPath() string {
	if path := os.Getenv(EnvLogPath); path != "" {
		return path
	}
	base, err := BaseDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "rirc.log")
	}
	return filepath.Join(base, "rirc.log")
}
