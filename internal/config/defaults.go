package config

import (
	"os"
	"path/filepath"

	"gpsconv/internal/domain"
)

const appDirName = ".gpsconv"

// DefaultSettings returns baseline preferences for first launch.
func DefaultSettings() domain.Settings {
	return domain.Settings{}
}

// DefaultSettingsPath returns the preference file location under the user home.
func DefaultSettingsPath() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		homeDir = "."
	}
	return filepath.Join(homeDir, appDirName, "settings.json")
}
