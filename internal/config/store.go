package config

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"

	"gpsconv/internal/domain"
)

// Store defines persistence operations for user preferences.
type Store interface {
	Load() (domain.Settings, error)
	Save(domain.Settings) error
}

// JSONStore persists preferences in a single JSON file on disk.
type JSONStore struct {
	path string
}

// NewJSONStore creates a JSON-backed preference store.
func NewJSONStore(path string) *JSONStore {
	return &JSONStore{path: path}
}

// Path returns the backing file location.
func (s *JSONStore) Path() string {
	return s.path
}

// Load reads preferences from disk or returns defaults when missing.
func (s *JSONStore) Load() (domain.Settings, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return DefaultSettings(), nil
		}

		return domain.Settings{}, err
	}

	var cfg domain.Settings
	if err := json.Unmarshal(data, &cfg); err != nil {
		return domain.Settings{}, err
	}

	return Normalize(cfg), nil
}

// Save writes preferences as indented JSON and creates parent directories.
// The file is replaced through a rename so watchers never see a torn write.
func (s *JSONStore) Save(cfg domain.Settings) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(Normalize(cfg), "", "  ")
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".settings-*.json")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	if err := os.Chmod(tmpPath, 0o644); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	return os.Rename(tmpPath, s.path)
}

// Normalize trims user input.
func Normalize(cfg domain.Settings) domain.Settings {
	cfg.CustomBinaryPath = strings.TrimSpace(cfg.CustomBinaryPath)
	return cfg
}

// Preferences adapts a Store to the single custom-binary-path key.
type Preferences struct {
	Store Store
}

// CustomBinaryPath returns the configured override or "" when unset or unreadable.
func (p Preferences) CustomBinaryPath() string {
	if p.Store == nil {
		return ""
	}
	cfg, err := p.Store.Load()
	if err != nil {
		return ""
	}
	return cfg.CustomBinaryPath
}

// SetCustomBinaryPath persists the override; an empty path clears it.
func (p Preferences) SetCustomBinaryPath(path string) error {
	if p.Store == nil {
		return errors.New("settings store is not configured")
	}
	cfg, err := p.Store.Load()
	if err != nil {
		return err
	}
	cfg.CustomBinaryPath = path
	return p.Store.Save(cfg)
}
