// Package storagepath resolves where the item store lives. The choice is a
// user preference persisted in a small YAML settings file under the OS
// config directory, independent of the store itself so it survives the
// store moving.
package storagepath

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/glintapp/glint/internal/apperr"
)

const (
	settingsDirName  = "glint"
	settingsFileName = "settings.yaml"
	defaultDirName   = "Glint"

	// DefaultHotkey is the launcher activation chord used until the user
	// picks another.
	DefaultHotkey = "ctrl+shift+space"
)

// Settings is the persisted user preference file.
type Settings struct {
	StoragePath string `yaml:"storage_path"`
	Hotkey      string `yaml:"hotkey,omitempty"`
}

// Resolver loads and saves the settings file.
type Resolver struct {
	settingsPath string
}

// NewResolver places the settings file under the OS user config directory.
func NewResolver() (*Resolver, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return nil, fmt.Errorf("storagepath: locate config dir: %w", err)
	}
	return &Resolver{settingsPath: filepath.Join(base, settingsDirName, settingsFileName)}, nil
}

// NewResolverAt uses an explicit settings file location.
func NewResolverAt(settingsPath string) *Resolver {
	return &Resolver{settingsPath: settingsPath}
}

// SettingsPath returns the settings file location.
func (r *Resolver) SettingsPath() string { return r.settingsPath }

// Load returns the stored settings, filling in defaults for anything unset.
// A missing or unreadable settings file falls back to defaults entirely; a
// broken preference must never prevent startup.
func (r *Resolver) Load() Settings {
	s := Settings{Hotkey: DefaultHotkey}

	data, err := os.ReadFile(r.settingsPath)
	if err == nil {
		if err := yaml.Unmarshal(data, &s); err != nil {
			s = Settings{}
		}
	}
	if s.StoragePath == "" {
		s.StoragePath = defaultStoragePath()
	}
	if s.Hotkey == "" {
		s.Hotkey = DefaultHotkey
	}
	return s
}

// ResolveRoot expands and validates the configured storage path, returning
// the absolute directory the store should open.
func (r *Resolver) ResolveRoot() (string, error) {
	s := r.Load()
	return ValidatePath(s.StoragePath)
}

// SaveStoragePath validates the candidate path and persists it. The
// returned string is the expanded absolute path that was stored.
func (r *Resolver) SaveStoragePath(path string) (string, error) {
	abs, err := ValidatePath(path)
	if err != nil {
		return "", err
	}
	s := r.Load()
	s.StoragePath = abs
	if err := r.save(s); err != nil {
		return "", err
	}
	return abs, nil
}

// SaveHotkey persists the launcher activation chord.
func (r *Resolver) SaveHotkey(hotkey string) error {
	hotkey = strings.TrimSpace(hotkey)
	if hotkey == "" {
		return fmt.Errorf("empty hotkey: %w", apperr.ErrValidation)
	}
	s := r.Load()
	s.Hotkey = hotkey
	return r.save(s)
}

func (r *Resolver) save(s Settings) error {
	if err := os.MkdirAll(filepath.Dir(r.settingsPath), 0o755); err != nil {
		return fmt.Errorf("storagepath: create settings dir: %w", err)
	}
	data, err := yaml.Marshal(s)
	if err != nil {
		return fmt.Errorf("storagepath: encode settings: %w", err)
	}
	if err := os.WriteFile(r.settingsPath, data, 0o644); err != nil {
		return fmt.Errorf("storagepath: write settings: %w", err)
	}
	return nil
}

// ValidatePath expands a user-supplied storage path (~ and relative forms)
// and proves the directory can be created and written. Failures come back
// as ErrInvalidPath.
func ValidatePath(path string) (string, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return "", fmt.Errorf("storagepath: empty path: %w", apperr.ErrInvalidPath)
	}
	path = expandHome(path)

	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("storagepath: %q: %w", path, apperr.ErrInvalidPath)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return "", fmt.Errorf("storagepath: create %q: %w", abs, apperr.ErrInvalidPath)
	}
	probe, err := os.CreateTemp(abs, ".glint-probe-*")
	if err != nil {
		return "", fmt.Errorf("storagepath: %q not writable: %w", abs, apperr.ErrInvalidPath)
	}
	name := probe.Name()
	_ = probe.Close()
	_ = os.Remove(name)
	return abs, nil
}

func expandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err == nil {
			return filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}
	return path
}

// defaultStoragePath places the store under the user's documents folder,
// falling back to the home directory and finally the working directory.
func defaultStoragePath() string {
	if home, err := os.UserHomeDir(); err == nil {
		docs := filepath.Join(home, "Documents")
		if info, err := os.Stat(docs); err == nil && info.IsDir() {
			return filepath.Join(docs, defaultDirName)
		}
		return filepath.Join(home, defaultDirName)
	}
	return defaultDirName
}
