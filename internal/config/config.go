package config

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
)

// Config holds all configurable pagemark settings.
type Config struct {
	DefaultZoom    float64 `json:"default_zoom"`    // initial zoom for opened documents
	UndoBound      int     `json:"undo_bound"`      // max undo stack depth
	ThumbnailWidth int     `json:"thumbnail_width"` // fixed thumbnail width in px
	RecentFilesCap int     `json:"recent_files_cap"`
	OutputDir      string  `json:"output_dir"` // default save directory
}

// Defaults returns sensible default configuration values.
func Defaults() Config {
	return Config{
		DefaultZoom:    1.0,
		UndoBound:      50,
		ThumbnailWidth: 120,
		RecentFilesCap: 20,
		OutputDir:      ".",
	}
}

// LoadGlobal reads ~/.config/pagemark/config.json.
// Returns defaults if the file is absent.
func LoadGlobal() (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, err
	}
	path := filepath.Join(home, ".config", "pagemark", "config.json")
	return loadFile(path, true)
}

// LoadProject reads .pagemarkconfig in the current working directory.
// Returns nil (no error) if the file is absent.
func LoadProject() (*Config, error) {
	return loadFile(".pagemarkconfig", false)
}

// loadFile reads and parses a JSON config file at path.
// If returnDefaults is true, returns defaults when the file is absent.
// If returnDefaults is false, returns nil when the file is absent.
func loadFile(path string, returnDefaults bool) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			if returnDefaults {
				d := Defaults()
				return &d, nil
			}
			return nil, nil
		}
		return nil, err
	}
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, &ParseError{Path: path, Err: err}
	}
	return &cfg, nil
}

// Merge combines global and project configs, with project taking precedence.
// Missing keys fall back to global, then defaults.
func Merge(global, project *Config) Config {
	result := Defaults()

	apply := func(c *Config) {
		if c == nil {
			return
		}
		if c.DefaultZoom > 0 {
			result.DefaultZoom = c.DefaultZoom
		}
		if c.UndoBound > 0 {
			result.UndoBound = c.UndoBound
		}
		if c.ThumbnailWidth > 0 {
			result.ThumbnailWidth = c.ThumbnailWidth
		}
		if c.RecentFilesCap > 0 {
			result.RecentFilesCap = c.RecentFilesCap
		}
		if c.OutputDir != "" {
			result.OutputDir = c.OutputDir
		}
	}

	// Apply global values over defaults, then project over global.
	apply(global)
	apply(project)

	return result
}

// ParseError is returned when a config file exists but cannot be parsed.
type ParseError struct {
	Path string
	Err  error
}

func (e *ParseError) Error() string {
	return "failed to parse config file " + e.Path + ": " + e.Err.Error()
}

func (e *ParseError) Unwrap() error {
	return e.Err
}
