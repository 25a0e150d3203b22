package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"pgregory.net/rapid"
)

// Property: merge precedence is project over global over defaults,
// field by field, with zero values meaning "not set".
func TestConfigMergePrecedence(t *testing.T) {
	configGen := rapid.Custom(func(t *rapid.T) *Config {
		cfg := &Config{}
		if rapid.Bool().Draw(t, "hasZoom") {
			cfg.DefaultZoom = rapid.Float64Range(0.25, 4.0).Draw(t, "zoom")
		}
		if rapid.Bool().Draw(t, "hasUndo") {
			cfg.UndoBound = rapid.IntRange(1, 200).Draw(t, "undo")
		}
		if rapid.Bool().Draw(t, "hasOutputDir") {
			cfg.OutputDir = rapid.StringMatching(`[a-zA-Z0-9/_.-]{1,20}`).Draw(t, "outputDir")
		}
		return cfg
	})

	rapid.Check(t, func(t *rapid.T) {
		global := configGen.Draw(t, "global")
		project := configGen.Draw(t, "project")

		merged := Merge(global, project)
		defaults := Defaults()

		wantZoom := defaults.DefaultZoom
		if global.DefaultZoom > 0 {
			wantZoom = global.DefaultZoom
		}
		if project.DefaultZoom > 0 {
			wantZoom = project.DefaultZoom
		}
		if merged.DefaultZoom != wantZoom {
			t.Fatalf("DefaultZoom = %v, want %v", merged.DefaultZoom, wantZoom)
		}

		wantUndo := defaults.UndoBound
		if global.UndoBound > 0 {
			wantUndo = global.UndoBound
		}
		if project.UndoBound > 0 {
			wantUndo = project.UndoBound
		}
		if merged.UndoBound != wantUndo {
			t.Fatalf("UndoBound = %v, want %v", merged.UndoBound, wantUndo)
		}

		wantDir := defaults.OutputDir
		if global.OutputDir != "" {
			wantDir = global.OutputDir
		}
		if project.OutputDir != "" {
			wantDir = project.OutputDir
		}
		if merged.OutputDir != wantDir {
			t.Fatalf("OutputDir = %q, want %q", merged.OutputDir, wantDir)
		}
	})
}

func TestLoadFileMissingReturnsDefaultsOrNil(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "nope.json")

	cfg, err := loadFile(missing, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg == nil || *cfg != Defaults() {
		t.Fatalf("expected defaults, got %+v", cfg)
	}

	cfg, err = loadFile(missing, false)
	if err != nil || cfg != nil {
		t.Fatalf("expected nil, nil; got %+v, %v", cfg, err)
	}
}

func TestLoadFileMalformedReturnsParseError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := loadFile(path, true)
	var pe *ParseError
	if !errors.As(err, &pe) {
		t.Fatalf("expected ParseError, got %v", err)
	}
	if pe.Path != path {
		t.Errorf("ParseError.Path = %q, want %q", pe.Path, path)
	}
}

func TestLoadFileValid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(`{"default_zoom": 1.5, "undo_bound": 25}`), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := loadFile(path, true)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.DefaultZoom != 1.5 || cfg.UndoBound != 25 {
		t.Fatalf("unexpected config: %+v", cfg)
	}
}
