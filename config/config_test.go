package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func envMap(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func TestLoadDefaultsWhenNothingSet(t *testing.T) {
	dir := t.TempDir()
	wd, _ := os.Getwd()
	os.Chdir(dir)
	defer os.Chdir(wd)

	cfg, err := Load(envMap(nil))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Timeout != 30*time.Second {
		t.Errorf("Timeout = %v, want 30s", cfg.Timeout)
	}
	if cfg.SelectorLang != "" {
		t.Errorf("SelectorLang = %q, want empty", cfg.SelectorLang)
	}
}

func TestLoadEnvironmentOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	wd, _ := os.Getwd()
	os.Chdir(dir)
	defer os.Chdir(wd)

	cfg, err := Load(envMap(map[string]string{
		"DARKROOM_TIMEOUT":       "5",
		"DARKROOM_STRICT_SCHEMA": "true",
		"DARKROOM_SELECTOR_LANG": "cel",
	}))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Timeout != 5*time.Second {
		t.Errorf("Timeout = %v, want 5s", cfg.Timeout)
	}
	if !cfg.StrictSchema {
		t.Error("StrictSchema = false, want true")
	}
	if cfg.SelectorLang != "cel" {
		t.Errorf("SelectorLang = %q, want cel", cfg.SelectorLang)
	}
}

func TestLoadEnvironmentWinsOverFile(t *testing.T) {
	dir := t.TempDir()
	wd, _ := os.Getwd()
	os.Chdir(dir)
	defer os.Chdir(wd)

	yamlPath := filepath.Join(dir, ".darkroom.yaml")
	if err := os.WriteFile(yamlPath, []byte("timeout_seconds: 15\nselector_lang: cel\n"), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(envMap(map[string]string{"DARKROOM_TIMEOUT": "7"}))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Timeout != 7*time.Second {
		t.Errorf("Timeout = %v, want 7s (env should win over file's 15s)", cfg.Timeout)
	}
	if cfg.SelectorLang != "cel" {
		t.Errorf("SelectorLang = %q, want cel (from file, unset in env)", cfg.SelectorLang)
	}
}
