// Package config implements darkroom's ambient configuration: CLI
// defaults sourced from environment variables, optionally seeded by a
// YAML defaults file, with environment taking precedence over file.
package config

import (
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v2"

	"github.com/Comcast/darkroom/dmerror"
)

// Config holds the ambient knobs loaded from the defaults file and the
// environment, per SPEC_FULL.md §11. The CLI reads Timeout, StrictSchema
// and SelectorLang; TLSSkipVerify, TakeDB, CutOut and CircuitBreakerN are
// loaded but not consulted by the CLI.
type Config struct {
	Timeout         time.Duration `yaml:"timeout"`
	StrictSchema    bool          `yaml:"strict_schema"`
	SelectorLang    string        `yaml:"selector_lang"` // "" (dotted) or "cel"
	TLSSkipVerify   bool          `yaml:"tls_skip_verify"`
	TakeDB          string        `yaml:"take_db"`
	CutOut          string        `yaml:"cut_out"`
	CircuitBreakerN int           `yaml:"circuit_breaker_threshold"`
}

// fileConfig mirrors Config's YAML-facing shape with plain fields so
// zero-value vs. unset is distinguishable while decoding the optional
// defaults file (Timeout there is seconds, not a time.Duration literal).
type fileConfig struct {
	TimeoutSeconds         *int    `yaml:"timeout_seconds"`
	StrictSchema           *bool   `yaml:"strict_schema"`
	SelectorLang           *string `yaml:"selector_lang"`
	TLSSkipVerify          *bool   `yaml:"tls_skip_verify"`
	TakeDB                 *string `yaml:"take_db"`
	CutOut                 *string `yaml:"cut_out"`
	CircuitBreakerN        *int    `yaml:"circuit_breaker_threshold"`
}

// Default returns the built-in defaults before any file or environment
// override is applied.
func Default() Config {
	return Config{
		Timeout:         30 * time.Second,
		SelectorLang:    "",
		CircuitBreakerN: 5,
	}
}

// Load builds a Config starting from Default, overlaying an optional
// YAML defaults file (path resolved from the DARKROOM_CONFIG environment
// variable, falling back to ./.darkroom.yaml if present), then overlaying
// individual DARKROOM_* environment variables, which always win.
func Load(getenv func(string) string) (Config, error) {
	if getenv == nil {
		getenv = os.Getenv
	}
	cfg := Default()

	filePath := getenv("DARKROOM_CONFIG")
	if filePath == "" {
		filePath = ".darkroom.yaml"
	}
	if data, err := os.ReadFile(filePath); err == nil {
		var fc fileConfig
		if err := yaml.Unmarshal(data, &fc); err != nil {
			return Config{}, dmerror.Wrap(dmerror.KindRegisterParse, "parsing "+filePath, err)
		}
		applyFile(&cfg, fc)
	}

	applyEnv(&cfg, getenv)

	return cfg, nil
}

func applyFile(cfg *Config, fc fileConfig) {
	if fc.TimeoutSeconds != nil {
		cfg.Timeout = time.Duration(*fc.TimeoutSeconds) * time.Second
	}
	if fc.StrictSchema != nil {
		cfg.StrictSchema = *fc.StrictSchema
	}
	if fc.SelectorLang != nil {
		cfg.SelectorLang = *fc.SelectorLang
	}
	if fc.TLSSkipVerify != nil {
		cfg.TLSSkipVerify = *fc.TLSSkipVerify
	}
	if fc.TakeDB != nil {
		cfg.TakeDB = *fc.TakeDB
	}
	if fc.CutOut != nil {
		cfg.CutOut = *fc.CutOut
	}
	if fc.CircuitBreakerN != nil {
		cfg.CircuitBreakerN = *fc.CircuitBreakerN
	}
}

func applyEnv(cfg *Config, getenv func(string) string) {
	if v := getenv("DARKROOM_TIMEOUT"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil {
			cfg.Timeout = time.Duration(secs) * time.Second
		}
	}
	if v := getenv("DARKROOM_STRICT_SCHEMA"); v != "" {
		cfg.StrictSchema = isTruthy(v)
	}
	if v := getenv("DARKROOM_SELECTOR_LANG"); v != "" {
		cfg.SelectorLang = v
	}
	if v := getenv("DARKROOM_TLS_SKIP_VERIFY"); v != "" {
		cfg.TLSSkipVerify = isTruthy(v)
	}
	if v := getenv("DARKROOM_TAKE_DB"); v != "" {
		cfg.TakeDB = v
	}
	if v := getenv("DARKROOM_CUT_OUT"); v != "" {
		cfg.CutOut = v
	}
}

func isTruthy(v string) bool {
	b, err := strconv.ParseBool(v)
	return err == nil && b
}
