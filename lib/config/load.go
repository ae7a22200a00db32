// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Profiles names the bundled configuration files by scenario.
var Profiles = map[string]string{
	"timeout": "timeout.conf",
	"explode": "explode.conf",
}

// ProfilePath returns the configuration file of a named scenario in
// dir.
func ProfilePath(dir, profile string) (string, error) {
	file, exists := Profiles[profile]
	if !exists {
		return "", fmt.Errorf("unknown scenario %q (want timeout or explode)", profile)
	}
	return filepath.Join(dir, file), nil
}

// Load reads the file named by POSTOFFICE_CONFIG, or returns the
// defaults when the variable is unset.
func Load() (*Config, error) {
	path := os.Getenv(EnvVar)
	if path == "" {
		return Default(), nil
	}
	return LoadFile(path)
}

// LoadFile reads a configuration file over the defaults. Files ending
// in .yaml or .yml are YAML; anything else is KEY=VALUE. A missing
// file yields the defaults. Values above the hard limits are clamped,
// then the result is validated.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config %s: %w", path, err)
		}
	default:
		if err := parseKeyValue(cfg, bytes.NewReader(data)); err != nil {
			return nil, fmt.Errorf("parsing config %s: %w", path, err)
		}
	}

	cfg.clamp()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}
