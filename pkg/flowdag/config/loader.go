package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// decoderFor picks the unmarshal function for a file extension.
// Supported extensions: .yaml, .yml, .json.
func decoderFor(ext string) (func([]byte, any) error, bool) {
	switch ext {
	case ".yaml", ".yml":
		return yaml.Unmarshal, true
	case ".json":
		return json.Unmarshal, true
	}
	return nil, false
}

func decode(data []byte, unmarshal func([]byte, any) error, format string) (Config, error) {
	var m map[string]any
	if err := unmarshal(data, &m); err != nil {
		return Config{}, fmt.Errorf("parse %s: %w", format, err)
	}
	return New(m), nil
}

// FromYAML parses YAML data into a Config.
func FromYAML(data []byte) (Config, error) {
	return decode(data, yaml.Unmarshal, "yaml")
}

// FromJSON parses JSON data into a Config.
func FromJSON(data []byte) (Config, error) {
	return decode(data, json.Unmarshal, "json")
}

// FromFile loads configuration from a file, auto-detecting the format by
// extension.
func FromFile(path string) (Config, error) {
	ext := strings.ToLower(filepath.Ext(path))
	unmarshal, ok := decoderFor(ext)
	if !ok {
		return Config{}, fmt.Errorf("unsupported config file extension: %s", ext)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config file: %w", err)
	}
	return decode(data, unmarshal, strings.TrimPrefix(ext, "."))
}

// FromFiles loads several files and layers them left to right, later
// files overriding earlier keys. Useful for a shared base plus an
// environment-specific overlay.
func FromFiles(paths ...string) (Config, error) {
	merged := New(nil)
	for _, path := range paths {
		cfg, err := FromFile(path)
		if err != nil {
			return Config{}, err
		}
		merged = merged.Merge(cfg)
	}
	return merged, nil
}
