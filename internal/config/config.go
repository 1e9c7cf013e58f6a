// Package config loads settings for the unused-port command.
//
// Settings come from three layers, later layers winning:
//  1. built-in defaults
//  2. an optional config file (YAML, or JSON with comments)
//  3. environment variables
//
// The config file is only read when a path is given, either with the
// --config flag or the UNUSED_PORT_CONFIG environment variable. There is
// no implicit lookup in the home directory.
package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"

	"github.com/simonw/unused-port/pkg/staticserver"
)

// EnvConfigPath names the environment variable holding the config file path.
const EnvConfigPath = "UNUSED_PORT_CONFIG"

// Config holds the resolved settings.
type Config struct {
	// Interpreter is the Python interpreter used to run http.server.
	// Empty means automatic discovery (python3, then python, on PATH).
	Interpreter string `yaml:"interpreter" json:"interpreter"`

	// Directory is served when no directory argument is given.
	Directory string `yaml:"directory" json:"directory"`
}

// Default returns the built-in settings.
func Default() *Config {
	return &Config{Directory: "."}
}

// Load resolves the configuration. path may be empty, in which case
// EnvConfigPath is consulted; if that is empty too, only defaults and
// environment variables apply.
//
// Example YAML file:
//
//	interpreter: /usr/local/bin/python3.12
//	directory: ./public
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv(EnvConfigPath)
	}

	cfg := Default()
	if path != "" {
		if err := loadFile(path, cfg); err != nil {
			return nil, err
		}
	}

	if interp := os.Getenv(staticserver.InterpreterEnv); interp != "" {
		cfg.Interpreter = interp
	}
	if cfg.Directory == "" {
		cfg.Directory = "."
	}

	return cfg, nil
}

// loadFile decodes the file at path into cfg. The format is picked from the
// extension; unknown keys are rejected so typos do not go unnoticed.
func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		// An empty document decodes as io.EOF; treat it as "no settings".
		if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
			return fmt.Errorf("failed to parse YAML config %s: %w", path, err)
		}

	case ".json", ".jsonc":
		// jsonc.ToJSON strips comments and trailing commas, leaving plain
		// JSON for encoding/json.
		dec := json.NewDecoder(bytes.NewReader(jsonc.ToJSON(data)))
		dec.DisallowUnknownFields()
		if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
			return fmt.Errorf("failed to parse JSON config %s: %w", path, err)
		}

	default:
		return fmt.Errorf("unsupported config file extension %q (use .yaml, .yml, .json or .jsonc)", ext)
	}

	return nil
}
