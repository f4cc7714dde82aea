// Package config handles layered YAML configuration with environment overrides.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/smileynet/cadastro/internal/state"
)

// Config holds all cadastro configuration.
type Config struct {
	Registry Registry `yaml:"registry"`
	Update   Update   `yaml:"update"`
	Delete   Delete   `yaml:"delete"`
	Display  Display  `yaml:"display"`
}

// Registry holds backing file settings.
type Registry struct {
	File string `yaml:"file"`
}

// Update holds update behaviour settings.
type Update struct {
	Validate bool `yaml:"validate"` // Apply field rules to replacement values
}

// Delete holds delete confirmation settings.
type Delete struct {
	ConfirmToken string `yaml:"confirm_token"` // Case-insensitive affirmative answer
}

// Display holds output settings.
type Display struct {
	Plain bool `yaml:"plain"` // Force plain text even on a TTY
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Registry: Registry{
			File: state.DefaultFile,
		},
		Update: Update{
			Validate: true,
		},
		Delete: Delete{
			ConfirmToken: "s",
		},
	}
}

// Load reads a single YAML config file at path and returns a Config.
// For merging multiple config sources, use LoadLayered instead.
// If the file does not exist, defaults are returned without error.
// If the file contains invalid YAML or unknown fields, an error is returned.
func Load(path string) (*Config, error) {
	return LoadLayered(path)
}

// LoadLayered loads config from multiple paths with increasing priority.
// Later paths override earlier ones. Missing files are skipped.
func LoadLayered(paths ...string) (*Config, error) {
	cfg := DefaultConfig()

	for _, path := range paths {
		layer, err := loadLayer(path)
		if err != nil {
			return nil, err
		}
		if layer == nil {
			continue
		}
		cfg.merge(layer)
	}

	return &cfg, nil
}

// Validate checks that config values are usable.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Registry.File) == "" {
		return errors.New("config: registry.file cannot be empty")
	}
	if strings.TrimSpace(c.Delete.ConfirmToken) == "" {
		return errors.New("config: delete.confirm_token cannot be empty")
	}
	return nil
}

// ApplyEnv applies environment variable overrides to the config.
// Supported variables: CADASTRO_FILE, CADASTRO_UPDATE_VALIDATE,
// CADASTRO_CONFIRM_TOKEN, CADASTRO_PLAIN.
func (c *Config) ApplyEnv() error {
	if v := os.Getenv("CADASTRO_FILE"); v != "" {
		c.Registry.File = v
	}
	if v := os.Getenv("CADASTRO_UPDATE_VALIDATE"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("config: invalid CADASTRO_UPDATE_VALIDATE %q: %w", v, err)
		}
		c.Update.Validate = b
	}
	if v := os.Getenv("CADASTRO_CONFIRM_TOKEN"); v != "" {
		c.Delete.ConfirmToken = v
	}
	if v := os.Getenv("CADASTRO_PLAIN"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("config: invalid CADASTRO_PLAIN %q: %w", v, err)
		}
		c.Display.Plain = b
	}
	return nil
}

// Marshal renders the config as YAML.
func (c *Config) Marshal() ([]byte, error) {
	data, err := yaml.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("config: marshaling: %w", err)
	}
	return data, nil
}

// rawConfig mirrors Config but uses pointers to distinguish set vs unset fields.
type rawConfig struct {
	Registry *rawRegistry `yaml:"registry"`
	Update   *rawUpdate   `yaml:"update"`
	Delete   *rawDelete   `yaml:"delete"`
	Display  *rawDisplay  `yaml:"display"`
}

type rawRegistry struct {
	File *string `yaml:"file"`
}

type rawUpdate struct {
	Validate *bool `yaml:"validate"`
}

type rawDelete struct {
	ConfirmToken *string `yaml:"confirm_token"`
}

type rawDisplay struct {
	Plain *bool `yaml:"plain"`
}

// loadLayer reads a single config file into a rawConfig for selective merging.
// Returns nil if the file does not exist. Rejects unknown fields.
func loadLayer(path string) (*rawConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}

	if len(data) == 0 {
		return nil, nil
	}

	var raw rawConfig
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&raw); err != nil {
		// Comment-only YAML files produce EOF with no decoded content.
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}

	return &raw, nil
}

// merge applies non-nil fields from a rawConfig layer onto this Config.
func (c *Config) merge(layer *rawConfig) {
	if layer.Registry != nil && layer.Registry.File != nil {
		c.Registry.File = *layer.Registry.File
	}
	if layer.Update != nil && layer.Update.Validate != nil {
		c.Update.Validate = *layer.Update.Validate
	}
	if layer.Delete != nil && layer.Delete.ConfirmToken != nil {
		c.Delete.ConfirmToken = *layer.Delete.ConfirmToken
	}
	if layer.Display != nil && layer.Display.Plain != nil {
		c.Display.Plain = *layer.Display.Plain
	}
}
