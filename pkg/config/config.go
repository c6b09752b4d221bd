/*
Package config contains the configuration of substrate-go CLI: node
endpoint, timeouts, logging, default signer and optional monitoring
services. It's stored in YAML.
*/
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// DefaultConfigPath is the default path to the config file.
	DefaultConfigPath = "./config/substrate.yml"
	// DefaultEndpoint is the address of a locally running development node.
	DefaultEndpoint = "ws://127.0.0.1:9944"
	// DefaultDialTimeout is the default connection establishment timeout.
	DefaultDialTimeout = 4 * time.Second
	// DefaultRequestTimeout is the default request write timeout.
	DefaultRequestTimeout = 4 * time.Second
	// DefaultPageSize is the default number of keys requested per page when
	// iterating over storage maps.
	DefaultPageSize = 100
)

// Version is the version of the CLI, set at build time.
var Version string

// Config is the top level struct representing the config.
type Config struct {
	ApplicationConfiguration ApplicationConfiguration `yaml:"ApplicationConfiguration"`
}

// Default returns the configuration used when no config file is given.
func Default() Config {
	return Config{
		ApplicationConfiguration: ApplicationConfiguration{
			Endpoint:       DefaultEndpoint,
			DialTimeout:    DefaultDialTimeout,
			RequestTimeout: DefaultRequestTimeout,
			PageSize:       DefaultPageSize,
		},
	}
}

// Load attempts to load the config from the given path. Missing file at the
// DefaultConfigPath is not an error, Default config is returned then.
func Load(path string) (Config, error) {
	if path == "" {
		path = DefaultConfigPath
	}
	cfg, err := LoadFile(path)
	if err != nil && path == DefaultConfigPath && errors.Is(err, os.ErrNotExist) {
		return Default(), nil
	}
	return cfg, err
}

// LoadFile loads config from the provided path. Unknown fields are not
// allowed, values not set in the file are taken from Default config.
func LoadFile(configPath string) (Config, error) {
	configData, err := os.ReadFile(configPath)
	if err != nil {
		return Config{}, fmt.Errorf("unable to read config: %w", err)
	}
	config := Default()
	decoder := yaml.NewDecoder(bytes.NewReader(configData))
	decoder.KnownFields(true)
	err = decoder.Decode(&config)
	if err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal config YAML: %w", err)
	}
	err = config.ApplicationConfiguration.Validate()
	if err != nil {
		return Config{}, fmt.Errorf("invalid ApplicationConfiguration: %w", err)
	}
	return config, nil
}
