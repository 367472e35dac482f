package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"inferd/pkg/types"
)

// Config holds runtime parameters for the daemon. Zero values mean
// "unspecified" and are replaced by defaults in Normalize.
type Config struct {
	// Model is loaded at boot and becomes the payload of the implicit first
	// reload. It doubles as the body schema of POST /api/models/load.
	Model types.ReloadRequest `json:"model" yaml:"model" toml:"model"`
	// ModelsRoot is the sandbox root; every caller-supplied path must resolve
	// inside it.
	ModelsRoot string `json:"models_root" yaml:"models_root" toml:"models_root"`
}

// Load reads a configuration file based on its extension.
// Supports: .toml, .yaml/.yml, .json
func Load(path string) (Config, error) {
	var cfg Config
	if path == "" {
		return cfg, fmt.Errorf("empty config path")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".toml":
		if err := toml.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	case ".json":
		if err := json.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	default:
		return cfg, fmt.Errorf("unsupported config extension: %s", ext)
	}
	return cfg, nil
}

// Normalize fills defaults for everything left unspecified.
func (c *Config) Normalize() {
	if c.ModelsRoot == "" {
		c.ModelsRoot = "assets"
	}
	if c.Model.Listen == nil {
		c.Model.Listen = &types.ListenConfig{}
	}
	if c.Model.Listen.IP == "" {
		c.Model.Listen.IP = "0.0.0.0"
	}
	if c.Model.Listen.Port == 0 {
		c.Model.Listen.Port = 65530
	}
	if c.Model.TokenChunkSize == 0 {
		c.Model.TokenChunkSize = 128
	}
	if c.Model.MaxBatch == 0 {
		c.Model.MaxBatch = 8
	}
}

// Addr is the listen address in host:port form.
func (c Config) Addr() string {
	ip := "0.0.0.0"
	port := 65530
	if c.Model.Listen != nil {
		if c.Model.Listen.IP != "" {
			ip = c.Model.Listen.IP
		}
		if c.Model.Listen.Port != 0 {
			port = c.Model.Listen.Port
		}
	}
	return fmt.Sprintf("%s:%d", ip, port)
}
