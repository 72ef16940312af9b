package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"gopkg.in/yaml.v3"
)

// Load loads configuration with priority: defaults < file < flags.
func Load() (*Config, error) {
	cfg := Default()

	configPath := ConfigPath()
	if configPath == "" {
		configPath = findConfigFile()
	}

	if configPath != "" {
		if err := loadFromFile(cfg, configPath); err != nil {
			return nil, fmt.Errorf("loading config from %s: %w", configPath, err)
		}
	}

	applyFlags(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the exporters cannot honour.
func (c *Config) Validate() error {
	if c.Export.Platform != "A" && c.Export.Platform != "I" {
		return fmt.Errorf("export.platform must be A or I, got %q", c.Export.Platform)
	}
	if c.Export.Precision < 1 || c.Export.Precision > 12 {
		return fmt.Errorf("export.precision out of range: %d", c.Export.Precision)
	}
	if c.Bake.SSFactor < 1 {
		return fmt.Errorf("bake.ss_factor must be >= 1, got %d", c.Bake.SSFactor)
	}
	if c.Bake.Resolution < 1 {
		return fmt.Errorf("bake.resolution must be >= 1, got %d", c.Bake.Resolution)
	}
	return nil
}

// findConfigFile looks for config in standard locations.
func findConfigFile() string {
	candidates := []string{
		"./xptool.yaml",
		filepath.Join(ConfigDir(), "config.yaml"),
	}

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// ConfigDir returns the OS-appropriate config directory.
func ConfigDir() string {
	switch runtime.GOOS {
	case "darwin":
		home, _ := os.UserHomeDir()
		return filepath.Join(home, "Library", "Application Support", "XPlaneAssets")
	case "windows":
		return filepath.Join(os.Getenv("APPDATA"), "XPlaneAssets")
	default: // Linux and others
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			return filepath.Join(xdg, "xplane-assets")
		}
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".config", "xplane-assets")
	}
}

// loadFromFile loads config from a YAML file, merging with existing values.
func loadFromFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}
