// Package config handles xptool configuration loading and management.
package config

// Config holds all tool settings.
type Config struct {
	Logging LoggingConfig `yaml:"logging"`
	Export  ExportConfig  `yaml:"export"`
	Bake    BakeConfig    `yaml:"bake"`
	Images  ImagesConfig  `yaml:"images"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level   string `yaml:"level"`
	LogFile string `yaml:"log_file"`
}

// ExportConfig controls how asset files are written.
type ExportConfig struct {
	Platform         string `yaml:"platform"`          // "A" (Apple line endings) or "I"
	Backup           bool   `yaml:"backup"`            // Rename existing files before overwrite
	Precision        int    `yaml:"precision"`         // Fractional digits for positions, normals, UVs
	HeadingPrecision int    `yaml:"heading_precision"` // Fractional digits for headings
	HostVersion      string `yaml:"host_version"`      // Selects principled socket indices
}

// BakeConfig holds auto-baker settings.
type BakeConfig struct {
	Resolution    int     `yaml:"resolution"`
	SSFactor      int     `yaml:"ss_factor"`
	Margin        int     `yaml:"margin"`
	RayDistance   float32 `yaml:"ray_distance"`
	CageExtrusion float32 `yaml:"cage_extrusion"`
}

// ImagesConfig controls the image cache.
type ImagesConfig struct {
	ForceReload bool `yaml:"force_reload"`
}

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Logging: LoggingConfig{
			Level:   "info",
			LogFile: "",
		},
		Export: ExportConfig{
			Platform:         "I",
			Backup:           true,
			Precision:        8,
			HeadingPrecision: 4,
			HostVersion:      "4.1",
		},
		Bake: BakeConfig{
			Resolution:    2048,
			SSFactor:      1,
			Margin:        16,
			RayDistance:   0.1,
			CageExtrusion: 0.05,
		},
		Images: ImagesConfig{
			ForceReload: false,
		},
	}
}
