package config

import "flag"

var (
	flagConfig     = flag.String("config", "", "Path to config file")
	flagDebug      = flag.Bool("debug", false, "Enable debug logging")
	flagNoBackup   = flag.Bool("no-backup", false, "Overwrite files without a backup copy")
	flagResolution = flag.Int("resolution", 0, "Bake resolution in pixels")
	flagSS         = flag.Int("ss", 0, "Bake supersampling factor")
	flagPrecision  = flag.Int("precision", 0, "Fractional digits for exported coordinates")
)

// ParseFlags parses command-line flags. Call this early in main().
func ParseFlags() {
	flag.Parse()
}

// Args returns the non-flag arguments.
func Args() []string {
	return flag.Args()
}

// ConfigPath returns the explicit config path if provided via --config flag.
func ConfigPath() string {
	return *flagConfig
}

// applyFlags applies CLI flag overrides to the config.
func applyFlags(cfg *Config) {
	if *flagDebug {
		cfg.Logging.Level = "debug"
	}
	if *flagNoBackup {
		cfg.Export.Backup = false
	}
	if *flagResolution > 0 {
		cfg.Bake.Resolution = *flagResolution
	}
	if *flagSS > 0 {
		cfg.Bake.SSFactor = *flagSS
	}
	if *flagPrecision > 0 {
		cfg.Export.Precision = *flagPrecision
	}
}
