package config

// Runtime configuration. Embedders either fill the struct directly or load
// an optional comp.toml next to the program.

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"

	"comp/internal/number"
)

type Configuration struct {
	Version  string `toml:"-"`
	RootPath string `toml:"root_path"`

	LogLevel string `toml:"log_level"`
	LogFile  string `toml:"log_file"`

	// DivPrecision bounds the significant digits kept by decimal division.
	DivPrecision int `toml:"div_precision"`

	// Foreign toggles the native function modules registered at startup.
	Foreign ForeignModules `toml:"foreign"`
}

type ForeignModules struct {
	DB    bool `toml:"db"`
	Store bool `toml:"store"`
	Codec bool `toml:"codec"`
}

func Default() Configuration {
	return Configuration{
		Version:      "dev",
		RootPath:     ".",
		LogLevel:     "error",
		DivPrecision: number.DefaultDivPrecision,
		Foreign:      ForeignModules{DB: true, Store: true, Codec: true},
	}
}

// Load reads a TOML configuration file over the defaults. A missing file is
// not an error; a malformed one is.
func Load(path string) (Configuration, error) {
	cfg := Default()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to load configuration %s: %w", path, err)
	}
	if cfg.DivPrecision <= 0 {
		cfg.DivPrecision = number.DefaultDivPrecision
	}
	return cfg, nil
}
