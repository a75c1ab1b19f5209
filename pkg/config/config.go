// Package config holds the debugger settings read from the config file,
// the environment and the command line.
package config

import (
	"fmt"

	"github.com/spf13/viper"
)

const (
	KeyLog        = "log"
	KeyLogOutput  = "log-output"
	KeyDumpLength = "dump-length"
	KeyPrompt     = "prompt"
)

// Config is the effective debugger configuration.
type Config struct {
	Log        bool   `mapstructure:"log"`
	LogOutput  string `mapstructure:"log-output"`
	DumpLength int    `mapstructure:"dump-length"` // bytes shown by a memory dump without a length
	Prompt     string `mapstructure:"prompt"`
}

// Default returns the built in settings.
func Default() Config {
	return Config{
		DumpLength: 64,
		Prompt:     "bdbg> ",
	}
}

// SetDefaults registers the built in settings with v.
func SetDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault(KeyLog, d.Log)
	v.SetDefault(KeyLogOutput, d.LogOutput)
	v.SetDefault(KeyDumpLength, d.DumpLength)
	v.SetDefault(KeyPrompt, d.Prompt)
}

// Load unmarshals and validates the settings known to v.
func Load(v *viper.Viper) (Config, error) {
	cfg := Default()
	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %v", err)
	}
	if cfg.DumpLength <= 0 {
		return cfg, fmt.Errorf("invalid %s %d, must be positive", KeyDumpLength, cfg.DumpLength)
	}
	if cfg.Prompt == "" {
		cfg.Prompt = Default().Prompt
	}
	return cfg, nil
}
