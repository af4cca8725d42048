// Package config provides Viper-based configuration loading for the console host.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// ConsoleConfig holds host console settings.
type ConsoleConfig struct {
	// Prompt is the string printed before each input line.
	Prompt string `mapstructure:"prompt"`
}

// ScriptingConfig holds the JavaScript runtime resource ceilings.
type ScriptingConfig struct {
	// MaxCallStack is the maximum function call depth per evaluation.
	// The default of 4096 frames approximates a 1 MiB stack budget.
	MaxCallStack int `mapstructure:"max_call_stack"`
	// EvalTimeout is the wall-clock ceiling for a single evaluation.
	// A unit still running when it elapses is interrupted.
	EvalTimeout time.Duration `mapstructure:"eval_timeout"`
	// InitDir is an optional directory of *.js files evaluated in
	// lexicographic order when a session starts. Empty disables it.
	InitDir string `mapstructure:"init_dir"`
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: "debug", "info", "warn", "error".
	Level string `mapstructure:"level"`
	// Format is the log output format: "json" or "console".
	Format string `mapstructure:"format"`
}

// Config is the top-level application configuration.
type Config struct {
	Console   ConsoleConfig   `mapstructure:"console"`
	Scripting ScriptingConfig `mapstructure:"scripting"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// Validate checks all configuration invariants.
//
// Postcondition: Returns nil if configuration is valid, or an error describing all violations.
func (c Config) Validate() error {
	var errs []string

	if err := validateScripting(c.Scripting); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validateLogging(c.Logging); err != nil {
		errs = append(errs, err.Error())
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

func validateScripting(s ScriptingConfig) error {
	var errs []string
	if s.MaxCallStack < 1 {
		errs = append(errs, fmt.Sprintf("scripting.max_call_stack must be >= 1, got %d", s.MaxCallStack))
	}
	if s.EvalTimeout <= 0 {
		errs = append(errs, fmt.Sprintf("scripting.eval_timeout must be positive, got %s", s.EvalTimeout))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func validateLogging(l LoggingConfig) error {
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[l.Level] {
		return fmt.Errorf("logging.level must be one of [debug, info, warn, error], got %q", l.Level)
	}
	validFormats := map[string]bool{"json": true, "console": true}
	if !validFormats[l.Format] {
		return fmt.Errorf("logging.format must be one of [json, console], got %q", l.Format)
	}
	return nil
}

// Load reads configuration from the given file path, applies environment variable
// overrides, and validates the result. An empty path skips the file and yields
// the defaults (still subject to environment overrides).
//
// Postcondition: Returns a valid Config or a non-nil error.
func Load(path string) (Config, error) {
	v := viper.New()

	// Environment variable overrides with JSCONSOLE_ prefix
	v.SetEnvPrefix("JSCONSOLE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshalling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("console.prompt", "> ")

	v.SetDefault("scripting.max_call_stack", 4096)
	v.SetDefault("scripting.eval_timeout", "5s")
	v.SetDefault("scripting.init_dir", "")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
}
