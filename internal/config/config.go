// Package config provides configuration management for keyguard.
// Configuration is loaded from (highest to lowest priority):
// 1. Command-line flags
// 2. Environment variables (KEYGUARD_*)
// 3. Explicit config file (--config or KEYGUARD_CONFIG)
// 4. Home config (~/.keyguard/config.yaml)
// 5. Defaults
//
// This is the tool's own configuration. Rule declarations live in the
// rules file, see package rules.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/boshu2/keyguard/internal/logger"
	"github.com/boshu2/keyguard/internal/rules"
)

var log = logger.New("config")

// Config holds all keyguard configuration.
type Config struct {
	// Output controls the default output format (table, json, yaml, jsonl, markdown).
	Output string `yaml:"output" json:"output"`

	// Verbose enables verbose output and debug logging.
	Verbose bool `yaml:"verbose" json:"verbose"`

	// LogLevel is one of trace, debug, info, warn, error.
	LogLevel string `yaml:"log_level" json:"log_level"`

	// RulesFile is the path of the rule declarations file.
	// Default: ~/.keychain/rules.json
	RulesFile string `yaml:"rules_file" json:"rules_file"`

	// EnvVar names the environment variable holding ad-hoc patterns.
	// Default: KEYCHAIN_CUSTOM_RULES
	EnvVar string `yaml:"env_var" json:"env_var"`
}

// Default config values (used in resolution and validation).
const (
	defaultOutput   = "table"
	defaultLogLevel = "warn"
)

// Environment variables read by applyEnv and Resolve.
const (
	EnvConfig    = "KEYGUARD_CONFIG"
	EnvOutput    = "KEYGUARD_OUTPUT"
	EnvVerbose   = "KEYGUARD_VERBOSE"
	EnvLogLevel  = "KEYGUARD_LOG_LEVEL"
	EnvRulesFile = "KEYGUARD_RULES_FILE"
	EnvEnvVar    = "KEYGUARD_ENV_VAR"
)

// OutputFormats lists the accepted values of Output.
var OutputFormats = []string{"table", "json", "yaml", "jsonl", "markdown"}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Output:    defaultOutput,
		Verbose:   false,
		LogLevel:  defaultLogLevel,
		RulesFile: rules.DefaultRulesPath(),
		EnvVar:    rules.DefaultEnvVar,
	}
}

// Validate checks enumerated fields.
func (c *Config) Validate() error {
	var errs []error
	if !slices.Contains(OutputFormats, c.Output) {
		errs = append(errs, fmt.Errorf("%w: %q (want one of %s)", ErrInvalidOutput, c.Output, strings.Join(OutputFormats, ", ")))
	}
	if _, err := logger.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// resetInvalid puts fields rejected by Validate back to their defaults.
func (c *Config) resetInvalid() {
	if !slices.Contains(OutputFormats, c.Output) {
		c.Output = defaultOutput
	}
	if _, err := logger.ParseLevel(c.LogLevel); err != nil {
		c.LogLevel = defaultLogLevel
	}
}

// Load loads configuration with proper precedence.
// Priority: flags > env > explicit file > home > defaults
//
// explicitPath is the --config flag value; when empty KEYGUARD_CONFIG is used.
// Unreadable or malformed config files are logged and skipped. A validation
// error is returned alongside a usable config whose invalid fields were reset
// to their defaults.
func Load(explicitPath string, flagOverrides *Config) (*Config, error) {
	cfg := Default()

	if homeConfig := loadLogged(homeConfigPath()); homeConfig != nil {
		cfg = merge(cfg, homeConfig)
	}

	if explicit := loadLogged(explicitConfigPath(explicitPath)); explicit != nil {
		cfg = merge(cfg, explicit)
	}

	cfg = applyEnv(cfg)

	if flagOverrides != nil {
		cfg = merge(cfg, flagOverrides)
	}

	cfg.RulesFile = rules.ExpandHome(cfg.RulesFile)
	err := cfg.Validate()
	if err != nil {
		cfg.resetInvalid()
	}
	return cfg, err
}

// homeConfigPath returns the home config path.
func homeConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".keyguard", "config.yaml")
}

// explicitConfigPath returns the flag path, else KEYGUARD_CONFIG.
func explicitConfigPath(flagPath string) string {
	if p := strings.TrimSpace(flagPath); p != "" {
		return rules.ExpandHome(p)
	}
	if override := strings.TrimSpace(os.Getenv(EnvConfig)); override != "" {
		return rules.ExpandHome(override)
	}
	return ""
}

// loadFromPath loads config from a YAML file.
func loadFromPath(path string) (*Config, error) {
	if path == "" {
		return nil, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformedConfig, path, err)
	}

	return &cfg, nil
}

func loadLogged(path string) *Config {
	cfg, err := loadFromPath(path)
	if err != nil {
		if os.IsNotExist(err) {
			log.Debug("No config at %s", path)
		} else {
			log.Warn("Ignoring config %s: %v", path, err)
		}
		return nil
	}
	return cfg
}

// applyEnv applies environment variable overrides.
func applyEnv(cfg *Config) *Config {
	if v, ok := getEnvString(EnvOutput); ok {
		cfg.Output = v
	}
	if v, ok := getEnvBool(EnvVerbose); ok {
		cfg.Verbose = v
	}
	if v, ok := getEnvString(EnvLogLevel); ok {
		cfg.LogLevel = v
	}
	if v, ok := getEnvString(EnvRulesFile); ok {
		cfg.RulesFile = v
	}
	if v, ok := getEnvString(EnvEnvVar); ok {
		cfg.EnvVar = v
	}
	return cfg
}

// mergeStr overwrites dst with src when src is non-empty.
func mergeStr(dst *string, src string) {
	if src != "" {
		*dst = src
	}
}

// merge merges src into dst, with src values taking precedence.
// Verbose only ever turns on.
func merge(dst, src *Config) *Config {
	mergeStr(&dst.Output, src.Output)
	mergeStr(&dst.LogLevel, src.LogLevel)
	mergeStr(&dst.RulesFile, src.RulesFile)
	mergeStr(&dst.EnvVar, src.EnvVar)
	if src.Verbose {
		dst.Verbose = true
	}
	return dst
}

// Source represents where a config value came from.
type Source string

const (
	SourceDefault  Source = "default"
	SourceHome     Source = "~/.keyguard/config.yaml"
	SourceExplicit Source = "config file"
	SourceEnv      Source = "environment"
	SourceFlag     Source = "flag"
)

// getEnvString returns the trimmed value and whether the env var was set.
func getEnvString(key string) (string, bool) {
	v := strings.TrimSpace(os.Getenv(key))
	return v, v != ""
}

// getEnvBool returns the boolean value and whether the env var held a truthy
// or falsy value.
func getEnvBool(key string) (bool, bool) {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(key))) {
	case "true", "1", "yes":
		return true, true
	case "false", "0", "no":
		return false, true
	}
	return false, false
}

// resolveStringField resolves a string through the precedence chain.
func resolveStringField(home, explicit, env, flag, def string) resolved {
	result := resolved{Value: def, Source: SourceDefault}
	if home != "" {
		result = resolved{Value: home, Source: SourceHome}
	}
	if explicit != "" {
		result = resolved{Value: explicit, Source: SourceExplicit}
	}
	if env != "" {
		result = resolved{Value: env, Source: SourceEnv}
	}
	if flag != "" {
		result = resolved{Value: flag, Source: SourceFlag}
	}
	return result
}

// ResolvedConfig shows config values with their sources.
type ResolvedConfig struct {
	ConfigFile string   `json:"config_file,omitempty" yaml:"config_file,omitempty"`
	Output     resolved `json:"output" yaml:"output"`
	Verbose    resolved `json:"verbose" yaml:"verbose"`
	LogLevel   resolved `json:"log_level" yaml:"log_level"`
	RulesFile  resolved `json:"rules_file" yaml:"rules_file"`
	EnvVar     resolved `json:"env_var" yaml:"env_var"`
}

type resolved struct {
	Value  interface{} `json:"value" yaml:"value"`
	Source Source      `json:"source" yaml:"source"`
}

// Flags carries the command-line values that take part in resolution.
type Flags struct {
	ConfigPath string
	Output     string
	Verbose    bool
	LogLevel   string
	RulesFile  string
}

// Resolve returns configuration with source tracking.
// Uses precedence chain: flags > env > explicit file > home > defaults.
func Resolve(flags Flags) *ResolvedConfig {
	home := loadLogged(homeConfigPath())
	if home == nil {
		home = &Config{}
	}
	explicitPath := explicitConfigPath(flags.ConfigPath)
	explicit := loadLogged(explicitPath)
	if explicit == nil {
		explicit = &Config{}
	}

	envOutput, _ := getEnvString(EnvOutput)
	envLogLevel, _ := getEnvString(EnvLogLevel)
	envRulesFile, _ := getEnvString(EnvRulesFile)
	envEnvVar, _ := getEnvString(EnvEnvVar)
	envVerbose, envVerboseSet := getEnvBool(EnvVerbose)

	rc := &ResolvedConfig{
		ConfigFile: explicitPath,
		Output:     resolveStringField(home.Output, explicit.Output, envOutput, flags.Output, defaultOutput),
		Verbose:    resolved{Value: false, Source: SourceDefault},
		LogLevel:   resolveStringField(home.LogLevel, explicit.LogLevel, envLogLevel, flags.LogLevel, defaultLogLevel),
		RulesFile:  resolveStringField(home.RulesFile, explicit.RulesFile, envRulesFile, flags.RulesFile, rules.DefaultRulesPath()),
		EnvVar:     resolveStringField(home.EnvVar, explicit.EnvVar, envEnvVar, "", rules.DefaultEnvVar),
	}

	if home.Verbose {
		rc.Verbose = resolved{Value: true, Source: SourceHome}
	}
	if explicit.Verbose {
		rc.Verbose = resolved{Value: true, Source: SourceExplicit}
	}
	if envVerboseSet {
		rc.Verbose = resolved{Value: envVerbose, Source: SourceEnv}
	}
	if flags.Verbose {
		rc.Verbose = resolved{Value: true, Source: SourceFlag}
	}

	return rc
}
