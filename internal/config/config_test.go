package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/boshu2/keyguard/internal/logger"
	"github.com/boshu2/keyguard/internal/rules"
)

// isolate points HOME at a fresh directory and clears every KEYGUARD_* variable.
func isolate(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	for _, key := range []string{EnvConfig, EnvOutput, EnvVerbose, EnvLogLevel, EnvRulesFile, EnvEnvVar} {
		t.Setenv(key, "")
	}
	return home
}

func writeConfig(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Output != "table" {
		t.Errorf("Default Output = %q, want %q", cfg.Output, "table")
	}
	if cfg.Verbose {
		t.Error("Default Verbose = true, want false")
	}
	if cfg.LogLevel != "warn" {
		t.Errorf("Default LogLevel = %q, want %q", cfg.LogLevel, "warn")
	}
	if cfg.RulesFile != rules.DefaultRulesPath() {
		t.Errorf("Default RulesFile = %q, want %q", cfg.RulesFile, rules.DefaultRulesPath())
	}
	if cfg.EnvVar != "KEYCHAIN_CUSTOM_RULES" {
		t.Errorf("Default EnvVar = %q, want %q", cfg.EnvVar, "KEYCHAIN_CUSTOM_RULES")
	}
}

func TestMerge(t *testing.T) {
	dst := Default()
	src := &Config{
		Output:    "json",
		RulesFile: "/custom/rules.yaml",
	}

	result := merge(dst, src)

	if result.Output != "json" {
		t.Errorf("merge Output = %q, want %q", result.Output, "json")
	}
	if result.RulesFile != "/custom/rules.yaml" {
		t.Errorf("merge RulesFile = %q, want %q", result.RulesFile, "/custom/rules.yaml")
	}
	// Defaults should be preserved when not overridden
	if result.LogLevel != "warn" {
		t.Errorf("merge preserved LogLevel = %q, want %q", result.LogLevel, "warn")
	}
	if result.EnvVar != rules.DefaultEnvVar {
		t.Errorf("merge preserved EnvVar = %q, want %q", result.EnvVar, rules.DefaultEnvVar)
	}
}

func TestMerge_VerboseOnlyTurnsOn(t *testing.T) {
	dst := Default()
	dst.Verbose = true

	result := merge(dst, &Config{Output: "yaml"})
	if !result.Verbose {
		t.Error("merge with unset Verbose should keep true")
	}
}

func TestApplyEnv(t *testing.T) {
	isolate(t)
	t.Setenv(EnvOutput, "yaml")
	t.Setenv(EnvVerbose, "true")
	t.Setenv(EnvLogLevel, "debug")
	t.Setenv(EnvRulesFile, "/etc/keyguard/rules.json")
	t.Setenv(EnvEnvVar, "MY_RULES")

	cfg := applyEnv(Default())

	if cfg.Output != "yaml" {
		t.Errorf("applyEnv Output = %q, want %q", cfg.Output, "yaml")
	}
	if !cfg.Verbose {
		t.Error("applyEnv Verbose = false, want true")
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("applyEnv LogLevel = %q, want %q", cfg.LogLevel, "debug")
	}
	if cfg.RulesFile != "/etc/keyguard/rules.json" {
		t.Errorf("applyEnv RulesFile = %q, want %q", cfg.RulesFile, "/etc/keyguard/rules.json")
	}
	if cfg.EnvVar != "MY_RULES" {
		t.Errorf("applyEnv EnvVar = %q, want %q", cfg.EnvVar, "MY_RULES")
	}
}

func TestApplyEnv_VerboseVariants(t *testing.T) {
	tests := []struct {
		value string
		start bool
		want  bool
	}{
		{"true", false, true},
		{"1", false, true},
		{"YES", false, true},
		{"false", true, false},
		{"0", true, false},
		{"", true, true},
		{"maybe", false, false},
	}
	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			isolate(t)
			t.Setenv(EnvVerbose, tt.value)
			cfg := Default()
			cfg.Verbose = tt.start
			if got := applyEnv(cfg).Verbose; got != tt.want {
				t.Errorf("applyEnv Verbose with %q = %v, want %v", tt.value, got, tt.want)
			}
		})
	}
}

func TestLoadFromPath(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	writeConfig(t, configPath, `
output: json
verbose: true
log_level: info
rules_file: /srv/rules.yaml
env_var: TEAM_RULES
`)

	cfg, err := loadFromPath(configPath)
	if err != nil {
		t.Fatalf("loadFromPath() error = %v", err)
	}
	if cfg.Output != "json" {
		t.Errorf("loadFromPath Output = %q, want %q", cfg.Output, "json")
	}
	if !cfg.Verbose {
		t.Error("loadFromPath Verbose = false, want true")
	}
	if cfg.LogLevel != "info" {
		t.Errorf("loadFromPath LogLevel = %q, want %q", cfg.LogLevel, "info")
	}
	if cfg.RulesFile != "/srv/rules.yaml" {
		t.Errorf("loadFromPath RulesFile = %q, want %q", cfg.RulesFile, "/srv/rules.yaml")
	}
	if cfg.EnvVar != "TEAM_RULES" {
		t.Errorf("loadFromPath EnvVar = %q, want %q", cfg.EnvVar, "TEAM_RULES")
	}
}

func TestLoadFromPath_NotExists(t *testing.T) {
	cfg, err := loadFromPath("/nonexistent/config.yaml")
	if cfg != nil {
		t.Errorf("loadFromPath for nonexistent file should return nil config")
	}
	if !os.IsNotExist(err) {
		t.Errorf("loadFromPath for nonexistent file error = %v, want not-exist", err)
	}
}

func TestLoadFromPath_Empty(t *testing.T) {
	cfg, err := loadFromPath("")
	if cfg != nil || err != nil {
		t.Errorf("loadFromPath(\"\") = %v, %v; want nil, nil", cfg, err)
	}
}

func TestLoadFromPath_InvalidYAML(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	writeConfig(t, configPath, "output: [unterminated\n")

	_, err := loadFromPath(configPath)
	if !errors.Is(err, ErrMalformedConfig) {
		t.Errorf("loadFromPath error = %v, want ErrMalformedConfig", err)
	}
}

func TestLoad_Precedence(t *testing.T) {
	home := isolate(t)
	writeConfig(t, filepath.Join(home, ".keyguard", "config.yaml"), "output: yaml\nlog_level: info\nenv_var: HOME_RULES\n")

	explicit := filepath.Join(t.TempDir(), "team.yaml")
	writeConfig(t, explicit, "log_level: error\nrules_file: ~/team/rules.json\n")
	t.Setenv(EnvConfig, explicit)
	t.Setenv(EnvEnvVar, "ENV_RULES")

	cfg, err := Load("", &Config{Output: "json"})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Output != "json" {
		t.Errorf("flag should win for Output, got %q", cfg.Output)
	}
	if cfg.LogLevel != "error" {
		t.Errorf("explicit file should override home LogLevel, got %q", cfg.LogLevel)
	}
	if want := filepath.Join(home, "team", "rules.json"); cfg.RulesFile != want {
		t.Errorf("RulesFile = %q, want %q", cfg.RulesFile, want)
	}
	if cfg.EnvVar != "ENV_RULES" {
		t.Errorf("env should override home EnvVar, got %q", cfg.EnvVar)
	}
}

func TestLoad_FlagPathBeatsEnvPath(t *testing.T) {
	isolate(t)
	dir := t.TempDir()
	fromEnv := filepath.Join(dir, "env.yaml")
	fromFlag := filepath.Join(dir, "flag.yaml")
	writeConfig(t, fromEnv, "output: yaml\n")
	writeConfig(t, fromFlag, "output: markdown\n")
	t.Setenv(EnvConfig, fromEnv)

	cfg, err := Load(fromFlag, nil)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Output != "markdown" {
		t.Errorf("Output = %q, want %q", cfg.Output, "markdown")
	}
}

func TestLoad_MalformedFileIgnored(t *testing.T) {
	home := isolate(t)
	writeConfig(t, filepath.Join(home, ".keyguard", "config.yaml"), ":\n\t- nope")

	cfg, err := Load("", nil)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Output != "table" {
		t.Errorf("Output = %q, want default", cfg.Output)
	}
}

func TestLoad_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     *Config
		wantErr error
	}{
		{"bad output", &Config{Output: "xml"}, ErrInvalidOutput},
		{"bad log level", &Config{LogLevel: "loud"}, logger.ErrUnknownLevel},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			isolate(t)
			cfg, err := Load("", tt.cfg)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Load() error = %v, want %v", err, tt.wantErr)
			}
			if cfg == nil {
				t.Fatal("Load() returned nil config")
			}
			if cfg.Output != "table" || cfg.LogLevel != "warn" {
				t.Errorf("invalid fields not reset: output=%q log_level=%q", cfg.Output, cfg.LogLevel)
			}
		})
	}
}

func TestResolve_Defaults(t *testing.T) {
	isolate(t)

	rc := Resolve(Flags{})
	checks := []struct {
		name string
		got  resolved
		want interface{}
	}{
		{"output", rc.Output, "table"},
		{"verbose", rc.Verbose, false},
		{"log_level", rc.LogLevel, "warn"},
		{"rules_file", rc.RulesFile, rules.DefaultRulesPath()},
		{"env_var", rc.EnvVar, rules.DefaultEnvVar},
	}
	for _, c := range checks {
		if c.got.Value != c.want {
			t.Errorf("%s Value = %v, want %v", c.name, c.got.Value, c.want)
		}
		if c.got.Source != SourceDefault {
			t.Errorf("%s Source = %v, want %v", c.name, c.got.Source, SourceDefault)
		}
	}
	if rc.ConfigFile != "" {
		t.Errorf("ConfigFile = %q, want empty", rc.ConfigFile)
	}
}

func TestResolve_Sources(t *testing.T) {
	home := isolate(t)
	writeConfig(t, filepath.Join(home, ".keyguard", "config.yaml"), "output: yaml\nverbose: true\nenv_var: HOME_RULES\n")
	explicit := filepath.Join(t.TempDir(), "team.yaml")
	writeConfig(t, explicit, "log_level: info\nenv_var: TEAM_RULES\n")
	t.Setenv(EnvRulesFile, "/env/rules.json")

	rc := Resolve(Flags{ConfigPath: explicit, Output: "json"})

	if rc.Output.Value != "json" || rc.Output.Source != SourceFlag {
		t.Errorf("Output = %+v, want json from flag", rc.Output)
	}
	if rc.Verbose.Value != true || rc.Verbose.Source != SourceHome {
		t.Errorf("Verbose = %+v, want true from home", rc.Verbose)
	}
	if rc.LogLevel.Value != "info" || rc.LogLevel.Source != SourceExplicit {
		t.Errorf("LogLevel = %+v, want info from config file", rc.LogLevel)
	}
	if rc.EnvVar.Value != "TEAM_RULES" || rc.EnvVar.Source != SourceExplicit {
		t.Errorf("EnvVar = %+v, want TEAM_RULES from config file", rc.EnvVar)
	}
	if rc.RulesFile.Value != "/env/rules.json" || rc.RulesFile.Source != SourceEnv {
		t.Errorf("RulesFile = %+v, want /env/rules.json from environment", rc.RulesFile)
	}
	if rc.ConfigFile != explicit {
		t.Errorf("ConfigFile = %q, want %q", rc.ConfigFile, explicit)
	}
}

func TestResolve_EnvVerboseFalse(t *testing.T) {
	home := isolate(t)
	writeConfig(t, filepath.Join(home, ".keyguard", "config.yaml"), "verbose: true\n")
	t.Setenv(EnvVerbose, "0")

	rc := Resolve(Flags{})
	if rc.Verbose.Value != false || rc.Verbose.Source != SourceEnv {
		t.Errorf("Verbose = %+v, want false from environment", rc.Verbose)
	}
}

func TestResolveStringField(t *testing.T) {
	tests := []struct {
		name                           string
		home, explicit, env, flag, def string
		wantValue                      string
		wantSource                     Source
	}{
		{"default", "", "", "", "", "d", "d", SourceDefault},
		{"home", "h", "", "", "", "d", "h", SourceHome},
		{"explicit", "h", "x", "", "", "d", "x", SourceExplicit},
		{"env", "h", "x", "e", "", "d", "e", SourceEnv},
		{"flag", "h", "x", "e", "f", "d", "f", SourceFlag},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := resolveStringField(tt.home, tt.explicit, tt.env, tt.flag, tt.def)
			if got.Value != tt.wantValue || got.Source != tt.wantSource {
				t.Errorf("resolveStringField() = %+v, want %q from %v", got, tt.wantValue, tt.wantSource)
			}
		})
	}
}

func TestExplicitConfigPath(t *testing.T) {
	home := isolate(t)
	if got := explicitConfigPath(""); got != "" {
		t.Errorf("explicitConfigPath(\"\") = %q, want empty", got)
	}
	t.Setenv(EnvConfig, "  ~/cfg.yaml ")
	if got, want := explicitConfigPath(""), filepath.Join(home, "cfg.yaml"); got != want {
		t.Errorf("explicitConfigPath from env = %q, want %q", got, want)
	}
	if got := explicitConfigPath("/flag.yaml"); got != "/flag.yaml" {
		t.Errorf("explicitConfigPath flag = %q, want /flag.yaml", got)
	}
}
