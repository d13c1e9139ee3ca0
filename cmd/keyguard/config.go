package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/boshu2/keyguard/internal/config"
)

var (
	configShow bool
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
	Long: `View keyguard configuration.

Configuration priority (highest to lowest):
  1. Command-line flags
  2. Environment variables (KEYGUARD_*)
  3. Explicit config file (--config or KEYGUARD_CONFIG)
  4. Home config (~/.keyguard/config.yaml)
  5. Defaults

Environment variables:
  KEYGUARD_CONFIG      - Explicit config file path
  KEYGUARD_OUTPUT      - Default output format (table, json, yaml, jsonl, markdown)
  KEYGUARD_VERBOSE     - Enable verbose output (true/1, false/0)
  KEYGUARD_LOG_LEVEL   - Log level (trace, debug, info, warn, error)
  KEYGUARD_RULES_FILE  - Rules file path (default: ~/.keychain/rules.json)
  KEYGUARD_ENV_VAR     - Variable holding ad-hoc patterns (default: KEYCHAIN_CUSTOM_RULES)

Examples:
  keyguard config --show           # Show resolved configuration
  keyguard config --show -o json   # Output as JSON`,
	RunE: runConfig,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.Flags().BoolVar(&configShow, "show", false, "Show resolved configuration with sources")
}

func runConfig(cmd *cobra.Command, args []string) error {
	if !configShow {
		// Show help if no flags
		return cmd.Help()
	}

	resolved := config.Resolve(config.Flags{
		ConfigPath: GetConfigFile(),
		Output:     output,
		Verbose:    verbose,
		LogLevel:   logLevel,
		RulesFile:  rulesFile,
	})
	return writeResolvedConfig(cmd.OutOrStdout(), resolved, GetOutput())
}

func writeResolvedConfig(w io.Writer, resolved *config.ResolvedConfig, format string) error {
	switch format {
	case "json":
		data, err := json.MarshalIndent(resolved, "", "  ")
		if err != nil {
			return fmt.Errorf("marshal config: %w", err)
		}
		_, err = fmt.Fprintln(w, string(data))
		return err
	case "yaml":
		enc := yaml.NewEncoder(w)
		defer enc.Close()
		return enc.Encode(resolved)
	}

	fmt.Fprintln(w, "keyguard Configuration")
	fmt.Fprintln(w, "======================")
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Config files:")
	if home, err := os.UserHomeDir(); err == nil {
		printConfigFile(w, "Home:    ", filepath.Join(home, ".keyguard", "config.yaml"))
	}
	if resolved.ConfigFile != "" {
		printConfigFile(w, "Explicit:", resolved.ConfigFile)
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, "Resolved values:")
	fmt.Fprintf(w, "  output:     %v  (from %s)\n", resolved.Output.Value, resolved.Output.Source)
	fmt.Fprintf(w, "  verbose:    %v  (from %s)\n", resolved.Verbose.Value, resolved.Verbose.Source)
	fmt.Fprintf(w, "  log_level:  %v  (from %s)\n", resolved.LogLevel.Value, resolved.LogLevel.Source)
	fmt.Fprintf(w, "  rules_file: %v  (from %s)\n", resolved.RulesFile.Value, resolved.RulesFile.Source)
	fmt.Fprintf(w, "  env_var:    %v  (from %s)\n", resolved.EnvVar.Value, resolved.EnvVar.Source)

	fmt.Fprintln(w)
	fmt.Fprintln(w, "Environment variables (if set):")
	envVars := []string{
		config.EnvConfig,
		config.EnvOutput,
		config.EnvVerbose,
		config.EnvLogLevel,
		config.EnvRulesFile,
		config.EnvEnvVar,
	}
	if name, ok := resolved.EnvVar.Value.(string); ok && name != "" {
		envVars = append(envVars, name)
	}
	anySet := false
	for _, env := range envVars {
		if v := os.Getenv(env); v != "" {
			fmt.Fprintf(w, "  %s=%s\n", env, v)
			anySet = true
		}
	}
	if !anySet {
		fmt.Fprintln(w, "  (none set)")
	}
	return nil
}

func printConfigFile(w io.Writer, label, path string) {
	if _, err := os.Stat(path); err == nil {
		fmt.Fprintf(w, "  ✓ %s %s\n", label, path)
	} else {
		fmt.Fprintf(w, "  ✗ %s %s (not found)\n", label, path)
	}
}
