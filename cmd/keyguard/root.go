package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/boshu2/keyguard/internal/config"
	"github.com/boshu2/keyguard/internal/logger"
	"github.com/boshu2/keyguard/internal/rules"
)

var (
	// Global flags
	verbose   bool
	output    string
	cfgFile   string
	rulesFile string
	logLevel  string

	// cfg is the resolved configuration, set before any subcommand runs.
	cfg = config.Default()
)

var log = logger.New("keyguard")

// Exit codes.
const (
	exitFailure = 1
	// exitBlocked tells Claude Code to refuse the tool call and show stderr to the agent.
	exitBlocked = 2
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "keyguard",
	Short: "Command validation gate for AI agent shells",
	Long: `keyguard decides whether a shell command an AI agent wants to run may
execute, blocking commands that would read or print secrets.

Rules come from three layers, evaluated in order:
  builtin   Compiled-in catalog (.env files, SSH keys, cloud credentials, ...)
  config    ~/.keychain/rules.json (or --rules-file)
  env       KEYCHAIN_CUSTOM_RULES, '|'-separated substrings

Core Commands:
  validate     Check a command; exit 2 when blocked
  rules        List rules or check a rules file
  replay       Check every command in a log
  hooks        Wire keyguard into Claude Code as a PreToolUse hook
  config       Show resolved configuration
  version      Show version information

Quick start:
  keyguard hooks install
  echo "cat .env" | keyguard validate`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		initConfig()
		return nil
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(reportError(os.Stderr, err))
	}
}

func init() {
	// Global flags available to all commands
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output and debug logging")
	rootCmd.PersistentFlags().StringVarP(&output, "output", "o", "", "Output format (table, json, yaml, jsonl, markdown) (default table)")
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Config file (default: ~/.keyguard/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&rulesFile, "rules-file", "", "Rules file (default: ~/.keychain/rules.json)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (trace, debug, info, warn, error)")
}

// initConfig resolves configuration and applies the log level. A bad value
// never stops the gate: it is reported and replaced by its default.
func initConfig() {
	loaded, err := config.Load(cfgFile, &config.Config{
		Output:    output,
		Verbose:   verbose,
		LogLevel:  logLevel,
		RulesFile: rulesFile,
	})
	if err != nil {
		log.Warn("Invalid configuration, using defaults: %v", err)
	}
	cfg = loaded

	level, _ := logger.ParseLevel(cfg.LogLevel)
	if cfg.Verbose && logLevel == "" && level > logger.LevelDebug {
		level = logger.LevelDebug
	}
	logger.SetGlobalLevel(level)
}

// GetVerbose returns the verbose setting for use by subcommands.
func GetVerbose() bool {
	return cfg.Verbose
}

// GetOutput returns the output format for use by subcommands.
func GetOutput() string {
	return cfg.Output
}

// GetConfigFile returns the config file path for use by subcommands.
func GetConfigFile() string {
	return cfgFile
}

// VerbosePrintf prints to stderr only when verbose mode is enabled. Stdout is
// reserved for machine-readable output.
func VerbosePrintf(format string, args ...interface{}) {
	if GetVerbose() {
		fmt.Fprintf(os.Stderr, format, args...)
	}
}

// newEngine builds the rule engine from the resolved configuration.
func newEngine() *rules.Engine {
	return rules.New(
		rules.WithConfigPath(cfg.RulesFile),
		rules.WithEnvVar(cfg.EnvVar),
	)
}

// exitError carries a process exit code through cobra. A nil err exits
// silently.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	if e.err == nil {
		return fmt.Sprintf("exit status %d", e.code)
	}
	return e.err.Error()
}

func (e *exitError) Unwrap() error {
	return e.err
}

// reportError prints err to w and returns the process exit code.
func reportError(w io.Writer, err error) int {
	var ee *exitError
	if errors.As(err, &ee) {
		if ee.err != nil {
			fmt.Fprintf(w, "Error: %v\n", ee.err)
		}
		return ee.code
	}
	fmt.Fprintf(w, "Error: %v\n", err)
	return exitFailure
}
