package main

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/boshu2/keyguard/internal/config"
	"github.com/boshu2/keyguard/internal/logger"
	"github.com/boshu2/keyguard/internal/rules"
)

// executeCommand runs the root command in an isolated HOME with every
// keyguard variable cleared and all flags reset.
func executeCommand(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	for _, key := range []string{
		config.EnvConfig, config.EnvOutput, config.EnvVerbose,
		config.EnvLogLevel, config.EnvRulesFile, config.EnvEnvVar,
		rules.DefaultEnvVar,
	} {
		t.Setenv(key, "")
	}
	return runRoot(t, stdin, args...)
}

// runRoot runs the root command without touching the environment.
func runRoot(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()
	resetFlags()
	t.Cleanup(func() { logger.SetGlobalLevel(logger.LevelWarn) })

	var stdout, stderr bytes.Buffer
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stderr)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return stdout.String(), stderr.String(), err
}

func resetFlags() {
	verbose, output, cfgFile, rulesFile, logLevel = false, "", "", "", ""
	validateHook = false
	rulesPretty, rulesEnabledOnly, rulesCheckFile = false, false, ""
	configShow = false
	replayJobs, replayBlockedOnly = 0, false
	hooksOutputFormat, hooksDryRun, hooksForce, hooksProject, hooksBinary = "json", false, false, false, "keyguard"
	cfg = config.Default()
}

func exitCode(t *testing.T, err error) int {
	t.Helper()
	if err == nil {
		return 0
	}
	var ee *exitError
	if !errors.As(err, &ee) {
		t.Fatalf("expected *exitError, got %T: %v", err, err)
	}
	return ee.code
}

func TestReportError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
		wantOut  string
	}{
		{"silent exit", &exitError{code: exitBlocked}, 2, ""},
		{"exit with message", &exitError{code: exitFailure, err: errors.New("bad rules")}, 1, "Error: bad rules\n"},
		{"plain error", errors.New("boom"), 1, "Error: boom\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			if got := reportError(&buf, tt.err); got != tt.wantCode {
				t.Errorf("reportError() = %d, want %d", got, tt.wantCode)
			}
			if buf.String() != tt.wantOut {
				t.Errorf("reportError() printed %q, want %q", buf.String(), tt.wantOut)
			}
		})
	}
}

func TestExitError_Unwrap(t *testing.T) {
	cause := errors.New("cause")
	err := &exitError{code: 1, err: cause}
	if !errors.Is(err, cause) {
		t.Error("exitError should unwrap to its cause")
	}
	if (&exitError{code: 2}).Error() != "exit status 2" {
		t.Errorf("silent exitError message = %q", (&exitError{code: 2}).Error())
	}
}

func TestInitConfig_VerboseSelectsDebug(t *testing.T) {
	if _, _, err := executeCommand(t, "", "-v", "version"); err != nil {
		t.Fatalf("version: %v", err)
	}
	if got := logger.GlobalLevel(); got != logger.LevelDebug {
		t.Errorf("level with -v = %v, want debug", got)
	}
}

func TestInitConfig_LogLevelFlagWins(t *testing.T) {
	if _, _, err := executeCommand(t, "", "-v", "--log-level", "error", "version"); err != nil {
		t.Fatalf("version: %v", err)
	}
	if got := logger.GlobalLevel(); got != logger.LevelError {
		t.Errorf("level = %v, want error", got)
	}
}

func TestInitConfig_InvalidOutputFallsBack(t *testing.T) {
	_, stderr, err := executeCommand(t, "", "-o", "xml", "validate", "cat .env")
	if code := exitCode(t, err); code != exitBlocked {
		t.Fatalf("exit = %d, want %d (invalid output must not disable the gate)", code, exitBlocked)
	}
	if !strings.Contains(stderr, "blocked by rule env_file_access") {
		t.Errorf("stderr = %q", stderr)
	}
}

func TestInitConfig_RulesFileFromConfig(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	dir := t.TempDir()
	rulesPath := filepath.Join(dir, "team-rules.yaml")
	if err := os.WriteFile(rulesPath, []byte("rules:\n  - {id: tf, type: substring, pattern: terraform output}\n"), 0644); err != nil {
		t.Fatal(err)
	}
	cfgPath := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(cfgPath, []byte("rules_file: "+rulesPath+"\n"), 0644); err != nil {
		t.Fatal(err)
	}

	_, stderr, err := runRoot(t, "", "--config", cfgPath, "validate", "terraform output -json")
	if code := exitCode(t, err); code != exitBlocked {
		t.Fatalf("exit = %d, want %d", code, exitBlocked)
	}
	if !strings.Contains(stderr, "blocked by rule tf") {
		t.Errorf("stderr = %q", stderr)
	}
}

func TestVersion(t *testing.T) {
	stdout, _, err := executeCommand(t, "", "version")
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	if !strings.Contains(stdout, "keyguard version dev") {
		t.Errorf("stdout = %q", stdout)
	}
	if !strings.Contains(stdout, "Built-in rules: 28") {
		t.Errorf("stdout missing rule count: %q", stdout)
	}
}

func TestCompletion(t *testing.T) {
	for _, shell := range []string{"bash", "zsh", "fish"} {
		t.Run(shell, func(t *testing.T) {
			stdout, _, err := executeCommand(t, "", "completion", shell)
			if err != nil {
				t.Fatalf("completion %s: %v", shell, err)
			}
			if !strings.Contains(stdout, "keyguard") {
				t.Errorf("completion script does not mention keyguard")
			}
		})
	}
}
