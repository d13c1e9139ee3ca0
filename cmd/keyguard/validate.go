package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"golang.org/x/term"
	"gopkg.in/yaml.v3"

	"github.com/boshu2/keyguard/internal/rules"
)

var (
	validateHook bool
)

// bashToolName is the Claude Code tool whose commands keyguard inspects.
const bashToolName = "Bash"

var errNoCommand = errors.New("no command given: pass COMMAND or pipe it on stdin")

var validateCmd = &cobra.Command{
	Use:   "validate [COMMAND...]",
	Short: "Check a shell command against the rule set",
	Long: `Check whether a shell command may run.

The command is taken from the arguments (joined with spaces) or, when none are
given, from stdin with surrounding whitespace trimmed. Matching is
case-insensitive substring matching against the built-in, config and env rules.

Exit status:
  0   allowed
  2   blocked ("blocked by rule <id>: <description>" on stderr)

With --hook, stdin is a Claude Code PreToolUse payload. Only Bash tool calls
are inspected; every other tool is allowed. A payload that cannot be parsed is
blocked.

Examples:
  keyguard validate "cat .env"
  echo "docker compose config" | keyguard validate
  keyguard validate -o json grep -r PASSWORD ~`,
	Args: cobra.ArbitraryArgs,
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
	validateCmd.Flags().BoolVar(&validateHook, "hook", false, "Read a Claude Code PreToolUse JSON payload from stdin")
	// Flags after COMMAND belong to COMMAND: keyguard validate mysqldump -u root
	validateCmd.Flags().SetInterspersed(false)
}

// hookPayload is the part of the Claude Code PreToolUse payload keyguard reads.
type hookPayload struct {
	SessionID     string `json:"session_id,omitempty"`
	HookEventName string `json:"hook_event_name,omitempty"`
	ToolName      string `json:"tool_name"`
	ToolInput     struct {
		Command string `json:"command"`
	} `json:"tool_input"`
}

// Decision is the outcome of validating one command.
type Decision struct {
	Command     string `json:"command" yaml:"command"`
	Blocked     bool   `json:"blocked" yaml:"blocked"`
	RuleID      string `json:"rule_id,omitempty" yaml:"rule_id,omitempty"`
	Layer       string `json:"layer,omitempty" yaml:"layer,omitempty"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
}

// stdinIsTerminal is swapped in tests.
var stdinIsTerminal = func() bool {
	return term.IsTerminal(int(os.Stdin.Fd())) //nolint:gosec // Fd() fits in int on all supported platforms
}

func runValidate(cmd *cobra.Command, args []string) error {
	command, inspect, err := commandToValidate(cmd.InOrStdin(), args, validateHook)
	if err != nil {
		return err
	}
	if !inspect {
		return nil
	}

	d := decide(newEngine(), command)
	if err := writeDecision(cmd.OutOrStdout(), d, GetOutput()); err != nil {
		return err
	}
	if d.Blocked {
		printBlocked(cmd.ErrOrStderr(), d)
		return &exitError{code: exitBlocked}
	}
	VerbosePrintf("allowed: %s\n", command)
	return nil
}

// commandToValidate returns the command to check and whether it should be
// checked at all.
func commandToValidate(in io.Reader, args []string, hook bool) (string, bool, error) {
	if hook {
		if len(args) > 0 {
			return "", false, &exitError{code: exitFailure, err: errors.New("--hook reads the command from stdin; drop the COMMAND argument")}
		}
		return commandFromHook(in)
	}

	if len(args) > 0 {
		return strings.Join(args, " "), true, nil
	}

	if in == os.Stdin && stdinIsTerminal() {
		return "", false, &exitError{code: exitFailure, err: errNoCommand}
	}
	data, err := io.ReadAll(in)
	if err != nil {
		return "", false, fmt.Errorf("read stdin: %w", err)
	}
	return strings.TrimSpace(string(data)), true, nil
}

// commandFromHook decodes a PreToolUse payload. An undecodable payload is
// blocked rather than allowed.
func commandFromHook(in io.Reader) (string, bool, error) {
	var p hookPayload
	if err := json.NewDecoder(in).Decode(&p); err != nil {
		return "", false, &exitError{code: exitBlocked, err: fmt.Errorf("keyguard: unreadable hook payload: %w", err)}
	}
	if p.ToolName != bashToolName {
		log.Debug("Tool %q is not inspected", p.ToolName)
		return "", false, nil
	}
	return p.ToolInput.Command, true, nil
}

func decide(engine *rules.Engine, command string) Decision {
	d := Decision{Command: command}
	if r, ok := engine.Evaluate(command); ok {
		d.Blocked = true
		d.RuleID = r.ID
		d.Layer = string(r.Layer)
		d.Description = r.Description
	}
	return d
}

// writeDecision prints d in machine-readable formats. Table output stays
// silent; the exit status carries the verdict.
func writeDecision(w io.Writer, d Decision, format string) error {
	switch format {
	case "json", "jsonl":
		enc := json.NewEncoder(w)
		enc.SetEscapeHTML(false)
		if format == "json" {
			enc.SetIndent("", "  ")
		}
		return enc.Encode(d)
	case "yaml":
		enc := yaml.NewEncoder(w)
		defer enc.Close()
		return enc.Encode(d)
	}
	return nil
}

func printBlocked(w io.Writer, d Decision) {
	style := lipgloss.NewRenderer(w).NewStyle().Foreground(lipgloss.Color("#E05A3A")).Bold(true)
	//nolint:errcheck // best-effort diagnostic
	fmt.Fprintln(w, style.Render(fmt.Sprintf("blocked by rule %s: %s", d.RuleID, d.Description)))
}
