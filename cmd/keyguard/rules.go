package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"
	"golang.org/x/term"
	"gopkg.in/yaml.v3"

	"github.com/boshu2/keyguard/internal/formatter"
	"github.com/boshu2/keyguard/internal/rules"
)

var (
	rulesPretty      bool
	rulesEnabledOnly bool
	rulesCheckFile   string
)

var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "Inspect the rule set",
	Long: `Inspect the rules keyguard evaluates.

Subcommands:
  list      Show every rule with its layer, state and patterns
  check     Validate a rules file and report rejected declarations

Rules file format (~/.keychain/rules.json, or .yaml/.yml):
  {
    "rules": [
      {"id": "custom_mysql_dump", "type": "substring", "pattern": "mysqldump"},
      {"id": "k8s_secrets", "type": "contains_all", "patterns": ["kubectl", "secret"]},
      {"id": "vaults", "type": "contains_any", "patterns": ["vault read", "op item"],
       "description": "Password manager reads", "enabled": true}
    ]
  }`,
}

var rulesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all rules in evaluation order",
	Long: `List all rules in evaluation order: builtin, then config, then env.

Output formats (-o): table, json, yaml, jsonl, markdown.
--pretty renders the markdown catalog for the terminal.`,
	Args: cobra.NoArgs,
	RunE: runRulesList,
}

var rulesCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Validate a rules file",
	Long: `Load a rules file on its own and report every declaration that was
rejected. Exits non-zero when any declaration is rejected or the file cannot
be read or decoded. A missing file is not an error.`,
	Args: cobra.NoArgs,
	RunE: runRulesCheck,
}

func init() {
	rootCmd.AddCommand(rulesCmd)
	rulesCmd.AddCommand(rulesListCmd)
	rulesCmd.AddCommand(rulesCheckCmd)

	rulesListCmd.Flags().BoolVar(&rulesPretty, "pretty", false, "Render the markdown catalog for the terminal")
	rulesListCmd.Flags().BoolVar(&rulesEnabledOnly, "enabled", false, "Only list enabled rules")

	rulesCheckCmd.Flags().StringVar(&rulesCheckFile, "file", "", "Rules file to check (default: the configured rules file)")
}

func runRulesList(cmd *cobra.Command, args []string) error {
	engine := newEngine()
	rs := engine.Rules()
	if rulesEnabledOnly {
		rs = enabledRules(rs)
	}

	format := GetOutput()
	if rulesPretty {
		format = "markdown"
	}
	return writeRules(cmd.OutOrStdout(), rs, format, rulesPretty)
}

func enabledRules(rs []rules.Rule) []rules.Rule {
	var out []rules.Rule
	for _, r := range rs {
		if r.Enabled {
			out = append(out, r)
		}
	}
	return out
}

// writeRules renders rs in the given format.
func writeRules(w io.Writer, rs []rules.Rule, format string, pretty bool) error {
	switch format {
	case "json":
		data, err := json.MarshalIndent(formatter.NewRuleViews(rs), "", "  ")
		if err != nil {
			return fmt.Errorf("marshal rules: %w", err)
		}
		_, err = fmt.Fprintln(w, string(data))
		return err

	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(formatter.NewRuleViews(rs)); err != nil {
			return fmt.Errorf("marshal rules: %w", err)
		}
		return enc.Close()

	case "jsonl":
		return formatter.NewJSONLFormatter().Format(w, rs)

	case "markdown":
		var buf bytes.Buffer
		if err := formatter.NewMarkdownFormatter().Format(&buf, rs); err != nil {
			return err
		}
		if pretty {
			return renderMarkdown(w, buf.String())
		}
		_, err := w.Write(buf.Bytes())
		return err

	case "table", "":
		if err := formatter.RulesTable(w, rs); err != nil {
			return err
		}
		_, err := fmt.Fprintln(w, "\n"+rulesSummary(rs))
		return err
	}
	return fmt.Errorf("unknown format: %s (use table, json, yaml, jsonl or markdown)", format)
}

// rulesSummary returns "N rules (M active): builtin X, config Y, env Z".
func rulesSummary(rs []rules.Rule) string {
	counts := make(map[rules.Layer]int)
	active := 0
	for _, r := range rs {
		counts[r.Layer]++
		if r.Enabled {
			active++
		}
	}
	s := fmt.Sprintf("%d rules (%d active):", len(rs), active)
	for i, l := range rules.Layers() {
		if i > 0 {
			s += ","
		}
		s += fmt.Sprintf(" %s %d", l, counts[l])
	}
	return s
}

// renderMarkdown renders md with glamour, falling back to the raw text.
func renderMarkdown(w io.Writer, md string) error {
	width := 100
	if cols, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && cols > 0 { //nolint:gosec // Fd() fits in int on all supported platforms
		width = cols
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		_, err = io.WriteString(w, md)
		return err
	}
	out, err := r.Render(md)
	if err != nil {
		log.Debug("Markdown rendering failed, printing raw: %v", err)
		out = md
	}
	_, err = io.WriteString(w, out)
	return err
}

// checkReport is the machine-readable result of rules check.
type checkReport struct {
	Path     string          `json:"path" yaml:"path"`
	Found    bool            `json:"found" yaml:"found"`
	Loaded   int             `json:"loaded" yaml:"loaded"`
	Enabled  int             `json:"enabled" yaml:"enabled"`
	Rejected []rejectedEntry `json:"rejected,omitempty" yaml:"rejected,omitempty"`
	Error    string          `json:"error,omitempty" yaml:"error,omitempty"`
}

type rejectedEntry struct {
	Index int    `json:"index" yaml:"index"`
	ID    string `json:"id,omitempty" yaml:"id,omitempty"`
	Error string `json:"error" yaml:"error"`
}

func runRulesCheck(cmd *cobra.Command, args []string) error {
	path := cfg.RulesFile
	if rulesCheckFile != "" {
		path = rules.ExpandHome(rulesCheckFile)
	}

	report := checkRulesFile(path)
	if err := writeCheckReport(cmd.OutOrStdout(), report, GetOutput()); err != nil {
		return err
	}
	if report.Error != "" {
		return &exitError{code: exitFailure, err: errors.New(report.Error)}
	}
	if n := len(report.Rejected); n > 0 {
		return &exitError{code: exitFailure, err: fmt.Errorf("%d declaration(s) rejected in %s", n, path)}
	}
	return nil
}

// checkRulesFile loads path through the config layer alone.
func checkRulesFile(path string) *checkReport {
	report := &checkReport{Path: path}
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return report
	}
	report.Found = true

	rs, err := rules.NewConfigSource(path).Load()
	report.Loaded = len(rs)
	for _, r := range rs {
		if r.Enabled {
			report.Enabled++
		}
	}
	for _, e := range rules.SplitErrors(err) {
		var de *rules.DeclarationError
		if errors.As(e, &de) {
			report.Rejected = append(report.Rejected, rejectedEntry{Index: de.Index, ID: de.ID, Error: de.Err.Error()})
			continue
		}
		report.Error = e.Error()
	}
	return report
}

func writeCheckReport(w io.Writer, report *checkReport, format string) error {
	switch format {
	case "json", "jsonl":
		enc := json.NewEncoder(w)
		enc.SetEscapeHTML(false)
		if format == "json" {
			enc.SetIndent("", "  ")
		}
		return enc.Encode(report)
	case "yaml":
		enc := yaml.NewEncoder(w)
		defer enc.Close()
		return enc.Encode(report)
	}

	fmt.Fprintf(w, "Rules file: %s\n", report.Path)
	if !report.Found {
		fmt.Fprintln(w, "  - not found (built-in and env rules only)")
		return nil
	}
	if report.Error != "" {
		fmt.Fprintf(w, "  ✗ %s\n", report.Error)
		return nil
	}
	fmt.Fprintf(w, "  ✓ %d rule(s) loaded (%d enabled)\n", report.Loaded, report.Enabled)
	for _, r := range report.Rejected {
		if r.ID != "" {
			fmt.Fprintf(w, "  ✗ rules[%d] (%s): %s\n", r.Index, r.ID, r.Error)
		} else {
			fmt.Fprintf(w, "  ✗ rules[%d]: %s\n", r.Index, r.Error)
		}
	}
	return nil
}
