package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/boshu2/keyguard/internal/formatter"
	"github.com/boshu2/keyguard/internal/rules"
	"github.com/boshu2/keyguard/internal/worker"
)

var (
	replayJobs        int
	replayBlockedOnly bool
)

// maxCommandLine bounds a single line of a command log.
const maxCommandLine = 1 << 20

var replayCmd = &cobra.Command{
	Use:   "replay [FILE]",
	Short: "Check every command in a log against the rule set",
	Long: `Read one shell command per line and report which ones the current rule
set would block. Blank lines and lines starting with # are skipped.
Reads stdin when FILE is omitted or "-".

Exit status is 2 when any command would be blocked, 1 when the run is
interrupted before every command was checked, 0 otherwise.

Examples:
  keyguard replay ~/.bash_history
  keyguard replay --blocked-only -o jsonl commands.txt`,
	Args: cobra.MaximumNArgs(1),
	RunE: runReplay,
}

func init() {
	rootCmd.AddCommand(replayCmd)
	replayCmd.Flags().IntVarP(&replayJobs, "jobs", "j", 0, "Concurrent evaluations (default: number of CPUs)")
	replayCmd.Flags().BoolVar(&replayBlockedOnly, "blocked-only", false, "Only report blocked commands")
}

func runReplay(cmd *cobra.Command, args []string) error {
	in := cmd.InOrStdin()
	name := "stdin"
	if len(args) == 1 && args[0] != "-" {
		name = args[0]
		f, err := os.Open(rules.ExpandHome(name))
		if err != nil {
			return fmt.Errorf("open command log: %w", err)
		}
		defer f.Close()
		in = f
	}

	return replayLog(cmd.Context(), cmd.OutOrStdout(), in, name, newEngine())
}

// replayLog checks every command read from in and reports the decisions to w.
// A run cut short by ctx is a failure even when nothing was blocked.
func replayLog(ctx context.Context, w io.Writer, in io.Reader, name string, engine *rules.Engine) error {
	commands, err := readCommandLog(in)
	if err != nil {
		return fmt.Errorf("read %s: %w", name, err)
	}

	decisions, skipped := replay(ctx, engine, commands, replayJobs)
	blocked := countBlocked(decisions)
	VerbosePrintf("replayed %d of %d commands from %s\n", len(decisions), len(commands), name)

	shown := decisions
	if replayBlockedOnly {
		shown = onlyBlocked(decisions)
	}
	if err := writeDecisions(w, shown, GetOutput()); err != nil {
		return err
	}
	if GetOutput() == "table" || GetOutput() == "" {
		fmt.Fprintln(w, "\n"+replaySummary(len(commands), blocked, len(decisions)-blocked, skipped))
	}

	if skipped > 0 {
		return &exitError{code: exitFailure, err: fmt.Errorf("replay interrupted: %d of %d commands not checked", skipped, len(commands))}
	}
	if blocked > 0 {
		return &exitError{code: exitBlocked}
	}
	return nil
}

// replaySummary returns "N commands: B blocked, A allowed[, S not checked]".
func replaySummary(total, blocked, allowed, skipped int) string {
	s := fmt.Sprintf("%d commands: %d blocked, %d allowed", total, blocked, allowed)
	if skipped > 0 {
		s += fmt.Sprintf(", %d not checked", skipped)
	}
	return s
}

// readCommandLog returns the non-blank, non-comment lines of r, trimmed.
func readCommandLog(r io.Reader) ([]string, error) {
	var commands []string
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxCommandLine)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		commands = append(commands, line)
	}
	return commands, sc.Err()
}

// replay evaluates commands concurrently and returns decisions in input order,
// plus the number of commands left unchecked because ctx ended.
func replay(ctx context.Context, engine *rules.Engine, commands []string, jobs int) ([]Decision, int) {
	if ctx == nil {
		ctx = context.Background()
	}
	results := worker.Map(ctx, worker.NewPool(jobs), commands, func(_ context.Context, c string) (Decision, error) {
		return decide(engine, c), nil
	})

	decisions := make([]Decision, 0, len(results))
	skipped := 0
	for _, r := range results {
		if r.Err != nil {
			log.Debug("Skipped %q: %v", commands[r.Index], r.Err)
			skipped++
			continue
		}
		decisions = append(decisions, r.Value)
	}
	return decisions, skipped
}

func countBlocked(ds []Decision) int {
	n := 0
	for _, d := range ds {
		if d.Blocked {
			n++
		}
	}
	return n
}

func onlyBlocked(ds []Decision) []Decision {
	var out []Decision
	for _, d := range ds {
		if d.Blocked {
			out = append(out, d)
		}
	}
	return out
}

// writeDecisions renders a batch of decisions.
func writeDecisions(w io.Writer, ds []Decision, format string) error {
	switch format {
	case "json":
		if ds == nil {
			ds = []Decision{}
		}
		enc := json.NewEncoder(w)
		enc.SetEscapeHTML(false)
		enc.SetIndent("", "  ")
		return enc.Encode(ds)
	case "jsonl":
		enc := json.NewEncoder(w)
		enc.SetEscapeHTML(false)
		for _, d := range ds {
			if err := enc.Encode(d); err != nil {
				return err
			}
		}
		return nil
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(ds); err != nil {
			return err
		}
		return enc.Close()
	}

	tbl := formatter.NewTable(w, "STATUS", "RULE", "LAYER", "COMMAND").SetMaxWidth(3, 80)
	for _, d := range ds {
		status := "allow"
		if d.Blocked {
			status = "BLOCK"
		}
		tbl.AddRow(status, d.RuleID, d.Layer, d.Command)
	}
	return tbl.Render()
}
