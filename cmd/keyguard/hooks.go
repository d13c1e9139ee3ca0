package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/boshu2/keyguard/embedded"
)

var (
	hooksOutputFormat string
	hooksDryRun       bool
	hooksForce        bool
	hooksProject      bool
	hooksBinary       string
)

// hookEvent is the Claude Code event keyguard attaches to.
const hookEvent = "PreToolUse"

// HookEntry represents a single hook command (e.g., {"type": "command", "command": "..."}).
type HookEntry struct {
	Type    string `json:"type"`
	Command string `json:"command"`
	Timeout int    `json:"timeout,omitempty"`
}

// HookGroup represents a hook group with optional matcher and a hooks array.
// Claude Code format: {"matcher": "Bash", "hooks": [{"type": "command", "command": "..."}]}
type HookGroup struct {
	Matcher string      `json:"matcher,omitempty"`
	Hooks   []HookEntry `json:"hooks"`
}

// HooksConfig represents the hooks section keyguard manages.
type HooksConfig struct {
	PreToolUse []HookGroup `json:"PreToolUse,omitempty"`
}

var hooksCmd = &cobra.Command{
	Use:   "hooks",
	Short: "Manage the Claude Code hook that runs keyguard",
	Long: `The hooks command wires keyguard into Claude Code as a PreToolUse hook on
the Bash tool. Every command the agent wants to run is piped to
'keyguard validate --hook'; exit status 2 refuses it.

Subcommands:
  init      Print the hooks configuration
  install   Install the hook into Claude Code settings
  show      Display the installed PreToolUse hooks

Example workflow:
  keyguard hooks init                 # Inspect the configuration
  keyguard hooks install              # Install to ~/.claude/settings.json
  keyguard hooks install --project    # Install to ./.claude/settings.json`,
}

var hooksInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Generate hooks configuration",
	Long: `Generate the Claude Code hooks configuration for keyguard.

Output formats:
  json     JSON for manual settings.json editing
  shell    Shell command for a manual check`,
	RunE: runHooksInit,
}

var hooksInstallCmd = &cobra.Command{
	Use:   "install",
	Short: "Install the hook to Claude Code settings",
	Long: `Install the keyguard hook to ~/.claude/settings.json (or ./.claude/settings.json
with --project).

This command:
  1. Reads existing settings.json (if any)
  2. Merges the keyguard PreToolUse hook with existing hooks
  3. Creates a backup of the original settings
  4. Writes the updated configuration

Use --force to replace an existing keyguard hook.`,
	RunE: runHooksInstall,
}

var hooksShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Display installed PreToolUse hooks",
	Long:  `Display the PreToolUse hooks configured in Claude Code settings.`,
	RunE:  runHooksShow,
}

func init() {
	rootCmd.AddCommand(hooksCmd)
	hooksCmd.AddCommand(hooksInitCmd)
	hooksCmd.AddCommand(hooksInstallCmd)
	hooksCmd.AddCommand(hooksShowCmd)

	hooksCmd.PersistentFlags().StringVar(&hooksBinary, "binary", "keyguard", "keyguard executable used in the hook command")
	hooksCmd.PersistentFlags().BoolVar(&hooksProject, "project", false, "Use ./.claude/settings.json instead of ~/.claude/settings.json")

	// Init flags
	hooksInitCmd.Flags().StringVar(&hooksOutputFormat, "format", "json", "Output format: json, shell")

	// Install flags
	hooksInstallCmd.Flags().BoolVar(&hooksDryRun, "dry-run", false, "Show what would be installed without making changes")
	hooksInstallCmd.Flags().BoolVar(&hooksForce, "force", false, "Replace an existing keyguard hook")
}

// hooksManifest wraps the hooks.json file format which has a top-level "hooks" key.
type hooksManifest struct {
	Hooks *HooksConfig `json:"hooks"`
}

// ReadHooksManifest parses a hooks.json manifest from raw bytes.
func ReadHooksManifest(data []byte) (*HooksConfig, error) {
	var manifest hooksManifest
	if err := json.Unmarshal(data, &manifest); err != nil {
		return nil, fmt.Errorf("parse hooks manifest: %w", err)
	}
	if manifest.Hooks == nil {
		return nil, errors.New("hooks manifest missing 'hooks' key")
	}
	return manifest.Hooks, nil
}

// generateMinimalHooksConfig returns the hook used when the manifest cannot be read.
func generateMinimalHooksConfig() *HooksConfig {
	return &HooksConfig{
		PreToolUse: []HookGroup{
			{
				Matcher: bashToolName,
				Hooks: []HookEntry{
					{Type: "command", Command: "keyguard validate --hook", Timeout: 10},
				},
			},
		},
	}
}

// generateHooksConfig builds the keyguard hooks from the embedded manifest,
// with the hook command pointing at binary.
func generateHooksConfig(binary string) *HooksConfig {
	hooks, err := ReadHooksManifest(embedded.HooksJSON)
	if err != nil {
		log.Warn("Embedded hooks manifest unusable, using built-in hook: %v", err)
		hooks = generateMinimalHooksConfig()
	}
	replaceBinary(hooks, binary)
	return hooks
}

// replaceBinary rewrites the leading "keyguard" of each hook command.
func replaceBinary(hooks *HooksConfig, binary string) {
	if binary == "" || binary == "keyguard" {
		return
	}
	for i := range hooks.PreToolUse {
		for j := range hooks.PreToolUse[i].Hooks {
			cmd := &hooks.PreToolUse[i].Hooks[j].Command
			if rest, ok := strings.CutPrefix(*cmd, "keyguard "); ok {
				*cmd = shellQuote(binary) + " " + rest
			}
		}
	}
}

// shellQuote single-quotes s when it holds characters the shell would split on.
func shellQuote(s string) string {
	if !strings.ContainsAny(s, " \t'\"$`\\") {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

func runHooksInit(cmd *cobra.Command, args []string) error {
	return writeHooksInit(cmd.OutOrStdout(), generateHooksConfig(hooksBinary), hooksOutputFormat)
}

func writeHooksInit(w io.Writer, hooks *HooksConfig, format string) error {
	switch format {
	case "json":
		wrapper := struct {
			Hooks *HooksConfig `json:"hooks"`
		}{Hooks: hooks}

		data, err := json.MarshalIndent(wrapper, "", "  ")
		if err != nil {
			return fmt.Errorf("marshal hooks: %w", err)
		}
		_, err = fmt.Fprintln(w, string(data))
		return err

	case "shell":
		command := hooks.PreToolUse[0].Hooks[0].Command
		fmt.Fprintf(w, "# %s hook on the %s tool\n", hookEvent, hooks.PreToolUse[0].Matcher)
		fmt.Fprintf(w, "# %s\n", command)
		fmt.Fprintf(w, "echo '{\"tool_name\":\"Bash\",\"tool_input\":{\"command\":\"cat .env\"}}' | %s; echo \"exit $?\"\n", command)
		return nil
	}
	return fmt.Errorf("unknown format: %s (use json or shell)", format)
}

// settingsPath returns the Claude Code settings file to edit.
func settingsPath(project bool) (string, error) {
	if project {
		cwd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("get working directory: %w", err)
		}
		return filepath.Join(cwd, ".claude", "settings.json"), nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home directory: %w", err)
	}
	return filepath.Join(homeDir, ".claude", "settings.json"), nil
}

func loadHooksSettings(path string) (map[string]any, error) {
	rawSettings := make(map[string]any)
	data, err := os.ReadFile(path)
	if err == nil {
		if err := json.Unmarshal(data, &rawSettings); err != nil {
			return nil, fmt.Errorf("parse existing settings: %w", err)
		}
		return rawSettings, nil
	}
	if os.IsNotExist(err) {
		return rawSettings, nil
	}
	return nil, fmt.Errorf("read settings: %w", err)
}

func cloneHooksMap(rawSettings map[string]any) map[string]any {
	hooksMap := make(map[string]any)
	if existing, ok := rawSettings["hooks"].(map[string]any); ok {
		for k, v := range existing {
			hooksMap[k] = v
		}
	}
	return hooksMap
}

// isKeyguardCommand reports whether a hook command runs keyguard's validator.
func isKeyguardCommand(command string) bool {
	return strings.Contains(command, "validate --hook") && strings.Contains(command, "keyguard")
}

// rawGroupIsKeyguard checks whether a raw hook group runs keyguard.
func rawGroupIsKeyguard(group map[string]any) bool {
	hooks, ok := group["hooks"].([]any)
	if !ok {
		return false
	}
	for _, h := range hooks {
		hook, ok := h.(map[string]any)
		if !ok {
			continue
		}
		if cmd, ok := hook["command"].(string); ok && isKeyguardCommand(cmd) {
			return true
		}
	}
	return false
}

// hookGroupContainsKeyguard reports whether event already has a keyguard hook.
func hookGroupContainsKeyguard(hooksMap map[string]any, event string) bool {
	groups, ok := hooksMap[event].([]any)
	if !ok {
		return false
	}
	for _, g := range groups {
		if group, ok := g.(map[string]any); ok && rawGroupIsKeyguard(group) {
			return true
		}
	}
	return false
}

// filterNonKeyguardHookGroups returns the event's groups minus keyguard ones.
func filterNonKeyguardHookGroups(hooksMap map[string]any, event string) []any {
	var kept []any
	groups, _ := hooksMap[event].([]any)
	for _, g := range groups {
		if group, ok := g.(map[string]any); ok && rawGroupIsKeyguard(group) {
			continue
		}
		kept = append(kept, g)
	}
	return kept
}

// hookGroupToMap converts a HookGroup to the generic settings representation.
func hookGroupToMap(g HookGroup) map[string]any {
	hooks := make([]any, 0, len(g.Hooks))
	for _, h := range g.Hooks {
		entry := map[string]any{"type": h.Type, "command": h.Command}
		if h.Timeout > 0 {
			entry["timeout"] = h.Timeout
		}
		hooks = append(hooks, entry)
	}
	group := map[string]any{"hooks": hooks}
	if g.Matcher != "" {
		group["matcher"] = g.Matcher
	}
	return group
}

// mergeKeyguardHooks replaces any keyguard PreToolUse groups with newHooks,
// leaving other hooks untouched.
func mergeKeyguardHooks(hooksMap map[string]any, newHooks *HooksConfig) {
	groups := filterNonKeyguardHookGroups(hooksMap, hookEvent)
	for _, g := range newHooks.PreToolUse {
		groups = append(groups, hookGroupToMap(g))
	}
	hooksMap[hookEvent] = groups
}

func backupHooksSettings(w io.Writer, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil //nolint:nilerr // nothing to back up
	}
	backupPath := fmt.Sprintf("%s.backup.%s", path, time.Now().Format("20060102-150405"))
	if err := os.WriteFile(backupPath, data, 0600); err != nil {
		return fmt.Errorf("create backup: %w", err)
	}
	fmt.Fprintf(w, "Backed up existing settings to %s\n", backupPath)
	return nil
}

func writeHooksSettings(path string, rawSettings map[string]any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create .claude directory: %w", err)
	}
	data, err := json.MarshalIndent(rawSettings, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}
	if err := atomicWriteFile(path, append(data, '\n')); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}
	return nil
}

// atomicWriteFile replaces path through a temp file in the same directory so
// Claude Code never reads a half-written settings file. The result is 0600.
func atomicWriteFile(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".settings-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	success := false
	defer func() {
		if !success {
			_ = os.Remove(tmpPath) //nolint:errcheck // cleanup in error path
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close() //nolint:errcheck // cleanup in error path
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close() //nolint:errcheck // cleanup in error path
		return fmt.Errorf("sync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("rename: %w", err)
	}
	success = true
	return nil
}

// installOptions controls installHooks.
type installOptions struct {
	SettingsPath string
	Binary       string
	DryRun       bool
	Force        bool
}

func runHooksInstall(cmd *cobra.Command, args []string) error {
	path, err := settingsPath(hooksProject)
	if err != nil {
		return err
	}
	return installHooks(cmd.OutOrStdout(), installOptions{
		SettingsPath: path,
		Binary:       hooksBinary,
		DryRun:       hooksDryRun,
		Force:        hooksForce,
	})
}

func installHooks(w io.Writer, opts installOptions) error {
	rawSettings, err := loadHooksSettings(opts.SettingsPath)
	if err != nil {
		return err
	}

	hooksMap := cloneHooksMap(rawSettings)
	if !opts.Force && hookGroupContainsKeyguard(hooksMap, hookEvent) {
		fmt.Fprintln(w, "keyguard hook already installed. Use --force to overwrite.")
		return nil
	}

	newHooks := generateHooksConfig(opts.Binary)
	mergeKeyguardHooks(hooksMap, newHooks)
	rawSettings["hooks"] = hooksMap

	if opts.DryRun {
		fmt.Fprintln(w, "[dry-run] Would write to", opts.SettingsPath)
		data, err := json.MarshalIndent(rawSettings, "", "  ")
		if err != nil {
			return fmt.Errorf("marshal hooks settings: %w", err)
		}
		_, err = fmt.Fprintln(w, string(data))
		return err
	}

	if err := backupHooksSettings(w, opts.SettingsPath); err != nil {
		return err
	}
	if err := writeHooksSettings(opts.SettingsPath, rawSettings); err != nil {
		return err
	}

	fmt.Fprintf(w, "✓ Installed keyguard hook to %s\n", opts.SettingsPath)
	fmt.Fprintf(w, "  %s (%s): %s\n", hookEvent, newHooks.PreToolUse[0].Matcher, newHooks.PreToolUse[0].Hooks[0].Command)
	return nil
}

func runHooksShow(cmd *cobra.Command, args []string) error {
	path, err := settingsPath(hooksProject)
	if err != nil {
		return err
	}
	return showHooks(cmd.OutOrStdout(), path)
}

func showHooks(w io.Writer, path string) error {
	rawSettings, err := loadHooksSettings(path)
	if err != nil {
		return err
	}
	hooksMap := cloneHooksMap(rawSettings)
	groups, _ := hooksMap[hookEvent].([]any)

	fmt.Fprintf(w, "%s hooks in %s:\n", hookEvent, path)
	if len(groups) == 0 {
		fmt.Fprintln(w, "  (none)")
	}
	for _, g := range groups {
		group, ok := g.(map[string]any)
		if !ok {
			continue
		}
		matcher, _ := group["matcher"].(string)
		if matcher == "" {
			matcher = "*"
		}
		hooks, _ := group["hooks"].([]any)
		for _, h := range hooks {
			hook, _ := h.(map[string]any)
			command, _ := hook["command"].(string)
			fmt.Fprintf(w, "  %-8s %s\n", matcher, command)
		}
	}

	fmt.Fprintln(w)
	if hookGroupContainsKeyguard(hooksMap, hookEvent) {
		fmt.Fprintln(w, "✓ keyguard hook is installed")
	} else {
		fmt.Fprintln(w, "⚠ keyguard hook not found. Run 'keyguard hooks install' to set up.")
	}
	return nil
}
