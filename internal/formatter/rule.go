// Package formatter renders rule catalogs and validation decisions as
// tables, JSON Lines and markdown.
package formatter

import (
	"io"
	"strconv"
	"strings"

	"github.com/boshu2/keyguard/internal/rules"
)

// RuleView is the serialized shape of a rule shared by the json, yaml and
// jsonl outputs.
type RuleView struct {
	ID          string   `json:"id" yaml:"id"`
	Layer       string   `json:"layer" yaml:"layer"`
	Type        string   `json:"type" yaml:"type"`
	Pattern     string   `json:"pattern,omitempty" yaml:"pattern,omitempty"`
	Patterns    []string `json:"patterns,omitempty" yaml:"patterns,omitempty"`
	Description string   `json:"description" yaml:"description"`
	Enabled     bool     `json:"enabled" yaml:"enabled"`
}

// NewRuleView converts r. Substring rules carry Pattern, list kinds carry
// Patterns, mirroring the rules file layout.
func NewRuleView(r rules.Rule) RuleView {
	v := RuleView{
		ID:          r.ID,
		Layer:       string(r.Layer),
		Description: r.Description,
		Enabled:     r.Enabled,
	}
	if r.Kind == nil {
		return v
	}
	v.Type = r.Kind.Type()
	if s, ok := r.Kind.(rules.Substring); ok {
		v.Pattern = s.Pattern
	} else {
		v.Patterns = r.Kind.Patterns()
	}
	return v
}

// NewRuleViews converts a rule set, keeping order.
func NewRuleViews(rs []rules.Rule) []RuleView {
	out := make([]RuleView, 0, len(rs))
	for _, r := range rs {
		out = append(out, NewRuleView(r))
	}
	return out
}

// PatternSummary renders a kind's patterns for one table cell:
// "a" for substring, "a + b" for contains_all, "a | b" for contains_any.
func PatternSummary(k rules.Kind) string {
	switch k := k.(type) {
	case rules.Substring:
		return strconv.Quote(k.Pattern)
	case rules.ContainsAll:
		return joinQuoted(k.All, " + ")
	case rules.ContainsAny:
		return joinQuoted(k.Any, " | ")
	}
	return ""
}

func joinQuoted(patterns []string, sep string) string {
	quoted := make([]string, len(patterns))
	for i, p := range patterns {
		quoted[i] = strconv.Quote(p)
	}
	return strings.Join(quoted, sep)
}

// RulesTable writes the rule set as an aligned table.
func RulesTable(w io.Writer, rs []rules.Rule) error {
	tbl := NewTable(w, "ID", "LAYER", "ENABLED", "TYPE", "PATTERNS", "DESCRIPTION")
	tbl.SetMaxWidth(4, 60)
	tbl.SetMaxWidth(5, 60)
	for _, r := range rs {
		typ := ""
		if r.Kind != nil {
			typ = r.Kind.Type()
		}
		tbl.AddRow(r.ID, string(r.Layer), strconv.FormatBool(r.Enabled), typ, PatternSummary(r.Kind), r.Description)
	}
	return tbl.Render()
}
