package rules

import (
	"fmt"
	"slices"
	"strings"
)

// Layer identifies where a rule came from. It is provenance only and never
// changes whether a command is blocked.
type Layer string

// Rule layers, in evaluation order.
const (
	LayerBuiltin Layer = "builtin"
	LayerConfig  Layer = "config"
	LayerEnv     Layer = "env"
)

// Layers returns all layers in evaluation order.
func Layers() []Layer {
	return []Layer{LayerBuiltin, LayerConfig, LayerEnv}
}

// Kind type tags as they appear in rule files.
const (
	TypeSubstring   = "substring"
	TypeContainsAll = "contains_all"
	TypeContainsAny = "contains_any"
)

// Kind is the matching condition of a rule. The set of kinds is closed:
// Substring, ContainsAll and ContainsAny are the only implementations.
type Kind interface {
	// Type returns the tag used for this kind in rule files.
	Type() string
	// Patterns returns the kind's patterns in declaration order.
	Patterns() []string

	sealed()
}

// Substring matches when the command contains Pattern.
type Substring struct {
	Pattern string
}

// ContainsAll matches when the command contains every pattern.
type ContainsAll struct {
	All []string
}

// ContainsAny matches when the command contains at least one pattern.
type ContainsAny struct {
	Any []string
}

func (Substring) Type() string   { return TypeSubstring }
func (ContainsAll) Type() string { return TypeContainsAll }
func (ContainsAny) Type() string { return TypeContainsAny }

func (k Substring) Patterns() []string   { return []string{k.Pattern} }
func (k ContainsAll) Patterns() []string { return append([]string(nil), k.All...) }
func (k ContainsAny) Patterns() []string { return append([]string(nil), k.Any...) }

func (Substring) sealed()   {}
func (ContainsAll) sealed() {}
func (ContainsAny) sealed() {}

// Rule is one named matching condition.
type Rule struct {
	ID          string
	Kind        Kind
	Description string
	Enabled     bool
	Layer       Layer
}

// clone returns r with its own copy of the pattern slice, so callers holding
// the result cannot alter a rule the engine or the catalog still uses.
func (r Rule) clone() Rule {
	r.Kind = cloneKind(r.Kind)
	return r
}

func cloneKind(k Kind) Kind {
	switch k := k.(type) {
	case ContainsAll:
		return ContainsAll{All: slices.Clone(k.All)}
	case ContainsAny:
		return ContainsAny{Any: slices.Clone(k.Any)}
	default:
		return k
	}
}

// cloneRules deep-copies rs.
func cloneRules(rs []Rule) []Rule {
	if rs == nil {
		return nil
	}
	out := make([]Rule, len(rs))
	for i, r := range rs {
		out[i] = r.clone()
	}
	return out
}

// Matches reports whether an enabled rule matches command.
// Disabled rules never match.
func (r Rule) Matches(command string) bool {
	if !r.Enabled {
		return false
	}
	return Match(r.Kind, strings.ToLower(command))
}

// String formats the rule for diagnostics.
func (r Rule) String() string {
	return fmt.Sprintf("%s/%s (%s %q)", r.Layer, r.ID, r.Kind.Type(), r.Kind.Patterns())
}
