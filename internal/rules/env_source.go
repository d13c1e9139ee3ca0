package rules

import (
	"fmt"
	"os"
	"strings"
)

// EnvSeparator separates patterns in the environment variable.
const EnvSeparator = "|"

// EnvSource turns a '|'-separated environment variable into substring rules.
// It is meant for ad-hoc experiments and is never persisted.
type EnvSource struct {
	Var       string
	LookupEnv func(string) (string, bool)
}

// NewEnvSource creates an EnvSource reading name from the process environment.
func NewEnvSource(name string) *EnvSource {
	return &EnvSource{Var: name, LookupEnv: os.LookupEnv}
}

// Layer implements Source.
func (s *EnvSource) Layer() Layer { return LayerEnv }

// Load implements Source. Tokens are trimmed and empty tokens skipped; rule
// ids keep the token's position in the split, so "a||b" yields env_custom_0
// and env_custom_2.
func (s *EnvSource) Load() ([]Rule, error) {
	if s.Var == "" {
		return nil, nil
	}
	lookup := s.LookupEnv
	if lookup == nil {
		lookup = os.LookupEnv
	}
	value, ok := lookup(s.Var)
	if !ok || strings.TrimSpace(value) == "" {
		return nil, nil
	}

	var rules []Rule
	for i, token := range strings.Split(value, EnvSeparator) {
		pattern := strings.TrimSpace(token)
		if pattern == "" {
			continue
		}
		rules = append(rules, Rule{
			ID:          fmt.Sprintf("env_custom_%d", i),
			Kind:        Substring{Pattern: pattern},
			Description: "Custom rule from env: " + pattern,
			Enabled:     true,
			Layer:       LayerEnv,
		})
	}
	log.Debug("Loaded %d rules from $%s", len(rules), s.Var)
	return rules, nil
}
