package rules

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// ConfigSource reads rule declarations from a JSON or YAML file.
//
// File format:
//
//	{"rules": [
//	  {"id": "...", "type": "substring",    "pattern": "...",       "description": "...", "enabled": true},
//	  {"id": "...", "type": "contains_all", "patterns": ["...", ...], ...},
//	  {"id": "...", "type": "contains_any", "patterns": ["...", ...], ...}
//	]}
//
// Unknown top-level fields are ignored and a missing file is the same as an
// empty rules list.
type ConfigSource struct {
	Path string
	FS   FileSystem
}

// NewConfigSource creates a ConfigSource reading path from the real filesystem.
func NewConfigSource(path string) *ConfigSource {
	return &ConfigSource{Path: path, FS: OSFileSystem{}}
}

// Layer implements Source.
func (s *ConfigSource) Layer() Layer { return LayerConfig }

// Load implements Source.
//
// An unreadable or malformed file yields no rules and an error. Otherwise every
// valid declaration is returned and the rejected ones are reported together
// as an errors.Join of *DeclarationError values.
func (s *ConfigSource) Load() ([]Rule, error) {
	if s.Path == "" {
		return nil, nil
	}
	fsys := s.FS
	if fsys == nil {
		fsys = OSFileSystem{}
	}

	data, err := fsys.ReadFile(s.Path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			log.Debug("No rules file at %s", s.Path)
			return nil, nil
		}
		return nil, fmt.Errorf("read %s: %w", s.Path, err)
	}

	entries, err := decodeRulesFile(s.Path, data)
	if err != nil {
		return nil, err
	}

	var (
		rules []Rule
		errs  []error
	)
	for i, entry := range entries {
		rule, err := parseDeclaration(entry)
		if err != nil {
			errs = append(errs, &DeclarationError{Index: i, ID: rule.ID, Err: err})
			continue
		}
		rules = append(rules, rule)
	}
	log.Debug("Loaded %d of %d declarations from %s", len(rules), len(entries), s.Path)
	return rules, errors.Join(errs...)
}

// rulesFile is the top-level document. Entries stay generic so that a bad
// entry cannot fail the whole decode.
type rulesFile struct {
	Rules []any `json:"rules" yaml:"rules"`
}

func decodeRulesFile(path string, data []byte) ([]any, error) {
	var doc rulesFile
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("%w %s: %v", ErrMalformedFile, path, err)
		}
	default:
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("%w %s: %v", ErrMalformedFile, path, err)
		}
	}
	return doc.Rules, nil
}

// declaration is one entry of the rules list after generic decoding.
type declaration struct {
	ID          string   `mapstructure:"id"`
	Type        string   `mapstructure:"type"`
	Pattern     *string  `mapstructure:"pattern"`
	Patterns    []string `mapstructure:"patterns"`
	Description string   `mapstructure:"description"`
	Enabled     *bool    `mapstructure:"enabled"`
}

// parseDeclaration turns one generic entry into a config-layer Rule. On error
// the returned Rule carries the id when it could be read.
func parseDeclaration(entry any) (Rule, error) {
	raw, ok := entry.(map[string]any)
	if !ok {
		return Rule{}, fmt.Errorf("%w, got %T", ErrNotObject, entry)
	}

	var d declaration
	if err := mapstructure.Decode(raw, &d); err != nil {
		id, _ := raw["id"].(string)
		return Rule{ID: id}, fmt.Errorf("%w: %v", ErrInvalidField, err)
	}

	rule := Rule{ID: d.ID, Description: d.Description, Enabled: true, Layer: LayerConfig}
	if d.Enabled != nil {
		rule.Enabled = *d.Enabled
	}
	if strings.TrimSpace(d.ID) == "" {
		return rule, ErrMissingID
	}

	kind, err := d.kind(raw)
	if err != nil {
		return rule, err
	}
	rule.Kind = kind
	return rule, nil
}

func (d declaration) kind(raw map[string]any) (Kind, error) {
	switch d.Type {
	case "":
		return nil, ErrMissingType
	case TypeSubstring:
		if d.Pattern == nil {
			return nil, fmt.Errorf("%w: %s requires \"pattern\"", ErrMissingPattern, d.Type)
		}
		if *d.Pattern == "" {
			return nil, ErrEmptyPattern
		}
		return Substring{Pattern: *d.Pattern}, nil
	case TypeContainsAll, TypeContainsAny:
		if err := checkPatterns(d.Type, d.Patterns, raw); err != nil {
			return nil, err
		}
		if d.Type == TypeContainsAll {
			return ContainsAll{All: d.Patterns}, nil
		}
		return ContainsAny{Any: d.Patterns}, nil
	default:
		return nil, fmt.Errorf("%w %q", ErrUnknownType, d.Type)
	}
}

func checkPatterns(typ string, patterns []string, raw map[string]any) error {
	if len(patterns) == 0 {
		if v, ok := raw["patterns"]; !ok || v == nil {
			return fmt.Errorf("%w: %s requires \"patterns\"", ErrMissingPattern, typ)
		}
		return ErrEmptyPatterns
	}
	for i, p := range patterns {
		if p == "" {
			return fmt.Errorf("%w (patterns[%d])", ErrEmptyPattern, i)
		}
	}
	return nil
}
