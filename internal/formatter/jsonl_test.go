package formatter

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/boshu2/keyguard/internal/rules"
)

func TestNewJSONLFormatter(t *testing.T) {
	f := NewJSONLFormatter()
	if f == nil {
		t.Fatal("NewJSONLFormatter returned nil")
	}
	if f.Pretty {
		t.Error("Pretty should be false by default")
	}
}

func TestJSONLFormatter_Extension(t *testing.T) {
	if ext := NewJSONLFormatter().Extension(); ext != ".jsonl" {
		t.Errorf("Extension() = %q, want .jsonl", ext)
	}
}

func TestJSONLFormatter_Format_OneLinePerRule(t *testing.T) {
	var buf bytes.Buffer
	if err := NewJSONLFormatter().Format(&buf, sampleRules()); err != nil {
		t.Fatalf("Format() error = %v", err)
	}

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) != 4 {
		t.Fatalf("expected 4 lines, got %d:\n%s", len(lines), buf.String())
	}

	var got []RuleView
	for i, line := range lines {
		var v RuleView
		if err := json.Unmarshal([]byte(line), &v); err != nil {
			t.Fatalf("line %d is not JSON: %v\n%s", i, err, line)
		}
		got = append(got, v)
	}

	if got[0].ID != "env_file_access" || got[0].Pattern != ".env" {
		t.Errorf("line 0 = %+v", got[0])
	}
	if got[1].Type != "contains_all" || strings.Join(got[1].Patterns, ",") != "kubectl,secret" {
		t.Errorf("line 1 = %+v", got[1])
	}
	if got[2].Enabled {
		t.Errorf("line 2 should be disabled: %+v", got[2])
	}
	if got[3].Layer != "env" {
		t.Errorf("line 3 layer = %q, want env", got[3].Layer)
	}
}

func TestJSONLFormatter_Format_OmitsEmptyPatternFields(t *testing.T) {
	var buf bytes.Buffer
	rs := []rules.Rule{{ID: "a", Kind: rules.Substring{Pattern: "x"}, Enabled: true, Layer: rules.LayerBuiltin}}
	if err := NewJSONLFormatter().Format(&buf, rs); err != nil {
		t.Fatalf("Format() error = %v", err)
	}

	var raw map[string]any
	if err := json.Unmarshal(buf.Bytes(), &raw); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if _, ok := raw["patterns"]; ok {
		t.Errorf("substring rule should not carry patterns: %s", buf.String())
	}
	if raw["pattern"] != "x" {
		t.Errorf("pattern = %v, want x", raw["pattern"])
	}
}

func TestJSONLFormatter_Format_NoHTMLEscaping(t *testing.T) {
	var buf bytes.Buffer
	rs := []rules.Rule{{ID: "a", Kind: rules.Substring{Pattern: "cat <secrets && echo"}, Enabled: true}}
	if err := NewJSONLFormatter().Format(&buf, rs); err != nil {
		t.Fatalf("Format() error = %v", err)
	}
	if !strings.Contains(buf.String(), "cat <secrets && echo") {
		t.Errorf("pattern was escaped: %s", buf.String())
	}
}

func TestJSONLFormatter_Format_Pretty(t *testing.T) {
	var buf bytes.Buffer
	f := &JSONLFormatter{Pretty: true}
	if err := f.Format(&buf, sampleRules()[:1]); err != nil {
		t.Fatalf("Format() error = %v", err)
	}
	if !strings.Contains(buf.String(), "\n  \"id\"") {
		t.Errorf("expected indented output:\n%s", buf.String())
	}
}

func TestJSONLFormatter_Format_Empty(t *testing.T) {
	var buf bytes.Buffer
	if err := NewJSONLFormatter().Format(&buf, nil); err != nil {
		t.Fatalf("Format() error = %v", err)
	}
	if buf.Len() != 0 {
		t.Errorf("expected no output, got %q", buf.String())
	}
}
