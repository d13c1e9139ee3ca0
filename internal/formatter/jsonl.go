package formatter

import (
	"encoding/json"
	"io"

	"github.com/boshu2/keyguard/internal/rules"
)

// JSONLFormatter outputs rules as JSON Lines format.
// Each rule is a single JSON object on one line.
type JSONLFormatter struct {
	// Pretty enables indented JSON (not recommended for JSONL).
	Pretty bool
}

// NewJSONLFormatter creates a new JSONL formatter.
func NewJSONLFormatter() *JSONLFormatter {
	return &JSONLFormatter{
		Pretty: false,
	}
}

// Format writes one JSON line per rule, in evaluation order.
func (jf *JSONLFormatter) Format(w io.Writer, rs []rules.Rule) error {
	encoder := json.NewEncoder(w)
	encoder.SetEscapeHTML(false) // patterns like "<" and "&&" stay readable

	if jf.Pretty {
		encoder.SetIndent("", "  ")
	}

	for _, r := range rs {
		if err := encoder.Encode(NewRuleView(r)); err != nil {
			return err
		}
	}
	return nil
}

// Extension returns the file extension for JSONL.
func (jf *JSONLFormatter) Extension() string {
	return ".jsonl"
}
