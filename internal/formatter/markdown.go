package formatter

import (
	"fmt"
	"io"
	"strings"
	"text/template"

	"github.com/boshu2/keyguard/internal/rules"
)

// MarkdownFormatter outputs the rule catalog as markdown, one section per layer.
type MarkdownFormatter struct {
	// IncludeDisabled lists disabled rules; they are always counted.
	IncludeDisabled bool
}

// NewMarkdownFormatter creates a markdown formatter that lists every rule.
func NewMarkdownFormatter() *MarkdownFormatter {
	return &MarkdownFormatter{IncludeDisabled: true}
}

// Format writes the catalog as markdown.
func (mf *MarkdownFormatter) Format(w io.Writer, rs []rules.Rule) error {
	tmpl, err := template.New("catalog").Funcs(mf.templateFuncs()).Parse(markdownTemplate)
	if err != nil {
		return fmt.Errorf("parse template: %w", err)
	}
	return tmpl.Execute(w, mf.buildTemplateData(rs))
}

// Extension returns the file extension for markdown.
func (mf *MarkdownFormatter) Extension() string {
	return ".md"
}

type layerSection struct {
	Layer    rules.Layer
	Rules    []rules.Rule
	Total    int
	Disabled int
}

// templateData holds all data for the markdown template.
type templateData struct {
	Total    int
	Active   int
	Sections []layerSection
}

// buildTemplateData groups rules by layer, keeping evaluation order.
func (mf *MarkdownFormatter) buildTemplateData(rs []rules.Rule) *templateData {
	data := &templateData{Total: len(rs)}
	for _, layer := range rules.Layers() {
		sec := layerSection{Layer: layer}
		for _, r := range rs {
			if r.Layer != layer {
				continue
			}
			sec.Total++
			if !r.Enabled {
				sec.Disabled++
				if !mf.IncludeDisabled {
					continue
				}
			}
			sec.Rules = append(sec.Rules, r)
		}
		data.Active += sec.Total - sec.Disabled
		data.Sections = append(data.Sections, sec)
	}
	return data
}

// templateFuncs returns custom template functions.
func (mf *MarkdownFormatter) templateFuncs() template.FuncMap {
	return template.FuncMap{
		"patterns": func(k rules.Kind) string {
			return escapeCell(PatternSummary(k))
		},
		"cell": escapeCell,
		"kindType": func(k rules.Kind) string {
			if k == nil {
				return ""
			}
			return k.Type()
		},
		"check": func(b bool) string {
			if b {
				return "yes"
			}
			return "no"
		},
	}
}

// escapeCell keeps a value inside one markdown table cell.
func escapeCell(s string) string {
	return strings.NewReplacer("|", `\|`, "\n", " ").Replace(s)
}

const markdownTemplate = `# Rule catalog

**Rules:** {{ .Total }} ({{ .Active }} active)
{{- range .Sections }}

## {{ .Layer }} ({{ .Total }}{{ if .Disabled }}, {{ .Disabled }} disabled{{ end }})
{{- if .Rules }}

| ID | Type | Patterns | Enabled | Description |
|----|------|----------|---------|-------------|
{{- range .Rules }}
| ` + "`{{ .ID }}`" + ` | {{ kindType .Kind }} | {{ patterns .Kind }} | {{ check .Enabled }} | {{ cell .Description }} |
{{- end }}
{{- else }}

_No rules._
{{- end }}
{{- end }}
`
