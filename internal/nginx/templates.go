package nginx

import (
	"bytes"
	"embed"
	"fmt"
	"strings"
	"text/template"
)

//go:embed templates/*.tmpl
var templatesFS embed.FS

// Template names
const (
	staticTemplate    = "static.conf.tmpl"
	apiTemplate       = "api.conf.tmpl"
	bootstrapTemplate = "bootstrap.conf.tmpl"
	httpsTemplate     = "https.conf.tmpl"
)

// TemplateLoader parses the embedded site templates once and shares the
// partials between them.
type TemplateLoader struct {
	tmpl *template.Template
}

// NewTemplateLoader parses every embedded template.
func NewTemplateLoader() (*TemplateLoader, error) {
	tmpl, err := template.New("nginx").Funcs(templateFuncs()).ParseFS(templatesFS, "templates/*.tmpl")
	if err != nil {
		return nil, fmt.Errorf("failed to parse nginx templates: %w", err)
	}
	return &TemplateLoader{tmpl: tmpl}, nil
}

// Execute renders the named template.
func (l *TemplateLoader) Execute(name string, data interface{}) (string, error) {
	if l.tmpl.Lookup(name) == nil {
		return "", fmt.Errorf("unknown template %s", name)
	}

	var buf bytes.Buffer
	if err := l.tmpl.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("failed to execute template %s: %w", name, err)
	}
	return buf.String(), nil
}

func templateFuncs() template.FuncMap {
	return template.FuncMap{
		"serverNames": func(names []string) string {
			if len(names) == 0 {
				return CatchAll
			}
			return strings.Join(names, " ")
		},
	}
}
