package web

import (
	"embed"
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/dustin/go-humanize"
)

//go:embed templates/*.html
var templateFS embed.FS

// TemplateEngine renders the dashboard page from the embedded templates.
type TemplateEngine struct {
	templates *template.Template
}

// NewTemplateEngine parses the embedded templates once.
func NewTemplateEngine() (*TemplateEngine, error) {
	tmpl, err := template.New("").Funcs(template.FuncMap{
		"comma": func(v int64) string { return humanize.Comma(v) },
		"avg": func(v float64) string {
			return humanize.CommafWithDigits(v, 1)
		},
		"date": func(t time.Time) string { return t.Format(dateLayout) },
		"dateRef": func(t *time.Time) string {
			if t == nil {
				return ""
			}
			return t.Format(dateLayout)
		},
	}).ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	return &TemplateEngine{templates: tmpl}, nil
}

// Render writes the full page.
func (te *TemplateEngine) Render(w io.Writer, page *Page) error {
	if err := te.templates.ExecuteTemplate(w, "layout", page); err != nil {
		return fmt.Errorf("execute layout: %w", err)
	}
	return nil
}
