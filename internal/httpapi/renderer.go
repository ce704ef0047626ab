package httpapi

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"

	"github.com/Gravitate-Health/focusing-manager-sub000/internal/epi"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

// TemplateRenderer renders an ePI document's leaflet sections into a
// self-contained HTML page. It is the concrete Renderer the orchestrator
// uses for Accept: text/html negotiation (spec.md §4.10); nothing in
// spec.md constrains its markup, so this stays deliberately minimal.
type TemplateRenderer struct {
	tmpl *template.Template
}

type leafletView struct {
	Title    string
	Language string
	Category string
	Sections []sectionView
}

type sectionView struct {
	Title string
	HTML  template.HTML
}

// NewTemplateRenderer parses the embedded leaflet template. It panics on
// failure since a broken embedded template is a build-time defect, not a
// runtime condition callers can recover from.
func NewTemplateRenderer() *TemplateRenderer {
	tmpl := template.Must(template.ParseFS(templateFS, "templates/leaflet.html.tmpl"))
	return &TemplateRenderer{tmpl: tmpl}
}

// RenderHTML implements Renderer.
func (r *TemplateRenderer) RenderHTML(doc epi.Document) (string, error) {
	view := leafletView{
		Title:    "Electronic Product Information",
		Language: epi.GetLanguage(doc),
	}
	view.Category, _ = epi.GetCategoryCode(doc)

	sections, _, err := epi.GetLeafletSections(doc)
	if err != nil {
		return "", err
	}
	for i, raw := range sections {
		sec, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		title := sectionTitleOf(sec, i)
		html := epi.ConcatenateLeafletHTML([]any{sec})
		view.Sections = append(view.Sections, sectionView{Title: title, HTML: template.HTML(html)})
	}

	var buf bytes.Buffer
	if err := r.tmpl.Execute(&buf, view); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func sectionTitleOf(sec map[string]any, index int) string {
	if title, ok := sec["title"].(string); ok && title != "" {
		return title
	}
	return fmt.Sprintf("Section %d", index+1)
}
