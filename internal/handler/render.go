package handler

import (
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"time"
)

// Renderer executes per-page template sets against the shared layout.
type Renderer struct {
	templates map[string]*template.Template
	baseURL   string
	logger    *slog.Logger
}

// NewRenderer parses one template set per page (layout + page) to avoid
// {{define "content"}} collisions between pages.
func NewRenderer(dir, baseURL string, pages []string, logger *slog.Logger) (*Renderer, error) {
	layout := dir + "/layout.html"
	templates := make(map[string]*template.Template)
	for _, page := range pages {
		tmpl, err := template.New("layout.html").Funcs(template.FuncMap{
			"usd": formatUSD,
		}).ParseFiles(layout, dir+"/"+page)
		if err != nil {
			return nil, fmt.Errorf("parse template %s: %w", page, err)
		}
		templates[page] = tmpl
	}
	return &Renderer{templates: templates, baseURL: baseURL, logger: logger}, nil
}

func (rd *Renderer) Render(w http.ResponseWriter, name string, data map[string]any) {
	if data == nil {
		data = map[string]any{}
	}
	if _, ok := data["BaseURL"]; !ok {
		data["BaseURL"] = rd.baseURL
	}
	if _, ok := data["Year"]; !ok {
		data["Year"] = time.Now().Year()
	}
	if _, ok := data["ActiveNav"]; !ok {
		data["ActiveNav"] = ""
	}
	tmpl, ok := rd.templates[name]
	if !ok {
		rd.logger.Error("template not found", "name", name)
		http.Error(w, "template error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := tmpl.ExecuteTemplate(w, "layout.html", data); err != nil {
		rd.logger.Error("template render", "name", name, "error", err)
	}
}

// formatUSD renders a cent amount as dollars, e.g. 9900 -> "$99".
func formatUSD(cents int64) string {
	if cents%100 == 0 {
		return fmt.Sprintf("$%d", cents/100)
	}
	return fmt.Sprintf("$%.2f", float64(cents)/100)
}
