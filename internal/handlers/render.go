package handlers

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/a-h/templ"

	"github.com/Billy-Davies-2/lottery-draft-ui/internal/confetti"
	"github.com/Billy-Davies-2/lottery-draft-ui/internal/draftview"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static/*
var staticFS embed.FS

var funcs = template.FuncMap{
	"inc": func(i int) int { return i + 1 },
	"pct": formatNumber,
	"num": formatNumber,
	"particleStyle": func(p confetti.Particle) template.CSS {
		radius := "0"
		if p.Round {
			radius = "50%"
		}
		return template.CSS(fmt.Sprintf(
			"left:%.1fpx;width:%.1fpx;height:%.1fpx;background:%s;animation-duration:%.2fs;transform:rotate(%.0fdeg);border-radius:%s",
			p.Left, p.Size, p.Size, p.Color, p.Fall.Seconds(), p.Rotation, radius))
	},
}

func parseTemplates() (*template.Template, error) {
	return template.New("").Funcs(funcs).ParseFS(templateFS, "templates/*.html")
}

// formatNumber drops trailing zeros: 12.50 -> "12.5", 40 -> "40".
func formatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// component adapts a named html/template to templ.Component.
func component(t *template.Template, name string, data any) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		return t.ExecuteTemplate(w, name, data)
	})
}

func (h *Handlers) page(s draftview.Snapshot) templ.Component {
	return component(h.tmpl, "page.html", s)
}

func (h *Handlers) fragment(s draftview.Snapshot) templ.Component {
	return component(h.tmpl, "view", s)
}

func render(w http.ResponseWriter, r *http.Request, component templ.Component) {
	var buf bytes.Buffer
	if err := component.Render(r.Context(), &buf); err != nil {
		http.Error(w, "failed to render", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = buf.WriteTo(w)
}

func renderToString(r *http.Request, component templ.Component) (string, error) {
	var buf bytes.Buffer
	if err := component.Render(r.Context(), &buf); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func writeSSE(w io.Writer, event string, data string) {
	_, _ = io.WriteString(w, "event: "+event+"\n")
	for _, line := range strings.Split(data, "\n") {
		_, _ = io.WriteString(w, "data: "+line+"\n")
	}
	_, _ = io.WriteString(w, "\n")
}
