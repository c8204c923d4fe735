package web

import (
	"embed"
	"html/template"
	"io"

	"github.com/adeilh/go-niconvert/httpx"
	"github.com/adeilh/go-niconvert/subtitle"
)

const indexTemplate = "index.html"

//go:embed templates/*.html
var templateFS embed.FS

// Renderer executes the embedded page templates for echo's Context.Render.
type Renderer struct {
	templates *template.Template
}

func NewRenderer() *Renderer {
	return &Renderer{templates: template.Must(template.ParseFS(templateFS, "templates/*.html"))}
}

func (r *Renderer) Render(w io.Writer, name string, data any, _ httpx.Context) error {
	return r.templates.ExecuteTemplate(w, name, data)
}

type page struct {
	URL        string
	Title      string
	CommentURL string
	Message    string
	Options    subtitle.Options
}

func newPage() page {
	return page{Options: subtitle.DefaultOptions()}
}
