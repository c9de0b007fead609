// Package web embeds the page templates and static assets of the dashboard.
package web

import (
	"embed"
	"html/template"
	"io/fs"
	"net/http"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static
var staticFS embed.FS

// Templates parses the embedded page templates.
func Templates() (*template.Template, error) {
	return template.New("finboard").ParseFS(templateFS, "templates/*.html")
}

// MustTemplates is Templates for program start-up.
func MustTemplates() *template.Template {
	t, err := Templates()
	if err != nil {
		panic("web: failed to parse templates: " + err.Error())
	}
	return t
}

// StaticHandler serves the embedded assets. It expects to be mounted at
// /static/ and strips that prefix.
func StaticHandler() http.Handler {
	subFS, err := fs.Sub(staticFS, "static")
	if err != nil {
		panic("web: failed to create sub filesystem: " + err.Error())
	}
	return http.StripPrefix("/static/", http.FileServer(http.FS(subFS)))
}
