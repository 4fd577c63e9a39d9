// Package views holds the server-rendered pages.
package views

import (
	"embed"
	"html/template"
)

//go:embed *.tmpl
var files embed.FS

// Templates parses every page; each is looked up by its file name.
func Templates() (*template.Template, error) {
	return template.ParseFS(files, "*.tmpl")
}
