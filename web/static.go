// Package web embeds the static upload UI served at the service root.
package web

import (
	"embed"
	"io/fs"
	"net/http"
)

//go:embed static/*
var staticFS embed.FS

// Handler serves the embedded upload page and its assets.
func Handler() http.Handler {
	sub, err := fs.Sub(staticFS, "static")
	if err != nil {
		panic("web: embedded static tree missing: " + err.Error())
	}
	return http.FileServer(http.FS(sub))
}
