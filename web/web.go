// Package web embeds the browser chat UI.
package web

import (
	"embed"
	"io/fs"
	"net/http"
)

//go:embed static
var assets embed.FS

// FS serves the files under static/.
func FS() http.FileSystem {
	sub, err := fs.Sub(assets, "static")
	if err != nil {
		panic(err) // the directory is embedded at build time
	}
	return http.FS(sub)
}

// Index returns the UI entry page.
func Index() []byte {
	b, err := assets.ReadFile("static/index.html")
	if err != nil {
		panic(err)
	}
	return b
}
