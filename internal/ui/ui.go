// Package ui serves the embedded status page.
package ui

import (
	"embed"
	"net/http"
	"os"
)

//go:embed index.html
var content embed.FS

// Handler serves the status page. Setting HUDDLE_DEV=1 switches to reading
// index.html from the working tree on every request, for live editing.
func Handler() http.Handler {
	dev := os.Getenv("HUDDLE_DEV") == "1"
	read := func() ([]byte, error) { return content.ReadFile("index.html") }
	if dev {
		read = func() ([]byte, error) { return os.ReadFile("internal/ui/index.html") }
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, err := read()
		if err != nil {
			http.Error(w, "status page unavailable", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if dev {
			w.Header().Set("Cache-Control", "no-cache")
		}
		_, _ = w.Write(data)
	})
}
