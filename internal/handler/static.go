package handler

import (
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"
)

// SPAHandler serves the web UI bundle. Unknown routes fall back to the index
// file so client-side routing works; missing assets are 404s.
type SPAHandler struct {
	staticDir string
	indexFile string
}

func NewSPAHandler(staticDir string) *SPAHandler {
	return &SPAHandler{
		staticDir: staticDir,
		indexFile: "index.html",
	}
}

func (h *SPAHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	p := chi.URLParam(r, "*")
	if p == "" {
		p = strings.TrimPrefix(r.URL.Path, "/")
	}

	if p == "api" || strings.HasPrefix(p, "api/") {
		http.NotFound(w, r)
		return
	}

	// Clean against a rooted path so ".." cannot leave staticDir.
	filePath := filepath.Join(h.staticDir, filepath.FromSlash(path.Clean("/"+p)))

	info, err := os.Stat(filePath)
	if err == nil && !info.IsDir() {
		if strings.HasPrefix(p, "assets/") {
			w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
		}
		http.ServeFile(w, r, filePath)
		return
	}

	if path.Ext(p) != "" {
		http.NotFound(w, r)
		return
	}

	indexPath := filepath.Join(h.staticDir, h.indexFile)
	if _, err := os.Stat(indexPath); err != nil {
		http.NotFound(w, r)
		return
	}

	w.Header().Set("Cache-Control", "no-cache")
	http.ServeFile(w, r, indexPath)
}

func StaticFileServer(staticDir string) http.Handler {
	return NewSPAHandler(staticDir)
}
