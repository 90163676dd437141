package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeUIBundle(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	files := map[string]string{
		"index.html":          "<!DOCTYPE html><html><body>Doorbell</body></html>",
		"favicon.ico":         "icon",
		"assets/app-1a2b.js":  "console.log('doorbell');",
		"assets/app-1a2b.css": "body { margin: 0; }",
	}
	for name, content := range files {
		path := filepath.Join(dir, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	return dir
}

func TestSPAHandler(t *testing.T) {
	h := NewSPAHandler(writeUIBundle(t))

	tests := []struct {
		name         string
		path         string
		wantStatus   int
		wantBody     string
		wantCacheHdr string
	}{
		{"root serves index", "/", http.StatusOK, "Doorbell", "no-cache"},
		{"client route falls back to index", "/fingerprints/4", http.StatusOK, "Doorbell", "no-cache"},
		{"hashed asset is immutable", "/assets/app-1a2b.js", http.StatusOK, "console.log", "public, max-age=31536000, immutable"},
		{"top level file", "/favicon.ico", http.StatusOK, "icon", ""},
		{"missing asset is 404", "/assets/app-ffff.js", http.StatusNotFound, "", ""},
		{"api prefix is 404", "/api/", http.StatusNotFound, "", ""},
		{"unknown api route is 404", "/api/unknown", http.StatusNotFound, "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))

			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantBody != "" {
				assert.Contains(t, rec.Body.String(), tt.wantBody)
			}
			assert.Equal(t, tt.wantCacheHdr, rec.Header().Get("Cache-Control"))
		})
	}
}

func TestSPAHandler_StaysInsideStaticDir(t *testing.T) {
	h := NewSPAHandler(writeUIBundle(t))

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("*", "../../etc/passwd")
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
	rec := httptest.NewRecorder()

	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Doorbell")
	assert.NotContains(t, rec.Body.String(), "root:")
}

func TestSPAHandler_NoIndexFile(t *testing.T) {
	h := NewSPAHandler(t.TempDir())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStaticFileServer(t *testing.T) {
	_, ok := StaticFileServer(t.TempDir()).(*SPAHandler)
	assert.True(t, ok)
}
