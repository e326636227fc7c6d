package server

import (
	"bytes"
	"fmt"
	"html"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/weft-dev/weft/internal/logging"
)

// handleFiles serves the output tree. HTML responses get the live-reload
// client injected; everything else streams as-is through the stdlib file
// machinery.
func (s *DevServer) handleFiles(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	// Cleaning the rooted path first means no number of dot segments can
	// escape the served tree.
	urlPath := path.Clean("/" + r.URL.Path)
	fsPath := filepath.Join(s.root, filepath.FromSlash(strings.TrimPrefix(urlPath, "/")))

	if !underRoot(s.root, fsPath) {
		logging.LogSecurityEvent(s.logger, r.Context(), "path escape attempt", map[string]interface{}{
			"path":   r.URL.Path,
			"remote": r.RemoteAddr,
		})
		http.NotFound(w, r)
		return
	}

	info, err := os.Stat(fsPath)
	if err != nil {
		s.serveNotFound(w, urlPath)
		return
	}

	if info.IsDir() {
		if !strings.HasSuffix(r.URL.Path, "/") {
			target := urlPath + "/"
			if r.URL.RawQuery != "" {
				target += "?" + r.URL.RawQuery
			}
			http.Redirect(w, r, target, http.StatusMovedPermanently)
			return
		}

		fsPath = filepath.Join(fsPath, "index.html")
		info, err = os.Stat(fsPath)
		if err != nil {
			s.serveNotFound(w, urlPath)
			return
		}
	}

	if isHTMLPath(fsPath) {
		s.serveHTML(w, r, fsPath, info.ModTime())
		return
	}

	http.ServeFile(w, r, fsPath)
}

func isHTMLPath(p string) bool {
	ext := strings.ToLower(filepath.Ext(p))

	return ext == ".html" || ext == ".htm"
}

func (s *DevServer) serveHTML(w http.ResponseWriter, r *http.Request, fsPath string, modTime time.Time) {
	page, err := os.ReadFile(fsPath)
	if err != nil {
		http.Error(w, "cannot read file", http.StatusInternalServerError)
		return
	}

	injected := injectReloadScript(page)

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	http.ServeContent(w, r, filepath.Base(fsPath), modTime, bytes.NewReader(injected))
}

// serveNotFound answers a missing path with a page that still carries the
// reload client, so a browser parked on a not-yet-generated output refreshes
// by itself once the file appears.
func (s *DevServer) serveNotFound(w http.ResponseWriter, urlPath string) {
	page := fmt.Sprintf(`<!DOCTYPE html>
<html>
<head><title>404 - weft</title></head>
<body>
<h1>404</h1>
<p><code>%s</code> has not been generated (yet). This page reloads when outputs change.</p>
<p><a href="/_weft/status">server status</a></p>
</body>
</html>`, html.EscapeString(urlPath))

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusNotFound)
	w.Write(injectReloadScript([]byte(page)))
}

func underRoot(root, p string) bool {
	rel, err := filepath.Rel(root, p)
	if err != nil {
		return false
	}

	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
