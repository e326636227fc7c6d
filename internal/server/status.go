package server

import (
	"context"
	"fmt"
	"html"
	"io"
	"net/http"
	"time"

	"github.com/a-h/templ"

	"github.com/weft-dev/weft/internal/version"
)

// statusHandler renders the /_weft/status page. The page is assembled as a
// templ component by hand; one internal page does not justify a template
// generation step.
func (s *DevServer) statusHandler() http.Handler {
	return templ.Handler(templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		s.clientsMu.RLock()
		clients := len(s.clients)
		s.clientsMu.RUnlock()

		uptime := time.Since(s.started).Round(time.Second)

		_, err := fmt.Fprintf(w, `<!DOCTYPE html>
<html>
<head>
<title>weft status</title>
<style>
body { font-family: system-ui, sans-serif; max-width: 40rem; margin: 3rem auto; padding: 0 1rem; }
h1 { font-size: 1.4rem; }
table { border-collapse: collapse; width: 100%%; }
td { padding: 0.4rem 0.6rem; border-bottom: 1px solid #ddd; }
td:first-child { color: #555; width: 12rem; }
code { background: #f4f4f4; padding: 0.1rem 0.3rem; }
</style>
</head>
<body>
<h1>weft development server</h1>
<table>
<tr><td>version</td><td>%s</td></tr>
<tr><td>serving</td><td><code>%s</code></td></tr>
<tr><td>address</td><td><code>%s</code></td></tr>
<tr><td>connected browsers</td><td>%d</td></tr>
<tr><td>reloads pushed</td><td>%d</td></tr>
<tr><td>uptime</td><td>%s</td></tr>
</table>
<p><a href="/">back to the site</a></p>
</body>
</html>`,
			html.EscapeString(version.Short()),
			html.EscapeString(s.root),
			html.EscapeString(s.Addr()),
			clients,
			s.reloads.Load(),
			uptime,
		)

		return err
	}))
}
