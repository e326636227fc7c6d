package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weft-dev/weft/internal/config"
	"github.com/weft-dev/weft/internal/logging"
)

func newTestServer(t *testing.T, root string) *DevServer {
	t.Helper()

	cfg := &config.Config{
		Source: config.SourceConfig{Root: root},
		Server: config.ServerConfig{Host: "localhost", Port: 8080},
	}
	s, err := New(cfg, logging.NewTestLogger())
	require.NoError(t, err)

	return s
}

func writeFile(t *testing.T, root, name, content string) string {
	t.Helper()

	path := filepath.Join(root, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	return path
}

func TestServeRootResolution(t *testing.T) {
	root := t.TempDir()

	t.Run("no output dir serves source root", func(t *testing.T) {
		s := newTestServer(t, root)
		assert.Equal(t, root, s.Root())
	})

	t.Run("relative output dir", func(t *testing.T) {
		cfg := &config.Config{
			Source: config.SourceConfig{Root: root},
			Output: config.OutputConfig{Dir: "dist"},
		}
		s, err := New(cfg, logging.NewTestLogger())
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(root, "dist"), s.Root())
	})

	t.Run("absolute output dir", func(t *testing.T) {
		out := t.TempDir()
		cfg := &config.Config{
			Source: config.SourceConfig{Root: root},
			Output: config.OutputConfig{Dir: out},
		}
		s, err := New(cfg, logging.NewTestLogger())
		require.NoError(t, err)
		assert.Equal(t, out, s.Root())
	})
}

func TestHandleFiles_InjectsIntoHTML(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "index.html", "<html><body><h1>Home</h1></body></html>")
	s := newTestServer(t, root)

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, rec.Body.String(), "<h1>Home</h1>")
	assert.Contains(t, rec.Body.String(), "/_weft/ws")
}

func TestHandleFiles_AssetsServedVerbatim(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "css/site.css", "body { margin: 0; }")
	s := newTestServer(t, root)

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/css/site.css", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "body { margin: 0; }", rec.Body.String())
	assert.NotContains(t, rec.Body.String(), "_weft")
}

func TestHandleFiles_DirectoryRedirectsThenServesIndex(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, filepath.Join("docs", "index.html"), "<html><body>docs</body></html>")
	s := newTestServer(t, root)

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/docs", nil))
	require.Equal(t, http.StatusMovedPermanently, rec.Code)
	assert.Equal(t, "/docs/", rec.Header().Get("Location"))

	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/docs/", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "docs")
	assert.Contains(t, rec.Body.String(), "/_weft/ws")
}

func TestHandleFiles_NotFoundCarriesReloadClient(t *testing.T) {
	root := t.TempDir()
	s := newTestServer(t, root)

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nothing.html", nil))

	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "/_weft/status")
	assert.Contains(t, rec.Body.String(), "/_weft/ws",
		"a parked browser reloads once the output appears")
}

func TestHandleFiles_TraversalStaysInRoot(t *testing.T) {
	parent := t.TempDir()
	root := filepath.Join(parent, "site")
	require.NoError(t, os.MkdirAll(root, 0o755))
	writeFile(t, parent, "secret.txt", "top secret")
	s := newTestServer(t, root)

	for _, target := range []string{"/../secret.txt", "/../../secret.txt", "/a/../../secret.txt"} {
		rec := httptest.NewRecorder()
		s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
		assert.NotContains(t, rec.Body.String(), "top secret", "request %s must not escape", target)
	}
}

func TestHandleFiles_MethodNotAllowed(t *testing.T) {
	root := t.TempDir()
	s := newTestServer(t, root)

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", nil))

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestHandleHealth(t *testing.T) {
	root := t.TempDir()
	s := newTestServer(t, root)

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/_weft/health", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var health map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &health))
	assert.Equal(t, "healthy", health["status"])
	assert.Equal(t, float64(0), health["clients"])
	assert.Equal(t, s.Root(), health["root"])
}

func TestHandleStatusPage(t *testing.T) {
	root := t.TempDir()
	s := newTestServer(t, root)

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/_weft/status", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, rec.Body.String(), "weft development server")
	assert.Contains(t, rec.Body.String(), root)
}

func TestValidateWSOrigin(t *testing.T) {
	tests := []struct {
		name        string
		origin      string
		requestHost string
		configured  string
		wantErr     bool
	}{
		{
			name:        "matches request host",
			origin:      "http://127.0.0.1:9999",
			requestHost: "127.0.0.1:9999",
			configured:  "localhost:8080",
			wantErr:     false,
		},
		{
			name:        "matches configured address",
			origin:      "http://localhost:8080",
			requestHost: "127.0.0.1:9999",
			configured:  "localhost:8080",
			wantErr:     false,
		},
		{
			name:        "loopback spelling of configured port",
			origin:      "http://127.0.0.1:8080",
			requestHost: "somewhere:1",
			configured:  "localhost:8080",
			wantErr:     false,
		},
		{
			name:        "missing origin",
			origin:      "",
			requestHost: "127.0.0.1:9999",
			configured:  "localhost:8080",
			wantErr:     true,
		},
		{
			name:        "foreign origin",
			origin:      "http://evil.example",
			requestHost: "127.0.0.1:9999",
			configured:  "localhost:8080",
			wantErr:     true,
		},
		{
			name:        "wrong port",
			origin:      "http://localhost:9090",
			requestHost: "127.0.0.1:9999",
			configured:  "localhost:8080",
			wantErr:     true,
		},
		{
			name:        "non-http scheme",
			origin:      "file:///page.html",
			requestHost: "127.0.0.1:9999",
			configured:  "localhost:8080",
			wantErr:     true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateWSOrigin(tt.origin, tt.requestHost, tt.configured)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestWebSocketRejectsBadOrigin(t *testing.T) {
	root := t.TempDir()
	s := newTestServer(t, root)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/_weft/ws", nil)
	req.Header.Set("Origin", "http://evil.example")
	s.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestAllCSS(t *testing.T) {
	assert.True(t, allCSS([]string{"a.css", "b.CSS"}))
	assert.False(t, allCSS([]string{"a.css", "b.html"}))
	assert.False(t, allCSS([]string{"index.html"}))
	assert.True(t, allCSS(nil))
}

func TestReloadNeverBlocksWithoutHub(t *testing.T) {
	root := t.TempDir()
	s := newTestServer(t, root)

	done := make(chan struct{})
	go func() {
		for i := 0; i < 64; i++ {
			s.Reload([]string{"index.html"})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Reload blocked with no hub draining the channel")
	}
}

func TestReloadRoundTrip(t *testing.T) {
	root := t.TempDir()
	s := newTestServer(t, root)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.runHub(ctx)

	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	dialCtx, dialCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer dialCancel()

	wsURL := "ws" + ts.URL[len("http"):] + "/_weft/ws"
	header := http.Header{}
	header.Set("Origin", ts.URL)

	conn, _, err := websocket.Dial(dialCtx, wsURL, &websocket.DialOptions{HTTPHeader: header})
	require.NoError(t, err)
	defer conn.Close(websocket.StatusNormalClosure, "")

	require.Eventually(t, func() bool {
		s.clientsMu.RLock()
		defer s.clientsMu.RUnlock()
		return len(s.clients) == 1
	}, 5*time.Second, 10*time.Millisecond, "client registers with the hub")

	readMessage := func() reloadMessage {
		t.Helper()
		readCtx, readCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer readCancel()
		_, data, err := conn.Read(readCtx)
		require.NoError(t, err)
		var msg reloadMessage
		require.NoError(t, json.Unmarshal(data, &msg))
		return msg
	}

	s.Reload([]string{filepath.Join(root, "index.html")})
	msg := readMessage()
	assert.Equal(t, "full_reload", msg.Type)
	assert.Len(t, msg.Outputs, 1)

	s.Reload([]string{filepath.Join(root, "site.css")})
	msg = readMessage()
	assert.Equal(t, "css_update", msg.Type)
}

func TestShutdownWithoutStart(t *testing.T) {
	root := t.TempDir()
	s := newTestServer(t, root)

	assert.NoError(t, s.Shutdown(context.Background()))
}
