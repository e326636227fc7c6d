// Package server implements the weft development server. It serves the
// generated output tree over HTTP, injects a live-reload client into every
// HTML page it serves, and pushes reload messages to connected browsers when
// the scheduler reports freshly written outputs.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/coder/websocket"

	"github.com/weft-dev/weft/internal/config"
	"github.com/weft-dev/weft/internal/logging"
	"github.com/weft-dev/weft/internal/validation"
	"github.com/weft-dev/weft/internal/version"
)

// DevServer serves generated files with live reload.
type DevServer struct {
	cfg    *config.Config
	logger logging.Logger

	// root is the absolute directory served: the output directory when one
	// is configured, otherwise the source root, where outputs land beside
	// their sources.
	root string

	httpServer *http.Server
	serverMu   sync.RWMutex

	clients    map[*websocket.Conn]*client
	clientsMu  sync.RWMutex
	broadcast  chan []byte
	register   chan *client
	unregister chan *websocket.Conn

	started      time.Time
	reloads      atomic.Int64
	shutdownOnce sync.Once
}

// reloadMessage is what the browser client receives.
type reloadMessage struct {
	Type      string    `json:"type"`
	Outputs   []string  `json:"outputs,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// New creates a development server for the project.
func New(cfg *config.Config, logger logging.Logger) (*DevServer, error) {
	root, err := filepath.Abs(cfg.Source.Root)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve source root: %w", err)
	}
	if cfg.Output.Dir != "" {
		if filepath.IsAbs(cfg.Output.Dir) {
			root = filepath.Clean(cfg.Output.Dir)
		} else {
			root = filepath.Join(root, cfg.Output.Dir)
		}
	}

	return &DevServer{
		cfg:        cfg,
		logger:     logger.WithComponent("server"),
		root:       root,
		clients:    make(map[*websocket.Conn]*client),
		broadcast:  make(chan []byte, 16),
		register:   make(chan *client),
		unregister: make(chan *websocket.Conn),
	}, nil
}

// Root returns the absolute directory the server serves.
func (s *DevServer) Root() string {
	return s.root
}

// Addr returns the configured listen address.
func (s *DevServer) Addr() string {
	return fmt.Sprintf("%s:%d", s.cfg.Server.Host, s.cfg.Server.Port)
}

// Handler builds the full HTTP handler: reserved /_weft/ endpoints plus the
// injected file server for everything else. Exposed so tests can drive the
// server through httptest.
func (s *DevServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/_weft/ws", s.handleWebSocket)
	mux.HandleFunc("/_weft/health", s.handleHealth)
	mux.Handle("/_weft/status", s.statusHandler())
	mux.HandleFunc("/", s.handleFiles)

	return s.withRequestLog(mux)
}

// Start runs the server until the context is canceled or the listener
// fails. The websocket hub runs for the lifetime of ctx.
func (s *DevServer) Start(ctx context.Context) error {
	s.started = time.Now()

	go s.runHub(ctx)

	addr := s.Addr()
	s.serverMu.Lock()
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	srv := s.httpServer
	s.serverMu.Unlock()

	if s.cfg.Server.Open {
		go s.openBrowser(ctx, fmt.Sprintf("http://%s", addr))
	}

	s.logger.Info(ctx, "development server listening", "addr", addr, "root", s.root)

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}

	return nil
}

// Reload notifies connected browsers about freshly written outputs. When
// every output is a stylesheet the message asks for an in-place CSS swap;
// anything else forces a full page reload. Safe to call from any goroutine,
// including before Start.
func (s *DevServer) Reload(outputs []string) {
	if len(outputs) == 0 {
		return
	}

	msg := reloadMessage{Type: "full_reload", Outputs: outputs, Timestamp: time.Now()}
	if allCSS(outputs) {
		msg.Type = "css_update"
	}

	data, err := json.Marshal(msg)
	if err != nil {
		data = []byte(`{"type":"full_reload"}`)
	}

	select {
	case s.broadcast <- data:
	default:
		// Hub not draining; dropping is fine, the next change will push
		// a fresh message.
	}
}

func allCSS(outputs []string) bool {
	for _, out := range outputs {
		if !strings.EqualFold(filepath.Ext(out), ".css") {
			return false
		}
	}

	return true
}

// Shutdown stops the server, closing every websocket client first.
func (s *DevServer) Shutdown(ctx context.Context) error {
	var err error

	s.shutdownOnce.Do(func() {
		s.clientsMu.Lock()
		for conn, c := range s.clients {
			close(c.send)
			conn.Close(websocket.StatusGoingAway, "server shutting down")
		}
		s.clients = make(map[*websocket.Conn]*client)
		s.clientsMu.Unlock()

		s.serverMu.RLock()
		srv := s.httpServer
		s.serverMu.RUnlock()

		if srv != nil {
			err = srv.Shutdown(ctx)
		}
	})

	return err
}

func (s *DevServer) withRequestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Debug(r.Context(), "request served",
			"method", r.Method, "path", r.URL.Path, "duration_ms", time.Since(start).Milliseconds())
	})
}

func (s *DevServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	s.clientsMu.RLock()
	clientCount := len(s.clients)
	s.clientsMu.RUnlock()

	health := map[string]interface{}{
		"status":  "healthy",
		"version": version.Short(),
		"root":    s.root,
		"clients": clientCount,
		"uptime":  time.Since(s.started).Round(time.Second).String(),
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(health); err != nil {
		s.logger.Error(r.Context(), err, "health encode failed")
	}
}

// openBrowser hands the server URL to the platform open command once the
// listener has had a moment to come up. The URL is vetted first: it is built
// from configuration values, and configuration is user input.
func (s *DevServer) openBrowser(ctx context.Context, url string) {
	time.Sleep(100 * time.Millisecond)

	if err := validation.ValidateURL(url); err != nil {
		logging.LogSecurityEvent(s.logger, ctx, "refused to open browser", map[string]interface{}{
			"url":    url,
			"reason": err.Error(),
		})
		return
	}

	var err error
	switch runtime.GOOS {
	case "linux":
		err = exec.Command("xdg-open", url).Start()
	case "darwin":
		err = exec.Command("open", url).Start()
	case "windows":
		err = exec.Command("rundll32", "url.dll,FileProtocolHandler", url).Start()
	default:
		err = fmt.Errorf("unsupported platform: %s", runtime.GOOS)
	}

	if err != nil {
		s.logger.Warn(ctx, err, "could not open browser", "url", url)
	}
}
