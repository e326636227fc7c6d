package server

import (
	"context"
	"net/http"
	"time"

	"github.com/coder/websocket"

	"github.com/weft-dev/weft/internal/logging"
	"github.com/weft-dev/weft/internal/validation"
)

const (
	// writeWait bounds a single message write or ping round trip.
	writeWait = 10 * time.Second

	// pingPeriod spaces keepalive probes. Ping waits for the pong, so a
	// peer that misses one fails the probe and gets dropped.
	pingPeriod = 54 * time.Second

	// maxMessageSize caps inbound messages; the client never sends anything
	// meaningful, so anything large is garbage.
	maxMessageSize = 512
)

// client is one connected browser.
type client struct {
	conn   *websocket.Conn
	send   chan []byte
	server *DevServer
}

func (s *DevServer) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	origin := r.Header.Get("Origin")
	if err := validateWSOrigin(origin, r.Host, s.Addr()); err != nil {
		logging.LogSecurityEvent(s.logger, r.Context(), "websocket origin rejected", map[string]interface{}{
			"origin": origin,
			"remote": r.RemoteAddr,
		})
		http.Error(w, "origin not allowed", http.StatusForbidden)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true, // origin already validated above
	})
	if err != nil {
		s.logger.Warn(r.Context(), err, "websocket upgrade failed", "remote", r.RemoteAddr)
		return
	}

	c := &client{
		conn:   conn,
		send:   make(chan []byte, 16),
		server: s,
	}

	go c.writePump()
	go c.readPump()

	s.register <- c
}

// runHub owns the client set: registrations, disconnects, and fanning
// broadcast messages out to every connected browser. A client whose send
// buffer is full is dropped; its browser reconnects and fetches fresh pages
// anyway.
func (s *DevServer) runHub(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return

		case c := <-s.register:
			s.clientsMu.Lock()
			s.clients[c.conn] = c
			total := len(s.clients)
			s.clientsMu.Unlock()
			s.logger.Debug(ctx, "browser connected", "clients", total)

		case conn := <-s.unregister:
			s.clientsMu.Lock()
			if c, ok := s.clients[conn]; ok {
				delete(s.clients, conn)
				close(c.send)
			}
			total := len(s.clients)
			s.clientsMu.Unlock()
			s.logger.Debug(ctx, "browser disconnected", "clients", total)

		case msg := <-s.broadcast:
			s.reloads.Add(1)

			var stalled []*websocket.Conn
			s.clientsMu.RLock()
			for conn, c := range s.clients {
				select {
				case c.send <- msg:
				default:
					stalled = append(stalled, conn)
				}
			}
			s.clientsMu.RUnlock()

			for _, conn := range stalled {
				s.clientsMu.Lock()
				if c, ok := s.clients[conn]; ok {
					delete(s.clients, conn)
					close(c.send)
				}
				s.clientsMu.Unlock()
				conn.Close(websocket.StatusPolicyViolation, "client not reading")
			}
		}
	}
}

// validateWSOrigin accepts an origin matching the page's own host, the
// configured address, or a loopback spelling of the configured port.
func validateWSOrigin(origin, requestHost, configured string) error {
	allowed := []string{requestHost, configured}
	if _, port, ok := splitHostPort(configured); ok {
		allowed = append(allowed, "localhost:"+port, "127.0.0.1:"+port)
	}

	return validation.ValidateOrigin(origin, allowed)
}

func splitHostPort(addr string) (host, port string, ok bool) {
	for i := len(addr) - 1; i >= 0; i-- {
		if addr[i] == ':' {
			return addr[:i], addr[i+1:], true
		}
	}

	return addr, "", false
}

// readPump drains the connection so control frames are answered and closure
// is noticed; inbound payloads are ignored. The read blocks without a
// deadline: liveness comes from writePump's pings, and a failed ping closes
// the connection, which unblocks the read.
func (c *client) readPump() {
	defer func() {
		c.server.unregister <- c.conn
		c.conn.Close(websocket.StatusNormalClosure, "")
	}()

	c.conn.SetReadLimit(maxMessageSize)

	for {
		if _, _, err := c.conn.Read(context.Background()); err != nil {
			return
		}
	}
}

// writePump pushes queued messages and keepalive pings to the browser.
func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close(websocket.StatusNormalClosure, "")
	}()

	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				return
			}

			ctx, cancel := context.WithTimeout(context.Background(), writeWait)
			err := c.conn.Write(ctx, websocket.MessageText, msg)
			cancel()
			if err != nil {
				return
			}

		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), writeWait)
			err := c.conn.Ping(ctx)
			cancel()
			if err != nil {
				return
			}
		}
	}
}
