// Package websocket implements the reload broadcast hub. Browsers connect
// over WebSocket, complete the LiveReload handshake and then receive a
// reload command whenever the destination tree changes.
package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/coder/websocket"

	"github.com/conneroisu/assetwatch/internal/logging"
)

const (
	writeWait    = 10 * time.Second
	pingPeriod   = 54 * time.Second
	sendBuffer   = 64
	maxReadBytes = 4096
)

// OriginValidator interface for WebSocket origin validation
type OriginValidator interface {
	IsAllowedOrigin(origin string) bool
}

// AllowedHosts accepts origins whose host (port ignored) is listed. "*"
// accepts everything.
type AllowedHosts []string

// LoopbackHosts is the default allowlist.
var LoopbackHosts = AllowedHosts{"localhost", "127.0.0.1", "::1"}

// IsAllowedOrigin implements OriginValidator.
func (a AllowedHosts) IsAllowedOrigin(origin string) bool {
	u, err := url.Parse(origin)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https" && u.Scheme != "file") {
		return false
	}

	host := u.Hostname()
	for _, allowed := range a {
		if allowed == "*" || strings.EqualFold(allowed, host) {
			return true
		}
	}

	return false
}

// Manager handles all WebSocket connection management and broadcasting.
//
// A single hub goroutine owns the client set; registration, removal and
// fan-out all happen there, so a client's send channel is only ever closed
// by the hub.
type Manager struct {
	clients map[*Client]struct{}
	count   atomic.Int64

	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client

	originValidator OriginValidator
	serverName      string
	logger          logging.Logger

	ctx          context.Context
	cancel       context.CancelFunc
	shutdownOnce sync.Once
	hubDone      chan struct{}
}

// NewManager creates a manager and starts its hub.
func NewManager(originValidator OriginValidator, serverName string, logger logging.Logger) *Manager {
	if originValidator == nil {
		originValidator = LoopbackHosts
	}
	if logger == nil {
		logger = logging.Nop()
	}

	ctx, cancel := context.WithCancel(context.Background())

	m := &Manager{
		clients:         make(map[*Client]struct{}),
		broadcast:       make(chan []byte, 256),
		register:        make(chan *Client, 32),
		unregister:      make(chan *Client, 32),
		originValidator: originValidator,
		serverName:      serverName,
		logger:          logger.WithComponent("reload"),
		ctx:             ctx,
		cancel:          cancel,
		hubDone:         make(chan struct{}),
	}

	go m.runHub()

	return m
}

// HandleWebSocket upgrades the request and serves the client until it
// disconnects.
func (m *Manager) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	if m.ctx.Err() != nil {
		http.Error(w, "Service Unavailable", http.StatusServiceUnavailable)
		return
	}

	origin := r.Header.Get("Origin")
	if origin != "" && !m.originValidator.IsAllowedOrigin(origin) {
		m.logger.Warn(r.Context(), nil, "WebSocket connection rejected", "origin", origin, "remote", r.RemoteAddr)
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		// Origins were validated above.
		OriginPatterns:  []string{"*"},
		CompressionMode: websocket.CompressionDisabled,
	})
	if err != nil {
		m.logger.Warn(r.Context(), err, "WebSocket upgrade failed", "remote", r.RemoteAddr)
		return
	}
	conn.SetReadLimit(maxReadBytes)

	client := &Client{
		conn:   conn,
		send:   make(chan []byte, sendBuffer),
		remote: r.RemoteAddr,
	}

	select {
	case m.register <- client:
	case <-m.ctx.Done():
		conn.Close(websocket.StatusGoingAway, "server shutting down")
		return
	}

	go m.writeToClient(client)
	m.readFromClient(client)

	select {
	case m.unregister <- client:
	case <-m.ctx.Done():
	}
}

func (m *Manager) runHub() {
	defer close(m.hubDone)

	for {
		select {
		case client := <-m.register:
			m.clients[client] = struct{}{}
			m.count.Store(int64(len(m.clients)))
			m.logger.Info(m.ctx, "Reload client connected", "remote", client.remote, "clients", len(m.clients))

		case client := <-m.unregister:
			m.drop(client)

		case message := <-m.broadcast:
			for client := range m.clients {
				select {
				case client.send <- message:
				default:
					// Too slow to keep up.
					m.drop(client)
				}
			}

		case <-m.ctx.Done():
			for client := range m.clients {
				close(client.send)
				client.conn.Close(websocket.StatusGoingAway, "server shutting down")
			}
			m.clients = make(map[*Client]struct{})
			m.count.Store(0)
			return
		}
	}
}

func (m *Manager) drop(client *Client) {
	if _, ok := m.clients[client]; !ok {
		return
	}
	delete(m.clients, client)
	close(client.send)
	m.count.Store(int64(len(m.clients)))
	m.logger.Info(m.ctx, "Reload client disconnected", "remote", client.remote, "clients", len(m.clients))
}

// readFromClient answers the LiveReload handshake and otherwise ignores
// client chatter. It returns when the connection fails or closes.
func (m *Manager) readFromClient(client *Client) {
	for {
		_, data, err := client.conn.Read(m.ctx)
		if err != nil {
			status := websocket.CloseStatus(err)
			if status != websocket.StatusNormalClosure && status != websocket.StatusGoingAway && m.ctx.Err() == nil {
				m.logger.Debug(m.ctx, "WebSocket read ended", "remote", client.remote, "error", err.Error())
			}
			return
		}

		var cmd Command
		if err := json.Unmarshal(data, &cmd); err != nil {
			continue
		}

		if cmd.Command == "hello" {
			if err := m.write(client, Hello(m.serverName)); err != nil {
				return
			}
		}
	}
}

func (m *Manager) writeToClient(client *Client) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case message, ok := <-client.send:
			if !ok {
				client.conn.Close(websocket.StatusNormalClosure, "")
				return
			}

			ctx, cancel := context.WithTimeout(m.ctx, writeWait)
			err := client.conn.Write(ctx, websocket.MessageText, message)
			cancel()
			if err != nil {
				client.conn.Close(websocket.StatusInternalError, "write failed")
				return
			}

		case <-ticker.C:
			ctx, cancel := context.WithTimeout(m.ctx, writeWait)
			err := client.conn.Ping(ctx)
			cancel()
			if err != nil {
				client.conn.Close(websocket.StatusGoingAway, "ping failed")
				return
			}

		case <-m.ctx.Done():
			return
		}
	}
}

func (m *Manager) write(client *Client, cmd Command) error {
	data, err := json.Marshal(cmd)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(m.ctx, writeWait)
	defer cancel()

	return client.conn.Write(ctx, websocket.MessageText, data)
}

// Broadcast queues cmd for every connected client.
func (m *Manager) Broadcast(cmd Command) {
	data, err := json.Marshal(cmd)
	if err != nil {
		m.logger.Error(m.ctx, err, "Failed to marshal broadcast message")
		return
	}

	select {
	case m.broadcast <- data:
	case <-m.ctx.Done():
	default:
		m.logger.Warn(m.ctx, nil, "Broadcast channel full, dropping message", "command", cmd.Command)
	}
}

// ClientCount returns the number of connected clients.
func (m *Manager) ClientCount() int {
	return int(m.count.Load())
}

// Shutdown disconnects every client and stops the hub.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.shutdownOnce.Do(m.cancel)

	select {
	case <-m.hubDone:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
