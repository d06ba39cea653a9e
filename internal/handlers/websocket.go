package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/arsallanShahab/chat-app/internal/chat"
	"github.com/arsallanShahab/chat-app/internal/config"
	"github.com/arsallanShahab/chat-app/pkg/logger"

	"github.com/gorilla/websocket"
)

type WebSocketHandlers struct {
	dispatcher *chat.Dispatcher
	cfg        *config.Config
	upgrader   websocket.Upgrader
	// onFatal is invoked when a connection goroutine panics; the server
	// treats that as process-fatal and shuts down in order.
	onFatal func()
}

func NewWebSocketHandlers(dispatcher *chat.Dispatcher, cfg *config.Config, onFatal func()) *WebSocketHandlers {
	return &WebSocketHandlers{
		dispatcher: dispatcher,
		cfg:        cfg,
		onFatal:    onFatal,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(cfg.Server.AllowedOrigins),
		},
	}
}

func (h *WebSocketHandlers) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Error("Upgrade error: %v", err)
		return
	}

	addr := clientAddr(r)
	logger.Info("New WebSocket connection from %s", addr)

	client := newWSClient(conn)
	sess := chat.NewSession(client, addr)

	go client.writePump(h.cfg.Chat.HeartbeatInterval)
	go h.readPump(client, sess)
}

func (h *WebSocketHandlers) readPump(client *wsClient, sess *chat.Session) {
	defer func() {
		if rec := recover(); rec != nil {
			logger.Error("Panic in connection handler: %v", rec)
			if h.onFatal != nil {
				h.onFatal()
			}
		}
	}()
	defer func() {
		client.close()
		h.dispatcher.HandleClose(context.Background(), sess)
	}()

	readWindow := 2 * h.cfg.Chat.HeartbeatInterval
	// Leave headroom for HTML escaping and frame fields on top of the
	// maximum message body.
	client.conn.SetReadLimit(int64(h.cfg.Chat.MaxMessageLength*6 + 1024))
	_ = client.conn.SetReadDeadline(time.Now().Add(readWindow))
	client.conn.SetPongHandler(func(string) error {
		_ = client.conn.SetReadDeadline(time.Now().Add(readWindow))
		h.dispatcher.Touch(sess)
		return nil
	})

	for {
		_, raw, err := client.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				logger.Error("WebSocket error: %v", err)
			}
			return
		}

		h.dispatcher.Dispatch(context.Background(), sess, raw)
	}
}

// wsClient wraps one gorilla connection behind the chat.Sender contract.
// Sends are queued onto a buffered channel drained by writePump, which is
// the connection's only writer.
type wsClient struct {
	conn      *websocket.Conn
	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

func newWSClient(conn *websocket.Conn) *wsClient {
	return &wsClient{
		conn: conn,
		send: make(chan []byte, 256),
		done: make(chan struct{}),
	}
}

// Send queues one frame without blocking the dispatch path. A closed
// connection or a full buffer is reported as a send failure, which the
// broadcaster treats as grounds for removal.
func (c *wsClient) Send(data []byte) error {
	select {
	case <-c.done:
		return errors.New("connection closed")
	default:
	}

	select {
	case c.send <- data:
		return nil
	default:
		return errors.New("send buffer full")
	}
}

func (c *wsClient) writePump(heartbeat time.Duration) {
	ticker := time.NewTicker(heartbeat)
	defer func() {
		ticker.Stop()
		c.close()
	}()

	for {
		select {
		case <-c.done:
			_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return

		case msg := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				logger.Error("Write error: %v", err)
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *wsClient) close() {
	c.closeOnce.Do(func() {
		close(c.done)
		_ = c.conn.Close()
	})
}

// clientAddr prefers the X-Forwarded-For header so rate limiting keys on
// the real client behind a proxy.
func clientAddr(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if i := strings.IndexByte(fwd, ','); i >= 0 {
			return strings.TrimSpace(fwd[:i])
		}
		return strings.TrimSpace(fwd)
	}
	return r.RemoteAddr
}

func originChecker(allowed []string) func(*http.Request) bool {
	allowAll := false
	set := make(map[string]struct{}, len(allowed))
	for _, origin := range allowed {
		if origin == "*" {
			allowAll = true
		}
		set[origin] = struct{}{}
	}

	return func(r *http.Request) bool {
		if allowAll {
			return true
		}
		origin := r.Header.Get("Origin")
		if origin == "" {
			// Same-origin and non-browser clients.
			return true
		}
		_, ok := set[origin]
		return ok
	}
}
