package transport

import (
	"errors"
	"net/http"
	"time"
	"unicode/utf8"

	"github.com/gorilla/websocket"
)

// Control frames carry at most 125 bytes; two of them hold the close code.
const maxCloseTextLen = 123

// WebSocketConfig tunes the websocket adapter.
type WebSocketConfig struct {
	ReadLimit    int64         // maximum inbound frame size in bytes, 0 for no limit
	WriteTimeout time.Duration // deadline applied to every write
}

// WebSocket is a Channel backed by a gorilla/websocket connection.
type WebSocket struct {
	conn         *websocket.Conn
	writeTimeout time.Duration
}

// NewWebSocket wraps an established websocket connection.
func NewWebSocket(conn *websocket.Conn, cfg WebSocketConfig) *WebSocket {
	if cfg.ReadLimit > 0 {
		conn.SetReadLimit(cfg.ReadLimit)
	}
	return &WebSocket{conn: conn, writeTimeout: cfg.WriteTimeout}
}

// Upgrader performs the HTTP upgrade handshake and wraps the result.
type Upgrader struct {
	upgrader websocket.Upgrader
	cfg      WebSocketConfig
}

// NewUpgrader returns an Upgrader that accepts every origin; this core has no
// handshake or auth gate.
func NewUpgrader(cfg WebSocketConfig) *Upgrader {
	return &Upgrader{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		cfg: cfg,
	}
}

// Upgrade upgrades the HTTP connection. On failure the upgrader has already
// replied to the client with an HTTP error.
func (u *Upgrader) Upgrade(w http.ResponseWriter, r *http.Request) (*WebSocket, error) {
	conn, err := u.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil, err
	}
	return NewWebSocket(conn, u.cfg), nil
}

func (w *WebSocket) ReadFrame() (Frame, error) {
	mt, data, err := w.conn.ReadMessage()
	if err != nil {
		var ce *websocket.CloseError
		if errors.As(err, &ce) {
			return Frame{}, &CloseError{Code: ce.Code, Text: ce.Text}
		}
		return Frame{}, err
	}
	return Frame{Text: mt == websocket.TextMessage, Data: data}, nil
}

func (w *WebSocket) WriteText(data []byte) error {
	if w.writeTimeout > 0 {
		if err := w.conn.SetWriteDeadline(time.Now().Add(w.writeTimeout)); err != nil {
			return err
		}
	}
	return w.conn.WriteMessage(websocket.TextMessage, data)
}

func (w *WebSocket) WriteClose(code int, text string) error {
	deadline := time.Time{}
	if w.writeTimeout > 0 {
		deadline = time.Now().Add(w.writeTimeout)
	}
	msg := websocket.FormatCloseMessage(code, truncateCloseText(text))
	return w.conn.WriteControl(websocket.CloseMessage, msg, deadline)
}

func (w *WebSocket) Close() error {
	return w.conn.Close()
}

func (w *WebSocket) RemoteAddr() string {
	return w.conn.RemoteAddr().String()
}

// truncateCloseText cuts text to fit a close frame without splitting a rune.
func truncateCloseText(text string) string {
	if len(text) <= maxCloseTextLen {
		return text
	}
	cut := maxCloseTextLen
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	return text[:cut]
}
