package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	v1 "github.com/PaulBabatuyi/tumatch-chat/api/chat/v1"
	"github.com/PaulBabatuyi/tumatch-chat/internal/auth"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = pongWait * 9 / 10
	maxMessageSize = 16 << 10
	sendBuffer     = 256
)

var errSlowConsumer = errors.New("send buffer full")

// wsConn is one browser connection. All writes go through send, drained by writer.
type wsConn struct {
	ws   *websocket.Conn
	send chan []byte

	closeOnce sync.Once
	done      chan struct{}
}

// Send queues ev for the writer. A full buffer means the client is not keeping up; the
// event is dropped and the error makes the registry forget the connection.
func (c *wsConn) Send(ev *v1.ServerEvent) error {
	b, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	select {
	case <-c.done:
		return websocket.ErrCloseSent
	default:
	}
	select {
	case c.send <- b:
		return nil
	default:
		c.close()
		return errSlowConsumer
	}
}

func (c *wsConn) close() {
	c.closeOnce.Do(func() { close(c.done) })
}

func (c *wsConn) writer() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.ws.Close()
	}()
	for {
		select {
		case msg := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.TextMessage, msg); err != nil {
				c.close()
				return
			}
		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.close()
				return
			}
		case <-c.done:
			_ = c.ws.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
			return
		}
	}
}

// wsHandler serves the real-time channel over WebSocket with the same JSON events as
// the gRPC Events stream.
type wsHandler struct {
	srv      *Server
	jwt      *auth.JWTManager
	upgrader websocket.Upgrader
}

func newWSHandler(srv *Server, jwt *auth.JWTManager, allowedOrigins []string) *wsHandler {
	h := &wsHandler{srv: srv, jwt: jwt}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     originChecker(allowedOrigins),
	}
	return h
}

// originChecker accepts any origin when allowed is empty.
func originChecker(allowed []string) func(*http.Request) bool {
	if len(allowed) == 0 {
		return func(*http.Request) bool { return true }
	}
	set := make(map[string]bool, len(allowed))
	for _, o := range allowed {
		set[strings.TrimRight(o, "/")] = true
	}
	return func(r *http.Request) bool {
		return set[r.Header.Get("Origin")]
	}
}

// tokenFromRequest reads the token from the Authorization header, the "token" cookie or
// the "token" query parameter, in that order.
func tokenFromRequest(r *http.Request) string {
	if t := bearerToken(r.Header.Get("Authorization")); t != "" {
		return t
	}
	if c, err := r.Cookie("token"); err == nil && c.Value != "" {
		return c.Value
	}
	return r.URL.Query().Get("token")
}

func (h *wsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	token := tokenFromRequest(r)
	if token == "" {
		http.Error(w, "401 - Unauthorized", http.StatusUnauthorized)
		return
	}
	claims, err := h.jwt.VerifyToken(token)
	if err != nil {
		http.Error(w, "401 - Unauthorized", http.StatusUnauthorized)
		return
	}

	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Errorf("error upgrading to websockets: %v", err)
		return
	}

	c := &wsConn{ws: ws, send: make(chan []byte, sendBuffer), done: make(chan struct{})}
	sess := h.srv.newSession(claims.UserID, c)
	log.Debugf("websocket %s opened for %s", sess.ID(), claims.UserID)

	go c.writer()
	defer func() {
		sess.Close()
		c.close()
	}()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	ws.SetReadLimit(maxMessageSize)
	_ = ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, msg, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Debugf("websocket %s: %v", sess.ID(), err)
			}
			return
		}
		var ev v1.ClientEvent
		if err := json.Unmarshal(msg, &ev); err != nil {
			log.Debugf("websocket %s: malformed event: %v", sess.ID(), err)
			continue
		}
		if ack := sess.Handle(ctx, &ev); ack != nil {
			if err := c.Send(ack); err != nil {
				return
			}
		}
	}
}

// healthz reports whether the process is serving.
func healthz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	_, _ = w.Write([]byte("ok"))
}

func newHTTPMux(ws http.Handler) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/ws", ws)
	mux.HandleFunc("/healthz", healthz)
	return mux
}
