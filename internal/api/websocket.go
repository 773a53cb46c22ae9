package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"bellavista/internal/models"
	"bellavista/internal/session"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 30 * time.Second
	readLimit  = 64 * 1024
)

// WebSocket upgrader configuration
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // the storefront is served from other origins in development
	},
}

// ClientMessage is a frame sent by the browser over the session stream.
type ClientMessage struct {
	Type  string `json:"type"` // "message" or "clear"
	Text  string `json:"text,omitempty"`
	Voice bool   `json:"voice,omitempty"`
}

// wsConnection streams one session transcript to a browser
type wsConnection struct {
	conn        *websocket.Conn
	ctrl        *session.Controller
	messages    <-chan models.ChatMessage
	unsubscribe func()
	errors      chan []byte
	logger      *zap.Logger
}

// StreamSession upgrades to a websocket that pushes every delivered chat message and accepts
// chat input frames.
func (s *Storefront) StreamSession(c *gin.Context) {
	ctrl, ok := s.session(c)
	if !ok {
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Warn("failed to upgrade connection", zap.Error(err))
		return
	}

	messages, unsubscribe := ctrl.Subscribe()
	ws := &wsConnection{
		conn:        conn,
		ctrl:        ctrl,
		messages:    messages,
		unsubscribe: unsubscribe,
		errors:      make(chan []byte, 16),
		logger:      s.logger.With(zap.String("session", ctrl.ID())),
	}

	go ws.writePump()
	go ws.readPump()
}

// readPump pumps frames from the websocket connection into the session
func (w *wsConnection) readPump() {
	defer func() {
		w.unsubscribe()
		w.conn.Close()
	}()

	w.conn.SetReadLimit(readLimit)
	w.conn.SetReadDeadline(time.Now().Add(pongWait))
	w.conn.SetPongHandler(func(string) error {
		w.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := w.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				w.logger.Warn("websocket error", zap.Error(err))
			}
			return
		}
		w.handleFrame(data)
	}
}

// handleFrame runs turns in the background so a newer frame can supersede a pending one.
func (w *wsConnection) handleFrame(data []byte) {
	var msg ClientMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		w.sendError("invalid frame: " + err.Error())
		return
	}

	switch msg.Type {
	case "message", "":
		if strings.TrimSpace(msg.Text) == "" {
			w.sendError("text must not be empty")
			return
		}
		go func() {
			if err := w.ctrl.HandleInput(context.Background(), msg.Text, msg.Voice); err != nil {
				w.sendError(err.Error())
			}
		}()
	case "clear":
		go func() {
			if err := w.ctrl.ClearChat(context.Background()); err != nil {
				w.sendError(err.Error())
			}
		}()
	default:
		w.sendError("unknown frame type: " + msg.Type)
	}
}

// writePump pushes session messages and errors to the websocket connection
func (w *wsConnection) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		w.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-w.messages:
			w.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				w.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := w.conn.WriteJSON(msg); err != nil {
				return
			}
		case data := <-w.errors:
			w.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := w.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			w.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := w.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// sendError queues an error frame for the client
func (w *wsConnection) sendError(message string) {
	data, _ := json.Marshal(map[string]string{"error": message})
	select {
	case w.errors <- data:
	default:
		w.logger.Warn("websocket buffer full, dropping error message")
	}
}
