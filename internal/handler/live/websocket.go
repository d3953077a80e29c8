package live

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/zhouzirui/z-interrogation/backend/internal/service/interrogation"
)

const (
	readTimeout  = 60 * time.Second
	writeTimeout = 10 * time.Second
	pingInterval = 54 * time.Second
)

// Handler WebSocket 实时审讯通道：下发场景帧，接收选项与跳过指令。
type Handler struct {
	sessions *interrogation.Service
	upgrader websocket.Upgrader
}

// New 创建实时通道处理器
func New(sessions *interrogation.Service) *Handler {
	return &Handler{
		sessions: sessions,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
		},
	}
}

// RegisterRoutes 注册WebSocket路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/live/{sessionID}", h.handleLive)
}

type inboundMessage struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// ChoiceMessage 选项消息
type ChoiceMessage struct {
	Index *int `json:"index"`
}

type outgoingMessage struct {
	Type      string      `json:"type"`
	SessionID string      `json:"sessionId,omitempty"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp int64       `json:"timestamp"`
}

// liveConn serialises writes; gorilla connections allow one concurrent writer.
type liveConn struct {
	mu        sync.Mutex
	conn      *websocket.Conn
	sessionID string
}

func (c *liveConn) send(msgType string, data interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.conn.WriteJSON(outgoingMessage{
		Type:      msgType,
		SessionID: c.sessionID,
		Data:      data,
		Timestamp: time.Now().Unix(),
	})
}

func (c *liveConn) sendError(message string) {
	if err := c.send("error", map[string]string{"message": message}); err != nil {
		log.Printf("[websocket] write error failed: %v", err)
	}
}

func (c *liveConn) sendResult(data map[string]any) {
	if err := c.send("result", data); err != nil {
		log.Printf("[websocket] write result failed: %v", err)
	}
}

func (c *liveConn) ping() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout))
}

func (c *liveConn) closeNormal(reason string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, reason)
	_ = c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeTimeout))
}

// handleLive 处理WebSocket连接
func (h *Handler) handleLive(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	frames, unsubscribe, err := h.sessions.Subscribe(sessionID)
	if err != nil {
		if errors.Is(err, interrogation.ErrSessionNotFound) {
			http.Error(w, "session not found", http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusGone)
		return
	}
	defer unsubscribe()

	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[websocket] upgrade failed: %v", err)
		return
	}
	defer ws.Close()
	conn := &liveConn{conn: ws, sessionID: sessionID}

	log.Printf("[websocket] new connection for session: %s", sessionID)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	ws.SetReadDeadline(time.Now().Add(readTimeout))
	ws.SetPongHandler(func(string) error {
		ws.SetReadDeadline(time.Now().Add(readTimeout))
		return nil
	})

	go h.pumpFrames(ctx, cancel, conn, frames)
	go h.pingLoop(ctx, conn)

	for {
		var msg inboundMessage
		if err := ws.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				log.Printf("[websocket] read error: %v", err)
			}
			return
		}
		ws.SetReadDeadline(time.Now().Add(readTimeout))
		h.handleMessage(ctx, conn, &msg)
	}
}

func (h *Handler) handleMessage(ctx context.Context, conn *liveConn, msg *inboundMessage) {
	switch msg.Type {
	case "choice":
		var choice ChoiceMessage
		if err := json.Unmarshal(msg.Data, &choice); err != nil || choice.Index == nil {
			conn.sendError("invalid choice payload")
			return
		}
		if err := h.sessions.Choose(ctx, conn.sessionID, *choice.Index); err != nil {
			conn.sendError(err.Error())
			return
		}
		conn.sendResult(map[string]any{"action": "choice", "index": *choice.Index})
	case "skip":
		skipped, err := h.sessions.Skip(ctx, conn.sessionID)
		if err != nil {
			conn.sendError(err.Error())
			return
		}
		conn.sendResult(map[string]any{"action": "skip", "skipped": skipped})
	default:
		conn.sendError("unsupported message type: " + msg.Type)
	}
}

// pumpFrames forwards scene frames until the session or the connection ends.
func (h *Handler) pumpFrames(ctx context.Context, cancel context.CancelFunc, conn *liveConn, frames <-chan interrogation.Frame) {
	defer cancel()
	for {
		select {
		case <-ctx.Done():
			return
		case frame, ok := <-frames:
			if !ok {
				conn.closeNormal("session closed")
				conn.conn.Close()
				return
			}
			if err := conn.send("frame", frame); err != nil {
				log.Printf("[websocket] write frame failed: %v", err)
				conn.conn.Close()
				return
			}
		}
	}
}

// pingLoop 定期发送ping消息
func (h *Handler) pingLoop(ctx context.Context, conn *liveConn) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := conn.ping(); err != nil {
				return
			}
		}
	}
}
