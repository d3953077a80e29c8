package stream

import (
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/zhouzirui/z-interrogation/backend/internal/service/interrogation"
	"github.com/zhouzirui/z-interrogation/backend/pkg/utils"
)

// DefaultHeartbeat 是没有新帧时发送心跳的间隔。
const DefaultHeartbeat = 15 * time.Second

// Handler 通过 Server-Sent Events 推送场景帧
type Handler struct {
	sessions  *interrogation.Service
	heartbeat time.Duration
}

// New creates a new stream handler
func New(sessions *interrogation.Service) *Handler {
	return &Handler{sessions: sessions, heartbeat: DefaultHeartbeat}
}

// RegisterRoutes 注册 SSE 路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/stream/{sessionID}", h.handleStream)
}

func (h *Handler) handleStream(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	flusher, ok := w.(http.Flusher)
	if !ok {
		utils.RespondError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	frames, unsubscribe, err := h.sessions.Subscribe(sessionID)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, interrogation.ErrSessionNotFound) {
			status = http.StatusNotFound
		} else if errors.Is(err, interrogation.ErrSessionClosed) {
			status = http.StatusGone
		}
		utils.RespondError(w, status, err.Error())
		return
	}
	defer unsubscribe()

	utils.SetupSSEHeaders(w)
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ctx := r.Context()
	log.Printf("[sse] opening frame stream for session=%s", sessionID)

	heartbeat := time.NewTicker(h.heartbeat)
	defer heartbeat.Stop()

	finished := false
	for {
		select {
		case <-ctx.Done():
			log.Printf("[sse] client left session=%s", sessionID)
			return
		case frame, ok := <-frames:
			if !ok {
				_ = utils.SendSSEEvent(w, flusher, "closed", "", map[string]string{"sessionId": sessionID})
				log.Printf("[sse] session closed, ending stream session=%s", sessionID)
				return
			}
			if err := utils.SendSSEEvent(w, flusher, "frame", strconv.FormatUint(frame.Seq, 10), frame); err != nil {
				log.Printf("[sse] write failed session=%s: %v", sessionID, err)
				return
			}
			if frame.Finished() && !finished {
				finished = true
				_ = utils.SendSSEEvent(w, flusher, "finished", "", map[string]string{"sessionId": sessionID})
			}
		case <-heartbeat.C:
			if err := utils.SendSSEComment(w, flusher, "heartbeat"); err != nil {
				return
			}
		}
	}
}
