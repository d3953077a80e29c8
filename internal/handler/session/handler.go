package session

import (
	"errors"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/zhouzirui/z-interrogation/backend/internal/service/dialogue"
	"github.com/zhouzirui/z-interrogation/backend/internal/service/interrogation"
	"github.com/zhouzirui/z-interrogation/backend/pkg/utils"
)

// Handler 审讯会话的HTTP处理器
type Handler struct {
	sessions *interrogation.Service
}

// New 创建会话处理器
func New(sessions *interrogation.Service) *Handler {
	return &Handler{sessions: sessions}
}

// RegisterRoutes 注册会话相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/session", h.handleCreateSession)
	r.Route("/session/{sessionID}", func(r chi.Router) {
		r.Get("/", h.handleGetFrame)
		r.Delete("/", h.handleCloseSession)
		r.Post("/choice", h.handleChoice)
		r.Post("/skip", h.handleSkip)
		r.Get("/transcript", h.handleTranscript)
	})
}

func (h *Handler) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		SubjectID string `json:"subjectId"`
	}
	if err := utils.DecodeJSON(r, &payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	session, err := h.sessions.CreateSession(r.Context(), payload.SubjectID)
	if err != nil {
		status := http.StatusInternalServerError
		switch {
		case errors.Is(err, interrogation.ErrSubjectRequired), errors.Is(err, interrogation.ErrSubjectNotFound):
			status = http.StatusBadRequest
		default:
			log.Printf("[session] create failed: %v", err)
		}
		utils.RespondError(w, status, err.Error())
		return
	}

	utils.RespondJSON(w, http.StatusCreated, session)
}

func (h *Handler) handleGetFrame(w http.ResponseWriter, r *http.Request) {
	frame, err := h.sessions.Frame(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, frame)
}

func (h *Handler) handleChoice(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Index *int `json:"index"`
	}
	if err := utils.DecodeJSON(r, &payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if payload.Index == nil {
		utils.RespondError(w, http.StatusBadRequest, "index is required")
		return
	}

	if err := h.sessions.Choose(r.Context(), chi.URLParam(r, "sessionID"), *payload.Index); err != nil {
		respondServiceError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

func (h *Handler) handleSkip(w http.ResponseWriter, r *http.Request) {
	skipped, err := h.sessions.Skip(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusAccepted, map[string]bool{"skipped": skipped})
}

func (h *Handler) handleTranscript(w http.ResponseWriter, r *http.Request) {
	entries, err := h.sessions.Transcript(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, entries)
}

func (h *Handler) handleCloseSession(w http.ResponseWriter, r *http.Request) {
	if err := h.sessions.Close(r.Context(), chi.URLParam(r, "sessionID")); err != nil {
		respondServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// respondServiceError 把服务层错误映射为HTTP状态码。
func respondServiceError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, interrogation.ErrSessionNotFound):
		status = http.StatusNotFound
	case errors.Is(err, interrogation.ErrSessionClosed):
		status = http.StatusGone
	case errors.Is(err, dialogue.ErrInvalidChoiceIndex):
		status = http.StatusBadRequest
	case errors.Is(err, dialogue.ErrNotAwaitingChoice):
		status = http.StatusConflict
	default:
		log.Printf("[session] request failed: %v", err)
	}
	utils.RespondError(w, status, err.Error())
}
