package subject

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/zhouzirui/z-interrogation/backend/internal/model/scene"
	"github.com/zhouzirui/z-interrogation/backend/pkg/utils"
)

// Handler 嫌疑人档案的HTTP处理器
type Handler struct {
	subjects scene.Store
}

// New 创建嫌疑人处理器
func New(subjects scene.Store) *Handler {
	return &Handler{subjects: subjects}
}

// RegisterRoutes 注册嫌疑人相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/subjects", h.handleListSubjects)
	r.Get("/subjects/{subjectID}", h.handleGetSubject)
}

func (h *Handler) handleListSubjects(w http.ResponseWriter, r *http.Request) {
	utils.RespondJSON(w, http.StatusOK, h.subjects.List())
}

func (h *Handler) handleGetSubject(w http.ResponseWriter, r *http.Request) {
	sub, ok := h.subjects.FindByID(chi.URLParam(r, "subjectID"))
	if !ok {
		utils.RespondError(w, http.StatusNotFound, "subject not found")
		return
	}
	utils.RespondJSON(w, http.StatusOK, sub)
}
