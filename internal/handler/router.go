package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/zhouzirui/z-interrogation/backend/internal/handler/live"
	"github.com/zhouzirui/z-interrogation/backend/internal/handler/session"
	"github.com/zhouzirui/z-interrogation/backend/internal/handler/stream"
	"github.com/zhouzirui/z-interrogation/backend/internal/handler/subject"
	middlewarePkg "github.com/zhouzirui/z-interrogation/backend/internal/middleware"
	"github.com/zhouzirui/z-interrogation/backend/internal/model/scene"
	"github.com/zhouzirui/z-interrogation/backend/internal/service/interrogation"
	"github.com/zhouzirui/z-interrogation/backend/pkg/utils"
)

// NewRouter wires HTTP routes to core services.
func NewRouter(subjects scene.Store, sessions *interrogation.Service) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		utils.RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(api chi.Router) {
		subject.New(subjects).RegisterRoutes(api)
		session.New(sessions).RegisterRoutes(api)

		// 帧推送：SSE 只读，WebSocket 双向
		stream.New(sessions).RegisterRoutes(api)
		live.New(sessions).RegisterRoutes(api)
	})

	return r
}
