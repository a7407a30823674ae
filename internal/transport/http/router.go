package http

import (
	"net/http"
	"time"

	httpmw "github.com/collabcode/hub-service/internal/transport/http/middleware"
	"github.com/collabcode/hub-service/internal/transport/ws"

	"github.com/go-chi/chi/v5"
	middlewareChi "github.com/go-chi/chi/v5/middleware"
)

func NewRouter(h *Handler, verifier httpmw.TokenVerifier, wsServer *ws.Server) http.Handler {
	r := chi.NewRouter()
	r.Use(middlewareChi.RequestID)
	r.Use(middlewareChi.RealIP)
	r.Use(middlewareChi.Recoverer)
	r.Use(httpmw.Logging)

	// WS endpoint — токен приходит query-параметром, не заголовком
	r.Get("/ws/rooms/{id}", wsServer.HandleWS)

	r.Group(func(pr chi.Router) {
		pr.Use(httpmw.Auth(verifier))
		pr.Use(middlewareChi.Timeout(30 * time.Second))

		pr.Route("/rooms", func(rm chi.Router) {
			rm.Post("/", h.CreateRoom)
			rm.Get("/", h.ListRooms)

			rm.Route("/{id}", func(rr chi.Router) {
				rr.Get("/", h.GetRoom)
				rr.Delete("/", h.DeleteRoom)
				rr.Get("/participants", h.GetParticipants)
			})
		})
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	return r
}
