package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/DoyleJ11/tourney/internal/hub"
	"github.com/DoyleJ11/tourney/internal/replicated"
	"github.com/DoyleJ11/tourney/internal/ws"
)

type Deps struct {
	Logger *zap.SugaredLogger
	// Lobbies enables GET /lobby. Nil when no store is configured.
	Lobbies    *replicated.Client
	LobbyLimit int
	Checks     map[string]Checker
	WSOptions  []ws.Option
}

func SetupRoutes(h *hub.Hub, deps Deps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	checks := map[string]Checker{"hub": HubChecker(h)}
	for name, c := range deps.Checks {
		checks[name] = c
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(logger))
	r.Use(middleware.Recoverer)

	// Public routes
	r.Post("/tournaments", CreateTournament(h, logger))
	r.Get("/tournaments/{code}", GetTournament(h))
	r.Get("/ws", ws.Handler(h, logger.Named("ws"), deps.WSOptions...))
	if deps.Lobbies != nil {
		r.Get("/lobby", ListLobby(deps.Lobbies, deps.LobbyLimit))
	}
	r.Get("/healthz", Healthz(logger, checks))
	return r
}

func requestLogger(logger *zap.SugaredLogger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			defer func() {
				logger.Infow("http request",
					"method", r.Method,
					"path", r.URL.Path,
					"status", ww.Status(),
					"bytes", ww.BytesWritten(),
					"duration_ms", time.Since(start).Milliseconds(),
					"request_id", middleware.GetReqID(r.Context()),
				)
			}()

			next.ServeHTTP(ww, r)
		})
	}
}
