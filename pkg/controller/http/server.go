package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/secmon-lab/mnemosyne/pkg/usecase"
	"github.com/secmon-lab/mnemosyne/pkg/utils/logging"
)

type Server struct {
	router *chi.Mux
	uc     *usecase.UseCases
}

func New(uc *usecase.UseCases) *Server {
	r := chi.NewRouter()

	s := &Server{
		router: r,
		uc:     uc,
	}

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(accessLogger)
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Get("/stats", s.handleStats)

		r.Route("/memory", func(r chi.Router) {
			r.Post("/", s.handleRemember)
			r.Post("/search", s.handleSearch)
			r.Post("/graph", s.handleMemoryGraph)
			r.Post("/chains", s.handleReasoningChains)
			r.Get("/concept/{type}", s.handleSearchByConcept)

			r.Route("/{memoryID}", func(r chi.Router) {
				r.Get("/", s.handleGetMemory)
				r.Put("/", s.handleUpdateMemory)
				r.Delete("/", s.handleDeleteMemory)
			})
		})

		r.Route("/think", func(r chi.Router) {
			r.Post("/", s.handleThinkStart)

			r.Route("/{sessionID}", func(r chi.Router) {
				r.Get("/", s.handleThinkStatus)
				r.Post("/thoughts", s.handleThinkAdd)
				r.Post("/recall", s.handleThinkRecall)
				r.Post("/conclude", s.handleThinkConclude)
				r.Post("/commit", s.handleThinkCommit)
				r.Post("/discard", s.handleThinkDiscard)
			})
		})
	})

	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(r.Context(), w, http.StatusOK, map[string]string{"status": "ok"})
}

// accessLogger is a middleware that logs HTTP requests
func accessLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		defer func() {
			logging.Default().Info("access",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
				"remote", r.RemoteAddr,
				"user_agent", r.UserAgent(),
			)
		}()

		next.ServeHTTP(ww, r)
	})
}
