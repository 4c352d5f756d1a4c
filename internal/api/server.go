package api

import (
	"context"
	"io/fs"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	urengine "github.com/mstuts/ur-engine"
	"github.com/mstuts/ur-engine/internal/config"
	"github.com/mstuts/ur-engine/internal/database"
	"github.com/mstuts/ur-engine/internal/jobs"
	"github.com/mstuts/ur-engine/internal/metrics"
	"github.com/mstuts/ur-engine/internal/mqttclient"
	"github.com/mstuts/ur-engine/internal/pipeline"
	"github.com/mstuts/ur-engine/internal/storage"
)

// Deps bundles the subsystems the HTTP layer serves. DB, MQTT, Events,
// and WatcherStatus may be nil when the matching feature is disabled.
type Deps struct {
	Runner        *jobs.Runner
	Store         storage.AudioStore
	Engines       *pipeline.Engines
	DB            *database.DB
	MQTT          *mqttclient.Client
	Events        EventSource
	WatcherStatus func() any
}

type Server struct {
	http *http.Server
	log  zerolog.Logger
}

func NewServer(cfg *config.Config, deps Deps, version string, startTime time.Time, log zerolog.Logger) *Server {
	r := chi.NewRouter()

	// Global middleware
	r.Use(RequestID)
	r.Use(Recoverer)
	r.Use(Logger(log))
	r.Use(metrics.InstrumentHandler)
	r.Use(CORSWithOrigins(nil))

	// Health and metrics — no auth
	health := NewHealthHandler(deps.Engines, deps.DB, deps.MQTT, deps.WatcherStatus, version, startTime)
	r.Get("/api/v1/health", health.ServeHTTP)
	r.Handle("/metrics", promhttp.Handler())

	// Authenticated API routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(BearerAuth(cfg.AuthToken))
		r.Use(RateLimiter(20, 40))

		NewJobsHandler(deps.Runner, deps.Store, cfg.MaxUploadBytes, log).Routes(r)
		NewLanguagesHandler().Routes(r)
		NewEventsHandler(deps.Events).Routes(r)

		if deps.DB != nil {
			NewTranscriptionsHandler(deps.DB, deps.Store, log).Routes(r)
			r.Group(func(r chi.Router) {
				r.Use(RequireAuth(cfg.AuthToken))
				NewQueryHandler(deps.DB).Routes(r)
			})
		}
	})

	// Web UI from the embedded filesystem
	webFS, err := fs.Sub(urengine.WebFiles, "web")
	if err == nil {
		r.Handle("/*", http.FileServer(http.FS(webFS)))
	}

	return &Server{
		http: &http.Server{
			Addr:         cfg.HTTPAddr,
			Handler:      r,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
			IdleTimeout:  cfg.IdleTimeout,
		},
		log: log,
	}
}

func (s *Server) Start() error {
	s.log.Info().Str("addr", s.http.Addr).Msg("http server starting")
	err := s.http.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("http server shutting down")
	return s.http.Shutdown(ctx)
}
