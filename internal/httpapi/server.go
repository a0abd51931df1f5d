package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/BrandonDHaskell/Carguard/server/internal/carguard/service"
)

// defaultMaxUpload caps image uploads when Dependencies.MaxUploadBytes is unset.
const defaultMaxUpload = 8 << 20

type Dependencies struct {
	Logger *zap.Logger
	Addr   string

	Access     *service.AccessService
	Enrollment *service.EnrollmentService
	Gallery    *service.Gallery
	Config     *service.ConfigService
	Audit      *service.AuditLog
	Stats      *service.StatsService

	// Gatherer backs GET /metrics. Nil leaves the route unmounted.
	Gatherer prometheus.Gatherer

	// Reported by GET /v1/health.
	Backend         string
	EngineAvailable bool
	FallbackEnabled bool

	MaxUploadBytes int64
}

type Server struct {
	httpServer *http.Server
	logger     *zap.Logger
	validate   *validator.Validate

	access     *service.AccessService
	enrollment *service.EnrollmentService
	gallery    *service.Gallery
	config     *service.ConfigService
	audit      *service.AuditLog
	stats      *service.StatsService

	backend         string
	engineAvailable bool
	fallbackEnabled bool
	maxUpload       int64
}

func NewServer(d Dependencies) *Server {
	logger := d.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	maxUpload := d.MaxUploadBytes
	if maxUpload <= 0 {
		maxUpload = defaultMaxUpload
	}

	s := &Server{
		logger:          logger.Named("httpapi"),
		validate:        newValidator(),
		access:          d.Access,
		enrollment:      d.Enrollment,
		gallery:         d.Gallery,
		config:          d.Config,
		audit:           d.Audit,
		stats:           d.Stats,
		backend:         d.Backend,
		engineAvailable: d.EngineAvailable,
		fallbackEnabled: d.FallbackEnabled,
		maxUpload:       maxUpload,
	}

	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(s.logger))
	r.Use(chimw.Recoverer)

	r.Route("/v1", func(r chi.Router) {
		r.Post("/access", s.handleAccess)
		r.Post("/access/face", s.handleAccessFace)
		r.Post("/access/pin", s.handleAccessPIN)

		r.Get("/identities", s.handleListIdentities)
		r.Post("/identities", s.handleEnroll)
		r.Put("/identities/{id}/status", s.handleSetStatus)

		r.Get("/attempts", s.handleAttempts)
		r.Get("/stats", s.handleStats)

		r.Get("/config", s.handleGetConfig)
		r.Patch("/config", s.handleUpdateConfig)

		r.Get("/health", s.handleHealth)
	})

	if d.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{}))
	}

	s.httpServer = &http.Server{
		Addr:              d.Addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	return s
}

func (s *Server) Handler() http.Handler { return s.httpServer.Handler }

func (s *Server) Start() error {
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
