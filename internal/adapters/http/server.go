// Package httpadapter exposes the milk bank service over a JSON HTTP API.
package httpadapter

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"milkbank/internal/archive"
	"milkbank/internal/blob"
	"milkbank/internal/core"
)

// Archive is the traceability archive surface used by the API.
type Archive interface {
	Snapshot(ctx context.Context) (blob.Info, error)
	List(ctx context.Context) ([]blob.Info, error)
	Restore(ctx context.Context, key string) (archive.Document, error)
}

// Server routes HTTP requests to the core service.
type Server struct {
	svc     *core.Service
	archive Archive
	metrics prometheus.Gatherer
	logger  *zap.Logger
}

// Option configures a Server.
type Option func(*Server)

// WithArchive mounts the archive endpoints.
func WithArchive(a Archive) Option { return func(s *Server) { s.archive = a } }

// WithMetrics mounts /metrics for the gatherer.
func WithMetrics(g prometheus.Gatherer) Option { return func(s *Server) { s.metrics = g } }

// WithLogger sets the request logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// New constructs a Server over svc.
func New(svc *core.Service, opts ...Option) *Server {
	s := &Server{svc: svc, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Routes returns the chi router for the API.
func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if s.metrics != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.metrics, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/donors", func(r chi.Router) {
			r.Get("/", s.listDonors)
			r.Post("/", s.registerDonor)
			r.Get("/{id}", s.getDonor)
			r.Patch("/{id}", s.updateDonor)
			r.Put("/{id}/status", s.setDonorStatus)
		})
		r.Route("/recipients", func(r chi.Router) {
			r.Get("/", s.listRecipients)
			r.Post("/", s.registerRecipient)
			r.Get("/{id}", s.getRecipient)
		})
		r.Route("/bottles", func(r chi.Router) {
			r.Get("/", s.listBottles)
			r.Post("/", s.collectBottle)
			r.Get("/free", s.freeBottles)
			r.Get("/{id}", s.getBottle)
			r.Post("/{id}/discard", s.discardBottle)
		})
		r.Route("/batches", func(r chi.Router) {
			r.Get("/", s.listBatches)
			r.Post("/", s.conformBatch)
			r.Get("/available", s.availableBatches)
			r.Get("/{id}", s.getBatch)
			r.Put("/{id}/status", s.setBatchStatus)
			r.Get("/{id}/bottles", s.batchBottles)
			r.Get("/{id}/ledger", s.batchLedger)
			r.Post("/{id}/bottles/{bottleID}/physical-inspection", s.recordPhysical)
			r.Post("/{id}/bottles/{bottleID}/quality-control", s.recordQuality)
			r.Post("/{id}/administrations", s.administer)
			r.Post("/{id}/discards", s.discard)
		})
		if s.archive != nil {
			r.Route("/archives", func(r chi.Router) {
				r.Get("/", s.listArchives)
				r.Post("/", s.createArchive)
				r.Post("/restore", s.restoreArchive)
			})
		}
	})
	return r
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Info("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())))
	})
}
