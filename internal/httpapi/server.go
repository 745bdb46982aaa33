// Package httpapi is the thin HTTP surface over the interview pipeline.
package httpapi

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/rs/cors"

	"github.com/prepdeck/interview-coach/internal/events"
	"github.com/prepdeck/interview-coach/internal/interview"
	"github.com/prepdeck/interview-coach/internal/metrics"
	"github.com/prepdeck/interview-coach/internal/pipeline"
)

type Config struct {
	Host           string
	Port           int
	AllowedOrigins []string // CORS origins for the browser frontend
}

type Server struct {
	config   Config
	pipeline *pipeline.Pipeline
	records  interview.Store
	hub      *events.Hub
	stats    *metrics.Pipeline
	httpSrv  *http.Server
}

func New(cfg Config, p *pipeline.Pipeline, records interview.Store, hub *events.Hub, stats *metrics.Pipeline) *Server {
	s := &Server{
		config:   cfg,
		pipeline: p,
		records:  records,
		hub:      hub,
		stats:    stats,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /interviews", s.handleCreate)
	mux.HandleFunc("GET /interviews", s.handleList)
	mux.HandleFunc("GET /interviews/{id}", s.handleGet)
	mux.HandleFunc("DELETE /interviews/{id}", s.handleDelete)
	mux.HandleFunc("POST /interviews/{id}/upload", s.handleUpload)
	mux.HandleFunc("POST /interviews/{id}/transcribe", s.handleTranscribe)
	mux.HandleFunc("GET /interviews/{id}/transcript", s.handleTranscript)
	mux.HandleFunc("POST /interviews/{id}/feedback", s.handleFeedback)
	mux.HandleFunc("POST /interviews/{id}/abandon", s.handleAbandon)
	mux.HandleFunc("GET /interviews/{id}/events", s.handleEvents)
	mux.HandleFunc("GET /stats", s.handleStats)
	mux.HandleFunc("GET /healthz", s.handleHealth)

	handler := cors.New(cors.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete},
		AllowedHeaders: []string{"Content-Type"},
	}).Handler(mux)

	s.httpSrv = &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler: handler,
		// No global write timeout: transcription requests legitimately
		// block for minutes while the recognition job runs.
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler exposes the routed handler for tests.
func (s *Server) Handler() http.Handler {
	return s.httpSrv.Handler
}

func (s *Server) Start() error {
	log.Printf("HTTP server listening on %s", s.httpSrv.Addr)
	if err := s.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Stop() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.httpSrv.Shutdown(ctx); err != nil {
		log.Printf("HTTP shutdown: %v", err)
	}
}
