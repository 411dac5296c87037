package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/groupbot-dev/groupbot/internal/biz/usecase"
)

// Server provides a read-only local HTTP API for operators and the MCP server
type Server struct {
	statusUC *usecase.StatusUsecase
	groupUC  *usecase.GroupUsecase
	logger   zerolog.Logger

	server *http.Server
	port   int
}

// StatusResponse is the body of GET /api/status
type StatusResponse struct {
	Now           time.Time `json:"now"`
	UptimeSeconds int64     `json:"uptime_seconds"`
	MemoryBytes   uint64    `json:"memory_bytes"`
	Memory        string    `json:"memory"`
	Messages      int       `json:"messages"`
	Report        string    `json:"report"`
}

// Group is a managed group in GET /api/groups
type Group struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Size int    `json:"size"`
}

// GroupsResponse is the body of GET /api/groups
type GroupsResponse struct {
	Groups []Group `json:"groups"`
}

// LatencyResponse is the body of GET /api/latency
type LatencyResponse struct {
	Known          bool    `json:"known"`
	LatencySeconds float64 `json:"latency_seconds"`
	Formatted      string  `json:"formatted"`
}

// NewServer creates a new API server
func NewServer(statusUC *usecase.StatusUsecase, groupUC *usecase.GroupUsecase, port int, logger zerolog.Logger) *Server {
	return &Server{
		statusUC: statusUC,
		groupUC:  groupUC,
		logger:   logger,
		port:     port,
	}
}

// Router builds the HTTP routes
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(requestLogger(s.logger))
	r.Use(chimw.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Get("/status", s.handleStatus)
		r.Get("/groups", s.handleGroups)
		r.Get("/latency", s.handleLatency)
	})
	return r
}

// Start starts the HTTP server on the loopback interface
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:              fmt.Sprintf("127.0.0.1:%d", s.port),
		Handler:           s.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	s.logger.Info().Int("port", s.port).Msg("starting HTTP API")
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop stops the HTTP server
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

// GetPort returns the server port
func (s *Server) GetPort() int {
	return s.port
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	snap := s.statusUC.Snapshot()
	s.writeJSON(w, StatusResponse{
		Now:           snap.Now,
		UptimeSeconds: int64(snap.Uptime / time.Second),
		MemoryBytes:   snap.MemoryBytes,
		Memory:        humanize.IBytes(snap.MemoryBytes),
		Messages:      snap.Messages,
		Report:        snap.String(),
	})
}

func (s *Server) handleGroups(w http.ResponseWriter, r *http.Request) {
	groups, err := s.groupUC.List(r.Context(), false)
	if err != nil {
		s.writeError(w, err)
		return
	}

	resp := GroupsResponse{Groups: make([]Group, 0, len(groups))}
	for _, g := range groups {
		resp.Groups = append(resp.Groups, Group{ID: g.ID, Name: g.Name, Size: g.Size})
	}
	s.writeJSON(w, resp)
}

func (s *Server) handleLatency(w http.ResponseWriter, r *http.Request) {
	latency, known := s.statusUC.LastLatency()
	s.writeJSON(w, LatencyResponse{
		Known:          known,
		LatencySeconds: latency.Seconds(),
		Formatted:      usecase.FormatLatency(latency),
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusInternalServerError)
	json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}

// requestLogger logs each request at debug level
func requestLogger(logger zerolog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)

			defer func() {
				logger.Debug().
					Str("method", r.Method).
					Str("path", r.URL.Path).
					Int("status", ww.Status()).
					Dur("latency", time.Since(start)).
					Str("request_id", chimw.GetReqID(r.Context())).
					Msg("request completed")
			}()

			next.ServeHTTP(ww, r)
		})
	}
}
