package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"

	"review-extractor/extractor"
	"review-extractor/internal/metrics"
	"review-extractor/internal/types"
)

// ScrapeRequest represents the request body for POST /scrape
type ScrapeRequest struct {
	Company string   `json:"company"`
	Start   string   `json:"start"`
	End     string   `json:"end"`
	Source  string   `json:"source"`
	Proxies []string `json:"proxies,omitempty"`
}

// APIResponse represents the response from the API
type APIResponse struct {
	Success     bool             `json:"success"`
	Data        *types.RunResult `json:"data,omitempty"`
	Error       string           `json:"error,omitempty"`
	Suggestions []string         `json:"suggestions,omitempty"`
}

// Server holds the API server configuration
type Server struct {
	logger     *logrus.Logger
	config     *types.Config
	metrics    *metrics.Metrics
	runTimeout time.Duration
}

// NewServer creates a new API server. Runs triggered over HTTP never write files.
func NewServer(config *types.Config, logger *logrus.Logger) *Server {
	return &Server{
		logger:     logger,
		config:     config,
		metrics:    metrics.New(),
		runTimeout: 10 * time.Minute,
	}
}

// Routes builds the chi router
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RealIP)
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(cors)

	r.Post("/scrape", s.handleScrape)
	r.Options("/scrape", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	r.Get("/health", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", s.metrics.Handler())
	return r
}

func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		next.ServeHTTP(w, r)
	})
}

// handleScrape runs one synchronous scrape and returns the records
func (s *Server) handleScrape(w http.ResponseWriter, r *http.Request) {
	var body ScrapeRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.sendError(w, "Invalid request body", nil, http.StatusBadRequest)
		return
	}

	proxies := make([]types.ProxyEndpoint, 0, len(body.Proxies))
	for _, p := range body.Proxies {
		if ep := types.NormalizeProxy(p); ep != "" {
			proxies = append(proxies, ep)
		}
	}

	req, err := types.NewRequest(body.Company, body.Start, body.End, body.Source, proxies)
	if err != nil {
		s.sendError(w, err.Error(), nil, http.StatusBadRequest)
		return
	}

	s.logger.Infof("API request received: %s on %s (%s)", req.Company, req.Source, req.Range)

	ctx, cancel := context.WithTimeout(r.Context(), s.runTimeout)
	defer cancel()

	result, err := extractor.NewExtractor(s.config.Clone(), s.logger, s.metrics, nil).Run(ctx, req)
	if err != nil {
		var resErr *types.ResolutionError
		if errors.As(err, &resErr) {
			s.sendError(w, err.Error(), resErr.Suggestions, resolutionStatus(resErr.Kind))
			return
		}
		s.sendError(w, err.Error(), nil, http.StatusInternalServerError)
		return
	}

	s.writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: result})
}

func resolutionStatus(kind types.ResolutionKind) int {
	switch kind {
	case types.ResolutionNotFound:
		return http.StatusNotFound
	case types.ResolutionBlocked, types.ResolutionTransport:
		return http.StatusBadGateway
	}
	return http.StatusUnprocessableEntity
}

// sendError sends an error response
func (s *Server) sendError(w http.ResponseWriter, message string, suggestions []string, statusCode int) {
	s.writeJSON(w, statusCode, APIResponse{
		Success:     false,
		Error:       message,
		Suggestions: suggestions,
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, statusCode int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Errorf("Failed to encode response: %v", err)
	}
}

// handleHealth handles the health check endpoint
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}
