// Package api exposes the loader over HTTP so an extraction job can push
// sheets without shelling out to the CLI.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/siglatools/sigla/internal/loader"
	"github.com/siglatools/sigla/internal/sheet"
)

// maxBodyBytes bounds the size of an uploaded batch
const maxBodyBytes = 32 << 20

// Loader is the part of *loader.Loader the server drives
type Loader interface {
	Load(ctx context.Context, p *sheet.Payload) (*loader.Report, error)
	CleanUp(ctx context.Context) (map[string]int64, error)
}

// Server routes intake requests to a single loader. Requests are handled one
// at a time since loads assume a single writer.
type Server struct {
	router chi.Router
	loader Loader
	logger *zap.Logger
	mu     sync.Mutex
}

// NewServer builds the router
func NewServer(l Loader, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{loader: l, logger: logger}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(requestLogger(logger))
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Route("/v1", func(r chi.Router) {
		r.Post("/sheets", s.handleLoad)
		r.Delete("/documents", s.handleCleanUp)
	})

	s.router = r
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// SheetResult is the outcome of one payload of a batch
type SheetResult struct {
	SheetTitle string         `json:"sheet_title"`
	Report     *loader.Report `json:"report,omitempty"`
	Error      string         `json:"error,omitempty"`
}

// LoadResponse is the body returned by POST /v1/sheets
type LoadResponse struct {
	Results []SheetResult `json:"results"`
	// Aborted is set when a store failure stopped the batch
	Aborted bool `json:"aborted,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleLoad(w http.ResponseWriter, r *http.Request) {
	payloads, err := sheet.Decode(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	resp := LoadResponse{Results: make([]SheetResult, 0, len(payloads))}
	status := http.StatusOK
	for _, p := range payloads {
		report, err := s.loader.Load(r.Context(), p)
		result := SheetResult{SheetTitle: p.SheetTitle}
		if err != nil {
			result.Error = err.Error()
			s.logger.Warn("sheet failed", zap.String("sheet", p.SheetTitle), zap.Error(err))
		} else {
			result.Report = report
		}
		resp.Results = append(resp.Results, result)

		if err == nil {
			continue
		}
		if status == http.StatusOK {
			status = statusFor(err)
		}
		if !loader.IsDataError(err) {
			status = http.StatusInternalServerError
			resp.Aborted = true
			break
		}
	}

	writeJSON(w, status, resp)
}

func (s *Server) handleCleanUp(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	deleted, err := s.loader.CleanUp(r.Context())
	if err != nil {
		s.logger.Error("clean up failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"deleted": deleted})
}

// statusFor maps a load error to the status reported for the batch
func statusFor(err error) int {
	switch {
	case errors.Is(err, loader.ErrUnrecognizedFormat):
		return http.StatusUnprocessableEntity
	case errors.Is(err, loader.ErrDocumentNotFound),
		errors.Is(err, loader.ErrAmbiguousReference),
		errors.Is(err, loader.ErrMalformedRow):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{
		"error":   http.StatusText(status),
		"message": err.Error(),
	})
}
