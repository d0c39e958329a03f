// Package httpapi exposes the certificate workflow over HTTP for
// workflow-automation callers. Responses carry the document inline as
// base64 so callers never need filesystem access.
package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/mail"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"go.uber.org/zap"

	cleanhands "github.com/justmg/dc-clean-hands-docker-api"
)

// Runner executes one certificate-validation episode. *cleanhands.Agent
// satisfies it; tests substitute a fake.
type Runner interface {
	Run(ctx context.Context, notice, last4 string) (*cleanhands.WorkflowResult, error)
}

// Server is the HTTP front end. Episodes run synchronously within the
// request; the caller is expected to use a generous client timeout.
type Server struct {
	runner       Runner
	artifactsDir string
	logger       *zap.Logger
	router       chi.Router
}

// New builds a Server routing requests to runner. Artifacts served by the
// download endpoints are read from artifactsDir.
func New(runner Runner, artifactsDir string, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		runner:       runner,
		artifactsDir: artifactsDir,
		logger:       logger.Named("httpapi"),
	}

	r := chi.NewRouter()
	r.Use(s.requestID)
	r.Use(s.logRequests)
	r.Use(middleware.Recoverer)

	r.Get("/", s.handleRoot)
	r.Get("/health", s.handleHealth)
	r.Post("/check-clean-hands", s.handleCheck)
	r.Get("/download-pdf/{filename}", s.handleDownload)
	r.Get("/list-artifacts", s.handleListArtifacts)

	s.router = r
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

type ctxKey int

const requestIDKey ctxKey = 0

func (s *Server) requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-Id")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-Id", id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey, id)))
	})
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		id, _ := r.Context().Value(requestIDKey).(string)
		s.logger.Info("request",
			zap.String("id", id),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("elapsed", time.Since(start)))
	})
}

// CheckRequest is the body of POST /check-clean-hands.
type CheckRequest struct {
	Notice string `json:"notice"`
	Last4  string `json:"last4"`
	Email  string `json:"email"`
}

var last4Re = regexp.MustCompile(`^\d{4}$`)

func (req *CheckRequest) validate() string {
	if n := len(req.Notice); n < 5 || n > 64 {
		return "notice must be 5-64 characters"
	}
	if !last4Re.MatchString(req.Last4) {
		return "last4 must be exactly 4 digits"
	}
	if _, err := mail.ParseAddress(req.Email); err != nil {
		return "email is not a valid address"
	}
	return ""
}

// CheckResponse is the body of POST /check-clean-hands. A workflow failure
// is reported with Success=false and HTTP 200; non-200 statuses are reserved
// for malformed requests.
type CheckResponse struct {
	Status                string   `json:"status"`
	Notice                string   `json:"notice"`
	Last4                 string   `json:"last4"`
	Email                 string   `json:"email"`
	Message               string   `json:"message"`
	PDFPath               string   `json:"pdf_path,omitempty"`
	PDFBase64             string   `json:"pdf_base64,omitempty"`
	PDFAvailable          bool     `json:"pdf_available"`
	URLsVisited           []string `json:"urls_visited"`
	ProcessingTimeSeconds float64  `json:"processing_time_seconds"`
	Success               bool     `json:"success"`
}

func (s *Server) handleCheck(w http.ResponseWriter, r *http.Request) {
	var req CheckRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if msg := req.validate(); msg != "" {
		s.writeError(w, http.StatusUnprocessableEntity, msg)
		return
	}

	s.logger.Info("check started",
		zap.String("notice", req.Notice), zap.String("last4", req.Last4))

	start := time.Now()
	result, err := s.runner.Run(r.Context(), req.Notice, req.Last4)
	elapsed := time.Since(start).Seconds()

	resp := CheckResponse{
		Notice:                req.Notice,
		Last4:                 req.Last4,
		Email:                 req.Email,
		URLsVisited:           []string{},
		ProcessingTimeSeconds: float64(int(elapsed*100)) / 100,
	}
	if err != nil {
		s.logger.Error("workflow failed", zap.Error(err))
		resp.Status = "error"
		resp.Message = "Processing failed: " + err.Error()
		s.writeJSON(w, http.StatusOK, resp)
		return
	}

	resp.Status = string(result.Status)
	resp.Message = result.Message
	if result.URLs != nil {
		resp.URLsVisited = result.URLs
	}
	resp.Success = true
	if result.PDFCaptured() {
		resp.PDFPath = result.PDFPath
		if b64, err := result.PDFBase64(); err == nil {
			resp.PDFBase64 = b64
			resp.PDFAvailable = true
		} else {
			s.logger.Warn("encoding captured document failed", zap.Error(err))
		}
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"service": "DC Clean Hands Certificate Checker",
		"version": "1.0.0",
		"endpoints": map[string]string{
			"health":            "/health",
			"check_certificate": "/check-clean-hands",
			"download_pdf":      "/download-pdf/{filename}",
			"list_artifacts":    "/list-artifacts",
		},
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	_, err := os.Stat(s.artifactsDir)
	s.writeJSON(w, http.StatusOK, map[string]any{
		"status":           "healthy",
		"artifacts_dir":    s.artifactsDir,
		"artifacts_exists": err == nil,
	})
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	filename := chi.URLParam(r, "filename")
	// Reject anything that could escape the artifacts directory.
	if filename == "" || filename != filepath.Base(filename) ||
		strings.Contains(filename, "..") || !strings.HasSuffix(filename, ".pdf") {
		s.writeError(w, http.StatusBadRequest, "invalid filename")
		return
	}
	path := filepath.Join(s.artifactsDir, filename)
	if _, err := os.Stat(path); err != nil {
		s.writeError(w, http.StatusNotFound, "PDF file not found")
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	http.ServeFile(w, r, path)
}

func (s *Server) handleListArtifacts(w http.ResponseWriter, r *http.Request) {
	names := []string{}
	matches, err := filepath.Glob(filepath.Join(s.artifactsDir, "*.pdf"))
	if err == nil {
		for _, m := range matches {
			names = append(names, filepath.Base(m))
		}
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"artifacts_dir": s.artifactsDir,
		"pdf_files":     names,
		"total_files":   len(names),
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Debug("writing response failed", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, detail string) {
	s.writeJSON(w, status, map[string]string{"detail": detail})
}
