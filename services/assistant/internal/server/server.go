package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"receiptai/internal/util"
	"receiptai/services/assistant/internal/app"
)

const (
	defaultMaxUploadBytes = 10 << 20
	maxJSONBodyBytes      = 1 << 20
	// multipart framing and the username field on top of the file itself
	multipartOverheadBytes = 1 << 20
)

// Config wires required dependencies for the HTTP server.
type Config struct {
	App            *app.App
	MaxUploadBytes int64
	CORSOrigin     string
}

// Server exposes HTTP endpoints for the receipt assistant.
type Server struct {
	app            *app.App
	maxUploadBytes int64
	router         chi.Router
}

// New constructs the server with routes configured.
func New(cfg Config) *Server {
	maxUpload := cfg.MaxUploadBytes
	if maxUpload <= 0 {
		maxUpload = defaultMaxUploadBytes
	}
	s := &Server{
		app:            cfg.App,
		maxUploadBytes: maxUpload,
		router:         chi.NewRouter(),
	}
	s.routes(cfg.CORSOrigin)
	return s
}

// Router returns the configured handler.
func (s *Server) Router() http.Handler {
	return s.router
}

func (s *Server) routes(corsOrigin string) {
	r := s.router
	r.Use(middleware.RealIP)
	r.Use(util.WithRequestID)
	r.Use(util.WithRequestLog("assistant"))
	r.Use(middleware.Recoverer)
	r.Use(util.WithSecurityHeaders)
	r.Use(util.WithCORS(corsOrigin))

	r.Get("/", s.handleRoot)
	r.Get("/health", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Post("/ocr", s.handleOCR)
	r.Post("/chat", s.handleChat)
	r.Get("/receipts", s.handleListReceipts)
	r.Get("/receipts/{receiptID}/image", s.handleReceiptImage)
	r.Get("/sessions", s.handleListSessions)
	r.Get("/sessions/{sessionID}/messages", s.handleSessionMessages)

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "not_found", "not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
	})
}

func (s *Server) handleRoot(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"message": "Ok"})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if err := s.app.Ready(r.Context()); err != nil {
		util.LoggerFromContext(r.Context()).Error("readiness check failed", "err", err)
		writeError(w, http.StatusServiceUnavailable, "unavailable", "store unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleOCR(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes+multipartOverheadBytes)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "too_large", "upload too large")
			return
		}
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid multipart form")
		return
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "file is required")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, s.maxUploadBytes+1))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "read upload failed")
		return
	}
	if int64(len(data)) > s.maxUploadBytes {
		writeError(w, http.StatusRequestEntityTooLarge, "too_large", "upload too large")
		return
	}

	receipt, err := s.app.ExtractReceipt(r.Context(), app.ExtractRequest{
		Image:       data,
		ContentType: header.Header.Get("Content-Type"),
		Filename:    header.Filename,
		Username:    r.FormValue("username"),
	})
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"result": receipt.Text})
}

type chatRequest struct {
	Message   string `json:"message"`
	Model     string `json:"model"`
	SessionID string `json:"session_id"`
	Username  string `json:"username"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxJSONBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	res, err := s.app.Chat(r.Context(), app.ChatRequest{
		Message:   req.Message,
		Model:     req.Model,
		SessionID: req.SessionID,
		Username:  req.Username,
	})
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleListReceipts(w http.ResponseWriter, r *http.Request) {
	receipts, err := s.app.ListReceipts(r.Context(), r.URL.Query().Get("username"))
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": receipts, "count": len(receipts)})
}

func (s *Server) handleReceiptImage(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "receiptID"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid receipt id")
		return
	}
	url, err := s.app.ReceiptImageURL(r.Context(), id)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	http.Redirect(w, r, url, http.StatusTemporaryRedirect)
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := s.app.ListSessions(r.Context(), r.URL.Query().Get("username"))
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": sessions, "count": len(sessions)})
}

func (s *Server) handleSessionMessages(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := strings.TrimSpace(r.URL.Query().Get("limit")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "invalid_request", "invalid limit")
			return
		}
		limit = n
	}
	msgs, err := s.app.Transcript(r.Context(), chi.URLParam(r, "sessionID"), limit)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": msgs, "count": len(msgs)})
}

// statusForError maps app errors to an HTTP status and a machine-readable kind.
func statusForError(err error) (int, string) {
	switch {
	case errors.Is(err, app.ErrNotAnImage):
		return http.StatusUnsupportedMediaType, "invalid_content_type"
	case errors.Is(err, app.ErrEmptyImage),
		errors.Is(err, app.ErrMessageRequired),
		errors.Is(err, app.ErrModelRequired):
		return http.StatusBadRequest, "invalid_request"
	case errors.Is(err, app.ErrExtractionFailed):
		return http.StatusBadGateway, "ocr_failed"
	case errors.Is(err, app.ErrCompletionFailed):
		return http.StatusBadGateway, "completion_failed"
	case errors.Is(err, app.ErrSessionNotFound),
		errors.Is(err, app.ErrReceiptNotFound),
		errors.Is(err, app.ErrImageNotArchived):
		return http.StatusNotFound, "not_found"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

func writeAppError(w http.ResponseWriter, r *http.Request, err error) {
	status, kind := statusForError(err)
	if status >= http.StatusInternalServerError {
		util.LoggerFromContext(r.Context()).Error("request failed", "kind", kind, "err", err)
	}
	writeError(w, status, kind, err.Error())
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, kind, msg string) {
	writeJSON(w, status, map[string]string{"error": msg, "kind": kind})
}
