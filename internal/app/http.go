package app

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"haven/api/internal/store"

	"github.com/gabriel-vasile/mimetype"
)

type HTTPServer struct {
	service    *Service
	corsOrigin string
}

func NewHTTPServer(service *Service, corsOrigin string) *HTTPServer {
	return &HTTPServer{service: service, corsOrigin: corsOrigin}
}

func (s *HTTPServer) Handler() http.Handler {
	return s.withMiddleware(http.HandlerFunc(s.handle))
}

func (s *HTTPServer) handle(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		writeJSON(w, http.StatusNoContent, map[string]any{})
		return
	}

	if (r.Method == http.MethodGet || r.Method == http.MethodHead) && r.URL.Path == "/api/status" {
		writeJSON(w, http.StatusOK, s.service.Status())
		return
	}

	if (r.Method == http.MethodGet || r.Method == http.MethodHead) && r.URL.Path == "/api/ready" {
		// Check database connectivity
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		status := "ready"
		statusCode := http.StatusOK
		checks := map[string]any{
			"database": map[string]any{"status": "ok"},
		}

		if err := s.service.Ping(ctx); err != nil {
			status = "not_ready"
			statusCode = http.StatusServiceUnavailable
			checks["database"] = map[string]any{
				"status": "error",
				"error":  err.Error(),
			}
		}

		writeJSON(w, statusCode, map[string]any{
			"ok":     status == "ready",
			"status": status,
			"checks": checks,
		})
		return
	}

	if r.Method == http.MethodPost && r.URL.Path == "/api/signup" {
		var body SignUpInput
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		payload, err := s.service.SignUp(r.Context(), body)
		if err != nil {
			status, message := mapError(err)
			writeError(w, status, message)
			return
		}
		writeJSON(w, http.StatusOK, payload)
		return
	}

	if r.Method == http.MethodPost && r.URL.Path == "/api/login" {
		var body struct {
			Name     string `json:"name"`
			Password string `json:"password"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		payload, err := s.service.SignIn(r.Context(), body.Name, body.Password)
		if err != nil {
			status, message := mapError(err)
			writeError(w, status, message)
			return
		}
		writeJSON(w, http.StatusOK, payload)
		return
	}

	if r.Method == http.MethodGet && r.URL.Path == "/api/profile" {
		payload, err := s.service.GetProfile(r.Context(), r.URL.Query().Get("name"))
		if err != nil {
			status, message := mapError(err)
			writeError(w, status, message)
			return
		}
		writeJSON(w, http.StatusOK, payload)
		return
	}

	if r.Method == http.MethodPost && r.URL.Path == "/api/profile" {
		caller, ok := s.caller(w, r)
		if !ok {
			return
		}
		var body UpdateProfileInput
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		payload, err := s.service.UpdateProfile(r.Context(), caller, body)
		if err != nil {
			status, message := mapError(err)
			writeError(w, status, message)
			return
		}
		writeJSON(w, http.StatusOK, payload)
		return
	}

	if r.Method == http.MethodGet && r.URL.Path == "/api/users" {
		caller, ok := s.caller(w, r)
		if !ok {
			return
		}
		items, err := s.service.ListUsers(r.Context(), caller)
		if err != nil {
			status, message := mapError(err)
			writeError(w, status, message)
			return
		}
		writeJSON(w, http.StatusOK, items)
		return
	}

	if r.URL.Path == "/api/todos" {
		s.handleTodos(w, r)
		return
	}

	if r.URL.Path == "/api/notes" {
		s.handleNotes(w, r)
		return
	}

	if r.Method == http.MethodGet && r.URL.Path == "/api/music" {
		items, err := s.service.ListTracks(r.Context())
		if err != nil {
			status, message := mapError(err)
			writeError(w, status, message)
			return
		}
		writeJSON(w, http.StatusOK, items)
		return
	}

	if r.Method == http.MethodPost && r.URL.Path == "/api/music" {
		var body CreateTrackInput
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		payload, err := s.service.CreateTrack(r.Context(), body)
		if err != nil {
			status, message := mapError(err)
			writeError(w, status, message)
			return
		}
		writeJSON(w, http.StatusOK, payload)
		return
	}

	if r.Method == http.MethodPost && r.URL.Path == "/api/messages" {
		caller, ok := s.caller(w, r)
		if !ok {
			return
		}
		var body SendMessageInput
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		payload, err := s.service.SendMessage(r.Context(), caller, body)
		if err != nil {
			status, message := mapError(err)
			writeError(w, status, message)
			return
		}
		writeJSON(w, http.StatusOK, payload)
		return
	}

	if r.Method == http.MethodGet && r.URL.Path == "/api/messages/history" {
		caller, ok := s.caller(w, r)
		if !ok {
			return
		}
		partnerID, err := strconv.ParseInt(r.URL.Query().Get("partner_id"), 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "partner_id parameter required")
			return
		}
		items, err := s.service.MessageHistory(r.Context(), caller, partnerID)
		if err != nil {
			status, message := mapError(err)
			writeError(w, status, message)
			return
		}
		writeJSON(w, http.StatusOK, items)
		return
	}

	if r.Method == http.MethodPost && r.URL.Path == "/api/chat" {
		var body struct {
			Message string `json:"message"`
			APIKey  string `json:"apiKey"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		payload, err := s.service.Chat(r.Context(), body.Message, body.APIKey)
		if err != nil {
			status, message := mapError(err)
			writeError(w, status, message)
			return
		}
		writeJSON(w, http.StatusOK, payload)
		return
	}

	parts := splitPath(r.URL.Path)

	if len(parts) == 3 && parts[0] == "api" && parts[1] == "todos" {
		todoID, err := strconv.ParseInt(parts[2], 10, 64)
		if err != nil {
			writeError(w, http.StatusNotFound, "Not found")
			return
		}
		s.handleTodoByID(w, r, todoID)
		return
	}

	if len(parts) == 3 && parts[0] == "api" && parts[1] == "notes" {
		noteID, err := strconv.ParseInt(parts[2], 10, 64)
		if err != nil {
			writeError(w, http.StatusNotFound, "Not found")
			return
		}
		s.handleNoteByID(w, r, noteID)
		return
	}

	if len(parts) == 2 && parts[0] == "music" && (r.Method == http.MethodGet || r.Method == http.MethodHead) {
		s.handleMusicFile(w, r, parts[1])
		return
	}

	writeError(w, http.StatusNotFound, "Not found")
}

func (s *HTTPServer) handleTodos(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.caller(w, r)
	if !ok {
		return
	}

	if r.Method == http.MethodGet {
		items, err := s.service.ListTodos(r.Context(), caller, r.URL.Query().Get("date"))
		if err != nil {
			status, message := mapError(err)
			writeError(w, status, message)
			return
		}
		writeJSON(w, http.StatusOK, items)
		return
	}

	if r.Method == http.MethodPost {
		var body CreateTodoInput
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		payload, err := s.service.CreateTodo(r.Context(), caller, body)
		if err != nil {
			status, message := mapError(err)
			writeError(w, status, message)
			return
		}
		writeJSON(w, http.StatusOK, payload)
		return
	}

	writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
}

func (s *HTTPServer) handleTodoByID(w http.ResponseWriter, r *http.Request, todoID int64) {
	caller, ok := s.caller(w, r)
	if !ok {
		return
	}

	if r.Method == http.MethodPut {
		var body UpdateTodoInput
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		payload, err := s.service.UpdateTodo(r.Context(), caller, todoID, body)
		if err != nil {
			status, message := mapError(err)
			writeError(w, status, message)
			return
		}
		writeJSON(w, http.StatusOK, payload)
		return
	}

	if r.Method == http.MethodDelete {
		payload, err := s.service.DeleteTodo(r.Context(), caller, todoID)
		if err != nil {
			status, message := mapError(err)
			writeError(w, status, message)
			return
		}
		writeJSON(w, http.StatusOK, payload)
		return
	}

	writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
}

func (s *HTTPServer) handleNotes(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.caller(w, r)
	if !ok {
		return
	}

	if r.Method == http.MethodGet {
		items, err := s.service.ListNotes(r.Context(), caller)
		if err != nil {
			status, message := mapError(err)
			writeError(w, status, message)
			return
		}
		writeJSON(w, http.StatusOK, items)
		return
	}

	if r.Method == http.MethodPost {
		var body CreateNoteInput
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		payload, err := s.service.CreateNote(r.Context(), caller, body)
		if err != nil {
			status, message := mapError(err)
			writeError(w, status, message)
			return
		}
		writeJSON(w, http.StatusOK, payload)
		return
	}

	writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
}

func (s *HTTPServer) handleNoteByID(w http.ResponseWriter, r *http.Request, noteID int64) {
	caller, ok := s.caller(w, r)
	if !ok {
		return
	}

	if r.Method == http.MethodPut {
		var body UpdateNoteInput
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		payload, err := s.service.UpdateNote(r.Context(), caller, noteID, body)
		if err != nil {
			status, message := mapError(err)
			writeError(w, status, message)
			return
		}
		writeJSON(w, http.StatusOK, payload)
		return
	}

	if r.Method == http.MethodDelete {
		payload, err := s.service.DeleteNote(r.Context(), caller, noteID)
		if err != nil {
			status, message := mapError(err)
			writeError(w, status, message)
			return
		}
		writeJSON(w, http.StatusOK, payload)
		return
	}

	writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
}

func (s *HTTPServer) handleMusicFile(w http.ResponseWriter, r *http.Request, filename string) {
	obj, err := s.service.OpenTrackFile(r.Context(), filename)
	if err != nil {
		status, message := mapError(err)
		writeError(w, status, message)
		return
	}
	defer obj.Close()

	contentType := "application/octet-stream"
	if mt, err := mimetype.DetectReader(obj); err == nil {
		contentType = mt.String()
	}
	if _, err := obj.Seek(0, io.SeekStart); err != nil {
		writeError(w, http.StatusInternalServerError, "Server error")
		return
	}

	w.Header().Set("Content-Type", contentType)
	http.ServeContent(w, r, filename, time.Time{}, obj)
}

// caller resolves the request identity. A missing or unknown identity header
// yields a nil profile, not an error; endpoints that require authentication
// reject nil callers in the service layer.
func (s *HTTPServer) caller(w http.ResponseWriter, r *http.Request) (*store.Profile, bool) {
	profile, err := s.service.ResolveIdentity(r.Context(), r.Header)
	if err != nil {
		log.Printf("identity resolution failed: %v", err)
		writeError(w, http.StatusInternalServerError, "Server error")
		return nil, false
	}
	return profile, true
}

func (s *HTTPServer) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = randomRequestID()
		}
		ctx := context.WithValue(r.Context(), requestIDKey{}, requestID)
		r = r.WithContext(ctx)

		started := time.Now()
		writer := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		setCORSHeaders(writer.Header(), s.corsOrigin)
		writer.Header().Set("X-Request-ID", requestID)

		next.ServeHTTP(writer, r)

		log.Printf(`{"request_id":"%s","method":"%s","path":"%s","status":%d,"duration_ms":%d}`,
			requestID,
			r.Method,
			r.URL.Path,
			writer.status,
			time.Since(started).Milliseconds(),
		)
	})
}

type requestIDKey struct{}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func randomRequestID() string {
	buf := make([]byte, 8)
	_, _ = rand.Read(buf)
	return hex.EncodeToString(buf)
}

func setCORSHeaders(header http.Header, corsOrigin string) {
	header.Set("Access-Control-Allow-Origin", corsOrigin)
	header.Set("Access-Control-Allow-Headers", "Content-Type, X-Username, X-Request-ID")
	header.Set("Access-Control-Allow-Methods", "GET,POST,PUT,DELETE,OPTIONS")
	header.Set("Cache-Control", "no-store")
	header.Set("Content-Type", "application/json")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"error": message})
}

func decodeBody(r *http.Request, target any) error {
	if r.Body == nil {
		return nil
	}
	defer r.Body.Close()
	decoder := json.NewDecoder(r.Body)
	if err := decoder.Decode(target); err != nil {
		if errors.Is(err, http.ErrBodyReadAfterClose) {
			return nil
		}
		return fmt.Errorf("invalid JSON body")
	}
	return nil
}

func splitPath(path string) []string {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}

func mapError(err error) (status int, message string) {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Status, domainErr.Message
	}
	if errors.Is(err, sql.ErrNoRows) {
		return http.StatusNotFound, "Not found"
	}
	return http.StatusInternalServerError, "Server error"
}
