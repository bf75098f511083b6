package app

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"learningmap/api/internal/auth"
	"learningmap/api/internal/export"
	"learningmap/api/internal/hexmap"
	"learningmap/api/internal/identity"
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

	if (r.Method == http.MethodGet || r.Method == http.MethodHead) && r.URL.Path == "/api/health" {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}

	if (r.Method == http.MethodGet || r.Method == http.MethodHead) && r.URL.Path == "/api/ready" {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		status := "ready"
		statusCode := http.StatusOK
		checks := map[string]any{
			"store": map[string]any{"status": "ok"},
		}
		if err := s.service.Ping(ctx); err != nil {
			status = "not_ready"
			statusCode = http.StatusServiceUnavailable
			checks["store"] = map[string]any{"status": "error", "error": err.Error()}
		}
		writeJSON(w, statusCode, map[string]any{
			"ok":     status == "ready",
			"status": status,
			"checks": checks,
		})
		return
	}

	// Auth routes (no session required)
	if r.Method == http.MethodPost && r.URL.Path == "/api/auth/signup" {
		s.handleSignUp(w, r)
		return
	}

	if r.Method == http.MethodPost && r.URL.Path == "/api/auth/signin" {
		s.handleSignIn(w, r)
		return
	}

	session, ok := s.requireSession(w, r)
	if !ok {
		return
	}

	if r.Method == http.MethodGet && r.URL.Path == "/api/me" {
		user, err := s.service.GetCurrentUser(r.Context(), session)
		if err != nil {
			status, code, message := mapError(err)
			writeError(w, status, code, message)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"user": user})
		return
	}

	if r.Method == http.MethodGet && r.URL.Path == "/api/maps" {
		maps, err := s.service.GetMaps(r.Context(), session)
		if err != nil {
			status, code, message := mapError(err)
			writeError(w, status, code, message)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"maps": maps})
		return
	}

	if r.Method == http.MethodPost && r.URL.Path == "/api/maps" {
		var body struct {
			Title string              `json:"title"`
			Map   *hexmap.LearningMap `json:"map"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error())
			return
		}
		var saved hexmap.LearningMap
		var err error
		if body.Map != nil {
			saved, err = s.service.SaveMap(r.Context(), session, *body.Map)
		} else {
			saved, err = s.service.CreateMap(r.Context(), session, body.Title)
		}
		if err != nil {
			status, code, message := mapError(err)
			writeError(w, status, code, message)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"map": saved})
		return
	}

	if r.Method == http.MethodGet && r.URL.Path == "/api/student/maps" {
		maps, err := s.service.GetStudentMaps(r.Context(), session)
		if err != nil {
			status, code, message := mapError(err)
			writeError(w, status, code, message)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"maps": maps})
		return
	}

	if r.URL.Path == "/api/mode" {
		if r.Method == http.MethodGet {
			writeJSON(w, http.StatusOK, map[string]any{"mode": s.service.Mode()})
			return
		}
		if r.Method == http.MethodPost {
			var body struct {
				Mode string `json:"mode"`
			}
			if err := decodeBody(r, &body); err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error())
				return
			}
			if err := s.service.SetMode(r.Context(), session, Mode(body.Mode)); err != nil {
				status, code, message := mapError(err)
				writeError(w, status, code, message)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"mode": s.service.Mode()})
			return
		}
		writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed")
		return
	}

	if r.Method == http.MethodGet && r.URL.Path == "/api/remote/status" {
		remote := s.service.Remote()
		status, err := remote.CheckStatus(r.Context())
		payload := map[string]any{
			"state":   remote.State(),
			"baseUrl": remote.BaseURL(),
		}
		if err == nil {
			payload["configured"] = status.Configured
			payload["needsSetup"] = status.NeedsSetup
			payload["schemaVersion"] = status.SchemaVersion
			payload["spreadsheetName"] = status.SpreadsheetName
		} else {
			payload["error"] = err.Error()
		}
		writeJSON(w, http.StatusOK, payload)
		return
	}

	if r.URL.Path == "/api/remote/config" {
		if r.Method == http.MethodPost {
			var body struct {
				BaseURL string `json:"baseUrl"`
			}
			if err := decodeBody(r, &body); err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error())
				return
			}
			if err := s.service.SetRemoteURL(r.Context(), session, body.BaseURL); err != nil {
				status, code, message := mapError(err)
				writeError(w, status, code, message)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"state": s.service.Remote().State()})
			return
		}
		if r.Method == http.MethodDelete {
			if err := s.service.ClearRemoteConfig(r.Context(), session); err != nil {
				status, code, message := mapError(err)
				writeError(w, status, code, message)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"ok": true})
			return
		}
		writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed")
		return
	}

	if r.Method == http.MethodPost && r.URL.Path == "/api/remote/provision" {
		var body struct {
			Name string `json:"name"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error())
			return
		}
		if err := s.service.ProvisionRemote(r.Context(), session, body.Name); err != nil {
			status, code, message := mapError(err)
			writeError(w, status, code, message)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"state": s.service.Remote().State()})
		return
	}

	if r.Method == http.MethodPost && r.URL.Path == "/api/remote/attach" {
		var body struct {
			ID string `json:"id"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error())
			return
		}
		if err := s.service.AttachRemote(r.Context(), session, body.ID); err != nil {
			status, code, message := mapError(err)
			writeError(w, status, code, message)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"state": s.service.Remote().State()})
		return
	}

	if r.Method == http.MethodGet && r.URL.Path == "/api/courses" {
		courses, err := s.service.GetCourses(r.Context(), session)
		if err != nil {
			status, code, message := mapError(err)
			writeError(w, status, code, message)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"courses": courses})
		return
	}

	if r.Method == http.MethodGet && r.URL.Path == "/api/units" {
		units, err := s.service.GetUnits(r.Context(), session)
		if err != nil {
			status, code, message := mapError(err)
			writeError(w, status, code, message)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"units": units})
		return
	}

	if r.Method == http.MethodGet && r.URL.Path == "/api/classes" {
		classes, err := s.service.GetClasses(r.Context(), session)
		if err != nil {
			status, code, message := mapError(err)
			writeError(w, status, code, message)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"classes": classes})
		return
	}

	if r.Method == http.MethodGet && r.URL.Path == "/api/hex-templates" {
		templates, err := s.service.GetHexTemplates(r.Context(), session)
		if err != nil {
			status, code, message := mapError(err)
			writeError(w, status, code, message)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"templates": templates})
		return
	}

	if r.Method == http.MethodGet && r.URL.Path == "/api/curriculum-config" {
		cfg, err := s.service.GetCurriculumConfig(r.Context(), session)
		if err != nil {
			status, code, message := mapError(err)
			writeError(w, status, code, message)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"config": cfg})
		return
	}

	if r.URL.Path == "/api/devtasks" {
		if r.Method == http.MethodGet {
			tasks, err := s.service.GetDevTasks(r.Context(), session)
			if err != nil {
				status, code, message := mapError(err)
				writeError(w, status, code, message)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"tasks": tasks})
			return
		}
		if r.Method == http.MethodPut {
			var body struct {
				Tasks []hexmap.DevTask `json:"tasks"`
			}
			if err := decodeBody(r, &body); err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error())
				return
			}
			tasks, err := s.service.SaveDevTasks(r.Context(), session, body.Tasks)
			if err != nil {
				status, code, message := mapError(err)
				writeError(w, status, code, message)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"tasks": tasks})
			return
		}
		writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed")
		return
	}

	parts := splitPath(r.URL.Path)

	if len(parts) >= 3 && parts[0] == "api" && parts[1] == "maps" {
		s.handleMap(w, r, session, parts[2], parts)
		return
	}

	writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found")
}

func (s *HTTPServer) handleMap(w http.ResponseWriter, r *http.Request, session Session, mapID string, parts []string) {
	if len(parts) == 3 && r.Method == http.MethodGet {
		m, err := s.service.GetMapByID(r.Context(), session, mapID)
		if err != nil {
			status, code, message := mapError(err)
			writeError(w, status, code, message)
			return
		}
		if m == nil {
			writeError(w, http.StatusNotFound, "NOT_FOUND", "Map not found")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"map": m})
		return
	}

	if len(parts) == 3 && r.Method == http.MethodPut {
		var body hexmap.LearningMap
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error())
			return
		}
		body.MapID = mapID
		saved, err := s.service.SaveMap(r.Context(), session, body)
		if err != nil {
			status, code, message := mapError(err)
			writeError(w, status, code, message)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"map": saved})
		return
	}

	if len(parts) == 4 && parts[3] == "duplicate" && r.Method == http.MethodPost {
		var body struct {
			Title string `json:"title"`
		}
		_ = decodeBody(r, &body)
		dup, err := s.service.DuplicateMap(r.Context(), session, mapID, body.Title)
		if err != nil {
			status, code, message := mapError(err)
			writeError(w, status, code, message)
			return
		}
		if dup == nil {
			writeError(w, http.StatusNotFound, "NOT_FOUND", "Map not found")
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"map": dup})
		return
	}

	if len(parts) == 4 && parts[3] == "analytics" && r.Method == http.MethodGet {
		summary, err := s.service.MapAnalytics(r.Context(), session, mapID)
		if err != nil {
			status, code, message := mapError(err)
			writeError(w, status, code, message)
			return
		}
		if summary == nil {
			writeError(w, http.StatusNotFound, "NOT_FOUND", "Map not found")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"analytics": summary})
		return
	}

	if len(parts) == 4 && parts[3] == "export" && r.Method == http.MethodGet {
		format := strings.TrimSpace(r.URL.Query().Get("format"))
		if format == "" {
			format = "sheet"
		}
		result, err := s.service.ExportMap(r.Context(), session, mapID, format)
		if err != nil {
			if errors.Is(err, export.ErrPDFDependencyMissing) {
				writeError(w, http.StatusNotImplemented, "PDF_UNAVAILABLE", "PDF rendering is not available on this server")
				return
			}
			status, code, message := mapError(err)
			writeError(w, status, code, message)
			return
		}
		if result == nil {
			writeError(w, http.StatusNotFound, "NOT_FOUND", "Map not found")
			return
		}
		w.Header().Set("Content-Disposition", "attachment; filename=\""+result.Filename+"\"")
		w.Header().Set("Content-Type", result.MimeType)
		w.Write(result.Data)
		return
	}

	if len(parts) == 4 && parts[3] == "assign" && r.Method == http.MethodPost {
		var body struct {
			ClassID       string   `json:"classId"`
			StudentEmails []string `json:"studentEmails"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error())
			return
		}
		var granted int
		var err error
		if body.ClassID != "" {
			granted, err = s.service.AssignMapToClass(r.Context(), session, mapID, body.ClassID)
		} else {
			granted, err = s.service.AssignMapToStudents(r.Context(), session, mapID, body.StudentEmails)
		}
		if err != nil {
			status, code, message := mapError(err)
			writeError(w, status, code, message)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"granted": granted})
		return
	}

	if len(parts) == 4 && parts[3] == "progress" {
		if r.Method == http.MethodGet {
			records, err := s.service.GetProgressForUserAndMap(r.Context(), session, mapID)
			if err != nil {
				status, code, message := mapError(err)
				writeError(w, status, code, message)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"progress": records})
			return
		}
		if r.Method == http.MethodPost {
			var body struct {
				HexID  string   `json:"hexId"`
				Status string   `json:"status"`
				Score  *float64 `json:"score"`
			}
			if err := decodeBody(r, &body); err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error())
				return
			}
			if err := s.service.UpdateStudentProgress(r.Context(), session, mapID, body.HexID, body.Status, body.Score); err != nil {
				status, code, message := mapError(err)
				writeError(w, status, code, message)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"ok": true})
			return
		}
		writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed")
		return
	}

	writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found")
}

func (s *HTTPServer) handleSignUp(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email    string `json:"email"`
		Password string `json:"password"`
		Name     string `json:"name"`
		Role     string `json:"role"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error())
		return
	}
	user, err := s.service.Identity().Register(r.Context(), body.Email, body.Password, body.Name, body.Role)
	if err != nil {
		if errors.Is(err, identity.ErrAlreadyRegistered) {
			writeError(w, http.StatusConflict, "EMAIL_EXISTS", "Email already registered")
			return
		}
		writeError(w, http.StatusUnprocessableEntity, "SIGNUP_FAILED", err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"user": user})
}

func (s *HTTPServer) handleSignIn(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error())
		return
	}
	token, user, err := s.service.Identity().SignIn(r.Context(), body.Email, body.Password)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "INVALID_CREDENTIALS", "Invalid email or password")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"token": token,
		"user":  user,
	})
}

func (s *HTTPServer) requireSession(w http.ResponseWriter, r *http.Request) (Session, bool) {
	token := bearerToken(r)
	if token == "" {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized")
		return Session{}, false
	}
	user, err := s.service.Identity().FromToken(token)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized")
		return Session{}, false
	}
	return Session{Email: user.Email, Name: user.Name, Role: user.Role}, true
}

func (s *HTTPServer) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = randomRequestID()
		}

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
	header.Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID")
	header.Set("Access-Control-Allow-Methods", "GET,POST,PUT,DELETE,OPTIONS")
	header.Set("Cache-Control", "no-store")
	header.Set("Content-Type", "application/json")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]any{
		"code":  code,
		"error": message,
	})
}

func decodeBody(r *http.Request, target any) error {
	if r.Body == nil {
		return nil
	}
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(target); err != nil {
		if errors.Is(err, http.ErrBodyReadAfterClose) {
			return nil
		}
		return fmt.Errorf("invalid JSON body")
	}
	return nil
}

func bearerToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if !strings.HasPrefix(header, "Bearer ") {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
}

func splitPath(path string) []string {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}

func mapError(err error) (status int, code, message string) {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Status, domainErr.Code, domainErr.Message
	}
	if errors.Is(err, auth.ErrInvalidToken) || errors.Is(err, auth.ErrExpiredToken) {
		return http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized"
	}
	return http.StatusInternalServerError, "SERVER_ERROR", "Server error"
}
