package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"studypilot/internal/app"
	"studypilot/internal/ratelimit"
	"studypilot/internal/usertoken"
	"studypilot/internal/util"
	"studypilot/pkg/ai"
	"studypilot/pkg/domain"
	"studypilot/pkg/store"
)

const defaultGenerateRateLimit = 30

// Config wires required dependencies for the HTTP server.
type Config struct {
	App           *app.App
	TokenVerifier *usertoken.Verifier

	RedisAddr                  string
	RedisPassword              string
	GenerateRateLimitPerMinute int
}

// Server exposes the study content HTTP API.
type Server struct {
	app             *app.App
	tokenVerifier   *usertoken.Verifier
	generateLimiter *ratelimit.FixedWindowLimiter
	mux             *http.ServeMux
}

// New constructs the server with routes configured. The generation rate
// limiter is attached only when a Redis address is given.
func New(cfg Config) (*Server, error) {
	if cfg.App == nil {
		return nil, fmt.Errorf("app required")
	}
	if cfg.TokenVerifier == nil {
		return nil, fmt.Errorf("token verifier required")
	}
	s := &Server{
		app:           cfg.App,
		tokenVerifier: cfg.TokenVerifier,
		mux:           http.NewServeMux(),
	}
	if strings.TrimSpace(cfg.RedisAddr) != "" {
		limit := cfg.GenerateRateLimitPerMinute
		if limit <= 0 {
			limit = defaultGenerateRateLimit
		}
		limiter, err := ratelimit.NewRedisFixedWindowLimiter(cfg.RedisAddr, cfg.RedisPassword, "studypilot:generate", limit, time.Minute)
		if err != nil {
			return nil, fmt.Errorf("init rate limiter: %w", err)
		}
		s.generateLimiter = limiter
	}
	s.routes()
	return s, nil
}

// Router returns the configured handler.
func (s *Server) Router() http.Handler {
	return util.WithRequestID(util.WithRequestLog(util.WithSecurityHeaders(util.WithCORS(s.mux))))
}

func (s *Server) routes() {
	s.mux.HandleFunc("/healthz", s.handleHealth)

	s.mux.Handle("/api/generate", s.withUser(s.handleGenerate))

	// library
	s.mux.Handle("/api/library/save", s.withUser(s.handleLibrarySave))
	s.mux.Handle("/api/library", s.withUser(s.handleLibraryList))
	s.mux.Handle("/api/library/", s.withUser(s.handleLibraryByID))
	s.mux.Handle("/api/usage", s.withUser(s.handleUsage))

	// study records
	s.mux.Handle("/api/attempts", s.withUser(s.handleAttempts))
	s.mux.Handle("/api/flashcards/progress", s.withUser(s.handleProgress))
	s.mux.Handle("/api/analytics/summary", s.withUser(s.handleSummary))

	// account
	s.mux.Handle("/api/profile", s.withUser(s.handleProfile))
	s.mux.Handle("/api/feedback", s.withUser(s.handleFeedback))
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type userHandler func(http.ResponseWriter, *http.Request, string)

func (s *Server) withUser(next userHandler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		ownerID, err := s.tokenVerifier.VerifySubject(token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next(w, r, ownerID)
	})
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request, ownerID string) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if s.generateLimiter != nil && !s.generateLimiter.Allow(ownerID) {
		w.Header().Set("Retry-After", strconv.Itoa(int(s.generateLimiter.Window().Seconds())))
		writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
		return
	}
	var req ai.GenerationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	resp, err := s.app.Generate(r.Context(), req)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

type saveRequest struct {
	Type    domain.GenerationType `json:"type"`
	Title   string                `json:"title"`
	Subject string                `json:"subject"`
	Tags    []string              `json:"tags"`
	Payload json.RawMessage       `json:"payload"`
}

func (s *Server) handleLibrarySave(w http.ResponseWriter, r *http.Request, ownerID string) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var req saveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	item, err := s.app.SaveLibraryItem(domain.LibraryItem{
		OwnerID: ownerID,
		Type:    req.Type,
		Title:   req.Title,
		Subject: req.Subject,
		Tags:    req.Tags,
		Payload: req.Payload,
	})
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"id": item.ID})
}

func (s *Server) handleUsage(w http.ResponseWriter, r *http.Request, ownerID string) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	usage, err := s.app.Usage(ownerID)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, usage)
}

func (s *Server) handleLibraryList(w http.ResponseWriter, r *http.Request, ownerID string) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	q := r.URL.Query()
	filter := store.ListFilter{
		Status:   domain.ItemStatus(q.Get("status")),
		Type:     domain.GenerationType(q.Get("type")),
		Favorite: q.Get("favorite") == "true",
		Search:   q.Get("search"),
	}
	items, err := s.app.ListLibrary(ownerID, filter)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"items": items,
		"count": len(items),
	})
}

type patchRequest struct {
	Favorite *bool   `json:"favorite"`
	Status   *string `json:"status"`
}

// /api/library/{id}
func (s *Server) handleLibraryByID(w http.ResponseWriter, r *http.Request, ownerID string) {
	id := strings.TrimPrefix(r.URL.Path, "/api/library/")
	if id == "" || strings.Contains(id, "/") {
		notFound(w, "not found")
		return
	}
	switch r.Method {
	case http.MethodGet:
		item, err := s.app.GetLibraryItem(ownerID, id)
		if err != nil {
			s.writeAppError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, item)
	case http.MethodPatch:
		var req patchRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid json body")
			return
		}
		patch := store.ItemPatch{Favorite: req.Favorite}
		if req.Status != nil {
			status := domain.ItemStatus(*req.Status)
			patch.Status = &status
		}
		item, err := s.app.UpdateLibraryItem(ownerID, id, patch)
		if err != nil {
			s.writeAppError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, item)
	default:
		methodNotAllowed(w)
	}
}

type attemptRequest struct {
	LibraryItemID string   `json:"library_item_id"`
	Score         *int     `json:"score"`
	Total         *int     `json:"total"`
	Answers       []int    `json:"answers"`
	WeakTopics    []string `json:"weak_topics"`
}

func (s *Server) handleAttempts(w http.ResponseWriter, r *http.Request, ownerID string) {
	switch r.Method {
	case http.MethodPost:
		var req attemptRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid json body")
			return
		}
		if req.Score == nil || req.Total == nil {
			writeError(w, http.StatusBadRequest, "score and total are required")
			return
		}
		attempt, err := s.app.SaveAttempt(domain.QuizAttempt{
			OwnerID:       ownerID,
			LibraryItemID: req.LibraryItemID,
			Score:         *req.Score,
			Total:         *req.Total,
			Answers:       req.Answers,
			WeakTopics:    req.WeakTopics,
		})
		if err != nil {
			s.writeAppError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, attempt)
	case http.MethodGet:
		attempts, err := s.app.ListAttempts(ownerID)
		if err != nil {
			s.writeAppError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"items": attempts,
			"count": len(attempts),
		})
	default:
		methodNotAllowed(w)
	}
}

type progressRequest struct {
	SetID     string     `json:"set_id"`
	CardKey   string     `json:"card_key"`
	BoxLevel  int        `json:"box_level"`
	NextDueAt *time.Time `json:"next_due_at"`
}

func (s *Server) handleProgress(w http.ResponseWriter, r *http.Request, ownerID string) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var req progressRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	progress, err := s.app.SaveProgress(domain.FlashcardProgress{
		OwnerID:   ownerID,
		SetID:     req.SetID,
		CardKey:   req.CardKey,
		BoxLevel:  req.BoxLevel,
		NextDueAt: req.NextDueAt,
	})
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, progress)
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request, ownerID string) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	summary, err := s.app.Summary(ownerID)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

type profileRequest struct {
	Name     string   `json:"name"`
	Grade    string   `json:"grade"`
	Subjects []string `json:"subjects"`
}

func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request, ownerID string) {
	switch r.Method {
	case http.MethodGet:
		profile, err := s.app.GetProfile(ownerID)
		if err != nil {
			s.writeAppError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, profile)
	case http.MethodPatch:
		var req profileRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid json body")
			return
		}
		profile, err := s.app.SaveProfile(domain.Profile{
			UserID:   ownerID,
			Name:     req.Name,
			Grade:    req.Grade,
			Subjects: req.Subjects,
		})
		if err != nil {
			s.writeAppError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, profile)
	default:
		methodNotAllowed(w)
	}
}

type feedbackRequest struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func (s *Server) handleFeedback(w http.ResponseWriter, r *http.Request, ownerID string) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var req feedbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	if err := s.app.SaveFeedback(domain.Feedback{
		OwnerID: ownerID,
		Type:    req.Type,
		Message: req.Message,
	}); err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// writeAppError maps application sentinels onto HTTP statuses. The quota
// error carries its own body so clients can render the month and limit.
func (s *Server) writeAppError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, app.ErrResourceLimit):
		writeJSON(w, http.StatusTooManyRequests, limitResponse{
			Code:     "RESOURCE_LIMIT",
			Message:  "Monthly resource limit reached",
			MonthKey: domain.MonthKey(time.Now()),
			Limit:    s.app.ResourceLimit(),
		})
	case errors.Is(err, app.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, app.ErrNotFound):
		notFound(w, "item not found")
	case errors.Is(err, ai.ErrNotConfigured):
		writeError(w, http.StatusInternalServerError, "provider not configured")
	case errors.Is(err, ai.ErrUpstream):
		writeError(w, http.StatusInternalServerError, "provider request failed")
	default:
		util.LoggerFromContext(r.Context()).Error("request failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

type limitResponse struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	MonthKey string `json:"monthKey"`
	Limit    int    `json:"limit"`
}

func methodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}

func notFound(w http.ResponseWriter, msg string) {
	writeError(w, http.StatusNotFound, msg)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

type errorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	RequestID string `json:"requestId,omitempty"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{
		Error:     msg,
		Code:      errorCodeForStudy(status, msg),
		RequestID: strings.TrimSpace(w.Header().Get("X-Request-Id")),
	})
}

func errorCodeForStudy(status int, msg string) string {
	message := strings.ToLower(strings.TrimSpace(msg))
	switch {
	case message == "unauthorized":
		return "AUTH_INVALID_TOKEN"
	case message == "rate limit exceeded":
		return "RATE_LIMITED"
	case message == "invalid json body":
		return "STUDY_INVALID_REQUEST"
	case message == "item not found":
		return "STUDY_NOT_FOUND"
	case message == "provider not configured", message == "provider request failed":
		return "AI_PROVIDER_ERROR"
	case message == "method not allowed":
		return "SYSTEM_METHOD_NOT_ALLOWED"
	case message == "not found":
		return "SYSTEM_NOT_FOUND"
	}

	switch status {
	case http.StatusBadRequest:
		return "STUDY_INVALID_REQUEST"
	case http.StatusUnauthorized:
		return "AUTH_INVALID_TOKEN"
	case http.StatusNotFound:
		return "STUDY_NOT_FOUND"
	case http.StatusMethodNotAllowed:
		return "SYSTEM_METHOD_NOT_ALLOWED"
	case http.StatusTooManyRequests:
		return "RATE_LIMITED"
	default:
		if status >= http.StatusInternalServerError {
			return "SYSTEM_INTERNAL_ERROR"
		}
		return "REQUEST_ERROR"
	}
}

func bearerToken(r *http.Request) (string, bool) {
	authHeader := r.Header.Get("Authorization")
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return "", false
	}
	token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
	if token == "" {
		return "", false
	}
	return token, true
}
