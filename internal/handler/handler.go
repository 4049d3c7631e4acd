package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/pavelanni/examhall/internal/auth"
	"github.com/pavelanni/examhall/internal/exam"
	appI18n "github.com/pavelanni/examhall/internal/i18n"
	"github.com/pavelanni/examhall/internal/model"
	"github.com/pavelanni/examhall/internal/store"
)

const maxBodyBytes = 1 << 20

// Handler holds shared dependencies for HTTP handlers.
type Handler struct {
	store  *store.Store
	exams  *exam.Service
	tokens *auth.Issuer
}

// New creates a new Handler.
func New(s *store.Store, exams *exam.Service, tokens *auth.Issuer) *Handler {
	return &Handler{store: s, exams: exams, tokens: tokens}
}

// Routes registers all HTTP routes.
func (h *Handler) Routes(r chi.Router) {
	r.Use(appI18n.Middleware)
	r.Post("/auth/login", h.handleLogin)

	r.Group(func(r chi.Router) {
		r.Use(h.requireAuth)

		r.Route("/exam", func(r chi.Router) {
			r.Post("/", h.handleCreateExam)
			r.Get("/created", h.handleListCreated)
			r.Get("/available", h.handleListAvailable)
			r.Post("/submit", h.handleSubmit)
			r.Get("/{examID}/take", h.handleTake)
			r.Post("/{examID}/begin", h.handleBegin)
			r.Get("/{examID}/results", h.handleResults)
			r.Get("/results/{resultID}", h.handleResult)
			r.Put("/results/{resultID}/answers/{answerID}/review", h.handleReviewAnswer)
			r.Post("/results/{resultID}/answers/{answerID}/suggest", h.handleSuggestReview)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(requireRole(model.RoleAdmin))
			r.Get("/users", h.handleListUsers)
			r.Post("/users", h.handleCreateUser)
			r.Post("/users/{userID}/toggle-active", h.handleToggleUserActive)
			r.Get("/courses", h.handleListCourses)
			r.Post("/courses", h.handleCreateCourse)
			r.Post("/enrollments", h.handleEnroll)
		})
	})
}

type errorBody struct {
	Error  string            `json:"error"`
	Code   int               `json:"code"`
	Fields map[string]string `json:"fields,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode response", "error", err)
	}
}

// statusFor maps an error to an HTTP status and a message id.
func statusFor(err error) (int, string) {
	var verr *exam.ValidationError
	switch {
	case errors.As(err, &verr):
		return http.StatusBadRequest, "ErrValidation"
	case errors.Is(err, exam.ErrNotFound):
		return http.StatusNotFound, "ErrNotFound"
	case errors.Is(err, exam.ErrForbidden):
		return http.StatusForbidden, "ErrForbidden"
	case errors.Is(err, exam.ErrUnauthorized), errors.Is(err, auth.ErrInvalidToken):
		return http.StatusUnauthorized, "ErrUnauthorized"
	case errors.Is(err, exam.ErrAlreadySubmitted):
		return http.StatusConflict, "ErrAlreadySubmitted"
	case errors.Is(err, exam.ErrExamNotOpen):
		return http.StatusConflict, "ErrExamNotOpen"
	case errors.Is(err, exam.ErrTimeLimitExceeded):
		return http.StatusConflict, "ErrTimeLimitExceeded"
	case errors.Is(err, store.ErrDuplicate):
		return http.StatusConflict, "ErrConflict"
	case errors.Is(err, exam.ErrReviewUnavailable):
		return http.StatusServiceUnavailable, "ErrReviewUnavailable"
	default:
		return http.StatusInternalServerError, "ErrInternal"
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, msgID := statusFor(err)
	body := errorBody{Error: appI18n.T(r.Context(), msgID), Code: status}
	var verr *exam.ValidationError
	if errors.As(err, &verr) {
		body.Error = appI18n.Tp(r.Context(), msgID, len(verr.Fields))
		body.Fields = verr.Fields
	}
	if status >= http.StatusInternalServerError {
		slog.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	} else {
		slog.Debug("request rejected", "method", r.Method, "path", r.URL.Path, "status", status, "error", err)
	}
	writeJSON(w, status, body)
}

// writeMessage writes an error body with a localized message.
func writeMessage(w http.ResponseWriter, r *http.Request, status int, msgID string, data map[string]any) {
	writeJSON(w, status, errorBody{Error: appI18n.Td(r.Context(), msgID, data), Code: status})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		slog.Debug("decode request body", "path", r.URL.Path, "error", err)
		writeMessage(w, r, http.StatusBadRequest, "ErrBadRequest", nil)
		return false
	}
	return true
}

func pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		writeMessage(w, r, http.StatusBadRequest, "ErrInvalidParam", map[string]any{"Name": name})
		return 0, false
	}
	return id, true
}

func principal(r *http.Request) model.Principal {
	p, _ := model.PrincipalFromContext(r.Context())
	return p
}
