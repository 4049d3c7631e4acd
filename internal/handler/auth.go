package handler

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/pavelanni/examhall/internal/exam"
	"github.com/pavelanni/examhall/internal/model"
)

type loginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type loginResponse struct {
	Token     string           `json:"token"`
	ExpiresAt time.Time        `json:"expiresAt"`
	UserID    int64            `json:"userId"`
	Username  string           `json:"username"`
	FullName  string           `json:"fullName,omitempty"`
	Roles     []model.UserRole `json:"roles"`
}

// requireAuth is middleware that checks for a valid bearer token belonging
// to an active user. The stored roles of the user are authoritative.
func (h *Handler) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || strings.TrimSpace(raw) == "" {
			writeError(w, r, exam.ErrUnauthorized)
			return
		}

		p, err := h.tokens.Parse(strings.TrimSpace(raw))
		if err != nil {
			slog.Debug("rejected bearer token", "error", err)
			writeError(w, r, err)
			return
		}

		user, err := h.store.GetUserByID(r.Context(), p.UserID)
		if err != nil {
			writeError(w, r, err)
			return
		}
		if user == nil || !user.Active {
			writeError(w, r, exam.ErrUnauthorized)
			return
		}
		p.Username, p.Roles = user.Username, user.Roles

		next.ServeHTTP(w, r.WithContext(model.ContextWithPrincipal(r.Context(), p)))
	})
}

// requireRole returns middleware that checks the caller has one of the allowed roles.
func requireRole(allowed ...model.UserRole) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := model.PrincipalFromContext(r.Context())
			if !ok {
				writeError(w, r, exam.ErrUnauthorized)
				return
			}
			for _, role := range allowed {
				if p.HasRole(role) {
					next.ServeHTTP(w, r)
					return
				}
			}
			writeError(w, r, exam.ErrForbidden)
		})
	}
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := exam.Validate(req); err != nil {
		writeError(w, r, err)
		return
	}

	user, err := h.store.GetUserByUsername(r.Context(), req.Username)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if user == nil || !user.Active {
		writeMessage(w, r, http.StatusUnauthorized, "ErrInvalidCredentials", nil)
		return
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		slog.Info("failed login", "username", req.Username)
		writeMessage(w, r, http.StatusUnauthorized, "ErrInvalidCredentials", nil)
		return
	}

	token, exp, err := h.tokens.Issue(*user)
	if err != nil {
		writeError(w, r, err)
		return
	}
	slog.Info("user logged in", "user_id", user.ID, "username", user.Username)
	writeJSON(w, http.StatusOK, loginResponse{
		Token:     token,
		ExpiresAt: exp.UTC(),
		UserID:    user.ID,
		Username:  user.Username,
		FullName:  user.FullName,
		Roles:     user.Roles,
	})
}
