package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/leadline-crm/apps/api/internal/audit"
	"github.com/leadline-crm/apps/api/internal/auth"
	"github.com/leadline-crm/apps/api/internal/config"
	"github.com/leadline-crm/apps/api/internal/httpx"
	"github.com/leadline-crm/apps/api/internal/middleware"
	"github.com/leadline-crm/apps/api/internal/store"
)

type Server struct {
	Config config.Config
	Store  *store.Store
	Audit  *audit.Logger
	Logger *slog.Logger
	DB     *pgxpool.Pool
}

func NewServer(cfg config.Config, st *store.Store, auditLogger *audit.Logger, logger *slog.Logger, db *pgxpool.Pool) *Server {
	return &Server{Config: cfg, Store: st, Audit: auditLogger, Logger: logger, DB: db}
}

type userResponse struct {
	ID       uuid.UUID `json:"id"`
	Email    string    `json:"email"`
	FullName string    `json:"fullName"`
	Role     string    `json:"role"`
}

type authSessionResponse struct {
	User userResponse `json:"user"`
}

func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	httpx.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (s *Server) PostAuthLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, r, http.StatusBadRequest, "invalid_body", "Malformed JSON body", nil)
		return
	}

	user, err := s.Store.GetUserByEmail(r.Context(), req.Email)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			httpx.WriteError(w, r, http.StatusUnauthorized, "invalid_credentials", "Invalid email or password", nil)
			return
		}
		httpx.WriteError(w, r, http.StatusInternalServerError, "internal_error", "Failed to load user", nil)
		return
	}
	if !user.IsActive {
		httpx.WriteError(w, r, http.StatusUnauthorized, "invalid_credentials", "Invalid email or password", nil)
		return
	}
	ok, err := auth.VerifyPassword(req.Password, user.PasswordHash)
	if err != nil {
		httpx.WriteError(w, r, http.StatusInternalServerError, "internal_error", "Password verification failed", nil)
		return
	}
	if !ok {
		httpx.WriteError(w, r, http.StatusUnauthorized, "invalid_credentials", "Invalid email or password", nil)
		return
	}

	if old, err := r.Cookie(s.Config.SessionCookieName); err == nil && old.Value != "" {
		_ = s.Store.RevokeSessionByTokenHash(r.Context(), auth.HashToken(old.Value))
	}

	sessionToken, err := auth.GenerateToken()
	if err != nil {
		httpx.WriteError(w, r, http.StatusInternalServerError, "internal_error", "Failed to create session", nil)
		return
	}
	csrfToken, err := auth.GenerateToken()
	if err != nil {
		httpx.WriteError(w, r, http.StatusInternalServerError, "internal_error", "Failed to create CSRF token", nil)
		return
	}

	_, err = s.Store.CreateSession(r.Context(), store.CreateSessionParams{
		UserID:    user.ID,
		TokenHash: auth.HashToken(sessionToken),
		CSRFToken: csrfToken,
		ExpiresAt: time.Now().Add(s.Config.SessionTTL),
	})
	if err != nil {
		httpx.WriteError(w, r, http.StatusInternalServerError, "internal_error", "Failed to save session", nil)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     s.Config.SessionCookieName,
		Value:    sessionToken,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   s.Config.SecureCookies,
		Expires:  time.Now().Add(s.Config.SessionTTL),
	})

	userID := user.ID
	_ = s.Audit.Log(r.Context(), audit.Entry{
		UserID:     &userID,
		Action:     "auth.login",
		EntityType: "session",
		RequestID:  middleware.RequestIDFromContext(r.Context()),
	})

	httpx.WriteJSON(w, http.StatusOK, authSessionResponse{
		User: userResponse{
			ID:       user.ID,
			Email:    user.Email,
			FullName: user.FullName,
			Role:     user.Role,
		},
	})
}

func (s *Server) PostAuthLogout(w http.ResponseWriter, r *http.Request) {
	actor, ok := middleware.ActorFromContext(r.Context())
	if !ok {
		httpx.WriteError(w, r, http.StatusUnauthorized, "unauthorized", "Authentication required", nil)
		return
	}

	sessionID, err := uuid.Parse(actor.SessionID)
	if err != nil {
		httpx.WriteError(w, r, http.StatusUnauthorized, "unauthorized", "Invalid session", nil)
		return
	}

	if err := s.Store.RevokeSessionByID(r.Context(), sessionID); err != nil {
		httpx.WriteError(w, r, http.StatusInternalServerError, "internal_error", "Failed to revoke session", nil)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     s.Config.SessionCookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   s.Config.SecureCookies,
		MaxAge:   -1,
	})

	userID, _ := uuid.Parse(actor.UserID)
	_ = s.Audit.Log(r.Context(), audit.Entry{
		UserID:     &userID,
		Action:     "auth.logout",
		EntityType: "session",
		RequestID:  middleware.RequestIDFromContext(r.Context()),
	})

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) GetAuthMe(w http.ResponseWriter, r *http.Request) {
	actor, ok := middleware.ActorFromContext(r.Context())
	if !ok {
		httpx.WriteError(w, r, http.StatusUnauthorized, "unauthorized", "Authentication required", nil)
		return
	}

	userID, err := uuid.Parse(actor.UserID)
	if err != nil {
		httpx.WriteError(w, r, http.StatusUnauthorized, "unauthorized", "Invalid user", nil)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, authSessionResponse{
		User: userResponse{
			ID:       userID,
			Email:    actor.Email,
			FullName: actor.FullName,
			Role:     actor.Role,
		},
	})
}

func (s *Server) GetAuthCsrf(w http.ResponseWriter, r *http.Request) {
	actor, ok := middleware.ActorFromContext(r.Context())
	if !ok {
		httpx.WriteError(w, r, http.StatusUnauthorized, "unauthorized", "Authentication required", nil)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, map[string]string{"csrfToken": actor.CSRFToken})
}
