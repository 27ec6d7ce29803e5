package controllers

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/RealZimboGuy/shipflow/internal/util"
	"github.com/RealZimboGuy/shipflow/pkg/shipflow/core"
	"github.com/RealZimboGuy/shipflow/pkg/shipflow/domain"
	"github.com/RealZimboGuy/shipflow/pkg/shipflow/models"
)

const sessionCookie = "sessionId"

type UserRepo interface {
	FindByUsername(ctx context.Context, username string) (*domain.User, error)
	FindBySessionID(ctx context.Context, sessionID string, now time.Time) (*domain.User, error)
	FindByApiKey(ctx context.Context, apiKey string) (*domain.User, error)
	UpdateSession(ctx context.Context, userID int64, sessionID string, expiry time.Time) error
	ClearSessionBySessionID(ctx context.Context, sessionID string) error
}

// AuthController authenticates API callers by session cookie or X-API-Key.
// The authenticated username becomes the actor recorded on events.
type AuthController struct {
	UserRepo      UserRepo
	Clock         core.Clock
	SessionExpiry time.Duration
}

func NewAuthController(userRepo UserRepo, clock core.Clock, sessionExpiry time.Duration) *AuthController {
	if sessionExpiry <= 0 {
		sessionExpiry = 8 * time.Hour
	}
	return &AuthController{UserRepo: userRepo, Clock: clock, SessionExpiry: sessionExpiry}
}

func withUser(r *http.Request, u *domain.User) *http.Request {
	ctx := context.WithValue(r.Context(), core.CtxKeyUsername, u.Username)
	ctx = context.WithValue(ctx, core.CtxKeyActorID, domain.ActorID(u.Username))
	return r.WithContext(ctx)
}

func (c *AuthController) RequireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// 1) session cookie
		if ck, err := r.Cookie(sessionCookie); err == nil && ck.Value != "" {
			u, err := c.UserRepo.FindBySessionID(r.Context(), ck.Value, c.Clock.Now().UTC())
			if err != nil {
				slog.ErrorContext(r.Context(), "Session lookup failed", "error", err)
			}
			if u != nil {
				next(w, withUser(r, u))
				return
			}
		}
		// 2) X-API-Key header
		if apiKey := r.Header.Get("X-API-Key"); apiKey != "" {
			u, err := c.UserRepo.FindByApiKey(r.Context(), apiKey)
			if err != nil {
				slog.ErrorContext(r.Context(), "API key lookup failed", "error", err)
			}
			if u != nil {
				next(w, withUser(r, u))
				return
			}
		}
		util.WriteJSONError(w, http.StatusUnauthorized, "unauthorized")
	}
}

type loginResponse struct {
	Username  string    `json:"username"`
	ExpiresAt time.Time `json:"expiresAt"`
}

func (c *AuthController) handleLogin(w http.ResponseWriter, r *http.Request) {
	req, err := util.DecodeJSONBody[models.LoginRequest](r, false)
	if err != nil {
		util.WriteJSONError(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}
	username := strings.TrimSpace(req.Username)
	if username == "" || req.Password == "" {
		util.WriteJSONError(w, http.StatusUnauthorized, "username and password are required")
		return
	}
	u, err := c.UserRepo.FindByUsername(r.Context(), username)
	if err != nil {
		slog.ErrorContext(r.Context(), "FindByUsername failed", "error", err)
		util.WriteJSONError(w, http.StatusInternalServerError, "server error")
		return
	}
	if u == nil || bcrypt.CompareHashAndPassword([]byte(u.Password), []byte(req.Password)) != nil {
		util.WriteJSONError(w, http.StatusUnauthorized, "invalid username or password")
		return
	}

	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		slog.ErrorContext(r.Context(), "rand.Read failed", "error", err)
		util.WriteJSONError(w, http.StatusInternalServerError, "server error")
		return
	}
	sessionID := hex.EncodeToString(buf)
	expires := c.Clock.Now().Add(c.SessionExpiry)
	if err := c.UserRepo.UpdateSession(r.Context(), u.ID, sessionID, expires); err != nil {
		slog.ErrorContext(r.Context(), "UpdateSession failed", "error", err)
		util.WriteJSONError(w, http.StatusInternalServerError, "server error")
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    sessionID,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Expires:  expires,
	})
	slog.InfoContext(r.Context(), "User logged in", "username", u.Username)
	util.WriteJSONResponse(w, http.StatusOK, loginResponse{Username: u.Username, ExpiresAt: expires})
}

func (c *AuthController) handleLogout(w http.ResponseWriter, r *http.Request) {
	if ck, err := r.Cookie(sessionCookie); err == nil && ck.Value != "" {
		if err := c.UserRepo.ClearSessionBySessionID(r.Context(), ck.Value); err != nil {
			slog.WarnContext(r.Context(), "Failed to clear session during logout", "error", err)
		}
	}
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
	})
	w.WriteHeader(http.StatusNoContent)
}
