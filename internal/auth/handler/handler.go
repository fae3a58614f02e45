package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/jasonachkar/secure-api-gateway-sub001/internal/auth/models"
	dErrors "github.com/jasonachkar/secure-api-gateway-sub001/pkg/domain-errors"
	"github.com/jasonachkar/secure-api-gateway-sub001/pkg/platform/httputil"
	"github.com/jasonachkar/secure-api-gateway-sub001/pkg/requestcontext"
)

// Session cookie attributes. The path scopes the cookie to the refresh and
// logout routes so the browser never sends it anywhere else.
const (
	SessionCookieName = "gw_session"
	SessionCookiePath = "/auth/session"
)

// Service defines the interface for authentication operations.
type Service interface {
	Login(ctx context.Context, req *models.LoginRequest) (*models.CredentialPair, error)
	Refresh(ctx context.Context, sessionToken string) (*models.CredentialPair, error)
	Logout(ctx context.Context, sessionToken string)
}

// Handler serves login, session refresh, logout and the caller's profile.
type Handler struct {
	auth         Service
	errors       *httputil.ErrorWriter
	logger       *slog.Logger
	cookieSecure bool
	now          func() time.Time
}

// New creates an auth Handler. cookieSecure sets the Secure attribute on
// the session cookie and is only false for plain-http local development.
func New(auth Service, errs *httputil.ErrorWriter, logger *slog.Logger, cookieSecure bool) *Handler {
	if errs == nil {
		errs = httputil.NewErrorWriter(logger, false)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		auth:         auth,
		errors:       errs,
		logger:       logger,
		cookieSecure: cookieSecure,
		now:          time.Now,
	}
}

// HandleLogin implements POST /auth/login.
//
// Input: { "username": "alice", "password": "..." }
// Output: { "access_token": "...", "token_type": "Bearer", "expires_in": 900, "session_expires_in": 604800 }
// plus the gw_session cookie.
func (h *Handler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	req, ok := httputil.DecodeAndPrepare[models.LoginRequest](w, r, h.errors)
	if !ok {
		return
	}

	pair, err := h.auth.Login(ctx, req)
	if err != nil {
		h.errors.Write(w, r, err)
		return
	}
	h.writeCredentials(w, pair)
}

// HandleRefresh implements POST /auth/session/refresh. The session token is
// read from the cookie only; on success the cookie is replaced.
func (h *Handler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	cookie, err := r.Cookie(SessionCookieName)
	if err != nil || cookie.Value == "" {
		h.errors.Write(w, r, dErrors.New(dErrors.CodeTokenInvalid, "session token required"))
		return
	}

	pair, err := h.auth.Refresh(ctx, cookie.Value)
	if err != nil {
		if !dErrors.HasCode(err, dErrors.CodeUnavailable) && !dErrors.HasCode(err, dErrors.CodeInternal) {
			// The presented token is dead; stop the browser from replaying it.
			h.clearSessionCookie(w)
		}
		h.errors.Write(w, r, err)
		return
	}
	h.writeCredentials(w, pair)
}

// HandleLogout implements POST /auth/session/logout. It always answers 204
// and clears the cookie.
func (h *Handler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(SessionCookieName); err == nil {
		h.auth.Logout(r.Context(), cookie.Value)
	}
	h.clearSessionCookie(w)
	w.WriteHeader(http.StatusNoContent)
}

// HandleMe implements GET /me for the authenticated principal.
func (h *Handler) HandleMe(w http.ResponseWriter, r *http.Request) {
	principal := requestcontext.Principal(r.Context())
	if principal == nil {
		h.errors.Write(w, r, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, &models.MeResult{
		ID:          principal.ID.String(),
		DisplayName: principal.DisplayName,
		Roles:       nonNil(principal.Roles),
		Permissions: nonNil(principal.Permissions),
	})
}

func (h *Handler) writeCredentials(w http.ResponseWriter, pair *models.CredentialPair) {
	now := h.now()
	sessionTTL := pair.SessionExpiresAt.Sub(now)

	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    pair.SessionToken,
		Path:     SessionCookiePath,
		Expires:  pair.SessionExpiresAt,
		MaxAge:   max(int(sessionTTL.Seconds()), 1),
		HttpOnly: true,
		Secure:   h.cookieSecure,
		SameSite: http.SameSiteStrictMode,
	})
	w.Header().Set("Cache-Control", "no-store")
	httputil.WriteJSON(w, http.StatusOK, &models.TokenResult{
		AccessToken:      pair.AccessToken,
		TokenType:        "Bearer",
		ExpiresIn:        max(int(pair.AccessExpiresAt.Sub(now).Seconds()), 0),
		SessionExpiresIn: max(int(sessionTTL.Seconds()), 0),
	})
}

func (h *Handler) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     SessionCookiePath,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.cookieSecure,
		SameSite: http.SameSiteStrictMode,
	})
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
