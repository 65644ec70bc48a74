package handlers

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/BenjaminAGH/NocturneScope/infrastructure/upstream"
	"github.com/BenjaminAGH/NocturneScope/pkg/auth"
	"github.com/BenjaminAGH/NocturneScope/pkg/common"
	pkgerrors "github.com/BenjaminAGH/NocturneScope/pkg/errors"
)

const maxAuthBodyBytes = 16 << 10

// AuthHandler owns the credential endpoints: login, register, refresh,
// logout and the current-user probe.
type AuthHandler struct {
	client       *upstream.Client
	sessions     auth.SessionStore
	limiter      *auth.LoginLimiter
	errHandler   *pkgerrors.ErrorHandler
	logger       *zap.Logger
	sessionTTL   time.Duration
	secureCookie bool
}

// NewAuthHandler creates an auth handler.
func NewAuthHandler(client *upstream.Client, sessions auth.SessionStore, limiter *auth.LoginLimiter,
	errHandler *pkgerrors.ErrorHandler, logger *zap.Logger, sessionTTL time.Duration, secureCookie bool) *AuthHandler {
	return &AuthHandler{
		client:       client,
		sessions:     sessions,
		limiter:      limiter,
		errHandler:   errHandler,
		logger:       logger,
		sessionTTL:   sessionTTL,
		secureCookie: secureCookie,
	}
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type registerRequest struct {
	Username string `json:"username" validate:"required,min=3,max=64"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
}

type userResponse struct {
	UserID   string `json:"user_id"`
	Username string `json:"username,omitempty"`
	Email    string `json:"email,omitempty"`
	Role     string `json:"role,omitempty"`
}

// Login exchanges credentials for a console session.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	allowed, _ := h.limiter.Allow(r.Context(), r.RemoteAddr)
	if !allowed {
		h.errHandler.Handle(w, r, pkgerrors.NewRateLimitError(10, "minute"))
		return
	}

	var req loginRequest
	if err := common.ParseJSONBody(r, &req, maxAuthBodyBytes); err != nil {
		h.errHandler.Handle(w, r, pkgerrors.NewValidationError("invalid request body"))
		return
	}
	if err := common.ValidateStruct(req); err != nil {
		h.errHandler.Handle(w, r, pkgerrors.NewValidationError(err.Error()))
		return
	}

	pair, err := h.client.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		h.errHandler.Handle(w, r, err)
		return
	}

	info, err := auth.InspectToken(pair.AccessToken)
	if err != nil {
		h.errHandler.Handle(w, r, pkgerrors.NewUnauthorizedError("upstream issued an unusable token"))
		return
	}

	session := h.sessions.Create(info.Subject, info.Email, pair.AccessToken, pair.RefreshToken, h.sessionTTL)
	h.setAuthCookies(w, session.ID, pair.AccessToken)
	h.limiter.Reset(r.Context(), r.RemoteAddr)

	h.logger.Info("user logged in", zap.String("user_id", info.Subject))
	common.RespondJSON(w, http.StatusOK, userResponse{
		UserID:   info.Subject,
		Username: info.Username,
		Email:    info.Email,
		Role:     info.Role,
	})
}

// Register creates an account, then leaves the user to log in.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	allowed, _ := h.limiter.Allow(r.Context(), r.RemoteAddr)
	if !allowed {
		h.errHandler.Handle(w, r, pkgerrors.NewRateLimitError(10, "minute"))
		return
	}

	var req registerRequest
	if err := common.ParseJSONBody(r, &req, maxAuthBodyBytes); err != nil {
		h.errHandler.Handle(w, r, pkgerrors.NewValidationError("invalid request body"))
		return
	}
	if err := common.ValidateStruct(req); err != nil {
		h.errHandler.Handle(w, r, pkgerrors.NewValidationError(err.Error()))
		return
	}

	if err := h.client.Register(r.Context(), req.Username, req.Email, req.Password); err != nil {
		h.errHandler.Handle(w, r, err)
		return
	}
	common.RespondJSON(w, http.StatusCreated, map[string]string{"status": "registered"})
}

// Refresh rotates the session's tokens using the stored refresh token.
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	session, err := auth.GetSessionFromContext(r.Context())
	if err != nil {
		h.errHandler.Handle(w, r, err)
		return
	}
	if session.RefreshToken == "" {
		h.errHandler.Handle(w, r, pkgerrors.NewUnauthorizedError("session has no refresh token"))
		return
	}

	pair, err := h.client.Refresh(r.Context(), session.RefreshToken)
	if err != nil {
		h.errHandler.Handle(w, r, err)
		return
	}

	session.AccessToken = pair.AccessToken
	session.RefreshToken = pair.RefreshToken
	h.setAuthCookies(w, session.ID, pair.AccessToken)
	common.RespondNoContent(w)
}

// Logout tears the session down and clears cookies.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(auth.SessionCookieName); err == nil && cookie.Value != "" {
		h.sessions.Delete(cookie.Value)
	}
	h.clearAuthCookies(w)
	common.RespondNoContent(w)
}

// Me returns the authenticated user's identity.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	user, err := auth.GetUserFromContext(r.Context())
	if err != nil {
		h.errHandler.Handle(w, r, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, userResponse{
		UserID:   user.UserID,
		Username: user.Username,
		Email:    user.Email,
		Role:     user.Role,
	})
}

func (h *AuthHandler) setAuthCookies(w http.ResponseWriter, sessionID, accessToken string) {
	http.SetCookie(w, &http.Cookie{
		Name:     auth.SessionCookieName,
		Value:    sessionID,
		Path:     "/",
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(h.sessionTTL.Seconds()),
	})
	// The jwt cookie exists for page scripts that inspect expiry locally;
	// the API never trusts it.
	http.SetCookie(w, &http.Cookie{
		Name:     auth.JWTCookieName,
		Value:    accessToken,
		Path:     "/",
		Secure:   h.secureCookie,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(h.sessionTTL.Seconds()),
	})
}

func (h *AuthHandler) clearAuthCookies(w http.ResponseWriter) {
	for _, name := range []string{auth.SessionCookieName, auth.JWTCookieName} {
		http.SetCookie(w, &http.Cookie{
			Name:     name,
			Value:    "",
			Path:     "/",
			MaxAge:   -1,
			HttpOnly: name == auth.SessionCookieName,
			Secure:   h.secureCookie,
			SameSite: http.SameSiteLaxMode,
		})
	}
}
