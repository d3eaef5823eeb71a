package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/dukerupert/linkshelf/internal/auth"
	"github.com/dukerupert/linkshelf/internal/credential"
	"github.com/dukerupert/linkshelf/internal/response"
	"github.com/dukerupert/linkshelf/internal/session"
	"github.com/dukerupert/linkshelf/internal/store"
	"github.com/dukerupert/linkshelf/internal/websocket"
)

type AuthHandler struct {
	userStore         *store.UserStore
	sessions          *session.Store
	verifier          credential.Verifier
	hub               *websocket.Hub
	secureCookie      bool
	allowRegistration bool
	logger            *slog.Logger
}

type AuthOptions struct {
	SecureCookie      bool
	AllowRegistration bool
}

func NewAuthHandler(
	us *store.UserStore,
	sessions *session.Store,
	verifier credential.Verifier,
	hub *websocket.Hub,
	opts AuthOptions,
	logger *slog.Logger,
) *AuthHandler {
	return &AuthHandler{
		userStore:         us,
		sessions:          sessions,
		verifier:          verifier,
		hub:               hub,
		secureCookie:      opts.SecureCookie,
		allowRegistration: opts.AllowRegistration,
		logger:            logger,
	}
}

type credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// readCredentials accepts a JSON body or a form post.
func readCredentials(w http.ResponseWriter, r *http.Request) (credentials, error) {
	var c credentials
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		if err := decodeJSON(w, r, &c); err != nil {
			return c, err
		}
	} else {
		r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
		c.Username = r.FormValue("username")
		c.Password = r.FormValue("password")
	}
	c.Username = strings.TrimSpace(c.Username)
	return c, nil
}

type sessionResponse struct {
	Token    string `json:"token"`
	Username string `json:"username"`
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	if !h.allowRegistration {
		response.Fail(w, response.Forbidden, "registration is disabled")
		return
	}

	c, err := readCredentials(w, r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if err := validateUsername(c.Username); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if c.Password == "" {
		writeError(w, r, h.logger, response.Invalid("password", "is required"))
		return
	}

	hash, err := h.verifier.Hash(c.Password)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	user, err := h.userStore.Create(r.Context(), c.Username, hash)
	if errors.Is(err, store.ErrConstraint) {
		response.Fail(w, response.BadRequest, "username is taken")
		return
	}
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	h.logger.Info("user registered", "username", user.Username)
	response.OK(w, user)
}

// Login issues a session for valid credentials. A failed attempt issues
// nothing.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	c, err := readCredentials(w, r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if c.Username == "" || c.Password == "" {
		response.Fail(w, response.BadRequest, "username and password are required")
		return
	}

	user, err := h.userStore.GetByUsername(r.Context(), c.Username)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		writeError(w, r, h.logger, err)
		return
	}
	if user == nil || !h.verifier.Verify(user.PasswordHash, c.Password) {
		h.logger.Info("login failed", "username", c.Username)
		response.Fail(w, response.Unauthorized, "invalid username or password")
		return
	}

	token := h.sessions.Create(user.Username)
	h.setSessionCookie(w, r, token)
	response.OK(w, sessionResponse{Token: token, Username: user.Username})
}

// Logout revokes the request's session, if any, and always succeeds.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	token, ok := auth.ParseSessionToken(strings.Join(r.Header.Values("Cookie"), "; "))
	if ok {
		if _, revoked := h.sessions.Revoke(token); revoked && h.hub != nil {
			h.hub.DisconnectSession(token)
		}
	}
	h.clearSessionCookie(w, r)
	response.OK(w, nil)
}

func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	user, ok := resolveCaller(w, r, h.userStore, h.logger)
	if !ok {
		return
	}
	response.OK(w, user)
}

type passwordRequest struct {
	Current string `json:"current_password"`
	New     string `json:"new_password"`
}

// ChangePassword replaces the caller's password and ends every other
// session they hold.
func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	user, ok := resolveCaller(w, r, h.userStore, h.logger)
	if !ok {
		return
	}

	var req passwordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if req.New == "" {
		writeError(w, r, h.logger, response.Invalid("new_password", "is required"))
		return
	}
	if !h.verifier.Verify(user.PasswordHash, req.Current) {
		response.Fail(w, response.Forbidden, "current password does not match")
		return
	}

	hash, err := h.verifier.Hash(req.New)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if _, err := h.userStore.UpdatePassword(r.Context(), user.ID, hash); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	revoked := h.sessions.RevokeUser(user.Username)
	if h.hub != nil {
		h.hub.Disconnect(user.Username)
	}
	token := h.sessions.Create(user.Username)
	h.setSessionCookie(w, r, token)

	h.logger.Info("password changed", "username", user.Username, "sessions_revoked", revoked)
	response.OK(w, sessionResponse{Token: token, Username: user.Username})
}

func (h *AuthHandler) setSessionCookie(w http.ResponseWriter, r *http.Request, token string) {
	c := &http.Cookie{
		Name:     auth.SessionCookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   h.secureCookie || r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	}
	if ttl := h.sessions.TTL(); ttl > 0 {
		c.MaxAge = int(ttl.Seconds())
	}
	http.SetCookie(w, c)
}

func (h *AuthHandler) clearSessionCookie(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     auth.SessionCookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   h.secureCookie || r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1,
	})
}
