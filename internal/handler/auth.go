package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"choreboard/internal/auth"
	"choreboard/internal/middleware"
	"choreboard/internal/model"
	"choreboard/internal/store"
)

// RefreshCookieName carries the opaque refresh token, scoped to the auth
// route family only.
const RefreshCookieName = "refreshToken"

const refreshCookiePath = "/api/auth"

const bcryptCost = 10

// CookieConfig controls the security attributes of both auth cookies. In
// production: Secure on, SameSite=None (the SPA may be served from another
// origin); in development: Secure off, SameSite=Strict.
type CookieConfig struct {
	Secure   bool
	SameSite http.SameSite
}

type AuthHandler struct {
	users      *store.UserStore
	refresh    *store.RefreshTokenStore
	issuer     *auth.TokenIssuer
	refreshTTL time.Duration
	cookies    CookieConfig
	logger     *slog.Logger
}

func NewAuthHandler(
	us *store.UserStore,
	rts *store.RefreshTokenStore,
	issuer *auth.TokenIssuer,
	refreshTTL time.Duration,
	cookies CookieConfig,
	logger *slog.Logger,
) *AuthHandler {
	return &AuthHandler{
		users:      us,
		refresh:    rts,
		issuer:     issuer,
		refreshTTL: refreshTTL,
		cookies:    cookies,
		logger:     logger,
	}
}

type userResponse struct {
	ID        int64  `json:"id"`
	Email     string `json:"email"`
	Name      string `json:"name"`
	AvatarURL string `json:"avatar_url,omitempty"`
}

func publicUser(u *model.User) userResponse {
	return userResponse{ID: u.ID, Email: u.Email, Name: u.Name, AvatarURL: u.AvatarURL}
}

// issueSession creates both bearer artifacts and sets their cookies: a signed
// access token site-wide and a rotating refresh token scoped to /api/auth.
func (h *AuthHandler) issueSession(w http.ResponseWriter, u *model.User) error {
	accessToken, err := h.issuer.IssueAccessToken(u)
	if err != nil {
		return err
	}
	refreshToken, _, err := h.refresh.Create(u.ID, h.refreshTTL)
	if err != nil {
		return err
	}

	http.SetCookie(w, &http.Cookie{
		Name:     middleware.AccessCookieName,
		Value:    accessToken,
		Path:     "/",
		MaxAge:   int(h.issuer.AccessTTL().Seconds()),
		HttpOnly: true,
		Secure:   h.cookies.Secure,
		SameSite: h.cookies.SameSite,
	})
	http.SetCookie(w, &http.Cookie{
		Name:     RefreshCookieName,
		Value:    refreshToken,
		Path:     refreshCookiePath,
		MaxAge:   int(h.refreshTTL.Seconds()),
		HttpOnly: true,
		Secure:   h.cookies.Secure,
		SameSite: h.cookies.SameSite,
	})
	return nil
}

func (h *AuthHandler) clearSessionCookies(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.AccessCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.cookies.Secure,
		SameSite: h.cookies.SameSite,
	})
	http.SetCookie(w, &http.Cookie{
		Name:     RefreshCookieName,
		Value:    "",
		Path:     refreshCookiePath,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.cookies.Secure,
		SameSite: h.cookies.SameSite,
	})
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
		Name     string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		fail(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	req.Name = strings.TrimSpace(req.Name)
	if req.Email == "" || req.Password == "" || req.Name == "" {
		fail(w, http.StatusBadRequest, "email, password, and name are required")
		return
	}

	existing, err := h.users.GetByEmail(req.Email)
	if err != nil {
		h.logger.Error("register lookup", "error", err)
		fail(w, http.StatusInternalServerError, "failed to register")
		return
	}
	if existing != nil {
		fail(w, http.StatusConflict, "user with this email already exists")
		return
	}

	hashBytes, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcryptCost)
	if err != nil {
		h.logger.Error("hash password", "error", err)
		fail(w, http.StatusInternalServerError, "failed to register")
		return
	}
	hash := string(hashBytes)

	user, err := h.users.Create(req.Email, &hash, req.Name)
	if err != nil {
		// Unique constraint backs the pre-check against a concurrent register.
		h.logger.Error("create user", "error", err)
		fail(w, http.StatusConflict, "user with this email already exists")
		return
	}

	if err := h.issueSession(w, user); err != nil {
		h.logger.Error("issue session", "error", err)
		fail(w, http.StatusInternalServerError, "failed to register")
		return
	}

	respond(w, http.StatusCreated, map[string]any{"user": publicUser(user)}, "user registered successfully")
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		fail(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	if req.Email == "" || req.Password == "" {
		fail(w, http.StatusBadRequest, "email and password are required")
		return
	}

	// One error message for every credential failure: the response never
	// reveals whether the email exists.
	user, err := h.users.GetByEmail(req.Email)
	if err != nil {
		h.logger.Error("login lookup", "error", err)
		fail(w, http.StatusInternalServerError, "failed to log in")
		return
	}
	if user == nil || user.PasswordHash == nil {
		fail(w, http.StatusUnauthorized, "invalid email or password")
		return
	}
	if err := bcrypt.CompareHashAndPassword([]byte(*user.PasswordHash), []byte(req.Password)); err != nil {
		fail(w, http.StatusUnauthorized, "invalid email or password")
		return
	}

	if err := h.users.UpdateLastLogin(user.ID); err != nil {
		h.logger.Error("update last login", "error", err)
	}

	if err := h.issueSession(w, user); err != nil {
		h.logger.Error("issue session", "error", err)
		fail(w, http.StatusInternalServerError, "failed to log in")
		return
	}

	respond(w, http.StatusOK, map[string]any{"user": publicUser(user)}, "login successful")
}

// Refresh rotates the refresh token: the presented token is revoked and a new
// access/refresh pair is issued. A missing, expired, revoked, or unknown
// token is a 401 and issues nothing, so a replayed token always fails.
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(RefreshCookieName)
	if err != nil || cookie.Value == "" {
		fail(w, http.StatusUnauthorized, "refresh token required")
		return
	}

	rt, err := h.refresh.GetByToken(cookie.Value)
	if err != nil {
		h.logger.Error("refresh lookup", "error", err)
		fail(w, http.StatusInternalServerError, "failed to refresh token")
		return
	}
	if rt == nil {
		fail(w, http.StatusUnauthorized, "invalid or expired refresh token")
		return
	}

	user, err := h.users.GetByID(rt.UserID)
	if err != nil {
		h.logger.Error("refresh user lookup", "error", err)
		fail(w, http.StatusInternalServerError, "failed to refresh token")
		return
	}
	if user == nil {
		fail(w, http.StatusUnauthorized, "invalid or expired refresh token")
		return
	}

	if err := h.refresh.Revoke(rt.ID); err != nil {
		h.logger.Error("revoke refresh token", "error", err)
		fail(w, http.StatusInternalServerError, "failed to refresh token")
		return
	}

	if err := h.issueSession(w, user); err != nil {
		h.logger.Error("issue session", "error", err)
		fail(w, http.StatusInternalServerError, "failed to refresh token")
		return
	}

	respond(w, http.StatusOK, nil, "token refreshed successfully")
}

// Logout revokes the presented refresh token and clears both cookies. Cookies
// are cleared even when no valid token was presented.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(RefreshCookieName); err == nil && cookie.Value != "" {
		if rt, err := h.refresh.GetByToken(cookie.Value); err == nil && rt != nil {
			if err := h.refresh.Revoke(rt.ID); err != nil {
				h.logger.Error("revoke on logout", "error", err)
			}
		}
	}

	h.clearSessionCookies(w)
	respond(w, http.StatusOK, nil, "logout successful")
}

func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	user, err := h.users.GetByID(auth.UserID(r.Context()))
	if err != nil {
		h.logger.Error("me lookup", "error", err)
		fail(w, http.StatusInternalServerError, "failed to load user")
		return
	}
	if user == nil {
		fail(w, http.StatusNotFound, "user not found")
		return
	}

	respond(w, http.StatusOK, map[string]any{"user": publicUser(user)}, "")
}
