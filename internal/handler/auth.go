package handler

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/tcobb/launchbase/internal/auth"
	"github.com/tcobb/launchbase/internal/email"
	"github.com/tcobb/launchbase/internal/store"
)

// SessionCookieName is the cookie carrying the session token.
const SessionCookieName = "launchbase_session"

type AuthHandler struct {
	userStore    *store.UserStore
	sessionStore *store.SessionStore
	signer       *auth.TokenSigner
	emailClient  *email.Client
	renderer     *Renderer
	logger       *slog.Logger
}

func NewAuthHandler(
	us *store.UserStore,
	ss *store.SessionStore,
	signer *auth.TokenSigner,
	ec *email.Client,
	renderer *Renderer,
	logger *slog.Logger,
) *AuthHandler {
	return &AuthHandler{
		userStore:    us,
		sessionStore: ss,
		signer:       signer,
		emailClient:  ec,
		renderer:     renderer,
		logger:       logger,
	}
}

// LoginPage renders the login form.
func (h *AuthHandler) LoginPage(w http.ResponseWriter, r *http.Request) {
	data := map[string]any{}
	if redirect := r.URL.Query().Get("redirect"); redirect != "" {
		data["Redirect"] = redirect
	}
	if r.URL.Query().Get("verified") == "1" {
		data["Notice"] = "Email verified. You can sign in now."
	}
	h.renderer.Render(w, "login.html", data)
}

// Login verifies the email/password pair and starts a session.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.renderer.Render(w, "login.html", map[string]any{"Error": "Invalid form data"})
		return
	}

	addr := strings.TrimSpace(strings.ToLower(r.FormValue("email")))
	password := r.FormValue("password")
	if addr == "" || password == "" {
		h.renderer.Render(w, "login.html", map[string]any{"Error": "Email and password are required"})
		return
	}

	userID, hash, err := h.userStore.PasswordHash(addr)
	if err != nil {
		h.logger.Error("get password hash", "error", err)
		h.renderer.Render(w, "login.html", map[string]any{"Error": "Unable to process request"})
		return
	}
	if userID == "" || !auth.CheckPassword(hash, password) {
		h.renderer.Render(w, "login.html", map[string]any{"Error": "Invalid email or password"})
		return
	}

	if err := h.startSession(w, userID); err != nil {
		h.logger.Error("create session", "error", err)
		h.renderer.Render(w, "login.html", map[string]any{"Error": "Unable to process request"})
		return
	}

	target := "/dashboard"
	if redirect := r.FormValue("redirect"); isValidRedirect(redirect) {
		target = redirect
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}

// RegisterPage renders the registration form.
func (h *AuthHandler) RegisterPage(w http.ResponseWriter, r *http.Request) {
	h.renderer.Render(w, "register.html", nil)
}

// Register creates a user, mails a verification link, and signs them in.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.renderer.Render(w, "register.html", map[string]any{"Error": "Invalid form data"})
		return
	}

	name := strings.TrimSpace(r.FormValue("name"))
	addr := strings.TrimSpace(strings.ToLower(r.FormValue("email")))
	password := r.FormValue("password")
	if name == "" || addr == "" {
		h.renderer.Render(w, "register.html", map[string]any{"Error": "Name and email are required"})
		return
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		h.renderer.Render(w, "register.html", map[string]any{"Error": err.Error()})
		return
	}

	if existing, err := h.userStore.GetByEmail(addr); err != nil {
		h.logger.Error("get user by email", "error", err)
		h.renderer.Render(w, "register.html", map[string]any{"Error": "Unable to process request"})
		return
	} else if existing != nil {
		h.renderer.Render(w, "register.html", map[string]any{"Error": "An account with this email already exists"})
		return
	}

	user, err := h.userStore.Create(name, addr, hash)
	if err != nil {
		h.logger.Error("create user", "error", err)
		h.renderer.Render(w, "register.html", map[string]any{"Error": "Unable to process request"})
		return
	}

	h.sendVerificationEmail(user.ID, addr)

	if err := h.startSession(w, user.ID); err != nil {
		h.logger.Error("create session", "error", err)
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return
	}
	http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
}

// Verify consumes an email verification token.
func (h *AuthHandler) Verify(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return
	}

	userID, err := h.signer.VerifyVerification(token)
	if err != nil {
		h.logger.Warn("invalid verification token", "error", err)
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return
	}

	if err := h.userStore.MarkEmailVerified(userID); err != nil {
		h.logger.Error("mark email verified", "error", err)
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return
	}

	http.Redirect(w, r, "/login?verified=1", http.StatusSeeOther)
}

// Logout ends the current session.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if ac, ok := auth.FromContext(r.Context()); ok {
		if err := h.sessionStore.Delete(ac.SessionID); err != nil {
			h.logger.Error("delete session", "error", err)
		}
	}
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (h *AuthHandler) startSession(w http.ResponseWriter, userID string) error {
	sess, err := h.sessionStore.Create(userID)
	if err != nil {
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    sess.Token,
		Path:     "/",
		Expires:  sess.ExpiresAt,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

func (h *AuthHandler) sendVerificationEmail(userID, addr string) {
	token, err := h.signer.SignVerification(userID)
	if err != nil {
		h.logger.Error("sign verification token", "error", err)
		return
	}
	if h.emailClient != nil && h.emailClient.Configured() {
		if err := h.emailClient.SendVerificationEmail(addr, token); err != nil {
			h.logger.Error("send verification email", "error", err)
		}
		return
	}
	h.logger.Info("verification token generated", "email", addr, "token", token)
}

// isValidRedirect accepts only local paths so the login redirect cannot be
// abused as an open redirect.
func isValidRedirect(redirect string) bool {
	return strings.HasPrefix(redirect, "/") && !strings.HasPrefix(redirect, "//")
}
