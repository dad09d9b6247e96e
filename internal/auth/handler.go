package auth

import (
	"context"
	"net/http"
	"net/url"

	"github.com/frahmantamala/employee-onboarding/internal"
	"github.com/frahmantamala/employee-onboarding/internal/transport"
	"github.com/frahmantamala/employee-onboarding/pkg/logger"
	"github.com/go-chi/chi"
)

// SessionCookie carries the session token for browser clients.
const SessionCookie = "onboarding_session"

type Handler struct {
	*transport.BaseHandler
	Service       ServiceAPI
	SecureCookies bool
}

func NewHandler(baseHandler *transport.BaseHandler, svc ServiceAPI, secureCookies bool) *Handler {
	return &Handler{
		BaseHandler:   baseHandler,
		Service:       svc,
		SecureCookies: secureCookies,
	}
}

// Routes mounts login and logout on r. Logout requires a session.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/login", h.Login)
	r.With(h.RequireSession).Post("/logout", h.Logout)
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var dto LoginDTO
	if err := h.DecodeJSON(r, &dto); err != nil {
		h.HandleServiceError(w, err)
		return
	}

	session, err := h.Service.Login(r.Context(), dto)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	SetSessionCookie(w, session, h.SecureCookies)
	h.WriteJSON(w, http.StatusOK, session.ToResponse())
}

func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.Service.Logout(r.Context(), TokenFromRequest(r)); err != nil {
		h.HandleServiceError(w, err)
		return
	}

	ClearSessionCookie(w, h.SecureCookies)
	h.WriteJSON(w, http.StatusOK, MessageResponse{Message: "logged out"})
}

// RequireSession rejects requests without a valid session with a JSON 401.
func (h *Handler) RequireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := TokenFromRequest(r)
		if token == "" {
			h.WriteAppError(w, internal.NewUnauthorizedError("missing session token", internal.ErrCodeInvalidToken))
			return
		}

		session, err := h.Service.Authenticate(r.Context(), token)
		if err != nil {
			h.HandleServiceError(w, err)
			return
		}

		next.ServeHTTP(w, r.WithContext(withSession(r, session)))
	})
}

// RequireSessionRedirect sends browsers without a valid session to
// loginPath, remembering where they were headed.
func (h *Handler) RequireSessionRedirect(loginPath string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			session, err := h.Service.Authenticate(r.Context(), TokenFromRequest(r))
			if err != nil {
				ClearSessionCookie(w, h.SecureCookies)
				target := loginPath
				if r.Method == http.MethodGet {
					target += "?next=" + url.QueryEscape(r.URL.RequestURI())
				}
				http.Redirect(w, r, target, http.StatusSeeOther)
				return
			}

			next.ServeHTTP(w, r.WithContext(withSession(r, session)))
		})
	}
}

func withSession(r *http.Request, session *Session) context.Context {
	ctx := internal.ContextWithAdminID(r.Context(), session.AdminID)
	return logger.With(ctx, "admin_id", session.AdminID)
}

// TokenFromRequest returns the bearer token, falling back to the session cookie.
func TokenFromRequest(r *http.Request) string {
	if token := transport.BearerToken(r); token != "" {
		return token
	}
	if c, err := r.Cookie(SessionCookie); err == nil {
		return c.Value
	}
	return ""
}

func SetSessionCookie(w http.ResponseWriter, session *Session, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    session.Token,
		Path:     "/",
		Expires:  session.ExpiresAt,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func ClearSessionCookie(w http.ResponseWriter, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}
