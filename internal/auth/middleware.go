package auth

import (
	"net/http"
	"net/url"
	"strings"
)

const (
	sessionCookieName = "caraudio-session"
	apiKeyParam       = "api-key"
)

// Middleware enforces authentication. In open mode every request passes.
// Otherwise a request authenticates with the session cookie, the api-key
// header, or the api-key query parameter. Rejected browser requests are
// redirected to the login page; programmatic clients (head-unit panels,
// scripts) get a plain 401 so they do not chase redirects.
func (s *Service) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.IsOpenMode() || s.authorized(r) {
			next.ServeHTTP(w, r)
			return
		}

		if wantsHTML(r) {
			loginURL := "/auth/login?next=" + url.QueryEscape(r.URL.RequestURI())
			http.Redirect(w, r, loginURL, http.StatusFound)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"code":"unauthorized","message":"valid api key required"}`))
	})
}

// authorized checks the request's credentials in cookie, header, query order.
func (s *Service) authorized(r *http.Request) bool {
	if cookie, err := r.Cookie(sessionCookieName); err == nil && s.VerifyKey(cookie.Value) {
		return true
	}
	if s.VerifyKey(r.Header.Get(apiKeyParam)) {
		return true
	}
	return s.VerifyKey(r.URL.Query().Get(apiKeyParam))
}

// wantsHTML reports whether the client is a browser navigation rather than
// an API call.
func wantsHTML(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "text/html")
}
