package handler

import (
	"net/http"
	"time"

	"github.com/sakif/tagged-todos/internal/auth"
)

// SessionCookie describes the auth cookie written after a successful
// sign-in. Browser clients use it; API clients use the token from the
// response body as a Bearer header instead. auth.RequireAuth accepts both.
type SessionCookie struct {
	TTL    time.Duration // should match the token lifetime
	Secure bool          // true behind HTTPS
}

// set stores token in an HttpOnly cookie.
// HttpOnly = JavaScript cannot read this cookie (XSS protection).
// SameSite=Lax = cookie is sent on top-level navigations but not cross-site POSTs.
func (c SessionCookie) set(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     auth.CookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(c.TTL.Seconds()),
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (c SessionCookie) clear(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     auth.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1, // tells the browser to delete the cookie immediately
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}
