package httpapi

import (
	"net/http"
	"time"
)

const (
	accessTokenCookie  = "accessToken"
	refreshTokenCookie = "refreshToken"
)

// CookieConfig holds the flags shared by both token cookies. Both are always
// HttpOnly.
type CookieConfig struct {
	Secure     bool
	SameSite   http.SameSite
	Domain     string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

func (c CookieConfig) cookie(name, value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Domain:   c.Domain,
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: c.SameSite,
	}
}

func (c CookieConfig) setTokens(w http.ResponseWriter, access, refresh string) {
	http.SetCookie(w, c.cookie(accessTokenCookie, access, int(c.AccessTTL.Seconds())))
	http.SetCookie(w, c.cookie(refreshTokenCookie, refresh, int(c.RefreshTTL.Seconds())))
}

func (c CookieConfig) clearTokens(w http.ResponseWriter) {
	http.SetCookie(w, c.cookie(accessTokenCookie, "", -1))
	http.SetCookie(w, c.cookie(refreshTokenCookie, "", -1))
}

func cookieValue(r *http.Request, name string) string {
	c, err := r.Cookie(name)
	if err != nil {
		return ""
	}
	return c.Value
}
