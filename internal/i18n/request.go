package i18n

import "net/http"

const (
	// CookieName holds the user's locale preference
	CookieName = "locale"
	// QueryParam overrides the cookie for a single request
	QueryParam = "lang"

	cookieMaxAge = 365 * 24 * 60 * 60
)

// FromRequest resolves the locale for r: ?lang= first, then the cookie,
// then DefaultLocale
func FromRequest(r *http.Request) Locale {
	if loc, ok := ParseLocale(r.URL.Query().Get(QueryParam)); ok {
		return loc
	}
	if c, err := r.Cookie(CookieName); err == nil {
		if loc, ok := ParseLocale(c.Value); ok {
			return loc
		}
	}
	return DefaultLocale
}

// SetCookie persists loc for a year
func SetCookie(w http.ResponseWriter, loc Locale) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    string(loc),
		Path:     "/",
		MaxAge:   cookieMaxAge,
		SameSite: http.SameSiteLaxMode,
	})
}
