package cookie

import (
	"net/http"
	"time"

	"github.com/promodash/dash-front/internal/envutil"
)

// Session is the single named cookie holding the serialized session record
const Session = "session"

// SetSession sets the session cookie with the security settings the dashboard
// relies on: http-only, secure outside dev, same-site lax, whole-site path.
// The absolute expiry is always server-chosen.
func SetSession(w http.ResponseWriter, value string, expiresAt time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     Session,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   !envutil.IsDev(),
		SameSite: http.SameSiteLaxMode,
		Expires:  expiresAt,
	})
}

// ClearSession removes the session cookie. Safe to call when no cookie exists.
func ClearSession(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:   Session,
		Value:  "",
		Path:   "/",
		MaxAge: -1,
	})
}

// GetSession retrieves the raw session cookie value from the request
func GetSession(r *http.Request) (string, error) {
	c, err := r.Cookie(Session)
	if err != nil {
		return "", err
	}
	return c.Value, nil
}
