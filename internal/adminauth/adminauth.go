package adminauth

import (
	"encoding/base64"
	"net/http"
	"strings"

	"github.com/promodash/dash-front/internal/config"
	jsonwriter "github.com/promodash/dash-front/internal/json"
	"github.com/promodash/dash-front/internal/log"
	"golang.org/x/crypto/bcrypt"
)

// Middleware guards operational endpoints with basic auth against the
// configured admin credentials. A nil admin config disables the endpoints
// entirely rather than leaving them open.
func Middleware(admin *config.AdminConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if admin == nil {
				jsonwriter.WriteNotFound(w, "Not Found")
				return
			}

			username, password, ok := decodeBasicAuth(r.Header.Get("Authorization"))
			if !ok {
				challenge(w)
				return
			}

			if username != admin.Username {
				log.LogWarnWithFields("adminauth", "Admin auth failed: unknown username", map[string]any{
					"username": username,
				})
				challenge(w)
				return
			}

			if err := bcrypt.CompareHashAndPassword([]byte(string(admin.PasswordHash)), []byte(password)); err != nil {
				log.LogWarnWithFields("adminauth", "Admin auth failed: bad password", map[string]any{
					"username": username,
				})
				challenge(w)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func challenge(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", `Basic realm="dash-front"`)
	jsonwriter.WriteUnauthorized(w, "Unauthorized")
}

func decodeBasicAuth(header string) (username, password string, ok bool) {
	if !strings.HasPrefix(header, "Basic ") {
		return "", "", false
	}

	decoded, err := base64.StdEncoding.DecodeString(header[6:])
	if err != nil {
		return "", "", false
	}

	credentials := string(decoded)
	colonIdx := strings.IndexByte(credentials, ':')
	if colonIdx == -1 {
		return "", "", false
	}

	return credentials[:colonIdx], credentials[colonIdx+1:], true
}
