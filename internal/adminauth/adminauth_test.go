package adminauth

import (
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/promodash/dash-front/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func adminConfig(t *testing.T, username, password string) *config.AdminConfig {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	return &config.AdminConfig{
		Username:     username,
		PasswordHash: config.Secret(hash),
	}
}

func serve(admin *config.AdminConfig, authHeader string) *httptest.ResponseRecorder {
	handler := Middleware(admin)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}))

	r := httptest.NewRequest(http.MethodGet, "/admin/status", nil)
	if authHeader != "" {
		r.Header.Set("Authorization", authHeader)
	}
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, r)
	return w
}

func basic(username, password string) string {
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(username+":"+password))
}

func TestMiddleware_ValidCredentials(t *testing.T) {
	admin := adminConfig(t, "ops", "hunter2")
	w := serve(admin, basic("ops", "hunter2"))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", w.Body.String())
}

func TestMiddleware_RejectsBadCredentials(t *testing.T) {
	admin := adminConfig(t, "ops", "hunter2")

	tests := []struct {
		name   string
		header string
	}{
		{"no header", ""},
		{"wrong password", basic("ops", "wrong")},
		{"wrong username", basic("root", "hunter2")},
		{"not basic", "Bearer token"},
		{"bad base64", "Basic !!!"},
		{"no colon", "Basic " + base64.StdEncoding.EncodeToString([]byte("opshunter2"))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := serve(admin, tt.header)
			assert.Equal(t, http.StatusUnauthorized, w.Code)
			assert.Equal(t, `Basic realm="dash-front"`, w.Header().Get("WWW-Authenticate"))
		})
	}
}

func TestMiddleware_NilConfigHidesEndpoint(t *testing.T) {
	w := serve(nil, basic("ops", "hunter2"))
	assert.Equal(t, http.StatusNotFound, w.Code)
}
