package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/promodash/dash-front/internal/apicall"
	"github.com/promodash/dash-front/internal/business"
	"github.com/promodash/dash-front/internal/identity"
	"github.com/promodash/dash-front/internal/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testKey = []byte("0123456789abcdef0123456789abcdef")

func newTestHandlers(identityURL, businessURL string) (*Handlers, *session.Manager) {
	mgr := session.NewCookieManager(testKey, time.Hour)
	identityClient := identity.NewClient(identityURL)
	businessClient := business.NewClient(businessURL)
	executor := apicall.New(identityClient)
	return NewHandlers(mgr, identityClient, businessClient, executor, "test"), mgr
}

// loggedInCookies creates a session directly and returns its cookies
func loggedInCookies(t *testing.T, mgr *session.Manager, bundle session.Bundle) []*http.Cookie {
	t.Helper()
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/api/login", nil)
	require.NoError(t, mgr.Bind(w, r).Create(context.Background(), bundle))
	return w.Result().Cookies()
}

func TestLoginHandler_Success(t *testing.T) {
	provider := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/login/", r.URL.Path)

		var creds map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&creds))
		assert.Equal(t, "ana", creds["username"])

		_, _ = w.Write([]byte(`{"access_token": "acc", "refresh_token": "ref", "rol": "colaborador"}`))
	}))
	defer provider.Close()

	h, mgr := newTestHandlers(provider.URL, "http://unused")

	r := httptest.NewRequest(http.MethodPost, "/api/login", strings.NewReader(`{"username": "ana", "password": "secret"}`))
	w := httptest.NewRecorder()
	h.LoginHandler(w, r)

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"role": "colaborador"}`, w.Body.String())

	// The session cookie is usable on the next request
	next := httptest.NewRequest(http.MethodGet, "/", nil)
	for _, c := range w.Result().Cookies() {
		next.AddCookie(c)
	}
	bundle, err := mgr.Bind(httptest.NewRecorder(), next).Read(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "acc", bundle.AccessToken)
}

func TestLoginHandler_InvalidCredentials(t *testing.T) {
	provider := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"detail": "Invalid credentials."}`))
	}))
	defer provider.Close()

	h, _ := newTestHandlers(provider.URL, "http://unused")

	r := httptest.NewRequest(http.MethodPost, "/api/login", strings.NewReader(`{"username": "ana", "password": "wrong"}`))
	w := httptest.NewRecorder()
	h.LoginHandler(w, r)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Empty(t, w.Result().Cookies())
}

func TestLoginHandler_BadRequests(t *testing.T) {
	h, _ := newTestHandlers("http://unused", "http://unused")

	t.Run("malformed body", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/api/login", strings.NewReader(`{`))
		w := httptest.NewRecorder()
		h.LoginHandler(w, r)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("missing credentials", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/api/login", strings.NewReader(`{"username": "ana"}`))
		w := httptest.NewRecorder()
		h.LoginHandler(w, r)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("wrong method", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/api/login", nil)
		w := httptest.NewRecorder()
		h.LoginHandler(w, r)
		assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
	})
}

func TestLogoutHandler_ClearsSession(t *testing.T) {
	h, mgr := newTestHandlers("http://unused", "http://unused")
	cookies := loggedInCookies(t, mgr, session.Bundle{AccessToken: "acc"})

	r := httptest.NewRequest(http.MethodPost, "/api/logout", nil)
	for _, c := range cookies {
		r.AddCookie(c)
	}
	w := httptest.NewRecorder()
	h.LogoutHandler(w, r)

	require.Equal(t, http.StatusOK, w.Code)

	var cleared bool
	for _, c := range w.Result().Cookies() {
		if c.Name == "session" && c.MaxAge < 0 {
			cleared = true
		}
	}
	assert.True(t, cleared, "logout should clear the session cookie")
}

func TestLogoutHandler_WithoutSessionStillSucceeds(t *testing.T) {
	h, _ := newTestHandlers("http://unused", "http://unused")

	r := httptest.NewRequest(http.MethodPost, "/api/logout", nil)
	w := httptest.NewRecorder()
	h.LogoutHandler(w, r)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestCajerosHandler_PassesPayloadThrough(t *testing.T) {
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/cajeros/", r.URL.Path)
		assert.Equal(t, "Bearer acc", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`[{"id": 1, "nombre": "Ana"}]`))
	}))
	defer api.Close()

	h, mgr := newTestHandlers("http://unused", api.URL)
	cookies := loggedInCookies(t, mgr, session.Bundle{AccessToken: "acc"})

	r := httptest.NewRequest(http.MethodGet, "/api/cajeros", nil)
	for _, c := range cookies {
		r.AddCookie(c)
	}
	w := httptest.NewRecorder()
	h.CajerosHandler(w, r)

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[{"id": 1, "nombre": "Ana"}]`, w.Body.String())
}

func TestCajerosHandler_NoSession(t *testing.T) {
	calls := 0
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
	}))
	defer api.Close()

	h, _ := newTestHandlers("http://unused", api.URL)

	r := httptest.NewRequest(http.MethodGet, "/api/cajeros", nil)
	w := httptest.NewRecorder()
	h.CajerosHandler(w, r)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Zero(t, calls, "no upstream call without a session")
}

func TestCajerosHandler_ExpiredTokenIsRefreshed(t *testing.T) {
	provider := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/refresh-token/", r.URL.Path)
		assert.Equal(t, "Bearer old-acc", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{"access_token": "new-acc", "refresh_token": "new-ref"}`))
	}))
	defer provider.Close()

	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer new-acc" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"detail": "Token has expired."}`))
			return
		}
		_, _ = w.Write([]byte(`[{"id": 2}]`))
	}))
	defer api.Close()

	h, mgr := newTestHandlers(provider.URL, api.URL)
	cookies := loggedInCookies(t, mgr, session.Bundle{AccessToken: "old-acc", RefreshToken: "old-ref"})

	r := httptest.NewRequest(http.MethodGet, "/api/cajeros", nil)
	for _, c := range cookies {
		r.AddCookie(c)
	}
	w := httptest.NewRecorder()
	h.CajerosHandler(w, r)

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[{"id": 2}]`, w.Body.String())
}

func TestCajerosHandler_RefreshFailure(t *testing.T) {
	provider := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer provider.Close()

	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"detail": "Token has expired."}`))
	}))
	defer api.Close()

	h, mgr := newTestHandlers(provider.URL, api.URL)
	cookies := loggedInCookies(t, mgr, session.Bundle{AccessToken: "acc"})

	r := httptest.NewRequest(http.MethodGet, "/api/cajeros", nil)
	for _, c := range cookies {
		r.AddCookie(c)
	}
	w := httptest.NewRecorder()
	h.CajerosHandler(w, r)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestCajerosHandler_UpstreamFailure(t *testing.T) {
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"detail": "boom"}`))
	}))
	defer api.Close()

	h, mgr := newTestHandlers("http://unused", api.URL)
	cookies := loggedInCookies(t, mgr, session.Bundle{AccessToken: "acc"})

	r := httptest.NewRequest(http.MethodGet, "/api/cajeros", nil)
	for _, c := range cookies {
		r.AddCookie(c)
	}
	w := httptest.NewRecorder()
	h.CajerosHandler(w, r)

	assert.Equal(t, http.StatusBadGateway, w.Code)
}

func TestPromocionesHandler_PostForwardsBody(t *testing.T) {
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/promociones/", r.URL.Path)

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "2x1", body["titulo"])

		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id": 9}`))
	}))
	defer api.Close()

	h, mgr := newTestHandlers("http://unused", api.URL)
	cookies := loggedInCookies(t, mgr, session.Bundle{AccessToken: "acc"})

	r := httptest.NewRequest(http.MethodPost, "/api/promociones", strings.NewReader(`{"titulo": "2x1"}`))
	for _, c := range cookies {
		r.AddCookie(c)
	}
	w := httptest.NewRecorder()
	h.PromocionesHandler(w, r)

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"id": 9}`, w.Body.String())
}

func TestStatusHandler(t *testing.T) {
	h, _ := newTestHandlers("http://unused", "http://unused")

	r := httptest.NewRequest(http.MethodGet, "/admin/status", nil)
	w := httptest.NewRecorder()
	h.StatusHandler(w, r)

	require.Equal(t, http.StatusOK, w.Code)

	var status map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))
	assert.Equal(t, "test", status["version"])
	assert.Equal(t, "cookie", status["session_mode"])
}
