package apicall

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/promodash/dash-front/internal/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testKey = []byte("0123456789abcdef0123456789abcdef")

// fakeRefresher records refresh calls and hands out a fixed new token
type fakeRefresher struct {
	calls    int
	newToken string
	err      error
}

func (f *fakeRefresher) Refresh(_ context.Context, _ *session.Context, _ string) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return f.newToken, nil
}

// sessionWith returns a context bound to a request carrying a session with
// the given access token; empty token means no session at all.
func sessionWith(t *testing.T, token string) *session.Context {
	t.Helper()
	mgr := session.NewCookieManager(testKey, time.Hour)

	r := httptest.NewRequest(http.MethodGet, "/api/test", nil)
	if token != "" {
		w := httptest.NewRecorder()
		require.NoError(t, mgr.Bind(w, r).Create(context.Background(), session.Bundle{AccessToken: token}))
		for _, c := range w.Result().Cookies() {
			r.AddCookie(c)
		}
	}
	return mgr.Bind(httptest.NewRecorder(), r)
}

func authFailure(detail string) error {
	return &APIError{StatusCode: 401, Detail: detail}
}

func TestDo_NoSessionMakesNoNetworkCall(t *testing.T) {
	refresher := &fakeRefresher{}
	exec := New(refresher)

	calls := 0
	_, err := exec.Do(context.Background(), sessionWith(t, ""), func(ctx context.Context, token string) ([]byte, error) {
		calls++
		return nil, nil
	})

	assert.ErrorIs(t, err, ErrSessionInvalid)
	assert.Zero(t, calls)
	assert.Zero(t, refresher.calls)
}

func TestDo_SuccessPassesPayloadThrough(t *testing.T) {
	refresher := &fakeRefresher{}
	exec := New(refresher)

	payload, err := exec.Do(context.Background(), sessionWith(t, "tok-1"), func(ctx context.Context, token string) ([]byte, error) {
		assert.Equal(t, "tok-1", token)
		return []byte(`{"cajeros": []}`), nil
	})

	require.NoError(t, err)
	assert.Equal(t, []byte(`{"cajeros": []}`), payload)
	assert.Zero(t, refresher.calls)
}

func TestDo_AuthFailureRefreshesOnceAndRetries(t *testing.T) {
	for _, detail := range []string{
		"Authentication credentials were not provided.",
		"Invalid token.",
		"Token has expired.",
	} {
		t.Run(detail, func(t *testing.T) {
			refresher := &fakeRefresher{newToken: "tok-2"}
			exec := New(refresher)

			var tokens []string
			payload, err := exec.Do(context.Background(), sessionWith(t, "tok-1"), func(ctx context.Context, token string) ([]byte, error) {
				tokens = append(tokens, token)
				if len(tokens) == 1 {
					return nil, authFailure(detail)
				}
				return []byte(`ok`), nil
			})

			require.NoError(t, err)
			assert.Equal(t, []byte(`ok`), payload)
			assert.Equal(t, 1, refresher.calls)
			// refresh strictly precedes the retried call, which uses the new token
			assert.Equal(t, []string{"tok-1", "tok-2"}, tokens)
		})
	}
}

func TestDo_NonAuthFailureIsTerminalWithoutRefresh(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"network error", errors.New("connection refused")},
		{"server error", &APIError{StatusCode: 500, Detail: "boom"}},
		{"unrecognized 401 detail", &APIError{StatusCode: 401, Detail: "Something else."}},
		{"forbidden", &APIError{StatusCode: 403, Detail: "Invalid token."}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			refresher := &fakeRefresher{newToken: "tok-2"}
			exec := New(refresher)

			calls := 0
			_, err := exec.Do(context.Background(), sessionWith(t, "tok-1"), func(ctx context.Context, token string) ([]byte, error) {
				calls++
				return nil, tt.err
			})

			assert.ErrorIs(t, err, ErrRequestFailed)
			assert.Equal(t, 1, calls)
			assert.Zero(t, refresher.calls)
		})
	}
}

func TestDo_RefreshFailureIsTerminal(t *testing.T) {
	refresher := &fakeRefresher{err: errors.New("provider said no")}
	exec := New(refresher)

	calls := 0
	_, err := exec.Do(context.Background(), sessionWith(t, "tok-1"), func(ctx context.Context, token string) ([]byte, error) {
		calls++
		return nil, authFailure("Token has expired.")
	})

	assert.ErrorIs(t, err, ErrRefreshFailed)
	assert.Equal(t, 1, calls)
	assert.Equal(t, 1, refresher.calls)
}

func TestDo_AtMostTwoAttemptsAndOneRefresh(t *testing.T) {
	refresher := &fakeRefresher{newToken: "tok-2"}
	exec := New(refresher)

	calls := 0
	_, err := exec.Do(context.Background(), sessionWith(t, "tok-1"), func(ctx context.Context, token string) ([]byte, error) {
		calls++
		return nil, authFailure("Invalid token.")
	})

	assert.ErrorIs(t, err, ErrRequestFailed)
	assert.Equal(t, 2, calls)
	assert.Equal(t, 1, refresher.calls)
}

func TestAPIError_IsAuthFailure(t *testing.T) {
	assert.True(t, (&APIError{StatusCode: 401, Detail: "Invalid token."}).IsAuthFailure())
	assert.False(t, (&APIError{StatusCode: 401, Detail: "nope"}).IsAuthFailure())
	assert.False(t, (&APIError{StatusCode: 500, Detail: "Invalid token."}).IsAuthFailure())
}
