package apicall

import (
	"context"
	"errors"
	"fmt"

	"github.com/promodash/dash-front/internal/log"
	"github.com/promodash/dash-front/internal/session"
)

// Terminal outcomes. These are tagged failure values, not exceptions: every
// expected failure class comes back as one of these, and no provider error
// detail leaks past this package.
var (
	// ErrSessionInvalid means there was no usable session record; no
	// network call was made.
	ErrSessionInvalid = errors.New("session is invalid or expired")

	// ErrRefreshFailed means an authentication failure was detected but the
	// refresh primitive rejected the exchange.
	ErrRefreshFailed = errors.New("token refresh failed")

	// ErrRequestFailed covers everything else: non-auth remote errors,
	// unrecognized 401s, and exhausted attempts.
	ErrRequestFailed = errors.New("request failed")
)

// maxAttempts bounds the total remote attempts per logical call: the
// original try plus at most one retry after a refresh.
const maxAttempts = 2

// The fixed set of 401 detail messages recognized as authentication
// failures. A 401 with any other detail is a non-auth failure and is not
// retried.
var authFailureDetails = map[string]struct{}{
	"Authentication credentials were not provided.": {},
	"Invalid token.":     {},
	"Token has expired.": {},
}

// APIError is a remote call failure carrying the HTTP status and the
// provider's detail message, used only for classification.
type APIError struct {
	StatusCode int
	Detail     string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: status %d: %s", e.StatusCode, e.Detail)
}

// IsAuthFailure reports whether this error is one of the recognized
// credential-missing/invalid/expired signals.
func (e *APIError) IsAuthFailure() bool {
	if e.StatusCode != 401 {
		return false
	}
	_, ok := authFailureDetails[e.Detail]
	return ok
}

// CallFunc is a pending remote call parameterized by a bearer token. The
// returned payload passes through the executor uninterpreted.
type CallFunc func(ctx context.Context, token string) ([]byte, error)

// TokenRefresher exchanges the current access token for a fresh one, writing
// the new bundle through the session context. The executor is the only
// component allowed to invoke it.
type TokenRefresher interface {
	Refresh(ctx context.Context, sessions *session.Context, currentToken string) (string, error)
}

// Executor drives authenticated remote calls: bearer injection via the call
// factory, failure classification, and a bounded refresh-and-retry cycle.
// Guarantee: at most one refresh and at most two remote attempts per call.
type Executor struct {
	refresher TokenRefresher
}

// New creates an executor backed by the given refresher
func New(refresher TokenRefresher) *Executor {
	return &Executor{refresher: refresher}
}

// Do executes call with the session's current token. On a recognized
// authentication failure it refreshes once and retries once; the refresh
// strictly precedes the retried call. Any other failure is terminal.
func (e *Executor) Do(ctx context.Context, sessions *session.Context, call CallFunc) ([]byte, error) {
	bundle, err := sessions.Read(ctx)
	if err != nil {
		return nil, ErrSessionInvalid
	}
	token := bundle.AccessToken

	for attempt := 0; attempt < maxAttempts; attempt++ {
		payload, err := call(ctx, token)
		if err == nil {
			return payload, nil
		}

		var apiErr *APIError
		isAuth := errors.As(err, &apiErr) && apiErr.IsAuthFailure()

		if !isAuth || attempt == maxAttempts-1 {
			log.LogErrorWithFields("apicall", "Remote call failed", map[string]any{
				"attempt": attempt,
				"error":   err.Error(),
			})
			return nil, ErrRequestFailed
		}

		newToken, err := e.refresher.Refresh(ctx, sessions, token)
		if err != nil {
			return nil, ErrRefreshFailed
		}
		token = newToken
	}

	return nil, ErrRequestFailed
}
