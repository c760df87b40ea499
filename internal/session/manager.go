package session

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/promodash/dash-front/internal/cookie"
	"github.com/promodash/dash-front/internal/crypto"
	"github.com/promodash/dash-front/internal/log"
	"github.com/promodash/dash-front/internal/storage"
)

// ErrNoSession is the sentinel "absent" result: no record, an unparseable
// record, and a record with a bad signature are all equivalent to logged-out.
var ErrNoSession = errors.New("no session")

// Mode selects where the session record lives
type Mode string

const (
	// ModeCookie carries the whole serialized bundle in the signed cookie
	ModeCookie Mode = "cookie"
	// ModeServer carries an opaque session ID in the cookie; the bundle
	// lives in a storage backend
	ModeServer Mode = "server"
)

// Manager owns the session persistence policy: the cookie, the signing key,
// the fixed expiry window, and (in server mode) the record backend.
type Manager struct {
	mode    Mode
	window  time.Duration
	signer  crypto.TokenSigner
	backend storage.Backend
}

// NewCookieManager creates a manager persisting bundles in the signed cookie.
// window is the fixed server-side expiry, independent of any token lifetime
// the identity provider reports.
func NewCookieManager(signingKey []byte, window time.Duration) *Manager {
	return &Manager{
		mode:   ModeCookie,
		window: window,
		signer: crypto.NewTokenSigner(signingKey, 0),
	}
}

// NewServerManager creates a manager persisting bundles in backend, with the
// cookie holding only a signed opaque session ID.
func NewServerManager(signingKey []byte, window time.Duration, backend storage.Backend) *Manager {
	return &Manager{
		mode:    ModeServer,
		window:  window,
		signer:  crypto.NewTokenSigner(signingKey, 0),
		backend: backend,
	}
}

// Window returns the fixed expiry window
func (m *Manager) Window() time.Duration {
	return m.window
}

// Mode returns the persistence mode
func (m *Manager) Mode() Mode {
	return m.mode
}

// Bind ties the manager to one request/response pair. Every component that
// touches session state receives the resulting Context explicitly; there is
// no ambient session global.
func (m *Manager) Bind(w http.ResponseWriter, r *http.Request) *Context {
	return &Context{mgr: m, w: w, r: r}
}

// Context is the per-request session context. All four operations address the
// single record owned by the calling browser session.
type Context struct {
	mgr *Manager
	w   http.ResponseWriter
	r   *http.Request
}

// cookiePayload is what actually gets signed into the cookie
type cookiePayload struct {
	// Bundle is set in cookie mode
	Bundle *Bundle `json:"bundle,omitempty"`
	// SessionID is set in server mode
	SessionID string `json:"sid,omitempty"`
}

// Create serializes the bundle and persists it with an absolute expiry of
// now + window. Any existing record is overwritten unconditionally.
func (c *Context) Create(ctx context.Context, bundle Bundle) error {
	expiresAt := time.Now().Add(c.mgr.window)

	switch c.mgr.mode {
	case ModeCookie:
		token, err := c.mgr.signer.Sign(cookiePayload{Bundle: &bundle})
		if err != nil {
			return fmt.Errorf("signing session record: %w", err)
		}
		cookie.SetSession(c.w, token, expiresAt)

	case ModeServer:
		id := ulid.MustNew(ulid.Timestamp(time.Now()), rand.Reader).String()
		data, err := json.Marshal(bundle)
		if err != nil {
			return fmt.Errorf("serializing session record: %w", err)
		}
		if err := c.mgr.backend.Put(ctx, storage.Record{ID: id, Bundle: data, ExpiresAt: expiresAt}); err != nil {
			return fmt.Errorf("storing session record: %w", err)
		}
		token, err := c.mgr.signer.Sign(cookiePayload{SessionID: id})
		if err != nil {
			return fmt.Errorf("signing session reference: %w", err)
		}
		cookie.SetSession(c.w, token, expiresAt)
	}

	log.LogDebugWithFields("session", "Session record created", map[string]any{
		"mode":      string(c.mgr.mode),
		"expiresAt": expiresAt.UTC().Format(time.RFC3339),
	})
	return nil
}

// Read returns the current bundle, or ErrNoSession when the record is
// missing or structurally invalid. It never returns any other error class
// for a bad record; a session that cannot be read is a logged-out session.
func (c *Context) Read(ctx context.Context) (Bundle, error) {
	payload, err := c.readPayload()
	if err != nil {
		return Bundle{}, err
	}

	switch c.mgr.mode {
	case ModeCookie:
		if payload.Bundle == nil || !payload.Bundle.Valid() {
			return Bundle{}, ErrNoSession
		}
		return *payload.Bundle, nil

	case ModeServer:
		if payload.SessionID == "" {
			return Bundle{}, ErrNoSession
		}
		rec, err := c.mgr.backend.Get(ctx, payload.SessionID)
		if err != nil {
			if !errors.Is(err, storage.ErrRecordNotFound) {
				log.LogWarnWithFields("session", "Session backend read failed", map[string]any{
					"error": err.Error(),
				})
			}
			return Bundle{}, ErrNoSession
		}
		var bundle Bundle
		if err := json.Unmarshal(rec.Bundle, &bundle); err != nil || !bundle.Valid() {
			return Bundle{}, ErrNoSession
		}
		return bundle, nil
	}

	return Bundle{}, ErrNoSession
}

// Update overwrites an existing record wholesale, recomputing the absolute
// expiry from the fixed window. When no record exists it returns ErrNoSession
// without creating one.
func (c *Context) Update(ctx context.Context, bundle Bundle) error {
	payload, err := c.readPayload()
	if err != nil {
		return err
	}

	expiresAt := time.Now().Add(c.mgr.window)

	switch c.mgr.mode {
	case ModeCookie:
		if payload.Bundle == nil {
			return ErrNoSession
		}
		token, err := c.mgr.signer.Sign(cookiePayload{Bundle: &bundle})
		if err != nil {
			return fmt.Errorf("signing session record: %w", err)
		}
		cookie.SetSession(c.w, token, expiresAt)

	case ModeServer:
		if payload.SessionID == "" {
			return ErrNoSession
		}
		if _, err := c.mgr.backend.Get(ctx, payload.SessionID); err != nil {
			return ErrNoSession
		}
		data, err := json.Marshal(bundle)
		if err != nil {
			return fmt.Errorf("serializing session record: %w", err)
		}
		if err := c.mgr.backend.Put(ctx, storage.Record{ID: payload.SessionID, Bundle: data, ExpiresAt: expiresAt}); err != nil {
			return fmt.Errorf("storing session record: %w", err)
		}
	}

	log.LogDebugWithFields("session", "Session record updated", map[string]any{
		"mode":      string(c.mgr.mode),
		"expiresAt": expiresAt.UTC().Format(time.RFC3339),
	})
	return nil
}

// Delete removes the record unconditionally. Idempotent: deleting an absent
// record succeeds.
func (c *Context) Delete(ctx context.Context) error {
	if c.mgr.mode == ModeServer {
		if payload, err := c.readPayload(); err == nil && payload.SessionID != "" {
			if err := c.mgr.backend.Delete(ctx, payload.SessionID); err != nil {
				log.LogWarnWithFields("session", "Session backend delete failed", map[string]any{
					"error": err.Error(),
				})
			}
		}
	}

	cookie.ClearSession(c.w)
	return nil
}

// readPayload reads and verifies the cookie. Every failure collapses into
// ErrNoSession.
func (c *Context) readPayload() (cookiePayload, error) {
	raw, err := cookie.GetSession(c.r)
	if err != nil {
		return cookiePayload{}, ErrNoSession
	}

	var payload cookiePayload
	if err := c.mgr.signer.Verify(raw, &payload); err != nil {
		log.LogDebugWithFields("session", "Invalid session cookie", map[string]any{
			"error": err.Error(),
		})
		return cookiePayload{}, ErrNoSession
	}
	return payload, nil
}
