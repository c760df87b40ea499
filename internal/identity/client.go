package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/promodash/dash-front/internal/log"
	"github.com/promodash/dash-front/internal/session"
	"github.com/promodash/dash-front/internal/urlutil"
)

// ErrRefreshFailed is the failure sentinel for the refresh primitive: any
// transport error, non-2xx response, or malformed payload collapses into it.
var ErrRefreshFailed = errors.New("token refresh failed")

// ErrLoginFailed is returned when the identity provider rejects credentials
var ErrLoginFailed = errors.New("login failed")

// Client talks to the remote identity provider. It is a primitive: it never
// retries and never goes through the authenticated call executor, so a failed
// refresh can't trigger another refresh.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates an identity provider client. baseURL is the provider's
// security prefix (e.g. https://api.example.com/seguridad).
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// tokenResponse is the provider's credential payload. The role field is
// named inconsistently across endpoints (rol on some, role on others), so
// both are accepted and normalized into Bundle.Role.
type tokenResponse struct {
	AccessToken  string       `json:"access_token"`
	RefreshToken string       `json:"refresh_token"`
	ExpiresIn    int64        `json:"expires_in"`
	TokenType    string       `json:"token_type"`
	Scope        string       `json:"scope"`
	Rol          session.Role `json:"rol"`
	Role         session.Role `json:"role"`
}

func (tr tokenResponse) bundle() session.Bundle {
	role := tr.Rol
	if !role.IsSet() {
		role = tr.Role
	}
	return session.Bundle{
		AccessToken:  tr.AccessToken,
		RefreshToken: tr.RefreshToken,
		ExpiresIn:    tr.ExpiresIn,
		TokenType:    tr.TokenType,
		Scope:        tr.Scope,
		Role:         role,
	}
}

// errorResponse is the provider's error payload shape
type errorResponse struct {
	Detail string `json:"detail"`
}

// Login exchanges credentials for a new bundle
func (c *Client) Login(ctx context.Context, username, password string) (session.Bundle, error) {
	body, err := json.Marshal(map[string]string{
		"username": username,
		"password": password,
	})
	if err != nil {
		return session.Bundle{}, fmt.Errorf("encoding login request: %w", err)
	}

	endpoint, err := urlutil.JoinPath(c.baseURL, "login/")
	if err != nil {
		return session.Bundle{}, fmt.Errorf("building login URL: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return session.Bundle{}, fmt.Errorf("creating login request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return session.Bundle{}, fmt.Errorf("%w: %v", ErrLoginFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail := readDetail(resp.Body)
		log.LogWarnWithFields("identity", "Login rejected", map[string]any{
			"status": resp.StatusCode,
		})
		if detail != "" {
			return session.Bundle{}, fmt.Errorf("%w: %s", ErrLoginFailed, detail)
		}
		return session.Bundle{}, fmt.Errorf("%w: status %d", ErrLoginFailed, resp.StatusCode)
	}

	var tr tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return session.Bundle{}, fmt.Errorf("%w: malformed response", ErrLoginFailed)
	}

	bundle := tr.bundle()
	if !bundle.Valid() {
		return session.Bundle{}, fmt.Errorf("%w: response missing access token", ErrLoginFailed)
	}
	return bundle, nil
}

// Refresh exchanges the current access token for a new bundle and writes the
// bundle back through the caller's session context. It returns the new access
// token; on any failure it returns ErrRefreshFailed without retrying.
func (c *Client) Refresh(ctx context.Context, sessions *session.Context, currentToken string) (string, error) {
	endpoint, err := urlutil.JoinPath(c.baseURL, "refresh-token/")
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrRefreshFailed, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrRefreshFailed, err)
	}
	req.Header.Set("Authorization", "Bearer "+currentToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.LogWarnWithFields("identity", "Refresh transport error", map[string]any{
			"error": err.Error(),
		})
		return "", ErrRefreshFailed
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		log.LogWarnWithFields("identity", "Refresh rejected", map[string]any{
			"status": resp.StatusCode,
		})
		return "", ErrRefreshFailed
	}

	var tr tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return "", ErrRefreshFailed
	}

	bundle := tr.bundle()
	if !bundle.Valid() {
		return "", ErrRefreshFailed
	}

	// The record is overwritten wholesale. An absent record is logged and
	// tolerated: the caller still gets a usable token for the retry, matching
	// the store's update-signals-absence contract.
	if err := sessions.Update(ctx, bundle); err != nil {
		if errors.Is(err, session.ErrNoSession) {
			log.LogWarnWithFields("identity", "Refresh succeeded but no session record to update", nil)
		} else {
			log.LogErrorWithFields("identity", "Failed to persist refreshed bundle", map[string]any{
				"error": err.Error(),
			})
		}
	}

	log.LogDebugWithFields("identity", "Token refreshed", nil)
	return bundle.AccessToken, nil
}

// Validate asks the provider whether a token is still valid. Present for
// completeness; the route access gate deliberately does not consult it and
// trusts the signed session record for routing decisions.
func (c *Client) Validate(ctx context.Context, token string) (bool, error) {
	endpoint, err := urlutil.JoinPath(c.baseURL, "validate-token/")
	if err != nil {
		return false, fmt.Errorf("building validate URL: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return false, fmt.Errorf("creating validate request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("validate request: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	return resp.StatusCode >= 200 && resp.StatusCode < 300, nil
}

func readDetail(r io.Reader) string {
	var er errorResponse
	if err := json.NewDecoder(io.LimitReader(r, 4096)).Decode(&er); err != nil {
		return ""
	}
	return er.Detail
}
