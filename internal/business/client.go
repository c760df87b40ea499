package business

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/promodash/dash-front/internal/apicall"
	"github.com/promodash/dash-front/internal/urlutil"
)

// Client builds bearer-authenticated calls against the remote business API.
// It only shapes requests and classifies failures; retry policy lives in the
// call executor, and payloads are never interpreted here.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a business API client. baseURL is the API's
// business prefix (e.g. https://api.example.com/negocios).
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// Get returns a call fetching path with the bearer token
func (c *Client) Get(path string) apicall.CallFunc {
	return func(ctx context.Context, token string) ([]byte, error) {
		return c.do(ctx, http.MethodGet, path, nil, token)
	}
}

// Post returns a call sending body as JSON to path with the bearer token
func (c *Client) Post(path string, body any) apicall.CallFunc {
	return func(ctx context.Context, token string) ([]byte, error) {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encoding request body: %w", err)
		}
		return c.do(ctx, http.MethodPost, path, data, token)
	}
}

func (c *Client) do(ctx context.Context, method, path string, body []byte, token string) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	endpoint, err := urlutil.JoinPath(c.baseURL, path)
	if err != nil {
		return nil, fmt.Errorf("building request URL: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &apicall.APIError{
			StatusCode: resp.StatusCode,
			Detail:     extractDetail(payload),
		}
	}

	return payload, nil
}

// extractDetail pulls the provider's detail message out of an error body,
// used only for auth-failure classification
func extractDetail(payload []byte) string {
	var er struct {
		Detail string `json:"detail"`
	}
	if err := json.Unmarshal(payload, &er); err != nil {
		return ""
	}
	return er.Detail
}
