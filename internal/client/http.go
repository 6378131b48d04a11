package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/alfredjeanlab/rollcall/internal/model"
	"github.com/alfredjeanlab/rollcall/internal/verify"
)

// HTTPClient implements Client using the rollcall HTTP/JSON API.
type HTTPClient struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewHTTPClient creates a new HTTP client targeting the given base URL
// (e.g. "http://localhost:8080"). When token is non-empty, an Authorization
// header is set on every request.
func NewHTTPClient(baseURL, token string) *HTTPClient {
	return &HTTPClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{},
	}
}

// Close is a no-op for the HTTP client.
func (c *HTTPClient) Close() error { return nil }

func (c *HTTPClient) ManualSend(ctx context.Context, req *ManualSendRequest) (*ManualSendResponse, error) {
	var resp ManualSendResponse
	if err := c.doJSON(ctx, http.MethodPost, "/v1/manual-send", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *HTTPClient) ListRegistrations(ctx context.Context) ([]*model.LedgerRow, error) {
	var resp struct {
		Registrations []*model.LedgerRow `json:"registrations"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/v1/registrations", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Registrations, nil
}

func (c *HTTPClient) Webhook(ctx context.Context, body []byte, signature string) (*WebhookResult, error) {
	var resp WebhookResult
	hdr := map[string]string{verify.SignatureHeader: signature}
	if err := c.do(ctx, http.MethodPost, "/v1/webhook", bytes.NewReader(body), hdr, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *HTTPClient) Health(ctx context.Context) (*HealthStatus, error) {
	var resp HealthStatus
	if err := c.doJSON(ctx, http.MethodGet, "/v1/health", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// --- internal helpers ---

// APIError represents an error response from the server.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
}

// doJSON performs an HTTP request with an optional JSON body and decodes the
// JSON response into result.
func (c *HTTPClient) doJSON(ctx context.Context, method, path string, body any, result any) error {
	var bodyReader io.Reader
	var hdr map[string]string
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshaling request body: %w", err)
		}
		bodyReader = bytes.NewReader(data)
		hdr = map[string]string{"Content-Type": "application/json"}
	}
	return c.do(ctx, method, path, bodyReader, hdr, result)
}

func (c *HTTPClient) do(ctx context.Context, method, path string, body io.Reader, header map[string]string, result any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	for k, v := range header {
		req.Header.Set(k, v)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("performing request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode >= 400 {
		var errResp struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(respBody, &errResp) == nil && errResp.Error != "" {
			return &APIError{StatusCode: resp.StatusCode, Message: errResp.Error}
		}
		return &APIError{StatusCode: resp.StatusCode, Message: string(respBody)}
	}

	if result != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
	}
	return nil
}
