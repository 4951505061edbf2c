// Package postmark sends templated digest emails through the Postmark API.
package postmark

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	defaultBaseURL    = "https://api.postmarkapp.com"
	templatePath      = "/email/withTemplate"
	serverTokenHeader = "X-Postmark-Server-Token"
)

// TemplateRequest is the payload for a templated send. Field names follow
// Postmark's API casing.
type TemplateRequest struct {
	TemplateID    int    `json:"TemplateId"`
	TemplateModel any    `json:"TemplateModel"`
	From          string `json:"From"`
	To            string `json:"To"`
}

// Response is Postmark's send result. ErrorCode zero means accepted.
type Response struct {
	To          string    `json:"To"`
	SubmittedAt time.Time `json:"SubmittedAt"`
	MessageID   string    `json:"MessageID"`
	ErrorCode   int       `json:"ErrorCode"`
	Message     string    `json:"Message"`
}

// Client is a minimal Postmark template-send client.
type Client struct {
	httpClient  *http.Client
	serverToken string
	baseURL     string
}

// NewClient creates a Postmark client. baseURL overrides the live endpoint
// when non-empty.
func NewClient(serverToken, baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	return &Client{
		httpClient:  httpClient,
		serverToken: serverToken,
		baseURL:     baseURL,
	}
}

// SendTemplate posts one templated email. A transport or HTTP-level failure
// returns an error; an API-level rejection comes back as a Response with a
// non-zero ErrorCode and no error.
func (c *Client) SendTemplate(ctx context.Context, req TemplateRequest) (*Response, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal template request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+templatePath, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to build template request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set(serverTokenHeader, c.serverToken)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("template send failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read send response: %w", err)
	}

	var out Response
	if err := json.Unmarshal(respBody, &out); err != nil {
		return nil, fmt.Errorf("failed to decode send response (status %d): %w", resp.StatusCode, err)
	}

	return &out, nil
}
