// Package summarizer calls the hosted classification model and turns one
// email into a structured summary.
package summarizer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/inboxwrap/inboxwrap-backend/internal/models"
	"github.com/inboxwrap/inboxwrap-backend/internal/ratelimit"
)

const (
	defaultBaseURL = "https://api.groq.com"
	chatPath       = "/openai/v1/chat/completions"

	generationProvider = "groq"

	// tokenOverhead pads the character-based token estimate to cover the
	// system instruction and completion budget.
	tokenOverhead = 100
)

// systemInstruction fixes the model's output contract: a single JSON object
// matching models.SummaryContent, with a closed category set, the importance
// rules and the bulk-mail priority cap.
const systemInstruction = `You are an email summarization and classification model for InboxWrap.
Summarize each email in at most two short sentences, clear and direct.

Return exactly one valid JSON object and nothing else, in this structure:

{
  "title": "Very short, user-friendly subject line (max 10 words)",
  "content": "One or two complete sentences summarizing the email's core message.",
  "action_required": "The action the user must take, or 'None'",
  "category": "One of: 'Finance & Bills', 'Events & Reminders', 'Security & Account', 'Personal & Social', 'Promotions & Newsletters', 'Entertainment & Gaming'",
  "important": true,
  "confidence_score": 0.0,
  "priority_score": 0.0
}

Rules:
1. "category" must be exactly one of the six listed values. Pick the clearest
   grouping; if unsure, choose the more general category and lower your
   confidence_score.
2. Set "important": true only if the email involves financial activity, a
   deadline within 3 days, security or account access risk, or urgent
   time-sensitive action. Otherwise set it to false.
3. "confidence_score" and "priority_score" are decimals between 0.0 and 1.0.
4. If the email is an unsubscribe-style bulk or marketing message and it is
   not important per rule 2, set "priority_score" below 0.50.
5. Never include raw HTML, quoted replies, boilerplate footers, or any text
   outside the JSON object.`

// Result carries the parsed summary content plus generation metadata from
// one classification call.
type Result struct {
	Content      models.SummaryContent
	Provider     string
	RequestID    string
	InputTokens  int
	OutputTokens int
	TotalTokens  int
	TimeTaken    float64
}

// Client calls the chat-completions endpoint under rate-limiter admission.
type Client struct {
	httpClient *http.Client
	limiter    *ratelimit.Limiter
	logger     *slog.Logger

	apiKey  string
	model   string
	baseURL string
}

// Config holds the summarizer client configuration.
type Config struct {
	APIKey string
	Model  string

	// BaseURL overrides the live endpoint in tests.
	BaseURL string
}

// NewClient creates a summarization client.
func NewClient(cfg Config, limiter *ratelimit.Limiter, httpClient *http.Client, logger *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}

	return &Client{
		httpClient: httpClient,
		limiter:    limiter,
		logger:     logger,
		apiKey:     cfg.APIKey,
		model:      cfg.Model,
		baseURL:    cfg.BaseURL,
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model               string        `json:"model"`
	Messages            []chatMessage `json:"messages"`
	Temperature         float64       `json:"temperature"`
	MaxCompletionTokens int           `json:"max_completion_tokens"`
	ResponseFormat      struct {
		Type string `json:"type"`
	} `json:"response_format"`
}

type chatResponse struct {
	ID      string `json:"id"`
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int     `json:"prompt_tokens"`
		CompletionTokens int     `json:"completion_tokens"`
		TotalTokens      int     `json:"total_tokens"`
		TotalTime        float64 `json:"total_time"`
	} `json:"usage"`
	XGroq struct {
		ID string `json:"id"`
	} `json:"x_groq"`
}

// Summarize classifies one email. It blocks on the rate limiter until the
// estimated token cost is admitted, then performs a single chat-completions
// call and strictly parses the JSON object the model returns.
func (c *Client) Summarize(ctx context.Context, subject, body string) (*Result, error) {
	if c.apiKey == "" {
		return nil, fmt.Errorf("missing summarization API key")
	}

	req := chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemInstruction},
			{Role: "user", Content: "Email Subject: " + subject},
			{Role: "user", Content: body},
		},
		Temperature:         0.2,
		MaxCompletionTokens: 512,
	}
	req.ResponseFormat.Type = "json_object"

	if err := c.limiter.Acquire(ctx, estimateTokens(req.Messages)); err != nil {
		return nil, err
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal chat request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+chatPath, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to build chat request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("chat request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read chat response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("chat completion failed with status %d: %s", resp.StatusCode, string(respBody))
	}

	var chat chatResponse
	if err := json.Unmarshal(respBody, &chat); err != nil {
		return nil, fmt.Errorf("failed to decode chat response: %w", err)
	}
	if len(chat.Choices) == 0 || chat.Choices[0].Message.Content == "" {
		return nil, fmt.Errorf("chat response contained no content")
	}

	var content models.SummaryContent
	if err := json.Unmarshal([]byte(chat.Choices[0].Message.Content), &content); err != nil {
		return nil, fmt.Errorf("failed to parse summary content: %w", err)
	}

	requestID := chat.XGroq.ID
	if requestID == "" {
		requestID = chat.ID
	}

	return &Result{
		Content:      content,
		Provider:     generationProvider,
		RequestID:    requestID,
		InputTokens:  chat.Usage.PromptTokens,
		OutputTokens: chat.Usage.CompletionTokens,
		TotalTokens:  chat.Usage.TotalTokens,
		TimeTaken:    chat.Usage.TotalTime,
	}, nil
}

// estimateTokens approximates the token cost of a request as total message
// characters over four, plus a fixed overhead.
func estimateTokens(messages []chatMessage) int {
	total := 0
	for _, m := range messages {
		total += len(m.Content)
	}
	return total/4 + tokenOverhead
}
