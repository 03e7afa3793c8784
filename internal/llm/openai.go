package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/mverdon/formatrack/pkg/models"
)

// promptVersion bumps the model version whenever a prompt changes, so
// cached analyses produced with older prompts go stale.
const promptVersion = "p2"

const classifySystemPrompt = `You classify emails received by a freelance trainer.
Reply with a single JSON object: {"category": "...", "confidence": 0.0-1.0, "reason": "..."}.
Allowed categories:
- inter_confirmation: confirmation of an inter-company (public catalog) session
- intra_confirmation: confirmation of an in-house (single client) session
- cancellation: a session is cancelled or postponed indefinitely
- purchase_order: purchase order or booking confirmation for a session
- billing_info: invoicing details, billing entity, payment references
- reminder: logistics reminder for an already-known session
- intra_request: early-stage request or quote for an in-house session
- other: anything else
Use "other" whenever unsure.`

const extractSystemPrompt = `You extract training-session facts from an email.
Reply with a single JSON object:
{"formation": {"title": "", "shortCode": "", "extendedCode": "", "startDate": "YYYY-MM-DD",
"endDate": "YYYY-MM-DD", "sessionDates": ["YYYY-MM-DD"], "dayCount": 0, "hourCount": 0,
"sessionType": "inter|intra", "customizationLevel": "", "clientName": "", "participantCount": 0,
"participants": [{"name": "", "email": ""}],
"location": {"name": "", "address": "", "room": ""},
"access": {"login": "", "password": ""},
"billing": {"entity": "", "orderRef": "", "agreementRef": ""},
"contact": {"name": "", "email": "", "phone": ""}},
"fieldsExtracted": [], "fieldsMissing": [], "warnings": []}
Omit any field the email does not state. Never guess dates or codes.`

// OpenAIConfig for the chat-completions client
type OpenAIConfig struct {
	BaseURL string // e.g. https://api.openai.com
	APIKey  string
	Model   string // e.g. gpt-4o-mini
}

// OpenAIClient implements Client against an OpenAI-compatible
// chat-completions endpoint.
type OpenAIClient struct {
	cfg        OpenAIConfig
	httpClient *http.Client
}

// NewOpenAIClient creates a chat-completions client
func NewOpenAIClient(cfg OpenAIConfig) *OpenAIClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com"
	}
	return &OpenAIClient{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

// IsConfigured returns true if the client has an API key and model
func (c *OpenAIClient) IsConfigured() bool {
	return c.cfg.APIKey != "" && c.cfg.Model != ""
}

// ModelVersion identifies the model+prompt combination
func (c *OpenAIClient) ModelVersion() string {
	return c.cfg.Model + "-" + promptVersion
}

type chatRequest struct {
	Model          string        `json:"model"`
	Messages       []chatMessage `json:"messages"`
	Temperature    float64       `json:"temperature"`
	ResponseFormat *respFormat   `json:"response_format,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type respFormat struct {
	Type string `json:"type"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Classify assigns a category to an email
func (c *OpenAIClient) Classify(ctx context.Context, msg *models.SourceMessage, body string) (*models.ClassificationResult, error) {
	content, err := c.complete(ctx, classifySystemPrompt, emailPrompt(msg, body))
	if err != nil {
		return nil, err
	}

	var raw struct {
		Category   string  `json:"category"`
		Confidence float64 `json:"confidence"`
		Reason     string  `json:"reason"`
	}
	if err := json.Unmarshal([]byte(content), &raw); err != nil {
		return nil, parseErr("invalid classification JSON", err)
	}

	category, err := models.ParseCategory(raw.Category)
	if err != nil {
		return nil, parseErr("invalid classification category", err)
	}
	if raw.Confidence < 0 || raw.Confidence > 1 {
		return nil, parseErr(fmt.Sprintf("confidence %v out of range", raw.Confidence), nil)
	}

	return &models.ClassificationResult{
		Category:   category,
		Confidence: raw.Confidence,
		Reason:     raw.Reason,
	}, nil
}

// Extract reads formation fields out of an email
func (c *OpenAIClient) Extract(ctx context.Context, msg *models.SourceMessage, body string) (*models.ExtractionResult, error) {
	content, err := c.complete(ctx, extractSystemPrompt, emailPrompt(msg, body))
	if err != nil {
		return nil, err
	}

	var result models.ExtractionResult
	if err := json.Unmarshal([]byte(content), &result); err != nil {
		return nil, parseErr("invalid extraction JSON", err)
	}
	return &result, nil
}

func (c *OpenAIClient) complete(ctx context.Context, system, user string) (string, error) {
	if !c.IsConfigured() {
		return "", configErr("LLM API key or model not configured")
	}

	reqBody, err := json.Marshal(chatRequest{
		Model: c.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		Temperature:    0,
		ResponseFormat: &respFormat{Type: "json_object"},
	})
	if err != nil {
		return "", apiErr("failed to marshal request", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", c.cfg.BaseURL+"/v1/chat/completions", bytes.NewReader(reqBody))
	if err != nil {
		return "", apiErr("failed to create request", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", apiErr("request failed", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", apiErr("failed to read response", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", apiErr(fmt.Sprintf("status %d: %s", resp.StatusCode, truncate(string(respBody), 300)), nil)
	}

	var chat chatResponse
	if err := json.Unmarshal(respBody, &chat); err != nil {
		return "", parseErr("invalid completion JSON", err)
	}
	if chat.Error != nil {
		return "", apiErr(chat.Error.Message, nil)
	}
	if len(chat.Choices) == 0 {
		return "", parseErr("empty completion", nil)
	}

	return chat.Choices[0].Message.Content, nil
}

func emailPrompt(msg *models.SourceMessage, body string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s <%s>\n", msg.FromName, msg.FromAddr)
	fmt.Fprintf(&b, "Subject: %s\n", msg.Subject)
	fmt.Fprintf(&b, "Date: %s\n\n", msg.ReceivedAt.Format("2006-01-02 15:04"))
	b.WriteString(body)
	return b.String()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
