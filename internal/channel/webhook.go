// ABOUTME: Website chat widget adapter posting replies to a webhook endpoint
// ABOUTME: Renders the Markdown body to HTML with goldmark alongside the plain text

package channel

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/yuin/goldmark"
)

// WebhookAdapter posts outbound messages to a widget backend.
type WebhookAdapter struct {
	channel     string
	endpoint    string
	accessToken string
	client      *http.Client
	markdown    goldmark.Markdown
	logger      *slog.Logger
}

type webhookPayload struct {
	RecipientID string `json:"recipientId"`
	Text        string `json:"text"`
	HTML        string `json:"html"`
}

// NewWebhookAdapter creates a webhook adapter. accessToken may be empty.
func NewWebhookAdapter(channel, endpoint, accessToken string, client *http.Client, logger *slog.Logger) (*WebhookAdapter, error) {
	if endpoint == "" {
		return nil, errors.New("webhook adapter: endpoint required")
	}
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &WebhookAdapter{
		channel:     channel,
		endpoint:    endpoint,
		accessToken: accessToken,
		client:      client,
		markdown:    goldmark.New(),
		logger:      logger.With("component", "webhook", "channel", channel),
	}, nil
}

// Deliver posts the reply to the configured endpoint.
func (a *WebhookAdapter) Deliver(ctx context.Context, recipientID, body string) error {
	var html bytes.Buffer
	if err := a.markdown.Convert([]byte(body), &html); err != nil {
		return &DeliveryError{Channel: a.channel, Reason: "rendering markdown", Err: err}
	}

	payload, err := json.Marshal(webhookPayload{
		RecipientID: recipientID,
		Text:        body,
		HTML:        html.String(),
	})
	if err != nil {
		return &DeliveryError{Channel: a.channel, Reason: "encoding request", Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.endpoint, bytes.NewReader(payload))
	if err != nil {
		return &DeliveryError{Channel: a.channel, Reason: "building request", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	if a.accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+a.accessToken)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return &DeliveryError{Channel: a.channel, Reason: err.Error(), Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
		reason := strings.TrimSpace(string(respBody))
		if reason == "" {
			reason = fmt.Sprintf("HTTP %d", resp.StatusCode)
		}
		return &DeliveryError{
			Channel: a.channel,
			Reason:  reason,
			Err:     fmt.Errorf("webhook: status %d", resp.StatusCode),
		}
	}

	a.logger.Debug("message delivered", "recipient", recipientID)
	return nil
}
