// ABOUTME: Meta Graph Send API adapter for Instagram, Facebook and Messenger
// ABOUTME: Posts page-scoped replies with bounded retries on server errors

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
)

const (
	defaultGraphBaseURL = "https://graph.facebook.com"
	defaultGraphVersion = "v21.0"
)

// GraphConfig configures a GraphAdapter.
type GraphConfig struct {
	Channel     string
	BaseURL     string // defaults to https://graph.facebook.com
	APIVersion  string // defaults to v21.0
	PageID      string
	AccessToken string
	MaxAttempts int           // defaults to 1
	Backoff     time.Duration // delay before the second attempt, doubled after
}

// GraphAdapter delivers messages through the Graph Send API.
type GraphAdapter struct {
	cfg    GraphConfig
	client *http.Client
	logger *slog.Logger
}

type graphSendRequest struct {
	Recipient     graphRecipient `json:"recipient"`
	Message       graphMessage   `json:"message"`
	MessagingType string         `json:"messaging_type"`
}

type graphRecipient struct {
	ID string `json:"id"`
}

type graphMessage struct {
	Text string `json:"text"`
}

type graphErrorResponse struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    int    `json:"code"`
	} `json:"error"`
}

// NewGraphAdapter creates a Graph adapter. A nil client uses a 30s timeout client.
func NewGraphAdapter(cfg GraphConfig, client *http.Client, logger *slog.Logger) (*GraphAdapter, error) {
	if cfg.PageID == "" {
		return nil, errors.New("graph adapter: page_id required")
	}
	if cfg.AccessToken == "" {
		return nil, errors.New("graph adapter: access_token required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultGraphBaseURL
	}
	cfg.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")
	if cfg.APIVersion == "" {
		cfg.APIVersion = defaultGraphVersion
	}
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = 500 * time.Millisecond
	}
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &GraphAdapter{
		cfg:    cfg,
		client: client,
		logger: logger.With("component", "graph", "channel", cfg.Channel),
	}, nil
}

// Deliver sends body to the page-scoped recipient.
func (a *GraphAdapter) Deliver(ctx context.Context, recipientID, body string) error {
	payload, err := json.Marshal(graphSendRequest{
		Recipient:     graphRecipient{ID: recipientID},
		Message:       graphMessage{Text: body},
		MessagingType: "RESPONSE",
	})
	if err != nil {
		return &DeliveryError{Channel: a.cfg.Channel, Reason: "encoding request", Err: err}
	}

	url := fmt.Sprintf("%s/%s/%s/messages", a.cfg.BaseURL, a.cfg.APIVersion, a.cfg.PageID)
	backoff := a.cfg.Backoff

	var lastErr *DeliveryError
	for attempt := 1; attempt <= a.cfg.MaxAttempts; attempt++ {
		if attempt > 1 {
			if err := sleepContext(ctx, backoff); err != nil {
				return &DeliveryError{Channel: a.cfg.Channel, Reason: err.Error(), Err: err}
			}
			backoff *= 2
		}

		retry, derr := a.send(ctx, url, payload)
		if derr == nil {
			a.logger.Debug("message delivered", "recipient", recipientID, "attempt", attempt)
			return nil
		}
		lastErr = derr
		if !retry {
			break
		}
		a.logger.Warn("graph send failed, retrying", "attempt", attempt, "reason", derr.Reason)
	}
	return lastErr
}

// send performs one request. The bool reports whether the failure is retryable.
func (a *GraphAdapter) send(ctx context.Context, url string, payload []byte) (bool, *DeliveryError) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return false, &DeliveryError{Channel: a.cfg.Channel, Reason: "building request", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+a.cfg.AccessToken)

	resp, err := a.client.Do(req)
	if err != nil {
		return ctx.Err() == nil, &DeliveryError{Channel: a.cfg.Channel, Reason: err.Error(), Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return false, nil
	}

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	reason := fmt.Sprintf("HTTP %d", resp.StatusCode)
	var graphErr graphErrorResponse
	if json.Unmarshal(respBody, &graphErr) == nil && graphErr.Error.Message != "" {
		reason = graphErr.Error.Message
	} else if text := strings.TrimSpace(string(respBody)); text != "" {
		reason = fmt.Sprintf("HTTP %d: %s", resp.StatusCode, text)
	}

	return resp.StatusCode >= 500, &DeliveryError{
		Channel: a.cfg.Channel,
		Reason:  reason,
		Err:     fmt.Errorf("graph send: status %d", resp.StatusCode),
	}
}

// sleepContext waits for d or until ctx is done, whichever comes first.
func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
