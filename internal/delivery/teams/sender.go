package teams

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// Sender posts payloads to one incoming webhook. Outbound calls are rate limited so a
// burst of manual triggers cannot get the webhook throttled.
type Sender struct {
	url     string
	client  *http.Client
	limiter *rate.Limiter
}

// NewSender creates a sender. An empty url yields a sender that logs and skips every
// message. ratePerMinute <= 0 disables the limiter.
func NewSender(url string, timeout time.Duration, ratePerMinute int) *Sender {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	limit := rate.Inf
	burst := 1
	if ratePerMinute > 0 {
		limit = rate.Every(time.Minute / time.Duration(ratePerMinute))
		burst = ratePerMinute
	}
	return &Sender{
		url:     strings.TrimSpace(url),
		client:  &http.Client{Timeout: timeout},
		limiter: rate.NewLimiter(limit, burst),
	}
}

// Enabled reports whether a webhook URL is configured.
func (s *Sender) Enabled() bool {
	return s.url != ""
}

// Send posts the payload. A missing webhook URL is not an error.
func (s *Sender) Send(ctx context.Context, p Payload) error {
	if !s.Enabled() {
		slog.Warn("[Teams] Webhook URL is not configured, skipping notification")
		return nil
	}

	body, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to encode payload: %w", err)
	}
	slog.Debug("[Teams] Sending payload", "bytes", len(body))

	if err := s.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		slog.Error("[Teams] Failed to send notification", "error", err)
		return fmt.Errorf("webhook post failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		slog.Error("[Teams] Webhook rejected notification", "status", resp.StatusCode)
		return fmt.Errorf("webhook returned http=%d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)

	slog.Info("[Teams] Notification sent")
	return nil
}
