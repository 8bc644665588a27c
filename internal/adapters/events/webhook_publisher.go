package events

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/atvirokodosprendimai/packlint/internal/core/domain"
)

const (
	defaultWebhookTimeout = 10 * time.Second
	userAgent             = "packlint-webhook"
)

// WebhookPublisher POSTs run events to a configured HTTP endpoint. When a
// secret is set the body is signed with HMAC-SHA256 so the receiver can
// verify it came from this tool.
type WebhookPublisher struct {
	url    string
	secret []byte
	client *http.Client
}

// NewWebhookPublisher returns a WebhookPublisher for url. A zero or negative
// timeout falls back to defaultWebhookTimeout.
func NewWebhookPublisher(url, secret string, timeout time.Duration) *WebhookPublisher {
	if timeout <= 0 {
		timeout = defaultWebhookTimeout
	}
	return &WebhookPublisher{
		url:    url,
		secret: []byte(secret),
		client: &http.Client{Timeout: timeout},
	}
}

// Publish sends event as JSON with these headers:
//
//	Content-Type:           application/json
//	User-Agent:             packlint-webhook
//	X-Packlint-Event-Type:  <event.EventType>
//	X-Packlint-Delivery:    <event.EventID>, stable across retries
//	X-Packlint-Root:        <event.Root>
//	X-Hub-Signature-256:    sha256=<hex HMAC-SHA256>, only with a secret
//
// Any non-2xx response is an error.
func (p *WebhookPublisher) Publish(ctx context.Context, event domain.RunEvent) error {
	req, err := p.newRequest(ctx, event)
	if err != nil {
		return err
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("send webhook for run %s: %w", event.RunID, err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook for run %s returned status %d", event.RunID, resp.StatusCode)
	}
	return nil
}

func (p *WebhookPublisher) newRequest(ctx context.Context, event domain.RunEvent) (*http.Request, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("marshal event: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	h := req.Header
	h.Set("Content-Type", "application/json")
	h.Set("User-Agent", userAgent)
	h.Set("X-Packlint-Event-Type", event.EventType)
	h.Set("X-Packlint-Delivery", event.EventID)
	h.Set("X-Packlint-Root", event.Root)
	if len(p.secret) > 0 {
		h.Set("X-Hub-Signature-256", "sha256="+p.sign(payload))
	}
	return req, nil
}

func (p *WebhookPublisher) sign(payload []byte) string {
	mac := hmac.New(sha256.New, p.secret)
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}
