package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// Event types.
const (
	EventHarvestCompleted = "harvest.completed"
	EventHarvestFailed    = "harvest.failed"
	EventRunCompleted     = "run.completed"
)

// SignatureHeader carries "sha256=<hex>" of the body when a secret is set.
const SignatureHeader = "X-Harvest-Signature"

// Event is the payload sent to webhook endpoints.
type Event struct {
	Type      string `json:"type"`
	RunID     string `json:"run_id,omitempty"`
	Timestamp int64  `json:"timestamp"`
	Data      any    `json:"data"`
}

// NewEvent stamps an event with the current time.
func NewEvent(typ, runID string, data any) *Event {
	return &Event{Type: typ, RunID: runID, Timestamp: time.Now().Unix(), Data: data}
}

// Notifier posts events to one endpoint.
type Notifier struct {
	URL    string
	Secret string

	// Retries are the waits before each redelivery attempt.
	Retries []time.Duration

	client *http.Client
}

// New creates a Notifier. Failed deliveries are retried after 1s, 5s and 30s.
func New(url, secret string) *Notifier {
	return &Notifier{
		URL:     url,
		Secret:  secret,
		Retries: []time.Duration{1 * time.Second, 5 * time.Second, 30 * time.Second},
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

// Sign returns the hex HMAC-SHA256 of body.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// Deliver sends an event synchronously.
func (n *Notifier) Deliver(ctx context.Context, event *Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("webhook: marshal event: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("webhook: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "Harvest-Webhook/1.0")
	if n.Secret != "" {
		req.Header.Set(SignatureHeader, "sha256="+Sign(n.Secret, body))
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook: deliver: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("webhook: endpoint returned status %d", resp.StatusCode)
	}
	return nil
}

// Notify delivers in the background, retrying per n.Retries. The returned
// channel is closed once delivery succeeded or every attempt failed.
func (n *Notifier) Notify(event *Event) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		delays := append([]time.Duration{0}, n.Retries...)
		for attempt, delay := range delays {
			if delay > 0 {
				time.Sleep(delay)
			}
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			err := n.Deliver(ctx, event)
			cancel()
			if err == nil {
				slog.Info("webhook delivered",
					"event", event.Type,
					"run_id", event.RunID,
					"attempt", attempt+1,
				)
				return
			}
			slog.Warn("webhook delivery failed",
				"event", event.Type,
				"run_id", event.RunID,
				"attempt", attempt+1,
				"error", err,
			)
		}
		slog.Error("webhook delivery exhausted all retries",
			"event", event.Type,
			"run_id", event.RunID,
		)
	}()
	return done
}
