// Package notifier delivers terminal process outcomes to an external
// webhook. Delivery is best effort; the engine never blocks or rolls
// back on a failed notification.
package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/garyjia/process-engine/internal/application/port"
)

// WebhookNotifier posts terminal state notifications as JSON to a
// configured URL
type WebhookNotifier struct {
	url        string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewWebhookNotifier creates a notifier posting to the given URL. An
// empty URL produces a notifier that drops everything, which keeps
// wiring simple in deployments without a receiver.
func NewWebhookNotifier(url string, timeout time.Duration, logger *zap.Logger) *WebhookNotifier {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &WebhookNotifier{
		url:        url,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

type notification struct {
	ProcessID   string `json:"process_id"`
	ProcessType string `json:"process_type"`
	Outcome     string `json:"outcome"`
	Timestamp   string `json:"timestamp"`
}

// NotifyCompleted reports a process that reached COMPLETE
func (n *WebhookNotifier) NotifyCompleted(ctx context.Context, processID, processType string) error {
	return n.post(ctx, processID, processType, "COMPLETED")
}

// NotifyFailed reports a process that reached FAILED
func (n *WebhookNotifier) NotifyFailed(ctx context.Context, processID, processType string) error {
	return n.post(ctx, processID, processType, "FAILED")
}

// NotifyExpired reports a process that timed out
func (n *WebhookNotifier) NotifyExpired(ctx context.Context, processID, processType string) error {
	return n.post(ctx, processID, processType, "EXPIRED")
}

func (n *WebhookNotifier) post(ctx context.Context, processID, processType, outcome string) error {
	if n.url == "" {
		n.logger.Debug("Webhook URL not configured, dropping notification",
			zap.String("process_id", processID),
			zap.String("outcome", outcome))
		return nil
	}

	body, err := json.Marshal(notification{
		ProcessID:   processID,
		ProcessType: processType,
		Outcome:     outcome,
		Timestamp:   time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build notification request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to deliver notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("notification rejected with status %d", resp.StatusCode)
	}

	n.logger.Info("Delivered terminal state notification",
		zap.String("process_id", processID),
		zap.String("outcome", outcome))
	return nil
}

// Verify interface compliance
var _ port.Notifier = (*WebhookNotifier)(nil)
