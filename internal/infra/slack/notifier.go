package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/kyosuke-takei/slack-price-watch/internal/domain"
)

// Item is one accepted notification: the fresh snapshot plus the diff
// reasons and the previous price (for percent-change rendering).
type Item struct {
	Snapshot  domain.ItemSnapshot
	Reasons   []string
	PrevPrice int64 // 0 when the previous price is unknown
}

// StatusError is a non-2xx webhook response.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("slack: webhook status %d: %s", e.Code, e.Body)
}

// Notifier posts change notifications to an incoming webhook. The channel
// penalizes large payloads, so items are grouped into small batches with a
// per-item fallback when a batch post fails.
type Notifier struct {
	webhookURL string
	batchSize  int
	dryRun     bool
	httpClient *http.Client
}

// NewNotifier creates a webhook notifier. batchSize is clamped to 1..3.
func NewNotifier(webhookURL string, batchSize int, dryRun bool) *Notifier {
	if batchSize < 1 {
		batchSize = 1
	}
	if batchSize > 3 {
		batchSize = 3
	}
	return &Notifier{
		webhookURL: webhookURL,
		batchSize:  batchSize,
		dryRun:     dryRun,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// Send delivers the accepted items for one profile and returns how many
// were successfully sent. A failed batch falls back to per-item posts;
// items that still fail are logged and dropped (at-most-once delivery).
func (n *Notifier) Send(ctx context.Context, profileLabel string, items []Item) int {
	sent := 0
	for start := 0; start < len(items); start += n.batchSize {
		end := start + n.batchSize
		if end > len(items) {
			end = len(items)
		}
		batch := items[start:end]

		if err := n.post(ctx, BuildMessage(profileLabel, batch)); err == nil {
			sent += len(batch)
			continue
		} else {
			slog.Warn("Batch notification failed, falling back to per-item sends",
				slog.String("profile", profileLabel),
				slog.Int("batch_size", len(batch)),
				slog.Any("error", err))
		}

		for _, item := range batch {
			if err := n.post(ctx, BuildMessage(profileLabel, []Item{item})); err != nil {
				slog.Error("Notification dropped",
					slog.String("profile", profileLabel),
					slog.String("asin", item.Snapshot.ASIN),
					slog.Any("error", err))
				continue
			}
			sent++
		}
	}
	return sent
}

func (n *Notifier) post(ctx context.Context, msg Message) error {
	if n.dryRun {
		slog.Info("Dry-run notification", slog.String("text", msg.Text))
		return nil
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("slack: marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.webhookURL, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 200))
		return &StatusError{Code: resp.StatusCode, Body: string(body)}
	}
	return nil
}
