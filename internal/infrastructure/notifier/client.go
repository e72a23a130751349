// Package notifier dispatches operator-facing webhook notifications shaped
// as a Lark/Feishu interactive message card.
package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"time"

	"github.com/videoannot/ingestworker/internal/domain/repository"
)

var severityTemplate = map[repository.NotificationSeverity]string{
	repository.SeverityError:   "red",
	repository.SeverityWarning: "orange",
	repository.SeverityInfo:    "blue",
	repository.SeveritySuccess: "green",
}

var severityIcon = map[repository.NotificationSeverity]string{
	repository.SeverityError:   "❌",
	repository.SeverityWarning: "⚠️",
	repository.SeverityInfo:    "ℹ️",
	repository.SeveritySuccess: "✅",
}

// Client posts Notifications to a webhook URL. A zero-value WebhookURL
// disables dispatch entirely: Notify becomes a no-op that always succeeds,
// matching the original system's "webhook not configured, skip" behavior.
type Client struct {
	httpClient *http.Client
	webhookURL string
	logger     *slog.Logger
}

func NewClient(webhookURL string, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{httpClient: &http.Client{Timeout: 5 * time.Second}, webhookURL: webhookURL, logger: logger}
}

// Notify builds the message card and posts it. Dispatch failures are logged
// and swallowed, never returned, so a notifier outage never fails the
// ingestion run that triggered the notification.
func (c *Client) Notify(ctx context.Context, n repository.Notification) error {
	if c.webhookURL == "" {
		c.logger.Debug("notifier webhook not configured, skipping notification", "title", n.Title)
		return nil
	}

	card := buildCard(n)
	body, err := json.Marshal(map[string]any{"msg_type": "interactive", "card": card})
	if err != nil {
		c.logger.Error("failed to encode notification card", "error", err)
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.webhookURL, bytes.NewReader(body))
	if err != nil {
		c.logger.Error("failed to build notification request", "error", err)
		return nil
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("notification webhook request failed", "error", err)
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.logger.Error("notification webhook rejected card", "status", resp.StatusCode, "title", n.Title)
		return nil
	}

	c.logger.Debug("notification sent", "title", n.Title)
	return nil
}

func buildCard(n repository.Notification) map[string]any {
	icon := severityIcon[n.Severity]
	if icon == "" {
		icon = "\U0001f4cb"
	}
	template := severityTemplate[n.Severity]
	if template == "" {
		template = "grey"
	}

	var elements []map[string]any
	for _, key := range sortedKeys(n.Content) {
		elements = append(elements, map[string]any{
			"tag": "div",
			"text": map[string]any{
				"tag":     "lark_md",
				"content": fmt.Sprintf("**%s**: `%s`", key, n.Content[key]),
			},
		})
	}

	if len(n.Metadata) > 0 {
		elements = append(elements, map[string]any{"tag": "hr"})
		for _, key := range sortedKeys(n.Metadata) {
			elements = append(elements, map[string]any{
				"tag": "div",
				"text": map[string]any{
					"tag":     "lark_md",
					"content": fmt.Sprintf("**%s**: %s", key, n.Metadata[key]),
				},
			})
		}
	}

	elements = append(elements, map[string]any{
		"tag": "note",
		"elements": []map[string]any{
			{"tag": "plain_text", "content": "sent: " + time.Now().Format("2006-01-02 15:04:05")},
		},
	})

	return map[string]any{
		"header": map[string]any{
			"title":    map[string]any{"tag": "plain_text", "content": icon + " " + n.Title},
			"template": template,
		},
		"elements": elements,
	}
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

var _ repository.NotifierGateway = (*Client)(nil)
