package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/vigilhq/vigil/internal/config"
)

const notifyTimeout = 10 * time.Second

// BuildNotifiers constructs the configured notification channels. Unknown
// types were already rejected by config validation.
func BuildNotifiers(cfgs []config.NotifierConfig) []Notifier {
	var out []Notifier
	for _, c := range cfgs {
		switch c.Type {
		case "slack":
			out = append(out, &slackNotifier{webhook: webhook{cfg: c, client: newClient()}})
		case "teams":
			out = append(out, &teamsNotifier{webhook: webhook{cfg: c, client: newClient()}})
		case "webhook":
			out = append(out, &httpNotifier{webhook: webhook{cfg: c, client: newClient()}})
		case "log":
			out = append(out, logNotifier{})
		}
	}
	return out
}

func newClient() *http.Client {
	return &http.Client{Timeout: notifyTimeout}
}

// webhook is the shared delivery plumbing for all HTTP-backed notifiers.
type webhook struct {
	cfg    config.NotifierConfig
	client *http.Client
}

func (w *webhook) post(ctx context.Context, body []byte) error {
	url := w.cfg.URL()
	if url == "" {
		return fmt.Errorf("notifier %s: %s is not set", w.cfg.Type, w.cfg.URLEnv)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("http post: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("webhook returned HTTP %d", resp.StatusCode)
	}
	return nil
}

type slackNotifier struct{ webhook }

func (n *slackNotifier) Send(ctx context.Context, severity, message string) error {
	body, _ := json.Marshal(map[string]string{
		"text": fmt.Sprintf("*%s* %s", severityLabel(severity), message),
	})
	return n.post(ctx, body)
}

type teamsNotifier struct{ webhook }

func (n *teamsNotifier) Send(ctx context.Context, severity, message string) error {
	payload := map[string]interface{}{
		"@type":      "MessageCard",
		"@context":   "http://schema.org/extensions",
		"themeColor": severityColor(severity),
		"summary":    "vigil health alert",
		"title":      fmt.Sprintf("Vigil %s", severityLabel(severity)),
		"text":       message,
	}
	body, _ := json.Marshal(payload)
	return n.post(ctx, body)
}

type httpNotifier struct{ webhook }

func (n *httpNotifier) Send(ctx context.Context, severity, message string) error {
	body, _ := json.Marshal(map[string]string{
		"severity": severity,
		"message":  message,
	})
	return n.post(ctx, body)
}

// logNotifier writes notifications to the structured log. It is the
// fallback channel and never fails.
type logNotifier struct{}

func (logNotifier) Send(_ context.Context, severity, message string) error {
	switch severity {
	case "critical":
		slog.Error("notification", "severity", severity, "message", message)
	case "warning":
		slog.Warn("notification", "severity", severity, "message", message)
	default:
		slog.Info("notification", "severity", severity, "message", message)
	}
	return nil
}

func severityLabel(s string) string {
	switch s {
	case "critical":
		return "[CRITICAL]"
	case "warning":
		return "[WARNING]"
	default:
		return "[INFO]"
	}
}

func severityColor(s string) string {
	switch s {
	case "critical":
		return "FF4F6A"
	case "warning":
		return "FFAB40"
	default:
		return "00D4FF"
	}
}
