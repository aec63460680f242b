package alerts

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// deliver sends webhook notifications for a to all configured targets.
// Errors are logged but do not affect the caller.
func (e *Engine) deliver(a *Alert) {
	e.mu.Lock()
	webhooks := e.webhooks
	e.mu.Unlock()

	for _, wh := range webhooks {
		url := wh.URL()
		if url == "" {
			continue
		}

		var err error
		switch wh.Type {
		case "slack":
			err = e.sendSlack(url, a)
		case "teams":
			err = e.sendTeams(url, a)
		case "http":
			err = e.sendHTTP(url, a)
		default:
			slog.Warn("alerts: unknown webhook type, skipping", "type", wh.Type)
			continue
		}

		if err != nil {
			slog.Error("alerts: webhook delivery failed", "type", wh.Type, "rule", a.RuleName, "err", err)
		} else {
			slog.Debug("alerts: webhook delivered", "type", wh.Type, "rule", a.RuleName, "state", a.State)
		}
	}
}

// fact is one labelled line of an alert notification.
type fact struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// facts lists the dataset, group and measurement behind a.
func facts(a *Alert) []fact {
	fs := []fact{
		{"Dataset", a.Dataset},
		{"Group", a.Group},
		{"Rule", a.RuleName},
		{"Value", fmt.Sprintf("%.4g", a.Value)},
		{"Severity", a.Severity},
		{"State", a.State},
		{"Fired", a.FiredAt.UTC().Format(time.RFC3339)},
	}
	if a.ResolvedAt != nil {
		fs = append(fs, fact{"Resolved", a.ResolvedAt.UTC().Format(time.RFC3339)})
	}
	return fs
}

func (e *Engine) sendSlack(url string, a *Alert) error {
	fields := make([]map[string]interface{}, 0, 8)
	for _, f := range facts(a) {
		fields = append(fields, map[string]interface{}{"title": f.Name, "value": f.Value, "short": true})
	}
	payload := map[string]interface{}{
		"text": fmt.Sprintf("*%s* %s", stateLabel(a), a.Message),
		"attachments": []map[string]interface{}{{
			"color":  "#" + severityColor(a.Severity),
			"title":  fmt.Sprintf("%s / %s", a.Dataset, a.Group),
			"fields": fields,
		}},
	}
	body, _ := json.Marshal(payload)
	return e.post(url, body)
}

func (e *Engine) sendTeams(url string, a *Alert) error {
	payload := map[string]interface{}{
		"@type":      "MessageCard",
		"@context":   "http://schema.org/extensions",
		"themeColor": severityColor(a.Severity),
		"summary":    a.RuleName,
		"title":      fmt.Sprintf("plantlens alert: %s on %s", a.RuleName, a.Group),
		"text":       fmt.Sprintf("%s %s", stateLabel(a), a.Message),
		"sections": []map[string]interface{}{{
			"activityTitle": fmt.Sprintf("Dataset %s, group %s", a.Dataset, a.Group),
			"facts":         facts(a),
		}},
	}
	body, _ := json.Marshal(payload)
	return e.post(url, body)
}

// sendHTTP posts the alert plus its routing keys at the top level so
// receivers can filter on dataset and group without unpacking it.
func (e *Engine) sendHTTP(url string, a *Alert) error {
	body, _ := json.Marshal(map[string]interface{}{
		"dataset":  a.Dataset,
		"group":    a.Group,
		"rule":     a.RuleName,
		"value":    a.Value,
		"severity": a.Severity,
		"state":    a.State,
		"alert":    a,
	})
	return e.post(url, body)
}

func (e *Engine) post(url string, body []byte) error {
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return fmt.Errorf("http post: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("webhook returned HTTP %d", resp.StatusCode)
	}
	return nil
}

// stateLabel prefixes resolved alerts so they are not mistaken for new ones.
func stateLabel(a *Alert) string {
	if a.State == StateResolved {
		return "[RESOLVED]"
	}
	return severityLabel(a.Severity)
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
