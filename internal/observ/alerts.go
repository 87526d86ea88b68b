package observ

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Severity ranks an alert.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Alert is one operator notification.
type Alert struct {
	AlertID      string            `json:"alert_id"`
	Severity     Severity          `json:"severity"`
	Title        string            `json:"title"`
	Message      string            `json:"message"`
	Timestamp    string            `json:"timestamp"`
	Metadata     map[string]string `json:"metadata,omitempty"`
	Acknowledged bool              `json:"acknowledged"`
}

// Notifier delivers an alert somewhere an operator will see it.
type Notifier interface {
	Notify(alert Alert) error
}

// AlertManager raises, dedupes, and tracks alerts. Duplicate alerts (same
// severity+title) inside the cooldown window are suppressed so a failing
// provider does not page once per event.
type AlertManager struct {
	log      zerolog.Logger
	notifier Notifier
	cooldown time.Duration

	mu       sync.Mutex
	alerts   []Alert
	lastSent map[string]time.Time
	counter  int
	now      func() time.Time
}

// NewAlertManager creates a manager. A nil notifier logs only. A
// non-positive cooldown defaults to 15 minutes.
func NewAlertManager(log zerolog.Logger, notifier Notifier, cooldown time.Duration) *AlertManager {
	if cooldown <= 0 {
		cooldown = 15 * time.Minute
	}
	return &AlertManager{
		log:      log,
		notifier: notifier,
		cooldown: cooldown,
		lastSent: make(map[string]time.Time),
		now:      time.Now,
	}
}

// Raise records an alert and notifies unless an identical alert fired
// within the cooldown window. The alert is stored either way.
func (a *AlertManager) Raise(severity Severity, title, message string, metadata map[string]string) Alert {
	a.mu.Lock()
	a.counter++
	alert := Alert{
		AlertID:   fmt.Sprintf("alert_%06d", a.counter),
		Severity:  severity,
		Title:     title,
		Message:   message,
		Timestamp: a.now().UTC().Format(time.RFC3339),
		Metadata:  metadata,
	}
	a.alerts = append(a.alerts, alert)

	key := dedupeKey(severity, title)
	last, seen := a.lastSent[key]
	suppress := seen && a.now().Sub(last) < a.cooldown
	if !suppress {
		a.lastSent[key] = a.now()
	}
	a.mu.Unlock()

	evt := a.log.Warn()
	if severity == SeverityCritical {
		evt = a.log.Error()
	} else if severity == SeverityInfo {
		evt = a.log.Info()
	}
	evt.Str("alert_id", alert.AlertID).
		Str("severity", string(severity)).
		Str("title", title).
		Bool("suppressed", suppress).
		Msg(message)

	if suppress || a.notifier == nil {
		return alert
	}
	if err := a.notifier.Notify(alert); err != nil {
		a.log.Error().Err(err).Str("alert_id", alert.AlertID).Msg("alert notification failed")
	}
	return alert
}

// Active returns all unacknowledged alerts.
func (a *AlertManager) Active() []Alert {
	a.mu.Lock()
	defer a.mu.Unlock()
	var out []Alert
	for _, alert := range a.alerts {
		if !alert.Acknowledged {
			out = append(out, alert)
		}
	}
	return out
}

// Acknowledge marks an alert as handled.
func (a *AlertManager) Acknowledge(alertID string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	for i := range a.alerts {
		if a.alerts[i].AlertID == alertID {
			a.alerts[i].Acknowledged = true
			return true
		}
	}
	return false
}

func dedupeKey(severity Severity, title string) string {
	sum := sha256.Sum256([]byte(string(severity) + "|" + title))
	return hex.EncodeToString(sum[:8])
}

// WebhookNotifier POSTs alerts as JSON to a configured URL.
type WebhookNotifier struct {
	url        string
	httpClient *http.Client
}

// NewWebhookNotifier creates a webhook notifier.
func NewWebhookNotifier(url string, timeout time.Duration) *WebhookNotifier {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &WebhookNotifier{
		url:        url,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Notify implements Notifier.
func (w *WebhookNotifier) Notify(alert Alert) error {
	body, err := json.Marshal(alert)
	if err != nil {
		return fmt.Errorf("marshal alert: %w", err)
	}
	resp, err := w.httpClient.Post(w.url, "application/json", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("post alert webhook: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("alert webhook HTTP %d", resp.StatusCode)
	}
	return nil
}
