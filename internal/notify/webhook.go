package notify

import (
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/HydroNutri/Hardware/internal/alarm"
	"github.com/HydroNutri/Hardware/internal/models"
)

// alarmEvent is the JSON body posted for each alarm transition.
type alarmEvent struct {
	Event       string `json:"event"` // "raised" | "cleared"
	Code        string `json:"code"`
	Message     string `json:"message"`
	Sticky      bool   `json:"sticky"`
	TimestampMs int64  `json:"ts"`
}

// WebhookNotifier forwards alarm transitions to an operator-facing HTTP
// endpoint. Delivery is best-effort: failures are logged and never block or
// fail the alarm path.
type WebhookNotifier struct {
	client *resty.Client
	url    string
	logger *zap.Logger
}

func NewWebhookNotifier(url string, logger *zap.Logger) *WebhookNotifier {
	client := resty.New().
		SetTimeout(5 * time.Second).
		SetRetryCount(1)
	return &WebhookNotifier{client: client, url: url, logger: logger}
}

// Hook returns the transition hook to register with the alarm manager.
func (n *WebhookNotifier) Hook() alarm.TransitionHook {
	return func(a models.Alarm, raised bool) {
		event := alarmEvent{
			Event:       "cleared",
			Code:        a.Code,
			Message:     a.Message,
			Sticky:      a.Sticky,
			TimestampMs: time.Now().UnixMilli(),
		}
		if raised {
			event.Event = "raised"
		}
		// Detached from the alarm path so a slow endpoint cannot stall
		// ingestion or the periodic tasks.
		go n.post(event)
	}
}

func (n *WebhookNotifier) post(event alarmEvent) {
	resp, err := n.client.R().
		SetHeader("Content-Type", "application/json").
		SetBody(event).
		Post(n.url)
	if err != nil {
		n.logger.Warn("Alarm webhook delivery failed",
			zap.String("code", event.Code),
			zap.Error(err),
		)
		return
	}
	if resp.IsError() {
		n.logger.Warn("Alarm webhook rejected",
			zap.String("code", event.Code),
			zap.Int("status", resp.StatusCode()),
		)
	}
}
