// Package notify is the fire-and-forget notification boundary. Delivery
// failures are logged and never affect core state.
package notify

import (
	"encoding/json"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/nourishbox/api/internal/ws"
)

// Notifier publishes domain events to interested parties.
type Notifier interface {
	Notify(event string, companyID uuid.UUID, payload any)
}

// HubNotifier broadcasts events to company dashboard rooms over WebSocket.
type HubNotifier struct {
	hub    *ws.Hub
	logger *zap.SugaredLogger
}

// NewHubNotifier creates a notifier backed by the WebSocket hub.
func NewHubNotifier(hub *ws.Hub, logger *zap.SugaredLogger) *HubNotifier {
	return &HubNotifier{hub: hub, logger: logger}
}

// Notify marshals the payload and broadcasts to the company's room.
func (n *HubNotifier) Notify(event string, companyID uuid.UUID, payload any) {
	raw, err := json.Marshal(payload)
	if err != nil {
		n.logger.Warnw("drop notification", "event", event, "error", err)
		return
	}
	n.hub.BroadcastToCompany(companyID, ws.Event{Type: event, Payload: raw})
	n.logger.Debugw("notification sent", "event", event, "company_id", companyID)
}

// LogNotifier only logs events. Used when no hub is wired, and in tests.
type LogNotifier struct {
	logger *zap.SugaredLogger
}

// NewLogNotifier creates a log-only notifier.
func NewLogNotifier(logger *zap.SugaredLogger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

// Notify logs the event.
func (n *LogNotifier) Notify(event string, companyID uuid.UUID, payload any) {
	n.logger.Infow("notification", "event", event, "company_id", companyID)
}
