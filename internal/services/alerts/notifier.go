package alerts

import (
	"context"

	"github.com/google/uuid"

	"crimewatch/internal/domain/incident"
	"crimewatch/pkg/logger"
)

// Alert is one message addressed to one subscriber over one channel
type Alert struct {
	Channel      string
	Recipient    string
	SubscriberID uuid.UUID
	ReportID     uuid.UUID
	Risk         incident.RiskLevel
	Subject      string
	Body         string
}

// Notifier hands an alert to a delivery transport
type Notifier interface {
	Notify(ctx context.Context, alert Alert) error
}

// LogNotifier writes alerts to the log instead of delivering them
type LogNotifier struct {
	log *logger.Logger
}

// NewLogNotifier creates a LogNotifier
func NewLogNotifier(log *logger.Logger) *LogNotifier {
	return &LogNotifier{log: log.With("component", "log_notifier")}
}

// Notify implements Notifier
func (n *LogNotifier) Notify(_ context.Context, a Alert) error {
	n.log.Infow("Alert",
		"channel", a.Channel,
		"recipient", a.Recipient,
		"report_id", a.ReportID,
		"risk", a.Risk,
		"subject", a.Subject,
	)
	return nil
}
