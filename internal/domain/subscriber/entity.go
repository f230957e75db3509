package subscriber

import (
	"time"

	"github.com/google/uuid"

	"crimewatch/internal/domain/incident"
)

// Subscriber receives alerts about reports in their city
type Subscriber struct {
	ID               uuid.UUID  `db:"id" json:"id"`
	Name             string     `db:"name" json:"name" validate:"required,max=100"`
	Email            string     `db:"email" json:"email" validate:"required,email,max=100"`
	Phone            string     `db:"phone" json:"phone" validate:"required,max=32"`
	City             string     `db:"city" json:"city" validate:"required,max=100"`
	State            string     `db:"state" json:"state,omitempty" validate:"max=100"`
	IsActive         bool       `db:"is_active" json:"is_active"`
	NotifyEmail      bool       `db:"notify_email" json:"notify_email"`
	NotifySMS        bool       `db:"notify_sms" json:"notify_sms"`
	NotifyHighRisk   bool       `db:"notify_high_risk" json:"notify_high_risk"`
	NotifyMediumRisk bool       `db:"notify_medium_risk" json:"notify_medium_risk"`
	NotifyLowRisk    bool       `db:"notify_low_risk" json:"notify_low_risk"`
	CreatedAt        time.Time  `db:"created_at" json:"created_at"`
	LastNotified     *time.Time `db:"last_notified" json:"last_notified,omitempty"`
}

// WantsRisk reports whether the subscriber opted in to alerts at level
func (s *Subscriber) WantsRisk(level incident.RiskLevel) bool {
	switch level {
	case incident.RiskHigh:
		return s.NotifyHighRisk
	case incident.RiskMedium:
		return s.NotifyMediumRisk
	case incident.RiskLow:
		return s.NotifyLowRisk
	}
	return false
}

// Channels lists the delivery channels the subscriber opted in to
func (s *Subscriber) Channels() []string {
	var out []string
	if s.NotifyEmail && s.Email != "" {
		out = append(out, "email")
	}
	if s.NotifySMS && s.Phone != "" {
		out = append(out, "sms")
	}
	return out
}
