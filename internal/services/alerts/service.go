package alerts

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/ttacon/libphonenumber"

	"crimewatch/internal/domain/incident"
	"crimewatch/internal/domain/report"
	"crimewatch/internal/domain/subscriber"
	"crimewatch/internal/metrics"
	"crimewatch/pkg/errors"
	"crimewatch/pkg/logger"
	"crimewatch/pkg/validate"
)

// RiskWindow is how far back reports count towards a city's risk level
const RiskWindow = 30 * 24 * time.Hour

// SubscribeRequest carries a new subscription. Nil preferences take defaults:
// email, high and medium risk on; sms and low risk off.
type SubscribeRequest struct {
	Name             string `json:"name" validate:"required,max=100"`
	Phone            string `json:"phone" validate:"required,max=32"`
	Email            string `json:"email" validate:"required,email,max=100"`
	City             string `json:"city" validate:"required,max=100"`
	State            string `json:"state" validate:"max=100"`
	NotifyEmail      *bool  `json:"notify_email"`
	NotifySMS        *bool  `json:"notify_sms"`
	NotifyHighRisk   *bool  `json:"notify_high_risk"`
	NotifyMediumRisk *bool  `json:"notify_medium_risk"`
	NotifyLowRisk    *bool  `json:"notify_low_risk"`
}

// Service manages alert subscriptions and fans report events out to them
type Service struct {
	subscribers subscriber.Repository
	reports     report.Repository
	notifier    Notifier
	region      string
	log         *logger.Logger
	now         func() time.Time
}

// NewService creates the alerts service. region is the ISO country used to
// parse phone numbers written without a country code.
func NewService(subscribers subscriber.Repository, reports report.Repository, notifier Notifier, region string, log *logger.Logger) *Service {
	return &Service{
		subscribers: subscribers,
		reports:     reports,
		notifier:    notifier,
		region:      region,
		log:         log.With("service", "alerts"),
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// Subscribe registers a subscriber. Duplicate email or phone (after E.164
// normalization) fails with errors.ErrAlreadyExists.
func (s *Service) Subscribe(ctx context.Context, req SubscribeRequest) (*subscriber.Subscriber, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	req.Phone = strings.TrimSpace(req.Phone)
	req.City = strings.TrimSpace(req.City)
	req.State = strings.TrimSpace(req.State)

	if err := validate.Struct(req); err != nil {
		return nil, err
	}
	phone, err := s.normalizePhone(req.Phone)
	if err != nil {
		return nil, err
	}

	if taken, err := s.subscribers.ExistsByEmail(ctx, req.Email); err != nil {
		return nil, errors.Wrap(err, "check email")
	} else if taken {
		return nil, errors.Wrap(errors.ErrAlreadyExists, "email already subscribed")
	}
	if taken, err := s.subscribers.ExistsByPhone(ctx, phone); err != nil {
		return nil, errors.Wrap(err, "check phone")
	} else if taken {
		return nil, errors.Wrap(errors.ErrAlreadyExists, "phone already subscribed")
	}

	sub := &subscriber.Subscriber{
		ID:               uuid.New(),
		Name:             req.Name,
		Email:            req.Email,
		Phone:            phone,
		City:             req.City,
		State:            req.State,
		IsActive:         true,
		NotifyEmail:      boolOr(req.NotifyEmail, true),
		NotifySMS:        boolOr(req.NotifySMS, false),
		NotifyHighRisk:   boolOr(req.NotifyHighRisk, true),
		NotifyMediumRisk: boolOr(req.NotifyMediumRisk, true),
		NotifyLowRisk:    boolOr(req.NotifyLowRisk, false),
		CreatedAt:        s.now(),
	}
	if err := s.subscribers.Create(ctx, sub); err != nil {
		return nil, errors.Wrap(err, "failed to create subscriber")
	}

	s.log.Infow("Subscriber registered", "subscriber_id", sub.ID, "city", sub.City)
	return sub, nil
}

func (s *Service) normalizePhone(raw string) (string, error) {
	num, err := libphonenumber.Parse(raw, s.region)
	if err != nil || !libphonenumber.IsValidNumber(num) {
		return "", errors.NewValidationError("phone", "must be a valid phone number", raw)
	}
	return libphonenumber.Format(num, libphonenumber.E164), nil
}

// RiskLevel grades a city by the number of reports in the trailing window
func (s *Service) RiskLevel(ctx context.Context, city string) (incident.RiskLevel, error) {
	n, err := s.reports.CountByCitySince(ctx, city, s.now().Add(-RiskWindow))
	if err != nil {
		return "", err
	}
	return incident.RiskForCount(n), nil
}

// Dispatch alerts every active subscriber in the report's city who opted in
// to the city's current risk level. It returns the number of alerts handed
// to the notifier. A failing channel does not stop the others.
func (s *Service) Dispatch(ctx context.Context, ev report.Submitted) (int, error) {
	risk, err := s.RiskLevel(ctx, ev.City)
	if err != nil {
		return 0, errors.Wrap(err, "compute risk level")
	}
	subs, err := s.subscribers.ListActiveByCity(ctx, ev.City)
	if err != nil {
		return 0, errors.Wrap(err, "list subscribers")
	}

	subject := fmt.Sprintf("Crime Alert: %s reported in %s", ev.CrimeType, ev.City)
	body := fmt.Sprintf("Type: %s\nLocation: %s\nDescription: %s\nDate/Time: %s %s\nRisk level: %s",
		ev.CrimeType, ev.Location, ev.Description, ev.Date, ev.Time, risk)

	sent := 0
	var notified []uuid.UUID
	for _, sub := range subs {
		if !sub.WantsRisk(risk) {
			continue
		}
		delivered := false
		for _, channel := range sub.Channels() {
			recipient := sub.Email
			if channel == "sms" {
				recipient = sub.Phone
			}
			err := s.notifier.Notify(ctx, Alert{
				Channel:      channel,
				Recipient:    recipient,
				SubscriberID: sub.ID,
				ReportID:     ev.ReportID,
				Risk:         risk,
				Subject:      subject,
				Body:         body,
			})
			metrics.RecordAlert(channel, err)
			if err != nil {
				s.log.Warnw("Alert delivery failed", "subscriber_id", sub.ID, "channel", channel, "error", err)
				continue
			}
			sent++
			delivered = true
		}
		if delivered {
			notified = append(notified, sub.ID)
		}
	}

	if err := s.subscribers.MarkNotified(ctx, notified, s.now()); err != nil {
		return sent, errors.Wrap(err, "mark subscribers notified")
	}

	s.log.Infow("Report alerts dispatched",
		"report_id", ev.ReportID,
		"city", ev.City,
		"risk", risk,
		"candidates", len(subs),
		"alerts", sent,
	)
	return sent, nil
}

func boolOr(v *bool, fallback bool) bool {
	if v == nil {
		return fallback
	}
	return *v
}
