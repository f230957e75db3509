package reporting

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"crimewatch/internal/adapters/kafka"
	"crimewatch/internal/domain/report"
	"crimewatch/internal/metrics"
	"crimewatch/pkg/errors"
	"crimewatch/pkg/logger"
	"crimewatch/pkg/validate"
)

// EventPublisher delivers domain events; *kafka.Producer satisfies it
type EventPublisher interface {
	Publish(ctx context.Context, topic string, key string, event interface{}) error
}

// Service accepts citizen crime reports
type Service struct {
	repo      report.Repository
	publisher EventPublisher
	log       *logger.Logger
	now       func() time.Time
}

// NewService creates the reporting service. publisher may be nil, in which
// case stored reports trigger no alerts.
func NewService(repo report.Repository, publisher EventPublisher, log *logger.Logger) *Service {
	return &Service{
		repo:      repo,
		publisher: publisher,
		log:       log.With("service", "reporting"),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Submit validates and stores r, then announces it. A publish failure is
// logged but does not fail the submission: the report is already stored.
func (s *Service) Submit(ctx context.Context, r *report.Report) (err error) {
	defer func() { metrics.RecordReportSubmitted(err) }()

	normalize(r)
	if err := validate.Struct(r); err != nil {
		return err
	}

	r.ID = uuid.New()
	r.CreatedAt = s.now()
	if err := s.repo.Create(ctx, r); err != nil {
		return errors.Wrap(err, "failed to store report")
	}

	s.log.Infow("Crime report submitted",
		"report_id", r.ID,
		"city", r.City,
		"crime_type", r.CrimeType,
	)

	if s.publisher == nil {
		return nil
	}
	pubErr := s.publisher.Publish(ctx, kafka.TopicReportSubmitted, r.City, r.Event())
	metrics.RecordKafkaMessage(kafka.TopicReportSubmitted, "produced", pubErr)
	if pubErr != nil {
		s.log.Warnw("Report stored but alert event not published",
			"report_id", r.ID,
			"error", pubErr,
		)
	}
	return nil
}

// Get returns a stored report or errors.ErrNotFound
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*report.Report, error) {
	return s.repo.GetByID(ctx, id)
}

// TopCitiesLimit is how many cities the dashboard ranks by default
const TopCitiesLimit = 10

// TopCities ranks cities by submitted reports. limit <= 0 means
// TopCitiesLimit; larger requests are capped at 100.
func (s *Service) TopCities(ctx context.Context, limit int) ([]report.CityCount, error) {
	if limit <= 0 {
		limit = TopCitiesLimit
	}
	limit = min(limit, 100)
	cities, err := s.repo.TopCities(ctx, limit)
	if err != nil {
		return nil, errors.Wrap(err, "failed to rank cities")
	}
	return cities, nil
}

func normalize(r *report.Report) {
	for _, f := range []*string{
		&r.City, &r.CrimeType, &r.Date, &r.Time, &r.Location,
		&r.Description, &r.VictimGender, &r.WeaponUsed, &r.CrimeDomain,
	} {
		*f = strings.TrimSpace(*f)
	}
	r.VictimGender = strings.ToUpper(r.VictimGender)
}
