package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"crimewatch/internal/domain/subscriber"
)

var _ subscriber.Repository = (*SubscriberRepository)(nil)

// SubscriberRepository implements subscriber.Repository using sqlx
type SubscriberRepository struct {
	db DBTX
}

// NewSubscriberRepository creates a new subscriber repository
func NewSubscriberRepository(db DBTX) *SubscriberRepository {
	return &SubscriberRepository{db: db}
}

const subscriberColumns = `
	id, name, email, phone, city, state, is_active,
	notify_email, notify_sms, notify_high_risk, notify_medium_risk, notify_low_risk,
	created_at, last_notified`

// Create inserts a subscriber; the unique constraints on email and phone
// surface as errors.ErrAlreadyExists
func (r *SubscriberRepository) Create(ctx context.Context, s *subscriber.Subscriber) error {
	start := time.Now()
	_, err := r.db.NamedExecContext(ctx, `
		INSERT INTO subscribers (`+subscriberColumns+`) VALUES (
			:id, :name, :email, :phone, :city, :state, :is_active,
			:notify_email, :notify_sms, :notify_high_risk, :notify_medium_risk, :notify_low_risk,
			:created_at, :last_notified
		)`, s)
	observe("subscriber_create", start, err)
	return mapError(err, "subscriber")
}

// GetByID retrieves a subscriber
func (r *SubscriberRepository) GetByID(ctx context.Context, id uuid.UUID) (*subscriber.Subscriber, error) {
	var s subscriber.Subscriber
	err := r.db.GetContext(ctx, &s, `SELECT `+subscriberColumns+` FROM subscribers WHERE id = $1`, id)
	if err != nil {
		return nil, mapError(err, "subscriber")
	}
	return &s, nil
}

// ExistsByEmail reports whether the email is taken
func (r *SubscriberRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM subscribers WHERE email = $1)`, email)
	return exists, mapError(err, "subscriber")
}

// ExistsByPhone reports whether the phone number is taken
func (r *SubscriberRepository) ExistsByPhone(ctx context.Context, phone string) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM subscribers WHERE phone = $1)`, phone)
	return exists, mapError(err, "subscriber")
}

// ListActiveByCity returns active subscribers of a city, case-insensitively
func (r *SubscriberRepository) ListActiveByCity(ctx context.Context, city string) ([]*subscriber.Subscriber, error) {
	start := time.Now()
	var out []*subscriber.Subscriber
	err := r.db.SelectContext(ctx, &out, `
		SELECT `+subscriberColumns+`
		FROM subscribers
		WHERE is_active AND LOWER(city) = LOWER($1)
		ORDER BY created_at`, city)
	observe("subscriber_list_city", start, err)
	if err != nil {
		return nil, mapError(err, "subscriber")
	}
	return out, nil
}

// MarkNotified sets last_notified for the given subscribers
func (r *SubscriberRepository) MarkNotified(ctx context.Context, ids []uuid.UUID, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	raw := make([]string, len(ids))
	for i, id := range ids {
		raw[i] = id.String()
	}
	_, err := r.db.ExecContext(ctx,
		`UPDATE subscribers SET last_notified = $1 WHERE id = ANY($2::uuid[])`, at, pq.Array(raw))
	return mapError(err, "subscriber")
}
