package subscriber

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Repository defines persistence for alert subscribers
// Implementation is in internal/repository/postgres/subscriber.go
type Repository interface {
	// Create fails with errors.ErrAlreadyExists on a duplicate email or phone
	Create(ctx context.Context, s *Subscriber) error
	GetByID(ctx context.Context, id uuid.UUID) (*Subscriber, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	ExistsByPhone(ctx context.Context, phone string) (bool, error)
	ListActiveByCity(ctx context.Context, city string) ([]*Subscriber, error)
	MarkNotified(ctx context.Context, ids []uuid.UUID, at time.Time) error
}
