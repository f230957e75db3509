package report

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Repository defines persistence for crime reports
// Implementation is in internal/repository/postgres/report.go
type Repository interface {
	Create(ctx context.Context, r *Report) error
	GetByID(ctx context.Context, id uuid.UUID) (*Report, error)
	CountByCitySince(ctx context.Context, city string, since time.Time) (int, error)
	// TopCities ranks cities by report count, ties broken by name
	TopCities(ctx context.Context, limit int) ([]CityCount, error)
}
