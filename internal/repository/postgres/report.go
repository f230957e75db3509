package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"

	"crimewatch/internal/domain/report"
)

var _ report.Repository = (*ReportRepository)(nil)

// ReportRepository implements report.Repository using sqlx
type ReportRepository struct {
	db DBTX
}

// NewReportRepository creates a new report repository
func NewReportRepository(db DBTX) *ReportRepository {
	return &ReportRepository{db: db}
}

// Create inserts a report
func (r *ReportRepository) Create(ctx context.Context, rep *report.Report) error {
	start := time.Now()
	_, err := r.db.NamedExecContext(ctx, `
		INSERT INTO reports (
			id, city, crime_type, occurred_date, occurred_time, location, description,
			victim_age, victim_gender, weapon_used, crime_domain, created_at
		) VALUES (
			:id, :city, :crime_type, :occurred_date, :occurred_time, :location, :description,
			:victim_age, :victim_gender, :weapon_used, :crime_domain, :created_at
		)`, rep)
	observe("report_create", start, err)
	return mapError(err, "report")
}

// GetByID retrieves a report
func (r *ReportRepository) GetByID(ctx context.Context, id uuid.UUID) (*report.Report, error) {
	start := time.Now()
	var rep report.Report
	err := r.db.GetContext(ctx, &rep, `
		SELECT id, city, crime_type, occurred_date, occurred_time, location, description,
			victim_age, victim_gender, weapon_used, crime_domain, created_at
		FROM reports
		WHERE id = $1`, id)
	observe("report_get", start, err)
	if err != nil {
		return nil, mapError(err, "report")
	}
	return &rep, nil
}

// CountByCitySince counts reports for a city created after since
func (r *ReportRepository) CountByCitySince(ctx context.Context, city string, since time.Time) (int, error) {
	start := time.Now()
	var n int
	err := r.db.GetContext(ctx, &n, `
		SELECT COUNT(*) FROM reports WHERE city = $1 AND created_at >= $2`, city, since)
	observe("report_count", start, err)
	return n, mapError(err, "report count")
}

// TopCities returns the limit cities with the most reports
func (r *ReportRepository) TopCities(ctx context.Context, limit int) ([]report.CityCount, error) {
	start := time.Now()
	out := []report.CityCount{}
	err := r.db.SelectContext(ctx, &out, `
		SELECT city, COUNT(*) AS count
		FROM reports
		GROUP BY city
		ORDER BY count DESC, city
		LIMIT $1`, limit)
	observe("report_top_cities", start, err)
	if err != nil {
		return nil, mapError(err, "top cities")
	}
	return out, nil
}
