package report

import (
	"time"

	"github.com/google/uuid"
)

// Report is a citizen-submitted crime report
type Report struct {
	ID           uuid.UUID `db:"id" json:"id"`
	City         string    `db:"city" json:"city" validate:"required,max=100"`
	CrimeType    string    `db:"crime_type" json:"crime_type" validate:"required,max=100"`
	Date         string    `db:"occurred_date" json:"date" validate:"required,datetime=2006-01-02"`
	Time         string    `db:"occurred_time" json:"time" validate:"required,datetime=15:04"`
	Location     string    `db:"location" json:"location" validate:"required,max=255"`
	Description  string    `db:"description" json:"description" validate:"required,max=4000"`
	VictimAge    *int      `db:"victim_age" json:"victim_age,omitempty" validate:"omitempty,gte=0,lte=120"`
	VictimGender string    `db:"victim_gender" json:"victim_gender,omitempty" validate:"omitempty,oneof=M F X"`
	WeaponUsed   string    `db:"weapon_used" json:"weapon_used,omitempty" validate:"max=100"`
	CrimeDomain  string    `db:"crime_domain" json:"crime_domain,omitempty" validate:"max=100"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// CityCount is the number of stored reports for one city
type CityCount struct {
	City  string `db:"city" json:"city"`
	Count int    `db:"count" json:"count"`
}

// Submitted is published after a report is stored
type Submitted struct {
	ReportID    uuid.UUID `json:"report_id"`
	City        string    `json:"city"`
	CrimeType   string    `json:"crime_type"`
	Location    string    `json:"location"`
	Description string    `json:"description"`
	Date        string    `json:"date"`
	Time        string    `json:"time"`
	SubmittedAt time.Time `json:"submitted_at"`
}

// Event builds the notification payload for r
func (r *Report) Event() Submitted {
	return Submitted{
		ReportID:    r.ID,
		City:        r.City,
		CrimeType:   r.CrimeType,
		Location:    r.Location,
		Description: r.Description,
		Date:        r.Date,
		Time:        r.Time,
		SubmittedAt: r.CreatedAt,
	}
}
