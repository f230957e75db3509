package incident

import "time"

// Record is one row of the historical crime dataset.
// Optional fields are nil when the source cell was empty or unparsable.
type Record struct {
	City             string
	CrimeDescription string
	CrimeDomain      string
	VictimAge        *int
	VictimGender     string
	OccurredAt       *time.Time
	HourOfDay        *int
}

// Year returns the occurrence year, or 0 when the date is unknown
func (r Record) Year() int {
	if r.OccurredAt == nil {
		return 0
	}
	return r.OccurredAt.Year()
}

// FeatureRow is the categorical view of a record used by the classifier.
type FeatureRow struct {
	City      string
	AgeGroup  string
	Gender    string
	TimeOfDay string
	Month     string
	DayOfWeek string
	Label     string
}

// Complete reports whether every feature and the label are present
func (f FeatureRow) Complete() bool {
	return f.City != "" && f.AgeGroup != "" && f.Gender != "" &&
		f.TimeOfDay != "" && f.Month != "" && f.DayOfWeek != "" && f.Label != ""
}

// Tokens returns the six feature tokens in classifier input order
func (f FeatureRow) Tokens() []string {
	return []string{f.City, f.AgeGroup, f.Gender, f.TimeOfDay, f.Month, f.DayOfWeek}
}
