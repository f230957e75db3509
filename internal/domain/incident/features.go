package incident

import (
	"strconv"
	"strings"
	"time"
)

// Time-of-day bands
const (
	Night     = "Night"
	Morning   = "Morning"
	Afternoon = "Afternoon"
	Evening   = "Evening"
)

type ageBand struct {
	lo, hi int // [lo, hi)
	label  string
}

// Labels follow the historical dataset naming; bounds are right-open.
var ageBands = []ageBand{
	{0, 18, "0-18"},
	{18, 30, "19-30"},
	{30, 45, "31-45"},
	{45, 60, "46-60"},
	{60, 120, "60+"},
}

// AgeGroups lists every age band label in ascending order
func AgeGroups() []string {
	out := make([]string, len(ageBands))
	for i, b := range ageBands {
		out[i] = b.label
	}
	return out
}

// TimesOfDay lists the time bands in order of first appearance over a day
func TimesOfDay() []string {
	return []string{Night, Morning, Afternoon, Evening}
}

// AgeGroup maps an age to its band; ok is false outside [0, 120).
func AgeGroup(age int) (string, bool) {
	for _, b := range ageBands {
		if age >= b.lo && age < b.hi {
			return b.label, true
		}
	}
	return "", false
}

// TimeOfDay maps an hour 0..23 to its band. The 22-23 band folds into Night.
func TimeOfDay(hour int) (string, bool) {
	switch {
	case hour < 0 || hour > 23:
		return "", false
	case hour <= 5:
		return Night, true
	case hour <= 11:
		return Morning, true
	case hour <= 17:
		return Afternoon, true
	case hour <= 21:
		return Evening, true
	default:
		return Night, true
	}
}

// MonthToken renders the calendar month as an unpadded decimal token ("3")
func MonthToken(t time.Time) string {
	return strconv.Itoa(int(t.Month()))
}

// DayOfWeek renders the English weekday name ("Monday")
func DayOfWeek(t time.Time) string {
	return t.Weekday().String()
}

// Features derives the categorical feature row. Missing inputs leave the
// corresponding token empty, which makes the row incomplete.
func Features(r Record) FeatureRow {
	row := FeatureRow{
		City:   strings.TrimSpace(r.City),
		Gender: strings.TrimSpace(r.VictimGender),
		Label:  strings.TrimSpace(r.CrimeDescription),
	}
	if r.VictimAge != nil {
		row.AgeGroup, _ = AgeGroup(*r.VictimAge)
	}
	if r.HourOfDay != nil {
		row.TimeOfDay, _ = TimeOfDay(*r.HourOfDay)
	}
	if r.OccurredAt != nil {
		row.Month = MonthToken(*r.OccurredAt)
		row.DayOfWeek = DayOfWeek(*r.OccurredAt)
	}
	return row
}
