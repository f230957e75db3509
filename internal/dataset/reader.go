package dataset

import (
	"encoding/csv"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"crimewatch/internal/domain/incident"
	"crimewatch/pkg/errors"
	"crimewatch/pkg/logger"
)

// Column headers of the historical dataset
const (
	ColCity             = "City"
	ColCrimeDescription = "Crime Description"
	ColVictimAge        = "Victim Age"
	ColVictimGender     = "Victim Gender"
	ColDateOfOccurrence = "Date of Occurrence"
	ColTimeOfOccurrence = "Time of Occurrence"
	ColCrimeDomain      = "Crime Domain"
)

// RequiredColumns must all be present in the header
var RequiredColumns = []string{
	ColCity, ColCrimeDescription, ColVictimAge, ColVictimGender, ColDateOfOccurrence, ColTimeOfOccurrence,
}

// Day-first layouts, as exported by the source dataset
var dateLayouts = []string{
	"02-01-2006 15:04",
	"02-01-2006 15:04:05",
	"02-01-2006",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05Z07:00",
	"2006-01-02",
}

var timeLayouts = append([]string{"15:04", "15:04:05"}, dateLayouts...)

// Stats counts what the reader saw
type Stats struct {
	Rows      int `json:"rows"`
	ShortRows int `json:"short_rows"`
	BadDates  int `json:"bad_dates"`
	BadTimes  int `json:"bad_times"`
	BadAges   int `json:"bad_ages"`
}

// Read parses a CSV stream into records. Unparsable cells become nil fields
// rather than errors; only a missing required column or a broken CSV stream fails.
func Read(r io.Reader) ([]incident.Record, Stats, error) {
	var stats Stats

	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.ReuseRecord = true
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, stats, errors.Wrapf(errors.ErrMissingColumn, "empty file, want %v", RequiredColumns)
	}
	if err != nil {
		return nil, stats, errors.Wrap(err, "read header")
	}

	pos := make(map[string]int, len(header))
	for i, h := range header {
		pos[strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))] = i
	}
	for _, col := range RequiredColumns {
		if _, ok := pos[col]; !ok {
			return nil, stats, errors.Wrapf(errors.ErrMissingColumn, "%q", col)
		}
	}
	domainIdx, hasDomain := pos[ColCrimeDomain]

	var records []incident.Record
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, stats, errors.Wrapf(err, "read row %d", stats.Rows+2)
		}
		stats.Rows++

		cell := func(col string) string {
			i := pos[col]
			if i >= len(row) {
				return ""
			}
			return strings.TrimSpace(row[i])
		}
		if len(row) < len(header) {
			stats.ShortRows++
		}

		rec := incident.Record{
			City:             cell(ColCity),
			CrimeDescription: cell(ColCrimeDescription),
			VictimGender:     cell(ColVictimGender),
		}
		if hasDomain && domainIdx < len(row) {
			rec.CrimeDomain = strings.TrimSpace(row[domainIdx])
		}

		if age, ok := parseAge(cell(ColVictimAge)); ok {
			rec.VictimAge = &age
		} else {
			stats.BadAges++
		}
		if at, ok := parseTime(cell(ColDateOfOccurrence), dateLayouts); ok {
			rec.OccurredAt = &at
		} else {
			stats.BadDates++
		}
		if at, ok := parseTime(cell(ColTimeOfOccurrence), timeLayouts); ok {
			hour := at.Hour()
			rec.HourOfDay = &hour
		} else {
			stats.BadTimes++
		}

		records = append(records, rec)
	}
	return records, stats, nil
}

// Load reads the dataset at path
func Load(path string) ([]incident.Record, Stats, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, Stats{}, errors.Wrap(err, "open dataset")
	}
	defer f.Close()

	records, stats, err := Read(f)
	if err != nil {
		return nil, stats, errors.Wrapf(err, "parse %s", path)
	}
	logger.Get().Infow("Dataset loaded", "path", path, "rows", stats.Rows,
		"bad_dates", stats.BadDates, "bad_times", stats.BadTimes, "bad_ages", stats.BadAges)
	return records, stats, nil
}

func parseAge(s string) (int, bool) {
	if s == "" {
		return 0, false
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n, true
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f != float64(int(f)) {
		return 0, false
	}
	return int(f), true
}

func parseTime(s string, layouts []string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
