package dataset

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crimewatch/pkg/errors"
)

const sample = `Report Number,Date Reported,Date of Occurrence,Time of Occurrence,City,Crime Code,Crime Description,Victim Age,Victim Gender,Weapon Used,Crime Domain
1,02-01-2020 00:00,01-01-2020 00:00,01-01-2020 01:11,Ahmedabad,576,IDENTITY THEFT,16,M,Blunt Object,Violent Crime
2,01-01-2020 19:00,15-03-2021 14:30,14:30,Chennai,128,HOMICIDE,37,F,Poison,Other Crime
3,bad,not-a-date,,Pune,271,KIDNAPPING,abc,X,,Fire Accident
`

func TestRead(t *testing.T) {
	records, stats, err := Read(strings.NewReader(sample))
	require.NoError(t, err)
	require.Len(t, records, 3)

	assert.Equal(t, 3, stats.Rows)
	assert.Equal(t, 1, stats.BadDates)
	assert.Equal(t, 1, stats.BadTimes)
	assert.Equal(t, 1, stats.BadAges)

	first := records[0]
	assert.Equal(t, "Ahmedabad", first.City)
	assert.Equal(t, "IDENTITY THEFT", first.CrimeDescription)
	assert.Equal(t, "Violent Crime", first.CrimeDomain)
	require.NotNil(t, first.VictimAge)
	assert.Equal(t, 16, *first.VictimAge)
	require.NotNil(t, first.OccurredAt)
	assert.Equal(t, time.Date(2020, time.January, 1, 0, 0, 0, 0, time.UTC), *first.OccurredAt)
	require.NotNil(t, first.HourOfDay)
	assert.Equal(t, 1, *first.HourOfDay)

	second := records[1]
	assert.Equal(t, time.March, second.OccurredAt.Month())
	assert.Equal(t, 14, *second.HourOfDay)

	third := records[2]
	assert.Nil(t, third.VictimAge)
	assert.Nil(t, third.OccurredAt)
	assert.Nil(t, third.HourOfDay)
	assert.Equal(t, 0, third.Year())
}

func TestRead_AmbiguousDateIsDayFirst(t *testing.T) {
	header := strings.SplitN(sample, "\n", 2)[0]
	row := "4,05-03-2021 10:00,05-03-2021 10:00,10:00,Delhi,100,THEFT,30,F,,Other Crime"

	records, _, err := Read(strings.NewReader(header + "\n" + row + "\n"))
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.NotNil(t, records[0].OccurredAt)
	assert.Equal(t, time.Date(2021, time.March, 5, 10, 0, 0, 0, time.UTC), *records[0].OccurredAt)
}

func TestRead_MissingColumnIsFatal(t *testing.T) {
	_, _, err := Read(strings.NewReader("City,Crime Description\nDelhi,Theft\n"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrMissingColumn))
	assert.Contains(t, err.Error(), "Victim Age")
}

func TestRead_EmptyInput(t *testing.T) {
	_, _, err := Read(strings.NewReader(""))
	assert.True(t, errors.Is(err, errors.ErrMissingColumn))
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "crimes.csv")
	require.NoError(t, os.WriteFile(path, []byte(sample), 0o644))

	records, _, err := Load(path)
	require.NoError(t, err)
	assert.Len(t, records, 3)

	_, _, err = Load(filepath.Join(t.TempDir(), "missing.csv"))
	assert.Error(t, err)
}

func TestParseAge(t *testing.T) {
	n, ok := parseAge("42.0")
	assert.True(t, ok)
	assert.Equal(t, 42, n)

	_, ok = parseAge("42.5")
	assert.False(t, ok)
}
