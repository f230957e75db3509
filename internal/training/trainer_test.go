package training

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"crimewatch/internal/artifact"
	"crimewatch/internal/domain/incident"
	"crimewatch/internal/domain/modelrun"
	"crimewatch/internal/ml"
	"crimewatch/pkg/errors"
)

type MockRunRepository struct {
	mock.Mock
}

func (m *MockRunRepository) Save(ctx context.Context, run *modelrun.Run) error {
	args := m.Called(ctx, run)
	return args.Error(0)
}

func (m *MockRunRepository) Latest(ctx context.Context, limit int) ([]modelrun.Run, error) {
	args := m.Called(ctx, limit)
	return args.Get(0).([]modelrun.Run), args.Error(1)
}

func record(city, label string, age int, gender string, at time.Time) incident.Record {
	hour := at.Hour()
	return incident.Record{
		City:             city,
		CrimeDescription: label,
		VictimAge:        &age,
		VictimGender:     gender,
		OccurredAt:       &at,
		HourOfDay:        &hour,
	}
}

// fixture returns n rows of label spread over the given cities
func fixture(label string, n int, cities ...string) []incident.Record {
	base := time.Date(2021, time.January, 4, 9, 0, 0, 0, time.UTC)
	out := make([]incident.Record, n)
	for i := range out {
		at := base.Add(time.Duration(i) * 25 * time.Hour)
		out[i] = record(cities[i%len(cities)], label, 20+i%30, []string{"M", "F"}[i%2], at)
	}
	return out
}

// uniform returns n identical rows except for city and label
func uniform(label string, n int, city string) []incident.Record {
	at := time.Date(2022, time.May, 2, 14, 0, 0, 0, time.UTC)
	out := make([]incident.Record, n)
	for i := range out {
		out[i] = record(city, label, 33, "F", at)
	}
	return out
}

func testOptions() Options {
	opts := DefaultOptions()
	opts.Candidates = []int{5, 10}
	opts.Folds = 3
	return opts
}

func TestTrainer_PrunesRareLabels(t *testing.T) {
	var records []incident.Record
	records = append(records, fixture("Theft", 80, "Delhi", "Mumbai")...)
	records = append(records, fixture("Burglary", 60, "Pune")...)
	records = append(records, fixture("Fraud", 10, "Delhi")...)

	store := artifact.NewFileStore(t.TempDir(), artifact.Codec{})
	report, err := NewTrainer(store, nil, testOptions()).Run(context.Background(), records)
	require.NoError(t, err)

	assert.Equal(t, []string{"Burglary", "Theft"}, report.Labels)
	assert.Equal(t, []string{"Fraud"}, report.PrunedLabels)
	assert.Equal(t, 10, report.LabelCounts["Fraud"])
	assert.Equal(t, 140, report.RowsRetained)
	assert.Equal(t, 28, report.TestRows)
	assert.Len(t, report.Candidates, 2)
	assert.Len(t, report.CVScores, 3)
	assert.NotEmpty(t, report.BundleVersion)

	bundle, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, report.BundleVersion, bundle.Manifest.Version)
	assert.Equal(t, []string{"Burglary", "Theft"}, bundle.Encoders.Label.Classes())
	assert.False(t, bundle.Encoders.Label.Contains("Fraud"))
	assert.Equal(t, []string{"Delhi", "Mumbai", "Pune"}, bundle.Encoders.Feature(ml.FieldCity).Classes())
	assert.True(t, bundle.Manifest.Compatible())
	require.NotNil(t, bundle.Manifest.Training)
	assert.Equal(t, report.SelectedTrees, bundle.Manifest.Training.SelectedTrees)
}

func TestTrainer_FirstCandidateWinsTies(t *testing.T) {
	records := append(uniform("Theft", 60, "Delhi"), uniform("Burglary", 60, "Pune")...)

	opts := testOptions()
	opts.Candidates = []int{7, 3}
	opts.Folds = 0

	report, err := NewTrainer(artifact.NewFileStore(t.TempDir(), artifact.Codec{}), nil, opts).
		Run(context.Background(), records)
	require.NoError(t, err)

	// city alone separates the labels, so every candidate scores 1.0
	assert.InDelta(t, 1.0, report.Candidates[0].WeightedF1, 1e-12)
	assert.InDelta(t, 1.0, report.Candidates[1].WeightedF1, 1e-12)
	assert.Equal(t, 7, report.SelectedTrees)
	assert.Empty(t, report.CVScores)
}

func TestTrainer_DegenerateLabelSpace(t *testing.T) {
	records := append(fixture("Theft", 80, "Delhi", "Mumbai"), fixture("Fraud", 10, "Delhi")...)
	store := artifact.NewFileStore(t.TempDir(), artifact.Codec{})

	runs := new(MockRunRepository)
	runs.On("Save", mock.Anything, mock.MatchedBy(func(r *modelrun.Run) bool {
		return r.Status == modelrun.StatusFailed && r.Error != ""
	})).Return(nil).Once()

	_, err := NewTrainer(store, runs, testOptions()).Run(context.Background(), records)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrDegenerateLabelSpace))

	_, err = store.Load(context.Background())
	assert.True(t, errors.Is(err, artifact.ErrNotFound))
	runs.AssertExpectations(t)
}

func TestTrainer_SingleClassWhenAllowed(t *testing.T) {
	records := append(fixture("Theft", 80, "Delhi", "Mumbai"), fixture("Fraud", 10, "Delhi")...)
	store := artifact.NewFileStore(t.TempDir(), artifact.Codec{})

	opts := testOptions()
	opts.AllowSingleClass = true

	runs := new(MockRunRepository)
	runs.On("Save", mock.Anything, mock.MatchedBy(func(r *modelrun.Run) bool {
		return r.Status == modelrun.StatusSuccess && r.NumClasses == 1
	})).Return(nil).Once()

	_, err := NewTrainer(store, runs, opts).Run(context.Background(), records)
	require.NoError(t, err)

	bundle, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"Theft"}, bundle.Encoders.Label.Classes())
	runs.AssertExpectations(t)
}

func TestTrainer_YearWindow(t *testing.T) {
	records := fixture("Theft", 60, "Delhi")
	records = append(records, fixture("Burglary", 60, "Pune")...)

	old := time.Date(2015, time.June, 1, 10, 0, 0, 0, time.UTC)
	for range 5 {
		records = append(records, record("Delhi", "Theft", 30, "M", old))
	}
	undated := fixture("Theft", 1, "Delhi")[0]
	undated.OccurredAt = nil
	records = append(records, undated)

	opts := testOptions()
	opts.Folds = 0
	report, err := NewTrainer(artifact.NewFileStore(t.TempDir(), artifact.Codec{}), nil, opts).
		Run(context.Background(), records)
	require.NoError(t, err)

	assert.Equal(t, 126, report.RowsRead)
	assert.Equal(t, 120, report.RowsInWindow)
	assert.Equal(t, 120, report.RowsComplete)
}

func TestTrainer_EmptyDataset(t *testing.T) {
	_, err := NewTrainer(artifact.NewFileStore(t.TempDir(), artifact.Codec{}), nil, testOptions()).
		Run(context.Background(), nil)
	assert.True(t, errors.Is(err, errors.ErrEmptyDataset))
}

func TestTrainer_InvalidOptions(t *testing.T) {
	opts := testOptions()
	opts.Candidates = nil

	_, err := NewTrainer(artifact.NewFileStore(t.TempDir(), artifact.Codec{}), nil, opts).
		Run(context.Background(), fixture("Theft", 60, "Delhi"))
	assert.True(t, errors.Is(err, errors.ErrInvalidInput))
}
