package reporting

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"crimewatch/internal/adapters/kafka"
	"crimewatch/internal/domain/report"
	"crimewatch/pkg/errors"
	"crimewatch/pkg/logger"
)

type MockReportRepository struct {
	mock.Mock
}

func (m *MockReportRepository) Create(ctx context.Context, r *report.Report) error {
	return m.Called(ctx, r).Error(0)
}

func (m *MockReportRepository) GetByID(ctx context.Context, id uuid.UUID) (*report.Report, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*report.Report), args.Error(1)
}

func (m *MockReportRepository) CountByCitySince(ctx context.Context, city string, since time.Time) (int, error) {
	args := m.Called(ctx, city, since)
	return args.Int(0), args.Error(1)
}

func (m *MockReportRepository) TopCities(ctx context.Context, limit int) ([]report.CityCount, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]report.CityCount), args.Error(1)
}

type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(ctx context.Context, topic, key string, event interface{}) error {
	return m.Called(ctx, topic, key, event).Error(0)
}

func validReport() *report.Report {
	return &report.Report{
		City:        " Delhi ",
		CrimeType:   "Theft",
		Date:        "2024-03-04",
		Time:        "21:15",
		Location:    "Connaught Place",
		Description: "Phone snatched near metro exit",
	}
}

func TestSubmit_StoresAndPublishes(t *testing.T) {
	repo := new(MockReportRepository)
	pub := new(MockPublisher)
	svc := NewService(repo, pub, logger.Nop())

	repo.On("Create", mock.Anything, mock.AnythingOfType("*report.Report")).Return(nil)
	pub.On("Publish", mock.Anything, kafka.TopicReportSubmitted, "Delhi", mock.AnythingOfType("report.Submitted")).Return(nil)

	r := validReport()
	require.NoError(t, svc.Submit(context.Background(), r))

	assert.NotEqual(t, uuid.Nil, r.ID)
	assert.Equal(t, "Delhi", r.City)
	assert.False(t, r.CreatedAt.IsZero())

	ev := pub.Calls[0].Arguments.Get(3).(report.Submitted)
	assert.Equal(t, r.ID, ev.ReportID)
	repo.AssertExpectations(t)
	pub.AssertExpectations(t)
}

func TestSubmit_PublishFailureDoesNotFail(t *testing.T) {
	repo := new(MockReportRepository)
	pub := new(MockPublisher)
	svc := NewService(repo, pub, logger.Nop())

	repo.On("Create", mock.Anything, mock.Anything).Return(nil)
	pub.On("Publish", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(errors.New("broker down"))

	assert.NoError(t, svc.Submit(context.Background(), validReport()))
}

func TestSubmit_ValidationError(t *testing.T) {
	repo := new(MockReportRepository)
	svc := NewService(repo, nil, logger.Nop())

	cases := map[string]func(*report.Report){
		"city":        func(r *report.Report) { r.City = "   " },
		"date":        func(r *report.Report) { r.Date = "04/03/2024" },
		"time":        func(r *report.Report) { r.Time = "9pm" },
		"victim_age":  func(r *report.Report) { age := -1; r.VictimAge = &age },
		"description": func(r *report.Report) { r.Description = "" },
	}
	for field, mutate := range cases {
		t.Run(field, func(t *testing.T) {
			r := validReport()
			mutate(r)

			err := svc.Submit(context.Background(), r)
			require.ErrorIs(t, err, errors.ErrInvalidInput)
			var ve *errors.ValidationError
			require.True(t, errors.As(err, &ve))
			assert.Equal(t, field, ve.Field)
		})
	}
	repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestSubmit_GenderNormalized(t *testing.T) {
	repo := new(MockReportRepository)
	repo.On("Create", mock.Anything, mock.Anything).Return(nil)
	svc := NewService(repo, nil, logger.Nop())

	r := validReport()
	r.VictimGender = " f"
	require.NoError(t, svc.Submit(context.Background(), r))
	assert.Equal(t, "F", r.VictimGender)
}

func TestSubmit_StoreError(t *testing.T) {
	repo := new(MockReportRepository)
	pub := new(MockPublisher)
	repo.On("Create", mock.Anything, mock.Anything).Return(errors.New("connection reset"))
	svc := NewService(repo, pub, logger.Nop())

	assert.Error(t, svc.Submit(context.Background(), validReport()))
	pub.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestGet_NotFound(t *testing.T) {
	repo := new(MockReportRepository)
	id := uuid.New()
	repo.On("GetByID", mock.Anything, id).Return(nil, errors.Wrap(errors.ErrNotFound, "report not found"))
	svc := NewService(repo, nil, logger.Nop())

	_, err := svc.Get(context.Background(), id)
	assert.ErrorIs(t, err, errors.ErrNotFound)
}

func TestTopCities(t *testing.T) {
	cities := []report.CityCount{{City: "Delhi", Count: 7}, {City: "Mumbai", Count: 3}}

	tests := []struct {
		name      string
		requested int
		want      int
	}{
		{"default", 0, TopCitiesLimit},
		{"explicit", 5, 5},
		{"capped", 1000, 100},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(MockReportRepository)
			repo.On("TopCities", mock.Anything, tt.want).Return(cities, nil)

			got, err := NewService(repo, nil, logger.Nop()).TopCities(context.Background(), tt.requested)
			require.NoError(t, err)
			assert.Equal(t, cities, got)
			repo.AssertExpectations(t)
		})
	}
}

func TestTopCities_RepositoryError(t *testing.T) {
	repo := new(MockReportRepository)
	repo.On("TopCities", mock.Anything, TopCitiesLimit).Return(nil, errors.ErrUnavailable)

	_, err := NewService(repo, nil, logger.Nop()).TopCities(context.Background(), 0)
	assert.ErrorIs(t, err, errors.ErrUnavailable)
}
