package postgres

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crimewatch/internal/domain/report"
	"crimewatch/internal/domain/subscriber"
	"crimewatch/internal/testsupport"
	"crimewatch/pkg/errors"
)

func migrated(t *testing.T) *testsupport.PostgresTestHelper {
	t.Helper()
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
	helper := testsupport.NewPostgresTestHelper(t)
	require.NoError(t, Migrate(context.Background(), helper.Tx()))
	return helper
}

func TestReportRepository(t *testing.T) {
	helper := migrated(t)
	repo := NewReportRepository(helper.Tx())
	ctx := context.Background()

	age := 24
	rep := &report.Report{
		ID:           uuid.New(),
		City:         "Delhi",
		CrimeType:    "Theft",
		Date:         "2024-03-04",
		Time:         "21:15",
		Location:     "Connaught Place",
		Description:  "Phone snatched",
		VictimAge:    &age,
		VictimGender: "F",
		CreatedAt:    time.Now().UTC().Truncate(time.Microsecond),
	}
	require.NoError(t, repo.Create(ctx, rep))

	got, err := repo.GetByID(ctx, rep.ID)
	require.NoError(t, err)
	assert.Equal(t, rep.City, got.City)
	assert.Equal(t, rep.Date, got.Date)
	require.NotNil(t, got.VictimAge)
	assert.Equal(t, 24, *got.VictimAge)
	assert.True(t, rep.CreatedAt.Equal(got.CreatedAt))

	n, err := repo.CountByCitySince(ctx, "Delhi", rep.CreatedAt.Add(-time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = repo.GetByID(ctx, uuid.New())
	assert.ErrorIs(t, err, errors.ErrNotFound)
}

func TestReportRepository_TopCities(t *testing.T) {
	helper := migrated(t)
	repo := NewReportRepository(helper.Tx())
	ctx := context.Background()

	suffix := uuid.NewString()[:8]
	busy, quiet, tied := "Busy-"+suffix, "Quiet-"+suffix, "Aquiet-"+suffix
	for city, n := range map[string]int{busy: 3, quiet: 1, tied: 1} {
		for range n {
			require.NoError(t, repo.Create(ctx, &report.Report{
				ID:          uuid.New(),
				City:        city,
				CrimeType:   "Theft",
				Date:        "2024-03-04",
				Time:        "21:15",
				Location:    "Main road",
				Description: "Bag snatched",
				CreatedAt:   time.Now().UTC(),
			}))
		}
	}

	all, err := repo.TopCities(ctx, 10000)
	require.NoError(t, err)

	var ours []report.CityCount
	for _, c := range all {
		if strings.HasSuffix(c.City, suffix) {
			ours = append(ours, c)
		}
	}
	assert.Equal(t, []report.CityCount{{City: busy, Count: 3}, {City: tied, Count: 1}, {City: quiet, Count: 1}}, ours)

	one, err := repo.TopCities(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, one, 1)
}

func newSubscriber(email, phone, city string) *subscriber.Subscriber {
	return &subscriber.Subscriber{
		ID:             uuid.New(),
		Name:           "Asha",
		Email:          email,
		Phone:          phone,
		City:           city,
		IsActive:       true,
		NotifyEmail:    true,
		NotifyHighRisk: true,
		CreatedAt:      time.Now().UTC(),
	}
}

func TestSubscriberRepository(t *testing.T) {
	helper := migrated(t)
	repo := NewSubscriberRepository(helper.Tx())
	ctx := context.Background()

	first := newSubscriber("asha@example.in", "+919812345678", "Delhi")
	require.NoError(t, repo.Create(ctx, first))
	require.NoError(t, repo.Create(ctx, newSubscriber("ravi@example.in", "+919812345679", "Mumbai")))

	exists, err := repo.ExistsByEmail(ctx, "asha@example.in")
	require.NoError(t, err)
	assert.True(t, exists)
	exists, err = repo.ExistsByPhone(ctx, "+910000000000")
	require.NoError(t, err)
	assert.False(t, exists)

	list, err := repo.ListActiveByCity(ctx, "delhi")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, first.ID, list[0].ID)

	now := time.Now().UTC().Truncate(time.Microsecond)
	require.NoError(t, repo.MarkNotified(ctx, []uuid.UUID{first.ID}, now))
	got, err := repo.GetByID(ctx, first.ID)
	require.NoError(t, err)
	require.NotNil(t, got.LastNotified)
	assert.True(t, now.Equal(*got.LastNotified))
}

func TestSubscriberRepository_DuplicateEmail(t *testing.T) {
	helper := migrated(t)
	repo := NewSubscriberRepository(helper.Tx())
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, newSubscriber("dup@example.in", "+919800000001", "Pune")))
	err := repo.Create(ctx, newSubscriber("dup@example.in", "+919800000002", "Pune"))
	assert.ErrorIs(t, err, errors.ErrAlreadyExists)
}
