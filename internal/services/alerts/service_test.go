package alerts

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"crimewatch/internal/domain/incident"
	"crimewatch/internal/domain/report"
	"crimewatch/internal/domain/subscriber"
	"crimewatch/pkg/errors"
	"crimewatch/pkg/logger"
)

type MockSubscriberRepository struct {
	mock.Mock
}

func (m *MockSubscriberRepository) Create(ctx context.Context, s *subscriber.Subscriber) error {
	return m.Called(ctx, s).Error(0)
}

func (m *MockSubscriberRepository) GetByID(ctx context.Context, id uuid.UUID) (*subscriber.Subscriber, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*subscriber.Subscriber), args.Error(1)
}

func (m *MockSubscriberRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	args := m.Called(ctx, email)
	return args.Bool(0), args.Error(1)
}

func (m *MockSubscriberRepository) ExistsByPhone(ctx context.Context, phone string) (bool, error) {
	args := m.Called(ctx, phone)
	return args.Bool(0), args.Error(1)
}

func (m *MockSubscriberRepository) ListActiveByCity(ctx context.Context, city string) ([]*subscriber.Subscriber, error) {
	args := m.Called(ctx, city)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*subscriber.Subscriber), args.Error(1)
}

func (m *MockSubscriberRepository) MarkNotified(ctx context.Context, ids []uuid.UUID, at time.Time) error {
	return m.Called(ctx, ids, at).Error(0)
}

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

type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) Notify(ctx context.Context, a Alert) error {
	return m.Called(ctx, a).Error(0)
}

func request() SubscribeRequest {
	return SubscribeRequest{
		Name:  "Asha",
		Phone: "98765 43210",
		Email: " Asha@Example.in ",
		City:  "Delhi",
	}
}

func TestSubscribe_NormalizesAndDefaults(t *testing.T) {
	subs := new(MockSubscriberRepository)
	svc := NewService(subs, nil, nil, "IN", logger.Nop())

	subs.On("ExistsByEmail", mock.Anything, "asha@example.in").Return(false, nil)
	subs.On("ExistsByPhone", mock.Anything, "+919876543210").Return(false, nil)
	subs.On("Create", mock.Anything, mock.AnythingOfType("*subscriber.Subscriber")).Return(nil)

	sub, err := svc.Subscribe(context.Background(), request())
	require.NoError(t, err)

	assert.Equal(t, "+919876543210", sub.Phone)
	assert.Equal(t, "asha@example.in", sub.Email)
	assert.True(t, sub.IsActive)
	assert.True(t, sub.NotifyEmail)
	assert.False(t, sub.NotifySMS)
	assert.True(t, sub.NotifyHighRisk)
	assert.True(t, sub.NotifyMediumRisk)
	assert.False(t, sub.NotifyLowRisk)
	assert.NotEqual(t, uuid.Nil, sub.ID)
	subs.AssertExpectations(t)
}

func TestSubscribe_ExplicitPreferences(t *testing.T) {
	subs := new(MockSubscriberRepository)
	svc := NewService(subs, nil, nil, "IN", logger.Nop())
	subs.On("ExistsByEmail", mock.Anything, mock.Anything).Return(false, nil)
	subs.On("ExistsByPhone", mock.Anything, mock.Anything).Return(false, nil)
	subs.On("Create", mock.Anything, mock.Anything).Return(nil)

	yes, no := true, false
	req := request()
	req.NotifySMS = &yes
	req.NotifyEmail = &no
	req.NotifyLowRisk = &yes

	sub, err := svc.Subscribe(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, sub.NotifySMS)
	assert.False(t, sub.NotifyEmail)
	assert.True(t, sub.NotifyLowRisk)
}

func TestSubscribe_Duplicates(t *testing.T) {
	t.Run("email", func(t *testing.T) {
		subs := new(MockSubscriberRepository)
		subs.On("ExistsByEmail", mock.Anything, mock.Anything).Return(true, nil)
		svc := NewService(subs, nil, nil, "IN", logger.Nop())

		_, err := svc.Subscribe(context.Background(), request())
		assert.ErrorIs(t, err, errors.ErrAlreadyExists)
		assert.Contains(t, err.Error(), "email")
	})

	t.Run("phone", func(t *testing.T) {
		subs := new(MockSubscriberRepository)
		subs.On("ExistsByEmail", mock.Anything, mock.Anything).Return(false, nil)
		subs.On("ExistsByPhone", mock.Anything, "+919876543210").Return(true, nil)
		svc := NewService(subs, nil, nil, "IN", logger.Nop())

		_, err := svc.Subscribe(context.Background(), request())
		assert.ErrorIs(t, err, errors.ErrAlreadyExists)
		assert.Contains(t, err.Error(), "phone")
	})
}

func TestSubscribe_InvalidInput(t *testing.T) {
	subs := new(MockSubscriberRepository)
	svc := NewService(subs, nil, nil, "IN", logger.Nop())

	cases := map[string]func(*SubscribeRequest){
		"email": func(r *SubscribeRequest) { r.Email = "not-an-email" },
		"phone": func(r *SubscribeRequest) { r.Phone = "12" },
		"city":  func(r *SubscribeRequest) { r.City = "" },
	}
	for field, mutate := range cases {
		t.Run(field, func(t *testing.T) {
			req := request()
			mutate(&req)

			_, err := svc.Subscribe(context.Background(), req)
			require.ErrorIs(t, err, errors.ErrInvalidInput)
			var ve *errors.ValidationError
			require.True(t, errors.As(err, &ve))
			assert.Equal(t, field, ve.Field)
		})
	}
	subs.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestDispatch(t *testing.T) {
	subs := new(MockSubscriberRepository)
	reports := new(MockReportRepository)
	notifier := new(MockNotifier)
	svc := NewService(subs, reports, notifier, "IN", logger.Nop())

	both := &subscriber.Subscriber{ID: uuid.New(), Email: "a@x.in", Phone: "+919876543210", NotifyEmail: true, NotifySMS: true, NotifyMediumRisk: true}
	lowOnly := &subscriber.Subscriber{ID: uuid.New(), Email: "b@x.in", NotifyEmail: true, NotifyLowRisk: true}
	failing := &subscriber.Subscriber{ID: uuid.New(), Email: "c@x.in", NotifyEmail: true, NotifyMediumRisk: true}

	reports.On("CountByCitySince", mock.Anything, "Delhi", mock.Anything).Return(45, nil)
	subs.On("ListActiveByCity", mock.Anything, "Delhi").Return([]*subscriber.Subscriber{both, lowOnly, failing}, nil)
	notifier.On("Notify", mock.Anything, mock.MatchedBy(func(a Alert) bool { return a.SubscriberID == both.ID })).Return(nil)
	notifier.On("Notify", mock.Anything, mock.MatchedBy(func(a Alert) bool { return a.SubscriberID == failing.ID })).Return(errors.New("smtp down"))
	subs.On("MarkNotified", mock.Anything, []uuid.UUID{both.ID}, mock.Anything).Return(nil)

	ev := report.Submitted{ReportID: uuid.New(), City: "Delhi", CrimeType: "Theft", Location: "CP"}
	sent, err := svc.Dispatch(context.Background(), ev)
	require.NoError(t, err)
	assert.Equal(t, 2, sent)

	var channels []string
	for _, call := range notifier.Calls {
		a := call.Arguments.Get(1).(Alert)
		if a.SubscriberID == both.ID {
			channels = append(channels, a.Channel)
			assert.Equal(t, incident.RiskMedium, a.Risk)
			assert.Equal(t, "Crime Alert: Theft reported in Delhi", a.Subject)
		}
	}
	assert.Equal(t, []string{"email", "sms"}, channels)
	subs.AssertExpectations(t)
}

func TestDispatch_CountError(t *testing.T) {
	reports := new(MockReportRepository)
	reports.On("CountByCitySince", mock.Anything, mock.Anything, mock.Anything).Return(0, errors.New("db down"))
	svc := NewService(new(MockSubscriberRepository), reports, new(MockNotifier), "IN", logger.Nop())

	_, err := svc.Dispatch(context.Background(), report.Submitted{City: "Delhi"})
	assert.Error(t, err)
}

func TestDirectPublisher_RejectsUnknownEvent(t *testing.T) {
	p := NewDirectPublisher(nil, logger.Nop())
	assert.Error(t, p.Publish(context.Background(), "t", "k", "not an event"))
}
