package queue

import (
	"context"
	"errors"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/hibiken/asynq"
	clientdomain "github.com/smallbiznis/semah/internal/client/domain"
	"github.com/smallbiznis/semah/internal/providers/email"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type mockEnqueuer struct {
	mock.Mock
}

func (m *mockEnqueuer) EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	args := m.Called(ctx, task)
	info, _ := args.Get(0).(*asynq.TaskInfo)
	return info, args.Error(1)
}

type mockClients struct {
	mock.Mock
}

func (m *mockClients) GetByID(ctx context.Context, id snowflake.ID) (clientdomain.Client, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(clientdomain.Client), args.Error(1)
}

func (m *mockClients) Exists(ctx context.Context, id snowflake.ID) (bool, error) {
	args := m.Called(ctx, id)
	return args.Bool(0), args.Error(1)
}

type mockMailer struct {
	mock.Mock
}

func (m *mockMailer) SendBookingConfirmation(ctx context.Context, to string, msg email.BookingConfirmation) error {
	return m.Called(ctx, to, msg).Error(0)
}

func samplePayload() BookingFulfilledPayload {
	return BookingFulfilledPayload{
		BookingID:  "1001",
		ClientID:   "42",
		ProviderID: "7",
		ChatID:     "1002",
		Kind:       "appointment",
		Subject:    "PAID",
		Content:    "Your appointment with id: 1001 and date: 2026-03-10T14:30:00Z has been booked successfully!",
		ViewURL:    "https://app.example.com/myDates/1001",
	}
}

func TestDispatchBookingFulfilled(t *testing.T) {
	enq := &mockEnqueuer{}
	enq.On("EnqueueContext", mock.Anything, mock.MatchedBy(func(task *asynq.Task) bool {
		return task.Type() == TypeBookingFulfilled
	})).Return(&asynq.TaskInfo{ID: "booking:fulfilled:1001", Queue: QueueNotifications}, nil).Once()

	d := NewAsynqDispatcher(enq, zap.NewNop())
	require.NoError(t, d.DispatchBookingFulfilled(context.Background(), samplePayload()))
	enq.AssertExpectations(t)
}

func TestDispatchTreatsTaskIDConflictAsDone(t *testing.T) {
	enq := &mockEnqueuer{}
	enq.On("EnqueueContext", mock.Anything, mock.Anything).Return(nil, asynq.ErrTaskIDConflict).Once()

	d := NewAsynqDispatcher(enq, zap.NewNop())
	assert.NoError(t, d.DispatchBookingFulfilled(context.Background(), samplePayload()))
}

func TestDispatchRejectsInvalidPayload(t *testing.T) {
	d := NewAsynqDispatcher(&mockEnqueuer{}, zap.NewNop())
	err := d.DispatchBookingFulfilled(context.Background(), BookingFulfilledPayload{})
	assert.ErrorIs(t, err, ErrInvalidPayload)
}

func TestTaskRoundTrip(t *testing.T) {
	task, opts, err := NewBookingFulfilledTask(samplePayload())
	require.NoError(t, err)
	assert.Len(t, opts, 4)

	parsed, err := ParseBookingFulfilled(task)
	require.NoError(t, err)
	assert.Equal(t, samplePayload(), parsed)

	_, err = ParseBookingFulfilled(asynq.NewTask(TypeBookingFulfilled, []byte("not json")))
	assert.ErrorIs(t, err, ErrInvalidPayload)
}

func TestHandleBookingFulfilledSendsEmail(t *testing.T) {
	clients := &mockClients{}
	clients.On("GetByID", mock.Anything, snowflake.ID(42)).
		Return(clientdomain.Client{ID: 42, Name: "Sara", Email: "sara@example.com"}, nil)

	mailer := &mockMailer{}
	mailer.On("SendBookingConfirmation", mock.Anything, "sara@example.com", email.BookingConfirmation{
		ClientName: "Sara",
		Content:    samplePayload().Content,
		ViewURL:    "https://app.example.com/myDates/1001",
	}).Return(nil).Once()

	notifier := NewBookingNotifier(NotifierParams{Clients: clients, Mailer: mailer, Log: zap.NewNop()})
	task, _, err := NewBookingFulfilledTask(samplePayload())
	require.NoError(t, err)

	require.NoError(t, notifier.HandleBookingFulfilled(context.Background(), task))
	mailer.AssertExpectations(t)
}

func TestHandleBookingFulfilledSkipsRemovedClient(t *testing.T) {
	clients := &mockClients{}
	clients.On("GetByID", mock.Anything, snowflake.ID(42)).Return(clientdomain.Client{}, clientdomain.ErrNotFound)
	mailer := &mockMailer{}

	notifier := NewBookingNotifier(NotifierParams{Clients: clients, Mailer: mailer, Log: zap.NewNop()})
	task, _, err := NewBookingFulfilledTask(samplePayload())
	require.NoError(t, err)

	require.NoError(t, notifier.HandleBookingFulfilled(context.Background(), task))
	mailer.AssertNotCalled(t, "SendBookingConfirmation", mock.Anything, mock.Anything, mock.Anything)
}

func TestHandleBookingFulfilledWithoutEmailSkipsRetry(t *testing.T) {
	clients := &mockClients{}
	clients.On("GetByID", mock.Anything, snowflake.ID(42)).Return(clientdomain.Client{ID: 42, Name: "Sara"}, nil)
	mailer := &mockMailer{}
	mailer.On("SendBookingConfirmation", mock.Anything, "", mock.Anything).Return(email.ErrNoRecipients).Once()

	notifier := NewBookingNotifier(NotifierParams{Clients: clients, Mailer: mailer, Log: zap.NewNop()})
	task, _, err := NewBookingFulfilledTask(samplePayload())
	require.NoError(t, err)

	err = notifier.HandleBookingFulfilled(context.Background(), task)
	assert.ErrorIs(t, err, asynq.SkipRetry)
	mailer.AssertExpectations(t)
}

func TestHandleBookingFulfilledBadPayloadSkipsRetry(t *testing.T) {
	notifier := NewBookingNotifier(NotifierParams{Clients: &mockClients{}, Mailer: &mockMailer{}, Log: zap.NewNop()})
	err := notifier.HandleBookingFulfilled(context.Background(), asynq.NewTask(TypeBookingFulfilled, []byte("{}")))
	assert.True(t, errors.Is(err, asynq.SkipRetry))
}

func TestNoopDispatcher(t *testing.T) {
	assert.NoError(t, NoopDispatcher{}.DispatchBookingFulfilled(context.Background(), samplePayload()))
}
