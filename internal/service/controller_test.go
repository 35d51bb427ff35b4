package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/TANANUNKUB/clip-booking-core/internal/api"
	"github.com/TANANUNKUB/clip-booking-core/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// Mock backend

type MockBookingAPI struct {
	mock.Mock
}

func (m *MockBookingAPI) CreateBooking(ctx context.Context, req api.CreateBookingRequest) (*api.BookingRecord, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*api.BookingRecord), args.Error(1)
}

func (m *MockBookingAPI) DeleteBooking(ctx context.Context, bookingID string) (*api.DeleteBookingResponse, error) {
	args := m.Called(ctx, bookingID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*api.DeleteBookingResponse), args.Error(1)
}

func (m *MockBookingAPI) UpdateBooking(ctx context.Context, bookingID string, upd api.UpdateBookingRequest) (*api.UpdateBookingResponse, error) {
	args := m.Called(ctx, bookingID, upd)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*api.UpdateBookingResponse), args.Error(1)
}

func (m *MockBookingAPI) ListBookings(ctx context.Context) ([]api.BookingRecord, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]api.BookingRecord), args.Error(1)
}

func (m *MockBookingAPI) VerifySlip(ctx context.Context, req api.VerifySlipRequest) (*api.VerifySlipResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*api.VerifySlipResponse), args.Error(1)
}

// Fake clock and in-memory store

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type memoryStore struct {
	mu        sync.Mutex
	snapshots map[string]model.Snapshot
}

func newMemoryStore() *memoryStore {
	return &memoryStore{snapshots: make(map[string]model.Snapshot)}
}

func (s *memoryStore) Get(_ context.Context, key string) (*model.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	snapshot, ok := s.snapshots[key]
	if !ok {
		return nil, nil
	}
	copied := snapshot
	return &copied, nil
}

func (s *memoryStore) Set(_ context.Context, key string, snapshot *model.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshots[key] = *snapshot
	return nil
}

func (s *memoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.snapshots, key)
	return nil
}

// Test fixture

type flowFixture struct {
	flow    *FlowController
	backend *MockBookingAPI
	clock   *fakeClock
	store   *memoryStore
	cache   *AvailabilityCache
}

var testUser = &model.User{UserID: "U123", DisplayName: "Somchai"}

func newFlowFixture(t *testing.T) *flowFixture {
	t.Helper()

	backend := new(MockBookingAPI)
	clock := &fakeClock{now: time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)}
	store := newMemoryStore()
	cache := NewAvailabilityCache(backend, zap.NewNop())

	cfg := FlowConfig{
		DepositAmount:    200,
		PromptPayAccount: "1319900762822",
		EncodePayload: func(account string, amount float64) (string, error) {
			return "QR-PAYLOAD", nil
		},
		// Фоновый цикл выключен, тики дедлайна вызываются вручную
		TickInterval: 0,
	}

	flow := NewFlowController(backend, store, cache, clock, cfg, zap.NewNop())
	return &flowFixture{flow: flow, backend: backend, clock: clock, store: store, cache: cache}
}

// toAwaitingPayment прогоняет поток до ожидания оплаты
func (f *flowFixture) toAwaitingPayment(t *testing.T) {
	t.Helper()
	ctx := context.Background()

	f.backend.On("CreateBooking", mock.Anything, mock.Anything).Return(&api.BookingRecord{
		BookingID: "b1",
		CreatedAt: time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC),
	}, nil).Once()

	require.NoError(t, f.flow.Login(ctx, testUser))
	require.NoError(t, f.flow.PickDate(ctx, time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)))
	require.NoError(t, f.flow.RequestConfirmation(ctx))
	require.NoError(t, f.flow.SubmitBooking(ctx))
	require.Equal(t, StateAwaitingPayment, f.flow.View().State)
}

func TestPickDate_RejectsPastDate(t *testing.T) {
	f := newFlowFixture(t)
	ctx := context.Background()
	require.NoError(t, f.flow.Login(ctx, testUser))

	err := f.flow.PickDate(ctx, time.Date(2025, 3, 9, 0, 0, 0, 0, time.UTC))

	assert.Equal(t, ErrorKindValidation, KindOf(err))
	assert.True(t, f.flow.View().Booking.SelectedDate.IsZero(), "selectedDate must stay unchanged")
}

func TestPickDate_RejectsBookedDate(t *testing.T) {
	f := newFlowFixture(t)
	ctx := context.Background()
	require.NoError(t, f.flow.Login(ctx, testUser))
	f.cache.MarkOccupied(time.Date(2025, 3, 12, 0, 0, 0, 0, time.UTC))

	err := f.flow.PickDate(ctx, time.Date(2025, 3, 12, 0, 0, 0, 0, time.UTC))

	assert.Equal(t, ErrorKindValidation, KindOf(err))
	assert.True(t, f.flow.View().Booking.SelectedDate.IsZero())
}

func TestPickDate_NormalizesToDateOnly(t *testing.T) {
	f := newFlowFixture(t)
	ctx := context.Background()
	require.NoError(t, f.flow.Login(ctx, testUser))

	require.NoError(t, f.flow.PickDate(ctx, time.Date(2025, 3, 15, 18, 45, 12, 0, time.UTC)))

	assert.Equal(t, time.Date(2025, 3, 15, 0, 0, 0, 0, time.UTC), f.flow.View().Booking.SelectedDate)
}

func TestDismissConfirmation_KeepsSelectedDate(t *testing.T) {
	f := newFlowFixture(t)
	ctx := context.Background()
	require.NoError(t, f.flow.Login(ctx, testUser))
	require.NoError(t, f.flow.PickDate(ctx, time.Date(2025, 3, 15, 0, 0, 0, 0, time.UTC)))
	require.NoError(t, f.flow.RequestConfirmation(ctx))

	require.NoError(t, f.flow.DismissConfirmation(ctx))

	view := f.flow.View()
	assert.Equal(t, StateSelectingDate, view.State)
	assert.Equal(t, time.Date(2025, 3, 15, 0, 0, 0, 0, time.UTC), view.Booking.SelectedDate)

	// Из других состояний возврата к календарю нет
	assert.ErrorIs(t, f.flow.DismissConfirmation(ctx), ErrInvalidTransition)
}

func TestSubmitBooking_Success(t *testing.T) {
	f := newFlowFixture(t)
	ctx := context.Background()

	f.backend.On("CreateBooking", mock.Anything, api.CreateBookingRequest{
		UserID:       "U123",
		DisplayName:  "Somchai",
		SelectedDate: "2025-03-10",
		Amount:       200,
		Status:       "pending",
	}).Return(&api.BookingRecord{
		BookingID: "b1",
		CreatedAt: time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC),
	}, nil).Once()

	require.NoError(t, f.flow.Login(ctx, testUser))
	require.NoError(t, f.flow.PickDate(ctx, time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)))
	require.NoError(t, f.flow.RequestConfirmation(ctx))
	require.NoError(t, f.flow.SubmitBooking(ctx))

	view := f.flow.View()
	assert.Equal(t, StateAwaitingPayment, view.State)
	assert.True(t, view.Booking.IsConfirmed)
	assert.Equal(t, "b1", view.Booking.BookingID)
	assert.Equal(t, model.PaymentStatusPending, view.Payment.Status)
	assert.Equal(t, "QR-PAYLOAD", view.Payment.QRPayload)
	assert.NotEmpty(t, view.Payment.PaymentID)
	// Дедлайн = created_at + 10 минут, часы стоят ровно на created_at
	assert.Equal(t, 10*time.Minute, view.Remaining)
	f.backend.AssertExpectations(t)
}

func TestSubmitBooking_ConflictReturnsToSelection(t *testing.T) {
	f := newFlowFixture(t)
	ctx := context.Background()

	f.backend.On("CreateBooking", mock.Anything, mock.Anything).
		Return(nil, &api.Error{StatusCode: 409, Message: "date already booked"}).Once()
	f.backend.On("ListBookings", mock.Anything).
		Return([]api.BookingRecord{{SelectedDate: "2025-03-10", Status: "confirmed"}}, nil).Once()

	require.NoError(t, f.flow.Login(ctx, testUser))
	require.NoError(t, f.flow.PickDate(ctx, time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)))
	require.NoError(t, f.flow.RequestConfirmation(ctx))

	err := f.flow.SubmitBooking(ctx)

	assert.Equal(t, ErrorKindConflict, KindOf(err))
	view := f.flow.View()
	assert.Equal(t, StateSelectingDate, view.State)
	assert.False(t, view.Booking.IsConfirmed)
	// Выбранная дата не затирается, пользователь видит её при повторном выборе
	assert.Equal(t, time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC), view.Booking.SelectedDate)
	// Кэш занятых дат перечитан после конфликта
	assert.True(t, f.cache.Contains(time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)))
	f.backend.AssertExpectations(t)
}

func TestSubmitBooking_TransientErrorKeepsState(t *testing.T) {
	f := newFlowFixture(t)
	ctx := context.Background()

	f.backend.On("CreateBooking", mock.Anything, mock.Anything).
		Return(nil, &api.Error{StatusCode: 503, Message: "backend down"}).Once()

	require.NoError(t, f.flow.Login(ctx, testUser))
	require.NoError(t, f.flow.PickDate(ctx, time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)))
	require.NoError(t, f.flow.RequestConfirmation(ctx))

	err := f.flow.SubmitBooking(ctx)

	assert.Equal(t, ErrorKindTransient, KindOf(err))
	// Состояние не меняется: тот же submit можно повторить
	assert.Equal(t, StateAwaitingConfirmation, f.flow.View().State)
}

func TestSubmitBooking_SecondCallDoesNotCreateTwice(t *testing.T) {
	f := newFlowFixture(t)
	f.toAwaitingPayment(t)

	err := f.flow.SubmitBooking(context.Background())

	assert.ErrorIs(t, err, ErrInvalidTransition)
	f.backend.AssertNumberOfCalls(t, "CreateBooking", 1)
}

func TestDeadlineExpiry_AutoCancelExactlyOnce(t *testing.T) {
	f := newFlowFixture(t)
	f.toAwaitingPayment(t)

	f.backend.On("DeleteBooking", mock.Anything, "b1").
		Return(&api.DeleteBookingResponse{Success: true}, nil).Once()

	notified := 0
	f.flow.SetOnAutoCancel(func() { notified++ })

	f.clock.Advance(10*time.Minute + time.Second)
	f.flow.timer.Tick()
	f.flow.timer.Tick() // Опоздавший повторный тик ничего не делает

	view := f.flow.View()
	assert.Equal(t, StateSelectingDate, view.State)
	assert.Equal(t, model.BookingData{}, view.Booking)
	assert.Equal(t, model.PaymentData{}, view.Payment)
	assert.Equal(t, 1, notified)
	f.backend.AssertNumberOfCalls(t, "DeleteBooking", 1)
}

func TestLateTickAfterPaymentSuccess_DoesNotCancel(t *testing.T) {
	f := newFlowFixture(t)
	f.toAwaitingPayment(t)

	f.backend.On("UpdateBooking", mock.Anything, "b1", mock.Anything).
		Return(&api.UpdateBookingResponse{Success: true}, nil).Once()

	require.NoError(t, f.flow.ConfirmPaymentSuccess(context.Background(), "qr"))

	// Дедлайн прошёл, но успех уже зафиксирован: тик не должен ничего отменить
	f.clock.Advance(time.Hour)
	f.flow.timer.Tick()

	view := f.flow.View()
	assert.Equal(t, StateConfirmed, view.State)
	assert.Equal(t, model.PaymentStatusSuccess, view.Payment.Status)
	f.backend.AssertNotCalled(t, "DeleteBooking", mock.Anything, mock.Anything)
}

func TestConfirmPaymentSuccess_Idempotent(t *testing.T) {
	f := newFlowFixture(t)
	f.toAwaitingPayment(t)
	ctx := context.Background()

	f.backend.On("UpdateBooking", mock.Anything, "b1", mock.Anything).
		Return(&api.UpdateBookingResponse{Success: true}, nil).Once()

	require.NoError(t, f.flow.ConfirmPaymentSuccess(ctx, "qr"))
	require.NoError(t, f.flow.ConfirmPaymentSuccess(ctx, "qr"))

	// Побочный эффект (update + пометка даты) выполнен ровно один раз
	f.backend.AssertNumberOfCalls(t, "UpdateBooking", 1)
	assert.Equal(t, StateConfirmed, f.flow.View().State)
}

func TestCancel_Idempotent(t *testing.T) {
	f := newFlowFixture(t)
	f.toAwaitingPayment(t)
	ctx := context.Background()

	f.backend.On("DeleteBooking", mock.Anything, "b1").
		Return(&api.DeleteBookingResponse{Success: true}, nil).Once()

	require.NoError(t, f.flow.Cancel(ctx))
	require.NoError(t, f.flow.Cancel(ctx))

	view := f.flow.View()
	assert.Equal(t, StateSelectingDate, view.State)
	assert.Equal(t, model.BookingData{}, view.Booking)
	assert.Equal(t, model.PaymentData{}, view.Payment)
	f.backend.AssertNumberOfCalls(t, "DeleteBooking", 1)
}

func TestCancel_DeleteFailureStillResetsLocally(t *testing.T) {
	f := newFlowFixture(t)
	f.toAwaitingPayment(t)

	f.backend.On("DeleteBooking", mock.Anything, "b1").
		Return(nil, &api.Error{StatusCode: 500, Message: "boom"}).Once()

	require.NoError(t, f.flow.Cancel(context.Background()))

	view := f.flow.View()
	assert.Equal(t, StateSelectingDate, view.State)
	assert.Equal(t, model.BookingData{}, view.Booking)
}

func TestStartNewBooking_ResetsToInitialShape(t *testing.T) {
	f := newFlowFixture(t)
	f.toAwaitingPayment(t)
	ctx := context.Background()

	f.backend.On("UpdateBooking", mock.Anything, "b1", mock.Anything).
		Return(&api.UpdateBookingResponse{Success: true}, nil).Once()
	require.NoError(t, f.flow.ConfirmPaymentSuccess(ctx, "slip"))

	require.NoError(t, f.flow.StartNewBooking(ctx))

	view := f.flow.View()
	assert.Equal(t, StateSelectingDate, view.State)
	assert.Equal(t, model.BookingData{}, view.Booking)
	assert.Equal(t, model.PaymentData{}, view.Payment)
	// Авторизация переживает новый поток
	require.NotNil(t, view.User)
	assert.Equal(t, "U123", view.User.UserID)
}

func TestStartNewBooking_OnlyFromConfirmed(t *testing.T) {
	f := newFlowFixture(t)
	require.NoError(t, f.flow.Login(context.Background(), testUser))

	err := f.flow.StartNewBooking(context.Background())

	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestRestore_ResumesCountdownFromPersistedCreatedAt(t *testing.T) {
	f := newFlowFixture(t)
	ctx := context.Background()

	// Срез прерванного потока: бронь создана 4 минуты назад
	require.NoError(t, f.store.Set(ctx, model.SnapshotKey, &model.Snapshot{
		LineUser:        testUser,
		IsAuthenticated: true,
		Booking: model.BookingData{
			SelectedDate: time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC),
			IsConfirmed:  true,
			BookingID:    "b1",
			CreatedAt:    f.clock.Now().Add(-4 * time.Minute),
		},
		Payment: model.PaymentData{PaymentID: "p1", Status: model.PaymentStatusPending},
	}))

	require.NoError(t, f.flow.Restore(ctx))

	view := f.flow.View()
	assert.Equal(t, StateAwaitingPayment, view.State)
	// Отсчёт продолжается, а не начинается заново
	assert.Equal(t, 6*time.Minute, view.Remaining)
}

func TestRestore_ExpiredSnapshotCancelsOnFirstTick(t *testing.T) {
	f := newFlowFixture(t)
	ctx := context.Background()

	require.NoError(t, f.store.Set(ctx, model.SnapshotKey, &model.Snapshot{
		LineUser:        testUser,
		IsAuthenticated: true,
		Booking: model.BookingData{
			SelectedDate: time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC),
			IsConfirmed:  true,
			BookingID:    "b1",
			CreatedAt:    f.clock.Now().Add(-30 * time.Minute),
		},
		Payment: model.PaymentData{PaymentID: "p1", Status: model.PaymentStatusPending},
	}))
	f.backend.On("DeleteBooking", mock.Anything, "b1").
		Return(&api.DeleteBookingResponse{Success: true}, nil).Once()

	require.NoError(t, f.flow.Restore(ctx))
	f.flow.timer.Tick()

	assert.Equal(t, StateSelectingDate, f.flow.View().State)
	f.backend.AssertExpectations(t)
}

func TestRestore_ConfirmedSnapshot(t *testing.T) {
	f := newFlowFixture(t)
	ctx := context.Background()

	require.NoError(t, f.store.Set(ctx, model.SnapshotKey, &model.Snapshot{
		LineUser:        testUser,
		IsAuthenticated: true,
		Booking: model.BookingData{
			SelectedDate: time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC),
			IsConfirmed:  true,
			BookingID:    "b1",
			CreatedAt:    f.clock.Now(),
		},
		Payment: model.PaymentData{PaymentID: "p1", Status: model.PaymentStatusSuccess},
	}))

	require.NoError(t, f.flow.Restore(ctx))

	assert.Equal(t, StateConfirmed, f.flow.View().State)
}

func TestLogout_ClearsSessionAndFlow(t *testing.T) {
	f := newFlowFixture(t)
	f.toAwaitingPayment(t)

	require.NoError(t, f.flow.Logout(context.Background()))

	view := f.flow.View()
	assert.Equal(t, StateUnauthenticated, view.State)
	assert.Nil(t, view.User)
	assert.Equal(t, model.BookingData{}, view.Booking)

	// Срез удалён: после рестарта поток начнётся с чистого листа
	snapshot, err := f.store.Get(context.Background(), model.SnapshotKey)
	require.NoError(t, err)
	assert.Nil(t, snapshot)
}
