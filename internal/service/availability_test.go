package service

import (
	"context"
	"testing"
	"time"

	"github.com/TANANUNKUB/clip-booking-core/internal/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestAvailabilityCache_RefreshReplacesWholesale(t *testing.T) {
	backend := new(MockBookingAPI)
	cache := NewAvailabilityCache(backend, zap.NewNop())
	ctx := context.Background()

	backend.On("ListBookings", mock.Anything).Return([]api.BookingRecord{
		{SelectedDate: "2025-03-10", Status: "confirmed"},
		{SelectedDate: "2025-03-11", Status: "pending"},
		{SelectedDate: "2025-03-12", Status: "cancelled"},
	}, nil).Once()

	require.NoError(t, cache.Refresh(ctx))

	assert.True(t, cache.Contains(time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)))
	assert.True(t, cache.Contains(time.Date(2025, 3, 11, 0, 0, 0, 0, time.UTC)))
	// Отменённая бронь дату не занимает
	assert.False(t, cache.Contains(time.Date(2025, 3, 12, 0, 0, 0, 0, time.UTC)))

	// Повторный Refresh заменяет кэш целиком, старые записи не протекают
	backend.On("ListBookings", mock.Anything).Return([]api.BookingRecord{
		{SelectedDate: "2025-03-20", Status: "confirmed"},
	}, nil).Once()

	require.NoError(t, cache.Refresh(ctx))

	assert.False(t, cache.Contains(time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)))
	assert.True(t, cache.Contains(time.Date(2025, 3, 20, 0, 0, 0, 0, time.UTC)))
}

func TestAvailabilityCache_RefreshFailureKeepsOldCache(t *testing.T) {
	backend := new(MockBookingAPI)
	cache := NewAvailabilityCache(backend, zap.NewNop())

	cache.MarkOccupied(time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC))
	backend.On("ListBookings", mock.Anything).
		Return(nil, &api.Error{StatusCode: 500, Message: "boom"}).Once()

	err := cache.Refresh(context.Background())

	assert.Error(t, err)
	assert.True(t, cache.Contains(time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)))
}

func TestAvailabilityCache_MarkOccupiedAndDates(t *testing.T) {
	backend := new(MockBookingAPI)
	cache := NewAvailabilityCache(backend, zap.NewNop())

	cache.MarkOccupied(time.Date(2025, 3, 11, 15, 30, 0, 0, time.UTC))
	cache.MarkOccupied(time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC))

	// Время отбрасывается при пометке
	assert.True(t, cache.Contains(time.Date(2025, 3, 11, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, []string{"2025-03-10", "2025-03-11"}, cache.Dates())
}
