package service

import (
	"context"
	"time"

	"github.com/TANANUNKUB/clip-booking-core/internal/api"
	"github.com/TANANUNKUB/clip-booking-core/internal/model"
)

// BookingAPI операции бэкенда бронирований, которые использует поток.
// Реализуется api.Client, в тестах подменяется моком
type BookingAPI interface {
	CreateBooking(ctx context.Context, req api.CreateBookingRequest) (*api.BookingRecord, error)
	DeleteBooking(ctx context.Context, bookingID string) (*api.DeleteBookingResponse, error)
	UpdateBooking(ctx context.Context, bookingID string, upd api.UpdateBookingRequest) (*api.UpdateBookingResponse, error)
	ListBookings(ctx context.Context) ([]api.BookingRecord, error)
	VerifySlip(ctx context.Context, req api.VerifySlipRequest) (*api.VerifySlipResponse, error)
}

// SnapshotStore durable хранилище срезов состояния потока
type SnapshotStore interface {
	Get(ctx context.Context, key string) (*model.Snapshot, error)
	Set(ctx context.Context, key string, snapshot *model.Snapshot) error
	Delete(ctx context.Context, key string) error
}

// Clock источник текущего времени. Подменяется в тестах для
// детерминированной проверки дедлайна
type Clock interface {
	Now() time.Time
}

// SystemClock системные часы
type SystemClock struct{}

func (SystemClock) Now() time.Time {
	return time.Now()
}
