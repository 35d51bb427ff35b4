package model

import "time"

// DateLayout формат даты без времени, используется во всех сравнениях
// и при передаче даты на бэкенд
const DateLayout = "2006-01-02"

type PaymentStatus string

const (
	PaymentStatusNone    PaymentStatus = ""        // Платёж ещё не создан
	PaymentStatusPending PaymentStatus = "pending" // Ожидает оплаты
	PaymentStatusSuccess PaymentStatus = "success" // Оплачено (терминальный статус)
	PaymentStatusFailed  PaymentStatus = "failed"  // Оплата не прошла
)

// BookingData локальное состояние текущего бронирования.
// Нулевое значение означает "бронирование не начато".
type BookingData struct {
	SelectedDate time.Time `json:"selected_date"` // Всегда нормализована до даты (без времени); zero = не выбрана
	IsConfirmed  bool      `json:"is_confirmed"`  // true после создания записи на бэкенде (не зависит от оплаты)
	BookingID    string    `json:"booking_id"`    // Пустая строка до успешного создания
	CreatedAt    time.Time `json:"created_at"`    // Время создания по версии сервера, якорь дедлайна оплаты
}

// PaymentData локальное состояние платежа текущего бронирования
type PaymentData struct {
	PaymentID string        `json:"payment_id"`
	Status    PaymentStatus `json:"status"`
	QRPayload string        `json:"qr_payload"`
}

// DateOnly нормализует время до даты в UTC (полночь)
func DateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
