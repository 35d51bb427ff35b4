package api

import "time"

// BookingRecord запись бронирования на бэкенде
type BookingRecord struct {
	BookingID    string    `json:"booking_id"`
	UserID       string    `json:"user_id"`
	DisplayName  string    `json:"display_name"`
	SelectedDate string    `json:"selected_date"` // YYYY-MM-DD
	Amount       int       `json:"amount"`
	Status       string    `json:"status"` // pending | confirmed | cancelled
	CreatedAt    time.Time `json:"created_at"`
}

// CreateBookingRequest запрос на создание бронирования
type CreateBookingRequest struct {
	UserID       string `json:"user_id"`
	DisplayName  string `json:"display_name"`
	SelectedDate string `json:"selected_date"` // YYYY-MM-DD
	Amount       int    `json:"amount"`
	Status       string `json:"status"`
}

// DeleteBookingResponse ответ на удаление бронирования
type DeleteBookingResponse struct {
	Success   bool   `json:"success"`
	Message   string `json:"message"`
	BookingID string `json:"booking_id"`
}

// UpdateBookingRequest частичное обновление бронирования.
// Пустые поля не передаются (бэкенд принимает multipart form)
type UpdateBookingRequest struct {
	UserID       string
	DisplayName  string
	SelectedDate string
	Amount       int
	Status       string
	PaymentID    string
}

// UpdateBookingResponse ответ на обновление бронирования
type UpdateBookingResponse struct {
	Success     bool           `json:"success"`
	Message     string         `json:"message"`
	BookingID   string         `json:"booking_id"`
	UpdatedData map[string]any `json:"updated_data"`
}

// SlipImage загруженное изображение слипа
type SlipImage struct {
	FileName    string
	ContentType string
	Data        []byte
}

// VerifySlipRequest запрос на проверку слипа. Контекст бронирования
// передаётся вместе с изображением одной multipart формой
type VerifySlipRequest struct {
	PaymentID    string
	UserID       string
	DisplayName  string
	SelectedDate string // YYYY-MM-DD
	Amount       int
	Slip         SlipImage
}

// VerifySlipResponse вердикт проверки слипа
type VerifySlipResponse struct {
	Success    bool     `json:"success"`
	Message    string   `json:"message"`
	StatusCode int      `json:"status_code"`
	Errors     []string `json:"errors,omitempty"`
}

// PaymentStatusResponse статус платежа (используется только в варианте
// потока с поллингом QR-оплаты)
type PaymentStatusResponse struct {
	PaymentID string     `json:"payment_id"`
	Status    string     `json:"status"` // pending | success | failed
	Amount    int        `json:"amount"`
	PaidAt    *time.Time `json:"paidAt,omitempty"`
}
