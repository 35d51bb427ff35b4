package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Client HTTP клиент бэкенда бронирований. Бэкенд является источником
// истины только для занятости дат и существования бронирований;
// переходы состояний поток делает сам
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *zap.Logger
}

// NewClient создаёт клиент бэкенда бронирований
func NewClient(baseURL string, logger *zap.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:        10,
				MaxIdleConnsPerHost: 5,
				IdleConnTimeout:     60 * time.Second,
			},
		},
		// Лимит с запасом: поток делает не больше пары запросов в секунду
		limiter: rate.NewLimiter(10, 5),
		logger:  logger,
	}
}

// do выполняет запрос и декодирует JSON ответ в target.
// Не-2xx ответы превращаются в *Error с кодом из тела
func (c *Client) do(ctx context.Context, method, path string, body io.Reader, contentType string, target any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter (%s %s): %w", method, path, err)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("execute request (%s %s): %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &Error{StatusCode: resp.StatusCode, Message: resp.Status}
		// Тело ошибки может отсутствовать или быть не-JSON, это не страшно
		var errBody struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		}
		if decodeErr := json.NewDecoder(resp.Body).Decode(&errBody); decodeErr == nil {
			apiErr.Code = errBody.Code
			if errBody.Message != "" {
				apiErr.Message = errBody.Message
			}
		}
		c.logger.Warn("Booking API request failed",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status", resp.StatusCode),
			zap.String("code", apiErr.Code))
		return apiErr
	}

	if target != nil {
		if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
			return fmt.Errorf("decode response (%s %s): %w", method, path, err)
		}
	}

	return nil
}

// doJSON выполняет запрос с JSON телом
func (c *Client) doJSON(ctx context.Context, method, path string, body any, target any) error {
	var reader io.Reader
	contentType := ""
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request body: %w", err)
		}
		reader = bytes.NewReader(encoded)
		contentType = "application/json"
	}
	return c.do(ctx, method, path, reader, contentType, target)
}

// CreateBooking создаёт бронирование. Возвращает *Error с 409 при
// конфликте даты (проверяется через IsConflict)
func (c *Client) CreateBooking(ctx context.Context, req CreateBookingRequest) (*BookingRecord, error) {
	var record BookingRecord
	if err := c.doJSON(ctx, http.MethodPost, "/create-booking", req, &record); err != nil {
		return nil, err
	}
	return &record, nil
}

// DeleteBooking удаляет бронирование. Удаление несуществующего ID
// бэкенд не считает жёсткой ошибкой
func (c *Client) DeleteBooking(ctx context.Context, bookingID string) (*DeleteBookingResponse, error) {
	var resp DeleteBookingResponse
	if err := c.doJSON(ctx, http.MethodDelete, "/bookings/"+bookingID, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// UpdateBooking частично обновляет бронирование multipart формой
// (так принимает бэкенд)
func (c *Client) UpdateBooking(ctx context.Context, bookingID string, upd UpdateBookingRequest) (*UpdateBookingResponse, error) {
	var buf bytes.Buffer
	form := multipart.NewWriter(&buf)

	fields := map[string]string{
		"user_id":       upd.UserID,
		"display_name":  upd.DisplayName,
		"selected_date": upd.SelectedDate,
		"status":        upd.Status,
		"payment_id":    upd.PaymentID,
	}
	if upd.Amount > 0 {
		fields["amount"] = strconv.Itoa(upd.Amount)
	}
	for name, value := range fields {
		if value == "" {
			continue
		}
		if err := form.WriteField(name, value); err != nil {
			return nil, fmt.Errorf("write form field %s: %w", name, err)
		}
	}
	if err := form.Close(); err != nil {
		return nil, fmt.Errorf("close form: %w", err)
	}

	var resp UpdateBookingResponse
	if err := c.do(ctx, http.MethodPut, "/bookings/"+bookingID, &buf, form.FormDataContentType(), &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ListBookings возвращает все бронирования (для вычисления занятых дат)
func (c *Client) ListBookings(ctx context.Context) ([]BookingRecord, error) {
	var records []BookingRecord
	if err := c.doJSON(ctx, http.MethodGet, "/bookings", nil, &records); err != nil {
		return nil, err
	}
	return records, nil
}

// VerifySlip отправляет слип вместе с контекстом бронирования на проверку
func (c *Client) VerifySlip(ctx context.Context, req VerifySlipRequest) (*VerifySlipResponse, error) {
	var buf bytes.Buffer
	form := multipart.NewWriter(&buf)

	fields := map[string]string{
		"payment_id":    req.PaymentID,
		"user_id":       req.UserID,
		"display_name":  req.DisplayName,
		"selected_date": req.SelectedDate,
		"amount":        strconv.Itoa(req.Amount),
	}
	for name, value := range fields {
		if err := form.WriteField(name, value); err != nil {
			return nil, fmt.Errorf("write form field %s: %w", name, err)
		}
	}

	part, err := form.CreateFormFile("slip_image", req.Slip.FileName)
	if err != nil {
		return nil, fmt.Errorf("create form file: %w", err)
	}
	if _, err := part.Write(req.Slip.Data); err != nil {
		return nil, fmt.Errorf("write slip image: %w", err)
	}
	if err := form.Close(); err != nil {
		return nil, fmt.Errorf("close form: %w", err)
	}

	var resp VerifySlipResponse
	if err := c.do(ctx, http.MethodPost, "/verify-slip-with-validation", &buf, form.FormDataContentType(), &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// GetPaymentStatus возвращает статус платежа (вариант потока с поллингом)
func (c *Client) GetPaymentStatus(ctx context.Context, paymentID string) (*PaymentStatusResponse, error) {
	var resp PaymentStatusResponse
	if err := c.doJSON(ctx, http.MethodGet, "/payment-status/"+paymentID, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
