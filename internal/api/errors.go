package api

import (
	"errors"
	"fmt"
	"net/http"
)

// Error ошибка бэкенда с HTTP статусом и кодом из тела ответа.
// Заменяет динамические поля status/code, которые веб-клиент
// навешивал на исключения
type Error struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *Error) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("api: %s (status %d)", e.Message, e.StatusCode)
	}
	return fmt.Sprintf("api: unexpected status %d", e.StatusCode)
}

// IsConflict проверяет что бэкенд отклонил запрос из-за конфликта
// (дата уже занята другим бронированием)
func IsConflict(err error) bool {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == http.StatusConflict || apiErr.Code == "DUPLICATE_DATE"
	}
	return false
}

// IsClientError проверяет что запрос отклонён как некорректный (4xx)
func IsClientError(err error) bool {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode >= 400 && apiErr.StatusCode < 500
	}
	return false
}

// IsServerError проверяет что бэкенд ответил 5xx
func IsServerError(err error) bool {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode >= 500
	}
	return false
}
