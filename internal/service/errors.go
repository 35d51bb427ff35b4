package service

import (
	"errors"
	"fmt"
)

// ErrorKind классифицирует ошибки потока бронирования
type ErrorKind string

const (
	ErrorKindValidation ErrorKind = "validation" // Локальная валидация, до сети не дошло
	ErrorKindConflict   ErrorKind = "conflict"   // Дата проиграла гонку другому бронированию
	ErrorKindRejected   ErrorKind = "rejected"   // Бэкенд отклонил данные (нужно исправить и повторить)
	ErrorKindTransient  ErrorKind = "transient"  // Сетевая ошибка или 5xx, можно повторить то же действие
)

// FlowError типизированная ошибка потока бронирования с категорией
// и сообщением для пользователя
type FlowError struct {
	Kind   ErrorKind
	Detail string
	Err    error
}

func (e *FlowError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Detail, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Detail)
}

func (e *FlowError) Unwrap() error {
	return e.Err
}

// ErrInvalidTransition вызов операции вне допустимого состояния.
// Это ошибка программирования, а не восстановимая ситуация
var ErrInvalidTransition = errors.New("invalid state transition")

func validationError(detail string) error {
	return &FlowError{Kind: ErrorKindValidation, Detail: detail}
}

func conflictError(detail string, err error) error {
	return &FlowError{Kind: ErrorKindConflict, Detail: detail, Err: err}
}

func rejectedError(detail string) error {
	return &FlowError{Kind: ErrorKindRejected, Detail: detail}
}

func transientError(detail string, err error) error {
	return &FlowError{Kind: ErrorKindTransient, Detail: detail, Err: err}
}

// KindOf возвращает категорию ошибки потока, или пустую строку
// для прочих ошибок
func KindOf(err error) ErrorKind {
	var flowErr *FlowError
	if errors.As(err, &flowErr) {
		return flowErr.Kind
	}
	return ""
}

// UserMessage возвращает сообщение для пользователя
func UserMessage(err error) string {
	var flowErr *FlowError
	if errors.As(err, &flowErr) {
		return flowErr.Detail
	}
	return "Произошла ошибка, попробуйте ещё раз"
}
