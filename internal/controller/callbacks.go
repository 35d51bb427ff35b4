package controller

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/TANANUNKUB/clip-booking-core/internal/model"
	"github.com/TANANUNKUB/clip-booking-core/internal/service"
	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"go.uber.org/zap"
)

// Данные callback-кнопок
const (
	callbackPickDate       = "pick_date:"
	callbackConfirm        = "confirm_booking"
	callbackBack           = "back_to_calendar"
	callbackCancel         = "cancel_booking"
	callbackBookAnother    = "book_another"
	callbackRefreshPayment = "refresh_payment"
	callbackRefreshDates   = "refresh_dates"
)

// HandleCallbackQuery маршрутизирует нажатия inline кнопок
func (h *Handlers) HandleCallbackQuery(ctx context.Context, b *bot.Bot, update *models.Update) {
	query := update.CallbackQuery
	if query == nil || query.Message.Message == nil {
		return
	}
	chatID := query.Message.Message.Chat.ID
	flow := h.flowFor(ctx, b, chatID)

	alert := h.dispatchCallback(ctx, b, chatID, flow, query.Data)

	b.AnswerCallbackQuery(ctx, &bot.AnswerCallbackQueryParams{
		CallbackQueryID: query.ID,
		Text:            alert,
		ShowAlert:       alert != "",
	})
}

// dispatchCallback выполняет действие кнопки. Непустой результат
// показывается пользователю как всплывающее уведомление
func (h *Handlers) dispatchCallback(
	ctx context.Context,
	b *bot.Bot,
	chatID int64,
	flow *service.FlowController,
	data string,
) string {
	switch {
	case strings.HasPrefix(data, callbackPickDate):
		return h.pickDate(ctx, b, chatID, flow, strings.TrimPrefix(data, callbackPickDate))

	case data == callbackConfirm:
		return h.confirmBooking(ctx, b, chatID, flow)

	case data == callbackBack:
		if err := flow.DismissConfirmation(ctx); err != nil {
			h.logger.Warn("Failed to dismiss confirmation", zap.Error(err))
		}
		h.sendScreen(ctx, b, chatID, flow)
		return ""

	case data == callbackCancel:
		if err := flow.Cancel(ctx); err != nil {
			return service.UserMessage(err)
		}
		b.SendMessage(ctx, &bot.SendMessageParams{
			ChatID: chatID,
			Text:   "✅ Бронирование отменено.",
		})
		h.sendScreen(ctx, b, chatID, flow)
		return ""

	case data == callbackBookAnother:
		if err := flow.StartNewBooking(ctx); err != nil {
			return service.UserMessage(err)
		}
		if err := h.cache.Refresh(ctx); err != nil {
			h.logger.Warn("Failed to refresh booked dates", zap.Error(err))
		}
		h.sendScreen(ctx, b, chatID, flow)
		return ""

	case data == callbackRefreshPayment:
		h.sendScreen(ctx, b, chatID, flow)
		return ""

	case data == callbackRefreshDates:
		if err := h.cache.Refresh(ctx); err != nil {
			h.logger.Warn("Failed to refresh booked dates", zap.Error(err))
			return "Не удалось обновить список дат"
		}
		h.sendScreen(ctx, b, chatID, flow)
		return ""

	default:
		h.logger.Warn("Unknown callback data", zap.String("data", data))
		return ""
	}
}

// pickDate обрабатывает выбор даты из календаря
func (h *Handlers) pickDate(
	ctx context.Context,
	b *bot.Bot,
	chatID int64,
	flow *service.FlowController,
	raw string,
) string {
	date, err := time.Parse(model.DateLayout, raw)
	if err != nil {
		h.logger.Warn("Malformed date in callback", zap.String("raw", raw))
		return "Некорректная дата"
	}

	if err := flow.PickDate(ctx, date); err != nil {
		return service.UserMessage(err)
	}
	if err := flow.RequestConfirmation(ctx); err != nil {
		return service.UserMessage(err)
	}

	h.sendScreen(ctx, b, chatID, flow)
	return ""
}

// confirmBooking создаёт бронирование и показывает экран оплаты
func (h *Handlers) confirmBooking(
	ctx context.Context,
	b *bot.Bot,
	chatID int64,
	flow *service.FlowController,
) string {
	err := flow.SubmitBooking(ctx)
	if err == nil {
		h.sendScreen(ctx, b, chatID, flow)
		return ""
	}

	var flowErr *service.FlowError
	if errors.As(err, &flowErr) && flowErr.Kind == service.ErrorKindConflict {
		// Дату успели занять: показываем календарь заново
		b.SendMessage(ctx, &bot.SendMessageParams{
			ChatID: chatID,
			Text:   "⚠️ " + service.UserMessage(err),
		})
		h.sendScreen(ctx, b, chatID, flow)
		return ""
	}
	return service.UserMessage(err)
}
