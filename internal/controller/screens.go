package controller

import (
	"context"
	"fmt"
	"time"

	"github.com/TANANUNKUB/clip-booking-core/internal/model"
	"github.com/TANANUNKUB/clip-booking-core/internal/service"
	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"go.uber.org/zap"
)

// calendarDays задаёт горизонт календаря в днях
const calendarDays = 14

// sendScreen отправляет экран, соответствующий текущему состоянию потока
func (h *Handlers) sendScreen(ctx context.Context, b *bot.Bot, chatID int64, flow *service.FlowController) {
	view := flow.View()

	var params *bot.SendMessageParams
	switch view.State {
	case service.StateUnauthenticated:
		params = &bot.SendMessageParams{
			ChatID: chatID,
			Text:   "Чтобы начать бронирование, отправьте /start",
		}
	case service.StateSelectingDate:
		params = h.calendarScreen(chatID)
	case service.StateAwaitingConfirmation:
		params = confirmationScreen(chatID, view)
	case service.StateAwaitingPayment, service.StateVerifyingSlip:
		params = paymentScreen(chatID, view)
	case service.StateConfirmed:
		params = confirmedScreen(chatID, view)
	default:
		h.logger.Warn("No screen for state", zap.String("state", string(view.State)))
		return
	}

	if _, err := b.SendMessage(ctx, params); err != nil {
		h.logger.Error("Failed to send message",
			zap.Int64("chat_id", chatID),
			zap.Error(err))
	}
}

// calendarScreen строит календарь свободных дат на ближайшие недели
func (h *Handlers) calendarScreen(chatID int64) *bot.SendMessageParams {
	today := model.DateOnly(time.Now())

	var rows [][]models.InlineKeyboardButton
	var row []models.InlineKeyboardButton
	for i := 0; i < calendarDays; i++ {
		day := today.AddDate(0, 0, i)
		if h.cache.Contains(day) {
			continue
		}
		row = append(row, models.InlineKeyboardButton{
			Text:         day.Format("02.01 Mon"),
			CallbackData: callbackPickDate + day.Format(model.DateLayout),
		})
		if len(row) == 3 {
			rows = append(rows, row)
			row = nil
		}
	}
	if len(row) > 0 {
		rows = append(rows, row)
	}
	rows = append(rows, []models.InlineKeyboardButton{
		{Text: "🔄 Обновить", CallbackData: callbackRefreshDates},
	})

	text := "📅 Выберите дату видеомонтажа:"
	if len(rows) == 1 {
		text = "😔 Свободных дат на ближайшие две недели нет.\nПопробуйте обновить список позже."
	}

	return &bot.SendMessageParams{
		ChatID:      chatID,
		Text:        text,
		ReplyMarkup: &models.InlineKeyboardMarkup{InlineKeyboard: rows},
	}
}

// confirmationScreen показывает выбранную дату перед созданием брони
func confirmationScreen(chatID int64, view service.FlowView) *bot.SendMessageParams {
	text := fmt.Sprintf(
		"📋 Подтвердите бронирование:\n\n"+
			"📅 Дата: %s\n"+
			"💰 Депозит: ฿%.2f\n\n"+
			"После подтверждения на оплату даётся 10 минут.",
		view.Booking.SelectedDate.Format("02.01.2006"),
		view.DepositAmount)

	keyboard := &models.InlineKeyboardMarkup{
		InlineKeyboard: [][]models.InlineKeyboardButton{
			{
				{Text: "✅ Подтвердить", CallbackData: callbackConfirm},
				{Text: "◀️ Назад", CallbackData: callbackBack},
			},
		},
	}

	return &bot.SendMessageParams{
		ChatID:      chatID,
		Text:        text,
		ReplyMarkup: keyboard,
	}
}

// paymentScreen показывает QR для оплаты и остаток времени
func paymentScreen(chatID int64, view service.FlowView) *bot.SendMessageParams {
	remaining := view.Remaining.Round(time.Second)
	minutes := int(remaining / time.Minute)
	seconds := int(remaining % time.Minute / time.Second)

	text := fmt.Sprintf(
		"💳 Оплата депозита ฿%.2f\n\n"+
			"📅 Дата: %s\n"+
			"⏳ Осталось: %02d:%02d\n\n",
		view.DepositAmount,
		view.Booking.SelectedDate.Format("02.01.2006"),
		minutes, seconds)

	if view.Payment.QRPayload != "" {
		text += "Отсканируйте PromptPay QR в банковском приложении:\n\n" +
			view.Payment.QRPayload + "\n\n"
	}
	text += "📸 После оплаты отправьте фото слипа прямо в этот чат."

	keyboard := &models.InlineKeyboardMarkup{
		InlineKeyboard: [][]models.InlineKeyboardButton{
			{
				{Text: "🔄 Обновить таймер", CallbackData: callbackRefreshPayment},
				{Text: "❌ Отменить", CallbackData: callbackCancel},
			},
		},
	}

	return &bot.SendMessageParams{
		ChatID:      chatID,
		Text:        text,
		ReplyMarkup: keyboard,
	}
}

// confirmedScreen показывает подтверждённое бронирование
func confirmedScreen(chatID int64, view service.FlowView) *bot.SendMessageParams {
	text := fmt.Sprintf(
		"🎉 Оплата получена, бронирование подтверждено!\n\n"+
			"📅 Дата: %s\n"+
			"🆔 Бронь: %s\n\n"+
			"Ждём ваши материалы в назначенный день.",
		view.Booking.SelectedDate.Format("02.01.2006"),
		view.Booking.BookingID)

	keyboard := &models.InlineKeyboardMarkup{
		InlineKeyboard: [][]models.InlineKeyboardButton{
			{
				{Text: "📅 Забронировать ещё", CallbackData: callbackBookAnother},
			},
		},
	}

	return &bot.SendMessageParams{
		ChatID:      chatID,
		Text:        text,
		ReplyMarkup: keyboard,
	}
}
