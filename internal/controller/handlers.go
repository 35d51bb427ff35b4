package controller

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/TANANUNKUB/clip-booking-core/internal/model"
	"github.com/TANANUNKUB/clip-booking-core/internal/service"
	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"go.uber.org/zap"
)

// Handlers содержит зависимости для обработки команд и кнопок
type Handlers struct {
	registry *FlowRegistry
	cache    *service.AvailabilityCache
	logger   *zap.Logger
}

// NewHandlers создаёт обработчики бота
func NewHandlers(registry *FlowRegistry, cache *service.AvailabilityCache, logger *zap.Logger) *Handlers {
	return &Handlers{
		registry: registry,
		cache:    cache,
		logger:   logger,
	}
}

// flowFor возвращает поток чата. Свежесозданному потоку довешивается
// уведомление об авто-отмене по дедлайну
func (h *Handlers) flowFor(ctx context.Context, b *bot.Bot, chatID int64) *service.FlowController {
	flow, created := h.registry.Get(ctx, chatID)
	if created {
		flow.SetOnAutoCancel(func() {
			b.SendMessage(context.Background(), &bot.SendMessageParams{
				ChatID: chatID,
				Text:   "⏰ Время оплаты истекло, бронирование отменено.\nВыберите дату заново: /start",
			})
		})
	}
	return flow
}

// HandleStart обрабатывает команду /start: вход и переход к выбору даты
func (h *Handlers) HandleStart(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.Message == nil || update.Message.From == nil {
		return
	}
	chatID := update.Message.Chat.ID
	flow := h.flowFor(ctx, b, chatID)

	tgUser := update.Message.From
	displayName := strings.TrimSpace(tgUser.FirstName + " " + tgUser.LastName)
	user := &model.User{
		UserID:      strconv.FormatInt(tgUser.ID, 10),
		DisplayName: displayName,
	}

	if err := flow.Login(ctx, user); err != nil {
		h.logger.Error("Failed to log user in", zap.Error(err))
		b.SendMessage(ctx, &bot.SendMessageParams{
			ChatID: chatID,
			Text:   "❌ Не получилось начать бронирование. Попробуйте позже.",
		})
		return
	}

	// Занятые даты подтягиваем по возможности; авторитетная проверка
	// всё равно выполняется при создании брони
	if err := h.cache.Refresh(ctx); err != nil {
		h.logger.Warn("Failed to refresh booked dates", zap.Error(err))
	}

	b.SendMessage(ctx, &bot.SendMessageParams{
		ChatID: chatID,
		Text: fmt.Sprintf(
			"👋 Привет, %s!\n\nЗдесь можно забронировать услугу видеомонтажа: "+
				"выберите свободную дату и внесите депозит.\n",
			displayName),
	})
	h.sendScreen(ctx, b, chatID, flow)
}

// HandleHelp обрабатывает команду /help
func (h *Handlers) HandleHelp(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.Message == nil {
		return
	}

	helpText := "📚 Как это работает:\n\n" +
		"1. /start — выбрать свободную дату\n" +
		"2. Подтвердить бронирование\n" +
		"3. Оплатить депозит по QR (PromptPay) в течение 10 минут\n" +
		"4. Отправить фото слипа прямо в чат\n\n" +
		"Команды:\n" +
		"/mybooking — текущее бронирование\n" +
		"/cancel — отменить бронирование\n" +
		"/help — эта справка"

	b.SendMessage(ctx, &bot.SendMessageParams{
		ChatID: update.Message.Chat.ID,
		Text:   helpText,
	})
}

// HandleMyBooking показывает текущее состояние потока
func (h *Handlers) HandleMyBooking(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.Message == nil {
		return
	}
	chatID := update.Message.Chat.ID
	h.sendScreen(ctx, b, chatID, h.flowFor(ctx, b, chatID))
}

// HandleCancelCommand обрабатывает команду /cancel
func (h *Handlers) HandleCancelCommand(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.Message == nil {
		return
	}
	chatID := update.Message.Chat.ID
	flow := h.flowFor(ctx, b, chatID)

	if err := flow.Cancel(ctx); err != nil {
		b.SendMessage(ctx, &bot.SendMessageParams{
			ChatID: chatID,
			Text:   "Сейчас отменять нечего.",
		})
		return
	}

	b.SendMessage(ctx, &bot.SendMessageParams{
		ChatID: chatID,
		Text:   "✅ Бронирование отменено.",
	})
	h.sendScreen(ctx, b, chatID, flow)
}

// HandleSlipUpload принимает фото или изображение-документ как слип оплаты
func (h *Handlers) HandleSlipUpload(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.Message == nil {
		return
	}
	chatID := update.Message.Chat.ID
	flow := h.flowFor(ctx, b, chatID)

	if flow.View().State != service.StateAwaitingPayment {
		b.SendMessage(ctx, &bot.SendMessageParams{
			ChatID: chatID,
			Text:   "Слип сейчас не нужен. Начните бронирование: /start",
		})
		return
	}

	slip, err := h.downloadSlip(ctx, b, update.Message)
	if err != nil {
		h.logger.Warn("Failed to download slip", zap.Int64("chat_id", chatID), zap.Error(err))
		b.SendMessage(ctx, &bot.SendMessageParams{
			ChatID: chatID,
			Text:   "❌ Не удалось получить файл, отправьте слип ещё раз.",
		})
		return
	}

	b.SendMessage(ctx, &bot.SendMessageParams{
		ChatID: chatID,
		Text:   "🔍 Проверяем слип...",
	})

	if err := flow.SubmitSlip(ctx, slip); err != nil {
		b.SendMessage(ctx, &bot.SendMessageParams{
			ChatID: chatID,
			Text:   "❌ " + service.UserMessage(err),
		})
		return
	}

	h.sendScreen(ctx, b, chatID, flow)
}

// downloadSlip скачивает приложенное изображение через Telegram API
func (h *Handlers) downloadSlip(ctx context.Context, b *bot.Bot, message *models.Message) (service.SlipUpload, error) {
	var (
		fileID      string
		fileName    string
		contentType string
	)

	switch {
	case len(message.Photo) > 0:
		// Берём самый крупный вариант фото
		photo := message.Photo[len(message.Photo)-1]
		fileID = photo.FileID
		fileName = "slip.jpg"
		contentType = "image/jpeg"
	case message.Document != nil:
		fileID = message.Document.FileID
		fileName = message.Document.FileName
		contentType = message.Document.MimeType
	default:
		return service.SlipUpload{}, fmt.Errorf("no attachment in message")
	}

	file, err := b.GetFile(ctx, &bot.GetFileParams{FileID: fileID})
	if err != nil {
		return service.SlipUpload{}, fmt.Errorf("get file: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.FileDownloadLink(file), nil)
	if err != nil {
		return service.SlipUpload{}, fmt.Errorf("create download request: %w", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return service.SlipUpload{}, fmt.Errorf("download file: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return service.SlipUpload{}, fmt.Errorf("download file: status %d", resp.StatusCode)
	}

	// Лишний байт сверх лимита оставляем: валидация размера отклонит файл
	data, err := io.ReadAll(io.LimitReader(resp.Body, service.MaxSlipSize+1))
	if err != nil {
		return service.SlipUpload{}, fmt.Errorf("read file: %w", err)
	}

	return service.SlipUpload{
		FileName:    fileName,
		ContentType: contentType,
		Data:        data,
	}, nil
}
