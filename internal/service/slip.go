package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/TANANUNKUB/clip-booking-core/internal/api"
	"github.com/TANANUNKUB/clip-booking-core/internal/model"
	"go.uber.org/zap"
)

// MaxSlipSize максимальный размер файла слипа
const MaxSlipSize = 5 * 1024 * 1024

// SlipUpload файл слипа, выбранный пользователем
type SlipUpload struct {
	FileName    string
	ContentType string
	Data        []byte
}

// SubmitSlip отправляет слип на проверку. Файл валидируется локально
// до любого сетевого вызова; при отказе проверки поток остаётся в
// ожидании оплаты и пользователь может загрузить другой файл
func (c *FlowController) SubmitSlip(ctx context.Context, slip SlipUpload) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateAwaitingPayment {
		return fmt.Errorf("%w: submit slip in state %s", ErrInvalidTransition, c.state)
	}

	if err := validateSlip(slip); err != nil {
		return err
	}

	c.setStateLocked(StateVerifyingSlip)

	req := api.VerifySlipRequest{
		PaymentID:    c.payment.PaymentID,
		UserID:       c.user.UserID,
		DisplayName:  c.user.DisplayName,
		SelectedDate: c.booking.SelectedDate.Format(model.DateLayout),
		Amount:       c.cfg.DepositAmount,
		Slip: api.SlipImage{
			FileName:    slip.FileName,
			ContentType: slip.ContentType,
			Data:        slip.Data,
		},
	}

	verdict, err := c.backend.VerifySlip(ctx, req)
	if err != nil {
		// Отказ и сбой сервера различаем: первый исправляется новым
		// файлом, второй — повтором того же действия
		c.setStateLocked(StateAwaitingPayment)
		if api.IsServerError(err) {
			return transientError("Сервер проверки недоступен, попробуйте ещё раз", err)
		}
		if api.IsClientError(err) {
			return rejectedError("Файл не принят, загрузите корректное фото слипа")
		}
		return transientError("Не удалось проверить слип, попробуйте ещё раз", err)
	}

	if !verdict.Success {
		c.setStateLocked(StateAwaitingPayment)
		c.logger.Info("Slip rejected",
			zap.String("payment_id", c.payment.PaymentID),
			zap.Strings("errors", verdict.Errors))
		return rejectedError(verdictMessage(verdict))
	}

	c.confirmLocked(ctx, "slip")
	return nil
}

// validateSlip локальная проверка файла: только изображения до 5 МБ
func validateSlip(slip SlipUpload) error {
	if len(slip.Data) == 0 {
		return validationError("Сначала выберите файл слипа")
	}
	if !strings.HasPrefix(slip.ContentType, "image/") {
		return validationError("Можно загрузить только изображение")
	}
	if len(slip.Data) > MaxSlipSize {
		return validationError("Размер файла не должен превышать 5MB")
	}
	return nil
}

// verdictMessage собирает сообщение вердикта: структурированный список
// ошибок предпочтительнее общего message
func verdictMessage(verdict *api.VerifySlipResponse) string {
	if len(verdict.Errors) > 0 {
		return "Проверка не пройдена: " + strings.Join(verdict.Errors, ", ")
	}
	if verdict.Message != "" {
		return verdict.Message
	}
	return "Слип не прошёл проверку, загрузите корректное фото"
}
