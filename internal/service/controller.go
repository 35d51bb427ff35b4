package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/TANANUNKUB/clip-booking-core/internal/api"
	"github.com/TANANUNKUB/clip-booking-core/internal/model"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// FlowConfig параметры потока бронирования
type FlowConfig struct {
	StorageKey       string // Ключ среза в persistent store
	DepositAmount    int    // Депозит в батах
	PromptPayAccount string // Получатель платежа (телефон или национальный ID)

	// EncodePayload чистая функция кодирования платёжной нагрузки QR
	EncodePayload func(account string, amount float64) (string, error)

	// TickInterval период тиков таймера дедлайна; <= 0 отключает
	// фоновый цикл (ручные тики в тестах)
	TickInterval time.Duration
}

// FlowView копия состояния потока для отображения
type FlowView struct {
	State         FlowState
	User          *model.User
	Booking       model.BookingData
	Payment       model.PaymentData
	DepositAmount float64
	Remaining     time.Duration
	Expired       bool
}

// FlowController машина состояний бронирования. Единственный владелец
// сессии, брони, платежа и кэша занятых дат: все мутации идут через него
// и сериализуются одним мьютексом. После каждой мутации срез состояния
// записывается в store, чтобы прерванный поток можно было продолжить
type FlowController struct {
	backend BookingAPI
	store   SnapshotStore
	cache   *AvailabilityCache
	timer   *DeadlineTimer
	clock   Clock
	logger  *zap.Logger
	cfg     FlowConfig

	mu           sync.Mutex
	state        FlowState
	user         *model.User
	booking      model.BookingData
	payment      model.PaymentData
	onAutoCancel func()
}

// NewFlowController создаёт поток в состоянии Unauthenticated.
// Прерванный поток восстанавливается отдельным вызовом Restore
func NewFlowController(
	backend BookingAPI,
	store SnapshotStore,
	cache *AvailabilityCache,
	clock Clock,
	cfg FlowConfig,
	logger *zap.Logger,
) *FlowController {
	if cfg.StorageKey == "" {
		cfg.StorageKey = model.SnapshotKey
	}
	return &FlowController{
		backend: backend,
		store:   store,
		cache:   cache,
		timer:   NewDeadlineTimer(clock, cfg.TickInterval, logger),
		clock:   clock,
		logger:  logger,
		cfg:     cfg,
		state:   StateUnauthenticated,
	}
}

// SetOnAutoCancel задаёт уведомление об авто-отмене по дедлайну
// (фронтенд показывает его пользователю). Вызывается вне мьютекса
func (c *FlowController) SetOnAutoCancel(fn func()) {
	c.mu.Lock()
	c.onAutoCancel = fn
	c.mu.Unlock()
}

// Restore читает сохранённый срез и выводит из него состояние потока.
// Читается один раз при старте; занятые даты всегда перечитываются
// с бэкенда отдельно
func (c *FlowController) Restore(ctx context.Context) error {
	snapshot, err := c.store.Get(ctx, c.cfg.StorageKey)
	if err != nil {
		return fmt.Errorf("restore flow: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if snapshot == nil || snapshot.LineUser == nil || !snapshot.IsAuthenticated {
		c.setStateLocked(StateUnauthenticated)
		return nil
	}

	c.user = snapshot.LineUser
	c.booking = snapshot.Booking
	c.payment = snapshot.Payment

	switch {
	case c.payment.Status == model.PaymentStatusSuccess:
		c.setStateLocked(StateConfirmed)
	case c.booking.IsConfirmed:
		// Отсчёт продолжается от сохранённого createdAt, не перезапускается.
		// Просроченный дедлайн сработает на первом же тике
		c.setStateLocked(StateAwaitingPayment)
		c.armDeadlineLocked()
	default:
		c.setStateLocked(StateSelectingDate)
	}

	c.logger.Info("Flow restored from snapshot",
		zap.String("state", string(c.state)),
		zap.String("booking_id", c.booking.BookingID))
	return nil
}

// Login привязывает пользователя к сессии и открывает выбор даты.
// Повторный вход того же пользователя — no-op
func (c *FlowController) Login(ctx context.Context, user *model.User) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.user != nil {
		if c.user.UserID == user.UserID {
			return nil
		}
		return fmt.Errorf("%w: login in state %s", ErrInvalidTransition, c.state)
	}

	c.user = user
	c.setStateLocked(StateSelectingDate)
	c.persistLocked(ctx)

	c.logger.Info("User logged in", zap.String("user_id", user.UserID))
	return nil
}

// Logout очищает сессию, сбрасывает поток и удаляет сохранённый срез
func (c *FlowController) Logout(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.timer.Stop()
	c.user = nil
	c.booking = model.BookingData{}
	c.payment = model.PaymentData{}
	c.setStateLocked(StateUnauthenticated)
	if err := c.store.Delete(ctx, c.cfg.StorageKey); err != nil {
		c.logger.Error("Failed to delete flow snapshot", zap.Error(err))
	}
	return nil
}

// PickDate выбирает дату. Прошедшие и занятые даты отклоняются локально,
// selectedDate при этом не меняется; сеть не трогается
func (c *FlowController) PickDate(ctx context.Context, date time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateSelectingDate {
		return fmt.Errorf("%w: pick date in state %s", ErrInvalidTransition, c.state)
	}

	day := model.DateOnly(date)
	today := model.DateOnly(c.clock.Now())
	if day.Before(today) {
		return validationError("Нельзя выбрать прошедшую дату")
	}
	if c.cache.Contains(day) {
		return validationError("Эта дата уже занята")
	}

	c.booking.SelectedDate = day
	c.persistLocked(ctx)
	return nil
}

// RequestConfirmation переводит поток к подтверждению выбранной даты
func (c *FlowController) RequestConfirmation(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateSelectingDate {
		return fmt.Errorf("%w: request confirmation in state %s", ErrInvalidTransition, c.state)
	}
	if c.booking.SelectedDate.IsZero() {
		return validationError("Сначала выберите дату")
	}

	c.setStateLocked(StateAwaitingConfirmation)
	c.persistLocked(ctx)
	return nil
}

// DismissConfirmation возвращает поток к выбору даты, выбранная дата
// не сбрасывается
func (c *FlowController) DismissConfirmation(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateAwaitingConfirmation {
		return fmt.Errorf("%w: dismiss confirmation in state %s", ErrInvalidTransition, c.state)
	}

	c.setStateLocked(StateSelectingDate)
	c.persistLocked(ctx)
	return nil
}

// SubmitBooking создаёт бронирование на бэкенде. Конфликт даты
// возвращает поток к выбору даты (selectedDate сохраняется); прочие
// ошибки оставляют состояние как есть, то же действие можно повторить
func (c *FlowController) SubmitBooking(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateAwaitingConfirmation {
		return fmt.Errorf("%w: submit booking in state %s", ErrInvalidTransition, c.state)
	}

	req := api.CreateBookingRequest{
		UserID:       c.user.UserID,
		DisplayName:  c.user.DisplayName,
		SelectedDate: c.booking.SelectedDate.Format(model.DateLayout),
		Amount:       c.cfg.DepositAmount,
		Status:       "pending",
	}

	record, err := c.backend.CreateBooking(ctx, req)
	if err != nil {
		if api.IsConflict(err) {
			// Гонка за дату проиграна: возвращаемся к выбору и
			// перечитываем занятые даты
			c.setStateLocked(StateSelectingDate)
			if refreshErr := c.cache.Refresh(ctx); refreshErr != nil {
				c.logger.Warn("Failed to refresh booked dates after conflict", zap.Error(refreshErr))
			}
			return conflictError("Эта дата уже занята, выберите другую", err)
		}
		return transientError("Не удалось создать бронирование, попробуйте ещё раз", err)
	}

	c.booking.IsConfirmed = true
	c.booking.BookingID = record.BookingID
	c.booking.CreatedAt = record.CreatedAt
	if c.booking.CreatedAt.IsZero() {
		// Защитный fallback; сервер авторитетен для createdAt
		c.booking.CreatedAt = c.clock.Now()
	}

	c.provisionPaymentLocked()
	c.setStateLocked(StateAwaitingPayment)
	c.armDeadlineLocked()
	c.persistLocked(ctx)

	c.logger.Info("Booking created",
		zap.String("booking_id", c.booking.BookingID),
		zap.String("date", req.SelectedDate))
	return nil
}

// provisionPaymentLocked создаёт локальный платёж: ID генерируется
// на месте, QR кодируется без обращения к бэкенду
func (c *FlowController) provisionPaymentLocked() {
	c.payment.PaymentID = "payment_" + uuid.NewString()
	c.payment.Status = model.PaymentStatusPending

	payload, err := c.cfg.EncodePayload(c.cfg.PromptPayAccount, float64(c.cfg.DepositAmount))
	if err != nil {
		// Оплата остаётся возможной через слип, QR просто не показываем
		c.logger.Error("Failed to encode payment payload", zap.Error(err))
		return
	}
	c.payment.QRPayload = payload
}

// armDeadlineLocked взводит дедлайн оплаты от серверного createdAt,
// либо от текущего момента как защитный вариант до создания брони
func (c *FlowController) armDeadlineLocked() {
	anchor := c.booking.CreatedAt
	if anchor.IsZero() {
		anchor = c.clock.Now()
	}
	c.timer.Arm(anchor.Add(PaymentGracePeriod), c.autoCancel)
}

// autoCancel вызывается таймером при истечении дедлайна
func (c *FlowController) autoCancel() {
	ctx := context.Background()

	c.mu.Lock()
	cancelled := c.state == StateAwaitingPayment || c.state == StateVerifyingSlip
	if cancelled {
		c.cancelLocked(ctx)
		c.logger.Info("Booking auto-cancelled by payment deadline")
	}
	notify := c.onAutoCancel
	c.mu.Unlock()

	if cancelled && notify != nil {
		notify()
	}
}

// Cancel отменяет бронирование. Идемпотентна: повторный вызов ничего
// не удаляет и оставляет бронь и платёж в исходной форме
func (c *FlowController) Cancel(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.state {
	case StateAwaitingPayment, StateVerifyingSlip:
		c.cancelLocked(ctx)
		return nil
	case StateSelectingDate, StateCancelled:
		// Отменять уже нечего
		return nil
	case StateConfirmed:
		// Зафиксированный успех оплаты отмена не перезаписывает
		return nil
	default:
		return fmt.Errorf("%w: cancel in state %s", ErrInvalidTransition, c.state)
	}
}

// cancelLocked общий путь ручной и автоматической отмены: best-effort
// удаление на бэкенде и безусловный локальный сброс. Сетевая ошибка
// не должна запереть пользователя в неработающем потоке, поэтому она
// логируется и глотается
func (c *FlowController) cancelLocked(ctx context.Context) {
	c.timer.Stop()

	if c.booking.BookingID != "" {
		if _, err := c.backend.DeleteBooking(ctx, c.booking.BookingID); err != nil {
			c.logger.Warn("Failed to delete booking on cancel, resetting locally anyway",
				zap.String("booking_id", c.booking.BookingID),
				zap.Error(err))
		}
	}

	c.booking = model.BookingData{}
	c.payment = model.PaymentData{}
	c.setStateLocked(StateCancelled)
	c.setStateLocked(StateSelectingDate)
	c.persistLocked(ctx)
}

// ConfirmPaymentSuccess фиксирует успех оплаты. Идемпотентна: второй
// вызов — no-op, побочные эффекты выполняются ровно один раз
func (c *FlowController) ConfirmPaymentSuccess(ctx context.Context, method string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.payment.Status == model.PaymentStatusSuccess {
		return nil
	}
	if c.state != StateAwaitingPayment && c.state != StateVerifyingSlip {
		return fmt.Errorf("%w: confirm payment in state %s", ErrInvalidTransition, c.state)
	}

	c.confirmLocked(ctx, method)
	return nil
}

// confirmLocked единственное место фиксации успеха оплаты. Таймер
// останавливается в том же шаге, поэтому авто-отмена не может
// перезаписать успех. Ошибка обновления брони на бэкенде логируется
// и глотается: локально оплата уже состоялась
func (c *FlowController) confirmLocked(ctx context.Context, method string) {
	c.timer.Stop()

	if c.booking.BookingID != "" && c.payment.PaymentID != "" {
		upd := api.UpdateBookingRequest{
			Status:    "confirmed",
			PaymentID: c.payment.PaymentID,
		}
		if _, err := c.backend.UpdateBooking(ctx, c.booking.BookingID, upd); err != nil {
			c.logger.Error("Failed to update booking after payment",
				zap.String("booking_id", c.booking.BookingID),
				zap.Error(err))
		}
	}

	if !c.booking.SelectedDate.IsZero() {
		c.cache.MarkOccupied(c.booking.SelectedDate)
	}

	c.payment.Status = model.PaymentStatusSuccess
	c.setStateLocked(StateConfirmed)
	c.persistLocked(ctx)

	c.logger.Info("Payment confirmed",
		zap.String("method", method),
		zap.String("booking_id", c.booking.BookingID))
}

// StartNewBooking начинает новый поток после успешного завершения.
// Сессия и авторизация не затрагиваются
func (c *FlowController) StartNewBooking(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateConfirmed {
		return fmt.Errorf("%w: start new booking in state %s", ErrInvalidTransition, c.state)
	}

	c.booking = model.BookingData{}
	c.payment = model.PaymentData{}
	c.setStateLocked(StateSelectingDate)
	c.persistLocked(ctx)
	return nil
}

// View возвращает копию состояния для отображения
func (c *FlowController) View() FlowView {
	c.mu.Lock()
	defer c.mu.Unlock()

	view := FlowView{
		State:         c.state,
		Booking:       c.booking,
		Payment:       c.payment,
		DepositAmount: float64(c.cfg.DepositAmount),
		Remaining:     c.timer.Remaining(),
		Expired:       c.timer.Expired(),
	}
	if c.user != nil {
		userCopy := *c.user
		view.User = &userCopy
	}
	return view
}

// setStateLocked переводит поток в новое состояние
func (c *FlowController) setStateLocked(next FlowState) {
	if c.state == next {
		return
	}
	c.logger.Debug("Flow transition",
		zap.String("from", string(c.state)),
		zap.String("to", string(next)))
	c.state = next
}

// persistLocked записывает срез состояния. Ошибка записи не прерывает
// поток: durable срез нужен только для восстановления после рестарта
func (c *FlowController) persistLocked(ctx context.Context) {
	snapshot := &model.Snapshot{
		LineUser:        c.user,
		IsAuthenticated: c.user != nil,
		Booking:         c.booking,
		Payment:         c.payment,
	}
	if err := c.store.Set(ctx, c.cfg.StorageKey, snapshot); err != nil {
		c.logger.Error("Failed to persist flow snapshot", zap.Error(err))
	}
}
