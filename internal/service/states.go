package service

// FlowState текущее состояние потока бронирования.
// Поток детерминирован: в каждый момент ровно одно состояние
type FlowState string

const (
	StateUnauthenticated      FlowState = "unauthenticated"       // Нет пользователя в сессии
	StateSelectingDate        FlowState = "selecting_date"        // Выбор даты
	StateAwaitingConfirmation FlowState = "awaiting_confirmation" // Пользователь запросил подтверждение, бронь ещё не создана
	StateAwaitingPayment      FlowState = "awaiting_payment"      // Бронь создана, ждём оплату до дедлайна
	StateVerifyingSlip        FlowState = "verifying_slip"        // Слип отправлен на проверку (подсостояние оплаты)
	StateConfirmed            FlowState = "confirmed"             // Оплата подтверждена (терминальное для платежа)
	StateCancelled            FlowState = "cancelled"             // Бронь отменена, транзитное: сразу возврат к выбору даты
)
