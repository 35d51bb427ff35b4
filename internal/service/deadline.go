package service

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// PaymentGracePeriod время на оплату после создания бронирования
const PaymentGracePeriod = 10 * time.Minute

// DeadlineTimer отсчитывает дедлайн оплаты и ровно один раз вызывает
// onExpire при его истечении. Остановка таймера и фиксация успеха оплаты
// происходят в одном логическом шаге на стороне контроллера, поэтому
// опоздавший тик не может отменить уже оплаченную бронь
type DeadlineTimer struct {
	clock        Clock
	logger       *zap.Logger
	tickInterval time.Duration

	mu       sync.Mutex
	deadline time.Time
	onExpire func()
	fired    bool
	stopped  bool
	stopChan chan struct{}
}

// NewDeadlineTimer создаёт таймер. tickInterval <= 0 отключает фоновый
// цикл: тогда Tick вызывается вручную (в тестах)
func NewDeadlineTimer(clock Clock, tickInterval time.Duration, logger *zap.Logger) *DeadlineTimer {
	return &DeadlineTimer{
		clock:        clock,
		logger:       logger,
		tickInterval: tickInterval,
	}
}

// Arm взводит таймер на дедлайн. Повторный Arm перевзводит таймер
// и сбрасывает флаг срабатывания
func (t *DeadlineTimer) Arm(deadline time.Time, onExpire func()) {
	t.mu.Lock()
	if t.stopChan != nil {
		close(t.stopChan)
	}
	t.deadline = deadline
	t.onExpire = onExpire
	t.fired = false
	t.stopped = false
	t.stopChan = nil
	if t.tickInterval > 0 {
		t.stopChan = make(chan struct{})
		go t.run(t.stopChan)
	}
	t.mu.Unlock()
}

// Stop останавливает таймер. После Stop тики игнорируются; вызов
// безопасен из любого состояния и не блокируется на фоновом цикле
func (t *DeadlineTimer) Stop() {
	t.mu.Lock()
	t.stopped = true
	if t.stopChan != nil {
		close(t.stopChan)
		t.stopChan = nil
	}
	t.mu.Unlock()
}

// Remaining возвращает оставшееся время; ноль если дедлайн прошёл
func (t *DeadlineTimer) Remaining() time.Duration {
	t.mu.Lock()
	deadline := t.deadline
	t.mu.Unlock()

	if deadline.IsZero() {
		return 0
	}
	remaining := deadline.Sub(t.clock.Now())
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Expired сообщает что дедлайн истёк и авто-отмена уже запущена
func (t *DeadlineTimer) Expired() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.fired
}

// Tick пересчитывает оставшееся время и при истечении дедлайна один раз
// вызывает onExpire. Callback вызывается вне мьютекса таймера: он ведёт
// в контроллер, который при отмене зовёт Stop
func (t *DeadlineTimer) Tick() {
	t.mu.Lock()
	if t.stopped || t.fired || t.deadline.IsZero() || t.clock.Now().Before(t.deadline) {
		t.mu.Unlock()
		return
	}
	t.fired = true
	expire := t.onExpire
	t.mu.Unlock()

	t.logger.Info("Payment deadline expired, cancelling booking")
	if expire != nil {
		expire()
	}
}

// run фоновый цикл тиков раз в tickInterval
func (t *DeadlineTimer) run(stop chan struct{}) {
	ticker := time.NewTicker(t.tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			t.Tick()
		case <-stop:
			return
		}
	}
}
