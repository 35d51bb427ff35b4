package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/TANANUNKUB/clip-booking-core/internal/model"
	"go.uber.org/zap"
)

// AvailabilityCache множество занятых дат в памяти. Это best-effort
// предфильтр перед выбором даты; авторитетная проверка происходит
// на бэкенде при создании бронирования
type AvailabilityCache struct {
	backend BookingAPI
	logger  *zap.Logger

	mu    sync.RWMutex
	dates map[string]struct{}
}

// NewAvailabilityCache создаёт пустой кэш занятых дат
func NewAvailabilityCache(backend BookingAPI, logger *zap.Logger) *AvailabilityCache {
	return &AvailabilityCache{
		backend: backend,
		logger:  logger,
		dates:   make(map[string]struct{}),
	}
}

// Refresh перечитывает занятые даты с бэкенда и заменяет кэш целиком.
// Инкрементального слияния нет намеренно: так не копятся устаревшие записи
func (c *AvailabilityCache) Refresh(ctx context.Context) error {
	records, err := c.backend.ListBookings(ctx)
	if err != nil {
		return fmt.Errorf("refresh booked dates: %w", err)
	}

	fresh := make(map[string]struct{}, len(records))
	for _, record := range records {
		// Отменённые брони дату не занимают
		if record.Status == "cancelled" {
			continue
		}
		fresh[record.SelectedDate] = struct{}{}
	}

	c.mu.Lock()
	c.dates = fresh
	c.mu.Unlock()

	c.logger.Debug("Booked dates refreshed", zap.Int("count", len(fresh)))
	return nil
}

// Contains проверяет занята ли дата. Чистый поиск по множеству, без сети
func (c *AvailabilityCache) Contains(date time.Time) bool {
	key := model.DateOnly(date).Format(model.DateLayout)

	c.mu.RLock()
	defer c.mu.RUnlock()

	_, ok := c.dates[key]
	return ok
}

// MarkOccupied оптимистично помечает дату занятой сразу после успешной
// оплаты, чтобы следующий выбор даты видел её без ожидания Refresh
func (c *AvailabilityCache) MarkOccupied(date time.Time) {
	key := model.DateOnly(date).Format(model.DateLayout)

	c.mu.Lock()
	c.dates[key] = struct{}{}
	c.mu.Unlock()
}

// Dates возвращает отсортированный список занятых дат (для отображения)
func (c *AvailabilityCache) Dates() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]string, 0, len(c.dates))
	for d := range c.dates {
		out = append(out, d)
	}
	sort.Strings(out)
	return out
}
