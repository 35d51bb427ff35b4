package controller

import (
	"context"
	"sync"

	"github.com/TANANUNKUB/clip-booking-core/internal/service"
	"go.uber.org/zap"
)

// FlowFactory создаёт поток бронирования для чата
type FlowFactory func(chatID int64) *service.FlowController

// FlowRegistry хранит потоки бронирования по чатам. Поток создаётся
// лениво при первом обращении и восстанавливается из сохранённого среза
type FlowRegistry struct {
	factory FlowFactory
	logger  *zap.Logger

	mu    sync.Mutex
	flows map[int64]*service.FlowController
}

// NewFlowRegistry создаёт реестр потоков
func NewFlowRegistry(factory FlowFactory, logger *zap.Logger) *FlowRegistry {
	return &FlowRegistry{
		factory: factory,
		logger:  logger,
		flows:   make(map[int64]*service.FlowController),
	}
}

// Get возвращает поток чата, создавая и восстанавливая его при
// первом обращении. created сообщает что поток только что создан
// (вызывающий довешивает уведомления)
func (r *FlowRegistry) Get(ctx context.Context, chatID int64) (flow *service.FlowController, created bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if flow, ok := r.flows[chatID]; ok {
		return flow, false
	}

	flow = r.factory(chatID)
	if err := flow.Restore(ctx); err != nil {
		// Не смогли прочитать срез — начинаем поток с чистого листа
		r.logger.Warn("Failed to restore flow, starting fresh",
			zap.Int64("chat_id", chatID),
			zap.Error(err))
	}
	r.flows[chatID] = flow
	return flow, true
}
