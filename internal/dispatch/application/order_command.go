package application

import (
	"context"
	"time"

	"github.com/wyfcoding/orderdispatch/internal/dispatch/domain"
	"github.com/wyfcoding/orderdispatch/pkg/logger"
	"github.com/wyfcoding/orderdispatch/pkg/metrics"
)

// OrderCommandService 订单状态流转
type OrderCommandService struct {
	txRunner
	orders  domain.OrderRepository
	traders domain.TraderRepository
	events  domain.EventPublisher
	metrics *metrics.Metrics
}

// NewOrderCommandService 创建订单命令服务
func NewOrderCommandService(deps Deps) *OrderCommandService {
	return &OrderCommandService{
		txRunner: txRunner{tx: deps.Tx, timeout: deps.Timeout},
		orders:   deps.Orders,
		traders:  deps.Traders,
		events:   deps.Events,
		metrics:  deps.Metrics,
	}
}

// Transition 推进订单状态；离开 new 时释放交易员占用
func (s *OrderCommandService) Transition(ctx context.Context, orderID uint, target domain.OrderStatus) (*OrderDTO, error) {
	var (
		order *domain.Order
		from  domain.OrderStatus
	)
	err := s.inTx(ctx, func(txCtx context.Context) error {
		o, err := s.orders.GetForUpdate(txCtx, orderID)
		if err != nil {
			return err
		}
		from = o.Status
		if err := o.TransitionTo(txCtx, target); err != nil {
			return err
		}
		if err := s.orders.UpdateStatus(txCtx, o, from); err != nil {
			return err
		}
		// 只清除本订单持有的标记，未开启忙碌策略时不影响任何行
		if from == domain.OrderStatusNew {
			if err := s.traders.Release(txCtx, o.TraderID, o.ID); err != nil {
				return err
			}
		}
		if err := s.events.Publish(txCtx, domain.OrderStatusChangedEvent{
			OrderID:    o.ID,
			OrderNo:    o.OrderNo,
			TraderID:   o.TraderID,
			From:       from,
			To:         o.Status,
			OccurredOn: time.Now(),
		}); err != nil {
			return err
		}
		order = o
		return nil
	})
	if err != nil {
		logger.Warn(ctx, "order transition rejected", "order_id", orderID, "target", target, "error", err)
		return nil, err
	}

	s.metrics.RecordTransition(string(from), string(order.Status))
	logger.Info(ctx, "order status changed", "order_id", order.ID, "from", from, "to", order.Status, "trader_id", order.TraderID)
	return toOrderDTO(order), nil
}
