package application

import (
	"time"

	"github.com/wyfcoding/orderdispatch/internal/dispatch/domain"
	"github.com/wyfcoding/orderdispatch/pkg/metrics"
)

// Deps 应用服务依赖
type Deps struct {
	Tx       domain.TransactionManager
	Traders  domain.TraderRepository
	Orders   domain.OrderRepository
	Payouts  domain.PayoutRepository
	Tickets  domain.TicketRepository
	Events   domain.EventPublisher
	Notifier domain.Notifier
	// 可为 nil
	Metrics *metrics.Metrics
	// 为 nil 时使用 DefaultNoGenerator
	NewNo      NoGenerator
	BusyPolicy bool
	Timeout    time.Duration
}

func (d Deps) noGenerator() NoGenerator {
	if d.NewNo != nil {
		return d.NewNo
	}
	return DefaultNoGenerator
}

// DispatchService 派单服务门面
type DispatchService struct {
	Dispatcher *Dispatcher
	Orders     *OrderCommandService
	Traders    *TraderCommandService
	Payouts    *PayoutCommandService
	Tickets    *TicketCommandService
	Query      *QueryService
}

// NewDispatchService 组装全部应用服务
func NewDispatchService(deps Deps) *DispatchService {
	return &DispatchService{
		Dispatcher: NewDispatcher(deps),
		Orders:     NewOrderCommandService(deps),
		Traders:    NewTraderCommandService(deps),
		Payouts:    NewPayoutCommandService(deps),
		Tickets:    NewTicketCommandService(deps),
		Query:      NewQueryService(deps),
	}
}
