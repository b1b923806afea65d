package application

import (
	"context"

	"github.com/wyfcoding/orderdispatch/internal/dispatch/domain"
	"github.com/wyfcoding/orderdispatch/pkg/utils"
)

// QueryService 只读查询
type QueryService struct {
	txRunner
	traders domain.TraderRepository
	orders  domain.OrderRepository
	payouts domain.PayoutRepository
	tickets domain.TicketRepository
}

// NewQueryService 创建查询服务
func NewQueryService(deps Deps) *QueryService {
	return &QueryService{
		txRunner: txRunner{tx: deps.Tx, timeout: deps.Timeout},
		traders:  deps.Traders,
		orders:   deps.Orders,
		payouts:  deps.Payouts,
		tickets:  deps.Tickets,
	}
}

// GetTrader 交易员资料与余额
func (q *QueryService) GetTrader(ctx context.Context, traderID uint) (*TraderDTO, error) {
	ctx, cancel := q.withTimeout(ctx)
	defer cancel()
	t, err := q.traders.Get(ctx, traderID)
	if err != nil {
		return nil, classify(err)
	}
	return toTraderDTO(t), nil
}

func (q *QueryService) GetOrder(ctx context.Context, orderID uint) (*OrderDTO, error) {
	ctx, cancel := q.withTimeout(ctx)
	defer cancel()
	o, err := q.orders.Get(ctx, orderID)
	if err != nil {
		return nil, classify(err)
	}
	return toOrderDTO(o), nil
}

// ListOrders 分页查询交易员订单，可按状态过滤
func (q *QueryService) ListOrders(ctx context.Context, query ListQuery) (*ListDTO[*OrderDTO], error) {
	ctx, cancel := q.withTimeout(ctx)
	defer cancel()
	page := utils.NewPagination(query.Page, query.PageSize)
	items, total, err := q.orders.ListByTrader(ctx, query.TraderID, query.Status, page.Limit(), page.Offset())
	if err != nil {
		return nil, classify(err)
	}
	page.SetTotal(total)
	return &ListDTO[*OrderDTO]{Items: mapSlice(items, toOrderDTO), Pagination: page}, nil
}

// TraderStats 按状态统计交易员订单
func (q *QueryService) TraderStats(ctx context.Context, traderID uint) (*TraderStatsDTO, error) {
	ctx, cancel := q.withTimeout(ctx)
	defer cancel()
	if _, err := q.traders.Get(ctx, traderID); err != nil {
		return nil, classify(err)
	}
	counts, err := q.orders.CountByStatus(ctx, traderID)
	if err != nil {
		return nil, classify(err)
	}
	stats := &TraderStatsDTO{
		TraderID: traderID,
		New:      counts[domain.OrderStatusNew],
		InWork:   counts[domain.OrderStatusInWork],
		Done:     counts[domain.OrderStatusDone],
		Cancel:   counts[domain.OrderStatusCancel],
	}
	stats.Total = stats.New + stats.InWork + stats.Done + stats.Cancel
	return stats, nil
}

func (q *QueryService) ListPayouts(ctx context.Context, query ListQuery) (*ListDTO[*PayoutDTO], error) {
	ctx, cancel := q.withTimeout(ctx)
	defer cancel()
	page := utils.NewPagination(query.Page, query.PageSize)
	items, total, err := q.payouts.ListByTrader(ctx, query.TraderID, page.Limit(), page.Offset())
	if err != nil {
		return nil, classify(err)
	}
	page.SetTotal(total)
	return &ListDTO[*PayoutDTO]{Items: mapSlice(items, toPayoutDTO), Pagination: page}, nil
}

func (q *QueryService) ListTickets(ctx context.Context, query ListQuery) (*ListDTO[*TicketDTO], error) {
	ctx, cancel := q.withTimeout(ctx)
	defer cancel()
	page := utils.NewPagination(query.Page, query.PageSize)
	items, total, err := q.tickets.ListByTrader(ctx, query.TraderID, page.Limit(), page.Offset())
	if err != nil {
		return nil, classify(err)
	}
	page.SetTotal(total)
	return &ListDTO[*TicketDTO]{Items: mapSlice(items, toTicketDTO), Pagination: page}, nil
}
