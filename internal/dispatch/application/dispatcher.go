package application

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/wyfcoding/orderdispatch/internal/dispatch/domain"
	"github.com/wyfcoding/orderdispatch/pkg/logger"
	"github.com/wyfcoding/orderdispatch/pkg/metrics"
)

// Dispatcher 商户订单派单服务
type Dispatcher struct {
	txRunner
	traders    domain.TraderRepository
	orders     domain.OrderRepository
	events     domain.EventPublisher
	notifier   domain.Notifier
	selector   *Selector
	metrics    *metrics.Metrics
	newNo      NoGenerator
	busyPolicy bool
}

// NewDispatcher 创建派单服务
func NewDispatcher(deps Deps) *Dispatcher {
	return &Dispatcher{
		txRunner:   txRunner{tx: deps.Tx, timeout: deps.Timeout},
		traders:    deps.Traders,
		orders:     deps.Orders,
		events:     deps.Events,
		notifier:   deps.Notifier,
		selector:   NewSelector(deps.Traders, deps.BusyPolicy),
		metrics:    deps.Metrics,
		newNo:      deps.noGenerator(),
		busyPolicy: deps.BusyPolicy,
	}
}

// Dispatch 在一个事务内完成查重、选择交易员、建单与占用，提交后异步通知交易员
func (d *Dispatcher) Dispatch(ctx context.Context, cmd DispatchCommand) (*OrderDTO, error) {
	start := time.Now()

	merchantOrderID := strings.TrimSpace(cmd.MerchantOrderID)
	if merchantOrderID == "" {
		return nil, fmt.Errorf("%w: merchant order id is required", domain.ErrInvalidArgument)
	}
	currency, err := domain.NormalizeCurrency(cmd.Currency)
	if err != nil {
		return nil, err
	}
	if err := domain.ValidateAmount(cmd.Amount); err != nil {
		return nil, err
	}

	var (
		order  *domain.Order
		trader *domain.Trader
	)
	err = d.inTx(ctx, func(txCtx context.Context) error {
		if _, err := d.orders.GetByMerchantOrderID(txCtx, merchantOrderID); err == nil {
			return domain.ErrDuplicateOrder
		} else if !errors.Is(err, domain.ErrOrderNotFound) {
			return err
		}

		t, ok, err := d.selector.SelectEligible(txCtx)
		if err != nil {
			return err
		}
		if !ok {
			return domain.ErrNoTraderAvailable
		}

		o, err := domain.NewOrder(d.newNo("ORD"), merchantOrderID, cmd.Amount, currency, t.ID)
		if err != nil {
			return err
		}
		if err := d.orders.Create(txCtx, o); err != nil {
			return err
		}

		if d.busyPolicy {
			reserved, err := d.traders.Reserve(txCtx, t.ID, o.ID)
			if err != nil {
				return err
			}
			if !reserved {
				return domain.ErrNoTraderAvailable
			}
		}

		if err := d.events.Publish(txCtx, domain.OrderAssignedEvent{
			OrderID:         o.ID,
			OrderNo:         o.OrderNo,
			MerchantOrderID: o.MerchantOrderID,
			TraderID:        t.ID,
			Amount:          o.Amount,
			Currency:        o.Currency,
			OccurredOn:      time.Now(),
		}); err != nil {
			return err
		}

		order, trader = o, t
		return nil
	})

	d.metrics.ObserveDispatch(dispatchResult(err), time.Since(start))
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrDuplicateOrder):
			logger.Info(ctx, "duplicate merchant order", "merchant_order_id", merchantOrderID)
		case errors.Is(err, domain.ErrNoTraderAvailable):
			logger.Warn(ctx, "no trader available", "merchant_order_id", merchantOrderID)
		default:
			logger.Error(ctx, "dispatch failed", "merchant_order_id", merchantOrderID, "error", err)
		}
		return nil, err
	}

	logger.Info(ctx, "order dispatched",
		"order_id", order.ID, "order_no", order.OrderNo,
		"merchant_order_id", merchantOrderID, "trader_id", trader.ID)

	// 请求结束后仍需投递
	if err := d.notifier.Notify(context.WithoutCancel(ctx), trader.ChannelHandle, order.Summary()); err != nil {
		logger.Warn(ctx, "failed to enqueue trader notification", "order_id", order.ID, "trader_id", trader.ID, "error", err)
	}

	return toOrderDTO(order), nil
}

func dispatchResult(err error) string {
	switch {
	case err == nil:
		return metrics.ResultAssigned
	case errors.Is(err, domain.ErrNoTraderAvailable):
		return metrics.ResultNoTrader
	case errors.Is(err, domain.ErrDuplicateOrder):
		return metrics.ResultDuplicate
	default:
		return metrics.ResultUnavailable
	}
}
