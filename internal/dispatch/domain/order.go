package domain

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/wyfcoding/pkg/fsm"
)

// OrderStatus 订单状态
type OrderStatus string

const (
	OrderStatusNew    OrderStatus = "new"     // 已派单，等待交易员处理
	OrderStatusInWork OrderStatus = "in_work" // 处理中
	OrderStatusDone   OrderStatus = "done"    // 已完成
	OrderStatusCancel OrderStatus = "cancel"  // 已取消
)

// ParseOrderStatus 解析订单状态
func ParseOrderStatus(s string) (OrderStatus, error) {
	switch st := OrderStatus(strings.ToLower(strings.TrimSpace(s))); st {
	case OrderStatusNew, OrderStatusInWork, OrderStatusDone, OrderStatusCancel:
		return st, nil
	default:
		return "", fmt.Errorf("%w: unknown order status %q", ErrInvalidArgument, s)
	}
}

// IsTerminal 终态不再变化
func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusDone || s == OrderStatusCancel
}

const (
	orderEventTake     = "TAKE"
	orderEventComplete = "COMPLETE"
	orderEventCancel   = "CANCEL"
)

// 目标状态对应的触发事件
var orderTargetEvents = map[OrderStatus]string{
	OrderStatusInWork: orderEventTake,
	OrderStatusDone:   orderEventComplete,
	OrderStatusCancel: orderEventCancel,
}

// Order 订单聚合根；创建即已分配交易员，金额、币种、交易员创建后不可变
type Order struct {
	ID              uint            `json:"id"`
	OrderNo         string          `json:"order_no"`
	MerchantOrderID string          `json:"merchant_order_id"`
	Amount          decimal.Decimal `json:"amount"`
	Currency        string          `json:"currency"`
	Status          OrderStatus     `json:"status"`
	TraderID        uint            `json:"trader_id"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
	fsm             *fsm.Machine[string, string]
}

// NewOrder 创建已分配给交易员的新订单
func NewOrder(orderNo, merchantOrderID string, amount decimal.Decimal, currency string, traderID uint) (*Order, error) {
	merchantOrderID = strings.TrimSpace(merchantOrderID)
	if merchantOrderID == "" {
		return nil, fmt.Errorf("%w: merchant order id is required", ErrInvalidArgument)
	}
	currency, err := NormalizeCurrency(currency)
	if err != nil {
		return nil, err
	}
	if err := ValidateAmount(amount); err != nil {
		return nil, err
	}
	if traderID == 0 {
		return nil, fmt.Errorf("%w: trader is required", ErrInvalidArgument)
	}
	o := &Order{
		OrderNo:         orderNo,
		MerchantOrderID: merchantOrderID,
		Amount:          amount,
		Currency:        currency,
		Status:          OrderStatusNew,
		TraderID:        traderID,
	}
	o.initFSM()
	return o, nil
}

func (o *Order) initFSM() {
	m := fsm.NewMachine[string, string](string(o.Status))
	m.AddTransition(string(OrderStatusNew), orderEventTake, string(OrderStatusInWork))
	m.AddTransition(string(OrderStatusInWork), orderEventComplete, string(OrderStatusDone))
	m.AddTransition(string(OrderStatusNew), orderEventCancel, string(OrderStatusCancel))
	m.AddTransition(string(OrderStatusInWork), orderEventCancel, string(OrderStatusCancel))
	o.fsm = m
}

// InitFSM 确保状态机已初始化（从存储加载后调用）
func (o *Order) InitFSM() {
	if o.fsm == nil {
		o.initFSM()
	}
}

// TransitionTo 推进到目标状态
func (o *Order) TransitionTo(ctx context.Context, target OrderStatus) error {
	event, ok := orderTargetEvents[target]
	if !ok {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, o.Status, target)
	}
	o.InitFSM()
	if err := o.fsm.Trigger(ctx, event); err != nil {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, o.Status, target)
	}
	o.Status = target
	return nil
}

// Summary 通知交易员用的订单摘要
func (o *Order) Summary() OrderSummary {
	return OrderSummary{
		OrderID:         o.ID,
		OrderNo:         o.OrderNo,
		MerchantOrderID: o.MerchantOrderID,
		Amount:          o.Amount,
		Currency:        o.Currency,
		TraderID:        o.TraderID,
		CreatedAt:       o.CreatedAt,
	}
}

// 与表结构 decimal(32,8) 一致：最多 8 位小数，整数部分不超过 24 位
const amountScale = 8

var maxAmount = decimal.New(1, 24)

// ValidateAmount 金额必须为正且能无损存入金额列
func ValidateAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() || !amount.Equal(amount.Truncate(amountScale)) || amount.GreaterThanOrEqual(maxAmount) {
		return fmt.Errorf("%w: %s", ErrInvalidAmount, amount.String())
	}
	return nil
}

// NormalizeCurrency 去空白并转大写
func NormalizeCurrency(currency string) (string, error) {
	currency = strings.ToUpper(strings.TrimSpace(currency))
	if currency == "" {
		return "", fmt.Errorf("%w: currency is required", ErrInvalidArgument)
	}
	return currency, nil
}
