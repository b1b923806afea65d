package domain

import (
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// 事件类型
const (
	EventOrderAssigned      = "order.assigned"
	EventOrderStatusChanged = "order.status_changed"
	EventPayoutRequested    = "payout.requested"
	EventPayoutStatusChange = "payout.status_changed"
	EventTicketOpened       = "ticket.opened"
	EventTicketClosed       = "ticket.closed"
)

// DomainEvent 领域事件
type DomainEvent interface {
	EventType() string
	// AggregateID 用作消息 key，保证同一聚合的事件有序
	AggregateID() string
}

// OrderAssignedEvent 订单已派给交易员
type OrderAssignedEvent struct {
	OrderID         uint            `json:"order_id"`
	OrderNo         string          `json:"order_no"`
	MerchantOrderID string          `json:"merchant_order_id"`
	TraderID        uint            `json:"trader_id"`
	Amount          decimal.Decimal `json:"amount"`
	Currency        string          `json:"currency"`
	OccurredOn      time.Time       `json:"occurred_on"`
}

func (OrderAssignedEvent) EventType() string { return EventOrderAssigned }

func (e OrderAssignedEvent) AggregateID() string { return e.OrderNo }

// OrderStatusChangedEvent 订单状态变更
type OrderStatusChangedEvent struct {
	OrderID    uint        `json:"order_id"`
	OrderNo    string      `json:"order_no"`
	TraderID   uint        `json:"trader_id"`
	From       OrderStatus `json:"from"`
	To         OrderStatus `json:"to"`
	OccurredOn time.Time   `json:"occurred_on"`
}

func (OrderStatusChangedEvent) EventType() string { return EventOrderStatusChanged }

func (e OrderStatusChangedEvent) AggregateID() string { return e.OrderNo }

// PayoutEvent 提现申请创建或状态变更
type PayoutEvent struct {
	Type       string          `json:"-"`
	PayoutID   uint            `json:"payout_id"`
	PayoutNo   string          `json:"payout_no"`
	TraderID   uint            `json:"trader_id"`
	Amount     decimal.Decimal `json:"amount"`
	Currency   string          `json:"currency"`
	Status     PayoutStatus    `json:"status"`
	OccurredOn time.Time       `json:"occurred_on"`
}

func (e PayoutEvent) EventType() string { return e.Type }

func (e PayoutEvent) AggregateID() string { return e.PayoutNo }

// TicketEvent 工单创建或关闭
type TicketEvent struct {
	Type       string       `json:"-"`
	TicketID   uint         `json:"ticket_id"`
	TicketNo   string       `json:"ticket_no"`
	TraderID   uint         `json:"trader_id"`
	Status     TicketStatus `json:"status"`
	OccurredOn time.Time    `json:"occurred_on"`
}

func (e TicketEvent) EventType() string { return e.Type }

func (e TicketEvent) AggregateID() string {
	if e.TicketNo != "" {
		return e.TicketNo
	}
	return strconv.FormatUint(uint64(e.TicketID), 10)
}
