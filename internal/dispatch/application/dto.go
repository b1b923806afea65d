package application

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/wyfcoding/orderdispatch/internal/dispatch/domain"
	"github.com/wyfcoding/orderdispatch/pkg/utils"
)

// DispatchCommand 商户下单命令
type DispatchCommand struct {
	MerchantOrderID string
	Amount          decimal.Decimal
	Currency        string
}

// RequestPayoutCommand 提现申请命令
type RequestPayoutCommand struct {
	TraderID uint
	Amount   decimal.Decimal
	Currency string
}

// ListQuery 分页查询参数
type ListQuery struct {
	TraderID uint
	// 仅订单列表使用
	Status   domain.OrderStatus
	Page     int
	PageSize int
}

type TraderDTO struct {
	ID                uint   `json:"id"`
	ChannelHandle     string `json:"channel_handle"`
	Requisites        string `json:"requisites"`
	RequisitesEnabled bool   `json:"requisites_enabled"`
	Busy              bool   `json:"busy"`
	ActiveOrderID     *uint  `json:"active_order_id,omitempty"`
	Deposit           string `json:"deposit"`
	Frozen            string `json:"frozen"`
	Reserved          string `json:"reserved"`
	Referral          string `json:"referral"`
	CreatedAt         int64  `json:"created_at"`
}

type OrderDTO struct {
	ID              uint   `json:"id"`
	OrderNo         string `json:"order_no"`
	MerchantOrderID string `json:"merchant_order_id"`
	Amount          string `json:"amount"`
	Currency        string `json:"currency"`
	Status          string `json:"status"`
	TraderID        uint   `json:"trader_id"`
	CreatedAt       int64  `json:"created_at"`
	UpdatedAt       int64  `json:"updated_at"`
}

type PayoutDTO struct {
	ID         uint   `json:"id"`
	PayoutNo   string `json:"payout_no"`
	TraderID   uint   `json:"trader_id"`
	Amount     string `json:"amount"`
	Currency   string `json:"currency"`
	Status     string `json:"status"`
	ReviewedAt *int64 `json:"reviewed_at,omitempty"`
	PaidAt     *int64 `json:"paid_at,omitempty"`
	CreatedAt  int64  `json:"created_at"`
}

type TicketDTO struct {
	ID        uint   `json:"id"`
	TicketNo  string `json:"ticket_no"`
	TraderID  uint   `json:"trader_id"`
	Text      string `json:"text"`
	Status    string `json:"status"`
	ClosedAt  *int64 `json:"closed_at,omitempty"`
	CreatedAt int64  `json:"created_at"`
}

// TraderStatsDTO 交易员订单统计
type TraderStatsDTO struct {
	TraderID uint  `json:"trader_id"`
	New      int64 `json:"new"`
	InWork   int64 `json:"in_work"`
	Done     int64 `json:"done"`
	Cancel   int64 `json:"cancel"`
	Total    int64 `json:"total"`
}

// ListDTO 分页列表
type ListDTO[T any] struct {
	Items      []T               `json:"items"`
	Pagination *utils.Pagination `json:"pagination"`
}

func toTraderDTO(t *domain.Trader) *TraderDTO {
	return &TraderDTO{
		ID:                t.ID,
		ChannelHandle:     t.ChannelHandle,
		Requisites:        t.Requisites,
		RequisitesEnabled: t.RequisitesEnabled,
		Busy:              t.Busy(),
		ActiveOrderID:     t.ActiveOrderID,
		Deposit:           t.Deposit.String(),
		Frozen:            t.Frozen.String(),
		Reserved:          t.Reserved.String(),
		Referral:          t.Referral.String(),
		CreatedAt:         t.CreatedAt.Unix(),
	}
}

func toOrderDTO(o *domain.Order) *OrderDTO {
	return &OrderDTO{
		ID:              o.ID,
		OrderNo:         o.OrderNo,
		MerchantOrderID: o.MerchantOrderID,
		Amount:          o.Amount.String(),
		Currency:        o.Currency,
		Status:          string(o.Status),
		TraderID:        o.TraderID,
		CreatedAt:       o.CreatedAt.Unix(),
		UpdatedAt:       o.UpdatedAt.Unix(),
	}
}

func toPayoutDTO(p *domain.Payout) *PayoutDTO {
	return &PayoutDTO{
		ID:         p.ID,
		PayoutNo:   p.PayoutNo,
		TraderID:   p.TraderID,
		Amount:     p.Amount.String(),
		Currency:   p.Currency,
		Status:     string(p.Status),
		ReviewedAt: unixPtr(p.ReviewedAt),
		PaidAt:     unixPtr(p.PaidAt),
		CreatedAt:  p.CreatedAt.Unix(),
	}
}

func toTicketDTO(t *domain.Ticket) *TicketDTO {
	return &TicketDTO{
		ID:        t.ID,
		TicketNo:  t.TicketNo,
		TraderID:  t.TraderID,
		Text:      t.Text,
		Status:    string(t.Status),
		ClosedAt:  unixPtr(t.ClosedAt),
		CreatedAt: t.CreatedAt.Unix(),
	}
}

func unixPtr(t *time.Time) *int64 {
	if t == nil {
		return nil
	}
	v := t.Unix()
	return &v
}

func mapSlice[S any, D any](items []S, fn func(S) D) []D {
	out := make([]D, len(items))
	for i, item := range items {
		out[i] = fn(item)
	}
	return out
}
