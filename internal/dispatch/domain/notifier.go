package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// OrderSummary 推送给交易员的订单摘要
type OrderSummary struct {
	OrderID         uint            `json:"order_id"`
	OrderNo         string          `json:"order_no"`
	MerchantOrderID string          `json:"merchant_order_id"`
	Amount          decimal.Decimal `json:"amount"`
	Currency        string          `json:"currency"`
	TraderID        uint            `json:"trader_id"`
	CreatedAt       time.Time       `json:"created_at"`
}

// Notifier 交易员通知，尽力投递，失败只记录日志
type Notifier interface {
	Notify(ctx context.Context, channelHandle string, summary OrderSummary) error
}
