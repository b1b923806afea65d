// Package domain 派单核心领域模型：交易员、订单、提现、工单及其状态规则
package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Trader 交易员聚合根
type Trader struct {
	ID uint `json:"id"`
	// 外部渠道标识（例如聊天 ID），唯一
	ChannelHandle string `json:"channel_handle"`
	// 收款信息
	Requisites        string `json:"requisites"`
	RequisitesEnabled bool   `json:"requisites_enabled"`
	// 忙碌标记，仅在开启忙碌策略时写入
	ActiveOrderID *uint `json:"active_order_id,omitempty"`
	// 以下余额仅用于展示
	Deposit   decimal.Decimal `json:"deposit"`
	Frozen    decimal.Decimal `json:"frozen"`
	Reserved  decimal.Decimal `json:"reserved"`
	Referral  decimal.Decimal `json:"referral"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// NewTrader 首次交互时创建交易员，默认关闭接单
func NewTrader(channelHandle string) (*Trader, error) {
	channelHandle = strings.TrimSpace(channelHandle)
	if channelHandle == "" {
		return nil, ErrInvalidArgument
	}
	return &Trader{
		ChannelHandle: channelHandle,
		Deposit:       decimal.Zero,
		Frozen:        decimal.Zero,
		Reserved:      decimal.Zero,
		Referral:      decimal.Zero,
	}, nil
}

// HasRequisites 是否已填写收款信息
func (t *Trader) HasRequisites() bool {
	return strings.TrimSpace(t.Requisites) != ""
}

// Busy 是否持有未处理订单
func (t *Trader) Busy() bool {
	return t.ActiveOrderID != nil
}

// Eligible 是否可被派单
func (t *Trader) Eligible(busyPolicy bool) bool {
	if !t.RequisitesEnabled || !t.HasRequisites() {
		return false
	}
	return !busyPolicy || !t.Busy()
}

// SetRequisites 更新收款信息，不改变接单开关；返回是否有变化
func (t *Trader) SetRequisites(text string) bool {
	text = strings.TrimSpace(text)
	if t.Requisites == text {
		return false
	}
	t.Requisites = text
	return true
}

// SetEnabled 切换接单开关；开启时必须已有收款信息
func (t *Trader) SetEnabled(enabled bool) (bool, error) {
	if enabled && !t.HasRequisites() {
		return false, ErrRequisitesMissing
	}
	if t.RequisitesEnabled == enabled {
		return false, nil
	}
	t.RequisitesEnabled = enabled
	return true, nil
}
