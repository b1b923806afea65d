package domain

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/wyfcoding/pkg/fsm"
)

// PayoutStatus 提现状态
type PayoutStatus string

const (
	PayoutStatusNew      PayoutStatus = "new"      // 交易员提交
	PayoutStatusApproved PayoutStatus = "approved" // 运营审核通过
	PayoutStatusRejected PayoutStatus = "rejected" // 运营拒绝
	PayoutStatusPaid     PayoutStatus = "paid"     // 线下打款完成
)

// Payout 提现申请
type Payout struct {
	ID         uint            `json:"id"`
	PayoutNo   string          `json:"payout_no"`
	TraderID   uint            `json:"trader_id"`
	Amount     decimal.Decimal `json:"amount"`
	Currency   string          `json:"currency"`
	Status     PayoutStatus    `json:"status"`
	ReviewedAt *time.Time      `json:"reviewed_at,omitempty"`
	PaidAt     *time.Time      `json:"paid_at,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
	fsm        *fsm.Machine[string, string]
}

// NewPayout 创建提现申请
func NewPayout(payoutNo string, traderID uint, amount decimal.Decimal, currency string) (*Payout, error) {
	if err := ValidateAmount(amount); err != nil {
		return nil, err
	}
	currency, err := NormalizeCurrency(currency)
	if err != nil {
		return nil, err
	}
	p := &Payout{
		PayoutNo: payoutNo,
		TraderID: traderID,
		Amount:   amount,
		Currency: currency,
		Status:   PayoutStatusNew,
	}
	p.initFSM()
	return p, nil
}

func (p *Payout) initFSM() {
	m := fsm.NewMachine[string, string](string(p.Status))
	m.AddTransition(string(PayoutStatusNew), "APPROVE", string(PayoutStatusApproved))
	m.AddTransition(string(PayoutStatusNew), "REJECT", string(PayoutStatusRejected))
	m.AddTransition(string(PayoutStatusApproved), "PAY", string(PayoutStatusPaid))
	p.fsm = m
}

// InitFSM 确保状态机已初始化
func (p *Payout) InitFSM() {
	if p.fsm == nil {
		p.initFSM()
	}
}

// Review 审核，仅 new 状态可审核
func (p *Payout) Review(ctx context.Context, approve bool) error {
	p.InitFSM()
	event, target := "REJECT", PayoutStatusRejected
	if approve {
		event, target = "APPROVE", PayoutStatusApproved
	}
	if err := p.fsm.Trigger(ctx, event); err != nil {
		return fmt.Errorf("%w: payout %s -> %s", ErrInvalidTransition, p.Status, target)
	}
	p.Status = target
	now := time.Now()
	p.ReviewedAt = &now
	return nil
}

// MarkPaid 标记已打款，仅 approved 状态可操作
func (p *Payout) MarkPaid(ctx context.Context) error {
	p.InitFSM()
	if err := p.fsm.Trigger(ctx, "PAY"); err != nil {
		return fmt.Errorf("%w: payout %s -> %s", ErrInvalidTransition, p.Status, PayoutStatusPaid)
	}
	p.Status = PayoutStatusPaid
	now := time.Now()
	p.PaidAt = &now
	return nil
}
