package application

import (
	"context"
	"time"

	"github.com/wyfcoding/orderdispatch/internal/dispatch/domain"
	"github.com/wyfcoding/orderdispatch/pkg/logger"
)

// PayoutCommandService 提现申请与审核
type PayoutCommandService struct {
	txRunner
	payouts domain.PayoutRepository
	traders domain.TraderRepository
	events  domain.EventPublisher
	newNo   NoGenerator
}

// NewPayoutCommandService 创建提现命令服务
func NewPayoutCommandService(deps Deps) *PayoutCommandService {
	return &PayoutCommandService{
		txRunner: txRunner{tx: deps.Tx, timeout: deps.Timeout},
		payouts:  deps.Payouts,
		traders:  deps.Traders,
		events:   deps.Events,
		newNo:    deps.noGenerator(),
	}
}

// RequestPayout 交易员提交提现申请
func (s *PayoutCommandService) RequestPayout(ctx context.Context, cmd RequestPayoutCommand) (*PayoutDTO, error) {
	payout, err := domain.NewPayout(s.newNo("PO"), cmd.TraderID, cmd.Amount, cmd.Currency)
	if err != nil {
		return nil, err
	}
	err = s.inTx(ctx, func(txCtx context.Context) error {
		if _, err := s.traders.Get(txCtx, cmd.TraderID); err != nil {
			return err
		}
		if err := s.payouts.Create(txCtx, payout); err != nil {
			return err
		}
		return s.events.Publish(txCtx, payoutEvent(domain.EventPayoutRequested, payout))
	})
	if err != nil {
		return nil, err
	}
	logger.Info(ctx, "payout requested", "payout_no", payout.PayoutNo, "trader_id", payout.TraderID, "amount", payout.Amount.String())
	return toPayoutDTO(payout), nil
}

// ReviewPayout 审核通过或拒绝，仅限 new 状态
func (s *PayoutCommandService) ReviewPayout(ctx context.Context, payoutID uint, approve bool) (*PayoutDTO, error) {
	return s.advance(ctx, payoutID, func(txCtx context.Context, p *domain.Payout) error {
		return p.Review(txCtx, approve)
	})
}

// MarkPaid 标记已打款，仅限 approved 状态
func (s *PayoutCommandService) MarkPaid(ctx context.Context, payoutID uint) (*PayoutDTO, error) {
	return s.advance(ctx, payoutID, func(txCtx context.Context, p *domain.Payout) error {
		return p.MarkPaid(txCtx)
	})
}

func (s *PayoutCommandService) advance(ctx context.Context, payoutID uint, step func(context.Context, *domain.Payout) error) (*PayoutDTO, error) {
	var payout *domain.Payout
	err := s.inTx(ctx, func(txCtx context.Context) error {
		p, err := s.payouts.GetForUpdate(txCtx, payoutID)
		if err != nil {
			return err
		}
		from := p.Status
		if err := step(txCtx, p); err != nil {
			return err
		}
		if err := s.payouts.UpdateStatus(txCtx, p, from); err != nil {
			return err
		}
		payout = p
		return s.events.Publish(txCtx, payoutEvent(domain.EventPayoutStatusChange, p))
	})
	if err != nil {
		logger.Warn(ctx, "payout transition rejected", "payout_id", payoutID, "error", err)
		return nil, err
	}
	logger.Info(ctx, "payout status changed", "payout_id", payoutID, "status", payout.Status)
	return toPayoutDTO(payout), nil
}

func payoutEvent(eventType string, p *domain.Payout) domain.PayoutEvent {
	return domain.PayoutEvent{
		Type:       eventType,
		PayoutID:   p.ID,
		PayoutNo:   p.PayoutNo,
		TraderID:   p.TraderID,
		Amount:     p.Amount,
		Currency:   p.Currency,
		Status:     p.Status,
		OccurredOn: time.Now(),
	}
}
