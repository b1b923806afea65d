package application

import (
	"context"

	"github.com/wyfcoding/orderdispatch/internal/dispatch/domain"
	"github.com/wyfcoding/orderdispatch/pkg/logger"
)

// TraderCommandService 交易员注册、收款信息与接单开关
type TraderCommandService struct {
	txRunner
	traders domain.TraderRepository
}

// NewTraderCommandService 创建交易员命令服务
func NewTraderCommandService(deps Deps) *TraderCommandService {
	return &TraderCommandService{
		txRunner: txRunner{tx: deps.Tx, timeout: deps.Timeout},
		traders:  deps.Traders,
	}
}

// EnsureTrader 首次交互时创建交易员，默认不接单
func (s *TraderCommandService) EnsureTrader(ctx context.Context, channelHandle string) (*TraderDTO, bool, error) {
	if _, err := domain.NewTrader(channelHandle); err != nil {
		return nil, false, err
	}
	var (
		trader  *domain.Trader
		created bool
	)
	err := s.inTx(ctx, func(txCtx context.Context) error {
		var err error
		trader, created, err = s.traders.Ensure(txCtx, channelHandle)
		return err
	})
	if err != nil {
		return nil, false, err
	}
	if created {
		logger.Info(ctx, "trader registered", "trader_id", trader.ID)
	}
	return toTraderDTO(trader), created, nil
}

// SetRequisites 更新收款信息，不改变接单开关
func (s *TraderCommandService) SetRequisites(ctx context.Context, traderID uint, text string) (*TraderDTO, error) {
	var trader *domain.Trader
	err := s.inTx(ctx, func(txCtx context.Context) error {
		t, err := s.traders.GetForUpdate(txCtx, traderID)
		if err != nil {
			return err
		}
		if t.SetRequisites(text) {
			if err := s.traders.Save(txCtx, t); err != nil {
				return err
			}
		}
		trader = t
		return nil
	})
	if err != nil {
		return nil, err
	}
	logger.Info(ctx, "trader requisites updated", "trader_id", traderID, "has_requisites", trader.HasRequisites())
	return toTraderDTO(trader), nil
}

// SetEnabled 打开或关闭接单；收款信息为空时不能打开
func (s *TraderCommandService) SetEnabled(ctx context.Context, traderID uint, enabled bool) (*TraderDTO, error) {
	var trader *domain.Trader
	err := s.inTx(ctx, func(txCtx context.Context) error {
		t, err := s.traders.GetForUpdate(txCtx, traderID)
		if err != nil {
			return err
		}
		changed, err := t.SetEnabled(enabled)
		if err != nil {
			return err
		}
		if changed {
			if err := s.traders.Save(txCtx, t); err != nil {
				return err
			}
		}
		trader = t
		return nil
	})
	if err != nil {
		logger.Warn(ctx, "toggle requisites rejected", "trader_id", traderID, "enabled", enabled, "error", err)
		return nil, err
	}
	logger.Info(ctx, "trader availability changed", "trader_id", traderID, "enabled", trader.RequisitesEnabled)
	return toTraderDTO(trader), nil
}
