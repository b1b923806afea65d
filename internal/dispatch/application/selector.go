package application

import (
	"context"

	"github.com/wyfcoding/orderdispatch/internal/dispatch/domain"
)

// Selector 交易员池选择器，必须在派单事务内调用
type Selector struct {
	traders    domain.TraderRepository
	busyPolicy bool
}

// NewSelector 创建选择器
func NewSelector(traders domain.TraderRepository, busyPolicy bool) *Selector {
	return &Selector{traders: traders, busyPolicy: busyPolicy}
}

// SelectEligible 锁定并返回 ID 最小的可接单交易员；没有可选者时 ok 为 false
func (s *Selector) SelectEligible(ctx context.Context) (*domain.Trader, bool, error) {
	candidate, err := s.traders.FindEligible(ctx, s.busyPolicy)
	if err != nil {
		return nil, false, err
	}
	if candidate == nil {
		return nil, false, nil
	}
	// 仓储只按 SQL 条件筛选，这里按领域规则复核，不合格（如收款信息全为空白）则不派单
	picked, ok := domain.SelectEligible([]*domain.Trader{candidate}, s.busyPolicy)
	return picked, ok, nil
}
