package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/wyfcoding/orderdispatch/internal/dispatch/domain"
	"github.com/wyfcoding/pkg/idgen"
)

// NoGenerator 生成带前缀的业务编号
type NoGenerator func(prefix string) string

// DefaultNoGenerator 基于 idgen 的雪花 ID
func DefaultNoGenerator(prefix string) string {
	return fmt.Sprintf("%s%d", prefix, idgen.GenID())
}

// 原样返回给调用方的业务错误
var businessErrors = []error{
	domain.ErrDuplicateOrder,
	domain.ErrNoTraderAvailable,
	domain.ErrRequisitesMissing,
	domain.ErrInvalidAmount,
	domain.ErrInvalidTransition,
	domain.ErrInvalidArgument,
	domain.ErrTraderNotFound,
	domain.ErrOrderNotFound,
	domain.ErrPayoutNotFound,
	domain.ErrTicketNotFound,
	domain.ErrUnavailable,
}

// classify 业务错误原样返回，其余（存储故障、超时）归为 ErrUnavailable
func classify(err error) error {
	if err == nil {
		return nil
	}
	for _, target := range businessErrors {
		if errors.Is(err, target) {
			return err
		}
	}
	return fmt.Errorf("%w: %w", domain.ErrUnavailable, err)
}

// txRunner 为每次命令设置超时并在事务中执行
type txRunner struct {
	tx      domain.TransactionManager
	timeout time.Duration
}

func (r txRunner) inTx(ctx context.Context, fn func(txCtx context.Context) error) error {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()
	return classify(r.tx.Transaction(ctx, fn))
}

func (r txRunner) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, r.timeout)
}
