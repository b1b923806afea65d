package domain

import "context"

// TraderRepository 交易员仓储接口
type TraderRepository interface {
	// Ensure 按渠道标识获取交易员，不存在则创建；created 表示本次新建
	Ensure(ctx context.Context, channelHandle string) (trader *Trader, created bool, err error)
	// Get 根据 ID 获取交易员
	Get(ctx context.Context, id uint) (*Trader, error)
	// GetForUpdate 在事务中锁定交易员行
	GetForUpdate(ctx context.Context, id uint) (*Trader, error)
	// Save 保存收款信息与接单开关
	Save(ctx context.Context, trader *Trader) error
	// FindEligible 锁定并返回 ID 最小的可接单交易员，无则返回 nil
	FindEligible(ctx context.Context, busyPolicy bool) (*Trader, error)
	// Reserve 仅当交易员空闲时写入忙碌标记，返回是否成功
	Reserve(ctx context.Context, traderID, orderID uint) (bool, error)
	// Release 清除指定订单持有的忙碌标记
	Release(ctx context.Context, traderID, orderID uint) error
}

// OrderRepository 订单仓储接口
type OrderRepository interface {
	// Create 创建订单，商户订单号冲突返回 ErrDuplicateOrder
	Create(ctx context.Context, order *Order) error
	// Get 根据 ID 获取订单
	Get(ctx context.Context, id uint) (*Order, error)
	// GetForUpdate 在事务中锁定订单行
	GetForUpdate(ctx context.Context, id uint) (*Order, error)
	// GetByMerchantOrderID 根据商户订单号获取订单
	GetByMerchantOrderID(ctx context.Context, merchantOrderID string) (*Order, error)
	// UpdateStatus 状态从 from 更新为 order.Status，期间被并发修改时返回 ErrInvalidTransition
	UpdateStatus(ctx context.Context, order *Order, from OrderStatus) error
	// ListByTrader 分页查询交易员订单，status 为空时不过滤
	ListByTrader(ctx context.Context, traderID uint, status OrderStatus, limit, offset int) ([]*Order, int64, error)
	// CountByStatus 按状态统计交易员订单数
	CountByStatus(ctx context.Context, traderID uint) (map[OrderStatus]int64, error)
}

// PayoutRepository 提现仓储接口
type PayoutRepository interface {
	Create(ctx context.Context, payout *Payout) error
	Get(ctx context.Context, id uint) (*Payout, error)
	GetForUpdate(ctx context.Context, id uint) (*Payout, error)
	// UpdateStatus 状态从 from 更新为 payout.Status
	UpdateStatus(ctx context.Context, payout *Payout, from PayoutStatus) error
	ListByTrader(ctx context.Context, traderID uint, limit, offset int) ([]*Payout, int64, error)
}

// TicketRepository 工单仓储接口
type TicketRepository interface {
	Create(ctx context.Context, ticket *Ticket) error
	Get(ctx context.Context, id uint) (*Ticket, error)
	GetForUpdate(ctx context.Context, id uint) (*Ticket, error)
	Save(ctx context.Context, ticket *Ticket) error
	ListByTrader(ctx context.Context, traderID uint, limit, offset int) ([]*Ticket, int64, error)
}

// EventPublisher 在当前事务中记录领域事件
type EventPublisher interface {
	Publish(ctx context.Context, event DomainEvent) error
}

// TransactionManager 事务管理，fn 中的 txCtx 携带事务句柄
type TransactionManager interface {
	Transaction(ctx context.Context, fn func(txCtx context.Context) error) error
}
