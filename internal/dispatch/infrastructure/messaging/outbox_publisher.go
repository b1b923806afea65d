// Package messaging 把领域事件写入 outbox 表，并由 outbox 处理器推送到 Kafka
package messaging

import (
	"context"
	"errors"

	"github.com/wyfcoding/orderdispatch/internal/dispatch/domain"
	"github.com/wyfcoding/orderdispatch/pkg/logger"
	"github.com/wyfcoding/pkg/contextx"
	"github.com/wyfcoding/pkg/messagequeue"
)

// ErrNoTransaction 事件必须与业务数据在同一事务内写入
var ErrNoTransaction = errors.New("outbox publish requires a transaction in context")

// OutboxPublisher 基于 Outbox 模式的领域事件发布者
type OutboxPublisher struct {
	pub         messagequeue.EventPublisher
	topicPrefix string
}

// NewOutboxPublisher pub 通常为 outbox.NewPublisher(manager)
func NewOutboxPublisher(pub messagequeue.EventPublisher, topicPrefix string) *OutboxPublisher {
	return &OutboxPublisher{pub: pub, topicPrefix: topicPrefix}
}

// Topic 事件类型对应的 Kafka 主题
func (p *OutboxPublisher) Topic(eventType string) string {
	if p.topicPrefix == "" {
		return eventType
	}
	return p.topicPrefix + "." + eventType
}

// Publish 在 txCtx 携带的事务内写入 outbox 表，聚合 ID 作为消息 key
func (p *OutboxPublisher) Publish(ctx context.Context, event domain.DomainEvent) error {
	tx := contextx.GetTx(ctx)
	if tx == nil {
		return ErrNoTransaction
	}
	return p.pub.PublishInTx(ctx, tx, p.Topic(event.EventType()), event.AggregateID(), event)
}

// NopPublisher outbox 关闭时使用，事件只记 debug 日志
type NopPublisher struct{}

func (NopPublisher) Publish(ctx context.Context, event domain.DomainEvent) error {
	logger.Debug(ctx, "domain event dropped, outbox disabled", "type", event.EventType(), "key", event.AggregateID())
	return nil
}

var (
	_ domain.EventPublisher = (*OutboxPublisher)(nil)
	_ domain.EventPublisher = NopPublisher{}
)
