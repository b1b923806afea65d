package messaging

import (
	"context"

	"github.com/wyfcoding/orderdispatch/pkg/metrics"
)

// topicProducer 由 kafka.Producer 实现
type topicProducer interface {
	PublishToTopic(ctx context.Context, topic string, key, value []byte) error
}

// PushFunc outbox 处理器的投递函数
type PushFunc = func(ctx context.Context, topic, key string, payload []byte) error

// NewKafkaPusher 返回供 outbox.NewProcessor 使用的投递函数
// 投递失败由处理器按指数退避重试
func NewKafkaPusher(producer topicProducer, m *metrics.Metrics) PushFunc {
	return func(ctx context.Context, topic, key string, payload []byte) error {
		if err := producer.PublishToTopic(ctx, topic, []byte(key), payload); err != nil {
			return err
		}
		m.RecordOutboxPublished(topic)
		return nil
	}
}
