// Package notifier 负责把新订单推送给交易员：日志、Webhook、Kafka 三种发送方式与异步投递池
package notifier

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/wyfcoding/orderdispatch/internal/dispatch/domain"
	"github.com/wyfcoding/orderdispatch/pkg/logger"
)

// Notification 投递给交易员渠道的消息体
type Notification struct {
	ChannelHandle string              `json:"channel_handle"`
	Text          string              `json:"text"`
	Order         domain.OrderSummary `json:"order"`
}

func newNotification(channelHandle string, summary domain.OrderSummary) Notification {
	return Notification{
		ChannelHandle: channelHandle,
		Text:          FormatText(summary),
		Order:         summary,
	}
}

// FormatText 交易员看到的订单文本
func FormatText(s domain.OrderSummary) string {
	return fmt.Sprintf("New order %s\nMerchant ID: %s\nAmount: %s %s",
		s.OrderNo, s.MerchantOrderID, s.Amount.String(), s.Currency)
}

// LogNotifier 仅写日志，用于本地开发
type LogNotifier struct{}

func NewLogNotifier() *LogNotifier { return &LogNotifier{} }

func (LogNotifier) Notify(ctx context.Context, channelHandle string, summary domain.OrderSummary) error {
	logger.Info(ctx, "trader notification", "channel_handle", channelHandle, "order_no", summary.OrderNo, "text", FormatText(summary))
	return nil
}

// WebhookConfig Webhook 发送配置
type WebhookConfig struct {
	URL        string
	Timeout    time.Duration
	MaxRetries int
}

// WebhookNotifier 通过 HTTP POST 推送到聊天网关
// 网络错误与非 2xx 响应由 resty 按指数退避重试
type WebhookNotifier struct {
	client *resty.Client
	url    string
}

// NewWebhookNotifier 创建 Webhook 发送器，MaxRetries 为总尝试次数
func NewWebhookNotifier(cfg WebhookConfig) *WebhookNotifier {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	client := resty.New().
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json").
		SetRetryCount(max(cfg.MaxRetries, 1) - 1).
		SetRetryWaitTime(200 * time.Millisecond).
		SetRetryMaxWaitTime(2 * time.Second).
		AddRetryCondition(func(resp *resty.Response, err error) bool {
			return err != nil || resp.IsError()
		})
	return &WebhookNotifier{client: client, url: cfg.URL}
}

func (w *WebhookNotifier) Notify(ctx context.Context, channelHandle string, summary domain.OrderSummary) error {
	resp, err := w.client.R().
		SetContext(ctx).
		SetHeader("X-Request-ID", logger.RequestIDFromContext(ctx)).
		SetBody(newNotification(channelHandle, summary)).
		Post(w.url)
	if err != nil {
		return fmt.Errorf("post webhook: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("webhook returned status %d after %d attempts", resp.StatusCode(), resp.Request.Attempt)
	}
	return nil
}

// notificationSender 由 kafka.KafkaNotificationSender 实现
type notificationSender interface {
	Send(ctx context.Context, target, subject, content string) error
}

// KafkaNotifier 写入 Kafka，由渠道适配服务消费
// 生产者以 target（渠道标识）为 key，保证同一交易员的消息有序
type KafkaNotifier struct {
	sender notificationSender
}

// NewKafkaNotifier 创建 Kafka 发送器
func NewKafkaNotifier(sender notificationSender) *KafkaNotifier {
	return &KafkaNotifier{sender: sender}
}

func (k *KafkaNotifier) Notify(ctx context.Context, channelHandle string, summary domain.OrderSummary) error {
	return k.sender.Send(ctx, channelHandle, "New order "+summary.OrderNo, FormatText(summary))
}

var (
	_ domain.Notifier = LogNotifier{}
	_ domain.Notifier = (*WebhookNotifier)(nil)
	_ domain.Notifier = (*KafkaNotifier)(nil)
)
