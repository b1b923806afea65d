// Package metrics 在统一指标 registry 之上注册派单服务的业务指标
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	pkgmetrics "github.com/wyfcoding/pkg/metrics"
)

const namespace = "dispatch"

// 派单结果标签
const (
	ResultAssigned    = "assigned"
	ResultNoTrader    = "no_trader"
	ResultDuplicate   = "duplicate"
	ResultUnavailable = "unavailable"
)

// Metrics 指标集合
// HTTP 指标与 Kafka 生产者指标由底层 registry 提供，这里只追加业务指标
type Metrics struct {
	core *pkgmetrics.Metrics

	// 派单结果计数
	DispatchTotal *prometheus.CounterVec
	// 派单事务耗时，按结果区分
	DispatchDuration *prometheus.HistogramVec
	// 订单状态流转计数
	OrderTransitions *prometheus.CounterVec
	// 通知投递结果
	NotificationsTotal *prometheus.CounterVec
	// 通知队列积压
	NotificationQueueDepth prometheus.Gauge
	// outbox 已推送事件数
	OutboxPublished *prometheus.CounterVec
}

// New 创建指标实例，每次调用持有独立 registry
func New(serviceName string) *Metrics {
	core := pkgmetrics.NewMetrics(serviceName)
	constLabels := prometheus.Labels{"service": serviceName}

	return &Metrics{
		core: core,
		DispatchTotal: core.NewCounterVec(&prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "orders_total",
			Help:        "Merchant orders by dispatch result",
			ConstLabels: constLabels,
		}, []string{"result"}),
		DispatchDuration: core.NewHistogramVec(&prometheus.HistogramOpts{
			Namespace:   namespace,
			Name:        "dispatch_duration_seconds",
			Help:        "Dispatch transaction duration in seconds",
			ConstLabels: constLabels,
			Buckets:     []float64{.001, .0025, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		}, []string{"result"}),
		OrderTransitions: core.NewCounterVec(&prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "order_transitions_total",
			Help:        "Order status transitions",
			ConstLabels: constLabels,
		}, []string{"from", "to"}),
		NotificationsTotal: core.NewCounterVec(&prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "notifications_total",
			Help:        "Trader notifications by delivery result",
			ConstLabels: constLabels,
		}, []string{"result"}),
		NotificationQueueDepth: core.NewGauge(&prometheus.GaugeOpts{
			Namespace:   namespace,
			Name:        "notification_queue_depth",
			Help:        "Pending trader notifications",
			ConstLabels: constLabels,
		}),
		OutboxPublished: core.NewCounterVec(&prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "outbox_published_total",
			Help:        "Domain events pushed from outbox",
			ConstLabels: constLabels,
		}, []string{"topic"}),
	}
}

// Core 返回底层统一指标，供 Kafka 生产者等组件注册自身指标
func (m *Metrics) Core() *pkgmetrics.Metrics {
	return m.core
}

// Handler 返回 /metrics 处理器
func (m *Metrics) Handler() http.Handler {
	return m.core.Handler()
}

// 以下方法允许 nil 接收者，未启用指标时调用方无需判空

// RecordHTTPRequest 记录 HTTP 请求
func (m *Metrics) RecordHTTPRequest(method, path string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.core.HTTPRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	m.core.HTTPRequestDuration.WithLabelValues(method, path).Observe(d.Seconds())
}

// ObserveDispatch 记录一次派单结果与耗时
func (m *Metrics) ObserveDispatch(result string, d time.Duration) {
	if m == nil {
		return
	}
	m.DispatchTotal.WithLabelValues(result).Inc()
	m.DispatchDuration.WithLabelValues(result).Observe(d.Seconds())
}

// RecordTransition 记录订单状态流转
func (m *Metrics) RecordTransition(from, to string) {
	if m == nil {
		return
	}
	m.OrderTransitions.WithLabelValues(from, to).Inc()
}

// RecordNotification 记录通知投递结果
func (m *Metrics) RecordNotification(result string) {
	if m == nil {
		return
	}
	m.NotificationsTotal.WithLabelValues(result).Inc()
}

// SetNotificationQueueDepth 更新通知队列积压
func (m *Metrics) SetNotificationQueueDepth(n int) {
	if m == nil {
		return
	}
	m.NotificationQueueDepth.Set(float64(n))
}

// RecordOutboxPublished 记录一条 outbox 事件推送成功
func (m *Metrics) RecordOutboxPublished(topic string) {
	if m == nil {
		return
	}
	m.OutboxPublished.WithLabelValues(topic).Inc()
}
