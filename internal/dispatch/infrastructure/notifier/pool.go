package notifier

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/wyfcoding/orderdispatch/internal/dispatch/domain"
	"github.com/wyfcoding/orderdispatch/pkg/logger"
	"github.com/wyfcoding/orderdispatch/pkg/metrics"
)

// ErrQueueFull 投递队列已满
var ErrQueueFull = errors.New("notification queue is full")

// ErrPoolClosed 投递池已关闭
var ErrPoolClosed = errors.New("notification pool is closed")

const (
	resultSent    = "sent"
	resultFailed  = "failed"
	resultDropped = "dropped"
)

type job struct {
	ctx           context.Context
	channelHandle string
	summary       domain.OrderSummary
}

// PoolConfig 投递池配置
type PoolConfig struct {
	Workers   int
	QueueSize int
	// 单条通知的投递超时
	Timeout time.Duration
}

// Pool 有界异步投递池，Notify 只入队不阻塞
type Pool struct {
	sender  domain.Notifier
	metrics *metrics.Metrics
	timeout time.Duration
	queue   chan job
	wg      sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

// NewPool 创建并启动投递池
func NewPool(sender domain.Notifier, cfg PoolConfig, m *metrics.Metrics) *Pool {
	p := &Pool{
		sender:  sender,
		metrics: m,
		timeout: cfg.Timeout,
		queue:   make(chan job, max(cfg.QueueSize, 1)),
	}
	for i := 0; i < max(cfg.Workers, 1); i++ {
		p.wg.Add(1)
		go p.worker()
	}
	return p
}

// Notify 入队，队列满时丢弃并返回 ErrQueueFull
func (p *Pool) Notify(ctx context.Context, channelHandle string, summary domain.OrderSummary) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrPoolClosed
	}
	select {
	case p.queue <- job{ctx: ctx, channelHandle: channelHandle, summary: summary}:
		p.metrics.SetNotificationQueueDepth(len(p.queue))
		return nil
	default:
		p.metrics.RecordNotification(resultDropped)
		return ErrQueueFull
	}
}

func (p *Pool) worker() {
	defer p.wg.Done()
	for j := range p.queue {
		p.metrics.SetNotificationQueueDepth(len(p.queue))
		p.deliver(j)
	}
}

func (p *Pool) deliver(j job) {
	ctx := j.ctx
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}
	if err := p.sender.Notify(ctx, j.channelHandle, j.summary); err != nil {
		p.metrics.RecordNotification(resultFailed)
		logger.Error(ctx, "trader notification failed", "order_no", j.summary.OrderNo, "trader_id", j.summary.TraderID, "error", err)
		return
	}
	p.metrics.RecordNotification(resultSent)
	logger.Debug(ctx, "trader notified", "order_no", j.summary.OrderNo, "trader_id", j.summary.TraderID)
}

// Close 停止接收新通知并等待队列中的通知投递完毕
func (p *Pool) Close(ctx context.Context) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.queue)
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

var _ domain.Notifier = (*Pool)(nil)
