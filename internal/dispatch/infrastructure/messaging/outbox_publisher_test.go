package messaging

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wyfcoding/orderdispatch/internal/dispatch/domain"
	"github.com/wyfcoding/orderdispatch/internal/dispatch/infrastructure/persistence"
	"github.com/wyfcoding/orderdispatch/pkg/db"
	"github.com/wyfcoding/orderdispatch/pkg/metrics"
	"github.com/wyfcoding/pkg/messagequeue/outbox"
)

type sentMessage struct {
	topic, key string
	payload    []byte
}

type fakeProducer struct {
	mu   sync.Mutex
	sent []sentMessage
	err  error
}

func (f *fakeProducer) PublishToTopic(_ context.Context, topic string, key, value []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, sentMessage{topic: topic, key: string(key), payload: value})
	return nil
}

func (f *fakeProducer) messages() []sentMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sentMessage(nil), f.sent...)
}

func setup(t *testing.T) (*db.DB, *outbox.Manager) {
	t.Helper()
	d, err := db.Init(db.Config{Driver: "sqlite", DSN: filepath.Join(t.TempDir(), "outbox.db")})
	require.NoError(t, err)
	t.Cleanup(func() { _ = d.Close() })
	require.NoError(t, persistence.AutoMigrate(d.DB))
	return d, outbox.NewManager(d.DB, nil)
}

func TestPublishWritesOutboxRowInTransaction(t *testing.T) {
	d, mgr := setup(t)
	pub := NewOutboxPublisher(outbox.NewPublisher(mgr), "dispatch")

	err := d.Transaction(context.Background(), func(txCtx context.Context) error {
		return pub.Publish(txCtx, domain.OrderAssignedEvent{OrderID: 1, OrderNo: "ORD1", TraderID: 3})
	})
	require.NoError(t, err)

	var msgs []outbox.Message
	require.NoError(t, d.DB.Find(&msgs).Error)
	require.Len(t, msgs, 1)
	assert.Equal(t, "dispatch.order.assigned", msgs[0].Topic)
	assert.Equal(t, "ORD1", msgs[0].Key)
	assert.Equal(t, outbox.StatusPending, msgs[0].Status)
	assert.Contains(t, string(msgs[0].Payload), `"trader_id":3`)
}

func TestPublishRolledBackWithTransaction(t *testing.T) {
	d, mgr := setup(t)
	pub := NewOutboxPublisher(outbox.NewPublisher(mgr), "dispatch")

	err := d.Transaction(context.Background(), func(txCtx context.Context) error {
		require.NoError(t, pub.Publish(txCtx, domain.TicketEvent{Type: domain.EventTicketOpened, TicketID: 1, TicketNo: "TK1"}))
		return errors.New("abort")
	})
	require.Error(t, err)

	var n int64
	require.NoError(t, d.DB.Model(&outbox.Message{}).Count(&n).Error)
	assert.Zero(t, n)
}

func TestPublishWithoutTransaction(t *testing.T) {
	_, mgr := setup(t)
	pub := NewOutboxPublisher(outbox.NewPublisher(mgr), "dispatch")

	err := pub.Publish(context.Background(), domain.OrderAssignedEvent{OrderNo: "ORD1"})
	assert.ErrorIs(t, err, ErrNoTransaction)
}

func TestTopic(t *testing.T) {
	assert.Equal(t, "dispatch.ticket.closed", NewOutboxPublisher(nil, "dispatch").Topic(domain.EventTicketClosed))
	assert.Equal(t, "ticket.closed", NewOutboxPublisher(nil, "").Topic(domain.EventTicketClosed))
}

func TestNopPublisherDropsEvents(t *testing.T) {
	assert.NoError(t, NopPublisher{}.Publish(context.Background(), domain.OrderAssignedEvent{OrderNo: "ORD1"}))
}

func TestKafkaPusherRecordsPublished(t *testing.T) {
	m := metrics.New("messaging-test")
	producer := &fakeProducer{}
	push := NewKafkaPusher(producer, m)

	require.NoError(t, push(context.Background(), "dispatch.order.assigned", "ORD1", []byte(`{}`)))
	require.Len(t, producer.messages(), 1)
	assert.Equal(t, "ORD1", producer.messages()[0].key)
	assert.InDelta(t, 1, testutil.ToFloat64(m.OutboxPublished.WithLabelValues("dispatch.order.assigned")), 0)

	producer.err = errors.New("broker down")
	err := push(context.Background(), "dispatch.order.assigned", "ORD2", []byte(`{}`))
	assert.EqualError(t, err, "broker down")
	assert.InDelta(t, 1, testutil.ToFloat64(m.OutboxPublished.WithLabelValues("dispatch.order.assigned")), 0)
}

func TestProcessorDeliversPendingEvents(t *testing.T) {
	d, mgr := setup(t)
	pub := NewOutboxPublisher(outbox.NewPublisher(mgr), "dispatch")
	require.NoError(t, d.Transaction(context.Background(), func(txCtx context.Context) error {
		return pub.Publish(txCtx, domain.OrderStatusChangedEvent{OrderID: 1, OrderNo: "ORD1", From: domain.OrderStatusNew, To: domain.OrderStatusInWork})
	}))

	producer := &fakeProducer{}
	proc := outbox.NewProcessor(mgr, NewKafkaPusher(producer, nil), 10, 20*time.Millisecond)
	proc.Start()
	defer proc.Stop()

	require.Eventually(t, func() bool {
		var msg outbox.Message
		if err := d.DB.First(&msg).Error; err != nil {
			return false
		}
		return msg.Status == outbox.StatusSent
	}, 3*time.Second, 20*time.Millisecond)

	sent := producer.messages()
	require.Len(t, sent, 1)
	assert.Equal(t, "dispatch.order.status_changed", sent[0].topic)
	assert.Equal(t, "ORD1", sent[0].key)
}
