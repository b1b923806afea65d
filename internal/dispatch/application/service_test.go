package application

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wyfcoding/orderdispatch/internal/dispatch/domain"
	"github.com/wyfcoding/orderdispatch/internal/dispatch/infrastructure/messaging"
	"github.com/wyfcoding/orderdispatch/internal/dispatch/infrastructure/persistence"
	"github.com/wyfcoding/orderdispatch/pkg/db"
	"github.com/wyfcoding/orderdispatch/pkg/metrics"
	"github.com/wyfcoding/pkg/messagequeue/outbox"
)

type recordingNotifier struct {
	mu    sync.Mutex
	calls []domain.OrderSummary
	to    []string
	err   error
}

func (n *recordingNotifier) Notify(_ context.Context, channelHandle string, summary domain.OrderSummary) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls = append(n.calls, summary)
	n.to = append(n.to, channelHandle)
	return n.err
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.calls)
}

type fixture struct {
	svc      *DispatchService
	db       *db.DB
	notifier *recordingNotifier
}

func newFixture(t *testing.T, busyPolicy bool) *fixture {
	t.Helper()
	d, err := db.Init(db.Config{Driver: "sqlite", DSN: filepath.Join(t.TempDir(), "dispatch.db")})
	require.NoError(t, err)
	t.Cleanup(func() { _ = d.Close() })
	require.NoError(t, persistence.AutoMigrate(d.DB))

	var seq atomic.Int64
	n := &recordingNotifier{}
	events := messaging.NewOutboxPublisher(outbox.NewPublisher(outbox.NewManager(d.DB, nil)), "dispatch")
	svc := NewDispatchService(Deps{
		Tx:       d,
		Traders:  persistence.NewTraderRepository(d.DB),
		Orders:   persistence.NewOrderRepository(d.DB),
		Payouts:  persistence.NewPayoutRepository(d.DB),
		Tickets:  persistence.NewTicketRepository(d.DB),
		Events:   events,
		Notifier: n,
		Metrics:  metrics.New("dispatch-test"),
		NewNo: func(prefix string) string {
			return fmt.Sprintf("%s%d", prefix, seq.Add(1))
		},
		BusyPolicy: busyPolicy,
		Timeout:    5 * time.Second,
	})
	return &fixture{svc: svc, db: d, notifier: n}
}

func (f *fixture) trader(t *testing.T, handle, requisites string, enabled bool) *TraderDTO {
	t.Helper()
	ctx := context.Background()
	tr, _, err := f.svc.Traders.EnsureTrader(ctx, handle)
	require.NoError(t, err)
	if requisites != "" {
		tr, err = f.svc.Traders.SetRequisites(ctx, tr.ID, requisites)
		require.NoError(t, err)
	}
	if enabled {
		tr, err = f.svc.Traders.SetEnabled(ctx, tr.ID, true)
		require.NoError(t, err)
	}
	return tr
}

func dispatchCmd(id string) DispatchCommand {
	return DispatchCommand{MerchantOrderID: id, Amount: decimal.RequireFromString("150.50"), Currency: " usdt "}
}

func TestDispatchAssignsOrder(t *testing.T) {
	f := newFixture(t, false)
	tr := f.trader(t, "chat-1", "card 4242", true)

	order, err := f.svc.Dispatcher.Dispatch(context.Background(), dispatchCmd("m-1"))
	require.NoError(t, err)
	assert.Equal(t, tr.ID, order.TraderID)
	assert.Equal(t, "new", order.Status)
	assert.Equal(t, "USDT", order.Currency)
	assert.Equal(t, "150.5", order.Amount)
	assert.Equal(t, "ORD1", order.OrderNo)

	require.Equal(t, 1, f.notifier.count())
	assert.Equal(t, "chat-1", f.notifier.to[0])
	assert.Equal(t, order.ID, f.notifier.calls[0].OrderID)

	var msgs []outbox.Message
	require.NoError(t, f.db.Find(&msgs).Error)
	require.Len(t, msgs, 1)
	assert.Equal(t, "dispatch."+domain.EventOrderAssigned, msgs[0].Topic)
	assert.Equal(t, order.OrderNo, msgs[0].Key)
}

func TestDispatchSucceedsWhenNotifierFails(t *testing.T) {
	f := newFixture(t, false)
	tr := f.trader(t, "chat-1", "card 4242", true)
	f.notifier.err = errors.New("chat api down")

	order, err := f.svc.Dispatcher.Dispatch(context.Background(), dispatchCmd("m-1"))
	require.NoError(t, err)
	assert.Equal(t, "new", order.Status)
	assert.Equal(t, tr.ID, order.TraderID)
	assert.Equal(t, 1, f.notifier.count())

	var stored persistence.OrderModel
	require.NoError(t, f.db.Where("merchant_order_id = ?", "m-1").First(&stored).Error)
	assert.Equal(t, "new", stored.Status)
	assert.Equal(t, tr.ID, stored.TraderID)
}

func TestDispatchIsIdempotent(t *testing.T) {
	f := newFixture(t, false)
	f.trader(t, "chat-1", "card", true)
	ctx := context.Background()

	_, err := f.svc.Dispatcher.Dispatch(ctx, dispatchCmd("m-1"))
	require.NoError(t, err)
	_, err = f.svc.Dispatcher.Dispatch(ctx, dispatchCmd("m-1"))
	assert.ErrorIs(t, err, domain.ErrDuplicateOrder)

	var count int64
	require.NoError(t, f.db.Model(&persistence.OrderModel{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)
	assert.Equal(t, 1, f.notifier.count())
}

func TestDispatchNoTrader(t *testing.T) {
	f := newFixture(t, false)
	// 有收款信息但未开启
	f.trader(t, "chat-1", "card", false)
	// 未填写收款信息
	f.trader(t, "chat-2", "", false)

	_, err := f.svc.Dispatcher.Dispatch(context.Background(), dispatchCmd("m-1"))
	assert.ErrorIs(t, err, domain.ErrNoTraderAvailable)

	var count int64
	require.NoError(t, f.db.Model(&persistence.OrderModel{}).Count(&count).Error)
	assert.Zero(t, count)
	assert.Zero(t, f.notifier.count())
}

func TestDispatchValidation(t *testing.T) {
	f := newFixture(t, false)
	f.trader(t, "chat-1", "card", true)
	ctx := context.Background()

	tests := []struct {
		name string
		cmd  DispatchCommand
		want error
	}{
		{"empty merchant id", DispatchCommand{MerchantOrderID: " ", Amount: decimal.NewFromInt(1), Currency: "USDT"}, domain.ErrInvalidArgument},
		{"empty currency", DispatchCommand{MerchantOrderID: "m", Amount: decimal.NewFromInt(1)}, domain.ErrInvalidArgument},
		{"zero amount", DispatchCommand{MerchantOrderID: "m", Amount: decimal.Zero, Currency: "USDT"}, domain.ErrInvalidAmount},
		{"negative amount", DispatchCommand{MerchantOrderID: "m", Amount: decimal.NewFromInt(-3), Currency: "USDT"}, domain.ErrInvalidAmount},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Dispatcher.Dispatch(ctx, tt.cmd)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestDispatchPicksSmallestTraderID(t *testing.T) {
	f := newFixture(t, false)
	first := f.trader(t, "chat-1", "card", true)
	f.trader(t, "chat-2", "card", true)
	f.trader(t, "chat-3", "card", true)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		order, err := f.svc.Dispatcher.Dispatch(ctx, dispatchCmd(fmt.Sprintf("m-%d", i)))
		require.NoError(t, err)
		assert.Equal(t, first.ID, order.TraderID)
	}
}

func TestDispatchExclusivityWithBusyPolicy(t *testing.T) {
	f := newFixture(t, true)
	const traders, requests = 3, 12
	for i := 0; i < traders; i++ {
		f.trader(t, fmt.Sprintf("chat-%d", i), "card", true)
	}

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		assigned = map[uint]int{}
		noTrader int
	)
	for i := 0; i < requests; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			order, err := f.svc.Dispatcher.Dispatch(context.Background(), dispatchCmd(fmt.Sprintf("m-%d", i)))
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				assert.ErrorIs(t, err, domain.ErrNoTraderAvailable)
				noTrader++
				return
			}
			assigned[order.TraderID]++
		}(i)
	}
	wg.Wait()

	assert.Len(t, assigned, traders)
	for id, n := range assigned {
		assert.Equal(t, 1, n, "trader %d holds more than one open order", id)
	}
	assert.Equal(t, requests-traders, noTrader)
}

func TestTransitionReleasesBusyTrader(t *testing.T) {
	f := newFixture(t, true)
	tr := f.trader(t, "chat-1", "card", true)
	ctx := context.Background()

	order, err := f.svc.Dispatcher.Dispatch(ctx, dispatchCmd("m-1"))
	require.NoError(t, err)

	busy, err := f.svc.Query.GetTrader(ctx, tr.ID)
	require.NoError(t, err)
	assert.True(t, busy.Busy)

	_, err = f.svc.Dispatcher.Dispatch(ctx, dispatchCmd("m-2"))
	assert.ErrorIs(t, err, domain.ErrNoTraderAvailable)

	taken, err := f.svc.Orders.Transition(ctx, order.ID, domain.OrderStatusInWork)
	require.NoError(t, err)
	assert.Equal(t, "in_work", taken.Status)

	free, err := f.svc.Query.GetTrader(ctx, tr.ID)
	require.NoError(t, err)
	assert.False(t, free.Busy)

	_, err = f.svc.Dispatcher.Dispatch(ctx, dispatchCmd("m-2"))
	require.NoError(t, err)
}

func TestTransitionFSM(t *testing.T) {
	f := newFixture(t, false)
	f.trader(t, "chat-1", "card", true)
	ctx := context.Background()

	order, err := f.svc.Dispatcher.Dispatch(ctx, dispatchCmd("m-1"))
	require.NoError(t, err)

	_, err = f.svc.Orders.Transition(ctx, order.ID, domain.OrderStatusDone)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	_, err = f.svc.Orders.Transition(ctx, order.ID, domain.OrderStatusInWork)
	require.NoError(t, err)
	done, err := f.svc.Orders.Transition(ctx, order.ID, domain.OrderStatusDone)
	require.NoError(t, err)
	assert.Equal(t, "done", done.Status)

	_, err = f.svc.Orders.Transition(ctx, order.ID, domain.OrderStatusCancel)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
	_, err = f.svc.Orders.Transition(ctx, order.ID, domain.OrderStatusNew)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	_, err = f.svc.Orders.Transition(ctx, 999, domain.OrderStatusCancel)
	assert.ErrorIs(t, err, domain.ErrOrderNotFound)
}

func TestSetEnabledRequiresRequisites(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()
	tr := f.trader(t, "chat-1", "", false)

	_, err := f.svc.Traders.SetEnabled(ctx, tr.ID, true)
	assert.ErrorIs(t, err, domain.ErrRequisitesMissing)

	_, err = f.svc.Traders.SetRequisites(ctx, tr.ID, "  card 1111  ")
	require.NoError(t, err)
	got, err := f.svc.Query.GetTrader(ctx, tr.ID)
	require.NoError(t, err)
	assert.Equal(t, "card 1111", got.Requisites)
	assert.False(t, got.RequisitesEnabled, "saving requisites must not enable dispatch")

	on, err := f.svc.Traders.SetEnabled(ctx, tr.ID, true)
	require.NoError(t, err)
	assert.True(t, on.RequisitesEnabled)

	// 重复开启无副作用
	on, err = f.svc.Traders.SetEnabled(ctx, tr.ID, true)
	require.NoError(t, err)
	assert.True(t, on.RequisitesEnabled)

	_, err = f.svc.Traders.SetEnabled(ctx, 404, true)
	assert.ErrorIs(t, err, domain.ErrTraderNotFound)
}

func TestEnsureTrader(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()

	tr, created, err := f.svc.Traders.EnsureTrader(ctx, "chat-1")
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "0", tr.Deposit)

	again, created, err := f.svc.Traders.EnsureTrader(ctx, "chat-1")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, tr.ID, again.ID)

	_, _, err = f.svc.Traders.EnsureTrader(ctx, "")
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)
}

func TestPayoutLifecycle(t *testing.T) {
	f := newFixture(t, false)
	tr := f.trader(t, "chat-1", "", false)
	ctx := context.Background()

	_, err := f.svc.Payouts.RequestPayout(ctx, RequestPayoutCommand{TraderID: tr.ID, Amount: decimal.Zero, Currency: "USDT"})
	assert.ErrorIs(t, err, domain.ErrInvalidAmount)
	_, err = f.svc.Payouts.RequestPayout(ctx, RequestPayoutCommand{TraderID: 404, Amount: decimal.NewFromInt(10), Currency: "USDT"})
	assert.ErrorIs(t, err, domain.ErrTraderNotFound)

	p, err := f.svc.Payouts.RequestPayout(ctx, RequestPayoutCommand{TraderID: tr.ID, Amount: decimal.NewFromInt(10), Currency: "usdt"})
	require.NoError(t, err)
	assert.Equal(t, "new", p.Status)

	_, err = f.svc.Payouts.MarkPaid(ctx, p.ID)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	approved, err := f.svc.Payouts.ReviewPayout(ctx, p.ID, true)
	require.NoError(t, err)
	assert.Equal(t, "approved", approved.Status)
	assert.NotNil(t, approved.ReviewedAt)

	_, err = f.svc.Payouts.ReviewPayout(ctx, p.ID, false)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	paid, err := f.svc.Payouts.MarkPaid(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "paid", paid.Status)

	rejected, err := f.svc.Payouts.RequestPayout(ctx, RequestPayoutCommand{TraderID: tr.ID, Amount: decimal.NewFromInt(3), Currency: "USDT"})
	require.NoError(t, err)
	rejected, err = f.svc.Payouts.ReviewPayout(ctx, rejected.ID, false)
	require.NoError(t, err)
	assert.Equal(t, "rejected", rejected.Status)

	list, err := f.svc.Query.ListPayouts(ctx, ListQuery{TraderID: tr.ID})
	require.NoError(t, err)
	assert.EqualValues(t, 2, list.Pagination.Total)
}

func TestTickets(t *testing.T) {
	f := newFixture(t, false)
	tr := f.trader(t, "chat-1", "", false)
	ctx := context.Background()

	_, err := f.svc.Tickets.OpenTicket(ctx, tr.ID, "   ")
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)

	tk, err := f.svc.Tickets.OpenTicket(ctx, tr.ID, "payment not received")
	require.NoError(t, err)
	assert.Equal(t, "open", tk.Status)

	closed, err := f.svc.Tickets.CloseTicket(ctx, tk.ID)
	require.NoError(t, err)
	assert.Equal(t, "closed", closed.Status)

	again, err := f.svc.Tickets.CloseTicket(ctx, tk.ID)
	require.NoError(t, err)
	assert.Equal(t, "closed", again.Status)
	assert.Equal(t, closed.ClosedAt, again.ClosedAt)

	list, err := f.svc.Query.ListTickets(ctx, ListQuery{TraderID: tr.ID})
	require.NoError(t, err)
	require.Len(t, list.Items, 1)
}

func TestTraderStatsAndListOrders(t *testing.T) {
	f := newFixture(t, false)
	tr := f.trader(t, "chat-1", "card", true)
	ctx := context.Background()

	var ids []uint
	for i := 0; i < 3; i++ {
		o, err := f.svc.Dispatcher.Dispatch(ctx, dispatchCmd(fmt.Sprintf("m-%d", i)))
		require.NoError(t, err)
		ids = append(ids, o.ID)
	}
	_, err := f.svc.Orders.Transition(ctx, ids[0], domain.OrderStatusCancel)
	require.NoError(t, err)

	stats, err := f.svc.Query.TraderStats(ctx, tr.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 2, stats.New)
	assert.EqualValues(t, 1, stats.Cancel)
	assert.EqualValues(t, 3, stats.Total)

	page, err := f.svc.Query.ListOrders(ctx, ListQuery{TraderID: tr.ID, Status: domain.OrderStatusNew, Page: 1, PageSize: 1})
	require.NoError(t, err)
	assert.Len(t, page.Items, 1)
	assert.EqualValues(t, 2, page.Pagination.Total)

	_, err = f.svc.Query.TraderStats(ctx, 404)
	assert.ErrorIs(t, err, domain.ErrTraderNotFound)
}

type blockingTx struct{}

func (blockingTx) Transaction(ctx context.Context, _ func(context.Context) error) error {
	<-ctx.Done()
	return ctx.Err()
}

func TestDispatchTimeoutIsUnavailable(t *testing.T) {
	svc := NewDispatcher(Deps{
		Tx:       blockingTx{},
		Notifier: &recordingNotifier{},
		Timeout:  20 * time.Millisecond,
	})

	_, err := svc.Dispatch(context.Background(), dispatchCmd("m-1"))
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrUnavailable)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestClassify(t *testing.T) {
	assert.NoError(t, classify(nil))
	assert.Equal(t, domain.ErrDuplicateOrder, classify(domain.ErrDuplicateOrder))

	wrapped := fmt.Errorf("lookup: %w", domain.ErrTraderNotFound)
	assert.Equal(t, wrapped, classify(wrapped))

	err := classify(fmt.Errorf("connection refused"))
	assert.ErrorIs(t, err, domain.ErrUnavailable)
}
