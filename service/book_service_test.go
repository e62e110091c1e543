package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"matchbook/domain/orderbook"
	"matchbook/infra/codec"
	"matchbook/infra/idgen"
	"matchbook/infra/metrics"
	"matchbook/infra/outbox"
)

var (
	openTime   = time.Date(2024, 3, 4, 12, 0, 0, 0, time.UTC)
	closedTime = time.Date(2024, 3, 4, 17, 0, 0, 0, time.UTC)
)

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Set(t time.Time) {
	c.mu.Lock()
	c.t = t
	c.mu.Unlock()
}

type memLog struct {
	entries []outbox.Entry
	err     error
}

func (m *memLog) Append(entries ...outbox.Entry) error {
	if m.err != nil {
		return m.err
	}
	m.entries = append(m.entries, entries...)
	return nil
}

func newService(t *testing.T, opts ...Option) (*BookService, *clock, *idgen.Sequence) {
	t.Helper()
	c := &clock{t: openTime}
	book := orderbook.New(orderbook.Config{Session: orderbook.NewYorkSession}, orderbook.WithClock(c.Now))
	opts = append([]Option{WithClock(c.Now)}, opts...)
	return New(book, opts...), c, idgen.NewSequence(0)
}

func TestSubmitRecordsTrades(t *testing.T) {
	log := &memLog{}
	svc, _, gen := newService(t, WithTradeLog(log), WithStartSeq(41))

	sell := orderbook.NewOrder(gen, orderbook.GTC, orderbook.Sell, 100, 5)
	trades, err := svc.Submit(sell)
	require.NoError(t, err)
	assert.Empty(t, trades)
	assert.Empty(t, log.entries)

	buy := orderbook.NewOrder(gen, orderbook.GTC, orderbook.Buy, 101, 3)
	trades, err = svc.Submit(buy)
	require.NoError(t, err)
	require.Len(t, trades, 1)

	require.Len(t, log.entries, 1)
	assert.Equal(t, uint64(42), log.entries[0].Seq)

	ev, err := codec.DecodeTrade(log.entries[0].Payload)
	require.NoError(t, err)
	assert.Equal(t, uint64(42), ev.Seq)
	assert.Equal(t, trades[0], ev.Trade)
	assert.True(t, ev.Time.Equal(openTime))
}

func TestSubmitReturnsTradesWhenRecordFails(t *testing.T) {
	boom := errors.New("disk full")
	svc, _, gen := newService(t, WithTradeLog(&memLog{err: boom}))

	_, err := svc.Submit(orderbook.NewOrder(gen, orderbook.GTC, orderbook.Sell, 100, 1))
	require.NoError(t, err)

	trades, err := svc.Submit(orderbook.NewOrder(gen, orderbook.GTC, orderbook.Buy, 100, 1))
	require.ErrorIs(t, err, boom)
	assert.Len(t, trades, 1)
}

func TestSubmitRejectionsCounted(t *testing.T) {
	m := metrics.New()
	svc, _, gen := newService(t, WithMetrics(m))

	o := orderbook.NewOrder(gen, orderbook.GTC, orderbook.Buy, 100, 1)
	_, err := svc.Submit(o)
	require.NoError(t, err)

	_, err = svc.Submit(o)
	assert.ErrorIs(t, err, orderbook.ErrDuplicateOrder)

	_, err = svc.Submit(orderbook.NewOrder(gen, orderbook.GTC, orderbook.Buy, 100, 0))
	assert.ErrorIs(t, err, orderbook.ErrZeroQuantity)

	_, err = svc.Submit(nil)
	assert.ErrorIs(t, err, orderbook.ErrNilOrder)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.OrdersAccepted.WithLabelValues("BUY")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.OrdersRejected.WithLabelValues("duplicate")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.OrdersRejected.WithLabelValues("zero_quantity")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.OrdersRejected.WithLabelValues("nil_order")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RestingOrders))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PriceLevels.WithLabelValues("bid")))
}

func TestTradeMetrics(t *testing.T) {
	m := metrics.New()
	svc, _, gen := newService(t, WithMetrics(m))

	_, _ = svc.Submit(orderbook.NewOrder(gen, orderbook.GTC, orderbook.Sell, 100, 4))
	_, _ = svc.Submit(orderbook.NewOrder(gen, orderbook.GTC, orderbook.Sell, 101, 4))
	_, err := svc.Submit(orderbook.NewOrder(gen, orderbook.GTC, orderbook.Buy, 101, 6))
	require.NoError(t, err)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Trades))
	assert.Equal(t, 6.0, testutil.ToFloat64(m.TradedQuantity))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RestingOrders))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PriceLevels.WithLabelValues("ask")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.PriceLevels.WithLabelValues("bid")))
}

func TestCancel(t *testing.T) {
	m := metrics.New()
	svc, _, gen := newService(t, WithMetrics(m))

	o := orderbook.NewOrder(gen, orderbook.GTC, orderbook.Buy, 100, 1)
	_, err := svc.Submit(o)
	require.NoError(t, err)

	assert.True(t, svc.Cancel(o.ID()))
	assert.False(t, svc.Cancel(o.ID()))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.OrdersCancelled))
	assert.Empty(t, svc.Depth().Bids)
}

func TestDepth(t *testing.T) {
	svc, _, gen := newService(t)

	_, _ = svc.Submit(orderbook.NewOrder(gen, orderbook.GTC, orderbook.Buy, 99, 2))
	_, _ = svc.Submit(orderbook.NewOrder(gen, orderbook.GTC, orderbook.Buy, 99, 3))
	_, _ = svc.Submit(orderbook.NewOrder(gen, orderbook.GTC, orderbook.Sell, 105, 1))

	assert.Equal(t, orderbook.Infos{
		Bids: []orderbook.LevelInfo{{Price: 99, Quantity: 5}},
		Asks: []orderbook.LevelInfo{{Price: 105, Quantity: 1}},
	}, svc.Depth())
}

func TestStatusTracksSession(t *testing.T) {
	m := metrics.New()
	svc, c, gen := newService(t, WithMetrics(m))

	_, _ = svc.Submit(orderbook.NewOrder(gen, orderbook.GFD, orderbook.Buy, 99, 2))
	_, _ = svc.Submit(orderbook.NewOrder(gen, orderbook.GTC, orderbook.Sell, 105, 1))

	st := svc.Status()
	assert.True(t, st.Open)
	assert.False(t, st.GFDExpiredToday)
	assert.Equal(t, 2, st.RestingOrders)
	assert.True(t, st.HasBid)
	assert.Equal(t, orderbook.Price(99), st.BestBid)
	assert.Equal(t, orderbook.Price(105), st.BestAsk)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SessionOpen))

	c.Set(closedTime)
	st = svc.Status()
	assert.False(t, st.Open)
	assert.True(t, st.GFDExpiredToday)
	assert.Equal(t, 1, st.RestingOrders)
	assert.False(t, st.HasBid)
	assert.Equal(t, 0, st.BidLevels)
	assert.Equal(t, 1, st.AskLevels)
	assert.Equal(t, 0.0, testutil.ToFloat64(m.SessionOpen))
}

func TestRunSessionTickerExpiresGFD(t *testing.T) {
	svc, c, gen := newService(t)
	_, _ = svc.Submit(orderbook.NewOrder(gen, orderbook.GFD, orderbook.Buy, 99, 2))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ticks := make(chan Status, 16)
	go svc.RunSessionTicker(ctx, 2*time.Millisecond, func(st Status) {
		select {
		case ticks <- st:
		default:
		}
	})

	c.Set(closedTime)
	require.Eventually(t, func() bool {
		select {
		case st := <-ticks:
			return st.GFDExpiredToday && st.RestingOrders == 0
		default:
			return false
		}
	}, time.Second, 2*time.Millisecond)
}

func TestConcurrentSubmitAndCancel(t *testing.T) {
	svc, _, _ := newService(t)
	gen := idgen.NewSequence(0)

	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			side := orderbook.Buy
			price := orderbook.Price(90 + w)
			if w%2 == 1 {
				side = orderbook.Sell
				price = orderbook.Price(110 + w)
			}
			for i := 0; i < 200; i++ {
				o := orderbook.NewOrder(gen, orderbook.GTC, side, price, 1)
				_, err := svc.Submit(o)
				assert.NoError(t, err)
				if i%2 == 0 {
					assert.True(t, svc.Cancel(o.ID()))
				}
			}
		}(w)
	}
	wg.Wait()

	assert.Equal(t, 400, svc.Status().RestingOrders)
}

func TestStatusOpenFollowsBookClock(t *testing.T) {
	bookClock := &clock{t: closedTime}
	book := orderbook.New(orderbook.Config{Session: orderbook.NewYorkSession}, orderbook.WithClock(bookClock.Now))
	svc := New(book, WithClock(func() time.Time { return openTime }))

	st := svc.Status()
	assert.False(t, st.Open)
	assert.True(t, st.GFDExpiredToday)
}
