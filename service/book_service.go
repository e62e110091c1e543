package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"matchbook/domain/orderbook"
	"matchbook/infra/codec"
	"matchbook/infra/idgen"
	"matchbook/infra/metrics"
	"matchbook/infra/outbox"
)

// TradeLog receives encoded trade events. *outbox.Outbox satisfies it.
type TradeLog interface {
	Append(entries ...outbox.Entry) error
}

type Option func(*BookService)

func WithTradeLog(l TradeLog) Option {
	return func(s *BookService) { s.trades = l }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *BookService) { s.metrics = m }
}

func WithLogger(l zerolog.Logger) Option {
	return func(s *BookService) { s.log = l }
}

// WithStartSeq makes the first published trade carry seq+1.
func WithStartSeq(seq uint64) Option {
	return func(s *BookService) { s.seq.Reset(seq) }
}

func WithClock(now func() time.Time) Option {
	return func(s *BookService) { s.now = now }
}

type BookService struct {
	mu   sync.Mutex
	book *orderbook.OrderBook

	seq     *idgen.Sequence
	trades  TradeLog
	metrics *metrics.Metrics

	now func() time.Time
	log zerolog.Logger
}

func New(book *orderbook.OrderBook, opts ...Option) *BookService {
	s := &BookService{
		book: book,
		seq:  idgen.NewSequence(0),
		now:  time.Now,
		log:  zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// -------------------- Commands --------------------

// Submit runs o through the book. Trades are returned even when recording
// them fails; the error then wraps the outbox failure.
func (s *BookService) Submit(o *orderbook.Order) ([]orderbook.Trade, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	start := s.now()
	trades, err := s.book.Submit(o)
	if err != nil {
		s.observeRejected(err)
		return nil, err
	}
	s.observeAccepted(o, trades, start)

	if err := s.record(trades); err != nil {
		s.log.Error().Err(err).Uint64("order_id", uint64(o.ID())).Int("trades", len(trades)).Msg("trades not recorded")
		return trades, fmt.Errorf("record trades for order %d: %w", o.ID(), err)
	}
	return trades, nil
}

func (s *BookService) Cancel(id orderbook.OrderID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	ok := s.book.CancelOrder(id)
	if ok && s.metrics != nil {
		s.metrics.OrdersCancelled.Inc()
	}
	s.observeBook()
	return ok
}

// -------------------- Queries --------------------

func (s *BookService) Depth() orderbook.Infos {
	s.mu.Lock()
	defer s.mu.Unlock()

	infos := s.book.Infos()
	s.observeBook()
	return infos
}

type Status struct {
	Open            bool
	GFDExpiredToday bool
	RestingOrders   int
	BidLevels       int
	AskLevels       int
	BestBid         orderbook.Price
	BestAsk         orderbook.Price
	HasBid          bool
	HasAsk          bool
	LastTradeSeq    uint64
}

// Status reports session and book state. Like Depth it drives the GFD
// state machine.
func (s *BookService) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status()
}

func (s *BookService) status() Status {
	s.book.Tick()

	st := Status{
		Open:            s.book.IsOpen(),
		GFDExpiredToday: s.book.GFDExpiredToday(),
		RestingOrders:   s.book.Size(),
		LastTradeSeq:    s.seq.Current(),
	}
	st.BidLevels, st.AskLevels = s.book.Levels()
	st.BestBid, st.HasBid = s.book.BestBid()
	st.BestAsk, st.HasAsk = s.book.BestAsk()

	s.observeBook()
	if s.metrics != nil {
		open := 0.0
		if st.Open {
			open = 1
		}
		s.metrics.SessionOpen.Set(open)
	}
	return st
}

// -------------------- Jobs --------------------

// RunSessionTicker polls the book every interval so GFD orders expire at
// the close even without order flow. onTick may be nil.
func (s *BookService) RunSessionTicker(ctx context.Context, interval time.Duration, onTick func(Status)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			st := s.Status()
			if onTick != nil {
				onTick(st)
			}
		}
	}
}

// -------------------- Recording --------------------

func (s *BookService) record(trades []orderbook.Trade) error {
	if len(trades) == 0 {
		return nil
	}

	at := s.now()
	entries := make([]outbox.Entry, len(trades))
	for i, t := range trades {
		ev := codec.TradeEvent{Seq: s.seq.Next(), Trade: t, Time: at}
		entries[i] = outbox.Entry{Seq: ev.Seq, Payload: codec.EncodeTrade(ev)}
	}
	if s.trades == nil {
		return nil
	}
	return s.trades.Append(entries...)
}

func (s *BookService) observeAccepted(o *orderbook.Order, trades []orderbook.Trade, start time.Time) {
	if s.metrics == nil {
		return
	}
	s.metrics.OrdersAccepted.WithLabelValues(o.Side().String()).Inc()
	for _, t := range trades {
		s.metrics.Trades.Inc()
		s.metrics.TradedQuantity.Add(float64(t.Quantity))
	}
	s.metrics.SubmitLatency.Observe(s.now().Sub(start).Seconds())
	s.observeBook()
}

func (s *BookService) observeRejected(err error) {
	if s.metrics == nil {
		return
	}
	s.metrics.OrdersRejected.WithLabelValues(rejectReason(err)).Inc()
}

func (s *BookService) observeBook() {
	if s.metrics == nil {
		return
	}
	bids, asks := s.book.Levels()
	s.metrics.RestingOrders.Set(float64(s.book.Size()))
	s.metrics.PriceLevels.WithLabelValues("bid").Set(float64(bids))
	s.metrics.PriceLevels.WithLabelValues("ask").Set(float64(asks))
}

func rejectReason(err error) string {
	switch {
	case errors.Is(err, orderbook.ErrDuplicateOrder):
		return "duplicate"
	case errors.Is(err, orderbook.ErrUnknownSide):
		return "unknown_side"
	case errors.Is(err, orderbook.ErrZeroQuantity):
		return "zero_quantity"
	case errors.Is(err, orderbook.ErrNilOrder):
		return "nil_order"
	default:
		return "other"
	}
}
