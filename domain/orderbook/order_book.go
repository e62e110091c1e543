package orderbook

import (
	"errors"
	"time"

	"github.com/rs/zerolog"
)

var (
	ErrDuplicateOrder = errors.New("order already exists in order book")
	ErrUnknownSide    = errors.New("unknown order side")
	ErrZeroQuantity   = errors.New("order has no quantity")
	ErrNilOrder       = errors.New("nil order")
)

type LevelInfo struct {
	Price    Price
	Quantity Quantity
}

// Infos lists aggregated depth per side, best price first.
type Infos struct {
	Bids []LevelInfo
	Asks []LevelInfo
}

type Config struct {
	Session Session
}

type Option func(*OrderBook)

func WithLogger(l zerolog.Logger) Option {
	return func(b *OrderBook) { b.log = l }
}

// WithClock replaces time.Now for session checks.
func WithClock(now func() time.Time) Option {
	return func(b *OrderBook) { b.now = now }
}

// OrderBook is a single-writer continuous double auction with strict
// price-time priority. It is not safe for concurrent use.
type OrderBook struct {
	bids   *ledger
	asks   *ledger
	orders map[OrderID]*entry

	session         Session
	gfdExpiredToday bool

	now func() time.Time
	log zerolog.Logger
}

func New(cfg Config, opts ...Option) *OrderBook {
	b := &OrderBook{
		bids:    newLedger(true),
		asks:    newLedger(false),
		orders:  make(map[OrderID]*entry),
		session: cfg.Session,
		now:     time.Now,
		log:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Size is the number of resting orders.
func (b *OrderBook) Size() int { return len(b.orders) }

func (b *OrderBook) Session() Session { return b.session }

func (b *OrderBook) GFDExpiredToday() bool { return b.gfdExpiredToday }

// Order looks up a resting order.
func (b *OrderBook) Order(id OrderID) (*Order, bool) {
	e, ok := b.orders[id]
	if !ok {
		return nil, false
	}
	return e.order, true
}

// Tick runs the session-transition check on its own, so GFD orders can
// expire without order flow or a depth read.
func (b *OrderBook) Tick() {
	b.expireGFDIfNeeded()
}

// IsOpen reports whether the session is open on the book's clock.
func (b *OrderBook) IsOpen() bool {
	return b.session.IsOpen(b.now())
}

// Levels reports how many price levels each side holds.
func (b *OrderBook) Levels() (bids, asks int) {
	return b.bids.tree.Len(), b.asks.tree.Len()
}

func (b *OrderBook) BestBid() (Price, bool) { return bestPrice(b.bids) }
func (b *OrderBook) BestAsk() (Price, bool) { return bestPrice(b.asks) }

func bestPrice(l *ledger) (Price, bool) {
	lvl := l.best()
	if lvl == nil {
		return 0, false
	}
	return lvl.Price, true
}

// Infos snapshots the depth. It runs the session check first, so it may
// expire GFD orders.
func (b *OrderBook) Infos() Infos {
	b.expireGFDIfNeeded()

	infos := Infos{
		Bids: make([]LevelInfo, 0, b.bids.tree.Len()),
		Asks: make([]LevelInfo, 0, b.asks.tree.Len()),
	}
	b.bids.walk(func(lvl *PriceLevel) bool {
		infos.Bids = append(infos.Bids, LevelInfo{Price: lvl.Price, Quantity: lvl.TotalQuantity()})
		return true
	})
	b.asks.walk(func(lvl *PriceLevel) bool {
		infos.Asks = append(infos.Asks, LevelInfo{Price: lvl.Price, Quantity: lvl.TotalQuantity()})
		return true
	})
	return infos
}

// AddOrder submits o and returns the trades it produced. Rejected orders
// are logged and yield no trades.
func (b *OrderBook) AddOrder(o *Order) []Trade {
	trades, _ := b.Submit(o)
	return trades
}

// Submit is AddOrder with the rejection reason returned to the caller.
func (b *OrderBook) Submit(o *Order) ([]Trade, error) {
	b.expireGFDIfNeeded()

	if o == nil {
		b.log.Error().Msg("nil order submitted")
		return nil, ErrNilOrder
	}
	if _, ok := b.orders[o.id]; ok {
		b.log.Warn().Uint64("order_id", uint64(o.id)).Msg("order already exists in order book")
		return nil, ErrDuplicateOrder
	}

	side := b.ledgerFor(o.side)
	if side == nil {
		b.log.Error().Uint64("order_id", uint64(o.id)).Uint8("side", uint8(o.side)).Msg("unknown order side")
		return nil, ErrUnknownSide
	}
	if o.remaining == 0 {
		b.log.Warn().Uint64("order_id", uint64(o.id)).Msg("order has no quantity")
		return nil, ErrZeroQuantity
	}

	if o.IsMarketOrder() {
		return b.matchMarket(o), nil
	}

	e := side.tree.Upsert(o.price).enqueue(o)
	b.orders[o.id] = e

	return b.matchOrders(), nil
}

// CancelOrder removes a resting order. Unknown ids are logged and ignored.
func (b *OrderBook) CancelOrder(id OrderID) bool {
	e, ok := b.orders[id]
	if !ok {
		b.log.Warn().Uint64("order_id", uint64(id)).Msg("order does not exist in order book")
		return false
	}
	b.remove(e)
	return true
}

// CancelOrders removes every resting order of the given type and reports
// how many were removed.
func (b *OrderBook) CancelOrders(typ OrderType) int {
	n := 0
	for _, e := range b.orders {
		if e.order.typ != typ {
			continue
		}
		b.remove(e)
		n++
	}
	return n
}

func (b *OrderBook) ledgerFor(s Side) *ledger {
	switch s {
	case Buy:
		return b.bids
	case Sell:
		return b.asks
	default:
		return nil
	}
}

// remove unlinks e, drops its index entry and compacts an emptied level.
func (b *OrderBook) remove(e *entry) {
	lvl := e.level
	lvl.unlink(e)
	delete(b.orders, e.order.id)
	if lvl.Empty() {
		b.ledgerFor(e.order.side).tree.Delete(lvl.Price)
	}
}

func (b *OrderBook) matchOrders() []Trade {
	var trades []Trade

	for !b.bids.empty() && !b.asks.empty() {
		bids := b.bids.best()
		asks := b.asks.best()
		if bids.Price < asks.Price {
			break
		}

		for !bids.Empty() && !asks.Empty() {
			bid, ask := bids.head, asks.head
			if b.dropFilled(bid) || b.dropFilled(ask) {
				continue
			}
			qty := min(bid.order.remaining, ask.order.remaining)

			trades = append(trades, Trade{
				BidID:    bid.order.id,
				AskID:    ask.order.id,
				BidPrice: bid.order.price,
				AskPrice: ask.order.price,
				Quantity: qty,
			})

			bid.order.Fill(qty)
			ask.order.Fill(qty)
			if bid.order.IsFilled() {
				bids.unlink(bid)
				delete(b.orders, bid.order.id)
			}
			if ask.order.IsFilled() {
				asks.unlink(ask)
				delete(b.orders, ask.order.id)
			}
		}

		if bids.Empty() {
			b.bids.tree.Delete(bids.Price)
		}
		if asks.Empty() {
			b.asks.tree.Delete(asks.Price)
		}
	}

	return trades
}

// matchMarket sweeps the opposite side best first at resting prices. A
// market order never rests: whatever is left once liquidity runs out is
// dropped.
func (b *OrderBook) matchMarket(o *Order) []Trade {
	opposite := b.asks
	if o.side == Sell {
		opposite = b.bids
	}

	var trades []Trade
	for !o.IsFilled() {
		lvl := opposite.best()
		if lvl == nil {
			break
		}

		for !lvl.Empty() && !o.IsFilled() {
			resting := lvl.head
			if b.dropFilled(resting) {
				continue
			}
			qty := min(o.remaining, resting.order.remaining)

			t := Trade{BidPrice: lvl.Price, AskPrice: lvl.Price, Quantity: qty}
			if o.side == Buy {
				t.BidID, t.AskID = o.id, resting.order.id
			} else {
				t.BidID, t.AskID = resting.order.id, o.id
			}
			trades = append(trades, t)

			o.Fill(qty)
			resting.order.Fill(qty)
			if resting.order.IsFilled() {
				lvl.unlink(resting)
				delete(b.orders, resting.order.id)
			}
		}

		if lvl.Empty() {
			opposite.tree.Delete(lvl.Price)
		}
	}

	if !o.IsFilled() {
		b.log.Debug().
			Uint64("order_id", uint64(o.id)).
			Uint64("unfilled", uint64(o.remaining)).
			Msg("market order remainder dropped")
	}
	return trades
}

// dropFilled unlinks a resting order that was filled outside the book
// through its shared handle. Such an order must not trade again.
func (b *OrderBook) dropFilled(e *entry) bool {
	if !e.order.IsFilled() {
		return false
	}
	e.level.unlink(e)
	delete(b.orders, e.order.id)
	return true
}

// expireGFDIfNeeded cancels GFD orders once per closed period and re-arms
// when the session opens again.
func (b *OrderBook) expireGFDIfNeeded() {
	if !b.gfdExpiredToday && b.session.IsClose(b.now()) {
		n := b.CancelOrders(GFD)
		b.gfdExpiredToday = true
		b.log.Trace().Int("canceled", n).Msg("expired all GFD orders at market close")
	}

	if b.gfdExpiredToday && b.session.IsOpen(b.now()) {
		b.gfdExpiredToday = false
		b.log.Trace().Msg("reset GFD expiry state for new session")
	}
}
