package orderbook

import (
	"time"

	"matchbook/infra/idgen"
)

var (
	openTime   = time.Date(2024, 3, 4, 12, 0, 0, 0, time.UTC)
	closedTime = time.Date(2024, 3, 4, 17, 0, 0, 0, time.UTC)
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time { return c.t }

func newTestBook(at time.Time) (*OrderBook, *fakeClock, *idgen.Sequence) {
	clock := &fakeClock{t: at}
	b := New(Config{Session: NewYorkSession}, WithClock(clock.Now))
	return b, clock, idgen.NewSequence(0)
}

type tb interface {
	Helper()
	Fatalf(format string, args ...any)
}

// checkInvariants verifies the structural invariants of a book at rest.
func checkInvariants(t tb, b *OrderBook) {
	t.Helper()

	resident := 0
	check := func(l *ledger, side Side) {
		var last *PriceLevel
		l.walk(func(lvl *PriceLevel) bool {
			if lvl.Empty() {
				t.Fatalf("%s level %d is empty", side, lvl.Price)
			}
			if last != nil {
				if l.desc && lvl.Price >= last.Price || !l.desc && lvl.Price <= last.Price {
					t.Fatalf("%s levels out of order: %d after %d", side, lvl.Price, last.Price)
				}
			}
			last = lvl

			var sum Quantity
			count := 0
			for e := lvl.head; e != nil; e = e.next {
				o := e.order
				if e.level != lvl || o.side != side || o.price != lvl.Price {
					t.Fatalf("order %d misplaced in %s level %d", o.id, side, lvl.Price)
				}
				if o.remaining == 0 {
					t.Fatalf("order %d rests with zero quantity", o.id)
				}
				if idx, ok := b.orders[o.id]; !ok || idx != e {
					t.Fatalf("order %d resting but not indexed", o.id)
				}
				if e.next != nil && e.next.prev != e {
					t.Fatalf("broken link after order %d", o.id)
				}
				sum += o.remaining
				count++
			}
			if sum != lvl.TotalQuantity() || count != lvl.count {
				t.Fatalf("%s level %d totals drifted: sum=%d total=%d count=%d/%d",
					side, lvl.Price, sum, lvl.TotalQuantity(), count, lvl.count)
			}
			resident += count
			return true
		})
	}
	check(b.bids, Buy)
	check(b.asks, Sell)

	if resident != len(b.orders) {
		t.Fatalf("index holds %d orders, ledgers hold %d", len(b.orders), resident)
	}
	bid, okBid := b.BestBid()
	ask, okAsk := b.BestAsk()
	if okBid && okAsk && bid >= ask {
		t.Fatalf("book rests crossed: bid %d >= ask %d", bid, ask)
	}
}

func newGen() *idgen.Sequence { return idgen.NewSequence(0) }
