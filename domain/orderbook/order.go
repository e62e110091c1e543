package orderbook

import (
	"fmt"
	"time"
)

// IDGenerator hands out order identifiers. Values are expected to be
// unique in practice but are never deduplicated.
type IDGenerator interface {
	Next() uint64
}

// Order is a unit of trading intent. Identity is fixed at construction,
// only the remaining quantity changes afterwards.
type Order struct {
	id        OrderID
	createdAt time.Time
	price     Price
	remaining Quantity
	typ       OrderType
	side      Side
}

// NewOrder creates a priced (limit) order.
func NewOrder(gen IDGenerator, typ OrderType, side Side, price Price, qty Quantity) *Order {
	return &Order{
		id:        OrderID(gen.Next()),
		createdAt: time.Now(),
		price:     price,
		remaining: qty,
		typ:       typ,
		side:      side,
	}
}

// NewMarketOrder creates an unpriced order. Its price is InvalidPrice and
// its type is None.
func NewMarketOrder(gen IDGenerator, side Side, qty Quantity) *Order {
	return NewOrder(gen, None, side, InvalidPrice, qty)
}

func (o *Order) ID() OrderID                 { return o.id }
func (o *Order) CreatedAt() time.Time        { return o.createdAt }
func (o *Order) Price() Price                { return o.price }
func (o *Order) RemainingQuantity() Quantity { return o.remaining }
func (o *Order) Type() OrderType             { return o.typ }
func (o *Order) Side() Side                  { return o.side }

func (o *Order) IsMarketOrder() bool { return o.price == InvalidPrice }
func (o *Order) IsFilled() bool      { return o.remaining == 0 }

// Fill reduces the remaining quantity. Asking for more than what remains
// is a programming error: it panics in debug builds and is ignored otherwise.
// Fills applied to a resting order through a shared handle show up in
// depth at once; an order driven to zero this way is dropped by the next
// match that reaches it, without a trade.
func (o *Order) Fill(qty Quantity) {
	if qty > o.remaining {
		ensure(false, "order %d: fill %d exceeds remaining %d", o.id, qty, o.remaining)
		return
	}
	o.remaining -= qty
}

func (o *Order) String() string {
	return fmt.Sprintf("Order{ID=%d, Side=%s, Type=%s, Price=%d, Remaining=%d}",
		o.id, o.side, o.typ, o.price, o.remaining)
}
