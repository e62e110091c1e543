package orderbook

import "math"

type (
	OrderID  uint64
	Price    int64
	Quantity uint64
)

// InvalidPrice marks an order without a limit (market intent).
const InvalidPrice Price = math.MaxInt64

type Side uint8

const (
	Buy Side = iota
	Sell
)

func (s Side) String() string {
	switch s {
	case Buy:
		return "BUY"
	case Sell:
		return "SELL"
	default:
		return "UNKNOWN"
	}
}

type OrderType uint8

const (
	None OrderType = iota
	GTC            // good till cancel
	IOC            // immediate or cancel
	GFD            // good for day
	FOK            // fill or kill
)

func (t OrderType) String() string {
	switch t {
	case None:
		return "NONE"
	case GTC:
		return "GTC"
	case IOC:
		return "IOC"
	case GFD:
		return "GFD"
	case FOK:
		return "FOK"
	default:
		return "UNKNOWN"
	}
}
