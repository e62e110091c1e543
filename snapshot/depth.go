package snapshot

import (
	"time"

	"github.com/shopspring/decimal"

	"matchbook/domain/orderbook"
)

// DefaultScale renders ticks as cents.
const DefaultScale int32 = 2

type Depth struct {
	Taken time.Time
	Bids  []orderbook.LevelInfo
	Asks  []orderbook.LevelInfo
}

func Take(infos orderbook.Infos, at time.Time) Depth {
	return Depth{Taken: at, Bids: infos.Bids, Asks: infos.Asks}
}

// Spread is best ask minus best bid. ok is false when a side is empty.
func (d Depth) Spread() (spread orderbook.Price, ok bool) {
	if len(d.Bids) == 0 || len(d.Asks) == 0 {
		return 0, false
	}
	return d.Asks[0].Price - d.Bids[0].Price, true
}

// Volume sums resting quantity per side.
func (d Depth) Volume() (bids, asks orderbook.Quantity) {
	for _, l := range d.Bids {
		bids += l.Quantity
	}
	for _, l := range d.Asks {
		asks += l.Quantity
	}
	return bids, asks
}

// Decimal converts a tick price with scale decimal places.
func Decimal(p orderbook.Price, scale int32) decimal.Decimal {
	return decimal.New(int64(p), -scale)
}

func FormatPrice(p orderbook.Price, scale int32) string {
	return Decimal(p, scale).StringFixed(scale)
}
