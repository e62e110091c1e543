package orderbook

import "fmt"

// Trade records one match between the front bid and the front ask.
type Trade struct {
	BidID    OrderID
	AskID    OrderID
	BidPrice Price
	AskPrice Price
	Quantity Quantity
}

func (t Trade) String() string {
	return fmt.Sprintf("{Bid ID: %d, Ask ID: %d, Bid Price: %d, Ask Price: %d, Quantity: %d}",
		t.BidID, t.AskID, t.BidPrice, t.AskPrice, t.Quantity)
}
