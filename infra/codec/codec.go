// Package codec encodes book events in protobuf wire format.
//
// TradeEvent fields:
//
//	1 seq        uint64
//	2 bid_id     uint64
//	3 ask_id     uint64
//	4 bid_price  sint64
//	5 ask_price  sint64
//	6 quantity   uint64
//	7 unix_nanos sint64
package codec

import (
	"errors"
	"fmt"
	"io"
	"time"

	"google.golang.org/protobuf/encoding/protowire"

	"matchbook/domain/orderbook"
)

var ErrTruncated = errors.New("codec: truncated message")

const (
	fieldSeq protowire.Number = iota + 1
	fieldBidID
	fieldAskID
	fieldBidPrice
	fieldAskPrice
	fieldQuantity
	fieldTime
)

// TradeEvent is a trade stamped with its publication sequence.
type TradeEvent struct {
	Seq   uint64
	Trade orderbook.Trade
	Time  time.Time
}

func AppendTrade(b []byte, ev TradeEvent) []byte {
	b = appendUint(b, fieldSeq, ev.Seq)
	b = appendUint(b, fieldBidID, uint64(ev.Trade.BidID))
	b = appendUint(b, fieldAskID, uint64(ev.Trade.AskID))
	b = appendSint(b, fieldBidPrice, int64(ev.Trade.BidPrice))
	b = appendSint(b, fieldAskPrice, int64(ev.Trade.AskPrice))
	b = appendUint(b, fieldQuantity, uint64(ev.Trade.Quantity))
	b = appendSint(b, fieldTime, ev.Time.UnixNano())
	return b
}

func EncodeTrade(ev TradeEvent) []byte {
	return AppendTrade(make([]byte, 0, 64), ev)
}

// DecodeTrade parses a TradeEvent. Unknown fields are skipped.
func DecodeTrade(b []byte) (TradeEvent, error) {
	var ev TradeEvent
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return ev, wireErr(n)
		}
		b = b[n:]

		if typ != protowire.VarintType {
			n = protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return ev, wireErr(n)
			}
			b = b[n:]
			continue
		}

		v, n := protowire.ConsumeVarint(b)
		if n < 0 {
			return ev, wireErr(n)
		}
		b = b[n:]

		switch num {
		case fieldSeq:
			ev.Seq = v
		case fieldBidID:
			ev.Trade.BidID = orderbook.OrderID(v)
		case fieldAskID:
			ev.Trade.AskID = orderbook.OrderID(v)
		case fieldBidPrice:
			ev.Trade.BidPrice = orderbook.Price(protowire.DecodeZigZag(v))
		case fieldAskPrice:
			ev.Trade.AskPrice = orderbook.Price(protowire.DecodeZigZag(v))
		case fieldQuantity:
			ev.Trade.Quantity = orderbook.Quantity(v)
		case fieldTime:
			ev.Time = time.Unix(0, protowire.DecodeZigZag(v)).UTC()
		}
	}
	return ev, nil
}

func appendUint(b []byte, num protowire.Number, v uint64) []byte {
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}

func appendSint(b []byte, num protowire.Number, v int64) []byte {
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, protowire.EncodeZigZag(v))
}

func wireErr(n int) error {
	if err := protowire.ParseError(n); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return ErrTruncated
		}
		return fmt.Errorf("codec: %w", err)
	}
	return ErrTruncated
}
