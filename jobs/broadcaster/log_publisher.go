package broadcaster

import (
	"context"

	"github.com/rs/zerolog"

	"matchbook/infra/codec"
)

// LogPublisher decodes trade events and logs them. It stands in for a
// broker when none is configured.
type LogPublisher struct {
	log zerolog.Logger
}

func NewLogPublisher(log zerolog.Logger) *LogPublisher {
	return &LogPublisher{log: log}
}

func (p *LogPublisher) Publish(_ context.Context, _, value []byte) error {
	ev, err := codec.DecodeTrade(value)
	if err != nil {
		return err
	}
	p.log.Info().
		Uint64("seq", ev.Seq).
		Uint64("bid_id", uint64(ev.Trade.BidID)).
		Uint64("ask_id", uint64(ev.Trade.AskID)).
		Int64("price", int64(ev.Trade.AskPrice)).
		Uint64("qty", uint64(ev.Trade.Quantity)).
		Time("at", ev.Time).
		Msg("trade")
	return nil
}

func (p *LogPublisher) Close() error { return nil }
