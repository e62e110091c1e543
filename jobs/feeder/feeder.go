// Package feeder generates random limit order flow and pushes it into the
// book at a fixed rate.
package feeder

import (
	"context"
	"math/rand/v2"
	"time"

	"github.com/rs/zerolog"

	"matchbook/domain/orderbook"
)

const (
	Mid    orderbook.Price    = 10000
	Drift  orderbook.Price    = 250
	MaxQty orderbook.Quantity = 100
)

// Submitter accepts orders. *service.BookService satisfies it.
type Submitter interface {
	Submit(o *orderbook.Order) ([]orderbook.Trade, error)
}

// Feeder draws GTC limit orders uniformly in [Mid-Drift, Mid+Drift] with
// quantities in [1, MaxQty]. It is not safe for concurrent use.
type Feeder struct {
	rng *rand.Rand
	gen orderbook.IDGenerator
}

func New(seed uint64, gen orderbook.IDGenerator) *Feeder {
	return &Feeder{rng: rand.New(rand.NewPCG(seed, seed^0x5851f42d4c957f2d)), gen: gen}
}

func (f *Feeder) Next() *orderbook.Order {
	side := orderbook.Buy
	if f.rng.IntN(2) == 1 {
		side = orderbook.Sell
	}
	price := Mid - Drift + orderbook.Price(f.rng.Int64N(int64(2*Drift)+1))
	qty := orderbook.Quantity(1 + f.rng.Uint64N(uint64(MaxQty)))
	return orderbook.NewOrder(f.gen, orderbook.GTC, side, price, qty)
}

// Stats counts what a run pushed through.
type Stats struct {
	Orders   int
	Rejected int
	Trades   int
	Quantity orderbook.Quantity
}

// Feed submits n orders back to back.
func (f *Feeder) Feed(s Submitter, n int) Stats {
	var st Stats
	for i := 0; i < n; i++ {
		st.add(s.Submit(f.Next()))
	}
	return st
}

// add counts one submission. An error that still carries trades means the
// order was accepted but its trades were not recorded.
func (st *Stats) add(trades []orderbook.Trade, err error) {
	if err != nil && len(trades) == 0 {
		st.Rejected++
		return
	}
	st.Orders++
	st.Trades += len(trades)
	for _, t := range trades {
		st.Quantity += t.Quantity
	}
}

// Job submits rate orders per second until its context ends.
type Job struct {
	feeder *Feeder
	sink   Submitter
	rate   int
	log    zerolog.Logger
}

func NewJob(f *Feeder, sink Submitter, rate int, log zerolog.Logger) *Job {
	return &Job{
		feeder: f,
		sink:   sink,
		rate:   rate,
		log:    log.With().Str("component", "feeder").Logger(),
	}
}

// Run returns the totals once ctx is done.
func (j *Job) Run(ctx context.Context) Stats {
	j.log.Info().Int("rate", j.rate).Msg("started")

	ticker := time.NewTicker(time.Second / time.Duration(j.rate))
	defer ticker.Stop()

	var st Stats
	for {
		select {
		case <-ctx.Done():
			j.log.Info().Int("orders", st.Orders).Int("trades", st.Trades).Int("rejected", st.Rejected).Msg("stopped")
			return st
		case <-ticker.C:
			trades, err := j.sink.Submit(j.feeder.Next())
			if err != nil {
				j.log.Warn().Err(err).Msg("submit failed")
			}
			st.add(trades, err)
		}
	}
}
