// Command sandbox pushes random order flow through a book and prints the
// resulting depth.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"matchbook/domain/orderbook"
	"matchbook/infra/idgen"
	"matchbook/infra/log"
	"matchbook/jobs/feeder"
	"matchbook/service"
	"matchbook/snapshot"
)

func main() {
	var (
		n      = flag.Int("n", 100000, "orders to submit")
		seed   = flag.Uint64("seed", uint64(time.Now().UnixNano()), "feeder and id seed")
		ids    = flag.String("ids", idgen.KindRandom, "order id generator: seq, random or uuid")
		levels = flag.Int("levels", 10, "depth levels to print per side")
		level  = flag.String("log", "warn", "log level")
	)
	flag.Parse()

	logger := log.New(log.Options{Level: *level, Pretty: true})

	gen, err := idgen.New(*ids, *seed)
	if err != nil {
		logger.Fatal().Err(err).Msg("ids")
	}

	book := orderbook.New(
		orderbook.Config{Session: orderbook.NewYorkSession},
		orderbook.WithLogger(logger),
	)
	svc := service.New(book, service.WithLogger(logger))

	start := time.Now()
	st := feeder.New(*seed, gen).Feed(svc, *n)
	elapsed := time.Since(start)

	fmt.Printf("orders %d  rejected %d  trades %d  traded qty %d  resting %d\n",
		st.Orders, st.Rejected, st.Trades, st.Quantity, book.Size())
	fmt.Printf("elapsed %s  %.0f orders/s\n", elapsed, float64(*n)/elapsed.Seconds())
	fmt.Println()

	d := snapshot.Take(svc.Depth(), time.Now())
	d.Bids = head(d.Bids, *levels)
	d.Asks = head(d.Asks, *levels)
	if err := snapshot.Render(os.Stdout, d, snapshot.DefaultScale); err != nil {
		logger.Fatal().Err(err).Msg("render")
	}
}

func head(l []orderbook.LevelInfo, n int) []orderbook.LevelInfo {
	if n > 0 && len(l) > n {
		return l[:n]
	}
	return l
}
