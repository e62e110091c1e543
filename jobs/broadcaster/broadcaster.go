// Package broadcaster drains the trade outbox to a publisher.
package broadcaster

import (
	"context"
	"encoding/binary"
	"time"

	"github.com/rs/zerolog"

	"matchbook/infra/outbox"
)

type Publisher interface {
	Publish(ctx context.Context, key, value []byte) error
}

// Outbox is the subset of *outbox.Outbox the broadcaster drives.
type Outbox interface {
	ScanPending(fn func(outbox.Record) error) error
	MarkSent(seq uint64) error
	MarkAcked(seq uint64) error
	MarkFailed(seq uint64) error
	DeleteAcked() (int, error)
}

// Observer is notified of publish outcomes.
type Observer interface {
	Published()
	Failed()
}

type Broadcaster struct {
	outbox    Outbox
	publisher Publisher
	interval  time.Duration
	observer  Observer
	log       zerolog.Logger
}

func New(ob Outbox, pub Publisher, interval time.Duration, log zerolog.Logger) *Broadcaster {
	return &Broadcaster{
		outbox:    ob,
		publisher: pub,
		interval:  interval,
		log:       log.With().Str("component", "broadcaster").Logger(),
	}
}

func (b *Broadcaster) WithObserver(o Observer) *Broadcaster {
	b.observer = o
	return b
}

// Run flushes on every tick until ctx is done.
func (b *Broadcaster) Run(ctx context.Context) {
	b.log.Info().Dur("interval", b.interval).Msg("started")

	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			b.log.Info().Msg("stopped")
			return
		case <-ticker.C:
			if _, err := b.Flush(ctx); err != nil {
				b.log.Error().Err(err).Msg("flush failed")
			}
		}
	}
}

// Flush publishes pending records in sequence order and returns how many
// were acknowledged. It stops at the first publish failure so ordering is
// kept; the failed record is retried on the next flush.
func (b *Broadcaster) Flush(ctx context.Context) (int, error) {
	acked := 0
	stop := false
	err := b.outbox.ScanPending(func(rec outbox.Record) error {
		if stop {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := b.outbox.MarkSent(rec.Seq); err != nil {
			return err
		}

		var key [8]byte
		binary.BigEndian.PutUint64(key[:], rec.Seq)
		if err := b.publisher.Publish(ctx, key[:], rec.Payload); err != nil {
			b.log.Warn().Err(err).Uint64("seq", rec.Seq).Uint32("retries", rec.Retries).Msg("publish failed")
			if b.observer != nil {
				b.observer.Failed()
			}
			stop = true
			return b.outbox.MarkFailed(rec.Seq)
		}

		if err := b.outbox.MarkAcked(rec.Seq); err != nil {
			return err
		}
		if b.observer != nil {
			b.observer.Published()
		}
		acked++
		return nil
	})
	if err != nil {
		return acked, err
	}

	if acked > 0 {
		if _, err := b.outbox.DeleteAcked(); err != nil {
			return acked, err
		}
	}
	return acked, nil
}
