// Package outbox keeps encoded trade events in pebble until a broker has
// acknowledged them.
package outbox

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"strconv"
	"time"

	"github.com/cockroachdb/pebble"
)

var (
	ErrNotFound      = errors.New("outbox: record not found")
	ErrInvalidRecord = errors.New("outbox: invalid record")
)

type State uint8

const (
	StateNew State = iota
	StateSent
	StateAcked
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateNew:
		return "NEW"
	case StateSent:
		return "SENT"
	case StateAcked:
		return "ACKED"
	case StateFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

// Record is one outbox entry keyed by its sequence.
type Record struct {
	Seq         uint64
	State       State
	Retries     uint32
	LastAttempt int64
	Payload     []byte
}

// lastSeqKey holds the highest sequence ever appended. It lives outside
// the trade/ range and survives DeleteAcked.
var lastSeqKey = []byte("meta/last_seq")

const (
	keyPrefix  = "trade/"
	headerSize = 1 + 4 + 8 + 4
)

// Value layout: [state:1][retries:4][lastAttempt:8][crc:4][payload]
// The checksum covers the payload only.
func encodeRecord(r Record) []byte {
	buf := make([]byte, headerSize+len(r.Payload))
	buf[0] = byte(r.State)
	binary.BigEndian.PutUint32(buf[1:5], r.Retries)
	binary.BigEndian.PutUint64(buf[5:13], uint64(r.LastAttempt))
	binary.BigEndian.PutUint32(buf[13:17], crc32.ChecksumIEEE(r.Payload))
	copy(buf[headerSize:], r.Payload)
	return buf
}

func decodeRecord(seq uint64, b []byte) (Record, error) {
	if len(b) < headerSize {
		return Record{}, fmt.Errorf("%w: seq %d has %d bytes", ErrInvalidRecord, seq, len(b))
	}
	payload := b[headerSize:]
	if crc32.ChecksumIEEE(payload) != binary.BigEndian.Uint32(b[13:17]) {
		return Record{}, fmt.Errorf("%w: seq %d checksum mismatch", ErrInvalidRecord, seq)
	}
	return Record{
		Seq:         seq,
		State:       State(b[0]),
		Retries:     binary.BigEndian.Uint32(b[1:5]),
		LastAttempt: int64(binary.BigEndian.Uint64(b[5:13])),
		Payload:     bytes.Clone(payload),
	}, nil
}

func keyFor(seq uint64) []byte {
	return fmt.Appendf(nil, "%s%020d", keyPrefix, seq)
}

func parseKey(k []byte) (uint64, error) {
	return strconv.ParseUint(string(bytes.TrimPrefix(k, []byte(keyPrefix))), 10, 64)
}

type Outbox struct {
	db  *pebble.DB
	now func() time.Time
}

func Open(dir string) (*Outbox, error) {
	db, err := pebble.Open(dir, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("open outbox %s: %w", dir, err)
	}
	return &Outbox{db: db, now: time.Now}, nil
}

func (o *Outbox) Close() error {
	return o.db.Close()
}

// Entry is a payload waiting to be appended.
type Entry struct {
	Seq     uint64
	Payload []byte
}

// Append stores entries as NEW in one synced batch, together with the
// new high-water sequence.
func (o *Outbox) Append(entries ...Entry) error {
	if len(entries) == 0 {
		return nil
	}
	last, err := o.LastSeq()
	if err != nil {
		return err
	}

	b := o.db.NewBatch()
	defer b.Close()

	for _, e := range entries {
		rec := Record{Seq: e.Seq, State: StateNew, Payload: e.Payload}
		if err := b.Set(keyFor(e.Seq), encodeRecord(rec), nil); err != nil {
			return err
		}
		last = max(last, e.Seq)
	}

	var seq [8]byte
	binary.BigEndian.PutUint64(seq[:], last)
	if err := b.Set(lastSeqKey, seq[:], nil); err != nil {
		return err
	}
	return b.Commit(pebble.Sync)
}

func (o *Outbox) Get(seq uint64) (Record, error) {
	val, closer, err := o.db.Get(keyFor(seq))
	if errors.Is(err, pebble.ErrNotFound) {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, err
	}
	defer closer.Close()
	return decodeRecord(seq, val)
}

func (o *Outbox) MarkSent(seq uint64) error {
	return o.update(seq, func(r *Record) { r.State = StateSent })
}

func (o *Outbox) MarkAcked(seq uint64) error {
	return o.update(seq, func(r *Record) { r.State = StateAcked })
}

// MarkFailed records a failed attempt; failed records stay pending.
func (o *Outbox) MarkFailed(seq uint64) error {
	return o.update(seq, func(r *Record) {
		r.State = StateFailed
		r.Retries++
	})
}

func (o *Outbox) update(seq uint64, fn func(*Record)) error {
	rec, err := o.Get(seq)
	if err != nil {
		return err
	}
	fn(&rec)
	rec.LastAttempt = o.now().UnixNano()
	return o.db.Set(keyFor(seq), encodeRecord(rec), pebble.Sync)
}

// ScanPending visits every record not yet acknowledged, in sequence order.
func (o *Outbox) ScanPending(fn func(Record) error) error {
	return o.scan(func(r Record) error {
		if r.State == StateAcked {
			return nil
		}
		return fn(r)
	})
}

// DeleteAcked drops acknowledged records and reports how many went.
func (o *Outbox) DeleteAcked() (int, error) {
	var acked [][]byte
	err := o.scan(func(r Record) error {
		if r.State == StateAcked {
			acked = append(acked, keyFor(r.Seq))
		}
		return nil
	})
	if err != nil || len(acked) == 0 {
		return 0, err
	}

	b := o.db.NewBatch()
	defer b.Close()
	for _, k := range acked {
		if err := b.Delete(k, nil); err != nil {
			return 0, err
		}
	}
	if err := b.Commit(pebble.Sync); err != nil {
		return 0, err
	}
	return len(acked), nil
}

// LastSeq returns the highest sequence ever appended, 0 for a fresh
// outbox. Compacting acked records does not lower it.
func (o *Outbox) LastSeq() (uint64, error) {
	val, closer, err := o.db.Get(lastSeqKey)
	switch {
	case errors.Is(err, pebble.ErrNotFound):
		return o.lastStoredSeq()
	case err != nil:
		return 0, err
	}
	defer closer.Close()
	if len(val) != 8 {
		return 0, fmt.Errorf("%w: last sequence has %d bytes", ErrInvalidRecord, len(val))
	}
	return binary.BigEndian.Uint64(val), nil
}

// lastStoredSeq scans for the highest trade key, for stores written
// before the high-water key existed.
func (o *Outbox) lastStoredSeq() (uint64, error) {
	iter, err := o.newIter()
	if err != nil {
		return 0, err
	}
	defer iter.Close()

	if !iter.Last() {
		return 0, iter.Error()
	}
	return parseKey(iter.Key())
}

func (o *Outbox) scan(fn func(Record) error) error {
	iter, err := o.newIter()
	if err != nil {
		return err
	}
	defer iter.Close()

	for iter.First(); iter.Valid(); iter.Next() {
		seq, err := parseKey(iter.Key())
		if err != nil {
			return err
		}
		rec, err := decodeRecord(seq, iter.Value())
		if err != nil {
			return err
		}
		if err := fn(rec); err != nil {
			return err
		}
	}
	return iter.Error()
}

func (o *Outbox) newIter() (*pebble.Iterator, error) {
	return o.db.NewIter(&pebble.IterOptions{
		LowerBound: []byte(keyPrefix),
		UpperBound: []byte("trade0"), // '0' sorts right after '/'
	})
}
