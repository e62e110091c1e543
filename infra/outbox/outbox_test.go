package outbox

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTest(t *testing.T) *Outbox {
	t.Helper()
	o, err := Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = o.Close() })
	return o
}

func pending(t *testing.T, o *Outbox) []Record {
	t.Helper()
	var out []Record
	require.NoError(t, o.ScanPending(func(r Record) error {
		out = append(out, r)
		return nil
	}))
	return out
}

func TestAppendAndGet(t *testing.T) {
	o := openTest(t)
	require.NoError(t, o.Append(Entry{Seq: 1, Payload: []byte("a")}, Entry{Seq: 2, Payload: []byte("bb")}))

	rec, err := o.Get(2)
	require.NoError(t, err)
	assert.Equal(t, StateNew, rec.State)
	assert.Equal(t, []byte("bb"), rec.Payload)

	_, err = o.Get(3)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStateTransitions(t *testing.T) {
	o := openTest(t)
	o.now = func() time.Time { return time.Unix(0, 42) }
	require.NoError(t, o.Append(Entry{Seq: 7, Payload: []byte("x")}))

	require.NoError(t, o.MarkSent(7))
	require.NoError(t, o.MarkFailed(7))
	require.NoError(t, o.MarkFailed(7))

	rec, err := o.Get(7)
	require.NoError(t, err)
	assert.Equal(t, StateFailed, rec.State)
	assert.Equal(t, uint32(2), rec.Retries)
	assert.Equal(t, int64(42), rec.LastAttempt)
	assert.Len(t, pending(t, o), 1, "failed records stay pending")

	require.NoError(t, o.MarkAcked(7))
	assert.Empty(t, pending(t, o))

	assert.ErrorIs(t, o.MarkSent(99), ErrNotFound)
}

func TestScanOrderAndCleanup(t *testing.T) {
	o := openTest(t)
	for _, seq := range []uint64{10, 2, 300, 41} {
		require.NoError(t, o.Append(Entry{Seq: seq, Payload: []byte{byte(seq)}}))
	}
	require.NoError(t, o.MarkAcked(41))

	var seqs []uint64
	for _, r := range pending(t, o) {
		seqs = append(seqs, r.Seq)
	}
	assert.Equal(t, []uint64{2, 10, 300}, seqs)

	n, err := o.DeleteAcked()
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	_, err = o.Get(41)
	assert.ErrorIs(t, err, ErrNotFound)

	last, err := o.LastSeq()
	require.NoError(t, err)
	assert.Equal(t, uint64(300), last)
}

func TestLastSeqEmpty(t *testing.T) {
	last, err := openTest(t).LastSeq()
	require.NoError(t, err)
	assert.Zero(t, last)
}

func TestReopenKeepsRecords(t *testing.T) {
	dir := t.TempDir()
	o, err := Open(dir)
	require.NoError(t, err)
	require.NoError(t, o.Append(Entry{Seq: 5, Payload: []byte("keep")}))
	require.NoError(t, o.Close())

	o, err = Open(dir)
	require.NoError(t, err)
	defer o.Close()
	rec, err := o.Get(5)
	require.NoError(t, err)
	assert.Equal(t, []byte("keep"), rec.Payload)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "ACKED", StateAcked.String())
	assert.Equal(t, "UNKNOWN", State(9).String())
}

func TestCorruptRecordRejected(t *testing.T) {
	o := openTest(t)
	require.NoError(t, o.Append(Entry{Seq: 1, Payload: []byte("trade")}))

	raw := encodeRecord(Record{Seq: 1, Payload: []byte("trade")})
	raw[len(raw)-1] ^= 0xff
	require.NoError(t, o.db.Set(keyFor(1), raw, nil))

	_, err := o.Get(1)
	assert.ErrorIs(t, err, ErrInvalidRecord)

	_, err = decodeRecord(1, []byte{1, 2})
	assert.ErrorIs(t, err, ErrInvalidRecord)
}

func TestLastSeqSurvivesCompactionAndReopen(t *testing.T) {
	dir := t.TempDir()
	o, err := Open(dir)
	require.NoError(t, err)

	require.NoError(t, o.Append(Entry{Seq: 1}, Entry{Seq: 3}, Entry{Seq: 2}))
	for seq := uint64(1); seq <= 3; seq++ {
		require.NoError(t, o.MarkAcked(seq))
	}
	n, err := o.DeleteAcked()
	require.NoError(t, err)
	require.Equal(t, 3, n)
	assert.Empty(t, pending(t, o))

	last, err := o.LastSeq()
	require.NoError(t, err)
	assert.Equal(t, uint64(3), last)
	require.NoError(t, o.Close())

	o, err = Open(dir)
	require.NoError(t, err)
	defer o.Close()

	last, err = o.LastSeq()
	require.NoError(t, err)
	assert.Equal(t, uint64(3), last)

	require.NoError(t, o.Append(Entry{Seq: 2}))
	last, err = o.LastSeq()
	require.NoError(t, err)
	assert.Equal(t, uint64(3), last, "a lower append never moves the high-water mark back")
}
