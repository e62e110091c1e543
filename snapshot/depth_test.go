package snapshot

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"matchbook/domain/orderbook"
)

func sample() Depth {
	return Take(orderbook.Infos{
		Bids: []orderbook.LevelInfo{{Price: 9950, Quantity: 5}},
		Asks: []orderbook.LevelInfo{{Price: 10025, Quantity: 3}, {Price: 10100, Quantity: 7}},
	}, time.Unix(0, 0))
}

func TestFormatPrice(t *testing.T) {
	assert.Equal(t, "99.50", FormatPrice(9950, 2))
	assert.Equal(t, "-0.05", FormatPrice(-5, 2))
	assert.Equal(t, "10000", FormatPrice(10000, 0))
	assert.Equal(t, "1.000", FormatPrice(1000, 3))
}

func TestSpreadAndVolume(t *testing.T) {
	d := sample()
	spread, ok := d.Spread()
	require.True(t, ok)
	assert.Equal(t, orderbook.Price(75), spread)

	bids, asks := d.Volume()
	assert.Equal(t, orderbook.Quantity(5), bids)
	assert.Equal(t, orderbook.Quantity(10), asks)

	_, ok = Depth{Bids: d.Bids}.Spread()
	assert.False(t, ok)
}

func TestRender(t *testing.T) {
	var sb strings.Builder
	require.NoError(t, Render(&sb, sample(), 2))

	lines := strings.Split(strings.TrimSuffix(sb.String(), "\n"), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, []string{"QTY", "BID", "|", "ASK", "QTY"}, strings.Fields(lines[0]))
	assert.Equal(t, "         5      99.50 | 100.25     3", lines[1])
	assert.Equal(t, []string{"|", "101.00", "7"}, strings.Fields(lines[2]))
	assert.Equal(t, "spread 0.75", lines[3])
}

func TestRenderEmpty(t *testing.T) {
	out := Depth{}.String()
	assert.Equal(t, 1, strings.Count(out, "\n"))
	assert.NotContains(t, out, "spread")
}
