package snapshot

import (
	"fmt"
	"io"
	"strconv"
	"strings"
)

const rowFormat = "%10s %10s | %-10s %-10s"

// Render writes the depth as a two-column table, bids left and asks
// right, best prices on the first row.
func Render(w io.Writer, d Depth, scale int32) error {
	var sb strings.Builder
	writeRow(&sb, "QTY", "BID", "ASK", "QTY")

	rows := max(len(d.Bids), len(d.Asks))
	for i := 0; i < rows; i++ {
		var bq, bp, ap, aq string
		if i < len(d.Bids) {
			bq = strconv.FormatUint(uint64(d.Bids[i].Quantity), 10)
			bp = FormatPrice(d.Bids[i].Price, scale)
		}
		if i < len(d.Asks) {
			ap = FormatPrice(d.Asks[i].Price, scale)
			aq = strconv.FormatUint(uint64(d.Asks[i].Quantity), 10)
		}
		writeRow(&sb, bq, bp, ap, aq)
	}

	if spread, ok := d.Spread(); ok {
		fmt.Fprintf(&sb, "spread %s\n", FormatPrice(spread, scale))
	}

	_, err := io.WriteString(w, sb.String())
	return err
}

func writeRow(sb *strings.Builder, bq, bp, ap, aq string) {
	sb.WriteString(strings.TrimRight(fmt.Sprintf(rowFormat, bq, bp, ap, aq), " "))
	sb.WriteByte('\n')
}

func (d Depth) String() string {
	var sb strings.Builder
	_ = Render(&sb, d, DefaultScale)
	return sb.String()
}
