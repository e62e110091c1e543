package orderbook

// ledger is one side of the book. Bids rank descending, asks ascending.
type ledger struct {
	tree *RBTree
	desc bool
}

func newLedger(desc bool) *ledger {
	return &ledger{tree: NewRBTree(), desc: desc}
}

func (l *ledger) empty() bool { return l.tree.Len() == 0 }

func (l *ledger) best() *PriceLevel {
	if l.desc {
		return l.tree.Max()
	}
	return l.tree.Min()
}

// walk visits levels best to worst.
func (l *ledger) walk(fn func(*PriceLevel) bool) {
	if l.desc {
		l.tree.Descend(fn)
		return
	}
	l.tree.Ascend(fn)
}
