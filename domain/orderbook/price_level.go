package orderbook

// entry is the location handle of a resting order inside its level queue.
type entry struct {
	order *Order
	level *PriceLevel

	prev *entry
	next *entry
}

// PriceLevel is a FIFO queue of resting orders at a single price.
type PriceLevel struct {
	Price Price

	head *entry
	tail *entry

	count int
}

func (p *PriceLevel) enqueue(o *Order) *entry {
	e := &entry{order: o, level: p}
	if p.head == nil {
		p.head = e
		p.tail = e
	} else {
		p.tail.next = e
		e.prev = p.tail
		p.tail = e
	}
	p.count++
	return e
}

// unlink removes e from any position in O(1).
func (p *PriceLevel) unlink(e *entry) {
	if e.prev != nil {
		e.prev.next = e.next
	} else {
		p.head = e.next
	}
	if e.next != nil {
		e.next.prev = e.prev
	} else {
		p.tail = e.prev
	}
	e.next, e.prev = nil, nil
	p.count--
}

func (p *PriceLevel) Empty() bool { return p.head == nil }

// Head returns the order with the highest time priority.
func (p *PriceLevel) Head() *Order {
	if p.head == nil {
		return nil
	}
	return p.head.order
}

// TotalQuantity sums remaining quantities at this price. It walks the
// queue, so fills made through a shared *Order are always reflected.
func (p *PriceLevel) TotalQuantity() Quantity {
	var total Quantity
	for e := p.head; e != nil; e = e.next {
		total += e.order.remaining
	}
	return total
}

func (p *PriceLevel) OrderCount() int { return p.count }

// Each visits orders front to back until fn returns false.
func (p *PriceLevel) Each(fn func(*Order) bool) {
	for e := p.head; e != nil; e = e.next {
		if !fn(e.order) {
			return
		}
	}
}
