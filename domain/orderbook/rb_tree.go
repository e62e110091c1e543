package orderbook

type color uint8

const (
	red color = iota
	black
)

type node struct {
	key    Price
	level  *PriceLevel
	color  color
	left   *node
	right  *node
	parent *node
}

// RBTree maps prices to levels in ascending key order. The extreme nodes
// are cached so Min and Max are O(1).
type RBTree struct {
	root *node
	nil  *node // black sentinel
	min  *node
	max  *node
	size int
}

func NewRBTree() *RBTree {
	sentinel := &node{color: black}
	return &RBTree{root: sentinel, nil: sentinel, min: sentinel, max: sentinel}
}

func (t *RBTree) Len() int { return t.size }

func (t *RBTree) Find(price Price) *PriceLevel {
	n := t.search(price)
	if n == t.nil {
		return nil
	}
	return n.level
}

// Upsert returns the level at price, creating it when absent.
func (t *RBTree) Upsert(price Price) *PriceLevel {
	y := t.nil
	x := t.root
	for x != t.nil {
		y = x
		switch {
		case price < x.key:
			x = x.left
		case price > x.key:
			x = x.right
		default:
			return x.level
		}
	}

	lvl := &PriceLevel{Price: price}
	z := &node{key: price, level: lvl, color: red, left: t.nil, right: t.nil, parent: y}
	switch {
	case y == t.nil:
		t.root = z
	case z.key < y.key:
		y.left = z
	default:
		y.right = z
	}
	if t.min == t.nil || price < t.min.key {
		t.min = z
	}
	if t.max == t.nil || price > t.max.key {
		t.max = z
	}
	t.insertFixup(z)
	t.size++
	return lvl
}

func (t *RBTree) Delete(price Price) bool {
	z := t.search(price)
	if z == t.nil {
		return false
	}
	if z == t.min {
		t.min = t.next(z)
	}
	if z == t.max {
		t.max = t.prev(z)
	}
	t.deleteNode(z)
	t.size--
	return true
}

func (t *RBTree) Min() *PriceLevel {
	if t.min == t.nil {
		return nil
	}
	return t.min.level
}

func (t *RBTree) Max() *PriceLevel {
	if t.max == t.nil {
		return nil
	}
	return t.max.level
}

func (t *RBTree) Ascend(fn func(*PriceLevel) bool) {
	for n := t.min; n != t.nil; n = t.next(n) {
		if !fn(n.level) {
			return
		}
	}
}

func (t *RBTree) Descend(fn func(*PriceLevel) bool) {
	for n := t.max; n != t.nil; n = t.prev(n) {
		if !fn(n.level) {
			return
		}
	}
}

func (t *RBTree) search(price Price) *node {
	n := t.root
	for n != t.nil {
		switch {
		case price < n.key:
			n = n.left
		case price > n.key:
			n = n.right
		default:
			return n
		}
	}
	return t.nil
}

func (t *RBTree) minNode(n *node) *node {
	if n == t.nil {
		return t.nil
	}
	for n.left != t.nil {
		n = n.left
	}
	return n
}

func (t *RBTree) maxNode(n *node) *node {
	if n == t.nil {
		return t.nil
	}
	for n.right != t.nil {
		n = n.right
	}
	return n
}

func (t *RBTree) next(n *node) *node {
	if n.right != t.nil {
		return t.minNode(n.right)
	}
	p := n.parent
	for p != t.nil && n == p.right {
		n = p
		p = p.parent
	}
	return p
}

func (t *RBTree) prev(n *node) *node {
	if n.left != t.nil {
		return t.maxNode(n.left)
	}
	p := n.parent
	for p != t.nil && n == p.left {
		n = p
		p = p.parent
	}
	return p
}

func (t *RBTree) rotateLeft(x *node) {
	y := x.right
	x.right = y.left
	if y.left != t.nil {
		y.left.parent = x
	}
	y.parent = x.parent
	switch {
	case x.parent == t.nil:
		t.root = y
	case x == x.parent.left:
		x.parent.left = y
	default:
		x.parent.right = y
	}
	y.left = x
	x.parent = y
}

func (t *RBTree) rotateRight(y *node) {
	x := y.left
	y.left = x.right
	if x.right != t.nil {
		x.right.parent = y
	}
	x.parent = y.parent
	switch {
	case y.parent == t.nil:
		t.root = x
	case y == y.parent.right:
		y.parent.right = x
	default:
		y.parent.left = x
	}
	x.right = y
	y.parent = x
}

func (t *RBTree) insertFixup(z *node) {
	for z.parent.color == red {
		if z.parent == z.parent.parent.left {
			uncle := z.parent.parent.right
			if uncle.color == red {
				z.parent.color = black
				uncle.color = black
				z.parent.parent.color = red
				z = z.parent.parent
				continue
			}
			if z == z.parent.right {
				z = z.parent
				t.rotateLeft(z)
			}
			z.parent.color = black
			z.parent.parent.color = red
			t.rotateRight(z.parent.parent)
		} else {
			uncle := z.parent.parent.left
			if uncle.color == red {
				z.parent.color = black
				uncle.color = black
				z.parent.parent.color = red
				z = z.parent.parent
				continue
			}
			if z == z.parent.left {
				z = z.parent
				t.rotateRight(z)
			}
			z.parent.color = black
			z.parent.parent.color = red
			t.rotateLeft(z.parent.parent)
		}
	}
	t.root.color = black
}

func (t *RBTree) transplant(u, v *node) {
	switch {
	case u.parent == t.nil:
		t.root = v
	case u == u.parent.left:
		u.parent.left = v
	default:
		u.parent.right = v
	}
	v.parent = u.parent
}

func (t *RBTree) deleteNode(z *node) {
	y := z
	yColor := y.color
	var x *node

	switch {
	case z.left == t.nil:
		x = z.right
		t.transplant(z, z.right)
	case z.right == t.nil:
		x = z.left
		t.transplant(z, z.left)
	default:
		y = t.minNode(z.right)
		yColor = y.color
		x = y.right
		if y.parent == z {
			x.parent = y
		} else {
			t.transplant(y, y.right)
			y.right = z.right
			y.right.parent = y
		}
		t.transplant(z, y)
		y.left = z.left
		y.left.parent = y
		y.color = z.color
	}

	if yColor == black {
		t.deleteFixup(x)
	}
}

func (t *RBTree) deleteFixup(x *node) {
	for x != t.root && x.color == black {
		if x == x.parent.left {
			w := x.parent.right
			if w.color == red {
				w.color = black
				x.parent.color = red
				t.rotateLeft(x.parent)
				w = x.parent.right
			}
			if w.left.color == black && w.right.color == black {
				w.color = red
				x = x.parent
				continue
			}
			if w.right.color == black {
				w.left.color = black
				w.color = red
				t.rotateRight(w)
				w = x.parent.right
			}
			w.color = x.parent.color
			x.parent.color = black
			w.right.color = black
			t.rotateLeft(x.parent)
			x = t.root
		} else {
			w := x.parent.left
			if w.color == red {
				w.color = black
				x.parent.color = red
				t.rotateRight(x.parent)
				w = x.parent.left
			}
			if w.right.color == black && w.left.color == black {
				w.color = red
				x = x.parent
				continue
			}
			if w.left.color == black {
				w.right.color = black
				w.color = red
				t.rotateLeft(w)
				w = x.parent.left
			}
			w.color = x.parent.color
			x.parent.color = black
			w.left.color = black
			t.rotateRight(x.parent)
			x = t.root
		}
	}
	x.color = black
}
