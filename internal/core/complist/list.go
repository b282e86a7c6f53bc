package complist

import (
	"fmt"

	"firestige.xyz/rohc/internal/core"
)

// nilHandle marks the absence of a neighbour or of a free slot.
const nilHandle = -1

type element struct {
	item  *Item
	index int
	prev  int
	next  int
}

// Element is a snapshot of one list position.
type Element struct {
	Item  *Item
	Index int // translation table index of Item
}

// List is a positional list of items. Elements live in an arena and are
// linked by slot handles, so removing one never invalidates the others.
// Positions are 0-based.
//
// The zero value is an empty list with generation 0.
type List struct {
	GenID  uint8
	HasGen bool

	elems []element
	head  int
	tail  int
	free  int
	size  int
	init  bool
}

// NewList returns an empty list.
func NewList() *List {
	l := &List{}
	l.lazyInit()
	return l
}

func (l *List) lazyInit() {
	if l.init {
		return
	}
	l.head, l.tail, l.free = nilHandle, nilHandle, nilHandle
	l.init = true
}

func (l *List) alloc(item *Item, index int) int {
	if l.free != nilHandle {
		h := l.free
		l.free = l.elems[h].next
		l.elems[h] = element{item: item, index: index, prev: nilHandle, next: nilHandle}
		return h
	}
	l.elems = append(l.elems, element{item: item, index: index, prev: nilHandle, next: nilHandle})
	return len(l.elems) - 1
}

func (l *List) release(h int) {
	l.elems[h] = element{prev: nilHandle, next: l.free}
	l.free = h
}

// Len returns the number of elements.
func (l *List) Len() int { return l.size }

// InsertHead adds item in front of the list.
func (l *List) InsertHead(item *Item, index int) {
	l.lazyInit()
	h := l.alloc(item, index)
	l.elems[h].next = l.head
	if l.head != nilHandle {
		l.elems[l.head].prev = h
	} else {
		l.tail = h
	}
	l.head = h
	l.size++
}

// InsertTail appends item to the list.
func (l *List) InsertTail(item *Item, index int) {
	l.lazyInit()
	h := l.alloc(item, index)
	l.elems[h].prev = l.tail
	if l.tail != nilHandle {
		l.elems[l.tail].next = h
	} else {
		l.head = h
	}
	l.tail = h
	l.size++
}

// InsertAt places item so that it ends up at position pos.
// pos must be in [0, Len()].
func (l *List) InsertAt(item *Item, index, pos int) error {
	if pos < 0 || pos > l.size {
		return fmt.Errorf("%w: position %d outside [0, %d]", core.ErrInvalidArgument, pos, l.size)
	}
	switch pos {
	case 0:
		l.InsertHead(item, index)
		return nil
	case l.size:
		l.InsertTail(item, index)
		return nil
	}

	at := l.handleAt(pos)
	h := l.alloc(item, index)
	prev := l.elems[at].prev
	l.elems[h].prev = prev
	l.elems[h].next = at
	l.elems[prev].next = h
	l.elems[at].prev = h
	l.size++
	return nil
}

func (l *List) handleAt(pos int) int {
	if pos < 0 || pos >= l.size {
		return nilHandle
	}
	h := l.head
	for i := 0; i < pos; i++ {
		h = l.elems[h].next
	}
	return h
}

// ElementAt returns the element at pos.
func (l *List) ElementAt(pos int) (Element, bool) {
	h := l.handleAt(pos)
	if h == nilHandle {
		return Element{}, false
	}
	return Element{Item: l.elems[h].item, Index: l.elems[h].index}, true
}

// PositionOf returns the position of the first element holding item.
// Items are compared by identity.
func (l *List) PositionOf(item *Item) (int, bool) {
	pos := 0
	for h := l.first(); h != nilHandle; h = l.elems[h].next {
		if l.elems[h].item == item {
			return pos, true
		}
		pos++
	}
	return 0, false
}

// Remove unlinks the first element holding item. Absent items are ignored.
func (l *List) Remove(item *Item) {
	for h := l.first(); h != nilHandle; h = l.elems[h].next {
		if l.elems[h].item != item {
			continue
		}
		e := l.elems[h]
		if e.prev != nilHandle {
			l.elems[e.prev].next = e.next
		} else {
			l.head = e.next
		}
		if e.next != nilHandle {
			l.elems[e.next].prev = e.prev
		} else {
			l.tail = e.prev
		}
		l.release(h)
		l.size--
		return
	}
}

// Clear drops every element. Items are left to their owner.
func (l *List) Clear() {
	l.elems = l.elems[:0]
	l.head, l.tail, l.free = nilHandle, nilHandle, nilHandle
	l.size = 0
	l.init = true
}

func (l *List) first() int {
	if !l.init {
		return nilHandle
	}
	return l.head
}

// Elements returns the elements in forward order.
func (l *List) Elements() []Element {
	out := make([]Element, 0, l.size)
	for h := l.first(); h != nilHandle; h = l.elems[h].next {
		out = append(out, Element{Item: l.elems[h].item, Index: l.elems[h].index})
	}
	return out
}

// Backward returns the elements in reverse order.
func (l *List) Backward() []Element {
	out := make([]Element, 0, l.size)
	if !l.init {
		return out
	}
	for h := l.tail; h != nilHandle; h = l.elems[h].prev {
		out = append(out, Element{Item: l.elems[h].item, Index: l.elems[h].index})
	}
	return out
}

// Clone returns a compact copy sharing the items.
func (l *List) Clone() *List {
	c := NewList()
	c.GenID, c.HasGen = l.GenID, l.HasGen
	for _, e := range l.Elements() {
		c.InsertTail(e.Item, e.Index)
	}
	return c
}

// Equal reports whether both lists carry the same headers in the same order,
// under the same translation table indices.
func (l *List) Equal(other *List) bool {
	if l.Len() != other.Len() {
		return false
	}
	a, b := l.Elements(), other.Elements()
	for i := range a {
		if a[i].Index != b[i].Index || !a[i].Item.Equal(b[i].Item) {
			return false
		}
	}
	return true
}

// Size returns the total byte length of the items.
func (l *List) Size() int {
	n := 0
	for h := l.first(); h != nilHandle; h = l.elems[h].next {
		n += l.elems[h].item.Len()
	}
	return n
}
