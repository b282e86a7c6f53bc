package complist

import (
	"fmt"

	"firestige.xyz/rohc/internal/core"
)

const (
	// MaxTableSize is the number of slots a 4-bit index can address.
	MaxTableSize = 16
	// MinTableSize keeps room for more indices than a 3-bit XI can carry.
	MinTableSize = 8
	// DefaultTableSize is the usual translation table size.
	DefaultTableSize = 15
)

// Entry is one translation table slot.
type Entry struct {
	Known bool
	Item  *Item
}

// Table maps list indices to items. Capacity is fixed at construction.
type Table struct {
	entries [MaxTableSize]Entry
	size    int
}

// NewTable returns a table with size usable slots.
func NewTable(size int) (*Table, error) {
	if size < MinTableSize || size > MaxTableSize {
		return nil, fmt.Errorf("%w: translation table size %d not in [%d, %d]",
			core.ErrConfigInvalid, size, MinTableSize, MaxTableSize)
	}
	return &Table{size: size}, nil
}

// Size returns the number of usable slots.
func (t *Table) Size() int { return t.size }

// Known reports whether index is in range and holds a confirmed item.
func (t *Table) Known(index int) bool {
	return index >= 0 && index < t.size && t.entries[index].Known
}

// Get returns the entry at index.
func (t *Table) Get(index int) (Entry, bool) {
	if index < 0 || index >= t.size {
		return Entry{}, false
	}
	return t.entries[index], true
}

// Set installs item at index and marks it known.
func (t *Table) Set(index int, item *Item) error {
	if index < 0 || index >= t.size {
		return fmt.Errorf("%w: index %d outside translation table of %d", core.ErrMalformedList, index, t.size)
	}
	t.install(index, item)
	return nil
}

// install stores item at an index already checked against the table size.
func (t *Table) install(index int, item *Item) {
	t.entries[index] = Entry{Known: true, Item: item}
}

// Reset forgets every mapping.
func (t *Table) Reset() {
	t.entries = [MaxTableSize]Entry{}
}
