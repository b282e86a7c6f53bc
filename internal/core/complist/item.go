// Package complist decompresses the IPv6 extension header lists of
// RFC 3095 §5.8.
package complist

import (
	"bytes"
	"fmt"

	"firestige.xyz/rohc/internal/core"
)

// An AH carries at least the SPI and the sequence number.
const minAuthSize = 12

// Item is one extension header carried in a compressed list. Byte 0 holds
// the item's own header type on the wire, byte 1 its length field.
//
// Items are never modified after creation.
type Item struct {
	Kind core.ExtHeaderKind
	Data []byte
}

// ItemSize returns the size in bytes of the extension header at the front
// of data, using the length field of its kind.
func ItemSize(kind core.ExtHeaderKind, data []byte) (int, error) {
	if !kind.Valid() {
		return 0, fmt.Errorf("%w: unsupported item type %d", core.ErrInvalidItemData, uint8(kind))
	}
	if len(data) < 2 {
		return 0, fmt.Errorf("%w: item header truncated", core.ErrInvalidItemData)
	}

	var size int
	if kind == core.ExtAuth {
		size = (int(data[1]) + 2) * 4
		if size < minAuthSize {
			return 0, fmt.Errorf("%w: AH item of %d bytes", core.ErrInvalidItemData, size)
		}
	} else {
		size = (int(data[1]) + 1) * 8
	}
	return size, nil
}

// NewItem validates data as one complete extension header and wraps a copy.
func NewItem(data []byte) (*Item, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty item", core.ErrInvalidItemData)
	}
	kind := core.ExtHeaderKind(data[0])
	size, err := ItemSize(kind, data)
	if err != nil {
		return nil, err
	}
	if size != len(data) {
		return nil, fmt.Errorf("%w: %s item declares %d bytes, got %d", core.ErrInvalidItemData, kind, size, len(data))
	}
	return &Item{Kind: kind, Data: bytes.Clone(data)}, nil
}

// ParseItem reads one item from the front of data and returns it with the
// number of bytes it used.
func ParseItem(data []byte) (*Item, int, error) {
	if len(data) == 0 {
		return nil, 0, fmt.Errorf("%w: missing item", core.ErrInvalidItemData)
	}
	size, err := ItemSize(core.ExtHeaderKind(data[0]), data)
	if err != nil {
		return nil, 0, err
	}
	if len(data) < size {
		return nil, 0, fmt.Errorf("%w: item needs %d bytes, %d left", core.ErrInvalidItemData, size, len(data))
	}
	item, err := NewItem(data[:size])
	if err != nil {
		return nil, 0, err
	}
	return item, size, nil
}

// Equal reports whether two items carry the same header.
func (it *Item) Equal(other *Item) bool {
	if it == other {
		return true
	}
	if it == nil || other == nil {
		return false
	}
	return it.Kind == other.Kind && bytes.Equal(it.Data, other.Data)
}

// Len returns the item size in bytes.
func (it *Item) Len() int { return len(it.Data) }
