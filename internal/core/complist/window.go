package complist

import (
	"fmt"

	"firestige.xyz/rohc/internal/core"
)

const (
	// DefaultWindowSize is the number of generations kept for lookup.
	DefaultWindowSize = 100
	// MaxWindowSize covers the whole 8-bit generation space.
	MaxWindowSize = 256
)

type slot struct {
	used bool
	list *List
}

// Window keeps past list generations, slot gen_id % size.
type Window struct {
	slots []slot
}

// NewWindow returns a window holding up to size generations.
func NewWindow(size int) (*Window, error) {
	if size < 1 || size > MaxWindowSize {
		return nil, fmt.Errorf("%w: list window size %d not in [1, %d]", core.ErrConfigInvalid, size, MaxWindowSize)
	}
	return &Window{slots: make([]slot, size)}, nil
}

// Store records l under its generation id. Lists without one are ignored.
func (w *Window) Store(l *List) {
	if !l.HasGen {
		return
	}
	w.slots[int(l.GenID)%len(w.slots)] = slot{used: true, list: l}
}

// Lookup returns the list of generation gen.
func (w *Window) Lookup(gen uint8) (*List, bool) {
	s := w.slots[int(gen)%len(w.slots)]
	if !s.used || s.list.GenID != gen {
		return nil, false
	}
	return s.list, true
}

// Reset empties the window.
func (w *Window) Reset() {
	for i := range w.slots {
		w.slots[i] = slot{}
	}
}
