package decompressor

import (
	"sort"

	"firestige.xyz/rohc/internal/core/decomp"
)

// registry holds the contexts of one channel by CID. It is not safe for
// concurrent use; the Decompressor serializes access.
type registry struct {
	contexts map[uint16]*decomp.Context
}

func newRegistry() *registry {
	return &registry{contexts: make(map[uint16]*decomp.Context)}
}

func (r *registry) Get(cid uint16) (*decomp.Context, bool) {
	c, ok := r.contexts[cid]
	return c, ok
}

// Set stores c for cid and reports whether it replaced another context.
func (r *registry) Set(cid uint16, c *decomp.Context) bool {
	_, replaced := r.contexts[cid]
	r.contexts[cid] = c
	return replaced
}

func (r *registry) Delete(cid uint16) (*decomp.Context, bool) {
	c, ok := r.contexts[cid]
	if ok {
		delete(r.contexts, cid)
	}
	return c, ok
}

// CIDs returns the CIDs in use, in increasing order.
func (r *registry) CIDs() []uint16 {
	out := make([]uint16, 0, len(r.contexts))
	for cid := range r.contexts {
		out = append(out, cid)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (r *registry) Count() int { return len(r.contexts) }

// Clear destroys and removes every context.
func (r *registry) Clear() {
	for cid, c := range r.contexts {
		c.Destroy()
		delete(r.contexts, cid)
	}
}
