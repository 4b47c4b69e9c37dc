package catalog

import "sync/atomic"

// Holder publishes the current catalog snapshot to concurrent readers.
// Snapshots are swapped whole; a reader that called Load keeps a consistent
// catalog for the rest of its run.
type Holder struct {
	current atomic.Pointer[Catalog]
}

// NewHolder creates a holder with an initial snapshot.
func NewHolder(c *Catalog) *Holder {
	h := &Holder{}
	h.current.Store(c)
	return h
}

// Load returns the current snapshot.
func (h *Holder) Load() *Catalog {
	return h.current.Load()
}

// Swap installs c and returns the previous snapshot.
func (h *Holder) Swap(c *Catalog) *Catalog {
	return h.current.Swap(c)
}
