// Package page defines the in-memory frame the buffer pool hands out and
// the two structured views (leaf, internal) a B+ tree imposes on a frame's
// bytes once it decides the page is a tree node.
package page

import (
	"sync"

	"github.com/gopherlabs/bptreestore/internal/storage/util"
)

// Frame is a resident slot in the buffer pool: a fixed byte buffer plus the
// metadata the pool and the tree need to track it. The RWMutex is the
// per-frame latch the B+ tree crabs across during descent; it is distinct
// from the buffer pool's own mutex, which only ever protects the pool's
// bookkeeping (page table, free list, replacer), never frame contents.
type Frame struct {
	Latch sync.RWMutex

	PageID   util.PageID
	PinCount int
	IsDirty  bool
	Data     [util.PageSize]byte
}

// Reset clears a frame's identity and contents so it can be reused for a
// different page id. Callers must hold the buffer pool mutex; the frame
// latch is not touched here because a reset frame, by construction, has no
// concurrent readers or writers left.
func (f *Frame) Reset() {
	f.PageID = util.InvalidPageID
	f.PinCount = 0
	f.IsDirty = false
	for i := range f.Data {
		f.Data[i] = 0
	}
}
