package bplustree

import (
	"github.com/gopherlabs/bptreestore/internal/storage/page"
	"github.com/gopherlabs/bptreestore/internal/storage/transaction"
	"github.com/gopherlabs/bptreestore/internal/storage/util"
)

// mode is the latch discipline a descent uses: read-only crabbing always
// releases ancestors, write crabbing releases them only once the newly
// latched node is safe.
type mode int

const (
	modeRead mode = iota
	modeInsert
	modeDelete
)

// crabChain is the single type that owns the latches a descent acquires
// and drains them, so that any early return still releases whatever is
// held. It wraps a transaction's page set: appending here also appends to
// the transaction. Releases walk the chain's own list; releaseAncestors
// leaves the transaction's page set as it is, and releaseAll empties it.
type crabChain struct {
	tree *BPlusTree
	mode mode
	txn  *transaction.Transaction
	held []*page.Frame // nil entry = root-id guard sentinel
}

func newCrabChain(t *BPlusTree, m mode, txn *transaction.Transaction) *crabChain {
	return &crabChain{tree: t, mode: m, txn: txn}
}

// pushRootGuard acquires the tree's root-id guard in the chain's mode and
// records the sentinel.
func (c *crabChain) pushRootGuard() {
	if c.mode == modeRead {
		c.tree.rootGuard.RLock()
	} else {
		c.tree.rootGuard.Lock()
	}
	c.held = append(c.held, nil)
	c.txn.AddToPageSet(nil)
}

// pushFrame acquires frame's latch in the chain's mode and appends it.
func (c *crabChain) pushFrame(frame *page.Frame) {
	if c.mode == modeRead {
		frame.Latch.RLock()
	} else {
		frame.Latch.Lock()
	}
	c.held = append(c.held, frame)
	c.txn.AddToPageSet(frame)
}

// releaseOne releases and unpins a single entry. Unpin always passes
// isDirty=false: a mutator marks frame.IsDirty directly before release,
// so the pin-count bookkeeping does not need to redo that decision.
func (c *crabChain) releaseOne(frame *page.Frame) {
	if frame == nil {
		if c.mode == modeRead {
			c.tree.rootGuard.RUnlock()
		} else {
			c.tree.rootGuard.Unlock()
		}
		return
	}
	if c.mode == modeRead {
		frame.Latch.RUnlock()
	} else {
		frame.Latch.Unlock()
	}
	_ = c.tree.bpm.UnpinPage(frame.PageID, false)
}

// releaseAncestors releases every held latch except the most recently
// acquired one, the early-release step of crabbing.
func (c *crabChain) releaseAncestors() {
	if len(c.held) <= 1 {
		return
	}
	for _, f := range c.held[:len(c.held)-1] {
		c.releaseOne(f)
	}
	c.held = c.held[len(c.held)-1:]
}

// releaseAll releases every latch still held, in acquisition order, and
// empties the transaction's page set. The deleted-page set is left
// untouched: draining it is a separate step the caller performs once
// every latch is released.
func (c *crabChain) releaseAll() {
	for _, f := range c.held {
		c.releaseOne(f)
	}
	c.held = nil
	c.txn.DrainPageSet()
}

// findHeld returns the frame with the given page id among the chain's
// currently latched frames, or nil. Used to locate an already-latched
// ancestor (the parent of a node that just split) without re-fetching.
func (c *crabChain) findHeld(id util.PageID) *page.Frame {
	for _, f := range c.held {
		if f != nil && f.PageID == id {
			return f
		}
	}
	return nil
}
