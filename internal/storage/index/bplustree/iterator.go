package bplustree

import (
	"github.com/gopherlabs/bptreestore/internal/storage/page"
	"github.com/gopherlabs/bptreestore/internal/storage/transaction"
	"github.com/gopherlabs/bptreestore/internal/storage/util"
)

// IndexIterator is a forward cursor over leaf entries. It holds a single
// leaf's read latch at a time, releasing it only when advancing past the
// leaf's last entry or when the iterator itself is closed.
type IndexIterator struct {
	tree  *BPlusTree
	frame *page.Frame
	leaf  *page.Leaf
	slot  int
	done  bool
}

// End returns an exhausted iterator, the sentinel every forward scan
// eventually compares itself against.
func (t *BPlusTree) End() *IndexIterator {
	return &IndexIterator{tree: t, done: true}
}

// Begin returns an iterator positioned at the tree's first entry.
func (t *BPlusTree) Begin() (*IndexIterator, error) {
	t.rootGuard.RLock()
	defer t.rootGuard.RUnlock()

	if t.rootID == util.InvalidPageID {
		return t.End(), nil
	}

	txn := transaction.New()
	chain := newCrabChain(t, modeRead, txn)
	frame, leaf, err := t.descend(0, chain, true)
	chain.releaseAncestors()
	if err != nil {
		return nil, err
	}
	return &IndexIterator{tree: t, frame: frame, leaf: leaf, slot: 0}, nil
}

// BeginAt returns an iterator positioned at the first entry with key >=
// key.
func (t *BPlusTree) BeginAt(key util.Key) (*IndexIterator, error) {
	t.rootGuard.RLock()
	defer t.rootGuard.RUnlock()

	if t.rootID == util.InvalidPageID {
		return t.End(), nil
	}

	txn := transaction.New()
	chain := newCrabChain(t, modeRead, txn)
	frame, leaf, err := t.descend(key, chain, false)
	chain.releaseAncestors()
	if err != nil {
		return nil, err
	}

	it := &IndexIterator{tree: t, frame: frame, leaf: leaf, slot: leaf.KeyIndex(key, t.cmp)}
	if it.slot >= leaf.Size() {
		if advErr := it.advanceLeaf(); advErr != nil {
			return nil, advErr
		}
	}
	return it, nil
}

// IsEnd reports whether the cursor has been exhausted.
func (it *IndexIterator) IsEnd() bool {
	return it.done
}

// Key returns the current entry's key. Undefined past the end.
func (it *IndexIterator) Key() util.Key {
	return it.leaf.KeyAt(it.slot)
}

// Value returns the current entry's RID. Undefined past the end.
func (it *IndexIterator) Value() util.RID {
	return it.leaf.ValueAt(it.slot)
}

// Next advances the cursor, crossing into the next leaf via next_page_id
// when the current one is exhausted. Returns true if the cursor still
// points at a valid entry afterward.
func (it *IndexIterator) Next() (bool, error) {
	if it.done {
		return false, nil
	}
	it.slot++
	if it.slot < it.leaf.Size() {
		return true, nil
	}
	if err := it.advanceLeaf(); err != nil {
		return false, err
	}
	return !it.done, nil
}

// advanceLeaf releases the current leaf's latch and follows next_page_id
// until it finds a leaf with at least one entry, or runs off the end.
func (it *IndexIterator) advanceLeaf() error {
	for {
		nextID := it.leaf.NextPageID()
		it.frame.Latch.RUnlock()
		if err := it.tree.bpm.UnpinPage(it.frame.PageID, false); err != nil {
			return err
		}
		it.frame, it.leaf, it.slot = nil, nil, 0

		if nextID == util.InvalidPageID {
			it.done = true
			return nil
		}

		frame, leaf, err := it.tree.fetchLeaf(nextID)
		if err != nil {
			return err
		}
		frame.Latch.RLock()
		if leaf.Size() > 0 {
			it.frame, it.leaf = frame, leaf
			return nil
		}
		it.frame, it.leaf = frame, leaf
	}
}

// Close releases whatever latch the cursor currently holds, without
// requiring the caller to drain it via Next. Safe to call on an already
// exhausted iterator.
func (it *IndexIterator) Close() error {
	if it.done || it.frame == nil {
		return nil
	}
	frame := it.frame
	it.frame, it.leaf = nil, nil
	it.done = true
	frame.Latch.RUnlock()
	return it.tree.bpm.UnpinPage(frame.PageID, false)
}
