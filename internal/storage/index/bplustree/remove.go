package bplustree

import (
	"github.com/pkg/errors"

	"github.com/gopherlabs/bptreestore/internal/storage/page"
	"github.com/gopherlabs/bptreestore/internal/storage/transaction"
	"github.com/gopherlabs/bptreestore/internal/storage/util"
)

// Remove deletes key if present; a no-op if it is not.
func (t *BPlusTree) Remove(key util.Key, txn *transaction.Transaction) error {
	chain := newCrabChain(t, modeDelete, txn)

	chain.pushRootGuard()
	if t.rootID == util.InvalidPageID {
		chain.releaseAll()
		return nil
	}

	frame, leaf, err := t.descend(key, chain, false)
	if err != nil {
		chain.releaseAll()
		return err
	}

	idx := leaf.KeyIndex(key, t.cmp)
	if idx >= leaf.Size() || t.cmp(leaf.KeyAt(idx), key) != 0 {
		chain.releaseAll()
		return nil
	}

	leaf.RemoveAt(idx)
	frame.IsDirty = true

	var rebalanceErr error
	if leaf.Size() < minSize(leaf.MaxSize()) {
		rebalanceErr = t.coalesceOrRedistribute(chain, frame)
	}
	chain.releaseAll()
	if rebalanceErr != nil {
		return rebalanceErr
	}

	for _, id := range txn.DrainDeletedPageSet() {
		if err := t.bpm.DeletePage(id); err != nil {
			return err
		}
	}
	return nil
}

func (t *BPlusTree) fetchSiblingLatched(id util.PageID) (*page.Frame, error) {
	frame, err := t.bpm.FetchPage(id)
	if err != nil {
		return nil, errors.Wrap(util.ErrOutOfMemory, err.Error())
	}
	frame.Latch.Lock()
	return frame, nil
}

func (t *BPlusTree) releaseSibling(frame *page.Frame) {
	frame.Latch.Unlock()
	_ = t.bpm.UnpinPage(frame.PageID, false)
}

// coalesceOrRedistribute handles an underfull node: the root is adjusted
// in place; otherwise a sibling with slack redistributes one entry, and
// failing that the node is merged with a sibling, possibly propagating
// the underflow up to the parent.
func (t *BPlusTree) coalesceOrRedistribute(chain *crabChain, nodeFrame *page.Frame) error {
	if nodeFrame.PageID == t.rootID {
		return t.adjustRoot(chain, nodeFrame)
	}

	h := page.NewHeader(nodeFrame.Data[:])
	parentFrame := chain.findHeld(h.ParentPageID())
	if parentFrame == nil {
		return errors.Errorf("coalesce_or_redistribute: parent %d not latched", h.ParentPageID())
	}
	parent := page.NewInternal(parentFrame.Data[:])
	nodeIdx := parent.ValueIndex(nodeFrame.PageID)
	isLeaf := h.PageType() == page.LeafType

	var leftFrame, rightFrame *page.Frame
	var err error
	if nodeIdx > 0 {
		leftFrame, err = t.fetchSiblingLatched(parent.ChildAt(nodeIdx - 1))
		if err != nil {
			return err
		}
	}
	if nodeIdx < parent.Size()-1 {
		rightFrame, err = t.fetchSiblingLatched(parent.ChildAt(nodeIdx + 1))
		if err != nil {
			if leftFrame != nil {
				t.releaseSibling(leftFrame)
			}
			return err
		}
	}
	release := func() {
		if leftFrame != nil {
			t.releaseSibling(leftFrame)
		}
		if rightFrame != nil {
			t.releaseSibling(rightFrame)
		}
	}

	if leftFrame != nil && page.NewHeader(leftFrame.Data[:]).Size() > minSize(page.NewHeader(leftFrame.Data[:]).MaxSize()) {
		defer release()
		if isLeaf {
			t.redistributeLeaf(nodeFrame, leftFrame, parent, nodeIdx, false)
			return nil
		}
		return t.redistributeInternal(nodeFrame, leftFrame, parent, nodeIdx, false)
	}
	if rightFrame != nil && page.NewHeader(rightFrame.Data[:]).Size() > minSize(page.NewHeader(rightFrame.Data[:]).MaxSize()) {
		defer release()
		if isLeaf {
			t.redistributeLeaf(nodeFrame, rightFrame, parent, nodeIdx, true)
			return nil
		}
		return t.redistributeInternal(nodeFrame, rightFrame, parent, nodeIdx, true)
	}

	defer release()
	if leftFrame != nil {
		// Merging into the left sibling relinks the leaf chain, which latches
		// node's right neighbor itself, so the right sibling is let go first.
		if rightFrame != nil {
			t.releaseSibling(rightFrame)
			rightFrame = nil
		}
		return t.coalesce(chain, nodeFrame, leftFrame, parentFrame, parent, nodeIdx, isLeaf, false)
	}
	return t.coalesce(chain, nodeFrame, rightFrame, parentFrame, parent, nodeIdx, isLeaf, true)
}

// redistributeLeaf moves a single entry between node and neighbor,
// rotating the parent's separator to match the lender's new boundary key.
func (t *BPlusTree) redistributeLeaf(node, neighbor *page.Frame, parent *page.Internal, nodeIdx int, borrowFromRight bool) {
	nodeLeaf := page.NewLeaf(node.Data[:])
	neighborLeaf := page.NewLeaf(neighbor.Data[:])

	if borrowFromRight {
		neighborLeaf.MoveFirstToEndOf(nodeLeaf)
		parent.SetKeyAt(nodeIdx+1, neighborLeaf.KeyAt(0))
	} else {
		neighborLeaf.MoveLastToFrontOf(nodeLeaf)
		parent.SetKeyAt(nodeIdx, nodeLeaf.KeyAt(0))
	}
	node.IsDirty = true
	neighbor.IsDirty = true
}

// redistributeInternal rotates a single child through the parent: the old
// separator moves down into node, and the neighbor's exposed boundary key
// moves up to replace it.
func (t *BPlusTree) redistributeInternal(node, neighbor *page.Frame, parent *page.Internal, nodeIdx int, borrowFromRight bool) error {
	nodeInternal := page.NewInternal(node.Data[:])
	neighborInternal := page.NewInternal(neighbor.Data[:])

	if borrowFromRight {
		oldSeparator := parent.KeyAt(nodeIdx + 1)
		newSeparator := neighborInternal.KeyAt(1)
		if err := neighborInternal.MoveFirstToEndOf(nodeInternal, oldSeparator, t.bpm); err != nil {
			return err
		}
		parent.SetKeyAt(nodeIdx+1, newSeparator)
	} else {
		oldSeparator := parent.KeyAt(nodeIdx)
		newSeparator := neighborInternal.KeyAt(neighborInternal.Size() - 1)
		if err := neighborInternal.MoveLastToFrontOf(nodeInternal, oldSeparator, t.bpm); err != nil {
			return err
		}
		parent.SetKeyAt(nodeIdx, newSeparator)
	}
	node.IsDirty = true
	neighbor.IsDirty = true
	return nil
}

// coalesce merges node with neighbor. When neighbor is the right sibling,
// neighbor is emptied into node; otherwise node is emptied into the left
// neighbor. Either way the emptied page is marked for deletion and the
// parent's entry for it removed, propagating upward on underflow.
func (t *BPlusTree) coalesce(chain *crabChain, node, neighbor, parentFrame *page.Frame, parent *page.Internal, nodeIdx int, isLeaf, neighborIsRight bool) error {
	var removeIdx int
	var deleted *page.Frame

	if neighborIsRight {
		if isLeaf {
			survivorLeaf := page.NewLeaf(node.Data[:])
			page.NewLeaf(neighbor.Data[:]).MoveAllTo(survivorLeaf)
			if err := t.relinkLeafPrev(survivorLeaf.NextPageID(), node.PageID); err != nil {
				return err
			}
		} else {
			middleKey := parent.KeyAt(nodeIdx + 1)
			if err := page.NewInternal(neighbor.Data[:]).MoveAllTo(page.NewInternal(node.Data[:]), middleKey, t.bpm); err != nil {
				return err
			}
		}
		removeIdx = nodeIdx + 1
		deleted = neighbor
	} else {
		if isLeaf {
			survivorLeaf := page.NewLeaf(neighbor.Data[:])
			page.NewLeaf(node.Data[:]).MoveAllTo(survivorLeaf)
			if err := t.relinkLeafPrev(survivorLeaf.NextPageID(), neighbor.PageID); err != nil {
				return err
			}
		} else {
			middleKey := parent.KeyAt(nodeIdx)
			if err := page.NewInternal(node.Data[:]).MoveAllTo(page.NewInternal(neighbor.Data[:]), middleKey, t.bpm); err != nil {
				return err
			}
		}
		removeIdx = nodeIdx
		deleted = node
	}

	node.IsDirty = true
	neighbor.IsDirty = true
	parent.RemoveAt(removeIdx)
	parentFrame.IsDirty = true
	chain.txn.AddToDeletedPageSet(deleted.PageID)

	if parentFrame.PageID == t.rootID {
		return t.adjustRoot(chain, parentFrame)
	}
	if parent.Size() < minSize(parent.MaxSize()) {
		return t.coalesceOrRedistribute(chain, parentFrame)
	}
	return nil
}

// adjustRoot collapses the root after it lost a child: a non-empty leaf
// root is left alone, an internal root with one remaining child is
// replaced by that child, and an empty leaf root empties the tree.
func (t *BPlusTree) adjustRoot(chain *crabChain, rootFrame *page.Frame) error {
	h := page.NewHeader(rootFrame.Data[:])

	if h.PageType() == page.LeafType {
		if page.NewLeaf(rootFrame.Data[:]).Size() > 0 {
			return nil
		}
		if err := t.persistRoot(util.InvalidPageID); err != nil {
			return err
		}
		chain.txn.AddToDeletedPageSet(rootFrame.PageID)
		return nil
	}

	internal := page.NewInternal(rootFrame.Data[:])
	if internal.Size() != 1 {
		return nil
	}

	onlyChild := internal.ChildAt(0)
	childFrame, err := t.bpm.FetchPage(onlyChild)
	if err != nil {
		return errors.Wrap(util.ErrOutOfMemory, err.Error())
	}
	page.NewHeader(childFrame.Data[:]).SetParentPageID(util.InvalidPageID)
	childFrame.IsDirty = true
	if err := t.bpm.UnpinPage(onlyChild, false); err != nil {
		return err
	}

	if err := t.persistRoot(onlyChild); err != nil {
		return err
	}
	chain.txn.AddToDeletedPageSet(rootFrame.PageID)
	return nil
}
