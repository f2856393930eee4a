package bplustree

import (
	"github.com/pkg/errors"

	"github.com/gopherlabs/bptreestore/internal/storage/page"
	"github.com/gopherlabs/bptreestore/internal/storage/transaction"
	"github.com/gopherlabs/bptreestore/internal/storage/util"
)

// Insert adds (key, value). Returns false without modifying the tree if
// key is already present.
func (t *BPlusTree) Insert(key util.Key, value util.RID, txn *transaction.Transaction) (bool, error) {
	chain := newCrabChain(t, modeInsert, txn)
	defer chain.releaseAll()

	chain.pushRootGuard()

	if t.rootID == util.InvalidPageID {
		frame, leaf, err := t.newLeaf(util.InvalidPageID)
		if err != nil {
			return false, err
		}
		leaf.Insert(key, value, t.cmp)
		frame.IsDirty = true
		if err := t.persistRoot(leaf.PageID()); err != nil {
			return false, err
		}
		return true, t.bpm.UnpinPage(leaf.PageID(), false)
	}

	frame, leaf, err := t.descend(key, chain, false)
	if err != nil {
		return false, err
	}

	if _, exists := leaf.Lookup(key, t.cmp); exists {
		return false, nil
	}

	newSize := leaf.Insert(key, value, t.cmp)
	frame.IsDirty = true

	if newSize == t.leafMaxSize {
		if err := t.splitLeaf(chain, frame, leaf); err != nil {
			return false, err
		}
	}
	return true, nil
}

// splitLeaf allocates a sibling leaf, moves the upper half of frame's
// entries into it, splices it into the sibling chain, and pushes the new
// separator into the parent.
func (t *BPlusTree) splitLeaf(chain *crabChain, frame *page.Frame, leaf *page.Leaf) error {
	parentID := leaf.ParentPageID()
	siblingFrame, sibling, err := t.newLeaf(parentID)
	if err != nil {
		return err
	}

	leaf.MoveHalfTo(sibling)
	oldNext := leaf.NextPageID()
	sibling.SetNextPageID(oldNext)
	sibling.SetPrevPageID(frame.PageID)
	leaf.SetNextPageID(sibling.PageID())
	frame.IsDirty = true
	siblingFrame.IsDirty = true

	if err := t.relinkLeafPrev(oldNext, sibling.PageID()); err != nil {
		return err
	}

	splitKey := sibling.KeyAt(0)
	insertErr := t.insertIntoParent(chain, frame, splitKey, sibling.PageID())
	unpinErr := t.bpm.UnpinPage(sibling.PageID(), false)
	if insertErr != nil {
		return insertErr
	}
	return unpinErr
}

// splitInternal mirrors splitLeaf for an internal node: no sibling chain
// or middle-key substitution, since move_half_to on an internal page
// carries entries (and their keys) verbatim.
func (t *BPlusTree) splitInternal(chain *crabChain, frame *page.Frame, node *page.Internal) error {
	parentID := node.ParentPageID()
	siblingFrame, sibling, err := t.newInternal(parentID)
	if err != nil {
		return err
	}

	if err := node.MoveHalfTo(sibling, t.bpm); err != nil {
		return err
	}
	frame.IsDirty = true
	siblingFrame.IsDirty = true

	splitKey := sibling.KeyAt(0)
	insertErr := t.insertIntoParent(chain, frame, splitKey, sibling.PageID())
	unpinErr := t.bpm.UnpinPage(sibling.PageID(), false)
	if insertErr != nil {
		return insertErr
	}
	return unpinErr
}

// insertIntoParent links a freshly split pair into their parent. If old
// was the root, a new internal root is created above both halves;
// otherwise the (already write-latched) parent gets a new entry and, if
// that overflows it, splits in turn.
func (t *BPlusTree) insertIntoParent(chain *crabChain, oldFrame *page.Frame, splitKey util.Key, newID util.PageID) error {
	if oldFrame.PageID == t.rootID {
		return t.populateNewRootAbove(oldFrame, splitKey, newID)
	}

	parentID := page.NewHeader(oldFrame.Data[:]).ParentPageID()
	parentFrame := chain.findHeld(parentID)
	if parentFrame == nil {
		return errors.Errorf("insert into parent: parent page %d not latched", parentID)
	}

	parent := page.NewInternal(parentFrame.Data[:])
	newSize := parent.InsertNodeAfter(oldFrame.PageID, splitKey, newID)
	parentFrame.IsDirty = true

	if newSize == t.internalMaxSize {
		return t.splitInternal(chain, parentFrame, parent)
	}
	return nil
}

// populateNewRootAbove creates a new internal root over old and new when
// old was the root being split.
func (t *BPlusTree) populateNewRootAbove(oldFrame *page.Frame, splitKey util.Key, newID util.PageID) error {
	rootFrame, root, err := t.newInternal(util.InvalidPageID)
	if err != nil {
		return err
	}
	root.PopulateNewRoot(oldFrame.PageID, splitKey, newID)
	rootFrame.IsDirty = true

	page.NewHeader(oldFrame.Data[:]).SetParentPageID(root.PageID())
	oldFrame.IsDirty = true

	newFrame, err := t.bpm.FetchPage(newID)
	if err != nil {
		return err
	}
	page.NewHeader(newFrame.Data[:]).SetParentPageID(root.PageID())
	newFrame.IsDirty = true
	if err := t.bpm.UnpinPage(newID, false); err != nil {
		return err
	}

	if err := t.persistRoot(root.PageID()); err != nil {
		return err
	}
	return t.bpm.UnpinPage(root.PageID(), false)
}
