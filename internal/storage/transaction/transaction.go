// Package transaction holds the per-operation context the B+ tree threads
// through a descent: the ordered set of frames it has latched and the set
// of pages it decided to delete once the operation completes.
package transaction

import (
	"github.com/gopherlabs/bptreestore/internal/storage/page"
	"github.com/gopherlabs/bptreestore/internal/storage/util"
)

// Transaction is a single tree operation's latch-and-cleanup ledger. It is
// not a database transaction in the ACID sense; the log manager and
// concurrency control it would otherwise carry are out of scope here.
//
// A nil entry in the page set stands for the root-id guard sentinel, so
// that the page set records the guard in acquisition order alongside every
// frame latch. The transaction itself releases nothing.
type Transaction struct {
	pageSet      []*page.Frame
	deletedPages []util.PageID
}

// New returns an empty transaction.
func New() *Transaction {
	return &Transaction{}
}

// AddToPageSet appends frame (or nil for the root-id guard) to the
// latched-page queue, in acquisition order.
func (t *Transaction) AddToPageSet(frame *page.Frame) {
	t.pageSet = append(t.pageSet, frame)
}

// PageSet returns the latched-page queue in acquisition order.
func (t *Transaction) PageSet() []*page.Frame {
	return t.pageSet
}

// DrainPageSet returns the latched-page queue in acquisition order and
// empties it.
func (t *Transaction) DrainPageSet() []*page.Frame {
	set := t.pageSet
	t.pageSet = nil
	return set
}

// AddToDeletedPageSet records id as scheduled for deletion once the
// operation completes.
func (t *Transaction) AddToDeletedPageSet(id util.PageID) {
	t.deletedPages = append(t.deletedPages, id)
}

// DeletedPageSet returns the pages scheduled for deletion so far.
func (t *Transaction) DeletedPageSet() []util.PageID {
	return t.deletedPages
}

// DrainDeletedPageSet returns the pages scheduled for deletion and empties
// the set.
func (t *Transaction) DrainDeletedPageSet() []util.PageID {
	set := t.deletedPages
	t.deletedPages = nil
	return set
}

// Clear empties both sets, readying the transaction for reuse.
func (t *Transaction) Clear() {
	t.pageSet = nil
	t.deletedPages = nil
}
