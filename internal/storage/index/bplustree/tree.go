// Package bplustree implements a persistent, concurrent B+ tree whose
// nodes are pages fetched through a buffer pool. The interesting work is
// the crabbing protocol during descent and the coalesce/redistribute
// rebalance on deletion; lookup, insertion and removal are otherwise a
// classic B+ tree.
package bplustree

import (
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/gopherlabs/bptreestore/internal/storage/buffer"
	"github.com/gopherlabs/bptreestore/internal/storage/disk"
	"github.com/gopherlabs/bptreestore/internal/storage/page"
	"github.com/gopherlabs/bptreestore/internal/storage/util"
)

// BPlusTree is a durable key -> RID index. root_page_id is cached in
// memory and mirrored into the catalog under indexName; the catalog call
// is InsertRecord the first time the tree gains a root and UpdateRecord
// on every subsequent change.
type BPlusTree struct {
	indexName string
	bpm       *buffer.PoolManager
	catalog   disk.Catalog
	cmp       util.KeyComparator
	log       *zap.Logger

	leafMaxSize     int
	internalMaxSize int

	// rootGuard is an RW latch distinct from any frame latch: it
	// serializes changes to rootID independent of any single node's
	// own latch.
	rootGuard sync.RWMutex
	rootID    util.PageID
}

// Config holds the parameters a tree instance is built from.
type Config struct {
	IndexName       string
	LeafMaxSize     int
	InternalMaxSize int
	Comparator      util.KeyComparator
}

// New constructs a tree over bpm/catalog. If indexName already has a root
// recorded in the catalog, the tree resumes over it; otherwise it starts
// empty.
func New(cfg Config, bpm *buffer.PoolManager, catalog disk.Catalog, log *zap.Logger) *BPlusTree {
	if cfg.Comparator == nil {
		cfg.Comparator = util.NaturalOrder
	}
	if log == nil {
		log = zap.NewNop()
	}

	rootID := util.InvalidPageID
	if existing, ok := catalog.GetRecord(cfg.IndexName); ok {
		rootID = existing
	}

	return &BPlusTree{
		indexName:       cfg.IndexName,
		bpm:             bpm,
		catalog:         catalog,
		cmp:             cfg.Comparator,
		log:             log,
		leafMaxSize:     cfg.LeafMaxSize,
		internalMaxSize: cfg.InternalMaxSize,
		rootID:          rootID,
	}
}

// IsEmpty reports whether the tree has no root yet.
func (t *BPlusTree) IsEmpty() bool {
	t.rootGuard.RLock()
	defer t.rootGuard.RUnlock()
	return t.rootID == util.InvalidPageID
}

// persistRoot records a new root id, calling InsertRecord the first time
// and UpdateRecord afterward. Caller must hold rootGuard for write.
func (t *BPlusTree) persistRoot(id util.PageID) error {
	_, recorded := t.catalog.GetRecord(t.indexName)
	t.rootID = id
	if !recorded {
		return t.catalog.InsertRecord(t.indexName, id)
	}
	return t.catalog.UpdateRecord(t.indexName, id)
}

func (t *BPlusTree) fetchLeaf(id util.PageID) (*page.Frame, *page.Leaf, error) {
	frame, err := t.bpm.FetchPage(id)
	if err != nil {
		return nil, nil, errors.Wrap(util.ErrOutOfMemory, err.Error())
	}
	return frame, page.NewLeaf(frame.Data[:]), nil
}

func (t *BPlusTree) newLeaf(parentID util.PageID) (*page.Frame, *page.Leaf, error) {
	frame, id, err := t.bpm.NewPage()
	if err != nil {
		return nil, nil, errors.Wrap(util.ErrOutOfMemory, err.Error())
	}
	leaf := page.NewLeaf(frame.Data[:])
	leaf.Init(id, parentID, t.leafMaxSize)
	frame.IsDirty = true
	return frame, leaf, nil
}

func (t *BPlusTree) newInternal(parentID util.PageID) (*page.Frame, *page.Internal, error) {
	frame, id, err := t.bpm.NewPage()
	if err != nil {
		return nil, nil, errors.Wrap(util.ErrOutOfMemory, err.Error())
	}
	internal := page.NewInternal(frame.Data[:])
	internal.Init(id, parentID, t.internalMaxSize)
	frame.IsDirty = true
	return frame, internal, nil
}

// relinkLeafPrev updates the leaf at id's prev_page_id to newPrev, the
// leaf's new predecessor in the sibling chain. A no-op if id is invalid
// (the chain's tail has no successor to fix up). id is not otherwise held
// by the caller, so it is fetched and write-latched here independently.
func (t *BPlusTree) relinkLeafPrev(id, newPrev util.PageID) error {
	if id == util.InvalidPageID {
		return nil
	}
	frame, err := t.bpm.FetchPage(id)
	if err != nil {
		return errors.Wrap(util.ErrOutOfMemory, err.Error())
	}
	frame.Latch.Lock()
	page.NewLeaf(frame.Data[:]).SetPrevPageID(newPrev)
	frame.IsDirty = true
	frame.Latch.Unlock()
	return t.bpm.UnpinPage(id, true)
}

func minSize(maxSize int) int {
	return (maxSize + 1) / 2
}

// isSafe reports whether frame, already latched, is safe for m: a
// propagating structural change cannot occur on this node for the
// intended operation.
func (t *BPlusTree) isSafe(frame *page.Frame, m mode) bool {
	h := page.NewHeader(frame.Data[:])
	size := h.Size()
	maxSize := h.MaxSize()

	switch m {
	case modeInsert:
		return size < maxSize-1
	case modeDelete:
		if h.IsRootPage() {
			if h.PageType() == page.LeafType {
				return true
			}
			return size > 2
		}
		return size > minSize(maxSize)
	default:
		return true
	}
}

// descend walks from the root (already identified by chain's root-id
// guard, which the caller must have pushed) to the leaf covering key,
// crabbing according to chain's mode. chain accumulates whichever
// ancestor latches the crabbing discipline keeps held; the caller is
// responsible for eventually calling chain.releaseAll().
func (t *BPlusTree) descend(key util.Key, chain *crabChain, leftMost bool) (*page.Frame, *page.Leaf, error) {
	currentID := t.rootID
	for {
		frame, err := t.bpm.FetchPage(currentID)
		if err != nil {
			return nil, nil, errors.Wrap(util.ErrOutOfMemory, err.Error())
		}
		chain.pushFrame(frame)

		h := page.NewHeader(frame.Data[:])
		if chain.mode == modeRead {
			chain.releaseAncestors()
		} else if t.isSafe(frame, chain.mode) {
			chain.releaseAncestors()
		}

		if h.PageType() == page.LeafType {
			return frame, page.NewLeaf(frame.Data[:]), nil
		}

		internal := page.NewInternal(frame.Data[:])
		if leftMost {
			currentID = internal.ChildAt(0)
		} else {
			currentID = internal.Lookup(key, t.cmp)
		}
	}
}
