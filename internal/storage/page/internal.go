package page

import (
	"encoding/binary"

	"github.com/gopherlabs/bptreestore/internal/storage/util"
)

// internalEntrySize is the fixed width of one (key, child_page_id) pair.
const internalEntrySize = 8 + 4

// PageFetcher is the slice of the buffer pool an internal page needs to
// reparent children during move operations. Declared here, rather than
// importing the buffer package directly, to keep page free of a cycle
// back to its own caller.
type PageFetcher interface {
	FetchPage(id util.PageID) (*Frame, error)
	UnpinPage(id util.PageID, isDirty bool) error
}

// Internal is the sorted-array view of a frame holding internal-level tree
// data: size entries of (key, child_page_id), where entry 0's key is an
// unused sentinel and entry 0's child is the leftmost subtree.
type Internal struct {
	Header
}

// NewInternal wraps a frame's bytes as an internal view.
func NewInternal(data []byte) *Internal {
	return &Internal{Header{data: data}}
}

// Init sets up a brand-new, empty internal page.
func (n *Internal) Init(pageID, parentID util.PageID, maxSize int) {
	n.setPageType(InternalType)
	n.setSize(0)
	n.setMaxSize(maxSize)
	n.setPageID(pageID)
	n.SetParentPageID(parentID)
}

func (n *Internal) entryOffset(i int) int {
	return internalHeaderSize + i*internalEntrySize
}

// KeyAt returns the key at index i. Index 0's key is a sentinel and should
// not be compared against.
func (n *Internal) KeyAt(i int) util.Key {
	off := n.entryOffset(i)
	return int64(binary.LittleEndian.Uint64(n.data[off:]))
}

func (n *Internal) setKeyAt(i int, k util.Key) {
	off := n.entryOffset(i)
	binary.LittleEndian.PutUint64(n.data[off:], uint64(k))
}

// ChildAt returns the child page id at index i.
func (n *Internal) ChildAt(i int) util.PageID {
	off := n.entryOffset(i) + 8
	return util.PageID(int32(binary.LittleEndian.Uint32(n.data[off:])))
}

func (n *Internal) setChildAt(i int, id util.PageID) {
	off := n.entryOffset(i) + 8
	binary.LittleEndian.PutUint32(n.data[off:], uint32(int32(id)))
}

func (n *Internal) setEntry(i int, k util.Key, child util.PageID) {
	n.setKeyAt(i, k)
	n.setChildAt(i, child)
}

// SetKeyAt overwrites the key at index i. Exposed so the tree can rotate a
// separator key down from (or up into) a parent during redistribution.
func (n *Internal) SetKeyAt(i int, k util.Key) {
	n.setKeyAt(i, k)
}

// ValueIndex returns the index of the entry pointing at child, or -1.
func (n *Internal) ValueIndex(child util.PageID) int {
	for i := 0; i < n.Size(); i++ {
		if n.ChildAt(i) == child {
			return i
		}
	}
	return -1
}

// Lookup returns the child page id whose subtree covers key: the first
// index i>0 with KeyAt(i) > key determines child i-1; if no such index
// exists, the last child covers it.
func (n *Internal) Lookup(key util.Key, cmp util.KeyComparator) util.PageID {
	size := n.Size()
	lo, hi := 1, size
	for lo < hi {
		mid := (lo + hi) / 2
		if cmp(n.KeyAt(mid), key) > 0 {
			hi = mid
		} else {
			lo = mid + 1
		}
	}
	return n.ChildAt(lo - 1)
}

// PopulateNewRoot initializes this (empty) page as a fresh root with two
// children: entry 0 carries the sentinel key and leftChild, entry 1
// carries key and rightChild.
func (n *Internal) PopulateNewRoot(leftChild util.PageID, key util.Key, rightChild util.PageID) {
	n.setEntry(0, 0, leftChild)
	n.setEntry(1, key, rightChild)
	n.setSize(2)
}

// InsertNodeAfter locates the entry pointing at oldChild and inserts
// (newKey, newChild) immediately after it. Returns the new size.
func (n *Internal) InsertNodeAfter(oldChild util.PageID, newKey util.Key, newChild util.PageID) int {
	idx := n.ValueIndex(oldChild)
	size := n.Size()
	for j := size; j > idx+1; j-- {
		n.setEntry(j, n.KeyAt(j-1), n.ChildAt(j-1))
	}
	n.setEntry(idx+1, newKey, newChild)
	size++
	n.setSize(size)
	return size
}

// RemoveAt deletes the entry at index and shifts the remainder left.
func (n *Internal) RemoveAt(index int) {
	size := n.Size()
	for j := index; j < size-1; j++ {
		n.setEntry(j, n.KeyAt(j+1), n.ChildAt(j+1))
	}
	n.setSize(size - 1)
}

func (n *Internal) reparent(pf PageFetcher, child util.PageID) error {
	frame, err := pf.FetchPage(child)
	if err != nil {
		return err
	}
	childHdr := Header{data: frame.Data[:]}
	childHdr.SetParentPageID(n.PageID())
	frame.IsDirty = true
	return pf.UnpinPage(child, true)
}

// MoveHalfTo transfers this node's last floor(size/2) entries to recipient
// (empty), reparenting each moved child. Used immediately after a split.
func (n *Internal) MoveHalfTo(recipient *Internal, pf PageFetcher) error {
	size := n.Size()
	half := size / 2
	start := size - half
	for i := start; i < size; i++ {
		recipient.setEntry(i-start, n.KeyAt(i), n.ChildAt(i))
		if err := n.reparentInto(recipient, pf, n.ChildAt(i)); err != nil {
			return err
		}
	}
	recipient.setSize(half)
	n.setSize(start)
	return nil
}

func (n *Internal) reparentInto(recipient *Internal, pf PageFetcher, child util.PageID) error {
	return recipient.reparent(pf, child)
}

// MoveAllTo appends every entry of this node onto recipient, replacing the
// moved entry 0's sentinel key with middleKey (supplied by the parent),
// and reparents moved children.
func (n *Internal) MoveAllTo(recipient *Internal, middleKey util.Key, pf PageFetcher) error {
	size := n.Size()
	rsize := recipient.Size()
	for i := 0; i < size; i++ {
		key := n.KeyAt(i)
		if i == 0 {
			key = middleKey
		}
		recipient.setEntry(rsize+i, key, n.ChildAt(i))
		if err := recipient.reparent(pf, n.ChildAt(i)); err != nil {
			return err
		}
	}
	recipient.setSize(rsize + size)
	n.setSize(0)
	return nil
}

// MoveFirstToEndOf moves this node's first entry to the end of recipient,
// rotating middleKey down from the parent into the moved entry's slot and
// reparenting the moved child. Used when borrowing from the right sibling.
func (n *Internal) MoveFirstToEndOf(recipient *Internal, middleKey util.Key, pf PageFetcher) error {
	child := n.ChildAt(0)
	rsize := recipient.Size()
	recipient.setEntry(rsize, middleKey, child)
	recipient.setSize(rsize + 1)
	if err := recipient.reparent(pf, child); err != nil {
		return err
	}
	n.RemoveAt(0)
	return nil
}

// MoveLastToFrontOf moves this node's last entry to the front of
// recipient, rotating middleKey down from the parent and reparenting the
// moved child. Used when borrowing from the left sibling.
func (n *Internal) MoveLastToFrontOf(recipient *Internal, middleKey util.Key, pf PageFetcher) error {
	size := n.Size()
	child := n.ChildAt(size - 1)
	rsize := recipient.Size()
	recipient.setKeyAt(0, middleKey)
	for j := rsize; j > 0; j-- {
		recipient.setEntry(j, recipient.KeyAt(j-1), recipient.ChildAt(j-1))
	}
	recipient.setEntry(0, middleKey, child)
	recipient.setSize(rsize + 1)
	n.setSize(size - 1)
	return recipient.reparent(pf, child)
}
