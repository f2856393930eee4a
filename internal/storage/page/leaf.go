package page

import (
	"encoding/binary"

	"github.com/gopherlabs/bptreestore/internal/storage/util"
)

// leafEntrySize is the fixed width of one (key, value) pair: an 8-byte key
// followed by the 8-byte RID.
const leafEntrySize = 8 + 8

// Leaf is the sorted-array view of a frame holding leaf-level tree data:
// key -> value pairs plus sibling pointers. It is purely in-memory and
// unsynchronized; callers are expected to already hold the frame's latch.
type Leaf struct {
	Header
}

// NewLeaf wraps a frame's bytes as a leaf view. It does not initialize the
// header; call Init for a freshly allocated page.
func NewLeaf(data []byte) *Leaf {
	return &Leaf{Header{data: data}}
}

// Init sets up a brand-new leaf page: empty, with the given max size, page
// id and parent.
func (l *Leaf) Init(pageID, parentID util.PageID, maxSize int) {
	l.setPageType(LeafType)
	l.setSize(0)
	l.setMaxSize(maxSize)
	l.setPageID(pageID)
	l.SetParentPageID(parentID)
	l.SetNextPageID(util.InvalidPageID)
	l.SetPrevPageID(util.InvalidPageID)
}

func (l *Leaf) NextPageID() util.PageID {
	return util.PageID(int32(binary.LittleEndian.Uint32(l.data[offNextPageID:])))
}

func (l *Leaf) SetNextPageID(id util.PageID) {
	binary.LittleEndian.PutUint32(l.data[offNextPageID:], uint32(int32(id)))
}

func (l *Leaf) PrevPageID() util.PageID {
	return util.PageID(int32(binary.LittleEndian.Uint32(l.data[offPrevPageID:])))
}

func (l *Leaf) SetPrevPageID(id util.PageID) {
	binary.LittleEndian.PutUint32(l.data[offPrevPageID:], uint32(int32(id)))
}

func (l *Leaf) entryOffset(i int) int {
	return leafHeaderSize + i*leafEntrySize
}

// KeyAt returns the key stored at index i.
func (l *Leaf) KeyAt(i int) util.Key {
	off := l.entryOffset(i)
	return int64(binary.LittleEndian.Uint64(l.data[off:]))
}

func (l *Leaf) setKeyAt(i int, k util.Key) {
	off := l.entryOffset(i)
	binary.LittleEndian.PutUint64(l.data[off:], uint64(k))
}

// ValueAt returns the RID stored at index i.
func (l *Leaf) ValueAt(i int) util.RID {
	off := l.entryOffset(i) + 8
	return util.RID{
		PageID:  int32(binary.LittleEndian.Uint32(l.data[off:])),
		SlotNum: int32(binary.LittleEndian.Uint32(l.data[off+4:])),
	}
}

func (l *Leaf) setValueAt(i int, v util.RID) {
	off := l.entryOffset(i) + 8
	binary.LittleEndian.PutUint32(l.data[off:], uint32(v.PageID))
	binary.LittleEndian.PutUint32(l.data[off+4:], uint32(v.SlotNum))
}

func (l *Leaf) setEntry(i int, k util.Key, v util.RID) {
	l.setKeyAt(i, k)
	l.setValueAt(i, v)
}

// KeyIndex returns the least index i with KeyAt(i) >= key, or Size() if
// every key is smaller.
func (l *Leaf) KeyIndex(key util.Key, cmp util.KeyComparator) int {
	size := l.Size()
	lo, hi := 0, size
	for lo < hi {
		mid := (lo + hi) / 2
		if cmp(l.KeyAt(mid), key) < 0 {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return lo
}

// Lookup returns the value for key and whether it was present.
func (l *Leaf) Lookup(key util.Key, cmp util.KeyComparator) (util.RID, bool) {
	i := l.KeyIndex(key, cmp)
	if i < l.Size() && cmp(l.KeyAt(i), key) == 0 {
		return l.ValueAt(i), true
	}
	return util.RID{}, false
}

// Insert places (key, value) in sorted position. Returns the new size
// unchanged if key is already present (unique-key constraint).
func (l *Leaf) Insert(key util.Key, value util.RID, cmp util.KeyComparator) int {
	size := l.Size()
	i := l.KeyIndex(key, cmp)
	if i < size && cmp(l.KeyAt(i), key) == 0 {
		return size
	}
	for j := size; j > i; j-- {
		l.setEntry(j, l.KeyAt(j-1), l.ValueAt(j-1))
	}
	l.setEntry(i, key, value)
	size++
	l.setSize(size)
	return size
}

// RemoveAt deletes the entry at index and shifts the remainder left.
func (l *Leaf) RemoveAt(index int) {
	size := l.Size()
	for j := index; j < size-1; j++ {
		l.setEntry(j, l.KeyAt(j+1), l.ValueAt(j+1))
	}
	l.setSize(size - 1)
}

// MoveHalfTo transfers the last floor(size/2) of this leaf's entries to
// recipient, which must be empty. Used immediately after a split.
func (l *Leaf) MoveHalfTo(recipient *Leaf) {
	size := l.Size()
	half := size / 2
	start := size - half
	for i := start; i < size; i++ {
		recipient.setEntry(i-start, l.KeyAt(i), l.ValueAt(i))
	}
	recipient.setSize(half)
	l.setSize(start)
}

// MoveAllTo appends every entry of this leaf onto recipient and carries
// over the sibling chain, then empties this leaf.
func (l *Leaf) MoveAllTo(recipient *Leaf) {
	size := l.Size()
	rsize := recipient.Size()
	for i := 0; i < size; i++ {
		recipient.setEntry(rsize+i, l.KeyAt(i), l.ValueAt(i))
	}
	recipient.setSize(rsize + size)
	recipient.SetNextPageID(l.NextPageID())
	l.setSize(0)
}

// MoveFirstToEndOf moves this leaf's first entry to the end of recipient,
// used when redistributing by borrowing from the right sibling.
func (l *Leaf) MoveFirstToEndOf(recipient *Leaf) {
	k, v := l.KeyAt(0), l.ValueAt(0)
	rsize := recipient.Size()
	recipient.setEntry(rsize, k, v)
	recipient.setSize(rsize + 1)
	l.RemoveAt(0)
}

// MoveLastToFrontOf moves this leaf's last entry to the front of
// recipient, used when redistributing by borrowing from the left sibling.
func (l *Leaf) MoveLastToFrontOf(recipient *Leaf) {
	size := l.Size()
	k, v := l.KeyAt(size-1), l.ValueAt(size-1)
	rsize := recipient.Size()
	for j := rsize; j > 0; j-- {
		recipient.setEntry(j, recipient.KeyAt(j-1), recipient.ValueAt(j-1))
	}
	recipient.setEntry(0, k, v)
	recipient.setSize(rsize + 1)
	l.setSize(size - 1)
}
