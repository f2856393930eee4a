package page

import (
	"encoding/binary"

	"github.com/gopherlabs/bptreestore/internal/storage/util"
)

// Type discriminates the two tree-page variants sharing a frame's byte
// buffer. Page-as-tagged-union: the header carries the discriminant,
// never a type embedded via any runtime-dispatch machinery.
type Type int32

const (
	LeafType Type = iota
	InternalType
)

// Header field offsets, bit-exact: page_type, size, max_size, page_id and
// parent_page_id are i32 for every tree page; leaves append next_id and
// prev_id, also i32.
const (
	offPageType       = 0
	offSize           = 4
	offMaxSize        = 8
	offPageID         = 12
	offParentPageID   = 16
	baseHeaderSize    = 20
	offNextPageID     = baseHeaderSize
	offPrevPageID     = baseHeaderSize + 4
	leafHeaderSize    = baseHeaderSize + 8
	internalHeaderSize = baseHeaderSize
)

// Header wraps the shared prefix fields common to both page variants. Leaf
// and Internal embed it; Leaf adds the sibling-pointer accessors.
type Header struct {
	data []byte
}

// NewHeader wraps an arbitrary frame's bytes for introspection without
// committing to the leaf or internal view, used by callers that only need
// to know a page's type, size bounds or parentage (the B+ tree's safety
// predicate during crabbing).
func NewHeader(data []byte) Header {
	return Header{data: data}
}

func (h Header) PageType() Type {
	return Type(int32(binary.LittleEndian.Uint32(h.data[offPageType:])))
}

func (h Header) setPageType(t Type) {
	binary.LittleEndian.PutUint32(h.data[offPageType:], uint32(int32(t)))
}

func (h Header) Size() int {
	return int(int32(binary.LittleEndian.Uint32(h.data[offSize:])))
}

func (h Header) setSize(n int) {
	binary.LittleEndian.PutUint32(h.data[offSize:], uint32(int32(n)))
}

func (h Header) MaxSize() int {
	return int(int32(binary.LittleEndian.Uint32(h.data[offMaxSize:])))
}

func (h Header) setMaxSize(n int) {
	binary.LittleEndian.PutUint32(h.data[offMaxSize:], uint32(int32(n)))
}

func (h Header) PageID() util.PageID {
	return util.PageID(int32(binary.LittleEndian.Uint32(h.data[offPageID:])))
}

func (h Header) setPageID(id util.PageID) {
	binary.LittleEndian.PutUint32(h.data[offPageID:], uint32(int32(id)))
}

func (h Header) ParentPageID() util.PageID {
	return util.PageID(int32(binary.LittleEndian.Uint32(h.data[offParentPageID:])))
}

func (h Header) SetParentPageID(id util.PageID) {
	binary.LittleEndian.PutUint32(h.data[offParentPageID:], uint32(int32(id)))
}

// IsRootPage reports whether parent_page_id is INVALID_PAGE_ID.
func (h Header) IsRootPage() bool {
	return h.ParentPageID() == util.InvalidPageID
}
