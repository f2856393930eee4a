// Package disk provides the block-addressable storage the buffer pool reads
// and writes through, plus the tiny catalog the B+ tree uses to persist its
// root page id. Neither is prescribed by the storage-engine spec beyond the
// interfaces below; this package supplies one concrete implementation of
// each (a file-backed Manager and an in-memory Catalog) so the rest of the
// module is runnable end to end.
package disk

import "github.com/gopherlabs/bptreestore/internal/storage/util"

// Manager is the block device the buffer pool is layered on top of.
// HeaderPageID is reserved and never handed out by AllocatePage.
type Manager interface {
	AllocatePage() (util.PageID, error)
	DeallocatePage(id util.PageID) error
	ReadPage(id util.PageID, buf *[util.PageSize]byte) error
	WritePage(id util.PageID, buf *[util.PageSize]byte) error
}
