package util

import "errors"

var (
	// ErrNoFreeFrame is returned by the buffer pool when every frame is
	// pinned and the replacer has no victim to offer.
	ErrNoFreeFrame = errors.New("no free frame available")

	// ErrPageNotFound is returned when an operation addresses a page id
	// that is not resident in the buffer pool.
	ErrPageNotFound = errors.New("page not resident in buffer pool")

	// ErrFrameBusy is returned by delete_page when the page is pinned.
	ErrFrameBusy = errors.New("frame is pinned")

	// ErrNotUnpinned is returned by unpin_page when the frame's pin count
	// is already zero.
	ErrNotUnpinned = errors.New("frame already unpinned")

	// ErrInvalidPoolSize guards against a non-positive buffer pool size.
	ErrInvalidPoolSize = errors.New("pool size must be positive")

	// ErrInvalidFrameIndex guards against an out-of-range frame id.
	ErrInvalidFrameIndex = errors.New("frame index out of bounds")

	// ErrOutOfMemory is the error the B+ tree raises when the buffer pool
	// cannot supply a frame for a fetch or a new page.
	ErrOutOfMemory = errors.New("buffer pool out of memory")

	// ErrKeyExists names a duplicate-key insert. BPlusTree.Insert does not
	// return it: a duplicate key is reported as false with a nil error.
	ErrKeyExists = errors.New("key already exists")

	// ErrRecordNotFound is returned by the catalog for an unknown index
	// name.
	ErrRecordNotFound = errors.New("catalog record not found")
)
