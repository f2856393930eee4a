// Package buffer implements the pinned-frame page cache: an LRU victim
// policy plus the buffer pool manager that serves pages through it,
// reading and writing through a disk.Manager.
package buffer

import "github.com/gopherlabs/bptreestore/internal/storage/util"

// Replacer chooses which resident, currently-unpinned frame to evict
// next. It has no knowledge of page contents, the page table, or the free
// list; those are the buffer pool manager's concerns.
type Replacer interface {
	// Victim returns and stops tracking the oldest unpinned frame, or
	// ok=false if nothing is tracked.
	Victim() (frameID util.FrameID, ok bool)
	// Pin removes frameID from tracking. Idempotent.
	Pin(frameID util.FrameID)
	// Unpin starts tracking frameID as the most-recently-unpinned frame.
	// A no-op if frameID is already tracked.
	Unpin(frameID util.FrameID)
	// Size reports how many frames are currently tracked.
	Size() int
}
