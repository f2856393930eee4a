package buffer

import (
	"container/list"

	"github.com/gopherlabs/bptreestore/internal/storage/util"
)

// LRUReplacer tracks unpinned frames in a doubly linked list ordered by
// how recently each became unpinned, oldest at the front. Pin/Unpin/Victim
// are O(1) via an index from frame id to its list element.
type LRUReplacer struct {
	capacity int
	order    *list.List
	elems    map[util.FrameID]*list.Element
}

// NewLRUReplacer returns a replacer with room for up to capacity tracked
// frames.
func NewLRUReplacer(capacity int) *LRUReplacer {
	return &LRUReplacer{
		capacity: capacity,
		order:    list.New(),
		elems:    make(map[util.FrameID]*list.Element, capacity),
	}
}

func (lr *LRUReplacer) Victim() (util.FrameID, bool) {
	front := lr.order.Front()
	if front == nil {
		return util.InvalidFrameID, false
	}
	frameID := front.Value.(util.FrameID)
	lr.order.Remove(front)
	delete(lr.elems, frameID)
	return frameID, true
}

func (lr *LRUReplacer) Pin(frameID util.FrameID) {
	elem, ok := lr.elems[frameID]
	if !ok {
		return
	}
	lr.order.Remove(elem)
	delete(lr.elems, frameID)
}

func (lr *LRUReplacer) Unpin(frameID util.FrameID) {
	if _, ok := lr.elems[frameID]; ok {
		return
	}
	// Defensive: the buffer pool never exceeds capacity, but a tracked
	// set growing past it would indicate a caller bug rather than a
	// condition to panic on, so evict the oldest entry to make room.
	if lr.order.Len() >= lr.capacity {
		lr.Victim()
	}
	elem := lr.order.PushBack(frameID)
	lr.elems[frameID] = elem
}

func (lr *LRUReplacer) Size() int {
	return lr.order.Len()
}
