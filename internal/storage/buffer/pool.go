package buffer

import (
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/gopherlabs/bptreestore/internal/storage/disk"
	"github.com/gopherlabs/bptreestore/internal/storage/page"
	"github.com/gopherlabs/bptreestore/internal/storage/util"
)

// PoolManager owns a fixed array of frames and the page table mapping
// resident page ids to frame indices. A single mutex serializes every
// public call; per-frame RW latches are the caller's concern and are held
// across pool calls, so they must never be acquired while this mutex is
// held.
type PoolManager struct {
	mu sync.Mutex

	frames    []*page.Frame
	pageTable map[util.PageID]util.FrameID
	freeList  []util.FrameID
	replacer  Replacer
	disk      disk.Manager
	log       *zap.Logger
}

// NewPoolManager builds a pool of poolSize frames backed by dm, evicting
// via replacer.
func NewPoolManager(poolSize int, dm disk.Manager, replacer Replacer, log *zap.Logger) (*PoolManager, error) {
	if poolSize <= 0 {
		return nil, util.ErrInvalidPoolSize
	}
	if log == nil {
		log = zap.NewNop()
	}

	frames := make([]*page.Frame, poolSize)
	freeList := make([]util.FrameID, poolSize)
	for i := 0; i < poolSize; i++ {
		frames[i] = &page.Frame{PageID: util.InvalidPageID}
		freeList[i] = util.FrameID(i)
	}

	return &PoolManager{
		frames:    frames,
		pageTable: make(map[util.PageID]util.FrameID, poolSize),
		freeList:  freeList,
		replacer:  replacer,
		disk:      dm,
		log:       log,
	}, nil
}

// availableFrame returns a frame ready to host a new resident page:
// preferring the free list, else asking the replacer for a victim and
// writing it back first if dirty. Caller must hold mu.
func (p *PoolManager) availableFrame() (util.FrameID, error) {
	if n := len(p.freeList); n > 0 {
		id := p.freeList[n-1]
		p.freeList = p.freeList[:n-1]
		return id, nil
	}

	frameID, ok := p.replacer.Victim()
	if !ok {
		return util.InvalidFrameID, util.ErrNoFreeFrame
	}

	frame := p.frames[frameID]
	if frame.IsDirty {
		if err := p.disk.WritePage(frame.PageID, (*[util.PageSize]byte)(&frame.Data)); err != nil {
			return util.InvalidFrameID, errors.Wrapf(err, "write back victim page %d", frame.PageID)
		}
	}
	delete(p.pageTable, frame.PageID)
	return frameID, nil
}

// FetchPage pins and returns the frame for id, reading it from disk if not
// already resident.
func (p *PoolManager) FetchPage(id util.PageID) (*page.Frame, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if frameID, ok := p.pageTable[id]; ok {
		frame := p.frames[frameID]
		frame.PinCount++
		p.replacer.Pin(frameID)
		p.log.Debug("fetch page hit", zap.Int32("page_id", int32(id)), zap.Int("pin_count", frame.PinCount))
		return frame, nil
	}

	frameID, err := p.availableFrame()
	if err != nil {
		p.log.Warn("fetch page exhausted pool", zap.Int32("page_id", int32(id)))
		return nil, errors.Wrap(util.ErrOutOfMemory, err.Error())
	}

	frame := p.frames[frameID]
	frame.Reset()
	if err := p.disk.ReadPage(id, (*[util.PageSize]byte)(&frame.Data)); err != nil {
		p.freeList = append(p.freeList, frameID)
		return nil, errors.Wrapf(err, "read page %d", id)
	}
	frame.PageID = id
	frame.PinCount = 1
	frame.IsDirty = false
	p.pageTable[id] = frameID
	p.replacer.Pin(frameID)
	p.log.Debug("fetch page miss", zap.Int32("page_id", int32(id)))
	return frame, nil
}

// NewPage allocates a fresh page id on disk, pins a frame for it, and
// materializes a zeroed page on disk.
func (p *PoolManager) NewPage() (*page.Frame, util.PageID, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	frameID, err := p.availableFrame()
	if err != nil {
		p.log.Warn("new page exhausted pool")
		return nil, util.InvalidPageID, errors.Wrap(util.ErrOutOfMemory, err.Error())
	}

	id, err := p.disk.AllocatePage()
	if err != nil {
		p.freeList = append(p.freeList, frameID)
		return nil, util.InvalidPageID, errors.Wrap(err, "allocate page")
	}

	frame := p.frames[frameID]
	frame.Reset()
	frame.PageID = id
	frame.PinCount = 1
	frame.IsDirty = false
	p.pageTable[id] = frameID
	p.replacer.Pin(frameID)

	if err := p.disk.WritePage(id, (*[util.PageSize]byte)(&frame.Data)); err != nil {
		return nil, util.InvalidPageID, errors.Wrapf(err, "materialize page %d", id)
	}
	p.log.Debug("new page", zap.Int32("page_id", int32(id)))
	return frame, id, nil
}

// UnpinPage decrements id's pin count, marking it dirty if isDirty is
// true. Returns an error if id is not resident or is already unpinned.
func (p *PoolManager) UnpinPage(id util.PageID, isDirty bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	frameID, ok := p.pageTable[id]
	if !ok {
		return errors.Wrapf(util.ErrPageNotFound, "unpin page %d", id)
	}
	frame := p.frames[frameID]
	if frame.PinCount <= 0 {
		return errors.Wrapf(util.ErrNotUnpinned, "unpin page %d", id)
	}
	if isDirty {
		frame.IsDirty = true
	}
	frame.PinCount--
	if frame.PinCount == 0 {
		p.replacer.Unpin(frameID)
	}
	return nil
}

// FlushPage writes id's frame back to disk if dirty and clears the dirty
// flag. A pure write-back: it never evicts the frame or touches the page
// table.
func (p *PoolManager) FlushPage(id util.PageID) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.flushLocked(id)
}

func (p *PoolManager) flushLocked(id util.PageID) error {
	frameID, ok := p.pageTable[id]
	if !ok {
		return errors.Wrapf(util.ErrPageNotFound, "flush page %d", id)
	}
	frame := p.frames[frameID]
	if !frame.IsDirty {
		return nil
	}
	if err := p.disk.WritePage(id, (*[util.PageSize]byte)(&frame.Data)); err != nil {
		return errors.Wrapf(err, "flush page %d", id)
	}
	frame.IsDirty = false
	return nil
}

// DeletePage removes id from the pool and deallocates it on disk. Returns
// an error if the page is resident and still pinned.
func (p *PoolManager) DeletePage(id util.PageID) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	frameID, ok := p.pageTable[id]
	if !ok {
		return p.disk.DeallocatePage(id)
	}
	frame := p.frames[frameID]
	if frame.PinCount > 0 {
		return errors.Wrapf(util.ErrFrameBusy, "delete page %d", id)
	}

	delete(p.pageTable, id)
	p.replacer.Pin(frameID) // drop any stale tracking before reuse
	frame.Reset()
	p.freeList = append(p.freeList, frameID)
	return p.disk.DeallocatePage(id)
}

// TotalPinCount sums pin_count across every resident frame. Exposed for
// tests asserting that a completed operation leaves nothing pinned.
func (p *PoolManager) TotalPinCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	total := 0
	for _, frameID := range p.pageTable {
		total += p.frames[frameID].PinCount
	}
	return total
}

// FlushAll writes back every resident dirty page.
func (p *PoolManager) FlushAll() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	for id := range p.pageTable {
		if err := p.flushLocked(id); err != nil {
			return err
		}
	}
	return nil
}
