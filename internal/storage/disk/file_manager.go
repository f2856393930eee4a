package disk

import (
	"os"
	"sync"

	"github.com/pkg/errors"

	"github.com/gopherlabs/bptreestore/internal/storage/util"
)

// FileManager is a Manager backed by a single growable file, pages
// addressed at offset page_id*PageSize. It is the portable descendant of
// the teacher's mmap-based file.FileManager: the teacher's mapping scheme
// only compiled on Windows (db_windows.go carries the only mmap/munmap
// implementation, gated by a `windows` build tag), so this implementation
// reads and writes pages directly with os.File.ReadAt/WriteAt instead of
// mapping the file into memory. The page-offset addressing scheme is
// unchanged.
type FileManager struct {
	mu       sync.Mutex
	file     *os.File
	nextID   util.PageID
	freeList []util.PageID
}

// NewFileManager opens (creating if absent) the data file at path.
func NewFileManager(path string) (*FileManager, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o666)
	if err != nil {
		return nil, errors.Wrap(err, "open data file")
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, errors.Wrap(err, "stat data file")
	}

	fm := &FileManager{file: f}
	fm.nextID = util.PageID(info.Size() / util.PageSize)
	if fm.nextID <= util.HeaderPageID {
		fm.nextID = util.HeaderPageID + 1
	}
	return fm, nil
}

// AllocatePage reserves a fresh page id, preferring a deallocated one.
func (fm *FileManager) AllocatePage() (util.PageID, error) {
	fm.mu.Lock()
	defer fm.mu.Unlock()

	if n := len(fm.freeList); n > 0 {
		id := fm.freeList[n-1]
		fm.freeList = fm.freeList[:n-1]
		return id, nil
	}
	id := fm.nextID
	fm.nextID++
	return id, nil
}

// DeallocatePage returns a page id to the free list for reuse. It does not
// erase the page's bytes on disk; the buffer pool is responsible for not
// serving stale reads of a deallocated id.
func (fm *FileManager) DeallocatePage(id util.PageID) error {
	fm.mu.Lock()
	defer fm.mu.Unlock()
	fm.freeList = append(fm.freeList, id)
	return nil
}

// ReadPage fills buf with the bytes stored at id, zero-filling any portion
// of the page beyond the current end of file (a page that was allocated
// but never written).
func (fm *FileManager) ReadPage(id util.PageID, buf *[util.PageSize]byte) error {
	offset := int64(id) * util.PageSize
	n, err := fm.file.ReadAt(buf[:], offset)
	if err != nil && n == 0 {
		for i := range buf {
			buf[i] = 0
		}
		return nil
	}
	for i := n; i < util.PageSize; i++ {
		buf[i] = 0
	}
	return nil
}

// WritePage persists buf at id's offset, growing the file if needed.
func (fm *FileManager) WritePage(id util.PageID, buf *[util.PageSize]byte) error {
	offset := int64(id) * util.PageSize
	if _, err := fm.file.WriteAt(buf[:], offset); err != nil {
		return errors.Wrapf(err, "write page %d", id)
	}
	return nil
}

// Close flushes and closes the underlying file.
func (fm *FileManager) Close() error {
	if err := fm.file.Sync(); err != nil {
		return errors.Wrap(err, "sync data file")
	}
	return fm.file.Close()
}
