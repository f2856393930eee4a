package disk

import (
	"sync"

	"github.com/pkg/errors"

	"github.com/gopherlabs/bptreestore/internal/storage/util"
)

// Catalog maps an index name to the page id of its root. A tree with no
// record in the catalog is empty; InsertRecord creates the mapping the
// first time a tree gains a root, UpdateRecord replaces it on every split
// or shrink of the root afterward.
type Catalog interface {
	InsertRecord(name string, root util.PageID) error
	UpdateRecord(name string, root util.PageID) error
	GetRecord(name string) (util.PageID, bool)
}

// MapCatalog is an in-memory Catalog guarded by a mutex. The header page
// reserved at util.HeaderPageID is where a durable catalog would persist
// this mapping; MapCatalog keeps it in memory only, which is sufficient
// for a single process lifetime.
type MapCatalog struct {
	mu      sync.Mutex
	records map[string]util.PageID
}

// NewMapCatalog returns an empty catalog.
func NewMapCatalog() *MapCatalog {
	return &MapCatalog{records: make(map[string]util.PageID)}
}

func (c *MapCatalog) InsertRecord(name string, root util.PageID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.records[name]; ok {
		return errors.Errorf("catalog record %q already exists", name)
	}
	c.records[name] = root
	return nil
}

func (c *MapCatalog) UpdateRecord(name string, root util.PageID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.records[name]; !ok {
		return errors.Wrapf(util.ErrRecordNotFound, "catalog record %q", name)
	}
	c.records[name] = root
	return nil
}

func (c *MapCatalog) GetRecord(name string) (util.PageID, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	root, ok := c.records[name]
	return root, ok
}
