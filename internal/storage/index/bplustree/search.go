package bplustree

import (
	"github.com/gopherlabs/bptreestore/internal/storage/transaction"
	"github.com/gopherlabs/bptreestore/internal/storage/util"
)

// GetValue looks up key, returning its value and whether it was present.
func (t *BPlusTree) GetValue(key util.Key, txn *transaction.Transaction) (util.RID, bool, error) {
	chain := newCrabChain(t, modeRead, txn)
	defer chain.releaseAll()

	chain.pushRootGuard()
	if t.rootID == util.InvalidPageID {
		return util.RID{}, false, nil
	}

	_, leaf, err := t.descend(key, chain, false)
	if err != nil {
		return util.RID{}, false, err
	}

	value, ok := leaf.Lookup(key, t.cmp)
	return value, ok, nil
}
