package bplustree

import (
	"math/rand"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gopherlabs/bptreestore/internal/storage/buffer"
	"github.com/gopherlabs/bptreestore/internal/storage/disk"
	"github.com/gopherlabs/bptreestore/internal/storage/transaction"
	"github.com/gopherlabs/bptreestore/internal/storage/util"
)

func newTestTree(t *testing.T, leafMax, internalMax, poolSize int) *BPlusTree {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tree.db")
	fm, err := disk.NewFileManager(path)
	require.NoError(t, err)
	t.Cleanup(func() { fm.Close() })

	bpm, err := buffer.NewPoolManager(poolSize, fm, buffer.NewLRUReplacer(poolSize), nil)
	require.NoError(t, err)

	return New(Config{
		IndexName:       "t",
		LeafMaxSize:     leafMax,
		InternalMaxSize: internalMax,
	}, bpm, disk.NewMapCatalog(), nil)
}

func rid(k int64) util.RID {
	return util.RID{PageID: int32(k), SlotNum: 0}
}

func insertAll(t *testing.T, tree *BPlusTree, keys []int64) {
	t.Helper()
	txn := transaction.New()
	for _, k := range keys {
		ok, err := tree.Insert(k, rid(k), txn)
		require.NoError(t, err)
		require.True(t, ok, "insert %d", k)
	}
}

func collect(t *testing.T, tree *BPlusTree) []int64 {
	t.Helper()
	it, err := tree.Begin()
	require.NoError(t, err)
	defer it.Close()

	var keys []int64
	for !it.IsEnd() {
		keys = append(keys, it.Key())
		more, err := it.Next()
		require.NoError(t, err)
		if !more {
			break
		}
	}
	return keys
}

// S1: an empty tree has no entries and begin()==end().
func TestBPlusTreeEmpty(t *testing.T) {
	t.Run("HasNoEntries", func(t *testing.T) {
		tree := newTestTree(t, 4, 4, 16)
		txn := transaction.New()

		_, ok, err := tree.GetValue(5, txn)
		require.NoError(t, err)
		assert.False(t, ok)

		it, err := tree.Begin()
		require.NoError(t, err)
		assert.True(t, it.IsEnd())
		assert.True(t, tree.IsEmpty())
	})
}

func TestBPlusTreeInsert(t *testing.T) {
	// S2: a handful of inserts with no split land in a single leaf root.
	t.Run("WithoutSplitStaysSingleLeaf", func(t *testing.T) {
		tree := newTestTree(t, 4, 4, 16)
		insertAll(t, tree, []int64{1, 3, 5})

		txn := transaction.New()
		value, ok, err := tree.GetValue(3, txn)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, rid(3), value)

		assert.Equal(t, []int64{1, 3, 5}, collect(t, tree))
	})

	t.Run("DuplicateKeyReturnsFalse", func(t *testing.T) {
		tree := newTestTree(t, 4, 4, 16)
		insertAll(t, tree, []int64{1})

		txn := transaction.New()
		ok, err := tree.Insert(1, rid(99), txn)
		require.NoError(t, err)
		assert.False(t, ok)

		value, found, err := tree.GetValue(1, txn)
		require.NoError(t, err)
		require.True(t, found)
		assert.Equal(t, rid(1), value, "duplicate insert must not overwrite the existing value")
	})

	// S3: the fourth insert into a leaf_max=4 tree splits, producing a two-
	// leaf tree under a fresh internal root keyed on the sibling's first key.
	t.Run("FourthInsertSplitsLeaf", func(t *testing.T) {
		tree := newTestTree(t, 4, 4, 16)
		insertAll(t, tree, []int64{1, 2, 3, 4})

		assert.Equal(t, []int64{1, 2, 3, 4}, collect(t, tree))
		assert.Equal(t, 0, tree.bpm.TotalPinCount())
	})
}

func TestBPlusTreeRemove(t *testing.T) {
	// S4: inserting 1..9 with leaf_max=3, internal_max=3 grows a tree with
	// internal splits; removing one key afterward rebalances and iteration
	// still yields every remaining key in order.
	t.Run("ManyInsertsThenRemoveRebalances", func(t *testing.T) {
		tree := newTestTree(t, 3, 3, 32)
		insertAll(t, tree, []int64{1, 2, 3, 4, 5, 6, 7, 8, 9})
		assert.Equal(t, []int64{1, 2, 3, 4, 5, 6, 7, 8, 9}, collect(t, tree))

		txn := transaction.New()
		require.NoError(t, tree.Remove(5, txn))

		assert.Equal(t, []int64{1, 2, 3, 4, 6, 7, 8, 9}, collect(t, tree))

		_, found, err := tree.GetValue(5, txn)
		require.NoError(t, err)
		assert.False(t, found)
		assert.Equal(t, 0, tree.bpm.TotalPinCount())
	})

	// S5: removing every key but the last from a two-leaf tree collapses the
	// root back down to a single leaf.
	t.Run("RemovingDownToOneKeyCollapsesRoot", func(t *testing.T) {
		tree := newTestTree(t, 4, 4, 16)
		insertAll(t, tree, []int64{1, 2, 3, 4})

		txn := transaction.New()
		for _, k := range []int64{1, 2, 3} {
			require.NoError(t, tree.Remove(k, txn))
		}

		assert.Equal(t, []int64{4}, collect(t, tree))

		value, found, err := tree.GetValue(4, txn)
		require.NoError(t, err)
		require.True(t, found)
		assert.Equal(t, rid(4), value)
		assert.Equal(t, 0, tree.bpm.TotalPinCount())
	})

	t.Run("OfMissingKeyIsNoop", func(t *testing.T) {
		tree := newTestTree(t, 4, 4, 16)
		insertAll(t, tree, []int64{1, 2, 3})

		txn := transaction.New()
		require.NoError(t, tree.Remove(42, txn))

		assert.Equal(t, []int64{1, 2, 3}, collect(t, tree))
	})

	t.Run("UntilTreeIsEmpty", func(t *testing.T) {
		tree := newTestTree(t, 4, 4, 16)
		insertAll(t, tree, []int64{1, 2, 3})

		txn := transaction.New()
		for _, k := range []int64{1, 2, 3} {
			require.NoError(t, tree.Remove(k, txn))
		}

		assert.True(t, tree.IsEmpty())
		assert.Nil(t, collect(t, tree))

		it, err := tree.Begin()
		require.NoError(t, err)
		assert.True(t, it.IsEnd())
		assert.Equal(t, 0, tree.bpm.TotalPinCount())
	})
}

func TestBPlusTreeBeginAt(t *testing.T) {
	t.Run("SkipsToFirstKeyNotLess", func(t *testing.T) {
		tree := newTestTree(t, 4, 4, 16)
		insertAll(t, tree, []int64{10, 20, 30, 40})

		it, err := tree.BeginAt(25)
		require.NoError(t, err)
		defer it.Close()

		require.False(t, it.IsEnd())
		assert.Equal(t, int64(30), it.Key())
	})

	t.Run("PastEveryKeyIsEnd", func(t *testing.T) {
		tree := newTestTree(t, 4, 4, 16)
		insertAll(t, tree, []int64{1, 2, 3})

		it, err := tree.BeginAt(100)
		require.NoError(t, err)
		defer it.Close()

		assert.True(t, it.IsEnd())
	})
}

func TestBPlusTreeInvariants(t *testing.T) {
	// Invariant 4: in-order traversal is strictly ascending, for a large
	// enough tree that every split and rebalance path gets exercised.
	t.Run("IteratorYieldsStrictlyAscendingKeys", func(t *testing.T) {
		tree := newTestTree(t, 4, 4, 64)
		keys := make([]int64, 0, 100)
		for i := int64(100); i >= 1; i-- {
			keys = append(keys, i)
		}
		insertAll(t, tree, keys)

		got := collect(t, tree)
		require.Len(t, got, 100)
		for i := 1; i < len(got); i++ {
			assert.Less(t, got[i-1], got[i])
		}
	})

	// Invariant 8: round-trip — a key is found iff it is still present.
	t.Run("RoundTripAfterMixedInsertsAndDeletes", func(t *testing.T) {
		tree := newTestTree(t, 4, 4, 64)
		insertAll(t, tree, []int64{1, 2, 3, 4, 5, 6, 7, 8})

		txn := transaction.New()
		for _, k := range []int64{2, 4, 6} {
			require.NoError(t, tree.Remove(k, txn))
		}

		present := map[int64]bool{1: true, 3: true, 5: true, 7: true, 8: true}
		for k := int64(1); k <= 8; k++ {
			_, ok, err := tree.GetValue(k, txn)
			require.NoError(t, err)
			assert.Equal(t, present[k], ok, "key %d", k)
		}
	})

	// S6: 32 readers doing point lookups concurrently with one writer
	// inserting a large ascending run must not deadlock, and every latch
	// taken during the run must be released by the time it's over.
	t.Run("ConcurrentReadersAndWriterLeaveNoPinsAndNoDeadlock", func(t *testing.T) {
		const (
			numReaders = 32
			numKeys    = 2000
		)
		tree := newTestTree(t, 32, 32, 64)

		var wg sync.WaitGroup
		wg.Add(1)
		go func() {
			defer wg.Done()
			txn := transaction.New()
			for k := int64(1); k <= numKeys; k++ {
				_, err := tree.Insert(k, rid(k), txn)
				assert.NoError(t, err, "insert %d", k)
			}
		}()

		for i := 0; i < numReaders; i++ {
			wg.Add(1)
			go func(index int) {
				defer wg.Done()
				txn := transaction.New()
				r := rand.New(rand.NewSource(int64(index)))
				for j := 0; j < numKeys; j++ {
					key := int64(r.Intn(numKeys) + 1)
					_, _, err := tree.GetValue(key, txn)
					assert.NoError(t, err, "lookup %d", key)
				}
			}(i)
		}

		wg.Wait()

		assert.Equal(t, 0, tree.bpm.TotalPinCount())
		assert.Equal(t, numKeys, len(collect(t, tree)))
	})
}

func TestBPlusTreeDebugDump(t *testing.T) {
	t.Run("ToStringRendersNonEmptyTreeWithoutLeakingPins", func(t *testing.T) {
		tree := newTestTree(t, 4, 4, 16)
		insertAll(t, tree, []int64{1, 2, 3, 4})

		s := tree.ToString()
		assert.NotEmpty(t, s)
		assert.Equal(t, 0, tree.bpm.TotalPinCount())
	})

	t.Run("ToGraphRendersDotSourceWithoutLeakingPins", func(t *testing.T) {
		tree := newTestTree(t, 4, 4, 16)
		insertAll(t, tree, []int64{1, 2, 3, 4})

		g := tree.ToGraph()
		assert.Contains(t, g, "digraph bplustree")
		assert.Equal(t, 0, tree.bpm.TotalPinCount())
	})

	t.Run("EmptyTree", func(t *testing.T) {
		tree := newTestTree(t, 4, 4, 16)
		assert.Equal(t, "<empty tree>", tree.ToString())
		assert.Contains(t, tree.ToGraph(), "digraph bplustree")
	})
}
