package buffer

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/gopherlabs/bptreestore/internal/storage/util"
)

func TestLRUReplacerVictim(t *testing.T) {
	t.Run("IsOldestUnpinned", func(t *testing.T) {
		lr := NewLRUReplacer(3)

		lr.Unpin(0)
		lr.Unpin(1)
		lr.Unpin(2)
		assert.Equal(t, 3, lr.Size())

		v, ok := lr.Victim()
		assert.True(t, ok)
		assert.Equal(t, util.FrameID(0), v)

		v, ok = lr.Victim()
		assert.True(t, ok)
		assert.Equal(t, util.FrameID(1), v)
	})

	t.Run("OnEmptyReturnsFalse", func(t *testing.T) {
		lr := NewLRUReplacer(3)
		_, ok := lr.Victim()
		assert.False(t, ok)
		assert.Equal(t, 0, lr.Size())
	})
}

func TestLRUReplacerPin(t *testing.T) {
	t.Run("RemovesTracking", func(t *testing.T) {
		lr := NewLRUReplacer(3)
		lr.Unpin(0)
		lr.Unpin(1)

		lr.Pin(0)
		assert.Equal(t, 1, lr.Size())

		v, ok := lr.Victim()
		assert.True(t, ok)
		assert.Equal(t, util.FrameID(1), v)
	})

	t.Run("UnknownFrameIsNoop", func(t *testing.T) {
		lr := NewLRUReplacer(3)
		lr.Pin(7)
		assert.Equal(t, 0, lr.Size())
	})
}

func TestLRUReplacerUnpin(t *testing.T) {
	t.Run("IsIdempotent", func(t *testing.T) {
		lr := NewLRUReplacer(3)
		lr.Unpin(0)
		lr.Unpin(0)
		assert.Equal(t, 1, lr.Size())
	})
}
