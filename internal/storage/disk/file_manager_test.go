package disk

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/gopherlabs/bptreestore/internal/storage/util"
)

func tempDataFile(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "test.db")
}

func TestNewFileManager(t *testing.T) {
	t.Run("CreatesFile", func(t *testing.T) {
		path := tempDataFile(t)

		fm, err := NewFileManager(path)
		if err != nil {
			t.Fatalf("expected success but got error: %v", err)
		}
		defer fm.Close()

		if _, err := os.Stat(path); os.IsNotExist(err) {
			t.Error("expected data file to exist but it doesn't")
		}
		if fm.nextID != util.HeaderPageID+1 {
			t.Errorf("expected first allocated id to follow header page, got %d", fm.nextID)
		}
	})
}

func TestFileManagerAllocatePage(t *testing.T) {
	t.Run("Monotonic", func(t *testing.T) {
		fm, err := NewFileManager(tempDataFile(t))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		defer fm.Close()

		first, err := fm.AllocatePage()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		second, err := fm.AllocatePage()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if second != first+1 {
			t.Errorf("expected consecutive page ids, got %d then %d", first, second)
		}
	})

	t.Run("DeallocateReusesID", func(t *testing.T) {
		fm, err := NewFileManager(tempDataFile(t))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		defer fm.Close()

		id, _ := fm.AllocatePage()
		if err := fm.DeallocatePage(id); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		reused, err := fm.AllocatePage()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if reused != id {
			t.Errorf("expected deallocated id %d to be reused, got %d", id, reused)
		}
	})
}

func TestFileManagerPageIO(t *testing.T) {
	t.Run("WriteThenReadRoundTrips", func(t *testing.T) {
		fm, err := NewFileManager(tempDataFile(t))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		defer fm.Close()

		id, _ := fm.AllocatePage()
		var want [util.PageSize]byte
		copy(want[:], "hello b+tree")

		if err := fm.WritePage(id, &want); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		var got [util.PageSize]byte
		if err := fm.ReadPage(id, &got); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got != want {
			t.Error("read page did not match written page")
		}
	})

	t.Run("UnwrittenPageIsZeroed", func(t *testing.T) {
		fm, err := NewFileManager(tempDataFile(t))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		defer fm.Close()

		id, _ := fm.AllocatePage()
		var buf [util.PageSize]byte
		for i := range buf {
			buf[i] = 0xFF
		}

		if err := fm.ReadPage(id, &buf); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		for i, b := range buf {
			if b != 0 {
				t.Fatalf("expected zero-filled page, byte %d was %x", i, b)
			}
		}
	})
}
