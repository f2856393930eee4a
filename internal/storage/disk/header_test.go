package disk

import (
	"testing"

	"github.com/gopherlabs/bptreestore/internal/storage/util"
)

func TestMapCatalogInsertRecord(t *testing.T) {
	t.Run("ThenGetSucceeds", func(t *testing.T) {
		c := NewMapCatalog()

		if err := c.InsertRecord("orders_pk", 7); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		root, ok := c.GetRecord("orders_pk")
		if !ok {
			t.Fatal("expected record to be found")
		}
		if root != util.PageID(7) {
			t.Errorf("expected root 7, got %d", root)
		}
	})

	t.Run("DuplicateFails", func(t *testing.T) {
		c := NewMapCatalog()
		if err := c.InsertRecord("orders_pk", 7); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if err := c.InsertRecord("orders_pk", 9); err == nil {
			t.Fatal("expected error inserting duplicate record")
		}
	})
}

func TestMapCatalogUpdateRecord(t *testing.T) {
	t.Run("UnknownFails", func(t *testing.T) {
		c := NewMapCatalog()
		if err := c.UpdateRecord("missing", 1); err == nil {
			t.Fatal("expected error updating unknown record")
		}
	})

	t.Run("ReplacesRoot", func(t *testing.T) {
		c := NewMapCatalog()
		if err := c.InsertRecord("orders_pk", 7); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if err := c.UpdateRecord("orders_pk", 42); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		root, ok := c.GetRecord("orders_pk")
		if !ok || root != util.PageID(42) {
			t.Errorf("expected updated root 42, got %d ok=%v", root, ok)
		}
	})
}

func TestMapCatalogGetRecord(t *testing.T) {
	t.Run("Missing", func(t *testing.T) {
		c := NewMapCatalog()
		if _, ok := c.GetRecord("nope"); ok {
			t.Error("expected record to be missing")
		}
	})
}
