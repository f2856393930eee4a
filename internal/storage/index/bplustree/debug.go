package bplustree

import (
	"fmt"
	"strings"

	"github.com/gopherlabs/bptreestore/internal/storage/page"
	"github.com/gopherlabs/bptreestore/internal/storage/util"
)

// ToString renders the tree as one line per level, in BFS order. Intended
// for ad-hoc inspection while developing; it holds only the root-id guard
// in read mode and takes no page latch, so it is only a meaningful
// snapshot absent concurrent writers.
func (t *BPlusTree) ToString() string {
	t.rootGuard.RLock()
	defer t.rootGuard.RUnlock()

	if t.rootID == util.InvalidPageID {
		return "<empty tree>"
	}

	var b strings.Builder
	level := []util.PageID{t.rootID}
	for depth := 0; len(level) > 0; depth++ {
		fmt.Fprintf(&b, "level %d:", depth)
		var next []util.PageID
		for _, id := range level {
			frame, err := t.bpm.FetchPage(id)
			if err != nil {
				fmt.Fprintf(&b, " <page %d: %v>", id, err)
				continue
			}
			h := page.NewHeader(frame.Data[:])
			if h.PageType() == page.LeafType {
				leaf := page.NewLeaf(frame.Data[:])
				b.WriteString(" [")
				for i := 0; i < leaf.Size(); i++ {
					if i > 0 {
						b.WriteString(",")
					}
					fmt.Fprintf(&b, "%d", leaf.KeyAt(i))
				}
				fmt.Fprintf(&b, "]@%d", id)
			} else {
				internal := page.NewInternal(frame.Data[:])
				b.WriteString(" {")
				for i := 0; i < internal.Size(); i++ {
					if i > 0 {
						b.WriteString(",")
					}
					if i == 0 {
						b.WriteString("_")
					} else {
						fmt.Fprintf(&b, "%d", internal.KeyAt(i))
					}
					next = append(next, internal.ChildAt(i))
				}
				fmt.Fprintf(&b, "}@%d", id)
			}
			_ = t.bpm.UnpinPage(id, false)
		}
		b.WriteString("\n")
		level = next
	}
	return b.String()
}

// ToGraph renders the tree as Graphviz dot source: one node per page,
// solid edges from internal nodes to children, dashed edges along the
// leaf sibling chain.
func (t *BPlusTree) ToGraph() string {
	t.rootGuard.RLock()
	defer t.rootGuard.RUnlock()

	var b strings.Builder
	b.WriteString("digraph bplustree {\n  node [shape=record];\n")

	if t.rootID != util.InvalidPageID {
		t.writeGraphNode(&b, t.rootID)
	}
	b.WriteString("}\n")
	return b.String()
}

func (t *BPlusTree) writeGraphNode(b *strings.Builder, id util.PageID) {
	frame, err := t.bpm.FetchPage(id)
	if err != nil {
		fmt.Fprintf(b, "  p%d [label=\"<error: %v>\"];\n", id, err)
		return
	}
	h := page.NewHeader(frame.Data[:])

	if h.PageType() == page.LeafType {
		leaf := page.NewLeaf(frame.Data[:])
		var keys strings.Builder
		for i := 0; i < leaf.Size(); i++ {
			if i > 0 {
				keys.WriteString("|")
			}
			fmt.Fprintf(&keys, "%d", leaf.KeyAt(i))
		}
		fmt.Fprintf(b, "  p%d [label=\"%s\"];\n", id, keys.String())
		if next := leaf.NextPageID(); next != util.InvalidPageID {
			fmt.Fprintf(b, "  p%d -> p%d [style=dashed];\n", id, next)
		}
		_ = t.bpm.UnpinPage(id, false)
		return
	}

	internal := page.NewInternal(frame.Data[:])
	var keys strings.Builder
	children := make([]util.PageID, internal.Size())
	for i := 0; i < internal.Size(); i++ {
		if i > 0 {
			keys.WriteString("|")
			fmt.Fprintf(&keys, "%d", internal.KeyAt(i))
		} else {
			keys.WriteString("_")
		}
		children[i] = internal.ChildAt(i)
	}
	fmt.Fprintf(b, "  p%d [label=\"%s\"];\n", id, keys.String())
	_ = t.bpm.UnpinPage(id, false)

	for _, child := range children {
		fmt.Fprintf(b, "  p%d -> p%d;\n", id, child)
		t.writeGraphNode(b, child)
	}
}
