// Package viz renders the live tree as indented text and single-line JSON
// for the .tree/.json debug commands, and as Graphviz DOT.
package viz

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"github.com/nujra-panda/forgeDB/internal/bptree"
	"github.com/nujra-panda/forgeDB/internal/page"
)

// WriteTree prints the tree depth-first with one line per node and one
// per key.
func WriteTree(w io.Writer, t *bptree.BTree) error {
	return writeTreeRec(w, t, t.Root(), 0)
}

func writeTreeRec(w io.Writer, t *bptree.BTree, pageNum uint32, level int) error {
	pp, err := t.Pager().Get(pageNum)
	if err != nil {
		return err
	}
	indent := strings.Repeat("  ", level)

	if pp.Type() == page.KindLeaf {
		leaf := bptree.Leaf(pp)
		next := "nil"
		if leaf.Next() != 0 {
			next = fmt.Sprintf("%d", leaf.Next())
		}
		fmt.Fprintf(w, "%s- LEAF (Page %d) | %d rows, %dB used | next->%s\n",
			indent, pageNum, leaf.NumCells(), leaf.UsedBytes(), next)
		for i := 0; i < leaf.NumCells(); i++ {
			fmt.Fprintf(w, "%s  %d [%dB]\n", indent, leaf.Key(i), leaf.SlotLength(i))
		}
		return nil
	}

	node := bptree.Internal(pp)
	fmt.Fprintf(w, "%s- INTERNAL (Page %d) | %d keys\n", indent, pageNum, node.NumKeys())
	for i := 0; i < node.NumKeys(); i++ {
		if err := writeTreeRec(w, t, node.Child(i), level+1); err != nil {
			return err
		}
		fmt.Fprintf(w, "%s  Key: %d\n", indent, node.Key(i))
	}
	return writeTreeRec(w, t, node.RightChild(), level+1)
}

// WriteJSON emits the tree as a single JSON line.
func WriteJSON(w io.Writer, t *bptree.BTree) error {
	if err := writeJSONRec(w, t, t.Root()); err != nil {
		return err
	}
	_, err := fmt.Fprintln(w)
	return err
}

func writeJSONRec(w io.Writer, t *bptree.BTree, pageNum uint32) error {
	pp, err := t.Pager().Get(pageNum)
	if err != nil {
		return err
	}

	if pp.Type() == page.KindLeaf {
		leaf := bptree.Leaf(pp)
		fmt.Fprintf(w, `{"type": "leaf", "page": %d, "cells": [`, pageNum)
		for i := 0; i < leaf.NumCells(); i++ {
			if i > 0 {
				fmt.Fprint(w, ",")
			}
			fmt.Fprintf(w, "%d", leaf.Key(i))
		}
		fmt.Fprint(w, "]}")
		return nil
	}

	node := bptree.Internal(pp)
	fmt.Fprintf(w, `{"type": "internal", "page": %d, "children": [`, pageNum)
	for i := 0; i < node.NumKeys(); i++ {
		if err := writeJSONRec(w, t, node.Child(i)); err != nil {
			return err
		}
		fmt.Fprint(w, ",")
	}
	if err := writeJSONRec(w, t, node.RightChild()); err != nil {
		return err
	}
	fmt.Fprint(w, `], "keys": [`)
	for i := 0; i < node.NumKeys(); i++ {
		if i > 0 {
			fmt.Fprint(w, ",")
		}
		fmt.Fprintf(w, "%d", node.Key(i))
	}
	fmt.Fprint(w, "]}")
	return nil
}

// ExportDOT writes a Graphviz digraph of the tree: internal nodes with
// child ports, leaves with fill percentages, and dashed sibling-chain
// edges pinned to one rank.
func ExportDOT(w io.Writer, t *bptree.BTree) error {
	fmt.Fprintln(w, "digraph BPTree {")
	fmt.Fprintln(w, `  graph [ranksep=0.8, nodesep=0.5, rankdir=TB];`)
	fmt.Fprintln(w, `  node [shape=none, fontname="Helvetica", fontsize=10];`)
	fmt.Fprintln(w, `  edge [arrowsize=0.8, color="#444444"];`)

	nodeNames := make(map[uint32]string)
	var leafPages []uint32
	counter := 0

	var exportRec func(pageNum uint32) (string, error)
	exportRec = func(pageNum uint32) (string, error) {
		if name, ok := nodeNames[pageNum]; ok {
			return name, nil
		}
		name := fmt.Sprintf("node%d", counter)
		counter++
		nodeNames[pageNum] = name

		pp, err := t.Pager().Get(pageNum)
		if err != nil {
			return name, err
		}

		if pp.Type() == page.KindLeaf {
			leaf := bptree.Leaf(pp)
			usedPct := float64(leaf.UsedBytes()) / float64(bptree.LeafUsableSpace) * 100
			var b strings.Builder
			fmt.Fprintf(&b, `<<TABLE BORDER="0" CELLBORDER="1" CELLSPACING="0" CELLPADDING="4">`)
			fmt.Fprintf(&b, `<TR><TD COLSPAN="2" BGCOLOR="#D5E8D4"><B>PAGE %d (LEAF)</B><BR/><FONT POINT-SIZE="8">Fill: %.1f%%</FONT></TD></TR>`, pageNum, usedPct)
			fmt.Fprintf(&b, `<TR><TD PORT="keys" BGCOLOR="#F5F5F5" ALIGN="LEFT">`)
			for i := 0; i < leaf.NumCells(); i++ {
				fmt.Fprintf(&b, "<B>%d</B><BR/>", leaf.Key(i))
			}
			next := "NULL"
			if leaf.Next() != 0 {
				next = fmt.Sprintf("%d", leaf.Next())
			}
			fmt.Fprintf(&b, `</TD><TD PORT="next" BGCOLOR="#E1F5FE" VALIGN="MIDDLE">Next: %s</TD></TR></TABLE>>`, next)

			fmt.Fprintf(w, "  %s [label=%s];\n", name, b.String())
			leafPages = append(leafPages, pageNum)
			return name, nil
		}

		node := bptree.Internal(pp)
		nk := node.NumKeys()
		var b strings.Builder
		fmt.Fprintf(&b, `<<TABLE BORDER="0" CELLBORDER="1" CELLSPACING="0" CELLPADDING="4">`)
		fmt.Fprintf(&b, `<TR><TD COLSPAN="%d" BGCOLOR="#DAE8FC"><B>PAGE %d (INTERNAL)</B></TD></TR><TR>`, nk*2+1, pageNum)
		for i := 0; i < nk; i++ {
			fmt.Fprintf(&b, `<TD PORT="f%d" BGCOLOR="#E1F5FE">P:%d</TD><TD BGCOLOR="#FFFFFF"><B>%d</B></TD>`, i, node.Child(i), node.Key(i))
		}
		fmt.Fprintf(&b, `<TD PORT="f%d" BGCOLOR="#E1F5FE">P:%d</TD></TR></TABLE>>`, nk, node.RightChild())
		fmt.Fprintf(w, "  %s [label=%s];\n", name, b.String())

		for i := 0; i <= nk; i++ {
			childName, err := exportRec(node.Child(i))
			if err != nil {
				return name, err
			}
			fmt.Fprintf(w, "  %s:f%d -> %s;\n", name, i, childName)
			// Re-fetch: the recursive export may touch many pages.
			pp, err = t.Pager().Get(pageNum)
			if err != nil {
				return name, err
			}
			node = bptree.Internal(pp)
		}
		return name, nil
	}

	if _, err := exportRec(t.Root()); err != nil {
		return err
	}

	// Pin all leaves to one rank and draw the sibling chain.
	if len(leafPages) > 1 {
		fmt.Fprintln(w, "  { rank=same;")
		for _, pg := range leafPages {
			fmt.Fprintf(w, "    %s;\n", nodeNames[pg])
		}
		fmt.Fprintln(w, "  }")

		for _, pg := range leafPages {
			pp, err := t.Pager().Get(pg)
			if err != nil {
				return err
			}
			next := bptree.Leaf(pp).Next()
			if next == 0 {
				continue
			}
			if target, ok := nodeNames[next]; ok {
				fmt.Fprintf(w, "  %s:next -> %s [style=dashed, color=\"#03A9F4\", constraint=false];\n",
					nodeNames[pg], target)
			}
		}
	}

	fmt.Fprintln(w, "}")
	return nil
}

// RenderPNG writes the DOT file and shells out to Graphviz.
func RenderPNG(t *bptree.BTree, dotPath, pngPath string) error {
	f, err := os.Create(dotPath)
	if err != nil {
		return err
	}
	if err := ExportDOT(f, t); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return exec.Command("dot", "-Tpng", dotPath, "-o", pngPath).Run()
}
