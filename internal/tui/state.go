package tui

import "github.com/marcin-skalski/repo-manager/internal/tree"

// row is one line of the flattened, partially expanded tree.
type row struct {
	node  *tree.Node
	depth int
}

// expansion remembers which nodes the user opened or closed. Sections start
// open, everything else closed.
type expansion map[string]bool

func (e expansion) isOpen(n *tree.Node) bool {
	if open, ok := e[n.ID]; ok {
		return open
	}
	return n.Kind == tree.KindSection
}

func (e expansion) set(n *tree.Node, open bool) {
	e[n.ID] = open
}

func flatten(roots []*tree.Node, e expansion) []row {
	var rows []row
	for _, r := range roots {
		r.Walk(func(n *tree.Node, depth int) bool {
			rows = append(rows, row{node: n, depth: depth})
			return len(n.Children) > 0 && e.isOpen(n)
		})
	}
	return rows
}

// parentIndex returns the index of the closest row above i that is one
// level shallower, or -1.
func parentIndex(rows []row, i int) int {
	for j := i - 1; j >= 0; j-- {
		if rows[j].depth < rows[i].depth {
			return j
		}
	}
	return -1
}
