package tree

import (
	"fmt"
	"strings"

	"github.com/marcin-skalski/repo-manager/internal/hidden"
	"github.com/marcin-skalski/repo-manager/internal/repository"
)

type Kind int

const (
	KindSection Kind = iota
	KindOrg
	KindRepo
	KindPlaceholder
)

// Mode records why an org node is where it is.
type Mode string

const (
	ModeVisible     Mode = "visible"
	ModeHiddenOrg   Mode = "hiddenOrg"
	ModeHiddenRepos Mode = "hiddenRepos"
)

// Node is one row of the repositories tree. Org and repo nodes carry the
// identifiers needed to act on them.
type Node struct {
	ID          string
	Kind        Kind
	Label       string
	Description string

	Domain   hidden.Domain
	OrgLogin string
	RepoURL  string
	Repo     *repository.Repository
	Mode     Mode
	// InHidden is set for nodes below a Hidden section; acting on them
	// unhides instead of hides.
	InHidden bool

	Children []*Node
}

// CanHide reports whether a hide action applies to the node.
func (n *Node) CanHide() bool {
	if n.InHidden || n.Domain == "" {
		return false
	}
	return (n.Kind == KindOrg && n.OrgLogin != repository.OthersLogin) || n.Kind == KindRepo
}

// CanUnhide reports whether an unhide action applies to the node.
func (n *Node) CanUnhide() bool {
	if !n.InHidden || n.Domain == "" {
		return false
	}
	if n.Kind == KindOrg {
		return n.Mode == ModeHiddenOrg
	}
	return n.Kind == KindRepo
}

// CanClone reports whether the node is a repository that is not cloned yet.
func (n *Node) CanClone() bool {
	return n.Kind == KindRepo && n.Domain == hidden.NotCloned && n.Repo != nil
}

// CanDelete reports whether the node is a local clone, hidden or not.
func (n *Node) CanDelete() bool {
	return n.Kind == KindRepo && n.Domain == hidden.Cloned && n.Repo != nil && n.Repo.LocalPath != ""
}

// Walk visits n and its descendants depth first. Returning false from fn
// skips the node's children.
func (n *Node) Walk(fn func(n *Node, depth int) bool) {
	n.walk(fn, 0)
}

func (n *Node) walk(fn func(*Node, int) bool, depth int) {
	if !fn(n, depth) {
		return
	}
	for _, c := range n.Children {
		c.walk(fn, depth+1)
	}
}

// Find returns the first node with the given ID.
func Find(roots []*Node, id string) *Node {
	var found *Node
	for _, r := range roots {
		r.Walk(func(n *Node, _ int) bool {
			if found == nil && n.ID == id {
				found = n
			}
			return found == nil
		})
	}
	return found
}

// Format renders the tree with box-drawing guides, one node per line.
func Format(roots []*Node) string {
	var b strings.Builder
	for _, r := range roots {
		writeNode(&b, r, "", "", "")
	}
	return b.String()
}

func writeNode(b *strings.Builder, n *Node, prefix, branch, childPrefix string) {
	line := n.Label
	if n.Description != "" {
		line = fmt.Sprintf("%s (%s)", line, n.Description)
	}
	b.WriteString(prefix + branch + line + "\n")
	for i, c := range n.Children {
		if i == len(n.Children)-1 {
			writeNode(b, c, prefix+childPrefix, "└─ ", "   ")
		} else {
			writeNode(b, c, prefix+childPrefix, "├─ ", "│  ")
		}
	}
}

func sectionID(label string) string            { return "section:" + label }
func orgID(parent, login string) string        { return parent + "/org:" + strings.ToLower(login) }
func repoID(parent, url string) string         { return parent + "/repo:" + url }
func placeholderID(parent, label string) string { return parent + "/text:" + label }
