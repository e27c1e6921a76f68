// Package tree projects the catalog and the hidden state into the
// repositories tree: Cloned, Cloned - Others and Not Cloned, each with a
// Hidden section where hidden orgs and repositories can be restored.
package tree

import (
	"strings"

	"github.com/marcin-skalski/repo-manager/internal/hidden"
	"github.com/marcin-skalski/repo-manager/internal/repository"
	"github.com/marcin-skalski/repo-manager/internal/sortorder"
	"github.com/marcin-skalski/repo-manager/internal/visibility"
)

const (
	LabelCloned       = "Cloned"
	LabelClonedOthers = "Cloned - Others"
	LabelNotCloned    = "Not Cloned"
	LabelHidden       = "Hidden"
)

// Options tunes the projection.
type Options struct {
	// NoSearchPaths replaces the Cloned section with a hint, as no local
	// clones can be discovered.
	NoSearchPaths bool
}

// Builder holds the stores the projection reads.
type Builder struct {
	notCloned *hidden.Store
	cloned    *hidden.Store
	order     *sortorder.Setting
}

func NewBuilder(notCloned, cloned *hidden.Store, order *sortorder.Setting) *Builder {
	return &Builder{notCloned: notCloned, cloned: cloned, order: order}
}

// Build returns the top-level nodes for cat.
func (b *Builder) Build(cat repository.Catalog, opts Options) []*Node {
	switch cat.State {
	case repository.StateNone, "":
		return nil
	case repository.StateFetching:
		return []*Node{{ID: sectionID("loading"), Kind: KindPlaceholder, Label: "Loading..."}}
	}

	order := b.order.Get()
	roots := []*Node{b.clonedSection(cat, order, opts)}
	if others := b.clonedOthersSection(cat, order); others != nil {
		roots = append(roots, others)
	}
	roots = append(roots, b.notClonedSection(cat, order))
	return roots
}

func (b *Builder) clonedResult(cat repository.Catalog, order sortorder.Order) visibility.Result {
	orgs := append(append([]repository.Organization(nil), cat.Organizations...), cat.OthersOrganization())
	return visibility.Resolve(b.cloned.Snapshot(), orgs, visibility.Options{
		Repos: func(o repository.Organization) []repository.Repository { return o.ClonedRepos },
		Sort: func(r []repository.Repository) []repository.Repository {
			return sortorder.ForCloned(r, order, cat.UserLogin)
		},
	})
}

func (b *Builder) clonedSection(cat repository.Catalog, order sortorder.Order, opts Options) *Node {
	section := &Node{ID: sectionID(LabelCloned), Kind: KindSection, Label: LabelCloned, Domain: hidden.Cloned}
	if opts.NoSearchPaths {
		section.Children = []*Node{placeholder(section.ID, "Set search_paths in the config to discover local clones")}
		return section
	}

	res := b.clonedResult(cat, order)
	for _, v := range res.Main {
		if v.Login == repository.OthersLogin {
			continue
		}
		if len(v.Visible) == 0 && v.Org.Status == repository.StatusLoaded {
			continue
		}
		n := orgNode(section.ID, hidden.Cloned, v, ModeVisible, false)
		if len(v.Visible) == 0 {
			n.Children = []*Node{placeholder(n.ID, repository.EmptyLabel(v.Org.Status))}
		} else {
			n.Children = repoNodes(n, v.Visible, false)
		}
		section.Children = append(section.Children, n)
	}

	hiddenSection := &Node{ID: section.ID + "/" + LabelHidden, Kind: KindSection, Label: LabelHidden, Domain: hidden.Cloned, InHidden: true}
	for _, v := range res.Hidden {
		// Orgs missing from the catalog or without clones are not shown.
		if !v.Known || len(v.Hidden) == 0 {
			continue
		}
		n := orgNode(hiddenSection.ID, hidden.Cloned, v, hiddenMode(v), true)
		n.Children = repoNodes(n, v.Hidden, true)
		hiddenSection.Children = append(hiddenSection.Children, n)
	}
	if len(hiddenSection.Children) > 0 {
		section.Children = append(section.Children, hiddenSection)
	}

	if len(section.Children) == 0 {
		section.Children = []*Node{placeholder(section.ID, "No repositories cloned yet")}
	}
	return section
}

func (b *Builder) clonedOthersSection(cat repository.Catalog, order sortorder.Order) *Node {
	if len(cat.ClonedOtherRepos) == 0 {
		return nil
	}
	res := b.clonedResult(cat, order)
	section := &Node{
		ID:       sectionID(LabelClonedOthers),
		Kind:     KindSection,
		Label:    LabelClonedOthers,
		Domain:   hidden.Cloned,
		OrgLogin: repository.OthersLogin,
	}
	for _, v := range res.Main {
		if v.Login == repository.OthersLogin {
			section.Children = repoNodes(section, v.Visible, false)
		}
	}
	if len(section.Children) == 0 {
		section.Children = []*Node{placeholder(section.ID, "All repositories hidden")}
	}
	return section
}

func (b *Builder) notClonedSection(cat repository.Catalog, order sortorder.Order) *Node {
	res := visibility.Resolve(b.notCloned.Snapshot(), cat.Organizations, visibility.Options{
		Repos: func(o repository.Organization) []repository.Repository { return o.NotClonedRepos },
		Sort: func(r []repository.Repository) []repository.Repository {
			return sortorder.ForOrganization(r, order)
		},
	})

	section := &Node{ID: sectionID(LabelNotCloned), Kind: KindSection, Label: LabelNotCloned, Domain: hidden.NotCloned}
	for _, v := range res.Main {
		n := orgNode(section.ID, hidden.NotCloned, v, ModeVisible, false)
		if len(v.Visible) == 0 {
			n.Children = []*Node{placeholder(n.ID, repository.EmptyLabel(v.Org.Status))}
		} else {
			n.Children = repoNodes(n, v.Visible, false)
		}
		section.Children = append(section.Children, n)
	}

	hiddenSection := &Node{ID: section.ID + "/" + LabelHidden, Kind: KindSection, Label: LabelHidden, Domain: hidden.NotCloned, InHidden: true}
	for _, v := range res.Hidden {
		n := orgNode(hiddenSection.ID, hidden.NotCloned, v, hiddenMode(v), true)
		n.Children = repoNodes(n, v.Hidden, true)
		for _, url := range v.UnmatchedHidden {
			n.Children = append(n.Children, fallbackRepoNode(n, url))
		}
		if len(n.Children) == 0 {
			n.Children = []*Node{placeholder(n.ID, "No repositories found")}
		}
		hiddenSection.Children = append(hiddenSection.Children, n)
	}
	if len(hiddenSection.Children) == 0 {
		hiddenSection.Children = []*Node{placeholder(hiddenSection.ID, "No hidden organizations or repositories")}
	}
	section.Children = append(section.Children, hiddenSection)
	return section
}

func hiddenMode(v visibility.OrgView) Mode {
	if v.FullyHidden {
		return ModeHiddenOrg
	}
	return ModeHiddenRepos
}

func orgNode(parent string, domain hidden.Domain, v visibility.OrgView, mode Mode, inHidden bool) *Node {
	n := &Node{
		ID:       orgID(parent, v.Login),
		Kind:     KindOrg,
		Label:    v.DisplayName(),
		Domain:   domain,
		OrgLogin: v.Login,
		Mode:     mode,
		InHidden: inHidden,
	}
	if inHidden && mode == ModeHiddenOrg {
		n.Description = "organization hidden"
	}
	return n
}

func repoNodes(parent *Node, repos []repository.Repository, inHidden bool) []*Node {
	out := make([]*Node, 0, len(repos))
	for i := range repos {
		r := repos[i]
		label := r.Name
		if !strings.EqualFold(r.OwnerLogin, parent.OrgLogin) {
			label = r.OwnerLogin + " / " + r.Name
		}
		out = append(out, &Node{
			ID:          repoID(parent.ID, r.URL),
			Kind:        KindRepo,
			Label:       label,
			Description: dirtyMarker(r.Dirty),
			Domain:      parent.Domain,
			OrgLogin:    parent.OrgLogin,
			RepoURL:     r.URL,
			Repo:        &r,
			InHidden:    inHidden,
		})
	}
	return out
}

// fallbackRepoNode stands in for a hidden url that matches no known
// repository, labelled with the url's last path segment.
func fallbackRepoNode(parent *Node, url string) *Node {
	label := url
	if i := strings.LastIndex(url, "/"); i != -1 && i < len(url)-1 {
		label = url[i+1:]
	}
	return &Node{
		ID:       repoID(parent.ID, url),
		Kind:     KindRepo,
		Label:    label,
		Domain:   parent.Domain,
		OrgLogin: parent.OrgLogin,
		RepoURL:  url,
		InHidden: true,
	}
}

func placeholder(parent, label string) *Node {
	return &Node{ID: placeholderID(parent, label), Kind: KindPlaceholder, Label: label}
}

func dirtyMarker(d repository.Dirtiness) string {
	switch d {
	case repository.Dirty:
		return "*"
	case repository.DirtyError:
		return "E"
	case repository.DirtyUnknown:
		return "?"
	default:
		return ""
	}
}
