// Package visibility partitions repositories into visible and hidden lists
// according to a hidden-state snapshot.
package visibility

import (
	"slices"
	"strings"

	"github.com/marcin-skalski/repo-manager/internal/hidden"
	"github.com/marcin-skalski/repo-manager/internal/repository"
	"github.com/marcin-skalski/repo-manager/internal/textcmp"
)

// Options adapts Resolve to a domain.
type Options struct {
	// Repos selects the repositories of an org that belong to the domain,
	// e.g. its cloned or its not-cloned repositories.
	Repos func(repository.Organization) []repository.Repository
	// Sort orders every resulting list. Nil keeps the input order.
	Sort func([]repository.Repository) []repository.Repository
}

// OrgView is one organization's partition.
type OrgView struct {
	Login string
	Org   repository.Organization
	// Known is false for hidden-state entries naming an org that is not in
	// the catalog.
	Known       bool
	FullyHidden bool

	Visible []repository.Repository
	Hidden  []repository.Repository
	// UnmatchedHidden lists hidden urls that match no known repository.
	UnmatchedHidden []string
}

func (v OrgView) DisplayName() string {
	if v.Known {
		return v.Org.DisplayName()
	}
	return v.Login
}

// Result holds both listings.
type Result struct {
	// Main lists the orgs shown outside the Hidden section, in input order.
	Main []OrgView
	// Hidden lists the orgs shown under Hidden, ordered by display name.
	Hidden []OrgView
}

// Resolve computes, for every org, which repositories are visible and which
// belong under the Hidden section.
//
// A fully hidden org shows only its visible overrides and is left out of Main
// when it has none; all its other repositories go under Hidden, where the org
// always appears so it can be unhidden. A visible org hides exactly the urls
// listed for it and appears under Hidden only when that list is non-empty.
func Resolve(snap hidden.Snapshot, orgs []repository.Organization, opts Options) Result {
	if opts.Repos == nil {
		opts.Repos = func(o repository.Organization) []repository.Repository { return o.Repositories }
	}
	sortFn := opts.Sort
	if sortFn == nil {
		sortFn = func(r []repository.Repository) []repository.Repository { return r }
	}

	var res Result
	for _, org := range orgs {
		repos := opts.Repos(org)
		if snap.IsOrgHidden(org.Login) {
			overrides := snap.VisibleRepos(org.Login)
			visible := filter(repos, func(r repository.Repository) bool { return overrides.Has(r.URL) })
			if len(visible) == 0 {
				continue
			}
			res.Main = append(res.Main, OrgView{
				Login:       org.Login,
				Org:         org,
				Known:       true,
				FullyHidden: true,
				Visible:     sortFn(visible),
			})
			continue
		}

		hiddenURLs := snap.HiddenRepos(org.Login)
		visible := filter(repos, func(r repository.Repository) bool { return !hiddenURLs.Has(r.URL) })
		res.Main = append(res.Main, OrgView{
			Login:   org.Login,
			Org:     org,
			Known:   true,
			Visible: sortFn(visible),
		})
	}

	for _, login := range snap.Orgs.Sorted() {
		view := OrgView{Login: login, FullyHidden: true}
		if org, ok := find(orgs, login); ok {
			overrides := snap.VisibleRepos(login)
			view.Login = org.Login
			view.Org = org
			view.Known = true
			view.Hidden = sortFn(filter(opts.Repos(org), func(r repository.Repository) bool { return !overrides.Has(r.URL) }))
		}
		res.Hidden = append(res.Hidden, view)
	}

	for login, urls := range snap.Repos {
		if snap.IsOrgHidden(login) || urls.Len() == 0 {
			continue
		}
		view := OrgView{Login: login}
		org, ok := find(orgs, login)
		if !ok {
			view.UnmatchedHidden = urls.Sorted()
			res.Hidden = append(res.Hidden, view)
			continue
		}
		view.Login = org.Login
		view.Org = org
		view.Known = true
		view.Hidden = sortFn(filter(opts.Repos(org), func(r repository.Repository) bool { return urls.Has(r.URL) }))
		view.UnmatchedHidden = unmatched(urls, org.Repositories, opts.Repos(org))
		res.Hidden = append(res.Hidden, view)
	}

	slices.SortStableFunc(res.Hidden, func(a, b OrgView) int {
		if c := textcmp.Compare(a.DisplayName(), b.DisplayName()); c != 0 {
			return c
		}
		return strings.Compare(a.Login, b.Login)
	})
	return res
}

// IsRepoVisible applies the same rules to a single repository.
func IsRepoVisible(snap hidden.Snapshot, org, url string) bool {
	if snap.IsOrgHidden(org) {
		return snap.VisibleRepos(org).Has(url)
	}
	return !snap.HiddenRepos(org).Has(url)
}

func filter(repos []repository.Repository, keep func(repository.Repository) bool) []repository.Repository {
	var out []repository.Repository
	for _, r := range repos {
		if keep(r) {
			out = append(out, r)
		}
	}
	return out
}

func find(orgs []repository.Organization, login string) (repository.Organization, bool) {
	for _, o := range orgs {
		if strings.EqualFold(o.Login, login) {
			return o, true
		}
	}
	return repository.Organization{}, false
}

// unmatched returns hidden urls that name none of the org's repositories.
// Urls of repositories outside the domain (a hidden not-cloned repository that
// has since been cloned) are dropped rather than reported.
func unmatched(urls hidden.Set, all, domain []repository.Repository) []string {
	known := make(map[string]bool, len(all)+len(domain))
	for _, r := range all {
		known[r.URL] = true
	}
	for _, r := range domain {
		known[r.URL] = true
	}
	var out []string
	for _, u := range urls.Sorted() {
		if !known[u] {
			out = append(out, u)
		}
	}
	return out
}
