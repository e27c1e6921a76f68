package hidden

import (
	"slices"
	"strings"

	"github.com/marcin-skalski/repo-manager/internal/textcmp"
)

// State is the persisted form of one domain's visibility preferences.
//
// Repos applies only to orgs that are not in Orgs; OrgVisibleRepos applies only
// to orgs that are. Hiding or unhiding an org clears both lists for it.
type State struct {
	Orgs            []string            `json:"orgs"`
	Repos           map[string][]string `json:"repos"`
	OrgVisibleRepos map[string][]string `json:"orgVisibleRepos"`
}

func emptyState() State {
	return State{
		Orgs:            []string{},
		Repos:           map[string][]string{},
		OrgVisibleRepos: map[string][]string{},
	}
}

// normalize trims identifiers, drops empty ones, removes duplicates and sorts
// every list. Org identifiers are compared case-insensitively; the first
// spelling seen wins. Map entries left without urls are dropped.
func normalize(s State) State {
	orgs := uniqueOrgs(s.Orgs)
	return State{
		Orgs:            orgs,
		Repos:           normalizeRepoMap(s.Repos, orgs),
		OrgVisibleRepos: normalizeRepoMap(s.OrgVisibleRepos, orgs),
	}
}

func uniqueOrgs(orgs []string) []string {
	out := make([]string, 0, len(orgs))
	for _, org := range orgs {
		org = strings.TrimSpace(org)
		if org == "" || indexFold(out, org) != -1 {
			continue
		}
		out = append(out, org)
	}
	slices.SortFunc(out, textcmp.Compare)
	return out
}

// normalizeRepoMap merges keys that differ only in case. When a merged key
// matches one of the hidden orgs, that org's spelling is used.
func normalizeRepoMap(m map[string][]string, orgs []string) map[string][]string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, textcmp.Compare)

	out := make(map[string][]string, len(m))
	for _, k := range keys {
		org := strings.TrimSpace(k)
		if org == "" {
			continue
		}
		if i := indexFold(orgs, org); i != -1 {
			org = orgs[i]
		}
		if existing, ok := keyFold(out, org); ok {
			org = existing
		}
		out[org] = append(out[org], m[k]...)
	}

	for org, urls := range out {
		urls = uniqueURLs(urls)
		if len(urls) == 0 {
			delete(out, org)
			continue
		}
		out[org] = urls
	}
	return out
}

func uniqueURLs(urls []string) []string {
	out := make([]string, 0, len(urls))
	for _, u := range urls {
		u = strings.TrimSpace(u)
		if u == "" || slices.Contains(out, u) {
			continue
		}
		out = append(out, u)
	}
	slices.SortFunc(out, textcmp.Compare)
	return out
}

func (s State) clone() State {
	return State{
		Orgs:            slices.Clone(s.Orgs),
		Repos:           cloneRepoMap(s.Repos),
		OrgVisibleRepos: cloneRepoMap(s.OrgVisibleRepos),
	}
}

func cloneRepoMap(m map[string][]string) map[string][]string {
	out := make(map[string][]string, len(m))
	for k, v := range m {
		out[k] = slices.Clone(v)
	}
	return out
}

func indexFold(list []string, v string) int {
	for i, item := range list {
		if strings.EqualFold(item, v) {
			return i
		}
	}
	return -1
}

// keyFold finds the stored spelling of org among the keys of m.
func keyFold[V any](m map[string]V, org string) (string, bool) {
	if _, ok := m[org]; ok {
		return org, true
	}
	for k := range m {
		if strings.EqualFold(k, org) {
			return k, true
		}
	}
	return "", false
}

func insertSorted(list []string, v string) []string {
	list = append(list, v)
	slices.SortFunc(list, textcmp.Compare)
	return list
}

func removeValue(list []string, v string) ([]string, bool) {
	i := slices.Index(list, v)
	if i == -1 {
		return list, false
	}
	return slices.Delete(list, i, i+1), true
}
