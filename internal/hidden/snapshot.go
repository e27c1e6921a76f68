package hidden

import (
	"slices"
	"strings"

	"github.com/marcin-skalski/repo-manager/internal/textcmp"
)

// Set is a set of identifiers. The zero value is an empty, read-only set.
type Set map[string]struct{}

func NewSet(values ...string) Set {
	s := make(Set, len(values))
	for _, v := range values {
		s[v] = struct{}{}
	}
	return s
}

func (s Set) Has(v string) bool {
	_, ok := s[v]
	return ok
}

func (s Set) Len() int { return len(s) }

// Sorted returns the members in case-insensitive order.
func (s Set) Sorted() []string {
	out := make([]string, 0, len(s))
	for v := range s {
		out = append(out, v)
	}
	slices.SortFunc(out, textcmp.Compare)
	return out
}

// Snapshot is an independent copy of a store's state. Changing it has no
// effect on the store.
type Snapshot struct {
	Orgs            Set
	Repos           map[string]Set
	OrgVisibleRepos map[string]Set
}

func newSnapshot(s State) Snapshot {
	snap := Snapshot{
		Orgs:            NewSet(s.Orgs...),
		Repos:           make(map[string]Set, len(s.Repos)),
		OrgVisibleRepos: make(map[string]Set, len(s.OrgVisibleRepos)),
	}
	for org, urls := range s.Repos {
		snap.Repos[org] = NewSet(urls...)
	}
	for org, urls := range s.OrgVisibleRepos {
		snap.OrgVisibleRepos[org] = NewSet(urls...)
	}
	return snap
}

// IsOrgHidden reports whether org is fully hidden. Org identifiers are
// matched case-insensitively.
func (s Snapshot) IsOrgHidden(org string) bool {
	_, ok := s.orgKey(org)
	return ok
}

// HiddenRepos returns the individually hidden urls of a visible org.
func (s Snapshot) HiddenRepos(org string) Set {
	return lookupSet(s.Repos, org)
}

// VisibleRepos returns the urls restored inside a fully hidden org.
func (s Snapshot) VisibleRepos(org string) Set {
	return lookupSet(s.OrgVisibleRepos, org)
}

// HasHiddenItems mirrors Store.HasHiddenItems for a captured snapshot.
func (s Snapshot) HasHiddenItems() bool {
	if len(s.Orgs) > 0 {
		return true
	}
	for _, urls := range s.Repos {
		if len(urls) > 0 {
			return true
		}
	}
	return false
}

// State converts the snapshot back into its persisted form.
func (s Snapshot) State() State {
	st := State{
		Orgs:            s.Orgs.Sorted(),
		Repos:           make(map[string][]string, len(s.Repos)),
		OrgVisibleRepos: make(map[string][]string, len(s.OrgVisibleRepos)),
	}
	for org, urls := range s.Repos {
		st.Repos[org] = urls.Sorted()
	}
	for org, urls := range s.OrgVisibleRepos {
		st.OrgVisibleRepos[org] = urls.Sorted()
	}
	return normalize(st)
}

func (s Snapshot) orgKey(org string) (string, bool) {
	org = strings.TrimSpace(org)
	if org == "" {
		return "", false
	}
	return keyFold(map[string]struct{}(s.Orgs), org)
}

func lookupSet(m map[string]Set, org string) Set {
	org = strings.TrimSpace(org)
	if org == "" {
		return nil
	}
	k, ok := keyFold(m, org)
	if !ok {
		return nil
	}
	return m[k]
}
