package hidden

import (
	"encoding/json"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"github.com/marcin-skalski/repo-manager/internal/notify"
)

// Domain selects which listing a store governs.
type Domain string

const (
	NotCloned Domain = "notCloned"
	Cloned    Domain = "cloned"
)

// StorageKey is the key the domain's state document is persisted under.
func (d Domain) StorageKey() string {
	switch d {
	case Cloned:
		return "hiddenCloned.state"
	default:
		return "hiddenNotCloned.state"
	}
}

func (d Domain) String() string { return string(d) }

// Backend is the persistence the store reads from and writes to.
// *storage.Storage satisfies it.
type Backend interface {
	IsReady() bool
	OnActivate(fn func()) (unsubscribe func())
	GetRaw(key string) (json.RawMessage, bool)
	Set(key string, value any) error
}

// Store owns the hidden state of one domain.
//
// Until the backend is ready the store reads as empty and every mutation is
// dropped, so that a throwaway empty state never overwrites the persisted one.
// Every committed mutation is written back and announced to subscribers; calls
// that change nothing are silent.
type Store struct {
	domain  Domain
	backend Backend
	logger  *slog.Logger

	mu          sync.Mutex
	state       State
	initialized bool

	changed     notify.Listeners
	unsubscribe func()
}

func NewStore(domain Domain, backend Backend, logger *slog.Logger) *Store {
	s := &Store{
		domain:  domain,
		backend: backend,
		logger:  logger.With("domain", domain.String()),
		state:   emptyState(),
	}
	s.unsubscribe = backend.OnActivate(s.Initialize)
	if backend.IsReady() {
		s.Initialize()
	}
	return s
}

// Close detaches the store from its backend's activation signal.
func (s *Store) Close() {
	if s.unsubscribe != nil {
		s.unsubscribe()
	}
}

// Initialize replaces the in-memory state with the persisted document.
// It does nothing while the backend is not ready. A document that cannot be
// read is logged and treated as empty.
func (s *Store) Initialize() {
	if !s.backend.IsReady() {
		return
	}

	st := s.load()

	s.mu.Lock()
	s.state = st
	s.initialized = true
	s.mu.Unlock()

	s.logger.Debug("hidden state loaded", "orgs", len(st.Orgs), "repo_lists", len(st.Repos), "overrides", len(st.OrgVisibleRepos))
	s.changed.Fire()
}

func (s *Store) load() State {
	key := s.domain.StorageKey()
	raw, ok := s.backend.GetRaw(key)
	if !ok {
		return emptyState()
	}
	if err := validateDocument(raw); err != nil {
		s.logger.Warn("ignoring hidden state", "key", key, "err", err)
		return emptyState()
	}
	var st State
	if err := json.Unmarshal(raw, &st); err != nil {
		s.logger.Warn("ignoring hidden state", "key", key, "err", err)
		return emptyState()
	}
	return normalize(st)
}

// IsReady reports whether the state has been loaded from the backend.
func (s *Store) IsReady() bool {
	s.ensureInitialized()
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.initialized
}

// OnChange registers fn to run after every load and committed mutation.
func (s *Store) OnChange(fn func()) (unsubscribe func()) {
	return s.changed.Add(fn)
}

func (s *Store) Domain() Domain { return s.domain }

func (s *Store) Snapshot() Snapshot {
	s.ensureInitialized()
	s.mu.Lock()
	defer s.mu.Unlock()
	return newSnapshot(s.state)
}

func (s *Store) HasHiddenItems() bool {
	s.ensureInitialized()
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.state.Orgs) > 0 {
		return true
	}
	for _, urls := range s.state.Repos {
		if len(urls) > 0 {
			return true
		}
	}
	return false
}

func (s *Store) IsOrgHidden(org string) bool {
	s.ensureInitialized()
	org = strings.TrimSpace(org)
	if org == "" {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return indexFold(s.state.Orgs, org) != -1
}

func (s *Store) HideOrg(org string) {
	org = strings.TrimSpace(org)
	if org == "" {
		return
	}
	s.mutate(func(st *State) bool {
		if indexFold(st.Orgs, org) != -1 {
			return false
		}
		st.Orgs = insertSorted(st.Orgs, org)
		deleteFold(st.Repos, org)
		deleteFold(st.OrgVisibleRepos, org)
		return true
	})
}

// UnhideOrg makes org fully visible again. Overrides recorded while it was
// hidden are discarded.
func (s *Store) UnhideOrg(org string) {
	org = strings.TrimSpace(org)
	if org == "" {
		return
	}
	s.mutate(func(st *State) bool {
		i := indexFold(st.Orgs, org)
		if i == -1 {
			return false
		}
		st.Orgs = slices.Delete(st.Orgs, i, i+1)
		deleteFold(st.Repos, org)
		deleteFold(st.OrgVisibleRepos, org)
		return true
	})
}

// HiddenRepoURLs returns a copy of the urls hidden individually inside org.
func (s *Store) HiddenRepoURLs(org string) []string {
	s.ensureInitialized()
	org = strings.TrimSpace(org)
	s.mu.Lock()
	defer s.mu.Unlock()
	k, ok := keyFold(s.state.Repos, org)
	if org == "" || !ok {
		return []string{}
	}
	return slices.Clone(s.state.Repos[k])
}

// IsRepoHidden resolves a single repository: inside a hidden org only the
// overrides are visible, inside a visible org only the listed urls are hidden.
func (s *Store) IsRepoHidden(org, repoURL string) bool {
	s.ensureInitialized()
	org = strings.TrimSpace(org)
	repoURL = strings.TrimSpace(repoURL)
	if org == "" || repoURL == "" {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if indexFold(s.state.Orgs, org) != -1 {
		k, ok := keyFold(s.state.OrgVisibleRepos, org)
		return !ok || !slices.Contains(s.state.OrgVisibleRepos[k], repoURL)
	}
	k, ok := keyFold(s.state.Repos, org)
	return ok && slices.Contains(s.state.Repos[k], repoURL)
}

// HideRepo hides one repository. Inside a hidden org this revokes a visible
// override; without one the repository is already hidden.
func (s *Store) HideRepo(org, repoURL string) {
	org = strings.TrimSpace(org)
	repoURL = strings.TrimSpace(repoURL)
	if org == "" || repoURL == "" {
		return
	}
	s.mutate(func(st *State) bool {
		if indexFold(st.Orgs, org) != -1 {
			k, ok := keyFold(st.OrgVisibleRepos, org)
			if !ok {
				return false
			}
			urls, removed := removeValue(st.OrgVisibleRepos[k], repoURL)
			if !removed {
				return false
			}
			setOrDelete(st.OrgVisibleRepos, k, urls)
			return true
		}

		k, ok := keyFold(st.Repos, org)
		if !ok {
			k = org
		}
		if slices.Contains(st.Repos[k], repoURL) {
			return false
		}
		st.Repos[k] = insertSorted(st.Repos[k], repoURL)
		return true
	})
}

// UnhideRepo shows one repository. Inside a hidden org it adds a visible
// override and drops any stale hidden entry for the same url.
func (s *Store) UnhideRepo(org, repoURL string) {
	org = strings.TrimSpace(org)
	repoURL = strings.TrimSpace(repoURL)
	if org == "" || repoURL == "" {
		return
	}
	s.mutate(func(st *State) bool {
		if i := indexFold(st.Orgs, org); i != -1 {
			changed := false
			k, ok := keyFold(st.OrgVisibleRepos, org)
			if !ok {
				k = st.Orgs[i]
			}
			if !slices.Contains(st.OrgVisibleRepos[k], repoURL) {
				st.OrgVisibleRepos[k] = insertSorted(st.OrgVisibleRepos[k], repoURL)
				changed = true
			}
			if rk, ok := keyFold(st.Repos, org); ok {
				if urls, removed := removeValue(st.Repos[rk], repoURL); removed {
					setOrDelete(st.Repos, rk, urls)
					changed = true
				}
			}
			return changed
		}

		k, ok := keyFold(st.Repos, org)
		if !ok {
			return false
		}
		urls, removed := removeValue(st.Repos[k], repoURL)
		if !removed {
			return false
		}
		setOrDelete(st.Repos, k, urls)
		return true
	})
}

// mutate applies fn to the live state. When fn reports a change the state is
// persisted and subscribers are notified. Nothing happens before the store
// has been initialized.
func (s *Store) mutate(fn func(st *State) bool) {
	s.ensureInitialized()

	s.mu.Lock()
	if !s.initialized || !fn(&s.state) {
		s.mu.Unlock()
		return
	}
	s.persistLocked()
	s.mu.Unlock()

	s.changed.Fire()
}

// persistLocked writes the state back. The in-memory state stays
// authoritative when the write fails.
func (s *Store) persistLocked() {
	if !s.backend.IsReady() {
		return
	}
	key := s.domain.StorageKey()
	if err := s.backend.Set(key, s.state.clone()); err != nil {
		s.logger.Warn("persist hidden state failed", "key", key, "err", err)
	}
}

func (s *Store) ensureInitialized() {
	s.mu.Lock()
	initialized := s.initialized
	s.mu.Unlock()
	if initialized || !s.backend.IsReady() {
		return
	}
	s.Initialize()
}

func deleteFold(m map[string][]string, org string) {
	for k := range m {
		if strings.EqualFold(k, org) {
			delete(m, k)
		}
	}
}

func setOrDelete(m map[string][]string, org string, urls []string) {
	if len(urls) == 0 {
		delete(m, org)
		return
	}
	m[org] = urls
}
