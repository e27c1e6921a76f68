// Package sortorder holds the process-wide repository ordering preference and
// the comparators that apply it.
package sortorder

import (
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/marcin-skalski/repo-manager/internal/notify"
	"github.com/marcin-skalski/repo-manager/internal/repository"
	"github.com/marcin-skalski/repo-manager/internal/textcmp"
)

type Order string

const (
	Alphabetical Order = "alphabetical"
	LastUpdated  Order = "lastUpdated"
)

const Default = LastUpdated

const storageKey = "repositorySortOrder.value"

func Parse(s string) (Order, error) {
	switch Order(strings.TrimSpace(s)) {
	case Alphabetical:
		return Alphabetical, nil
	case LastUpdated:
		return LastUpdated, nil
	default:
		return "", fmt.Errorf("unknown sort order %q (alphabetical|lastUpdated)", s)
	}
}

// Toggle returns the other order.
func (o Order) Toggle() Order {
	if o == Alphabetical {
		return LastUpdated
	}
	return Alphabetical
}

// Backend persists the selected order. *storage.Storage satisfies it.
type Backend interface {
	Get(key string, dst any) (bool, error)
	Set(key string, value any) error
}

// Setting is the current order, read from the backend on first use.
type Setting struct {
	backend  Backend
	fallback Order
	logger   *slog.Logger

	mu      sync.Mutex
	current Order

	changed notify.Listeners
}

// NewSetting uses fallback when nothing has been persisted yet.
func NewSetting(backend Backend, fallback Order, logger *slog.Logger) *Setting {
	if fallback == "" {
		fallback = Default
	}
	return &Setting{backend: backend, fallback: fallback, logger: logger}
}

func (s *Setting) Get() Order {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == "" {
		s.current = s.loadLocked()
	}
	return s.current
}

func (s *Setting) loadLocked() Order {
	var raw string
	ok, err := s.backend.Get(storageKey, &raw)
	if err != nil {
		s.logger.Warn("read sort order failed", "err", err)
	}
	if !ok {
		return s.fallback
	}
	o, err := Parse(raw)
	if err != nil {
		s.logger.Warn("ignoring stored sort order", "err", err)
		return s.fallback
	}
	return o
}

// Set stores o. Selecting the current order is a no-op.
func (s *Setting) Set(o Order) error {
	if _, err := Parse(string(o)); err != nil {
		return err
	}
	if s.Get() == o {
		return nil
	}

	s.mu.Lock()
	s.current = o
	s.mu.Unlock()

	err := s.backend.Set(storageKey, string(o))
	s.changed.Fire()
	if err != nil {
		return fmt.Errorf("persist sort order: %w", err)
	}
	return nil
}

// Reload forgets the cached order so the next Get reads the backend again.
func (s *Setting) Reload() {
	s.mu.Lock()
	s.current = ""
	s.mu.Unlock()
	s.changed.Fire()
}

func (s *Setting) OnChange(fn func()) (unsubscribe func()) {
	return s.changed.Add(fn)
}

// ForOrganization sorts the repositories of one organization.
func ForOrganization(repos []repository.Repository, order Order) []repository.Repository {
	return sortRepos(repos, order, "")
}

// ForCloned sorts cloned repositories. In alphabetical order the repositories
// owned by userLogin come first.
func ForCloned(repos []repository.Repository, order Order, userLogin string) []repository.Repository {
	return sortRepos(repos, order, userLogin)
}

func sortRepos(repos []repository.Repository, order Order, userLogin string) []repository.Repository {
	sorted := slices.Clone(repos)
	if order == Alphabetical {
		slices.SortStableFunc(sorted, func(a, b repository.Repository) int {
			return compareAlphabetical(a, b, userLogin)
		})
		return sorted
	}
	slices.SortStableFunc(sorted, func(a, b repository.Repository) int {
		return compareByUpdatedAt(a, b, userLogin)
	})
	return sorted
}

func compareByUpdatedAt(a, b repository.Repository, userLogin string) int {
	at, bt := updatedAt(a), updatedAt(b)
	if c := bt.Compare(at); c != 0 {
		return c
	}
	return compareAlphabetical(a, b, userLogin)
}

// Local-only repositories have no update time and sort last.
func updatedAt(r repository.Repository) time.Time {
	if r.Type != repository.TypeRemote {
		return time.Time{}
	}
	return r.UpdatedAt
}

func compareAlphabetical(a, b repository.Repository, userLogin string) int {
	if userLogin != "" {
		aIsUser := a.OwnerLogin == userLogin
		bIsUser := b.OwnerLogin == userLogin
		if aIsUser && !bIsUser {
			return -1
		}
		if !aIsUser && bIsUser {
			return 1
		}
	}
	if c := textcmp.Fold(a.OwnerLogin, b.OwnerLogin); c != 0 {
		return c
	}
	return textcmp.Fold(a.Name, b.Name)
}
