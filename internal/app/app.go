// Package app ties the hidden stores, the sort setting and the catalog
// loader together and dispatches tree actions to them.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/marcin-skalski/repo-manager/internal/clone"
	"github.com/marcin-skalski/repo-manager/internal/hidden"
	"github.com/marcin-skalski/repo-manager/internal/repository"
	"github.com/marcin-skalski/repo-manager/internal/sortorder"
	"github.com/marcin-skalski/repo-manager/internal/tree"
)

var ErrNotApplicable = errors.New("action does not apply to the selected item")

// Catalog is the part of the loader the app reads.
type Catalog interface {
	Catalog() repository.Catalog
	Err() error
	RequestReload()
	OnChange(fn func()) (unsubscribe func())
	ResolveURL(ctx context.Context, owner, name string) (string, bool)
}

type Cloner interface {
	Clone(ctx context.Context, t clone.Target, parentDir string) (string, error)
	Find(ctx context.Context, t clone.Target, searchPaths []string) (repository.Repository, error)
	Status(path string) repository.Dirtiness
	Delete(path string) error
}

type Options struct {
	CloneDir      string
	SearchPaths   []string
	NoSearchPaths bool
}

type App struct {
	notCloned *hidden.Store
	cloned    *hidden.Store
	order     *sortorder.Setting
	catalog   Catalog
	cloner    Cloner
	builder   *tree.Builder
	opts      Options
	logger    *slog.Logger
}

func New(notCloned, cloned *hidden.Store, order *sortorder.Setting, catalog Catalog, cloner Cloner, opts Options, logger *slog.Logger) *App {
	return &App{
		notCloned: notCloned,
		cloned:    cloned,
		order:     order,
		catalog:   catalog,
		cloner:    cloner,
		builder:   tree.NewBuilder(notCloned, cloned, order),
		opts:      opts,
		logger:    logger,
	}
}

// Snapshot is what a view needs to draw the tree.
type Snapshot struct {
	Roots   []*tree.Node
	Catalog repository.Catalog
	Order   sortorder.Order
	Err     error
}

func (a *App) Snapshot() Snapshot {
	cat := a.catalog.Catalog()
	return Snapshot{
		Roots:   a.builder.Build(cat, tree.Options{NoSearchPaths: a.opts.NoSearchPaths}),
		Catalog: cat,
		Order:   a.order.Get(),
		Err:     a.catalog.Err(),
	}
}

func (a *App) Store(d hidden.Domain) *hidden.Store {
	if d == hidden.Cloned {
		return a.cloned
	}
	return a.notCloned
}

// Hide hides the org or repository n stands for in n's domain.
func (a *App) Hide(n *tree.Node) error {
	if n == nil || !n.CanHide() {
		return ErrNotApplicable
	}
	s := a.Store(n.Domain)
	if n.Kind == tree.KindOrg {
		s.HideOrg(n.OrgLogin)
	} else {
		s.HideRepo(n.OrgLogin, n.RepoURL)
	}
	a.logger.Info("hidden", "domain", n.Domain, "org", n.OrgLogin, "url", n.RepoURL)
	return nil
}

// Unhide restores n from a Hidden section.
func (a *App) Unhide(n *tree.Node) error {
	if n == nil || !n.CanUnhide() {
		return ErrNotApplicable
	}
	s := a.Store(n.Domain)
	if n.Kind == tree.KindOrg {
		s.UnhideOrg(n.OrgLogin)
	} else {
		s.UnhideRepo(n.OrgLogin, n.RepoURL)
	}
	a.logger.Info("unhidden", "domain", n.Domain, "org", n.OrgLogin, "url", n.RepoURL)
	return nil
}

// RepoURL returns the url to store for t under org in domain d. A url already
// stored under org wins, then the spelling GitHub uses, then t's own url.
func (a *App) RepoURL(ctx context.Context, d hidden.Domain, org string, t clone.Target) string {
	typed := repository.NormalizeURL(t.URL())
	st := a.Store(d).Snapshot().State()
	for _, m := range []map[string][]string{st.Repos, st.OrgVisibleRepos} {
		for o, urls := range m {
			if !strings.EqualFold(o, org) {
				continue
			}
			for _, u := range urls {
				if strings.EqualFold(u, typed) {
					return u
				}
			}
		}
	}
	if url, ok := a.catalog.ResolveURL(ctx, t.Owner, t.Name); ok {
		return url
	}
	a.logger.Warn("repository not found on GitHub, using the url as typed", "url", typed)
	return typed
}

func (a *App) SortOrder() sortorder.Order {
	return a.order.Get()
}

func (a *App) SetSort(o sortorder.Order) error {
	return a.order.Set(o)
}

func (a *App) ToggleSort() (sortorder.Order, error) {
	next := a.order.Get().Toggle()
	if err := a.order.Set(next); err != nil {
		return a.order.Get(), err
	}
	return next, nil
}

func (a *App) Reload() {
	a.catalog.RequestReload()
}

// CloneNode clones the not-cloned repository n stands for.
func (a *App) CloneNode(ctx context.Context, n *tree.Node) (string, error) {
	if n == nil || !n.CanClone() {
		return "", ErrNotApplicable
	}
	return a.Clone(ctx, clone.Target{Owner: n.Repo.OwnerLogin, Name: n.Repo.Name})
}

// Clone clones t into the clone directory and schedules a reload so it moves
// to the Cloned section.
func (a *App) Clone(ctx context.Context, t clone.Target) (string, error) {
	return a.CloneInto(ctx, t, "")
}

// CloneInto is Clone with another parent directory. An empty parentDir means
// the clone directory.
func (a *App) CloneInto(ctx context.Context, t clone.Target, parentDir string) (string, error) {
	if parentDir == "" {
		parentDir = a.opts.CloneDir
	}
	dir, err := a.cloner.Clone(ctx, t, parentDir)
	if err != nil {
		return "", fmt.Errorf("clone: %w", err)
	}
	a.catalog.RequestReload()
	return dir, nil
}

// DeleteStatus reports the current dirtiness of the clone n stands for, to be
// shown before asking for confirmation.
func (a *App) DeleteStatus(n *tree.Node) (repository.Dirtiness, error) {
	if n == nil || !n.CanDelete() {
		return "", ErrNotApplicable
	}
	return a.cloner.Status(n.Repo.LocalPath), nil
}

// DeleteNode deletes the local clone n stands for.
func (a *App) DeleteNode(n *tree.Node) error {
	if n == nil || !n.CanDelete() {
		return ErrNotApplicable
	}
	return a.DeleteClone(n.Repo.LocalPath)
}

// DeleteClone deletes the working copy at path and schedules a reload so the
// repository moves back to Not Cloned.
func (a *App) DeleteClone(path string) error {
	if err := a.cloner.Delete(path); err != nil {
		return fmt.Errorf("delete clone: %w", err)
	}
	a.catalog.RequestReload()
	return nil
}

// FindClone looks t up among the clones in the search paths.
func (a *App) FindClone(ctx context.Context, t clone.Target) (repository.Repository, error) {
	return a.cloner.Find(ctx, t, a.opts.SearchPaths)
}

func (a *App) CloneStatus(path string) repository.Dirtiness {
	return a.cloner.Status(path)
}

// OnChange calls fn after any change that affects the tree.
func (a *App) OnChange(fn func()) (unsubscribe func()) {
	unsubs := []func(){
		a.notCloned.OnChange(fn),
		a.cloned.OnChange(fn),
		a.order.OnChange(fn),
		a.catalog.OnChange(fn),
	}
	return func() {
		for _, u := range unsubs {
			u()
		}
	}
}
