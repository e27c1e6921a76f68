// Package loader keeps the repository catalog current: the user's account and
// organizations with their repositories from GitHub, matched against the
// clones found on disk.
package loader

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/marcin-skalski/repo-manager/internal/github"
	"github.com/marcin-skalski/repo-manager/internal/notify"
	"github.com/marcin-skalski/repo-manager/internal/repository"
)

type GitHub interface {
	CurrentUser(ctx context.Context) (github.User, error)
	ListOrgs(ctx context.Context) ([]github.Org, error)
	ListRepos(ctx context.Context, owner string) ([]repository.Repository, error)
	RepoURL(ctx context.Context, owner, name string) (string, error)
}

type Clones interface {
	Discover(ctx context.Context, searchPaths []string) ([]repository.Repository, error)
	Dirtiness(path string) repository.Dirtiness
}

type Options struct {
	SearchPaths []string
	// Interval between reloads in Run. Zero disables periodic reloads.
	Interval    time.Duration
	Concurrency int
	// UserLogin overrides the login gh reports.
	UserLogin string
}

type Loader struct {
	opts   Options
	gh     GitHub
	clones Clones
	logger *slog.Logger

	reloadMu sync.Mutex
	trigger  chan struct{}

	mu      sync.Mutex
	catalog repository.Catalog
	lastErr error

	changed notify.Listeners
}

func New(opts Options, gh GitHub, clones Clones, logger *slog.Logger) *Loader {
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	return &Loader{
		opts:    opts,
		gh:      gh,
		clones:  clones,
		logger:  logger,
		trigger: make(chan struct{}, 1),
		catalog: repository.Catalog{State: repository.StateNone},
	}
}

// Run loads the catalog, then reloads it every Interval and whenever
// RequestReload is called, until ctx is done.
func (l *Loader) Run(ctx context.Context) error {
	l.logger.Info("loader started", "refresh_interval", l.opts.Interval, "search_paths", len(l.opts.SearchPaths))

	l.reload(ctx)

	var tick <-chan time.Time
	if l.opts.Interval > 0 {
		ticker := time.NewTicker(l.opts.Interval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			l.logger.Info("loader stopped")
			return nil
		case <-tick:
			l.reload(ctx)
		case <-l.trigger:
			l.reload(ctx)
		}
	}
}

// RequestReload asks Run for a reload without waiting for it.
func (l *Loader) RequestReload() {
	select {
	case l.trigger <- struct{}{}:
	default:
	}
}

func (l *Loader) reload(ctx context.Context) {
	if err := l.Reload(ctx); err != nil && ctx.Err() == nil {
		l.logger.Error("reload failed", "err", err)
	}
}

func (l *Loader) Catalog() repository.Catalog {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.catalog.Clone()
}

// ResolveURL returns the url of owner/name as the catalog spells it, asking
// GitHub when the catalog does not know the repository. Owner and name are
// matched case-insensitively.
func (l *Loader) ResolveURL(ctx context.Context, owner, name string) (string, bool) {
	match := func(r repository.Repository) bool {
		return strings.EqualFold(r.OwnerLogin, owner) && strings.EqualFold(r.Name, name)
	}

	l.mu.Lock()
	for _, org := range l.catalog.Organizations {
		for _, r := range org.Repositories {
			if match(r) {
				l.mu.Unlock()
				return r.URL, true
			}
		}
	}
	for _, r := range l.catalog.ClonedOtherRepos {
		if match(r) {
			l.mu.Unlock()
			return r.URL, true
		}
	}
	l.mu.Unlock()

	url, err := l.gh.RepoURL(ctx, owner, name)
	if err != nil {
		l.logger.Debug("resolve repository url failed", "repo", owner+"/"+name, "err", err)
		return "", false
	}
	return url, true
}

// Err returns the error of the last reload, if it failed.
func (l *Loader) Err() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.lastErr
}

func (l *Loader) OnChange(fn func()) (unsubscribe func()) {
	return l.changed.Add(fn)
}

func (l *Loader) update(fn func(c *repository.Catalog)) {
	l.mu.Lock()
	fn(&l.catalog)
	l.mu.Unlock()
	l.changed.Fire()
}

// Reload fetches everything again. Orgs whose repositories cannot be listed
// are marked with an error status; only failing to identify the user or list
// the orgs fails the reload.
func (l *Loader) Reload(ctx context.Context) error {
	l.reloadMu.Lock()
	defer l.reloadMu.Unlock()

	start := time.Now()
	if l.Catalog().State == repository.StateNone {
		l.update(func(c *repository.Catalog) { c.State = repository.StateFetching })
	}

	orgs, userLogin, err := l.fetchAccounts(ctx)
	if err != nil {
		l.update(func(c *repository.Catalog) {
			if c.State == repository.StateFetching {
				c.State = repository.StatePartial
			}
		})
		l.mu.Lock()
		l.lastErr = err
		l.mu.Unlock()
		return err
	}

	l.update(func(c *repository.Catalog) {
		// Keep the previous repositories visible while they are refetched.
		for i := range orgs {
			if prev, ok := c.FindOrganization(orgs[i].Login); ok && prev.Status == repository.StatusLoaded {
				orgs[i] = prev
			}
		}
		c.UserLogin = userLogin
		c.Organizations = orgs
		c.State = repository.StatePartial
	})

	fetched := make([][]repository.Repository, len(orgs))
	statuses := make([]repository.Status, len(orgs))
	var clones []repository.Repository

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(l.opts.Concurrency)
	g.Go(func() error {
		found, err := l.clones.Discover(gctx, l.opts.SearchPaths)
		if err != nil {
			return fmt.Errorf("discover clones: %w", err)
		}
		clones = found
		return nil
	})
	for i, org := range orgs {
		g.Go(func() error {
			repos, err := l.gh.ListRepos(gctx, org.Login)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				l.logger.Warn("list repos failed", "org", org.Login, "err", err)
				statuses[i] = repository.StatusError
				l.setStatus(org.Login, repository.StatusError)
				return nil
			}
			fetched[i] = repos
			statuses[i] = repository.StatusLoaded
			l.logger.Debug("listed repos", "org", org.Login, "repos", len(repos))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		l.mu.Lock()
		l.lastErr = err
		l.mu.Unlock()
		return err
	}

	for i := range orgs {
		orgs[i].Status = statuses[i]
		orgs[i].Repositories = fetched[i]
	}
	cat := Partition(userLogin, orgs, clones, l.clones.Dirtiness)
	cat.State = repository.StateFullyLoaded

	l.mu.Lock()
	l.catalog = cat
	l.lastErr = nil
	l.mu.Unlock()
	l.changed.Fire()

	l.logger.Info("catalog loaded",
		"orgs", len(cat.Organizations),
		"clones", len(clones),
		"others", len(cat.ClonedOtherRepos),
		"took", time.Since(start).Round(time.Millisecond))
	return nil
}

func (l *Loader) setStatus(login string, status repository.Status) {
	l.update(func(c *repository.Catalog) {
		for i := range c.Organizations {
			if strings.EqualFold(c.Organizations[i].Login, login) {
				c.Organizations[i].Status = status
			}
		}
	})
}

// fetchAccounts returns the user's own account followed by their orgs, all
// marked as loading.
func (l *Loader) fetchAccounts(ctx context.Context) ([]repository.Organization, string, error) {
	user, err := l.gh.CurrentUser(ctx)
	if err != nil {
		return nil, "", fmt.Errorf("current user: %w", err)
	}
	login := user.Login
	if l.opts.UserLogin != "" {
		login = l.opts.UserLogin
	}

	ghOrgs, err := l.gh.ListOrgs(ctx)
	if err != nil {
		return nil, "", fmt.Errorf("orgs: %w", err)
	}

	orgs := []repository.Organization{{Login: login, Name: user.Name, Status: repository.StatusLoading}}
	for _, o := range ghOrgs {
		if strings.EqualFold(o.Login, login) {
			continue
		}
		orgs = append(orgs, repository.Organization{Login: o.Login, Status: repository.StatusLoading})
	}
	return orgs, login, nil
}
