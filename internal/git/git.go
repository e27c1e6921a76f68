package git

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	gogit "github.com/go-git/go-git/v5"
	githttp "github.com/go-git/go-git/v5/plumbing/transport/http"
	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/marcin-skalski/repo-manager/internal/repository"
)

const (
	// Clones are looked for at <search path>/<name> and
	// <search path>/<owner>/<name>.
	maxDepth = 2

	dirtyCacheSize = 512
	dirtyCacheTTL  = time.Minute
)

type Client struct {
	logger *slog.Logger
	dirty  *expirable.LRU[string, repository.Dirtiness]

	cloneMu sync.Map // key: clone dir, value: *sync.Mutex
}

func NewClient(logger *slog.Logger) *Client {
	return &Client{
		logger: logger,
		dirty:  expirable.NewLRU[string, repository.Dirtiness](dirtyCacheSize, nil, dirtyCacheTTL),
	}
}

func (c *Client) cloneLock(dir string) *sync.Mutex {
	v, _ := c.cloneMu.LoadOrStore(dir, &sync.Mutex{})
	return v.(*sync.Mutex)
}

// Discover finds git working copies under the search paths and reports each
// one with an origin remote as a local repository.
func (c *Client) Discover(ctx context.Context, searchPaths []string) ([]repository.Repository, error) {
	var repos []repository.Repository
	seen := map[string]bool{}

	for _, root := range searchPaths {
		root = filepath.Clean(root)
		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			if err != nil {
				if path == root && errors.Is(err, fs.ErrNotExist) {
					c.logger.Debug("search path missing", "path", root)
					return filepath.SkipAll
				}
				c.logger.Debug("skipping unreadable path", "path", path, "err", err)
				return filepath.SkipDir
			}
			if !d.IsDir() {
				return nil
			}
			if path != root && d.Name()[0] == '.' {
				return filepath.SkipDir
			}
			if !isWorkingCopy(path) {
				if depth(root, path) >= maxDepth {
					return filepath.SkipDir
				}
				return nil
			}

			if seen[path] {
				return filepath.SkipDir
			}
			seen[path] = true
			if r, ok := c.localRepository(path); ok {
				repos = append(repos, r)
			}
			return filepath.SkipDir
		})
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", root, err)
		}
	}
	return repos, nil
}

func (c *Client) localRepository(path string) (repository.Repository, bool) {
	repo, err := gogit.PlainOpen(path)
	if err != nil {
		c.logger.Debug("open clone failed", "path", path, "err", err)
		return repository.Repository{}, false
	}
	remote, err := repo.Remote("origin")
	if err != nil {
		c.logger.Debug("clone has no origin", "path", path, "err", err)
		return repository.Repository{}, false
	}
	urls := remote.Config().URLs
	if len(urls) == 0 {
		return repository.Repository{}, false
	}

	url := repository.NormalizeURL(urls[0])
	owner, name, ok := repository.OwnerAndName(url)
	if !ok {
		c.logger.Debug("origin is not an owner/name url", "path", path, "url", url)
		return repository.Repository{}, false
	}
	return repository.Repository{
		URL:        url,
		Name:       name,
		OwnerLogin: owner,
		Type:       repository.TypeLocal,
		LocalPath:  path,
		Dirty:      repository.DirtyUnknown,
	}, true
}

// Dirtiness reports whether the working copy at path has changes. Results
// are cached for a short while.
func (c *Client) Dirtiness(path string) repository.Dirtiness {
	if d, ok := c.dirty.Get(path); ok {
		return d
	}

	d := c.status(path)
	c.dirty.Add(path, d)
	return d
}

// Invalidate drops the cached dirtiness of path.
func (c *Client) Invalidate(path string) {
	c.dirty.Remove(path)
}

func (c *Client) status(path string) repository.Dirtiness {
	repo, err := gogit.PlainOpen(path)
	if err != nil {
		c.logger.Debug("open clone failed", "path", path, "err", err)
		return repository.DirtyError
	}
	wt, err := repo.Worktree()
	if err != nil {
		c.logger.Debug("worktree failed", "path", path, "err", err)
		return repository.DirtyError
	}
	st, err := wt.Status()
	if err != nil {
		c.logger.Debug("status failed", "path", path, "err", err)
		return repository.DirtyError
	}
	if st.IsClean() {
		return repository.DirtyClean
	}
	return repository.Dirty
}

// Clone clones url into dir, which must not exist yet. token, when set, is
// sent as HTTP basic auth.
// Serialized per dir to prevent concurrent clones into the same place.
func (c *Client) Clone(ctx context.Context, url, dir, token string) error {
	mu := c.cloneLock(dir)
	mu.Lock()
	defer mu.Unlock()

	if _, err := os.Stat(dir); err == nil {
		return fmt.Errorf("clone %s: %s already exists", url, dir)
	}
	if err := os.MkdirAll(filepath.Dir(dir), 0o755); err != nil {
		return fmt.Errorf("mkdir: %w", err)
	}

	opts := &gogit.CloneOptions{URL: url}
	if token != "" {
		opts.Auth = &githttp.BasicAuth{Username: "x-access-token", Password: token}
	}

	c.logger.Info("cloning repo", "url", url, "dir", dir)
	if _, err := gogit.PlainCloneContext(ctx, dir, false, opts); err != nil {
		// Leave nothing half-cloned behind.
		_ = os.RemoveAll(dir)
		return fmt.Errorf("clone %s: %w", url, err)
	}
	return nil
}

// Delete removes the working copy at path. Anything that is not a git working
// copy is refused.
func (c *Client) Delete(path string) error {
	mu := c.cloneLock(path)
	mu.Lock()
	defer mu.Unlock()

	if !isWorkingCopy(path) {
		return fmt.Errorf("delete %s: not a git working copy", path)
	}
	c.logger.Info("deleting clone", "dir", path)
	if err := os.RemoveAll(path); err != nil {
		return fmt.Errorf("delete %s: %w", path, err)
	}
	c.Invalidate(path)
	return nil
}

func isWorkingCopy(dir string) bool {
	_, err := os.Stat(filepath.Join(dir, ".git"))
	return err == nil
}

func depth(root, path string) int {
	rel, err := filepath.Rel(root, path)
	if err != nil || rel == "." {
		return 0
	}
	n := 1
	for _, r := range rel {
		if r == filepath.Separator {
			n++
		}
	}
	return n
}
