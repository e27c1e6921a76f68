// Package clone turns user input into a GitHub repository and clones it into
// the managed directory. It also finds and deletes local clones.
package clone

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/marcin-skalski/repo-manager/internal/repository"
)

var (
	ErrEmptyInput   = errors.New("repository is required")
	ErrUnrecognized = errors.New("unable to recognize the repository, use owner/name or a GitHub URL")
	ErrNotCloned    = errors.New("repository is not cloned in any search path")
)

// Target is a repository on github.com.
type Target struct {
	Owner string
	Name  string
}

func (t Target) String() string { return t.Owner + "/" + t.Name }

func (t Target) URL() string { return "https://github.com/" + t.Owner + "/" + t.Name + ".git" }

// ParseRepositoryInput accepts owner/name, github.com/owner/name,
// github.com:owner/name, http(s) and ssh urls, and scp-like git@ remotes.
// Hosts other than github.com and paths deeper than owner/name are rejected.
func ParseRepositoryInput(raw string) (Target, error) {
	in := strings.TrimSpace(raw)
	if in == "" {
		return Target{}, ErrEmptyInput
	}

	var host, path string
	lower := strings.ToLower(in)
	switch {
	case strings.HasPrefix(lower, "git@"):
		rest := in[len("git@"):]
		var ok bool
		host, path, ok = strings.Cut(rest, ":")
		if !ok {
			return Target{}, ErrUnrecognized
		}
	case strings.Contains(lower, "://"):
		u, err := url.Parse(in)
		if err != nil {
			return Target{}, ErrUnrecognized
		}
		switch strings.ToLower(u.Scheme) {
		case "http", "https", "ssh", "git":
		default:
			return Target{}, ErrUnrecognized
		}
		host, path = u.Hostname(), u.Path
	case strings.HasPrefix(lower, "github.com/"), strings.HasPrefix(lower, "github.com:"),
		strings.HasPrefix(lower, "www.github.com/"):
		host, path, _ = strings.Cut(strings.Replace(in, ":", "/", 1), "/")
	default:
		host, path = "github.com", in
	}

	host = strings.TrimPrefix(strings.ToLower(host), "www.")
	if host != "github.com" {
		return Target{}, ErrUnrecognized
	}

	path = strings.Trim(path, "/")
	path = strings.TrimSuffix(path, ".git")
	parts := strings.Split(path, "/")
	if len(parts) != 2 || !validSegment(parts[0]) || !validSegment(parts[1]) {
		return Target{}, ErrUnrecognized
	}
	return Target{Owner: parts[0], Name: parts[1]}, nil
}

func validSegment(s string) bool {
	if s == "" || s == "." || s == ".." {
		return false
	}
	return !strings.ContainsAny(s, " \t:@\\")
}

type Git interface {
	Clone(ctx context.Context, url, dir, token string) error
	Discover(ctx context.Context, searchPaths []string) ([]repository.Repository, error)
	Dirtiness(path string) repository.Dirtiness
	Invalidate(path string)
	Delete(path string) error
}

type TokenSource interface {
	AuthToken(ctx context.Context) string
}

type Cloner struct {
	git    Git
	tokens TokenSource
	logger *slog.Logger
}

func NewCloner(git Git, tokens TokenSource, logger *slog.Logger) *Cloner {
	return &Cloner{git: git, tokens: tokens, logger: logger}
}

// Clone clones t into parentDir/<name> and returns that path.
func (c *Cloner) Clone(ctx context.Context, t Target, parentDir string) (string, error) {
	if parentDir == "" {
		return "", errors.New("no clone directory configured")
	}
	dir := filepath.Join(parentDir, t.Name)
	token := ""
	if c.tokens != nil {
		token = c.tokens.AuthToken(ctx)
	}
	if err := c.git.Clone(ctx, t.URL(), dir, token); err != nil {
		return "", fmt.Errorf("clone %s: %w", t, err)
	}
	c.logger.Info("cloned repository", "repo", t.String(), "dir", dir)
	return dir, nil
}

// Find returns the local clone of t under the search paths. Owner and name
// are matched case-insensitively.
func (c *Cloner) Find(ctx context.Context, t Target, searchPaths []string) (repository.Repository, error) {
	repos, err := c.git.Discover(ctx, searchPaths)
	if err != nil {
		return repository.Repository{}, fmt.Errorf("find %s: %w", t, err)
	}
	for _, r := range repos {
		if strings.EqualFold(r.OwnerLogin, t.Owner) && strings.EqualFold(r.Name, t.Name) {
			return r, nil
		}
	}
	return repository.Repository{}, fmt.Errorf("%s: %w", t, ErrNotCloned)
}

// Status reports the current dirtiness of the clone at path, bypassing the
// cache.
func (c *Cloner) Status(path string) repository.Dirtiness {
	c.git.Invalidate(path)
	return c.git.Dirtiness(path)
}

func (c *Cloner) Delete(path string) error {
	if err := c.git.Delete(path); err != nil {
		return err
	}
	c.logger.Info("deleted clone", "dir", path)
	return nil
}

// DeletePrompt returns the confirmation title and detail shown before
// deleting the clone of name. Dirty clones get the stronger warning.
func DeletePrompt(name string, d repository.Dirtiness) (title, detail string) {
	if d == repository.Dirty {
		return fmt.Sprintf("Delete DIRTY %s repository?", name),
			"The repository is DIRTY; there are uncommitted local changes. This action is IRREVERSIBLE."
	}
	return fmt.Sprintf("Delete %s repository?", name), "This action is irreversible."
}
