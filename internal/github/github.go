package github

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strings"
	"time"

	"github.com/marcin-skalski/repo-manager/internal/repository"
)

// Runner executes gh with args and returns its stdout.
type Runner func(ctx context.Context, args ...string) ([]byte, error)

type Client struct {
	logger *slog.Logger
	run    Runner
}

func NewClient(logger *slog.Logger) *Client {
	c := &Client{logger: logger}
	c.run = c.gh
	return c
}

// NewClientWithRunner replaces the gh executable, for tests.
func NewClientWithRunner(logger *slog.Logger, run Runner) *Client {
	return &Client{logger: logger, run: run}
}

type User struct {
	Login string `json:"login"`
	Name  string `json:"name"`
}

type Org struct {
	Login       string `json:"login"`
	Description string `json:"description"`
}

type repoNode struct {
	Name            string    `json:"name"`
	URL             string    `json:"url"`
	Description     string    `json:"description"`
	IsPrivate       bool      `json:"isPrivate"`
	IsFork          bool      `json:"isFork"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
	Owner           Author    `json:"owner"`
	PrimaryLanguage *struct {
		Name string `json:"name"`
	} `json:"primaryLanguage"`
	Parent *struct {
		Name  string `json:"name"`
		Owner Author `json:"owner"`
	} `json:"parent"`
}

type Author struct {
	Login string `json:"login"`
}

const repoFields = "name,url,description,isPrivate,isFork,createdAt,updatedAt,owner,primaryLanguage,parent"

func (c *Client) CurrentUser(ctx context.Context) (User, error) {
	out, err := c.run(ctx, "api", "user")
	if err != nil {
		return User{}, fmt.Errorf("get user: %w", err)
	}

	var u User
	if err := json.Unmarshal(out, &u); err != nil {
		return User{}, fmt.Errorf("parse user: %w", err)
	}
	if u.Login == "" {
		return User{}, errors.New("parse user: empty login")
	}
	return u, nil
}

func (c *Client) ListOrgs(ctx context.Context) ([]Org, error) {
	out, err := c.run(ctx, "api", "user/orgs", "--paginate")
	if err != nil {
		return nil, fmt.Errorf("list orgs: %w", err)
	}

	// --paginate concatenates one JSON array per page.
	var orgs []Org
	dec := json.NewDecoder(bytes.NewReader(out))
	for {
		var page []Org
		err := dec.Decode(&page)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parse orgs: %w", err)
		}
		orgs = append(orgs, page...)
	}
	return orgs, nil
}

// ListRepos lists the repositories owned by owner, a user or an org.
func (c *Client) ListRepos(ctx context.Context, owner string) ([]repository.Repository, error) {
	out, err := c.run(ctx, "repo", "list", owner, "--limit", "1000", "--json", repoFields)
	if err != nil {
		return nil, fmt.Errorf("list repos of %s: %w", owner, err)
	}

	var nodes []repoNode
	if err := json.Unmarshal(out, &nodes); err != nil {
		return nil, fmt.Errorf("parse repos of %s: %w", owner, err)
	}

	repos := make([]repository.Repository, 0, len(nodes))
	for _, n := range nodes {
		r := repository.Repository{
			URL:         repository.NormalizeURL(n.URL),
			Name:        n.Name,
			OwnerLogin:  n.Owner.Login,
			Type:        repository.TypeRemote,
			Dirty:       repository.DirtyUnknown,
			Description: n.Description,
			IsPrivate:   n.IsPrivate,
			IsFork:      n.IsFork,
			CreatedAt:   n.CreatedAt,
			UpdatedAt:   n.UpdatedAt,
		}
		if r.OwnerLogin == "" {
			r.OwnerLogin = owner
		}
		if n.PrimaryLanguage != nil {
			r.Language = n.PrimaryLanguage.Name
		}
		if n.Parent != nil {
			r.ParentOwnerLogin = n.Parent.Owner.Login
			r.ParentName = n.Parent.Name
		}
		repos = append(repos, r)
	}
	return repos, nil
}

// AuthToken returns the token gh is logged in with, or "" when it is not.
// RepoURL returns the canonical url of owner/name as GitHub spells it.
func (c *Client) RepoURL(ctx context.Context, owner, name string) (string, error) {
	out, err := c.run(ctx, "repo", "view", owner+"/"+name, "--json", "url")
	if err != nil {
		return "", fmt.Errorf("view %s/%s: %w", owner, name, err)
	}
	var v struct {
		URL string `json:"url"`
	}
	if err := json.Unmarshal(out, &v); err != nil {
		return "", fmt.Errorf("parse %s/%s: %w", owner, name, err)
	}
	if v.URL == "" {
		return "", fmt.Errorf("view %s/%s: empty url", owner, name)
	}
	return repository.NormalizeURL(v.URL), nil
}

func (c *Client) AuthToken(ctx context.Context) string {
	out, err := c.run(ctx, "auth", "token")
	if err != nil {
		c.logger.Debug("no gh token", "err", err)
		return ""
	}
	return strings.TrimSpace(string(out))
}

func (c *Client) gh(ctx context.Context, args ...string) ([]byte, error) {
	c.logger.Debug("gh", "args", strings.Join(args, " "))
	cmd := exec.CommandContext(ctx, "gh", args...)
	out, err := cmd.Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return nil, fmt.Errorf("%w: %s", err, strings.TrimSpace(string(exitErr.Stderr)))
		}
		return nil, err
	}
	return out, nil
}
