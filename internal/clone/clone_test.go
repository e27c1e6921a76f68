package clone

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marcin-skalski/repo-manager/internal/logging"
	"github.com/marcin-skalski/repo-manager/internal/repository"
)

func TestParseRepositoryInput(t *testing.T) {
	accepted := map[string]Target{
		"acme/api":                          {"acme", "api"},
		"  acme/api  ":                      {"acme", "api"},
		"github.com/acme/api":               {"acme", "api"},
		"GitHub.com/acme/api":               {"acme", "api"},
		"github.com:acme/api":               {"acme", "api"},
		"www.github.com/acme/api":           {"acme", "api"},
		"https://github.com/acme/api":       {"acme", "api"},
		"https://github.com/acme/api.git":   {"acme", "api"},
		"https://github.com/acme/api/":      {"acme", "api"},
		"http://www.github.com/acme/api":    {"acme", "api"},
		"git@github.com:acme/api.git":       {"acme", "api"},
		"ssh://git@github.com/acme/api.git": {"acme", "api"},
		"acme/my.repo":                      {"acme", "my.repo"},
	}
	for in, want := range accepted {
		got, err := ParseRepositoryInput(in)
		if assert.NoError(t, err, in) {
			assert.Equal(t, want, got, in)
		}
	}

	rejected := []string{
		"acme",
		"acme/",
		"/api",
		"acme/team/api",
		"https://gitlab.com/acme/api",
		"git@gitlab.com:acme/api.git",
		"https://github.com/acme",
		"https://github.com/acme/team/api",
		"ftp://github.com/acme/api",
		"acme/../api",
		"acme/my repo",
	}
	for _, in := range rejected {
		_, err := ParseRepositoryInput(in)
		assert.ErrorIs(t, err, ErrUnrecognized, in)
	}

	_, err := ParseRepositoryInput("   ")
	assert.ErrorIs(t, err, ErrEmptyInput)
}

func TestTarget(t *testing.T) {
	target := Target{Owner: "acme", Name: "api"}
	assert.Equal(t, "acme/api", target.String())
	assert.Equal(t, "https://github.com/acme/api.git", target.URL())
}

type fakeGit struct {
	url, dir, token string
	err             error

	clones      []repository.Repository
	dirty       map[string]repository.Dirtiness
	invalidated []string
	deleted     []string
}

func (f *fakeGit) Clone(_ context.Context, url, dir, token string) error {
	f.url, f.dir, f.token = url, dir, token
	return f.err
}

func (f *fakeGit) Discover(context.Context, []string) ([]repository.Repository, error) {
	return f.clones, f.err
}

func (f *fakeGit) Dirtiness(path string) repository.Dirtiness { return f.dirty[path] }

func (f *fakeGit) Invalidate(path string) { f.invalidated = append(f.invalidated, path) }

func (f *fakeGit) Delete(path string) error {
	if f.err != nil {
		return f.err
	}
	f.deleted = append(f.deleted, path)
	return nil
}

type staticToken string

func (s staticToken) AuthToken(context.Context) string { return string(s) }

func TestCloner_Clone(t *testing.T) {
	g := &fakeGit{}
	c := NewCloner(g, staticToken("gho_x"), logging.Discard())

	dir, err := c.Clone(context.Background(), Target{Owner: "acme", Name: "api"}, "/src")
	require.NoError(t, err)

	assert.Equal(t, filepath.Join("/src", "api"), dir)
	assert.Equal(t, "https://github.com/acme/api.git", g.url)
	assert.Equal(t, dir, g.dir)
	assert.Equal(t, "gho_x", g.token)
}

func TestCloner_Errors(t *testing.T) {
	c := NewCloner(&fakeGit{err: errors.New("denied")}, nil, logging.Discard())

	_, err := c.Clone(context.Background(), Target{Owner: "acme", Name: "api"}, "/src")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "clone acme/api")

	_, err = c.Clone(context.Background(), Target{Owner: "acme", Name: "api"}, "")
	require.Error(t, err)
}

func TestCloner_Find(t *testing.T) {
	api := repository.Repository{OwnerLogin: "acme", Name: "api", LocalPath: "/src/api"}
	c := NewCloner(&fakeGit{clones: []repository.Repository{api}}, nil, logging.Discard())

	got, err := c.Find(context.Background(), Target{Owner: "Acme", Name: "API"}, []string{"/src"})
	require.NoError(t, err)
	assert.Equal(t, "/src/api", got.LocalPath)

	_, err = c.Find(context.Background(), Target{Owner: "acme", Name: "web"}, []string{"/src"})
	assert.ErrorIs(t, err, ErrNotCloned)
}

func TestCloner_StatusAndDelete(t *testing.T) {
	g := &fakeGit{dirty: map[string]repository.Dirtiness{"/src/api": repository.Dirty}}
	c := NewCloner(g, nil, logging.Discard())

	assert.Equal(t, repository.Dirty, c.Status("/src/api"))
	assert.Equal(t, []string{"/src/api"}, g.invalidated)

	require.NoError(t, c.Delete("/src/api"))
	assert.Equal(t, []string{"/src/api"}, g.deleted)

	g.err = errors.New("busy")
	assert.Error(t, c.Delete("/src/web"))
}

func TestDeletePrompt(t *testing.T) {
	title, detail := DeletePrompt("api", repository.Dirty)
	assert.Equal(t, "Delete DIRTY api repository?", title)
	assert.Contains(t, detail, "uncommitted local changes")

	title, detail = DeletePrompt("api", repository.DirtyClean)
	assert.Equal(t, "Delete api repository?", title)
	assert.Equal(t, "This action is irreversible.", detail)
}
