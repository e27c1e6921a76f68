package app

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marcin-skalski/repo-manager/internal/clone"
	"github.com/marcin-skalski/repo-manager/internal/hidden"
	"github.com/marcin-skalski/repo-manager/internal/logging"
	"github.com/marcin-skalski/repo-manager/internal/notify"
	"github.com/marcin-skalski/repo-manager/internal/repository"
	"github.com/marcin-skalski/repo-manager/internal/sortorder"
	"github.com/marcin-skalski/repo-manager/internal/storage"
	"github.com/marcin-skalski/repo-manager/internal/tree"
)

type fakeCatalog struct {
	cat      repository.Catalog
	reloads  int
	listener notify.Listeners
}

func (f *fakeCatalog) Catalog() repository.Catalog           { return f.cat }
func (f *fakeCatalog) Err() error                            { return nil }
func (f *fakeCatalog) RequestReload()                        { f.reloads++ }
func (f *fakeCatalog) OnChange(fn func()) (unsubscribe func()) { return f.listener.Add(fn) }

func (f *fakeCatalog) ResolveURL(_ context.Context, owner, name string) (string, bool) {
	for _, org := range f.cat.Organizations {
		for _, r := range org.Repositories {
			if strings.EqualFold(r.OwnerLogin, owner) && strings.EqualFold(r.Name, name) {
				return r.URL, true
			}
		}
	}
	return "", false
}

type fakeCloner struct {
	target clone.Target
	parent string

	searchPaths []string
	dirty       repository.Dirtiness
	deleted     []string
	deleteErr   error
}

func (f *fakeCloner) Clone(_ context.Context, t clone.Target, parentDir string) (string, error) {
	f.target, f.parent = t, parentDir
	return filepath.Join(parentDir, t.Name), nil
}

func (f *fakeCloner) Find(_ context.Context, t clone.Target, searchPaths []string) (repository.Repository, error) {
	f.searchPaths = searchPaths
	return repository.Repository{OwnerLogin: t.Owner, Name: t.Name, LocalPath: "/src/" + t.Name}, nil
}

func (f *fakeCloner) Status(string) repository.Dirtiness { return f.dirty }

func (f *fakeCloner) Delete(path string) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.deleted = append(f.deleted, path)
	return nil
}

func newApp(t *testing.T) (*App, *fakeCatalog, *fakeCloner) {
	t.Helper()
	logger := logging.Discard()
	st := storage.New(logger)
	require.NoError(t, st.Activate(filepath.Join(t.TempDir(), "state.json")))

	a1 := repository.Repository{URL: "https://github.com/acme/a", Name: "a", OwnerLogin: "acme", Type: repository.TypeRemote}
	a2 := repository.Repository{URL: "https://github.com/acme/b", Name: "b", OwnerLogin: "acme", Type: repository.TypeRemote}
	c := repository.Repository{URL: "https://github.com/acme/c", Name: "c", OwnerLogin: "acme", Type: repository.TypeLocal, LocalPath: "/src/c"}
	cat := &fakeCatalog{cat: repository.Catalog{
		UserLogin: "me",
		State:     repository.StateFullyLoaded,
		Organizations: []repository.Organization{{
			Login:          "acme",
			Status:         repository.StatusLoaded,
			Repositories:   []repository.Repository{a1, a2, c},
			NotClonedRepos: []repository.Repository{a1, a2},
			ClonedRepos:    []repository.Repository{c},
		}},
	}}
	cl := &fakeCloner{}
	a := New(
		hidden.NewStore(hidden.NotCloned, st, logger),
		hidden.NewStore(hidden.Cloned, st, logger),
		sortorder.NewSetting(st, sortorder.Alphabetical, logger),
		cat, cl, Options{CloneDir: "/src", SearchPaths: []string{"/src"}}, logger,
	)
	return a, cat, cl
}

func notClonedOrg(t *testing.T, roots []*tree.Node, hiddenSection bool) *tree.Node {
	t.Helper()
	for _, r := range roots {
		if r.Label != tree.LabelNotCloned {
			continue
		}
		parent := r
		if hiddenSection {
			parent = r.Children[len(r.Children)-1]
		}
		for _, c := range parent.Children {
			if c.Kind == tree.KindOrg && c.OrgLogin == "acme" {
				return c
			}
		}
	}
	return nil
}

func clonedRepo(t *testing.T, roots []*tree.Node) *tree.Node {
	t.Helper()
	for _, r := range roots {
		if r.Label != tree.LabelCloned {
			continue
		}
		for _, org := range r.Children {
			if org.Kind == tree.KindOrg && org.OrgLogin == "acme" && len(org.Children) > 0 {
				return org.Children[0]
			}
		}
	}
	return nil
}

func TestApp_HideAndUnhideRepo(t *testing.T) {
	a, _, _ := newApp(t)
	var changes int
	a.OnChange(func() { changes++ })

	org := notClonedOrg(t, a.Snapshot().Roots, false)
	require.NotNil(t, org)
	require.NoError(t, a.Hide(org.Children[1]))

	assert.True(t, a.Store(hidden.NotCloned).IsRepoHidden("acme", "https://github.com/acme/b"))
	assert.False(t, a.Store(hidden.Cloned).HasHiddenItems())
	assert.Equal(t, 1, changes)

	hiddenOrg := notClonedOrg(t, a.Snapshot().Roots, true)
	require.NotNil(t, hiddenOrg)
	require.Len(t, hiddenOrg.Children, 1)
	assert.ErrorIs(t, a.Unhide(hiddenOrg), ErrNotApplicable)
	require.NoError(t, a.Unhide(hiddenOrg.Children[0]))

	assert.False(t, a.Store(hidden.NotCloned).HasHiddenItems())
}

func TestApp_HideAndUnhideOrg(t *testing.T) {
	a, _, _ := newApp(t)

	require.NoError(t, a.Hide(notClonedOrg(t, a.Snapshot().Roots, false)))
	assert.True(t, a.Store(hidden.NotCloned).IsOrgHidden("acme"))
	assert.Nil(t, notClonedOrg(t, a.Snapshot().Roots, false))

	hiddenOrg := notClonedOrg(t, a.Snapshot().Roots, true)
	assert.ErrorIs(t, a.Hide(hiddenOrg), ErrNotApplicable)
	require.NoError(t, a.Unhide(hiddenOrg))
	assert.False(t, a.Store(hidden.NotCloned).IsOrgHidden("acme"))
}

func TestApp_ToggleSort(t *testing.T) {
	a, _, _ := newApp(t)

	order, err := a.ToggleSort()
	require.NoError(t, err)
	assert.Equal(t, sortorder.LastUpdated, order)
	assert.Equal(t, sortorder.LastUpdated, a.Snapshot().Order)
}

func TestApp_CloneNode(t *testing.T) {
	a, cat, cl := newApp(t)
	repoNode := notClonedOrg(t, a.Snapshot().Roots, false).Children[0]

	dir, err := a.CloneNode(context.Background(), repoNode)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join("/src", "a"), dir)
	assert.Equal(t, clone.Target{Owner: "acme", Name: "a"}, cl.target)
	assert.Equal(t, 1, cat.reloads)

	_, err = a.CloneNode(context.Background(), notClonedOrg(t, a.Snapshot().Roots, false))
	assert.ErrorIs(t, err, ErrNotApplicable)
}

func TestApp_NilNode(t *testing.T) {
	a, _, _ := newApp(t)
	assert.ErrorIs(t, a.Hide(nil), ErrNotApplicable)
	assert.ErrorIs(t, a.Unhide(nil), ErrNotApplicable)
}

func TestApp_DeleteNode(t *testing.T) {
	a, cat, cl := newApp(t)
	cl.dirty = repository.Dirty
	node := clonedRepo(t, a.Snapshot().Roots)
	require.NotNil(t, node)

	d, err := a.DeleteStatus(node)
	require.NoError(t, err)
	assert.Equal(t, repository.Dirty, d)

	require.NoError(t, a.DeleteNode(node))
	assert.Equal(t, []string{"/src/c"}, cl.deleted)
	assert.Equal(t, 1, cat.reloads)
}

func TestApp_DeleteNode_NotApplicable(t *testing.T) {
	a, cat, cl := newApp(t)
	notCloned := notClonedOrg(t, a.Snapshot().Roots, false)

	_, err := a.DeleteStatus(notCloned.Children[0])
	assert.ErrorIs(t, err, ErrNotApplicable)
	assert.ErrorIs(t, a.DeleteNode(notCloned.Children[0]), ErrNotApplicable)
	assert.ErrorIs(t, a.DeleteNode(notCloned), ErrNotApplicable)
	assert.ErrorIs(t, a.DeleteNode(nil), ErrNotApplicable)
	assert.Empty(t, cl.deleted)
	assert.Zero(t, cat.reloads)
}

func TestApp_DeleteClone_Error(t *testing.T) {
	a, cat, cl := newApp(t)
	cl.deleteErr = errors.New("permission denied")

	err := a.DeleteClone("/src/c")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "permission denied")
	assert.Zero(t, cat.reloads)
}

func TestApp_FindClone(t *testing.T) {
	a, _, cl := newApp(t)

	r, err := a.FindClone(context.Background(), clone.Target{Owner: "acme", Name: "c"})
	require.NoError(t, err)
	assert.Equal(t, "/src/c", r.LocalPath)
	assert.Equal(t, []string{"/src"}, cl.searchPaths)
}

func TestApp_RepoURL(t *testing.T) {
	a, _, _ := newApp(t)
	ctx := context.Background()

	assert.Equal(t, "https://github.com/acme/a",
		a.RepoURL(ctx, hidden.NotCloned, "acme", clone.Target{Owner: "ACME", Name: "A"}), "catalog spelling")
	assert.Equal(t, "https://github.com/Ghost/Repo",
		a.RepoURL(ctx, hidden.NotCloned, "Ghost", clone.Target{Owner: "Ghost", Name: "Repo"}), "unknown keeps the input")

	a.Store(hidden.Cloned).HideRepo("ghost", "https://github.com/ghost/repo")
	assert.Equal(t, "https://github.com/ghost/repo",
		a.RepoURL(ctx, hidden.Cloned, "GHOST", clone.Target{Owner: "Ghost", Name: "Repo"}), "stored spelling")
}
