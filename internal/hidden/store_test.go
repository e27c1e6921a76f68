package hidden

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marcin-skalski/repo-manager/internal/storage"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func activeStorage(t *testing.T, doc string) (*storage.Storage, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "state.json")
	if doc != "" {
		require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))
	}
	st := storage.New(testLogger())
	require.NoError(t, st.Activate(path))
	return st, path
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	st, _ := activeStorage(t, "")
	return NewStore(NotCloned, st, testLogger())
}

func countChanges(s *Store) *int {
	n := 0
	s.OnChange(func() { n++ })
	return &n
}

func TestStore_NotReadyDropsMutations(t *testing.T) {
	st := storage.New(testLogger())
	s := NewStore(NotCloned, st, testLogger())
	changes := countChanges(s)

	s.HideOrg("acme")
	s.HideRepo("other", "https://github.com/other/x")

	assert.False(t, s.IsReady())
	assert.False(t, s.IsOrgHidden("acme"))
	assert.False(t, s.HasHiddenItems())
	assert.Empty(t, s.Snapshot().Orgs)
	assert.Equal(t, 0, *changes)
}

func TestStore_InitializesOnActivation(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"hiddenNotCloned.state":{"orgs":["acme"],"repos":{}}}`), 0o644))

	st := storage.New(testLogger())
	s := NewStore(NotCloned, st, testLogger())
	changes := countChanges(s)

	require.NoError(t, st.Activate(path))

	assert.True(t, s.IsReady())
	assert.True(t, s.IsOrgHidden("acme"))
	assert.Equal(t, 1, *changes)

	// Reactivation reloads and notifies again.
	require.NoError(t, st.Activate(path))
	assert.Equal(t, 2, *changes)
}

func TestStore_DomainsAreIndependent(t *testing.T) {
	st, _ := activeStorage(t, "")
	notCloned := NewStore(NotCloned, st, testLogger())
	cloned := NewStore(Cloned, st, testLogger())

	notCloned.HideOrg("acme")

	assert.True(t, notCloned.IsOrgHidden("acme"))
	assert.False(t, cloned.IsOrgHidden("acme"))
	assert.Equal(t, []string{"hiddenNotCloned.state"}, st.Keys())
}

func TestStore_Idempotence(t *testing.T) {
	s := newTestStore(t)
	changes := countChanges(s)

	s.HideOrg("org1")
	s.HideOrg("org1")
	assert.Equal(t, 1, *changes)

	s.UnhideRepo("org1", "u1")
	s.UnhideRepo("org1", "u1")
	assert.Equal(t, 2, *changes)

	s.HideRepo("org1", "u1")
	s.HideRepo("org1", "u1")
	assert.Equal(t, 3, *changes)

	s.UnhideOrg("org1")
	s.UnhideOrg("org1")
	assert.Equal(t, 4, *changes)

	s.HideRepo("org2", "u2")
	s.HideRepo("org2", "u2")
	assert.Equal(t, 5, *changes)
	assert.Equal(t, []string{"u2"}, s.HiddenRepoURLs("org2"))

	s.UnhideRepo("org2", "u2")
	s.UnhideRepo("org2", "u2")
	assert.Equal(t, 6, *changes)
	assert.False(t, s.HasHiddenItems())
}

func TestStore_HideOrgClearsLists(t *testing.T) {
	s := newTestStore(t)
	s.HideRepo("acme", "u1")
	s.HideRepo("acme", "u2")

	s.HideOrg("acme")

	assert.Empty(t, s.HiddenRepoURLs("acme"))
	snap := s.Snapshot()
	assert.NotContains(t, snap.Repos, "acme")
	assert.NotContains(t, snap.OrgVisibleRepos, "acme")
}

func TestStore_UnhideOrgDiscardsOverrides(t *testing.T) {
	s := newTestStore(t)
	s.HideOrg("acme")
	s.UnhideRepo("acme", "u1")

	s.UnhideOrg("acme")

	snap := s.Snapshot()
	assert.False(t, snap.IsOrgHidden("acme"))
	assert.Empty(t, snap.OrgVisibleRepos)
	assert.False(t, s.IsRepoHidden("acme", "u1"))
	assert.False(t, s.IsRepoHidden("acme", "u2"))
}

func TestStore_OverridePrecedence(t *testing.T) {
	s := newTestStore(t)
	s.HideOrg("acme")

	s.UnhideRepo("acme", "r1")

	assert.False(t, s.IsRepoHidden("acme", "r1"))
	assert.True(t, s.IsRepoHidden("acme", "r2"))
}

func TestStore_HideRepoRevokesOverride(t *testing.T) {
	s := newTestStore(t)
	s.HideOrg("acme")
	s.UnhideRepo("acme", "r1")
	changes := countChanges(s)

	s.HideRepo("acme", "r1")
	assert.True(t, s.IsRepoHidden("acme", "r1"))
	assert.NotContains(t, s.Snapshot().OrgVisibleRepos, "acme")
	assert.Equal(t, 1, *changes)

	// No override left: already hidden through the org.
	s.HideRepo("acme", "r1")
	s.HideRepo("acme", "r9")
	assert.Equal(t, 1, *changes)
	assert.Empty(t, s.HiddenRepoURLs("acme"))
}

func TestStore_ScenarioOverrideInsideHiddenOrg(t *testing.T) {
	s := newTestStore(t)

	s.HideOrg("org1")
	assert.True(t, s.IsOrgHidden("org1"))
	assert.Equal(t, NewSet("org1"), s.Snapshot().Orgs)

	s.UnhideRepo("org1", "https://x/y")
	assert.False(t, s.IsRepoHidden("org1", "https://x/y"))
	snap := s.Snapshot()
	assert.Equal(t, NewSet("https://x/y"), snap.OrgVisibleRepos["org1"])
	assert.True(t, snap.Orgs.Has("org1"))
}

func TestStore_ScenarioHideOrgAfterRepo(t *testing.T) {
	s := newTestStore(t)

	s.HideRepo("org2", "u1")
	s.HideOrg("org2")

	assert.Equal(t, []string{}, s.HiddenRepoURLs("org2"))
	assert.True(t, s.IsRepoHidden("org2", "u1"))
}

func TestStore_UnhideOrgNeverHidden(t *testing.T) {
	s := newTestStore(t)
	s.HideRepo("acme", "u1")
	before := s.Snapshot()
	changes := countChanges(s)

	s.UnhideOrg("acme")

	assert.Equal(t, 0, *changes)
	assert.Equal(t, before, s.Snapshot())
}

func TestStore_BlankIdentifiersIgnored(t *testing.T) {
	s := newTestStore(t)
	changes := countChanges(s)

	s.HideOrg("   ")
	s.UnhideOrg("")
	s.HideRepo("acme", " ")
	s.HideRepo(" ", "u1")
	s.UnhideRepo("", "u1")

	assert.Equal(t, 0, *changes)
	assert.False(t, s.IsOrgHidden(""))
	assert.False(t, s.IsRepoHidden("", "u1"))
	assert.False(t, s.HasHiddenItems())
}

func TestStore_TrimsIdentifiers(t *testing.T) {
	s := newTestStore(t)

	s.HideRepo(" acme ", " u1 ")

	assert.True(t, s.IsRepoHidden("acme", "u1"))
	assert.Equal(t, []string{"u1"}, s.HiddenRepoURLs("acme"))
}

func TestStore_OrgCaseInsensitive(t *testing.T) {
	s := newTestStore(t)
	changes := countChanges(s)

	s.HideOrg("Acme")
	s.HideOrg("acme")

	assert.Equal(t, 1, *changes)
	assert.True(t, s.IsOrgHidden("ACME"))
	assert.Equal(t, NewSet("Acme"), s.Snapshot().Orgs)

	s.UnhideRepo("acme", "u1")
	assert.False(t, s.IsRepoHidden("ACME", "u1"))
	assert.Contains(t, s.Snapshot().OrgVisibleRepos, "Acme")

	s.UnhideOrg("ACME")
	assert.False(t, s.HasHiddenItems())
}

func TestStore_RepoURLsCaseSensitive(t *testing.T) {
	s := newTestStore(t)

	s.HideRepo("acme", "https://github.com/acme/Repo")

	assert.True(t, s.IsRepoHidden("acme", "https://github.com/acme/Repo"))
	assert.False(t, s.IsRepoHidden("acme", "https://github.com/acme/repo"))
}

func TestStore_UnhideRepoInHiddenOrgDropsStaleHiddenEntry(t *testing.T) {
	st, _ := activeStorage(t, `{"hiddenNotCloned.state":{"orgs":["acme"],"repos":{"acme":["u1","u2"]},"orgVisibleRepos":{}}}`)
	s := NewStore(NotCloned, st, testLogger())

	s.UnhideRepo("acme", "u1")

	assert.Equal(t, []string{"u2"}, s.HiddenRepoURLs("acme"))
	assert.False(t, s.IsRepoHidden("acme", "u1"))
}

func TestStore_NormalizesOnLoad(t *testing.T) {
	doc := `{"hiddenNotCloned.state":{
		"orgs": ["Acme", "acme", " ", "beta "],
		"repos": {"gamma": ["u2", " u1", "u2", ""], "empty": [], " ": ["x"]},
		"orgVisibleRepos": {"ACME": ["v1"], "acme": ["v2"]}
	}}`
	st, _ := activeStorage(t, doc)
	s := NewStore(NotCloned, st, testLogger())

	snap := s.Snapshot()

	assert.Equal(t, NewSet("Acme", "beta"), snap.Orgs)
	assert.Equal(t, map[string]Set{"gamma": NewSet("u1", "u2")}, snap.Repos)
	assert.Equal(t, map[string]Set{"Acme": NewSet("v1", "v2")}, snap.OrgVisibleRepos)
}

func TestStore_MissingOverridesField(t *testing.T) {
	st, _ := activeStorage(t, `{"hiddenCloned.state":{"orgs":["acme"],"repos":{"beta":["u1"]}}}`)
	s := NewStore(Cloned, st, testLogger())

	snap := s.Snapshot()

	assert.True(t, snap.IsOrgHidden("acme"))
	assert.Empty(t, snap.OrgVisibleRepos)
	assert.True(t, s.IsRepoHidden("acme", "anything"))
	assert.True(t, s.IsRepoHidden("beta", "u1"))
}

func TestStore_InvalidDocumentLoadsEmpty(t *testing.T) {
	st, _ := activeStorage(t, `{"hiddenNotCloned.state":{"orgs":"acme","repos":[]}}`)
	s := NewStore(NotCloned, st, testLogger())

	assert.True(t, s.IsReady())
	assert.False(t, s.HasHiddenItems())

	s.HideOrg("beta")
	assert.True(t, s.IsOrgHidden("beta"))
}

func TestStore_PersistsSortedDocument(t *testing.T) {
	st, path := activeStorage(t, "")
	s := NewStore(NotCloned, st, testLogger())

	s.HideOrg("zeta")
	s.HideOrg("Alpha")
	s.HideRepo("beta", "u2")
	s.HideRepo("beta", "U1")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var doc map[string]State
	require.NoError(t, json.Unmarshal(data, &doc))
	got := doc["hiddenNotCloned.state"]
	assert.Equal(t, []string{"Alpha", "zeta"}, got.Orgs)
	assert.Equal(t, []string{"U1", "u2"}, got.Repos["beta"])
	assert.NotNil(t, got.OrgVisibleRepos)
}

func TestStore_RoundTrip(t *testing.T) {
	s := newTestStore(t)
	s.HideOrg("acme")
	s.UnhideRepo("acme", "https://github.com/acme/a")
	s.HideRepo("beta", "https://github.com/beta/b")
	s.HideRepo("beta", "https://github.com/beta/c")
	s.HideOrg("Gamma")
	s.UnhideRepo("beta", "https://github.com/beta/c")
	want := s.Snapshot()

	data, err := json.Marshal(map[string]State{Cloned.StorageKey(): want.State()})
	require.NoError(t, err)
	st, _ := activeStorage(t, string(data))
	reloaded := NewStore(Cloned, st, testLogger())

	assert.Equal(t, want, reloaded.Snapshot())
}

func TestStore_SnapshotIsIndependent(t *testing.T) {
	s := newTestStore(t)
	s.HideRepo("acme", "u1")

	snap := s.Snapshot()
	snap.Repos["acme"]["u2"] = struct{}{}
	snap.Orgs["beta"] = struct{}{}

	assert.Equal(t, []string{"u1"}, s.HiddenRepoURLs("acme"))
	assert.False(t, s.IsOrgHidden("beta"))

	urls := s.HiddenRepoURLs("acme")
	urls[0] = "changed"
	assert.Equal(t, []string{"u1"}, s.HiddenRepoURLs("acme"))
}

func TestStore_HasHiddenItems(t *testing.T) {
	s := newTestStore(t)
	assert.False(t, s.HasHiddenItems())

	s.HideRepo("acme", "u1")
	assert.True(t, s.HasHiddenItems())

	s.UnhideRepo("acme", "u1")
	s.HideOrg("beta")
	assert.True(t, s.HasHiddenItems())
}

func TestStore_Close(t *testing.T) {
	st, path := activeStorage(t, "")
	s := NewStore(NotCloned, st, testLogger())
	changes := countChanges(s)

	s.Close()
	require.NoError(t, st.Activate(path))

	assert.Equal(t, 0, *changes)
}

func TestStore_WatchKeepsRapidMutations(t *testing.T) {
	st, path := activeStorage(t, "")
	s := NewStore(NotCloned, st, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- st.Watch(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	external := `{"hiddenNotCloned.state": {"orgs": ["warmup"]}}`
	require.Eventually(t, func() bool {
		_ = os.WriteFile(path, []byte(external), 0o644)
		return s.IsOrgHidden("warmup")
	}, 5*time.Second, 50*time.Millisecond)
	time.Sleep(200 * time.Millisecond)

	const n = 400
	for i := range n {
		s.HideRepo("acme", fmt.Sprintf("https://github.com/acme/r%04d", i))
	}
	time.Sleep(500 * time.Millisecond)

	assert.Len(t, s.HiddenRepoURLs("acme"), n)
	assert.True(t, s.IsOrgHidden("warmup"))

	reopened := storage.New(testLogger())
	require.NoError(t, reopened.Activate(path))
	assert.Len(t, NewStore(NotCloned, reopened, testLogger()).HiddenRepoURLs("acme"), n)
}
