package async

import (
	"context"
	"errors"
	"testing"

	"github.com/goliatone/go-model-repository/adapters/maprepo"
	"github.com/goliatone/go-model-repository/repository"
	"github.com/goliatone/go-model-repository/repositorycache"
)

type testUser struct {
	ID   string
	Name string
}

func (u testUser) GetID() string { return u.ID }

func await[V any](t *testing.T, f *Future[V]) V {
	t.Helper()
	v, err := f.Await(context.Background())
	if err != nil {
		t.Fatalf("Await() failed: %v", err)
	}
	return v
}

func TestRepository_MatchesSyncForms(t *testing.T) {
	ctx := context.Background()
	source := maprepo.New[testUser]()
	repo := New[testUser](source, nil)
	defer repo.Close()

	users := []testUser{{"1", "a"}, {"2", "b"}, {"3", "b"}}
	for _, u := range users {
		await(t, repo.CreateAsync(ctx, u))
	}

	if !await(t, repo.ExistsAsync(ctx, "1")) {
		t.Error("ExistsAsync() should report the created model")
	}

	found := await(t, repo.FindAsync(ctx, "2"))
	if !found.Found || found.Model != users[1] {
		t.Errorf("FindAsync() = %+v", found)
	}

	missing := await(t, repo.FindAsync(ctx, "404"))
	if missing.Found {
		t.Errorf("FindAsync() on unknown id = %+v", missing)
	}

	byName := repository.Where(func(u testUser) bool { return u.Name == "b" })
	if l := await(t, repo.FindByQueryAsync(ctx, byName)); !l.Found || l.Model.Name != "b" {
		t.Errorf("FindByQueryAsync() = %+v", l)
	}

	if got := await(t, repo.FindManyAsync(ctx, []string{"1", "2", "3"}, 2)); len(got) != 2 {
		t.Errorf("FindManyAsync() returned %d models, want 2", len(got))
	}
	if got := await(t, repo.FindManyByQueryAsync(ctx, byName, repository.NoLimit)); len(got) != 2 {
		t.Errorf("FindManyByQueryAsync() returned %d models, want 2", len(got))
	}
	if got := await(t, repo.FindAllAsync(ctx)); len(got) != 3 {
		t.Errorf("FindAllAsync() returned %d models, want 3", len(got))
	}

	await(t, repo.DeleteByQueryAsync(ctx, byName))
	await(t, repo.DeleteManyByQueryAsync(ctx, byName, repository.NoLimit))
	await(t, repo.DeleteAsync(ctx, "1"))
	await(t, repo.DeleteManyAsync(ctx, []string{"404"}))

	if source.Len() != 0 {
		t.Errorf("expected empty source, %d left", source.Len())
	}
}

func TestRepository_PropagatesErrors(t *testing.T) {
	ctx := context.Background()
	repo := New[testUser](maprepo.New[testUser](), nil)
	defer repo.Close()

	_, err := repo.FindByQueryAsync(ctx, repository.Native("raw")).Await(ctx)
	if !errors.Is(err, repository.ErrUnsupportedQuery) {
		t.Errorf("expected ErrUnsupportedQuery, got %v", err)
	}
}

func TestRepository_ExecutorOwnership(t *testing.T) {
	ctx := context.Background()

	owned := New[testUser](maprepo.New[testUser](), nil)
	owned.Close()
	if _, err := owned.FindAllAsync(ctx).Await(ctx); !errors.Is(err, ErrExecutorClosed) {
		t.Errorf("owned executor should be closed, got %v", err)
	}

	shared := NewPoolExecutor(2)
	defer shared.Close()

	a := New[testUser](maprepo.New[testUser](), shared)
	b := New[testUser](maprepo.New[testUser](), shared)
	if a.Executor() != shared || b.Executor() != shared {
		t.Fatal("wrappers should use the shared executor")
	}

	a.Close()
	if _, err := b.FindAllAsync(ctx).Await(ctx); err != nil {
		t.Errorf("closing a wrapper must not close a shared executor: %v", err)
	}
}

func TestCachedRepository_MatchesSyncForms(t *testing.T) {
	ctx := context.Background()
	source := maprepo.New[testUser]()
	cache := maprepo.New[testUser]()
	cached := repositorycache.New[testUser](source, cache)

	repo := NewCached(cached, nil)
	defer repo.Close()

	if repo.Cached() != cached {
		t.Fatal("Cached() should return the wrapped decorator")
	}

	alice := testUser{"1", "alice"}
	bob := testUser{"2", "bob"}

	await(t, repo.CacheAsync(ctx, alice))
	await(t, repo.CreateAsync(ctx, bob))

	if l := await(t, repo.GetAsync(ctx, "1")); !l.Found || l.Model != alice {
		t.Errorf("GetAsync() = %+v", l)
	}
	if l := await(t, repo.GetAsync(ctx, "2")); l.Found {
		t.Errorf("GetAsync() must not consult the source, got %+v", l)
	}
	if l := await(t, repo.GetOrFindAsync(ctx, "2")); !l.Found || l.Model != bob {
		t.Errorf("GetOrFindAsync() = %+v", l)
	}

	byBob := repository.Where(func(u testUser) bool { return u.Name == "bob" })
	if l := await(t, repo.GetByQueryAsync(ctx, byBob)); l.Found {
		t.Errorf("GetByQueryAsync() must miss, got %+v", l)
	}
	if l := await(t, repo.GetOrFindByQueryAsync(ctx, byBob)); !l.Found {
		t.Errorf("GetOrFindByQueryAsync() = %+v", l)
	}

	if got := await(t, repo.GetManyAsync(ctx, []string{"1", "2"}, repository.NoLimit)); len(got) != 1 {
		t.Errorf("GetManyAsync() returned %d models, want 1", len(got))
	}
	all := repository.Where(func(testUser) bool { return true })
	if got := await(t, repo.GetManyByQueryAsync(ctx, all, repository.NoLimit)); len(got) != 1 {
		t.Errorf("GetManyByQueryAsync() returned %d models, want 1", len(got))
	}
	if got := await(t, repo.GetAllAsync(ctx)); len(got) != 1 {
		t.Errorf("GetAllAsync() returned %d models, want 1", len(got))
	}

	await(t, repo.DeleteCachedAsync(ctx, "1"))
	if cache.Len() != 0 || source.Len() != 2 {
		t.Errorf("DeleteCachedAsync() should move alice: cache=%d source=%d", cache.Len(), source.Len())
	}

	carol := testUser{"3", "carol"}
	dave := testUser{"4", "dave"}
	erin := testUser{"5", "erin"}
	for _, u := range []testUser{carol, dave, erin} {
		await(t, repo.CacheAsync(ctx, u))
	}

	await(t, repo.DeleteByQueryCachedAsync(ctx, repository.ByID("3")))
	await(t, repo.DeleteManyCachedAsync(ctx, []string{"4"}))
	await(t, repo.DeleteManyByQueryCachedAsync(ctx, all, repository.NoLimit))

	if cache.Len() != 0 || source.Len() != 5 {
		t.Errorf("expected everything evicted to source: cache=%d source=%d", cache.Len(), source.Len())
	}
}

func TestCachedRepository_NoCacheRepository(t *testing.T) {
	ctx := context.Background()
	cached := repositorycache.New[testUser](maprepo.New[testUser](), nil)
	repo := NewCached(cached, nil)
	defer repo.Close()

	_, err := repo.GetAsync(ctx, "1").Await(ctx)
	if !errors.Is(err, repositorycache.ErrNoCacheRepository) {
		t.Errorf("expected ErrNoCacheRepository, got %v", err)
	}
}
