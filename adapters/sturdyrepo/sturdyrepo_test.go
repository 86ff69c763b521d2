package sturdyrepo

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/goliatone/go-model-repository/adapters/maprepo"
	"github.com/goliatone/go-model-repository/cache"
	"github.com/goliatone/go-model-repository/pkg/testsupport"
	"github.com/goliatone/go-model-repository/repository"
	"github.com/goliatone/go-model-repository/repositorycache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() cache.Config {
	cfg := cache.DefaultConfig()
	cfg.Capacity = 1000
	cfg.NumShards = 4
	return cfg
}

func TestRepositoryContract(t *testing.T) {
	testsupport.RunRepositoryContract(t, func(t *testing.T) repository.Repository[testsupport.User] {
		repo, err := New[testsupport.User](testConfig())
		require.NoError(t, err)
		return repo
	}, testsupport.Capabilities{Predicate: true})
}

func TestNew_InvalidConfig(t *testing.T) {
	cfg := testConfig()
	cfg.Capacity = 0

	_, err := New[testsupport.User](cfg)
	assert.Error(t, err)
}

func TestNewLoading_RequiresLoader(t *testing.T) {
	_, err := NewLoading[testsupport.User](testConfig(), nil)
	assert.Error(t, err)
}

func TestLoading_FindLoadsOnce(t *testing.T) {
	ctx := context.Background()
	source := maprepo.New[testsupport.User]()
	user := testsupport.NewUser("loaded")
	require.NoError(t, source.Create(ctx, user))

	var loads int32
	loader := func(ctx context.Context, id string) (testsupport.User, bool, error) {
		atomic.AddInt32(&loads, 1)
		return source.Find(ctx, id)
	}

	repo, err := NewLoading[testsupport.User](testConfig(), loader)
	require.NoError(t, err)

	exists, err := repo.Exists(ctx, user.ID)
	require.NoError(t, err)
	assert.False(t, exists, "Exists must not trigger the loader")

	got, found, err := repo.Find(ctx, user.ID)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, user, got)

	_, found, err = repo.Find(ctx, user.ID)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, int32(1), atomic.LoadInt32(&loads), "second Find should be served from cache")

	exists, err = repo.Exists(ctx, user.ID)
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestLoading_MissIsAbsent(t *testing.T) {
	ctx := context.Background()
	source := maprepo.New[testsupport.User]()

	repo, err := NewLoading[testsupport.User](testConfig(), SourceLoader[testsupport.User](source))
	require.NoError(t, err)

	_, found, err := repo.Find(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, found)

	many, err := repo.FindMany(ctx, []string{"missing"}, repository.NoLimit)
	require.NoError(t, err)
	assert.Empty(t, many)
}

func TestLoading_MissingRecordStorage(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig()
	cfg.MissingRecordStorage = true

	var loads int32
	loader := func(ctx context.Context, id string) (testsupport.User, bool, error) {
		atomic.AddInt32(&loads, 1)
		return testsupport.User{}, false, nil
	}

	repo, err := NewLoading[testsupport.User](cfg, loader)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, found, err := repo.Find(ctx, "ghost")
		require.NoError(t, err)
		assert.False(t, found)
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(&loads), "misses should be remembered")
}

func TestLoading_LoaderError(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("source down")

	repo, err := NewLoading[testsupport.User](testConfig(), func(context.Context, string) (testsupport.User, bool, error) {
		return testsupport.User{}, false, boom
	})
	require.NoError(t, err)

	_, _, err = repo.Find(ctx, "any")
	assert.ErrorIs(t, err, repository.ErrStorageFailure)
	assert.ErrorIs(t, err, boom)
}

func TestLoading_QueriesUseCachedEntriesOnly(t *testing.T) {
	ctx := context.Background()
	source := maprepo.New[testsupport.User]()
	require.NoError(t, source.Create(ctx, testsupport.NewUser("source-only")))

	repo, err := NewLoading[testsupport.User](testConfig(), SourceLoader[testsupport.User](source))
	require.NoError(t, err)

	all, err := repo.FindManyByQuery(ctx, repository.Where(func(testsupport.User) bool { return true }), repository.NoLimit)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestLoading_IDQueryLoads(t *testing.T) {
	ctx := context.Background()
	source := maprepo.New[testsupport.User]()
	user := testsupport.NewUser("by-id")
	require.NoError(t, source.Create(ctx, user))

	repo, err := NewLoading[testsupport.User](testConfig(), SourceLoader[testsupport.User](source))
	require.NoError(t, err)

	many, err := repo.FindManyByQuery(ctx, repository.ByID(user.ID), 5)
	require.NoError(t, err)
	assert.Equal(t, []testsupport.User{user}, many)

	none, err := repo.FindManyByQuery(ctx, repository.ByID(user.ID), 0)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestScan_OrderedByID(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig()
	cfg.NumShards = 1
	repo, err := New[testsupport.User](cfg)
	require.NoError(t, err)

	for _, id := range []string{"e", "b", "d", "a", "c"} {
		require.NoError(t, repo.Create(ctx, testsupport.User{ID: id, Name: "same"}))
	}

	all, err := repo.FindAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c", "d", "e"}, repository.IDs(all))

	q := repository.Where(func(u testsupport.User) bool { return u.Name == "same" })
	for i := 0; i < 20; i++ {
		first, found, err := repo.FindByQuery(ctx, q)
		require.NoError(t, err)
		require.True(t, found)
		assert.Equal(t, "a", first.ID)
	}

	require.NoError(t, repo.DeleteByQuery(ctx, q))
	ok, err := repo.Exists(ctx, "a")
	require.NoError(t, err)
	assert.False(t, ok, "DeleteByQuery must remove the model FindByQuery returned")
}

func TestQueryEvictions_KeepEveryModel(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig()
	cfg.NumShards = 1

	matching := repository.Where(func(u testsupport.User) bool { return u.Name == "evict" })

	for run := 0; run < 50; run++ {
		cacheRepo, err := New[testsupport.User](cfg)
		require.NoError(t, err)
		source := maprepo.New[testsupport.User]()
		cached := repositorycache.New[testsupport.User](source, cacheRepo)

		users := testsupport.Users(6, "evict")
		for _, u := range users {
			require.NoError(t, cached.Cache(ctx, u))
		}

		require.NoError(t, cached.DeleteManyByQueryCached(ctx, matching, 2))
		assert.Equal(t, 2, source.Len())
		assert.Equal(t, 4, cacheRepo.Len())

		require.NoError(t, cached.DeleteByQueryCached(ctx, matching))
		assert.Equal(t, 3, source.Len())
		assert.Equal(t, 3, cacheRepo.Len())

		inCache, err := cached.GetAll(ctx)
		require.NoError(t, err)
		inSource, err := cached.FindAll(ctx)
		require.NoError(t, err)

		seen := map[string]bool{}
		for _, id := range append(repository.IDs(inCache), repository.IDs(inSource)...) {
			seen[id] = true
		}
		require.Len(t, seen, len(users), "run %d lost a model", run)
	}
}
