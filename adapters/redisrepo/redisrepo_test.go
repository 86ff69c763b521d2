package redisrepo

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/goliatone/go-model-repository/codec"
	"github.com/goliatone/go-model-repository/pkg/testsupport"
	"github.com/goliatone/go-model-repository/repository"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type User = testsupport.User

// skipIfNoRedis skips the test if Redis is not available
func skipIfNoRedis(t *testing.T) *redis.Client {
	t.Helper()

	cfg := DefaultConfig()
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		cfg.Addr = addr
	}

	client, err := NewClient(context.Background(), cfg)
	if err != nil {
		t.Skipf("Skipping Redis test: %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return client
}

func setupRepository(t *testing.T, client *redis.Client, c codec.Codec[User], ttl time.Duration) *Repository[User] {
	t.Helper()

	repo := New[User](client, c, Options{Namespace: "test-" + uuid.NewString(), TTL: ttl})
	t.Cleanup(func() { repo.Clear(context.Background()) })
	return repo
}

func TestKeyLayout(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "localhost:0"})
	defer client.Close()

	repo := New[User](client, nil, Options{Namespace: "app"})

	assert.Equal(t, "app:user:42", repo.Keys().SerializeKey("42"))
	assert.Equal(t, "app:user:", repo.Keys().Prefix())
	assert.Equal(t, "redisrepo(app:user:*)", repo.String())
}

func TestUnsupportedQueries_NoRoundTrip(t *testing.T) {
	ctx := context.Background()
	// never dialled: unsupported queries fail before reaching Redis
	client := redis.NewClient(&redis.Options{Addr: "localhost:0"})
	defer client.Close()

	repo := New[User](client, nil, Options{Namespace: "app"})
	predicate := repository.Where(func(User) bool { return true })

	_, _, err := repo.FindByQuery(ctx, predicate)
	assert.ErrorIs(t, err, repository.ErrUnsupportedQuery)

	_, err = repo.FindManyByQuery(ctx, repository.Native("KEYS *"), 1)
	assert.ErrorIs(t, err, repository.ErrUnsupportedQuery)

	assert.ErrorIs(t, repo.DeleteByQuery(ctx, predicate), repository.ErrUnsupportedQuery)
	assert.ErrorIs(t, repo.DeleteManyByQuery(ctx, predicate, 1), repository.ErrUnsupportedQuery)
}

func TestNewFromConfig_UnknownCodec(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "localhost:0"})
	defer client.Close()

	cfg := DefaultConfig()
	cfg.Codec = "xml"
	_, err := NewFromConfig[User](client, cfg, nil)
	assert.Error(t, err)
}

func TestRepositoryContract(t *testing.T) {
	client := skipIfNoRedis(t)

	testsupport.RunRepositoryContract(t, func(t *testing.T) repository.Repository[User] {
		return setupRepository(t, client, nil, time.Hour)
	}, testsupport.Capabilities{})
}

func TestRepositoryContract_Msgpack(t *testing.T) {
	client := skipIfNoRedis(t)

	testsupport.RunRepositoryContract(t, func(t *testing.T) repository.Repository[User] {
		return setupRepository(t, client, codec.NewMsgpack[User](), 0)
	}, testsupport.Capabilities{})
}

func TestCreate_AppliesTTL(t *testing.T) {
	ctx := context.Background()
	client := skipIfNoRedis(t)
	repo := setupRepository(t, client, nil, time.Minute)
	user := testsupport.NewUser("ttl")

	require.NoError(t, repo.Create(ctx, user))

	ttl, err := client.TTL(ctx, repo.Keys().SerializeKey(user.ID)).Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))
	assert.LessOrEqual(t, ttl, time.Minute)
}

func TestCreate_ExpiredEntryIsAbsent(t *testing.T) {
	ctx := context.Background()
	client := skipIfNoRedis(t)
	repo := setupRepository(t, client, nil, 50*time.Millisecond)
	user := testsupport.NewUser("short-lived")

	require.NoError(t, repo.Create(ctx, user))
	time.Sleep(200 * time.Millisecond)

	_, found, err := repo.Find(ctx, user.ID)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestFindAll_ScopedToNamespace(t *testing.T) {
	ctx := context.Background()
	client := skipIfNoRedis(t)
	a := setupRepository(t, client, nil, time.Hour)
	b := setupRepository(t, client, nil, time.Hour)

	require.NoError(t, a.Create(ctx, testsupport.NewUser("a")))
	require.NoError(t, b.Create(ctx, testsupport.NewUser("b")))

	all, err := a.FindAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "a", all[0].Name)
}

func TestScanPattern(t *testing.T) {
	cases := map[string]string{
		"app:user:":     "app:user:*",
		"a*b?:user:":    `a\*b\?:user:*`,
		"t[1]:user:":    `t\[1\]:user:*`,
		`back\slash:u:`: `back\\slash:u:*`,
	}
	for prefix, want := range cases {
		assert.Equal(t, want, scanPattern(prefix), prefix)
	}
}

func TestFindAll_GlobCharactersInNamespace(t *testing.T) {
	ctx := context.Background()
	client := skipIfNoRedis(t)

	suffix := uuid.NewString()
	bracketed := New[User](client, nil, Options{Namespace: "t[1]-" + suffix, TTL: time.Hour})
	plain := New[User](client, nil, Options{Namespace: "t1-" + suffix, TTL: time.Hour})
	t.Cleanup(func() {
		bracketed.Clear(context.Background())
		plain.Clear(context.Background())
	})

	require.NoError(t, bracketed.Create(ctx, testsupport.NewUser("bracketed")))
	require.NoError(t, plain.Create(ctx, testsupport.NewUser("plain")))

	all, err := bracketed.FindAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "bracketed", all[0].Name)

	require.NoError(t, bracketed.Clear(ctx))
	all, err = plain.FindAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "plain", all[0].Name)
}

func TestDeleteMany_PipelinedPerKey(t *testing.T) {
	ctx := context.Background()
	client := skipIfNoRedis(t)
	repo := setupRepository(t, client, nil, time.Hour)

	users := []User{testsupport.NewUser("a"), testsupport.NewUser("b"), testsupport.NewUser("c")}
	for _, u := range users {
		require.NoError(t, repo.Create(ctx, u))
	}

	got, err := repo.FindMany(ctx, []string{users[2].ID, "missing", users[0].ID}, repository.NoLimit)
	require.NoError(t, err)
	assert.Equal(t, []string{users[2].ID, users[0].ID}, repository.IDs(got))

	require.NoError(t, repo.DeleteMany(ctx, []string{users[0].ID, users[1].ID, "missing"}))
	all, err := repo.FindAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{users[2].ID}, repository.IDs(all))
}
