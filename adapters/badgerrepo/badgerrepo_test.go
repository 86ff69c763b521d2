package badgerrepo

import (
	"context"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goliatone/go-model-repository/codec"
	"github.com/goliatone/go-model-repository/pkg/testsupport"
	"github.com/goliatone/go-model-repository/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type User = testsupport.User

func openDB(t *testing.T, cfg Config) *badger.DB {
	t.Helper()

	db, err := Open(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestRepositoryContract_InMemory(t *testing.T) {
	testsupport.RunRepositoryContract(t, func(t *testing.T) repository.Repository[User] {
		return New[User](openDB(t, DefaultConfig()), nil, Options{Namespace: "test"})
	}, testsupport.Capabilities{Predicate: true})
}

func TestRepositoryContract_OnDisk(t *testing.T) {
	testsupport.RunRepositoryContract(t, func(t *testing.T) repository.Repository[User] {
		db := openDB(t, Config{Path: t.TempDir()})
		return New[User](db, codec.NewJSON[User](), Options{Namespace: "test"})
	}, testsupport.Capabilities{Predicate: true})
}

func TestNamespacesAreIsolated(t *testing.T) {
	ctx := context.Background()
	db := openDB(t, DefaultConfig())
	a := New[User](db, nil, Options{Namespace: "a"})
	b := New[User](db, nil, Options{Namespace: "b"})

	user := testsupport.NewUser("shared-id")
	require.NoError(t, a.Create(ctx, user))

	_, found, err := b.Find(ctx, user.ID)
	require.NoError(t, err)
	assert.False(t, found)

	all, err := b.FindAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)

	assert.Equal(t, "a:user:"+user.ID, a.Keys().SerializeKey(user.ID))
}

func TestCreate_TTLExpires(t *testing.T) {
	ctx := context.Background()
	repo := New[User](openDB(t, DefaultConfig()), nil, Options{Namespace: "ttl", TTL: time.Second})
	user := testsupport.NewUser("short-lived")

	require.NoError(t, repo.Create(ctx, user))
	exists, err := repo.Exists(ctx, user.ID)
	require.NoError(t, err)
	require.True(t, exists)

	// badger TTLs have second granularity
	time.Sleep(2100 * time.Millisecond)

	exists, err = repo.Exists(ctx, user.ID)
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestNewFromConfig(t *testing.T) {
	db := openDB(t, DefaultConfig())

	repo, err := NewFromConfig[User](db, DefaultConfig(), nil)
	require.NoError(t, err)
	assert.Equal(t, "models:user:", repo.Keys().Prefix())

	cfg := DefaultConfig()
	cfg.Codec = "gob"
	_, err = NewFromConfig[User](db, cfg, nil)
	assert.Error(t, err)
}

func TestRunGC_StopsWithContext(t *testing.T) {
	db := openDB(t, DefaultConfig())
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		RunGC(ctx, db, 10*time.Millisecond, nil)
		close(done)
	}()

	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("RunGC did not stop after cancel")
	}
}
