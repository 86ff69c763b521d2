package testsupport

import (
	"context"
	"testing"

	"github.com/goliatone/go-model-repository/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Factory returns an empty repository for one subtest. Cleanup belongs on t.
type Factory func(t *testing.T) repository.Repository[User]

// Capabilities describes which query variants a backend interprets.
type Capabilities struct {
	// Predicate is set when the backend evaluates PredicateQuery[User].
	Predicate bool
	// ByName builds a query matching users by name. When nil and Predicate
	// is set, a PredicateQuery is used. Leave both unset for backends that
	// only resolve IDQuery.
	ByName func(name string) repository.Query
}

func (c Capabilities) byName() func(string) repository.Query {
	if c.ByName != nil {
		return c.ByName
	}
	if c.Predicate {
		return func(name string) repository.Query {
			return repository.Where(func(u User) bool { return u.Name == name })
		}
	}
	return nil
}

type unsupportedNative struct{}

// RunRepositoryContract checks the behaviour every repository.Repository
// implementation shares.
func RunRepositoryContract(t *testing.T, factory Factory, caps Capabilities) {
	t.Helper()

	t.Run("create then find", func(t *testing.T) {
		ctx := context.Background()
		repo := factory(t)
		user := NewUser("alice")

		require.NoError(t, repo.Create(ctx, user))

		got, found, err := repo.Find(ctx, user.ID)
		require.NoError(t, err)
		require.True(t, found)
		assert.Equal(t, user, got)

		exists, err := repo.Exists(ctx, user.ID)
		require.NoError(t, err)
		assert.True(t, exists)
	})

	t.Run("unknown id is absent", func(t *testing.T) {
		ctx := context.Background()
		repo := factory(t)

		_, found, err := repo.Find(ctx, "missing")
		require.NoError(t, err)
		assert.False(t, found)

		exists, err := repo.Exists(ctx, "missing")
		require.NoError(t, err)
		assert.False(t, exists)
	})

	t.Run("create overwrites", func(t *testing.T) {
		ctx := context.Background()
		repo := factory(t)
		user := NewUser("alice")

		require.NoError(t, repo.Create(ctx, user))
		user.Name = "alice-renamed"
		require.NoError(t, repo.Create(ctx, user))

		got, found, err := repo.Find(ctx, user.ID)
		require.NoError(t, err)
		require.True(t, found)
		assert.Equal(t, "alice-renamed", got.Name)

		all, err := repo.FindAll(ctx)
		require.NoError(t, err)
		assert.Len(t, all, 1)
	})

	t.Run("find by id query", func(t *testing.T) {
		ctx := context.Background()
		repo := factory(t)
		user := NewUser("alice")
		require.NoError(t, repo.Create(ctx, user))

		got, found, err := repo.FindByQuery(ctx, repository.ByID(user.ID))
		require.NoError(t, err)
		require.True(t, found)
		assert.Equal(t, user, got)

		_, found, err = repo.FindByQuery(ctx, repository.ByID("missing"))
		require.NoError(t, err)
		assert.False(t, found)
	})

	t.Run("find many honours limit", func(t *testing.T) {
		ctx := context.Background()
		repo := factory(t)
		users := Users(5, "batch")
		for _, u := range users {
			require.NoError(t, repo.Create(ctx, u))
		}
		ids := append(repository.IDs(users), "missing")

		two, err := repo.FindMany(ctx, ids, 2)
		require.NoError(t, err)
		assert.Len(t, two, 2)

		all, err := repo.FindMany(ctx, ids, repository.NoLimit)
		require.NoError(t, err)
		assert.ElementsMatch(t, users, all)

		none, err := repo.FindMany(ctx, ids, 0)
		require.NoError(t, err)
		assert.Empty(t, none)

		empty, err := repo.FindMany(ctx, nil, repository.NoLimit)
		require.NoError(t, err)
		assert.Empty(t, empty)
	})

	t.Run("find all", func(t *testing.T) {
		ctx := context.Background()
		repo := factory(t)

		all, err := repo.FindAll(ctx)
		require.NoError(t, err)
		assert.Empty(t, all)

		users := Users(3, "all")
		for _, u := range users {
			require.NoError(t, repo.Create(ctx, u))
		}

		all, err = repo.FindAll(ctx)
		require.NoError(t, err)
		assert.ElementsMatch(t, users, all)
	})

	t.Run("delete", func(t *testing.T) {
		ctx := context.Background()
		repo := factory(t)
		user := NewUser("alice")
		require.NoError(t, repo.Create(ctx, user))

		require.NoError(t, repo.Delete(ctx, user.ID))
		_, found, err := repo.Find(ctx, user.ID)
		require.NoError(t, err)
		assert.False(t, found)

		// deleting an absent id is not an error
		require.NoError(t, repo.Delete(ctx, user.ID))
	})

	t.Run("delete many", func(t *testing.T) {
		ctx := context.Background()
		repo := factory(t)
		users := Users(4, "batch")
		for _, u := range users {
			require.NoError(t, repo.Create(ctx, u))
		}

		require.NoError(t, repo.DeleteMany(ctx, []string{users[0].ID, users[1].ID, "missing"}))

		all, err := repo.FindAll(ctx)
		require.NoError(t, err)
		assert.ElementsMatch(t, users[2:], all)
	})

	t.Run("delete by id query", func(t *testing.T) {
		ctx := context.Background()
		repo := factory(t)
		user := NewUser("alice")
		require.NoError(t, repo.Create(ctx, user))

		require.NoError(t, repo.DeleteByQuery(ctx, repository.ByID(user.ID)))
		exists, err := repo.Exists(ctx, user.ID)
		require.NoError(t, err)
		assert.False(t, exists)
	})

	t.Run("unsupported native query", func(t *testing.T) {
		ctx := context.Background()
		repo := factory(t)
		user := NewUser("alice")
		require.NoError(t, repo.Create(ctx, user))
		q := repository.Native(unsupportedNative{})

		_, _, err := repo.FindByQuery(ctx, q)
		assert.ErrorIs(t, err, repository.ErrUnsupportedQuery)

		_, err = repo.FindManyByQuery(ctx, q, repository.NoLimit)
		assert.ErrorIs(t, err, repository.ErrUnsupportedQuery)

		assert.ErrorIs(t, repo.DeleteByQuery(ctx, q), repository.ErrUnsupportedQuery)
		assert.ErrorIs(t, repo.DeleteManyByQuery(ctx, q, repository.NoLimit), repository.ErrUnsupportedQuery)

		exists, err := repo.Exists(ctx, user.ID)
		require.NoError(t, err)
		assert.True(t, exists, "store changed after unsupported query")
	})

	if !caps.Predicate {
		t.Run("unsupported predicate query", func(t *testing.T) {
			ctx := context.Background()
			repo := factory(t)
			q := repository.Where(func(User) bool { return true })

			_, _, err := repo.FindByQuery(ctx, q)
			assert.ErrorIs(t, err, repository.ErrUnsupportedQuery)
			assert.ErrorIs(t, repo.DeleteManyByQuery(ctx, q, 1), repository.ErrUnsupportedQuery)
		})
	}

	byName := caps.byName()
	if byName == nil {
		return
	}

	t.Run("query lookups", func(t *testing.T) {
		ctx := context.Background()
		repo := factory(t)
		matches := Users(5, "match")
		other := NewUser("other")
		for _, u := range append(matches, other) {
			require.NoError(t, repo.Create(ctx, u))
		}

		got, found, err := repo.FindByQuery(ctx, byName("other"))
		require.NoError(t, err)
		require.True(t, found)
		assert.Equal(t, other, got)

		_, found, err = repo.FindByQuery(ctx, byName("nobody"))
		require.NoError(t, err)
		assert.False(t, found)

		two, err := repo.FindManyByQuery(ctx, byName("match"), 2)
		require.NoError(t, err)
		assert.Len(t, two, 2)

		all, err := repo.FindManyByQuery(ctx, byName("match"), repository.NoLimit)
		require.NoError(t, err)
		assert.ElementsMatch(t, matches, all)
	})

	t.Run("delete by query removes one match", func(t *testing.T) {
		ctx := context.Background()
		repo := factory(t)
		for _, u := range Users(3, "match") {
			require.NoError(t, repo.Create(ctx, u))
		}

		require.NoError(t, repo.DeleteByQuery(ctx, byName("match")))

		left, err := repo.FindManyByQuery(ctx, byName("match"), repository.NoLimit)
		require.NoError(t, err)
		assert.Len(t, left, 2)
	})

	t.Run("delete many by query honours limit", func(t *testing.T) {
		ctx := context.Background()
		repo := factory(t)
		for _, u := range Users(5, "match") {
			require.NoError(t, repo.Create(ctx, u))
		}
		keep := NewUser("keep")
		require.NoError(t, repo.Create(ctx, keep))

		require.NoError(t, repo.DeleteManyByQuery(ctx, byName("match"), 2))

		left, err := repo.FindManyByQuery(ctx, byName("match"), repository.NoLimit)
		require.NoError(t, err)
		assert.Len(t, left, 3)

		require.NoError(t, repo.DeleteManyByQuery(ctx, byName("match"), repository.NoLimit))

		all, err := repo.FindAll(ctx)
		require.NoError(t, err)
		assert.Equal(t, []User{keep}, all)
	})
}
