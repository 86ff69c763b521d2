// Package repository defines the data-access contract shared by every backend
// adapter and by the cached repository decorator.
//
// # Overview
//
// A Model is any entity exposing a stable string identifier. A Repository[T]
// stores models of type T and exposes create, find, query and delete
// operations in singular and batch form:
//
//	err := repo.Create(ctx, user)
//	found, ok, err := repo.Find(ctx, user.GetID())
//	users, err := repo.FindMany(ctx, []string{"a", "b"}, repository.NoLimit)
//
// # Absence
//
// A missing entry is never an error. Single lookups return (zero, false, nil)
// and batch lookups silently omit ids that have no stored model.
//
// # Queries
//
// Query is a closed set of variants. Backends resolve the variants they
// understand with a type switch and reject the rest with ErrUnsupportedQuery:
//
//	repository.ByID("user-1")
//	repository.Where(func(u User) bool { return u.Active })
//	repository.Native(bson.M{"email": "a@b.c"})
//
// # Limits
//
// Batch operations take a trailing signed limit. A negative limit (NoLimit)
// means unbounded, zero yields no entries.
package repository
