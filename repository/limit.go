package repository

// NoLimit disables truncation in batch operations.
const NoLimit = -1

// Unbounded reports whether limit disables truncation.
func Unbounded(limit int) bool {
	return limit < 0
}

// Reached reports whether a batch holding count entries is full.
func Reached(count, limit int) bool {
	return !Unbounded(limit) && count >= limit
}

// Truncate cuts models down to limit entries.
func Truncate[T any](models []T, limit int) []T {
	if Unbounded(limit) || len(models) <= limit {
		return models
	}
	return models[:limit]
}

// Filter returns the models accepted by match, in order, stopping once limit
// entries are collected.
func Filter[T any](models []T, match func(T) bool, limit int) []T {
	var out []T
	for _, m := range models {
		if Reached(len(out), limit) {
			break
		}
		if match(m) {
			out = append(out, m)
		}
	}
	return out
}

// UniqueIDs drops duplicate and empty ids, keeping the first occurrence.
func UniqueIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
