package repositorycache

import (
	"context"
	"fmt"
	"sync"

	"github.com/goliatone/go-model-repository/repository"
)

// TestUser represents a test entity
type TestUser struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func (u TestUser) GetID() string { return u.ID }

// mockRepository is an insertion ordered in-memory repository that records
// every method call and can be told to fail specific methods.
type mockRepository[T repository.Model] struct {
	mu     sync.Mutex
	calls  []string
	order  []string
	items  map[string]T
	errors map[string]error
}

func newMockRepository[T repository.Model](models ...T) *mockRepository[T] {
	m := &mockRepository[T]{
		items:  make(map[string]T),
		errors: make(map[string]error),
	}
	for _, model := range models {
		m.put(model)
	}
	return m
}

func (m *mockRepository[T]) put(model T) {
	id := model.GetID()
	if _, exists := m.items[id]; !exists {
		m.order = append(m.order, id)
	}
	m.items[id] = model
}

func (m *mockRepository[T]) remove(id string) {
	if _, exists := m.items[id]; !exists {
		return
	}
	delete(m.items, id)
	for i, existing := range m.order {
		if existing == id {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
}

// failOn makes method return err until cleared with a nil error.
func (m *mockRepository[T]) failOn(method string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		delete(m.errors, method)
		return
	}
	m.errors[method] = err
}

// enter records the call and returns the configured error, if any.
// The caller must hold m.mu.
func (m *mockRepository[T]) enter(method string) error {
	m.calls = append(m.calls, method)
	return m.errors[method]
}

func (m *mockRepository[T]) getCalls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

func (m *mockRepository[T]) clearCalls() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = nil
}

func (m *mockRepository[T]) has(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.items[id]
	return ok
}

func (m *mockRepository[T]) size() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.items)
}

func (m *mockRepository[T]) matcher(query repository.Query) (func(T) bool, error) {
	switch q := query.(type) {
	case repository.IDQuery:
		return func(model T) bool { return model.GetID() == string(q) }, nil
	case repository.PredicateQuery[T]:
		return q, nil
	default:
		return nil, repository.UnsupportedQuery("mock", query)
	}
}

func (m *mockRepository[T]) matches(query repository.Query, limit int) ([]T, error) {
	match, err := m.matcher(query)
	if err != nil {
		return nil, err
	}
	var out []T
	for _, id := range m.order {
		if repository.Reached(len(out), limit) {
			break
		}
		if model := m.items[id]; match(model) {
			out = append(out, model)
		}
	}
	return out, nil
}

func (m *mockRepository[T]) Create(ctx context.Context, model T) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter(fmt.Sprintf("Create:%s", model.GetID())); err != nil {
		return err
	}
	if err := m.errors["Create"]; err != nil {
		return err
	}
	m.put(model)
	return nil
}

func (m *mockRepository[T]) Exists(ctx context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("Exists"); err != nil {
		return false, err
	}
	_, ok := m.items[id]
	return ok, nil
}

func (m *mockRepository[T]) Find(ctx context.Context, id string) (T, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var zero T
	if err := m.enter("Find"); err != nil {
		return zero, false, err
	}
	model, ok := m.items[id]
	return model, ok, nil
}

func (m *mockRepository[T]) FindByQuery(ctx context.Context, query repository.Query) (T, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var zero T
	if err := m.enter("FindByQuery"); err != nil {
		return zero, false, err
	}
	found, err := m.matches(query, 1)
	if err != nil || len(found) == 0 {
		return zero, false, err
	}
	return found[0], true, nil
}

func (m *mockRepository[T]) FindMany(ctx context.Context, ids []string, limit int) ([]T, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("FindMany"); err != nil {
		return nil, err
	}
	wanted := make(map[string]bool, len(ids))
	for _, id := range ids {
		wanted[id] = true
	}
	var out []T
	for _, id := range m.order {
		if repository.Reached(len(out), limit) {
			break
		}
		if wanted[id] {
			out = append(out, m.items[id])
		}
	}
	return out, nil
}

func (m *mockRepository[T]) FindManyByQuery(ctx context.Context, query repository.Query, limit int) ([]T, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("FindManyByQuery"); err != nil {
		return nil, err
	}
	return m.matches(query, limit)
}

func (m *mockRepository[T]) FindAll(ctx context.Context) ([]T, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("FindAll"); err != nil {
		return nil, err
	}
	out := make([]T, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, m.items[id])
	}
	return out, nil
}

func (m *mockRepository[T]) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("Delete"); err != nil {
		return err
	}
	m.remove(id)
	return nil
}

func (m *mockRepository[T]) DeleteByQuery(ctx context.Context, query repository.Query) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("DeleteByQuery"); err != nil {
		return err
	}
	found, err := m.matches(query, 1)
	if err != nil {
		return err
	}
	for _, model := range found {
		m.remove(model.GetID())
	}
	return nil
}

func (m *mockRepository[T]) DeleteMany(ctx context.Context, ids []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter(fmt.Sprintf("DeleteMany:%d", len(ids))); err != nil {
		return err
	}
	for _, id := range ids {
		m.remove(id)
	}
	return nil
}

func (m *mockRepository[T]) DeleteManyByQuery(ctx context.Context, query repository.Query, limit int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("DeleteManyByQuery"); err != nil {
		return err
	}
	found, err := m.matches(query, limit)
	if err != nil {
		return err
	}
	for _, model := range found {
		m.remove(model.GetID())
	}
	return nil
}
