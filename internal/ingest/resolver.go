package ingest

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/JakeFAU/form4-crawler/internal/filing"
)

// Resolver maps a natural key to its surrogate id, inserting the entity the
// first time the key is seen. The lock is held across the cache check, the
// store lookup and the insert, so concurrent resolves of one key insert once.
type Resolver[T any] struct {
	name   string
	find   func(ctx context.Context, s filing.Session, key string) (int64, error)
	create func(ctx context.Context, s filing.Session, value T) (int64, error)

	mu    sync.Mutex
	cache map[string]int64
}

// NewResolver builds a Resolver for one entity kind.
func NewResolver[T any](
	name string,
	find func(ctx context.Context, s filing.Session, key string) (int64, error),
	create func(ctx context.Context, s filing.Session, value T) (int64, error),
) *Resolver[T] {
	return &Resolver[T]{name: name, find: find, create: create, cache: make(map[string]int64)}
}

// Resolve returns the id for key, creating value when the store has none.
func (r *Resolver[T]) Resolve(ctx context.Context, s filing.Session, key string, value T) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if id, ok := r.cache[key]; ok {
		return id, nil
	}
	id, err := r.find(ctx, s, key)
	switch {
	case err == nil:
	case errors.Is(err, filing.ErrNotFound):
		id, err = r.create(ctx, s, value)
		if err != nil {
			return 0, fmt.Errorf("create %s %s: %w", r.name, key, err)
		}
	default:
		return 0, fmt.Errorf("find %s %s: %w", r.name, key, err)
	}
	r.cache[key] = id
	return id, nil
}

// Len reports the number of cached keys.
func (r *Resolver[T]) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.cache)
}
