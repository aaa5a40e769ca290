// Package storage is the durable side channel of a storefront session: last results,
// active package and previous form values. It is read when a session mounts and
// written after successful fetches; it is never the source of truth for live state.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
)

const (
	KeyPreviousValues = "valoresPrevios"
	KeySearchResults  = "resultadosBusqueda"
	KeyActivePackage  = "paqueteAct"
)

var ErrNotFound = errors.New("storage: key not found")

type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}

// Namespace prefixes every key so each session gets its own key space.
func Namespace(s Store, parts ...string) Store {
	return &namespaced{store: s, prefix: strings.Join(parts, ":") + ":"}
}

type namespaced struct {
	store  Store
	prefix string
}

func (n *namespaced) Get(ctx context.Context, key string) ([]byte, error) {
	return n.store.Get(ctx, n.prefix+key)
}

func (n *namespaced) Set(ctx context.Context, key string, value []byte) error {
	return n.store.Set(ctx, n.prefix+key, value)
}

func (n *namespaced) Delete(ctx context.Context, key string) error {
	return n.store.Delete(ctx, n.prefix+key)
}

// Slot is a typed view of one key, overwritten wholesale on every Persist.
type Slot[T any] struct {
	store Store
	key   string
}

func NewSlot[T any](store Store, key string) *Slot[T] {
	return &Slot[T]{store: store, key: key}
}

// LoadPrevious reports false when nothing was stored or the value no longer decodes.
func (s *Slot[T]) LoadPrevious(ctx context.Context) (T, bool, error) {
	var v T
	data, err := s.store.Get(ctx, s.key)
	if errors.Is(err, ErrNotFound) {
		return v, false, nil
	}
	if err != nil {
		return v, false, err
	}
	if err := json.Unmarshal(data, &v); err != nil {
		var zero T
		return zero, false, nil
	}
	return v, true, nil
}

func (s *Slot[T]) Persist(ctx context.Context, v T) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return s.store.Set(ctx, s.key, data)
}

func (s *Slot[T]) Clear(ctx context.Context) error {
	return s.store.Delete(ctx, s.key)
}

type MemoryStore struct {
	mu   sync.RWMutex
	data map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string][]byte)}
}

func (m *MemoryStore) Get(ctx context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	v, ok := m.data[key]
	if !ok {
		return nil, ErrNotFound
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, nil
}

func (m *MemoryStore) Set(ctx context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	v := make([]byte, len(value))
	copy(v, value)
	m.data[key] = v
	return nil
}

func (m *MemoryStore) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.data, key)
	return nil
}
