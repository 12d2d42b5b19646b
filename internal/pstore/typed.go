package pstore

import (
	"context"
	"encoding/json"
	"fmt"
)

// TypedStore is a key-prefixed, type-safe view over a KV backend. It
// implements the persisted-object store's three contracts without a proxy:
//
//   - read-through / write-through: Load always decodes fresh bytes from
//     the backend; Save always commits synchronously.
//   - "auto-save on nested mutation" becomes explicit: callers mutate the
//     value Patch hands them and return it; Patch re-encodes and writes.
//   - "nested references": a typed store never embeds another store's
//     record — related records are linked by their string key (e.g. a
//     Session references its AgentID), so there is nothing to rehydrate.
//
// Because Load/Save always round-trip through json.Marshal/Unmarshal, the
// anti-serialization guarantee (config.get() et al. producing only
// JSON-plain values) holds structurally: there is no live handle to leak.
type TypedStore[T any] struct {
	kv     KV
	prefix string
}

// NewTypedStore creates a store whose keys are prefix+id.
func NewTypedStore[T any](kv KV, prefix string) *TypedStore[T] {
	return &TypedStore[T]{kv: kv, prefix: prefix}
}

func (s *TypedStore[T]) key(id string) string {
	return s.prefix + id
}

// Load fetches and decodes the record for id.
func (s *TypedStore[T]) Load(ctx context.Context, id string) (T, bool, error) {
	var zero T
	raw, ok, err := s.kv.Get(ctx, s.key(id))
	if err != nil {
		return zero, false, err
	}
	if !ok {
		return zero, false, nil
	}
	var value T
	if err := json.Unmarshal(raw, &value); err != nil {
		return zero, false, fmt.Errorf("decode %s%s: %w", s.prefix, id, err)
	}
	return value, true, nil
}

// Save encodes and commits value under id, creating or overwriting it.
func (s *TypedStore[T]) Save(ctx context.Context, id string, value T) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s%s: %w", s.prefix, id, err)
	}
	return s.kv.Put(ctx, s.key(id), raw)
}

// Create saves value under id, failing if a record already exists there.
func (s *TypedStore[T]) Create(ctx context.Context, id string, value T) error {
	_, ok, err := s.kv.Get(ctx, s.key(id))
	if err != nil {
		return err
	}
	if ok {
		return ErrAlreadyExists
	}
	return s.Save(ctx, id, value)
}

// Patch loads the record for id (or the zero value if absent when
// createIfMissing is true), applies mutate, and saves the result. mutate
// returning an error aborts the write.
func (s *TypedStore[T]) Patch(ctx context.Context, id string, createIfMissing bool, mutate func(*T) error) (T, error) {
	var zero T
	value, ok, err := s.Load(ctx, id)
	if err != nil {
		return zero, err
	}
	if !ok {
		if !createIfMissing {
			return zero, ErrNotFound
		}
		value = zero
	}
	if err := mutate(&value); err != nil {
		return zero, err
	}
	if err := s.Save(ctx, id, value); err != nil {
		return zero, err
	}
	return value, nil
}

// Delete removes the record for id. Deleting a missing key is not an error,
// matching the "setting a property to undefined deletes it" rule.
func (s *TypedStore[T]) Delete(ctx context.Context, id string) error {
	return s.kv.Delete(ctx, s.key(id))
}

// List returns every record under this store's prefix, keyed by id (prefix
// stripped).
func (s *TypedStore[T]) List(ctx context.Context) (map[string]T, error) {
	raw, err := s.kv.List(ctx, s.prefix)
	if err != nil {
		return nil, err
	}
	out := make(map[string]T, len(raw))
	for key, bytes := range raw {
		var value T
		if err := json.Unmarshal(bytes, &value); err != nil {
			return nil, fmt.Errorf("decode %s: %w", key, err)
		}
		out[key[len(s.prefix):]] = value
	}
	return out, nil
}
