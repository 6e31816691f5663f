package datadict

import (
	"fmt"
	"iter"
	"maps"
	"slices"
)

// Producer returns a fresh iterator over the same logical sequence each time
// it is called. Lazy containers call it once per pass, so it must be
// restartable.
type Producer[T any] func() iter.Seq[T]

// Empty is a producer of nothing.
func Empty[T any]() iter.Seq[T] {
	return func(func(T) bool) {}
}

// FromSlice returns a producer that replays values.
func FromSlice[T any](values []T) Producer[T] {
	return func() iter.Seq[T] {
		return slices.Values(values)
	}
}

// LazyDict maps names to producers. Reading a key calls its producer, so
// every read starts a new pass.
type LazyDict[T any] struct {
	store map[string]Producer[T]
}

// NewLazy returns a dictionary holding the given producers.
func NewLazy[T any](producers map[string]Producer[T]) *LazyDict[T] {
	d := &LazyDict[T]{store: make(map[string]Producer[T], len(producers))}
	maps.Copy(d.store, producers)
	return d
}

// Set stores p under key. A nil producer reads as an empty sequence.
func (d *LazyDict[T]) Set(key string, p Producer[T]) {
	d.store[key] = p
}

// SetAny stores v under key when it is a producer, a plain function with a
// producer's signature, or nil. Anything else is rejected with ErrNotProducer.
func (d *LazyDict[T]) SetAny(key string, v any) error {
	switch p := v.(type) {
	case nil:
		d.store[key] = nil
	case Producer[T]:
		d.store[key] = p
	case func() iter.Seq[T]:
		d.store[key] = p
	default:
		return fmt.Errorf("%w: %q got %T", ErrNotProducer, key, v)
	}
	return nil
}

// Get starts a new pass over the sequence stored under key.
func (d *LazyDict[T]) Get(key string) (iter.Seq[T], error) {
	p, ok := d.store[key]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrKeyNotFound, key)
	}
	if p == nil {
		return Empty[T](), nil
	}
	return p(), nil
}

// Producer returns the producer stored under key.
func (d *LazyDict[T]) Producer(key string) (Producer[T], bool) {
	p, ok := d.store[key]
	return p, ok
}

// Delete removes key.
func (d *LazyDict[T]) Delete(key string) {
	delete(d.store, key)
}

// Len returns the number of keys.
func (d *LazyDict[T]) Len() int { return len(d.store) }

// Keys returns the keys in sorted order.
func (d *LazyDict[T]) Keys() []string {
	return slices.Sorted(maps.Keys(d.store))
}

// Clone returns a dictionary with its own key set sharing the producers.
func (d *LazyDict[T]) Clone() *LazyDict[T] {
	return NewLazy(d.store)
}
