// Package datadict holds the name-keyed dictionaries that carry auxiliary
// data alongside streamlines: a dictionary whose positional access slices
// every value at once, a dictionary of per-element arrays validated against
// an element count, and a dictionary of restartable producers.
package datadict

import (
	"errors"
	"fmt"
	"iter"
	"maps"
	"slices"

	"tractspace/pkg/arrayseq"
)

// Common errors
var (
	ErrKeyNotFound       = errors.New("key not found")
	ErrKeyMismatch       = errors.New("dictionaries hold different keys")
	ErrNotTwoDimensional = errors.New("data per element must be a 2D array")
	ErrElementCount      = errors.New("number of values does not match the element count")
	ErrNotProducer       = errors.New("value must be a producer function or nil")
)

// Selectable is implemented by values that can be re-indexed by position.
type Selectable[V any] interface {
	Select(ix arrayseq.Index) (V, error)
}

// Accessor addresses a dictionary either by key or by position. It is built
// with Key or Position.
type Accessor struct {
	key     string
	index   arrayseq.Index
	byIndex bool
}

// Key addresses the value stored under name.
func Key(name string) Accessor {
	return Accessor{key: name}
}

// Position addresses every stored value at once with ix.
func Position(ix arrayseq.Index) Accessor {
	return Accessor{index: ix, byIndex: true}
}

// SliceableDict maps names to values. Besides plain key access, a positional
// access re-indexes every stored value with the same index and returns a new
// dictionary, which is how "the data of streamlines 3 to 10" is expressed
// across all keys at once.
type SliceableDict[V Selectable[V]] struct {
	store map[string]V
}

// NewSliceable returns a dictionary holding the given values.
func NewSliceable[V Selectable[V]](values map[string]V) *SliceableDict[V] {
	d := &SliceableDict[V]{store: make(map[string]V, len(values))}
	maps.Copy(d.store, values)
	return d
}

// Get returns the value stored under key.
func (d *SliceableDict[V]) Get(key string) (V, bool) {
	v, ok := d.store[key]
	return v, ok
}

// Set stores v under key, replacing any previous value.
func (d *SliceableDict[V]) Set(key string, v V) {
	d.store[key] = v
}

// Delete removes key.
func (d *SliceableDict[V]) Delete(key string) {
	delete(d.store, key)
}

// Len returns the number of keys.
func (d *SliceableDict[V]) Len() int { return len(d.store) }

// Keys returns the keys in sorted order.
func (d *SliceableDict[V]) Keys() []string {
	return slices.Sorted(maps.Keys(d.store))
}

// All yields every key and value, sorted by key.
func (d *SliceableDict[V]) All() iter.Seq2[string, V] {
	return func(yield func(string, V) bool) {
		for _, k := range d.Keys() {
			if !yield(k, d.store[k]) {
				return
			}
		}
	}
}

// Select applies ix to every value and returns the results as a new
// dictionary. It fails if any value rejects the index.
func (d *SliceableDict[V]) Select(ix arrayseq.Index) (*SliceableDict[V], error) {
	out := &SliceableDict[V]{store: make(map[string]V, len(d.store))}
	for k, v := range d.store {
		sub, err := v.Select(ix)
		if err != nil {
			return nil, fmt.Errorf("selecting %s of %q: %w", ix, k, err)
		}
		out.store[k] = sub
	}
	return out, nil
}

// Lookup resolves acc. A key accessor returns the stored value. A position
// accessor first tries to re-index every value and returns the resulting
// dictionary; if that fails, it falls back to a key lookup using the index's
// string form (so a key named "5" can still be reached through At(5)).
//
// A key that also reads as a valid index is shadowed by the positional
// result. That ambiguity is left as is.
func (d *SliceableDict[V]) Lookup(acc Accessor) (V, *SliceableDict[V], error) {
	var zero V
	if !acc.byIndex {
		v, ok := d.store[acc.key]
		if !ok {
			return zero, nil, fmt.Errorf("%w: %q", ErrKeyNotFound, acc.key)
		}
		return v, nil, nil
	}

	sub, err := d.Select(acc.index)
	if err == nil {
		return zero, sub, nil
	}
	if v, ok := d.store[acc.index.String()]; ok {
		return v, nil, nil
	}
	return zero, nil, err
}

// Clone returns a dictionary with its own key set. Values are shared.
func (d *SliceableDict[V]) Clone() *SliceableDict[V] {
	return NewSliceable(d.store)
}
