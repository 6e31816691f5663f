package datadict

import (
	"fmt"
	"iter"
	"maps"
	"slices"

	"tractspace/pkg/arrayseq"
)

// PerArrayDict maps names to 2D arrays holding one row per element (one
// element per streamline). The element count is fixed at construction and
// every insertion is checked against it.
type PerArrayDict struct {
	n     int
	store map[string]arrayseq.Array
}

// NewPerArray returns an empty dictionary for n elements.
func NewPerArray(n int) *PerArrayDict {
	return &PerArrayDict{n: n, store: make(map[string]arrayseq.Array)}
}

// NumElements returns the element count every value must match.
func (d *PerArrayDict) NumElements() int { return d.n }

// Set stores a under key after checking it has one row per element. The
// dictionary keeps its own copy.
func (d *PerArrayDict) Set(key string, a arrayseq.Array) error {
	if a.Rows > 0 && a.Cols == 0 {
		return fmt.Errorf("%w: %q has no columns", ErrNotTwoDimensional, key)
	}
	if a.Rows != d.n {
		return fmt.Errorf("%w: %q has %d values, expected %d", ErrElementCount, key, a.Rows, d.n)
	}
	d.store[key] = a.Copy()
	return nil
}

// SetColumn stores a one-dimensional slice as an n x 1 array.
func (d *PerArrayDict) SetColumn(key string, values []float64) error {
	return d.Set(key, arrayseq.Column(values))
}

// SetRows stores one row of values per element. Rows of unequal length are
// rejected since they cannot form a 2D array.
func (d *PerArrayDict) SetRows(key string, rows [][]float64) error {
	if len(rows) != d.n {
		return fmt.Errorf("%w: %q has %d values, expected %d", ErrElementCount, key, len(rows), d.n)
	}
	a, err := arrayseq.FromRows(rows)
	if err != nil {
		return fmt.Errorf("%w: %q: %v", ErrNotTwoDimensional, key, err)
	}
	if a.Rows == 0 {
		a.Cols = 1
	}
	return d.Set(key, a)
}

// Get returns the array stored under key.
func (d *PerArrayDict) Get(key string) (arrayseq.Array, bool) {
	a, ok := d.store[key]
	if !ok {
		return arrayseq.Array{}, false
	}
	n := len(a.Data)
	a.Data = a.Data[:n:n]
	return a, true
}

// Row returns element i of every key as a map of row slices.
func (d *PerArrayDict) Row(i int) (map[string][]float64, error) {
	out := make(map[string][]float64, len(d.store))
	for k, a := range d.store {
		if i < 0 || i >= a.Rows {
			return nil, fmt.Errorf("%w: element %d of %q", arrayseq.ErrOutOfRange, i, k)
		}
		out[k] = a.Row(i)
	}
	return out, nil
}

// Delete removes key.
func (d *PerArrayDict) Delete(key string) {
	delete(d.store, key)
}

// Len returns the number of keys.
func (d *PerArrayDict) Len() int { return len(d.store) }

// Keys returns the keys in sorted order.
func (d *PerArrayDict) Keys() []string {
	return slices.Sorted(maps.Keys(d.store))
}

// All yields every key and array, sorted by key.
func (d *PerArrayDict) All() iter.Seq2[string, arrayseq.Array] {
	return func(yield func(string, arrayseq.Array) bool) {
		for _, k := range d.Keys() {
			a, _ := d.Get(k)
			if !yield(k, a) {
				return
			}
		}
	}
}

// Select re-indexes every array with ix. The result counts the selected
// elements.
func (d *PerArrayDict) Select(ix arrayseq.Index) (*PerArrayDict, error) {
	pos, err := ix.Resolve(d.n)
	if err != nil {
		return nil, err
	}
	out := NewPerArray(len(pos))
	for k, a := range d.store {
		sub, err := a.Select(ix)
		if err != nil {
			return nil, fmt.Errorf("selecting %s of %q: %w", ix, k, err)
		}
		out.store[k] = sub.Copy()
	}
	return out, nil
}

// Lookup resolves acc the same way SliceableDict.Lookup does.
func (d *PerArrayDict) Lookup(acc Accessor) (arrayseq.Array, *PerArrayDict, error) {
	if !acc.byIndex {
		a, ok := d.Get(acc.key)
		if !ok {
			return arrayseq.Array{}, nil, fmt.Errorf("%w: %q", ErrKeyNotFound, acc.key)
		}
		return a, nil, nil
	}
	sub, err := d.Select(acc.index)
	if err == nil {
		return arrayseq.Array{}, sub, nil
	}
	if a, ok := d.Get(acc.index.String()); ok {
		return a, nil, nil
	}
	return arrayseq.Array{}, nil, err
}

// Extend appends the rows of other under matching keys. Both dictionaries
// must hold the same keys with the same widths; nothing is modified on
// failure.
func (d *PerArrayDict) Extend(other *PerArrayDict) error {
	if !slices.Equal(d.Keys(), other.Keys()) {
		return fmt.Errorf("%w: %v and %v", ErrKeyMismatch, d.Keys(), other.Keys())
	}
	for k, a := range d.store {
		b := other.store[k]
		if b.Rows > 0 && a.Rows > 0 && a.Cols != b.Cols {
			return fmt.Errorf("%w: %q has %d columns, cannot append %d",
				ErrNotTwoDimensional, k, a.Cols, b.Cols)
		}
	}
	for k, a := range d.store {
		grown, err := a.Extend(other.store[k])
		if err != nil {
			return err
		}
		d.store[k] = grown
	}
	d.n += other.n
	return nil
}

// Clone returns a deep copy.
func (d *PerArrayDict) Clone() *PerArrayDict {
	out := NewPerArray(d.n)
	for k, a := range d.store {
		out.store[k] = a.Copy()
	}
	return out
}
