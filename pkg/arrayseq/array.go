// Package arrayseq provides the storage used for streamlines and their
// per-point data: a dense row-major Array and an ArraySequence that packs a
// variable number of variable-length arrays into one contiguous buffer.
package arrayseq

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Common errors
var (
	ErrShape      = errors.New("array shape mismatch")
	ErrOutOfRange = errors.New("index out of range")
)

// Array is a dense two-dimensional array of float64 stored in row-major order.
// A streamline is an Array with three columns, one row per point.
type Array struct {
	Rows int
	Cols int
	Data []float64
}

// NewArray wraps data as a rows x cols array. A nil data allocates zeros.
func NewArray(rows, cols int, data []float64) (Array, error) {
	if rows < 0 || cols < 0 {
		return Array{}, fmt.Errorf("%w: negative dimensions %dx%d", ErrShape, rows, cols)
	}
	if rows > 0 && cols == 0 {
		return Array{}, fmt.Errorf("%w: %d rows with no columns", ErrShape, rows)
	}
	if data == nil {
		data = make([]float64, rows*cols)
	}
	if len(data) != rows*cols {
		return Array{}, fmt.Errorf("%w: %d values for a %dx%d array", ErrShape, len(data), rows, cols)
	}
	return Array{Rows: rows, Cols: cols, Data: data}, nil
}

// FromRows builds an array by copying equally sized rows.
func FromRows(rows [][]float64) (Array, error) {
	if len(rows) == 0 {
		return Array{}, nil
	}
	cols := len(rows[0])
	data := make([]float64, 0, len(rows)*cols)
	for i, r := range rows {
		if len(r) != cols {
			return Array{}, fmt.Errorf("%w: row %d has %d values, expected %d", ErrShape, i, len(r), cols)
		}
		data = append(data, r...)
	}
	return Array{Rows: len(rows), Cols: cols, Data: data}, nil
}

// Column builds an n x 1 array from a one-dimensional slice.
func Column(values []float64) Array {
	return Array{Rows: len(values), Cols: 1, Data: append([]float64(nil), values...)}
}

// Points builds an n x 3 array from point triples.
func Points(pts ...[3]float64) Array {
	data := make([]float64, 0, 3*len(pts))
	for _, p := range pts {
		data = append(data, p[0], p[1], p[2])
	}
	return Array{Rows: len(pts), Cols: 3, Data: data}
}

// Len returns the number of rows.
func (a Array) Len() int { return a.Rows }

// Row returns a view of row i. It panics if i is out of range.
func (a Array) Row(i int) []float64 {
	if i < 0 || i >= a.Rows {
		panic(fmt.Sprintf("arrayseq: row %d out of range [0,%d)", i, a.Rows))
	}
	lo, hi := i*a.Cols, (i+1)*a.Cols
	return a.Data[lo:hi:hi]
}

// At returns the element at row i, column j.
func (a Array) At(i, j int) float64 {
	return a.Row(i)[j]
}

// Copy returns an array that shares no memory with a.
func (a Array) Copy() Array {
	return Array{Rows: a.Rows, Cols: a.Cols, Data: append([]float64(nil), a.Data...)}
}

// Dense returns a gonum view over the array's data, or nil for an empty array.
func (a Array) Dense() *mat.Dense {
	if a.Rows == 0 || a.Cols == 0 {
		return nil
	}
	return mat.NewDense(a.Rows, a.Cols, a.Data)
}

// Select returns the selected rows. A single position or a unit-step range is
// returned as a view sharing memory with a; other selections are copied.
func (a Array) Select(ix Index) (Array, error) {
	if start, stop, ok := ix.contiguous(a.Rows); ok {
		lo, hi := start*a.Cols, stop*a.Cols
		return Array{Rows: stop - start, Cols: a.Cols, Data: a.Data[lo:hi:hi]}, nil
	}
	rows, err := ix.Resolve(a.Rows)
	if err != nil {
		return Array{}, err
	}
	out := Array{Rows: len(rows), Cols: a.Cols, Data: make([]float64, 0, len(rows)*a.Cols)}
	for _, r := range rows {
		out.Data = append(out.Data, a.Row(r)...)
	}
	return out, nil
}

// Extend returns a with the rows of b appended. It may write into spare
// capacity of a's buffer, so the caller must own that buffer.
func (a Array) Extend(b Array) (Array, error) {
	if a.Rows == 0 && b.Rows > 0 {
		a.Cols = b.Cols
	}
	if b.Rows > 0 && b.Cols != a.Cols {
		return a, fmt.Errorf("%w: cannot append %d columns to %d", ErrShape, b.Cols, a.Cols)
	}
	a.Data = append(a.Data, b.Data...)
	a.Rows += b.Rows
	return a, nil
}

// AppendRows returns a new array holding the rows of a followed by the rows of
// b. The result owns its buffer.
func AppendRows(a, b Array) (Array, error) {
	return a.Copy().Extend(b)
}
