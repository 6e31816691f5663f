package arrayseq

import (
	"fmt"
	"iter"
)

// ArraySequence stores a sequence of arrays sharing the same number of
// columns in one contiguous row buffer. Each item is described by an offset
// and a length, both counted in rows.
//
// Items are laid out in order with no gaps, so the buffer holds exactly
// TotalPoints rows. This lets callers rewrite the buffer in fixed-size row
// chunks that ignore item boundaries (see RowRange and SetRange).
type ArraySequence struct {
	data    []float64
	cols    int
	offsets []int
	lengths []int
}

// New returns an empty sequence whose items have cols columns. A cols of zero
// lets the first appended array decide.
func New(cols int) *ArraySequence {
	return &ArraySequence{cols: cols}
}

// FromArrays packs copies of the given arrays into a new sequence.
func FromArrays(arrays ...Array) (*ArraySequence, error) {
	s := &ArraySequence{}
	total := 0
	for _, a := range arrays {
		total += len(a.Data)
	}
	s.data = make([]float64, 0, total)
	for i, a := range arrays {
		if err := s.Append(a); err != nil {
			return nil, fmt.Errorf("array %d: %w", i, err)
		}
	}
	return s, nil
}

// Append copies a onto the end of the buffer and records it as a new item.
func (s *ArraySequence) Append(a Array) error {
	if err := s.adopt(a.Rows, a.Cols); err != nil {
		return err
	}
	s.offsets = append(s.offsets, s.TotalPoints())
	s.lengths = append(s.lengths, a.Rows)
	s.data = append(s.data, a.Data[:a.Rows*a.Cols]...)
	return nil
}

// Extend appends copies of all items of other.
func (s *ArraySequence) Extend(other *ArraySequence) error {
	if other == nil || other.Len() == 0 {
		return nil
	}
	if err := s.adopt(other.TotalPoints(), other.cols); err != nil {
		return err
	}
	base := s.TotalPoints()
	for i := range other.lengths {
		s.offsets = append(s.offsets, base+other.offsets[i])
		s.lengths = append(s.lengths, other.lengths[i])
	}
	s.data = append(s.data, other.data...)
	return nil
}

// CheckExtend reports the error Extend would return for other without
// modifying s.
func (s *ArraySequence) CheckExtend(other *ArraySequence) error {
	if other == nil || other.Len() == 0 {
		return nil
	}
	return s.checkCols(other.TotalPoints(), other.cols)
}

// checkCols rejects rows without columns and, once the column count is
// fixed, rows of another width. Empty arrays pass whatever their width.
func (s *ArraySequence) checkCols(rows, cols int) error {
	if rows > 0 && cols == 0 {
		return fmt.Errorf("%w: %d rows with no columns", ErrShape, rows)
	}
	if s.cols != 0 && rows > 0 && cols != s.cols {
		return fmt.Errorf("%w: expected %d columns, got %d", ErrShape, s.cols, cols)
	}
	return nil
}

// adopt fixes the column count on first use and checks it afterwards.
func (s *ArraySequence) adopt(rows, cols int) error {
	if err := s.checkCols(rows, cols); err != nil {
		return err
	}
	if s.cols == 0 {
		s.cols = cols
	}
	return nil
}

// Len returns the number of items.
func (s *ArraySequence) Len() int { return len(s.lengths) }

// Cols returns the number of columns shared by every item.
func (s *ArraySequence) Cols() int { return s.cols }

// TotalPoints returns the sum of the item lengths.
func (s *ArraySequence) TotalPoints() int {
	if s.cols == 0 {
		return 0
	}
	return len(s.data) / s.cols
}

// Lengths returns a copy of the per-item lengths.
func (s *ArraySequence) Lengths() []int {
	return append([]int(nil), s.lengths...)
}

// Get returns item i as a view into the buffer. Negative i counts from the end.
func (s *ArraySequence) Get(i int) (Array, error) {
	p, err := normalize(i, s.Len())
	if err != nil {
		return Array{}, err
	}
	return s.item(p), nil
}

func (s *ArraySequence) item(p int) Array {
	lo := s.offsets[p] * s.cols
	hi := lo + s.lengths[p]*s.cols
	return Array{Rows: s.lengths[p], Cols: s.cols, Data: s.data[lo:hi:hi]}
}

// Select returns a new sequence holding the selected items. A single position
// or a unit-step range shares the buffer with s; other selections are packed
// into a new buffer.
func (s *ArraySequence) Select(ix Index) (*ArraySequence, error) {
	if start, stop, ok := ix.contiguous(s.Len()); ok {
		return s.view(start, stop), nil
	}
	pos, err := ix.Resolve(s.Len())
	if err != nil {
		return nil, err
	}
	out := &ArraySequence{cols: s.cols}
	total := 0
	for _, p := range pos {
		total += s.lengths[p]
	}
	out.data = make([]float64, 0, total*s.cols)
	for _, p := range pos {
		out.offsets = append(out.offsets, out.TotalPoints())
		out.lengths = append(out.lengths, s.lengths[p])
		out.data = append(out.data, s.item(p).Data...)
	}
	return out, nil
}

func (s *ArraySequence) view(start, stop int) *ArraySequence {
	out := &ArraySequence{cols: s.cols}
	if start == stop {
		return out
	}
	base := s.offsets[start]
	end := s.offsets[stop-1] + s.lengths[stop-1]
	lo, hi := base*s.cols, end*s.cols
	out.data = s.data[lo:hi:hi]
	out.offsets = make([]int, stop-start)
	out.lengths = make([]int, stop-start)
	for i := start; i < stop; i++ {
		out.offsets[i-start] = s.offsets[i] - base
		out.lengths[i-start] = s.lengths[i]
	}
	return out
}

// RowRange returns a view of buffer rows [start, end), regardless of where
// item boundaries fall.
func (s *ArraySequence) RowRange(start, end int) (Array, error) {
	if start < 0 || end < start || end > s.TotalPoints() {
		return Array{}, fmt.Errorf("%w: rows [%d,%d) of %d", ErrOutOfRange, start, end, s.TotalPoints())
	}
	lo, hi := start*s.cols, end*s.cols
	return Array{Rows: end - start, Cols: s.cols, Data: s.data[lo:hi:hi]}, nil
}

// SetRange overwrites buffer rows [start, end) in place with rows.
func (s *ArraySequence) SetRange(start, end int, rows Array) error {
	if start < 0 || end < start || end > s.TotalPoints() {
		return fmt.Errorf("%w: rows [%d,%d) of %d", ErrOutOfRange, start, end, s.TotalPoints())
	}
	if rows.Rows != end-start || (rows.Rows > 0 && rows.Cols != s.cols) {
		return fmt.Errorf("%w: cannot write %dx%d into %d rows of %d columns",
			ErrShape, rows.Rows, rows.Cols, end-start, s.cols)
	}
	copy(s.data[start*s.cols:end*s.cols], rows.Data)
	return nil
}

// Copy returns a sequence that shares no memory with s.
func (s *ArraySequence) Copy() *ArraySequence {
	return &ArraySequence{
		data:    append([]float64(nil), s.data...),
		cols:    s.cols,
		offsets: append([]int(nil), s.offsets...),
		lengths: append([]int(nil), s.lengths...),
	}
}

// All yields every item as a view, in order.
func (s *ArraySequence) All() iter.Seq[Array] {
	return func(yield func(Array) bool) {
		for i := range s.lengths {
			if !yield(s.item(i)) {
				return
			}
		}
	}
}
