package tractogram

import (
	"fmt"
	"iter"
	"maps"
	"slices"

	"gonum.org/v1/gonum/mat"

	"tractspace/pkg/affine"
	"tractspace/pkg/arrayseq"
	"tractspace/pkg/datadict"
)

// Tractogram holds streamlines and their data in memory.
//
// Points can be in any space as long as the affine to RAS+mm describes how to
// bring them back to world space. Per-streamline data holds one row per
// streamline; per-point data holds one sequence per key whose item lengths
// match the streamline lengths.
type Tractogram struct {
	streamlines       *arrayseq.ArraySequence
	dataPerStreamline *datadict.PerArrayDict
	dataPerPoint      *datadict.SliceableDict[*arrayseq.ArraySequence]
	affineToRASMM     *mat.Dense
}

// Option configures a Tractogram built by New.
type Option func(*options)

type options struct {
	dataPerStreamline map[string]arrayseq.Array
	dataPerPoint      map[string]*arrayseq.ArraySequence
	affineToRASMM     mat.Matrix
}

// WithDataPerStreamline attaches per-streamline arrays, one row per streamline.
func WithDataPerStreamline(data map[string]arrayseq.Array) Option {
	return func(o *options) {
		o.dataPerStreamline = data
	}
}

// WithDataPerPoint attaches per-point sequences, one item per streamline.
func WithDataPerPoint(data map[string]*arrayseq.ArraySequence) Option {
	return func(o *options) {
		o.dataPerPoint = data
	}
}

// WithAffineToRASMM records the affine that brings the streamlines to
// RAS+mm. The default is the identity.
func WithAffineToRASMM(a mat.Matrix) Option {
	return func(o *options) {
		o.affineToRASMM = a
	}
}

// New builds a tractogram around streamlines, which it takes ownership of.
// A nil sequence yields an empty tractogram.
func New(streamlines *arrayseq.ArraySequence, opts ...Option) (*Tractogram, error) {
	var cfg options
	for _, opt := range opts {
		opt(&cfg)
	}

	if streamlines == nil {
		streamlines = arrayseq.New(3)
	}
	if streamlines.TotalPoints() > 0 && streamlines.Cols() != 3 {
		return nil, fmt.Errorf("%w: streamline points must have 3 coordinates, got %d",
			arrayseq.ErrShape, streamlines.Cols())
	}

	t := &Tractogram{
		streamlines:       streamlines,
		dataPerStreamline: datadict.NewPerArray(streamlines.Len()),
		dataPerPoint:      datadict.NewSliceable[*arrayseq.ArraySequence](nil),
		affineToRASMM:     affine.Identity(),
	}
	if cfg.affineToRASMM != nil {
		if err := t.SetAffineToRASMM(cfg.affineToRASMM); err != nil {
			return nil, err
		}
	}
	for _, k := range sortedKeys(cfg.dataPerStreamline) {
		if err := t.SetDataPerStreamline(k, cfg.dataPerStreamline[k]); err != nil {
			return nil, err
		}
	}
	for _, k := range sortedKeys(cfg.dataPerPoint) {
		if err := t.SetDataPerPoint(k, cfg.dataPerPoint[k]); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// FromArrays builds a tractogram from copies of the given point arrays.
func FromArrays(streamlines []arrayseq.Array, opts ...Option) (*Tractogram, error) {
	seq, err := arrayseq.FromArrays(streamlines...)
	if err != nil {
		return nil, err
	}
	return New(seq, opts...)
}

// Len returns the number of streamlines.
func (t *Tractogram) Len() int { return t.streamlines.Len() }

// Streamlines returns the streamline sequence owned by t. Editing points in
// place is fine; changing its length breaks the link with the data.
func (t *Tractogram) Streamlines() *arrayseq.ArraySequence { return t.streamlines }

// DataPerStreamline returns the per-streamline dictionary owned by t.
func (t *Tractogram) DataPerStreamline() *datadict.PerArrayDict { return t.dataPerStreamline }

// DataPerPoint returns the per-point dictionary owned by t. Use
// SetDataPerPoint to add keys so their lengths are checked.
func (t *Tractogram) DataPerPoint() *datadict.SliceableDict[*arrayseq.ArraySequence] {
	return t.dataPerPoint
}

// SetDataPerStreamline stores one row of values per streamline under key.
func (t *Tractogram) SetDataPerStreamline(key string, a arrayseq.Array) error {
	if err := t.dataPerStreamline.Set(key, a); err != nil {
		return fmt.Errorf("data per streamline: %w", err)
	}
	return nil
}

// SetDataPerPoint stores seq under key after checking it has one item per
// streamline with one row per point. The tractogram takes ownership of seq.
func (t *Tractogram) SetDataPerPoint(key string, seq *arrayseq.ArraySequence) error {
	if seq == nil {
		return fmt.Errorf("%w: data per point %q is nil", ErrDataMismatch, key)
	}
	if !slices.Equal(seq.Lengths(), t.streamlines.Lengths()) {
		return fmt.Errorf("%w: data per point %q has lengths %v, streamlines have %v",
			ErrDataMismatch, key, seq.Lengths(), t.streamlines.Lengths())
	}
	t.dataPerPoint.Set(key, seq)
	return nil
}

// Validate checks that the data still matches the streamlines.
func (t *Tractogram) Validate() error {
	if n := t.dataPerStreamline.NumElements(); n != t.Len() {
		return fmt.Errorf("%w: data per streamline counts %d streamlines, have %d", ErrDataMismatch, n, t.Len())
	}
	lengths := t.streamlines.Lengths()
	for k, seq := range t.dataPerPoint.All() {
		if !slices.Equal(seq.Lengths(), lengths) {
			return fmt.Errorf("%w: data per point %q has lengths %v, streamlines have %v",
				ErrDataMismatch, k, seq.Lengths(), lengths)
		}
	}
	return nil
}

// Item returns streamline i with its data. Negative i counts from the end.
// The item shares memory with t.
func (t *Tractogram) Item(i int) (Item, error) {
	pts, err := t.streamlines.Get(i)
	if err != nil {
		return Item{}, err
	}
	if i < 0 {
		i += t.Len()
	}

	dataForStreamline, err := t.dataPerStreamline.Row(i)
	if err != nil {
		return Item{}, fmt.Errorf("%w: %v", ErrDataMismatch, err)
	}
	dataForPoints := make(map[string]arrayseq.Array, t.dataPerPoint.Len())
	for k, seq := range t.dataPerPoint.All() {
		a, err := seq.Get(i)
		if err != nil {
			return Item{}, fmt.Errorf("%w: data per point %q: %v", ErrDataMismatch, k, err)
		}
		dataForPoints[k] = a
	}
	return NewItem(pts, dataForStreamline, dataForPoints), nil
}

// Select returns a new tractogram holding copies of the selected streamlines
// and their data.
func (t *Tractogram) Select(ix arrayseq.Index) (*Tractogram, error) {
	streamlines, err := t.streamlines.Select(ix)
	if err != nil {
		return nil, err
	}
	dataPerStreamline, err := t.dataPerStreamline.Select(ix)
	if err != nil {
		return nil, fmt.Errorf("data per streamline: %w", err)
	}
	dataPerPoint, err := t.dataPerPoint.Select(ix)
	if err != nil {
		return nil, fmt.Errorf("data per point: %w", err)
	}
	for k, seq := range dataPerPoint.All() {
		dataPerPoint.Set(k, seq.Copy())
	}
	return &Tractogram{
		streamlines:       streamlines.Copy(),
		dataPerStreamline: dataPerStreamline,
		dataPerPoint:      dataPerPoint,
		affineToRASMM:     affine.Clone(t.affineToRASMM),
	}, nil
}

// Items yields every streamline with its data, in order.
func (t *Tractogram) Items() iter.Seq[Item] {
	return func(yield func(Item) bool) {
		for i := 0; i < t.Len(); i++ {
			it, err := t.Item(i)
			if err != nil || !yield(it) {
				return
			}
		}
	}
}

// AffineToRASMM returns a copy of the affine that brings the current points
// to RAS+mm.
func (t *Tractogram) AffineToRASMM() *mat.Dense {
	return affine.Clone(t.affineToRASMM)
}

// SetAffineToRASMM overwrites the recorded affine without touching the points.
func (t *Tractogram) SetAffineToRASMM(a mat.Matrix) error {
	if err := affine.Validate(a); err != nil {
		return err
	}
	t.affineToRASMM = affine.Clone(a)
	return nil
}

// ApplyAffine transforms every point in place and returns t. The points are
// processed BufferSize at a time regardless of streamline boundaries. The
// recorded affine to RAS+mm becomes affineToRASMM·a⁻¹ so it still maps the
// new points to world space. A singular a is rejected before any point is
// touched. An empty tractogram is left as is.
func (t *Tractogram) ApplyAffine(a mat.Matrix) (*Tractogram, error) {
	if err := t.applyAffine(a, BufferSize); err != nil {
		return nil, err
	}
	return t, nil
}

func (t *Tractogram) applyAffine(a mat.Matrix, chunk int) error {
	if err := affine.Validate(a); err != nil {
		return err
	}
	if t.Len() == 0 {
		return nil
	}
	inv, err := affine.Inverse(a)
	if err != nil {
		return fmt.Errorf("applying affine: %w", err)
	}

	total := t.streamlines.TotalPoints()
	for start := 0; start < total; start += chunk {
		end := min(start+chunk, total)
		pts, err := t.streamlines.RowRange(start, end)
		if err != nil {
			return err
		}
		moved, err := affine.Apply(a, pts)
		if err != nil {
			return err
		}
		if err := t.streamlines.SetRange(start, end, moved); err != nil {
			return err
		}
	}

	t.affineToRASMM = affine.Compose(t.affineToRASMM, inv)
	return nil
}

// ApplyAffineLazy leaves t untouched and returns a lazy view of it that
// applies a on iteration.
func (t *Tractogram) ApplyAffineLazy(a mat.Matrix) (*LazyTractogram, error) {
	return FromTractogram(t).ApplyAffine(a)
}

// ToWorld brings the points to RAS+mm in place.
func (t *Tractogram) ToWorld() (*Tractogram, error) {
	return t.ApplyAffine(t.affineToRASMM)
}

// ToWorldLazy returns a lazy view of t whose points come out in RAS+mm.
func (t *Tractogram) ToWorldLazy() (*LazyTractogram, error) {
	return t.ApplyAffineLazy(t.affineToRASMM)
}

// Transform implements Container.
func (t *Tractogram) Transform(a mat.Matrix, lazy bool) (Container, error) {
	if lazy {
		lt, err := t.ApplyAffineLazy(a)
		if err != nil {
			return nil, err
		}
		return lt, nil
	}
	if _, err := t.ApplyAffine(a); err != nil {
		return nil, err
	}
	return t, nil
}

// TransformToWorld implements Container.
func (t *Tractogram) TransformToWorld(lazy bool) (Container, error) {
	return t.Transform(t.affineToRASMM, lazy)
}

// Copy returns a deep copy sharing no memory with t.
func (t *Tractogram) Copy() *Tractogram {
	dataPerPoint := datadict.NewSliceable[*arrayseq.ArraySequence](nil)
	for k, seq := range t.dataPerPoint.All() {
		dataPerPoint.Set(k, seq.Copy())
	}
	return &Tractogram{
		streamlines:       t.streamlines.Copy(),
		dataPerStreamline: t.dataPerStreamline.Clone(),
		dataPerPoint:      dataPerPoint,
		affineToRASMM:     affine.Clone(t.affineToRASMM),
	}
}

// Append adds one streamline with its data. The item must carry the same
// data keys as t, unless t is empty and has no keys yet, in which case the
// item's keys are adopted.
func (t *Tractogram) Append(it Item) error {
	single, err := fromItem(it)
	if err != nil {
		return err
	}
	return t.Extend(single)
}

// Extend appends copies of the streamlines and data of other. Both must hold
// the same data keys with the same widths, unless t is empty and has no keys
// yet. Nothing is modified on failure. The recorded affine of t is kept.
func (t *Tractogram) Extend(other *Tractogram) error {
	if other == nil {
		return nil
	}
	if t.blank() {
		if err := t.streamlines.Extend(other.streamlines); err != nil {
			return err
		}
		t.dataPerStreamline = other.dataPerStreamline.Clone()
		t.dataPerPoint = datadict.NewSliceable[*arrayseq.ArraySequence](nil)
		for k, seq := range other.dataPerPoint.All() {
			t.dataPerPoint.Set(k, seq.Copy())
		}
		return nil
	}

	if err := t.checkCompatible(other); err != nil {
		return err
	}
	if err := t.streamlines.Extend(other.streamlines); err != nil {
		return err
	}
	if err := t.dataPerStreamline.Extend(other.dataPerStreamline); err != nil {
		return fmt.Errorf("%w: %v", ErrDataMismatch, err)
	}
	for k, seq := range t.dataPerPoint.All() {
		theirs, _ := other.dataPerPoint.Get(k)
		if err := seq.Extend(theirs); err != nil {
			return fmt.Errorf("%w: data per point %q: %v", ErrDataMismatch, k, err)
		}
	}
	return nil
}

func (t *Tractogram) blank() bool {
	return t.Len() == 0 && t.dataPerStreamline.Len() == 0 && t.dataPerPoint.Len() == 0
}

// checkCompatible runs every check Extend depends on, so that once it
// passes no step of Extend can fail halfway.
func (t *Tractogram) checkCompatible(other *Tractogram) error {
	if err := t.streamlines.CheckExtend(other.streamlines); err != nil {
		return fmt.Errorf("streamlines: %w", err)
	}
	if !slices.Equal(t.dataPerStreamline.Keys(), other.dataPerStreamline.Keys()) {
		return fmt.Errorf("%w: data per streamline keys %v and %v differ",
			ErrDataMismatch, t.dataPerStreamline.Keys(), other.dataPerStreamline.Keys())
	}
	if !slices.Equal(t.dataPerPoint.Keys(), other.dataPerPoint.Keys()) {
		return fmt.Errorf("%w: data per point keys %v and %v differ",
			ErrDataMismatch, t.dataPerPoint.Keys(), other.dataPerPoint.Keys())
	}
	for k, mine := range t.dataPerStreamline.All() {
		theirs, _ := other.dataPerStreamline.Get(k)
		if mine.Rows > 0 && theirs.Rows > 0 && mine.Cols != theirs.Cols {
			return fmt.Errorf("%w: data per streamline %q has %d columns, got %d",
				ErrDataMismatch, k, mine.Cols, theirs.Cols)
		}
	}
	for k, mine := range t.dataPerPoint.All() {
		theirs, _ := other.dataPerPoint.Get(k)
		if err := mine.CheckExtend(theirs); err != nil {
			return fmt.Errorf("%w: data per point %q: %v", ErrDataMismatch, k, err)
		}
	}
	return nil
}

// fromItem wraps a single item as a one-streamline tractogram.
func fromItem(it Item) (*Tractogram, error) {
	dataPerStreamline := make(map[string]arrayseq.Array, len(it.DataForStreamline))
	for k, v := range it.DataForStreamline {
		dataPerStreamline[k] = arrayseq.Array{Rows: 1, Cols: len(v), Data: v}
	}
	dataPerPoint := make(map[string]*arrayseq.ArraySequence, len(it.DataForPoints))
	for k, a := range it.DataForPoints {
		seq, err := arrayseq.FromArrays(a)
		if err != nil {
			return nil, fmt.Errorf("data per point %q: %w", k, err)
		}
		dataPerPoint[k] = seq
	}
	return FromArrays([]arrayseq.Array{it.Streamline},
		WithDataPerStreamline(dataPerStreamline),
		WithDataPerPoint(dataPerPoint))
}

func sortedKeys[V any](m map[string]V) []string {
	return slices.Sorted(maps.Keys(m))
}
