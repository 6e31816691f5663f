package tractogram

import (
	"fmt"
	"iter"

	"gonum.org/v1/gonum/mat"

	"tractspace/internal/monitoring"
	"tractspace/pkg/affine"
	"tractspace/pkg/arrayseq"
	"tractspace/pkg/datadict"
)

// LazyTractogram pulls streamlines and their data from restartable producers
// instead of holding them in memory. Each pass calls the producers again, so
// it can be iterated any number of times.
//
// Transforms are not applied to any buffer: they accumulate in a pending
// affine that is applied to each streamline as it is yielded. Random access
// is not supported.
type LazyTractogram struct {
	streamlines       datadict.Producer[arrayseq.Array]
	items             datadict.Producer[Item]
	dataPerStreamline *datadict.LazyDict[[]float64]
	dataPerPoint      *datadict.LazyDict[arrayseq.Array]

	count      int
	countKnown bool

	affineToRASMM *mat.Dense
	affineToApply *mat.Dense
}

// LazyOption configures a LazyTractogram built by NewLazy.
type LazyOption func(*lazyOptions)

type lazyOptions struct {
	dataPerStreamline map[string]datadict.Producer[[]float64]
	dataPerPoint      map[string]datadict.Producer[arrayseq.Array]
	affineToRASMM     mat.Matrix
	count             int
	countKnown        bool
}

// WithLazyDataPerStreamline attaches producers of per-streamline values.
func WithLazyDataPerStreamline(data map[string]datadict.Producer[[]float64]) LazyOption {
	return func(o *lazyOptions) {
		o.dataPerStreamline = data
	}
}

// WithLazyDataPerPoint attaches producers of per-point arrays.
func WithLazyDataPerPoint(data map[string]datadict.Producer[arrayseq.Array]) LazyOption {
	return func(o *lazyOptions) {
		o.dataPerPoint = data
	}
}

// WithLazyAffineToRASMM records the affine that brings the produced
// streamlines to RAS+mm.
func WithLazyAffineToRASMM(a mat.Matrix) LazyOption {
	return func(o *lazyOptions) {
		o.affineToRASMM = a
	}
}

// WithLen supplies the number of streamlines so Len never has to count.
func WithLen(n int) LazyOption {
	return func(o *lazyOptions) {
		o.count, o.countKnown = n, true
	}
}

func newLazy() *LazyTractogram {
	return &LazyTractogram{
		dataPerStreamline: datadict.NewLazy[[]float64](nil),
		dataPerPoint:      datadict.NewLazy[arrayseq.Array](nil),
		affineToRASMM:     affine.Identity(),
		affineToApply:     affine.Identity(),
	}
}

// NewLazy builds a lazy tractogram over a streamline producer. A nil producer
// gives a tractogram with no streamlines.
func NewLazy(streamlines datadict.Producer[arrayseq.Array], opts ...LazyOption) (*LazyTractogram, error) {
	var cfg lazyOptions
	for _, opt := range opts {
		opt(&cfg)
	}

	lt := newLazy()
	lt.streamlines = streamlines
	for k, p := range cfg.dataPerStreamline {
		lt.dataPerStreamline.Set(k, p)
	}
	for k, p := range cfg.dataPerPoint {
		lt.dataPerPoint.Set(k, p)
	}
	if cfg.affineToRASMM != nil {
		if err := affine.Validate(cfg.affineToRASMM); err != nil {
			return nil, err
		}
		lt.affineToRASMM = affine.Clone(cfg.affineToRASMM)
	}
	lt.count, lt.countKnown = cfg.count, cfg.countKnown
	return lt, nil
}

// FromTractogram returns a lazy view of t. The producers read t each time
// they are called and yield copies, so the view restarts freely. The count
// and the affine to RAS+mm are taken from t.
func FromTractogram(t *Tractogram) *LazyTractogram {
	lt := newLazy()
	lt.streamlines = func() iter.Seq[arrayseq.Array] {
		return func(yield func(arrayseq.Array) bool) {
			for s := range t.streamlines.All() {
				if !yield(s.Copy()) {
					return
				}
			}
		}
	}

	for _, k := range t.dataPerStreamline.Keys() {
		lt.dataPerStreamline.Set(k, func() iter.Seq[[]float64] {
			return func(yield func([]float64) bool) {
				a, ok := t.dataPerStreamline.Get(k)
				if !ok {
					return
				}
				for i := 0; i < a.Rows; i++ {
					if !yield(append([]float64(nil), a.Row(i)...)) {
						return
					}
				}
			}
		})
	}

	for _, k := range t.dataPerPoint.Keys() {
		lt.dataPerPoint.Set(k, func() iter.Seq[arrayseq.Array] {
			return func(yield func(arrayseq.Array) bool) {
				seq, ok := t.dataPerPoint.Get(k)
				if !ok {
					return
				}
				for a := range seq.All() {
					if !yield(a.Copy()) {
						return
					}
				}
			}
		})
	}

	lt.count, lt.countKnown = t.Len(), true
	lt.affineToRASMM = t.AffineToRASMM()
	return lt
}

// FromItemProducer builds a lazy tractogram over a producer of items. The
// producer is called once up front to peek at the first item and learn the
// data keys; each key then gets its own producer that replays the items and
// picks that key out. An empty producer yields no keys.
func FromItemProducer(p datadict.Producer[Item]) (*LazyTractogram, error) {
	if p == nil {
		return nil, ErrNilProducer
	}

	lt := newLazy()
	lt.items = p

	var (
		first Item
		found bool
	)
	for it := range p() {
		first, found = it, true
		break
	}
	if !found {
		return lt, nil
	}

	for k := range first.DataForStreamline {
		lt.dataPerStreamline.Set(k, project(p, func(it Item) []float64 {
			return it.DataForStreamline[k]
		}))
	}
	for k := range first.DataForPoints {
		lt.dataPerPoint.Set(k, project(p, func(it Item) arrayseq.Array {
			return it.DataForPoints[k]
		}))
	}
	return lt, nil
}

// project turns a producer of items into a producer of one field.
func project[T any](p datadict.Producer[Item], pick func(Item) T) datadict.Producer[T] {
	return func() iter.Seq[T] {
		return func(yield func(T) bool) {
			for it := range p() {
				if !yield(pick(it)) {
					return
				}
			}
		}
	}
}

// DataPerStreamline returns the producers of per-streamline values.
func (lt *LazyTractogram) DataPerStreamline() *datadict.LazyDict[[]float64] {
	return lt.dataPerStreamline
}

// DataPerPoint returns the producers of per-point arrays.
func (lt *LazyTractogram) DataPerPoint() *datadict.LazyDict[arrayseq.Array] {
	return lt.dataPerPoint
}

// SetDataPerStreamline stores a producer of per-streamline values. It only
// shows up in Data when the tractogram was not built from an item producer.
func (lt *LazyTractogram) SetDataPerStreamline(key string, p datadict.Producer[[]float64]) {
	lt.dataPerStreamline.Set(key, p)
}

// SetDataPerPoint stores a producer of per-point arrays, with the same caveat
// as SetDataPerStreamline.
func (lt *LazyTractogram) SetDataPerPoint(key string, p datadict.Producer[arrayseq.Array]) {
	lt.dataPerPoint.Set(key, p)
}

// rawStreamlines starts a pass over the streamlines before any pending
// affine is applied.
func (lt *LazyTractogram) rawStreamlines() iter.Seq[arrayseq.Array] {
	switch {
	case lt.streamlines != nil:
		return lt.streamlines()
	case lt.items != nil:
		return project(lt.items, func(it Item) arrayseq.Array { return it.Streamline })()
	default:
		return datadict.Empty[arrayseq.Array]()
	}
}

// Streamlines starts a pass over the streamlines. A pending affine is applied
// to each one as it is yielded.
//
// It panics if a producer yields a streamline that is not an n x 3 array while
// an affine is pending. Materialize reports that case as an error instead.
func (lt *LazyTractogram) Streamlines() iter.Seq[arrayseq.Array] {
	return lt.streamlinesPass(nil)
}

// streamlinesPass is Streamlines with an error sink. When errp is not nil, a
// streamline that cannot be transformed ends the pass and its error is
// stored in *errp.
func (lt *LazyTractogram) streamlinesPass(errp *error) iter.Seq[arrayseq.Array] {
	src := lt.rawStreamlines()
	if affine.IsIdentity(lt.affineToApply) {
		return src
	}
	pending := affine.Clone(lt.affineToApply)
	return func(yield func(arrayseq.Array) bool) {
		for s := range src {
			moved, ok := applyPending(pending, s, errp)
			if !ok || !yield(moved) {
				return
			}
		}
	}
}

// Data starts a pass over the items. Without an item producer, each step
// pulls one value from the streamline producer and from every data producer
// in lockstep; the producers must agree on the number of streamlines.
//
// It panics on malformed streamlines the same way Streamlines does.
func (lt *LazyTractogram) Data() iter.Seq[Item] {
	return lt.dataPass(nil)
}

func (lt *LazyTractogram) dataPass(errp *error) iter.Seq[Item] {
	if lt.items != nil {
		src := lt.items()
		if affine.IsIdentity(lt.affineToApply) {
			return src
		}
		pending := affine.Clone(lt.affineToApply)
		return func(yield func(Item) bool) {
			for it := range src {
				moved, ok := applyPending(pending, it.Streamline, errp)
				if !ok {
					return
				}
				it.Streamline = moved
				if !yield(it) {
					return
				}
			}
		}
	}

	return func(yield func(Item) bool) {
		perStreamline := make(map[string]func() ([]float64, bool), lt.dataPerStreamline.Len())
		for _, k := range lt.dataPerStreamline.Keys() {
			seq, _ := lt.dataPerStreamline.Get(k)
			next, stop := iter.Pull(seq)
			defer stop()
			perStreamline[k] = next
		}
		perPoint := make(map[string]func() (arrayseq.Array, bool), lt.dataPerPoint.Len())
		for _, k := range lt.dataPerPoint.Keys() {
			seq, _ := lt.dataPerPoint.Get(k)
			next, stop := iter.Pull(seq)
			defer stop()
			perPoint[k] = next
		}

		for s := range lt.streamlinesPass(errp) {
			dataForStreamline := make(map[string][]float64, len(perStreamline))
			for k, next := range perStreamline {
				if v, ok := next(); ok {
					dataForStreamline[k] = v
				}
			}
			dataForPoints := make(map[string]arrayseq.Array, len(perPoint))
			for k, next := range perPoint {
				if v, ok := next(); ok {
					dataForPoints[k] = v
				}
			}
			if !yield(NewItem(s, dataForStreamline, dataForPoints)) {
				return
			}
		}
	}
}

// Items yields every item, like Data, and records the count once a pass
// runs to completion.
func (lt *LazyTractogram) Items() iter.Seq[Item] {
	return func(yield func(Item) bool) {
		n := 0
		for it := range lt.Data() {
			if !yield(it) {
				return
			}
			n++
		}
		lt.count, lt.countKnown = n, true
	}
}

// Len returns the number of streamlines. When it is not known yet, the
// streamline producer is consumed once to count them and a warning is
// logged; supply the count with SetLen or WithLen to avoid that.
func (lt *LazyTractogram) Len() int {
	if !lt.countKnown {
		monitoring.Warnf("tractogram: counting streamlines by consuming the streamline producer; " +
			"set the count with SetLen if it is known")
		n := 0
		for range lt.rawStreamlines() {
			n++
		}
		lt.count, lt.countKnown = n, true
	}
	return lt.count
}

// SetLen records the number of streamlines.
func (lt *LazyTractogram) SetLen(n int) {
	lt.count, lt.countKnown = n, true
}

// LenKnown returns the recorded number of streamlines, if any, without
// consuming anything.
func (lt *LazyTractogram) LenKnown() (int, bool) {
	return lt.count, lt.countKnown
}

// Item always fails: lazy tractograms do not support random access.
func (lt *LazyTractogram) Item(int) (Item, error) {
	return Item{}, ErrIndexingUnsupported
}

// AffineToRASMM returns a copy of the affine that brings the yielded points
// to RAS+mm.
func (lt *LazyTractogram) AffineToRASMM() *mat.Dense {
	return affine.Clone(lt.affineToRASMM)
}

// AffineToApply returns a copy of the affine still pending on the points.
func (lt *LazyTractogram) AffineToApply() *mat.Dense {
	return affine.Clone(lt.affineToApply)
}

// ApplyAffine returns a copy of lt with a applied after any pending affine.
// lt itself is not modified. The recorded affine to RAS+mm is updated the
// same way as for Tractogram.ApplyAffine.
func (lt *LazyTractogram) ApplyAffine(a mat.Matrix) (*LazyTractogram, error) {
	if err := affine.Validate(a); err != nil {
		return nil, err
	}
	inv, err := affine.Inverse(a)
	if err != nil {
		return nil, fmt.Errorf("applying affine: %w", err)
	}

	out := lt.Copy()
	out.affineToApply = affine.Compose(a, lt.affineToApply)
	out.affineToRASMM = affine.Compose(lt.affineToRASMM, inv)
	return out, nil
}

// ToWorld returns a copy of lt whose points come out in RAS+mm.
func (lt *LazyTractogram) ToWorld() (*LazyTractogram, error) {
	return lt.ApplyAffine(lt.affineToRASMM)
}

// Transform implements Container. Only lazy transforms are supported.
func (lt *LazyTractogram) Transform(a mat.Matrix, lazy bool) (Container, error) {
	if !lazy {
		return nil, ErrLazyOnly
	}
	out, err := lt.ApplyAffine(a)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// TransformToWorld implements Container. Only lazy transforms are supported.
func (lt *LazyTractogram) TransformToWorld(lazy bool) (Container, error) {
	return lt.Transform(lt.affineToRASMM, lazy)
}

// Copy returns a lazy tractogram sharing the producers of lt. The affines and
// the key sets are copied.
func (lt *LazyTractogram) Copy() *LazyTractogram {
	return &LazyTractogram{
		streamlines:       lt.streamlines,
		items:             lt.items,
		dataPerStreamline: lt.dataPerStreamline.Clone(),
		dataPerPoint:      lt.dataPerPoint.Clone(),
		count:             lt.count,
		countKnown:        lt.countKnown,
		affineToRASMM:     affine.Clone(lt.affineToRASMM),
		affineToApply:     affine.Clone(lt.affineToApply),
	}
}

// Materialize runs one pass and collects the items into an in-memory
// Tractogram carrying the same affine to RAS+mm. Pending transforms are
// baked into the points. A streamline that cannot be transformed is
// reported as an error wrapping arrayseq.ErrShape.
func (lt *LazyTractogram) Materialize() (*Tractogram, error) {
	out, err := New(nil, WithAffineToRASMM(lt.affineToRASMM))
	if err != nil {
		return nil, err
	}

	var passErr error
	i := 0
	for it := range lt.dataPass(&passErr) {
		if err := out.Append(it); err != nil {
			return nil, fmt.Errorf("streamline %d: %w", i, err)
		}
		i++
	}
	if passErr != nil {
		return nil, fmt.Errorf("streamline %d: %w", i, passErr)
	}
	lt.count, lt.countKnown = i, true
	return out, nil
}

// applyPending transforms s with a. On failure it panics when errp is nil and
// otherwise stores the error in *errp.
func applyPending(a mat.Matrix, s arrayseq.Array, errp *error) (arrayseq.Array, bool) {
	moved, err := affine.Apply(a, s)
	if err == nil {
		return moved, true
	}
	err = fmt.Errorf("cannot transform streamline: %w", err)
	if errp == nil {
		panic("tractogram: " + err.Error())
	}
	*errp = err
	return arrayseq.Array{}, false
}
