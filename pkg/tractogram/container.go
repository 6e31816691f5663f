// Package tractogram holds collections of streamlines with their
// per-streamline and per-point data, and tracks the affine that brings their
// points to world space (RAS+, millimetres, voxel centre at the origin).
//
// Two containers share one contract. Tractogram keeps everything in memory,
// supports random access and transforms its points in place. LazyTractogram
// pulls streamlines from restartable producers, never supports random access,
// and defers transforms until iteration.
package tractogram

import (
	"errors"
	"iter"

	"gonum.org/v1/gonum/mat"
)

// Common errors
var (
	ErrDataMismatch        = errors.New("streamline data does not match the streamlines")
	ErrIndexingUnsupported = errors.New("lazy tractogram does not support indexing")
	ErrLazyOnly            = errors.New("lazy tractogram only supports lazy transformations")
	ErrNilProducer         = errors.New("producer is nil")
)

// BufferSize is the number of points transformed at once when an affine is
// applied in place. At 3 x 8 bytes per point a chunk needs about 120 MB of
// scratch memory, however many streamlines there are.
const BufferSize = 5_000_000

// Container is what file codecs and transform tools use, whichever variant
// they hold.
type Container interface {
	// Len returns the number of streamlines. A lazy container may have to
	// consume its producer to find out.
	Len() int

	// Item returns streamline i with its data.
	Item(i int) (Item, error)

	// Items yields every streamline with its data, in order.
	Items() iter.Seq[Item]

	// AffineToRASMM returns a copy of the affine that brings the current
	// points to world space.
	AffineToRASMM() *mat.Dense

	// Transform applies an affine to the points, in place or lazily.
	Transform(a mat.Matrix, lazy bool) (Container, error)

	// TransformToWorld applies AffineToRASMM, in place or lazily.
	TransformToWorld(lazy bool) (Container, error)
}

var (
	_ Container = (*Tractogram)(nil)
	_ Container = (*LazyTractogram)(nil)
)
