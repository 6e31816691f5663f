package tractogram

import (
	"iter"

	"tractspace/pkg/arrayseq"
)

// Item is one streamline together with its data: DataForStreamline maps each
// key to the values of this streamline, and DataForPoints maps each key to an
// array with one row per point.
//
// Items are produced by iteration and treated as read-only; they may share
// memory with the container they came from.
type Item struct {
	Streamline        arrayseq.Array
	DataForStreamline map[string][]float64
	DataForPoints     map[string]arrayseq.Array
}

// NewItem builds an item. Nil maps are replaced by empty ones.
func NewItem(streamline arrayseq.Array, dataForStreamline map[string][]float64, dataForPoints map[string]arrayseq.Array) Item {
	if dataForStreamline == nil {
		dataForStreamline = map[string][]float64{}
	}
	if dataForPoints == nil {
		dataForPoints = map[string]arrayseq.Array{}
	}
	return Item{
		Streamline:        streamline,
		DataForStreamline: dataForStreamline,
		DataForPoints:     dataForPoints,
	}
}

// Len returns the number of points.
func (it Item) Len() int { return it.Streamline.Rows }

// Points yields each point as an x, y, z slice.
func (it Item) Points() iter.Seq[[]float64] {
	return func(yield func([]float64) bool) {
		for i := 0; i < it.Streamline.Rows; i++ {
			if !yield(it.Streamline.Row(i)) {
				return
			}
		}
	}
}
