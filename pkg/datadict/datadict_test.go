package datadict

import (
	"iter"
	"slices"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tractspace/pkg/arrayseq"
)

func TestPerArraySetValidates(t *testing.T) {
	d := NewPerArray(3)

	err := d.Set("fa", arrayseq.Column([]float64{1, 2}))
	assert.ErrorIs(t, err, ErrElementCount)

	err = d.SetRows("rgb", [][]float64{{1, 2, 3}, {4, 5}, {6, 7, 8}})
	assert.ErrorIs(t, err, ErrNotTwoDimensional)

	err = d.SetRows("rgb", [][]float64{{1, 2, 3}})
	assert.ErrorIs(t, err, ErrElementCount)

	assert.Equal(t, 0, d.Len())
}

func TestPerArrayColumnReshape(t *testing.T) {
	d := NewPerArray(3)
	require.NoError(t, d.SetColumn("fa", []float64{0.1, 0.2, 0.3}))

	got, ok := d.Get("fa")
	require.True(t, ok)
	assert.Equal(t, 3, got.Rows)
	assert.Equal(t, 1, got.Cols)
	assert.Equal(t, []float64{0.2}, got.Row(1))
}

func TestPerArraySetCopies(t *testing.T) {
	d := NewPerArray(2)
	src := arrayseq.Column([]float64{1, 2})
	require.NoError(t, d.Set("x", src))
	src.Data[0] = 99

	got, _ := d.Get("x")
	assert.Equal(t, 1.0, got.At(0, 0))
}

func TestPerArraySelect(t *testing.T) {
	d := NewPerArray(4)
	require.NoError(t, d.SetColumn("id", []float64{0, 1, 2, 3}))
	require.NoError(t, d.SetRows("pair", [][]float64{{0, 0}, {1, 1}, {2, 2}, {3, 3}}))

	sub, err := d.Select(arrayseq.Mask([]bool{false, true, true, false}))
	require.NoError(t, err)
	assert.Equal(t, 2, sub.NumElements())

	id, _ := sub.Get("id")
	pair, _ := sub.Get("pair")
	assert.Equal(t, []float64{1, 2}, id.Data)
	assert.Equal(t, []float64{1, 1, 2, 2}, pair.Data)

	// sub must own its rows
	id.Data[0] = -1
	orig, _ := d.Get("id")
	assert.Equal(t, 1.0, orig.At(1, 0))
}

func TestPerArrayRow(t *testing.T) {
	d := NewPerArray(2)
	require.NoError(t, d.SetColumn("a", []float64{5, 6}))
	require.NoError(t, d.SetRows("b", [][]float64{{1, 2}, {3, 4}}))

	row, err := d.Row(1)
	require.NoError(t, err)
	if diff := cmp.Diff(map[string][]float64{"a": {6}, "b": {3, 4}}, row); diff != "" {
		t.Errorf("Row(1) mismatch (-want +got):\n%s", diff)
	}

	_, err = d.Row(2)
	assert.ErrorIs(t, err, arrayseq.ErrOutOfRange)
}

func TestPerArrayExtend(t *testing.T) {
	a := NewPerArray(2)
	require.NoError(t, a.SetColumn("x", []float64{1, 2}))
	b := NewPerArray(1)
	require.NoError(t, b.SetColumn("x", []float64{3}))

	require.NoError(t, a.Extend(b))
	assert.Equal(t, 3, a.NumElements())
	x, _ := a.Get("x")
	assert.Equal(t, []float64{1, 2, 3}, x.Data)

	c := NewPerArray(1)
	require.NoError(t, c.SetColumn("y", []float64{3}))
	assert.ErrorIs(t, a.Extend(c), ErrKeyMismatch)
	assert.Equal(t, 3, a.NumElements())

	wide := NewPerArray(1)
	require.NoError(t, wide.SetRows("x", [][]float64{{1, 2}}))
	assert.ErrorIs(t, a.Extend(wide), ErrNotTwoDimensional)
	assert.Equal(t, 3, a.NumElements())
}

func TestLookupByKeyAndPosition(t *testing.T) {
	d := NewPerArray(3)
	require.NoError(t, d.SetColumn("fa", []float64{0.1, 0.2, 0.3}))

	v, sub, err := d.Lookup(Key("fa"))
	require.NoError(t, err)
	assert.Nil(t, sub)
	assert.Equal(t, 3, v.Rows)

	_, sub, err = d.Lookup(Position(arrayseq.Range(1, arrayseq.End)))
	require.NoError(t, err)
	require.NotNil(t, sub)
	fa, _ := sub.Get("fa")
	assert.Equal(t, []float64{0.2, 0.3}, fa.Data)

	_, _, err = d.Lookup(Key("md"))
	assert.ErrorIs(t, err, ErrKeyNotFound)
}

func TestLookupFallsBackToKey(t *testing.T) {
	d := NewPerArray(2)
	require.NoError(t, d.SetColumn("7", []float64{1, 2}))

	// position 7 is out of range for two elements, so the key "7" answers
	v, sub, err := d.Lookup(Position(arrayseq.At(7)))
	require.NoError(t, err)
	assert.Nil(t, sub)
	assert.Equal(t, []float64{1, 2}, v.Data)

	_, _, err = d.Lookup(Position(arrayseq.At(9)))
	assert.ErrorIs(t, err, arrayseq.ErrOutOfRange)
}

func TestSliceableDictSelect(t *testing.T) {
	s1, err := arrayseq.FromArrays(arrayseq.Column([]float64{1, 2}), arrayseq.Column([]float64{3}))
	require.NoError(t, err)
	d := NewSliceable(map[string]*arrayseq.ArraySequence{"curv": s1})

	_, sub, err := d.Lookup(Position(arrayseq.At(1)))
	require.NoError(t, err)
	curv, ok := sub.Get("curv")
	require.True(t, ok)
	assert.Equal(t, 1, curv.Len())
	assert.Equal(t, 1, curv.TotalPoints())

	_, _, err = d.Lookup(Position(arrayseq.Mask([]bool{true})))
	assert.ErrorIs(t, err, arrayseq.ErrShape)

	assert.Equal(t, []string{"curv"}, d.Keys())
	clone := d.Clone()
	clone.Delete("curv")
	assert.Equal(t, 1, d.Len())
}

func TestLazyDictRestarts(t *testing.T) {
	d := NewLazy(map[string]Producer[float64]{
		"x": FromSlice([]float64{1, 2, 3}),
	})

	for range 2 {
		seq, err := d.Get("x")
		require.NoError(t, err)
		assert.Equal(t, []float64{1, 2, 3}, slices.Collect(seq))
	}

	_, err := d.Get("y")
	assert.ErrorIs(t, err, ErrKeyNotFound)
}

func TestLazyDictSetAny(t *testing.T) {
	d := NewLazy[float64](nil)

	require.NoError(t, d.SetAny("nil", nil))
	require.NoError(t, d.SetAny("func", func() iter.Seq[float64] { return slices.Values([]float64{4}) }))
	require.NoError(t, d.SetAny("producer", FromSlice([]float64{5})))

	err := d.SetAny("bad", []float64{1, 2})
	assert.ErrorIs(t, err, ErrNotProducer)
	err = d.SetAny("wrong type", func() iter.Seq[int] { return nil })
	assert.ErrorIs(t, err, ErrNotProducer)

	assert.Equal(t, []string{"func", "nil", "producer"}, d.Keys())

	seq, err := d.Get("nil")
	require.NoError(t, err)
	assert.Empty(t, slices.Collect(seq))

	seq, err = d.Get("func")
	require.NoError(t, err)
	assert.Equal(t, []float64{4}, slices.Collect(seq))
}

func TestLazyDictCloneSharesProducers(t *testing.T) {
	calls := 0
	d := NewLazy(map[string]Producer[int]{
		"n": func() iter.Seq[int] {
			calls++
			return slices.Values([]int{calls})
		},
	})
	clone := d.Clone()
	clone.Set("extra", nil)

	seq, _ := clone.Get("n")
	assert.Equal(t, []int{1}, slices.Collect(seq))
	seq, _ = d.Get("n")
	assert.Equal(t, []int{2}, slices.Collect(seq))
	assert.Equal(t, 1, d.Len())
}
