package tractogram

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"tractspace/pkg/affine"
	"tractspace/pkg/arrayseq"
	"tractspace/pkg/datadict"
)

// makeStreamlines builds streamlines whose point j of streamline i is
// (i, j, i*100+j).
func makeStreamlines(lengths ...int) []arrayseq.Array {
	out := make([]arrayseq.Array, len(lengths))
	for i, n := range lengths {
		pts := make([][3]float64, n)
		for j := range pts {
			pts[j] = [3]float64{float64(i), float64(j), float64(i*100 + j)}
		}
		out[i] = arrayseq.Points(pts...)
	}
	return out
}

// pointScalars builds a one-column sequence holding the point index, with
// the same lengths as the streamlines.
func pointScalars(t *testing.T, lengths ...int) *arrayseq.ArraySequence {
	t.Helper()
	seq := arrayseq.New(1)
	for _, n := range lengths {
		values := make([]float64, n)
		for j := range values {
			values[j] = float64(j)
		}
		require.NoError(t, seq.Append(arrayseq.Column(values)))
	}
	return seq
}

func newTestTractogram(t *testing.T, lengths ...int) *Tractogram {
	t.Helper()
	ids := make([]float64, len(lengths))
	for i := range ids {
		ids[i] = float64(i)
	}
	tg, err := FromArrays(makeStreamlines(lengths...),
		WithDataPerStreamline(map[string]arrayseq.Array{"id": arrayseq.Column(ids)}),
		WithDataPerPoint(map[string]*arrayseq.ArraySequence{"index": pointScalars(t, lengths...)}),
	)
	require.NoError(t, err)
	return tg
}

func assertAffine(t *testing.T, want, got mat.Matrix) {
	t.Helper()
	assert.True(t, mat.EqualApprox(want, got, 1e-9), "affine mismatch:\nwant %v\ngot  %v",
		mat.Formatted(want), mat.Formatted(got))
}

func TestNewValidatesData(t *testing.T) {
	_, err := FromArrays(makeStreamlines(2, 3),
		WithDataPerStreamline(map[string]arrayseq.Array{"id": arrayseq.Column([]float64{1})}))
	assert.ErrorIs(t, err, datadict.ErrElementCount)

	_, err = FromArrays(makeStreamlines(2, 3),
		WithDataPerPoint(map[string]*arrayseq.ArraySequence{"index": pointScalars(t, 3, 2)}))
	assert.ErrorIs(t, err, ErrDataMismatch)

	flat, err := arrayseq.FromArrays(arrayseq.Column([]float64{1, 2}))
	require.NoError(t, err)
	_, err = New(flat)
	assert.ErrorIs(t, err, arrayseq.ErrShape)

	_, err = New(nil, WithAffineToRASMM(mat.NewDense(3, 3, nil)))
	assert.ErrorIs(t, err, affine.ErrShape)
}

func TestEmptyTractogram(t *testing.T) {
	tg, err := New(nil)
	require.NoError(t, err)
	assert.Equal(t, 0, tg.Len())
	assertAffine(t, affine.Identity(), tg.AffineToRASMM())

	for range tg.Items() {
		t.Fatal("empty tractogram yielded an item")
	}

	_, err = tg.ApplyAffine(affine.Translation(1, 2, 3))
	require.NoError(t, err)
	assertAffine(t, affine.Identity(), tg.AffineToRASMM())
}

func TestItem(t *testing.T) {
	tg := newTestTractogram(t, 2, 3, 1)

	it, err := tg.Item(1)
	require.NoError(t, err)
	assert.Equal(t, 3, it.Len())
	assert.Equal(t, []float64{1, 2, 102}, it.Streamline.Row(2))
	assert.Equal(t, []float64{1}, it.DataForStreamline["id"])
	assert.Equal(t, []float64{0, 1, 2}, it.DataForPoints["index"].Data)

	last, err := tg.Item(-1)
	require.NoError(t, err)
	assert.Equal(t, []float64{2}, last.DataForStreamline["id"])

	_, err = tg.Item(3)
	assert.ErrorIs(t, err, arrayseq.ErrOutOfRange)
}

func TestItemsInOrder(t *testing.T) {
	tg := newTestTractogram(t, 2, 3, 1)

	var lengths []int
	var ids []float64
	for it := range tg.Items() {
		lengths = append(lengths, it.Len())
		ids = append(ids, it.DataForStreamline["id"][0])
	}
	assert.Equal(t, []int{2, 3, 1}, lengths)
	assert.Equal(t, []float64{0, 1, 2}, ids)
}

func TestApplyAffineTranslation(t *testing.T) {
	tg := newTestTractogram(t, 2, 3, 1)

	out, err := tg.ApplyAffine(affine.Translation(1, 2, 3))
	require.NoError(t, err)
	assert.Same(t, tg, out)

	want := makeStreamlines(2, 3, 1)
	for i, s := range want {
		got, err := tg.Streamlines().Get(i)
		require.NoError(t, err)
		for j := 0; j < s.Rows; j++ {
			row := s.Row(j)
			assert.Equal(t, []float64{row[0] + 1, row[1] + 2, row[2] + 3}, got.Row(j))
		}
	}
	assertAffine(t, affine.Translation(-1, -2, -3), tg.AffineToRASMM())

	// data is not touched by transforms
	index, _ := tg.DataPerPoint().Get("index")
	flat, err := index.RowRange(0, index.TotalPoints())
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 1, 0, 1, 2, 0}, flat.Data)
}

func TestApplyAffineComposes(t *testing.T) {
	a := affine.Scaling(2, 3, 4)
	b := affine.Translation(1, -1, 0.5)

	stepwise := newTestTractogram(t, 4, 2)
	combined := stepwise.Copy()

	_, err := stepwise.ApplyAffine(b)
	require.NoError(t, err)
	_, err = stepwise.ApplyAffine(a)
	require.NoError(t, err)

	_, err = combined.ApplyAffine(affine.Compose(a, b))
	require.NoError(t, err)

	for i := 0; i < stepwise.Len(); i++ {
		got, _ := stepwise.Streamlines().Get(i)
		want, _ := combined.Streamlines().Get(i)
		assert.InDeltaSlice(t, want.Data, got.Data, 1e-12)
	}
	assertAffine(t, combined.AffineToRASMM(), stepwise.AffineToRASMM())
}

func TestToWorld(t *testing.T) {
	tg := newTestTractogram(t, 3, 2)
	original := tg.Copy()
	toWorld := affine.Compose(affine.Translation(10, 0, -5), affine.Scaling(0.5, 0.5, 2))
	require.NoError(t, tg.SetAffineToRASMM(toWorld))

	_, err := tg.ToWorld()
	require.NoError(t, err)
	assertAffine(t, affine.Identity(), tg.AffineToRASMM())

	first, _ := original.Streamlines().Get(0)
	want, err := affine.Apply(toWorld, first)
	require.NoError(t, err)
	got, _ := tg.Streamlines().Get(0)
	assert.InDeltaSlice(t, want.Data, got.Data, 1e-12)
}

func TestApplyAffineAcrossChunks(t *testing.T) {
	lengths := []int{3, 1, 4, 1, 5}
	chunked := newTestTractogram(t, lengths...)
	whole := chunked.Copy()
	a := affine.Compose(affine.Translation(1, 2, 3), affine.Scaling(2, 2, 2))

	// a chunk of 2 points splits several streamlines in half
	require.NoError(t, chunked.applyAffine(a, 2))
	_, err := whole.ApplyAffine(a)
	require.NoError(t, err)

	for i := range lengths {
		got, _ := chunked.Streamlines().Get(i)
		want, _ := whole.Streamlines().Get(i)
		assert.InDeltaSlice(t, want.Data, got.Data, 1e-12, "streamline %d", i)
	}
	assertAffine(t, whole.AffineToRASMM(), chunked.AffineToRASMM())
}

func TestApplyAffineSingular(t *testing.T) {
	tg := newTestTractogram(t, 2, 2)
	before := tg.Copy()

	_, err := tg.ApplyAffine(affine.Scaling(1, 0, 1))
	assert.ErrorIs(t, err, affine.ErrSingular)

	for i := 0; i < tg.Len(); i++ {
		got, _ := tg.Streamlines().Get(i)
		want, _ := before.Streamlines().Get(i)
		assert.Equal(t, want.Data, got.Data)
	}
	assertAffine(t, affine.Identity(), tg.AffineToRASMM())

	_, err = tg.ApplyAffine(mat.NewDense(3, 4, nil))
	assert.ErrorIs(t, err, affine.ErrShape)
}

func TestSelectMask(t *testing.T) {
	tg := newTestTractogram(t, 2, 3, 1, 4)

	sub, err := tg.Select(arrayseq.Mask([]bool{true, false, false, true}))
	require.NoError(t, err)
	assert.Equal(t, 2, sub.Len())
	assert.Equal(t, []int{2, 4}, sub.Streamlines().Lengths())
	require.NoError(t, sub.Validate())

	ids, _ := sub.DataPerStreamline().Get("id")
	assert.Equal(t, []float64{0, 3}, ids.Data)
	index, _ := sub.DataPerPoint().Get("index")
	assert.Equal(t, []int{2, 4}, index.Lengths())

	// the selection owns its data
	s, _ := sub.Streamlines().Get(0)
	s.Data[0] = math.Inf(1)
	orig, _ := tg.Streamlines().Get(0)
	assert.Equal(t, 0.0, orig.At(0, 0))

	_, err = tg.Select(arrayseq.Mask([]bool{true}))
	assert.ErrorIs(t, err, arrayseq.ErrShape)
}

func TestSelectRange(t *testing.T) {
	tg := newTestTractogram(t, 2, 3, 1, 4)

	sub, err := tg.Select(arrayseq.Range(1, arrayseq.End))
	require.NoError(t, err)
	assert.Equal(t, []int{3, 1, 4}, sub.Streamlines().Lengths())

	first, err := sub.Item(0)
	require.NoError(t, err)
	assert.Equal(t, []float64{1}, first.DataForStreamline["id"])
}

func TestCopyIsIndependent(t *testing.T) {
	tg := newTestTractogram(t, 2, 1)
	dup := tg.Copy()

	_, err := dup.ApplyAffine(affine.Translation(5, 5, 5))
	require.NoError(t, err)
	require.NoError(t, dup.DataPerStreamline().SetColumn("extra", []float64{1, 2}))

	s, _ := tg.Streamlines().Get(0)
	assert.Equal(t, []float64{0, 0, 0}, s.Row(0))
	assertAffine(t, affine.Identity(), tg.AffineToRASMM())
	assert.Equal(t, []string{"id"}, tg.DataPerStreamline().Keys())
}

func TestAppendAndExtend(t *testing.T) {
	tg, err := New(nil)
	require.NoError(t, err)

	src := newTestTractogram(t, 2, 3)
	for it := range src.Items() {
		require.NoError(t, tg.Append(it))
	}
	assert.Equal(t, []int{2, 3}, tg.Streamlines().Lengths())
	assert.Equal(t, []string{"id"}, tg.DataPerStreamline().Keys())
	require.NoError(t, tg.Validate())

	require.NoError(t, tg.Extend(newTestTractogram(t, 1)))
	assert.Equal(t, 3, tg.Len())
	ids, _ := tg.DataPerStreamline().Get("id")
	assert.Equal(t, []float64{0, 1, 0}, ids.Data)
	require.NoError(t, tg.Validate())
}

func TestExtendRejectsMismatch(t *testing.T) {
	tg := newTestTractogram(t, 2)

	bare, err := FromArrays(makeStreamlines(1))
	require.NoError(t, err)
	assert.ErrorIs(t, tg.Extend(bare), ErrDataMismatch)

	wide := newTestTractogram(t, 1)
	require.NoError(t, wide.DataPerStreamline().SetRows("id", [][]float64{{1, 2}}))
	assert.ErrorIs(t, tg.Extend(wide), ErrDataMismatch)

	assert.Equal(t, 1, tg.Len())
	require.NoError(t, tg.Validate())
}

func TestExtendChecksWidthOfEmptyPointData(t *testing.T) {
	narrow := arrayseq.New(1)
	require.NoError(t, narrow.Append(arrayseq.Column(nil)))
	tg, err := FromArrays([]arrayseq.Array{arrayseq.Points()},
		WithDataPerPoint(map[string]*arrayseq.ArraySequence{"c": narrow}))
	require.NoError(t, err)

	wide := arrayseq.New(2)
	require.NoError(t, wide.Append(arrayseq.Array{Rows: 2, Cols: 2, Data: []float64{1, 2, 3, 4}}))
	other, err := FromArrays(makeStreamlines(2),
		WithDataPerPoint(map[string]*arrayseq.ArraySequence{"c": wide}))
	require.NoError(t, err)

	assert.ErrorIs(t, tg.Extend(other), ErrDataMismatch)
	assert.Equal(t, 1, tg.Len())
	assert.Equal(t, 0, tg.Streamlines().TotalPoints())
	require.NoError(t, tg.Validate())

	c, _ := tg.DataPerPoint().Get("c")
	assert.Equal(t, []int{0}, c.Lengths())
}

func TestTransformThroughContainer(t *testing.T) {
	var c Container = newTestTractogram(t, 2, 2)

	lazy, err := c.Transform(affine.Translation(1, 0, 0), true)
	require.NoError(t, err)
	require.IsType(t, &LazyTractogram{}, lazy)

	// the eager container is untouched by a lazy transform
	it, err := c.Item(0)
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 0, 0}, it.Streamline.Row(0))

	eager, err := c.Transform(affine.Translation(1, 0, 0), false)
	require.NoError(t, err)
	assert.Same(t, c, eager)

	back, err := c.TransformToWorld(false)
	require.NoError(t, err)
	it, err = back.Item(0)
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{0, 0, 0}, it.Streamline.Row(0), 1e-12)
	assertAffine(t, affine.Identity(), back.AffineToRASMM())
}

func TestItemPoints(t *testing.T) {
	it := NewItem(arrayseq.Points([3]float64{1, 2, 3}, [3]float64{4, 5, 6}), nil, nil)

	var got [][]float64
	for p := range it.Points() {
		got = append(got, p)
	}
	if diff := cmp.Diff([][]float64{{1, 2, 3}, {4, 5, 6}}, got); diff != "" {
		t.Errorf("Points mismatch (-want +got):\n%s", diff)
	}
	assert.NotNil(t, it.DataForStreamline)
	assert.NotNil(t, it.DataForPoints)
}
