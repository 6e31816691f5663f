// Package affine provides the 4x4 homogeneous transforms used to move
// streamline points between voxel, scanner and RAS+ millimetre spaces.
package affine

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"tractspace/pkg/arrayseq"
)

// Common errors
var (
	ErrShape    = errors.New("affine must be a 4x4 matrix")
	ErrSingular = errors.New("affine is singular")
)

// Tolerance is the absolute tolerance used when deciding whether an affine is
// the identity.
const Tolerance = 1e-8

// Identity returns a new 4x4 identity matrix.
func Identity() *mat.Dense {
	return mat.NewDense(4, 4, []float64{
		1, 0, 0, 0,
		0, 1, 0, 0,
		0, 0, 1, 0,
		0, 0, 0, 1,
	})
}

// Translation returns an affine that moves points by (x, y, z).
func Translation(x, y, z float64) *mat.Dense {
	a := Identity()
	a.Set(0, 3, x)
	a.Set(1, 3, y)
	a.Set(2, 3, z)
	return a
}

// Scaling returns an affine that scales each axis independently.
func Scaling(x, y, z float64) *mat.Dense {
	a := Identity()
	a.Set(0, 0, x)
	a.Set(1, 1, y)
	a.Set(2, 2, z)
	return a
}

// FromRows builds an affine from four rows of four values.
func FromRows(rows [][]float64) (*mat.Dense, error) {
	if len(rows) != 4 {
		return nil, fmt.Errorf("%w: got %d rows", ErrShape, len(rows))
	}
	data := make([]float64, 0, 16)
	for i, r := range rows {
		if len(r) != 4 {
			return nil, fmt.Errorf("%w: row %d has %d values", ErrShape, i, len(r))
		}
		data = append(data, r...)
	}
	return mat.NewDense(4, 4, data), nil
}

// Rows returns the affine as four rows of four values.
func Rows(a mat.Matrix) [][]float64 {
	r, c := a.Dims()
	out := make([][]float64, r)
	for i := range out {
		out[i] = make([]float64, c)
		for j := range out[i] {
			out[i][j] = a.At(i, j)
		}
	}
	return out
}

// Validate checks that a is a non-nil 4x4 matrix.
func Validate(a mat.Matrix) error {
	if a == nil {
		return fmt.Errorf("%w: got nil", ErrShape)
	}
	if r, c := a.Dims(); r != 4 || c != 4 {
		return fmt.Errorf("%w: got %dx%d", ErrShape, r, c)
	}
	return nil
}

// Inverse returns the inverse of a. It fails with ErrSingular when a is
// singular or too ill-conditioned to invert reliably.
func Inverse(a mat.Matrix) (*mat.Dense, error) {
	if err := Validate(a); err != nil {
		return nil, err
	}
	var inv mat.Dense
	if err := inv.Inverse(a); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSingular, err)
	}
	return &inv, nil
}

// Compose returns the product a·b, the transform that applies b then a.
func Compose(a, b mat.Matrix) *mat.Dense {
	var out mat.Dense
	out.Mul(a, b)
	return &out
}

// IsIdentity reports whether a is the identity within Tolerance.
func IsIdentity(a mat.Matrix) bool {
	if Validate(a) != nil {
		return false
	}
	return mat.EqualApprox(a, Identity(), Tolerance)
}

// Apply transforms every row of pts, an n x 3 array of points, and returns the
// result in a new array. The bottom row of a is ignored.
func Apply(a mat.Matrix, pts arrayseq.Array) (arrayseq.Array, error) {
	if err := Validate(a); err != nil {
		return arrayseq.Array{}, err
	}
	if pts.Rows == 0 {
		return arrayseq.Array{Rows: 0, Cols: 3, Data: []float64{}}, nil
	}
	if pts.Cols != 3 {
		return arrayseq.Array{}, fmt.Errorf("%w: points must have 3 columns, got %d", arrayseq.ErrShape, pts.Cols)
	}

	linear := mat.NewDense(3, 3, []float64{
		a.At(0, 0), a.At(0, 1), a.At(0, 2),
		a.At(1, 0), a.At(1, 1), a.At(1, 2),
		a.At(2, 0), a.At(2, 1), a.At(2, 2),
	})
	offset := []float64{a.At(0, 3), a.At(1, 3), a.At(2, 3)}

	out := mat.NewDense(pts.Rows, 3, nil)
	out.Mul(pts.Dense(), linear.T())

	raw := out.RawMatrix()
	for i := 0; i < raw.Rows; i++ {
		floats.Add(raw.Data[i*raw.Stride:i*raw.Stride+3], offset)
	}
	return arrayseq.NewArray(raw.Rows, 3, raw.Data)
}

// Clone returns a copy of a as a *mat.Dense.
func Clone(a mat.Matrix) *mat.Dense {
	return mat.DenseCopyOf(a)
}
