package models

import (
	"time"
)

// SyntheticParams describes a randomly generated tractogram
type SyntheticParams struct {
	// NumStreamlines is the number of streamlines to generate
	NumStreamlines int

	// MinPoints and MaxPoints bound the number of points per streamline
	MinPoints, MaxPoints int

	// Seed makes the dataset reproducible
	Seed int64

	// PointScalars are the per-point data keys, one column each
	PointScalars []string

	// StreamlineScalars are the per-streamline data keys, one column each
	StreamlineScalars []string
}

// AxisStats summarises one coordinate axis over all points
type AxisStats struct {
	Mean, StdDev float64
	Min, Max     float64
}

// Summary reports what a transform run produced
type Summary struct {
	// Mode is "eager" or "lazy"
	Mode string

	// NumStreamlines and NumPoints count what was iterated
	NumStreamlines int
	NumPoints      int

	// MeanPoints and StdDevPoints describe the streamline lengths
	MeanPoints, StdDevPoints float64

	// Axes holds x, y and z statistics of the output points
	Axes [3]AxisStats

	// AffineToRASMM is the affine recorded on the output
	AffineToRASMM [][]float64

	// Elapsed is the time spent transforming and iterating
	Elapsed time.Duration
}
