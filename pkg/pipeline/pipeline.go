// Package pipeline runs the transform workflow of tractxform: build a
// tractogram, move it with an affine either in place or lazily, then walk the
// result once to summarise it.
package pipeline

import (
	"fmt"
	"math"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"tractspace/internal/models"
	"tractspace/internal/monitoring"
	"tractspace/pkg/affine"
	"tractspace/pkg/tractogram"
)

// Params holds the run parameters.
type Params struct {
	// Synthetic describes the generated input tractogram.
	Synthetic models.SyntheticParams

	// Affine is applied to the streamlines.
	Affine mat.Matrix

	// AffineToRASMM is recorded on the input before anything is applied.
	// Nil keeps the identity.
	AffineToRASMM mat.Matrix

	// Lazy defers the affine until the streamlines are iterated.
	Lazy bool

	// ToWorld brings the result to RAS+mm after Affine.
	ToWorld bool
}

// Runner drives one run. It is not safe for concurrent use.
type Runner struct {
	params  *Params
	input   *tractogram.Tractogram
	output  tractogram.Container
	summary models.Summary
}

// NewRunner creates a runner with the provided parameters.
func NewRunner(params *Params) *Runner {
	return &Runner{params: params}
}

// SetInput replaces the generated input with t. The runner transforms t in
// place when the run is eager.
func (r *Runner) SetInput(t *tractogram.Tractogram) {
	r.input = t
}

// Process builds the input if none was set, applies the transforms and
// summarises the output.
func (r *Runner) Process() error {
	if r.params.Affine == nil {
		return fmt.Errorf("no affine to apply: %w", affine.ErrShape)
	}

	if r.input == nil {
		monitoring.Logf("generating %d synthetic streamlines (seed %d)",
			r.params.Synthetic.NumStreamlines, r.params.Synthetic.Seed)
		t, err := Synthesize(r.params.Synthetic)
		if err != nil {
			return fmt.Errorf("generating input: %w", err)
		}
		r.input = t
	}
	if r.params.AffineToRASMM != nil {
		if err := r.input.SetAffineToRASMM(r.params.AffineToRASMM); err != nil {
			return fmt.Errorf("recording affine to RAS+mm: %w", err)
		}
	}

	start := time.Now()
	out, err := r.input.Transform(r.params.Affine, r.params.Lazy)
	if err != nil {
		return fmt.Errorf("applying affine: %w", err)
	}
	if r.params.ToWorld {
		out, err = out.TransformToWorld(r.params.Lazy)
		if err != nil {
			return fmt.Errorf("moving to world space: %w", err)
		}
	}
	r.output = out

	r.summary = summarize(out)
	r.summary.Elapsed = time.Since(start)
	if r.params.Lazy {
		r.summary.Mode = "lazy"
	} else {
		r.summary.Mode = "eager"
	}
	return nil
}

// Output returns the transformed container, or nil before Process.
func (r *Runner) Output() tractogram.Container {
	return r.output
}

// GetSummary returns the summary of the last run.
func (r *Runner) GetSummary() models.Summary {
	return r.summary
}

// summarize walks c once. Len is read after the pass so a lazy container
// has already cached its count.
func summarize(c tractogram.Container) models.Summary {
	var (
		lengths []float64
		coords  [3][]float64
	)
	for it := range c.Items() {
		lengths = append(lengths, float64(it.Len()))
		for p := range it.Points() {
			for d := range 3 {
				coords[d] = append(coords[d], p[d])
			}
		}
	}

	s := models.Summary{
		NumStreamlines: c.Len(),
		NumPoints:      len(coords[0]),
		AffineToRASMM:  affine.Rows(c.AffineToRASMM()),
	}
	if len(lengths) > 0 {
		s.MeanPoints, s.StdDevPoints = meanStdDev(lengths)
	}
	for d := range 3 {
		if len(coords[d]) == 0 {
			continue
		}
		mean, std := meanStdDev(coords[d])
		s.Axes[d] = models.AxisStats{
			Mean:   mean,
			StdDev: std,
			Min:    floats.Min(coords[d]),
			Max:    floats.Max(coords[d]),
		}
	}
	return s
}

// meanStdDev returns the mean and the sample standard deviation, which is
// zero for a single value.
func meanStdDev(x []float64) (float64, float64) {
	mean, std := stat.MeanStdDev(x, nil)
	if math.IsNaN(std) {
		std = 0
	}
	return mean, std
}
