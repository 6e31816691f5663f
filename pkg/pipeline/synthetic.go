package pipeline

import (
	"fmt"
	"math"
	"math/rand"

	"tractspace/internal/models"
	"tractspace/pkg/arrayseq"
	"tractspace/pkg/tractogram"
)

// stepSize is the distance in mm between consecutive generated points.
const stepSize = 0.5

// Synthesize generates a reproducible tractogram of smooth random walks.
// Each streamline starts in a 100 mm cube around the origin and keeps a
// slowly drifting heading. Point scalars hold values in [0, 1); streamline
// scalars hold the streamline's arc length divided by the key's position in
// the list, so the keys are distinguishable.
func Synthesize(p models.SyntheticParams) (*tractogram.Tractogram, error) {
	if p.NumStreamlines < 0 {
		return nil, fmt.Errorf("number of streamlines must not be negative, got %d", p.NumStreamlines)
	}
	if p.MinPoints < 0 || p.MaxPoints < p.MinPoints {
		return nil, fmt.Errorf("invalid point range [%d, %d]", p.MinPoints, p.MaxPoints)
	}

	rng := rand.New(rand.NewSource(p.Seed))

	streamlines := arrayseq.New(3)
	pointData := make(map[string]*arrayseq.ArraySequence, len(p.PointScalars))
	for _, k := range p.PointScalars {
		pointData[k] = arrayseq.New(1)
	}
	streamlineData := make(map[string][]float64, len(p.StreamlineScalars))

	for i := 0; i < p.NumStreamlines; i++ {
		n := p.MinPoints + rng.Intn(p.MaxPoints-p.MinPoints+1)
		pts, length := randomWalk(rng, n)
		if err := streamlines.Append(pts); err != nil {
			return nil, err
		}

		for _, k := range p.PointScalars {
			values := make([]float64, n)
			for j := range values {
				values[j] = rng.Float64()
			}
			if err := pointData[k].Append(arrayseq.Column(values)); err != nil {
				return nil, fmt.Errorf("point scalar %q: %w", k, err)
			}
		}
		for j, k := range p.StreamlineScalars {
			streamlineData[k] = append(streamlineData[k], length/float64(j+1))
		}
	}

	perStreamline := make(map[string]arrayseq.Array, len(streamlineData))
	for _, k := range p.StreamlineScalars {
		values := streamlineData[k]
		if values == nil {
			values = []float64{}
		}
		perStreamline[k] = arrayseq.Column(values)
	}

	return tractogram.New(streamlines,
		tractogram.WithDataPerStreamline(perStreamline),
		tractogram.WithDataPerPoint(pointData),
	)
}

// randomWalk returns n points and the length of the path through them.
func randomWalk(rng *rand.Rand, n int) (arrayseq.Array, float64) {
	pts := make([][3]float64, n)
	if n == 0 {
		return arrayseq.Points(), 0
	}

	for d := range 3 {
		pts[0][d] = rng.Float64()*100 - 50
	}
	theta := rng.Float64() * 2 * math.Pi
	phi := math.Acos(2*rng.Float64() - 1)

	length := 0.0
	for j := 1; j < n; j++ {
		theta += rng.NormFloat64() * 0.1
		phi += rng.NormFloat64() * 0.1
		step := [3]float64{
			math.Sin(phi) * math.Cos(theta),
			math.Sin(phi) * math.Sin(theta),
			math.Cos(phi),
		}
		for d := range 3 {
			pts[j][d] = pts[j-1][d] + stepSize*step[d]
		}
		length += stepSize
	}
	return arrayseq.Points(pts...), length
}
