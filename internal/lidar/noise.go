package lidar

import (
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/spatial/r3"
	"gonum.org/v1/gonum/stat/distuv"
)

// DropoutModel suppresses returns with a probability that rises toward the
// sensor's maximum range, following a Gaussian centred on MaxRange.
type DropoutModel struct {
	MaxRange      float64
	Amplitude     float64
	FalloffStdDev float64
}

// Enabled reports whether the model can ever drop a return.
func (m DropoutModel) Enabled() bool {
	return m.FalloffStdDev > 0
}

// Probability is the chance that a hit at distance is lost:
// Amplitude·exp(−½·((distance−MaxRange)/FalloffStdDev)²), or 0 when disabled.
func (m DropoutModel) Probability(distance float64) float64 {
	if !m.Enabled() {
		return 0
	}
	z := (distance - m.MaxRange) / m.FalloffStdDev
	return m.Amplitude * math.Exp(-0.5*z*z)
}

// Apply draws once for a hit and turns it into a miss when the draw falls
// below the dropout probability. Misses and a disabled model consume no
// randomness. It reports whether the sample was dropped.
func (m DropoutModel) Apply(s *BeamSample, src rand.Source) bool {
	if !s.Hit || !m.Enabled() {
		return false
	}
	p := m.Probability(s.RawDistance)
	r := distuv.Uniform{Min: 0, Max: 1, Src: src}.Rand()
	if r < p {
		s.Hit = false
		s.Dropped = true
		return true
	}
	return false
}

// Incidence is the cosine between the reversed beam and the surface normal:
// 1 for a perpendicular hit, 0 at grazing incidence and negative when the
// beam strikes the back of the normal.
func Incidence(beam, normal r3.Vec) float64 {
	return r3.Dot(r3.Scale(-1, beam), normal)
}

// RangeNoiseModel perturbs hit ranges with zero-mean Gaussian noise whose
// spread grows as the beam moves away from perpendicular incidence.
type RangeNoiseModel struct {
	Accuracy float64
}

// StdDev is Accuracy·(1−incidence). It is deliberately not clamped: a
// back-face hit (incidence < 0) yields more than Accuracy, and degenerate
// geometry can make it arbitrarily large.
func (m RangeNoiseModel) StdDev(incidence float64) float64 {
	return m.Accuracy * (1 - incidence)
}

// Apply draws one sample for a hit and moves the impact point along the
// beam by that amount, adding the same scalar to the distance.
func (m RangeNoiseModel) Apply(s *BeamSample, src rand.Source) {
	if !s.Hit {
		return
	}
	sigma := m.StdDev(s.Incidence)
	delta := distuv.Normal{Mu: 0, Sigma: sigma, Src: src}.Rand()
	s.ImpactPoint = r3.Add(s.ImpactPoint, r3.Scale(delta, s.Direction))
	s.Distance = s.RawDistance + delta
}
