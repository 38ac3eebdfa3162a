// Package score matches predicted fragment masses against observed peaks
// and measures spectral similarity.
package score

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

// DefaultTolerancePPM is the relative mass error accepted for a match.
const DefaultTolerancePPM = 10.0

// ObservedIntensities returns, for every predicted m/z, the largest observed
// intensity among peaks with |predicted-observed|/observed*1e6 < tolerancePPM.
// Fragments without a peak in the window get 0.
func ObservedIntensities(predictedMZ, observedMZ, observedIntensity []float64, tolerancePPM float64) ([]float64, error) {
	if len(observedMZ) != len(observedIntensity) {
		return nil, fmt.Errorf("observed spectrum has %d m/z values and %d intensities", len(observedMZ), len(observedIntensity))
	}

	matched := make([]float64, len(predictedMZ))
	for i, p := range predictedMZ {
		best := 0.0
		for j, o := range observedMZ {
			if math.Abs(p-o)/o*1e6 < tolerancePPM && observedIntensity[j] > best {
				best = observedIntensity[j]
			}
		}
		matched[i] = best
	}
	return matched, nil
}

// SpectralContrastAngle returns the normalized spectral contrast angle of
// two intensity vectors: 1 - 2*acos(min(dot(u1, u2), 1))/pi where u is the
// L2-normalized element-wise square root. 1 means identical shape and 0
// orthogonal. A vector with no intensity scores 0.
func SpectralContrastAngle(v1, v2 []float64) (float64, error) {
	if len(v1) != len(v2) {
		return 0, fmt.Errorf("intensity vectors differ in length: %d vs %d", len(v1), len(v2))
	}

	u1, ok1 := sqrtNormalize(v1)
	u2, ok2 := sqrtNormalize(v2)
	if !ok1 || !ok2 {
		return 0, nil
	}

	dot := floats.Dot(u1, u2)
	// Rounding leaves the dot product of equal unit vectors a few ulps off 1
	if dot > 1-dotSlack*float64(len(u1)) {
		dot = 1
	}
	return 1 - 2*math.Acos(dot)/math.Pi, nil
}

// dotSlack is the accepted rounding error per vector element.
const dotSlack = 64 * 0x1p-52

// sqrtNormalize returns sqrt(v)/||sqrt(v)||. Negative entries count as 0.
func sqrtNormalize(v []float64) ([]float64, bool) {
	out := make([]float64, len(v))
	for i, x := range v {
		if x > 0 {
			out[i] = math.Sqrt(x)
		}
	}
	norm := floats.Norm(out, 2)
	if norm == 0 || math.IsNaN(norm) {
		return nil, false
	}
	for i := range out {
		out[i] /= norm
	}
	return out, true
}
