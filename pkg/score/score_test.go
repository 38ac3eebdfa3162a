package score

import (
	"math"
	"math/rand"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestObservedIntensities(t *testing.T) {
	tests := []struct {
		name      string
		predicted []float64
		obsMZ     []float64
		obsInt    []float64
		want      []float64
	}{
		{
			name:      "match inside window only",
			predicted: []float64{500.0},
			obsMZ:     []float64{500.001, 600.0},
			obsInt:    []float64{1000, 5000},
			want:      []float64{1000},
		},
		{
			name:      "no peak in window",
			predicted: []float64{500.0, 700.0},
			obsMZ:     []float64{500.01, 699.9},
			obsInt:    []float64{10, 20},
			want:      []float64{0, 0},
		},
		{
			name:      "maximum of near duplicates",
			predicted: []float64{1000.0},
			obsMZ:     []float64{999.996, 1000.0, 1000.004},
			obsInt:    []float64{30, 10, 50},
			want:      []float64{50},
		},
		{
			name:      "empty observed spectrum",
			predicted: []float64{300.0},
			obsMZ:     nil,
			obsInt:    nil,
			want:      []float64{0},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ObservedIntensities(tt.predicted, tt.obsMZ, tt.obsInt, DefaultTolerancePPM)
			if err != nil {
				t.Fatalf("ObservedIntensities() error = %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("ObservedIntensities() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestObservedIntensitiesMismatchedArrays(t *testing.T) {
	if _, err := ObservedIntensities([]float64{1}, []float64{1, 2}, []float64{1}, DefaultTolerancePPM); err == nil {
		t.Error("ObservedIntensities() expected error for mismatched observed arrays")
	}
}

func TestSpectralContrastAngleSelf(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for n := 1; n < 50; n++ {
		v := make([]float64, n)
		for i := range v {
			v[i] = rng.Float64() * 1000
		}
		got, err := SpectralContrastAngle(v, v)
		if err != nil {
			t.Fatalf("SpectralContrastAngle() error = %v", err)
		}
		if got != 1 {
			t.Errorf("SpectralContrastAngle(v, v) with %d elements = %v, want exactly 1", n, got)
		}
		// Scaling changes nothing after normalization
		w := make([]float64, n)
		for i := range v {
			w[i] = v[i] * 3.7
		}
		if got, _ := SpectralContrastAngle(v, w); got != 1 {
			t.Errorf("SpectralContrastAngle(v, 3.7v) with %d elements = %v, want exactly 1", n, got)
		}
	}
}

func TestSpectralContrastAngleSymmetric(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	for trial := 0; trial < 25; trial++ {
		v1 := make([]float64, 20)
		v2 := make([]float64, 20)
		for i := range v1 {
			v1[i] = rng.Float64()
			v2[i] = rng.Float64()
		}
		a, _ := SpectralContrastAngle(v1, v2)
		b, _ := SpectralContrastAngle(v2, v1)
		if a != b {
			t.Errorf("score(v1, v2) = %v, score(v2, v1) = %v", a, b)
		}
		if a < 0 || a > 1 {
			t.Errorf("score = %v, want within [0, 1]", a)
		}
	}
}

func TestSpectralContrastAngleEdges(t *testing.T) {
	orth, err := SpectralContrastAngle([]float64{1, 0}, []float64{0, 1})
	if err != nil {
		t.Fatalf("SpectralContrastAngle() error = %v", err)
	}
	if math.Abs(orth) > 1e-12 {
		t.Errorf("orthogonal score = %v, want 0", orth)
	}

	scaled, _ := SpectralContrastAngle([]float64{1, 4, 9}, []float64{100, 400, 900})
	if scaled != 1 {
		t.Errorf("scaled score = %v, want exactly 1", scaled)
	}

	near, _ := SpectralContrastAngle([]float64{1, 1}, []float64{1, 1.0001})
	if near >= 1 || near < 0.9999 {
		t.Errorf("near-identical score = %v, want just below 1", near)
	}

	zero, err := SpectralContrastAngle([]float64{0, 0}, []float64{1, 1})
	if err != nil || zero != 0 {
		t.Errorf("zero vector score = %v, %v; want 0, nil", zero, err)
	}

	if _, err := SpectralContrastAngle([]float64{1}, []float64{1, 2}); err == nil {
		t.Error("expected error for mismatched lengths")
	}
}
