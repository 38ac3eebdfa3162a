package sanitize

import (
	"math/rand"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/ChrisMcGann/PrositGo/pkg/tensor"
)

func randomSet(l tensor.Layout, seed int64) *tensor.IonSet {
	rng := rand.New(rand.NewSource(seed))
	set := tensor.NewIonSet(l)
	for i := range set.Values {
		set.Values[i] = rng.Float64()*2 - 0.5
	}
	return set
}

func TestPredictionMasksPositionsAndCharges(t *testing.T) {
	l := tensor.DefaultLayout()
	set := randomSet(l, 1)

	got := Prediction(set, 7, 2, DefaultRules(l))

	for pos := 0; pos < l.MaxIon; pos++ {
		for ion := 0; ion < l.IonTypes; ion++ {
			for z := 0; z < l.Charges; z++ {
				v := got.At(pos, ion, 0, z)
				if pos >= 6 && v != 0 {
					t.Fatalf("position %d ion %d charge %d = %v, want 0 (beyond peptide)", pos, ion, z+1, v)
				}
				if z >= 2 && v != 0 {
					t.Fatalf("position %d ion %d charge %d = %v, want 0 (above precursor charge)", pos, ion, z+1, v)
				}
				if v < 0 {
					t.Fatalf("position %d ion %d charge %d = %v, want non-negative", pos, ion, z+1, v)
				}
			}
		}
	}
}

func TestPredictionBasePeak(t *testing.T) {
	l := tensor.Layout{MaxIon: 2, IonTypes: 1, Losses: 1, Charges: 1}
	set := &tensor.IonSet{Layout: l, Values: []float64{0.5, 0.25}}

	got := Prediction(set, 3, 1, DefaultRules(l))
	if diff := cmp.Diff([]float64{1, 0.5}, got.Values); diff != "" {
		t.Errorf("Prediction() mismatch (-want +got):\n%s", diff)
	}
	if set.Values[0] != 0.5 {
		t.Error("Prediction() modified its input")
	}
}

func TestPredictionAllMasked(t *testing.T) {
	l := tensor.DefaultLayout()
	set := randomSet(l, 2)
	got := Prediction(set, 1, 1, DefaultRules(l))
	for i, v := range got.Values {
		if v != 0 {
			t.Fatalf("Values[%d] = %v, want 0 for single-residue peptide", i, v)
		}
	}
}

func TestPredictionIdempotent(t *testing.T) {
	l := tensor.DefaultLayout()
	rules := DefaultRules(l)
	for seed := int64(0); seed < 20; seed++ {
		set := randomSet(l, seed)
		length := int(seed%29) + 2
		charge := int(seed%6) + 1

		once := Prediction(set, length, charge, rules)
		twice := Prediction(once, length, charge, rules)
		if diff := cmp.Diff(once.Values, twice.Values); diff != "" {
			t.Fatalf("seed %d: sanitize not idempotent (-once +twice):\n%s", seed, diff)
		}
	}
}

func TestPredictionUnsupportedIonType(t *testing.T) {
	l := tensor.DefaultLayout()
	rules := DefaultRules(l)
	rules.IonTypes[1] = false // drop b ions

	got := Prediction(randomSet(l, 3), 10, 3, rules)
	for pos := 0; pos < l.MaxIon; pos++ {
		for z := 0; z < l.Charges; z++ {
			if v := got.At(pos, 1, 0, z); v != 0 {
				t.Fatalf("b ion at position %d charge %d = %v, want 0", pos, z+1, v)
			}
		}
	}
}

func TestPredictionFragmentChargeCap(t *testing.T) {
	l := tensor.DefaultLayout()
	rules := DefaultRules(l)
	rules.MaxFragmentCharge = 1

	got := Prediction(randomSet(l, 4), 10, 4, rules)
	for pos := 0; pos < l.MaxIon; pos++ {
		if v := got.At(pos, 0, 0, 1); v != 0 {
			t.Fatalf("charge 2 at position %d = %v, want 0", pos, v)
		}
	}
}

func TestBatchLengthMismatch(t *testing.T) {
	l := tensor.DefaultLayout()
	sets := []*tensor.IonSet{randomSet(l, 5)}
	if _, err := Batch(sets, []int{7, 8}, []int{2}, DefaultRules(l)); err == nil {
		t.Error("Batch() expected error for mismatched lengths")
	}
	out, err := Batch(sets, []int{7}, []int{2}, DefaultRules(l))
	if err != nil || len(out) != 1 {
		t.Errorf("Batch() = %d sets, %v", len(out), err)
	}
}
