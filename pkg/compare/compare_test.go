package compare

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/ChrisMcGann/PrositGo/pkg/convert"
	"github.com/ChrisMcGann/PrositGo/pkg/core"
	"github.com/ChrisMcGann/PrositGo/pkg/filter"
	"github.com/ChrisMcGann/PrositGo/pkg/predict"
	"github.com/ChrisMcGann/PrositGo/pkg/reader/mzml"
)

// fakeSource serves spectra from memory and counts reads.
type fakeSource struct {
	spectra map[int]*core.Spectrum
	reads   int
}

func (f *fakeSource) Spectrum(scanNumber int) (*core.Spectrum, error) {
	f.reads++
	s, ok := f.spectra[scanNumber]
	if !ok {
		return nil, fmt.Errorf("scan number %d: %w", scanNumber, mzml.ErrInvalidScanIndex)
	}
	cp := *s
	cp.Peaks = append([]core.Peak(nil), s.Peaks...)
	return &cp, nil
}

// fakeModel predicts y1 = 1 and b2(2+) = 0.5 for every row.
type fakeModel struct {
	calls int
}

func (f *fakeModel) Predict(inputs []predict.Input) ([][]float32, error) {
	f.calls++
	n := int(inputs[0].Shape[0])
	out := make([][]float32, n)
	for i := range out {
		row := make([]float32, 174)
		row[0] = 1   // y1, charge 1
		row[10] = .5 // b2, charge 2
		out[i] = row
	}
	return out, nil
}

func fakePredictor(t *testing.T, m predict.Model) *predict.Predictor {
	t.Helper()
	cfg, err := predict.NewConfig(predict.ModelConfig{
		X:              []string{predict.KeySequenceInteger, predict.KeyPrecursorChargeOneHot, predict.KeyCollisionEnergy},
		PredictionType: "intensity",
	})
	if err != nil {
		t.Fatal(err)
	}
	return &predict.Predictor{Spectra: &predict.Handle{Model: m, Config: cfg}}
}

// peptideFragments returns y1 and doubly charged b2 of PEPTIDE.
func peptideFragments(t *testing.T) (y1, b2 float64) {
	t.Helper()
	residues, err := core.ResidueMasses([]string{"P", "E", "P", "T", "I", "D", "E"}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if y1, err = core.FragmentMZ(residues, "y", 1, 1); err != nil {
		t.Fatal(err)
	}
	if b2, err = core.FragmentMZ(residues, "b", 2, 2); err != nil {
		t.Fatal(err)
	}
	return y1, b2
}

func observedPEPTIDE(t *testing.T) *fakeSource {
	y1, b2 := peptideFragments(t)
	return &fakeSource{spectra: map[int]*core.Spectrum{
		1: {ScanNumber: 1, Peaks: []core.Peak{
			{MZ: 50, Intensity: 7},
			{MZ: b2, Intensity: 400},
			{MZ: y1, Intensity: 800},
		}},
	}}
}

func TestNewMissingFile(t *testing.T) {
	m := &fakeModel{}
	_, err := New(filepath.Join(t.TempDir(), "missing.mzML"), fakePredictor(t, m), Options{})
	if !errors.Is(err, ErrSpectraNotFound) {
		t.Errorf("New() error = %v, want ErrSpectraNotFound", err)
	}
	if m.calls != 0 {
		t.Errorf("model called %d times before the file check", m.calls)
	}

	if _, err := New(t.TempDir(), nil, Options{}); !errors.Is(err, ErrSpectraNotFound) {
		t.Errorf("New(dir) error = %v, want ErrSpectraNotFound", err)
	}
}

func TestNewEmptyRun(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.mzML")
	doc := `<mzML xmlns="http://psi.hupo.org/ms/mzml"><run id="r"><spectrumList count="0"></spectrumList></run></mzML>`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}
	c, err := New(path, nil, Options{})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if _, err := c.Observed(1); !errors.Is(err, mzml.ErrInvalidScanIndex) {
		t.Errorf("Observed(1) error = %v, want ErrInvalidScanIndex", err)
	}
}

func TestScoreLongForm(t *testing.T) {
	y1, b2 := peptideFragments(t)
	c := NewWithSource(observedPEPTIDE(t), nil, Options{})

	res, err := c.ScoreLongForm(1, convert.LongFormRow{
		Masses:      []float64{y1, b2},
		Intensities: []float64{1, 0.5},
	})
	if err != nil {
		t.Fatalf("ScoreLongForm() error = %v", err)
	}
	if res.Score != 1 {
		t.Errorf("Score = %v, want exactly 1", res.Score)
	}
	if res.Matched != 2 || res.Predicted != 2 || res.ScanNumber != 1 {
		t.Errorf("Result = %+v", res)
	}
}

func TestScoreGenericChimeric(t *testing.T) {
	y1, b2 := peptideFragments(t)
	c := NewWithSource(observedPEPTIDE(t), nil, Options{})

	// A second peptide contributes a fragment that is absent in the scan
	rows := []convert.GenericRow{
		{ModifiedPeptide: "PEPTIDE", FragmentMz: y1, RelativeIntensity: 1},
		{ModifiedPeptide: "PEPTIDE", FragmentMz: b2, RelativeIntensity: 0.5},
		{ModifiedPeptide: "OTHER", FragmentMz: 900.5, RelativeIntensity: 1},
	}
	res, err := c.ScoreGeneric(1, rows)
	if err != nil {
		t.Fatalf("ScoreGeneric() error = %v", err)
	}
	if res.Matched != 2 || res.Predicted != 3 {
		t.Errorf("Result = %+v, want 2 of 3 matched", res)
	}
	if res.Score <= 0 || res.Score >= 1 {
		t.Errorf("Score = %v, want strictly between 0 and 1", res.Score)
	}
}

func TestScorePeptide(t *testing.T) {
	m := &fakeModel{}
	c := NewWithSource(observedPEPTIDE(t), fakePredictor(t, m), Options{})

	res, rows, err := c.ScorePeptide(1, core.Peptide{ModifiedSequence: "PEPTIDE", CollisionEnergy: 30, Charge: 2})
	if err != nil {
		t.Fatalf("ScorePeptide() error = %v", err)
	}
	if len(rows) != 2 {
		t.Errorf("ScorePeptide() returned %d rows, want 2", len(rows))
	}
	if res.Score != 1 {
		t.Errorf("Score = %v, want exactly 1", res.Score)
	}
	if m.calls != 1 {
		t.Errorf("model calls = %d, want 1", m.calls)
	}
}

func TestScorePeptideErrors(t *testing.T) {
	p := core.Peptide{ModifiedSequence: "PEPTIDE", CollisionEnergy: 30, Charge: 2}

	c := NewWithSource(observedPEPTIDE(t), nil, Options{})
	if _, _, err := c.ScorePeptide(1, p); !errors.Is(err, ErrNoPredictor) {
		t.Errorf("ScorePeptide() error = %v, want ErrNoPredictor", err)
	}

	m := &fakeModel{}
	c = c.WithPredictor(fakePredictor(t, m))
	if _, _, err := c.ScorePeptide(5, p); !errors.Is(err, mzml.ErrInvalidScanIndex) {
		t.Errorf("ScorePeptide(5) error = %v, want ErrInvalidScanIndex", err)
	}
	if m.calls != 0 {
		t.Errorf("model called %d times for an invalid scan", m.calls)
	}
}

func TestTolerance(t *testing.T) {
	src := &fakeSource{spectra: map[int]*core.Spectrum{
		1: {Peaks: []core.Peak{{MZ: 1000, Intensity: 1}}},
	}}
	// 15 ppm away from the observed peak
	pred := []float64{1000.015}

	res, err := NewWithSource(src, nil, Options{}).ScoreVectors(1, pred, []float64{1})
	if err != nil {
		t.Fatal(err)
	}
	if res.Matched != 0 || res.Score != 0 {
		t.Errorf("default tolerance Result = %+v, want no match", res)
	}

	res, err = NewWithSource(src, nil, Options{TolerancePPM: 20}).ScoreVectors(1, pred, []float64{1})
	if err != nil {
		t.Fatal(err)
	}
	if res.Matched != 1 || math.Abs(res.Score-1) > 1e-9 {
		t.Errorf("20 ppm Result = %+v, want a match scoring 1", res)
	}
}

func TestObservedCachedAndFiltered(t *testing.T) {
	src := observedPEPTIDE(t)
	c := NewWithSource(src, nil, Options{Filter: &filter.Config{TopN: 2}})

	for i := 0; i < 3; i++ {
		spec, err := c.Observed(1)
		if err != nil {
			t.Fatalf("Observed() error = %v", err)
		}
		if len(spec.Peaks) != 2 {
			t.Errorf("Observed() = %d peaks, want 2 after top-N", len(spec.Peaks))
		}
	}
	if src.reads != 1 {
		t.Errorf("source read %d times, want 1", src.reads)
	}
}

func TestSpectraLengthMismatch(t *testing.T) {
	if _, err := Spectra(&core.Spectrum{}, []float64{1, 2}, []float64{1}, 10); err == nil {
		t.Error("Spectra() expected error for mismatched predicted vectors")
	}
}
