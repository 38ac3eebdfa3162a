// Package compare scores predicted spectra against observed scans.
//
// A Comparer binds an observed spectrum source (an mzML run) to an optional
// Predictor. Predictions can be supplied in long form, as generic rows, or
// as a bare peptide that is predicted on the fly. All three reduce to the
// same matched-intensity vector scored by the normalized spectral contrast
// angle.
package compare

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/patrickmn/go-cache"

	"github.com/ChrisMcGann/PrositGo/pkg/convert"
	"github.com/ChrisMcGann/PrositGo/pkg/core"
	"github.com/ChrisMcGann/PrositGo/pkg/filter"
	"github.com/ChrisMcGann/PrositGo/pkg/predict"
	"github.com/ChrisMcGann/PrositGo/pkg/reader/mzml"
	"github.com/ChrisMcGann/PrositGo/pkg/score"
)

var (
	// ErrSpectraNotFound is returned by New when the observed spectra file does not exist.
	ErrSpectraNotFound = errors.New("observed spectra file not found")
	// ErrNoPredictor is returned by ScorePeptide when the Comparer has no Predictor.
	ErrNoPredictor = errors.New("no predictor configured")
)

// Source yields observed spectra by 1-based scan number.
type Source interface {
	Spectrum(scanNumber int) (*core.Spectrum, error)
}

// Options configure matching.
type Options struct {
	TolerancePPM float64         // 0 means score.DefaultTolerancePPM
	Filter       *filter.Config  // applied to observed peaks before matching
	Convert      convert.Options // used for on-the-fly predictions
}

// Result is one scored comparison.
type Result struct {
	ScanNumber int
	Score      float64
	Predicted  int // predicted fragments compared
	Matched    int // predicted fragments with an observed peak in tolerance
}

// Comparer scores predictions against one observed run.
type Comparer struct {
	source    Source
	predictor *predict.Predictor
	opts      Options
	scans     *cache.Cache
}

// New opens an mzML file. It fails before any prediction happens when the
// file is missing. predictor may be nil if only precomputed predictions are
// scored.
func New(mzmlPath string, predictor *predict.Predictor, opts Options) (*Comparer, error) {
	info, err := os.Stat(mzmlPath)
	if err != nil || info.IsDir() {
		return nil, fmt.Errorf("%w: %s", ErrSpectraNotFound, mzmlPath)
	}
	run, err := mzml.ReadFile(mzmlPath)
	if err != nil {
		return nil, err
	}
	return NewWithSource(run, predictor, opts), nil
}

// NewWithSource builds a Comparer over any spectrum source.
func NewWithSource(src Source, predictor *predict.Predictor, opts Options) *Comparer {
	if opts.TolerancePPM <= 0 {
		opts.TolerancePPM = score.DefaultTolerancePPM
	}
	return &Comparer{
		source:    src,
		predictor: predictor,
		opts:      opts,
		scans:     cache.New(cache.NoExpiration, 0),
	}
}

// Observed returns the filtered observed spectrum for a scan. Spectra are
// read once and shared between calls; callers must not modify them.
func (c *Comparer) Observed(scanNumber int) (*core.Spectrum, error) {
	key := strconv.Itoa(scanNumber)
	if v, ok := c.scans.Get(key); ok {
		return v.(*core.Spectrum), nil
	}

	spec, err := c.source.Spectrum(scanNumber)
	if err != nil {
		return nil, err
	}
	if c.opts.Filter != nil {
		if err := c.opts.Filter.Apply(spec); err != nil {
			return nil, fmt.Errorf("scan %d: %w", scanNumber, err)
		}
	}
	c.scans.Set(key, spec, cache.NoExpiration)
	return spec, nil
}

// ScoreVectors matches predicted fragments against a scan and scores them.
func (c *Comparer) ScoreVectors(scanNumber int, predictedMZ, predictedIntensity []float64) (Result, error) {
	obs, err := c.Observed(scanNumber)
	if err != nil {
		return Result{}, err
	}
	res, err := Spectra(obs, predictedMZ, predictedIntensity, c.opts.TolerancePPM)
	if err != nil {
		return Result{}, fmt.Errorf("scan %d: %w", scanNumber, err)
	}
	res.ScanNumber = scanNumber
	return res, nil
}

// ScoreLongForm scores one long form ("msms") prediction.
func (c *Comparer) ScoreLongForm(scanNumber int, row convert.LongFormRow) (Result, error) {
	return c.ScoreVectors(scanNumber, row.Masses, row.Intensities)
}

// ScoreGeneric scores generic rows. Rows of several peptides are scored
// together, which covers chimeric spectra.
func (c *Comparer) ScoreGeneric(scanNumber int, rows []convert.GenericRow) (Result, error) {
	mz, intensities := convert.GenericVectors(rows)
	return c.ScoreVectors(scanNumber, mz, intensities)
}

// ScorePeptide predicts a peptide and scores its generic rows. The rows are
// returned with the result.
func (c *Comparer) ScorePeptide(scanNumber int, p core.Peptide) (Result, []convert.GenericRow, error) {
	if c.predictor == nil {
		return Result{}, nil, ErrNoPredictor
	}
	// Read the scan first so a bad scan number fails before inference
	if _, err := c.Observed(scanNumber); err != nil {
		return Result{}, nil, err
	}
	b, err := c.predictor.PredictPeptides([]core.Peptide{p})
	if err != nil {
		return Result{}, nil, err
	}
	rows, err := convert.Generic(b, c.opts.Convert)
	if err != nil {
		return Result{}, nil, err
	}
	res, err := c.ScoreGeneric(scanNumber, rows)
	if err != nil {
		return Result{}, nil, err
	}
	return res, rows, nil
}

// WithPredictor returns a Comparer that shares the source and scan cache
// of c and predicts with p.
func (c *Comparer) WithPredictor(p *predict.Predictor) *Comparer {
	cp := *c
	cp.predictor = p
	return &cp
}

// Spectra scores predicted fragments against an observed spectrum.
func Spectra(observed *core.Spectrum, predictedMZ, predictedIntensity []float64, tolerancePPM float64) (Result, error) {
	if len(predictedMZ) != len(predictedIntensity) {
		return Result{}, fmt.Errorf("%d predicted masses but %d intensities", len(predictedMZ), len(predictedIntensity))
	}
	matched, err := score.ObservedIntensities(predictedMZ, observed.MZs(), observed.Intensities(), tolerancePPM)
	if err != nil {
		return Result{}, err
	}
	s, err := score.SpectralContrastAngle(matched, predictedIntensity)
	if err != nil {
		return Result{}, err
	}

	res := Result{ScanNumber: observed.ScanNumber, Score: s, Predicted: len(predictedMZ)}
	for _, v := range matched {
		if v > 0 {
			res.Matched++
		}
	}
	return res, nil
}
