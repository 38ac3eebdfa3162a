// Package predict runs fragmentation and retention time models over
// tensorized peptides and post-processes their output.
package predict

import (
	"errors"
	"fmt"

	"github.com/ChrisMcGann/PrositGo/pkg/core"
	"github.com/ChrisMcGann/PrositGo/pkg/sanitize"
	"github.com/ChrisMcGann/PrositGo/pkg/tensor"
)

// Model is an inference backend. Predict returns one output row per input
// row. Implementations need not be safe for concurrent use.
type Model interface {
	Predict(inputs []Input) ([][]float32, error)
}

// Handle pairs a loaded model with its configuration. Every call to Predict
// takes a handle explicitly; separate handles share no state.
type Handle struct {
	Model  Model
	Config Config
}

// Predict runs h over every row of b in chunks of Config.BatchSize and
// stores the post-processed result on b: sanitized fragment intensities
// for Intensity models, rescaled iRT for RetentionTime models.
func Predict(b *Batch, h *Handle) error {
	if h == nil || h.Model == nil {
		return errors.New("predict: no model loaded")
	}
	cfg := h.Config

	// Fail on a missing key before any inference runs.
	for _, name := range cfg.Inputs {
		if _, err := b.Input(name, 0, 0); err != nil {
			return err
		}
	}

	size := cfg.BatchSize
	if size <= 0 {
		size = core.PredBatchSize
	}

	n := b.Len()
	rows := make([][]float32, 0, n)
	for lo := 0; lo < n; lo += size {
		hi := min(lo+size, n)
		inputs := make([]Input, len(cfg.Inputs))
		for i, name := range cfg.Inputs {
			in, err := b.Input(name, lo, hi)
			if err != nil {
				return err
			}
			inputs[i] = in
		}
		out, err := h.Model.Predict(inputs)
		if err != nil {
			return fmt.Errorf("predict rows %d-%d: %w", lo, hi, err)
		}
		if len(out) != hi-lo {
			return fmt.Errorf("predict rows %d-%d: model returned %d rows", lo, hi, len(out))
		}
		rows = append(rows, out...)
	}

	switch k := cfg.Kind.(type) {
	case Intensity:
		return storeIntensities(b, rows, cfg.Layout, cfg.Rules)
	case RetentionTime:
		return storeIRT(b, rows, k)
	default:
		return fmt.Errorf("%q: %w", KindName(cfg.Kind), ErrUnknownPredictionType)
	}
}

func storeIntensities(b *Batch, rows [][]float32, l tensor.Layout, r sanitize.Rules) error {
	if b.SequenceInteger == nil {
		return fmt.Errorf("%s: %w", KeySequenceInteger, ErrMissingKey)
	}
	if b.PrecursorChargeOneHot == nil {
		return fmt.Errorf("%s: %w", KeyPrecursorChargeOneHot, ErrMissingKey)
	}
	sets, err := tensor.DecodeBatch(rows, l)
	if err != nil {
		return err
	}
	sanitized, err := sanitize.Batch(sets, b.Lengths(), b.Charges(), r)
	if err != nil {
		return err
	}
	b.Intensities = sanitized
	return nil
}

func storeIRT(b *Batch, rows [][]float32, k RetentionTime) error {
	irt := make([]float64, len(rows))
	for i, row := range rows {
		if len(row) != 1 {
			return fmt.Errorf("row %d: iRT model returned %d values, want 1: %w", i, len(row), tensor.ErrShapeMismatch)
		}
		irt[i] = k.Rescale(float64(row[0]))
	}
	b.IRT = irt
	return nil
}

// Predictor runs a fragmentation model and, optionally, an iRT model.
type Predictor struct {
	Spectra *Handle
	IRT     *Handle
}

// PredictBatch fills intensities and, if an iRT handle is set, iRT values.
func (p *Predictor) PredictBatch(b *Batch) error {
	if err := Predict(b, p.Spectra); err != nil {
		return fmt.Errorf("intensity model: %w", err)
	}
	if p.IRT != nil {
		if err := Predict(b, p.IRT); err != nil {
			return fmt.Errorf("iRT model: %w", err)
		}
	}
	return nil
}

// PredictPeptides tensorizes peptides and predicts them.
func (p *Predictor) PredictPeptides(peptides []core.Peptide) (*Batch, error) {
	b, err := Tensorize(peptides)
	if err != nil {
		return nil, err
	}
	if err := p.PredictBatch(b); err != nil {
		return nil, err
	}
	return b, nil
}
