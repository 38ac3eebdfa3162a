package predict

import (
	"errors"
	"fmt"

	"github.com/ChrisMcGann/PrositGo/pkg/core"
	"github.com/ChrisMcGann/PrositGo/pkg/sequence"
	"github.com/ChrisMcGann/PrositGo/pkg/tensor"
)

// Input names the models reference in their configuration.
const (
	KeySequenceInteger       = "sequence_integer"
	KeyPrecursorChargeOneHot = "precursor_charge_onehot"
	KeyCollisionEnergy       = "collision_energy_aligned_normed"
)

// ErrMissingKey is returned when a model asks for an input the batch lacks.
var ErrMissingKey = errors.New("key is missing")

// Input is one named model input covering a range of batch rows.
// Exactly one of Float and Int is set.
type Input struct {
	Name  string
	Shape []int64
	Float []float32
	Int   []int32
}

// Batch is the tensorized form of a set of peptides plus the predictions
// written back by Predict.
type Batch struct {
	Peptides              []core.Peptide
	Tokens                [][]sequence.Token
	SequenceInteger       [][]int
	PrecursorChargeOneHot [][]float32
	CollisionEnergy       []float32 // collision energy / 100

	Intensities []*tensor.IonSet // set by intensity models
	IRT         []float64        // set by iRT models
}

// Len returns the number of peptides.
func (b *Batch) Len() int {
	return len(b.SequenceInteger)
}

// Tensorize converts peptides into model inputs.
func Tensorize(peptides []core.Peptide) (*Batch, error) {
	b := &Batch{
		Peptides:              peptides,
		Tokens:                make([][]sequence.Token, len(peptides)),
		SequenceInteger:       make([][]int, len(peptides)),
		PrecursorChargeOneHot: make([][]float32, len(peptides)),
		CollisionEnergy:       make([]float32, len(peptides)),
	}
	for i, p := range peptides {
		if err := p.Validate(); err != nil {
			return nil, fmt.Errorf("peptide %d (%s): %w", i, p.ModifiedSequence, err)
		}
		tokens, err := sequence.Tokenize(p.ModifiedSequence)
		if err != nil {
			return nil, fmt.Errorf("peptide %d: %w", i, err)
		}
		codes, err := sequence.Encode(tokens, core.MaxSequence)
		if err != nil {
			return nil, fmt.Errorf("peptide %d (%s): %w", i, p.ModifiedSequence, err)
		}
		onehot := make([]float32, core.NumPrecursorCharges)
		onehot[p.Charge-1] = 1

		b.Tokens[i] = tokens
		b.SequenceInteger[i] = codes
		b.PrecursorChargeOneHot[i] = onehot
		b.CollisionEnergy[i] = float32(p.CollisionEnergy / 100)
	}
	return b, nil
}

// Charges returns the precursor charge of every row, decoded from the one-hot.
func (b *Batch) Charges() []int {
	charges := make([]int, len(b.PrecursorChargeOneHot))
	for i, row := range b.PrecursorChargeOneHot {
		best, bestVal := 0, float32(-1)
		for j, v := range row {
			if v > bestVal {
				best, bestVal = j, v
			}
		}
		charges[i] = best + 1
	}
	return charges
}

// Lengths returns the residue count of every row.
func (b *Batch) Lengths() []int {
	lengths := make([]int, len(b.SequenceInteger))
	for i, codes := range b.SequenceInteger {
		lengths[i] = sequence.Length(codes)
	}
	return lengths
}

// Input extracts rows [lo, hi) of the named input.
func (b *Batch) Input(name string, lo, hi int) (Input, error) {
	rows := int64(hi - lo)
	switch name {
	case KeySequenceInteger:
		if b.SequenceInteger == nil {
			break
		}
		data := make([]int32, 0, (hi-lo)*core.MaxSequence)
		for _, codes := range b.SequenceInteger[lo:hi] {
			for _, c := range codes {
				data = append(data, int32(c))
			}
		}
		return Input{Name: name, Shape: []int64{rows, core.MaxSequence}, Int: data}, nil
	case KeyPrecursorChargeOneHot:
		if b.PrecursorChargeOneHot == nil {
			break
		}
		data := make([]float32, 0, (hi-lo)*core.NumPrecursorCharges)
		for _, row := range b.PrecursorChargeOneHot[lo:hi] {
			data = append(data, row...)
		}
		return Input{Name: name, Shape: []int64{rows, core.NumPrecursorCharges}, Float: data}, nil
	case KeyCollisionEnergy:
		if b.CollisionEnergy == nil {
			break
		}
		data := make([]float32, hi-lo)
		copy(data, b.CollisionEnergy[lo:hi])
		return Input{Name: name, Shape: []int64{rows, 1}, Float: data}, nil
	}
	return Input{}, fmt.Errorf("%s: %w", name, ErrMissingKey)
}
