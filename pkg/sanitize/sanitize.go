// Package sanitize removes physically impossible entries from fragment ion
// predictions and rescales them to the base peak.
package sanitize

import (
	"fmt"

	"gonum.org/v1/gonum/floats"

	"github.com/ChrisMcGann/PrositGo/pkg/core"
	"github.com/ChrisMcGann/PrositGo/pkg/tensor"
)

// Rules configures which entries of a prediction are kept.
type Rules struct {
	MaxFragmentCharge int    // fragments above this charge are zeroed
	IonTypes          []bool // per ion type axis index; false zeroes the series
	Losses            []bool // per loss axis index; false zeroes the loss
}

// DefaultRules keeps every ion type and loss of l and caps fragment charge
// at the model maximum.
func DefaultRules(l tensor.Layout) Rules {
	r := Rules{
		MaxFragmentCharge: core.MaxFragmentCharge,
		IonTypes:          make([]bool, l.IonTypes),
		Losses:            make([]bool, l.Losses),
	}
	for i := range r.IonTypes {
		r.IonTypes[i] = true
	}
	for i := range r.Losses {
		r.Losses[i] = true
	}
	return r
}

func (r Rules) ionSupported(i int) bool {
	return r.IonTypes == nil || (i < len(r.IonTypes) && r.IonTypes[i])
}

func (r Rules) lossSupported(i int) bool {
	return r.Losses == nil || (i < len(r.Losses) && r.Losses[i])
}

// Prediction returns a sanitized copy of set for a peptide of the given
// residue length and precursor charge. Negative values are clipped, entries
// at position >= length-1 or with a fragment charge above
// min(precursorCharge, MaxFragmentCharge) are zeroed, unsupported ion types
// and losses are zeroed, and the result is divided by its base peak.
// Applying Prediction to its own output returns an equal set.
func Prediction(set *tensor.IonSet, length, precursorCharge int, r Rules) *tensor.IonSet {
	out := set.Clone()
	l := out.Layout

	maxCharge := precursorCharge
	if r.MaxFragmentCharge > 0 && r.MaxFragmentCharge < maxCharge {
		maxCharge = r.MaxFragmentCharge
	}
	lastPos := length - 1

	for pos := 0; pos < l.MaxIon; pos++ {
		for ion := 0; ion < l.IonTypes; ion++ {
			for loss := 0; loss < l.Losses; loss++ {
				for z := 0; z < l.Charges; z++ {
					idx := l.Index(pos, ion, loss, z)
					switch {
					case pos >= lastPos,
						z >= maxCharge,
						!r.ionSupported(ion),
						!r.lossSupported(loss),
						out.Values[idx] < 0:
						out.Values[idx] = 0
					}
				}
			}
		}
	}

	if len(out.Values) > 0 {
		// Divide rather than scale by 1/base so the base peak becomes exactly 1.
		if base := floats.Max(out.Values); base > 0 {
			for i := range out.Values {
				out.Values[i] /= base
			}
		}
	}
	return out
}

// Batch sanitizes one prediction per peptide.
func Batch(sets []*tensor.IonSet, lengths, charges []int, r Rules) ([]*tensor.IonSet, error) {
	if len(lengths) != len(sets) || len(charges) != len(sets) {
		return nil, fmt.Errorf("sanitize: %d predictions, %d lengths, %d charges", len(sets), len(lengths), len(charges))
	}
	out := make([]*tensor.IonSet, len(sets))
	for i, s := range sets {
		out[i] = Prediction(s, lengths[i], charges[i], r)
	}
	return out, nil
}
