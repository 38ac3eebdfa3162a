// Package tensor decodes flat model output into fragment ion intensities
// indexed by position, ion type, neutral loss and charge.
package tensor

import (
	"errors"
	"fmt"

	"github.com/ChrisMcGann/PrositGo/pkg/core"
)

// ErrShapeMismatch is returned when a flat vector does not match a layout.
var ErrShapeMismatch = errors.New("shape mismatch")

// Layout describes the axes of one decoded prediction.
type Layout struct {
	MaxIon   int // fragment positions
	IonTypes int
	Losses   int
	Charges  int
}

// DefaultLayout returns the layout of the published fragmentation models.
func DefaultLayout() Layout {
	return Layout{
		MaxIon:   core.MaxIon,
		IonTypes: len(core.IonTypes),
		Losses:   len(core.Losses),
		Charges:  core.MaxFragmentCharge,
	}
}

// Width is the flat length of one peptide's prediction.
func (l Layout) Width() int {
	return l.MaxIon * l.IonTypes * l.Losses * l.Charges
}

// Index returns the flat offset of an entry. Position is the outermost
// axis and charge the innermost.
func (l Layout) Index(pos, ion, loss, charge int) int {
	return ((pos*l.IonTypes+ion)*l.Losses+loss)*l.Charges + charge
}

// Validate reports whether all axes are positive.
func (l Layout) Validate() error {
	if l.MaxIon < 1 || l.IonTypes < 1 || l.Losses < 1 || l.Charges < 1 {
		return fmt.Errorf("invalid layout %+v: every axis must be positive", l)
	}
	return nil
}

// IonSet is the structured view of one peptide's prediction.
type IonSet struct {
	Layout Layout
	Values []float64
}

// NewIonSet returns a zeroed ion set.
func NewIonSet(l Layout) *IonSet {
	return &IonSet{Layout: l, Values: make([]float64, l.Width())}
}

// At returns the value at (pos, ion, loss, charge). Charge is a 0-based
// index, so index 0 holds singly charged fragments.
func (s *IonSet) At(pos, ion, loss, charge int) float64 {
	return s.Values[s.Layout.Index(pos, ion, loss, charge)]
}

// Set stores v at (pos, ion, loss, charge).
func (s *IonSet) Set(pos, ion, loss, charge int, v float64) {
	s.Values[s.Layout.Index(pos, ion, loss, charge)] = v
}

// Clone returns a deep copy.
func (s *IonSet) Clone() *IonSet {
	values := make([]float64, len(s.Values))
	copy(values, s.Values)
	return &IonSet{Layout: s.Layout, Values: values}
}

// Flatten returns the flat vector in model output order.
func (s *IonSet) Flatten() []float32 {
	out := make([]float32, len(s.Values))
	for i, v := range s.Values {
		out[i] = float32(v)
	}
	return out
}

// Decode reshapes a flat prediction vector. The length must equal
// l.Width() exactly.
func Decode(flat []float32, l Layout) (*IonSet, error) {
	if err := l.Validate(); err != nil {
		return nil, err
	}
	if len(flat) != l.Width() {
		return nil, fmt.Errorf("got %d values, layout %dx%dx%dx%d needs %d: %w",
			len(flat), l.MaxIon, l.IonTypes, l.Losses, l.Charges, l.Width(), ErrShapeMismatch)
	}
	set := NewIonSet(l)
	for i, v := range flat {
		set.Values[i] = float64(v)
	}
	return set, nil
}

// DecodeBatch decodes one prediction per row.
func DecodeBatch(rows [][]float32, l Layout) ([]*IonSet, error) {
	sets := make([]*IonSet, len(rows))
	for i, row := range rows {
		set, err := Decode(row, l)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		sets[i] = set
	}
	return sets, nil
}
