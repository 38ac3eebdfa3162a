// Package convert renders predictions as tables: the generic format with
// one row per fragment ion and the long ("msms") format with one row per
// peptide and semicolon-joined peak lists.
package convert

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/ChrisMcGann/PrositGo/pkg/core"
	"github.com/ChrisMcGann/PrositGo/pkg/predict"
	"github.com/ChrisMcGann/PrositGo/pkg/sequence"
)

// ErrNoIntensities is returned when a batch has not been predicted.
var ErrNoIntensities = errors.New("batch has no predicted intensities")

// Options control which fragments are emitted.
type Options struct {
	MinIntensity float64           // fragments at or below this (and all zeros) are dropped
	Mods         *core.ModDatabase // resolves modification tags to masses
}

// GenericRow is one fragment ion.
type GenericRow struct {
	ModifiedPeptide   string
	StrippedPeptide   string
	PrecursorCharge   int
	PrecursorMz       float64
	IRT               float64 // NaN when no iRT model ran
	FragmentNumber    int
	FragmentType      string
	FragmentCharge    int
	FragmentLossType  string
	FragmentMz        float64
	RelativeIntensity float64
}

// LongFormRow is one predicted spectrum.
type LongFormRow struct {
	ModifiedSequence string
	Charge           int
	CollisionEnergy  float64
	RetentionTime    float64 // NaN when no iRT model ran
	Masses           []float64
	Matches          []string
	Intensities      []float64
}

// fragment is one emitted ion of one peptide.
type fragment struct {
	number, charge int
	ionType, loss  string
	mz, intensity  float64
}

// fragments walks the sanitized ion set of peptide i.
func fragments(b *predict.Batch, i int, opts Options) ([]fragment, float64, error) {
	set := b.Intensities[i]
	residues, err := core.ResidueMasses(sequence.Strings(b.Tokens[i]), opts.Mods)
	if err != nil {
		return nil, 0, fmt.Errorf("peptide %d (%s): %w", i, b.Peptides[i].ModifiedSequence, err)
	}
	precursor := core.PrecursorMZ(residues, b.Peptides[i].Charge)

	l := set.Layout
	var out []fragment
	for pos := 0; pos < l.MaxIon; pos++ {
		for ion := 0; ion < l.IonTypes && ion < len(core.IonTypes); ion++ {
			for loss := 0; loss < l.Losses && loss < len(core.Losses); loss++ {
				for z := 0; z < l.Charges; z++ {
					v := set.At(pos, ion, loss, z)
					if v <= 0 || v <= opts.MinIntensity {
						continue
					}
					mz, err := core.FragmentMZ(residues, core.IonTypes[ion], pos+1, z+1)
					if err != nil {
						return nil, 0, fmt.Errorf("peptide %d (%s): %w", i, b.Peptides[i].ModifiedSequence, err)
					}
					out = append(out, fragment{
						number:    pos + 1,
						charge:    z + 1,
						ionType:   core.IonTypes[ion],
						loss:      core.Losses[loss],
						mz:        mz,
						intensity: v,
					})
				}
			}
		}
	}
	return out, precursor, nil
}

func checkBatch(b *predict.Batch) error {
	if b == nil || b.Intensities == nil {
		return ErrNoIntensities
	}
	if len(b.Intensities) != len(b.Peptides) || len(b.Tokens) != len(b.Peptides) {
		return fmt.Errorf("batch has %d peptides, %d token lists and %d predictions",
			len(b.Peptides), len(b.Tokens), len(b.Intensities))
	}
	return nil
}

func irtAt(b *predict.Batch, i int) float64 {
	if i < len(b.IRT) {
		return b.IRT[i]
	}
	return math.NaN()
}

// Generic converts a predicted batch to one row per fragment ion.
func Generic(b *predict.Batch, opts Options) ([]GenericRow, error) {
	if err := checkBatch(b); err != nil {
		return nil, err
	}
	var rows []GenericRow
	for i, p := range b.Peptides {
		frags, precursor, err := fragments(b, i, opts)
		if err != nil {
			return nil, err
		}
		stripped := sequence.Strip(b.Tokens[i])
		for _, f := range frags {
			rows = append(rows, GenericRow{
				ModifiedPeptide:   p.ModifiedSequence,
				StrippedPeptide:   stripped,
				PrecursorCharge:   p.Charge,
				PrecursorMz:       precursor,
				IRT:               irtAt(b, i),
				FragmentNumber:    f.number,
				FragmentType:      f.ionType,
				FragmentCharge:    f.charge,
				FragmentLossType:  f.loss,
				FragmentMz:        f.mz,
				RelativeIntensity: f.intensity,
			})
		}
	}
	return rows, nil
}

// LongForm converts a predicted batch to one row per peptide.
func LongForm(b *predict.Batch, opts Options) ([]LongFormRow, error) {
	if err := checkBatch(b); err != nil {
		return nil, err
	}
	rows := make([]LongFormRow, len(b.Peptides))
	for i, p := range b.Peptides {
		frags, _, err := fragments(b, i, opts)
		if err != nil {
			return nil, err
		}
		row := LongFormRow{
			ModifiedSequence: p.ModifiedSequence,
			Charge:           p.Charge,
			CollisionEnergy:  p.CollisionEnergy,
			RetentionTime:    irtAt(b, i),
			Masses:           make([]float64, len(frags)),
			Matches:          make([]string, len(frags)),
			Intensities:      make([]float64, len(frags)),
		}
		for j, f := range frags {
			row.Masses[j] = f.mz
			row.Matches[j] = Annotation(f.ionType, f.number, f.charge)
			row.Intensities[j] = f.intensity
		}
		rows[i] = row
	}
	return rows, nil
}

// Annotation renders a fragment label such as "y3" or "b5(2+)".
func Annotation(ionType string, number, charge int) string {
	if charge <= 1 {
		return ionType + strconv.Itoa(number)
	}
	return fmt.Sprintf("%s%d(%d+)", ionType, number, charge)
}

// ParseLongForm splits semicolon-joined masses and intensities into the
// two vectors the matcher consumes.
func ParseLongForm(masses, intensities string) ([]float64, []float64, error) {
	mz, err := splitFloats(masses)
	if err != nil {
		return nil, nil, fmt.Errorf("masses: %w", err)
	}
	in, err := splitFloats(intensities)
	if err != nil {
		return nil, nil, fmt.Errorf("intensities: %w", err)
	}
	if len(mz) != len(in) {
		return nil, nil, fmt.Errorf("%d masses but %d intensities", len(mz), len(in))
	}
	return mz, in, nil
}

func splitFloats(s string) ([]float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ";")
	out := make([]float64, len(parts))
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, fmt.Errorf("value %d '%s': %w", i, p, err)
		}
		out[i] = v
	}
	return out, nil
}

func joinFloats(vs []float64) string {
	parts := make([]string, len(vs))
	for i, v := range vs {
		parts[i] = strconv.FormatFloat(v, 'f', -1, 64)
	}
	return strings.Join(parts, ";")
}

// GenericVectors returns the fragment m/z and relative intensity columns.
func GenericVectors(rows []GenericRow) ([]float64, []float64) {
	mz := make([]float64, len(rows))
	in := make([]float64, len(rows))
	for i, r := range rows {
		mz[i] = r.FragmentMz
		in[i] = r.RelativeIntensity
	}
	return mz, in
}
