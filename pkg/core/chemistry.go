// Package core provides chemistry calculations for peptide and fragment masses
package core

import (
	"fmt"
	"math"
	"strings"
)

// Atomic masses (monoisotopic)
const (
	MassH = 1.0078250321
	MassC = 12.0000000000
	MassN = 14.0030740052
	MassO = 15.9949146221
	MassS = 31.9720706900

	// Proton mass for charge calculations
	ProtonMass = 1.00727646688

	MassH2O = 2*MassH + MassO
)

// AminoAcidComposition stores elemental composition
type AminoAcidComposition struct {
	C, H, N, O, S int
}

// Mass returns the monoisotopic mass of the composition.
func (c AminoAcidComposition) Mass() float64 {
	return float64(c.C)*MassC +
		float64(c.H)*MassH +
		float64(c.N)*MassN +
		float64(c.O)*MassO +
		float64(c.S)*MassS
}

// AminoAcidMasses maps amino acid one-letter codes to residue composition
var AminoAcidMasses = map[rune]AminoAcidComposition{
	'A': {C: 3, H: 5, N: 1, O: 1, S: 0},
	'R': {C: 6, H: 12, N: 4, O: 1, S: 0},
	'N': {C: 4, H: 6, N: 2, O: 2, S: 0},
	'D': {C: 4, H: 5, N: 1, O: 3, S: 0},
	'C': {C: 3, H: 5, N: 1, O: 1, S: 1},
	'E': {C: 5, H: 7, N: 1, O: 3, S: 0},
	'Q': {C: 5, H: 8, N: 2, O: 2, S: 0},
	'G': {C: 2, H: 3, N: 1, O: 1, S: 0},
	'H': {C: 6, H: 7, N: 3, O: 1, S: 0},
	'I': {C: 6, H: 11, N: 1, O: 1, S: 0},
	'L': {C: 6, H: 11, N: 1, O: 1, S: 0},
	'K': {C: 6, H: 12, N: 2, O: 1, S: 0},
	'M': {C: 5, H: 9, N: 1, O: 1, S: 1},
	'F': {C: 9, H: 9, N: 1, O: 1, S: 0},
	'P': {C: 5, H: 7, N: 1, O: 1, S: 0},
	'S': {C: 3, H: 5, N: 1, O: 2, S: 0},
	'T': {C: 4, H: 7, N: 1, O: 2, S: 0},
	'W': {C: 11, H: 10, N: 2, O: 1, S: 0},
	'Y': {C: 9, H: 9, N: 1, O: 2, S: 0},
	'V': {C: 5, H: 9, N: 1, O: 1, S: 0},
}

// FixedModifications are applied to every occurrence of a residue.
// The models treat every cysteine as carbamidomethylated.
var FixedModifications = map[rune]string{
	'C': "Carbamidomethyl",
}

// CalculatePeptideMass computes monoisotopic mass of a peptide sequence
// including modifications, then returns the m/z for a given charge state.
func CalculatePeptideMass(sequence string, charge int, modifications []Modification) float64 {
	mass := CalculateNeutralMass(sequence, modifications)
	return (mass + float64(charge)*ProtonMass) / float64(charge)
}

// CalculateNeutralMass computes the neutral monoisotopic mass of a peptide
func CalculateNeutralMass(sequence string, modifications []Modification) float64 {
	comp := AminoAcidComposition{H: 2, O: 1} // Add water

	for _, aa := range sequence {
		if aaComp, ok := AminoAcidMasses[aa]; ok {
			comp.C += aaComp.C
			comp.H += aaComp.H
			comp.N += aaComp.N
			comp.O += aaComp.O
			comp.S += aaComp.S
		}
	}

	mass := comp.Mass()
	for _, mod := range modifications {
		mass += mod.Mass
	}
	return mass
}

// ResidueMasses returns the residue mass of every token of a modified
// sequence. A token is a residue letter optionally followed by a
// parenthesised modification tag, e.g. "M(ox)". Fixed modifications are
// added from db.
func ResidueMasses(tokens []string, db *ModDatabase) ([]float64, error) {
	if db == nil {
		db = DefaultModDatabase()
	}
	masses := make([]float64, len(tokens))
	for i, tok := range tokens {
		if tok == "" {
			return nil, fmt.Errorf("empty token at position %d", i)
		}
		aa := rune(tok[0])
		comp, ok := AminoAcidMasses[aa]
		if !ok {
			return nil, fmt.Errorf("unknown residue '%c' at position %d", aa, i)
		}
		mass := comp.Mass()

		if name, ok := FixedModifications[aa]; ok {
			shift, _ := db.GetMass(name)
			mass += shift
		}

		if len(tok) > 1 {
			tag := strings.TrimSuffix(strings.TrimPrefix(tok[1:], "("), ")")
			shift, ok := db.GetMass(tag)
			if !ok {
				return nil, fmt.Errorf("unknown modification '%s' at position %d", tag, i)
			}
			mass += shift
		}
		masses[i] = mass
	}
	return masses, nil
}

// FragmentMZ returns the m/z of fragment ion number n (1-based) of the
// given series at the given charge. ionType is "b" or "y".
func FragmentMZ(residues []float64, ionType string, n, charge int) (float64, error) {
	if n < 1 || n >= len(residues) {
		return 0, fmt.Errorf("fragment number %d out of range for %d residues", n, len(residues))
	}
	if charge < 1 {
		return 0, fmt.Errorf("fragment charge must be positive, got %d", charge)
	}

	var neutral float64
	switch ionType {
	case "b":
		for _, m := range residues[:n] {
			neutral += m
		}
	case "y":
		for _, m := range residues[len(residues)-n:] {
			neutral += m
		}
		neutral += MassH2O
	default:
		return 0, fmt.Errorf("unsupported ion type '%s'", ionType)
	}

	return (neutral + float64(charge)*ProtonMass) / float64(charge), nil
}

// PrecursorMZ returns the precursor m/z of a peptide given its residue masses.
func PrecursorMZ(residues []float64, charge int) float64 {
	neutral := MassH2O
	for _, m := range residues {
		neutral += m
	}
	return (neutral + float64(charge)*ProtonMass) / float64(charge)
}

// RoundFloat rounds a float to n decimal places
func RoundFloat(val float64, precision int) float64 {
	ratio := math.Pow(10, float64(precision))
	return math.Round(val*ratio) / ratio
}
