// Package core provides the intermediate representation (IR) models and validation logic
// for peptides and spectra shared by the prediction and scoring pipeline.
package core

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

// Peptide is one prediction request.
type Peptide struct {
	ModifiedSequence string  // Tagged sequence, e.g. "PEPM(ox)IDE"
	CollisionEnergy  float64 // Normalized collision energy
	Charge           int     // Precursor charge state
}

// Validate checks that a peptide request can be tensorized.
func (p Peptide) Validate() error {
	var errs []string
	if strings.Trim(p.ModifiedSequence, "_") == "" {
		errs = append(errs, "sequence is required")
	}
	if p.Charge < 1 || p.Charge > NumPrecursorCharges {
		errs = append(errs, fmt.Sprintf("charge must be between 1 and %d", NumPrecursorCharges))
	}
	if math.IsNaN(p.CollisionEnergy) || p.CollisionEnergy < 0 {
		errs = append(errs, "collision energy must be non-negative")
	}
	if len(errs) > 0 {
		return &ValidationError{
			Field:   "Peptide",
			Message: strings.Join(errs, "; "),
		}
	}
	return nil
}

// Spectrum represents a single mass spectrum with associated metadata.
// Observed spectra read from mzML carry no sequence; library spectra do.
type Spectrum struct {
	Sequence    string  // Bare peptide sequence (optional)
	Charge      int     // Precursor charge state (optional)
	PrecursorMZ float64 // Precursor m/z (optional)
	Peaks       []Peak  // Fragment peaks

	// Optional metadata
	ScanNumber      int      // 1-based scan number within the source file
	RetentionTime   *float64 // RT or iRT
	CollisionEnergy *float64 // Normalized collision energy
	Modifications   []Modification

	// Internal tracking
	SourceFile   string
	SourceFormat string // mzml, msp
}

// Peak represents a single m/z, intensity pair with optional metadata.
type Peak struct {
	MZ         float64
	Intensity  float64
	Annotation string // Ion annotation (e.g., "y3", "b2(2+)")
}

// Modification represents a peptide modification with position and mass shift.
type Modification struct {
	Mass     float64
	Position int    // 0-based position
	Name     string // Modification name (e.g., "Carbamidomethyl", "Oxidation")
}

// ValidationError represents an error found during validation.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error in %s: %s", e.Field, e.Message)
}

// Validate checks that a spectrum can be used for matching.
func (s *Spectrum) Validate() error {
	var errs []string

	if s.Sequence != "" && s.Charge <= 0 {
		errs = append(errs, "charge must be positive")
	}
	if len(s.Peaks) == 0 {
		errs = append(errs, "at least one peak is required")
	}

	for i, peak := range s.Peaks {
		if math.IsNaN(peak.MZ) || math.IsInf(peak.MZ, 0) {
			errs = append(errs, fmt.Sprintf("peak %d has invalid m/z", i))
		}
		if math.IsNaN(peak.Intensity) || math.IsInf(peak.Intensity, 0) {
			errs = append(errs, fmt.Sprintf("peak %d has invalid intensity", i))
		}
		if peak.MZ <= 0 {
			errs = append(errs, fmt.Sprintf("peak %d m/z must be positive", i))
		}
		if peak.Intensity < 0 {
			errs = append(errs, fmt.Sprintf("peak %d intensity must be non-negative", i))
		}
	}

	if !s.ArePeaksSorted() {
		errs = append(errs, "peaks must be sorted by m/z")
	}

	if len(errs) > 0 {
		return &ValidationError{
			Field:   "Spectrum",
			Message: strings.Join(errs, "; "),
		}
	}

	return nil
}

// ArePeaksSorted checks if peaks are sorted by m/z in ascending order.
func (s *Spectrum) ArePeaksSorted() bool {
	for i := 1; i < len(s.Peaks); i++ {
		if s.Peaks[i].MZ < s.Peaks[i-1].MZ {
			return false
		}
	}
	return true
}

// SortPeaks sorts peaks by m/z in ascending order.
func (s *Spectrum) SortPeaks() {
	sort.Slice(s.Peaks, func(i, j int) bool {
		return s.Peaks[i].MZ < s.Peaks[j].MZ
	})
}

// MZs returns the m/z values of all peaks.
func (s *Spectrum) MZs() []float64 {
	out := make([]float64, len(s.Peaks))
	for i, p := range s.Peaks {
		out[i] = p.MZ
	}
	return out
}

// Intensities returns the intensities of all peaks.
func (s *Spectrum) Intensities() []float64 {
	out := make([]float64, len(s.Peaks))
	for i, p := range s.Peaks {
		out[i] = p.Intensity
	}
	return out
}

// TotalModMass returns the sum of all modification masses.
func (s *Spectrum) TotalModMass() float64 {
	total := 0.0
	for _, mod := range s.Modifications {
		total += mod.Mass
	}
	return total
}

// Name returns "Sequence/Charge" for identified spectra and "scan=N" otherwise.
func (s *Spectrum) Name() string {
	if s.Sequence == "" {
		return fmt.Sprintf("scan=%d", s.ScanNumber)
	}
	return fmt.Sprintf("%s/%d", s.Sequence, s.Charge)
}
