// Package filter provides peak filtering applied to observed and library
// spectra before matching
package filter

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"

	"github.com/ChrisMcGann/PrositGo/pkg/core"
)

// Config holds filtering configuration
type Config struct {
	TopN            int      // Keep only top N most intense peaks (0 = no limit)
	IntensityCutoff float64  // Keep only peaks above this % of base peak (0 = no cutoff)
	IonTypes        []string // Keep only specified ion types (nil = all)
	MaxCharge       int      // Drop annotated fragments above this charge (0 = no limit)
	MinMZ           float64  // Drop peaks below this m/z (0 = no limit)
	MaxMZ           float64  // Drop peaks above this m/z (0 = no limit)
}

// Apply applies all configured filters to a spectrum
func (c *Config) Apply(spec *core.Spectrum) error {
	RemoveZeroIntensityPeaks(spec)

	// Annotation based filters first
	if len(c.IonTypes) > 0 || c.MaxCharge > 0 {
		if err := c.filterByAnnotation(spec); err != nil {
			return err
		}
	}

	if c.MinMZ > 0 || c.MaxMZ > 0 {
		c.filterByMZ(spec)
	}

	// Apply intensity filters
	if c.IntensityCutoff > 0 {
		c.filterByIntensity(spec)
	}

	// Apply top-N filter
	if c.TopN > 0 {
		c.filterTopN(spec)
	}

	// Ensure peaks are sorted after all filtering
	spec.SortPeaks()

	return nil
}

// filterByAnnotation keeps only peaks whose annotation passes the ion type
// and charge filters. Unannotated peaks are dropped.
func (c *Config) filterByAnnotation(spec *core.Spectrum) error {
	var filtered []core.Peak
	for _, peak := range spec.Peaks {
		if peak.Annotation == "" {
			continue
		}
		ion, err := ParseAnnotation(peak.Annotation)
		if err != nil {
			return fmt.Errorf("%s: %w", spec.Name(), err)
		}
		if len(c.IonTypes) > 0 && !matchesIonType(ion.IonType, c.IonTypes) {
			continue
		}
		if c.MaxCharge > 0 && ion.Charge > c.MaxCharge {
			continue
		}
		filtered = append(filtered, peak)
	}

	spec.Peaks = filtered
	return nil
}

// matchesIonType checks if an ion type is one of the allowed ion types
func matchesIonType(ionType string, ionTypes []string) bool {
	for _, t := range ionTypes {
		if t == ionType {
			return true
		}
	}
	return false
}

// filterByMZ removes peaks outside the m/z window
func (c *Config) filterByMZ(spec *core.Spectrum) {
	var filtered []core.Peak
	for _, peak := range spec.Peaks {
		if c.MinMZ > 0 && peak.MZ < c.MinMZ {
			continue
		}
		if c.MaxMZ > 0 && peak.MZ > c.MaxMZ {
			continue
		}
		filtered = append(filtered, peak)
	}
	spec.Peaks = filtered
}

// filterByIntensity removes peaks below the intensity cutoff percentage
func (c *Config) filterByIntensity(spec *core.Spectrum) {
	if len(spec.Peaks) == 0 {
		return
	}

	// Find maximum intensity
	maxIntensity := 0.0
	for _, peak := range spec.Peaks {
		if peak.Intensity > maxIntensity {
			maxIntensity = peak.Intensity
		}
	}

	// Calculate threshold
	threshold := (c.IntensityCutoff / 100.0) * maxIntensity

	// Filter peaks
	var filtered []core.Peak
	for _, peak := range spec.Peaks {
		if peak.Intensity >= threshold {
			filtered = append(filtered, peak)
		}
	}

	spec.Peaks = filtered
}

// filterTopN keeps only the N most intense peaks
func (c *Config) filterTopN(spec *core.Spectrum) {
	if len(spec.Peaks) <= c.TopN {
		return
	}

	// Create a copy and sort by intensity descending
	peaks := make([]core.Peak, len(spec.Peaks))
	copy(peaks, spec.Peaks)

	sort.SliceStable(peaks, func(i, j int) bool {
		return peaks[i].Intensity > peaks[j].Intensity
	})

	// Keep only top N
	spec.Peaks = peaks[:c.TopN]
}

// Ion is a parsed fragment annotation
type Ion struct {
	IonType string
	Number  int
	Charge  int
}

// Accepts "y3", "b2(2+)" and the library form "b2^2"
var annotationRe = regexp.MustCompile(`^([a-z])(\d+)(?:\^(\d+)|\((\d+)\+\))?`)

// ParseAnnotation parses annotations like "y3", "b2(2+)", "y10^3"
func ParseAnnotation(annotation string) (Ion, error) {
	matches := annotationRe.FindStringSubmatch(annotation)
	if matches == nil {
		return Ion{}, fmt.Errorf("invalid ion annotation format: %s", annotation)
	}

	ion := Ion{IonType: matches[1], Charge: 1}
	n, err := strconv.Atoi(matches[2])
	if err != nil {
		return Ion{}, fmt.Errorf("invalid position in annotation %s: %w", annotation, err)
	}
	ion.Number = n

	for _, z := range matches[3:] {
		if z == "" {
			continue
		}
		if ion.Charge, err = strconv.Atoi(z); err != nil {
			return Ion{}, fmt.Errorf("invalid charge in annotation %s: %w", annotation, err)
		}
	}

	return ion, nil
}

// RemoveZeroIntensityPeaks removes peaks with zero or negative intensity
func RemoveZeroIntensityPeaks(spec *core.Spectrum) {
	var filtered []core.Peak
	for _, peak := range spec.Peaks {
		if peak.Intensity > 0 {
			filtered = append(filtered, peak)
		}
	}
	spec.Peaks = filtered
}
