// Package msp provides streaming readers for MSP (Prosit) format spectral libraries
package msp

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/ChrisMcGann/PrositGo/pkg/core"
)

// Reader provides streaming access to MSP format files
type Reader struct {
	scanner     *bufio.Scanner
	modDB       *core.ModDatabase
	lineNum     int
	currentSpec *core.Spectrum
	err         error
}

// NewReader creates a new MSP reader
func NewReader(r io.Reader, modDB *core.ModDatabase) *Reader {
	if modDB == nil {
		modDB = core.DefaultModDatabase()
	}

	return &Reader{
		scanner: bufio.NewScanner(r),
		modDB:   modDB,
	}
}

// Next advances to the next spectrum. Returns false when no more spectra or error.
func (r *Reader) Next() bool {
	r.currentSpec = nil

	spec, err := r.readSpectrum()
	if err != nil {
		if err != io.EOF {
			r.err = err
		}
		return false
	}

	r.currentSpec = spec
	return true
}

// Spectrum returns the current spectrum
func (r *Reader) Spectrum() *core.Spectrum {
	return r.currentSpec
}

// Err returns any error encountered during reading
func (r *Reader) Err() error {
	return r.err
}

// Peptide returns the prediction request matching the current spectrum.
// A missing collision energy falls back to defaultCE.
func (r *Reader) Peptide(defaultCE float64) (core.Peptide, error) {
	spec := r.currentSpec
	if spec == nil {
		return core.Peptide{}, fmt.Errorf("no current spectrum")
	}
	seq, err := r.modDB.ModifiedSequence(spec.Sequence, spec.Modifications)
	if err != nil {
		return core.Peptide{}, fmt.Errorf("%s: %w", spec.Name(), err)
	}
	ce := defaultCE
	if spec.CollisionEnergy != nil {
		ce = *spec.CollisionEnergy
	}
	return core.Peptide{ModifiedSequence: seq, CollisionEnergy: ce, Charge: spec.Charge}, nil
}

// readSpectrum reads a single spectrum entry from the MSP file
func (r *Reader) readSpectrum() (*core.Spectrum, error) {
	spec := &core.Spectrum{
		SourceFormat: "msp",
		Peaks:        []core.Peak{},
	}

	var numPeaks int
	inPeaks := false

	for r.scanner.Scan() {
		r.lineNum++
		line := strings.TrimSpace(r.scanner.Text())

		// Skip empty lines between entries
		if line == "" {
			continue
		}

		if !inPeaks {
			switch {
			case strings.HasPrefix(line, "Name: "):
				name := strings.TrimPrefix(line, "Name: ")
				if err := r.parseName(spec, name); err != nil {
					return nil, fmt.Errorf("line %d: %w", r.lineNum, err)
				}
			case strings.HasPrefix(line, "MW: "):
				// Skip MW, the precursor is recalculated from residues
			case strings.HasPrefix(line, "Comment: "):
				comment := strings.TrimPrefix(line, "Comment: ")
				if err := r.parseComment(spec, comment); err != nil {
					return nil, fmt.Errorf("line %d: %w", r.lineNum, err)
				}
			case strings.HasPrefix(line, "Num peaks: "), strings.HasPrefix(line, "Num Peaks: "):
				n, err := strconv.Atoi(strings.TrimSpace(line[len("Num peaks: "):]))
				if err != nil {
					return nil, fmt.Errorf("line %d: invalid num peaks: %w", r.lineNum, err)
				}
				if spec.Sequence == "" {
					return nil, fmt.Errorf("line %d: peak list before Name", r.lineNum)
				}
				if n == 0 {
					return spec, nil
				}
				numPeaks = n
				inPeaks = true
			}
			continue
		}

		peak, err := r.parsePeak(line)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", r.lineNum, err)
		}
		spec.Peaks = append(spec.Peaks, peak)
		if len(spec.Peaks) >= numPeaks {
			return spec, nil
		}
	}

	if err := r.scanner.Err(); err != nil {
		return nil, err
	}

	// Truncated final entry
	if spec.Sequence != "" {
		if inPeaks {
			return nil, fmt.Errorf("line %d: %s: expected %d peaks, got %d",
				r.lineNum, spec.Name(), numPeaks, len(spec.Peaks))
		}
		return spec, nil
	}

	return nil, io.EOF
}

// parseName extracts sequence and charge from Name field (format: "SEQUENCE/CHARGE")
func (r *Reader) parseName(spec *core.Spectrum, name string) error {
	parts := strings.Split(name, "/")
	if len(parts) != 2 {
		return fmt.Errorf("invalid name format '%s', expected 'SEQUENCE/CHARGE'", name)
	}

	spec.Sequence = parts[0]
	charge, err := strconv.Atoi(parts[1])
	if err != nil {
		return fmt.Errorf("invalid charge in name '%s': %w", name, err)
	}
	spec.Charge = charge

	return nil
}

// parseComment extracts metadata from Comment field
func (r *Reader) parseComment(spec *core.Spectrum, comment string) error {
	// Comment format: key=value key=value...
	// Example: Parent=400.68 Collision_energy=30 Mods=1/3,M,Oxidation iRT=61.01

	fields := strings.Fields(comment)
	for _, field := range fields {
		key, value, ok := strings.Cut(field, "=")
		if !ok {
			continue
		}

		switch key {
		case "Parent":
			mz, err := strconv.ParseFloat(value, 64)
			if err == nil {
				spec.PrecursorMZ = mz
			}

		case "Collision_energy", "CollisionEnergy":
			ce, err := strconv.ParseFloat(value, 64)
			if err == nil {
				spec.CollisionEnergy = &ce
			}

		case "iRT", "RetentionTime":
			rt, err := strconv.ParseFloat(value, 64)
			if err == nil {
				spec.RetentionTime = &rt
			}

		case "Mods":
			if err := r.parseMods(spec, value); err != nil {
				return err
			}
		}
	}

	return nil
}

// parseMods parses modification information from Mods field
// Format: count/pos,AA,Name/pos,AA,Name... with 0-based positions, e.g.
// "2/3,M,Oxidation/6,C,Carbamidomethyl". "0" means unmodified.
func (r *Reader) parseMods(spec *core.Spectrum, modsStr string) error {
	groups := strings.Split(modsStr, "/")
	count, err := strconv.Atoi(groups[0])
	if err != nil {
		return fmt.Errorf("invalid mods '%s': %w", modsStr, err)
	}
	if count != len(groups)-1 {
		return fmt.Errorf("invalid mods '%s': count %d but %d entries", modsStr, count, len(groups)-1)
	}

	for _, g := range groups[1:] {
		parts := strings.Split(g, ",")
		if len(parts) != 3 {
			return fmt.Errorf("invalid mod entry '%s', expected 'pos,AA,Name'", g)
		}
		pos, err := strconv.Atoi(parts[0])
		if err != nil {
			return fmt.Errorf("invalid mod position '%s': %w", parts[0], err)
		}
		name := parts[2]
		mass, ok := r.modDB.GetMass(name)
		if !ok {
			return fmt.Errorf("unknown modification '%s'", name)
		}
		spec.Modifications = append(spec.Modifications, core.Modification{
			Mass:     mass,
			Position: pos,
			Name:     name,
		})
	}
	return nil
}

// parsePeak parses a single peak line (format: "mz\tintensity\t\"annotation\"")
func (r *Reader) parsePeak(line string) (core.Peak, error) {
	fields := strings.Fields(line)
	if len(fields) < 2 {
		return core.Peak{}, fmt.Errorf("invalid peak format, expected at least 2 fields")
	}

	mz, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return core.Peak{}, fmt.Errorf("invalid m/z value: %w", err)
	}

	intensity, err := strconv.ParseFloat(fields[1], 64)
	if err != nil {
		return core.Peak{}, fmt.Errorf("invalid intensity value: %w", err)
	}

	peak := core.Peak{
		MZ:        mz,
		Intensity: intensity,
	}

	// Annotation is the optional quoted third field; ppm error info is dropped
	if len(fields) >= 3 {
		annotation := strings.Trim(fields[2], "\"")
		if idx := strings.Index(annotation, "/"); idx > 0 {
			annotation = annotation[:idx]
		}
		peak.Annotation = annotation
	}

	return peak, nil
}
