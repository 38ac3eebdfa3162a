// Package peptides reads prediction requests from CSV files with the columns
// modified_sequence, collision_energy and precursor_charge.
package peptides

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/ChrisMcGann/PrositGo/pkg/core"
)

// Column names
const (
	ColSequence        = "modified_sequence"
	ColCollisionEnergy = "collision_energy"
	ColCharge          = "precursor_charge"
)

// Reader provides streaming access to peptide CSV files
type Reader struct {
	csv     *csv.Reader
	cols    [3]int
	lineNum int
	current core.Peptide
	err     error
}

// NewReader reads the header line and returns a reader positioned before
// the first peptide.
func NewReader(r io.Reader) (*Reader, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	idx := make(map[string]int, len(header))
	for i, h := range header {
		idx[strings.ToLower(strings.TrimSpace(h))] = i
	}

	rd := &Reader{csv: cr, lineNum: 1}
	for i, name := range []string{ColSequence, ColCollisionEnergy, ColCharge} {
		col, ok := idx[name]
		if !ok {
			return nil, fmt.Errorf("missing column '%s'", name)
		}
		rd.cols[i] = col
	}
	return rd, nil
}

// Next advances to the next peptide. Returns false when no more peptides or error.
func (r *Reader) Next() bool {
	rec, err := r.csv.Read()
	if err == io.EOF {
		return false
	}
	r.lineNum++
	if err != nil {
		r.err = fmt.Errorf("line %d: %w", r.lineNum, err)
		return false
	}

	p, err := r.parse(rec)
	if err != nil {
		r.err = fmt.Errorf("line %d: %w", r.lineNum, err)
		return false
	}
	r.current = p
	return true
}

// Peptide returns the current peptide
func (r *Reader) Peptide() core.Peptide {
	return r.current
}

// Err returns any error encountered during reading
func (r *Reader) Err() error {
	return r.err
}

func (r *Reader) parse(rec []string) (core.Peptide, error) {
	for _, col := range r.cols {
		if col >= len(rec) {
			return core.Peptide{}, fmt.Errorf("expected at least %d fields, got %d", col+1, len(rec))
		}
	}
	p := core.Peptide{ModifiedSequence: strings.TrimSpace(rec[r.cols[0]])}

	ce, err := strconv.ParseFloat(strings.TrimSpace(rec[r.cols[1]]), 64)
	if err != nil {
		return p, fmt.Errorf("invalid collision energy: %w", err)
	}
	p.CollisionEnergy = ce

	charge, err := strconv.Atoi(strings.TrimSpace(rec[r.cols[2]]))
	if err != nil {
		return p, fmt.Errorf("invalid precursor charge: %w", err)
	}
	p.Charge = charge

	if err := p.Validate(); err != nil {
		return p, err
	}
	return p, nil
}

// ReadAll reads every peptide of a CSV file
func ReadAll(r io.Reader) ([]core.Peptide, error) {
	rd, err := NewReader(r)
	if err != nil {
		return nil, err
	}
	var out []core.Peptide
	for rd.Next() {
		out = append(out, rd.Peptide())
	}
	if err := rd.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
