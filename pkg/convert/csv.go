package convert

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
)

var genericHeader = []string{
	"ModifiedPeptide", "StrippedPeptide", "PrecursorCharge", "PrecursorMz", "iRT",
	"FragmentNumber", "FragmentType", "FragmentCharge", "FragmentLossType",
	"FragmentMz", "RelativeIntensity",
}

var longFormHeader = []string{
	"Modified sequence", "Charge", "Collision energy", "Retention time",
	"Masses", "Matches", "Intensities",
}

func formatFloat(v float64) string {
	if math.IsNaN(v) {
		return ""
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func parseFloat(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return math.NaN(), nil
	}
	return strconv.ParseFloat(s, 64)
}

// WriteGenericCSV writes generic rows with a header line.
func WriteGenericCSV(w io.Writer, rows []GenericRow) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(genericHeader); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, r := range rows {
		rec := []string{
			r.ModifiedPeptide,
			r.StrippedPeptide,
			strconv.Itoa(r.PrecursorCharge),
			formatFloat(r.PrecursorMz),
			formatFloat(r.IRT),
			strconv.Itoa(r.FragmentNumber),
			r.FragmentType,
			strconv.Itoa(r.FragmentCharge),
			r.FragmentLossType,
			formatFloat(r.FragmentMz),
			formatFloat(r.RelativeIntensity),
		}
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("write row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteLongFormCSV writes long form rows with a header line.
func WriteLongFormCSV(w io.Writer, rows []LongFormRow) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(longFormHeader); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, r := range rows {
		rec := []string{
			r.ModifiedSequence,
			strconv.Itoa(r.Charge),
			formatFloat(r.CollisionEnergy),
			formatFloat(r.RetentionTime),
			joinFloats(r.Masses),
			strings.Join(r.Matches, ";"),
			joinFloats(r.Intensities),
		}
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("write row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// columnIndex maps header names to positions and checks required columns.
func columnIndex(header, required []string) (map[string]int, error) {
	idx := make(map[string]int, len(header))
	for i, h := range header {
		idx[strings.TrimSpace(h)] = i
	}
	for _, name := range required {
		if _, ok := idx[name]; !ok {
			return nil, fmt.Errorf("missing column '%s'", name)
		}
	}
	return idx, nil
}

// ReadGenericCSV reads rows written by WriteGenericCSV. Only FragmentMz
// and RelativeIntensity are required; other columns are read when present.
func ReadGenericCSV(r io.Reader) ([]GenericRow, error) {
	cr := csv.NewReader(r)
	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	idx, err := columnIndex(header, []string{"FragmentMz", "RelativeIntensity"})
	if err != nil {
		return nil, err
	}

	get := func(rec []string, name string) string {
		if i, ok := idx[name]; ok && i < len(rec) {
			return rec[i]
		}
		return ""
	}

	var rows []GenericRow
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		var row GenericRow
		row.ModifiedPeptide = get(rec, "ModifiedPeptide")
		row.StrippedPeptide = get(rec, "StrippedPeptide")
		row.FragmentType = get(rec, "FragmentType")
		row.FragmentLossType = get(rec, "FragmentLossType")
		if row.FragmentMz, err = strconv.ParseFloat(get(rec, "FragmentMz"), 64); err != nil {
			return nil, fmt.Errorf("line %d: invalid FragmentMz: %w", line, err)
		}
		if row.RelativeIntensity, err = strconv.ParseFloat(get(rec, "RelativeIntensity"), 64); err != nil {
			return nil, fmt.Errorf("line %d: invalid RelativeIntensity: %w", line, err)
		}
		if row.PrecursorMz, err = parseFloat(get(rec, "PrecursorMz")); err != nil {
			return nil, fmt.Errorf("line %d: invalid PrecursorMz: %w", line, err)
		}
		if row.IRT, err = parseFloat(get(rec, "iRT")); err != nil {
			return nil, fmt.Errorf("line %d: invalid iRT: %w", line, err)
		}
		row.PrecursorCharge, _ = strconv.Atoi(get(rec, "PrecursorCharge"))
		row.FragmentNumber, _ = strconv.Atoi(get(rec, "FragmentNumber"))
		row.FragmentCharge, _ = strconv.Atoi(get(rec, "FragmentCharge"))
		rows = append(rows, row)
	}
	return rows, nil
}

// ReadLongFormCSV reads rows written by WriteLongFormCSV. Masses and
// Intensities are required.
func ReadLongFormCSV(r io.Reader) ([]LongFormRow, error) {
	cr := csv.NewReader(r)
	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	idx, err := columnIndex(header, []string{"Masses", "Intensities"})
	if err != nil {
		return nil, err
	}

	get := func(rec []string, name string) string {
		if i, ok := idx[name]; ok && i < len(rec) {
			return rec[i]
		}
		return ""
	}

	var rows []LongFormRow
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		var row LongFormRow
		row.ModifiedSequence = get(rec, "Modified sequence")
		row.Charge, _ = strconv.Atoi(get(rec, "Charge"))
		if row.CollisionEnergy, err = parseFloat(get(rec, "Collision energy")); err != nil {
			return nil, fmt.Errorf("line %d: invalid collision energy: %w", line, err)
		}
		if row.RetentionTime, err = parseFloat(get(rec, "Retention time")); err != nil {
			return nil, fmt.Errorf("line %d: invalid retention time: %w", line, err)
		}
		row.Masses, row.Intensities, err = ParseLongForm(get(rec, "Masses"), get(rec, "Intensities"))
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if m := get(rec, "Matches"); m != "" {
			row.Matches = strings.Split(m, ";")
		}
		rows = append(rows, row)
	}
	return rows, nil
}
