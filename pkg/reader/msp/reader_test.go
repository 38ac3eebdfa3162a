package msp

import (
	"strings"
	"testing"
)

const testLibrary = `Name: PEPMIDE/2
MW: 833.3
Comment: Parent=417.6811 Collision_energy=30 Mods=1/3,M,Oxidation iRT=42.5
Num peaks: 3
148.0604	0.25	"y1/0.0ppm"
263.0874	1	"y2/0.1ppm"
227.1026	0.5	"b2/0.0ppm"

Name: ACDK/1
Comment: Parent=465.2 Mods=1/1,C,Carbamidomethyl
Num peaks: 1
147.1128	1
`

func TestReader(t *testing.T) {
	r := NewReader(strings.NewReader(testLibrary), nil)

	if !r.Next() {
		t.Fatalf("Next() = false, err = %v", r.Err())
	}
	spec := r.Spectrum()
	if spec.Sequence != "PEPMIDE" || spec.Charge != 2 {
		t.Errorf("Name parsed as %s/%d", spec.Sequence, spec.Charge)
	}
	if spec.PrecursorMZ != 417.6811 {
		t.Errorf("PrecursorMZ = %v", spec.PrecursorMZ)
	}
	if spec.CollisionEnergy == nil || *spec.CollisionEnergy != 30 {
		t.Errorf("CollisionEnergy = %v, want 30", spec.CollisionEnergy)
	}
	if spec.RetentionTime == nil || *spec.RetentionTime != 42.5 {
		t.Errorf("RetentionTime = %v, want 42.5", spec.RetentionTime)
	}
	if len(spec.Peaks) != 3 {
		t.Fatalf("len(Peaks) = %d, want 3", len(spec.Peaks))
	}
	if spec.Peaks[1].Annotation != "y2" || spec.Peaks[1].Intensity != 1 {
		t.Errorf("Peaks[1] = %+v", spec.Peaks[1])
	}
	if len(spec.Modifications) != 1 || spec.Modifications[0].Position != 3 {
		t.Errorf("Modifications = %+v", spec.Modifications)
	}

	pep, err := r.Peptide(25)
	if err != nil {
		t.Fatalf("Peptide() error = %v", err)
	}
	if pep.ModifiedSequence != "PEPM(ox)IDE" || pep.CollisionEnergy != 30 || pep.Charge != 2 {
		t.Errorf("Peptide() = %+v", pep)
	}

	if !r.Next() {
		t.Fatalf("Next() = false for second entry, err = %v", r.Err())
	}
	pep, err = r.Peptide(25)
	if err != nil {
		t.Fatalf("Peptide() error = %v", err)
	}
	// Carbamidomethyl cysteine is implied
	if pep.ModifiedSequence != "ACDK" || pep.CollisionEnergy != 25 {
		t.Errorf("Peptide() = %+v, want ACDK at default CE", pep)
	}

	if r.Next() {
		t.Error("Next() = true after last entry")
	}
	if r.Err() != nil {
		t.Errorf("Err() = %v", r.Err())
	}
}

func TestReaderErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"bad name", "Name: PEPTIDE\nNum peaks: 1\n100 1\n"},
		{"bad charge", "Name: PEPTIDE/x\nNum peaks: 1\n100 1\n"},
		{"bad num peaks", "Name: PEPTIDE/2\nNum peaks: many\n"},
		{"bad peak", "Name: PEPTIDE/2\nNum peaks: 1\n100\n"},
		{"bad mz", "Name: PEPTIDE/2\nNum peaks: 1\nabc 1\n"},
		{"unknown mod", "Name: PEPTIDE/2\nComment: Mods=1/2,P,Nonsense\nNum peaks: 1\n100 1\n"},
		{"mod count", "Name: PEPTIDE/2\nComment: Mods=2/2,P,Oxidation\nNum peaks: 1\n100 1\n"},
		{"truncated", "Name: PEPTIDE/2\nNum peaks: 3\n100 1\n"},
		{"peaks before name", "Num peaks: 1\n100 1\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewReader(strings.NewReader(tt.input), nil)
			if r.Next() {
				t.Fatalf("Next() = true, want false")
			}
			if r.Err() == nil {
				t.Error("Err() = nil, want error")
			}
		})
	}
}

func TestReaderEmpty(t *testing.T) {
	r := NewReader(strings.NewReader("\n\n"), nil)
	if r.Next() {
		t.Error("Next() = true for empty input")
	}
	if r.Err() != nil {
		t.Errorf("Err() = %v, want nil", r.Err())
	}
	if _, err := r.Peptide(30); err == nil {
		t.Error("Peptide() expected error without a current spectrum")
	}
}
