package core

import (
	"math"
	"strings"
	"testing"
)

func TestLoadFromCSV(t *testing.T) {
	csv := "mod,massshift,tag\nCustomMod,12.5,cm\nNoTag,1.0\n\n"
	db := NewModDatabase()
	if err := db.LoadFromCSV(strings.NewReader(csv)); err != nil {
		t.Fatalf("LoadFromCSV() error = %v", err)
	}

	if mass, ok := db.GetMass("CustomMod"); !ok || mass != 12.5 {
		t.Errorf("GetMass(CustomMod) = %v, %v; want 12.5, true", mass, ok)
	}
	if mass, ok := db.GetMass("cm"); !ok || mass != 12.5 {
		t.Errorf("GetMass(cm) = %v, %v; want 12.5, true", mass, ok)
	}
	if _, ok := db.Tag("NoTag"); ok {
		t.Error("Tag(NoTag) should not exist")
	}

	bad := NewModDatabase()
	if err := bad.LoadFromCSV(strings.NewReader("mod,mass\nX,abc\n")); err == nil {
		t.Error("LoadFromCSV() expected error for invalid mass")
	}
}

func TestDefaultModDatabaseTags(t *testing.T) {
	db := DefaultModDatabase()
	ox, ok := db.GetMass("ox")
	if !ok {
		t.Fatal("expected ox tag in default database")
	}
	if math.Abs(ox-15.994915) > 1e-9 {
		t.Errorf("ox mass = %v, want 15.994915", ox)
	}
}

func TestModifiedSequence(t *testing.T) {
	db := DefaultModDatabase()

	tests := []struct {
		name    string
		seq     string
		mods    []Modification
		want    string
		wantErr bool
	}{
		{"no mods", "PEPTIDE", nil, "PEPTIDE", false},
		{
			name: "oxidation",
			seq:  "PEPMIDE",
			mods: []Modification{{Name: "Oxidation", Position: 3}},
			want: "PEPM(ox)IDE",
		},
		{
			name: "fixed cysteine is implied",
			seq:  "ACDK",
			mods: []Modification{{Name: "Carbamidomethyl", Position: 1}},
			want: "ACDK",
		},
		{
			name:    "untagged modification",
			seq:     "PEPTIDE",
			mods:    []Modification{{Name: "Acetyl", Position: 0}},
			wantErr: true,
		},
		{
			name:    "position outside sequence",
			seq:     "PEP",
			mods:    []Modification{{Name: "Oxidation", Position: -1}},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := db.ModifiedSequence(tt.seq, tt.mods)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ModifiedSequence() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ModifiedSequence() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSymbol(t *testing.T) {
	if got := Symbol(0); got != "" {
		t.Errorf("Symbol(0) = %q, want empty", got)
	}
	if got := Symbol(21); got != "M(ox)" {
		t.Errorf("Symbol(21) = %q, want M(ox)", got)
	}
	if got := Symbol(99); got != "" {
		t.Errorf("Symbol(99) = %q, want empty", got)
	}
	for symbol, code := range Alphabet {
		if Symbol(code) != symbol {
			t.Errorf("Symbol(%d) = %q, want %q", code, Symbol(code), symbol)
		}
	}
}
