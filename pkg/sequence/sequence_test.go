package sequence

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/ChrisMcGann/PrositGo/pkg/core"
)

func TestTokenize(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    []string
		wantErr error
	}{
		{
			name:  "plain peptide",
			input: "PEPTIDE",
			want:  []string{"P", "E", "P", "T", "I", "D", "E"},
		},
		{
			name:  "spacers removed",
			input: "_PEPTIDE_",
			want:  []string{"P", "E", "P", "T", "I", "D", "E"},
		},
		{
			name:  "oxidized methionine",
			input: "PEPM(ox)IDE",
			want:  []string{"P", "E", "P", "M(ox)", "I", "D", "E"},
		},
		{
			name:  "modification on last residue",
			input: "PEPTIDEM(ox)",
			want:  []string{"P", "E", "P", "T", "I", "D", "E", "M(ox)"},
		},
		{
			name:  "adjacent modifications",
			input: "M(ox)M(ox)K",
			want:  []string{"M(ox)", "M(ox)", "K"},
		},
		{
			name:    "starts with modification",
			input:   "(ox)MK",
			wantErr: ErrModificationFirst,
		},
		{
			name:    "spacer before modification",
			input:   "_(ox)MK",
			wantErr: ErrModificationFirst,
		},
		{
			name:    "unterminated tag",
			input:   "PEPM(ox",
			wantErr: ErrUnterminatedMod,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Tokenize(tt.input)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Tokenize(%q) error = %v, want %v", tt.input, err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Tokenize(%q) error = %v", tt.input, err)
			}
			if diff := cmp.Diff(tt.want, Strings(got)); diff != "" {
				t.Errorf("Tokenize(%q) mismatch (-want +got):\n%s", tt.input, diff)
			}
		})
	}
}

func TestTokenizeStripRoundTrip(t *testing.T) {
	inputs := []string{
		"PEPTIDE",
		"_AAAM(ox)K_",
		"M(ox)PEPC(cam)K",
		"ACDEFGHIKLMNPQRSTVWY",
		"K",
	}
	for _, in := range inputs {
		tokens, err := Tokenize(in)
		if err != nil {
			t.Fatalf("Tokenize(%q) error = %v", in, err)
		}
		bare := strings.ReplaceAll(in, "_", "")
		for strings.Contains(bare, "(") {
			open := strings.Index(bare, "(")
			closing := strings.Index(bare, ")")
			bare = bare[:open] + bare[closing+1:]
		}
		if got := Strip(tokens); got != bare {
			t.Errorf("Strip(Tokenize(%q)) = %q, want %q", in, got, bare)
		}
		if got := strings.Join(Strings(tokens), ""); got != strings.ReplaceAll(in, "_", "") {
			t.Errorf("joined tokens = %q, want %q", got, strings.ReplaceAll(in, "_", ""))
		}
	}
}

func TestEncodeDecode(t *testing.T) {
	tokens, err := Tokenize("PEPM(ox)IDE")
	if err != nil {
		t.Fatalf("Tokenize() error = %v", err)
	}
	codes, err := Encode(tokens, core.MaxSequence)
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	if len(codes) != core.MaxSequence {
		t.Fatalf("Encode() length = %d, want %d", len(codes), core.MaxSequence)
	}
	wantPrefix := []int{13, 4, 13, 21, 8, 3, 4, 0}
	if diff := cmp.Diff(wantPrefix, codes[:len(wantPrefix)]); diff != "" {
		t.Errorf("Encode() mismatch (-want +got):\n%s", diff)
	}
	if got := Decode(codes); got != "PEPM(ox)IDE" {
		t.Errorf("Decode() = %q, want PEPM(ox)IDE", got)
	}
	if got := Length(codes); got != 7 {
		t.Errorf("Length() = %d, want 7", got)
	}
}

func TestEncodeErrors(t *testing.T) {
	tokens, _ := Tokenize("PEPX")
	if _, err := Encode(tokens, core.MaxSequence); !errors.Is(err, ErrUnknownToken) {
		t.Errorf("Encode(PEPX) error = %v, want ErrUnknownToken", err)
	}

	long, _ := Tokenize(strings.Repeat("A", core.MaxSequence+1))
	if _, err := Encode(long, core.MaxSequence); !errors.Is(err, ErrSequenceTooLong) {
		t.Errorf("Encode(31 residues) error = %v, want ErrSequenceTooLong", err)
	}
}

func TestDecodeUnknownCodes(t *testing.T) {
	codes := []int{1, 2, 99, 3, 0, 0}
	if got := Decode(codes); got != "ACD" {
		t.Errorf("Decode() = %q, want ACD", got)
	}
	if got := Length(codes); got != 2 {
		t.Errorf("Length() = %d, want 2 (unknown code terminates)", got)
	}

	got := DecodeBatch([][]int{{1, 0}, {11, 21, 0}})
	if diff := cmp.Diff([]string{"A", "MM(ox)"}, got); diff != "" {
		t.Errorf("DecodeBatch() mismatch (-want +got):\n%s", diff)
	}
}

func TestDecodeOneHot(t *testing.T) {
	onehot := make([][]float32, 4)
	for i := range onehot {
		onehot[i] = make([]float32, len(core.AlphabetSymbols))
	}
	onehot[0][13] = 1 // P
	onehot[1][4] = 1  // E
	onehot[2][21] = 1 // M(ox)
	if got := DecodeOneHot(onehot); got != "PEM(ox)" {
		t.Errorf("DecodeOneHot() = %q, want PEM(ox)", got)
	}
}
