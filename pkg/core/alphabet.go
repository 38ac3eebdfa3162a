package core

// Model geometry shared by the tokenizer, the tensor decoder and the
// sanitizer. These match the metadata of the published fragmentation models.
const (
	// MaxSequence is the longest peptide the models accept.
	MaxSequence = 30
	// MaxIon is the number of fragment positions (one per peptide bond).
	MaxIon = MaxSequence - 1
	// MaxFragmentCharge is the highest fragment charge the models predict.
	MaxFragmentCharge = 3
	// NumPrecursorCharges is the width of the precursor charge one-hot.
	NumPrecursorCharges = 6
	// PredBatchSize bounds how many peptides go into one inference call.
	PredBatchSize = 1024
)

// IonTypes lists the fragment ion series in model output order.
var IonTypes = []string{"y", "b"}

// Losses lists the neutral losses in model output order.
var Losses = []string{"noloss"}

// Alphabet maps residue tokens to the integers the models were trained on.
// Index 0 is padding.
var Alphabet = map[string]int{
	"A":     1,
	"C":     2,
	"D":     3,
	"E":     4,
	"F":     5,
	"G":     6,
	"H":     7,
	"I":     8,
	"K":     9,
	"L":     10,
	"M":     11,
	"N":     12,
	"P":     13,
	"Q":     14,
	"R":     15,
	"S":     16,
	"T":     17,
	"V":     18,
	"W":     19,
	"Y":     20,
	"M(ox)": 21,
}

// AlphabetSymbols is the inverse of Alphabet, indexed by integer code.
// AlphabetSymbols[0] is the empty padding symbol.
var AlphabetSymbols = func() []string {
	symbols := make([]string, len(Alphabet)+1)
	for symbol, code := range Alphabet {
		symbols[code] = symbol
	}
	return symbols
}()

// Symbol returns the token for an alphabet code, or "" for padding and
// codes outside the alphabet.
func Symbol(code int) string {
	if code <= 0 || code >= len(AlphabetSymbols) {
		return ""
	}
	return AlphabetSymbols[code]
}
