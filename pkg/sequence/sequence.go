// Package sequence tokenizes modified peptide sequences and converts them
// to and from the integer alphabet the models use.
package sequence

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ChrisMcGann/PrositGo/pkg/core"
)

var (
	// ErrModificationFirst is returned when a sequence starts with a
	// modification tag that has no residue to attach to.
	ErrModificationFirst = errors.New("sequence starts with '('")
	// ErrUnterminatedMod is returned when a modification tag has no closing ')'.
	ErrUnterminatedMod = errors.New("unterminated modification tag")
	// ErrUnknownToken is returned when a token is not part of the alphabet.
	ErrUnknownToken = errors.New("token not in alphabet")
	// ErrSequenceTooLong is returned when a sequence exceeds the model length.
	ErrSequenceTooLong = errors.New("sequence too long")
)

// Token is one residue, optionally carrying a modification tag.
type Token struct {
	Residue byte
	Mod     string // Tag without parentheses, e.g. "ox"
}

// String renders the token as it appears in a modified sequence.
func (t Token) String() string {
	if t.Mod == "" {
		return string(t.Residue)
	}
	return string(t.Residue) + "(" + t.Mod + ")"
}

// Tokenize splits a modified sequence into residue tokens. Underscore
// spacers are removed first.
func Tokenize(s string) ([]Token, error) {
	p := strings.ReplaceAll(s, "_", "")
	if strings.HasPrefix(p, "(") {
		return nil, fmt.Errorf("%q: %w", s, ErrModificationFirst)
	}

	tokens := make([]Token, 0, len(p))
	for i := 0; i < len(p); {
		if p[i] == '(' || p[i] == ')' {
			return nil, fmt.Errorf("%q: stray '%c' at offset %d", s, p[i], i)
		}
		if i+1 < len(p) && p[i+1] == '(' {
			end := strings.IndexByte(p[i+2:], ')')
			if end < 0 {
				return nil, fmt.Errorf("%q at offset %d: %w", s, i, ErrUnterminatedMod)
			}
			tokens = append(tokens, Token{Residue: p[i], Mod: p[i+2 : i+2+end]})
			i += end + 3
			continue
		}
		tokens = append(tokens, Token{Residue: p[i]})
		i++
	}
	return tokens, nil
}

// Strings returns the textual form of every token.
func Strings(tokens []Token) []string {
	out := make([]string, len(tokens))
	for i, t := range tokens {
		out[i] = t.String()
	}
	return out
}

// Strip returns the bare residue string of tokens.
func Strip(tokens []Token) string {
	var b strings.Builder
	b.Grow(len(tokens))
	for _, t := range tokens {
		b.WriteByte(t.Residue)
	}
	return b.String()
}

// Encode maps tokens to alphabet codes, right-padded with zeros to maxLen.
func Encode(tokens []Token, maxLen int) ([]int, error) {
	if len(tokens) > maxLen {
		return nil, fmt.Errorf("%d residues, maximum is %d: %w", len(tokens), maxLen, ErrSequenceTooLong)
	}
	codes := make([]int, maxLen)
	for i, t := range tokens {
		code, ok := core.Alphabet[t.String()]
		if !ok {
			return nil, fmt.Errorf("%q at position %d: %w", t.String(), i, ErrUnknownToken)
		}
		codes[i] = code
	}
	return codes, nil
}

// Decode maps alphabet codes back to a modified sequence. Padding and
// unknown codes decode to nothing.
func Decode(codes []int) string {
	var b strings.Builder
	for _, c := range codes {
		b.WriteString(core.Symbol(c))
	}
	return b.String()
}

// DecodeBatch decodes one sequence per row.
func DecodeBatch(rows [][]int) []string {
	out := make([]string, len(rows))
	for i, r := range rows {
		out[i] = Decode(r)
	}
	return out
}

// DecodeOneHot decodes a [position][symbol] one-hot matrix. Each position
// takes its arg-max symbol; all-zero rows are padding.
func DecodeOneHot(onehot [][]float32) string {
	codes := make([]int, len(onehot))
	for i, row := range onehot {
		best, bestVal := 0, float32(0)
		for j, v := range row {
			if v > bestVal {
				best, bestVal = j, v
			}
		}
		codes[i] = best
	}
	return Decode(codes)
}

// Length returns the number of residues in an encoded sequence. The first
// padding or unknown code terminates the sequence.
func Length(codes []int) int {
	for i, c := range codes {
		if core.Symbol(c) == "" {
			return i
		}
	}
	return len(codes)
}
