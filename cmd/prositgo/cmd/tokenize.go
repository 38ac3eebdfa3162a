package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ChrisMcGann/PrositGo/pkg/core"
	"github.com/ChrisMcGann/PrositGo/pkg/sequence"
)

var padded bool

var tokenizeCmd = &cobra.Command{
	Use:   "tokenize SEQUENCE...",
	Short: "Show the tokens and model codes of modified sequences",
	Long: `Tokenize modified sequences and print one tab-separated line per sequence:
the input, its tokens and the integer codes fed to the models.

Examples:
  prositgo tokenize PEPTIDE _PEPM(ox)IDE_
  prositgo tokenize --padded PEPTIDE`,
	Args: cobra.MinimumNArgs(1),
	RunE: runTokenize,
}

func init() {
	tokenizeCmd.Flags().BoolVar(&padded, "padded", false, "Print all codes including zero padding")
}

func runTokenize(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	for _, s := range args {
		tokens, err := sequence.Tokenize(s)
		if err != nil {
			return err
		}
		codes, err := sequence.Encode(tokens, core.MaxSequence)
		if err != nil {
			return fmt.Errorf("%q: %w", s, err)
		}
		if !padded {
			codes = codes[:sequence.Length(codes)]
		}
		strs := make([]string, len(codes))
		for i, c := range codes {
			strs[i] = strconv.Itoa(c)
		}
		fmt.Fprintf(out, "%s\t%s\t%s\n", s,
			strings.Join(sequence.Strings(tokens), " "), strings.Join(strs, ","))
	}
	return nil
}
