package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ChrisMcGann/PrositGo/pkg/convert"
	"github.com/ChrisMcGann/PrositGo/pkg/core"
	"github.com/ChrisMcGann/PrositGo/pkg/predict"
	"github.com/ChrisMcGann/PrositGo/pkg/progress"
	"github.com/ChrisMcGann/PrositGo/pkg/reader/peptides"
)

var (
	inputFile    string
	outputFile   string
	outputFormat string
	minIntensity float64
	chunkSize    int
)

var predictCmd = &cobra.Command{
	Use:   "predict",
	Short: "Predict spectra for a peptide CSV",
	Long: `Predict fragment ion intensities (and iRT when --irt-model-dir is given)
for every row of a CSV with the columns modified_sequence, collision_energy
and precursor_charge.

Output formats:
  generic  one row per fragment ion
  msms     one row per peptide with semicolon-joined masses and intensities

Examples:
  prositgo predict --in peptides.csv --out predictions.csv --model-dir models/hcd
  prositgo predict --in peptides.csv --out predictions.csv --model-dir models/hcd \
    --irt-model-dir models/irt --format msms`,
	RunE: runPredict,
}

func init() {
	predictCmd.Flags().StringVarP(&inputFile, "in", "i", "", "Input peptide CSV (required)")
	predictCmd.Flags().StringVarP(&outputFile, "out", "o", "", "Output CSV (required)")
	predictCmd.Flags().StringVarP(&outputFormat, "format", "f", "generic", "Output format: generic or msms")
	predictCmd.Flags().Float64Var(&minIntensity, "min-intensity", 0, "Drop fragments at or below this relative intensity")
	predictCmd.Flags().IntVar(&chunkSize, "chunk-size", core.PredBatchSize, "Peptides per prediction chunk")
	addModelFlags(predictCmd)

	predictCmd.MarkFlagRequired("in")
	predictCmd.MarkFlagRequired("out")
}

func validFormat(f string) (string, error) {
	f = strings.ToLower(f)
	if f != "generic" && f != "msms" {
		return "", fmt.Errorf("invalid format '%s', must be generic or msms", f)
	}
	return f, nil
}

func runPredict(cmd *cobra.Command, args []string) error {
	format, err := validFormat(outputFormat)
	if err != nil {
		return err
	}
	if chunkSize <= 0 {
		return fmt.Errorf("--chunk-size must be positive, got %d", chunkSize)
	}

	// Validate input file exists
	if _, err := os.Stat(inputFile); os.IsNotExist(err) {
		return fmt.Errorf("input file does not exist: %s", inputFile)
	}
	inFile, err := os.Open(inputFile)
	if err != nil {
		return fmt.Errorf("failed to open input file: %w", err)
	}
	peps, err := peptides.ReadAll(inFile)
	inFile.Close()
	if err != nil {
		return fmt.Errorf("error reading input file: %w", err)
	}
	if len(peps) == 0 {
		return fmt.Errorf("no peptides in %s", inputFile)
	}

	// Encode every chunk before any model is loaded
	var batches []*predict.Batch
	for lo := 0; lo < len(peps); lo += chunkSize {
		hi := min(lo+chunkSize, len(peps))
		b, err := predict.Tensorize(peps[lo:hi])
		if err != nil {
			return fmt.Errorf("peptides %d-%d: %w", lo+1, hi, err)
		}
		batches = append(batches, b)
	}

	modDB, err := loadModDatabase()
	if err != nil {
		return err
	}

	fmt.Printf("Predicting %d peptides from %s...\n", len(peps), inputFile)
	fmt.Printf("Format: %s\n", format)

	models, err := loadPredictor()
	if err != nil {
		return err
	}
	defer models.Close()

	opts := convert.Options{MinIntensity: minIntensity, Mods: modDB}
	var (
		generic []convert.GenericRow
		msms    []convert.LongFormRow
	)
	bar := progress.NewBar(os.Stdout, len(peps), "Predicted")
	for _, b := range batches {
		if err := models.predictor.PredictBatch(b); err != nil {
			return fmt.Errorf("peptides %d-%d: %w", bar.Count()+1, bar.Count()+b.Len(), err)
		}
		switch format {
		case "generic":
			rows, err := convert.Generic(b, opts)
			if err != nil {
				return err
			}
			generic = append(generic, rows...)
		case "msms":
			rows, err := convert.LongForm(b, opts)
			if err != nil {
				return err
			}
			msms = append(msms, rows...)
		}
		bar.Add(b.Len())
	}
	bar.Finish()

	outFile, err := os.Create(outputFile)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer outFile.Close()

	if format == "generic" {
		err = convert.WriteGenericCSV(outFile, generic)
	} else {
		err = convert.WriteLongFormCSV(outFile, msms)
	}
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", outputFile, err)
	}
	if err := outFile.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", outputFile, err)
	}

	fmt.Printf("\nPrediction complete!\n")
	fmt.Printf("Peptides: %d\n", bar.Count())
	if format == "generic" {
		fmt.Printf("Fragments: %d\n", len(generic))
	}
	fmt.Printf("Output: %s\n", outputFile)
	return nil
}
