package cmd

import (
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/ChrisMcGann/PrositGo/pkg/compare"
	"github.com/ChrisMcGann/PrositGo/pkg/convert"
	"github.com/ChrisMcGann/PrositGo/pkg/core"
	"github.com/ChrisMcGann/PrositGo/pkg/filter"
	"github.com/ChrisMcGann/PrositGo/pkg/predict"
	"github.com/ChrisMcGann/PrositGo/pkg/progress"
	"github.com/ChrisMcGann/PrositGo/pkg/reader/msp"
	"github.com/ChrisMcGann/PrositGo/pkg/writer/sqlite"
)

var (
	libraryFile string
	scoreDBFile string
	defaultCE   float64
)

var scoreLibraryCmd = &cobra.Command{
	Use:   "score-library",
	Short: "Score an MSP spectral library against predictions",
	Long: `Predict every entry of an MSP spectral library and score the prediction
against the library spectrum. Scores and predicted spectra are written to a
SQLite database.

Library peaks may be restricted by annotation with --ion-types and
--max-charge, and by intensity with --top-n and --cutoff. Entries without a
Collision_energy comment use --ce.

Examples:
  prositgo score-library --in library.msp --out scores.db --model-dir models/hcd
  prositgo score-library --in library.msp --out scores.db --model-dir models/hcd \
    --ion-types b,y --max-charge 2 --top-n 50`,
	RunE: runScoreLibrary,
}

func init() {
	scoreLibraryCmd.Flags().StringVarP(&libraryFile, "in", "i", "", "Input MSP library (required)")
	scoreLibraryCmd.Flags().StringVarP(&scoreDBFile, "out", "o", "", "Output SQLite database (required)")
	scoreLibraryCmd.Flags().Float64Var(&defaultCE, "ce", 30, "Collision energy for entries without one")
	scoreLibraryCmd.Flags().StringVar(&ionTypes, "ion-types", "", "Comma-separated library ion types to keep (e.g. b,y)")
	scoreLibraryCmd.Flags().IntVar(&maxCharge, "max-charge", 0, "Highest library fragment charge to keep (0 = no limit)")
	scoreLibraryCmd.Flags().IntVar(&chunkSize, "chunk-size", core.PredBatchSize, "Peptides per prediction chunk")
	addFilterFlags(scoreLibraryCmd)
	addModelFlags(scoreLibraryCmd)

	scoreLibraryCmd.MarkFlagRequired("in")
	scoreLibraryCmd.MarkFlagRequired("out")
}

// libraryEntry is a filtered library spectrum and its prediction request
type libraryEntry struct {
	spec *core.Spectrum
	pep  core.Peptide
}

// readLibrary reads and filters all usable entries of an MSP library.
// Entries the models cannot encode are warned about and counted as skipped.
func readLibrary(path string, modDB *core.ModDatabase, fc *filter.Config) ([]libraryEntry, int, error) {
	inFile, err := os.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to open input file: %w", err)
	}
	defer inFile.Close()

	reader := msp.NewReader(inFile, modDB)
	var (
		entries []libraryEntry
		skipped int
	)
	for reader.Next() {
		spec := reader.Spectrum()

		pep, err := reader.Peptide(defaultCE)
		if err == nil {
			_, err = predict.Tensorize([]core.Peptide{pep})
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: skipping %s: %v\n", spec.Name(), err)
			skipped++
			continue
		}

		if err := fc.Apply(spec); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to filter spectrum %s: %v\n", spec.Name(), err)
			skipped++
			continue
		}
		if len(spec.Peaks) == 0 {
			fmt.Fprintf(os.Stderr, "Warning: skipping %s: no peaks after filtering\n", spec.Name())
			skipped++
			continue
		}

		entries = append(entries, libraryEntry{spec: spec, pep: pep})
	}
	if err := reader.Err(); err != nil {
		return nil, 0, fmt.Errorf("error reading input file: %w", err)
	}
	return entries, skipped, nil
}

func runScoreLibrary(cmd *cobra.Command, args []string) error {
	if chunkSize <= 0 {
		return fmt.Errorf("--chunk-size must be positive, got %d", chunkSize)
	}
	if _, err := os.Stat(libraryFile); os.IsNotExist(err) {
		return fmt.Errorf("input file does not exist: %s", libraryFile)
	}

	modDB, err := loadModDatabase()
	if err != nil {
		return err
	}
	entries, skipped, err := readLibrary(libraryFile, modDB, filterConfig())
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		return fmt.Errorf("no usable spectra in %s", libraryFile)
	}
	fmt.Printf("Scoring %d library spectra from %s...\n", len(entries), libraryFile)

	models, err := loadPredictor()
	if err != nil {
		return err
	}
	defer models.Close()

	writer, err := sqlite.NewWriter(scoreDBFile, "prositgo score-library")
	if err != nil {
		return fmt.Errorf("failed to create output database: %w", err)
	}

	opts := convert.Options{Mods: modDB}
	bar := progress.NewBar(os.Stdout, len(entries), "Scored")
	peps := make([]core.Peptide, 0, chunkSize)
	var sum float64
	for lo := 0; lo < len(entries); lo += chunkSize {
		hi := min(lo+chunkSize, len(entries))
		peps = peps[:0]
		for _, e := range entries[lo:hi] {
			peps = append(peps, e.pep)
		}

		b, err := models.predictor.PredictPeptides(peps)
		if err != nil {
			writer.Close()
			return fmt.Errorf("peptides %d-%d: %w", lo+1, hi, err)
		}
		rows, err := convert.LongForm(b, opts)
		if err != nil {
			writer.Close()
			return err
		}

		for i, row := range rows {
			e := entries[lo+i]
			res, err := compare.Spectra(e.spec, row.Masses, row.Intensities, tolerance)
			if err != nil {
				writer.Close()
				return fmt.Errorf("%s: %w", e.spec.Name(), err)
			}
			rec := &sqlite.ScoreRecord{
				Peptide:            e.pep,
				PrecursorMZ:        e.spec.PrecursorMZ,
				SourceFile:         filepath.Base(libraryFile),
				Name:               e.spec.Name(),
				Score:              res.Score,
				MatchedPeaks:       res.Matched,
				PredictedPeaks:     res.Predicted,
				PredictedMZ:        row.Masses,
				PredictedIntensity: row.Intensities,
			}
			if rt := row.RetentionTime; !math.IsNaN(rt) {
				rec.IRT = &rt
			}
			if err := writer.WriteScore(rec); err != nil {
				writer.Close()
				return fmt.Errorf("failed to write score for %s: %w", e.spec.Name(), err)
			}
			sum += res.Score
		}
		bar.Add(hi - lo)
	}
	bar.Finish()

	if err := writer.Finalize(); err != nil {
		return fmt.Errorf("failed to finalize database: %w", err)
	}

	fmt.Printf("\nScoring complete!\n")
	fmt.Printf("Scored: %d spectra\n", bar.Count())
	if skipped > 0 {
		fmt.Printf("Skipped: %d spectra\n", skipped)
	}
	fmt.Printf("Mean score: %.4f\n", sum/float64(bar.Count()))
	fmt.Printf("Output: %s\n", scoreDBFile)
	return nil
}
