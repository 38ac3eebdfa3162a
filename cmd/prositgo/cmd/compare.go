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
	"github.com/ChrisMcGann/PrositGo/pkg/progress"
	"github.com/ChrisMcGann/PrositGo/pkg/writer/sqlite"
)

var (
	mzmlFile        string
	scanNumber      int
	peptideSeq      string
	collisionEnergy float64
	charge          int
	predictionsFile string
	predFormat      string
	dbFile          string
)

var compareCmd = &cobra.Command{
	Use:   "compare",
	Short: "Score predictions against an observed mzML scan",
	Long: `Score predicted spectra against one scan of an mzML file with the
normalized spectral contrast angle. Scan numbers are 1-based positions in
the file.

Predictions come either from a CSV written by 'prositgo predict' or from a
peptide predicted on the fly. A generic CSV is scored as one spectrum, so
several peptides in it are scored together as a chimeric spectrum; an msms
CSV is scored row by row.

Examples:
  prositgo compare --mzml run.mzML --scan 1234 --predictions pred.csv
  prositgo compare --mzml run.mzML --scan 1234 --predictions pred.csv --format msms
  prositgo compare --mzml run.mzML --scan 1234 --peptide PEPTIDEK --ce 30 --charge 2 --model-dir models/hcd`,
	RunE: runCompare,
}

func init() {
	compareCmd.Flags().StringVar(&mzmlFile, "mzml", "", "Observed mzML file (required)")
	compareCmd.Flags().IntVar(&scanNumber, "scan", 0, "1-based scan number (required)")
	compareCmd.Flags().StringVar(&peptideSeq, "peptide", "", "Modified sequence to predict and score")
	compareCmd.Flags().Float64Var(&collisionEnergy, "ce", 30, "Collision energy for --peptide")
	compareCmd.Flags().IntVar(&charge, "charge", 2, "Precursor charge for --peptide")
	compareCmd.Flags().StringVar(&predictionsFile, "predictions", "", "Prediction CSV written by 'prositgo predict'")
	compareCmd.Flags().StringVarP(&predFormat, "format", "f", "generic", "Format of --predictions: generic or msms")
	compareCmd.Flags().StringVar(&dbFile, "db", "", "Also write scores to this SQLite database")
	addFilterFlags(compareCmd)
	addModelFlags(compareCmd)

	compareCmd.MarkFlagRequired("mzml")
	compareCmd.MarkFlagRequired("scan")
}

// scored is one printed comparison
type scored struct {
	name   string
	pep    core.Peptide
	irt    *float64
	mz     []float64
	ints   []float64
	result compare.Result
}

func runCompare(cmd *cobra.Command, args []string) error {
	if (peptideSeq == "") == (predictionsFile == "") {
		return fmt.Errorf("exactly one of --peptide and --predictions is required")
	}
	if scanNumber < 1 {
		return fmt.Errorf("--scan must be at least 1, got %d", scanNumber)
	}
	format, err := validFormat(predFormat)
	if err != nil {
		return err
	}

	modDB, err := loadModDatabase()
	if err != nil {
		return err
	}
	opts := compare.Options{
		TolerancePPM: tolerance,
		Filter:       filterConfig(),
		Convert:      convert.Options{Mods: modDB},
	}

	// The observed file is checked before any model is loaded
	comparer, err := compare.New(mzmlFile, nil, opts)
	if err != nil {
		return err
	}
	if _, err := comparer.Observed(scanNumber); err != nil {
		return err
	}

	var results []scored
	if peptideSeq != "" {
		results, err = comparePeptide(comparer)
	} else {
		results, err = comparePredictions(comparer, format)
	}
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "scan\tpeptide\tscore\tmatched\n")
	for _, r := range results {
		fmt.Fprintf(out, "%d\t%s\t%.6f\t%d/%d\n", r.result.ScanNumber, r.name, r.result.Score,
			r.result.Matched, r.result.Predicted)
	}

	if dbFile != "" {
		return writeScores(results)
	}
	return nil
}

// comparePeptide predicts one peptide and scores it
func comparePeptide(c *compare.Comparer) ([]scored, error) {
	pep := core.Peptide{ModifiedSequence: peptideSeq, CollisionEnergy: collisionEnergy, Charge: charge}
	if err := pep.Validate(); err != nil {
		return nil, err
	}

	models, err := loadPredictor()
	if err != nil {
		return nil, err
	}
	defer models.Close()

	spinner := progress.StartSpinner(os.Stderr, fmt.Sprintf("Predicting %s/%d...", pep.ModifiedSequence, pep.Charge))
	res, rows, err := c.WithPredictor(models.predictor).ScorePeptide(scanNumber, pep)
	took := spinner.Stop()
	if err != nil {
		return nil, err
	}
	fmt.Fprintf(os.Stderr, "Predicted %s/%d in %s\n", pep.ModifiedSequence, pep.Charge, progress.Elapsed(took))

	mz, ints := convert.GenericVectors(rows)
	s := scored{name: pep.ModifiedSequence, pep: pep, mz: mz, ints: ints, result: res}
	if len(rows) > 0 && !math.IsNaN(rows[0].IRT) {
		irt := rows[0].IRT
		s.irt = &irt
	}
	return []scored{s}, nil
}

// comparePredictions scores a prediction CSV
func comparePredictions(c *compare.Comparer, format string) ([]scored, error) {
	f, err := os.Open(predictionsFile)
	if err != nil {
		return nil, fmt.Errorf("failed to open predictions: %w", err)
	}
	defer f.Close()

	if format == "generic" {
		rows, err := convert.ReadGenericCSV(f)
		if err != nil {
			return nil, fmt.Errorf("error reading %s: %w", predictionsFile, err)
		}
		if len(rows) == 0 {
			return nil, fmt.Errorf("no fragments in %s", predictionsFile)
		}
		res, err := c.ScoreGeneric(scanNumber, rows)
		if err != nil {
			return nil, err
		}
		mz, ints := convert.GenericVectors(rows)
		name := rows[0].ModifiedPeptide
		pep := core.Peptide{ModifiedSequence: name, Charge: rows[0].PrecursorCharge}
		for _, r := range rows[1:] {
			if r.ModifiedPeptide != rows[0].ModifiedPeptide || r.PrecursorCharge != rows[0].PrecursorCharge {
				name = "chimeric"
				break
			}
		}
		return []scored{{name: name, pep: pep, mz: mz, ints: ints, result: res}}, nil
	}

	rows, err := convert.ReadLongFormCSV(f)
	if err != nil {
		return nil, fmt.Errorf("error reading %s: %w", predictionsFile, err)
	}
	out := make([]scored, 0, len(rows))
	for _, row := range rows {
		res, err := c.ScoreLongForm(scanNumber, row)
		if err != nil {
			return nil, err
		}
		s := scored{
			name:   row.ModifiedSequence,
			pep:    core.Peptide{ModifiedSequence: row.ModifiedSequence, CollisionEnergy: row.CollisionEnergy, Charge: row.Charge},
			mz:     row.Masses,
			ints:   row.Intensities,
			result: res,
		}
		if rt := row.RetentionTime; !math.IsNaN(rt) {
			s.irt = &rt
		}
		out = append(out, s)
	}
	return out, nil
}

// writeScores stores comparison results in dbFile
func writeScores(results []scored) error {
	writer, err := sqlite.NewWriter(dbFile, "prositgo compare")
	if err != nil {
		return fmt.Errorf("failed to create output database: %w", err)
	}
	for _, r := range results {
		rec := &sqlite.ScoreRecord{
			Peptide:            r.pep,
			IRT:                r.irt,
			SourceFile:         filepath.Base(mzmlFile),
			ScanNumber:         r.result.ScanNumber,
			Name:               r.name,
			Score:              r.result.Score,
			MatchedPeaks:       r.result.Matched,
			PredictedPeaks:     r.result.Predicted,
			PredictedMZ:        r.mz,
			PredictedIntensity: r.ints,
		}
		if err := writer.WriteScore(rec); err != nil {
			writer.Close()
			return fmt.Errorf("failed to write score for %s: %w", r.name, err)
		}
	}
	if err := writer.Finalize(); err != nil {
		return fmt.Errorf("failed to finalize database: %w", err)
	}
	fmt.Fprintf(os.Stderr, "Scores written to %s\n", dbFile)
	return nil
}
