// Package cmd provides CLI command implementations
package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ChrisMcGann/PrositGo/pkg/core"
	"github.com/ChrisMcGann/PrositGo/pkg/filter"
)

var (
	// Shared flags
	configFile  string
	modelDir    string
	irtModelDir string
	ortLib      string
	modsCSV     string
	threads     int

	// Observed peak filtering
	tolerance     float64
	topN          int
	cutoffPercent float64
	ionTypes      string
	maxCharge     int
)

var rootCmd = &cobra.Command{
	Use:   "prositgo",
	Short: "PrositGo - fragment ion and iRT prediction for peptides",
	Long: `PrositGo predicts peptide fragment ion intensities and indexed retention
times (iRT) with pre-trained models served through ONNX Runtime, and scores
predictions against observed spectra.

- predict: peptide CSV -> generic or msms table
- compare: score predictions against an mzML scan
- score-library: score an MSP spectral library against predictions
- tokenize: show how sequences are encoded for the models`,
	Version:           "0.3.0",
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: applyConfigFile,
}

// Execute runs the root command with os.Args
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "TOML file with default flag values")

	rootCmd.AddCommand(tokenizeCmd)
	rootCmd.AddCommand(predictCmd)
	rootCmd.AddCommand(compareCmd)
	rootCmd.AddCommand(scoreLibraryCmd)
}

// addModelFlags registers the flags that select models and the runtime
func addModelFlags(c *cobra.Command) {
	c.Flags().StringVarP(&modelDir, "model-dir", "m", "", "Fragmentation model directory (config.yml + model.onnx)")
	c.Flags().StringVar(&irtModelDir, "irt-model-dir", "", "iRT model directory (optional)")
	c.Flags().StringVar(&ortLib, "ort-lib", os.Getenv("ONNXRUNTIME_LIB"), "Path to the ONNX Runtime shared library")
	c.Flags().IntVar(&threads, "threads", 0, "Intra-op threads per model (0 = runtime default)")
	c.Flags().StringVar(&modsCSV, "mods", "", "Path to modification CSV (mod,mass[,tag])")
}

// addFilterFlags registers the observed peak filtering and matching flags
func addFilterFlags(c *cobra.Command) {
	c.Flags().Float64Var(&tolerance, "tolerance", 10, "Fragment match tolerance in ppm")
	c.Flags().IntVar(&topN, "top-n", 0, "Keep only top N most intense observed peaks (0 = no limit)")
	c.Flags().Float64Var(&cutoffPercent, "cutoff", 0, "Observed intensity cutoff as % of base peak (0 = no cutoff)")
}

// filterConfig builds the peak filter from flags
func filterConfig() *filter.Config {
	fc := &filter.Config{
		TopN:            topN,
		IntensityCutoff: cutoffPercent,
		MaxCharge:       maxCharge,
	}
	if ionTypes != "" {
		fc.IonTypes = strings.Split(ionTypes, ",")
		for i := range fc.IonTypes {
			fc.IonTypes[i] = strings.TrimSpace(fc.IonTypes[i])
		}
	}
	return fc
}

// loadModDatabase returns the default modifications plus any from --mods
// and unimod_custom.csv in the working directory
func loadModDatabase() (*core.ModDatabase, error) {
	modDB := core.DefaultModDatabase()

	if modsCSV != "" {
		f, err := os.Open(modsCSV)
		if err != nil {
			return nil, fmt.Errorf("failed to open modification file: %w", err)
		}
		defer f.Close()
		if err := modDB.LoadFromCSV(f); err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", modsCSV, err)
		}
		return modDB, nil
	}

	if _, err := os.Stat("unimod_custom.csv"); err == nil {
		f, err := os.Open("unimod_custom.csv")
		if err == nil {
			if err := modDB.LoadFromCSV(f); err != nil {
				fmt.Fprintf(os.Stderr, "Warning: failed to load unimod_custom.csv: %v\n", err)
			}
			f.Close()
		}
	}
	return modDB, nil
}
