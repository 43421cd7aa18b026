package main

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/ptnghia-j/ChordMiniApp-sub001/cache"
	"github.com/ptnghia-j/ChordMiniApp-sub001/chordgrid"
	"github.com/ptnghia-j/ChordMiniApp-sub001/config"
	"github.com/ptnghia-j/ChordMiniApp-sub001/services/analysis"
	"github.com/ptnghia-j/ChordMiniApp-sub001/stats"
)

var conf = config.Get()

// Shared server state, assigned during startup.
var (
	gridCache      *cache.Store
	statsStore     *stats.Store
	analysisClient *analysis.Client
	inFlightReqs   sync.Map
)

var rootCmd = &cobra.Command{
	Use:   "chordgrid-api",
	Short: "Chord grid alignment service",
	Long: `chordgrid-api aligns chord recognition results to a visual beat grid.

It serves grids over HTTP (cache-first, backed by a chord analysis
backend) and can also compute a grid offline from an analysis JSON file.`,
	SilenceUsage: true,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer()
	},
}

var gridFile string

var gridCmd = &cobra.Command{
	Use:   "grid",
	Short: "Compute a chord grid from an analysis JSON file",
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(gridFile)
		if err != nil {
			return fmt.Errorf("reading analysis file: %w", err)
		}
		var result chordgrid.AnalysisResult
		if err := json.Unmarshal(data, &result); err != nil {
			return fmt.Errorf("parsing analysis file: %w", err)
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(chordgrid.BuildGrid(result))
	},
}

func init() {
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	log.SetOutput(os.Stdout)
	log.SetLevel(log.InfoLevel)

	gridCmd.Flags().StringVarP(&gridFile, "file", "f", "", "analysis result JSON file")
	_ = gridCmd.MarkFlagRequired("file")
	rootCmd.AddCommand(serveCmd, gridCmd)
}

func main() {
	cobra.CheckErr(rootCmd.Execute())
}
