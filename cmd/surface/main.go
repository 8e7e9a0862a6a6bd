// Command surface fits every configured model on a survey CSV and writes the
// long-format prediction table (feature_a, feature_b, model, predicted_value).
//
//	surface -data NHANES.csv -out surfaces.csv
//	surface -config run.yaml -parallel
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"

	"github.com/ezoic/mlsurface/assemble"
	"github.com/ezoic/mlsurface/comparison"
	"github.com/ezoic/mlsurface/config"
	"github.com/ezoic/mlsurface/dataset"
	mlerrors "github.com/ezoic/mlsurface/pkg/errors"
	"github.com/ezoic/mlsurface/pkg/log"
)

func main() {
	configFile := flag.String("config", "", "Path to YAML run configuration (defaults to the NHANES walkthrough)")
	dataFile := flag.String("data", "", "Path to input CSV (overrides config input)")
	outFile := flag.String("out", "", "Path to output CSV (overrides config output, default stdout)")
	resolution := flag.Int("resolution", 0, "Grid points per feature (overrides config)")
	parallel := flag.Bool("parallel", false, "Fit models concurrently")
	logLevel := flag.String("log-level", "", "Log level (debug|info|warn|error)")
	strict := flag.Bool("strict", false, "Exit non-zero when any model fails")
	flag.Parse()

	if err := run(*configFile, *dataFile, *outFile, *resolution, *parallel, *logLevel, *strict); err != nil {
		fmt.Fprintf(os.Stderr, "surface: %v\n", err)
		os.Exit(1)
	}
}

func run(configFile, dataFile, outFile string, resolution int, parallel bool, logLevel string, strict bool) error {
	cfg := config.Default()
	if configFile != "" {
		var err error
		if cfg, err = config.Load(configFile); err != nil {
			return err
		}
	}
	if dataFile != "" {
		cfg.Input = dataFile
	}
	if outFile != "" {
		cfg.Output = outFile
	}
	if resolution != 0 {
		cfg.Grid.Resolution = resolution
	}
	if parallel {
		cfg.Parallel = true
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	if cfg.Input == "" {
		return mlerrors.NewConfigError("input", "no input CSV given (-data or config input)", nil)
	}

	log.SetGlobalProvider(log.NewZerologProviderWithWriter(os.Stderr, log.ToLogLevel(cfg.LogLevel)))
	logger := log.GetLoggerWithName("surface")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	frame, err := dataset.LoadCSVFile(ctx, cfg.Input)
	if err != nil {
		return err
	}
	result, err := comparison.Run(ctx, frame, cfg)
	if err != nil {
		return err
	}

	if err := writeTable(os.Stdout, cfg.Output, result.Table); err != nil {
		return err
	}

	names := make([]string, 0, len(result.Scores))
	for name := range result.Scores {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		s := result.Scores[name]
		logger.Info("Training scores",
			log.RunIDKey, result.RunID,
			log.ModelNameKey, name,
			log.AccuracyKey, s.Accuracy,
			log.AUCKey, s.AUC,
			"log_loss", s.LogLoss,
			"brier", s.Brier,
		)
	}

	if err := result.Err(); err != nil {
		if strict {
			return err
		}
		logger.Warn("Some models failed", log.RunIDKey, result.RunID, log.ErrorKey, err)
	}
	return nil
}

// writeTable writes the table to path, or to stdout when path is empty. The file is
// closed before returning so a failed flush is reported.
func writeTable(stdout io.Writer, path string, table *assemble.PredictionTable) error {
	if path == "" {
		return table.WriteCSV(stdout)
	}
	f, err := os.Create(path)
	if err != nil {
		return mlerrors.Wrapf(err, "create %s", path)
	}
	if err := table.WriteCSV(f); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return mlerrors.Wrapf(err, "close %s", path)
	}
	return nil
}
