package cli

import (
	"context"
	"fmt"
	"math"
	"os"

	"github.com/spf13/cobra"

	"github.com/haskel/raimetrics/internal/aisystem"
	"github.com/haskel/raimetrics/internal/dataset"
	"github.com/haskel/raimetrics/internal/export"
	"github.com/haskel/raimetrics/internal/logger"
	"github.com/haskel/raimetrics/internal/recorder"
)

var computeCmd = &cobra.Command{
	Use:   "compute",
	Short: "Compute metrics for one set of model predictions",
	Long: `Compute every metric group for a dataset split and the model's predictions.

By default the computation runs locally: the configured dataset is loaded,
the metric groups are initialized, the predictions file is read and the
result is exported to the configured export directory and published to the
enabled publishers. With --remote the predictions are sent to a running
server instead.

The predictions file is any CSV, Parquet or JSON file the dataset loader
reads. Its --column holds one prediction per row of the split. Text
predictions are encoded with the categories of the dataset label, so "high"
in the predictions means the same class as "high" in the ground truth. With
--proba the remaining columns are the class probabilities of each row.

Examples:
  rai compute -c rai.yaml --predictions preds.csv --split test
  rai compute --predictions preds.parquet --tag nightly --remote`,
	RunE: runCompute,
}

var (
	computePredictions string
	computeColumn      string
	computeProba       bool
	computeSplit       string
	computeTag         string
	computeReset       bool
	computeIsolate     bool
	computeRemote      bool
)

func init() {
	computeCmd.Flags().StringVar(&computePredictions, "predictions", "", "predictions file (required)")
	computeCmd.Flags().StringVar(&computeColumn, "column", "prediction", "prediction column of the file")
	computeCmd.Flags().BoolVar(&computeProba, "proba", false, "treat the other columns as class probabilities")
	computeCmd.Flags().StringVar(&computeSplit, "split", "test", "dataset split (train, val, test)")
	computeCmd.Flags().StringVar(&computeTag, "tag", "", "measurement tag")
	computeCmd.Flags().BoolVar(&computeReset, "reset", false, "reset accumulated state first")
	computeCmd.Flags().BoolVar(&computeIsolate, "isolate", false, "keep the groups that succeed when others fail")
	computeCmd.Flags().BoolVar(&computeRemote, "remote", false, "send the predictions to a running server")
	computeCmd.MarkFlagRequired("predictions")
	rootCmd.AddCommand(computeCmd)
}

func runCompute(cmd *cobra.Command, args []string) error {
	split, err := dataset.ParseSplit(computeSplit)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	opts := aisystem.ComputeOptions{
		Split:   split,
		Reset:   computeReset,
		Isolate: computeIsolate,
	}

	if computeRemote {
		return computeRemotely(ctx, opts)
	}
	return computeLocally(ctx, opts)
}

// predictions is one loaded predictions file. Labels holds the text of
// every prediction when the column is categorical.
type predictions struct {
	Values        []float64
	Labels        []string
	Probabilities [][]float64
}

// loadPredictions reads src.Label and, with proba, the remaining columns as
// per-row class probabilities.
func loadPredictions(ctx context.Context, loader *dataset.Loader, src dataset.Source, proba bool) (*predictions, error) {
	data, err := loader.Load(ctx, src)
	if err != nil {
		return nil, fmt.Errorf("failed to read predictions: %w", err)
	}
	if !data.HasLabels() {
		return nil, fmt.Errorf("predictions file has no %q column", src.Label)
	}

	p := &predictions{Values: data.Y}
	if proba {
		p.Probabilities = data.X
	}
	if cats := data.Categories[src.Label]; len(cats) > 0 {
		p.Labels = make([]string, len(data.Y))
		for i, code := range data.Y {
			if math.IsNaN(code) || int(code) >= len(cats) {
				return nil, fmt.Errorf("prediction %d is not a category of %s", i, src.Label)
			}
			p.Labels[i] = cats[int(code)]
		}
	}
	return p, nil
}

// computeRemotely sends text predictions as labels so the server encodes
// them with its own dataset codes.
func computeRemotely(ctx context.Context, opts aisystem.ComputeOptions) error {
	loader, err := dataset.OpenLoader()
	if err != nil {
		return err
	}
	defer loader.Close()

	preds, err := loadPredictions(ctx, loader, dataset.Source{Path: computePredictions, Label: computeColumn}, computeProba)
	if err != nil {
		return err
	}

	req := map[string]any{
		"split":         opts.Split,
		"probabilities": preds.Probabilities,
		"reset":         opts.Reset,
		"isolate":       opts.Isolate,
		"tag":           computeTag,
	}
	if preds.Labels != nil {
		req["prediction_labels"] = preds.Labels
	} else {
		req["predictions"] = preds.Values
	}

	var res struct {
		recorder.Result
		Error string `json:"error"`
	}
	if err := NewClient().PostJSON("/v1/compute", req, &res); err != nil {
		return fmt.Errorf("failed to compute: %w", err)
	}

	return printComputeResult(&res.Result, res.Error)
}

func computeLocally(ctx context.Context, opts aisystem.ComputeOptions) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	level := cfg.Logging.Level
	if !verbose {
		level = "warn"
	}
	log := logger.NewWithWriter(os.Stderr, level, cfg.Logging.Format)

	loader, err := dataset.OpenLoader()
	if err != nil {
		return err
	}
	defer loader.Close()

	sys, err := newSystem(ctx, cfg, loader, log)
	if err != nil {
		return err
	}

	preds, err := loadPredictions(ctx, loader, cfg.PredictionSource(computePredictions, computeColumn), computeProba)
	if err != nil {
		return err
	}
	opts.Predictions = preds.Values
	opts.Probabilities = preds.Probabilities

	initOpts, err := initOptions(cfg)
	if err != nil {
		return err
	}

	pubs, err := newPublishers(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer pubs.Close()

	rec := recorder.New(sys,
		recorder.WithPublisher(pubs.multi),
		recorder.WithExporter(export.New(cfg.Export.Dir, log)),
		recorder.WithLogger(log),
	)
	if _, err := rec.Initialize(ctx, initOpts); err != nil {
		return err
	}

	res, computeErr := rec.Compute(ctx, opts, computeTag)
	if res == nil {
		return computeErr
	}

	dir, err := rec.Export()
	if err != nil {
		return fmt.Errorf("failed to export: %w", err)
	}
	log.Info("metrics exported", "dir", dir)

	errMsg := ""
	if computeErr != nil {
		errMsg = computeErr.Error()
	}
	return printComputeResult(res, errMsg)
}

func printComputeResult(res *recorder.Result, errMsg string) error {
	if jsonOut {
		return printJSON(map[string]any{"result": res, "error": errMsg})
	}

	if r := res.Report; r != nil {
		fmt.Printf("Computed %d groups on %s (%d rows) at %s\n", len(r.Computed), r.Split, r.Rows, r.Timestamp)
		for g, msg := range r.Failed {
			fmt.Printf("  failed: %s: %s\n", g, msg)
		}
	}
	if res.Measurement != nil {
		fmt.Println()
		printValues(os.Stdout, res.Measurement.Values)
	}
	if errMsg != "" {
		return fmt.Errorf("some metric groups failed: %s", errMsg)
	}
	return nil
}
