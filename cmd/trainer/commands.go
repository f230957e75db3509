package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"github.com/tatsushid/go-prettytable"

	"crimewatch/internal/artifact"
	"crimewatch/internal/dataset"
	"crimewatch/internal/domain/modelrun"
	"crimewatch/internal/ml"
	"crimewatch/internal/training"
	"crimewatch/pkg/errors"
)

const (
	lockKey = "crimewatch:trainer"
	lockTTL = 2 * time.Hour
)

func train(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	flags := cmd.Flags()

	opts := training.OptionsFromConfig(app.cfg.Trainer)
	if flags.Changed("from-year") {
		opts.FromYear, _ = flags.GetInt("from-year")
	}
	if flags.Changed("to-year") {
		opts.ToYear, _ = flags.GetInt("to-year")
	}
	if flags.Changed("min-support") {
		opts.MinLabelSupport, _ = flags.GetInt("min-support")
	}
	if flags.Changed("seed") {
		opts.Seed, _ = flags.GetInt64("seed")
	}
	if flags.Changed("allow-single-class") {
		opts.AllowSingleClass, _ = flags.GetBool("allow-single-class")
	}
	path, _ := flags.GetString("dataset")
	if path == "" {
		path = app.cfg.Dataset.Path
	}

	// Two trainers publishing at once is safe but wasteful
	if app.redis != nil {
		lock, err := app.redis.AcquireLock(ctx, lockKey, lockTTL)
		if err != nil {
			return err
		}
		if lock == nil {
			return errors.Wrapf(errors.ErrAlreadyExists, "another trainer holds %q", lockKey)
		}
		defer func() { _ = app.redis.ReleaseLock(context.WithoutCancel(ctx), lock) }()
	}

	records, stats, err := dataset.Load(path)
	if err != nil {
		return err
	}
	fmt.Printf("Read %s rows from %s (%s bad dates, %s bad times, %s bad ages)\n",
		humanize.Comma(int64(stats.Rows)), path,
		humanize.Comma(int64(stats.BadDates)), humanize.Comma(int64(stats.BadTimes)), humanize.Comma(int64(stats.BadAges)))

	trainer := training.NewTrainer(app.store, app.runs, opts)
	report, err := trainer.Run(ctx, records)
	if err != nil {
		return err
	}

	if asJSON, _ := flags.GetBool("json"); asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}
	printReport(os.Stdout, report)
	return nil
}

func printReport(w io.Writer, r *training.Report) {
	fmt.Fprintf(w, "Published bundle %s in %s\n", r.BundleVersion, r.Duration.Round(time.Millisecond))
	fmt.Fprintf(w, "Rows: %s read, %s in window, %s complete, %s retained (%s train / %s test)\n",
		humanize.Comma(int64(r.RowsRead)), humanize.Comma(int64(r.RowsInWindow)),
		humanize.Comma(int64(r.RowsComplete)), humanize.Comma(int64(r.RowsRetained)),
		humanize.Comma(int64(r.TrainRows)), humanize.Comma(int64(r.TestRows)))
	fmt.Fprintf(w, "Labels: %d kept", len(r.Labels))
	if len(r.PrunedLabels) > 0 {
		fmt.Fprintf(w, ", pruned %s", strings.Join(r.PrunedLabels, ", "))
	}
	fmt.Fprintln(w)

	_, _ = candidateTable(r).WriteTo(w)

	fmt.Fprintf(w, "Hold-out accuracy %.4f, weighted F1 %.4f\n", r.Evaluation.Accuracy, r.HoldoutF1)
	if len(r.CVScores) > 0 {
		fmt.Fprintf(w, "Cross-validation weighted F1 %.4f ± %.4f over %d folds\n", r.CVMeanF1, r.CVStdF1, len(r.CVScores))
	}
}

func candidateTable(r *training.Report) *prettytable.Table {
	table, _ := prettytable.NewTable(
		prettytable.Column{Header: "Trees", AlignRight: true},
		prettytable.Column{Header: "Weighted F1", AlignRight: true},
		prettytable.Column{Header: "Note"},
	)
	table.Separator = "  "
	for _, c := range r.Candidates {
		marker := ""
		if c.Trees == r.SelectedTrees {
			marker = "selected"
		}
		_ = table.AddRow(c.Trees, fmt.Sprintf("%.4f", c.WeightedF1), marker)
	}
	return table
}

func importONNX(cmd *cobra.Command, args []string) error {
	model, err := os.ReadFile(args[0])
	if err != nil {
		return errors.Wrap(err, "read model")
	}
	raw, err := os.ReadFile(args[1])
	if err != nil {
		return errors.Wrap(err, "read encoders")
	}
	var enc ml.EncoderSet
	if err := json.Unmarshal(raw, &enc); err != nil {
		return errors.Wrap(err, "decode encoders")
	}
	if err := enc.Validate(); err != nil {
		return err
	}

	if skip, _ := cmd.Flags().GetBool("skip-verify"); !skip {
		opts := ml.DefaultONNXOptions()
		opts.LibraryPath = app.cfg.ONNX.LibraryPath
		clf, err := ml.LoadONNXClassifier(model, enc.Label.Len(), opts)
		if err != nil {
			return errors.Wrap(err, "verify model")
		}
		clf.Destroy()
	}

	bundle := artifact.NewONNXBundle(model, &enc)
	if err := app.store.Save(cmd.Context(), bundle); err != nil {
		return err
	}
	fmt.Printf("Published ONNX bundle %s (%s, %d classes)\n",
		bundle.Manifest.Version, humanize.Bytes(uint64(len(model))), bundle.Manifest.NumClasses)
	return nil
}

func inspect(cmd *cobra.Command, args []string) error {
	b, err := app.store.Load(cmd.Context())
	if errors.Is(err, artifact.ErrNotFound) {
		fmt.Println("No bundle published")
		return nil
	}
	if err != nil {
		return err
	}

	m := b.Manifest
	fmt.Printf("Version:    %s\n", m.Version)
	fmt.Printf("Created:    %s (%s)\n", m.CreatedAt.Format(time.RFC3339), humanize.Time(m.CreatedAt))
	fmt.Printf("Format:     %s\n", m.ClassifierFormat)
	fmt.Printf("Classes:    %d\n", m.NumClasses)
	fmt.Printf("Compatible: %t\n", m.Compatible())

	vocabularyTable(b.Encoders).Print()

	if t := m.Training; t != nil {
		fmt.Printf("Training:   %d trees, hold-out F1 %.4f, CV F1 %.4f ± %.4f, %s train rows\n",
			t.SelectedTrees, t.HoldoutF1, t.CVMeanF1, t.CVStdF1, humanize.Comma(int64(t.TrainRows)))
	}
	return nil
}

func history(cmd *cobra.Command, args []string) error {
	if app.runs == nil {
		return errors.Wrap(errors.ErrUnavailable, "run history needs CLICKHOUSE_HOST")
	}
	limit, _ := cmd.Flags().GetInt("limit")
	runs, err := app.runs.Latest(cmd.Context(), limit)
	if err != nil {
		return err
	}

	historyTable(runs).Print()
	return nil
}

func vocabularyTable(enc *ml.EncoderSet) *prettytable.Table {
	table, _ := prettytable.NewTable(
		prettytable.Column{Header: "Feature"},
		prettytable.Column{Header: "Vocabulary", AlignRight: true},
	)
	table.Separator = "  "
	for _, name := range ml.FeatureOrder {
		_ = table.AddRow(name, enc.Feature(name).Len())
	}
	_ = table.AddRow(ml.LabelField, enc.Label.Len())
	return table
}

func historyTable(runs []modelrun.Run) *prettytable.Table {
	table, _ := prettytable.NewTable(
		prettytable.Column{Header: "Started"},
		prettytable.Column{Header: "Status"},
		prettytable.Column{Header: "Version"},
		prettytable.Column{Header: "Rows", AlignRight: true},
		prettytable.Column{Header: "Classes", AlignRight: true},
		prettytable.Column{Header: "Trees", AlignRight: true},
		prettytable.Column{Header: "F1", AlignRight: true},
	)
	table.Separator = "  "
	for _, r := range runs {
		version := r.BundleVersion
		if version == "" {
			version = "-"
		}
		_ = table.AddRow(humanize.Time(r.StartedAt), r.Status, version,
			humanize.Comma(int64(r.RowsRetained)), r.NumClasses, r.SelectedTrees,
			fmt.Sprintf("%.4f", r.HoldoutF1))
	}
	return table
}

func trainMain(rootCmd *cobra.Command) {
	trainCmd := &cobra.Command{
		Use:   "train",
		Short: "Train a forest from the historical dataset and publish it",
		Args:  cobra.NoArgs,
		RunE:  train,
	}
	trainCmd.Flags().StringP("dataset", "d", "", "dataset CSV (default DATASET_PATH)")
	trainCmd.Flags().Int("from-year", 0, "first year of the training window")
	trainCmd.Flags().Int("to-year", 0, "last year of the training window")
	trainCmd.Flags().Int("min-support", 0, "labels need more rows than this")
	trainCmd.Flags().Int64("seed", 0, "random seed")
	trainCmd.Flags().Bool("allow-single-class", false, "publish even when one label survives pruning")
	trainCmd.Flags().Bool("json", false, "print the training report as JSON")
	rootCmd.AddCommand(trainCmd)
}

func importMain(rootCmd *cobra.Command) {
	importCmd := &cobra.Command{
		Use:   "import-onnx <model.onnx> <encoders.json>",
		Short: "Publish an externally trained ONNX model with its encoders",
		Args:  cobra.ExactArgs(2),
		RunE:  importONNX,
	}
	importCmd.Flags().Bool("skip-verify", false, "publish without loading the model in onnxruntime first")
	rootCmd.AddCommand(importCmd)
}

func inspectMain(rootCmd *cobra.Command) {
	rootCmd.AddCommand(&cobra.Command{
		Use:   "inspect",
		Short: "Describe the currently published bundle",
		Args:  cobra.NoArgs,
		RunE:  inspect,
	})
}

func historyMain(rootCmd *cobra.Command) {
	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "List recent training runs",
		Args:  cobra.NoArgs,
		RunE:  history,
	}
	historyCmd.Flags().IntP("limit", "n", 20, "number of runs")
	rootCmd.AddCommand(historyCmd)
}
