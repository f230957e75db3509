package training

import (
	"context"
	"maps"
	"slices"
	"time"

	"crimewatch/internal/artifact"
	"crimewatch/internal/domain/incident"
	"crimewatch/internal/domain/modelrun"
	"crimewatch/internal/metrics"
	"crimewatch/internal/ml"
	"crimewatch/pkg/errors"
	"crimewatch/pkg/logger"
)

// Trainer turns historical records into a published model bundle.
type Trainer struct {
	store artifact.Store
	runs  modelrun.Repository
	opts  Options
	log   *logger.Logger
}

// NewTrainer creates a trainer. runs may be nil when no run history is kept.
func NewTrainer(store artifact.Store, runs modelrun.Repository, opts Options) *Trainer {
	return &Trainer{
		store: store,
		runs:  runs,
		opts:  opts,
		log:   logger.Get().With("component", "trainer"),
	}
}

// Run executes the pipeline and publishes the bundle. Nothing is written to
// the store unless every step succeeds.
func (t *Trainer) Run(ctx context.Context, records []incident.Record) (*Report, error) {
	started := time.Now()
	report := &Report{StartedAt: started.UTC(), RowsRead: len(records)}

	bundle, err := t.train(ctx, records, report)
	if err == nil {
		err = t.store.Save(ctx, bundle)
		if err == nil {
			report.BundleVersion = bundle.Manifest.Version
		}
	}
	report.Duration = time.Since(started)

	metrics.RecordTrainingRun(report.Duration, err)
	t.recordRun(ctx, report, err)

	if err != nil {
		t.log.Errorw("Training failed", "error", err, "duration", report.Duration)
		return report, errors.Wrap(err, "train")
	}
	t.log.Infow("Training finished",
		"version", report.BundleVersion,
		"trees", report.SelectedTrees,
		"holdout_f1", report.HoldoutF1,
		"cv_mean_f1", report.CVMeanF1,
		"duration", report.Duration,
	)
	return report, nil
}

func (t *Trainer) train(ctx context.Context, records []incident.Record, report *Report) (*artifact.Bundle, error) {
	if err := t.opts.validate(); err != nil {
		return nil, err
	}

	rows := t.prepare(records, report)
	if len(rows) == 0 {
		return nil, errors.Wrapf(errors.ErrEmptyDataset, "no complete rows in %d-%d", t.opts.FromYear, t.opts.ToYear)
	}

	rows = t.pruneRareLabels(rows, report)
	if len(report.Labels) == 0 {
		return nil, errors.Wrapf(errors.ErrEmptyDataset, "no label has more than %d rows", t.opts.MinLabelSupport)
	}
	if len(report.Labels) < 2 && !t.opts.AllowSingleClass {
		return nil, errors.Wrapf(errors.ErrDegenerateLabelSpace, "only %v survived pruning", report.Labels)
	}

	features := make([][]string, len(rows))
	labels := make([]string, len(rows))
	for i, r := range rows {
		features[i] = r.Tokens()
		labels[i] = r.Label
	}
	encoders, err := ml.FitEncoderSet(features, labels)
	if err != nil {
		return nil, errors.Wrap(err, "fit encoders")
	}

	x := make([][]float64, len(rows))
	for i, f := range features {
		if x[i], err = encoders.Encode(f); err != nil {
			return nil, errors.Wrap(err, "encode features")
		}
	}
	y, err := encoders.EncodeLabels(labels)
	if err != nil {
		return nil, err
	}
	numClasses := encoders.Label.Len()

	trainIdx, testIdx, err := ml.StratifiedSplit(y, t.opts.TestRatio, t.opts.Seed)
	if err != nil {
		return nil, err
	}
	if len(testIdx) == 0 {
		return nil, errors.Wrap(errors.ErrEmptyDataset, "held-out split is empty")
	}
	xTrain, yTrain := ml.Take(x, trainIdx), ml.Take(y, trainIdx)
	xTest, yTest := ml.Take(x, testIdx), ml.Take(y, testIdx)
	report.TrainRows, report.TestRows = len(trainIdx), len(testIdx)

	best, err := t.selectModel(ctx, xTrain, yTrain, xTest, yTest, numClasses, report)
	if err != nil {
		return nil, err
	}

	if err := t.crossValidate(ctx, x, y, numClasses, report); err != nil {
		return nil, err
	}

	report.Evaluation = ml.Evaluate(yTest, predictAll(best, xTest), numClasses)

	summary := &artifact.TrainingSummary{
		TrainRows:     report.TrainRows,
		TestRows:      report.TestRows,
		SelectedTrees: report.SelectedTrees,
		HoldoutF1:     report.HoldoutF1,
		CVMeanF1:      report.CVMeanF1,
		CVStdF1:       report.CVStdF1,
		PrunedLabels:  report.PrunedLabels,
	}
	return artifact.NewForestBundle(best, encoders, summary), nil
}

// prepare applies the year window and drops rows with any missing feature
func (t *Trainer) prepare(records []incident.Record, report *Report) []incident.FeatureRow {
	rows := make([]incident.FeatureRow, 0, len(records))
	for _, r := range records {
		year := r.Year()
		if year == 0 || year < t.opts.FromYear || year > t.opts.ToYear {
			continue
		}
		report.RowsInWindow++

		row := incident.Features(r)
		if !row.Complete() {
			continue
		}
		rows = append(rows, row)
	}
	report.RowsComplete = len(rows)
	t.log.Infow("Prepared rows", "read", report.RowsRead, "in_window", report.RowsInWindow, "complete", report.RowsComplete)
	return rows
}

// pruneRareLabels keeps rows whose label has more than MinLabelSupport rows
func (t *Trainer) pruneRareLabels(rows []incident.FeatureRow, report *Report) []incident.FeatureRow {
	counts := make(map[string]int)
	for _, r := range rows {
		counts[r.Label]++
	}
	report.LabelCounts = counts

	keep := make(map[string]bool, len(counts))
	for _, label := range slices.Sorted(maps.Keys(counts)) {
		if counts[label] > t.opts.MinLabelSupport {
			keep[label] = true
			report.Labels = append(report.Labels, label)
		} else {
			report.PrunedLabels = append(report.PrunedLabels, label)
		}
	}

	kept := rows[:0]
	for _, r := range rows {
		if keep[r.Label] {
			kept = append(kept, r)
		}
	}
	report.RowsRetained = len(kept)
	t.log.Infow("Pruned rare labels", "kept", len(report.Labels), "pruned", report.PrunedLabels, "rows", len(kept))
	return kept
}

// selectModel fits one forest per candidate size and keeps the first one
// with the highest held-out weighted F1
func (t *Trainer) selectModel(ctx context.Context, xTrain [][]float64, yTrain []int, xTest [][]float64, yTest []int, numClasses int, report *Report) (*ml.Forest, error) {
	var best *ml.Forest
	bestScore := -1.0

	for _, trees := range t.opts.Candidates {
		forest, err := ml.FitForest(ctx, xTrain, yTrain, numClasses, t.forestParams(trees))
		if err != nil {
			return nil, errors.Wrapf(err, "fit %d trees", trees)
		}
		score := ml.WeightedF1(yTest, predictAll(forest, xTest), numClasses)
		report.Candidates = append(report.Candidates, CandidateScore{Trees: trees, WeightedF1: score})
		t.log.Infow("Candidate scored", "trees", trees, "weighted_f1", score)

		if score > bestScore {
			best, bestScore = forest, score
			report.SelectedTrees = trees
		}
	}
	report.HoldoutF1 = bestScore
	return best, nil
}

// crossValidate reports k-fold weighted F1 of the selected size. It never
// influences which model is published.
func (t *Trainer) crossValidate(ctx context.Context, x [][]float64, y []int, numClasses int, report *Report) error {
	if t.opts.Folds < 2 || t.opts.Folds > len(y) {
		return nil
	}
	folds, err := ml.StratifiedKFold(y, t.opts.Folds, t.opts.Seed)
	if err != nil {
		return err
	}

	for i, fold := range folds {
		forest, err := ml.FitForest(ctx, ml.Take(x, fold.Train), ml.Take(y, fold.Train), numClasses, t.forestParams(report.SelectedTrees))
		if err != nil {
			return errors.Wrapf(err, "cross-validation fold %d", i+1)
		}
		report.CVScores = append(report.CVScores,
			ml.WeightedF1(ml.Take(y, fold.Test), predictAll(forest, ml.Take(x, fold.Test)), numClasses))
	}
	report.CVMeanF1, report.CVStdF1 = ml.MeanStd(report.CVScores)
	t.log.Infow("Cross-validation done", "folds", len(folds), "mean_f1", report.CVMeanF1, "std_f1", report.CVStdF1)
	return nil
}

func (t *Trainer) forestParams(trees int) ml.ForestParams {
	return ml.ForestParams{
		NumTrees:       trees,
		BalancedWeight: true,
		Seed:           t.opts.Seed,
		Workers:        t.opts.Workers,
	}
}

func predictAll(f *ml.Forest, x [][]float64) []int {
	out := make([]int, len(x))
	for i, row := range x {
		// rows come from the training matrix, so the width always matches
		out[i], _ = f.Predict(row)
	}
	return out
}

func (t *Trainer) recordRun(ctx context.Context, report *Report, runErr error) {
	if t.runs == nil {
		return
	}

	run := &modelrun.Run{
		BundleVersion: report.BundleVersion,
		StartedAt:     report.StartedAt,
		FinishedAt:    report.StartedAt.Add(report.Duration),
		Status:        modelrun.StatusSuccess,
		RowsRead:      uint32(report.RowsRead),
		RowsRetained:  uint32(report.RowsRetained),
		NumClasses:    uint16(len(report.Labels)),
		SelectedTrees: uint16(report.SelectedTrees),
		HoldoutF1:     report.HoldoutF1,
		CVMeanF1:      report.CVMeanF1,
		CVStdF1:       report.CVStdF1,
		Accuracy:      report.Evaluation.Accuracy,
		PrunedLabels:  report.PrunedLabels,
	}
	if runErr != nil {
		run.Status = modelrun.StatusFailed
		run.Error = runErr.Error()
	}
	for _, c := range report.Candidates {
		run.CandidateTrees = append(run.CandidateTrees, uint16(c.Trees))
		run.CandidateF1 = append(run.CandidateF1, c.WeightedF1)
	}
	if run.PrunedLabels == nil {
		run.PrunedLabels = []string{}
	}

	if err := t.runs.Save(ctx, run); err != nil {
		t.log.Warnw("Failed to record training run", "error", err)
	}
}
