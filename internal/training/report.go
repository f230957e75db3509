package training

import (
	"time"

	"crimewatch/internal/ml"
)

// CandidateScore is the held-out score of one forest size
type CandidateScore struct {
	Trees      int     `json:"trees"`
	WeightedF1 float64 `json:"weighted_f1"`
}

// Report describes a finished training run
type Report struct {
	BundleVersion string           `json:"bundle_version"`
	StartedAt     time.Time        `json:"started_at"`
	Duration      time.Duration    `json:"duration"`
	RowsRead      int              `json:"rows_read"`
	RowsInWindow  int              `json:"rows_in_window"`
	RowsComplete  int              `json:"rows_complete"`
	RowsRetained  int              `json:"rows_retained"`
	LabelCounts   map[string]int   `json:"label_counts"`
	PrunedLabels  []string         `json:"pruned_labels"`
	Labels        []string         `json:"labels"`
	TrainRows     int              `json:"train_rows"`
	TestRows      int              `json:"test_rows"`
	Candidates    []CandidateScore `json:"candidates"`
	SelectedTrees int              `json:"selected_trees"`
	HoldoutF1     float64          `json:"holdout_f1"`
	CVScores      []float64        `json:"cv_scores,omitempty"`
	CVMeanF1      float64          `json:"cv_mean_f1"`
	CVStdF1       float64          `json:"cv_std_f1"`
	Evaluation    ml.Evaluation    `json:"evaluation"`
}
