package modelrun

import "time"

// Run is the persisted record of one training pipeline execution
type Run struct {
	BundleVersion  string    `ch:"bundle_version"`
	StartedAt      time.Time `ch:"started_at"`
	FinishedAt     time.Time `ch:"finished_at"`
	Status         string    `ch:"status"` // success | failed
	Error          string    `ch:"error"`
	RowsRead       uint32    `ch:"rows_read"`
	RowsRetained   uint32    `ch:"rows_retained"`
	NumClasses     uint16    `ch:"num_classes"`
	SelectedTrees  uint16    `ch:"selected_trees"`
	HoldoutF1      float64   `ch:"holdout_f1"`
	CVMeanF1       float64   `ch:"cv_mean_f1"`
	CVStdF1        float64   `ch:"cv_std_f1"`
	Accuracy       float64   `ch:"accuracy"`
	PrunedLabels   []string  `ch:"pruned_labels"`
	CandidateTrees []uint16  `ch:"candidate_trees"`
	CandidateF1    []float64 `ch:"candidate_f1"`
}

const (
	StatusSuccess = "success"
	StatusFailed  = "failed"
)
