package storage

import (
	"time"

	"dropout-risk/internal/gbdt"
)

// RunRecord describes one completed training run.
type RunRecord struct {
	ID             string      `json:"id"`
	Model          string      `json:"model"`
	StartedAt      time.Time   `json:"started_at"`
	FinishedAt     time.Time   `json:"finished_at"`
	DataPath       string      `json:"data_path"`
	ArtifactPath   string      `json:"artifact_path"`
	ArtifactSHA256 string      `json:"artifact_sha256"`
	Params         gbdt.Params `json:"params"`
	Features       []string    `json:"features"`
	TrainingRows   int         `json:"training_rows"`
	TestRows       int         `json:"test_rows"`
	Accuracy       float64     `json:"accuracy"`
	ROCAUC         float64     `json:"roc_auc"`
}

// Duration returns how long the run took.
func (r RunRecord) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// PreparationRecord keeps what the preparer fitted during a run: medians of
// imputed numeric columns and category orders of encoded text columns.
type PreparationRecord struct {
	RunID      string              `json:"run_id"`
	Medians    map[string]float64  `json:"medians"`
	Categories map[string][]string `json:"categories"`
}
