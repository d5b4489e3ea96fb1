package ml

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"time"

	"dropout-risk/internal/features"
	"dropout-risk/internal/gbdt"
)

// ArtifactFormatVersion is bumped whenever the artifact layout changes.
const ArtifactFormatVersion = 1

// ErrFeatureMismatch is returned when an artifact was trained on features
// other than features.Names.
var ErrFeatureMismatch = errors.New("artifact feature names do not match the serving features")

// ModelMetadata describes how an artifact was produced.
type ModelMetadata struct {
	Version      string      `json:"version"`
	TrainedAt    time.Time   `json:"trained_at"`
	Features     []string    `json:"features"`
	Source       string      `json:"source"`
	TrainingRows int         `json:"training_rows"`
	TestRows     int         `json:"test_rows"`
	Accuracy     float64     `json:"accuracy"`
	ROCAUC       float64     `json:"roc_auc"`
	Params       gbdt.Params `json:"params"`
}

// Artifact is the persisted form of a trained model.
type Artifact struct {
	FormatVersion int              `json:"format_version"`
	Features      []string         `json:"features"`
	Metadata      ModelMetadata    `json:"metadata"`
	Model         *gbdt.Classifier `json:"model"`
}

// NewArtifact wraps a fitted classifier trained on features.Names.
func NewArtifact(model *gbdt.Classifier, meta ModelMetadata) *Artifact {
	names := slices.Clone(features.Names)
	meta.Features = names
	if meta.Version == "" {
		meta.Version = meta.TrainedAt.UTC().Format("20060102-150405")
	}
	meta.Params = model.Params()
	return &Artifact{
		FormatVersion: ArtifactFormatVersion,
		Features:      names,
		Metadata:      meta,
		Model:         model,
	}
}

// SaveArtifact writes the artifact to path. The file is written to a
// temporary sibling, synced and renamed over path, so readers only ever see
// a complete artifact. Missing directories are created.
func SaveArtifact(path string, a *Artifact) error {
	if a == nil || a.Model == nil {
		return fmt.Errorf("artifact has no model")
	}
	data, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("failed to encode artifact: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create model directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temporary artifact: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath) // no-op once renamed

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write artifact: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync artifact: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close artifact: %w", err)
	}
	if err := os.Chmod(tmpPath, 0o644); err != nil {
		return fmt.Errorf("failed to set artifact permissions: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("failed to move artifact into place: %w", err)
	}
	return nil
}

// LoadArtifact reads and checks an artifact. It fails with ErrFeatureMismatch
// when the recorded feature names differ from features.Names.
func LoadArtifact(path string) (*Artifact, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read artifact: %w", err)
	}

	var a Artifact
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("failed to decode artifact %s: %w", path, err)
	}
	if a.FormatVersion != ArtifactFormatVersion {
		return nil, fmt.Errorf("unsupported artifact format version %d", a.FormatVersion)
	}
	if a.Model == nil {
		return nil, fmt.Errorf("artifact %s has no model", path)
	}
	if !slices.Equal(a.Features, features.Names) {
		return nil, fmt.Errorf("%w: artifact has %v", ErrFeatureMismatch, a.Features)
	}
	if a.Model.NumFeatures() != len(a.Features) {
		return nil, fmt.Errorf("%w: model expects %d inputs", ErrFeatureMismatch, a.Model.NumFeatures())
	}
	return &a, nil
}
