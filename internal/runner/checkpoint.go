package runner

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
)

// Checkpoint records the last fully processed position in the active-case
// ordering so an interrupted run can resume where it stopped.
type Checkpoint struct {
	LastCaseNumber string `json:"last_case_number"`
	LastIndex      int    `json:"last_index"`
}

// CheckpointFile persists the checkpoint as JSON next to the database. The
// file is written after every processed case and removed when a run
// completes cleanly.
type CheckpointFile struct {
	path string
}

func NewCheckpointFile(path string) *CheckpointFile {
	return &CheckpointFile{path: path}
}

func (f *CheckpointFile) Save(cp Checkpoint) error {
	data, err := json.Marshal(cp)
	if err != nil {
		return fmt.Errorf("encode checkpoint: %w", err)
	}
	if err := os.WriteFile(f.path, data, 0o644); err != nil {
		return fmt.Errorf("write checkpoint: %w", err)
	}
	return nil
}

// Load returns the stored checkpoint and whether one exists. A missing file
// is not an error.
func (f *CheckpointFile) Load() (Checkpoint, bool, error) {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return Checkpoint{}, false, nil
	}
	if err != nil {
		return Checkpoint{}, false, fmt.Errorf("read checkpoint: %w", err)
	}

	var cp Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return Checkpoint{}, false, fmt.Errorf("decode checkpoint: %w", err)
	}
	return cp, true, nil
}

func (f *CheckpointFile) Clear() error {
	err := os.Remove(f.path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("clear checkpoint: %w", err)
	}
	return nil
}
