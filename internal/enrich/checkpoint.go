package enrich

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/gallery-ai/critic/internal/dataset"
)

// Checkpoint records how far an enrichment run has progressed.
type Checkpoint struct {
	NextRow   int    `json:"next_row"`
	TotalRows int    `json:"total_rows"`
	Input     string `json:"input"`
}

// CheckpointPath returns the checkpoint file used for output.
func CheckpointPath(output string) string {
	return output + ".checkpoint.json"
}

// LoadCheckpoint reads the checkpoint at path. It reports false when none exists.
func LoadCheckpoint(path string) (Checkpoint, bool, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return Checkpoint{}, false, nil
	}

	if err != nil {
		return Checkpoint{}, false, fmt.Errorf("read checkpoint: %w", err)
	}

	var cp Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return Checkpoint{}, false, fmt.Errorf("decode checkpoint %s: %w", path, err)
	}

	if cp.NextRow < 0 || cp.NextRow > cp.TotalRows {
		return Checkpoint{}, false, fmt.Errorf("checkpoint %s: next_row %d out of range [0,%d]", path, cp.NextRow, cp.TotalRows)
	}

	return cp, true, nil
}

// Save atomically replaces the checkpoint at path.
func (c Checkpoint) Save(path string) error {
	return dataset.WriteFileAtomic(path, func(w io.Writer) error {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")

		return enc.Encode(c)
	})
}
