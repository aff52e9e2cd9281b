package imaging

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gallery-ai/critic/internal/critiqueerrors"
)

// DirSource reads reference artwork images from a directory keyed by filename.
type DirSource struct {
	root string
}

// NewDirSource creates a DirSource rooted at dir.
func NewDirSource(dir string) *DirSource {
	return &DirSource{root: dir}
}

// Read returns the raw bytes of the named image.
// Filenames that would escape the root directory are rejected.
func (s *DirSource) Read(ctx context.Context, filename string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if filename == "" || !filepath.IsLocal(filename) {
		return nil, critiqueerrors.NewValidationError("filename", fmt.Sprintf("invalid image filename %q", filename))
	}

	data, err := os.ReadFile(filepath.Join(s.root, filename))
	if err != nil {
		return nil, fmt.Errorf("read image %s: %w", filename, err)
	}

	return data, nil
}
