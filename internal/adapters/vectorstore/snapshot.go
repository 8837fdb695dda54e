package vectorstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/manthysbr/travelagent/internal/core/domain"
	"github.com/manthysbr/travelagent/internal/core/ports"
)

// FileSource reads the chunk snapshot written by the embedding job:
// one JSON array of {id, file, text, embedding} records.
type FileSource struct {
	path string
}

var _ ports.ChunkSource = (*FileSource)(nil)

func NewFileSource(path string) *FileSource {
	return &FileSource{path: path}
}

func (s *FileSource) LoadChunks(ctx context.Context) ([]domain.Chunk, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: failed to load %s: no snapshot found, run the embedding job first", domain.ErrRetrieval, s.path)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: failed to load %s: %v", domain.ErrRetrieval, s.path, err)
	}

	var chunks []domain.Chunk
	if err := json.Unmarshal(data, &chunks); err != nil {
		if json.Valid(data) {
			return nil, fmt.Errorf("%w: failed to load %s: snapshot is not a chunk array", domain.ErrRetrieval, s.path)
		}
		return nil, fmt.Errorf("%w: failed to load %s: %v", domain.ErrRetrieval, s.path, err)
	}
	return chunks, nil
}
