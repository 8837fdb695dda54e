package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/manthysbr/travelagent/internal/core/domain"
	"github.com/manthysbr/travelagent/internal/core/ports"
)

const importBatchSize = 256

// ImportChunks copies every chunk of src into dst in batches and returns the
// number written. Chunks with a malformed id or an empty embedding are skipped.
func ImportChunks(ctx context.Context, logger *slog.Logger, src ports.ChunkSource, dst ports.ChunkWriter) (int, error) {
	chunks, err := src.LoadChunks(ctx)
	if err != nil {
		return 0, err
	}

	valid := make([]domain.Chunk, 0, len(chunks))
	for _, c := range chunks {
		if _, _, err := domain.ParseChunkID(c.ID); err != nil || len(c.Embedding) == 0 {
			logger.Warn("skipping chunk", "id", c.ID, "error", err, "dims", len(c.Embedding))
			continue
		}
		valid = append(valid, c)
	}

	written := 0
	for start := 0; start < len(valid); start += importBatchSize {
		end := min(start+importBatchSize, len(valid))
		if err := dst.UpsertChunks(ctx, valid[start:end]); err != nil {
			return written, fmt.Errorf("upsert chunks %d-%d: %w", start, end, err)
		}
		written = end
	}

	logger.Info("chunks imported", "total", len(chunks), "written", written)
	return written, nil
}
