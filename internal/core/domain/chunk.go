package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// Chunk is one embedded slice of a source document.
// ID has the form "file#index" and is unique across the corpus.
type Chunk struct {
	ID        string    `json:"id"`
	File      string    `json:"file"`
	Text      string    `json:"text"`
	Embedding []float32 `json:"embedding,omitempty"`
}

// Candidate is a chunk considered for grounding a single request.
// Rank is 1-based. Score is backend specific: cosine similarity for the
// vector indexes, a 0-10 judgment after reranking.
type Candidate struct {
	Chunk
	Rank  int     `json:"rank"`
	Score float64 `json:"score"`
}

// ChunkID builds the canonical "file#index" identifier.
func ChunkID(file string, index int) string {
	return fmt.Sprintf("%s#%d", file, index)
}

// ParseChunkID splits an identifier produced by ChunkID.
func ParseChunkID(id string) (string, int, error) {
	pos := strings.LastIndex(id, "#")
	if pos <= 0 || pos == len(id)-1 {
		return "", 0, fmt.Errorf("malformed chunk id %q", id)
	}
	idx, err := strconv.Atoi(id[pos+1:])
	if err != nil || idx < 0 {
		return "", 0, fmt.Errorf("malformed chunk index in %q", id)
	}
	return id[:pos], idx, nil
}

// AssignRanks assigns 1-based ranks in slice order.
func AssignRanks(cands []Candidate) []Candidate {
	for i := range cands {
		cands[i].Rank = i + 1
	}
	return cands
}
