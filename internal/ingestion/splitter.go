package ingestion

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/knoguchi/lexrag/internal/index"
	"github.com/knoguchi/lexrag/internal/loader"
)

// SplitStats contains statistics about a Split call.
type SplitStats struct {
	Documents      int
	Nodes          int
	TotalWords     int
	AvgNodeWords   int
	ProcessingTime time.Duration
}

// Splitter turns loaded documents into index nodes.
type Splitter struct {
	chunker *Chunker
}

// NewSplitter creates a Splitter with the given chunker configuration.
func NewSplitter(config ChunkerConfig) *Splitter {
	return &Splitter{chunker: NewChunker(config)}
}

// Split chunks every document in order. Each node gets a fresh UUID and
// carries the source file name and path plus its chunk position.
func (s *Splitter) Split(ctx context.Context, docs []loader.Document) ([]index.Node, SplitStats, error) {
	start := time.Now()
	var (
		nodes []index.Node
		stats SplitStats
	)

	for _, doc := range docs {
		if err := ctx.Err(); err != nil {
			return nil, stats, err
		}

		for _, chunk := range s.chunker.Chunk(doc.Text) {
			meta := make(map[string]string, len(chunk.Metadata)+len(doc.Metadata)+4)
			for k, v := range doc.Metadata {
				meta[k] = v
			}
			// chunk metadata wins over document metadata
			for k, v := range chunk.Metadata {
				meta[k] = v
			}
			meta[index.MetaFileName] = doc.FileName
			meta[index.MetaFilePath] = doc.Path
			meta[index.MetaChunkIndex] = strconv.Itoa(chunk.Index)
			meta["content_hash"] = doc.ContentHash

			nodes = append(nodes, index.Node{
				ID:         uuid.NewString(),
				DocumentID: doc.ID,
				Text:       chunk.Content,
				Metadata:   meta,
			})
			stats.TotalWords += len(strings.Fields(chunk.Content))
		}
		stats.Documents++
	}

	stats.Nodes = len(nodes)
	if stats.Nodes > 0 {
		stats.AvgNodeWords = stats.TotalWords / stats.Nodes
	}
	stats.ProcessingTime = time.Since(start)
	return nodes, stats, nil
}

// ValidateChunkerConfig validates a chunker configuration.
func ValidateChunkerConfig(config ChunkerConfig) error {
	if config.Method != "" && config.Method != MethodSentence && config.Method != MethodFixed {
		return fmt.Errorf("invalid chunking method: %s (valid: sentence, fixed)", config.Method)
	}
	if config.ChunkSize < 0 {
		return fmt.Errorf("chunk_size cannot be negative")
	}
	if config.Overlap < 0 {
		return fmt.Errorf("overlap cannot be negative")
	}
	if config.Overlap > 0 && config.ChunkSize > 0 && config.Overlap >= config.ChunkSize {
		return fmt.Errorf("overlap (%d) must be less than chunk_size (%d)", config.Overlap, config.ChunkSize)
	}
	return nil
}
