package vectorstore

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/qdrant/go-client/qdrant"
)

const (
	payloadDocumentID = "document_id"
	payloadContent    = "content"

	upsertBatchSize = 256
)

// QdrantStore implements VectorStore using Qdrant
type QdrantStore struct {
	client *qdrant.Client
	prefix string
}

// NewQdrantStore creates a new Qdrant vector store client.
// url should be in format "host:port" (e.g., "localhost:6334"); collection
// names are prefixed with prefix when it is not empty.
func NewQdrantStore(ctx context.Context, url, prefix string) (*QdrantStore, error) {
	host, portStr, err := net.SplitHostPort(url)
	if err != nil {
		host = url
		portStr = "6334"
	}

	port, err := strconv.Atoi(portStr)
	if err != nil {
		return nil, fmt.Errorf("invalid port in qdrant url: %w", err)
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host: host,
		Port: port,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create qdrant client: %w", err)
	}

	return &QdrantStore{client: client, prefix: prefix}, nil
}

// Close closes the Qdrant client connection
func (s *QdrantStore) Close() error {
	return s.client.Close()
}

func (s *QdrantStore) collectionName(collection string) string {
	return collectionName(s.prefix, collection)
}

func collectionName(prefix, collection string) string {
	collection = strings.Map(func(r rune) rune {
		if r == '-' || r == '_' || ('a' <= r && r <= 'z') || ('A' <= r && r <= 'Z') || ('0' <= r && r <= '9') {
			return r
		}
		return '_'
	}, collection)
	if prefix == "" {
		return collection
	}
	return prefix + "_" + collection
}

// EnsureCollection creates a cosine collection if it does not exist yet.
func (s *QdrantStore) EnsureCollection(ctx context.Context, collection string, dimension int) error {
	name := s.collectionName(collection)

	exists, err := s.client.CollectionExists(ctx, name)
	if err != nil {
		return fmt.Errorf("failed to check collection existence: %w", err)
	}
	if exists {
		return nil
	}

	err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: name,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(dimension),
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}
	return nil
}

// DeleteCollection deletes a collection if it exists.
func (s *QdrantStore) DeleteCollection(ctx context.Context, collection string) error {
	name := s.collectionName(collection)

	exists, err := s.client.CollectionExists(ctx, name)
	if err != nil {
		return fmt.Errorf("failed to check collection existence: %w", err)
	}
	if !exists {
		return nil
	}
	if err := s.client.DeleteCollection(ctx, name); err != nil {
		return fmt.Errorf("failed to delete collection: %w", err)
	}
	return nil
}

// Upsert inserts or updates points, in batches.
func (s *QdrantStore) Upsert(ctx context.Context, collection string, points []Point) error {
	name := s.collectionName(collection)

	for start := 0; start < len(points); start += upsertBatchSize {
		end := min(start+upsertBatchSize, len(points))

		batch := make([]*qdrant.PointStruct, 0, end-start)
		for _, p := range points[start:end] {
			batch = append(batch, toPointStruct(p))
		}

		_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
			CollectionName: name,
			Points:         batch,
			Wait:           qdrant.PtrOf(true),
		})
		if err != nil {
			return fmt.Errorf("failed to upsert points: %w", err)
		}
	}
	return nil
}

func toPointStruct(p Point) *qdrant.PointStruct {
	payload := map[string]*qdrant.Value{
		payloadDocumentID: qdrant.NewValueString(p.DocumentID),
		payloadContent:    qdrant.NewValueString(p.Content),
	}
	for k, v := range p.Metadata {
		payload[k] = qdrant.NewValueString(v)
	}
	return &qdrant.PointStruct{
		Id:      qdrant.NewIDUUID(p.ID),
		Vectors: qdrant.NewVectors(p.Vector...),
		Payload: payload,
	}
}

// Search performs similarity search
func (s *QdrantStore) Search(ctx context.Context, collection string, vector []float32, topK int, minScore float32) ([]SearchResult, error) {
	name := s.collectionName(collection)

	response, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: name,
		Query:          qdrant.NewQuery(vector...),
		Limit:          qdrant.PtrOf(uint64(topK)),
		WithPayload:    qdrant.NewWithPayload(true),
		ScoreThreshold: qdrant.PtrOf(minScore),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to search: %w", err)
	}

	results := make([]SearchResult, 0, len(response))
	for _, point := range response {
		results = append(results, fromPayload(point.Id.GetUuid(), point.Score, point.Payload))
	}
	return results, nil
}

func fromPayload(id string, score float32, payload map[string]*qdrant.Value) SearchResult {
	result := SearchResult{
		ID:       id,
		Score:    score,
		Metadata: make(map[string]string),
	}
	for k, v := range payload {
		switch k {
		case payloadDocumentID:
			result.DocumentID = v.GetStringValue()
		case payloadContent:
			result.Content = v.GetStringValue()
		default:
			result.Metadata[k] = v.GetStringValue()
		}
	}
	return result
}

var _ VectorStore = (*QdrantStore)(nil)
