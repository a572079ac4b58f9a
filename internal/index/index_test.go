package index

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/knoguchi/lexrag/internal/vectorstore"
)

// topicEmbedder maps text onto three topic axes by substring.
type topicEmbedder struct {
	batchCalls int
	err        error
}

var topics = []string{"murder", "contract", "tax"}

func (e *topicEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if e.err != nil {
		return nil, e.err
	}
	vec := make([]float32, len(topics))
	lower := strings.ToLower(text)
	for i, topic := range topics {
		vec[i] = float32(strings.Count(lower, topic))
	}
	return vec, nil
}

func (e *topicEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	e.batchCalls++
	out := make([][]float32, len(texts))
	for i, text := range texts {
		v, err := e.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (e *topicEmbedder) Dimension() int { return len(topics) }

func testNodes() []Node {
	return []Node{
		{ID: "n1", DocumentID: "d1", Text: "The accused was convicted of murder under Section 302."},
		{ID: "n2", DocumentID: "d1", Text: "The contract was void for want of consideration."},
		{ID: "n3", DocumentID: "d2", Text: "Income tax assessment was reopened. Tax was due."},
		{ID: "n4", DocumentID: "d2", Text: "Breach of contract and murder charges were both heard.", Metadata: map[string]string{MetaFileName: "case4.txt"}},
	}
}

func ids(nodes []NodeWithScore) []string {
	out := make([]string, len(nodes))
	for i, n := range nodes {
		out[i] = n.Node.ID
	}
	return out
}

func TestSummaryIndex_ReturnsAllNodes(t *testing.T) {
	idx := NewSummaryIndex(testNodes())

	got, err := idx.Retrieve(context.Background(), "anything")
	if err != nil {
		t.Fatalf("Retrieve() error = %v", err)
	}
	if want := []string{"n1", "n2", "n3", "n4"}; !reflect.DeepEqual(ids(got), want) {
		t.Errorf("got %v, want %v", ids(got), want)
	}
	if idx.Len() != 4 {
		t.Errorf("Len() = %d", idx.Len())
	}
}

func TestVectorIndex_Retrieve(t *testing.T) {
	ctx := context.Background()
	emb := &topicEmbedder{}
	store := vectorstore.NewMemoryStore()

	idx, err := NewVectorIndex(ctx, store, emb, "cases", testNodes())
	if err != nil {
		t.Fatalf("NewVectorIndex() error = %v", err)
	}
	if idx.Len() != 4 || emb.batchCalls != 1 {
		t.Errorf("Len() = %d, batch calls = %d", idx.Len(), emb.batchCalls)
	}

	got, err := idx.Retriever(2).Retrieve(ctx, "what was the murder sentence")
	if err != nil {
		t.Fatalf("Retrieve() error = %v", err)
	}
	if want := []string{"n1", "n4"}; !reflect.DeepEqual(ids(got), want) {
		t.Errorf("got %v, want %v", ids(got), want)
	}
	if got[1].Node.Metadata[MetaFileName] != "case4.txt" || got[1].Node.DocumentID != "d2" {
		t.Errorf("node fields not carried through: %+v", got[1].Node)
	}
}

func TestVectorIndex_DefaultTopK(t *testing.T) {
	ctx := context.Background()
	idx, err := NewVectorIndex(ctx, vectorstore.NewMemoryStore(), &topicEmbedder{}, "cases", testNodes())
	if err != nil {
		t.Fatalf("NewVectorIndex() error = %v", err)
	}

	got, err := idx.Retriever(0).Retrieve(ctx, "murder contract tax")
	if err != nil {
		t.Fatalf("Retrieve() error = %v", err)
	}
	if len(got) != 2 {
		t.Errorf("unconfigured retriever returned %d nodes, want 2", len(got))
	}
}

func TestVectorIndex_RebuildReplacesCollection(t *testing.T) {
	ctx := context.Background()
	store := vectorstore.NewMemoryStore()
	emb := &topicEmbedder{}

	if _, err := NewVectorIndex(ctx, store, emb, "cases", testNodes()); err != nil {
		t.Fatal(err)
	}
	idx, err := NewVectorIndex(ctx, store, emb, "cases", testNodes()[:1])
	if err != nil {
		t.Fatal(err)
	}

	got, err := idx.Retriever(10).Retrieve(ctx, "tax")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].Node.ID != "n1" {
		t.Errorf("expected only the rebuilt node, got %v", ids(got))
	}
}

func TestVectorIndex_EmbedError(t *testing.T) {
	boom := errors.New("boom")
	_, err := NewVectorIndex(context.Background(), vectorstore.NewMemoryStore(), &topicEmbedder{err: boom}, "cases", testNodes())
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped embed error, got %v", err)
	}
}

func TestKeywordTableIndex_Retrieve(t *testing.T) {
	idx := NewKeywordTableIndex(testNodes(), 0)

	got, err := idx.Retriever(0).Retrieve(context.Background(), "Was the contract breach a murder?")
	if err != nil {
		t.Fatalf("Retrieve() error = %v", err)
	}
	// n4 matches contract, breach and murder; n1 and n2 match one keyword each
	if want := []string{"n4", "n1", "n2"}; !reflect.DeepEqual(ids(got), want) {
		t.Fatalf("got %v, want %v", ids(got), want)
	}
	if got[0].Score != 3 || got[1].Score != 1 {
		t.Errorf("unexpected scores %v, %v", got[0].Score, got[1].Score)
	}

	got, _ = idx.Retriever(1).Retrieve(context.Background(), "contract")
	if want := []string{"n2"}; !reflect.DeepEqual(ids(got), want) {
		t.Errorf("topK 1: got %v, want %v", ids(got), want)
	}

	got, _ = idx.Retriever(5).Retrieve(context.Background(), "the and of")
	if len(got) != 0 {
		t.Errorf("stop words should match nothing, got %v", ids(got))
	}
}

func TestExtractKeywords(t *testing.T) {
	tests := []struct {
		name  string
		text  string
		limit int
		want  []string
	}{
		{"stop words removed", "The court and the appellant", 10, []string{"court", "appellant"}},
		{"frequency order", "tax appeal tax order appeal tax", 10, []string{"tax", "appeal", "order"}},
		{"limit", "alpha beta gamma delta", 2, []string{"alpha", "beta"}},
		{"punctuation split", "Section-302, IPC.", 10, []string{"section", "302", "ipc"}},
		{"empty", "", 10, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ExtractKeywords(tt.text, tt.limit)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ExtractKeywords(%q) = %v, want %v", tt.text, got, tt.want)
			}
		})
	}
}

func TestTokenize_KeepsRepeats(t *testing.T) {
	got := Tokenize("The tax, the TAX and the appeal")
	if want := []string{"tax", "tax", "appeal"}; !reflect.DeepEqual(got, want) {
		t.Errorf("Tokenize() = %v, want %v", got, want)
	}
}
