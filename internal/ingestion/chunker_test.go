package ingestion

import (
	"strings"
	"testing"
)

func TestNewChunker_Defaults(t *testing.T) {
	chunker := NewChunker(ChunkerConfig{})

	if chunker.config.ChunkSize != 8192 {
		t.Errorf("expected default ChunkSize 8192, got %d", chunker.config.ChunkSize)
	}
	if chunker.config.Method != MethodSentence {
		t.Errorf("expected default Method 'sentence', got %s", chunker.config.Method)
	}
}

func TestNewChunker_InvalidOverlap(t *testing.T) {
	chunker := NewChunker(ChunkerConfig{ChunkSize: 100, Overlap: 100})
	if chunker.config.Overlap != 10 {
		t.Errorf("expected overlap to fall back to 10, got %d", chunker.config.Overlap)
	}
}

func TestChunker_EmptyContent(t *testing.T) {
	chunker := NewChunker(ChunkerConfig{Method: MethodFixed})

	if chunks := chunker.Chunk(""); chunks != nil {
		t.Errorf("expected nil for empty content, got %v", chunks)
	}
	if chunks := chunker.Chunk("   "); chunks != nil {
		t.Errorf("expected nil for whitespace content, got %v", chunks)
	}
}

func TestChunker_FixedMethod(t *testing.T) {
	chunker := NewChunker(ChunkerConfig{Method: MethodFixed, ChunkSize: 10, Overlap: 2})

	words := make([]string, 25)
	for i := range words {
		words[i] = "word"
	}
	chunks := chunker.Chunk(strings.Join(words, " "))

	// windows start at 0, 8 and 16
	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(chunks))
	}
	wantWords := []string{"10", "10", "9"}
	for i, chunk := range chunks {
		if chunk.Index != i {
			t.Errorf("chunk %d has wrong index %d", i, chunk.Index)
		}
		if chunk.Metadata["method"] != MethodFixed {
			t.Errorf("chunk %d has wrong method %s", i, chunk.Metadata["method"])
		}
		if chunk.Metadata["word_count"] != wantWords[i] {
			t.Errorf("chunk %d word_count = %s, want %s", i, chunk.Metadata["word_count"], wantWords[i])
		}
	}
}

func TestChunker_SentenceMethodOverlap(t *testing.T) {
	chunker := NewChunker(ChunkerConfig{Method: MethodSentence, ChunkSize: 8, Overlap: 4})

	content := "This is sentence one. This is sentence two. This is sentence three. This is sentence four."
	chunks := chunker.Chunk(content)

	want := []string{
		"This is sentence one. This is sentence two.",
		"This is sentence two. This is sentence three.",
		"This is sentence three. This is sentence four.",
	}
	if len(chunks) != len(want) {
		t.Fatalf("expected %d chunks, got %d: %+v", len(want), len(chunks), chunks)
	}
	for i, chunk := range chunks {
		if chunk.Content != want[i] {
			t.Errorf("chunk %d = %q, want %q", i, chunk.Content, want[i])
		}
		if chunk.Metadata["sentence_count"] != "2" {
			t.Errorf("chunk %d sentence_count = %s", i, chunk.Metadata["sentence_count"])
		}
	}
}

func TestChunker_SentenceFitsInOneChunk(t *testing.T) {
	chunker := NewChunker(DefaultChunkerConfig())

	chunks := chunker.Chunk("The appeal is allowed. The order of the High Court is set aside.")
	if len(chunks) != 1 {
		t.Fatalf("expected a single chunk, got %d", len(chunks))
	}
}

func TestChunker_LongSentenceIsSplit(t *testing.T) {
	chunker := NewChunker(ChunkerConfig{Method: MethodSentence, ChunkSize: 5, Overlap: 0})

	long := "a b c d e f g h i j k l."
	chunks := chunker.Chunk("Short one. " + long)

	if len(chunks) != 4 {
		t.Fatalf("expected 4 chunks, got %d: %+v", len(chunks), chunks)
	}
	if chunks[0].Content != "Short one." {
		t.Errorf("first chunk = %q", chunks[0].Content)
	}
	for _, chunk := range chunks[1:] {
		if chunk.Metadata["split"] != "true" {
			t.Errorf("expected split metadata on %q", chunk.Content)
		}
	}
}

func TestSplitSentences(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected int
	}{
		{name: "empty", input: "", expected: 0},
		{name: "single sentence", input: "This is a sentence.", expected: 1},
		{name: "multiple sentences", input: "First sentence. Second sentence. Third sentence.", expected: 3},
		{name: "with exclamation", input: "Hello! How are you? I am fine.", expected: 3},
		{name: "no ending punctuation", input: "This has no ending punctuation", expected: 1},
		{name: "case citation", input: "The appeal in State v. Rao was heard by Sikri J. on Monday. It was dismissed.", expected: 2},
		{name: "numbered reference", input: "Civil Appeal No. 5 of 2010 was filed. Notice issued.", expected: 2},
		{name: "plural before period", input: "Heard the appellants. They rely on the record.", expected: 2},
		{name: "decimal", input: "Interest at 9.5 percent is payable.", expected: 1},
		{name: "accented name", input: "The witness was Mr. Gonçalvés. The court dismissed the appeal.", expected: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sentences := splitSentences(tt.input)
			if len(sentences) != tt.expected {
				t.Errorf("expected %d sentences, got %d: %v", tt.expected, len(sentences), sentences)
			}
		})
	}
}

func TestEndsWithAbbreviation(t *testing.T) {
	tests := []struct {
		input    string
		expected bool
	}{
		{"Dr.", true},
		{"heard by Sikri J.", true},
		{"Ram v.", true},
		{"etc.", true},
		{"see para.", true},
		{"Hello.", false},
		{"the appellants.", false},
		{"with costs.", false},
		{"Mr. Gonçalvés.", false},
		{"under § s.", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := endsWithAbbreviation(tt.input); got != tt.expected {
				t.Errorf("endsWithAbbreviation(%q) = %v, expected %v", tt.input, got, tt.expected)
			}
		})
	}
}
