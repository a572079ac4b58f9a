// Package ingestion splits loaded case documents into retrieval nodes.
package ingestion

import (
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Chunking methods.
const (
	MethodSentence = "sentence"
	MethodFixed    = "fixed"
)

// ChunkerConfig holds chunking configuration. Sizes are counted in words,
// which is used as a token proxy.
type ChunkerConfig struct {
	Method    string
	ChunkSize int
	Overlap   int
}

// DefaultChunkerConfig returns the splitter settings the case corpus is indexed with.
func DefaultChunkerConfig() ChunkerConfig {
	return ChunkerConfig{
		Method:    MethodSentence,
		ChunkSize: 8192,
		Overlap:   200,
	}
}

// Chunk represents a piece of chunked content
type Chunk struct {
	Content  string
	Index    int
	Metadata map[string]string
}

// Chunker handles text chunking with different strategies
type Chunker struct {
	config ChunkerConfig
}

// NewChunker creates a new Chunker with the given configuration
func NewChunker(config ChunkerConfig) *Chunker {
	def := DefaultChunkerConfig()
	if config.ChunkSize <= 0 {
		config.ChunkSize = def.ChunkSize
	}
	if config.Overlap < 0 || config.Overlap >= config.ChunkSize {
		config.Overlap = config.ChunkSize / 10
	}
	if config.Method == "" {
		config.Method = def.Method
	}
	return &Chunker{config: config}
}

// Chunk splits content into chunks based on the configured method
func (c *Chunker) Chunk(content string) []Chunk {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil
	}

	switch c.config.Method {
	case MethodFixed:
		return c.chunkFixed(content)
	default:
		return c.chunkSentence(content)
	}
}

// chunkFixed splits content into word windows that overlap by config.Overlap words.
func (c *Chunker) chunkFixed(content string) []Chunk {
	words := strings.Fields(content)
	var chunks []Chunk
	for _, window := range c.windows(words) {
		chunks = append(chunks, newChunk(strings.Join(window, " "), len(chunks), MethodFixed, len(window)))
	}
	return chunks
}

// chunkSentence packs whole sentences into chunks of at most ChunkSize words.
// Consecutive chunks share trailing sentences worth up to Overlap words.
// A single sentence longer than ChunkSize is cut into word windows.
func (c *Chunker) chunkSentence(content string) []Chunk {
	var (
		chunks  []Chunk
		current []string
		words   int
		fresh   int // words not yet emitted in any chunk
	)

	flush := func() {
		if fresh == 0 {
			return
		}
		chunk := newChunk(strings.Join(current, " "), len(chunks), MethodSentence, words)
		chunk.Metadata["sentence_count"] = strconv.Itoa(len(current))
		chunks = append(chunks, chunk)
		current, words = c.overlapTail(current)
		fresh = 0
	}

	for _, sentence := range splitSentences(content) {
		n := len(strings.Fields(sentence))

		if n > c.config.ChunkSize {
			flush()
			current, words = nil, 0
			for _, window := range c.windows(strings.Fields(sentence)) {
				chunk := newChunk(strings.Join(window, " "), len(chunks), MethodSentence, len(window))
				chunk.Metadata["split"] = "true"
				chunks = append(chunks, chunk)
			}
			continue
		}

		if words+n > c.config.ChunkSize {
			flush()
			// drop overlap sentences until the new one fits
			for words > 0 && words+n > c.config.ChunkSize {
				words -= len(strings.Fields(current[0]))
				current = current[1:]
			}
		}
		current = append(current, sentence)
		words += n
		fresh += n
	}
	flush()

	return chunks
}

func (c *Chunker) windows(words []string) [][]string {
	var out [][]string
	step := c.config.ChunkSize - c.config.Overlap
	if step <= 0 {
		step = 1
	}
	for i := 0; i < len(words); i += step {
		end := min(i+c.config.ChunkSize, len(words))
		out = append(out, words[i:end])
		if end == len(words) {
			break
		}
	}
	return out
}

// overlapTail returns the trailing sentences to carry into the next chunk.
func (c *Chunker) overlapTail(sentences []string) ([]string, int) {
	if c.config.Overlap <= 0 {
		return nil, 0
	}
	var (
		tail  []string
		words int
	)
	for i := len(sentences) - 1; i >= 0; i-- {
		n := len(strings.Fields(sentences[i]))
		if words+n > c.config.Overlap {
			break
		}
		tail = append([]string{sentences[i]}, tail...)
		words += n
	}
	return tail, words
}

func newChunk(content string, index int, method string, words int) Chunk {
	return Chunk{
		Content: strings.TrimSpace(content),
		Index:   index,
		Metadata: map[string]string{
			"method":     method,
			"word_count": strconv.Itoa(words),
		},
	}
}

// splitSentences splits text on sentence-final punctuation followed by
// whitespace, keeping legal citation abbreviations intact.
func splitSentences(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	var (
		sentences []string
		current   strings.Builder
	)
	runes := []rune(text)
	for i, r := range runes {
		current.WriteRune(r)
		if r != '.' && r != '!' && r != '?' {
			continue
		}
		if i+1 < len(runes) && !unicode.IsSpace(runes[i+1]) {
			continue
		}
		sentence := strings.TrimSpace(current.String())
		if sentence != "" && !endsWithAbbreviation(sentence) {
			sentences = append(sentences, sentence)
			current.Reset()
		}
	}
	if rest := strings.TrimSpace(current.String()); rest != "" {
		sentences = append(sentences, rest)
	}
	return sentences
}

// abbreviations common in Indian judgments and citations.
var abbreviations = []string{
	"mr.", "mrs.", "ms.", "dr.", "j.", "jj.", "c.j.",
	"ltd.", "pvt.", "co.", "corp.", "inc.",
	"vs.", "v.", "etc.", "e.g.", "i.e.", "viz.",
	"no.", "nos.", "s.", "ss.", "sec.", "art.", "cl.", "o.", "r.", "para.", "p.", "pp.", "vol.",
}

func endsWithAbbreviation(sentence string) bool {
	lower := strings.ToLower(sentence)
	for _, abbr := range abbreviations {
		if !strings.HasSuffix(lower, abbr) {
			continue
		}
		// "s." must be a whole token, not the end of "appellants."
		start := len(lower) - len(abbr)
		if start == 0 {
			return true
		}
		if prev, _ := utf8.DecodeLastRuneInString(lower[:start]); !unicode.IsLetter(prev) {
			return true
		}
	}
	return false
}
