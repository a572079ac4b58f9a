package reranker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/knoguchi/lexrag/internal/index"
)

// Cross-encoder defaults.
const (
	DefaultMaxLength     = 512
	DefaultRelevantLabel = 1

	predictBatchSize = 32
)

// CrossEncoderConfig holds cross-encoder client configuration.
type CrossEncoderConfig struct {
	// BaseURL of a text-embeddings-inference style server exposing /predict.
	BaseURL string

	// MaxLength caps each passage, in words, before it is sent.
	MaxLength int

	// RelevantLabel is the class index whose probability is the score.
	// Negative values select DefaultRelevantLabel.
	RelevantLabel int

	Timeout time.Duration
}

// CrossEncoder scores (query, passage) pairs with a sequence classifier.
type CrossEncoder struct {
	baseURL    string
	maxLength  int
	label      int
	httpClient *http.Client
}

// NewCrossEncoder creates a cross-encoder client.
func NewCrossEncoder(cfg CrossEncoderConfig) *CrossEncoder {
	if cfg.MaxLength <= 0 {
		cfg.MaxLength = DefaultMaxLength
	}
	if cfg.RelevantLabel < 0 {
		cfg.RelevantLabel = DefaultRelevantLabel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	return &CrossEncoder{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		maxLength:  cfg.MaxLength,
		label:      cfg.RelevantLabel,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
}

type predictRequest struct {
	Inputs    [][2]string `json:"inputs"`
	RawScores bool        `json:"raw_scores"`
	Truncate  bool        `json:"truncate"`
}

type prediction struct {
	Score float64 `json:"score"`
	Label string  `json:"label"`
}

// Rerank scores every node and returns them best first.
func (c *CrossEncoder) Rerank(ctx context.Context, query string, nodes []index.NodeWithScore, topK int) ([]index.NodeWithScore, error) {
	if len(nodes) == 0 {
		return nil, nil
	}

	scores := make([]float32, 0, len(nodes))
	for start := 0; start < len(nodes); start += predictBatchSize {
		end := min(start+predictBatchSize, len(nodes))

		pairs := make([][2]string, 0, end-start)
		for _, n := range nodes[start:end] {
			pairs = append(pairs, [2]string{query, truncateWords(n.Node.Text, c.maxLength)})
		}

		preds, err := c.predict(ctx, pairs)
		if err != nil {
			return nil, err
		}
		if len(preds) != len(pairs) {
			return nil, fmt.Errorf("cross-encoder returned %d predictions for %d pairs", len(preds), len(pairs))
		}
		for _, p := range preds {
			score, err := relevantProbability(p, c.label)
			if err != nil {
				return nil, err
			}
			scores = append(scores, score)
		}
	}

	return sortAndCut(withScores(nodes, scores), topK), nil
}

func (c *CrossEncoder) predict(ctx context.Context, pairs [][2]string) ([][]prediction, error) {
	body, err := json.Marshal(predictRequest{Inputs: pairs, RawScores: true, Truncate: true})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/predict", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("cross-encoder request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("cross-encoder returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var batch [][]prediction
	if err := json.Unmarshal(raw, &batch); err == nil {
		return batch, nil
	}
	// some servers flatten a batch of one
	var single []prediction
	if err := json.Unmarshal(raw, &single); err != nil {
		return nil, fmt.Errorf("failed to decode predictions: %w", err)
	}
	return [][]prediction{single}, nil
}

// relevantProbability applies softmax over the class logits and returns the
// probability of class label. Predictions may arrive in any order; labels of
// the form "LABEL_n" or "n" name their class index. The rest fill the
// remaining classes in list order.
func relevantProbability(preds []prediction, label int) (float32, error) {
	if len(preds) == 0 {
		return 0, fmt.Errorf("empty prediction")
	}

	logits := make([]float64, len(preds))
	seen := make([]bool, len(preds))
	var unplaced []float64
	for _, p := range preds {
		if n, ok := labelIndex(p.Label); ok && n < len(preds) && !seen[n] {
			seen[n] = true
			logits[n] = p.Score
			continue
		}
		unplaced = append(unplaced, p.Score)
	}
	next := 0
	for _, score := range unplaced {
		for seen[next] {
			next++
		}
		seen[next] = true
		logits[next] = score
	}

	// single-logit heads are binary with an implicit zero for class 0
	if len(logits) == 1 {
		return float32(1 / (1 + math.Exp(-logits[0]))), nil
	}
	if label >= len(logits) {
		return 0, fmt.Errorf("relevant label %d out of range for %d classes", label, len(logits))
	}

	maxLogit := logits[0]
	for _, l := range logits[1:] {
		maxLogit = math.Max(maxLogit, l)
	}
	var sum float64
	for _, l := range logits {
		sum += math.Exp(l - maxLogit)
	}
	return float32(math.Exp(logits[label]-maxLogit) / sum), nil
}

func labelIndex(label string) (int, bool) {
	label = strings.TrimPrefix(strings.ToUpper(label), "LABEL_")
	n, err := strconv.Atoi(label)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

func truncateWords(text string, maxWords int) string {
	words := strings.Fields(text)
	if len(words) <= maxWords {
		return text
	}
	return strings.Join(words[:maxWords], " ")
}

var _ Reranker = (*CrossEncoder)(nil)
