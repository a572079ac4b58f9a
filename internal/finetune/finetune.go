// Package finetune builds the (query, case, label) dataset used to fine-tune
// the cross-encoder reranker. Queries are matched against each case's key
// issues by tf-idf cosine similarity: the closest cases are labelled
// relevant and the most distant ones irrelevant.
package finetune

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Labels written next to each case text.
const (
	LabelIrrelevant = 0
	LabelRelevant   = 1
)

// CSV columns read by LoadCases.
const (
	ColumnCaseID    = "Case ID"
	ColumnTitle     = "Title"
	ColumnKeyIssues = "Key Issues"
)

// ErrMissingColumn is returned when the case CSV lacks a required column.
var ErrMissingColumn = errors.New("missing column")

// Case is one row of the case table.
type Case struct {
	ID        string
	Title     string
	KeyIssues string
}

// Pair is a case text with its label. It encodes as a two element JSON
// array.
type Pair struct {
	Text  string
	Label int
}

// MarshalJSON encodes p as [text, label].
func (p Pair) MarshalJSON() ([]byte, error) {
	return json.Marshal([]any{p.Text, p.Label})
}

// UnmarshalJSON decodes [text, label].
func (p *Pair) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if len(raw) != 2 {
		return fmt.Errorf("pair has %d elements, want 2", len(raw))
	}
	if err := json.Unmarshal(raw[0], &p.Text); err != nil {
		return err
	}
	return json.Unmarshal(raw[1], &p.Label)
}

// Options controls how many cases are labelled per query.
type Options struct {
	// TopN closest cases are labelled relevant.
	TopN int
	// Irrelevant is how many of the least similar cases are considered.
	Irrelevant int
	// Threshold is the similarity a case must stay under to be irrelevant.
	Threshold float64
}

// DefaultOptions labels 3 relevant and up to 7 irrelevant cases per query.
func DefaultOptions() Options {
	return Options{TopN: 3, Irrelevant: 7, Threshold: 0.3}
}

// LoadQueries reads every .json file in dir, each holding an array of
// objects, and returns their non-empty "Query" fields in file name order.
func LoadQueries(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading query directory: %w", err)
	}

	var queries []string
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".json") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, err
		}
		var records []struct {
			Query string `json:"Query"`
		}
		if err := json.Unmarshal(data, &records); err != nil {
			return nil, fmt.Errorf("%s: %w", e.Name(), err)
		}
		for _, r := range records {
			if r.Query != "" {
				queries = append(queries, r.Query)
			}
		}
	}
	return queries, nil
}

// LoadCases reads the case table. Rows with any empty field are dropped.
func LoadCases(r io.Reader) ([]Case, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}
	col := make(map[string]int, len(header))
	for i, name := range header {
		col[strings.TrimSpace(name)] = i
	}
	for _, name := range []string{ColumnCaseID, ColumnTitle, ColumnKeyIssues} {
		if _, ok := col[name]; !ok {
			return nil, fmt.Errorf("%w %q", ErrMissingColumn, name)
		}
	}

	var cases []Case
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading cases: %w", err)
		}
		if len(row) != len(header) || hasEmpty(row) {
			continue
		}
		cases = append(cases, Case{
			ID:        row[col[ColumnCaseID]],
			Title:     row[col[ColumnTitle]],
			KeyIssues: row[col[ColumnKeyIssues]],
		})
	}
	return cases, nil
}

func hasEmpty(row []string) bool {
	for _, f := range row {
		if f == "" {
			return true
		}
	}
	return false
}

// Map labels cases for every query. The vocabulary is fitted over case key
// issues and queries together. A case among a query's TopN is never also
// labelled irrelevant for it. Repeated queries are mapped once.
func Map(queries []string, cases []Case, opts Options) map[string][]Pair {
	if opts.TopN <= 0 {
		opts.TopN = DefaultOptions().TopN
	}
	if opts.Irrelevant < 0 {
		opts.Irrelevant = 0
	}

	texts := make([]string, 0, len(cases)+len(queries))
	for _, c := range cases {
		texts = append(texts, c.KeyIssues)
	}
	texts = append(texts, queries...)
	v := fitVectorizer(texts)

	caseVecs := make([]map[string]float64, len(cases))
	for i, c := range cases {
		caseVecs[i] = v.transform(c.KeyIssues)
	}

	mapping := make(map[string][]Pair, len(queries))
	for _, q := range queries {
		if _, done := mapping[q]; done {
			continue
		}
		qv := v.transform(q)
		sims := make([]float64, len(cases))
		for i := range cases {
			sims[i] = cosine(qv, caseVecs[i])
		}
		mapping[q] = label(cases, sims, opts)
	}
	return mapping
}

func label(cases []Case, sims []float64, opts Options) []Pair {
	order := make([]int, len(sims))
	for i := range order {
		order[i] = i
	}
	// ascending similarity, ties by position
	sort.SliceStable(order, func(a, b int) bool { return sims[order[a]] < sims[order[b]] })

	topN := min(opts.TopN, len(order))
	pairs := make([]Pair, 0, topN+opts.Irrelevant)
	relevant := make(map[int]struct{}, topN)
	for k := len(order) - 1; k >= len(order)-topN; k-- {
		idx := order[k]
		relevant[idx] = struct{}{}
		pairs = append(pairs, Pair{Text: cases[idx].KeyIssues, Label: LabelRelevant})
	}

	for _, idx := range order[:min(opts.Irrelevant, len(order))] {
		if _, ok := relevant[idx]; ok || sims[idx] >= opts.Threshold {
			continue
		}
		pairs = append(pairs, Pair{Text: cases[idx].KeyIssues, Label: LabelIrrelevant})
	}
	return pairs
}

// WriteJSON writes the mapping as an indented JSON object keyed by query.
func WriteJSON(path string, mapping map[string][]Pair) error {
	data, err := json.MarshalIndent(mapping, "", "    ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// ConvertTextDir turns LLM-produced .txt query files in dir into .json
// files. Files with more than two lines lose their first and last line,
// which hold the code fence around the JSON. It returns the new paths.
func ConvertTextDir(dir string, logger *slog.Logger) ([]string, error) {
	if logger == nil {
		logger = slog.Default()
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading directory: %w", err)
	}

	var converted []string
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".txt" {
			continue
		}
		src := filepath.Join(dir, e.Name())
		data, err := os.ReadFile(src)
		if err != nil {
			return converted, err
		}

		lines := strings.SplitAfter(string(data), "\n")
		if lines[len(lines)-1] == "" {
			lines = lines[:len(lines)-1]
		}
		if len(lines) > 2 {
			lines = lines[1 : len(lines)-1]
		} else {
			logger.Warn("file has too few lines to strip", "file", e.Name())
		}

		dst := strings.TrimSuffix(src, ".txt") + ".json"
		if err := os.WriteFile(src, []byte(strings.Join(lines, "")), 0o644); err != nil {
			return converted, err
		}
		if err := os.Rename(src, dst); err != nil {
			return converted, err
		}
		logger.Info("converted query file", "from", e.Name(), "to", filepath.Base(dst))
		converted = append(converted, dst)
	}
	return converted, nil
}
