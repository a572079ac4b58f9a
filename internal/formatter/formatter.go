// Package formatter turns raw judgment text files into structured case
// summaries with one LLM call per file.
package formatter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/knoguchi/lexrag/internal/engine"
	"github.com/knoguchi/lexrag/internal/llm"
	"github.com/panjf2000/ants/v2"
)

// OutputPrefix is prepended to input file names for summary files.
const OutputPrefix = "case_summary"

// Summarizer writes a case summary for every text file in a directory.
type Summarizer struct {
	llmClient llm.LLM
	opts      llm.GenerateOptions
	workers   int
	overwrite bool
	logger    *slog.Logger
}

// Option configures a Summarizer.
type Option func(*Summarizer)

// WithWorkers sets how many files are summarized concurrently.
func WithWorkers(n int) Option {
	return func(s *Summarizer) {
		if n < 1 {
			n = 1
		}
		s.workers = n
	}
}

// WithOverwrite regenerates summaries that already exist.
func WithOverwrite(overwrite bool) Option {
	return func(s *Summarizer) {
		s.overwrite = overwrite
	}
}

// WithGenerateOptions sets the completion options.
func WithGenerateOptions(opts llm.GenerateOptions) Option {
	return func(s *Summarizer) {
		s.opts = opts
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Summarizer) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New creates a Summarizer.
func New(llmClient llm.LLM, opts ...Option) *Summarizer {
	s := &Summarizer{
		llmClient: llmClient,
		workers:   4,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "formatter")
	return s
}

// Report counts what SummarizeDir did.
type Report struct {
	Written []string
	Skipped int
	Failed  int
}

// SummarizeDir summarizes each .txt file in inDir into outDir as
// case_summary<name>. A failing file does not stop the others; all failures
// are returned joined.
func (s *Summarizer) SummarizeDir(ctx context.Context, inDir, outDir string) (*Report, error) {
	entries, err := os.ReadDir(inDir)
	if err != nil {
		return nil, fmt.Errorf("reading input directory: %w", err)
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}

	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.EqualFold(filepath.Ext(e.Name()), ".txt") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	pool, err := ants.NewPool(s.workers)
	if err != nil {
		return nil, fmt.Errorf("creating worker pool: %w", err)
	}
	defer pool.Release()

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		errs    []error
		report  Report
		done    atomic.Int32
		skipped atomic.Int32
	)
	total := len(names)

	for _, name := range names {
		outPath := filepath.Join(outDir, OutputPrefix+name)

		if !s.overwrite {
			if _, err := os.Stat(outPath); err == nil {
				skipped.Add(1)
				continue
			}
		}

		wg.Add(1)
		err := pool.Submit(func() {
			defer wg.Done()
			err := s.summarizeFile(ctx, filepath.Join(inDir, name), outPath)

			mu.Lock()
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", name, err))
			} else {
				report.Written = append(report.Written, outPath)
			}
			mu.Unlock()

			n := done.Add(1)
			if err != nil {
				s.logger.Error("summary failed", "file", name, "progress", fmt.Sprintf("%d/%d", n, total), "error", err)
				return
			}
			s.logger.Info("summary written", "file", name, "progress", fmt.Sprintf("%d/%d", n, total))
		})
		if err != nil {
			wg.Done()
			mu.Lock()
			errs = append(errs, fmt.Errorf("%s: submit: %w", name, err))
			mu.Unlock()
		}
	}
	wg.Wait()

	sort.Strings(report.Written)
	report.Skipped = int(skipped.Load())
	report.Failed = len(errs)
	return &report, errors.Join(errs...)
}

func (s *Summarizer) summarizeFile(ctx context.Context, inPath, outPath string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	text, err := os.ReadFile(inPath)
	if err != nil {
		return err
	}
	if strings.TrimSpace(string(text)) == "" {
		return errors.New("file is empty")
	}

	summary, err := s.llmClient.Generate(ctx, Prompt(string(text)), s.opts)
	if err != nil {
		return err
	}
	return os.WriteFile(outPath, []byte(summary), 0o644)
}

// Prompt builds the summary prompt for one judgment.
func Prompt(judgment string) string {
	return strings.Replace(engine.CaseSummaryTemplate, engine.ContextPlaceholder, judgment, 1)
}
