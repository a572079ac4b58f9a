// Package scraper collects judgment links from a search site and downloads
// judgment text with a headless Chrome driven by chromedp.
package scraper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/chromedp"
)

// Page selectors.
const (
	ResultSelector   = ".result"
	JudgmentSelector = ".judgments"
)

// Config holds scraper settings.
type Config struct {
	Headless        bool
	ResultsTimeout  time.Duration
	JudgmentTimeout time.Duration
	// Delay between page loads.
	Delay time.Duration
}

// DefaultConfig returns the settings used by the caseprep tool.
func DefaultConfig() Config {
	return Config{
		Headless:        true,
		ResultsTimeout:  20 * time.Second,
		JudgmentTimeout: 100 * time.Second,
	}
}

// Scraper owns one browser. It is not safe for concurrent use.
type Scraper struct {
	cfg         Config
	browserCtx  context.Context
	cancelAlloc context.CancelFunc
	cancelTab   context.CancelFunc
	logger      *slog.Logger
}

// New starts a browser. Call Close to shut it down.
func New(ctx context.Context, cfg Config, logger *slog.Logger) (*Scraper, error) {
	if logger == nil {
		logger = slog.Default()
	}
	def := DefaultConfig()
	if cfg.ResultsTimeout <= 0 {
		cfg.ResultsTimeout = def.ResultsTimeout
	}
	if cfg.JudgmentTimeout <= 0 {
		cfg.JudgmentTimeout = def.JudgmentTimeout
	}

	opts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	if !cfg.Headless {
		opts = append(opts, chromedp.Flag("headless", false))
	}
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	browserCtx, cancelTab := chromedp.NewContext(allocCtx)

	// start the browser now so a missing Chrome fails here
	if err := chromedp.Run(browserCtx); err != nil {
		cancelTab()
		cancelAlloc()
		return nil, fmt.Errorf("starting browser: %w", err)
	}

	return &Scraper{
		cfg:         cfg,
		browserCtx:  browserCtx,
		cancelAlloc: cancelAlloc,
		cancelTab:   cancelTab,
		logger:      logger.With("component", "scraper"),
	}, nil
}

// Close shuts the browser down.
func (s *Scraper) Close() {
	s.cancelTab()
	s.cancelAlloc()
}

// CollectLinks visits result pages [from, to) of the search at baseURL and
// returns the canonical judgment links, deduplicated in page order.
func (s *Scraper) CollectLinks(ctx context.Context, baseURL string, from, to int) ([]string, error) {
	var links []string
	for page := from; page < to; page++ {
		pageLinks, err := s.collectPage(ctx, PageURL(baseURL, page))
		if err != nil {
			return dedupe(links), fmt.Errorf("page %d: %w", page, err)
		}
		s.logger.Info("collected result page", "page", page, "links", len(pageLinks))
		links = append(links, pageLinks...)
		if err := s.pause(ctx); err != nil {
			return dedupe(links), err
		}
	}
	return dedupe(links), nil
}

func (s *Scraper) collectPage(ctx context.Context, pageURL string) ([]string, error) {
	base, err := url.Parse(pageURL)
	if err != nil {
		return nil, fmt.Errorf("parse page url: %w", err)
	}

	tabCtx, cancel := s.tab(ctx, s.cfg.ResultsTimeout)
	defer cancel()

	var results []*cdp.Node
	err = chromedp.Run(tabCtx,
		chromedp.Navigate(pageURL),
		chromedp.WaitReady(ResultSelector, chromedp.ByQuery),
		chromedp.Nodes(ResultSelector, &results, chromedp.ByQueryAll),
	)
	if err != nil {
		return nil, err
	}

	var links []string
	for _, result := range results {
		var anchors []*cdp.Node
		if err := chromedp.Run(tabCtx, chromedp.Nodes("a[href]", &anchors, chromedp.ByQuery, chromedp.FromNode(result))); err != nil {
			return nil, err
		}
		if len(anchors) == 0 {
			continue
		}
		href, ok := anchors[0].Attribute("href")
		if !ok {
			continue
		}
		link, err := NormalizeLink(base, href)
		if err != nil {
			s.logger.Debug("skipping result link", "href", href, "error", err)
			continue
		}
		links = append(links, link)
	}
	return links, nil
}

// FetchJudgment returns the text of the judgment at link.
func (s *Scraper) FetchJudgment(ctx context.Context, link string) (string, error) {
	tabCtx, cancel := s.tab(ctx, s.cfg.JudgmentTimeout)
	defer cancel()

	var text string
	err := chromedp.Run(tabCtx,
		chromedp.Navigate(link),
		chromedp.WaitVisible(JudgmentSelector, chromedp.ByQuery),
		chromedp.Evaluate(`window.scrollTo(0, document.body.scrollHeight)`, nil),
		chromedp.Text(JudgmentSelector, &text, chromedp.ByQuery),
	)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}

// FetchAll downloads every link into outDir as case<n>.txt, n starting at 1.
// Failed links are reported together after the rest finish.
func (s *Scraper) FetchAll(ctx context.Context, links []string, outDir string) ([]string, error) {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, err
	}

	var (
		written []string
		errs    []error
	)
	for i, link := range links {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		text, err := s.FetchJudgment(ctx, link)
		if err != nil {
			s.logger.Error("fetch failed", "link", link, "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", link, err))
			continue
		}
		path := filepath.Join(outDir, fmt.Sprintf("case%d.txt", i+1))
		if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", path, err))
			continue
		}
		written = append(written, path)
		s.logger.Info("judgment saved", "link", link, "file", path, "progress", fmt.Sprintf("%d/%d", i+1, len(links)))
		if err := s.pause(ctx); err != nil {
			errs = append(errs, err)
			break
		}
	}
	return written, errors.Join(errs...)
}

// tab opens a new browser tab bounded by timeout and by ctx.
func (s *Scraper) tab(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	tabCtx, cancelTab := chromedp.NewContext(s.browserCtx)
	tabCtx, cancelTimeout := context.WithTimeout(tabCtx, timeout)
	stop := context.AfterFunc(ctx, cancelTab)
	return tabCtx, func() {
		stop()
		cancelTimeout()
		cancelTab()
	}
}

func (s *Scraper) pause(ctx context.Context) error {
	if s.cfg.Delay <= 0 {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(s.cfg.Delay):
		return nil
	}
}
