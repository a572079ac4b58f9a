package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/knoguchi/lexrag/internal/app"
	"github.com/knoguchi/lexrag/internal/auth"
	"github.com/knoguchi/lexrag/internal/config"
	"github.com/knoguchi/lexrag/internal/finetune"
	"github.com/knoguchi/lexrag/internal/formatter"
	"github.com/knoguchi/lexrag/internal/llm"
	"github.com/knoguchi/lexrag/internal/scraper"
	"github.com/urfave/cli/v2"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "caseprep",
		Usage: "Collect judgments and prepare case summaries for indexing",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
			},
		},
		Before: setupLogger,
		Commands: []*cli.Command{
			{
				Name:   "scrape-links",
				Usage:  "Collect judgment links from search result pages",
				Action: scrapeLinksCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "base-url",
						Usage:    "Search results URL; page N is fetched as <base-url>&pagenum=N",
						Required: true,
					},
					&cli.IntFlag{
						Name:  "from",
						Usage: "First result page",
						Value: 0,
					},
					&cli.IntFlag{
						Name:  "to",
						Usage: "Result page to stop before",
						Value: 1,
					},
					&cli.StringFlag{
						Name:    "out",
						Aliases: []string{"o"},
						Usage:   "File the links are appended to",
						Value:   "all_links.txt",
					},
					&cli.BoolFlag{
						Name:  "headful",
						Usage: "Show the browser window",
					},
					&cli.DurationFlag{
						Name:  "delay",
						Usage: "Pause between page loads",
						Value: 2 * time.Second,
					},
				},
			},
			{
				Name:   "scrape-judgments",
				Usage:  "Download the judgment text for every collected link",
				Action: scrapeJudgmentsCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "links",
						Usage: "File with one judgment link per line",
						Value: "all_links.txt",
					},
					&cli.StringFlag{
						Name:    "out",
						Aliases: []string{"o"},
						Usage:   "Directory for case<n>.txt files",
						Value:   "cases",
					},
					&cli.BoolFlag{
						Name:  "headful",
						Usage: "Show the browser window",
					},
					&cli.DurationFlag{
						Name:  "delay",
						Usage: "Pause between judgments",
						Value: 2 * time.Second,
					},
				},
			},
			{
				Name:   "summarize",
				Usage:  "Write a structured case summary for every judgment file",
				Action: summarizeCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "in",
						Usage: "Directory with judgment .txt files",
						Value: "cases",
					},
					&cli.StringFlag{
						Name:    "out",
						Aliases: []string{"o"},
						Usage:   "Directory for summary files",
						Value:   "summaries",
					},
					&cli.IntFlag{
						Name:  "workers",
						Usage: "Files summarized concurrently",
						Value: 4,
					},
					&cli.BoolFlag{
						Name:  "overwrite",
						Usage: "Regenerate summaries that already exist",
					},
				},
			},
			{
				Name:   "finetune-data",
				Usage:  "Label query and case pairs for reranker fine-tuning",
				Action: finetuneDataCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "queries",
						Usage: "Directory of .json files holding arrays of {\"Query\": ...}",
						Value: "data_json",
					},
					&cli.StringFlag{
						Name:  "cases",
						Usage: "CSV with Case ID, Title and Key Issues columns",
						Value: "data.csv",
					},
					&cli.StringFlag{
						Name:    "out",
						Aliases: []string{"o"},
						Usage:   "Output JSON file",
						Value:   "fine-tune-data.json",
					},
					&cli.IntFlag{
						Name:  "top",
						Usage: "Closest cases labelled relevant per query",
						Value: finetune.DefaultOptions().TopN,
					},
					&cli.IntFlag{
						Name:  "irrelevant",
						Usage: "Least similar cases considered irrelevant per query",
						Value: finetune.DefaultOptions().Irrelevant,
					},
					&cli.Float64Flag{
						Name:  "threshold",
						Usage: "Similarity an irrelevant case must stay under",
						Value: finetune.DefaultOptions().Threshold,
					},
					&cli.BoolFlag{
						Name:  "convert-txt",
						Usage: "First strip the fence lines from .txt query files and rename them to .json",
					},
				},
			},
			{
				Name:   "token",
				Usage:  "Issue an API bearer token",
				Action: tokenCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "secret",
						Usage:    "HS256 signing secret",
						EnvVars:  []string{"JWT_SECRET"},
						Required: true,
					},
					&cli.StringFlag{
						Name:     "subject",
						Usage:    "Token subject",
						Required: true,
					},
					&cli.StringFlag{
						Name:  "name",
						Usage: "Display name stored in the token",
					},
					&cli.DurationFlag{
						Name:  "expiry",
						Usage: "Token lifetime",
						Value: 24 * time.Hour,
					},
				},
			},
		},
	}
}

func setupLogger(c *cli.Context) error {
	slog.SetDefault(app.NewLogger(os.Stderr, c.String("log-level"), "text"))
	return nil
}

func signalContext(c *cli.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
}

func scraperConfig(c *cli.Context) scraper.Config {
	cfg := scraper.DefaultConfig()
	cfg.Headless = !c.Bool("headful")
	cfg.Delay = c.Duration("delay")
	return cfg
}

func scrapeLinksCommand(c *cli.Context) error {
	from, to := c.Int("from"), c.Int("to")
	if from < 0 || to <= from {
		return fmt.Errorf("page range [%d, %d) is empty", from, to)
	}

	ctx, cancel := signalContext(c)
	defer cancel()

	s, err := scraper.New(ctx, scraperConfig(c), slog.Default())
	if err != nil {
		return err
	}
	defer s.Close()

	links, err := s.CollectLinks(ctx, c.String("base-url"), from, to)
	// keep what was collected before a failing page
	if werr := scraper.AppendLinks(c.String("out"), links); werr != nil {
		return fmt.Errorf("writing links: %w", werr)
	}
	slog.Info("links collected", "count", len(links), "file", c.String("out"))
	return err
}

func scrapeJudgmentsCommand(c *cli.Context) error {
	links, err := scraper.ReadLinks(c.String("links"))
	if err != nil {
		return fmt.Errorf("reading links: %w", err)
	}
	if len(links) == 0 {
		return fmt.Errorf("no links in %s", c.String("links"))
	}

	ctx, cancel := signalContext(c)
	defer cancel()

	s, err := scraper.New(ctx, scraperConfig(c), slog.Default())
	if err != nil {
		return err
	}
	defer s.Close()

	written, err := s.FetchAll(ctx, links, c.String("out"))
	slog.Info("judgments saved", "written", len(written), "total", len(links))
	return err
}

func summarizeCommand(c *cli.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	ctx, cancel := signalContext(c)
	defer cancel()

	llmClient, err := app.NewLLM(ctx, cfg)
	if err != nil {
		return err
	}

	s := formatter.New(llmClient,
		formatter.WithWorkers(c.Int("workers")),
		formatter.WithOverwrite(c.Bool("overwrite")),
		formatter.WithGenerateOptions(llm.GenerateOptions{Temperature: cfg.LLMTemperature}),
		formatter.WithLogger(slog.Default()),
	)
	report, err := s.SummarizeDir(ctx, c.String("in"), c.String("out"))
	if report != nil {
		slog.Info("summaries done", "written", len(report.Written), "skipped", report.Skipped, "failed", report.Failed)
	}
	return err
}

func finetuneDataCommand(c *cli.Context) error {
	if c.Int("top") < 1 {
		return fmt.Errorf("--top must be at least 1")
	}
	dir := c.String("queries")
	if c.Bool("convert-txt") {
		if _, err := finetune.ConvertTextDir(dir, slog.Default()); err != nil {
			return fmt.Errorf("converting query files: %w", err)
		}
	}

	queries, err := finetune.LoadQueries(dir)
	if err != nil {
		return err
	}
	f, err := os.Open(c.String("cases"))
	if err != nil {
		return fmt.Errorf("opening cases: %w", err)
	}
	defer f.Close()
	cases, err := finetune.LoadCases(f)
	if err != nil {
		return err
	}
	if len(queries) == 0 || len(cases) == 0 {
		return fmt.Errorf("need queries and cases, got %d and %d", len(queries), len(cases))
	}

	mapping := finetune.Map(queries, cases, finetune.Options{
		TopN:       c.Int("top"),
		Irrelevant: c.Int("irrelevant"),
		Threshold:  c.Float64("threshold"),
	})
	if err := finetune.WriteJSON(c.String("out"), mapping); err != nil {
		return fmt.Errorf("writing dataset: %w", err)
	}
	slog.Info("fine-tune data written", "queries", len(mapping), "cases", len(cases), "file", c.String("out"))
	return nil
}

func tokenCommand(c *cli.Context) error {
	cfg := auth.DefaultJWTConfig(c.String("secret"))
	cfg.Expiry = c.Duration("expiry")

	token, err := auth.NewJWTManager(cfg).GenerateToken(c.String("subject"), c.String("name"))
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(c.App.Writer, token)
	return err
}
