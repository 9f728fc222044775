// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/poiesic/recollect"
	"github.com/poiesic/recollect/config"
	"github.com/poiesic/recollect/core"
	"github.com/poiesic/recollect/extraction"
	"github.com/poiesic/recollect/ingestion"
	"github.com/poiesic/recollect/reembed"
	"github.com/poiesic/recollect/search"
	"github.com/poiesic/recollect/storage"
	"github.com/urfave/cli/v2"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newApp().RunContext(ctx, os.Args); err != nil {
		log.Fatal(err)
	}
}

// newApp builds the command tree. The options are passed to every archive
// the commands open.
func newApp(opts ...recollect.Option) *cli.App {
	open := func(c *cli.Context) (*recollect.Archive, error) {
		return openArchive(c, opts...)
	}

	return &cli.App{
		Name:  "recollect",
		Usage: "Ingest, embed and search conversation transcripts and documents",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
			},
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to a YAML or TOML config file",
				Value:   "recollect.yaml",
				EnvVars: []string{"RECOLLECT_CONFIG"},
			},
			&cli.StringFlag{
				Name:    "db",
				Aliases: []string{"d"},
				Usage:   "Path to the archive database (overrides the config file)",
			},
			&cli.StringFlag{
				Name:  "env-file",
				Usage: "Load environment variables from this file",
				Value: ".env",
			},
		},
		Before: func(c *cli.Context) error {
			if err := setupLogger(c); err != nil {
				return err
			}
			return config.LoadEnv(c.String("env-file"))
		},
		Commands: []*cli.Command{
			{
				Name:  "import",
				Usage: "Import sources from a JSONL export",
				Action: func(c *cli.Context) error {
					return importCommand(c, open)
				},
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "file",
						Aliases:  []string{"f"},
						Usage:    "Path to the JSONL file",
						Required: true,
					},
					&cli.IntFlag{
						Name:  "max-chars",
						Usage: "Chunk window size in characters (0 uses the config value)",
					},
					&cli.IntFlag{
						Name:  "workers",
						Usage: "Number of units embedded concurrently (0 uses the config value)",
					},
				},
			},
			{
				Name:      "search",
				Usage:     "Search the archive",
				ArgsUsage: "<query>",
				Action: func(c *cli.Context) error {
					return searchCommand(c, open)
				},
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:    "limit",
						Aliases: []string{"n"},
						Usage:   "Maximum number of results (0 uses the config value)",
					},
					&cli.IntFlag{
						Name:  "before",
						Usage: "Units of context before each match",
						Value: -1,
					},
					&cli.IntFlag{
						Name:  "after",
						Usage: "Units of context after each match",
						Value: -1,
					},
					&cli.BoolFlag{
						Name:  "artifacts",
						Usage: "Search extracted artifacts instead of units",
					},
				},
			},
			{
				Name:  "extract",
				Usage: "Extract artifacts from a source or artifact",
				Action: func(c *cli.Context) error {
					return extractCommand(c, open)
				},
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "source",
						Aliases: []string{"s"},
						Usage:   "Id of the entity to extract from",
					},
					&cli.StringFlag{
						Name:  "type",
						Usage: "Entity type (source or artifact)",
						Value: string(core.SourceTypeSource),
					},
					&cli.BoolFlag{
						Name:  "overwrite",
						Usage: "Replace existing artifacts",
					},
					&cli.BoolFlag{
						Name:  "all",
						Usage: "Extract from every source in the archive",
					},
				},
			},
			{
				Name:  "reembed",
				Usage: "Recompute every chunk and artifact vector with the configured model",
				Action: func(c *cli.Context) error {
					return reembedCommand(c, open)
				},
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "batch-size",
						Usage: "Number of items to process in each batch",
						Value: reembed.DefaultBatchSize,
					},
					&cli.IntFlag{
						Name:  "report-interval",
						Usage: "Report progress every N items",
						Value: 100,
					},
					&cli.StringSliceFlag{
						Name:  "kind",
						Usage: "Limit to chunk or artifact vectors (repeatable)",
					},
				},
			},
		},
	}
}

type opener func(c *cli.Context) (*recollect.Archive, error)

func openArchive(c *cli.Context, opts ...recollect.Option) (*recollect.Archive, error) {
	cfg, err := loadConfig(c)
	if err != nil {
		return nil, err
	}
	archive, err := recollect.Open(c.Context, cfg, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to open archive: %w", err)
	}
	return archive, nil
}

// loadConfig reads the config file and applies global flag overrides.
func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if db := c.String("db"); db != "" {
		cfg.Database.Path = db
	}
	return cfg, nil
}

func importCommand(c *cli.Context, open opener) error {
	archive, err := open(c)
	if err != nil {
		return err
	}
	defer archive.Close()

	var opts []ingestion.Option
	if n := c.Int("max-chars"); n > 0 {
		opts = append(opts, ingestion.WithMaxChars(n))
	}
	if n := c.Int("workers"); n > 0 {
		opts = append(opts, ingestion.WithPoolSize(n))
	}

	report, err := archive.Import(c.Context, c.String("file"), opts...)
	if report != nil {
		fmt.Fprintln(c.App.Writer, report)
		for _, res := range report.Failures() {
			slog.Warn("import failure", "source", res.SourceID, "unit", res.UnitID, "err", res.Err)
		}
	}
	if err != nil {
		return fmt.Errorf("import failed: %w", err)
	}
	return nil
}

func searchCommand(c *cli.Context, open opener) error {
	query := strings.TrimSpace(strings.Join(c.Args().Slice(), " "))
	if query == "" {
		return fmt.Errorf("search query is required")
	}

	archive, err := open(c)
	if err != nil {
		return err
	}
	defer archive.Close()

	cfg := archive.Config()
	limit := c.Int("limit")
	if limit <= 0 {
		limit = cfg.Search.Limit
	}
	window := search.Window{Before: cfg.Search.Before, After: cfg.Search.After}
	if n := c.Int("before"); n >= 0 {
		window.Before = n
	}
	if n := c.Int("after"); n >= 0 {
		window.After = n
	}

	searcher, err := archive.NewSearcher(search.WithWindow(window))
	if err != nil {
		return err
	}

	if c.Bool("artifacts") {
		hits, err := searcher.SearchArtifacts(c.Context, query, limit)
		if err != nil {
			return fmt.Errorf("search failed: %w", err)
		}
		printArtifactHits(c, hits)
		return nil
	}

	hits, err := searcher.Search(c.Context, query, limit)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}
	printHits(c, hits)
	return nil
}

func printHits(c *cli.Context, hits []*search.Hit) {
	w := c.App.Writer
	if len(hits) == 0 {
		fmt.Fprintln(w, "no matches")
		return
	}
	for i, hit := range hits {
		title := hit.ParentID
		if hit.Context.Source != nil && hit.Context.Source.Title != "" {
			title = hit.Context.Source.Title
		}
		marker := ""
		if hit.Verbatim {
			marker = " *"
		}
		fmt.Fprintf(w, "%d. [%.3f]%s %s (%s)\n", i+1, hit.Score, marker, title, hit.ParentID)
		for _, u := range hit.Context.Previous {
			fmt.Fprintf(w, "     %s\n", formatUnit(u))
		}
		fmt.Fprintf(w, "   > %s\n", formatUnit(hit.Context.Unit))
		for _, u := range hit.Context.Next {
			fmt.Fprintf(w, "     %s\n", formatUnit(u))
		}
	}
}

func printArtifactHits(c *cli.Context, hits []*search.ArtifactHit) {
	w := c.App.Writer
	if len(hits) == 0 {
		fmt.Fprintln(w, "no matches")
		return
	}
	for i, hit := range hits {
		a := hit.Artifact
		fmt.Fprintf(w, "%d. [%.3f] %s: %s (from %s %s)\n", i+1, hit.Score, a.Kind, a.Title, a.SourceType, a.SourceID)
	}
}

func formatUnit(u *core.Unit) string {
	if u.Sender == "" {
		return fmt.Sprintf("[%d] %s", u.Position, u.Content)
	}
	return fmt.Sprintf("[%d] %s: %s", u.Position, u.Sender, u.Content)
}

func extractCommand(c *cli.Context, open opener) error {
	sourceType := core.SourceType(c.String("type"))
	if err := core.ValidateSourceType(sourceType); err != nil {
		return err
	}
	all := c.Bool("all")
	id := c.String("source")
	if all == (id != "") {
		return fmt.Errorf("exactly one of --source or --all is required")
	}
	if all && sourceType != core.SourceTypeSource {
		return fmt.Errorf("--all only applies to sources")
	}

	archive, err := open(c)
	if err != nil {
		return err
	}
	defer archive.Close()

	opts := []extraction.Option{}
	if all {
		opts = append(opts, extraction.WithProgress(c.App.ErrWriter))
	}
	orchestrator, err := archive.NewOrchestrator(opts...)
	if err != nil {
		return err
	}
	defer orchestrator.Release()

	if !all {
		outcome, err := orchestrator.Extract(c.Context, extraction.Request{
			SourceType: sourceType,
			SourceID:   id,
			Overwrite:  c.Bool("overwrite"),
		})
		if err != nil {
			return fmt.Errorf("extraction failed: %w", err)
		}
		if outcome.Skipped {
			fmt.Fprintf(c.App.Writer, "%s already has %d artifacts (use --overwrite to replace)\n", id, len(outcome.Artifacts))
			return nil
		}
		fmt.Fprintf(c.App.Writer, "extracted %d artifacts from %s\n", len(outcome.Artifacts), id)
		for _, a := range outcome.Artifacts {
			fmt.Fprintf(c.App.Writer, "  %s: %s\n", a.Kind, a.Title)
		}
		return nil
	}

	ids, err := archive.Store().ListSourceIDs(c.Context)
	if err != nil {
		return err
	}
	requests := make([]extraction.Request, len(ids))
	for i, sid := range ids {
		requests[i] = extraction.Request{SourceType: core.SourceTypeSource, SourceID: sid, Overwrite: c.Bool("overwrite")}
	}
	report := orchestrator.ExtractAll(c.Context, requests)
	fmt.Fprintln(c.App.Writer, report)
	for _, res := range report.Failures() {
		slog.Warn("extraction failure", "source", res.Request.SourceID, "err", res.Err)
	}
	return c.Context.Err()
}

func reembedCommand(c *cli.Context, open opener) error {
	cfg := &reembed.Config{
		BatchSize:      c.Int("batch-size"),
		ReportInterval: c.Int("report-interval"),
	}
	if cfg.BatchSize <= 0 {
		return fmt.Errorf("batch-size must be greater than 0")
	}
	if cfg.ReportInterval <= 0 {
		return fmt.Errorf("report-interval must be greater than 0")
	}
	for _, k := range c.StringSlice("kind") {
		switch strings.ToLower(k) {
		case storage.VectorKindChunk.String():
			cfg.Kinds = append(cfg.Kinds, storage.VectorKindChunk)
		case storage.VectorKindArtifact.String():
			cfg.Kinds = append(cfg.Kinds, storage.VectorKindArtifact)
		default:
			return fmt.Errorf("invalid kind %q: must be chunk or artifact", k)
		}
	}

	archive, err := open(c)
	if err != nil {
		return err
	}
	defer archive.Close()

	reembedder, err := archive.NewReembedder(cfg, c.App.ErrWriter)
	if err != nil {
		return err
	}

	fmt.Fprintf(c.App.ErrWriter, "Database: %s\n", archive.Config().Database.Path)
	fmt.Fprintf(c.App.ErrWriter, "Embedding model: %s\n", archive.Config().AI.EmbeddingModel)
	fmt.Fprintln(c.App.ErrWriter)

	summary, err := reembedder.Run(c.Context)
	if err != nil {
		return fmt.Errorf("reembedding failed: %w", err)
	}
	fmt.Fprintf(c.App.Writer, "reembedded %d chunks and %d artifacts, %d failed\n", summary.Chunks, summary.Artifacts, summary.Failed)
	return nil
}

func setupLogger(c *cli.Context) error {
	levelStr := strings.ToLower(c.String("log-level"))

	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", levelStr)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	return nil
}
