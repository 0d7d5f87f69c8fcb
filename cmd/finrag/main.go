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
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/poiesic/finrag"
	"github.com/poiesic/finrag/config"
	"github.com/poiesic/finrag/core"
	"github.com/poiesic/finrag/fetch"
	"github.com/poiesic/finrag/ingestion"
	"github.com/poiesic/finrag/search"
	"github.com/urfave/cli/v2"
)

// databaseOptions supplies extra options to every opened database.
var databaseOptions = func() []finrag.DatabaseOption { return nil }

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "finrag",
		Usage: "Crawl, index and search published financial statements",
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
				Usage:   "Path to a YAML configuration file",
				EnvVars: []string{"FINRAG_CONFIG"},
			},
		},
		Before: setupLogger,
		Commands: []*cli.Command{
			{
				Name:   "ingest",
				Usage:  "Crawl the listing and index every published report",
				Action: ingestCommand,
				Flags: append(storageFlags(),
					&cli.IntFlag{
						Name:  "pages",
						Usage: "Number of listing pages to crawl",
					},
					&cli.DurationFlag{
						Name:  "page-delay",
						Usage: "Pause between listing pages",
					},
					&cli.StringFlag{
						Name:  "export",
						Usage: "Path of the ledger CSV written at the end of the run",
					},
					&cli.BoolFlag{
						Name:  "dedup",
						Usage: "Replace the entries of a previous run instead of appending new ones",
					},
					&cli.BoolFlag{
						Name:  "robots",
						Usage: "Honor the listing site's robots.txt",
					},
					&cli.BoolFlag{
						Name:  "progress",
						Usage: "Print page progress to stderr",
						Value: true,
					},
				),
			},
			{
				Name:      "search",
				Usage:     "Find the indexed chunks closest to a query",
				ArgsUsage: "<query>",
				Action:    searchCommand,
				Flags: append(storageFlags(),
					&cli.IntFlag{
						Name:    "max-hits",
						Aliases: []string{"n"},
						Usage:   "Maximum number of results",
						Value:   5,
					},
					&cli.Float64Flag{
						Name:  "min-similarity",
						Usage: "Drop results scoring below this similarity",
					},
					&cli.StringFlag{
						Name:  "issuer",
						Usage: "Only return chunks from this issuer",
					},
					&cli.StringFlag{
						Name:  "year",
						Usage: "Only return chunks from this year",
					},
				),
			},
			{
				Name:   "ledger",
				Usage:  "Export the ledger of a past run as CSV",
				Action: ledgerCommand,
				Flags: append(storageFlags(),
					&cli.StringFlag{
						Name:  "run",
						Usage: "Run ID (defaults to the latest run)",
					},
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Output file (defaults to stdout)",
					},
				),
			},
			{
				Name:   "runs",
				Usage:  "List recorded ingestion runs",
				Action: runsCommand,
				Flags:  storageFlags(),
			},
			{
				Name:   "reindex",
				Usage:  "Rebuild the vector store from the downloaded documents",
				Action: reindexCommand,
				Flags: append(storageFlags(),
					&cli.BoolFlag{
						Name:  "dedup",
						Usage: "Replace the entries of a previous run instead of appending new ones",
					},
					&cli.BoolFlag{
						Name:  "progress",
						Usage: "Print document progress to stderr",
						Value: true,
					},
				),
			},
			{
				Name:   "verify",
				Usage:  "Check downloaded documents against their recorded checksums",
				Action: verifyCommand,
				Flags: append(storageFlags(),
					&cli.IntFlag{
						Name:  "workers",
						Usage: "Number of files hashed concurrently",
						Value: 4,
					},
				),
			},
		},
	}
}

// storageFlags returns the flags shared by every command that opens the stores.
func storageFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  "content-dir",
			Usage: "Directory holding downloaded documents",
		},
		&cli.StringFlag{
			Name:  "vector-dir",
			Usage: "Directory of the persistent vector store",
		},
		&cli.StringFlag{
			Name:  "collection",
			Usage: "Vector store collection name",
		},
		&cli.StringFlag{
			Name:  "ledger-db",
			Usage: "Path to BadgerDB database directory",
		},
		&cli.StringFlag{
			Name:  "provider",
			Usage: "Embedding provider (openai, gemini)",
		},
		&cli.StringFlag{
			Name:  "embedding-host",
			Usage: "Embedding service host URL",
		},
		&cli.StringFlag{
			Name:  "embedding-model",
			Usage: "Embedding model name",
		},
	}
}

// loadConfig reads the configuration file and applies explicitly set flags on top.
func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, err
	}

	setString := func(flag string, dst *string) {
		if c.IsSet(flag) {
			*dst = c.String(flag)
		}
	}
	setString("content-dir", &cfg.Storage.ContentDir)
	setString("vector-dir", &cfg.Storage.VectorDir)
	setString("collection", &cfg.Storage.Collection)
	setString("ledger-db", &cfg.Storage.LedgerDB)
	setString("provider", &cfg.Embedding.Provider)
	setString("embedding-host", &cfg.Embedding.Host)
	setString("embedding-model", &cfg.Embedding.Model)
	setString("export", &cfg.Export.Path)

	if c.IsSet("pages") {
		cfg.Listing.Pages = c.Int("pages")
	}
	if c.IsSet("page-delay") {
		cfg.Listing.PageDelay = c.Duration("page-delay")
	}
	if c.IsSet("robots") {
		cfg.Listing.RespectRobots = c.Bool("robots")
	}
	if c.IsSet("dedup") {
		cfg.Index.Dedup = c.Bool("dedup")
	}
	return cfg, nil
}

func openDatabase(c *cli.Context) (*finrag.Database, error) {
	cfg, err := loadConfig(c)
	if err != nil {
		return nil, err
	}
	return finrag.NewDatabase(c.Context, cfg, databaseOptions()...)
}

func ingestCommand(c *cli.Context) error {
	ctx := c.Context
	db, err := openDatabase(c)
	if err != nil {
		return err
	}
	defer db.Close()

	var opts []ingestion.Option
	if c.Bool("progress") {
		opts = append(opts, ingestion.WithProgress(c.App.ErrWriter))
	}
	pipeline, err := db.NewIngestionPipeline(ctx, opts...)
	if err != nil {
		return err
	}

	summary, err := pipeline.Run(ctx)
	if err != nil {
		return err
	}

	w := c.App.Writer
	fmt.Fprintf(w, "Run %s\n", summary.RunID)
	fmt.Fprintf(w, "  pages:     %d\n", summary.Pages)
	fmt.Fprintf(w, "  records:   %d (%d without report link)\n", summary.Records, summary.Dropped)
	fmt.Fprintf(w, "  documents: %d indexed, %d failed\n", summary.Documents, summary.Failed())
	fmt.Fprintf(w, "  chunks:    %d\n", summary.Chunks)
	for kind, n := range summary.Failures {
		fmt.Fprintf(w, "    %s: %d\n", kind, n)
	}
	if path := db.Config().Export.Path; path != "" {
		fmt.Fprintf(w, "  ledger:    %s\n", path)
	}
	return nil
}

func searchCommand(c *cli.Context) error {
	query := strings.TrimSpace(strings.Join(c.Args().Slice(), " "))
	if query == "" {
		return cli.Exit("a query is required", 1)
	}

	db, err := openDatabase(c)
	if err != nil {
		return err
	}
	defer db.Close()

	searcher, err := db.NewSearcher(search.WithMinSimilarity(float32(c.Float64("min-similarity"))))
	if err != nil {
		return err
	}

	where := map[string]string{}
	if c.IsSet("issuer") {
		where[core.MetaIssuer] = c.String("issuer")
	}
	if c.IsSet("year") {
		where[core.MetaYear] = c.String("year")
	}

	monitor := &search.LogMonitor{Logger: slog.Default()}
	results, err := searcher.FindSimilarWithMonitor(c.Context, query, c.Int("max-hits"), where, monitor)
	if err != nil {
		return err
	}
	printResults(c.App.Writer, results)
	return nil
}

func printResults(w io.Writer, results []*core.SearchResult) {
	if len(results) == 0 {
		fmt.Fprintln(w, "No results.")
		return
	}
	for i, r := range results {
		meta := r.Entry.Metadata
		fmt.Fprintf(w, "%d. [%.3f] %s | %s | %s | chunk %s\n", i+1, r.Score,
			meta[core.MetaIssuer], meta[core.MetaYear], meta[core.MetaSource], meta[core.MetaChunkIndex])
		fmt.Fprintf(w, "   %s\n", meta[core.MetaURL])
		fmt.Fprintf(w, "   %s\n", preview(r.Entry.Text, 200))
	}
}

// preview collapses whitespace and truncates text to n runes.
func preview(text string, n int) string {
	text = strings.Join(strings.Fields(text), " ")
	runes := []rune(text)
	if len(runes) <= n {
		return text
	}
	return string(runes[:n]) + "..."
}

func ledgerCommand(c *cli.Context) error {
	db, err := openDatabase(c)
	if err != nil {
		return err
	}
	defer db.Close()

	w := c.App.Writer
	if path := c.String("output"); path != "" {
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		defer f.Close()
		w = f
	}

	runID, err := db.ExportLedger(c.Context, c.String("run"), w)
	if err != nil {
		return err
	}
	slog.Info("ledger exported", "run", runID)
	return nil
}

func runsCommand(c *cli.Context) error {
	db, err := openDatabase(c)
	if err != nil {
		return err
	}
	defer db.Close()

	runs, err := db.LedgerRepository().ListRuns(c.Context)
	if err != nil {
		return err
	}
	w := c.App.Writer
	if len(runs) == 0 {
		fmt.Fprintln(w, "No runs recorded.")
		return nil
	}
	for _, run := range runs {
		fmt.Fprintf(w, "%s  %s  %s  pages=%d documents=%d\n", run.ID,
			run.StartedAt.Local().Format("2006-01-02 15:04:05"),
			run.FinishedAt.Sub(run.StartedAt).Round(time.Second), run.Pages, run.Documents)
	}
	return nil
}

func reindexCommand(c *cli.Context) error {
	db, err := openDatabase(c)
	if err != nil {
		return err
	}
	defer db.Close()

	var progress io.Writer
	if c.Bool("progress") {
		progress = c.App.ErrWriter
	}
	reindexer, err := db.NewReindexer(progress)
	if err != nil {
		return err
	}

	summary, err := reindexer.Run(c.Context)
	if err != nil {
		return err
	}

	fmt.Fprintf(c.App.Writer, "%d of %d documents reindexed (%d chunks), %d failed\n",
		summary.Indexed, summary.Documents, summary.Chunks, summary.Failed())
	return nil
}

func verifyCommand(c *cli.Context) error {
	db, err := openDatabase(c)
	if err != nil {
		return err
	}
	defer db.Close()

	results, err := db.VerifyContent(c.Context, c.Int("workers"))
	if err != nil {
		return err
	}

	w := c.App.Writer
	bad := 0
	for _, r := range results {
		if r.Status == fetch.StatusOK {
			continue
		}
		bad++
		fmt.Fprintf(w, "%-10s %s (%s)\n", r.Status, r.Entry.Name, r.Entry.Path)
	}
	fmt.Fprintf(w, "%d documents checked, %d problems\n", len(results), bad)
	if bad > 0 {
		return cli.Exit("content store verification failed", 1)
	}
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
