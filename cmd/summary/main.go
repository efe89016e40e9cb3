// Command summary loads the requested regions through the same cache as the
// service and prints the merged dataset's regions, columns, and record count.
// Settings come from the service's environment variables; flags override them.
//
// Usage:
//
//	go run ./cmd/summary -regions PHA,STC,JHM
//	go run ./cmd/summary -regions ULK -source-url http://localhost:8000/ -data-dir /tmp/izv
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/couchcryptid/crash-data-etl/internal/adapter/portal"
	"github.com/couchcryptid/crash-data-etl/internal/archive"
	"github.com/couchcryptid/crash-data-etl/internal/cache"
	"github.com/couchcryptid/crash-data-etl/internal/config"
	"github.com/couchcryptid/crash-data-etl/internal/domain"
	"github.com/couchcryptid/crash-data-etl/internal/observability"
	"github.com/couchcryptid/crash-data-etl/internal/pipeline"
)

func main() {
	if code := run(os.Args[1:], os.Stdout); code != 0 {
		os.Exit(code)
	}
}

func run(args []string, out io.Writer) int {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load config: %v\n", err)
		return 1
	}

	fs := flag.NewFlagSet("summary", flag.ContinueOnError)
	regionList := fs.String("regions", strings.Join(cfg.Regions, ","), "comma-separated region codes (empty = all)")
	fs.StringVar(&cfg.SourceURL, "source-url", cfg.SourceURL, "index page listing the archives")
	fs.StringVar(&cfg.DataDir, "data-dir", cfg.DataDir, "directory for archives and cache blobs")
	verbose := fs.Bool("v", false, "log progress to stderr")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	level := slog.LevelWarn
	if *verbose {
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	metrics := observability.NewMetrics()

	client, err := portal.NewClient(cfg.SourceURL, cfg.HTTPTimeout, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: %v\n", err)
		return 1
	}
	store := archive.NewStore(client, cfg.DataDir, cfg.LatestMaxAge, logger, metrics)
	loader := pipeline.NewRegionLoader(store, domain.AccidentSchema, logger, metrics)
	regions := cache.New(loader, logger, metrics,
		cache.NewMemoryTier(),
		cache.NewDiskTier(cfg.DataDir, cfg.CachePath, domain.AccidentSchema, nil),
	)
	merger := pipeline.NewMerger(regions, cfg.MergeConcurrency, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var codes []string
	for _, c := range strings.Split(*regionList, ",") {
		if c = strings.TrimSpace(c); c != "" {
			codes = append(codes, c)
		}
	}

	set, err := merger.Merge(ctx, codes...)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: merge regions: %v\n", err)
		return 1
	}

	printSummary(out, set)
	return 0
}

func printSummary(out io.Writer, set *domain.ColumnarSet) {
	counts := map[string]int{}
	var order []string
	if col, ok := set.Column(domain.RegionColumn); ok {
		for _, r := range col.Strings {
			if counts[r] == 0 {
				order = append(order, r)
			}
			counts[r]++
		}
	}

	fmt.Fprintln(out, "Columns:")
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	for _, c := range set.Columns {
		fmt.Fprintf(tw, "  %s\t%s\n", c.Name, c.Type)
	}
	tw.Flush()

	fmt.Fprintln(out)
	fmt.Fprintln(out, "Regions:")
	tw = tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	for _, r := range order {
		fmt.Fprintf(tw, "  %s\t%d\n", r, counts[r])
	}
	tw.Flush()

	fmt.Fprintln(out)
	fmt.Fprintf(out, "Records: %d\n", set.Len())
}
