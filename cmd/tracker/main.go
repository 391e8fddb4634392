package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"cardwatch/config"
	"cardwatch/jobs"
	"cardwatch/models"
	"cardwatch/schedule"
	"cardwatch/scraper"
	"cardwatch/store"
)

func main() {
	// Local development keeps credentials in .env; production sets real
	// environment variables and the file is simply absent.
	_ = godotenv.Load()

	retailerFlag := flag.String("retailer", "", "Scrape a single retailer by slug and exit")
	typeFlag := flag.String("type", "", "Restrict products to one type: box or case")
	limitFlag := flag.Int("limit", 0, "Cap the number of products per run (0 = all)")
	onceFlag := flag.Bool("once", false, "Run one full sweep and exit instead of scheduling")
	parallelFlag := flag.Bool("parallel", false, "Scrape retailers concurrently")
	metricsAddr := flag.String("metrics-addr", "", "Prometheus metrics listen address (e.g. :9090)")
	verbose := flag.Bool("v", false, "Enable verbose logging")
	flag.Parse()

	logger, level := newLogger(*verbose)
	slog.SetDefault(logger)
	slog.SetLogLoggerLevel(level.Level())

	cfg, err := config.FromEnv()
	if err != nil {
		slog.Error("loading configuration", slog.Any("error", err))
		os.Exit(1)
	}
	cfg.Verbose = *verbose
	if *metricsAddr != "" {
		cfg.MetricsAddr = *metricsAddr
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", slog.Any("error", err))
		os.Exit(1)
	}

	filter, err := buildFilter(*typeFlag, *limitFlag)
	if err != nil {
		slog.Error("invalid flags", slog.Any("error", err))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := store.NewPostgres(ctx, cfg.DatabaseURL)
	if err != nil {
		slog.Error("connecting to database", slog.Any("error", err))
		os.Exit(1)
	}
	defer st.Close()

	metrics := scraper.NewMetrics()
	runner := jobs.NewRunner(st, scraper.Deps{
		Tokens:  newTokenCache(cfg, metrics),
		Metrics: metrics,
		Timeout: cfg.FetchTimeout,
	})

	var metricsServer *http.Server
	if cfg.MetricsAddr != "" {
		metricsServer = &http.Server{
			Addr:    cfg.MetricsAddr,
			Handler: promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}),
		}
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("metrics server failed", slog.Any("error", err))
			}
		}()
		slog.Info("metrics server enabled", slog.String("addr", cfg.MetricsAddr))
	}

	switch {
	case *retailerFlag != "":
		err = runSingle(ctx, runner, *retailerFlag, filter)
	case *onceFlag:
		err = runOnce(ctx, runner, filter, *parallelFlag)
	default:
		err = runScheduled(ctx, runner, cfg, *parallelFlag)
	}

	if metricsServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if shutdownErr := metricsServer.Shutdown(shutdownCtx); shutdownErr != nil {
			slog.Error("metrics server shutdown failed", slog.Any("error", shutdownErr))
		}
		cancel()
	}

	if err != nil {
		slog.Error("run failed", slog.Any("error", err))
		os.Exit(1)
	}
}

// newTokenCache picks the token source for API-capable scrapers: a manual
// token wins, then an application keypair, otherwise nil leaves those
// scrapers on their HTML fallback.
func newTokenCache(cfg *config.Config, metrics *scraper.Metrics) *scraper.TokenCache {
	if cfg.EbayStaticToken != "" {
		return scraper.NewStaticTokenCache(cfg.EbayStaticToken)
	}
	if cfg.EbayClientID != "" && cfg.EbayClientSecret != "" {
		exchanger := scraper.NewClientCredentials(cfg.EbayClientID, cfg.EbayClientSecret, cfg.FetchTimeout)
		return scraper.NewTokenCache(exchanger, metrics)
	}
	return nil
}

func buildFilter(productType string, limit int) (store.ProductFilter, error) {
	filter := store.ProductFilter{Limit: limit}
	switch productType {
	case "":
	case string(models.TypeBox):
		filter.Type = models.TypeBox
	case string(models.TypeCase):
		filter.Type = models.TypeCase
	default:
		return filter, fmt.Errorf("unknown product type %q", productType)
	}
	return filter, nil
}

func runSingle(ctx context.Context, runner *jobs.Runner, slug string, filter store.ProductFilter) error {
	start := time.Now()
	job, err := runner.RunRetailer(ctx, slug, filter)
	if err != nil {
		return err
	}
	if job == nil {
		return fmt.Errorf("no scraper or active retailer for %q", slug)
	}
	report := models.RunReport{
		StartTime: start,
		EndTime:   time.Now(),
		Jobs:      []models.ScrapeJob{*job},
	}
	printSummary(report)
	return nil
}

func runOnce(ctx context.Context, runner *jobs.Runner, filter store.ProductFilter, parallel bool) error {
	report, err := runner.RunAll(ctx, filter, parallel)
	if err != nil {
		return err
	}
	printSummary(report)
	return nil
}

func runScheduled(ctx context.Context, runner *jobs.Runner, cfg *config.Config, parallel bool) error {
	sched := schedule.New(runner, schedule.Options{
		IntervalHours:         cfg.ScrapeIntervalHours,
		PriorityIntervalHours: cfg.PriorityIntervalHours,
		PriorityRetailers:     cfg.PriorityRetailers,
		Parallel:              parallel,
	})
	if err := sched.Start(ctx); err != nil {
		return err
	}

	queue := jobs.NewQueue(runner)
	queue.Start(ctx, 1)

	slog.Info("tracker running",
		slog.Int("interval_hours", cfg.ScrapeIntervalHours),
		slog.Int("priority_interval_hours", cfg.PriorityIntervalHours),
	)

	<-ctx.Done()
	slog.Info("shutdown signal received, waiting for in-flight work to finish")
	sched.Stop()
	queue.Close()
	return nil
}

func printSummary(report models.RunReport) {
	separator := "--------------------------------------------------"
	fmt.Println("\n" + separator)
	fmt.Println("Scrape run complete")
	fmt.Printf("  Jobs:          %d\n", len(report.Jobs))
	fmt.Printf("  Scraped:       %d\n", report.TotalScraped())
	fmt.Printf("  Failed:        %d\n", report.TotalFailed())
	if len(report.Skipped) > 0 {
		fmt.Printf("  Skipped:       %v\n", report.Skipped)
	}
	if len(report.Aborted) > 0 {
		fmt.Printf("  Aborted:       %v\n", report.Aborted)
	}
	for _, job := range report.Jobs {
		status := string(job.Status)
		if job.ErrorMessage != "" {
			status += " (" + job.ErrorMessage + ")"
		}
		fmt.Printf("    job %-4d retailer %-4d %-10s %3d scraped %3d failed in %v\n",
			job.ID, job.RetailerID, status, job.ProductsScraped, job.ProductsFailed, job.Duration().Round(time.Millisecond))
	}
	fmt.Printf("  Duration:      %v\n", report.EndTime.Sub(report.StartTime).Round(time.Millisecond))
	fmt.Println(separator)
}

func newLogger(verbose bool) (*slog.Logger, *slog.LevelVar) {
	level := &slog.LevelVar{}
	if verbose {
		level.Set(slog.LevelDebug)
	} else {
		level.Set(slog.LevelInfo)
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if isTerminal(os.Stdout) {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	return slog.New(handler), level
}

func isTerminal(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}
