// Package jobs orchestrates scrape runs: one ScrapeJob per retailer per
// run, with partial failure tracked in the job record and only systemic
// errors failing a job outright.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"cardwatch/models"
	"cardwatch/scraper"
	"cardwatch/store"
)

// BulkScraper is the slice of *scraper.Scraper the runner needs.
type BulkScraper interface {
	ScrapeAll(ctx context.Context, products []models.Product) ([]models.PriceQuote, error)
}

// Runner executes scrape jobs against the store.
type Runner struct {
	store   store.Store
	metrics *scraper.Metrics

	// Injection points for tests; default to the scraper registry.
	newScraper func(models.Retailer) (BulkScraper, error)
	supported  func(slug string) bool
}

// NewRunner builds a runner whose scrapers share deps (token cache,
// metrics, timeout).
func NewRunner(st store.Store, deps scraper.Deps) *Runner {
	return &Runner{
		store:   st,
		metrics: deps.Metrics,
		newScraper: func(r models.Retailer) (BulkScraper, error) {
			return scraper.New(r, deps)
		},
		supported: scraper.Supported,
	}
}

// RunRetailer runs one scrape job for the retailer with the given slug.
// A slug with no registered scraper (or no active retailer row) is a no-op
// with a warning and no job record; the returned job is nil in that case.
// The error return is reserved for store access failures.
func (r *Runner) RunRetailer(ctx context.Context, slug string, filter store.ProductFilter) (*models.ScrapeJob, error) {
	retailer, err := r.store.RetailerBySlug(ctx, slug)
	if errors.Is(err, store.ErrNotFound) {
		slog.Warn("no active retailer for slug", slog.String("slug", slug))
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return r.runRetailer(ctx, retailer, filter)
}

// RunAll runs a job for every active retailer. Retailers are independent
// (own limiter, own scraper state); parallel runs one goroutine per
// retailer, sequential is the default.
func (r *Runner) RunAll(ctx context.Context, filter store.ProductFilter, parallel bool) (models.RunReport, error) {
	report := models.RunReport{StartTime: time.Now().UTC()}

	retailers, err := r.store.ActiveRetailers(ctx)
	if err != nil {
		return report, err
	}

	var mu sync.Mutex
	record := func(job *models.ScrapeJob, slug string, err error) {
		mu.Lock()
		defer mu.Unlock()
		if err != nil {
			slog.Error("retailer run aborted",
				slog.String("retailer", slug),
				slog.Any("error", err),
			)
			report.Aborted = append(report.Aborted, slug)
			return
		}
		if job == nil {
			report.Skipped = append(report.Skipped, slug)
			return
		}
		report.Jobs = append(report.Jobs, *job)
	}

	if parallel {
		var wg sync.WaitGroup
		for _, retailer := range retailers {
			wg.Add(1)
			go func(retailer models.Retailer) {
				defer wg.Done()
				job, err := r.runRetailer(ctx, retailer, filter)
				record(job, retailer.Slug, err)
			}(retailer)
		}
		wg.Wait()
	} else {
		for _, retailer := range retailers {
			job, err := r.runRetailer(ctx, retailer, filter)
			record(job, retailer.Slug, err)
		}
	}

	report.EndTime = time.Now().UTC()
	return report, nil
}

func (r *Runner) runRetailer(ctx context.Context, retailer models.Retailer, filter store.ProductFilter) (*models.ScrapeJob, error) {
	if !r.supported(retailer.Slug) {
		slog.Warn("no scraper registered for retailer", slog.String("slug", retailer.Slug))
		return nil, nil
	}

	products, err := r.store.ActiveProducts(ctx, filter)
	if err != nil {
		return nil, err
	}

	job, err := r.store.CreateJob(ctx, retailer.ID)
	if err != nil {
		return nil, err
	}

	slog.Info("scrape job started",
		slog.String("retailer", retailer.Slug),
		slog.Int64("job_id", job.ID),
		slog.Int("products", len(products)),
	)

	results, scrapeErr := r.scrape(ctx, retailer, products)
	if scrapeErr == nil {
		if err := r.store.AppendPriceQuotes(ctx, results); err != nil {
			scrapeErr = fmt.Errorf("append observations: %w", err)
		}
	}

	// The job record transitions exactly once, even when persisting the
	// quotes is what failed.
	job.CompletedAt = time.Now().UTC()
	if scrapeErr != nil {
		job.Status = models.JobFailed
		job.ErrorMessage = scrapeErr.Error()
		job.ProductsScraped = 0
		job.ProductsFailed = len(products)
		slog.Error("scrape job failed",
			slog.String("retailer", retailer.Slug),
			slog.Int64("job_id", job.ID),
			slog.Any("error", scrapeErr),
		)
	} else {
		job.Status = models.JobCompleted
		job.ProductsScraped = len(results)
		job.ProductsFailed = len(products) - len(results)
		slog.Info("scrape job completed",
			slog.String("retailer", retailer.Slug),
			slog.Int64("job_id", job.ID),
			slog.Int("scraped", job.ProductsScraped),
			slog.Int("failed", job.ProductsFailed),
		)
	}

	if err := r.store.UpdateJob(ctx, job); err != nil {
		return nil, fmt.Errorf("update job %d: %w", job.ID, err)
	}
	r.metrics.IncJob(retailer.Slug, string(job.Status))
	return &job, nil
}

// scrape builds the retailer's scraper and runs it, converting construction
// errors and panics out of the bulk operation into the systemic-failure
// path that marks the job failed.
func (r *Runner) scrape(ctx context.Context, retailer models.Retailer, products []models.Product) (results []models.PriceQuote, err error) {
	defer func() {
		if p := recover(); p != nil {
			results = nil
			err = fmt.Errorf("scraper panic: %v", p)
		}
	}()

	scr, err := r.newScraper(retailer)
	if err != nil {
		return nil, err
	}
	return scr.ScrapeAll(ctx, products)
}
