// Package models defines data structures shared across the tracker.
package models

import "time"

// ProductType identifies the sealed-product form factor.
type ProductType string

const (
	TypeBox  ProductType = "box"
	TypeCase ProductType = "case"
)

// Product is one tracked catalog entry. Products are read-only inputs to
// scrapers; a scrape run never mutates them.
type Product struct {
	ID           int64
	SetCode      string // e.g. "OP-05", "EB-01"
	SetName      string
	SetNameJP    string
	Type         ProductType
	MSRPJPY      int
	BoxesPerCase int
	ImageURL     string
	Active       bool
}

// DisplayName renders the product the way the dashboard refers to it.
func (p Product) DisplayName() string {
	return p.SetCode + " " + p.SetName + " (" + string(p.Type) + ")"
}

// Retailer describes one scrape target and its traffic budget. Selectors
// and sanity bounds come from the retailer's stored scraper config and are
// consumed only inside the matching scraper variant.
type Retailer struct {
	ID       int64
	Name     string
	Slug     string
	BaseURL  string
	Country  string
	Currency string
	Active   bool

	MinDelay          time.Duration
	MaxDelay          time.Duration
	RequestsPerMinute int

	// Selector overrides keyed by the variant's selector names.
	Selectors map[string]string
	// Plausible price bounds for listing filters. Zero values mean the
	// variant's defaults apply.
	PriceMin float64
	PriceMax float64
}

// PriceQuote is a single extracted price/stock observation for one product
// from one retailer. Quotes are handed to the store; the scraping core does
// not persist them itself.
type PriceQuote struct {
	ProductID  int64
	RetailerID int64
	Price      float64
	Currency   string
	InStock    bool
	SourceURL  string
	ScrapedAt  time.Time
}

// JobStatus is the lifecycle state of a ScrapeJob.
type JobStatus string

const (
	JobStarted   JobStatus = "started"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
)

// ScrapeJob records one execution of a retailer's scrape. A job is created
// with StatusStarted and transitions exactly once to completed or failed.
// ProductsScraped + ProductsFailed always equals the number of products
// submitted to the run.
type ScrapeJob struct {
	ID              int64
	RetailerID      int64
	Status          JobStatus
	StartedAt       time.Time
	CompletedAt     time.Time
	ProductsScraped int
	ProductsFailed  int
	ErrorMessage    string
}

// Duration reports how long the job ran, or zero while it is still open.
func (j ScrapeJob) Duration() time.Duration {
	if j.CompletedAt.IsZero() {
		return 0
	}
	return j.CompletedAt.Sub(j.StartedAt)
}

// RunReport aggregates the outcome of a multi-retailer run. Every active
// retailer lands in exactly one of Jobs, Skipped, or Aborted.
type RunReport struct {
	StartTime time.Time
	EndTime   time.Time
	Jobs      []ScrapeJob
	Skipped   []string // retailer slugs with no registered scraper
	Aborted   []string // retailer slugs whose run failed on store access
}

// TotalScraped sums successful product observations across jobs.
func (r RunReport) TotalScraped() int {
	total := 0
	for _, j := range r.Jobs {
		total += j.ProductsScraped
	}
	return total
}

// TotalFailed sums failed product lookups across jobs.
func (r RunReport) TotalFailed() int {
	total := 0
	for _, j := range r.Jobs {
		total += j.ProductsFailed
	}
	return total
}
