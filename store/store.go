// Package store persists products, retailers, scrape jobs and price
// observations. The scraping core only sees the Store interface; the
// Postgres implementation owns the schema.
package store

import (
	"context"
	"errors"

	"cardwatch/models"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("store: not found")

// ProductFilter narrows the active-product selection for a run.
type ProductFilter struct {
	Type  models.ProductType // empty means both box and case
	Limit int                // zero means no limit
}

// Store is the persistence collaborator of the scraping core.
type Store interface {
	ActiveProducts(ctx context.Context, filter ProductFilter) ([]models.Product, error)
	ActiveRetailers(ctx context.Context) ([]models.Retailer, error)
	RetailerBySlug(ctx context.Context, slug string) (models.Retailer, error)

	// CreateJob opens a job record with status started.
	CreateJob(ctx context.Context, retailerID int64) (models.ScrapeJob, error)
	// UpdateJob records the job's single terminal transition.
	UpdateJob(ctx context.Context, job models.ScrapeJob) error

	AppendPriceQuotes(ctx context.Context, quotes []models.PriceQuote) error
}
