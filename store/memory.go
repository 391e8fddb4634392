package store

import (
	"context"
	"sync"
	"time"

	"cardwatch/models"
)

// Memory is an in-memory Store used by tests.
type Memory struct {
	mu        sync.Mutex
	products  []models.Product
	retailers []models.Retailer
	jobs      map[int64]models.ScrapeJob
	quotes    []models.PriceQuote
	nextJobID int64
}

// NewMemory seeds a memory store with the given catalog.
func NewMemory(products []models.Product, retailers []models.Retailer) *Memory {
	return &Memory{
		products:  products,
		retailers: retailers,
		jobs:      make(map[int64]models.ScrapeJob),
		nextJobID: 1,
	}
}

func (s *Memory) ActiveProducts(_ context.Context, filter ProductFilter) ([]models.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []models.Product
	for _, p := range s.products {
		if !p.Active {
			continue
		}
		if filter.Type != "" && p.Type != filter.Type {
			continue
		}
		out = append(out, p)
		if filter.Limit > 0 && len(out) >= filter.Limit {
			break
		}
	}
	return out, nil
}

func (s *Memory) ActiveRetailers(_ context.Context) ([]models.Retailer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []models.Retailer
	for _, r := range s.retailers {
		if r.Active {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *Memory) RetailerBySlug(_ context.Context, slug string) (models.Retailer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, r := range s.retailers {
		if r.Slug == slug && r.Active {
			return r, nil
		}
	}
	return models.Retailer{}, ErrNotFound
}

func (s *Memory) CreateJob(_ context.Context, retailerID int64) (models.ScrapeJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job := models.ScrapeJob{
		ID:         s.nextJobID,
		RetailerID: retailerID,
		Status:     models.JobStarted,
		StartedAt:  time.Now().UTC(),
	}
	s.nextJobID++
	s.jobs[job.ID] = job
	return job, nil
}

func (s *Memory) UpdateJob(_ context.Context, job models.ScrapeJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = job
	return nil
}

func (s *Memory) AppendPriceQuotes(_ context.Context, quotes []models.PriceQuote) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.quotes = append(s.quotes, quotes...)
	return nil
}

// Job returns a stored job record by id.
func (s *Memory) Job(id int64) (models.ScrapeJob, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	return job, ok
}

// Jobs returns all stored job records.
func (s *Memory) Jobs() []models.ScrapeJob {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.ScrapeJob, 0, len(s.jobs))
	for _, j := range s.jobs {
		out = append(out, j)
	}
	return out
}

// Quotes returns all appended price observations.
func (s *Memory) Quotes() []models.PriceQuote {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.PriceQuote, len(s.quotes))
	copy(out, s.quotes)
	return out
}
