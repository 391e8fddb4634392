package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"cardwatch/models"
)

// Postgres implements Store on a pgx connection pool.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres connects to databaseURL and verifies connectivity.
func NewPostgres(ctx context.Context, databaseURL string) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("pgxpool.New: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres ping failed: %w", err)
	}
	return &Postgres{pool: pool}, nil
}

// Close releases the connection pool.
func (s *Postgres) Close() {
	s.pool.Close()
}

// scraperConfig is the free-form per-retailer configuration stored as
// JSONB. Only the matching scraper variant interprets the selectors.
type scraperConfig struct {
	Selectors map[string]string `json:"selectors,omitempty"`
	PriceMin  float64           `json:"price_min,omitempty"`
	PriceMax  float64           `json:"price_max,omitempty"`
}

func (s *Postgres) ActiveProducts(ctx context.Context, filter ProductFilter) ([]models.Product, error) {
	query := `SELECT id, set_code, set_name, COALESCE(set_name_jp, ''), product_type,
	                 COALESCE(msrp_jpy, 0), COALESCE(boxes_per_case, 12), COALESCE(image_url, '')
	          FROM products
	          WHERE is_active = true`
	args := []any{}
	if filter.Type != "" {
		args = append(args, string(filter.Type))
		query += fmt.Sprintf(" AND product_type = $%d", len(args))
	}
	query += " ORDER BY set_code, product_type"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query products: %w", err)
	}
	defer rows.Close()

	var products []models.Product
	for rows.Next() {
		var p models.Product
		var productType string
		if err := rows.Scan(
			&p.ID, &p.SetCode, &p.SetName, &p.SetNameJP, &productType,
			&p.MSRPJPY, &p.BoxesPerCase, &p.ImageURL,
		); err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		p.Type = models.ProductType(productType)
		p.Active = true
		products = append(products, p)
	}
	return products, rows.Err()
}

const retailerColumns = `id, name, slug, base_url, COALESCE(country, 'JP'), COALESCE(currency, 'JPY'),
	COALESCE(min_delay_seconds, 2), COALESCE(max_delay_seconds, 5), COALESCE(requests_per_minute, 10),
	COALESCE(scraper_config, '{}')`

func (s *Postgres) ActiveRetailers(ctx context.Context) ([]models.Retailer, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+retailerColumns+` FROM retailers WHERE is_active = true ORDER BY slug`)
	if err != nil {
		return nil, fmt.Errorf("query retailers: %w", err)
	}
	defer rows.Close()

	var retailers []models.Retailer
	for rows.Next() {
		r, err := scanRetailer(rows)
		if err != nil {
			return nil, err
		}
		retailers = append(retailers, r)
	}
	return retailers, rows.Err()
}

func (s *Postgres) RetailerBySlug(ctx context.Context, slug string) (models.Retailer, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+retailerColumns+` FROM retailers WHERE slug = $1 AND is_active = true`, slug)
	if err != nil {
		return models.Retailer{}, fmt.Errorf("query retailer %q: %w", slug, err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return models.Retailer{}, err
		}
		return models.Retailer{}, ErrNotFound
	}
	return scanRetailer(rows)
}

func scanRetailer(rows pgx.Rows) (models.Retailer, error) {
	var r models.Retailer
	var minDelay, maxDelay int
	var rawConfig []byte
	if err := rows.Scan(
		&r.ID, &r.Name, &r.Slug, &r.BaseURL, &r.Country, &r.Currency,
		&minDelay, &maxDelay, &r.RequestsPerMinute, &rawConfig,
	); err != nil {
		return models.Retailer{}, fmt.Errorf("scan retailer: %w", err)
	}
	r.Active = true
	r.MinDelay = time.Duration(minDelay) * time.Second
	r.MaxDelay = time.Duration(maxDelay) * time.Second

	var cfg scraperConfig
	if len(rawConfig) > 0 {
		if err := json.Unmarshal(rawConfig, &cfg); err != nil {
			return models.Retailer{}, fmt.Errorf("retailer %q scraper_config: %w", r.Slug, err)
		}
	}
	r.Selectors = cfg.Selectors
	r.PriceMin = cfg.PriceMin
	r.PriceMax = cfg.PriceMax
	return r, nil
}

func (s *Postgres) CreateJob(ctx context.Context, retailerID int64) (models.ScrapeJob, error) {
	job := models.ScrapeJob{
		RetailerID: retailerID,
		Status:     models.JobStarted,
		StartedAt:  time.Now().UTC(),
	}
	err := s.pool.QueryRow(ctx,
		`INSERT INTO scrape_jobs (retailer_id, status, started_at)
		 VALUES ($1, $2, $3)
		 RETURNING id`,
		retailerID, string(job.Status), job.StartedAt,
	).Scan(&job.ID)
	if err != nil {
		return models.ScrapeJob{}, fmt.Errorf("insert scrape job: %w", err)
	}
	return job, nil
}

func (s *Postgres) UpdateJob(ctx context.Context, job models.ScrapeJob) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE scrape_jobs
		 SET status = $2, completed_at = $3, products_scraped = $4,
		     products_failed = $5, error_message = NULLIF($6, '')
		 WHERE id = $1`,
		job.ID, string(job.Status), job.CompletedAt,
		job.ProductsScraped, job.ProductsFailed, job.ErrorMessage,
	)
	if err != nil {
		return fmt.Errorf("update scrape job %d: %w", job.ID, err)
	}
	return nil
}

func (s *Postgres) AppendPriceQuotes(ctx context.Context, quotes []models.PriceQuote) error {
	if len(quotes) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, q := range quotes {
		batch.Queue(
			`INSERT INTO price_history (product_id, retailer_id, price, currency, in_stock, source_url, scraped_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			q.ProductID, q.RetailerID, q.Price, q.Currency, q.InStock, q.SourceURL, q.ScrapedAt,
		)
	}

	results := s.pool.SendBatch(ctx, batch)
	defer results.Close()
	for range quotes {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("insert price observation: %w", err)
		}
	}
	return nil
}
