// Package scraper implements the per-retailer scraping behavior: query
// building, document fetching and price extraction. Each retailer slug maps
// to exactly one variant; variants come in two shapes, per-product (one
// fetch per product) and catalog (one fetch per job, answered from an
// in-memory index), with the eBay variant additionally trying a structured
// API before falling back to HTML.
package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"cardwatch/fetch"
	"cardwatch/models"
	"cardwatch/parse"
)

// Variant is the per-product scraping contract. BuildQuery is a pure
// function from product identity and retailer config to a fetch target;
// ExtractQuote is pure parsing over a fetched document and returns absent
// rather than failing when the expected markup is missing.
type Variant interface {
	BuildQuery(product models.Product) (string, error)
	ExtractQuote(doc *fetch.Document, product models.Product) (models.PriceQuote, bool)
}

// APIVariant is a Variant that first attempts a structured API lookup.
// A false return means the HTML path must still be tried.
type APIVariant interface {
	Variant
	QuoteViaAPI(ctx context.Context, product models.Product) (models.PriceQuote, bool)
}

// CatalogKey identifies one product inside a catalog index. SetCode is
// always the normalized (uppercase, trimmed) form.
type CatalogKey struct {
	SetCode string
	Type    models.ProductType
}

// CatalogIndex is the in-memory lookup built from one catalog page. It is
// scoped to a single job run and rebuilt on the next.
type CatalogIndex map[CatalogKey]models.PriceQuote

// CatalogVariant scrapes a whole listing page at once: one fetch per job
// regardless of how many products are queried. BuildIndex is a pure
// function of the document.
type CatalogVariant interface {
	CatalogURL() string
	BuildIndex(doc *fetch.Document) CatalogIndex
}

// Deps carries the shared collaborators a variant may need.
type Deps struct {
	// Tokens is the process-wide credential cache for API-capable
	// variants. Nil disables the API path entirely.
	Tokens  *TokenCache
	Metrics *Metrics
	Timeout time.Duration
}

type constructor func(models.Retailer, Deps) any

var registry = map[string]constructor{
	"ebay":           newEbay,
	"pricecharting":  newPriceCharting,
	"amazon-jp":      newAmazonJP,
	"tcgrepublic":    newTCGRepublic,
	"japantcg":       newJapanTCG,
	"fptradingcards": newFPTradingCards,
}

// Supported reports whether a scraper variant exists for the slug.
func Supported(slug string) bool {
	_, ok := registry[slug]
	return ok
}

// Scraper binds a variant to one retailer, with its own fetch client and
// rate limiter. The catalog index is rebuilt every run; it never outlives
// a job.
type Scraper struct {
	retailer models.Retailer
	variant  any
	client   *fetch.Client
	metrics  *Metrics

	// URLs that recently 404'd; skipped without a fetch on later runs in
	// the same process. Unknown products otherwise cost a full paced
	// request every job.
	missing *expirable.LRU[string, struct{}]
}

// New resolves the retailer's slug to a variant and builds a scraper
// around it. Unknown slugs are an error; the orchestrator treats them as
// skip-with-warning, not as a job failure.
func New(retailer models.Retailer, deps Deps) (*Scraper, error) {
	build, ok := registry[retailer.Slug]
	if !ok {
		return nil, fmt.Errorf("no scraper registered for retailer %q", retailer.Slug)
	}

	client := fetch.NewClient(fetch.Options{
		Timeout:           deps.Timeout,
		MinDelay:          retailer.MinDelay,
		MaxDelay:          retailer.MaxDelay,
		RequestsPerMinute: retailer.RequestsPerMinute,
	})

	return &Scraper{
		retailer: retailer,
		variant:  build(retailer, deps),
		client:   client,
		metrics:  deps.Metrics,
		missing:  expirable.NewLRU[string, struct{}](512, nil, 6*time.Hour),
	}, nil
}

// Retailer returns the retailer this scraper is bound to.
func (s *Scraper) Retailer() models.Retailer {
	return s.retailer
}

// Client exposes the fetch client so tests can attach a mock transport and
// disable delays.
func (s *Scraper) Client() *fetch.Client {
	return s.client
}

// ScrapeAll scrapes prices for every product, in input order. Product-level
// failures (transport, parse, missing listing) degrade to an absent quote
// and never abort the run; the returned error is reserved for systemic
// conditions such as a misconfigured variant.
func (s *Scraper) ScrapeAll(ctx context.Context, products []models.Product) ([]models.PriceQuote, error) {
	switch v := s.variant.(type) {
	case CatalogVariant:
		return s.scrapeCatalog(ctx, v, products), nil
	case Variant:
		return s.scrapePerProduct(ctx, v, products), nil
	default:
		return nil, fmt.Errorf("retailer %q: variant %T satisfies no scraping contract", s.retailer.Slug, s.variant)
	}
}

func (s *Scraper) scrapePerProduct(ctx context.Context, v Variant, products []models.Product) []models.PriceQuote {
	var results []models.PriceQuote
	for _, product := range products {
		if quote, ok := s.scrapeOne(ctx, v, product); ok {
			results = append(results, quote)
		}
	}
	return results
}

// scrapeOne is the per-product failure boundary: anything that goes wrong
// inside, including a panic out of a parser, converts to "no quote".
func (s *Scraper) scrapeOne(ctx context.Context, v Variant, product models.Product) (quote models.PriceQuote, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("scrape panic recovered",
				slog.String("retailer", s.retailer.Slug),
				slog.String("product", product.SetCode),
				slog.Any("panic", r),
			)
			ok = false
		}
	}()

	if api, isAPI := v.(APIVariant); isAPI {
		if quote, ok = api.QuoteViaAPI(ctx, product); ok {
			s.count("api")
			return s.finalize(quote, product), true
		}
		// API gave nothing usable; the HTML path still runs.
	}

	url, err := v.BuildQuery(product)
	if err != nil {
		slog.Debug("no query for product",
			slog.String("retailer", s.retailer.Slug),
			slog.String("product", product.SetCode),
			slog.Any("error", err),
		)
		return models.PriceQuote{}, false
	}

	if _, gone := s.missing.Get(url); gone {
		slog.Debug("skipping recently missing url",
			slog.String("retailer", s.retailer.Slug),
			slog.String("url", url),
		)
		return models.PriceQuote{}, false
	}

	doc, err := s.fetchDocument(ctx, url)
	if err != nil {
		if fetch.Label(err) == "not_found" {
			s.missing.Add(url, struct{}{})
		}
		slog.Warn("fetch failed",
			slog.String("retailer", s.retailer.Slug),
			slog.String("url", url),
			slog.String("category", fetch.Label(err)),
			slog.Any("error", err),
		)
		return models.PriceQuote{}, false
	}

	quote, ok = v.ExtractQuote(doc, product)
	if !ok {
		return models.PriceQuote{}, false
	}
	if quote.SourceURL == "" {
		quote.SourceURL = url
	}
	s.count("html")
	return s.finalize(quote, product), true
}

func (s *Scraper) scrapeCatalog(ctx context.Context, v CatalogVariant, products []models.Product) []models.PriceQuote {
	doc, err := s.fetchDocument(ctx, v.CatalogURL())
	if err != nil {
		slog.Warn("catalog fetch failed",
			slog.String("retailer", s.retailer.Slug),
			slog.String("url", v.CatalogURL()),
			slog.String("category", fetch.Label(err)),
			slog.Any("error", err),
		)
		return nil
	}

	index := v.BuildIndex(doc)
	slog.Debug("catalog index built",
		slog.String("retailer", s.retailer.Slug),
		slog.Int("entries", len(index)),
	)

	var results []models.PriceQuote
	for _, product := range products {
		key := CatalogKey{SetCode: parse.NormalizeSetCode(product.SetCode), Type: product.Type}
		quote, ok := index[key]
		if !ok {
			continue
		}
		if quote.SourceURL == "" {
			quote.SourceURL = v.CatalogURL()
		}
		s.count("catalog")
		results = append(results, s.finalize(quote, product))
	}
	return results
}

func (s *Scraper) fetchDocument(ctx context.Context, url string) (*fetch.Document, error) {
	start := time.Now()
	doc, err := s.client.Get(ctx, url)
	s.metrics.ObserveFetch(s.retailer.Slug, fetch.Label(err), time.Since(start))
	return doc, err
}

func (s *Scraper) finalize(quote models.PriceQuote, product models.Product) models.PriceQuote {
	quote.ProductID = product.ID
	quote.RetailerID = s.retailer.ID
	if quote.Currency == "" {
		quote.Currency = s.retailer.Currency
	}
	if quote.ScrapedAt.IsZero() {
		quote.ScrapedAt = time.Now().UTC()
	}
	return quote
}

func (s *Scraper) count(mode string) {
	s.metrics.IncQuote(s.retailer.Slug, mode)
}

// selectorOr returns the retailer's override for a selector name, or the
// variant default.
func selectorOr(overrides map[string]string, name, fallback string) string {
	if v, ok := overrides[name]; ok && v != "" {
		return v
	}
	return fallback
}

// boundsOr applies variant-default sanity bounds when the retailer config
// leaves them unset.
func boundsOr(r models.Retailer, defMin, defMax float64) (float64, float64) {
	min, max := r.PriceMin, r.PriceMax
	if min == 0 {
		min = defMin
	}
	if max == 0 {
		max = defMax
	}
	return min, max
}
