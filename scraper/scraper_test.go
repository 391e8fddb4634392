package scraper

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/jarcoal/httpmock"

	"cardwatch/fetch"
	"cardwatch/models"
)

func testRetailer(slug string) models.Retailer {
	return models.Retailer{
		ID:                7,
		Name:              slug,
		Slug:              slug,
		Currency:          "USD",
		RequestsPerMinute: 600,
	}
}

func testProduct(id int64, setCode string, t models.ProductType) models.Product {
	return models.Product{ID: id, SetCode: setCode, SetName: "Test Set", Type: t}
}

func TestSupported(t *testing.T) {
	for _, slug := range []string{"ebay", "pricecharting", "amazon-jp", "tcgrepublic", "japantcg", "fptradingcards"} {
		if !Supported(slug) {
			t.Errorf("Supported(%q) = false, want true", slug)
		}
	}
	if Supported("cardmarket") {
		t.Error("Supported(cardmarket) = true, want false")
	}
}

func TestNewUnknownSlug(t *testing.T) {
	if _, err := New(testRetailer("cardmarket"), Deps{}); err == nil {
		t.Fatal("expected error for unregistered slug")
	}
}

func TestScrapeAllUnknownContract(t *testing.T) {
	s := &Scraper{
		retailer: testRetailer("broken"),
		variant:  struct{}{},
		client:   fetch.NewClient(fetch.Options{RequestsPerMinute: 600}),
		missing:  expirable.NewLRU[string, struct{}](8, nil, time.Hour),
	}
	if _, err := s.ScrapeAll(context.Background(), nil); err == nil {
		t.Fatal("expected contract error")
	}
}

type panicVariant struct{}

func (panicVariant) BuildQuery(models.Product) (string, error) {
	panic("selector config exploded")
}

func (panicVariant) ExtractQuote(*fetch.Document, models.Product) (models.PriceQuote, bool) {
	return models.PriceQuote{}, false
}

func TestScrapeAllRecoversProductPanic(t *testing.T) {
	s := &Scraper{
		retailer: testRetailer("panicky"),
		variant:  panicVariant{},
		client:   fetch.NewClient(fetch.Options{RequestsPerMinute: 600}),
		missing:  expirable.NewLRU[string, struct{}](8, nil, time.Hour),
	}

	quotes, err := s.ScrapeAll(context.Background(), []models.Product{
		testProduct(1, "OP-01", models.TypeBox),
		testProduct(2, "OP-02", models.TypeBox),
	})
	if err != nil {
		t.Fatalf("ScrapeAll: %v", err)
	}
	if len(quotes) != 0 {
		t.Fatalf("got %d quotes from a panicking variant", len(quotes))
	}
}

const japanTCGCatalogHTML = `
<html><body>
  <div class="product-card">
    <a href="/products/op05-box">One Piece Card Game OP-05 Awakening of the New Era Booster Box</a>
    <span class="price">$89.99</span>
  </div>
  <div class="product-card">
    <a href="/products/op05-case">One Piece Card Game OP-05 Awakening of the New Era Case</a>
    <span class="price">$1,049.00</span>
  </div>
  <div class="product-card">
    <a href="/products/op03-box">One Piece Card Game OP-03 Pillars of Strength Booster Box</a>
    <span class="price">$74.50</span>
    <span class="badge">Sold out</span>
  </div>
</body></html>`

func TestCatalogModeSingleFetch(t *testing.T) {
	s, err := New(testRetailer("japantcg"), Deps{Timeout: time.Second})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	s.Client().DisableDelays()

	httpmock.ActivateNonDefault(s.Client().Resty().GetClient())
	defer httpmock.DeactivateAndReset()
	httpmock.RegisterResponder("GET", `=~japantradingcardstore`,
		httpmock.NewStringResponder(http.StatusOK, japanTCGCatalogHTML))

	products := []models.Product{
		testProduct(1, "OP-05", models.TypeBox),
		testProduct(2, "OP-05", models.TypeCase),
		testProduct(3, "OP-09", models.TypeBox),
	}

	quotes, err := s.ScrapeAll(context.Background(), products)
	if err != nil {
		t.Fatalf("ScrapeAll: %v", err)
	}
	if got := httpmock.GetTotalCallCount(); got != 1 {
		t.Fatalf("catalog scrape issued %d fetches, want 1", got)
	}
	if len(quotes) != 2 {
		t.Fatalf("got %d quotes, want 2", len(quotes))
	}

	byProduct := make(map[int64]models.PriceQuote, len(quotes))
	for _, q := range quotes {
		byProduct[q.ProductID] = q
	}
	box, ok := byProduct[1]
	if !ok {
		t.Fatal("missing quote for the box product")
	}
	if box.Price != 89.99 {
		t.Errorf("box price = %v, want 89.99", box.Price)
	}
	if box.RetailerID != 7 {
		t.Errorf("RetailerID = %d, want 7", box.RetailerID)
	}
	if box.SourceURL == "" {
		t.Error("SourceURL not filled from catalog URL")
	}
	if box.ScrapedAt.IsZero() {
		t.Error("ScrapedAt not set")
	}
	if c, ok := byProduct[2]; !ok || c.Price != 1049.00 {
		t.Errorf("case quote = %+v, want price 1049", c)
	}
}

func TestCatalogIndexRebuiltPerRun(t *testing.T) {
	s, err := New(testRetailer("japantcg"), Deps{Timeout: time.Second})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	s.Client().DisableDelays()

	httpmock.ActivateNonDefault(s.Client().Resty().GetClient())
	defer httpmock.DeactivateAndReset()
	httpmock.RegisterResponder("GET", `=~japantradingcardstore`,
		httpmock.NewStringResponder(http.StatusOK, japanTCGCatalogHTML))

	products := []models.Product{testProduct(1, "OP-05", models.TypeBox)}
	for run := 1; run <= 2; run++ {
		if _, err := s.ScrapeAll(context.Background(), products); err != nil {
			t.Fatalf("run %d: %v", run, err)
		}
		if got := httpmock.GetTotalCallCount(); got != run {
			t.Fatalf("after run %d: %d fetches, want %d", run, got, run)
		}
	}
}

func TestCatalogLookupNormalizesSetCode(t *testing.T) {
	s, err := New(testRetailer("japantcg"), Deps{Timeout: time.Second})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	s.Client().DisableDelays()

	httpmock.ActivateNonDefault(s.Client().Resty().GetClient())
	defer httpmock.DeactivateAndReset()
	httpmock.RegisterResponder("GET", `=~japantradingcardstore`,
		httpmock.NewStringResponder(http.StatusOK, japanTCGCatalogHTML))

	// A lowercase catalog row still matches the uppercase index keys.
	quotes, err := s.ScrapeAll(context.Background(), []models.Product{
		testProduct(1, "op-05", models.TypeBox),
	})
	if err != nil {
		t.Fatalf("ScrapeAll: %v", err)
	}
	if len(quotes) != 1 {
		t.Fatalf("got %d quotes for a lowercase set code, want 1", len(quotes))
	}
	if quotes[0].Price != 89.99 {
		t.Errorf("price = %v, want 89.99", quotes[0].Price)
	}
}

func TestJapanTCGBuildIndex(t *testing.T) {
	v := newJapanTCG(testRetailer("japantcg"), Deps{}).(*japanTCGVariant)
	index := v.BuildIndex(fetch.NewDocument(v.CatalogURL(), []byte(japanTCGCatalogHTML)))

	if len(index) != 3 {
		t.Fatalf("index has %d entries, want 3", len(index))
	}
	box := index[CatalogKey{SetCode: "OP-05", Type: models.TypeBox}]
	if box.Price != 89.99 || !box.InStock {
		t.Errorf("OP-05 box = %+v", box)
	}
	soldOut := index[CatalogKey{SetCode: "OP-03", Type: models.TypeBox}]
	if soldOut.InStock {
		t.Error("sold-out listing indexed as in stock")
	}
}

func TestPerProductNotFoundCached(t *testing.T) {
	s, err := New(testRetailer("tcgrepublic"), Deps{Timeout: time.Second})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	s.Client().DisableDelays()

	httpmock.ActivateNonDefault(s.Client().Resty().GetClient())
	defer httpmock.DeactivateAndReset()
	httpmock.RegisterResponder("GET", `=~tcgrepublic`,
		httpmock.NewStringResponder(http.StatusNotFound, "gone"))

	products := []models.Product{testProduct(1, "OP-05", models.TypeBox)}

	if _, err := s.ScrapeAll(context.Background(), products); err != nil {
		t.Fatalf("first run: %v", err)
	}
	if got := httpmock.GetTotalCallCount(); got != 1 {
		t.Fatalf("first run issued %d fetches, want 1", got)
	}

	// The 404 is remembered; the second run skips the fetch entirely.
	if _, err := s.ScrapeAll(context.Background(), products); err != nil {
		t.Fatalf("second run: %v", err)
	}
	if got := httpmock.GetTotalCallCount(); got != 1 {
		t.Fatalf("second run re-fetched a known-missing url (%d fetches)", got)
	}
}

func TestPerProductOrderAndCounts(t *testing.T) {
	s, err := New(testRetailer("tcgrepublic"), Deps{Timeout: time.Second})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	s.Client().DisableDelays()

	httpmock.ActivateNonDefault(s.Client().Resty().GetClient())
	defer httpmock.DeactivateAndReset()
	httpmock.RegisterResponder("GET", `=~q=One\+Piece\+OP-05`,
		httpmock.NewStringResponder(http.StatusOK, `
			<div class="product_unit">
				<div class="product_name"><a>One Piece OP-05 Booster Box Japanese</a></div>
				<span class="figure">85.00</span>
				<button class="add_to_cart_button">Add</button>
			</div>`))
	httpmock.RegisterResponder("GET", `=~q=One\+Piece\+OP-06`,
		httpmock.NewStringResponder(http.StatusInternalServerError, "oops"))
	httpmock.RegisterResponder("GET", `=~q=One\+Piece\+OP-07`,
		httpmock.NewStringResponder(http.StatusOK, `
			<div class="product_unit">
				<div class="product_name"><a>One Piece OP-07 Booster Box Japanese</a></div>
				<span class="figure">92.50</span>
				<button class="add_to_cart_button">Add</button>
			</div>`))

	quotes, err := s.ScrapeAll(context.Background(), []models.Product{
		testProduct(1, "OP-05", models.TypeBox),
		testProduct(2, "OP-06", models.TypeBox),
		testProduct(3, "OP-07", models.TypeBox),
	})
	if err != nil {
		t.Fatalf("ScrapeAll: %v", err)
	}
	if len(quotes) != 2 {
		t.Fatalf("got %d quotes, want 2 (middle product failed)", len(quotes))
	}
	if quotes[0].ProductID != 1 || quotes[1].ProductID != 3 {
		t.Errorf("quotes out of input order: %d, %d", quotes[0].ProductID, quotes[1].ProductID)
	}
	if quotes[0].Price != 85.00 || quotes[1].Price != 92.50 {
		t.Errorf("prices = %v, %v", quotes[0].Price, quotes[1].Price)
	}
	if quotes[0].SourceURL == "" {
		t.Error("SourceURL not filled from the fetched url")
	}
}
