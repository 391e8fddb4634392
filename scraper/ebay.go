package scraper

import (
	"context"
	"log/slog"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"cardwatch/fetch"
	"cardwatch/models"
	"cardwatch/parse"
)

// ebaySearchURL targets new, Buy-It-Now listings sorted by lowest
// price + shipping.
const ebaySearchURL = "https://www.ebay.com/sch/i.html?" +
	"LH_ItemCondition=1000&" +
	"_nkw=%s&" +
	"LH_PrefLoc=3&" +
	"_sacat=0&" +
	"LH_BIN=1&" +
	"_sop=15"

// ebayVariant is the API-first scraper: Browse API with a shared token
// cache, falling back to search-page HTML when the API yields nothing.
// eBay is a marketplace aggregator, so listings are in stock by
// definition and the lower-median across matching listings stands in for
// a single price.
type ebayVariant struct {
	retailer  models.Retailer
	selectors map[string]string
	tokens    *TokenCache
	api       *BrowseClient

	priceMin float64
	priceMax float64
}

func newEbay(r models.Retailer, deps Deps) any {
	min, max := boundsOr(r, 10, 1000)
	v := &ebayVariant{
		retailer:  r,
		selectors: r.Selectors,
		tokens:    deps.Tokens,
		priceMin:  min,
		priceMax:  max,
	}
	if deps.Tokens != nil {
		v.api = NewBrowseClient(deps.Timeout)
	}
	return v
}

// API exposes the Browse client for mock transports in tests.
func (v *ebayVariant) API() *BrowseClient {
	return v.api
}

func (v *ebayVariant) searchQuery(product models.Product) string {
	parts := []string{"One Piece Card Game", product.SetCode, "Japanese"}
	switch product.Type {
	case models.TypeBox:
		parts = append(parts, "Booster Box")
	case models.TypeCase:
		parts = append(parts, "Case")
	}
	return strings.Join(parts, " ")
}

func (v *ebayVariant) BuildQuery(product models.Product) (string, error) {
	query := strings.ReplaceAll(v.searchQuery(product), " ", "+")
	return strings.Replace(ebaySearchURL, "%s", query, 1), nil
}

// QuoteViaAPI asks the Browse API for matching listings and takes the
// lower-median price. Any failure, including missing credentials, returns
// false so the HTML path still runs for the same product.
func (v *ebayVariant) QuoteViaAPI(ctx context.Context, product models.Product) (models.PriceQuote, bool) {
	if v.api == nil || v.tokens == nil {
		return models.PriceQuote{}, false
	}
	token, ok := v.tokens.Token(ctx)
	if !ok {
		return models.PriceQuote{}, false
	}

	listings, err := v.api.Search(ctx, token, v.searchQuery(product), 50)
	if err != nil {
		if fetch.IsAuth(err) {
			// The cached token is dead; drop it so the next call
			// re-acquires instead of replaying the failure.
			v.tokens.Forget()
		}
		slog.Warn("ebay api search failed",
			slog.String("product", product.SetCode),
			slog.String("category", fetch.Label(err)),
			slog.Any("error", err),
		)
		return models.PriceQuote{}, false
	}

	var matched []Listing
	for _, l := range listings {
		if !v.titleMatches(l.Title, product) {
			continue
		}
		if !parse.InRange(l.Price, v.priceMin, v.priceMax) {
			continue
		}
		matched = append(matched, l)
	}
	if len(matched) == 0 {
		return models.PriceQuote{}, false
	}

	sort.Slice(matched, func(i, j int) bool { return matched[i].Price < matched[j].Price })
	pick := matched[len(matched)/2]

	currency := pick.Currency
	if currency == "" {
		currency = "USD"
	}
	return models.PriceQuote{
		Price:     pick.Price,
		Currency:  currency,
		InStock:   true,
		SourceURL: pick.URL,
	}, true
}

// ExtractQuote parses the search results page: listings whose title names
// the set code and the Japanese printing, with a plausible price, feed the
// median.
func (v *ebayVariant) ExtractQuote(doc *fetch.Document, product models.Product) (models.PriceQuote, bool) {
	listingSel := selectorOr(v.selectors, "listing", ".s-item")
	titleSel := selectorOr(v.selectors, "title", ".s-item__title")
	priceSel := selectorOr(v.selectors, "price", ".s-item__price")

	var prices []float64
	doc.Find(listingSel).Each(func(i int, sel *goquery.Selection) {
		// The first card is an ad slot; cap at the next ten.
		if i == 0 || i > 10 {
			return
		}
		title := sel.Find(titleSel).Text()
		if !v.titleMatches(title, product) {
			return
		}
		price, ok := parse.Price(sel.Find(priceSel).Text())
		if !ok || !parse.InRange(price, v.priceMin, v.priceMax) {
			return
		}
		prices = append(prices, price)
	})

	median, ok := parse.Median(prices)
	if !ok {
		return models.PriceQuote{}, false
	}
	return models.PriceQuote{
		Price:    median,
		Currency: "USD",
		InStock:  true,
	}, true
}

func (v *ebayVariant) titleMatches(title string, product models.Product) bool {
	upper := strings.ToUpper(title)
	if !strings.Contains(upper, parse.NormalizeSetCode(product.SetCode)) {
		return false
	}
	return parse.HasRegionMarker(title)
}
