package scraper

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"cardwatch/fetch"
	"cardwatch/models"
	"cardwatch/parse"
)

// fpSetPatterns matches sets by code or English set name, since FP titles
// are inconsistent about which they use.
var fpSetPatterns = map[string]*regexp.Regexp{
	"OP-01": regexp.MustCompile(`(?i)OP-?01|romance\s*dawn`),
	"OP-02": regexp.MustCompile(`(?i)OP-?02|paramount\s*war`),
	"OP-03": regexp.MustCompile(`(?i)OP-?03|pillars\s*of\s*strength`),
	"OP-04": regexp.MustCompile(`(?i)OP-?04|kingdom\s*of\s*intrigue`),
	"OP-05": regexp.MustCompile(`(?i)OP-?05|awakening`),
	"OP-06": regexp.MustCompile(`(?i)OP-?06|wings\s*of\s*the\s*captain`),
	"OP-07": regexp.MustCompile(`(?i)OP-?07|500\s*years`),
	"OP-08": regexp.MustCompile(`(?i)OP-?08|two\s*legends`),
	"EB-01": regexp.MustCompile(`(?i)EB-?01|memorial`),
}

// fpTradingVariant scrapes the FP Trading Cards WooCommerce shop page in
// catalog mode. Only Japanese-marked listings are indexed, and prices
// outside the sanity bounds are dropped as mispriced or mismatched.
type fpTradingVariant struct {
	retailer  models.Retailer
	selectors map[string]string
	priceMin  float64
	priceMax  float64
}

func newFPTradingCards(r models.Retailer, _ Deps) any {
	min, max := boundsOr(r, 10, 500)
	return &fpTradingVariant{
		retailer:  r,
		selectors: r.Selectors,
		priceMin:  min,
		priceMax:  max,
	}
}

func (v *fpTradingVariant) CatalogURL() string {
	return "https://www.fptradingcards.com/shop/"
}

func (v *fpTradingVariant) BuildIndex(doc *fetch.Document) CatalogIndex {
	itemSel := selectorOr(v.selectors, "product_card", ".product, .type-product, li.product")
	titleSel := selectorOr(v.selectors, "product_title", ".woocommerce-loop-product__title, .product_title, h2, h3")
	priceSel := selectorOr(v.selectors, "price", ".price .amount, .woocommerce-Price-amount, bdi")

	index := make(CatalogIndex)
	doc.Find(itemSel).Each(func(_ int, sel *goquery.Selection) {
		title := sel.Find(titleSel).Text()
		upper := strings.ToUpper(title)
		if !strings.Contains(upper, "JAPANESE") && !strings.Contains(upper, "JPN") {
			return
		}

		setCode := ""
		for code, pattern := range fpSetPatterns {
			if pattern.MatchString(title) {
				setCode = code
				break
			}
		}
		if setCode == "" {
			return
		}

		productType := models.TypeBox
		if strings.Contains(upper, "CASE") {
			productType = models.TypeCase
		}

		price, ok := parse.Price(sel.Find(priceSel).First().Text())
		if !ok || !parse.InRange(price, v.priceMin, v.priceMax) {
			return
		}

		sourceURL := ""
		if href, exists := sel.Find(`a[href*="product"]`).First().Attr("href"); exists {
			sourceURL = href
		}

		index[CatalogKey{SetCode: setCode, Type: productType}] = models.PriceQuote{
			Price:     price,
			Currency:  "USD",
			InStock:   !strings.Contains(strings.ToLower(sel.Text()), "out of stock"),
			SourceURL: sourceURL,
		}
	})
	return index
}
