package scraper

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	"cardwatch/fetch"
	"cardwatch/models"
	"cardwatch/parse"
)

// japanTCGVariant scrapes the Japan Trading Card Store collection page in
// catalog mode: one fetch per job, every product answered from the index.
type japanTCGVariant struct {
	retailer  models.Retailer
	selectors map[string]string
}

func newJapanTCG(r models.Retailer, _ Deps) any {
	return &japanTCGVariant{retailer: r, selectors: r.Selectors}
}

func (v *japanTCGVariant) CatalogURL() string {
	return "https://japantradingcardstore.com/collections/one-piece-booster-box"
}

func (v *japanTCGVariant) BuildIndex(doc *fetch.Document) CatalogIndex {
	cardSel := selectorOr(v.selectors, "product_card", `.product-card, .product-item, [class*="product"]`)
	titleSel := selectorOr(v.selectors, "product_title", `.product-title, .product-card__title, a[href*="/products/"]`)
	priceSel := selectorOr(v.selectors, "price", `.price, .product-price, [class*="price"]`)

	index := make(CatalogIndex)
	doc.Find(cardSel).Each(func(_ int, sel *goquery.Selection) {
		title := sel.Find(titleSel).Text()
		setCode, ok := parse.ExtractSetCode(title)
		if !ok {
			return
		}

		upper := strings.ToUpper(title)
		productType := models.TypeBox
		if strings.Contains(upper, "CASE") || strings.Contains(upper, "CARTON") {
			productType = models.TypeCase
		}

		price, ok := parse.Price(sel.Find(priceSel).First().Text())
		if !ok {
			return
		}

		cardText := strings.ToLower(sel.Text())
		inStock := !strings.Contains(cardText, "out of stock") && !strings.Contains(cardText, "sold out")

		index[CatalogKey{SetCode: setCode, Type: productType}] = models.PriceQuote{
			Price:    price,
			Currency: "USD",
			InStock:  inStock,
		}
	})
	return index
}
