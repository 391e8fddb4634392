package scraper

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	"cardwatch/fetch"
	"cardwatch/models"
	"cardwatch/parse"
)

// amazonJPVariant scrapes Amazon Japan search results. Prices are integer
// yen; stock is judged from the out-of-stock marker text.
type amazonJPVariant struct {
	retailer  models.Retailer
	selectors map[string]string
}

func newAmazonJP(r models.Retailer, _ Deps) any {
	return &amazonJPVariant{retailer: r, selectors: r.Selectors}
}

func (v *amazonJPVariant) BuildQuery(product models.Product) (string, error) {
	parts := []string{"ワンピースカードゲーム", product.SetCode}
	switch product.Type {
	case models.TypeBox:
		parts = append(parts, "BOX")
	case models.TypeCase:
		parts = append(parts, "カートン")
	}
	return "https://www.amazon.co.jp/s?k=" + strings.Join(parts, "+") + "&i=toys", nil
}

func (v *amazonJPVariant) ExtractQuote(doc *fetch.Document, product models.Product) (models.PriceQuote, bool) {
	resultSel := selectorOr(v.selectors, "search_result", `[data-component-type="s-search-result"]`)
	titleSel := selectorOr(v.selectors, "product_title", "h2 a span")
	priceSel := selectorOr(v.selectors, "price_whole", ".a-price-whole")

	var quote models.PriceQuote
	found := false

	doc.Find(resultSel).EachWithBreak(func(i int, sel *goquery.Selection) bool {
		if i >= 5 {
			return false
		}
		title := strings.ToLower(sel.Find(titleSel).Text())
		if !strings.Contains(title, strings.ToLower(product.SetCode)) {
			return true
		}

		isBox := strings.Contains(title, "box") || strings.Contains(title, "ボックス")
		isCase := strings.Contains(title, "カートン") || strings.Contains(title, "ケース") || strings.Contains(title, "case")
		if product.Type == models.TypeBox && !isBox {
			return true
		}
		if product.Type == models.TypeCase && !isCase {
			return true
		}

		price, ok := parse.Yen(sel.Find(priceSel).Text())
		if !ok {
			return true
		}

		quote = models.PriceQuote{
			Price:    price,
			Currency: "JPY",
			InStock:  v.inStock(doc),
		}
		found = true
		return false
	})

	return quote, found
}

func (v *amazonJPVariant) inStock(doc *fetch.Document) bool {
	marker := selectorOr(v.selectors, "out_of_stock", ".a-color-price")
	text := strings.ToLower(doc.Find(marker).Text())
	if strings.Contains(text, "在庫切れ") || strings.Contains(text, "out of stock") {
		return false
	}
	return true
}
