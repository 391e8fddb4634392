package scraper

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	"cardwatch/fetch"
	"cardwatch/models"
	"cardwatch/parse"
)

// tcgRepublicVariant scrapes TCGRepublic search pages. Stock is judged by
// the presence of an add-to-cart control.
type tcgRepublicVariant struct {
	retailer  models.Retailer
	selectors map[string]string
}

func newTCGRepublic(r models.Retailer, _ Deps) any {
	return &tcgRepublicVariant{retailer: r, selectors: r.Selectors}
}

func (v *tcgRepublicVariant) BuildQuery(product models.Product) (string, error) {
	parts := []string{"One Piece", product.SetCode}
	switch product.Type {
	case models.TypeBox:
		parts = append(parts, "Booster Box")
	case models.TypeCase:
		parts = append(parts, "Case")
	}
	query := strings.ReplaceAll(strings.Join(parts, " "), " ", "+")
	return "https://tcgrepublic.com/product/search.html?q=" + query, nil
}

func (v *tcgRepublicVariant) ExtractQuote(doc *fetch.Document, product models.Product) (models.PriceQuote, bool) {
	cardSel := selectorOr(v.selectors, "product_card", ".product_unit")
	titleSel := selectorOr(v.selectors, "product_title", ".product_name a")
	priceSel := selectorOr(v.selectors, "price", ".figure")
	cartSel := selectorOr(v.selectors, "add_to_cart", ".add_to_cart_button")

	setCode := parse.NormalizeSetCode(product.SetCode)

	var quote models.PriceQuote
	found := false

	doc.Find(cardSel).EachWithBreak(func(i int, sel *goquery.Selection) bool {
		if i >= 10 {
			return false
		}
		title := strings.ToUpper(sel.Find(titleSel).Text())
		if !strings.Contains(title, setCode) {
			return true
		}
		if product.Type == models.TypeBox && !strings.Contains(title, "BOX") {
			return true
		}
		if product.Type == models.TypeCase && !strings.Contains(title, "CASE") {
			return true
		}

		price, ok := parse.Price(sel.Find(priceSel).Text())
		if !ok {
			return true
		}

		quote = models.PriceQuote{
			Price:    price,
			Currency: "USD",
			InStock:  sel.Find(cartSel).Length() > 0 || doc.Find(cartSel).Length() > 0,
		}
		found = true
		return false
	})

	return quote, found
}
