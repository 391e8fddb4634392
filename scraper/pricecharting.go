package scraper

import (
	"fmt"

	"cardwatch/fetch"
	"cardwatch/models"
	"cardwatch/parse"
)

// priceChartingSlugs maps set codes to PriceCharting URL slugs.
var priceChartingSlugs = map[string]string{
	"OP-01":  "one-piece-japanese-romance-dawn",
	"OP-02":  "one-piece-japanese-paramount-war",
	"OP-03":  "one-piece-japanese-pillars-of-strength",
	"OP-04":  "one-piece-japanese-kingdoms-of-intrigue",
	"OP-05":  "one-piece-japanese-awakening-of-the-new-era",
	"OP-06":  "one-piece-japanese-wings-of-the-captain",
	"OP-07":  "one-piece-japanese-500-years-in-the-future",
	"OP-08":  "one-piece-japanese-two-legends",
	"OP-09":  "one-piece-japanese-emperors-in-the-new-world",
	"OP-10":  "one-piece-japanese-royal-blood",
	"OP-11":  "one-piece-japanese-a-fist-of-divine-speed",
	"OP-12":  "one-piece-japanese-legacy-of-the-master",
	"OP-13":  "one-piece-japanese-carrying-on-his-will",
	"OP-14":  "one-piece-japanese-the-azure-seas-seven",
	"EB-01":  "one-piece-japanese-memorial-collection",
	"EB-02":  "one-piece-japanese-anime-25th-collection",
	"EB-03":  "one-piece-japanese-heroines-edition",
	"PRB-01": "one-piece-japanese-premium-booster",
}

// priceChartingVariant scrapes PriceCharting's per-product market price
// pages. PriceCharting tracks historical market value, so every quote is
// in stock.
type priceChartingVariant struct {
	retailer  models.Retailer
	selectors map[string]string
}

func newPriceCharting(r models.Retailer, _ Deps) any {
	return &priceChartingVariant{retailer: r, selectors: r.Selectors}
}

func (v *priceChartingVariant) BuildQuery(product models.Product) (string, error) {
	slug, ok := priceChartingSlugs[parse.NormalizeSetCode(product.SetCode)]
	if !ok {
		return "", fmt.Errorf("pricecharting: no slug for set %q", product.SetCode)
	}
	switch product.Type {
	case models.TypeBox:
		return "https://www.pricecharting.com/game/" + slug + "/booster-box", nil
	case models.TypeCase:
		return "https://www.pricecharting.com/game/" + slug + "/booster-box-case", nil
	}
	return "", fmt.Errorf("pricecharting: unsupported product type %q", product.Type)
}

func (v *priceChartingVariant) ExtractQuote(doc *fetch.Document, _ models.Product) (models.PriceQuote, bool) {
	primary := selectorOr(v.selectors, "price", "#price_data .price")

	text := doc.Find(primary).First().Text()
	if text == "" {
		text = doc.Find(".price").First().Text()
	}
	if price, ok := parse.Price(text); ok {
		return models.PriceQuote{Price: price, Currency: "USD", InStock: true}, true
	}

	// Markup changed; fall back to a price token near the "ungraded"
	// or "loose" label in the page text.
	if price, ok := parse.PriceNear(doc.Text(), "ungraded", "loose"); ok {
		return models.PriceQuote{Price: price, Currency: "USD", InStock: true}, true
	}
	return models.PriceQuote{}, false
}
