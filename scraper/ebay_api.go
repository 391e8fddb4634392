package scraper

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"

	"cardwatch/fetch"
)

const (
	ebayTokenURL  = "https://api.ebay.com/identity/v1/oauth2/token"
	ebayBrowseURL = "https://api.ebay.com/buy/browse/v1"
	ebayAPIScope  = "https://api.ebay.com/oauth/api_scope"
)

// ClientCredentials exchanges an eBay application keypair for a bearer
// token (OAuth client-credentials grant).
type ClientCredentials struct {
	http     *resty.Client
	tokenURL string
	clientID string
	secret   string
}

// NewClientCredentials builds an exchanger for the given app keypair.
func NewClientCredentials(clientID, secret string, timeout time.Duration) *ClientCredentials {
	if timeout <= 0 {
		timeout = fetch.DefaultTimeout
	}
	return &ClientCredentials{
		http:     resty.New().SetTimeout(timeout),
		tokenURL: ebayTokenURL,
		clientID: clientID,
		secret:   secret,
	}
}

// Resty exposes the underlying client for mock transports in tests.
func (c *ClientCredentials) Resty() *resty.Client {
	return c.http
}

// SetTokenURL overrides the token endpoint. Tests only.
func (c *ClientCredentials) SetTokenURL(url string) {
	c.tokenURL = url
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
	TokenType   string `json:"token_type"`
}

// Exchange performs the credential exchange and returns the token with its
// reported lifetime.
func (c *ClientCredentials) Exchange(ctx context.Context) (string, time.Duration, error) {
	var body tokenResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetBasicAuth(c.clientID, c.secret).
		SetHeader("Content-Type", "application/x-www-form-urlencoded").
		SetFormData(map[string]string{
			"grant_type": "client_credentials",
			"scope":      ebayAPIScope,
		}).
		SetResult(&body).
		Post(c.tokenURL)
	if err != nil {
		return "", 0, fetch.Classify(err, 0)
	}
	if resp.StatusCode() != http.StatusOK {
		return "", 0, fetch.Classify(nil, resp.StatusCode())
	}
	if body.AccessToken == "" {
		return "", 0, fmt.Errorf("token response missing access_token")
	}
	return body.AccessToken, time.Duration(body.ExpiresIn) * time.Second, nil
}

// Listing is one structured search result from the Browse API.
type Listing struct {
	Title    string
	Price    float64
	Currency string
	URL      string
}

// BrowseClient is a thin client for the eBay Browse item-summary search.
type BrowseClient struct {
	http    *resty.Client
	baseURL string
}

// NewBrowseClient builds a Browse API client.
func NewBrowseClient(timeout time.Duration) *BrowseClient {
	if timeout <= 0 {
		timeout = fetch.DefaultTimeout
	}
	return &BrowseClient{
		http:    resty.New().SetTimeout(timeout),
		baseURL: ebayBrowseURL,
	}
}

// Resty exposes the underlying client for mock transports in tests.
func (c *BrowseClient) Resty() *resty.Client {
	return c.http
}

// SetBaseURL overrides the API endpoint. Tests only.
func (c *BrowseClient) SetBaseURL(url string) {
	c.baseURL = url
}

type browseResponse struct {
	ItemSummaries []struct {
		Title string `json:"title"`
		Price struct {
			Value    string `json:"value"`
			Currency string `json:"currency"`
		} `json:"price"`
		ItemWebURL string `json:"itemWebUrl"`
	} `json:"itemSummaries"`
}

// Search runs an item-summary search with the given bearer token. An HTTP
// 401 comes back as fetch.ErrAuth so the caller can invalidate the shared
// token cache.
func (c *BrowseClient) Search(ctx context.Context, token, query string, limit int) ([]Listing, error) {
	if limit <= 0 {
		limit = 50
	}

	var body browseResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetAuthToken(token).
		SetHeader("X-EBAY-C-MARKETPLACE-ID", "EBAY_US").
		SetQueryParams(map[string]string{
			"q":     query,
			"limit": strconv.Itoa(limit),
		}).
		SetResult(&body).
		Get(c.baseURL + "/item_summary/search")
	if err != nil {
		return nil, fetch.Classify(err, 0)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fetch.Classify(nil, resp.StatusCode())
	}

	listings := make([]Listing, 0, len(body.ItemSummaries))
	for _, item := range body.ItemSummaries {
		price, err := strconv.ParseFloat(item.Price.Value, 64)
		if err != nil {
			continue
		}
		listings = append(listings, Listing{
			Title:    item.Title,
			Price:    price,
			Currency: item.Price.Currency,
			URL:      item.ItemWebURL,
		})
	}
	return listings, nil
}
