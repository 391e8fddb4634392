// Package fetch issues the outbound document requests for the scrapers:
// one resty client per retailer, paced by that retailer's rate limiter,
// with a randomized post-wait delay and user-agent rotation to perturb
// request timing.
package fetch

import (
	"bytes"
	"context"
	"math/rand"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"

	"cardwatch/ratelimit"
)

// DefaultTimeout bounds every network fetch; a hung request degrades to a
// timeout failure rather than stalling the job.
const DefaultTimeout = 15 * time.Second

var userAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:121.0) Gecko/20100101 Firefox/121.0",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.2 Safari/605.1.15",
}

// Document is a fetched page: raw body plus a lazily parsed goquery root.
type Document struct {
	URL    string
	Status int
	Body   []byte

	once sync.Once
	root *goquery.Document
}

// NewDocument wraps a body for parsing. Used directly by tests; scrapers
// get documents from Client.Get.
func NewDocument(url string, body []byte) *Document {
	return &Document{URL: url, Status: http.StatusOK, Body: body}
}

// Root returns the parsed document, parsing on first use. A body that
// fails to parse yields an empty document, so selector misses degrade to
// absent matches rather than errors.
func (d *Document) Root() *goquery.Document {
	d.once.Do(func() {
		root, err := goquery.NewDocumentFromReader(bytes.NewReader(d.Body))
		if err != nil {
			root, _ = goquery.NewDocumentFromReader(strings.NewReader(""))
		}
		d.root = root
	})
	return d.root
}

// Find runs a selector query against the parsed document.
func (d *Document) Find(selector string) *goquery.Selection {
	return d.Root().Find(selector)
}

// Text returns the full visible text of the page.
func (d *Document) Text() string {
	return d.Root().Text()
}

// Options configures a Client for one retailer.
type Options struct {
	Timeout           time.Duration
	MinDelay          time.Duration
	MaxDelay          time.Duration
	RequestsPerMinute int
}

// Client fetches documents for a single scraper instance. The limiter is
// owned by the client and never shared across retailers.
type Client struct {
	http    *resty.Client
	limiter *ratelimit.Limiter

	minDelay time.Duration
	maxDelay time.Duration

	sleep func(time.Duration)
	rng   *rand.Rand
	rngMu sync.Mutex
}

// NewClient builds a client with a bounded request timeout and a fresh
// rate limiter sized from opts.
func NewClient(opts Options) *Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	httpClient := resty.New().
		SetTimeout(timeout).
		SetHeader("Accept-Language", "ja,en-US;q=0.8,en;q=0.6").
		SetRedirectPolicy(resty.FlexibleRedirectPolicy(5))

	return &Client{
		http:     httpClient,
		limiter:  ratelimit.New(opts.RequestsPerMinute),
		minDelay: opts.MinDelay,
		maxDelay: opts.MaxDelay,
		sleep:    time.Sleep,
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Resty exposes the underlying client so tests can attach a mock transport.
func (c *Client) Resty() *resty.Client {
	return c.http
}

// DisableDelays turns off the randomized inter-request delay. Tests only.
func (c *Client) DisableDelays() {
	c.sleep = func(time.Duration) {}
}

// Get fetches url as a document. It blocks on the rate limiter first, then
// sleeps the randomized anti-throttling delay, then issues the request
// with a rotated user agent. Transport errors and non-success statuses are
// classified, never raised raw.
func (c *Client) Get(ctx context.Context, url string) (*Document, error) {
	c.limiter.Wait()
	c.sleep(c.randomDelay())

	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("User-Agent", c.randomUserAgent()).
		Get(url)
	if err != nil {
		return nil, Classify(err, 0)
	}
	if resp.StatusCode() >= http.StatusBadRequest {
		return nil, Classify(nil, resp.StatusCode())
	}

	return &Document{
		URL:    url,
		Status: resp.StatusCode(),
		Body:   resp.Body(),
	}, nil
}

// randomDelay draws from [minDelay, maxDelay] plus up to ±500ms of jitter,
// floored at 500ms so there is always some spacing beyond the limiter.
func (c *Client) randomDelay() time.Duration {
	c.rngMu.Lock()
	defer c.rngMu.Unlock()

	base := c.minDelay
	if span := c.maxDelay - c.minDelay; span > 0 {
		base += time.Duration(c.rng.Int63n(int64(span)))
	}
	jitter := time.Duration(c.rng.Int63n(int64(time.Second))) - 500*time.Millisecond

	delay := base + jitter
	if delay < 500*time.Millisecond {
		delay = 500 * time.Millisecond
	}
	return delay
}

func (c *Client) randomUserAgent() string {
	c.rngMu.Lock()
	defer c.rngMu.Unlock()
	return userAgents[c.rng.Intn(len(userAgents))]
}
