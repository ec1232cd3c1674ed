package marketplace

import (
	"time"

	"posheet/internal/components/assert"
	"posheet/internal/components/telemetry"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel"
	"golang.org/x/time/rate"
)

var tracer = otel.Tracer("posheet/marketplace")

const (
	DefaultBaseURL = "https://item.rakuten.co.jp"
	UserAgent      = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	AcceptLanguage = "ja,en;q=0.9"

	DefaultMaxBodyBytes = 16 << 20
)

type Options struct {
	// BaseURL is the storefront host product pages live under, it defaults to
	// DefaultBaseURL.
	BaseURL string
	// Timeout bounds every page and image request, it defaults to 10 seconds.
	Timeout time.Duration
	// RequestsPerSecond limits outgoing requests across all goroutines, zero
	// means no limit.
	RequestsPerSecond float64
	// BrowserTLS makes the TLS handshake look like a desktop browser's.
	BrowserTLS bool
	// CacheSize is the number of resolved pages kept in memory, zero disables
	// the cache.
	CacheSize int
	CacheTTL  time.Duration
	// MaxBodyBytes caps every page and image body, larger responses fail with
	// resty.ErrResponseBodyTooLarge. It defaults to DefaultMaxBodyBytes.
	MaxBodyBytes int
	// Dump receives every HTTP exchange when non-nil.
	Dump telemetry.InstrumentOutput
}

// Client talks to a single storefront. Its headers are configured once in
// NewClient and it is safe for concurrent use.
type Client struct {
	baseURL string
	http    *resty.Client
	cache   *resolveCache
	tel     telemetry.API
}

func NewClient(opts Options, tel telemetry.API) *Client {
	assert.NotNil(tel)
	tel = telemetry.NewScopedAPI("marketplace", tel)

	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.Timeout <= 0 {
		opts.Timeout = time.Second * 10
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = DefaultMaxBodyBytes
	}

	httpClient := resty.New()
	if opts.BrowserTLS {
		httpClient.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(httpClient.GetClient().Transport)
	}
	httpClient.SetHeader("user-agent", UserAgent)
	httpClient.SetHeader("accept-language", AcceptLanguage)
	httpClient.SetRedirectPolicy(resty.FlexibleRedirectPolicy(10))
	httpClient.SetTimeout(opts.Timeout)
	httpClient.SetRetryCount(0)
	httpClient.SetResponseBodyLimit(opts.MaxBodyBytes)

	if opts.RequestsPerSecond > 0 {
		burst := int(opts.RequestsPerSecond)
		if burst < 1 {
			burst = 1
		}
		rateLimiter := rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), burst)
		httpClient.OnBeforeRequest(func(_ *resty.Client, req *resty.Request) error {
			return rateLimiter.Wait(req.Context())
		})
	}

	telemetry.InstrumentResty(httpClient, tel, opts.Dump)

	return &Client{
		baseURL: opts.BaseURL,
		http:    httpClient,
		cache:   newResolveCache(opts.CacheSize, opts.CacheTTL),
		tel:     tel,
	}
}

// BaseURL returns the storefront host the client resolves pages against.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// PurgeCache forgets every memoized resolution.
func (c *Client) PurgeCache() {
	c.cache.purge()
}
