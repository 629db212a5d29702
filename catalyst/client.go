// Package catalyst is the client for a single catalyst content server.
//
// Client is a thin layer over the core packages: it builds endpoint URLs,
// fragments long id lists with fragment, drains paginated listings with
// paginate, decides what to upload with availability, and delegates every
// request to a transport.Transport. Downloads are verified against their hash
// and optionally cached in a storage.Store.
package catalyst

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/decentraland/catalyst-client-sub000/availability"
	"github.com/decentraland/catalyst-client-sub000/fragment"
	"github.com/decentraland/catalyst-client-sub000/paginate"
	"github.com/decentraland/catalyst-client-sub000/storage"
	"github.com/decentraland/catalyst-client-sub000/transport"
)

// ClientConfig holds configuration for creating a Client.
type ClientConfig struct {
	// ServerURL is the base URL of the catalyst (e.g. "https://peer.decentraland.org").
	ServerURL string
	// Transport performs all requests. If nil, an HTTP transport over
	// HTTPClient is used.
	Transport transport.Transport
	// HTTPClient is used by the default transport. If nil, http.DefaultClient is used.
	HTTPClient *http.Client
	UserAgent  string
	// Options bound every request. Zero fields take transport defaults.
	Options transport.Options
	// Fragmenter splits long id lists. The zero value uses a 2048 character
	// budget.
	Fragmenter fragment.Fragmenter
	// Concurrency bounds in-flight fragment requests. Zero means
	// paginate.DefaultConcurrency.
	Concurrency int
	// Policy applies to multi-fragment listings.
	Policy paginate.Policy
	// Cache, when set, serves and stores downloaded content.
	Cache storage.Store
	// Logger is used for structured logging. If nil, slog.Default() is used.
	Logger *slog.Logger
}

// Client talks to one catalyst.
type Client struct {
	baseURL     string
	transport   transport.Transport
	options     transport.Options
	fragmenter  fragment.Fragmenter
	concurrency int
	policy      paginate.Policy
	cache       storage.Store
	logger      *slog.Logger
	available   *availability.Resolver
}

// NewClient creates a Client.
func NewClient(config ClientConfig) (*Client, error) {
	if config.ServerURL == "" {
		return nil, fmt.Errorf("catalyst: ServerURL is required")
	}
	u, err := url.Parse(config.ServerURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("catalyst: invalid ServerURL %q", config.ServerURL)
	}

	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	tr := config.Transport
	if tr == nil {
		tr = transport.NewHTTP(transport.HTTPConfig{
			HTTPClient: config.HTTPClient,
			Logger:     logger,
			UserAgent:  config.UserAgent,
		})
	}
	concurrency := config.Concurrency
	if concurrency <= 0 {
		concurrency = paginate.DefaultConcurrency
	}
	frag := config.Fragmenter
	if frag.OnOversized == nil {
		frag.OnOversized = func(name, value string, length int) {
			logger.Warn("query value exceeds url budget, sending alone", "param", name, "length", length)
		}
	}

	c := &Client{
		baseURL:     strings.TrimRight(config.ServerURL, "/"),
		transport:   tr,
		options:     config.Options.WithDefaults(),
		fragmenter:  frag,
		concurrency: concurrency,
		policy:      config.Policy,
		cache:       config.Cache,
		logger:      logger,
	}
	c.available = &availability.Resolver{
		BaseURL:     c.baseURL,
		Transport:   tr,
		Fragmenter:  frag,
		Options:     c.options,
		Concurrency: concurrency,
		Logger:      logger,
	}
	return c, nil
}

// ServerURL returns the normalized base URL.
func (c *Client) ServerURL() string { return c.baseURL }

// fetchFragments runs one FetchJSON per url, bounded by the client's
// concurrency, and returns the decoded results in url order. The first error
// cancels the remaining requests.
func fetchFragments[T any](ctx context.Context, c *Client, urls []string) ([][]T, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	results := make([][]T, len(urls))
	errs := make([]error, len(urls))
	sem := make(chan struct{}, c.concurrency)
	var wg sync.WaitGroup
	for i, u := range urls {
		wg.Add(1)
		go func(i int, u string) {
			defer wg.Done()
			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				errs[i] = ctx.Err()
				return
			}
			defer func() { <-sem }()
			if err := c.transport.FetchJSON(ctx, u, c.options, &results[i]); err != nil {
				errs[i] = err
				cancel()
			}
		}(i, u)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil && !isCanceled(err) {
			return nil, err
		}
	}
	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return results, nil
}

func isCanceled(err error) bool {
	return errors.Is(err, context.Canceled)
}
