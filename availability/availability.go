// Package availability asks a catalyst which content hashes it already stores.
package availability

import (
	"context"
	"log/slog"
	"sync"

	"github.com/decentraland/catalyst-client-sub000/fragment"
	"github.com/decentraland/catalyst-client-sub000/model"
	"github.com/decentraland/catalyst-client-sub000/transport"
)

// Path is the availability endpoint, relative to the server base URL.
const Path = "/content/available-content"

// ErrNoIdentifiers is the message of the validation error for an empty query.
const ErrNoIdentifiers = "must set at least one identifier"

// Resolver issues availability queries, one request per URL fragment.
type Resolver struct {
	BaseURL    string
	Transport  transport.Transport
	Fragmenter fragment.Fragmenter
	Options    transport.Options
	// Concurrency bounds in-flight fragment requests. Zero means one at a time.
	Concurrency int
	Logger      *slog.Logger
}

// Check returns the raw per-hash availability, in server order per fragment
// and fragment order overall.
func (r *Resolver) Check(ctx context.Context, hashes []string) ([]model.AvailableContent, error) {
	if len(hashes) == 0 {
		return nil, model.NewValidationError(ErrNoIdentifiers)
	}
	urls, err := r.Fragmenter.SplitValues(r.BaseURL, Path, "cid", hashes)
	if err != nil {
		return nil, err
	}

	n := r.Concurrency
	if n <= 0 {
		n = 1
	}
	results := make([][]model.AvailableContent, len(urls))
	errs := make([]error, len(urls))
	sem := make(chan struct{}, n)
	var wg sync.WaitGroup
	for i, u := range urls {
		wg.Add(1)
		go func(i int, u string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			errs[i] = r.Transport.FetchJSON(ctx, u, r.Options, &results[i])
		}(i, u)
	}
	wg.Wait()

	var out []model.AvailableContent
	for i := range urls {
		if errs[i] != nil {
			return nil, errs[i]
		}
		out = append(out, results[i]...)
	}
	r.logger().Debug("availability checked", "hashes", len(hashes), "fragments", len(urls))
	return out, nil
}

// Resolve returns the subset of hashes the server reports as available.
func (r *Resolver) Resolve(ctx context.Context, hashes []string) (map[string]struct{}, error) {
	results, err := r.Check(ctx, hashes)
	if err != nil {
		return nil, err
	}
	available := make(map[string]struct{}, len(results))
	for _, res := range results {
		if res.Available {
			available[res.CID] = struct{}{}
		}
	}
	return available, nil
}

func (r *Resolver) logger() *slog.Logger {
	if r.Logger == nil {
		return slog.Default()
	}
	return r.Logger
}
