// Package paginate drains paginated listing endpoints across several query
// fragments and merges the results.
//
// Each fragment URL is walked page by page: the first request carries
// offset=0, later requests follow the server's next cursor or advance the
// offset. Fragments are independent and run concurrently; their items are
// merged in fragment order so the output does not depend on scheduling.
package paginate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sort"
	"strconv"
	"sync"

	"github.com/decentraland/catalyst-client-sub000/fragment"
	"github.com/decentraland/catalyst-client-sub000/model"
)

// DefaultConcurrency bounds the number of fragments fetched at once.
const DefaultConcurrency = 4

// Page is one decoded listing response.
type Page[T any] struct {
	Items      []T
	Pagination model.Pagination
}

// PageFetcher fetches and decodes the page at url.
type PageFetcher[T any] func(ctx context.Context, url string) (Page[T], error)

// Policy selects how fragment failures affect the whole call.
type Policy int

const (
	// FailFast cancels the remaining fragments on the first failure and
	// returns no items.
	FailFast Policy = iota
	// BestEffort returns the items of every fragment that succeeded together
	// with the joined errors of those that did not.
	BestEffort
)

func (p Policy) String() string {
	switch p {
	case FailFast:
		return "fail-fast"
	case BestEffort:
		return "best-effort"
	default:
		return "Policy(" + strconv.Itoa(int(p)) + ")"
	}
}

// ParsePolicy maps "fail-fast" and "best-effort" to a Policy. The empty string
// is FailFast.
func ParsePolicy(s string) (Policy, error) {
	switch s {
	case "", "fail-fast":
		return FailFast, nil
	case "best-effort":
		return BestEffort, nil
	default:
		return FailFast, model.NewValidationError(fmt.Sprintf("unknown partial-failure policy %q", s))
	}
}

// Request describes one FetchAll call.
type Request[T any] struct {
	// Queries are the fragment URLs, usually from fragment.Fragmenter.Split
	// with fragment.PaginationReserve.
	Queries []string
	Fetch   PageFetcher[T]
	// Key identifies an item for de-duplication across fragments. Nil keeps
	// every item.
	Key func(T) string
	// Less, when set, stably sorts the merged items.
	Less        func(a, b T) bool
	Concurrency int
	Policy      Policy
	Logger      *slog.Logger
}

// FetchAll walks every query to exhaustion and returns the merged items.
func FetchAll[T any](ctx context.Context, req Request[T]) ([]T, error) {
	if req.Fetch == nil {
		return nil, model.NewInternalError("paginate: nil page fetcher", nil)
	}
	if len(req.Queries) == 0 {
		return nil, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	logger := req.Logger
	if logger == nil {
		logger = slog.Default()
	}
	n := req.Concurrency
	if n <= 0 {
		n = DefaultConcurrency
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	results := make([][]T, len(req.Queries))
	errs := make([]error, len(req.Queries))

	var (
		mu       sync.Mutex
		firstErr error
		wg       sync.WaitGroup
	)
	sem := make(chan struct{}, n)

	for i, q := range req.Queries {
		wg.Add(1)
		go func(i int, q string) {
			defer wg.Done()
			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				errs[i] = ctx.Err()
				return
			}
			defer func() { <-sem }()

			items, err := walk(ctx, q, req.Fetch, logger)
			if err != nil {
				errs[i] = err
				if req.Policy == FailFast {
					mu.Lock()
					if firstErr == nil {
						firstErr = err
						cancel()
					}
					mu.Unlock()
				}
				return
			}
			results[i] = items
		}(i, q)
	}
	wg.Wait()

	if req.Policy == FailFast {
		if firstErr != nil {
			return nil, firstErr
		}
		// Parent cancellation without any fragment failing on its own.
		for _, err := range errs {
			if err != nil {
				return nil, err
			}
		}
	}

	merged := merge(results, req.Key)
	if req.Less != nil {
		sort.SliceStable(merged, func(a, b int) bool { return req.Less(merged[a], merged[b]) })
	}
	return merged, errors.Join(errs...)
}

// walk drains a single fragment. Pages are strictly sequential.
func walk[T any](ctx context.Context, query string, fetch PageFetcher[T], logger *slog.Logger) ([]T, error) {
	var out []T
	offset := 0
	next := fragment.AppendParam(query, "offset", "0")
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		logger.Debug("fetching page", "url", next)
		page, err := fetch(ctx, next)
		if err != nil {
			return nil, err
		}
		out = append(out, page.Items...)
		if !page.Pagination.MoreData {
			return out, nil
		}

		if page.Pagination.Next != "" {
			next, err = resolveNext(query, page.Pagination.Next)
			if err != nil {
				return nil, err
			}
			continue
		}
		step := page.Pagination.Limit
		if step <= 0 {
			step = len(page.Items)
		}
		if step <= 0 {
			return nil, &model.Error{Kind: model.KindInternal, Message: "pagination reports more data but did not advance", URL: next}
		}
		offset += step
		next = fragment.AppendParam(query, "offset", strconv.Itoa(offset))
	}
}

// resolveNext resolves a next cursor against the fragment URL. A bare query
// ("?from=...") keeps the fragment's path; absolute URLs are used as is.
func resolveNext(query, cursor string) (string, error) {
	base, err := url.Parse(query)
	if err != nil {
		return "", &model.Error{Kind: model.KindInternal, Message: "invalid fragment url", URL: query, Cause: err}
	}
	ref, err := url.Parse(cursor)
	if err != nil {
		return "", &model.Error{Kind: model.KindInternal, Message: "invalid next cursor", URL: cursor, Cause: err}
	}
	return base.ResolveReference(ref).String(), nil
}

func merge[T any](results [][]T, key func(T) string) []T {
	var out []T
	var seen map[string]struct{}
	if key != nil {
		seen = make(map[string]struct{})
	}
	for _, items := range results {
		for _, it := range items {
			if key != nil {
				k := key(it)
				if _, ok := seen[k]; ok {
					continue
				}
				seen[k] = struct{}{}
			}
			out = append(out, it)
		}
	}
	return out
}
