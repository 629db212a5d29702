package paginate

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"reflect"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/decentraland/catalyst-client-sub000/model"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func offsetOf(t *testing.T, raw string) int {
	t.Helper()
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("parse %q: %v", raw, err)
	}
	off, err := strconv.Atoi(u.Query().Get("offset"))
	if err != nil {
		t.Fatalf("offset of %q: %v", raw, err)
	}
	return off
}

func identity(s string) string { return s }

func TestFetchAll_FollowsOffsetsUntilNoMoreData(t *testing.T) {
	var seen []int
	fetch := func(_ context.Context, u string) (Page[string], error) {
		off := offsetOf(t, u)
		seen = append(seen, off)
		return Page[string]{
			Items:      []string{fmt.Sprintf("d%d", off)},
			Pagination: model.Pagination{Offset: off, Limit: 1, MoreData: off < 2},
		}, nil
	}

	got, err := FetchAll(context.Background(), Request[string]{
		Queries: []string{"http://peer/content/deployments?entityType=scene"},
		Fetch:   fetch,
		Logger:  quietLogger(),
	})
	if err != nil {
		t.Fatalf("FetchAll: %v", err)
	}
	if !reflect.DeepEqual(seen, []int{0, 1, 2}) {
		t.Fatalf("offsets=%v want [0 1 2]", seen)
	}
	if !reflect.DeepEqual(got, []string{"d0", "d1", "d2"}) {
		t.Fatalf("items=%v", got)
	}
}

func TestFetchAll_AdvancesByItemCountWithoutLimit(t *testing.T) {
	var seen []int
	fetch := func(_ context.Context, u string) (Page[string], error) {
		off := offsetOf(t, u)
		seen = append(seen, off)
		return Page[string]{
			Items:      []string{"x", "y"},
			Pagination: model.Pagination{Offset: off, MoreData: off == 0},
		}, nil
	}
	if _, err := FetchAll(context.Background(), Request[string]{
		Queries: []string{"http://peer/content/deployments"},
		Fetch:   fetch,
		Logger:  quietLogger(),
	}); err != nil {
		t.Fatalf("FetchAll: %v", err)
	}
	if !reflect.DeepEqual(seen, []int{0, 2}) {
		t.Fatalf("offsets=%v want [0 2]", seen)
	}
}

func TestFetchAll_UsesNextCursor(t *testing.T) {
	var urls []string
	fetch := func(_ context.Context, u string) (Page[string], error) {
		urls = append(urls, u)
		if len(urls) == 1 {
			return Page[string]{
				Items:      []string{"a"},
				Pagination: model.Pagination{Limit: 1, MoreData: true, Next: "?from=5&lastId=a"},
			}, nil
		}
		return Page[string]{Items: []string{"b"}, Pagination: model.Pagination{Limit: 1}}, nil
	}
	got, err := FetchAll(context.Background(), Request[string]{
		Queries: []string{"http://peer/content/deployments?entityType=scene"},
		Fetch:   fetch,
		Logger:  quietLogger(),
	})
	if err != nil {
		t.Fatalf("FetchAll: %v", err)
	}
	want := []string{
		"http://peer/content/deployments?entityType=scene&offset=0",
		"http://peer/content/deployments?from=5&lastId=a",
	}
	if !reflect.DeepEqual(urls, want) {
		t.Fatalf("urls=%v want %v", urls, want)
	}
	if !reflect.DeepEqual(got, []string{"a", "b"}) {
		t.Fatalf("items=%v", got)
	}
}

func TestFetchAll_MergesInFragmentOrder(t *testing.T) {
	pages := map[string][]string{
		"http://peer/q0": {"a", "b"},
		"http://peer/q1": {"b", "c"},
		"http://peer/q2": {"d", "a"},
	}
	fetch := func(_ context.Context, u string) (Page[string], error) {
		q := strings.SplitN(u, "?", 2)[0]
		if q == "http://peer/q0" {
			// The first fragment finishes last.
			time.Sleep(20 * time.Millisecond)
		}
		return Page[string]{Items: pages[q]}, nil
	}
	got, err := FetchAll(context.Background(), Request[string]{
		Queries:     []string{"http://peer/q0", "http://peer/q1", "http://peer/q2"},
		Fetch:       fetch,
		Key:         identity,
		Concurrency: 3,
		Logger:      quietLogger(),
	})
	if err != nil {
		t.Fatalf("FetchAll: %v", err)
	}
	if !reflect.DeepEqual(got, []string{"a", "b", "c", "d"}) {
		t.Fatalf("items=%v want [a b c d]", got)
	}
}

func TestFetchAll_SortsWithLess(t *testing.T) {
	fetch := func(_ context.Context, u string) (Page[int], error) {
		if strings.HasPrefix(u, "http://peer/q0") {
			return Page[int]{Items: []int{30, 10}}, nil
		}
		return Page[int]{Items: []int{20, 10}}, nil
	}
	got, err := FetchAll(context.Background(), Request[int]{
		Queries: []string{"http://peer/q0", "http://peer/q1"},
		Fetch:   fetch,
		Key:     func(v int) string { return strconv.Itoa(v) },
		Less:    func(a, b int) bool { return a < b },
		Logger:  quietLogger(),
	})
	if err != nil {
		t.Fatalf("FetchAll: %v", err)
	}
	if !reflect.DeepEqual(got, []int{10, 20, 30}) {
		t.Fatalf("items=%v", got)
	}
}

func failingFetcher(failing string) PageFetcher[string] {
	return func(ctx context.Context, u string) (Page[string], error) {
		if strings.HasPrefix(u, failing) {
			return Page[string]{}, model.NewTransportError(u, 500, nil)
		}
		return Page[string]{Items: []string{strings.SplitN(u, "?", 2)[0]}}, nil
	}
}

func TestFetchAll_FailFast(t *testing.T) {
	got, err := FetchAll(context.Background(), Request[string]{
		Queries: []string{"http://peer/ok", "http://peer/bad"},
		Fetch:   failingFetcher("http://peer/bad"),
		Logger:  quietLogger(),
	})
	if !model.IsKind(err, model.KindTransport) {
		t.Fatalf("expected transport error, got %v", err)
	}
	if got != nil {
		t.Fatalf("fail-fast returned items: %v", got)
	}
}

func TestFetchAll_BestEffort(t *testing.T) {
	got, err := FetchAll(context.Background(), Request[string]{
		Queries: []string{"http://peer/ok", "http://peer/bad"},
		Fetch:   failingFetcher("http://peer/bad"),
		Policy:  BestEffort,
		Logger:  quietLogger(),
	})
	if !model.IsKind(err, model.KindTransport) {
		t.Fatalf("expected joined transport error, got %v", err)
	}
	if !reflect.DeepEqual(got, []string{"http://peer/ok"}) {
		t.Fatalf("items=%v", got)
	}
}

func TestFetchAll_RejectsNonAdvancingPages(t *testing.T) {
	calls := 0
	fetch := func(context.Context, string) (Page[string], error) {
		calls++
		return Page[string]{Pagination: model.Pagination{MoreData: true}}, nil
	}
	_, err := FetchAll(context.Background(), Request[string]{
		Queries: []string{"http://peer/q"},
		Fetch:   fetch,
		Logger:  quietLogger(),
	})
	if !model.IsKind(err, model.KindInternal) {
		t.Fatalf("expected internal error, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("calls=%d want 1", calls)
	}
}

func TestFetchAll_NoQueries(t *testing.T) {
	got, err := FetchAll(context.Background(), Request[string]{
		Fetch: func(context.Context, string) (Page[string], error) {
			t.Fatalf("unexpected fetch")
			return Page[string]{}, nil
		},
	})
	if err != nil || got != nil {
		t.Fatalf("got %v, %v", got, err)
	}
}

func TestFetchAll_BoundsConcurrency(t *testing.T) {
	var mu sync.Mutex
	active, peak := 0, 0
	fetch := func(context.Context, string) (Page[string], error) {
		mu.Lock()
		active++
		if active > peak {
			peak = active
		}
		mu.Unlock()
		time.Sleep(5 * time.Millisecond)
		mu.Lock()
		active--
		mu.Unlock()
		return Page[string]{}, nil
	}
	queries := make([]string, 10)
	for i := range queries {
		queries[i] = fmt.Sprintf("http://peer/q%d", i)
	}
	if _, err := FetchAll(context.Background(), Request[string]{
		Queries:     queries,
		Fetch:       fetch,
		Concurrency: 2,
		Logger:      quietLogger(),
	}); err != nil {
		t.Fatalf("FetchAll: %v", err)
	}
	if peak > 2 {
		t.Fatalf("peak concurrency=%d want <= 2", peak)
	}
}

func TestParsePolicy(t *testing.T) {
	for in, want := range map[string]Policy{"": FailFast, "fail-fast": FailFast, "best-effort": BestEffort} {
		got, err := ParsePolicy(in)
		if err != nil || got != want {
			t.Fatalf("ParsePolicy(%q)=%v,%v want %v", in, got, err, want)
		}
	}
	if _, err := ParsePolicy("sometimes"); !model.IsKind(err, model.KindValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}
