// Package fragment splits long query-parameter lists into several URLs that
// each stay under a length budget.
//
// Catalyst endpoints accept repeated query parameters (?id=a&id=b...) and
// servers, proxies and CDNs reject URLs past a few kilobytes. A caller asking
// for thousands of ids therefore issues one request per fragment and merges
// the answers.
package fragment

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/decentraland/catalyst-client-sub000/model"
)

// DefaultMaxLength is the URL length every fragment stays strictly under.
const DefaultMaxLength = 2048

// PaginationReserve leaves room on every fragment for "&offset=" and any
// non-negative int64 offset appended later by the paginated fetcher.
const PaginationReserve = len("&offset=") + len("9223372036854775807")

// Param is a named list of query values. Duplicate values are collapsed,
// keeping the first occurrence.
type Param struct {
	Name   string
	Values []string
}

// Fragmenter builds bounded URLs. The zero value uses DefaultMaxLength and no
// reserve.
type Fragmenter struct {
	// MaxLength is the exclusive upper bound for len(url)+Reserve.
	MaxLength int
	// Reserve is kept free on every fragment for parameters appended later.
	Reserve int
	// Strict turns a single value that cannot fit any fragment into a
	// KindFragmentation error. By default it is emitted alone in an
	// oversized fragment.
	Strict bool
	// OnOversized, when set, is called for every value emitted in an
	// oversized fragment.
	OnOversized func(name, value string, length int)
}

// Split returns the URLs covering every (name, value) pair of split.
//
// Each URL is baseURL+path followed by all fixed params and as many split
// pairs as fit. Split pairs are consumed in param order, then value order.
// With no split values the result is a single URL carrying the fixed params.
func (f Fragmenter) Split(baseURL, path string, fixed []Param, split []Param) ([]string, error) {
	max := f.MaxLength
	if max <= 0 {
		max = DefaultMaxLength
	}

	start := baseURL + path
	if q := encode(fixed); q != "" {
		start += "?" + q
	}
	startHasQuery := strings.Contains(start, "?")

	pairs := encodePairs(split)
	if len(pairs) == 0 {
		return []string{start}, nil
	}

	var out []string
	var cur strings.Builder
	cur.WriteString(start)
	curHasQuery := startHasQuery
	curPairs := 0

	for _, p := range pairs {
		if curPairs > 0 && cur.Len()+1+len(p.encoded)+f.Reserve >= max {
			out = append(out, cur.String())
			cur.Reset()
			cur.WriteString(start)
			curHasQuery = startHasQuery
			curPairs = 0
		}
		if curPairs == 0 && len(start)+1+len(p.encoded)+f.Reserve >= max {
			alone := start + separator(startHasQuery) + p.encoded
			if f.Strict {
				return nil, model.NewFragmentationError(fmt.Sprintf(
					"query value for %q needs %d characters, budget is %d", p.name, len(alone)+f.Reserve, max))
			}
			if f.OnOversized != nil {
				f.OnOversized(p.name, p.value, len(alone))
			}
			out = append(out, alone)
			continue
		}
		cur.WriteString(separator(curHasQuery))
		cur.WriteString(p.encoded)
		curHasQuery = true
		curPairs++
	}
	if curPairs > 0 {
		out = append(out, cur.String())
	}
	return out, nil
}

// SplitValues is Split for a single parameter and no fixed params.
func (f Fragmenter) SplitValues(baseURL, path, name string, values []string) ([]string, error) {
	return f.Split(baseURL, path, nil, []Param{{Name: name, Values: values}})
}

// AppendParam appends name=value to rawURL with the right separator.
func AppendParam(rawURL, name, value string) string {
	return rawURL + separator(strings.Contains(rawURL, "?")) + url.QueryEscape(name) + "=" + url.QueryEscape(value)
}

// Dedupe returns values without repeats, keeping first occurrences in order.
func Dedupe(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

type pair struct {
	name    string
	value   string
	encoded string
}

func encodePairs(params []Param) []pair {
	var out []pair
	for _, p := range params {
		name := url.QueryEscape(p.Name)
		for _, v := range Dedupe(p.Values) {
			out = append(out, pair{name: p.Name, value: v, encoded: name + "=" + url.QueryEscape(v)})
		}
	}
	return out
}

func encode(params []Param) string {
	pairs := encodePairs(params)
	parts := make([]string, len(pairs))
	for i, p := range pairs {
		parts[i] = p.encoded
	}
	return strings.Join(parts, "&")
}

func separator(hasQuery bool) string {
	if hasQuery {
		return "&"
	}
	return "?"
}
