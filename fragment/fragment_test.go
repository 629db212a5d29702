package fragment

import (
	"fmt"
	"math"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"testing"

	"github.com/decentraland/catalyst-client-sub000/contenthash"
	"github.com/decentraland/catalyst-client-sub000/model"
)

const (
	testBase = "https://peer.decentraland.org"
	testPath = "/content/deployments"
)

func cids(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = contenthash.Hash([]byte(fmt.Sprintf("value-%d", i)))
	}
	return out
}

func queryValues(t *testing.T, rawURL, name string) []string {
	t.Helper()
	u, err := url.Parse(rawURL)
	if err != nil {
		t.Fatalf("url.Parse(%q): %v", rawURL, err)
	}
	return u.Query()[name]
}

func TestSplitValues_Bounds(t *testing.T) {
	f := Fragmenter{Reserve: PaginationReserve}
	values := cids(500)

	got, err := f.SplitValues(testBase, testPath, "entityId", values)
	if err != nil {
		t.Fatalf("SplitValues: %v", err)
	}

	// All CIDs have the same length, so every fragment but the last holds
	// exactly perFragment values.
	perValue := 1 + len("entityId=") + len(values[0])
	perFragment := (DefaultMaxLength - 1 - PaginationReserve - len(testBase+testPath)) / perValue
	wantFragments := (len(values) + perFragment - 1) / perFragment
	if len(got) != wantFragments {
		t.Fatalf("fragments: got %d want %d", len(got), wantFragments)
	}

	var all []string
	for i, q := range got {
		if len(q)+PaginationReserve >= DefaultMaxLength {
			t.Fatalf("fragment %d too long: %d", i, len(q))
		}
		if paged := q + "&offset=" + strconv.FormatInt(math.MaxInt64, 10); len(paged) >= DefaultMaxLength {
			t.Fatalf("fragment %d with the largest offset is too long: %d", i, len(paged))
		}
		if !strings.HasPrefix(q, testBase+testPath+"?entityId=") {
			t.Fatalf("fragment %d has wrong prefix: %s", i, q)
		}
		vs := queryValues(t, q, "entityId")
		if i < len(got)-1 && len(vs) != perFragment {
			t.Fatalf("fragment %d holds %d values, want %d", i, len(vs), perFragment)
		}
		all = append(all, vs...)
	}
	if strings.Join(all, ",") != strings.Join(values, ",") {
		t.Fatalf("fragments must cover the input in order")
	}
}

func TestSplitValues_Deduplicates(t *testing.T) {
	var f Fragmenter
	got, err := f.SplitValues(testBase, testPath, "pointer", []string{"0,0", "0,1", "0,0", "0,1", "0,2"})
	if err != nil {
		t.Fatalf("SplitValues: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected one fragment, got %d", len(got))
	}
	want := testBase + testPath + "?pointer=0%2C0&pointer=0%2C1&pointer=0%2C2"
	if got[0] != want {
		t.Fatalf("got %s\nwant %s", got[0], want)
	}
}

func TestSplit_NoValues(t *testing.T) {
	var f Fragmenter
	got, err := f.Split(testBase, testPath, nil, nil)
	if err != nil {
		t.Fatalf("Split: %v", err)
	}
	if len(got) != 1 || got[0] != testBase+testPath {
		t.Fatalf("got %v", got)
	}

	got, err = f.Split(testBase, testPath, []Param{{Name: "onlyCurrentlyPointed", Values: []string{"true"}}}, []Param{{Name: "entityId"}})
	if err != nil {
		t.Fatalf("Split: %v", err)
	}
	if len(got) != 1 || got[0] != testBase+testPath+"?onlyCurrentlyPointed=true" {
		t.Fatalf("got %v", got)
	}
}

func TestSplit_FixedParamsOnEveryFragment(t *testing.T) {
	f := Fragmenter{MaxLength: 600, Reserve: PaginationReserve}
	ids := cids(40)
	pointers := []string{"0,0", "10,-3", "-150,150"}
	fixed := []Param{
		{Name: "onlyCurrentlyPointed", Values: []string{"true"}},
		{Name: "entityType", Values: []string{"scene", "wearable"}},
	}
	split := []Param{{Name: "entityId", Values: ids}, {Name: "pointer", Values: pointers}}

	got, err := f.Split(testBase, testPath, fixed, split)
	if err != nil {
		t.Fatalf("Split: %v", err)
	}
	if len(got) < 2 {
		t.Fatalf("expected several fragments, got %d", len(got))
	}

	prefix := testBase + testPath + "?onlyCurrentlyPointed=true&entityType=scene&entityType=wearable"
	var gotIDs, gotPointers []string
	for i, q := range got {
		if !strings.HasPrefix(q, prefix) {
			t.Fatalf("fragment %d lost fixed params: %s", i, q)
		}
		if len(q)+PaginationReserve >= 600 {
			t.Fatalf("fragment %d too long: %d", i, len(q))
		}
		gotIDs = append(gotIDs, queryValues(t, q, "entityId")...)
		gotPointers = append(gotPointers, queryValues(t, q, "pointer")...)
	}
	if len(gotIDs) != len(ids) || len(gotPointers) != len(pointers) {
		t.Fatalf("coverage: %d ids, %d pointers", len(gotIDs), len(gotPointers))
	}
	// Pairs are consumed in param order, so pointers only appear in the tail.
	last := got[len(got)-1]
	if len(queryValues(t, last, "pointer")) == 0 {
		t.Fatalf("pointers must follow ids: %s", last)
	}
	sort.Strings(gotPointers)
	if strings.Join(gotPointers, "|") != "-150,150|0,0|10,-3" {
		t.Fatalf("pointers: %v", gotPointers)
	}
}

func TestSplit_OversizedValue(t *testing.T) {
	huge := strings.Repeat("x", 300)
	values := []string{"a", huge, "b"}

	var reported []string
	f := Fragmenter{MaxLength: 200, OnOversized: func(name, value string, length int) {
		reported = append(reported, name)
		if length <= 200 {
			t.Errorf("oversized length %d should exceed the budget", length)
		}
	}}
	got, err := f.SplitValues(testBase, testPath, "id", values)
	if err != nil {
		t.Fatalf("SplitValues: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected [a] [huge] [b], got %d fragments: %v", len(got), got)
	}
	if v := queryValues(t, got[1], "id"); len(v) != 1 || v[0] != huge {
		t.Fatalf("oversized value must be passed through alone")
	}
	if len(reported) != 1 || reported[0] != "id" {
		t.Fatalf("OnOversized calls: %v", reported)
	}

	f.Strict = true
	_, err = f.SplitValues(testBase, testPath, "id", values)
	if !model.IsKind(err, model.KindFragmentation) {
		t.Fatalf("strict mode: expected fragmentation error, got %v", err)
	}
}

func TestSplit_Deterministic(t *testing.T) {
	f := Fragmenter{MaxLength: 300}
	values := cids(30)
	a, _ := f.SplitValues(testBase, testPath, "cid", values)
	b, _ := f.SplitValues(testBase, testPath, "cid", values)
	if strings.Join(a, "\n") != strings.Join(b, "\n") {
		t.Fatalf("Split must be deterministic")
	}
}

func TestAppendParam(t *testing.T) {
	if got := AppendParam("https://x/a", "offset", "0"); got != "https://x/a?offset=0" {
		t.Fatalf("got %s", got)
	}
	if got := AppendParam("https://x/a?id=1", "offset", "10"); got != "https://x/a?id=1&offset=10" {
		t.Fatalf("got %s", got)
	}
}
