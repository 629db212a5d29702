package discovery

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"reflect"
	"testing"

	"github.com/decentraland/catalyst-client-sub000/model"
	"github.com/decentraland/catalyst-client-sub000/transport/transporttest"
)

func TestIntersectApprovedLists(t *testing.T) {
	lists := [][]string{
		{"https://a.org", "https://b.org/", "https://c.org"},
		{"https://A.org", "https://b.org"},
		{"https://b.org", "https://d.org"},
	}
	cases := []struct {
		quorum int
		want   []string
	}{
		{quorum: 3, want: []string{"https://b.org"}},
		{quorum: 2, want: []string{"https://a.org", "https://b.org"}},
		{quorum: 0, want: []string{"https://b.org"}},
	}
	for _, tc := range cases {
		got, err := IntersectApprovedLists(lists, tc.quorum)
		if err != nil {
			t.Fatalf("quorum %d: %v", tc.quorum, err)
		}
		if !reflect.DeepEqual(got, tc.want) {
			t.Fatalf("quorum %d: got %v want %v", tc.quorum, got, tc.want)
		}
	}
}

func TestIntersectApprovedLists_NotEnoughData(t *testing.T) {
	if _, err := IntersectApprovedLists([][]string{{"https://a.org"}}, 2); !errors.Is(err, ErrNotEnoughData) {
		t.Fatalf("expected ErrNotEnoughData, got %v", err)
	}
	if _, err := IntersectApprovedLists(nil, 0); !errors.Is(err, ErrNotEnoughData) {
		t.Fatalf("expected ErrNotEnoughData for no lists, got %v", err)
	}
}

type staticLister struct {
	servers []model.ServerInfo
	err     error
}

func (s staticLister) ListServers(context.Context) ([]model.ServerInfo, error) {
	return s.servers, s.err
}

func TestFetchApproved_SkipsFailingSources(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	listers := []Lister{
		staticLister{servers: []model.ServerInfo{{Address: "https://a.org"}, {Address: "https://b.org"}}},
		staticLister{servers: []model.ServerInfo{{Address: "https://b.org"}}},
		staticLister{err: errors.New("unreachable")},
	}
	got, err := FetchApproved(context.Background(), listers, 2, logger)
	if err != nil {
		t.Fatalf("FetchApproved: %v", err)
	}
	if !reflect.DeepEqual(got, []string{"https://b.org"}) {
		t.Fatalf("got %v", got)
	}

	if _, err := FetchApproved(context.Background(), listers, 3, logger); !errors.Is(err, ErrNotEnoughData) {
		t.Fatalf("expected ErrNotEnoughData, got %v", err)
	}
}

func TestPeerLister(t *testing.T) {
	fake := &transporttest.Fake{JSON: func(u string) (any, error) {
		return []model.ServerInfo{{Address: "https://a.org", Owner: "0x1", ID: "1"}}, nil
	}}
	got, err := PeerLister{BaseURL: "https://peer.org/", Transport: fake}.ListServers(context.Background())
	if err != nil {
		t.Fatalf("ListServers: %v", err)
	}
	if len(got) != 1 || got[0].Address != "https://a.org" {
		t.Fatalf("got %+v", got)
	}
	if calls := fake.Calls(); calls[0].URL != "https://peer.org/lambdas/contracts/servers" {
		t.Fatalf("url=%s", calls[0].URL)
	}
}
