// Package discovery finds the approved set of catalyst servers.
//
// Every catalyst publishes the list of servers it considers part of the
// network. A server is trusted when at least a quorum of independent lists
// contain it.
package discovery

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"sort"
	"strings"
	"sync"

	"github.com/decentraland/catalyst-client-sub000/model"
	"github.com/decentraland/catalyst-client-sub000/transport"
)

// ErrNotEnoughData is returned when fewer lists than the quorum are available.
var ErrNotEnoughData = errors.New("discovery: not enough data to reach quorum")

// ServersPath is the endpoint every catalyst serves its server list on.
const ServersPath = "/lambdas/contracts/servers"

// KnownPeers are the public mainnet catalysts used to bootstrap discovery.
var KnownPeers = []string{
	"https://peer.decentraland.org",
	"https://peer-ec1.decentraland.org",
	"https://peer-ec2.decentraland.org",
	"https://peer-wc1.decentraland.org",
	"https://peer-ap1.decentraland.org",
	"https://interconnected.online",
	"https://peer.melonwave.com",
	"https://peer.kyllian.me",
	"https://peer.uadevops.com",
	"https://peer.dclnodes.io",
}

// Normalize canonicalizes a server address for comparison: lower-case scheme
// and host, no trailing slash.
func Normalize(address string) string {
	address = strings.TrimRight(strings.TrimSpace(address), "/")
	u, err := url.Parse(address)
	if err != nil || u.Host == "" {
		return strings.ToLower(address)
	}
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	return u.String()
}

// IntersectApprovedLists returns the addresses present in at least quorum of
// lists, normalized and sorted. A quorum of zero or less means every list.
func IntersectApprovedLists(lists [][]string, quorum int) ([]string, error) {
	if quorum <= 0 {
		quorum = len(lists)
	}
	if len(lists) == 0 || len(lists) < quorum {
		return nil, ErrNotEnoughData
	}

	counts := map[string]int{}
	for _, list := range lists {
		seen := map[string]struct{}{}
		for _, addr := range list {
			n := Normalize(addr)
			if n == "" {
				continue
			}
			if _, dup := seen[n]; dup {
				continue
			}
			seen[n] = struct{}{}
			counts[n]++
		}
	}

	var out []string
	for addr, c := range counts {
		if c >= quorum {
			out = append(out, addr)
		}
	}
	sort.Strings(out)
	return out, nil
}

// Lister returns one source's list of approved servers.
type Lister interface {
	ListServers(ctx context.Context) ([]model.ServerInfo, error)
}

// PeerLister reads the server list a catalyst publishes.
type PeerLister struct {
	BaseURL   string
	Transport transport.Transport
	Options   transport.Options
}

func (p PeerLister) ListServers(ctx context.Context) ([]model.ServerInfo, error) {
	var out []model.ServerInfo
	if err := p.Transport.FetchJSON(ctx, strings.TrimRight(p.BaseURL, "/")+ServersPath, p.Options, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// FetchApproved queries every lister concurrently and intersects the lists
// that could be fetched. Failing listers are logged and skipped; if too few
// remain for the quorum, ErrNotEnoughData is returned.
func FetchApproved(ctx context.Context, listers []Lister, quorum int, logger *slog.Logger) ([]string, error) {
	if logger == nil {
		logger = slog.Default()
	}
	lists := make([][]string, len(listers))
	ok := make([]bool, len(listers))

	var wg sync.WaitGroup
	for i, l := range listers {
		wg.Add(1)
		go func(i int, l Lister) {
			defer wg.Done()
			servers, err := l.ListServers(ctx)
			if err != nil {
				logger.Warn("server list unavailable", "source", i, "error", err)
				return
			}
			addrs := make([]string, 0, len(servers))
			for _, s := range servers {
				addrs = append(addrs, s.Address)
			}
			lists[i] = addrs
			ok[i] = true
		}(i, l)
	}
	wg.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var fetched [][]string
	for i := range lists {
		if ok[i] {
			fetched = append(fetched, lists[i])
		}
	}
	if quorum <= 0 {
		quorum = len(listers)
	}
	return IntersectApprovedLists(fetched, quorum)
}
