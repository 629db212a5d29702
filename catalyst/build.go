package catalyst

import (
	"context"
	"log/slog"
	"time"

	"github.com/decentraland/catalyst-client-sub000/deployment"
	"github.com/decentraland/catalyst-client-sub000/discovery"
	"github.com/decentraland/catalyst-client-sub000/model"
)

// BuildEntity prepares a deployment from raw files. It does not contact the
// server.
func (c *Client) BuildEntity(ctx context.Context, opts deployment.BuildOptions) (deployment.PreparationData, error) {
	return deployment.BuildEntity(ctx, opts)
}

// ReuseOptions describes a redeployment that keeps existing content.
type ReuseOptions struct {
	Type     model.EntityType
	Pointers []string
	// Hashes maps file name to deployed hash. When nil, the content of the
	// entity currently active on Pointers is reused.
	Hashes    map[string]string
	Metadata  any
	Timestamp int64
	Now       func() time.Time
}

// BuildEntityWithoutNewFiles builds an entity that references only content
// the server already stores. Without explicit hashes it looks up the entity
// currently on the pointers and returns a KindNotFound error if there is none.
func (c *Client) BuildEntityWithoutNewFiles(ctx context.Context, opts ReuseOptions) (deployment.PreparationData, error) {
	hashes := opts.Hashes
	if hashes == nil {
		current, err := c.FetchEntitiesByPointers(ctx, opts.Type, opts.Pointers)
		if err != nil {
			return deployment.PreparationData{}, err
		}
		if len(current) == 0 {
			return deployment.PreparationData{}, model.NewNotFoundError("no entity is active on the given pointers")
		}
		hashes = make(map[string]string, len(current[0].Content))
		for _, m := range current[0].Content {
			hashes[m.File] = m.Hash
		}
	}
	return deployment.BuildEntityWithoutNewFiles(deployment.WithoutNewFilesOptions{
		Type:      opts.Type,
		Pointers:  opts.Pointers,
		Hashes:    hashes,
		Metadata:  opts.Metadata,
		Timestamp: opts.Timestamp,
		Now:       opts.Now,
	})
}

// FetchApprovedCatalysts asks every peer for its approved server list and
// returns the addresses at least quorum peers agree on. With no peers the
// well-known mainnet catalysts are asked.
func (c *Client) FetchApprovedCatalysts(ctx context.Context, peers []string, quorum int) ([]string, error) {
	if len(peers) == 0 {
		peers = discovery.KnownPeers
	}
	listers := make([]discovery.Lister, 0, len(peers))
	for _, p := range peers {
		listers = append(listers, discovery.PeerLister{BaseURL: p, Transport: c.transport, Options: c.options})
	}
	return discovery.FetchApproved(ctx, listers, quorum, c.logger.With(slog.String("op", "discovery")))
}
