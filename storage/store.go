// Package storage defines the local content cache used by the catalyst client.
//
// Catalyst content is immutable and addressed by hash, so any store keyed by
// CID can hold it. Backends live in subpackages and register themselves with
// storage/registry.
package storage

import (
	"context"

	"github.com/ipfs/go-cid"
)

// Store is a content-addressed blob store.
//
// Contract:
//   - Put is idempotent and returns the CIDv1 raw sha2-256 id of the bytes.
//   - Stored objects are immutable.
//   - Get returns ErrNotFound when the id is absent and never returns bytes
//     that do not hash to id.
type Store interface {
	Put(ctx context.Context, data []byte) (cid.Cid, error)
	Get(ctx context.Context, id cid.Cid) ([]byte, error)
	Has(ctx context.Context, id cid.Cid) bool
}
