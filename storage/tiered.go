package storage

import (
	"context"
	"log/slog"

	"github.com/ipfs/go-cid"
)

// Tiered provides deterministic, ordered fallback across several stores.
//
// Lookup order is the slice order of Stores. Put writes only to the first
// store. A Get served by a later store is copied into every earlier store so
// the next read is served by the fastest tier; backfill failures are logged
// and otherwise ignored.
type Tiered struct {
	Stores []Store
	Logger *slog.Logger
}

var _ Store = Tiered{}

func (t Tiered) Put(ctx context.Context, data []byte) (cid.Cid, error) {
	if len(t.Stores) == 0 {
		return cid.Undef, ErrNoBackends
	}
	return t.Stores[0].Put(ctx, data)
}

func (t Tiered) Get(ctx context.Context, id cid.Cid) ([]byte, error) {
	for i, s := range t.Stores {
		b, err := s.Get(ctx, id)
		if IsNotFound(err) {
			continue
		}
		if err != nil {
			return nil, err
		}
		t.backfill(ctx, id, b, t.Stores[:i])
		return b, nil
	}
	return nil, ErrNotFound
}

func (t Tiered) Has(ctx context.Context, id cid.Cid) bool {
	for _, s := range t.Stores {
		if s.Has(ctx, id) {
			return true
		}
	}
	return false
}

func (t Tiered) backfill(ctx context.Context, id cid.Cid, data []byte, stores []Store) {
	for _, s := range stores {
		if _, err := s.Put(ctx, data); err != nil {
			t.logger().Warn("cache backfill failed", "cid", id.String(), "error", err)
		}
	}
}

func (t Tiered) logger() *slog.Logger {
	if t.Logger == nil {
		return slog.Default()
	}
	return t.Logger
}
