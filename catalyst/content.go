package catalyst

import (
	"context"

	"github.com/ipfs/go-cid"

	"github.com/decentraland/catalyst-client-sub000/contenthash"
	"github.com/decentraland/catalyst-client-sub000/model"
	"github.com/decentraland/catalyst-client-sub000/storage"
	"github.com/decentraland/catalyst-client-sub000/transport"
)

// ContentsPath prefixes the raw content endpoint.
const ContentsPath = "/content/contents/"

// IsContentAvailable reports, per cid, whether the server already stores it.
func (c *Client) IsContentAvailable(ctx context.Context, cids []string) ([]model.AvailableContent, error) {
	return c.available.Check(ctx, cids)
}

// DownloadContent returns the bytes stored under hash.
//
// The cache is consulted first. Network downloads are verified against hash
// and a mismatch is retried like a transport failure. Verified bytes are
// written back to the cache.
//
// Legacy hashes that are not CIDv1 raw sha2-256 cannot be recomputed locally;
// they bypass the cache and are returned unverified.
func (c *Client) DownloadContent(ctx context.Context, hash string) ([]byte, error) {
	if _, err := contenthash.Parse(hash); err != nil {
		return nil, err
	}
	id, err := storage.ParseID(hash)
	verifiable := err == nil

	if verifiable && c.cache != nil {
		if b, err := c.cache.Get(ctx, id); err == nil {
			c.logger.Debug("content served from cache", "hash", hash)
			return b, nil
		} else if !storage.IsNotFound(err) {
			c.logger.Warn("cache read failed", "hash", hash, "error", err)
		}
	}

	u := c.baseURL + ContentsPath + hash
	once := c.options
	once.Attempts = 1

	var data []byte
	err = transport.Retry(ctx, c.options, c.logger, func(ctx context.Context) error {
		b, err := c.transport.FetchBuffer(ctx, u, once)
		if err != nil {
			return err
		}
		if verifiable {
			if err := contenthash.Verify(b, hash, u); err != nil {
				return err
			}
		}
		data = b
		return nil
	})
	if err != nil {
		return nil, err
	}

	if verifiable && c.cache != nil {
		c.backfill(ctx, id, data)
	}
	return data, nil
}

func (c *Client) backfill(ctx context.Context, id cid.Cid, data []byte) {
	if _, err := c.cache.Put(ctx, data); err != nil {
		c.logger.Warn("cache write failed", "hash", id.String(), "error", err)
	}
}
