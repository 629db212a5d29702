package storage

import (
	"github.com/ipfs/go-cid"
	"github.com/multiformats/go-multihash"

	"github.com/decentraland/catalyst-client-sub000/contenthash"
)

// Verify reports ErrCIDMismatch unless data hashes to id.
func Verify(id cid.Cid, data []byte) error {
	got, err := contenthash.HashCID(data)
	if err != nil {
		return err
	}
	if !got.Equals(id) {
		return ErrCIDMismatch
	}
	return nil
}

// ParseID parses a content hash as a cacheable id. Only CIDv1 raw sha2-256
// hashes qualify; anything else reports ErrInvalidCID.
func ParseID(hash string) (cid.Cid, error) {
	id, err := cid.Decode(hash)
	if err != nil || !id.Defined() {
		return cid.Undef, ErrInvalidCID
	}
	if id.Version() != 1 || id.Type() != cid.Raw || id.Prefix().MhType != multihash.SHA2_256 {
		return cid.Undef, ErrInvalidCID
	}
	return id, nil
}
