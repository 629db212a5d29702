// Package contenthash derives catalyst content identifiers.
//
// Every file and every entity manifest is identified by a CIDv1 using the
// "raw" multicodec and a sha2-256 multihash, rendered in the default base32
// lower-case multibase ("bafkrei...").
package contenthash

import (
	"github.com/ipfs/go-cid"
	"github.com/multiformats/go-multihash"

	"github.com/decentraland/catalyst-client-sub000/model"
)

// HashCID returns the CIDv1 (raw + sha2-256) of data.
func HashCID(data []byte) (cid.Cid, error) {
	sum, err := multihash.Sum(data, multihash.SHA2_256, -1)
	if err != nil {
		return cid.Undef, model.NewInternalError("multihash sum failed", err)
	}
	return cid.NewCidV1(cid.Raw, sum), nil
}

// Hash returns the string form of HashCID(data).
//
// It is total over any byte sequence, including an empty one.
func Hash(data []byte) string {
	id, err := HashCID(data)
	if err != nil {
		// multihash.Sum only fails for unknown codes or invalid lengths;
		// SHA2_256 with default length cannot reach it.
		panic(err)
	}
	return id.String()
}

// Verify recomputes the hash of data and returns a KindIntegrity error when it
// differs from expected. source names where the bytes came from.
func Verify(data []byte, expected, source string) error {
	got := Hash(data)
	if got != expected {
		return model.NewIntegrityError(expected, got, source)
	}
	return nil
}

// Parse decodes a content hash string, rejecting anything that is not a
// defined CID.
func Parse(s string) (cid.Cid, error) {
	id, err := cid.Decode(s)
	if err != nil {
		return cid.Undef, model.NewValidationError("invalid content hash " + s)
	}
	if !id.Defined() {
		return cid.Undef, model.NewValidationError("invalid content hash " + s)
	}
	return id, nil
}
