package authchain

import (
	"crypto/ed25519"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/base64"
	"fmt"
	"io"

	"github.com/cloudflare/circl/sign/dilithium/mode3"
	"golang.org/x/crypto/sha3"

	"github.com/decentraland/catalyst-client-sub000/model"
)

// Signer produces the signature link of an auth chain.
type Signer interface {
	// Address identifies the signer in the SIGNER link.
	Address() string
	// LinkType is the type of the signed-entity link.
	LinkType() model.AuthLinkType
	// Sign returns the encoded signature over message.
	Sign(message []byte) (string, error)
}

// Sign returns the two-link chain [SIGNER, SIGNED_ENTITY] for entityID.
func Sign(s Signer, entityID string) (model.AuthChain, error) {
	if entityID == "" {
		return nil, model.NewValidationError("cannot sign an empty entity id")
	}
	sig, err := s.Sign([]byte(entityID))
	if err != nil {
		return nil, fmt.Errorf("authchain: sign %s: %w", entityID, err)
	}
	return model.AuthChain{
		{Type: model.AuthLinkSigner, Payload: s.Address()},
		{Type: s.LinkType(), Payload: entityID, Signature: sig},
	}, nil
}

func digestFor(hashAlg string, message []byte) ([]byte, error) {
	switch hashAlg {
	case "", "sha256":
		s := sha256.Sum256(message)
		return s[:], nil
	case "sha512":
		s := sha512.Sum512(message)
		return s[:], nil
	case "sha3-256":
		s := sha3.Sum256(message)
		return s[:], nil
	default:
		return nil, fmt.Errorf("unsupported hash algorithm: %q", hashAlg)
	}
}

// Ed25519Signer signs sha256(message) with an Ed25519 key.
type Ed25519Signer struct {
	key ed25519.PrivateKey
}

// NewEd25519Signer derives the key pair from a 32-byte seed.
func NewEd25519Signer(seed []byte) (*Ed25519Signer, error) {
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("ed25519 seed must be %d bytes, got %d", ed25519.SeedSize, len(seed))
	}
	return &Ed25519Signer{key: ed25519.NewKeyFromSeed(seed)}, nil
}

// Address is "ed25519:" followed by the base64 public key.
func (s *Ed25519Signer) Address() string {
	return "ed25519:" + base64.StdEncoding.EncodeToString(s.key.Public().(ed25519.PublicKey))
}

func (s *Ed25519Signer) LinkType() model.AuthLinkType { return model.AuthLinkEd25519SignedEntity }

func (s *Ed25519Signer) Sign(message []byte) (string, error) {
	digest := sha256.Sum256(message)
	return base64.StdEncoding.EncodeToString(ed25519.Sign(s.key, digest[:])), nil
}

// Dilithium3Signer signs hash(message) with a post-quantum Dilithium3 key.
type Dilithium3Signer struct {
	pub  *mode3.PublicKey
	priv *mode3.PrivateKey
	// HashAlg is one of sha256 (default), sha512 or sha3-256.
	HashAlg string
}

// NewDilithium3Signer generates a key pair from rand.
func NewDilithium3Signer(rand io.Reader, hashAlg string) (*Dilithium3Signer, error) {
	if _, err := digestFor(hashAlg, nil); err != nil {
		return nil, err
	}
	pub, priv, err := mode3.GenerateKey(rand)
	if err != nil {
		return nil, fmt.Errorf("dilithium3 keygen: %w", err)
	}
	return &Dilithium3Signer{pub: pub, priv: priv, HashAlg: hashAlg}, nil
}

// NewDilithium3SignerFromSeed derives the key pair deterministically.
func NewDilithium3SignerFromSeed(seed []byte, hashAlg string) (*Dilithium3Signer, error) {
	if len(seed) != mode3.SeedSize {
		return nil, fmt.Errorf("dilithium3 seed must be %d bytes, got %d", mode3.SeedSize, len(seed))
	}
	var s [mode3.SeedSize]byte
	copy(s[:], seed)
	pub, priv := mode3.NewKeyFromSeed(&s)
	if _, err := digestFor(hashAlg, nil); err != nil {
		return nil, err
	}
	return &Dilithium3Signer{pub: pub, priv: priv, HashAlg: hashAlg}, nil
}

// Address is "dilithium3:" followed by the base64 packed public key.
func (s *Dilithium3Signer) Address() string {
	return "dilithium3:" + base64.StdEncoding.EncodeToString(s.pub.Bytes())
}

func (s *Dilithium3Signer) LinkType() model.AuthLinkType {
	return model.AuthLinkDilithium3SignedEntity
}

func (s *Dilithium3Signer) Sign(message []byte) (string, error) {
	digest, err := digestFor(s.HashAlg, message)
	if err != nil {
		return "", err
	}
	sig := make([]byte, mode3.SignatureSize)
	mode3.SignTo(s.priv, digest, sig)
	return base64.StdEncoding.EncodeToString(sig), nil
}
