package authchain

import (
	"crypto/ed25519"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// KeyStore keeps named signing seeds on the local filesystem:
//
//	<dir>/<name>/root.key
//	<dir>/<name>/roles/<role>.key
//
// Seeds are hex encoded and written with 0600 permissions.
type KeyStore struct {
	Directory string
}

// KeyEntry lists one stored key and its derived roles.
type KeyEntry struct {
	Name  string
	Roles []string
}

// DefaultDirectory is ~/.catalyst/keys.
func DefaultDirectory() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".catalyst", "keys"), nil
}

// OpenKeyStore returns a store rooted at directory, or at DefaultDirectory
// when directory is empty.
func OpenKeyStore(directory string) (*KeyStore, error) {
	if directory == "" {
		var err error
		directory, err = DefaultDirectory()
		if err != nil {
			return nil, err
		}
	}
	return &KeyStore{Directory: directory}, nil
}

func (ks *KeyStore) rootPath(name string) string {
	return filepath.Join(ks.Directory, name, "root.key")
}

func (ks *KeyStore) rolePath(name, role string) string {
	return filepath.Join(ks.Directory, name, "roles", role+".key")
}

func checkName(what, s string) error {
	if s == "" {
		return fmt.Errorf("%s cannot be empty", what)
	}
	for _, c := range s {
		if (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') || c == '-' || c == '_' {
			continue
		}
		return fmt.Errorf("invalid character %q in %s", c, what)
	}
	return nil
}

// ParseSeedHex decodes a 32-byte hex seed, with or without a 0x prefix.
func ParseSeedHex(seedHex string) ([]byte, error) {
	seedHex = strings.TrimPrefix(strings.TrimSpace(seedHex), "0x")
	data, err := hex.DecodeString(seedHex)
	if err != nil {
		return nil, err
	}
	if len(data) != ed25519.SeedSize {
		return nil, fmt.Errorf("expected seed length of %d bytes, got %d", ed25519.SeedSize, len(data))
	}
	return data, nil
}

func writeSeed(path string, seed []byte, overwrite bool) error {
	if len(seed) != ed25519.SeedSize {
		return fmt.Errorf("expected seed length of %d bytes", ed25519.SeedSize)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	flags := os.O_WRONLY | os.O_CREATE
	if overwrite {
		flags |= os.O_TRUNC
	} else {
		flags |= os.O_EXCL
	}
	f, err := os.OpenFile(path, flags, 0o600)
	if err != nil {
		return err
	}
	if _, err := f.WriteString(hex.EncodeToString(seed) + "\n"); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func readSeed(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseSeedHex(string(data))
}

// Init stores seed as the root key of name and returns its signer address.
func (ks *KeyStore) Init(name string, seed []byte, overwrite bool) (string, error) {
	if err := checkName("key name", name); err != nil {
		return "", err
	}
	if err := writeSeed(ks.rootPath(name), seed, overwrite); err != nil {
		return "", err
	}
	return addressFor(seed)
}

// Derive stores the role seed derived from name's root key and returns its
// signer address.
func (ks *KeyStore) Derive(name, role string, overwrite bool) (string, error) {
	if err := checkName("key name", name); err != nil {
		return "", err
	}
	root, err := readSeed(ks.rootPath(name))
	if err != nil {
		return "", err
	}
	seed, err := DeriveRoleSeed(root, role)
	if err != nil {
		return "", err
	}
	if err := writeSeed(ks.rolePath(name, role), seed, overwrite); err != nil {
		return "", err
	}
	return addressFor(seed)
}

// Seed loads the root seed of name, or the role seed when role is set.
func (ks *KeyStore) Seed(name, role string) ([]byte, error) {
	if err := checkName("key name", name); err != nil {
		return nil, err
	}
	if role == "" {
		return readSeed(ks.rootPath(name))
	}
	if err := checkName("role", role); err != nil {
		return nil, err
	}
	return readSeed(ks.rolePath(name, role))
}

// Signer returns an Ed25519 signer for the stored key.
func (ks *KeyStore) Signer(name, role string) (*Ed25519Signer, error) {
	seed, err := ks.Seed(name, role)
	if err != nil {
		return nil, err
	}
	return NewEd25519Signer(seed)
}

// List returns stored keys sorted by name, each with sorted roles.
func (ks *KeyStore) List() ([]KeyEntry, error) {
	entries, err := os.ReadDir(ks.Directory)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	out := make([]KeyEntry, 0, len(names))
	for _, name := range names {
		var roles []string
		roleEntries, err := os.ReadDir(filepath.Join(ks.Directory, name, "roles"))
		if err == nil {
			for _, r := range roleEntries {
				if !r.IsDir() && strings.HasSuffix(r.Name(), ".key") {
					roles = append(roles, strings.TrimSuffix(r.Name(), ".key"))
				}
			}
			sort.Strings(roles)
		}
		out = append(out, KeyEntry{Name: name, Roles: roles})
	}
	return out, nil
}

func addressFor(seed []byte) (string, error) {
	s, err := NewEd25519Signer(seed)
	if err != nil {
		return "", err
	}
	return s.Address(), nil
}
