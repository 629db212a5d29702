package config

import (
	"errors"
	"fmt"

	"github.com/decentraland/catalyst-client-sub000/storage"
	"github.com/decentraland/catalyst-client-sub000/storage/registry"
)

// CacheConfig describes how to open one or more content cache backends.
// Backends must be linked into the binary (blank import) to be opened.
//
// WritePolicy values:
//   - "first" (default): write only to the first backend; reads fall back in
//     order and backfill earlier backends (storage.Tiered)
//   - "all": write to all backends and require CID equality
//     (storage.Replicating)
type CacheConfig struct {
	WritePolicy string          `yaml:"write_policy,omitempty"`
	Backends    []BackendConfig `yaml:"backends"`
}

type BackendConfig struct {
	// Name is the registry backend name ("localfs", "grpc", "kubo", "memory").
	Name string `yaml:"name"`
	// ID is an optional stable alias; Name is used when empty.
	ID       string            `yaml:"id,omitempty"`
	Settings map[string]string `yaml:"settings,omitempty"`
}

func (b BackendConfig) id() string {
	if b.ID != "" {
		return b.ID
	}
	return b.Name
}

func (c CacheConfig) Validate() error {
	if len(c.Backends) == 0 {
		return errors.New("config: cache: at least one backend is required")
	}
	seen := make(map[string]struct{}, len(c.Backends))
	for _, b := range c.Backends {
		if b.Name == "" {
			return errors.New("config: cache: backend name is required")
		}
		if _, ok := seen[b.id()]; ok {
			return fmt.Errorf("config: cache: duplicate backend id %q", b.id())
		}
		seen[b.id()] = struct{}{}
	}
	switch c.WritePolicy {
	case "", "first", "all":
		return nil
	default:
		return fmt.Errorf("config: cache: invalid write_policy %q", c.WritePolicy)
	}
}

// Open opens the configured backends. With no backends it returns a nil
// store, meaning caching is disabled. The close function is never nil.
func (c CacheConfig) Open(usage registry.Usage) (storage.Store, func() error, error) {
	if len(c.Backends) == 0 {
		return nil, func() error { return nil }, nil
	}
	if err := c.Validate(); err != nil {
		return nil, nil, err
	}

	named := make([]storage.NamedStore, 0, len(c.Backends))
	closers := make([]func() error, 0, len(c.Backends))
	closeAll := func() error {
		var firstErr error
		for i := len(closers) - 1; i >= 0; i-- {
			if err := closers[i](); err != nil && firstErr == nil {
				firstErr = err
			}
		}
		return firstErr
	}

	for _, b := range c.Backends {
		st, closeFn, err := registry.Open(b.Name, usage, b.Settings)
		if err != nil {
			_ = closeAll()
			return nil, nil, fmt.Errorf("config: cache backend %q: %w", b.id(), err)
		}
		named = append(named, storage.NamedStore{Name: b.id(), Store: st})
		if closeFn != nil {
			closers = append(closers, closeFn)
		}
	}

	if len(named) == 1 {
		return named[0].Store, closeAll, nil
	}
	if c.WritePolicy == "all" {
		return storage.Replicating{Backends: named}, closeAll, nil
	}
	stores := make([]storage.Store, 0, len(named))
	for _, n := range named {
		stores = append(stores, n.Store)
	}
	return storage.Tiered{Stores: stores}, closeAll, nil
}
