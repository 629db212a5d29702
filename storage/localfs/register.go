package localfs

import (
	"fmt"

	"github.com/decentraland/catalyst-client-sub000/storage"
	"github.com/decentraland/catalyst-client-sub000/storage/registry"
)

func init() {
	registry.MustRegister(registry.Backend{
		Name:        "localfs",
		Description: "Local filesystem cache (directory)",
		Usage:       registry.UsageCLI | registry.UsageDaemon,
		Settings: []registry.Setting{
			{Key: "localfs-dir", Help: "cache directory"},
		},
		Open: func(s registry.Settings) (storage.Store, func() error, error) {
			dir := s.String("localfs-dir")
			if dir == "" {
				return nil, nil, fmt.Errorf("localfs: missing --localfs-dir")
			}
			st, err := New(dir)
			return st, nil, err
		},
	})
}
