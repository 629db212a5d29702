package kubo

import (
	"os"

	"github.com/decentraland/catalyst-client-sub000/storage"
	"github.com/decentraland/catalyst-client-sub000/storage/registry"
)

func init() {
	registry.MustRegister(registry.Backend{
		Name:        "kubo",
		Description: "Local IPFS repository via the ipfs CLI",
		Usage:       registry.UsageCLI | registry.UsageDaemon,
		Settings: []registry.Setting{
			{Key: "kubo-bin", Default: "ipfs", Help: "path to the ipfs binary"},
			{Key: "kubo-repo", Help: "IPFS_PATH of the repository; empty uses the environment"},
		},
		Open: func(s registry.Settings) (storage.Store, func() error, error) {
			var env []string
			if repo := s.String("kubo-repo"); repo != "" {
				env = append(os.Environ(), "IPFS_PATH="+repo)
			}
			return New(Options{Bin: s.String("kubo-bin"), Env: env}), nil, nil
		},
	})
}
