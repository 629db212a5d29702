package registry

import "github.com/decentraland/catalyst-client-sub000/storage"

func init() {
	MustRegister(Backend{
		Name:        "memory",
		Description: "In-process cache, discarded on exit",
		Usage:       UsageCLI | UsageDaemon,
		Open: func(Settings) (storage.Store, func() error, error) {
			return &storage.Memory{}, nil, nil
		},
	})
}
