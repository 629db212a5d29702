package grpcstore

import (
	"fmt"
	"strings"

	"github.com/decentraland/catalyst-client-sub000/storage"
	"github.com/decentraland/catalyst-client-sub000/storage/registry"
)

func init() {
	registry.MustRegister(registry.Backend{
		Name:        "grpc",
		Description: "Remote cache served by catalyst-contentd",
		Usage:       registry.UsageCLI,
		Settings: []registry.Setting{
			{Key: "grpc-target", Help: "gRPC target host:port"},
			{Key: "grpc-timeout", Help: "per-RPC timeout"},
			{Key: "grpc-max-msg-bytes", Help: "max gRPC message size in bytes (send+recv); 0 uses grpc defaults"},
		},
		Open: func(s registry.Settings) (storage.Store, func() error, error) {
			target := strings.TrimSpace(s.String("grpc-target"))
			if target == "" {
				return nil, nil, fmt.Errorf("grpcstore: missing --grpc-target")
			}
			timeout, err := s.Duration("grpc-timeout")
			if err != nil {
				return nil, nil, err
			}
			maxMsg, err := s.Int("grpc-max-msg-bytes")
			if err != nil {
				return nil, nil, err
			}
			client, err := Dial(target, DialOptions{MaxMsgBytes: maxMsg})
			if err != nil {
				return nil, nil, err
			}
			client.Timeout = timeout
			return client, client.Close, nil
		},
	})
}
