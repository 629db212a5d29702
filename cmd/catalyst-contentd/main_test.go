package main

import (
	"bytes"
	"context"
	"log/slog"
	"net"
	"strings"
	"testing"

	"github.com/decentraland/catalyst-client-sub000/contenthash"
	"github.com/decentraland/catalyst-client-sub000/storage"
	"github.com/decentraland/catalyst-client-sub000/storage/grpcstore"
)

func TestListBackends(t *testing.T) {
	var out, errOut bytes.Buffer
	if code := run(context.Background(), []string{"--list-backends"}, &out, &errOut); code != 0 {
		t.Fatalf("code %d: %s", code, errOut.String())
	}
	for _, name := range []string{"localfs", "memory"} {
		if !strings.Contains(out.String(), name) {
			t.Fatalf("missing backend %q in %q", name, out.String())
		}
	}
	if strings.Contains(out.String(), "grpc") {
		t.Fatalf("grpc backend must not be offered by the daemon")
	}
}

func TestUnknownBackend(t *testing.T) {
	t.Setenv("CATALYST_CONFIG", "")
	var out, errOut bytes.Buffer
	if code := run(context.Background(), []string{"--backend", "nope"}, &out, &errOut); code != 2 {
		t.Fatalf("expected code 2, got %d", code)
	}
}

func TestServeRoundTripAndShutdown(t *testing.T) {
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	store := &storage.Memory{}
	done := make(chan error, 1)
	go func() { done <- serve(ctx, lis, store, slog.Default(), 0) }()

	client, err := grpcstore.Dial(lis.Addr().String(), grpcstore.DialOptions{})
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer client.Close()

	data := []byte("served over grpc")
	id, err := client.Put(context.Background(), data)
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if id.String() != contenthash.Hash(data) {
		t.Fatalf("cid = %s", id)
	}
	if store.Len() != 1 {
		t.Fatalf("expected the backend to hold the object")
	}
	got, err := client.Get(context.Background(), id)
	if err != nil || string(got) != string(data) {
		t.Fatalf("get: %q %v", got, err)
	}

	cancel()
	if err := <-done; err != nil {
		t.Fatalf("serve: %v", err)
	}
}
