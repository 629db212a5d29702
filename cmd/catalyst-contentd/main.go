package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"
	"google.golang.org/grpc"

	"github.com/decentraland/catalyst-client-sub000/config"
	"github.com/decentraland/catalyst-client-sub000/storage"
	"github.com/decentraland/catalyst-client-sub000/storage/grpcstore"
	"github.com/decentraland/catalyst-client-sub000/storage/registry"

	_ "github.com/decentraland/catalyst-client-sub000/storage/kubo"
	_ "github.com/decentraland/catalyst-client-sub000/storage/localfs"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, out io.Writer, errOut io.Writer) int {
	fs := pflag.NewFlagSet("catalyst-contentd", pflag.ContinueOnError)
	fs.SetOutput(errOut)
	listen := fs.String("listen", "127.0.0.1:7777", "listen address")
	backend := fs.String("backend", "localfs", "content store backend name")
	listBackends := fs.Bool("list-backends", false, "List supported backends and exit")
	maxMsg := fs.Int("max-msg-bytes", 0, "max gRPC message size in bytes (send+recv); 0 uses grpc defaults")
	configPath := fs.String("config", "", "YAML config file for logging (default $"+config.EnvVar+")")

	settings := registry.RegisterFlags(fs, registry.UsageDaemon)

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return 0
		}
		return 2
	}
	if *listBackends {
		for _, b := range registry.List(registry.UsageDaemon) {
			if b.Description == "" {
				_, _ = fmt.Fprintf(out, "%s\n", b.Name)
				continue
			}
			_, _ = fmt.Fprintf(out, "%s\t%s\n", b.Name, b.Description)
		}
		return 0
	}

	cfg, err := config.Resolve(*configPath)
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 2
	}
	logger := cfg.Log.NewLogger(errOut)

	store, closeFn, err := registry.Open(*backend, registry.UsageDaemon, settings.Settings())
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 2
	}
	if closeFn != nil {
		defer closeFn()
	}

	lis, err := net.Listen("tcp", *listen)
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 1
	}
	defer lis.Close()

	logger.Info("catalyst-contentd listening", "addr", lis.Addr().String(), "backend", *backend)
	if err := serve(ctx, lis, store, logger, *maxMsg); err != nil {
		logger.Error("serve failed", "error", err)
		return 1
	}
	return 0
}

// serve blocks until ctx is done or the listener fails, then stops the
// server gracefully.
func serve(ctx context.Context, lis net.Listener, store storage.Store, logger *slog.Logger, maxMsg int) error {
	var opts []grpc.ServerOption
	if maxMsg > 0 {
		opts = append(opts, grpc.MaxRecvMsgSize(maxMsg), grpc.MaxSendMsgSize(maxMsg))
	}
	s := grpc.NewServer(opts...)
	grpcstore.RegisterContentStoreServer(s, &grpcstore.Server{Store: store, Logger: logger})

	errCh := make(chan error, 1)
	go func() { errCh <- s.Serve(lis) }()

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
		s.GracefulStop()
		<-errCh
		return nil
	case err := <-errCh:
		return err
	}
}
