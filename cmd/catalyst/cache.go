package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/pflag"

	"github.com/decentraland/catalyst-client-sub000/storage"
	"github.com/decentraland/catalyst-client-sub000/storage/registry"
)

func cmdCache(ctx context.Context, args []string, out io.Writer, errOut io.Writer) int {
	if len(args) == 0 {
		printCacheUsage(errOut)
		return 2
	}
	switch args[0] {
	case "put":
		return cmdCachePut(ctx, args[1:], out, errOut)
	case "get":
		return cmdCacheGet(ctx, args[1:], out, errOut)
	case "help", "-h", "--help":
		printCacheUsage(out)
		return 0
	default:
		fmt.Fprintf(errOut, "unknown cache subcommand: %s\n\n", args[0])
		printCacheUsage(errOut)
		return 2
	}
}

func printCacheUsage(w io.Writer) {
	fmt.Fprintln(w, "catalyst cache: read and seed a content cache backend directly")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  catalyst cache put --backend localfs --localfs-dir <dir> <file>")
	fmt.Fprintln(w, "  catalyst cache get --backend localfs --localfs-dir <dir> --cid <cid> [--out <file>]")
	fmt.Fprintln(w, "  catalyst cache put --backend grpc --grpc-target <host:port> <file>")
}

type cacheFlags struct {
	backend  string
	settings *registry.Flags
}

func (c *cacheFlags) add(fs *pflag.FlagSet) {
	fs.StringVar(&c.backend, "backend", "localfs", "Cache backend name (see 'catalyst backends')")
	c.settings = registry.RegisterFlags(fs, registry.UsageCLI)
}

func (c *cacheFlags) open() (storage.Store, func() error, error) {
	return registry.Open(c.backend, registry.UsageCLI, c.settings.Settings())
}

func cmdCachePut(ctx context.Context, args []string, out io.Writer, errOut io.Writer) int {
	fs := newFlagSet("cache put", errOut)
	var common cacheFlags
	common.add(fs)
	if code, ok := parseFlags(fs, args); !ok {
		return code
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(errOut, "usage: catalyst cache put [backend flags] <file>")
		return 2
	}

	store, closeFn, err := common.open()
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 1
	}
	if closeFn != nil {
		defer closeFn()
	}

	p := fs.Arg(0)
	b, err := os.ReadFile(p)
	if err != nil {
		fmt.Fprintf(errOut, "read %s: %v\n", filepath.Base(p), err)
		return 1
	}
	id, err := store.Put(ctx, b)
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 1
	}
	_, _ = fmt.Fprintln(out, id.String())
	return 0
}

func cmdCacheGet(ctx context.Context, args []string, out io.Writer, errOut io.Writer) int {
	fs := newFlagSet("cache get", errOut)
	var common cacheFlags
	common.add(fs)

	var hash string
	var outPath string
	fs.StringVar(&hash, "cid", "", "Content hash to read")
	fs.StringVar(&outPath, "out", "", "Output file (default stdout)")

	if code, ok := parseFlags(fs, args); !ok {
		return code
	}
	if hash == "" {
		fmt.Fprintln(errOut, "missing --cid")
		return 2
	}

	id, err := storage.ParseID(hash)
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 2
	}
	store, closeFn, err := common.open()
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 1
	}
	if closeFn != nil {
		defer closeFn()
	}

	b, err := store.Get(ctx, id)
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 1
	}
	if outPath == "" {
		_, _ = out.Write(b)
		return 0
	}
	if err := os.WriteFile(outPath, b, 0o600); err != nil {
		fmt.Fprintf(errOut, "write %s: %v\n", outPath, err)
		return 1
	}
	return 0
}
