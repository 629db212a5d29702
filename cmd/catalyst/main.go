package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"

	"github.com/spf13/pflag"

	"github.com/decentraland/catalyst-client-sub000/catalyst"
	"github.com/decentraland/catalyst-client-sub000/config"
	"github.com/decentraland/catalyst-client-sub000/model"
	"github.com/decentraland/catalyst-client-sub000/storage"
	"github.com/decentraland/catalyst-client-sub000/storage/registry"

	_ "github.com/decentraland/catalyst-client-sub000/storage/grpcstore"
	_ "github.com/decentraland/catalyst-client-sub000/storage/kubo"
	_ "github.com/decentraland/catalyst-client-sub000/storage/localfs"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, out io.Writer, errOut io.Writer) int {
	if len(args) == 0 {
		printUsage(errOut)
		return 2
	}

	switch args[0] {
	case "entities":
		return cmdEntities(ctx, args[1:], out, errOut)
	case "deployments":
		return cmdDeployments(ctx, args[1:], out, errOut)
	case "download":
		return cmdDownload(ctx, args[1:], out, errOut)
	case "available":
		return cmdAvailable(ctx, args[1:], out, errOut)
	case "hash":
		return cmdHash(args[1:], out, errOut)
	case "build":
		return cmdBuild(ctx, args[1:], out, errOut)
	case "sign":
		return cmdSign(args[1:], out, errOut)
	case "deploy":
		return cmdDeploy(ctx, args[1:], out, errOut)
	case "redeploy":
		return cmdRedeploy(ctx, args[1:], out, errOut)
	case "keys":
		return cmdKeys(args[1:], out, errOut)
	case "peers":
		return cmdPeers(ctx, args[1:], out, errOut)
	case "cache":
		return cmdCache(ctx, args[1:], out, errOut)
	case "backends":
		return cmdBackends(out)
	case "help", "-h", "--help":
		printUsage(out)
		return 0
	default:
		fmt.Fprintf(errOut, "unknown command: %s\n\n", args[0])
		printUsage(errOut)
		return 2
	}
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "catalyst: catalyst content server client")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  catalyst entities --type <type> (--pointer <p> ... | --id <id> ...)")
	fmt.Fprintln(w, "  catalyst deployments [--type <type> ...] [--id <id> ...] [--pointer <p> ...] [--only-current] [--from <ms>] [--to <ms>] [--fields <list>] [--order ASC|DESC] [--limit <n>]")
	fmt.Fprintln(w, "  catalyst download --hash <cid> [--out <file>] [--cache <backend>]")
	fmt.Fprintln(w, "  catalyst available <cid> [<cid> ...]")
	fmt.Fprintln(w, "  catalyst hash <file>")
	fmt.Fprintln(w, "  catalyst build --type <type> --pointer <p> [--pointer ...] [--metadata <file.json>] --out <bundle> [--key <name>] <file> [<file> ...]")
	fmt.Fprintln(w, "  catalyst sign --bundle <bundle> --key <name> [--role <role>] [--scheme ed25519|dilithium3] [--out <bundle>]")
	fmt.Fprintln(w, "  catalyst deploy --bundle <bundle>")
	fmt.Fprintln(w, "  catalyst redeploy --type <type> --pointer <p> [--pointer ...] [--metadata <file.json>] --key <name> [--role <role>]")
	fmt.Fprintln(w, "  catalyst keys init --name <name> [--seed-hex <64hex>] [--force]")
	fmt.Fprintln(w, "  catalyst keys derive --from <name> --role <role> [--force]")
	fmt.Fprintln(w, "  catalyst keys list")
	fmt.Fprintln(w, "  catalyst peers [--peer <url> ...] [--quorum <n>]")
	fmt.Fprintln(w, "  catalyst cache put|get --backend <name> [backend flags] ...")
	fmt.Fprintln(w, "  catalyst backends")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Notes:")
	fmt.Fprintln(w, "  - every network command accepts --config <file> and --server <url>;")
	fmt.Fprintf(w, "    the config path falls back to $%s\n", config.EnvVar)
	fmt.Fprintln(w, "  - keys live under ~/.catalyst/keys/<name> unless --key-dir is given")
	fmt.Fprintln(w, "  - build writes a deterministic bundle; files are named by their base name")
}

// globalFlags are shared by every command that talks to a catalyst.
type globalFlags struct {
	configPath string
	server     string
	cache      string
	cacheFlags *registry.Flags
}

func addGlobalFlags(fs *pflag.FlagSet, withCache bool) *globalFlags {
	g := &globalFlags{}
	fs.StringVar(&g.configPath, "config", "", "YAML config file (default $"+config.EnvVar+")")
	fs.StringVar(&g.server, "server", "", "Catalyst base URL (overrides the config)")
	if withCache {
		fs.StringVar(&g.cache, "cache", "", "Content cache backend (overrides the config)")
		g.cacheFlags = registry.RegisterFlags(fs, registry.UsageCLI)
	}
	return g
}

// session is an opened client plus the resources it holds.
type session struct {
	cfg    config.Config
	logger *slog.Logger
	client *catalyst.Client
	close  func() error
}

func (g *globalFlags) open(errOut io.Writer) (*session, error) {
	cfg, err := config.Resolve(g.configPath)
	if err != nil {
		return nil, err
	}
	if g.server != "" {
		cfg.Server = g.server
		cfg = cfg.WithDefaults()
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}
	logger := cfg.Log.NewLogger(errOut)

	var cache storage.Store
	closeFn := func() error { return nil }
	switch {
	case g.cache != "":
		store, c, err := registry.Open(g.cache, registry.UsageCLI, g.cacheFlags.Settings())
		if err != nil {
			return nil, err
		}
		cache = store
		if c != nil {
			closeFn = c
		}
	default:
		store, c, err := cfg.Cache.Open(registry.UsageCLI)
		if err != nil {
			return nil, err
		}
		cache, closeFn = store, c
	}

	client, err := catalyst.NewClient(catalyst.ClientConfig{
		ServerURL: cfg.Server,
		UserAgent: cfg.UserAgent,
		Options:   cfg.Request.Options(),
		Fragmenter: cfg.Fragmenter(func(name, value string, length int) {
			logger.Warn("query value exceeds url budget, sending alone", "param", name, "length", length)
		}),
		Concurrency: cfg.Concurrency,
		Policy:      cfg.Policy(),
		Cache:       cache,
		Logger:      logger,
	})
	if err != nil {
		_ = closeFn()
		return nil, err
	}
	return &session{cfg: cfg, logger: logger, client: client, close: closeFn}, nil
}

func newFlagSet(name string, errOut io.Writer) *pflag.FlagSet {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.SetOutput(errOut)
	return fs
}

// parseFlags returns the exit code to use when parsing stops the command.
func parseFlags(fs *pflag.FlagSet, args []string) (int, bool) {
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return 0, false
		}
		return 2, false
	}
	return 0, true
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}

// exitCode maps an error to the process status: usage problems are 2,
// everything else 1.
func exitCode(err error) int {
	if model.IsKind(err, model.KindValidation) {
		return 2
	}
	return 1
}

func cmdBackends(out io.Writer) int {
	for _, b := range registry.List(registry.UsageCLI) {
		if b.Description == "" {
			_, _ = fmt.Fprintf(out, "%s\n", b.Name)
			continue
		}
		_, _ = fmt.Fprintf(out, "%s\t%s\n", b.Name, b.Description)
	}
	return 0
}
