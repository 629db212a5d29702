package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/decentraland/catalyst-client-sub000/catalyst"
	"github.com/decentraland/catalyst-client-sub000/contenthash"
	"github.com/decentraland/catalyst-client-sub000/model"
	"github.com/decentraland/catalyst-client-sub000/paginate"
)

func cmdEntities(ctx context.Context, args []string, out io.Writer, errOut io.Writer) int {
	fs := newFlagSet("entities", errOut)
	g := addGlobalFlags(fs, false)

	var entityType string
	var pointers []string
	var ids []string
	fs.StringVar(&entityType, "type", "", "Entity type (scene, profile, wearable, store, emote, outfits)")
	fs.StringArrayVar(&pointers, "pointer", nil, "Pointer to look up (repeatable)")
	fs.StringArrayVar(&ids, "id", nil, "Entity id to look up (repeatable)")

	if code, ok := parseFlags(fs, args); !ok {
		return code
	}
	if entityType == "" {
		fmt.Fprintln(errOut, "missing --type")
		return 2
	}
	if (len(pointers) == 0) == (len(ids) == 0) {
		fmt.Fprintln(errOut, "exactly one of --pointer or --id is required")
		return 2
	}

	s, err := g.open(errOut)
	if err != nil {
		fmt.Fprintf(errOut, "catalyst: %v\n", err)
		return 1
	}
	defer s.close()

	var entities []model.Entity
	if len(pointers) > 0 {
		entities, err = s.client.FetchEntitiesByPointers(ctx, model.EntityType(entityType), pointers)
	} else {
		entities, err = s.client.FetchEntitiesByIDs(ctx, model.EntityType(entityType), ids)
	}
	if err != nil {
		fmt.Fprintf(errOut, "fetch entities: %v\n", err)
		return exitCode(err)
	}
	if entities == nil {
		entities = []model.Entity{}
	}
	if err := printJSON(out, entities); err != nil {
		fmt.Fprintf(errOut, "write: %v\n", err)
		return 1
	}
	return 0
}

func cmdDeployments(ctx context.Context, args []string, out io.Writer, errOut io.Writer) int {
	fs := newFlagSet("deployments", errOut)
	g := addGlobalFlags(fs, false)

	var types []string
	var opts catalyst.DeploymentOptions
	var fields string
	var order string
	var policy string
	fs.StringArrayVar(&types, "type", nil, "Entity type filter (repeatable)")
	fs.StringArrayVar(&opts.Filters.EntityIDs, "id", nil, "Entity id filter (repeatable)")
	fs.StringArrayVar(&opts.Filters.Pointers, "pointer", nil, "Pointer filter (repeatable)")
	fs.BoolVar(&opts.Filters.OnlyCurrentlyPointed, "only-current", false, "Only deployments still active on a pointer")
	fs.Int64Var(&opts.Filters.From, "from", 0, "Lower local timestamp bound in epoch milliseconds")
	fs.Int64Var(&opts.Filters.To, "to", 0, "Upper local timestamp bound in epoch milliseconds")
	fs.StringVar(&fields, "fields", "", "Comma-separated fields: pointers,content,metadata,auditInfo")
	fs.StringVar(&order, "order", "DESC", "Local timestamp order: ASC or DESC")
	fs.IntVar(&opts.Limit, "limit", 0, "Page size requested from the server")
	fs.StringVar(&policy, "partial-failure", "", "fail-fast or best-effort (overrides the config)")

	if code, ok := parseFlags(fs, args); !ok {
		return code
	}
	for _, t := range types {
		opts.Filters.EntityTypes = append(opts.Filters.EntityTypes, model.EntityType(t))
	}
	if fields != "" {
		f, unknown := catalyst.ParseDeploymentFields(fields)
		if len(unknown) > 0 {
			fmt.Fprintf(errOut, "invalid --fields: unknown %s\n", strings.Join(unknown, ", "))
			return 2
		}
		opts.Fields = f
	}
	switch strings.ToUpper(order) {
	case "ASC":
		opts.Order = catalyst.SortAscending
	case "DESC":
		opts.Order = catalyst.SortDescending
	default:
		fmt.Fprintf(errOut, "invalid --order: %q\n", order)
		return 2
	}
	if policy != "" {
		p, err := paginate.ParsePolicy(policy)
		if err != nil {
			fmt.Fprintf(errOut, "invalid --partial-failure: %v\n", err)
			return 2
		}
		opts.Policy = &p
	}

	s, err := g.open(errOut)
	if err != nil {
		fmt.Fprintf(errOut, "catalyst: %v\n", err)
		return 1
	}
	defer s.close()

	deployments, err := s.client.FetchAllDeployments(ctx, opts)
	if err != nil && len(deployments) == 0 {
		fmt.Fprintf(errOut, "fetch deployments: %v\n", err)
		return exitCode(err)
	}
	if deployments == nil {
		deployments = []model.Deployment{}
	}
	if perr := printJSON(out, deployments); perr != nil {
		fmt.Fprintf(errOut, "write: %v\n", perr)
		return 1
	}
	if err != nil {
		fmt.Fprintf(errOut, "partial result: %v\n", err)
		return 1
	}
	return 0
}

func cmdDownload(ctx context.Context, args []string, out io.Writer, errOut io.Writer) int {
	fs := newFlagSet("download", errOut)
	g := addGlobalFlags(fs, true)

	var hash string
	var outPath string
	fs.StringVar(&hash, "hash", "", "Content hash to download")
	fs.StringVar(&outPath, "out", "", "Write to file instead of stdout")

	if code, ok := parseFlags(fs, args); !ok {
		return code
	}
	if hash == "" {
		fmt.Fprintln(errOut, "missing --hash")
		return 2
	}

	s, err := g.open(errOut)
	if err != nil {
		fmt.Fprintf(errOut, "catalyst: %v\n", err)
		return 1
	}
	defer s.close()

	b, err := s.client.DownloadContent(ctx, hash)
	if err != nil {
		fmt.Fprintf(errOut, "download %s: %v\n", hash, err)
		return exitCode(err)
	}
	if outPath == "" {
		if _, err := out.Write(b); err != nil {
			fmt.Fprintf(errOut, "write: %v\n", err)
			return 1
		}
		return 0
	}
	if err := os.WriteFile(outPath, b, 0o644); err != nil {
		fmt.Fprintf(errOut, "write %s: %v\n", outPath, err)
		return 1
	}
	return 0
}

func cmdAvailable(ctx context.Context, args []string, out io.Writer, errOut io.Writer) int {
	fs := newFlagSet("available", errOut)
	g := addGlobalFlags(fs, false)
	if code, ok := parseFlags(fs, args); !ok {
		return code
	}
	if fs.NArg() == 0 {
		fmt.Fprintln(errOut, "usage: catalyst available <cid> [<cid> ...]")
		return 2
	}

	s, err := g.open(errOut)
	if err != nil {
		fmt.Fprintf(errOut, "catalyst: %v\n", err)
		return 1
	}
	defer s.close()

	results, err := s.client.IsContentAvailable(ctx, fs.Args())
	if err != nil {
		fmt.Fprintf(errOut, "check availability: %v\n", err)
		return exitCode(err)
	}
	for _, r := range results {
		_, _ = fmt.Fprintf(out, "%s\t%t\n", r.CID, r.Available)
	}
	return 0
}

func cmdHash(args []string, out io.Writer, errOut io.Writer) int {
	fs := newFlagSet("hash", errOut)
	if code, ok := parseFlags(fs, args); !ok {
		return code
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(errOut, "usage: catalyst hash <file>")
		return 2
	}
	b, err := os.ReadFile(fs.Arg(0))
	if err != nil {
		fmt.Fprintf(errOut, "read: %v\n", err)
		return 1
	}
	_, _ = fmt.Fprintln(out, contenthash.Hash(b))
	return 0
}

func cmdPeers(ctx context.Context, args []string, out io.Writer, errOut io.Writer) int {
	fs := newFlagSet("peers", errOut)
	g := addGlobalFlags(fs, false)

	var peers []string
	var quorum int
	fs.StringArrayVar(&peers, "peer", nil, "Catalyst to ask for its approved list (repeatable)")
	fs.IntVar(&quorum, "quorum", 0, "Minimum number of lists an address must appear in (default from config, 0 means all)")

	if code, ok := parseFlags(fs, args); !ok {
		return code
	}

	s, err := g.open(errOut)
	if err != nil {
		fmt.Fprintf(errOut, "catalyst: %v\n", err)
		return 1
	}
	defer s.close()

	if len(peers) == 0 {
		peers = s.cfg.Discovery.Peers
	}
	if !fs.Changed("quorum") {
		quorum = s.cfg.Discovery.Quorum
	}
	approved, err := s.client.FetchApprovedCatalysts(ctx, peers, quorum)
	if err != nil {
		fmt.Fprintf(errOut, "discover: %v\n", err)
		return 1
	}
	for _, addr := range approved {
		_, _ = fmt.Fprintln(out, addr)
	}
	return 0
}
