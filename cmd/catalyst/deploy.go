package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/pflag"

	"github.com/decentraland/catalyst-client-sub000/authchain"
	"github.com/decentraland/catalyst-client-sub000/catalyst"
	"github.com/decentraland/catalyst-client-sub000/deployment"
	"github.com/decentraland/catalyst-client-sub000/model"
	"github.com/decentraland/catalyst-client-sub000/storage/bundle"
)

// signFlags select a stored key and the signature scheme.
type signFlags struct {
	keyDir string
	key    string
	role   string
	scheme string
	hash   string
}

func addSignFlags(fs *pflag.FlagSet) *signFlags {
	s := &signFlags{}
	fs.StringVar(&s.keyDir, "key-dir", "", "Key store directory (default ~/.catalyst/keys)")
	fs.StringVar(&s.key, "key", "", "Stored key name used to sign")
	fs.StringVar(&s.role, "role", "", "Derived role of --key")
	fs.StringVar(&s.scheme, "scheme", "ed25519", "Signature scheme: ed25519 or dilithium3")
	fs.StringVar(&s.hash, "hash-alg", "sha256", "Digest signed by dilithium3: sha256, sha512 or sha3-256")
	return s
}

func (s *signFlags) signer() (authchain.Signer, error) {
	ks, err := authchain.OpenKeyStore(s.keyDir)
	if err != nil {
		return nil, err
	}
	seed, err := ks.Seed(s.key, s.role)
	if err != nil {
		return nil, err
	}
	switch s.scheme {
	case "ed25519":
		return authchain.NewEd25519Signer(seed)
	case "dilithium3":
		return authchain.NewDilithium3SignerFromSeed(seed, s.hash)
	default:
		return nil, fmt.Errorf("unknown scheme %q", s.scheme)
	}
}

func (s *signFlags) sign(prep deployment.PreparationData) (deployment.Data, error) {
	signer, err := s.signer()
	if err != nil {
		return deployment.Data{}, err
	}
	chain, err := authchain.Sign(signer, prep.EntityID)
	if err != nil {
		return deployment.Data{}, err
	}
	return prep.WithAuthChain(chain), nil
}

func readMetadata(path string) (any, error) {
	if path == "" {
		return nil, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if !json.Valid(b) {
		return nil, fmt.Errorf("%s is not valid JSON", path)
	}
	return json.RawMessage(bytes.TrimSpace(b)), nil
}

// readContentFiles maps content names to bytes. An argument is either a path,
// named by its base name, or name=path.
func readContentFiles(args []string) (map[string][]byte, error) {
	files := make(map[string][]byte, len(args))
	for _, arg := range args {
		name, path := filepath.Base(arg), arg
		if i := strings.Index(arg, "="); i > 0 {
			name, path = arg[:i], arg[i+1:]
		}
		if _, dup := files[name]; dup {
			return nil, fmt.Errorf("duplicate content name %q", name)
		}
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		files[name] = b
	}
	return files, nil
}

func readBundle(path string) (deployment.Data, error) {
	f, err := os.Open(path)
	if err != nil {
		return deployment.Data{}, err
	}
	defer f.Close()
	return bundle.Import(f, bundle.ImportOptions{})
}

func writeBundle(path string, data deployment.Data, compress bool) error {
	var buf bytes.Buffer
	if err := bundle.Export(&buf, data, bundle.ExportOptions{Compress: compress}); err != nil {
		return err
	}
	return os.WriteFile(path, buf.Bytes(), 0o644)
}

func cmdBuild(ctx context.Context, args []string, out io.Writer, errOut io.Writer) int {
	fs := newFlagSet("build", errOut)
	sf := addSignFlags(fs)

	var entityType string
	var pointers []string
	var metadataPath string
	var timestamp int64
	var outPath string
	var compress bool
	fs.StringVar(&entityType, "type", "", "Entity type")
	fs.StringArrayVar(&pointers, "pointer", nil, "Pointer claimed by the entity (repeatable)")
	fs.StringVar(&metadataPath, "metadata", "", "JSON metadata file")
	fs.Int64Var(&timestamp, "timestamp", 0, "Entity timestamp in epoch milliseconds (default now)")
	fs.StringVar(&outPath, "out", "", "Bundle output path")
	fs.BoolVar(&compress, "compress", false, "Compress the bundle with zstd")

	if code, ok := parseFlags(fs, args); !ok {
		return code
	}
	if entityType == "" || outPath == "" {
		fmt.Fprintln(errOut, "missing --type or --out")
		return 2
	}

	files, err := readContentFiles(fs.Args())
	if err != nil {
		fmt.Fprintf(errOut, "read content: %v\n", err)
		return 1
	}
	metadata, err := readMetadata(metadataPath)
	if err != nil {
		fmt.Fprintf(errOut, "read --metadata: %v\n", err)
		return 1
	}

	prep, err := deployment.BuildEntity(ctx, deployment.BuildOptions{
		Type:      model.EntityType(entityType),
		Pointers:  pointers,
		Files:     files,
		Metadata:  metadata,
		Timestamp: timestamp,
	})
	if err != nil {
		fmt.Fprintf(errOut, "build: %v\n", err)
		return exitCode(err)
	}

	data := prep.WithAuthChain(nil)
	if sf.key != "" {
		data, err = sf.sign(prep)
		if err != nil {
			fmt.Fprintf(errOut, "sign: %v\n", err)
			return 1
		}
	}
	if err := writeBundle(outPath, data, compress); err != nil {
		fmt.Fprintf(errOut, "write bundle: %v\n", err)
		return 1
	}
	_, _ = fmt.Fprintln(out, prep.EntityID)
	return 0
}

func cmdSign(args []string, out io.Writer, errOut io.Writer) int {
	fs := newFlagSet("sign", errOut)
	sf := addSignFlags(fs)

	var bundlePath string
	var outPath string
	var compress bool
	fs.StringVar(&bundlePath, "bundle", "", "Bundle to sign")
	fs.StringVar(&outPath, "out", "", "Output bundle (default: rewrite --bundle)")
	fs.BoolVar(&compress, "compress", false, "Compress the bundle with zstd")

	if code, ok := parseFlags(fs, args); !ok {
		return code
	}
	if bundlePath == "" || sf.key == "" {
		fmt.Fprintln(errOut, "missing --bundle or --key")
		return 2
	}
	if outPath == "" {
		outPath = bundlePath
	}

	data, err := readBundle(bundlePath)
	if err != nil {
		fmt.Fprintf(errOut, "read bundle: %v\n", err)
		return 1
	}
	signed, err := sf.sign(data.PreparationData)
	if err != nil {
		fmt.Fprintf(errOut, "sign: %v\n", err)
		return 1
	}
	if err := writeBundle(outPath, signed, compress); err != nil {
		fmt.Fprintf(errOut, "write bundle: %v\n", err)
		return 1
	}
	_, _ = fmt.Fprintln(out, signed.AuthChain[0].Payload)
	return 0
}

func cmdDeploy(ctx context.Context, args []string, out io.Writer, errOut io.Writer) int {
	fs := newFlagSet("deploy", errOut)
	g := addGlobalFlags(fs, false)

	var bundlePath string
	fs.StringVar(&bundlePath, "bundle", "", "Signed bundle to deploy")

	if code, ok := parseFlags(fs, args); !ok {
		return code
	}
	if bundlePath == "" {
		fmt.Fprintln(errOut, "missing --bundle")
		return 2
	}

	data, err := readBundle(bundlePath)
	if err != nil {
		fmt.Fprintf(errOut, "read bundle: %v\n", err)
		return 1
	}

	s, err := g.open(errOut)
	if err != nil {
		fmt.Fprintf(errOut, "catalyst: %v\n", err)
		return 1
	}
	defer s.close()

	return deployAndReport(ctx, s.client, data, out, errOut)
}

func cmdRedeploy(ctx context.Context, args []string, out io.Writer, errOut io.Writer) int {
	fs := newFlagSet("redeploy", errOut)
	g := addGlobalFlags(fs, false)
	sf := addSignFlags(fs)

	var entityType string
	var pointers []string
	var metadataPath string
	fs.StringVar(&entityType, "type", "", "Entity type")
	fs.StringArrayVar(&pointers, "pointer", nil, "Pointer of the entity to redeploy (repeatable)")
	fs.StringVar(&metadataPath, "metadata", "", "JSON metadata file for the new entity")

	if code, ok := parseFlags(fs, args); !ok {
		return code
	}
	if entityType == "" || sf.key == "" {
		fmt.Fprintln(errOut, "missing --type or --key")
		return 2
	}
	metadata, err := readMetadata(metadataPath)
	if err != nil {
		fmt.Fprintf(errOut, "read --metadata: %v\n", err)
		return 1
	}

	s, err := g.open(errOut)
	if err != nil {
		fmt.Fprintf(errOut, "catalyst: %v\n", err)
		return 1
	}
	defer s.close()

	prep, err := s.client.BuildEntityWithoutNewFiles(ctx, catalyst.ReuseOptions{
		Type:     model.EntityType(entityType),
		Pointers: pointers,
		Metadata: metadata,
	})
	if err != nil {
		fmt.Fprintf(errOut, "build: %v\n", err)
		return exitCode(err)
	}
	data, err := sf.sign(prep)
	if err != nil {
		fmt.Fprintf(errOut, "sign: %v\n", err)
		return 1
	}
	return deployAndReport(ctx, s.client, data, out, errOut)
}

func deployAndReport(ctx context.Context, client *catalyst.Client, data deployment.Data, out io.Writer, errOut io.Writer) int {
	resp, err := client.Deploy(ctx, data)
	if err != nil {
		fmt.Fprintf(errOut, "deploy %s: %v\n", data.EntityID, err)
		return exitCode(err)
	}
	_, _ = fmt.Fprintf(out, "%s\t%d\n", data.EntityID, resp.CreationTimestamp)
	return 0
}
