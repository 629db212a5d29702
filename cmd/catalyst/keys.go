package main

import (
	"crypto/ed25519"
	"crypto/rand"
	"fmt"
	"io"
	"strings"

	"github.com/decentraland/catalyst-client-sub000/authchain"
)

func cmdKeys(args []string, out io.Writer, errOut io.Writer) int {
	if len(args) == 0 {
		printKeysUsage(errOut)
		return 2
	}
	switch args[0] {
	case "init":
		return cmdKeysInit(args[1:], out, errOut)
	case "derive":
		return cmdKeysDerive(args[1:], out, errOut)
	case "list":
		return cmdKeysList(args[1:], out, errOut)
	case "help", "-h", "--help":
		printKeysUsage(out)
		return 0
	default:
		fmt.Fprintf(errOut, "unknown keys subcommand: %s\n\n", args[0])
		printKeysUsage(errOut)
		return 2
	}
}

func printKeysUsage(w io.Writer) {
	fmt.Fprintln(w, "catalyst keys: local signing keys for development catalysts")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  catalyst keys init --name <name> [--seed-hex <64hex>] [--force]")
	fmt.Fprintln(w, "  catalyst keys derive --from <name> --role <role> [--force]")
	fmt.Fprintln(w, "  catalyst keys list")
}

func cmdKeysInit(args []string, out io.Writer, errOut io.Writer) int {
	fs := newFlagSet("keys init", errOut)

	var keyDir string
	var name string
	var seedHex string
	var force bool
	fs.StringVar(&keyDir, "key-dir", "", "Key store directory (default ~/.catalyst/keys)")
	fs.StringVar(&name, "name", "", "Key name")
	fs.StringVar(&seedHex, "seed-hex", "", "Optional 32-byte seed as 64 hex chars (for reproducible setups)")
	fs.BoolVar(&force, "force", false, "Overwrite existing key files")

	if code, ok := parseFlags(fs, args); !ok {
		return code
	}
	if name == "" {
		fmt.Fprintln(errOut, "missing --name")
		return 2
	}

	var seed []byte
	if seedHex != "" {
		var err error
		seed, err = authchain.ParseSeedHex(seedHex)
		if err != nil {
			fmt.Fprintf(errOut, "invalid --seed-hex: %v\n", err)
			return 2
		}
	} else {
		seed = make([]byte, ed25519.SeedSize)
		if _, err := rand.Read(seed); err != nil {
			fmt.Fprintf(errOut, "rand: %v\n", err)
			return 1
		}
	}

	ks, err := authchain.OpenKeyStore(keyDir)
	if err != nil {
		fmt.Fprintf(errOut, "keys: %v\n", err)
		return 1
	}
	address, err := ks.Init(name, seed, force)
	if err != nil {
		fmt.Fprintf(errOut, "write key: %v\n", err)
		return 1
	}
	fmt.Fprintf(out, "Created key: %s\n", address)
	return 0
}

func cmdKeysDerive(args []string, out io.Writer, errOut io.Writer) int {
	fs := newFlagSet("keys derive", errOut)

	var keyDir string
	var from string
	var role string
	var force bool
	fs.StringVar(&keyDir, "key-dir", "", "Key store directory (default ~/.catalyst/keys)")
	fs.StringVar(&from, "from", "", "Root key name")
	fs.StringVar(&role, "role", "", "Role identifier (e.g. deployer, ci)")
	fs.BoolVar(&force, "force", false, "Overwrite existing key files")

	if code, ok := parseFlags(fs, args); !ok {
		return code
	}
	if from == "" || role == "" {
		fmt.Fprintln(errOut, "missing --from or --role")
		return 2
	}

	ks, err := authchain.OpenKeyStore(keyDir)
	if err != nil {
		fmt.Fprintf(errOut, "keys: %v\n", err)
		return 1
	}
	address, err := ks.Derive(from, role, force)
	if err != nil {
		fmt.Fprintf(errOut, "derive role key: %v\n", err)
		return 1
	}
	fmt.Fprintf(out, "Created role key: %s\n", address)
	return 0
}

func cmdKeysList(args []string, out io.Writer, errOut io.Writer) int {
	fs := newFlagSet("keys list", errOut)
	var keyDir string
	fs.StringVar(&keyDir, "key-dir", "", "Key store directory (default ~/.catalyst/keys)")
	if code, ok := parseFlags(fs, args); !ok {
		return code
	}

	ks, err := authchain.OpenKeyStore(keyDir)
	if err != nil {
		fmt.Fprintf(errOut, "keys: %v\n", err)
		return 1
	}
	entries, err := ks.List()
	if err != nil {
		fmt.Fprintf(errOut, "list keys: %v\n", err)
		return 1
	}
	for _, e := range entries {
		if len(e.Roles) == 0 {
			fmt.Fprintln(out, e.Name)
			continue
		}
		fmt.Fprintf(out, "%s\t%s\n", e.Name, strings.Join(e.Roles, ","))
	}
	return 0
}
