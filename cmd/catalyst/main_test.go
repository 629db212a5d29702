package main

import (
	"bytes"
	"context"
	"encoding/json"
	"mime"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/decentraland/catalyst-client-sub000/config"
	"github.com/decentraland/catalyst-client-sub000/contenthash"
	"github.com/decentraland/catalyst-client-sub000/model"
)

func runCLI(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	t.Setenv(config.EnvVar, "")
	var out, errOut bytes.Buffer
	code := run(context.Background(), args, &out, &errOut)
	return code, out.String(), errOut.String()
}

func TestRunUsage(t *testing.T) {
	if code, _, _ := runCLI(t); code != 2 {
		t.Fatalf("no args: code %d", code)
	}
	if code, _, _ := runCLI(t, "bogus"); code != 2 {
		t.Fatalf("unknown command: code %d", code)
	}
	code, out, _ := runCLI(t, "help")
	if code != 0 || !strings.Contains(out, "catalyst entities") {
		t.Fatalf("help: code %d, out %q", code, out)
	}
}

func TestHashCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a.txt")
	if err := os.WriteFile(path, []byte("hello"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	code, out, errOut := runCLI(t, "hash", path)
	if code != 0 {
		t.Fatalf("code %d: %s", code, errOut)
	}
	if strings.TrimSpace(out) != contenthash.Hash([]byte("hello")) {
		t.Fatalf("unexpected hash %q", out)
	}
}

func TestKeysInitAndList(t *testing.T) {
	dir := t.TempDir()
	seed := strings.Repeat("01", 32)

	code, out, errOut := runCLI(t, "keys", "init", "--key-dir", dir, "--name", "dev", "--seed-hex", seed)
	if code != 0 || !strings.Contains(out, "ed25519:") {
		t.Fatalf("init: code %d out %q err %q", code, out, errOut)
	}
	if code, _, errOut := runCLI(t, "keys", "derive", "--key-dir", dir, "--from", "dev", "--role", "deployer"); code != 0 {
		t.Fatalf("derive: code %d err %q", code, errOut)
	}
	code, out, _ = runCLI(t, "keys", "list", "--key-dir", dir)
	if code != 0 || strings.TrimSpace(out) != "dev\tdeployer" {
		t.Fatalf("list: code %d out %q", code, out)
	}
}

func TestEntitiesCommand(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/content/entities/scene" || r.URL.Query().Get("pointer") != "0,0" {
			http.NotFound(w, r)
			return
		}
		_ = json.NewEncoder(w).Encode([]model.Entity{{ID: "e1", Type: model.EntityTypeScene, Pointers: []string{"0,0"}}})
	}))
	defer srv.Close()

	code, out, errOut := runCLI(t, "entities", "--server", srv.URL, "--type", "scene", "--pointer", "0,0")
	if code != 0 {
		t.Fatalf("code %d: %s", code, errOut)
	}
	var got []model.Entity
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("decode output: %v", err)
	}
	if len(got) != 1 || got[0].ID != "e1" {
		t.Fatalf("unexpected entities %+v", got)
	}
}

func TestEntitiesCommandRequiresSelector(t *testing.T) {
	if code, _, _ := runCLI(t, "entities", "--type", "scene"); code != 2 {
		t.Fatalf("expected usage error, got %d", code)
	}
}

func TestBuildSignDeploy(t *testing.T) {
	dir := t.TempDir()
	keyDir := filepath.Join(dir, "keys")
	content := filepath.Join(dir, "scene.json")
	if err := os.WriteFile(content, []byte(`{"main":"bin/game.js"}`), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	bundlePath := filepath.Join(dir, "deploy.tar")

	if code, _, errOut := runCLI(t, "keys", "init", "--key-dir", keyDir, "--name", "dev", "--seed-hex", strings.Repeat("ab", 32)); code != 0 {
		t.Fatalf("keys init: %s", errOut)
	}
	code, out, errOut := runCLI(t, "build",
		"--type", "scene",
		"--pointer", "0,0",
		"--timestamp", "1700000000000",
		"--key-dir", keyDir,
		"--key", "dev",
		"--compress",
		"--out", bundlePath,
		content,
	)
	if code != 0 {
		t.Fatalf("build: code %d: %s", code, errOut)
	}
	entityID := strings.TrimSpace(out)

	var mu sync.Mutex
	var uploaded []string
	var fields map[string][]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/content/available-content":
			var res []model.AvailableContent
			for _, c := range r.URL.Query()["cid"] {
				res = append(res, model.AvailableContent{CID: c})
			}
			_ = json.NewEncoder(w).Encode(res)
		case r.Method == http.MethodPost && r.URL.Path == "/content/entities":
			_, params, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
			if err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			form, err := multipart.NewReader(r.Body, params["boundary"]).ReadForm(1 << 20)
			if err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			mu.Lock()
			fields = form.Value
			for name := range form.File {
				uploaded = append(uploaded, name)
			}
			mu.Unlock()
			_ = json.NewEncoder(w).Encode(model.DeployResponse{CreationTimestamp: 7})
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	code, out, errOut = runCLI(t, "deploy", "--server", srv.URL, "--bundle", bundlePath)
	if code != 0 {
		t.Fatalf("deploy: code %d: %s", code, errOut)
	}
	if strings.TrimSpace(out) != entityID+"\t7" {
		t.Fatalf("unexpected output %q", out)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(uploaded) != 2 {
		t.Fatalf("expected content and manifest, got %v", uploaded)
	}
	if got := fields["entityId"]; len(got) != 1 || got[0] != entityID {
		t.Fatalf("entityId field = %v", got)
	}
	if got := fields["authChain[0][type]"]; len(got) != 1 || got[0] != "SIGNER" {
		t.Fatalf("auth chain signer = %v", got)
	}
	if got := fields["authChain[1][type]"]; len(got) != 1 || got[0] != string(model.AuthLinkEd25519SignedEntity) {
		t.Fatalf("auth chain signed entity = %v", got)
	}
}

func TestDeployUnsignedBundleFails(t *testing.T) {
	dir := t.TempDir()
	content := filepath.Join(dir, "a.txt")
	if err := os.WriteFile(content, []byte("a"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	bundlePath := filepath.Join(dir, "unsigned.tar")
	if code, _, errOut := runCLI(t, "build", "--type", "scene", "--pointer", "1,1", "--out", bundlePath, content); code != 0 {
		t.Fatalf("build: %s", errOut)
	}
	code, _, errOut := runCLI(t, "deploy", "--server", "http://127.0.0.1:1", "--bundle", bundlePath)
	if code != 2 || !strings.Contains(errOut, "auth chain") {
		t.Fatalf("expected auth chain validation error, got %d %q", code, errOut)
	}
}

func TestCachePutGet(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "blob")
	if err := os.WriteFile(src, []byte("cached bytes"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	cacheDir := filepath.Join(dir, "cache")

	code, out, errOut := runCLI(t, "cache", "put", "--backend", "localfs", "--localfs-dir", cacheDir, src)
	if code != 0 {
		t.Fatalf("put: code %d: %s", code, errOut)
	}
	id := strings.TrimSpace(out)
	if id != contenthash.Hash([]byte("cached bytes")) {
		t.Fatalf("unexpected cid %q", id)
	}

	code, out, errOut = runCLI(t, "cache", "get", "--backend", "localfs", "--localfs-dir", cacheDir, "--cid", id)
	if code != 0 || out != "cached bytes" {
		t.Fatalf("get: code %d out %q err %q", code, out, errOut)
	}
}
