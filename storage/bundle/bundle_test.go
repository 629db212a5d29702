package bundle_test

import (
	"archive/tar"
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/decentraland/catalyst-client-sub000/contenthash"
	"github.com/decentraland/catalyst-client-sub000/deployment"
	"github.com/decentraland/catalyst-client-sub000/model"
	"github.com/decentraland/catalyst-client-sub000/storage/bundle"
)

func sampleDeployment(t *testing.T) deployment.Data {
	t.Helper()
	prep, err := deployment.BuildEntity(context.Background(), deployment.BuildOptions{
		Type:      model.EntityTypeScene,
		Pointers:  []string{"0,0", "0,1"},
		Files:     map[string][]byte{"scene.json": []byte(`{"main":"bin/game.js"}`), "bin/game.js": []byte("main()")},
		Timestamp: 1700000000000,
	})
	if err != nil {
		t.Fatal(err)
	}
	return prep.WithAuthChain(model.AuthChain{
		{Type: model.AuthLinkSigner, Payload: "0xabc"},
		{Type: model.AuthLinkEd25519SignedEntity, Payload: prep.EntityID, Signature: "deadbeef"},
	})
}

func export(t *testing.T, data deployment.Data, compress bool) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := bundle.Export(&buf, data, bundle.ExportOptions{Compress: compress}); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestBundle_ExportIsDeterministic(t *testing.T) {
	data := sampleDeployment(t)
	for _, compress := range []bool{false, true} {
		a := export(t, data, compress)
		b := export(t, data, compress)
		if !bytes.Equal(a, b) {
			t.Fatalf("compress=%v: expected deterministic bundle bytes", compress)
		}
	}
}

func TestBundle_RoundTrip(t *testing.T) {
	data := sampleDeployment(t)
	for _, compress := range []bool{false, true} {
		got, err := bundle.Import(bytes.NewReader(export(t, data, compress)), bundle.ImportOptions{})
		if err != nil {
			t.Fatalf("compress=%v: Import: %v", compress, err)
		}
		if got.EntityID != data.EntityID {
			t.Fatalf("entity id %s want %s", got.EntityID, data.EntityID)
		}
		if got.Entity.ID != data.EntityID || len(got.Entity.Content) != 2 {
			t.Fatalf("unexpected entity: %+v", got.Entity)
		}
		if len(got.Files) != len(data.Files) {
			t.Fatalf("files=%d want %d", len(got.Files), len(data.Files))
		}
		for h, b := range data.Files {
			if !bytes.Equal(got.Files[h], b) {
				t.Fatalf("file %s mismatch", h)
			}
		}
		if len(got.AuthChain) != 2 || got.AuthChain[1].Signature != "deadbeef" {
			t.Fatalf("auth chain=%+v", got.AuthChain)
		}
	}
}

func TestBundle_ImportRejectsHashMismatch(t *testing.T) {
	other := contenthash.Hash([]byte("other"))
	// Name says "other" but bytes are "good".
	raw := makeDeterministicTar(t, "files/"+other, []byte("good"))
	_, err := bundle.Import(bytes.NewReader(raw), bundle.ImportOptions{})
	if !model.IsKind(err, model.KindIntegrity) {
		t.Fatalf("expected integrity error, got %v", err)
	}
}

func TestBundle_ImportRequiresIndex(t *testing.T) {
	good := []byte("good")
	raw := makeDeterministicTar(t, "files/"+contenthash.Hash(good), good)
	if _, err := bundle.Import(bytes.NewReader(raw), bundle.ImportOptions{}); err == nil {
		t.Fatalf("expected missing index error")
	}
}

func TestBundle_UnknownEntries(t *testing.T) {
	raw := makeDeterministicTar(t, "notes.txt", []byte("hi"))
	if _, err := bundle.Import(bytes.NewReader(raw), bundle.ImportOptions{}); err == nil {
		t.Fatalf("expected unknown entry error")
	}
	// Ignoring unknown entries still leaves the bundle without an index.
	if _, err := bundle.Import(bytes.NewReader(raw), bundle.ImportOptions{IgnoreUnknown: true}); err == nil {
		t.Fatalf("expected missing index error")
	}
}

func TestBundle_ExportRequiresManifest(t *testing.T) {
	data := sampleDeployment(t)
	delete(data.Files, data.EntityID)
	if err := bundle.Export(&bytes.Buffer{}, data, bundle.ExportOptions{}); !model.IsKind(err, model.KindValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func makeDeterministicTar(t *testing.T, name string, content []byte) []byte {
	t.Helper()

	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)
	h := &tar.Header{
		Name:     name,
		Mode:     0o644,
		Size:     int64(len(content)),
		ModTime:  time.Unix(0, 0).UTC(),
		Typeflag: tar.TypeReg,
	}
	if err := tw.WriteHeader(h); err != nil {
		t.Fatal(err)
	}
	if _, err := tw.Write(content); err != nil {
		t.Fatal(err)
	}
	if err := tw.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}
