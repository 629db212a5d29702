package deployment

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/decentraland/catalyst-client-sub000/contenthash"
	"github.com/decentraland/catalyst-client-sub000/entity"
	"github.com/decentraland/catalyst-client-sub000/model"
)

func TestBuildEntity_DeduplicatesByHash(t *testing.T) {
	same := []byte("identical bytes")
	other := []byte("other bytes")

	data, err := BuildEntity(context.Background(), BuildOptions{
		Type:     model.EntityTypeScene,
		Pointers: []string{"0,0"},
		Files: map[string][]byte{
			"a.png":     same,
			"copy.png":  same,
			"scene.txt": other,
		},
		Timestamp:   1,
		Concurrency: 2,
	})
	if err != nil {
		t.Fatalf("BuildEntity: %v", err)
	}

	if len(data.Files) != 3 {
		t.Fatalf("expected 2 unique contents + manifest, got %d files", len(data.Files))
	}
	if string(data.Files[contenthash.Hash(same)]) != string(same) {
		t.Fatalf("missing deduplicated content")
	}
	if len(data.Entity.Content) != 3 {
		t.Fatalf("every name must stay referenced, got %+v", data.Entity.Content)
	}
	if data.Entity.Content[0].File != "a.png" || data.Entity.Content[2].File != "scene.txt" {
		t.Fatalf("content must be sorted by name: %+v", data.Entity.Content)
	}

	manifest := data.Manifest()
	if contenthash.Hash(manifest) != data.EntityID {
		t.Fatalf("manifest must be keyed by the entity id")
	}
	parsed, err := entity.ParseManifest(manifest)
	if err != nil {
		t.Fatalf("ParseManifest: %v", err)
	}
	if parsed.ContentHash("copy.png") != contenthash.Hash(same) {
		t.Fatalf("manifest content mismatch: %+v", parsed.Content)
	}
}

func TestBuildEntity_MatchesPinnedEntity(t *testing.T) {
	data, err := BuildEntity(context.Background(), BuildOptions{
		Type:      model.EntityTypeProfile,
		Pointers:  []string{"P1"},
		Files:     map[string][]byte{},
		Timestamp: 20,
	})
	if err != nil {
		t.Fatalf("BuildEntity: %v", err)
	}
	if data.EntityID != "bafkreiho6y6igcfnrwnlz4tvwopl53b7evlptoi7d5c4rz6m6vdwmbnqca" {
		t.Fatalf("unexpected entity id %s", data.EntityID)
	}
}

func TestBuildEntity_Deterministic(t *testing.T) {
	opts := BuildOptions{
		Type:     model.EntityTypeWearable,
		Pointers: []string{"urn:a"},
		Files: map[string][]byte{
			"z": []byte("z"), "y": []byte("y"), "x": []byte("x"), "w": []byte("w"),
		},
		Metadata:    map[string]any{"name": "w"},
		Concurrency: 4,
		Now:         func() time.Time { return time.UnixMilli(1234) },
	}
	first, err := BuildEntity(context.Background(), opts)
	if err != nil {
		t.Fatalf("BuildEntity: %v", err)
	}
	for i := 0; i < 10; i++ {
		again, err := BuildEntity(context.Background(), opts)
		if err != nil {
			t.Fatalf("BuildEntity: %v", err)
		}
		if again.EntityID != first.EntityID {
			t.Fatalf("run %d: id %s != %s", i, again.EntityID, first.EntityID)
		}
	}
	if first.Entity.Timestamp != 1234 {
		t.Fatalf("timestamp must default to Now(), got %d", first.Entity.Timestamp)
	}
}

func TestBuildEntity_NoPointers(t *testing.T) {
	_, err := BuildEntity(context.Background(), BuildOptions{
		Type:  model.EntityTypeScene,
		Files: map[string][]byte{"a": []byte("a")},
	})
	var e *model.Error
	if !errors.As(err, &e) || e.Kind != model.KindValidation || e.Message != entity.ErrNoPointers {
		t.Fatalf("expected pointer validation error, got %v", err)
	}
}

func TestBuildEntity_CaseCollision(t *testing.T) {
	_, err := BuildEntity(context.Background(), BuildOptions{
		Type:      model.EntityTypeScene,
		Pointers:  []string{"0,0"},
		Files:     map[string][]byte{"A": []byte("1"), "a": []byte("2")},
		Timestamp: 1,
	})
	if !model.IsKind(err, model.KindValidation) {
		t.Fatalf("expected collision error, got %v", err)
	}
}

func TestBuildEntity_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := BuildEntity(ctx, BuildOptions{
		Type:      model.EntityTypeScene,
		Pointers:  []string{"0,0"},
		Files:     map[string][]byte{"a": []byte("a"), "b": []byte("b")},
		Timestamp: 1,
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestBuildEntityWithoutNewFiles(t *testing.T) {
	hash := contenthash.Hash([]byte("already deployed"))
	data, err := BuildEntityWithoutNewFiles(WithoutNewFilesOptions{
		Type:      model.EntityTypeProfile,
		Pointers:  []string{"0xabc"},
		Hashes:    map[string]string{"face.png": hash},
		Timestamp: 7,
	})
	if err != nil {
		t.Fatalf("BuildEntityWithoutNewFiles: %v", err)
	}
	if len(data.Files) != 1 || data.Manifest() == nil {
		t.Fatalf("only the manifest should be included, got %d files", len(data.Files))
	}
	if data.Entity.ContentHash("face.png") != hash {
		t.Fatalf("content must reference the deployed hash")
	}
}

func TestFilesToUpload(t *testing.T) {
	h1Bytes, h2Bytes := []byte("h1"), []byte("h2")
	data, err := BuildEntity(context.Background(), BuildOptions{
		Type:      model.EntityTypeScene,
		Pointers:  []string{"0,0"},
		Files:     map[string][]byte{"one": h1Bytes, "two": h2Bytes},
		Timestamp: 1,
	})
	if err != nil {
		t.Fatalf("BuildEntity: %v", err)
	}
	h1, h2 := contenthash.Hash(h1Bytes), contenthash.Hash(h2Bytes)

	available := map[string]struct{}{h1: {}, data.EntityID: {}}
	upload := FilesToUpload(data, available)

	if _, ok := upload[h1]; ok {
		t.Fatalf("available content must be skipped")
	}
	if _, ok := upload[h2]; !ok {
		t.Fatalf("missing content must be uploaded")
	}
	if _, ok := upload[data.EntityID]; !ok {
		t.Fatalf("the manifest must always be uploaded")
	}

	if got := Hashes(data); len(got) != 3 {
		t.Fatalf("Hashes: %v", got)
	}
}
