// Package deployment prepares the file set of a deployment: it hashes every
// file, builds the entity manifest and deduplicates content by hash.
package deployment

import (
	"context"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/decentraland/catalyst-client-sub000/contenthash"
	"github.com/decentraland/catalyst-client-sub000/entity"
	"github.com/decentraland/catalyst-client-sub000/model"
)

// PreparationData is everything a server needs for a deployment except the
// auth chain. Files maps content hash to bytes and always contains the
// manifest under EntityID.
type PreparationData struct {
	EntityID string
	Entity   model.Entity
	Files    map[string][]byte
}

// Data is a signed deployment ready for upload.
type Data struct {
	PreparationData
	AuthChain model.AuthChain
}

// WithAuthChain attaches an auth chain to the prepared deployment.
func (p PreparationData) WithAuthChain(chain model.AuthChain) Data {
	return Data{PreparationData: p, AuthChain: chain}
}

// Manifest returns the serialized entity manifest.
func (p PreparationData) Manifest() []byte {
	return p.Files[p.EntityID]
}

// BuildOptions describes a deployment built from raw files.
type BuildOptions struct {
	Type     model.EntityType
	Pointers []string
	// Files maps content file name to bytes.
	Files    map[string][]byte
	Metadata any
	// Timestamp is in epoch milliseconds. Zero means Now().
	Timestamp int64
	// Concurrency bounds parallel hashing. Zero means GOMAXPROCS.
	Concurrency int
	Now         func() time.Time
}

// BuildEntity hashes files, builds the entity and returns the deduplicated
// file set keyed by hash.
func BuildEntity(ctx context.Context, opts BuildOptions) (PreparationData, error) {
	if err := entity.CheckPointers(opts.Pointers); err != nil {
		return PreparationData{}, err
	}

	content, err := hashFiles(ctx, opts.Files, opts.Concurrency)
	if err != nil {
		return PreparationData{}, err
	}

	e, manifest, err := entity.BuildEntityAndFile(entity.BuildOptions{
		Type:      opts.Type,
		Pointers:  opts.Pointers,
		Timestamp: timestamp(opts.Timestamp, opts.Now),
		Content:   content,
		Metadata:  opts.Metadata,
	})
	if err != nil {
		return PreparationData{}, err
	}

	files := make(map[string][]byte, len(content)+1)
	for _, c := range content {
		files[c.Hash] = opts.Files[c.File]
	}
	files[e.ID] = manifest.Content

	return PreparationData{EntityID: e.ID, Entity: e, Files: files}, nil
}

// WithoutNewFilesOptions describes a deployment that only references content
// already stored by the server.
type WithoutNewFilesOptions struct {
	Type     model.EntityType
	Pointers []string
	// Hashes maps content file name to an already deployed hash.
	Hashes    map[string]string
	Metadata  any
	Timestamp int64
	Now       func() time.Time
}

// BuildEntityWithoutNewFiles builds an entity whose content points at hashes
// the server already has. The returned file set only holds the manifest.
func BuildEntityWithoutNewFiles(opts WithoutNewFilesOptions) (PreparationData, error) {
	names := make([]string, 0, len(opts.Hashes))
	for name := range opts.Hashes {
		names = append(names, name)
	}
	sort.Strings(names)

	content := make([]model.ContentMapping, 0, len(names))
	for _, name := range names {
		content = append(content, model.ContentMapping{File: name, Hash: opts.Hashes[name]})
	}

	e, manifest, err := entity.BuildEntityAndFile(entity.BuildOptions{
		Type:      opts.Type,
		Pointers:  opts.Pointers,
		Timestamp: timestamp(opts.Timestamp, opts.Now),
		Content:   content,
		Metadata:  opts.Metadata,
	})
	if err != nil {
		return PreparationData{}, err
	}
	return PreparationData{
		EntityID: e.ID,
		Entity:   e,
		Files:    map[string][]byte{e.ID: manifest.Content},
	}, nil
}

// FilesToUpload returns the subset of data's files that must be transmitted:
// every file whose hash is not in available, plus the manifest, which servers
// use as the deployment trigger and is always sent.
func FilesToUpload(data PreparationData, available map[string]struct{}) map[string][]byte {
	out := make(map[string][]byte, len(data.Files))
	for hash, b := range data.Files {
		if _, ok := available[hash]; ok && hash != data.EntityID {
			continue
		}
		out[hash] = b
	}
	return out
}

// Hashes returns the hashes of data's files in sorted order.
func Hashes(data PreparationData) []string {
	out := make([]string, 0, len(data.Files))
	for hash := range data.Files {
		out = append(out, hash)
	}
	sort.Strings(out)
	return out
}

// hashFiles returns one content reference per file, sorted by name.
func hashFiles(ctx context.Context, files map[string][]byte, concurrency int) ([]model.ContentMapping, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)

	if concurrency <= 0 {
		concurrency = runtime.GOMAXPROCS(0)
	}

	out := make([]model.ContentMapping, len(names))
	sem := make(chan struct{}, concurrency)
	var wg sync.WaitGroup
	for i, name := range names {
		select {
		case <-ctx.Done():
			wg.Wait()
			return nil, ctx.Err()
		case sem <- struct{}{}:
		}
		wg.Add(1)
		go func(i int, name string) {
			defer wg.Done()
			defer func() { <-sem }()
			out[i] = model.ContentMapping{File: name, Hash: contenthash.Hash(files[name])}
		}(i, name)
	}
	wg.Wait()
	return out, nil
}

func timestamp(ts int64, now func() time.Time) int64 {
	if ts != 0 {
		return ts
	}
	if now == nil {
		now = time.Now
	}
	return now().UnixMilli()
}
