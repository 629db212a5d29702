// Package bundle exports a signed deployment to a single deterministic archive
// and imports it back, so a deployment can be built offline and uploaded
// later from another machine.
//
// A bundle is a TAR stream, optionally zstd-compressed, holding:
//
//	index.cbor       deployment index (entity id, auth chain, file list)
//	files/<hash>     one entry per content file, the manifest included
//
// Entry order is lexicographic and TAR headers are normalized, so the same
// deployment always produces the same bytes. Import verifies every file
// against its hash before returning.
package bundle

import (
	"archive/tar"
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/klauspost/compress/zstd"

	"github.com/decentraland/catalyst-client-sub000/contenthash"
	"github.com/decentraland/catalyst-client-sub000/deployment"
	"github.com/decentraland/catalyst-client-sub000/entity"
	"github.com/decentraland/catalyst-client-sub000/model"
)

// FormatVersion is the current index schema version.
const FormatVersion = 1

const (
	indexName   = "index.cbor"
	filesPrefix = "files/"
)

// zstdMagic starts every zstd frame.
var zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}

var epoch0 = time.Unix(0, 0).UTC()

var (
	encMode cbor.EncMode
	decMode cbor.DecMode

	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
)

func init() {
	var err error
	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("bundle: CBOR encoder initialization failed: " + err.Error())
	}
	decMode, err = cbor.DecOptions{}.DecMode()
	if err != nil {
		panic("bundle: CBOR decoder initialization failed: " + err.Error())
	}
	zstdEncoder, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		panic("bundle: zstd encoder initialization failed: " + err.Error())
	}
	zstdDecoder, err = zstd.NewReader(nil)
	if err != nil {
		panic("bundle: zstd decoder initialization failed: " + err.Error())
	}
}

type index struct {
	Version   int             `cbor:"version"`
	EntityID  string          `cbor:"entityId"`
	AuthChain model.AuthChain `cbor:"authChain,omitempty"`
	Files     []indexFile     `cbor:"files"`
}

type indexFile struct {
	Hash string `cbor:"hash"`
	Size int    `cbor:"size"`
}

// ExportOptions controls bundle export behavior.
type ExportOptions struct {
	// Compress wraps the TAR stream in a zstd frame.
	Compress bool
}

// Export writes data as a bundle to w.
func Export(w io.Writer, data deployment.Data, opts ExportOptions) error {
	if data.EntityID == "" {
		return model.NewValidationError("bundle: deployment has no entity id")
	}
	if _, ok := data.Files[data.EntityID]; !ok {
		return model.NewValidationError("bundle: deployment is missing its entity manifest")
	}

	hashes := make([]string, 0, len(data.Files))
	for h := range data.Files {
		hashes = append(hashes, h)
	}
	sort.Strings(hashes)

	idx := index{Version: FormatVersion, EntityID: data.EntityID, AuthChain: data.AuthChain}
	for _, h := range hashes {
		b := data.Files[h]
		if err := contenthash.Verify(b, h, "bundle export"); err != nil {
			return err
		}
		idx.Files = append(idx.Files, indexFile{Hash: h, Size: len(b)})
	}
	encodedIndex, err := encMode.Marshal(idx)
	if err != nil {
		return fmt.Errorf("bundle: encode index: %w", err)
	}

	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)
	// "files/..." sorts before "index.cbor".
	for _, h := range hashes {
		if err := writeFile(tw, filesPrefix+h, data.Files[h]); err != nil {
			return err
		}
	}
	if err := writeFile(tw, indexName, encodedIndex); err != nil {
		return err
	}
	if err := tw.Close(); err != nil {
		return err
	}

	out := buf.Bytes()
	if opts.Compress {
		out = zstdEncoder.EncodeAll(out, nil)
	}
	_, err = w.Write(out)
	return err
}

// ImportOptions controls bundle import behavior.
type ImportOptions struct {
	// IgnoreUnknown skips entries outside the bundle layout. By default they
	// are an error.
	IgnoreUnknown bool
}

// Import reads a bundle, compressed or not, and returns the deployment it
// holds. Every file is verified against its hash, the index must list exactly
// the files present, and the manifest must parse.
func Import(r io.Reader, opts ImportOptions) (deployment.Data, error) {
	br := bufio.NewReader(r)
	tr, err := tarReader(br)
	if err != nil {
		return deployment.Data{}, err
	}

	files := map[string][]byte{}
	var idx *index
	for {
		h, err := tr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return deployment.Data{}, fmt.Errorf("bundle: read entry: %w", err)
		}
		name := cleanTarPath(h.Name)
		if name == "" {
			return deployment.Data{}, fmt.Errorf("bundle: invalid entry path: %q", h.Name)
		}
		if h.Typeflag != tar.TypeReg {
			if opts.IgnoreUnknown {
				continue
			}
			return deployment.Data{}, fmt.Errorf("bundle: unexpected tar entry type: %v (%s)", h.Typeflag, name)
		}

		switch {
		case name == indexName:
			b, err := io.ReadAll(tr)
			if err != nil {
				return deployment.Data{}, err
			}
			var decoded index
			if err := decMode.Unmarshal(b, &decoded); err != nil {
				return deployment.Data{}, fmt.Errorf("bundle: decode index: %w", err)
			}
			idx = &decoded
		case strings.HasPrefix(name, filesPrefix):
			hash := strings.TrimPrefix(name, filesPrefix)
			if _, dup := files[hash]; dup {
				return deployment.Data{}, fmt.Errorf("bundle: duplicate file entry: %s", hash)
			}
			b, err := io.ReadAll(tr)
			if err != nil {
				return deployment.Data{}, err
			}
			if err := contenthash.Verify(b, hash, "bundle "+name); err != nil {
				return deployment.Data{}, err
			}
			files[hash] = b
		default:
			if opts.IgnoreUnknown {
				continue
			}
			return deployment.Data{}, fmt.Errorf("bundle: unknown entry: %s", name)
		}
	}

	if idx == nil {
		return deployment.Data{}, fmt.Errorf("bundle: missing %s", indexName)
	}
	if idx.Version != FormatVersion {
		return deployment.Data{}, fmt.Errorf("bundle: unsupported format version %d", idx.Version)
	}
	if len(idx.Files) != len(files) {
		return deployment.Data{}, fmt.Errorf("bundle: index lists %d files, archive holds %d", len(idx.Files), len(files))
	}
	for _, f := range idx.Files {
		b, ok := files[f.Hash]
		if !ok {
			return deployment.Data{}, fmt.Errorf("bundle: index references missing file %s", f.Hash)
		}
		if len(b) != f.Size {
			return deployment.Data{}, fmt.Errorf("bundle: file %s is %d bytes, index says %d", f.Hash, len(b), f.Size)
		}
	}

	manifest, ok := files[idx.EntityID]
	if !ok {
		return deployment.Data{}, fmt.Errorf("bundle: missing entity manifest %s", idx.EntityID)
	}
	ent, err := entity.ParseManifest(manifest)
	if err != nil {
		return deployment.Data{}, err
	}

	prep := deployment.PreparationData{EntityID: idx.EntityID, Entity: ent, Files: files}
	return prep.WithAuthChain(idx.AuthChain), nil
}

func tarReader(br *bufio.Reader) (*tar.Reader, error) {
	head, err := br.Peek(len(zstdMagic))
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	if !bytes.Equal(head, zstdMagic) {
		return tar.NewReader(br), nil
	}
	compressed, err := io.ReadAll(br)
	if err != nil {
		return nil, err
	}
	raw, err := zstdDecoder.DecodeAll(compressed, nil)
	if err != nil {
		return nil, fmt.Errorf("bundle: zstd decompress: %w", err)
	}
	return tar.NewReader(bytes.NewReader(raw)), nil
}

func writeFile(tw *tar.Writer, name string, content []byte) error {
	hdr := &tar.Header{
		Name:     name,
		Mode:     0o644,
		Size:     int64(len(content)),
		ModTime:  epoch0,
		Typeflag: tar.TypeReg,
		Format:   tar.FormatUSTAR,
	}
	if err := tw.WriteHeader(hdr); err != nil {
		return err
	}
	_, err := tw.Write(content)
	return err
}

func cleanTarPath(name string) string {
	name = strings.TrimSpace(name)
	name = strings.ReplaceAll(name, "\\", "/")
	name = strings.TrimPrefix(name, "./")
	name = strings.TrimPrefix(name, "/")
	if name == "" {
		return ""
	}
	for _, part := range strings.Split(name, "/") {
		if part == "" || part == "." || part == ".." {
			return ""
		}
	}
	return name
}
