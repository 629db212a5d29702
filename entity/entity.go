// Package entity builds entity manifests and derives their content-addressed
// ids.
//
// The manifest bytes are the identity of an entity: two clients building the
// same logical manifest must produce byte-identical JSON, otherwise they
// derive different ids for the same deployment. Marshal is the single choke
// point for that serialization; every id is computed from its output.
package entity

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/decentraland/catalyst-client-sub000/contenthash"
	"github.com/decentraland/catalyst-client-sub000/model"
)

// ManifestFileName is reserved for the serialized manifest. No content file
// may use it, in any letter case.
const ManifestFileName = "entity.json"

// ErrNoPointers is the message of the validation error raised for an empty
// pointer set.
const ErrNoPointers = "entities must have at least one pointer"

// ContentFile is a named byte payload taking part in a deployment.
type ContentFile struct {
	Name    string
	Content []byte
}

// BuildOptions describes the manifest to build.
//
// Content nil omits the "content" field; a non-nil empty slice serializes as
// an empty array. Metadata nil omits the "metadata" field. Metadata given as a
// Go map is written with sorted keys; pass a json.RawMessage to keep the key
// order of a manifest built elsewhere and reproduce its id.
type BuildOptions struct {
	Type      model.EntityType
	Pointers  []string
	Timestamp int64
	Content   []model.ContentMapping
	Metadata  any
}

// wireManifest fixes the field order of the canonical form.
type wireManifest struct {
	Type      model.EntityType        `json:"type"`
	Pointers  []string                `json:"pointers"`
	Timestamp int64                   `json:"timestamp"`
	Content   *[]model.ContentMapping `json:"content,omitempty"`
	Metadata  json.RawMessage         `json:"metadata,omitempty"`
}

// BuildEntityAndFile assembles the manifest, serializes it canonically and
// derives the entity id from the bytes. It returns the entity and the
// manifest as a file named ManifestFileName.
func BuildEntityAndFile(opts BuildOptions) (model.Entity, ContentFile, error) {
	if err := CheckPointers(opts.Pointers); err != nil {
		return model.Entity{}, ContentFile{}, err
	}
	if err := CheckContentNames(opts.Content); err != nil {
		return model.Entity{}, ContentFile{}, err
	}

	metadata, err := marshalMetadata(opts.Metadata)
	if err != nil {
		return model.Entity{}, ContentFile{}, err
	}

	w := wireManifest{
		Type:      opts.Type,
		Pointers:  opts.Pointers,
		Timestamp: opts.Timestamp,
		Metadata:  metadata,
	}
	if opts.Content != nil {
		content := opts.Content
		w.Content = &content
	}

	b, err := marshalCanonical(w)
	if err != nil {
		return model.Entity{}, ContentFile{}, err
	}

	e := model.Entity{
		ID:        contenthash.Hash(b),
		Type:      opts.Type,
		Pointers:  append([]string(nil), opts.Pointers...),
		Timestamp: opts.Timestamp,
		Content:   append([]model.ContentMapping(nil), opts.Content...),
		Metadata:  metadata,
	}
	return e, ContentFile{Name: ManifestFileName, Content: b}, nil
}

// Marshal returns the canonical manifest bytes of opts without deriving an id.
func Marshal(opts BuildOptions) ([]byte, error) {
	_, f, err := BuildEntityAndFile(opts)
	if err != nil {
		return nil, err
	}
	return f.Content, nil
}

// ParseManifest decodes manifest bytes and returns the entity they describe,
// with the id derived from b itself.
func ParseManifest(b []byte) (model.Entity, error) {
	var w wireManifest
	if err := json.Unmarshal(b, &w); err != nil {
		return model.Entity{}, model.NewValidationError(fmt.Sprintf("invalid entity manifest: %v", err))
	}
	if err := CheckPointers(w.Pointers); err != nil {
		return model.Entity{}, err
	}
	e := model.Entity{
		ID:        contenthash.Hash(b),
		Type:      w.Type,
		Pointers:  w.Pointers,
		Timestamp: w.Timestamp,
		Metadata:  w.Metadata,
	}
	if w.Content != nil {
		e.Content = *w.Content
	}
	return e, nil
}

// CheckPointers returns the validation error raised for an empty pointer set.
func CheckPointers(pointers []string) error {
	if len(pointers) == 0 {
		return model.NewValidationError(ErrNoPointers)
	}
	return nil
}

// CheckContentNames rejects content lists whose file names collide when
// compared case-insensitively, or that use the reserved manifest name.
//
// Some platforms serving catalyst content are case-insensitive, so "A" and
// "a" address the same file there.
func CheckContentNames(content []model.ContentMapping) error {
	seen := make(map[string]string, len(content))
	for _, c := range content {
		if c.File == "" {
			return model.NewValidationError("content file name must not be empty")
		}
		key := strings.ToLower(c.File)
		if key == ManifestFileName {
			return model.NewValidationError(fmt.Sprintf("content file name %q is reserved", c.File))
		}
		if prev, ok := seen[key]; ok {
			return model.NewValidationError(fmt.Sprintf("content file names %q and %q collide", prev, c.File))
		}
		seen[key] = c.File
	}
	return nil
}

func marshalMetadata(v any) (json.RawMessage, error) {
	switch m := v.(type) {
	case nil:
		return nil, nil
	case json.RawMessage:
		if len(m) == 0 {
			return nil, nil
		}
	}
	b, err := marshalCanonical(v)
	if err != nil {
		return nil, model.NewValidationError(fmt.Sprintf("metadata is not serializable: %v", err))
	}
	return b, nil
}

// marshalCanonical encodes v compactly without HTML escaping, matching the
// output of a plain JSON.stringify for the same logical value. Strings must be
// valid UTF-8; encoding/json replaces invalid bytes with U+FFFD.
func marshalCanonical(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return unescapeLineSeparators(bytes.TrimSuffix(buf.Bytes(), []byte("\n"))), nil
}

// unescapeLineSeparators writes the \u2028 and \u2029 escapes that
// encoding/json always emits as raw UTF-8, the way JSON.stringify does.
func unescapeLineSeparators(b []byte) []byte {
	if !bytes.Contains(b, []byte(`\u202`)) {
		return b
	}
	out := make([]byte, 0, len(b))
	for i := 0; i < len(b); i++ {
		if b[i] != '\\' || i+1 == len(b) {
			out = append(out, b[i])
			continue
		}
		if b[i+1] == 'u' && i+6 <= len(b) {
			switch string(b[i+2 : i+6]) {
			case "2028":
				out = append(out, "\u2028"...)
				i += 5
				continue
			case "2029":
				out = append(out, "\u2029"...)
				i += 5
				continue
			}
		}
		// Copy any other escape whole so an escaped backslash is never
		// mistaken for the start of a separator escape.
		out = append(out, b[i], b[i+1])
		i++
	}
	return out
}
