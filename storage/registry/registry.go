// Package registry links storage backends into binaries and opens them by
// name, either from command-line flags or from config settings.
package registry

import (
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/spf13/pflag"

	"github.com/decentraland/catalyst-client-sub000/storage"
)

// Setting declares one backend option. The same key is used as a flag name
// ("--localfs-dir") and as a config settings key.
type Setting struct {
	Key     string
	Default string
	Help    string
}

// Backend is a build-time plugin that can open a storage.Store.
//
// Backends typically register themselves in init():
//
//	registry.MustRegister(registry.Backend{ ... })
type Backend struct {
	Name        string
	Description string
	Usage       Usage
	Settings    []Setting

	// Open constructs the store from resolved settings. It returns an
	// optional close function.
	Open func(s Settings) (storage.Store, func() error, error)
}

var (
	mu       sync.RWMutex
	backends = map[string]Backend{}
)

// Register registers a backend.
func Register(b Backend) error {
	if b.Name == "" {
		return fmt.Errorf("registry: backend name is required")
	}
	if b.Open == nil {
		return fmt.Errorf("registry: backend %q missing Open", b.Name)
	}
	if b.Usage == 0 {
		return fmt.Errorf("registry: backend %q missing Usage", b.Name)
	}

	mu.Lock()
	defer mu.Unlock()
	if _, exists := backends[b.Name]; exists {
		return fmt.Errorf("registry: backend %q already registered", b.Name)
	}
	backends[b.Name] = b
	return nil
}

// MustRegister is like Register but panics on error.
func MustRegister(b Backend) {
	if err := Register(b); err != nil {
		panic(err)
	}
}

// List returns backends matching usage, sorted by name.
func List(usage Usage) []Backend {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]Backend, 0, len(backends))
	for _, b := range backends {
		if b.Usage.allows(usage) {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Names returns backend names matching usage, sorted.
func Names(usage Usage) []string {
	bs := List(usage)
	n := make([]string, 0, len(bs))
	for _, b := range bs {
		n = append(n, b.Name)
	}
	return n
}

// Flags holds the values bound by RegisterFlags.
type Flags struct {
	values map[string]*string
}

// RegisterFlags adds a string flag for every setting of every backend
// matching usage. Backends sharing a setting key share the flag.
func RegisterFlags(fs *pflag.FlagSet, usage Usage) *Flags {
	f := &Flags{values: map[string]*string{}}
	for _, b := range List(usage) {
		for _, s := range b.Settings {
			if _, ok := f.values[s.Key]; ok {
				continue
			}
			f.values[s.Key] = fs.String(s.Key, s.Default, s.Help+" (for --backend="+b.Name+")")
		}
	}
	return f
}

// Settings returns the flag values as settings.
func (f *Flags) Settings() Settings {
	out := make(Settings, len(f.values))
	for k, v := range f.values {
		out[k] = *v
	}
	return out
}

// Open opens the named backend with settings. Missing keys take the
// backend's declared defaults.
func Open(name string, usage Usage, settings Settings) (storage.Store, func() error, error) {
	mu.RLock()
	b, ok := backends[name]
	mu.RUnlock()
	if !ok {
		return nil, nil, fmt.Errorf("registry: unknown backend %q", name)
	}
	if !b.Usage.allows(usage) {
		return nil, nil, fmt.Errorf("registry: backend %q not supported in this binary", name)
	}
	resolved := make(Settings, len(b.Settings))
	for _, s := range b.Settings {
		resolved[s.Key] = s.Default
	}
	for k, v := range settings {
		resolved[k] = v
	}
	return b.Open(resolved)
}

// Settings are backend options keyed by setting name.
type Settings map[string]string

func (s Settings) String(key string) string { return s[key] }

// Duration parses key as a time.Duration; empty means zero.
func (s Settings) Duration(key string) (time.Duration, error) {
	v := s[key]
	if v == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("registry: setting %s: %w", key, err)
	}
	return d, nil
}

// Int parses key as an integer; empty means zero.
func (s Settings) Int(key string) (int, error) {
	v := s[key]
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("registry: setting %s: %w", key, err)
	}
	return n, nil
}
