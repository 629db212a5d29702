// Package config loads the YAML configuration shared by the catalyst CLI and
// the content cache daemon.
//
// Example:
//
//	server: https://peer.decentraland.org
//	request:
//	  timeout: 30s
//	  attempts: 3
//	  wait: 500ms
//	fragment:
//	  max_url_length: 2048
//	concurrency: 4
//	partial_failure: best-effort
//	cache:
//	  write_policy: first
//	  backends:
//	    - name: localfs
//	      settings: {localfs-dir: /var/cache/catalyst}
//	    - name: grpc
//	      settings: {grpc-target: "127.0.0.1:7777"}
//	discovery:
//	  quorum: 3
//	log:
//	  level: debug
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/decentraland/catalyst-client-sub000/fragment"
	"github.com/decentraland/catalyst-client-sub000/paginate"
	"github.com/decentraland/catalyst-client-sub000/transport"
)

// EnvVar names the environment variable holding the config path.
const EnvVar = "CATALYST_CONFIG"

// DefaultServer is used when no server is configured.
const DefaultServer = "https://peer.decentraland.org"

type Config struct {
	Server         string          `yaml:"server"`
	UserAgent      string          `yaml:"user_agent,omitempty"`
	Request        RequestConfig   `yaml:"request"`
	Fragment       FragmentConfig  `yaml:"fragment"`
	Concurrency    int             `yaml:"concurrency"`
	PartialFailure string          `yaml:"partial_failure"`
	Cache          CacheConfig     `yaml:"cache"`
	Discovery      DiscoveryConfig `yaml:"discovery"`
	Log            LogConfig       `yaml:"log"`
}

type RequestConfig struct {
	Timeout  time.Duration `yaml:"timeout"`
	Attempts int           `yaml:"attempts"`
	Wait     time.Duration `yaml:"wait"`
}

// Options converts the request settings to transport options.
func (r RequestConfig) Options() transport.Options {
	return transport.Options{Timeout: r.Timeout, Attempts: r.Attempts, WaitTime: r.Wait}
}

type FragmentConfig struct {
	MaxURLLength int  `yaml:"max_url_length"`
	Strict       bool `yaml:"strict"`
}

type DiscoveryConfig struct {
	Peers  []string `yaml:"peers,omitempty"`
	Quorum int      `yaml:"quorum"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{}.WithDefaults()
}

// Load reads and validates the YAML file at path, filling unset fields with
// defaults.
func Load(path string) (Config, error) {
	if path == "" {
		return Config{}, errors.New("config: empty config path")
	}
	f, err := os.Open(path)
	if err != nil {
		return Config{}, err
	}
	defer f.Close()
	cfg, err := Parse(f)
	if err != nil {
		return Config{}, fmt.Errorf("config: %s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes YAML from r. Unknown keys are rejected.
func Parse(r io.Reader) (Config, error) {
	var cfg Config
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, err
	}
	cfg = cfg.WithDefaults()
	return cfg, cfg.Validate()
}

// Resolve loads the config named by flagPath, falling back to $CATALYST_CONFIG
// and then to Default.
func Resolve(flagPath string) (Config, error) {
	path := flagPath
	if path == "" {
		path = os.Getenv(EnvVar)
	}
	if path == "" {
		return Default(), nil
	}
	return Load(path)
}

// WithDefaults fills zero fields.
func (c Config) WithDefaults() Config {
	if c.Server == "" {
		c.Server = DefaultServer
	}
	c.Server = strings.TrimRight(c.Server, "/")
	opts := c.Request.Options().WithDefaults()
	c.Request = RequestConfig{Timeout: opts.Timeout, Attempts: opts.Attempts, Wait: opts.WaitTime}
	if c.Fragment.MaxURLLength <= 0 {
		c.Fragment.MaxURLLength = fragment.DefaultMaxLength
	}
	if c.Concurrency <= 0 {
		c.Concurrency = paginate.DefaultConcurrency
	}
	if c.PartialFailure == "" {
		c.PartialFailure = paginate.FailFast.String()
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
	return c
}

func (c Config) Validate() error {
	u, err := url.Parse(c.Server)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("config: invalid server %q", c.Server)
	}
	if _, err := paginate.ParsePolicy(c.PartialFailure); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if c.Fragment.MaxURLLength <= fragment.PaginationReserve+len(c.Server) {
		return fmt.Errorf("config: max_url_length %d leaves no room for query parameters", c.Fragment.MaxURLLength)
	}
	if len(c.Cache.Backends) > 0 {
		if err := c.Cache.Validate(); err != nil {
			return err
		}
	}
	if _, err := c.Log.level(); err != nil {
		return err
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("config: invalid log format %q", c.Log.Format)
	}
	return nil
}

// Policy returns the parsed partial-failure policy.
func (c Config) Policy() paginate.Policy {
	p, _ := paginate.ParsePolicy(c.PartialFailure)
	return p
}

// Fragmenter returns the fragmenter described by the config.
func (c Config) Fragmenter(onOversized func(name, value string, length int)) fragment.Fragmenter {
	return fragment.Fragmenter{MaxLength: c.Fragment.MaxURLLength, Strict: c.Fragment.Strict, OnOversized: onOversized}
}

func (l LogConfig) level() (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(l.Level)); err != nil {
		return 0, fmt.Errorf("config: invalid log level %q", l.Level)
	}
	return lvl, nil
}

// NewLogger builds the slog logger described by l, writing to w.
func (l LogConfig) NewLogger(w io.Writer) *slog.Logger {
	lvl, err := l.level()
	if err != nil {
		lvl = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: lvl}
	if l.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
