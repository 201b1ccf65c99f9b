// Copyright 2026 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

// Package base holds the configuration shared by the metadata layer's
// components.
package base

import (
	"os"
	"time"

	"github.com/cockroachdb/errors"
	humanize "github.com/dustin/go-humanize"
	"gopkg.in/yaml.v2"
)

// Defaults of Config.
const (
	DefaultCacheCapacity      = 1024
	DefaultCacheTTL           = 5 * time.Minute
	DefaultChangeRetention    = 10000
	DefaultMaxIndexKeysPerRow = 10000
	DefaultIndexKeySize       = ByteSize(64 << 10)
	DefaultScanBatchSize      = 1000
)

// Storage engine names.
const (
	EngineInMem  = "in-mem"
	EnginePebble = "pebble"
)

// ByteSize is a size in bytes. In YAML it may be written as a plain number
// or human readably, e.g. "64KiB" or "1MB".
type ByteSize int64

// String formats the size with IEC units.
func (b ByteSize) String() string {
	if b < 0 {
		return "-" + humanize.IBytes(uint64(-b))
	}
	return humanize.IBytes(uint64(b))
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (b *ByteSize) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	n, err := humanize.ParseBytes(s)
	if err != nil {
		return errors.Wrapf(err, "invalid size %q", s)
	}
	*b = ByteSize(n)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (b ByteSize) MarshalYAML() (interface{}, error) {
	return b.String(), nil
}

// Config configures a metadata node: its storage, catalog, descriptor
// cache, index maintenance and logging.
type Config struct {
	Storage StorageConfig `yaml:"storage"`
	Catalog CatalogConfig `yaml:"catalog"`
	Cache   CacheConfig   `yaml:"cache"`
	Index   IndexConfig   `yaml:"index"`
	Log     LogConfig     `yaml:"log"`
}

// StorageConfig selects the storage engine.
type StorageConfig struct {
	// Engine is EngineInMem or EnginePebble.
	Engine string `yaml:"engine"`
	// Dir is the Pebble store directory.
	Dir string `yaml:"dir,omitempty"`
	// Sync makes commits wait for the write ahead log.
	Sync bool `yaml:"sync,omitempty"`
}

// CatalogConfig configures the metadata catalog.
type CatalogConfig struct {
	// ChangeRetention is the number of change list entries kept after each
	// mutation. Zero keeps them all.
	ChangeRetention int `yaml:"change-retention"`
	// DefaultLimits apply to tables created without explicit limits.
	DefaultLimits LimitsConfig `yaml:"default-limits"`
}

// LimitsConfig are the default table limits.
type LimitsConfig struct {
	ReadUnits      int64    `yaml:"read-units,omitempty"`
	WriteUnits     int64    `yaml:"write-units,omitempty"`
	StorageGB      int64    `yaml:"storage-gb,omitempty"`
	MaxIndexes     int      `yaml:"max-indexes,omitempty"`
	MaxChildTables int      `yaml:"max-child-tables,omitempty"`
	IndexKeySize   ByteSize `yaml:"index-key-size"`
}

// CacheConfig configures the table descriptor cache.
type CacheConfig struct {
	Capacity int           `yaml:"capacity"`
	TTL      time.Duration `yaml:"ttl"`
}

// IndexConfig configures index maintenance and scans.
type IndexConfig struct {
	MaxKeysPerRow int `yaml:"max-keys-per-row"`
	ScanBatchSize int `yaml:"scan-batch-size"`
}

// LogConfig configures logging.
type LogConfig struct {
	Verbosity int32 `yaml:"verbosity,omitempty"`
}

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() Config {
	return Config{
		Storage: StorageConfig{Engine: EngineInMem},
		Catalog: CatalogConfig{
			ChangeRetention: DefaultChangeRetention,
			DefaultLimits:   LimitsConfig{IndexKeySize: DefaultIndexKeySize},
		},
		Cache: CacheConfig{Capacity: DefaultCacheCapacity, TTL: DefaultCacheTTL},
		Index: IndexConfig{
			MaxKeysPerRow: DefaultMaxIndexKeysPerRow,
			ScanBatchSize: DefaultScanBatchSize,
		},
	}
}

// LoadConfig reads a YAML configuration file over the defaults and
// validates it. Unknown keys are errors.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errors.Wrap(err, "reading configuration")
	}
	return ParseConfig(data)
}

// ParseConfig parses YAML over the defaults and validates the result.
func ParseConfig(data []byte) (Config, error) {
	c := DefaultConfig()
	if err := yaml.UnmarshalStrict(data, &c); err != nil {
		return Config{}, errors.Wrap(err, "parsing configuration")
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	switch c.Storage.Engine {
	case EngineInMem:
	case EnginePebble:
		if c.Storage.Dir == "" {
			return errors.WithHint(errors.New("storage: the pebble engine needs a directory"),
				"set storage.dir")
		}
	default:
		return errors.Newf("storage: unknown engine %q", c.Storage.Engine)
	}
	if c.Catalog.ChangeRetention < 0 {
		return errors.Newf("catalog: change-retention must not be negative, got %d", c.Catalog.ChangeRetention)
	}
	l := c.Catalog.DefaultLimits
	if l.ReadUnits < 0 || l.WriteUnits < 0 || l.StorageGB < 0 ||
		l.MaxIndexes < 0 || l.MaxChildTables < 0 || l.IndexKeySize < 0 {
		return errors.New("catalog: default limits must not be negative")
	}
	if c.Cache.Capacity <= 0 {
		return errors.Newf("cache: capacity must be positive, got %d", c.Cache.Capacity)
	}
	if c.Cache.TTL < 0 {
		return errors.Newf("cache: ttl must not be negative, got %s", c.Cache.TTL)
	}
	if c.Index.MaxKeysPerRow <= 0 {
		return errors.Newf("index: max-keys-per-row must be positive, got %d", c.Index.MaxKeysPerRow)
	}
	if c.Index.ScanBatchSize <= 0 {
		return errors.Newf("index: scan-batch-size must be positive, got %d", c.Index.ScanBatchSize)
	}
	return nil
}
