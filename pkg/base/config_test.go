// Copyright 2026 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package base

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v2"
)

func TestDefaultConfigIsValid(t *testing.T) {
	c := DefaultConfig()
	require.NoError(t, c.Validate())
}

func TestParseConfig(t *testing.T) {
	c, err := ParseConfig([]byte(`
storage:
  engine: pebble
  dir: /data/meta
catalog:
  change-retention: 50
  default-limits:
    max-indexes: 8
    index-key-size: 1KiB
cache:
  ttl: 30s
index:
  max-keys-per-row: 100
log:
  verbosity: 2
`))
	require.NoError(t, err)
	require.Equal(t, StorageConfig{Engine: EnginePebble, Dir: "/data/meta"}, c.Storage)
	require.Equal(t, 50, c.Catalog.ChangeRetention)
	require.Equal(t, LimitsConfig{MaxIndexes: 8, IndexKeySize: 1024}, c.Catalog.DefaultLimits)
	// Unset values keep their defaults.
	require.Equal(t, CacheConfig{Capacity: DefaultCacheCapacity, TTL: 30 * time.Second}, c.Cache)
	require.Equal(t, IndexConfig{MaxKeysPerRow: 100, ScanBatchSize: DefaultScanBatchSize}, c.Index)
	require.Equal(t, int32(2), c.Log.Verbosity)
}

func TestParseConfigErrors(t *testing.T) {
	for _, tc := range []struct {
		yaml string
		err  string
	}{
		{"storage: {engine: rocks}", `unknown engine "rocks"`},
		{"storage: {engine: pebble}", "needs a directory"},
		{"cache: {capacity: 0}", "capacity must be positive"},
		{"cache: {ttl: -1s}", "ttl must not be negative"},
		{"catalog: {change-retention: -1}", "change-retention"},
		{"catalog: {default-limits: {max-indexes: -2}}", "must not be negative"},
		{"catalog: {default-limits: {index-key-size: lots}}", "invalid size"},
		{"index: {scan-batch-size: 0}", "scan-batch-size"},
		{"unknown: 1", "not found in type"},
	} {
		_, err := ParseConfig([]byte(tc.yaml))
		require.Error(t, err, tc.yaml)
		require.Contains(t, err.Error(), tc.err, tc.yaml)
	}
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tablemeta.yaml")
	require.NoError(t, os.WriteFile(path, []byte("cache:\n  capacity: 7\n"), 0644))
	c, err := LoadConfig(path)
	require.NoError(t, err)
	require.Equal(t, 7, c.Cache.Capacity)

	_, err = LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

// TestConfigRoundTrip checks that a marshaled configuration parses back to
// itself, sizes included.
func TestConfigRoundTrip(t *testing.T) {
	c := DefaultConfig()
	c.Catalog.DefaultLimits.IndexKeySize = 3 << 20
	c.Cache.TTL = 90 * time.Second
	data, err := yaml.Marshal(&c)
	require.NoError(t, err)
	require.Contains(t, string(data), "index-key-size: 3.0 MiB")
	parsed, err := ParseConfig(data)
	require.NoError(t, err)
	require.Equal(t, c, parsed)
}

func TestByteSizeString(t *testing.T) {
	require.Equal(t, "64 KiB", DefaultIndexKeySize.String())
	require.Equal(t, "-1.0 KiB", ByteSize(-1024).String())
}
