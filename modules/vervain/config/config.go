// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

// Package config persists which backend a repository was created with, the
// way modules/zeta/config persists a ServerConfig: a TOML file decoded with
// github.com/BurntSushi/toml, with defaults set before Decode so a sparse
// file only overrides what it mentions.
package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// Kind names a pluggable blob-store backend (spec.md §6).
type Kind string

const (
	KindLocal  Kind = "local"
	KindMemory Kind = "memory"
	KindGCS    Kind = "gcs"
	KindS3     Kind = "s3"
)

// BlobConfig selects and parameterizes one store.Blob implementation. Only
// the fields relevant to Kind are meaningful; the rest are ignored.
type BlobConfig struct {
	Kind Kind `toml:"kind"`

	// Local
	Dir string `toml:"dir,omitempty"`

	// GCS
	Bucket string `toml:"bucket,omitempty"`
	Prefix string `toml:"prefix,omitempty"`

	// S3
	Region   string `toml:"region,omitempty"`
	Endpoint string `toml:"endpoint,omitempty"`
}

// RepoConfig is the persisted, repository-level configuration: which
// backend stores objects, which stores the operation log, cache sizing, and
// the compression algorithm label (spec.md §6's "each store independently
// pluggable" requirement, made concrete enough to round-trip through disk).
type RepoConfig struct {
	ObjectStore BlobConfig `toml:"object_store"`
	OpStore     BlobConfig `toml:"op_store"`

	CompressionALGO  string `toml:"compression_algo,omitempty"`
	CacheNumCounters int64  `toml:"cache_num_counters,omitempty"`
	CacheMaxCost     int64  `toml:"cache_max_cost,omitempty"`
}

// DefaultRepoConfig is what a freshly initialized repository gets when the
// caller does not specify a backend: everything local, sized for a typical
// developer checkout.
func DefaultRepoConfig(dir string) RepoConfig {
	return RepoConfig{
		ObjectStore:      BlobConfig{Kind: KindLocal, Dir: dir + "/objects"},
		OpStore:          BlobConfig{Kind: KindLocal, Dir: dir + "/oplog"},
		CompressionALGO:  "zstd",
		CacheNumCounters: 1_000_000,
		CacheMaxCost:     100_000,
	}
}

// Load reads and decodes a RepoConfig from path, starting from
// DefaultRepoConfig(dir) so a config file only needs to mention what differs
// from the defaults.
func Load(path, dir string) (RepoConfig, error) {
	cfg := DefaultRepoConfig(dir)
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return RepoConfig{}, fmt.Errorf("config: decode %s: %w", path, err)
	}
	return cfg, nil
}

// Save writes cfg to path as TOML, creating the file if needed.
func Save(path string, cfg RepoConfig) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("config: create %s: %w", path, err)
	}
	defer f.Close()
	if err := toml.NewEncoder(f).Encode(cfg); err != nil {
		return fmt.Errorf("config: encode %s: %w", path, err)
	}
	return nil
}
