package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// NodeConfig is the small set of database-affecting settings a node process
// loads once at startup, following the teacher's YAML-manifest pattern
// (cmd/warren/apply.go) rather than inventing a new config format: a flat
// YAML document read once, with CLI flags overriding whatever it sets.
type NodeConfig struct {
	DataDir string `yaml:"dataDir"`

	// CacheSizeMax bounds the content-addressed cache (pkg/db's
	// CacheState.SizeMax), in bytes.
	CacheSizeMax uint64 `yaml:"cacheSizeMax"`

	// FossilHeight and TxoLoHeight mirror the thresholds a node keeps in
	// pkg/db's parameter store (ParamFossilHeight, ParamHeightTxoLo):
	// below FossilHeight, perishable/rollback bodies may be dropped; below
	// TxoLoHeight, spent TXOs may be compacted away. They are parsed from
	// the YAML file only: resolveOptions does not pass them to db.Open,
	// and this command never writes them into the parameter store.
	FossilHeight uint64 `yaml:"fossilHeight"`
	TxoLoHeight  uint64 `yaml:"txoLoHeight"`

	// GenesisChecksum pins the genesis configuration this database was
	// created for (db.Options.CfgChecksum); opening an existing database
	// stamped with a different value fails loudly rather than silently
	// mixing two networks' data.
	GenesisChecksum uint64 `yaml:"genesisChecksum"`
}

// loadNodeConfig reads a NodeConfig from a YAML file. A missing path is not
// an error: callers fall back to flag defaults when none was given.
func loadNodeConfig(path string) (NodeConfig, error) {
	if path == "" {
		return NodeConfig{}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return NodeConfig{}, fmt.Errorf("read config: %w", err)
	}
	var cfg NodeConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return NodeConfig{}, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}
