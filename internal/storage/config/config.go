// Package config holds the small set of knobs needed to stand up a store:
// where its data file lives, how many frames its buffer pool keeps
// resident, and how wide its B+ tree nodes are.
package config

import "github.com/gopherlabs/bptreestore/internal/storage/util"

// Config holds the parameters a store instance is built from.
type Config struct {
	DataFile        string
	PageSize        int
	PoolSize        int
	LeafMaxSize     int
	InternalMaxSize int
}

// DefaultConfig returns sane defaults for a single-index store.
func DefaultConfig() Config {
	return Config{
		DataFile:        "bptreestore.db",
		PageSize:        util.PageSize,
		PoolSize:        128,
		LeafMaxSize:     64,
		InternalMaxSize: 64,
	}
}
