// Package server wires the Key Registry, Query & Result Queues, Worker
// Pool and Wire Protocol dispatcher into a running TCP listener (spec §4.6
// - §4.10).
package server

import (
	"time"

	"github.com/chorus-fhe/ppcnn/plan"
)

// Default* mirror the original's PPCNN_DEFAULT_* constants (spec §6).
const (
	DefaultPort               = 11111
	DefaultMaxConcurrentQueries = 128
	DefaultMaxResults         = 128
	DefaultResultLifetime     = 50000 * time.Second
	// ConnectTimeout mirrors PPCNN_TIMEOUT_SEC. The client package keeps its
	// own copy (client.DefaultConnectTimeout) for its connect retry budget;
	// nothing reads this constant.
	ConnectTimeout = 60 * time.Second
)

// Config holds the server's CLI-configurable parameters (spec §6: `-p
// port`, `-q max_concurrent_queries`, `-r max_results`, `-l
// max_result_lifetime_sec`).
type Config struct {
	Port                  int
	MaxConcurrentQueries  int
	MaxResults            int
	ResultLifetime        time.Duration
	WorkerCount           int
	DatasetsRoot          string
	OptLevel              plan.OptLevel

	// FoldGlobalPool overrides plan.Options.AlwaysFoldGlobalPool. Defaults
	// to true, matching the original's unconditional fold; the CLI's
	// --fold-global-pool flag exposes the opt-out SPEC_FULL.md's DESIGN
	// NOTES invites.
	FoldGlobalPool bool
}

// DefaultConfig returns a Config with spec §6's documented defaults.
func DefaultConfig() Config {
	return Config{
		Port:                 DefaultPort,
		MaxConcurrentQueries: DefaultMaxConcurrentQueries,
		MaxResults:           DefaultMaxResults,
		ResultLifetime:       DefaultResultLifetime,
		WorkerCount:          0, // 0 means worker.DefaultCount
		DatasetsRoot:         "./datasets",
		OptLevel:             plan.OptAll,
		FoldGlobalPool:       true,
	}
}

// Opts derives this Config's plan.Options, applying FoldGlobalPool on top
// of OptLevel's defaults.
func (c Config) Opts() plan.Options {
	opts := plan.DefaultOptions(c.OptLevel)
	opts.AlwaysFoldGlobalPool = c.FoldGlobalPool
	return opts
}
