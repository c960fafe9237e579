/*
Package log provides structured logging for the node database using zerolog.

The log package wraps zerolog to give callers JSON or console-formatted
output with a single global level, plus a handful of context-logger helpers
scoped to the concepts pkg/db deals in: block height, state row, asset ID,
BBS channel.

# Architecture

	┌──────────────────── LOGGING SYSTEM ──────────────────────┐
	│                                                            │
	│  ┌────────────────────────────────────────────┐          │
	│  │            Global Logger                    │          │
	│  │  - zerolog.Logger instance                  │          │
	│  │  - Initialized via log.Init()               │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │           Configuration                     │          │
	│  │  - Level: debug/info/warn/error             │          │
	│  │  - JSONOutput: JSON or console (human)      │          │
	│  │  - Output: any io.Writer, default stdout    │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │         Context Loggers                     │          │
	│  │  - WithComponent("db")                      │          │
	│  │  - WithHeight(height)                        │          │
	│  │  - WithStateRow(row)                         │          │
	│  │  - WithAsset(assetID)                        │          │
	│  │  - WithChannel(bbsChannel)                   │          │
	│  └────────────────────────────────────────────┘           │
	└────────────────────────────────────────────────────────┘

# Usage

	import "github.com/cuemby/nodedb/pkg/log"

	log.Init(log.Config{
		Level:      log.InfoLevel,
		JSONOutput: true,
	})

	log.Info("node database opened")

	heightLog := log.WithHeight(12345)
	heightLog.Info().Msg("cursor advanced")

	stateLog := log.WithStateRow(row)
	stateLog.Warn().Err(err).Msg("state failed integrity check")

# Integration Points

This package is used by:

  - pkg/db: Open creates a "db" component logger; pkg/db emits no log
    lines through it
  - cmd/nodedb: initializes the global logger from CLI flags before running
    any subcommand
*/
package log
