// Package cli implements the fluxstats command line.
//
// # Commands
//
// serve - Run the staleness scheduler and the dashboard:
//
//	fluxstats serve [--port 8049] [--stale-after 12h] [--schedule "@every 1h"]
//
// Checks the newest snapshot of each track hourly and collects a new one
// when it is older than the threshold. The dashboard on / shows container
// counts per image, the total container count and one utilization metric,
// and reloads when new snapshots land.
//
// collect - Take one snapshot now:
//
//	fluxstats collect utilization [--format json|yaml|table] [--dry-run]
//	fluxstats collect containers --format table
//
// Writes utilization_<timestamp>.json or docker_count_<timestamp>.json into
// the data directory and prints the snapshot. --dry-run prints without
// writing.
//
// check - Run one staleness check:
//
//	fluxstats check [--dry-run]
//
// series - Print the series reconstructed from the data directory:
//
//	fluxstats series containers --image runonflux/website:latest
//	fluxstats series utilization --metric totalnodes --format yaml
//	fluxstats series totals
//
// export - Push the snapshot files as an OCI artifact:
//
//	fluxstats export --registry ghcr.io --repository org/fluxstats --tag 2024-03
//
// # Configuration
//
// Global flags override FLUXSTATS_* environment variables, which override
// the optional YAML file given with --config. A .env file in the working
// directory is loaded first.
//
//	--config FILE     YAML configuration file
//	--data-dir DIR    snapshot directory (default: data)
//	--log-file FILE   append-only debug log (default: app.log, "" disables)
//	--log-level LEVEL console log level (default: info)
//	--debug           shorthand for --log-level debug
package cli
