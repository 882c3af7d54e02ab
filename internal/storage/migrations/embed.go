package migrations

import "embed"

// PostgresFS holds the reference-data schema (securities, universe
// membership), applied in filename order.
//
//go:embed postgres/*.sql
var PostgresFS embed.FS

// ClickhouseFS holds the bulk-data schema (raw observations, panel rows),
// applied in filename order.
//
//go:embed clickhouse/*.sql
var ClickhouseFS embed.FS
