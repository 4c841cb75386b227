// SPDX-License-Identifier: Apache-2.0

// Package preflight runs live database health checks before a migration is
// applied: recovery mode, connection saturation, long-running queries,
// replication lag, database size, and lock contention (spec.md §6,
// exit code 12).
package preflight

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/waypointdb/waypoint/pkg/db"
)

// Status is the outcome of a single check.
type Status int

const (
	Pass Status = iota
	Warn
	Fail
)

func (s Status) String() string {
	switch s {
	case Pass:
		return "PASS"
	case Warn:
		return "WARN"
	case Fail:
		return "FAIL"
	default:
		return "UNKNOWN"
	}
}

// Check is the outcome of a single named health check.
type Check struct {
	Name   string
	Status Status
	Detail string
}

// Report aggregates every check's outcome. Passed is false if any Check has
// Status Fail; a Warn never blocks migration.
type Report struct {
	Checks []Check
	Passed bool
}

// Config tunes the thresholds a couple of checks warn at.
type Config struct {
	Enabled                bool
	MaxReplicationLagMB    int64
	LongQueryThresholdSecs int64
}

// DefaultConfig mirrors the reference thresholds.
func DefaultConfig() Config {
	return Config{
		Enabled:                true,
		MaxReplicationLagMB:    100,
		LongQueryThresholdSecs: 300,
	}
}

// Run executes every check against conn and returns the aggregate report.
func Run(ctx context.Context, conn db.DB, cfg Config) Report {
	checks := []Check{
		checkRecoveryMode(ctx, conn),
		checkActiveConnections(ctx, conn),
		checkLongRunningQueries(ctx, conn, cfg.LongQueryThresholdSecs),
		checkReplicationLag(ctx, conn, cfg.MaxReplicationLagMB),
		checkDatabaseSize(ctx, conn),
		checkLockContention(ctx, conn),
	}

	passed := true
	for _, c := range checks {
		if c.Status == Fail {
			passed = false
		}
	}

	return Report{Checks: checks, Passed: passed}
}

func checkRecoveryMode(ctx context.Context, conn db.DB) Check {
	var inRecovery bool
	if err := conn.QueryRowContext(ctx, "SELECT pg_is_in_recovery()").Scan(&inRecovery); err != nil {
		return Check{Name: "Recovery Mode", Status: Warn, Detail: fmt.Sprintf("could not check: %s", err)}
	}
	if inRecovery {
		return Check{Name: "Recovery Mode", Status: Fail, Detail: "database is in recovery mode (read-only replica)"}
	}
	return Check{Name: "Recovery Mode", Status: Pass, Detail: "not in recovery mode"}
}

func checkActiveConnections(ctx context.Context, conn db.DB) Check {
	const query = `SELECT count(*)::int AS active,
		(SELECT setting::int FROM pg_settings WHERE name = 'max_connections') AS max_conn
		FROM pg_stat_activity`

	var active, maxConn int
	if err := conn.QueryRowContext(ctx, query).Scan(&active, &maxConn); err != nil {
		return Check{Name: "Active Connections", Status: Warn, Detail: fmt.Sprintf("could not check: %s", err)}
	}
	return ConnectionStatus(active, maxConn)
}

// ConnectionStatus is split out from checkActiveConnections so the
// percentage-threshold decision can be unit tested without a database.
func ConnectionStatus(active, maxConn int) Check {
	pct := 0.0
	if maxConn > 0 {
		pct = float64(active) / float64(maxConn) * 100
	}
	status := Pass
	if pct >= 80 {
		status = Warn
	}
	return Check{
		Name:   "Active Connections",
		Status: status,
		Detail: fmt.Sprintf("%d/%d (%.0f%%)", active, maxConn, pct),
	}
}

func checkLongRunningQueries(ctx context.Context, conn db.DB, thresholdSecs int64) Check {
	query := fmt.Sprintf(`SELECT count(*)::int FROM pg_stat_activity
		WHERE state = 'active' AND now() - query_start > interval '%d seconds'`, thresholdSecs)

	var count int
	if err := conn.QueryRowContext(ctx, query).Scan(&count); err != nil {
		return Check{Name: "Long-Running Queries", Status: Warn, Detail: fmt.Sprintf("could not check: %s", err)}
	}
	if count > 0 {
		return Check{
			Name:   "Long-Running Queries",
			Status: Warn,
			Detail: fmt.Sprintf("%d query(ies) running longer than %ds", count, thresholdSecs),
		}
	}
	return Check{Name: "Long-Running Queries", Status: Pass, Detail: fmt.Sprintf("no queries running longer than %ds", thresholdSecs)}
}

func checkReplicationLag(ctx context.Context, conn db.DB, maxLagMB int64) Check {
	const query = `SELECT pg_wal_lsn_diff(pg_current_wal_lsn(), replay_lsn)
		FROM pg_stat_replication ORDER BY replay_lsn ASC LIMIT 1`

	var lagBytes sql.NullInt64
	err := conn.QueryRowContext(ctx, query).Scan(&lagBytes)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return Check{Name: "Replication Lag", Status: Pass, Detail: "no replicas connected"}
	case err != nil:
		return Check{Name: "Replication Lag", Status: Pass, Detail: "not a primary or no replication configured"}
	}

	return ReplicationLagStatus(lagBytes.Int64, maxLagMB)
}

// ReplicationLagStatus is split out from checkReplicationLag so the
// threshold decision can be unit tested without a database.
func ReplicationLagStatus(lagBytes, maxLagMB int64) Check {
	lagMB := lagBytes / (1024 * 1024)
	status := Pass
	if lagMB > maxLagMB {
		status = Warn
	}
	return Check{
		Name:   "Replication Lag",
		Status: status,
		Detail: fmt.Sprintf("%dMB (threshold: %dMB)", lagMB, maxLagMB),
	}
}

func checkDatabaseSize(ctx context.Context, conn db.DB) Check {
	var sizeBytes int64
	if err := conn.QueryRowContext(ctx, "SELECT pg_database_size(current_database())").Scan(&sizeBytes); err != nil {
		return Check{Name: "Database Size", Status: Warn, Detail: fmt.Sprintf("could not check: %s", err)}
	}
	return Check{Name: "Database Size", Status: Pass, Detail: FormatDatabaseSize(sizeBytes)}
}

// FormatDatabaseSize renders a byte count the way checkDatabaseSize reports
// it, split out for unit testing.
func FormatDatabaseSize(sizeBytes int64) string {
	sizeMB := sizeBytes / (1024 * 1024)
	if sizeMB > 1024 {
		return fmt.Sprintf("%.1fGB", float64(sizeMB)/1024.0)
	}
	return fmt.Sprintf("%dMB", sizeMB)
}

func checkLockContention(ctx context.Context, conn db.DB) Check {
	var blocked int
	if err := conn.QueryRowContext(ctx, "SELECT count(*)::int FROM pg_locks WHERE NOT granted").Scan(&blocked); err != nil {
		return Check{Name: "Lock Contention", Status: Warn, Detail: fmt.Sprintf("could not check: %s", err)}
	}
	if blocked > 0 {
		return Check{Name: "Lock Contention", Status: Warn, Detail: fmt.Sprintf("%d blocked lock request(s)", blocked)}
	}
	return Check{Name: "Lock Contention", Status: Pass, Detail: "no blocked locks"}
}
