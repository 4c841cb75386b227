// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"errors"

	"github.com/waypointdb/waypoint/pkg/applier"
	"github.com/waypointdb/waypoint/pkg/depgraph"
	"github.com/waypointdb/waypoint/pkg/guard"
	"github.com/waypointdb/waypoint/pkg/migration"
	"github.com/waypointdb/waypoint/pkg/placeholder"
	"github.com/waypointdb/waypoint/pkg/state"
)

// Exit codes, stable across releases (spec.md §6).
const (
	ExitSuccess          = 0
	ExitGeneric          = 1
	ExitConfig           = 2
	ExitValidationFailed = 3
	ExitDatabase         = 4
	ExitMigrationFailed  = 5
	ExitLock             = 6
	ExitCleanDisabled    = 7
	ExitLint             = 9
	ExitDriftDetected    = 10
	ExitConflicts        = 11
	ExitPreflight        = 12
)

// ExitCode maps an error returned by the applier/config/schema layers to
// the stable exit code described in spec.md §6.
func ExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}

	switch {
	case errors.As(err, &state.InvalidIdentifierError{}):
		return ExitConfig
	case errors.As(err, &state.LockError{}):
		return ExitLock
	case errors.As(err, &applier.MigrationFailedError{}):
		return ExitMigrationFailed
	case errors.As(err, &applier.DangerBlockedError{}):
		return ExitMigrationFailed
	case errors.As(err, &applier.RequireFailedError{}):
		return ExitMigrationFailed
	case errors.As(err, &applier.UndoMissingError{}):
		return ExitMigrationFailed
	case errors.As(err, &applier.NonTransactionalStatementError{}):
		return ExitMigrationFailed
	case errors.As(err, &applier.OutOfOrderError{}):
		return ExitMigrationFailed
	case errors.As(err, &applier.AlreadyBaselinedError{}):
		return ExitGeneric
	case errors.As(err, &depgraph.CycleError{}):
		return ExitMigrationFailed
	case errors.As(err, &depgraph.MissingDependencyError{}):
		return ExitMigrationFailed
	case errors.As(err, &guard.ParseError{}):
		return ExitMigrationFailed
	case errors.As(err, &guard.EvalError{}):
		return ExitMigrationFailed
	case errors.As(err, &placeholder.NotFoundError{}):
		return ExitConfig
	case errors.As(err, &migration.DuplicateVersionError{}):
		return ExitConfig
	case errors.As(err, &migration.InvalidFilenameError{}):
		return ExitConfig
	case errors.As(err, &cleanDisabledError{}):
		return ExitCleanDisabled
	case errors.As(err, &validateFailedError{}):
		return ExitValidationFailed
	case errors.As(err, &driftDetectedError{}):
		return ExitDriftDetected
	case errors.As(err, &lintFailedError{}):
		return ExitLint
	case errors.As(err, &conflictsFoundError{}):
		return ExitConflicts
	case errors.As(err, &preflightFailedError{}):
		return ExitPreflight
	}

	return ExitGeneric
}

// cleanDisabledError reports an unauthorized clean attempt.
type cleanDisabledError struct{}

func (cleanDisabledError) Error() string { return "clean is disabled; pass --authorize to run it" }

// validateFailedError wraps non-zero validation discrepancies.
type validateFailedError struct {
	Count int
}

func (e validateFailedError) Error() string {
	return "validate found discrepancies"
}

// driftDetectedError wraps a non-empty drift report.
type driftDetectedError struct {
	Count int
}

func (e driftDetectedError) Error() string {
	return "drift detected between expected and live schema"
}

// lintFailedError wraps a lint report that found at least one Error-severity
// issue.
type lintFailedError struct {
	Count int
}

func (e lintFailedError) Error() string {
	return "lint found error-severity issues"
}

// conflictsFoundError wraps a non-empty conflict report between two
// branches' added migration scripts.
type conflictsFoundError struct {
	Count int
}

func (e conflictsFoundError) Error() string {
	return "conflicting migration scripts detected between branches"
}

// preflightFailedError wraps a preflight report containing at least one
// Fail-status check.
type preflightFailedError struct {
	Count int
}

func (e preflightFailedError) Error() string {
	return "preflight check failed"
}
