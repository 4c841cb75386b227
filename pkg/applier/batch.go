// SPDX-License-Identifier: Apache-2.0

package applier

import (
	"context"
	"database/sql"
	"time"

	"github.com/waypointdb/waypoint/pkg/ddl"
	"github.com/waypointdb/waypoint/pkg/migration"
	"github.com/waypointdb/waypoint/pkg/schema"
	"github.com/waypointdb/waypoint/pkg/sqlsegment"
)

// NonTransactionalStatementError reports a script containing a statement
// that cannot run inside a multi-script batch transaction (e.g. CREATE
// INDEX CONCURRENTLY), caught by pre-validation before any script runs.
type NonTransactionalStatementError struct {
	Script    string
	Statement string
}

func (e NonTransactionalStatementError) Error() string {
	return "migration " + e.Script + " contains a statement that cannot run in a batch transaction: " + e.Statement
}

// MigrateBatch runs every pending script inside a single transaction
// (spec.md §4.8). The beforeMigrate/afterMigrate hooks run outside the
// transaction; the beforeEachMigrate/afterEachMigrate hooks run inside it.
// Any failure rolls back the whole batch; no failure row is recorded.
func (a *Applier) MigrateBatch(ctx context.Context, pending []*migration.ResolvedMigration, hooks Hooks, opts ...ApplyOption) error {
	var o applyOptions
	for _, opt := range opts {
		opt(&o)
	}

	bodies := make(map[*migration.ResolvedMigration][]string, len(pending))
	for _, m := range pending {
		body, err := a.substitute(m)
		if err != nil {
			return wrapf(err, "placeholder substitution failed for %s", m.ScriptFilename)
		}
		statements := sqlsegment.Split(body)
		for _, stmt := range statements {
			if ddl.Classify(stmt).Kind.IsNonTransactional() {
				return NonTransactionalStatementError{Script: m.ScriptFilename, Statement: stmt}
			}
		}
		bodies[m] = statements
	}

	if hooks.BeforeMigrate != nil {
		if err := a.runHookScript(ctx, hooks.BeforeMigrate); err != nil {
			return wrapf(err, "beforeMigrate hook failed")
		}
	}

	var pre *schema.SchemaSnapshot
	captureReversal := a.Config.ReversalCapture
	if captureReversal {
		var err error
		pre, err = schema.Introspect(ctx, a.DB, a.Config.Schema)
		if err != nil {
			a.Logger.Warn("reversal capture: pre-snapshot failed for batch: %v", err)
			captureReversal = false
		}
	}

	ranks := make(map[*migration.ResolvedMigration]int64, len(pending))

	err := a.DB.WithRetryableTransaction(ctx, func(ctx context.Context, tx *sql.Tx) error {
		for _, m := range pending {
			if hooks.BeforeEachMigrate != nil {
				body, err := a.substitute(hooks.BeforeEachMigrate)
				if err != nil {
					return err
				}
				if _, err := tx.ExecContext(ctx, body); err != nil {
					return err
				}
			}

			start := time.Now()
			for _, stmt := range bodies[m] {
				if _, err := tx.ExecContext(ctx, stmt); err != nil {
					return err
				}
			}

			if err := a.evalGuardsInTx(ctx, tx, m.Directives.Ensure); err != nil {
				return err
			}

			rank, err := a.insertHistoryInTx(ctx, tx, m, time.Since(start), true)
			if err != nil {
				return err
			}
			ranks[m] = rank

			if hooks.AfterEachMigrate != nil {
				body, err := a.substitute(hooks.AfterEachMigrate)
				if err != nil {
					return err
				}
				if _, err := tx.ExecContext(ctx, body); err != nil {
					return err
				}
			}
		}
		return nil
	})

	if err != nil {
		return MigrationFailedError{Script: "batch", Reason: err.Error()}
	}

	if captureReversal {
		post, err := schema.Introspect(ctx, a.DB, a.Config.Schema)
		if err != nil {
			a.Logger.Warn("reversal capture: post-snapshot failed for batch: %v", err)
		} else {
			stmts := schema.Reversal(pre, post)
			if len(stmts) > 0 {
				sqlText := joinSQL(stmts)
				for m, rank := range ranks {
					if !m.HasVersion() {
						continue
					}
					if err := a.State.UpdateReversalSQL(ctx, rank, sqlText); err != nil {
						a.Logger.Warn("reversal capture: failed to store batch reversal for %s: %v", m.ScriptFilename, err)
					}
				}
			}
		}
	}

	if hooks.AfterMigrate != nil {
		if err := a.runHookScript(ctx, hooks.AfterMigrate); err != nil {
			return wrapf(err, "afterMigrate hook failed")
		}
	}

	return nil
}
