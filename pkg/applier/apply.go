// SPDX-License-Identifier: Apache-2.0

package applier

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/waypointdb/waypoint/pkg/guard"
	"github.com/waypointdb/waypoint/pkg/migration"
	"github.com/waypointdb/waypoint/pkg/safety"
	"github.com/waypointdb/waypoint/pkg/schema"
	"github.com/waypointdb/waypoint/pkg/sqlsegment"
	"github.com/waypointdb/waypoint/pkg/state"
)

// MigrationFailedError surfaces a script execution failure.
type MigrationFailedError struct {
	Script string
	Reason string
}

func (e MigrationFailedError) Error() string {
	return "migration failed: " + e.Script + ": " + e.Reason
}

// DangerBlockedError reports a script blocked by safety analysis.
type DangerBlockedError struct {
	Script string
}

func (e DangerBlockedError) Error() string {
	return "migration " + e.Script + " blocked: overall safety verdict is Danger"
}

// RequireFailedError reports a `require` guard that evaluated false.
type RequireFailedError struct {
	Script string
	Guard  string
}

func (e RequireFailedError) Error() string {
	return "migration " + e.Script + ": require guard failed: " + e.Guard
}

// Hooks are the unconditional/per-script lifecycle hook scripts.
type Hooks struct {
	BeforeMigrate     *migration.ResolvedMigration
	AfterMigrate      *migration.ResolvedMigration
	BeforeEachMigrate *migration.ResolvedMigration
	AfterEachMigrate  *migration.ResolvedMigration
}

// applyOptions holds per-invocation options; force bypasses a Danger safety
// verdict for the run, mirroring a --force flag.
type applyOptions struct {
	force bool
}

// ApplyOption configures one Migrate/Undo invocation.
type ApplyOption func(*applyOptions)

// WithForce allows applying scripts whose overall safety verdict is Danger.
func WithForce() ApplyOption {
	return func(o *applyOptions) { o.force = true }
}

// Migrate runs the per-script apply protocol over every pending script, in
// per-script (non-batch) mode (spec.md §4.7).
func (a *Applier) Migrate(ctx context.Context, pending []*migration.ResolvedMigration, hooks Hooks, opts ...ApplyOption) error {
	var o applyOptions
	for _, opt := range opts {
		opt(&o)
	}

	if hooks.BeforeMigrate != nil {
		if err := a.runHookScript(ctx, hooks.BeforeMigrate); err != nil {
			return wrapf(err, "beforeMigrate hook failed")
		}
	}

	for _, m := range pending {
		if err := a.applyOne(ctx, m, hooks, o); err != nil {
			return err
		}
	}

	if hooks.AfterMigrate != nil {
		if err := a.runHookScript(ctx, hooks.AfterMigrate); err != nil {
			return wrapf(err, "afterMigrate hook failed")
		}
	}

	return nil
}

func (a *Applier) runHookScript(ctx context.Context, hook *migration.ResolvedMigration) error {
	body, err := a.substitute(hook)
	if err != nil {
		return err
	}
	_, err = a.DB.ExecContext(ctx, body)
	return err
}

func (a *Applier) applyOne(ctx context.Context, m *migration.ResolvedMigration, hooks Hooks, o applyOptions) error {
	if hooks.BeforeEachMigrate != nil {
		if err := a.runHookScript(ctx, hooks.BeforeEachMigrate); err != nil {
			return wrapf(err, "beforeEachMigrate hook failed")
		}
	}

	body, err := a.substitute(m)
	if err != nil {
		return wrapf(err, "placeholder substitution failed for %s", m.ScriptFilename)
	}
	statements := sqlsegment.Split(body)

	if a.Config.BlockOnDanger && !o.force && !m.Directives.SafetyOverride {
		_, verdict, err := safety.Assess(ctx, a.DB, a.Config.Schema, statements, a.Sizer)
		if err != nil {
			return wrapf(err, "safety analysis failed for %s", m.ScriptFilename)
		}
		if verdict == safety.Danger {
			return DangerBlockedError{Script: m.ScriptFilename}
		}
	}

	if err := a.evalGuards(ctx, m, m.Directives.Require, true); err != nil {
		return err
	}

	var pre *schema.SchemaSnapshot
	captureReversal := a.Config.ReversalCapture && m.HasVersion()
	if captureReversal {
		pre, err = schema.Introspect(ctx, a.DB, a.Config.Schema)
		if err != nil {
			a.Logger.Warn("reversal capture: pre-snapshot failed for %s: %v", m.ScriptFilename, err)
			captureReversal = false
		}
	}

	start := time.Now()
	var rank int64
	applyErr := a.DB.WithRetryableTransaction(ctx, func(ctx context.Context, tx *sql.Tx) error {
		for _, stmt := range statements {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return err
			}
		}

		if err := a.evalGuardsInTx(ctx, tx, m.Directives.Ensure); err != nil {
			return err
		}

		r, err := a.insertHistoryInTx(ctx, tx, m, time.Since(start), true)
		if err != nil {
			return err
		}
		rank = r
		return nil
	})

	if applyErr != nil {
		// best-effort failure row, outside any transaction
		_ = a.State.Insert(ctx, failureEntry(m, a.InstalledBy))
		return MigrationFailedError{Script: m.ScriptFilename, Reason: applyErr.Error()}
	}

	if captureReversal {
		a.storeReversal(ctx, m, pre, rank)
	}

	if hooks.AfterEachMigrate != nil {
		if err := a.runHookScript(ctx, hooks.AfterEachMigrate); err != nil {
			return wrapf(err, "afterEachMigrate hook failed")
		}
	}

	return nil
}

func (a *Applier) evalGuards(ctx context.Context, m *migration.ResolvedMigration, exprs []string, isRequire bool) error {
	for _, expr := range exprs {
		e, err := guard.Parse(expr)
		if err != nil {
			return err
		}
		ok, err := guard.Eval(ctx, e, a.Probe)
		if err != nil {
			return err
		}
		if !ok {
			if isRequire && a.Config.OnRequireFail == "skip" {
				continue
			}
			return RequireFailedError{Script: m.ScriptFilename, Guard: expr}
		}
	}
	return nil
}

func (a *Applier) evalGuardsInTx(ctx context.Context, tx *sql.Tx, exprs []string) error {
	probe := &guard.CatalogProbe{DB: txQueryer{tx}, Schema: a.Config.Schema}
	for _, expr := range exprs {
		e, err := guard.Parse(expr)
		if err != nil {
			return err
		}
		ok, err := guard.Eval(ctx, e, probe)
		if err != nil {
			return err
		}
		if !ok {
			return errors.New("ensure guard failed: " + expr)
		}
	}
	return nil
}

type txQueryer struct{ tx *sql.Tx }

func (q txQueryer) QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error) {
	return q.tx.QueryContext(ctx, query, args...)
}

func (a *Applier) insertHistoryInTx(ctx context.Context, tx *sql.Tx, m *migration.ResolvedMigration, execTime time.Duration, success bool) (int64, error) {
	var version *string
	if m.HasVersion() {
		v := m.Version.String()
		version = &v
	}

	typ := TypeRepeatable
	if m.Kind == migration.KindVersioned {
		typ = TypeVersioned
	} else if m.Kind == migration.KindUndo {
		typ = TypeUndo
	}

	checksum := m.Checksum
	var rank int64
	row := tx.QueryRowContext(ctx, a.State.InsertSQL(), version, m.Description, typ, m.ScriptFilename,
		checksum, a.InstalledBy, execTime.Milliseconds(), success, nil)
	if err := row.Scan(&rank); err != nil {
		return 0, err
	}
	return rank, nil
}

func (a *Applier) storeReversal(ctx context.Context, m *migration.ResolvedMigration, pre *schema.SchemaSnapshot, rank int64) {
	post, err := schema.Introspect(ctx, a.DB, a.Config.Schema)
	if err != nil {
		a.Logger.Warn("reversal capture: post-snapshot failed for %s: %v", m.ScriptFilename, err)
		return
	}

	stmts := schema.Reversal(pre, post)
	if len(stmts) == 0 {
		return
	}

	sql := joinSQL(stmts)
	if err := a.State.UpdateReversalSQL(ctx, rank, sql); err != nil {
		a.Logger.Warn("reversal capture: failed to store reversal SQL for %s: %v", m.ScriptFilename, err)
	}
}

func joinSQL(stmts []string) string {
	out := ""
	for i, s := range stmts {
		if i > 0 {
			out += "\n"
		}
		out += s
	}
	return out
}

func failureEntry(m *migration.ResolvedMigration, installedBy string) state.Entry {
	var version *string
	if m.HasVersion() {
		v := m.Version.String()
		version = &v
	}
	typ := TypeRepeatable
	if m.Kind == migration.KindVersioned {
		typ = TypeVersioned
	} else if m.Kind == migration.KindUndo {
		typ = TypeUndo
	}
	checksum := m.Checksum
	return state.Entry{
		Version:       version,
		Description:   m.Description,
		Type:          typ,
		Script:        m.ScriptFilename,
		Checksum:      &checksum,
		InstalledBy:   installedBy,
		ExecutionTime: 0,
		Success:       false,
	}
}
