// SPDX-License-Identifier: Apache-2.0

// Package applier is the engine's state machine: pending computation,
// per-script and batch apply, and the baseline/undo/repair/validate/clean/
// info commands (spec.md §4.7-4.9).
package applier

import (
	"database/sql"
	"fmt"
	"io/fs"

	"github.com/waypointdb/waypoint/pkg/config"
	"github.com/waypointdb/waypoint/pkg/db"
	"github.com/waypointdb/waypoint/pkg/guard"
	"github.com/waypointdb/waypoint/pkg/logging"
	"github.com/waypointdb/waypoint/pkg/migration"
	"github.com/waypointdb/waypoint/pkg/placeholder"
	"github.com/waypointdb/waypoint/pkg/safety"
	"github.com/waypointdb/waypoint/pkg/state"
)

// Applier wires together the scanner, history state, schema introspection,
// safety analyzer, and guard engine into the top-level command set.
type Applier struct {
	DB     db.DB
	SQLDB  *sql.DB
	State  *state.State
	Config config.WaypointConfig
	Logger logging.Logger

	Probe guard.Probe
	Sizer safety.TableSizer

	InstalledBy string
}

// New constructs an Applier. conn is the retryable wrapper used for
// migration statements; sqlDB is the raw handle needed by components (such
// as the guard catalog probe) that require *sql.DB directly.
func New(conn db.DB, sqlDB *sql.DB, st *state.State, cfg config.WaypointConfig, logger logging.Logger) *Applier {
	if logger == nil {
		logger = logging.NewNoopLogger()
	}
	return &Applier{
		DB:          conn,
		SQLDB:       sqlDB,
		State:       st,
		Config:      cfg,
		Logger:      logger,
		Probe:       &guard.CatalogProbe{DB: sqlDB, Schema: cfg.Schema},
		Sizer:       safety.PgCatalogSizer{},
		InstalledBy: "waypoint",
	}
}

// Scan resolves every migration script across the configured locations.
func (a *Applier) Scan(dirs []fs.FS) ([]*migration.ResolvedMigration, error) {
	return migration.Scan(dirs)
}

func (a *Applier) builtins(script *migration.ResolvedMigration) placeholder.Builtins {
	return placeholder.Builtins{
		Schema:   a.Config.Schema,
		Database: a.Config.Schema,
		Filename: script.ScriptFilename,
	}
}

func (a *Applier) substitute(script *migration.ResolvedMigration) (string, error) {
	return placeholder.Substitute(script.SQL, a.Config.Placeholders, a.builtins(script))
}

func wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}
