// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"os"

	"github.com/spf13/cobra"

	"github.com/waypointdb/waypoint/internal/connstr"
	"github.com/waypointdb/waypoint/pkg/applier"
	"github.com/waypointdb/waypoint/pkg/config"
	"github.com/waypointdb/waypoint/pkg/db"
	"github.com/waypointdb/waypoint/pkg/logging"
	"github.com/waypointdb/waypoint/pkg/migration"
	"github.com/waypointdb/waypoint/pkg/state"
)

// Version is the waypoint version.
var Version = "development"

func init() {
	config.InitEnv()
	config.BindFlags(rootCmd)
}

var rootCmd = &cobra.Command{
	Use:          "waypoint",
	Short:        "Waypoint is a PostgreSQL schema-migration engine",
	SilenceUsage: true,
	Version:      Version,
}

// newApplier opens a connection, initializes the history table, and wires
// an Applier against the current viper-derived configuration.
func newApplier(ctx context.Context) (*applier.Applier, func() error, error) {
	cfg := config.FromViper()

	connectURL := cfg.PostgresURL
	if withSearchPath, err := connstr.AppendSearchPathOption(connectURL, cfg.Schema); err == nil {
		connectURL = withSearchPath
	}

	sqlDB, err := sql.Open("postgres", connectURL)
	if err != nil {
		return nil, nil, fmt.Errorf("opening database: %w", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		sqlDB.Close()
		return nil, nil, fmt.Errorf("connecting to database: %w", err)
	}

	conn := &db.RDB{DB: sqlDB}

	st, err := state.New(conn, cfg.HistorySchema, cfg.HistoryTable)
	if err != nil {
		sqlDB.Close()
		return nil, nil, err
	}
	if err := st.Init(ctx); err != nil {
		sqlDB.Close()
		return nil, nil, fmt.Errorf("initializing history table: %w", err)
	}

	a := applier.New(conn, sqlDB, st, cfg, logging.PtermLogger{})
	return a, conn.Close, nil
}

// locationDirs converts the configured Locations into fs.FS values for the
// scanner.
func locationDirs(cfg config.WaypointConfig) []fs.FS {
	dirs := make([]fs.FS, 0, len(cfg.Locations))
	for _, loc := range cfg.Locations {
		dirs = append(dirs, os.DirFS(loc))
	}
	return dirs
}

// loadHooks resolves every lifecycle hook script across the configured
// locations. Missing hooks are simply nil.
func loadHooks(dirs []fs.FS) (applier.Hooks, error) {
	var hooks applier.Hooks
	var err error

	if hooks.BeforeMigrate, err = loadHook(dirs, "beforeMigrate.sql"); err != nil {
		return hooks, err
	}
	if hooks.AfterMigrate, err = loadHook(dirs, "afterMigrate.sql"); err != nil {
		return hooks, err
	}
	if hooks.BeforeEachMigrate, err = loadHook(dirs, "beforeEachMigrate.sql"); err != nil {
		return hooks, err
	}
	if hooks.AfterEachMigrate, err = loadHook(dirs, "afterEachMigrate.sql"); err != nil {
		return hooks, err
	}
	return hooks, nil
}

func loadHook(dirs []fs.FS, filename string) (*migration.ResolvedMigration, error) {
	return migration.LoadHook(dirs, filename)
}

// Execute executes the root command.
func Execute() error {
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(undoCmd())
	rootCmd.AddCommand(baselineCmd())
	rootCmd.AddCommand(repairCmd())
	rootCmd.AddCommand(validateCmd())
	rootCmd.AddCommand(cleanCmd())
	rootCmd.AddCommand(infoCmd())
	rootCmd.AddCommand(diffCmd())
	rootCmd.AddCommand(driftCmd())
	rootCmd.AddCommand(snapshotCmd())
	rootCmd.AddCommand(restoreCmd())
	rootCmd.AddCommand(lintCmd())
	rootCmd.AddCommand(changelogCmd())
	rootCmd.AddCommand(conflictsCmd())
	rootCmd.AddCommand(preflightCmd())
	rootCmd.AddCommand(adviseCmd())

	return rootCmd.Execute()
}
