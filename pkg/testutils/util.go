// SPDX-License-Identifier: Apache-2.0

package testutils

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/url"
	"os"
	"testing"
	"time"

	"github.com/lib/pq"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/waypointdb/waypoint/pkg/applier"
	"github.com/waypointdb/waypoint/pkg/config"
	"github.com/waypointdb/waypoint/pkg/db"
	"github.com/waypointdb/waypoint/pkg/state"
)

// The version of postgres against which the tests are run
// if the POSTGRES_VERSION environment variable is not set.
const defaultPostgresVersion = "15.3"

// tConnStr holds the connection string to the test container created in TestMain.
var tConnStr string

// SharedTestMain starts a postgres container to be used by all tests in a package.
// Each test then connects to the container and creates a new database.
func SharedTestMain(m *testing.M) {
	ctx := context.Background()

	waitForLogs := wait.
		ForLog("database system is ready to accept connections").
		WithOccurrence(2).
		WithStartupTimeout(5 * time.Second)

	pgVersion := os.Getenv("POSTGRES_VERSION")
	if pgVersion == "" {
		pgVersion = defaultPostgresVersion
	}

	ctr, err := postgres.RunContainer(ctx,
		testcontainers.WithImage("postgres:"+pgVersion),
		testcontainers.WithWaitStrategy(waitForLogs),
	)
	if err != nil {
		os.Exit(1)
	}

	tConnStr, err = ctr.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		os.Exit(1)
	}

	sqlDB, err := sql.Open("postgres", tConnStr)
	if err != nil {
		os.Exit(1)
	}

	// create handy role for tests
	_, err = sqlDB.ExecContext(ctx, "CREATE ROLE waypoint")
	if err != nil {
		os.Exit(1)
	}

	exitCode := m.Run()

	if err := ctr.Terminate(ctx); err != nil {
		log.Printf("Failed to terminate container: %v", err)
	}

	os.Exit(exitCode)
}

// TestSchema returns the schema in which migration tests apply migrations. By
// default, migrations will be applied to the "public" schema.
func TestSchema() string {
	testSchema := os.Getenv("WAYPOINT_TEST_SCHEMA")
	if testSchema != "" {
		return testSchema
	}
	return "public"
}

// WithStateInSchemaAndConnectionToContainer provisions a fresh database and
// an initialized history table in schemaName, and hands both to fn.
func WithStateInSchemaAndConnectionToContainer(t *testing.T, schemaName string, fn func(*state.State, *sql.DB)) {
	t.Helper()
	ctx := context.Background()

	sqlDB, _, _ := setupTestDatabase(t)

	st, err := state.New(&db.RDB{DB: sqlDB}, schemaName, "schema_history")
	if err != nil {
		t.Fatal(err)
	}
	if err := st.Init(ctx); err != nil {
		t.Fatal(err)
	}

	fn(st, sqlDB)
}

// WithConnectionToContainer provisions a fresh database and hands the
// connection and its connection string to fn.
func WithConnectionToContainer(t *testing.T, fn func(*sql.DB, string)) {
	t.Helper()

	sqlDB, connStr, _ := setupTestDatabase(t)

	fn(sqlDB, connStr)
}

// WithStateAndConnectionToContainer is WithStateInSchemaAndConnectionToContainer
// for the "waypoint" history schema.
func WithStateAndConnectionToContainer(t *testing.T, fn func(*state.State, *sql.DB)) {
	WithStateInSchemaAndConnectionToContainer(t, "waypoint", fn)
}

// WithUninitializedState hands an uninitialized State (Init not yet called)
// to fn, for exercising first-run behavior.
func WithUninitializedState(t *testing.T, fn func(*state.State)) {
	t.Helper()

	sqlDB, _, _ := setupTestDatabase(t)

	st, err := state.New(&db.RDB{DB: sqlDB}, "waypoint", "schema_history")
	if err != nil {
		t.Fatal(err)
	}

	fn(st)
}

// WithApplierInSchemaAndConnectionToContainerWithOptions provisions a fresh
// database, an initialized history table, and an Applier wired against
// schemaName, and hands the applier and the raw connection to fn.
func WithApplierInSchemaAndConnectionToContainerWithOptions(t *testing.T, schemaName string, configure func(*config.WaypointConfig), fn func(a *applier.Applier, sqlDB *sql.DB)) {
	t.Helper()
	ctx := context.Background()

	sqlDB, _, dbName := setupTestDatabase(t)

	cfg := config.Default()
	cfg.Schema = schemaName
	cfg.HistorySchema = "waypoint"
	cfg.HistoryTable = "schema_history"
	if configure != nil {
		configure(&cfg)
	}

	conn := &db.RDB{DB: sqlDB}

	st, err := state.New(conn, cfg.HistorySchema, cfg.HistoryTable)
	if err != nil {
		t.Fatal(err)
	}
	if err := st.Init(ctx); err != nil {
		t.Fatal(err)
	}

	a := applier.New(conn, sqlDB, st, cfg, nil)

	t.Cleanup(func() {
		if err := conn.Close(); err != nil {
			t.Fatalf("Failed to close database connection: %v", err)
		}
	})

	_, err = sqlDB.ExecContext(ctx, fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %s", pq.QuoteIdentifier(schemaName)))
	if err != nil {
		t.Fatal(err)
	}

	_, err = sqlDB.ExecContext(ctx, fmt.Sprintf("GRANT ALL PRIVILEGES ON SCHEMA %s TO waypoint", pq.QuoteIdentifier(schemaName)))
	if err != nil {
		t.Fatal(err)
	}

	_, err = sqlDB.ExecContext(ctx, fmt.Sprintf("GRANT ALL PRIVILEGES ON DATABASE %s TO waypoint", pq.QuoteIdentifier(dbName)))
	if err != nil {
		t.Fatal(err)
	}

	fn(a, sqlDB)
}

// WithApplierInSchemaAndConnectionToContainer is
// WithApplierInSchemaAndConnectionToContainerWithOptions with the default config.
func WithApplierInSchemaAndConnectionToContainer(t *testing.T, schemaName string, fn func(a *applier.Applier, sqlDB *sql.DB)) {
	WithApplierInSchemaAndConnectionToContainerWithOptions(t, schemaName, nil, fn)
}

// WithApplierAndConnectionToContainer wires an Applier against the "public" schema.
func WithApplierAndConnectionToContainer(t *testing.T, fn func(a *applier.Applier, sqlDB *sql.DB)) {
	WithApplierInSchemaAndConnectionToContainerWithOptions(t, "public", nil, fn)
}

// setupTestDatabase creates a new database in the test container and returns:
// - a connection to the new database
// - the connection string to the new database
// - the name of the new database
func setupTestDatabase(t *testing.T) (*sql.DB, string, string) {
	t.Helper()
	ctx := context.Background()

	tDB, err := sql.Open("postgres", tConnStr)
	if err != nil {
		t.Fatal(err)
	}

	t.Cleanup(func() {
		if err := tDB.Close(); err != nil {
			t.Fatalf("Failed to close database connection: %v", err)
		}
	})

	dbName := randomDBName()

	_, err = tDB.ExecContext(ctx, fmt.Sprintf("CREATE DATABASE %s", pq.QuoteIdentifier(dbName)))
	if err != nil {
		t.Fatal(err)
	}

	u, err := url.Parse(tConnStr)
	if err != nil {
		t.Fatal(err)
	}

	u.Path = "/" + dbName
	connStr := u.String()

	sqlDB, err := sql.Open("postgres", connStr)
	if err != nil {
		t.Fatal(err)
	}

	t.Cleanup(func() {
		if err := sqlDB.Close(); err != nil {
			t.Fatalf("Failed to close database connection: %v", err)
		}
	})

	return sqlDB, connStr, dbName
}
