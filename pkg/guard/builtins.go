// SPDX-License-Identifier: Apache-2.0

package guard

import (
	"context"
	"database/sql"
	"fmt"
)

// Queryer is the subset of pkg/db.DB the catalog probe needs.
type Queryer interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
}

// CatalogProbe resolves guard built-in functions against the live catalog of
// a single schema.
type CatalogProbe struct {
	DB     Queryer
	Schema string
}

var builtinArity = map[string]int{
	"table_exists":      1,
	"column_exists":     2,
	"column_type":       3,
	"column_nullable":   2,
	"index_exists":      1,
	"constraint_exists": 2,
	"function_exists":   1,
	"enum_exists":       1,
	"row_count":         1,
	"sql":               1,
}

// Call resolves one built-in function call against the catalog.
func (p *CatalogProbe) Call(ctx context.Context, name string, args []string) (value, error) {
	arity, known := builtinArity[name]
	if !known {
		return value{}, EvalError{Reason: "unknown guard function " + name + "(...)"}
	}
	if len(args) != arity {
		return value{}, EvalError{Reason: fmt.Sprintf("%s(...) expects %d argument(s), got %d", name, arity, len(args))}
	}

	switch name {
	case "table_exists":
		return p.exists(ctx, `SELECT 1 FROM information_schema.tables WHERE table_schema = $1 AND table_name = $2`, p.Schema, args[0])

	case "column_exists":
		return p.exists(ctx, `SELECT 1 FROM information_schema.columns WHERE table_schema = $1 AND table_name = $2 AND column_name = $3`, p.Schema, args[0], args[1])

	case "column_type":
		var dataType string
		found, err := p.scanOne(ctx, `SELECT data_type FROM information_schema.columns WHERE table_schema = $1 AND table_name = $2 AND column_name = $3`,
			[]interface{}{&dataType}, p.Schema, args[0], args[1])
		if err != nil {
			return value{}, err
		}
		return value{kind: valBool, b: found && dataType == args[2]}, nil

	case "column_nullable":
		var nullable string
		found, err := p.scanOne(ctx, `SELECT is_nullable FROM information_schema.columns WHERE table_schema = $1 AND table_name = $2 AND column_name = $3`,
			[]interface{}{&nullable}, p.Schema, args[0], args[1])
		if err != nil {
			return value{}, err
		}
		return value{kind: valBool, b: found && nullable == "YES"}, nil

	case "index_exists":
		return p.exists(ctx, `SELECT 1 FROM pg_indexes WHERE schemaname = $1 AND indexname = $2`, p.Schema, args[0])

	case "constraint_exists":
		return p.exists(ctx, `SELECT 1 FROM information_schema.table_constraints WHERE constraint_schema = $1 AND table_name = $2 AND constraint_name = $3`, p.Schema, args[0], args[1])

	case "function_exists":
		return p.exists(ctx, `SELECT 1 FROM information_schema.routines WHERE routine_schema = $1 AND routine_name = $2`, p.Schema, args[0])

	case "enum_exists":
		return p.exists(ctx, `SELECT 1 FROM pg_type t JOIN pg_namespace n ON n.oid = t.typnamespace WHERE n.nspname = $1 AND t.typname = $2 AND t.typtype = 'e'`, p.Schema, args[0])

	case "row_count":
		var count float64
		found, err := p.scanOne(ctx, `SELECT n_live_tup FROM pg_stat_user_tables WHERE schemaname = $1 AND relname = $2`,
			[]interface{}{&count}, p.Schema, args[0])
		if err != nil {
			return value{}, err
		}
		if !found {
			return value{kind: valNumber, n: 0}, nil
		}
		return value{kind: valNumber, n: count}, nil

	case "sql":
		var result bool
		found, err := p.scanOne(ctx, fmt.Sprintf(`SELECT (%s)`, args[0]), []interface{}{&result})
		if err != nil {
			return value{}, EvalError{Reason: "sql(...) probe failed: " + err.Error()}
		}
		if !found {
			return value{kind: valBool, b: false}, nil
		}
		return value{kind: valBool, b: result}, nil

	default:
		return value{}, EvalError{Reason: "unknown guard function " + name + "(...)"}
	}
}

// exists runs a catalog query and reports whether it returned any row.
func (p *CatalogProbe) exists(ctx context.Context, query string, args ...interface{}) (value, error) {
	var discard int
	found, err := p.scanOne(ctx, query, []interface{}{&discard}, args...)
	if err != nil {
		return value{}, err
	}
	return value{kind: valBool, b: found}, nil
}

// scanOne runs query, scans the first row's columns into dest, and reports
// whether a row was found. It closes the result set before returning.
func (p *CatalogProbe) scanOne(ctx context.Context, query string, dest []interface{}, args ...interface{}) (bool, error) {
	rows, err := p.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return false, err
	}
	defer rows.Close()

	if !rows.Next() {
		return false, rows.Err()
	}
	if err := rows.Scan(dest...); err != nil {
		return false, err
	}
	return true, rows.Err()
}
