// SPDX-License-Identifier: Apache-2.0

package schema

import (
	"context"
	"database/sql"
	"sync"

	"github.com/waypointdb/waypoint/pkg/db"
)

// Introspect assembles a SchemaSnapshot by running the nine catalog queries
// concurrently, joining before returning (spec.md §4.12, §5).
func Introspect(ctx context.Context, conn db.DB, schemaName string) (*SchemaSnapshot, error) {
	snap := NewSnapshot(schemaName)

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
	)

	record := func(err error) {
		if err == nil {
			return
		}
		mu.Lock()
		if firstErr == nil {
			firstErr = err
		}
		mu.Unlock()
	}

	queries := []func(context.Context, db.DB, string, *SchemaSnapshot, *sync.Mutex) error{
		introspectTablesAndColumns,
		introspectViews,
		introspectIndexes,
		introspectSequences,
		introspectFunctions,
		introspectEnums,
		introspectConstraints,
		introspectTriggers,
		introspectExtensions,
	}

	wg.Add(len(queries))
	for _, q := range queries {
		q := q
		go func() {
			defer wg.Done()
			record(q(ctx, conn, schemaName, snap, &mu))
		}()
	}
	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}
	return snap, nil
}

func introspectTablesAndColumns(ctx context.Context, conn db.DB, schemaName string, snap *SchemaSnapshot, mu *sync.Mutex) error {
	rows, err := conn.QueryContext(ctx, `
		SELECT c.relname, obj_description(c.oid)
		FROM pg_class c
		JOIN pg_namespace n ON n.oid = c.relnamespace
		WHERE n.nspname = $1 AND c.relkind = 'r'
	`, schemaName)
	if err != nil {
		return err
	}
	defer rows.Close()

	tables := map[string]*Table{}
	for rows.Next() {
		var name string
		var comment sql.NullString
		if err := rows.Scan(&name, &comment); err != nil {
			return err
		}
		tables[name] = &Table{Name: name, Comment: comment.String, Indexes: map[string]*Index{}, Constraints: map[string]*Constraint{}}
	}
	if err := rows.Err(); err != nil {
		return err
	}

	colRows, err := conn.QueryContext(ctx, `
		SELECT table_name, column_name, data_type, is_nullable, column_default, col_description(
			(quote_ident(table_schema) || '.' || quote_ident(table_name))::regclass, ordinal_position)
		FROM information_schema.columns
		WHERE table_schema = $1
		ORDER BY table_name, ordinal_position
	`, schemaName)
	if err != nil {
		return err
	}
	defer colRows.Close()

	for colRows.Next() {
		var tableName, colName, dataType, nullable string
		var def, comment sql.NullString
		if err := colRows.Scan(&tableName, &colName, &dataType, &nullable, &def, &comment); err != nil {
			return err
		}
		t, ok := tables[tableName]
		if !ok {
			continue
		}
		col := &Column{Name: colName, Type: dataType, Nullable: nullable == "YES", Comment: comment.String}
		if def.Valid {
			d := def.String
			col.Default = &d
		}
		t.Columns = append(t.Columns, col)
	}
	if err := colRows.Err(); err != nil {
		return err
	}

	mu.Lock()
	snap.Tables = tables
	mu.Unlock()
	return nil
}

func introspectViews(ctx context.Context, conn db.DB, schemaName string, snap *SchemaSnapshot, mu *sync.Mutex) error {
	rows, err := conn.QueryContext(ctx, `
		SELECT table_name, view_definition FROM information_schema.views WHERE table_schema = $1
	`, schemaName)
	if err != nil {
		return err
	}
	defer rows.Close()

	views := map[string]*View{}
	for rows.Next() {
		var name, def string
		if err := rows.Scan(&name, &def); err != nil {
			return err
		}
		views[name] = &View{Name: name, Definition: def}
	}
	if err := rows.Err(); err != nil {
		return err
	}

	mu.Lock()
	snap.Views = views
	mu.Unlock()
	return nil
}

func introspectIndexes(ctx context.Context, conn db.DB, schemaName string, snap *SchemaSnapshot, mu *sync.Mutex) error {
	rows, err := conn.QueryContext(ctx, `
		SELECT indexname, tablename, indexdef
		FROM pg_indexes
		WHERE schemaname = $1
	`, schemaName)
	if err != nil {
		return err
	}
	defer rows.Close()

	indexes := map[string]*Index{}
	for rows.Next() {
		var name, table, def string
		if err := rows.Scan(&name, &table, &def); err != nil {
			return err
		}
		indexes[name] = &Index{Name: name, Table: table, Definition: def, Unique: containsWord(def, "UNIQUE")}
	}
	if err := rows.Err(); err != nil {
		return err
	}

	mu.Lock()
	for _, idx := range indexes {
		if t, ok := snap.Tables[idx.Table]; ok {
			t.Indexes[idx.Name] = idx
		}
	}
	mu.Unlock()
	return nil
}

func introspectSequences(ctx context.Context, conn db.DB, schemaName string, snap *SchemaSnapshot, mu *sync.Mutex) error {
	rows, err := conn.QueryContext(ctx, `
		SELECT sequence_name FROM information_schema.sequences WHERE sequence_schema = $1
	`, schemaName)
	if err != nil {
		return err
	}
	defer rows.Close()

	seqs := map[string]*Sequence{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return err
		}
		seqs[name] = &Sequence{Name: name}
	}
	if err := rows.Err(); err != nil {
		return err
	}

	mu.Lock()
	snap.Sequences = seqs
	mu.Unlock()
	return nil
}

func introspectFunctions(ctx context.Context, conn db.DB, schemaName string, snap *SchemaSnapshot, mu *sync.Mutex) error {
	rows, err := conn.QueryContext(ctx, `
		SELECT p.proname, pg_get_functiondef(p.oid)
		FROM pg_proc p
		JOIN pg_namespace n ON n.oid = p.pronamespace
		WHERE n.nspname = $1
	`, schemaName)
	if err != nil {
		return err
	}
	defer rows.Close()

	fns := map[string]*Function{}
	for rows.Next() {
		var name, body string
		if err := rows.Scan(&name, &body); err != nil {
			return err
		}
		fns[name] = &Function{Name: name, Body: body}
	}
	if err := rows.Err(); err != nil {
		return err
	}

	mu.Lock()
	snap.Functions = fns
	mu.Unlock()
	return nil
}

func introspectEnums(ctx context.Context, conn db.DB, schemaName string, snap *SchemaSnapshot, mu *sync.Mutex) error {
	rows, err := conn.QueryContext(ctx, `
		SELECT t.typname, e.enumlabel
		FROM pg_type t
		JOIN pg_namespace n ON n.oid = t.typnamespace
		JOIN pg_enum e ON e.enumtypid = t.oid
		WHERE n.nspname = $1
		ORDER BY t.typname, e.enumsortorder
	`, schemaName)
	if err != nil {
		return err
	}
	defer rows.Close()

	enums := map[string]*Enum{}
	for rows.Next() {
		var typeName, label string
		if err := rows.Scan(&typeName, &label); err != nil {
			return err
		}
		e, ok := enums[typeName]
		if !ok {
			e = &Enum{Name: typeName}
			enums[typeName] = e
		}
		e.Labels = append(e.Labels, label)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	mu.Lock()
	snap.Enums = enums
	mu.Unlock()
	return nil
}

func introspectConstraints(ctx context.Context, conn db.DB, schemaName string, snap *SchemaSnapshot, mu *sync.Mutex) error {
	rows, err := conn.QueryContext(ctx, `
		SELECT con.conname, cl.relname, pg_get_constraintdef(con.oid)
		FROM pg_constraint con
		JOIN pg_class cl ON cl.oid = con.conrelid
		JOIN pg_namespace n ON n.oid = con.connamespace
		WHERE n.nspname = $1
	`, schemaName)
	if err != nil {
		return err
	}
	defer rows.Close()

	constraints := map[string]*Constraint{}
	for rows.Next() {
		var name, table, def string
		if err := rows.Scan(&name, &table, &def); err != nil {
			return err
		}
		constraints[table+"."+name] = &Constraint{Name: name, Table: table, Definition: def}
	}
	if err := rows.Err(); err != nil {
		return err
	}

	mu.Lock()
	for key, c := range constraints {
		if t, ok := snap.Tables[c.Table]; ok {
			t.Constraints[key] = c
		}
	}
	mu.Unlock()
	return nil
}

func introspectTriggers(ctx context.Context, conn db.DB, schemaName string, snap *SchemaSnapshot, mu *sync.Mutex) error {
	rows, err := conn.QueryContext(ctx, `
		SELECT trigger_name, event_object_table, action_statement
		FROM information_schema.triggers
		WHERE trigger_schema = $1
	`, schemaName)
	if err != nil {
		return err
	}
	defer rows.Close()

	triggers := map[string]*Trigger{}
	for rows.Next() {
		var name, table, def string
		if err := rows.Scan(&name, &table, &def); err != nil {
			return err
		}
		triggers[name] = &Trigger{Name: name, Table: table, Definition: def}
	}
	if err := rows.Err(); err != nil {
		return err
	}

	mu.Lock()
	snap.Triggers = triggers
	mu.Unlock()
	return nil
}

func introspectExtensions(ctx context.Context, conn db.DB, schemaName string, snap *SchemaSnapshot, mu *sync.Mutex) error {
	// Extensions are not schema-scoped in PostgreSQL; filter out plpgsql,
	// which is present in every database and never migration-relevant.
	rows, err := conn.QueryContext(ctx, `
		SELECT extname FROM pg_extension WHERE extname != 'plpgsql'
	`)
	if err != nil {
		return err
	}
	defer rows.Close()

	exts := map[string]*Extension{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return err
		}
		exts[name] = &Extension{Name: name}
	}
	if err := rows.Err(); err != nil {
		return err
	}

	mu.Lock()
	snap.Extensions = exts
	mu.Unlock()
	return nil
}

func containsWord(haystack, word string) bool {
	for i := 0; i+len(word) <= len(haystack); i++ {
		if haystack[i:i+len(word)] == word {
			return true
		}
	}
	return false
}
