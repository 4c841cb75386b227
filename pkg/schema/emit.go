// SPDX-License-Identifier: Apache-2.0

package schema

import (
	"fmt"
	"strings"

	"github.com/lib/pq"
)

// Emit renders each SchemaDiff as one or more executable DDL statements.
// Names are always quoted; types and default expressions are carried
// through verbatim since the differ captures raw catalog text.
func Emit(diffs []SchemaDiff) []string {
	var stmts []string
	for _, d := range diffs {
		stmts = append(stmts, emitOne(d)...)
	}
	return stmts
}

func emitOne(d SchemaDiff) []string {
	q := pq.QuoteIdentifier

	switch d.Kind {
	case TableAdded:
		t := d.After.(*Table)
		return []string{emitCreateTable(t)}

	case TableDropped:
		return []string{fmt.Sprintf("DROP TABLE %s;", q(d.Name))}

	case ColumnAdded:
		c := d.After.(*Column)
		return []string{fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s;", q(d.Table), columnDef(c))}

	case ColumnDropped:
		return []string{fmt.Sprintf("ALTER TABLE %s DROP COLUMN %s;", q(d.Table), q(d.Name))}

	case ColumnAltered:
		before := d.Before.(*Column)
		after := d.After.(*Column)
		var out []string
		if before.Type != after.Type {
			out = append(out, fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s TYPE %s;", q(d.Table), q(d.Name), after.Type))
		}
		if before.Nullable != after.Nullable {
			if after.Nullable {
				out = append(out, fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s DROP NOT NULL;", q(d.Table), q(d.Name)))
			} else {
				out = append(out, fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s SET NOT NULL;", q(d.Table), q(d.Name)))
			}
		}
		return out

	case IndexAdded:
		idx := d.After.(*Index)
		def := idx.Definition
		if def == "" {
			def = fmt.Sprintf("CREATE INDEX %s ON %s (...)", q(d.Name), q(d.Table))
		}
		return []string{def + ";"}

	case IndexDropped:
		return []string{fmt.Sprintf("DROP INDEX %s;", q(d.Name))}

	case ConstraintAdded:
		c := d.After.(*Constraint)
		return []string{fmt.Sprintf("ALTER TABLE %s ADD CONSTRAINT %s %s;", q(d.Table), q(d.Name), c.Definition)}

	case ConstraintDropped:
		return []string{fmt.Sprintf("ALTER TABLE %s DROP CONSTRAINT %s;", q(d.Table), q(d.Name))}

	case ViewAdded:
		v := d.After.(*View)
		return []string{fmt.Sprintf("CREATE VIEW %s AS %s;", q(d.Name), strings.TrimSuffix(v.Definition, ";"))}

	case ViewDropped:
		return []string{fmt.Sprintf("DROP VIEW %s;", q(d.Name))}

	case SequenceAdded:
		return []string{fmt.Sprintf("CREATE SEQUENCE %s;", q(d.Name))}

	case SequenceDropped:
		return []string{fmt.Sprintf("DROP SEQUENCE %s;", q(d.Name))}

	case FunctionAdded:
		f := d.After.(*Function)
		return []string{f.Body}

	case FunctionDropped:
		return []string{fmt.Sprintf("DROP FUNCTION %s;", q(d.Name))}

	case EnumAdded:
		e := d.After.(*Enum)
		labels := make([]string, len(e.Labels))
		for i, l := range e.Labels {
			labels[i] = "'" + strings.ReplaceAll(l, "'", "''") + "'"
		}
		return []string{fmt.Sprintf("CREATE TYPE %s AS ENUM (%s);", q(d.Name), strings.Join(labels, ", "))}

	case EnumDropped:
		return []string{fmt.Sprintf("DROP TYPE %s;", q(d.Name))}

	case TriggerAdded:
		t := d.After.(*Trigger)
		return []string{fmt.Sprintf("CREATE TRIGGER %s %s;", q(d.Name), t.Definition)}

	case TriggerDropped:
		return []string{fmt.Sprintf("DROP TRIGGER %s ON %s;", q(d.Name), q(d.Table))}

	case ExtensionAdded:
		return []string{fmt.Sprintf("CREATE EXTENSION IF NOT EXISTS %s;", q(d.Name))}

	case ExtensionDropped:
		return []string{fmt.Sprintf("DROP EXTENSION %s;", q(d.Name))}

	default:
		return nil
	}
}

func emitCreateTable(t *Table) string {
	cols := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		cols[i] = columnDef(c)
	}
	return fmt.Sprintf("CREATE TABLE %s (\n\t%s\n);", pq.QuoteIdentifier(t.Name), strings.Join(cols, ",\n\t"))
}

func columnDef(c *Column) string {
	def := fmt.Sprintf("%s %s", pq.QuoteIdentifier(c.Name), c.Type)
	if !c.Nullable {
		def += " NOT NULL"
	}
	if c.Default != nil {
		def += " DEFAULT " + *c.Default
	}
	return def
}

// Reversal computes the reversal DDL for a migration given its pre- and
// post-apply snapshots: emit(diff(post, pre)). Any TableDropped or
// ColumnDropped entry in the reverse diff means the migration created an
// object whose original contents cannot be restored; a warning comment is
// prepended for each.
func Reversal(pre, post *SchemaSnapshot) []string {
	reverseDiffs := Diff(post, pre)

	var warnings []string
	for _, d := range reverseDiffs {
		if d.Kind == TableDropped || d.Kind == ColumnDropped {
			warnings = append(warnings, fmt.Sprintf(
				"-- WARNING: reversing this migration drops %s %q; original data cannot be restored",
				diffObjectKind(d.Kind), d.Name))
		}
	}

	stmts := Emit(reverseDiffs)
	return append(warnings, stmts...)
}

func diffObjectKind(k DiffKind) string {
	switch k {
	case TableDropped:
		return "table"
	case ColumnDropped:
		return "column"
	default:
		return "object"
	}
}
