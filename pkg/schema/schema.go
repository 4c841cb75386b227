// SPDX-License-Identifier: Apache-2.0

// Package schema introspects a PostgreSQL schema into a SchemaSnapshot, diffs
// two snapshots, and emits DDL for the difference (spec.md §4.12).
package schema

// SchemaSnapshot is the full introspected shape of one PostgreSQL schema.
type SchemaSnapshot struct {
	Name       string
	Tables     map[string]*Table
	Views      map[string]*View
	Sequences  map[string]*Sequence
	Functions  map[string]*Function
	Enums      map[string]*Enum
	Triggers   map[string]*Trigger
	Extensions map[string]*Extension
}

func NewSnapshot(name string) *SchemaSnapshot {
	return &SchemaSnapshot{
		Name:       name,
		Tables:     make(map[string]*Table),
		Views:      make(map[string]*View),
		Sequences:  make(map[string]*Sequence),
		Functions:  make(map[string]*Function),
		Enums:      make(map[string]*Enum),
		Triggers:   make(map[string]*Trigger),
		Extensions: make(map[string]*Extension),
	}
}

// Table is a table and its ordered columns, indexes, and constraints.
type Table struct {
	Name        string
	Columns     []*Column
	Indexes     map[string]*Index
	Constraints map[string]*Constraint
	Comment     string
}

// Column is one column of a table, order-significant within its Table.
type Column struct {
	Name       string
	Type       string
	Nullable   bool
	Default    *string
	Comment    string
	EnumValues []string
}

type Index struct {
	Name       string
	Table      string
	Definition string
	Unique     bool
}

type Constraint struct {
	Name       string
	Table      string
	Definition string
}

type View struct {
	Name       string
	Definition string
}

type Sequence struct {
	Name string
}

type Function struct {
	Name string
	Body string
}

// Enum is a PostgreSQL enum type and its ordered labels (enumsortorder).
type Enum struct {
	Name   string
	Labels []string
}

type Trigger struct {
	Name       string
	Table      string
	Definition string
}

type Extension struct {
	Name string
}

// ColumnByName returns a table's column by name, or nil.
func (t *Table) ColumnByName(name string) *Column {
	for _, c := range t.Columns {
		if c.Name == name {
			return c
		}
	}
	return nil
}
