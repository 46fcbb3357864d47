//                           _       _
// __      _____  __ ___   ___  __ _| |_ ___
// \ \ /\ / / _ \/ _` \ \ / / |/ _` | __/ _ \
//  \ V  V /  __/ (_| |\ V /| | (_| | ||  __/
//   \_/\_/ \___|\__,_| \_/ |_|\__,_|\__\___|
//
//  Copyright © 2016 - 2024 Weaviate B.V. All rights reserved.
//
//  CONTACT: hello@weaviate.io
//

// Package table is the in-memory columnar representation of delta contents
// that the compaction core operates on.
package table

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/vmihailenco/msgpack/v5"

	enterrors "github.com/weaviate/compactor/entities/errors"
)

// Table is an immutable set of equally long columns with unique names.
type Table struct {
	columns []*Column
	byName  map[string]int
	rows    int
}

// New builds a table from the given columns. All columns must have the same
// length and distinct names.
func New(columns ...*Column) (*Table, error) {
	t := &Table{columns: columns, byName: make(map[string]int, len(columns))}
	for i, c := range columns {
		if c == nil {
			return nil, enterrors.NewErrInvalidArgumentf("column %d is nil", i)
		}
		if _, ok := t.byName[c.Name]; ok {
			return nil, enterrors.NewErrInvalidArgumentf("duplicate column %q", c.Name)
		}
		if i > 0 && c.Len() != t.rows {
			return nil, enterrors.NewErrInvalidArgumentf(
				"column %q has %d rows, expected %d", c.Name, c.Len(), t.rows)
		}
		t.byName[c.Name] = i
		t.rows = c.Len()
	}
	return t, nil
}

// MustNew is New for static tables that are known to be valid.
func MustNew(columns ...*Column) *Table {
	t, err := New(columns...)
	if err != nil {
		panic(err)
	}
	return t
}

func (t *Table) NumRows() int {
	if t == nil {
		return 0
	}
	return t.rows
}

func (t *Table) NumColumns() int {
	return len(t.columns)
}

func (t *Table) ColumnNames() []string {
	names := make([]string, len(t.columns))
	for i, c := range t.columns {
		names[i] = c.Name
	}
	return names
}

func (t *Table) Columns() []*Column {
	return t.columns
}

func (t *Table) Column(name string) (*Column, bool) {
	i, ok := t.byName[name]
	if !ok {
		return nil, false
	}
	return t.columns[i], true
}

// Missing returns the names that are not columns of t, in input order.
func (t *Table) Missing(names ...string) []string {
	var missing []string
	for _, name := range names {
		if _, ok := t.byName[name]; !ok {
			missing = append(missing, name)
		}
	}
	return missing
}

// Select projects t onto the named columns, in the given order.
func (t *Table) Select(names ...string) (*Table, error) {
	columns := make([]*Column, len(names))
	for i, name := range names {
		c, ok := t.Column(name)
		if !ok {
			return nil, enterrors.NewErrColumnNotFound(name)
		}
		columns[i] = c
	}
	return New(columns...)
}

// Take returns a table holding the given rows of t in the given order.
func (t *Table) Take(rows []int) *Table {
	columns := make([]*Column, len(t.columns))
	for i, c := range t.columns {
		columns[i] = c.take(rows)
	}
	return &Table{columns: columns, byName: t.byName, rows: len(rows)}
}

// Filter keeps the rows for which keep returns true.
func (t *Table) Filter(keep func(row int) bool) *Table {
	rows := make([]int, 0, t.rows)
	for r := 0; r < t.rows; r++ {
		if keep(r) {
			rows = append(rows, r)
		}
	}
	return t.Take(rows)
}

// SameSchema reports whether both tables have the same column names and
// types in the same order.
func (t *Table) SameSchema(other *Table) bool {
	if len(t.columns) != len(other.columns) {
		return false
	}
	for i := range t.columns {
		if !t.columns[i].sameSchema(other.columns[i]) {
			return false
		}
	}
	return true
}

func (t *Table) schemaString() string {
	parts := make([]string, len(t.columns))
	for i, c := range t.columns {
		parts[i] = c.Name + ":" + c.Type.String()
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// Concat appends the rows of all tables. The tables must share one schema.
func Concat(tables ...*Table) (*Table, error) {
	if len(tables) == 0 {
		return nil, enterrors.NewErrInvalidArgumentf("concat requires at least one table")
	}
	first := tables[0]
	columns := make([]*Column, len(first.columns))
	for i, c := range first.columns {
		columns[i] = c.emptyLike()
	}
	rows := 0
	for i, tbl := range tables {
		if !first.SameSchema(tbl) {
			return nil, enterrors.NewErrSchemaMismatchf(
				"concat table %d: schema %s does not match %s", i, tbl.schemaString(), first.schemaString())
		}
		for j, c := range tbl.columns {
			columns[j].appendFrom(c)
		}
		rows += tbl.rows
	}
	return &Table{columns: columns, byName: first.byName, rows: rows}, nil
}

func (t *Table) Equal(other *Table) bool {
	if t == nil || other == nil {
		return t == other
	}
	if t.rows != other.rows || !t.SameSchema(other) {
		return false
	}
	for i := range t.columns {
		if !t.columns[i].equal(other.columns[i]) {
			return false
		}
	}
	return true
}

// RowKey combines the keys of the given columns at row into one
// unambiguous string.
func RowKey(row int, columns []*Column) string {
	var sb strings.Builder
	for _, c := range columns {
		k := c.Key(row)
		sb.WriteString(strconv.Itoa(len(k)))
		sb.WriteByte(':')
		sb.WriteString(k)
	}
	return sb.String()
}

func (t *Table) MarshalMsgpack() ([]byte, error) {
	return msgpack.Marshal(t.columns)
}

func (t *Table) UnmarshalMsgpack(data []byte) error {
	var columns []*Column
	if err := msgpack.Unmarshal(data, &columns); err != nil {
		return errors.Wrap(err, "unmarshal table columns")
	}
	decoded, err := New(columns...)
	if err != nil {
		return errors.Wrap(err, "rebuild table")
	}
	*t = *decoded
	return nil
}
