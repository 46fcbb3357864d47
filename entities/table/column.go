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

package table

import (
	"math"
	"strconv"

	"github.com/pkg/errors"
)

type Type uint8

const (
	Int64 Type = iota + 1
	Float64
	String
	Bool
)

func (t Type) String() string {
	switch t {
	case Int64:
		return "int64"
	case Float64:
		return "float64"
	case String:
		return "string"
	case Bool:
		return "bool"
	default:
		return "unknown"
	}
}

// Column is a named, typed vector of values. Only the slice matching Type
// is populated.
type Column struct {
	Name    string    `msgpack:"name"`
	Type    Type      `msgpack:"type"`
	Ints    []int64   `msgpack:"ints,omitempty"`
	Floats  []float64 `msgpack:"floats,omitempty"`
	Strings []string  `msgpack:"strings,omitempty"`
	Bools   []bool    `msgpack:"bools,omitempty"`
}

func Int64Column(name string, values ...int64) *Column {
	return &Column{Name: name, Type: Int64, Ints: values}
}

func Float64Column(name string, values ...float64) *Column {
	return &Column{Name: name, Type: Float64, Floats: values}
}

func StringColumn(name string, values ...string) *Column {
	return &Column{Name: name, Type: String, Strings: values}
}

func BoolColumn(name string, values ...bool) *Column {
	return &Column{Name: name, Type: Bool, Bools: values}
}

func (c *Column) Len() int {
	switch c.Type {
	case Int64:
		return len(c.Ints)
	case Float64:
		return len(c.Floats)
	case String:
		return len(c.Strings)
	case Bool:
		return len(c.Bools)
	default:
		return 0
	}
}

// Int64At casts the value at row to an int64. Floats with a fractional part
// and strings that are not integers cannot be cast.
func (c *Column) Int64At(row int) (int64, error) {
	switch c.Type {
	case Int64:
		return c.Ints[row], nil
	case Float64:
		v := c.Floats[row]
		if math.IsNaN(v) || math.IsInf(v, 0) || v != math.Trunc(v) {
			return 0, errors.Errorf("column %q: float value %v at row %d would lose data as int64",
				c.Name, v, row)
		}
		if v < math.MinInt64 || v >= math.MaxInt64 {
			return 0, errors.Errorf("column %q: float value %v at row %d overflows int64", c.Name, v, row)
		}
		return int64(v), nil
	case String:
		v, err := strconv.ParseInt(c.Strings[row], 10, 64)
		if err != nil {
			return 0, errors.Wrapf(err, "column %q: cast row %d to int64", c.Name, row)
		}
		return v, nil
	case Bool:
		if c.Bools[row] {
			return 1, nil
		}
		return 0, nil
	default:
		return 0, errors.Errorf("column %q: unknown type %d", c.Name, c.Type)
	}
}

// Key returns a type-tagged string form of the value at row. Two values have
// the same key iff they have the same type and value.
func (c *Column) Key(row int) string {
	switch c.Type {
	case Int64:
		return "i" + strconv.FormatInt(c.Ints[row], 10)
	case Float64:
		return "f" + strconv.FormatFloat(c.Floats[row], 'g', -1, 64)
	case String:
		return "s" + c.Strings[row]
	case Bool:
		return "b" + strconv.FormatBool(c.Bools[row])
	default:
		return ""
	}
}

func (c *Column) sameSchema(other *Column) bool {
	return c.Name == other.Name && c.Type == other.Type
}

func (c *Column) emptyLike() *Column {
	return &Column{Name: c.Name, Type: c.Type}
}

func (c *Column) take(rows []int) *Column {
	out := c.emptyLike()
	switch c.Type {
	case Int64:
		out.Ints = make([]int64, len(rows))
		for i, r := range rows {
			out.Ints[i] = c.Ints[r]
		}
	case Float64:
		out.Floats = make([]float64, len(rows))
		for i, r := range rows {
			out.Floats[i] = c.Floats[r]
		}
	case String:
		out.Strings = make([]string, len(rows))
		for i, r := range rows {
			out.Strings[i] = c.Strings[r]
		}
	case Bool:
		out.Bools = make([]bool, len(rows))
		for i, r := range rows {
			out.Bools[i] = c.Bools[r]
		}
	}
	return out
}

func (c *Column) appendFrom(other *Column) {
	switch c.Type {
	case Int64:
		c.Ints = append(c.Ints, other.Ints...)
	case Float64:
		c.Floats = append(c.Floats, other.Floats...)
	case String:
		c.Strings = append(c.Strings, other.Strings...)
	case Bool:
		c.Bools = append(c.Bools, other.Bools...)
	}
}

func (c *Column) equal(other *Column) bool {
	if !c.sameSchema(other) || c.Len() != other.Len() {
		return false
	}
	for i := 0; i < c.Len(); i++ {
		if c.Key(i) != other.Key(i) {
			return false
		}
	}
	return true
}
