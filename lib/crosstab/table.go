// Package crosstab holds statistical tables computed by the Datasmoothie
// API. Rows and columns of a table are keyed by a (variable, coded value)
// pair; the package decodes, post-processes, combines and labels them.
package crosstab

import (
	"cmp"
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"
)

// Key addresses one row or column of a table.
type Key struct {
	Variable string
	Value    string
}

func (k Key) String() string {
	return fmt.Sprintf("%s/%s", k.Variable, k.Value)
}

// Table is a two dimensional numeric block. Missing cells are NaN.
type Table struct {
	Rows    []Key
	Columns []Key
	Data    [][]float64
}

func (t *Table) Shape() (rows, cols int) {
	return len(t.Rows), len(t.Columns)
}

func (t *Table) Clone() *Table {
	data := make([][]float64, len(t.Data))
	for i, row := range t.Data {
		data[i] = slices.Clone(row)
	}
	return &Table{
		Rows:    slices.Clone(t.Rows),
		Columns: slices.Clone(t.Columns),
		Data:    data,
	}
}

// Value returns the cell at (row, col), the first match wins.
func (t *Table) Value(row, col Key) (float64, bool) {
	r := slices.Index(t.Rows, row)
	c := slices.Index(t.Columns, col)
	if r < 0 || c < 0 {
		return 0, false
	}
	return t.Data[r][c], true
}

func (t *Table) apply(fn func(float64) float64) *Table {
	out := t.Clone()
	for _, row := range out.Data {
		for j, v := range row {
			if math.IsNaN(v) {
				continue
			}
			row[j] = fn(v)
		}
	}
	return out
}

// Truncate drops the fractional part of every cell.
func (t *Table) Truncate() *Table {
	return t.apply(math.Trunc)
}

// Round rounds every cell to the given number of decimals, with halves
// going to the even digit.
func (t *Table) Round(decimals int) *Table {
	scale := math.Pow(10, float64(decimals))
	return t.apply(func(v float64) float64 {
		return math.RoundToEven(v*scale) / scale
	})
}

// SuffixValues appends suffix to the value part of every row key.
func (t *Table) SuffixValues(suffix string) *Table {
	out := t.Clone()
	for i := range out.Rows {
		out.Rows[i].Value += suffix
	}
	return out
}

// Concat stacks the rows of tables below t. All tables must share the
// same columns in the same order.
func (t *Table) Concat(tables ...*Table) (*Table, error) {
	out := t.Clone()
	for _, other := range tables {
		if !slices.Equal(out.Columns, other.Columns) {
			return nil, fmt.Errorf("cannot concat tables with different columns: %v vs %v", out.Columns, other.Columns)
		}
		o := other.Clone()
		out.Rows = append(out.Rows, o.Rows...)
		out.Data = append(out.Data, o.Data...)
	}
	return out, nil
}

// SortRows orders rows by variable and then by coded value. Codes that
// both parse as numbers compare numerically, so 2 sorts before 10, and
// numeric codes sort before text codes. Percentage rows ("1 (%)") compare
// equal to their base value and, as the sort is stable, stay after it in
// their original relative order.
func (t *Table) SortRows() *Table {
	order := make([]int, len(t.Rows))
	for i := range order {
		order[i] = i
	}
	slices.SortStableFunc(order, func(a, b int) int {
		ka, kb := t.Rows[a], t.Rows[b]
		if c := compareKeyPart(ka.Variable, kb.Variable); c != 0 {
			return c
		}
		return compareKeyPart(baseValue(ka.Value), baseValue(kb.Value))
	})

	out := &Table{
		Columns: slices.Clone(t.Columns),
		Rows:    make([]Key, len(order)),
		Data:    make([][]float64, len(order)),
	}
	for i, idx := range order {
		out.Rows[i] = t.Rows[idx]
		out.Data[i] = slices.Clone(t.Data[idx])
	}
	return out
}

func compareKeyPart(a, b string) int {
	na, errA := strconv.ParseFloat(a, 64)
	nb, errB := strconv.ParseFloat(b, 64)
	switch {
	case errA == nil && errB == nil:
		if c := cmp.Compare(na, nb); c != 0 {
			return c
		}
		return strings.Compare(a, b)
	case errA == nil:
		return -1
	case errB == nil:
		return 1
	}
	return strings.Compare(a, b)
}
