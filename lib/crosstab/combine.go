package crosstab

import (
	"fmt"
	"strings"
)

// View names understood by the API.
const (
	ViewCounts  = "counts"
	ViewPercent = "c%"
	ViewBase    = "cbase"
	ViewMean    = "mean"
	ViewStddev  = "stddev"
)

// PercentSuffix marks percentage rows in a combined table.
const PercentSuffix = " (%)"

func baseValue(v string) string {
	return strings.TrimSuffix(v, PercentSuffix)
}

// PostProcess applies the per statistic rounding: counts become whole
// numbers and column percentages keep a single decimal.
func PostProcess(view string, t *Table) *Table {
	switch view {
	case ViewCounts:
		return t.Truncate()
	case ViewPercent:
		return t.Round(1)
	default:
		return t
	}
}

// Combine builds a single table out of the views in order. When both
// counts and column percentages are present they form one block, with the
// percentage rows suffixed by PercentSuffix. The remaining views are
// appended and the result is sorted by row key. Views in order that are
// missing from views are skipped; callers report them separately.
func Combine(views map[string]*Table, order []string) (*Table, error) {
	counts, hasCounts := views[ViewCounts]
	percent, hasPercent := views[ViewPercent]
	fold := hasCounts && hasPercent

	var blocks []*Table
	folded := false
	for _, name := range order {
		t, ok := views[name]
		if !ok {
			continue
		}
		if fold && (name == ViewCounts || name == ViewPercent) {
			if folded {
				continue
			}
			blocks = append(blocks, counts, percent.SuffixValues(PercentSuffix))
			folded = true
			continue
		}
		blocks = append(blocks, t)
	}
	if len(blocks) == 0 {
		return nil, fmt.Errorf("combine: none of the views %v are available", order)
	}

	combined, err := blocks[0].Concat(blocks[1:]...)
	if err != nil {
		return nil, fmt.Errorf("combine: %w", err)
	}
	return combined.SortRows(), nil
}

// Labeler resolves human readable text for variables and coded values.
type Labeler interface {
	VariableText(variable string) string
	ValueLabel(variable, code string) string
}

func relabelKey(l Labeler, k Key) Key {
	value := k.Value
	if base, ok := strings.CutSuffix(value, PercentSuffix); ok {
		value = l.ValueLabel(k.Variable, base) + PercentSuffix
	} else {
		value = l.ValueLabel(k.Variable, value)
	}
	return Key{
		Variable: l.VariableText(k.Variable),
		Value:    value,
	}
}

// Relabel replaces raw variable names and codes on both axes with their
// display text.
func (t *Table) Relabel(l Labeler) *Table {
	out := t.Clone()
	for i, k := range out.Rows {
		out.Rows[i] = relabelKey(l, k)
	}
	for i, k := range out.Columns {
		out.Columns[i] = relabelKey(l, k)
	}
	return out
}
