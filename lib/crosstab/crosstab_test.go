package crosstab

import (
	"bytes"
	"math"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

const countsPayload = `{
	"columns": [["gender", 1], ["gender", 2]],
	"index": [["q1", 1], ["q1", 2], ["q1", 3]],
	"data": [[10.7, 20.2], [5.0, null], [3.9, 1]]
}`

const percentPayload = `{
	"columns": [["gender", 1], ["gender", 2]],
	"index": [["q1", 1], ["q1", 2], ["q1", 3]],
	"data": [[56.25, 90.04], [26.31, 0], [16.666, 4.96]]
}`

const rowPercentPayload = `{
	"columns": [["gender", 1], ["gender", 2]],
	"index": [["q1", 1], ["q1", 2], ["q1", 3]],
	"data": [[34.6, 65.4], [100, 0], [79.6, 20.4]]
}`

func mustDecode(t *testing.T, payload string) *Table {
	table, err := Decode([]byte(payload))
	require.NoError(t, err)
	return table
}

var nanEqual = cmpopts.EquateNaNs()

func TestDecode(t *testing.T) {
	table := mustDecode(t, countsPayload)

	rows, cols := table.Shape()
	require.Equal(t, 3, rows)
	require.Equal(t, 2, cols)
	require.Equal(t, []Key{{"gender", "1"}, {"gender", "2"}}, table.Columns)
	require.Equal(t, Key{"q1", "3"}, table.Rows[2])

	v, ok := table.Value(Key{"q1", "1"}, Key{"gender", "2"})
	require.True(t, ok)
	require.Equal(t, 20.2, v)

	v, ok = table.Value(Key{"q1", "2"}, Key{"gender", "2"})
	require.True(t, ok)
	require.True(t, math.IsNaN(v))

	_, ok = table.Value(Key{"q1", "9"}, Key{"gender", "2"})
	require.False(t, ok)
}

func TestDecodeInvalid(t *testing.T) {
	testCases := []string{
		`{"columns": [["a", 1]], "index": [["b", 1]], "data": []}`,
		`{"columns": [["a", 1]], "index": [["b", 1]], "data": [[1, 2]]}`,
		`{"columns": `,
	}
	for _, payload := range testCases {
		_, err := Decode([]byte(payload))
		require.Error(t, err, payload)
	}
}

func TestPostProcess(t *testing.T) {
	counts := PostProcess(ViewCounts, mustDecode(t, countsPayload))
	if diff := cmp.Diff([][]float64{{10, 20}, {5, math.NaN()}, {3, 1}}, counts.Data, nanEqual); diff != "" {
		t.Fatal(diff)
	}

	percent := PostProcess(ViewPercent, mustDecode(t, percentPayload))
	require.Equal(t, [][]float64{{56.2, 90}, {26.3, 0}, {16.7, 5}}, percent.Data)
	for _, row := range percent.Data {
		for _, v := range row {
			require.Equal(t, v, math.Round(v*10)/10)
		}
	}

	// other views are left alone, and the input is never mutated
	raw := mustDecode(t, rowPercentPayload)
	require.Equal(t, raw.Data, PostProcess("r%", raw).Data)
	original := mustDecode(t, countsPayload)
	_ = PostProcess(ViewCounts, original)
	require.Equal(t, 10.7, original.Data[0][0])
}

func TestCombine(t *testing.T) {
	views := map[string]*Table{
		ViewCounts:  PostProcess(ViewCounts, mustDecode(t, countsPayload)),
		ViewPercent: PostProcess(ViewPercent, mustDecode(t, percentPayload)),
		"r%":        mustDecode(t, rowPercentPayload),
	}
	order := []string{ViewCounts, ViewPercent, "r%"}

	combined, err := Combine(views, order)
	require.NoError(t, err)

	rows, cols := combined.Shape()
	require.Equal(t, 3*len(order), rows)
	require.Equal(t, 2, cols)
	require.Equal(t, []Key{
		{"q1", "1"}, {"q1", "1 (%)"}, {"q1", "1"},
		{"q1", "2"}, {"q1", "2 (%)"}, {"q1", "2"},
		{"q1", "3"}, {"q1", "3 (%)"}, {"q1", "3"},
	}, combined.Rows)
	require.Equal(t, []float64{10, 20}, combined.Data[0])
	require.Equal(t, []float64{56.2, 90}, combined.Data[1])
	require.Equal(t, []float64{34.6, 65.4}, combined.Data[2])
}

func TestCombineWithoutPercent(t *testing.T) {
	views := map[string]*Table{
		ViewCounts: mustDecode(t, countsPayload),
	}
	combined, err := Combine(views, []string{ViewCounts, ViewPercent})
	require.NoError(t, err)
	require.Equal(t, views[ViewCounts].Rows, combined.Rows)

	_, err = Combine(views, []string{ViewMean})
	require.Error(t, err)
}

func TestConcatMismatchedColumns(t *testing.T) {
	a := mustDecode(t, countsPayload)
	b := &Table{Columns: []Key{{"age", "1"}}}
	_, err := a.Concat(b)
	require.Error(t, err)
}

func TestSortRows(t *testing.T) {
	table := &Table{
		Columns: []Key{{"@", "Total"}},
		Rows: []Key{
			{"q2", "1"}, {"q1", "10"}, {"q1", "2"}, {"q1", "x"},
			{"q2", "1 (%)"}, {"q1", "10 (%)"}, {"q1", "2 (%)"}, {"q1", "2"},
		},
		Data: [][]float64{{1}, {2}, {3}, {4}, {5}, {6}, {7}, {8}},
	}
	sorted := table.SortRows()
	require.Equal(t, []Key{
		{"q1", "2"}, {"q1", "2 (%)"}, {"q1", "2"},
		{"q1", "10"}, {"q1", "10 (%)"},
		{"q1", "x"},
		{"q2", "1"}, {"q2", "1 (%)"},
	}, sorted.Rows)
	require.Equal(t, [][]float64{{3}, {7}, {8}, {2}, {6}, {4}, {1}, {5}}, sorted.Data)
	require.Equal(t, Key{"q2", "1"}, table.Rows[0])
}

func TestRoundHalfToEven(t *testing.T) {
	table := &Table{
		Columns: []Key{{"g", "1"}, {"g", "2"}, {"g", "3"}, {"g", "4"}, {"g", "5"}},
		Rows:    []Key{{"q1", "1"}},
		Data:    [][]float64{{0.25, 2.5, -0.25, 56.25, 1.26}},
	}
	require.Equal(t, []float64{0.2, 2.5, -0.2, 56.2, 1.3}, table.Round(1).Data[0])
	require.Equal(t, []float64{0, 2, 0, 56, 1}, table.Round(0).Data[0])
}

type fakeLabels map[string]map[string]string

func (f fakeLabels) VariableText(variable string) string {
	if _, ok := f[variable]; ok {
		return f[variable][""]
	}
	return variable
}

func (f fakeLabels) ValueLabel(variable, code string) string {
	if label, ok := f[variable][code]; ok && code != "" {
		return label
	}
	return code
}

func TestRelabel(t *testing.T) {
	labels := fakeLabels{
		"q1":     {"": "Do you agree?", "1": "Yes", "2": "No"},
		"gender": {"": "Gender", "1": "Male", "2": "Female"},
	}
	table := &Table{
		Columns: []Key{{"gender", "1"}, {"gender", "2"}},
		Rows:    []Key{{"q1", "1"}, {"q1", "1 (%)"}, {"q1", "3"}},
		Data:    [][]float64{{1, 2}, {3, 4}, {5, 6}},
	}

	labeled := table.Relabel(labels)
	require.Equal(t, []Key{{"Gender", "Male"}, {"Gender", "Female"}}, labeled.Columns)
	require.Equal(t, []Key{
		{"Do you agree?", "Yes"},
		{"Do you agree?", "Yes (%)"},
		{"Do you agree?", "3"},
	}, labeled.Rows)
	require.Equal(t, Key{"q1", "1"}, table.Rows[0])
}

func TestRender(t *testing.T) {
	table := mustDecode(t, countsPayload)
	var buf bytes.Buffer
	table.Render(&buf)

	out := buf.String()
	require.Contains(t, out, "GENDER")
	require.Contains(t, out, "10.7")
	require.Contains(t, out, "q1")
}

func TestWriteExcel(t *testing.T) {
	tables := []*Table{
		mustDecode(t, countsPayload),
		mustDecode(t, percentPayload),
	}
	path := filepath.Join(t.TempDir(), "tables.xlsx")
	require.NoError(t, WriteExcel(tables, path))

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	require.Equal(t, []string{"Table 1", "Table 2"}, f.GetSheetList())

	testCases := []struct {
		sheet  string
		cell   string
		expect string
	}{
		{sheet: "Table 1", cell: "C1", expect: "gender"},
		{sheet: "Table 1", cell: "D2", expect: "2"},
		{sheet: "Table 1", cell: "A3", expect: "q1"},
		{sheet: "Table 1", cell: "B5", expect: "3"},
		{sheet: "Table 1", cell: "C3", expect: "10.7"},
		{sheet: "Table 1", cell: "D4", expect: ""},
		{sheet: "Table 2", cell: "C5", expect: "16.666"},
	}
	for _, test := range testCases {
		value, err := f.GetCellValue(test.sheet, test.cell)
		require.NoError(t, err)
		require.Equal(t, test.expect, value, "%s!%s", test.sheet, test.cell)
	}

	width, err := f.GetColWidth("Table 1", "A")
	require.NoError(t, err)
	require.Equal(t, float64(excelVariableWidth), width)

	require.Error(t, WriteExcel(nil, path))
}
