package crosstab

import (
	"fmt"
	"math"
	"strconv"

	"github.com/goccy/go-json"
)

// split is the pandas "split" orientation the API uses for tables.
type split struct {
	Data    [][]*float64 `json:"data"`
	Index   [][]any      `json:"index"`
	Columns [][]any      `json:"columns"`
}

// Decode parses a table payload of the form
// {"data": [[...]], "index": [[var, code], ...], "columns": [[var, code], ...]}.
func Decode(raw []byte) (*Table, error) {
	var s split
	err := json.Unmarshal(raw, &s)
	if err != nil {
		return nil, fmt.Errorf("decode table: %w", err)
	}
	return s.table()
}

func (s split) table() (*Table, error) {
	if len(s.Data) != len(s.Index) {
		return nil, fmt.Errorf("decode table: %d data rows but %d index entries", len(s.Data), len(s.Index))
	}

	t := &Table{
		Rows:    make([]Key, len(s.Index)),
		Columns: make([]Key, len(s.Columns)),
		Data:    make([][]float64, len(s.Data)),
	}
	for i, entry := range s.Index {
		t.Rows[i] = keyFromEntry(entry)
	}
	for i, entry := range s.Columns {
		t.Columns[i] = keyFromEntry(entry)
	}
	for i, row := range s.Data {
		if len(row) != len(s.Columns) {
			return nil, fmt.Errorf("decode table: row %d has %d cells, expected %d", i, len(row), len(s.Columns))
		}
		t.Data[i] = make([]float64, len(row))
		for j, cell := range row {
			if cell == nil {
				t.Data[i][j] = math.NaN()
				continue
			}
			t.Data[i][j] = *cell
		}
	}
	return t, nil
}

func keyFromEntry(entry []any) Key {
	var k Key
	if len(entry) > 0 {
		k.Variable = keyPart(entry[0])
	}
	if len(entry) > 1 {
		k.Value = keyPart(entry[1])
	}
	return k
}

func keyPart(v any) string {
	switch v := v.(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		if v == math.Trunc(v) && !math.IsInf(v, 0) {
			return strconv.FormatInt(int64(v), 10)
		}
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	default:
		return fmt.Sprint(v)
	}
}
