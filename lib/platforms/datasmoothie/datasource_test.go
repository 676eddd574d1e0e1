package datasmoothie

import (
	"context"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"datasmoothie-client/lib/crosstab"

	"github.com/google/go-cmp/cmp"
	"github.com/h2non/gock"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

const genderTables = `{"results": {
	"counts": {
		"columns": [["@", "@"]],
		"index": [["gender", 1], ["gender", 2]],
		"data": [[10.6], [20.2]]
	},
	"c%": {
		"columns": [["@", "@"]],
		"index": [["gender", 1], ["gender", 2]],
		"data": [[34.44], [65.56]]
	}
}}`

func TestMetaCacheAge(t *testing.T) {
	defer gock.OffAll()
	c := newTestClient(t)
	c.metaMaxAge = time.Minute
	ds := testDatasource(c)

	mockMetaData("7")
	mockMetaData("7")

	meta, err := ds.Meta(context.Background())
	require.NoError(t, err)
	require.Equal(t, "What is your gender?", meta.VariableText("gender", ""))
	require.Len(t, gock.Pending(), 1)

	cache, ok := ds.Cached()
	require.True(t, ok)
	require.Equal(t, testNow, cache.FetchedAt)
	require.Equal(t, "gender,q1\n1,1\n2,2\n", cache.Data)

	// still fresh
	c.now = func() time.Time { return testNow.Add(30 * time.Second) }
	_, err = ds.Meta(context.Background())
	require.NoError(t, err)
	require.Len(t, gock.Pending(), 1)

	c.now = func() time.Time { return testNow.Add(2 * time.Minute) }
	_, err = ds.Meta(context.Background())
	require.NoError(t, err)
	requireMocksDone(t)

	cache, _ = ds.Cached()
	require.Equal(t, testNow.Add(2*time.Minute), cache.FetchedAt)
}

func TestInvalidateAndRefresh(t *testing.T) {
	defer gock.OffAll()
	c := newTestClient(t)
	ds := testDatasource(c)

	mockMetaData("7")
	mockMetaData("7")

	_, err := ds.Meta(context.Background())
	require.NoError(t, err)

	ds.Invalidate()
	_, ok := ds.Cached()
	require.False(t, ok)

	_, err = ds.Refresh(context.Background())
	require.NoError(t, err)
	requireMocksDone(t)
}

func TestUpdateMetaAndData(t *testing.T) {
	defer gock.OffAll()
	c := newTestClient(t)
	ds := testDatasource(c)
	ds.SetCache(SurveyCache{FetchedAt: testNow})

	var body map[string]any
	mockApi().
		Post("/api2/datasource/7/meta_data/$").
		AddMatcher(captureJSON(&body)).
		Reply(200).
		JSON(map[string]any{"pk": 7})
	mockApi().
		Post("/api2/datasource/7/meta_data/$").
		Reply(400).
		JSON(map[string]any{"detail": "bad csv"})

	res, err := ds.UpdateMetaAndData(context.Background(), map[string]any{"columns": map[string]any{}}, "a\n1\n")
	require.NoError(t, err)
	require.True(t, res.Ok())
	require.Equal(t, "a\n1\n", body["data"])
	_, ok := ds.Cached()
	require.False(t, ok)

	ds.SetCache(SurveyCache{FetchedAt: testNow})
	res, err = ds.UpdateMetaAndData(context.Background(), map[string]any{}, "")
	require.NoError(t, err)
	require.False(t, res.Ok())
	require.Equal(t, http.StatusBadRequest, res.StatusCode)
	require.ErrorContains(t, res.Err(), "bad csv")
	_, ok = ds.Cached()
	require.True(t, ok, "a rejected update keeps the cache")
}

func TestGetTablesCombined(t *testing.T) {
	defer gock.OffAll()
	c := newTestClient(t)
	ds := testDatasource(c)

	var body map[string]any
	mockApi().
		Post("/api2/datasource/7/tables/$").
		AddMatcher(captureJSON(&body)).
		Reply(200).
		BodyString(genderTables)
	mockMetaData("7")

	result, err := ds.GetTables(context.Background(), TablesRequest{
		Stub:    []string{"gender"},
		Combine: true,
	})
	require.NoError(t, err)
	requireMocksDone(t)

	require.Equal(t, []any{"gender"}, body["stub"])
	require.Equal(t, []any{"@"}, body["banner"])
	require.Equal(t, []any{"counts", "c%"}, body["views"])
	require.NotContains(t, body, "filter")

	require.Empty(t, result.Missing)
	require.Equal(t, []string{"counts", "c%"}, result.Order)

	const q = "What is your gender?"
	expect := &crosstab.Table{
		Rows: []crosstab.Key{
			{Variable: q, Value: "Male"},
			{Variable: q, Value: "Male (%)"},
			{Variable: q, Value: "Female"},
			{Variable: q, Value: "Female (%)"},
		},
		Columns: []crosstab.Key{{Variable: "@", Value: "@"}},
		Data:    [][]float64{{10}, {34.4}, {20}, {65.6}},
	}
	if diff := cmp.Diff(expect, result.Combined); diff != "" {
		t.Fatal(diff)
	}
}

func TestGetTablesMissingView(t *testing.T) {
	defer gock.OffAll()
	c := newTestClient(t)
	ds := testDatasource(c)

	mockApi().
		Post("/api2/datasource/7/tables/$").
		Reply(200).
		BodyString(genderTables)
	mockMetaData("7")

	result, err := ds.GetTables(context.Background(), TablesRequest{
		Stub:     []string{"gender"},
		Views:    []string{"counts", "c%", "mean"},
		Combine:  true,
		Language: "is-IS",
	})
	require.NoError(t, err)
	require.Equal(t, []string{"mean"}, result.Missing)
	require.Equal(t, []string{"counts", "c%"}, result.Order)

	rows, _ := result.Combined.Shape()
	require.Equal(t, 4, rows)
	require.Equal(t, crosstab.Key{Variable: "Hvert er kyn þitt?", Value: "Karl"}, result.Combined.Rows[0])
}

func TestGetTablesUncombined(t *testing.T) {
	defer gock.OffAll()
	c := newTestClient(t)
	ds := testDatasource(c)

	mockApi().
		Post("/api2/datasource/7/tables/$").
		Reply(200).
		BodyString(genderTables)

	// no metadata is needed without combination
	result, err := ds.GetTables(context.Background(), TablesRequest{Stub: []string{"gender"}})
	require.NoError(t, err)
	requireMocksDone(t)
	require.Nil(t, result.Combined)

	counts := result.Views["counts"]
	v, ok := counts.Value(crosstab.Key{Variable: "gender", Value: "1"}, crosstab.Key{Variable: "@", Value: "@"})
	require.True(t, ok)
	require.Equal(t, 10.0, v)
}

func TestGetTablesRequiresStub(t *testing.T) {
	defer gock.OffAll()
	c := newTestClient(t)
	_, err := testDatasource(c).GetTables(context.Background(), TablesRequest{})
	require.ErrorIs(t, err, ErrInvalidOption)
}

func TestGetTable(t *testing.T) {
	defer gock.OffAll()
	c := newTestClient(t)
	ds := testDatasource(c)

	var body map[string]any
	mockApi().
		Post("/api2/datasource/7/table/$").
		AddMatcher(captureJSON(&body)).
		Reply(200).
		BodyString(`{"results": {"c%": {
			"columns": [["gender", 1], ["gender", 2]],
			"index": [["q1", 1], ["q1", 2]],
			"data": [[55.58, 40.04], [44.42, 59.96]]
		}}}`)
	mockMetaData("7")

	table, err := ds.GetTable(context.Background(), TableRequest{
		Stub:   []string{"q1"},
		Banner: []string{"gender"},
		View:   "c%",
	})
	require.NoError(t, err)
	require.Equal(t, "c%", body["view"])

	v, ok := table.Value(
		crosstab.Key{Variable: "Do you agree?", Value: "Agree"},
		crosstab.Key{Variable: "What is your gender?", Value: "Male"},
	)
	require.True(t, ok)
	require.Equal(t, 55.6, v)
}

func TestGetTableOtherViewReturned(t *testing.T) {
	defer gock.OffAll()
	c := newTestClient(t)
	ds := testDatasource(c)

	mockApi().
		Post("/api2/datasource/7/table/$").
		Reply(200).
		BodyString(`{"results": {"counts": {
			"columns": [["@", "@"]],
			"index": [["q1", 1], ["q1", 2]],
			"data": [[55.58], [44.42]]
		}}}`)

	table, err := ds.GetTable(context.Background(), TableRequest{Stub: []string{"q1"}, View: "c%"})
	require.ErrorContains(t, err, `view "c%" missing from response`)
	require.Nil(t, table)
	requireMocksDone(t)
}

func TestGetTableFailure(t *testing.T) {
	defer gock.OffAll()
	c := newTestClient(t)
	ds := testDatasource(c)

	mockApi().
		Post("/api2/datasource/7/table/$").
		Reply(500).
		BodyString("internal error")

	_, err := ds.GetTable(context.Background(), TableRequest{Stub: []string{"q1"}})
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, 500, apiErr.StatusCode)
	require.Equal(t, "internal error", string(apiErr.Body))
}

func TestGetCrosstab(t *testing.T) {
	defer gock.OffAll()
	c := newTestClient(t)
	ds := testDatasource(c)

	var body map[string]any
	mockApi().
		Post("/api2/datasource/7/crosstab/$").
		AddMatcher(captureJSON(&body)).
		Reply(200).
		BodyString(`{"results": {"counts": {
			"columns": [["@", "@"]],
			"index": [["q1", 1], ["q1", 2]],
			"data": [[3.9], [7]]
		}}}`)
	mockMetaData("7")

	table, err := ds.GetCrosstab(context.Background(), CrosstabRequest{X: "q1"})
	require.NoError(t, err)
	require.Equal(t, map[string]any{"x": "q1", "y": "@", "view": "counts"}, body)
	require.Equal(t, [][]float64{{3}, {7}}, table.Data)
	require.Equal(t, "Agree", table.Rows[0].Value)

	_, err = ds.GetCrosstab(context.Background(), CrosstabRequest{})
	require.ErrorIs(t, err, ErrInvalidOption)
}

func TestGetTableSet(t *testing.T) {
	defer gock.OffAll()
	c := newTestClient(t)
	ds := testDatasource(c)

	var pairs [][2]string
	mockApi().
		Post("/api2/datasource/7/tables/$").
		AddMatcher(func(req *http.Request, greq *gock.Request) (bool, error) {
			var body struct {
				Stub   []string `json:"stub"`
				Banner []string `json:"banner"`
			}
			ok, err := captureJSON(&body)(req, greq)
			if ok && err == nil {
				pairs = append(pairs, [2]string{body.Stub[0], body.Banner[0]})
			}
			return ok, err
		}).
		Times(4).
		Reply(200).
		BodyString(genderTables)
	mockMetaData("7")

	tables, err := ds.GetTableSet(context.Background(),
		[][]string{{"gender"}, {"q1"}},
		[][]string{{"@"}, {"gender"}},
		nil, "",
	)
	require.NoError(t, err)
	requireMocksDone(t)
	require.Len(t, tables, 4)
	require.Equal(t, [][2]string{
		{"gender", "@"},
		{"gender", "gender"},
		{"q1", "@"},
		{"q1", "gender"},
	}, pairs)

	path := filepath.Join(t.TempDir(), "set.xlsx")
	require.NoError(t, ds.TableSetToExcel(tables, path))

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()
	require.Equal(t, []string{"Table 1", "Table 2", "Table 3", "Table 4"}, f.GetSheetList())

	value, err := f.GetCellValue("Table 1", "B4")
	require.NoError(t, err)
	require.Equal(t, "Male (%)", value)
}
